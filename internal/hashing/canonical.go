package hashing

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/albapepper/chron/internal/entity"
)

// Canonicalize reorders every JSON object's keys lexicographically,
// recursively, and re-serializes the value. Two JSON documents that are
// recursively equal under any permutation of object keys canonicalize to the
// same byte string. encoding/json already sorts map[string]any keys on
// marshal, so decoding into an untyped tree and re-encoding is sufficient;
// json.Number preserves numeric literals instead of losing float precision.
func Canonicalize(raw json.RawMessage) (json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, fmt.Errorf("canonicalize: decode: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(value); err != nil {
		return nil, fmt.Errorf("canonicalize: encode: %w", err)
	}

	// json.Encoder.Encode appends a trailing newline; trim it so the
	// canonical form is stable byte-for-byte.
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// ContentHash canonicalizes raw and returns both the 128-bit SipHash-1-3
// fingerprint and the canonical bytes that were hashed — callers persist the
// canonical form, not the original wire bytes, so that repeated puts of
// equivalent JSON are byte-identical in storage.
func ContentHash(raw json.RawMessage) (entity.Hash, json.RawMessage, error) {
	canonical, err := Canonicalize(raw)
	if err != nil {
		return entity.Hash{}, nil, err
	}
	return entity.Hash(SipHash128(canonical)), canonical, nil
}
