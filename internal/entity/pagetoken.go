package entity

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"time"
)

// PageToken is the opaque keyset-pagination pivot: the (valid_from, entity_id)
// pair of the last row returned by a page, encoded so it round-trips through a
// URL query parameter without the caller ever decoding it.
type PageToken struct {
	Timestamp time.Time
	EntityID  string
}

// Encode produces the base64url blob: an 8-byte big-endian microsecond
// timestamp followed by the raw entity id bytes.
func (p PageToken) Encode() string {
	buf := make([]byte, 8+len(p.EntityID))
	binary.BigEndian.PutUint64(buf, uint64(p.Timestamp.UnixMicro()))
	copy(buf[8:], p.EntityID)
	return base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(buf)
}

// DecodePageToken reverses Encode. Clients treat the token as opaque; this is
// only ever called on our own previously-issued tokens.
func DecodePageToken(s string) (PageToken, error) {
	buf, err := base64.URLEncoding.WithPadding(base64.NoPadding).DecodeString(s)
	if err != nil {
		return PageToken{}, fmt.Errorf("decode page token: %w", err)
	}
	if len(buf) <= 8 {
		return PageToken{}, fmt.Errorf("decode page token: too short (%d bytes)", len(buf))
	}
	micros := int64(binary.BigEndian.Uint64(buf[:8]))
	return PageToken{
		Timestamp: time.UnixMicro(micros).UTC(),
		EntityID:  string(buf[8:]),
	}, nil
}
