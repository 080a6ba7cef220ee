package entity

import (
	"testing"
	"time"
)

func TestPageTokenRoundTrip(t *testing.T) {
	want := PageToken{
		Timestamp: time.UnixMicro(1_700_000_000_123_456).UTC(),
		EntityID:  "team_42",
	}
	encoded := want.Encode()

	got, err := DecodePageToken(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.Timestamp.Equal(want.Timestamp) || got.EntityID != want.EntityID {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestPageTokenRejectsShortInput(t *testing.T) {
	if _, err := DecodePageToken("AA"); err == nil {
		t.Fatalf("expected error decoding a too-short token")
	}
}
