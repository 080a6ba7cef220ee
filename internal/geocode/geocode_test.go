package geocode

import "testing"

func TestNormalizeFoldsCase(t *testing.T) {
	a := Normalize("New York City")
	b := Normalize("NEW YORK CITY")
	if a != b {
		t.Fatalf("expected case-insensitive match, got %q vs %q", a, b)
	}
	if a != "new york city" {
		t.Fatalf("unexpected normalized form: %q", a)
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	once := Normalize("Kansas City")
	twice := Normalize(once)
	if once != twice {
		t.Fatalf("Normalize should be idempotent: %q vs %q", once, twice)
	}
}

func TestNewReturnsNilWithoutAPIKey(t *testing.T) {
	if c := New(nil, ""); c != nil {
		t.Fatalf("expected nil client when api key is empty")
	}
}
