package types

import (
	"strings"
	"testing"
)

func TestKeyRoundTrip(t *testing.T) {
	k := NewKey()
	if k.IsZero() {
		t.Fatal("random key should not be zero")
	}

	parsed, err := ParseKey(k.String())
	if err != nil {
		t.Fatalf("ParseKey: %v", err)
	}
	if parsed != k {
		t.Errorf("round-trip mismatch: %s != %s", parsed, k)
	}

	if !strings.HasPrefix(k.String(), k.Short()) {
		t.Errorf("Short %q is not a prefix of %q", k.Short(), k.String())
	}
}

func TestParseKeyRejects(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"short", "abcd"},
		{"not hex", strings.Repeat("zz", KeySize)},
		{"too long", strings.Repeat("00", KeySize+1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseKey(tt.input); err == nil {
				t.Errorf("expected error for %q", tt.input)
			}
		})
	}
}

func TestKeyValueScan(t *testing.T) {
	k := NewKey()
	v, err := k.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}

	var fromString Key
	if err := fromString.Scan(v); err != nil {
		t.Fatalf("Scan(string): %v", err)
	}
	if fromString != k {
		t.Error("Scan(string) mismatch")
	}

	var fromRaw Key
	if err := fromRaw.Scan(k[:]); err != nil {
		t.Fatalf("Scan([]byte): %v", err)
	}
	if fromRaw != k {
		t.Error("Scan([]byte) mismatch")
	}

	var bad Key
	if err := bad.Scan(42); err == nil {
		t.Error("expected error scanning int")
	}
}

func TestKeyFromBytes(t *testing.T) {
	if _, err := KeyFromBytes(make([]byte, 31)); err == nil {
		t.Error("expected error for 31 bytes")
	}
	b := make([]byte, KeySize)
	b[0] = 7
	k, err := KeyFromBytes(b)
	if err != nil {
		t.Fatalf("KeyFromBytes: %v", err)
	}
	if k[0] != 7 {
		t.Error("first byte not copied")
	}
}
