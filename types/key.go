package types

import (
	"crypto/rand"
	"database/sql/driver"
	"encoding/hex"
	"fmt"
)

// KeySize is the length in bytes of every party and address key.
const KeySize = 32

// Key is a 32-byte identity. Parties (creditors, debtors) and derived
// invoice addresses share the representation.
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receivers for UnmarshalText/Scan.
type Key [KeySize]byte

// Party identifies a creditor or debtor.
type Party = Key

// Address identifies an invoice record and its escrow holding.
type Address = Key

// ZeroKey is the all-zero key.
var ZeroKey Key

// NewKey returns a random key.
func NewKey() Key {
	var k Key
	if _, err := rand.Read(k[:]); err != nil {
		panic(fmt.Sprintf("key: read random: %v", err))
	}
	return k
}

// ParseKey parses a 64-character hex string.
func ParseKey(s string) (Key, error) {
	var k Key
	if len(s) != hex.EncodedLen(KeySize) {
		return ZeroKey, fmt.Errorf("key: parse %q: want %d hex characters", s, hex.EncodedLen(KeySize))
	}
	if _, err := hex.Decode(k[:], []byte(s)); err != nil {
		return ZeroKey, fmt.Errorf("key: parse %q: %w", s, err)
	}
	return k, nil
}

// MustParseKey is like ParseKey but panics on error.
func MustParseKey(s string) Key {
	k, err := ParseKey(s)
	if err != nil {
		panic(err)
	}
	return k
}

// KeyFromBytes copies b into a Key. b must be exactly KeySize bytes.
func KeyFromBytes(b []byte) (Key, error) {
	var k Key
	if len(b) != KeySize {
		return ZeroKey, fmt.Errorf("key: want %d bytes, got %d", KeySize, len(b))
	}
	copy(k[:], b)
	return k, nil
}

// String returns the lowercase hex encoding.
func (k Key) String() string {
	return hex.EncodeToString(k[:])
}

// Short returns the first eight hex characters, for log lines.
func (k Key) Short() string {
	return hex.EncodeToString(k[:4])
}

// IsZero reports whether every byte is zero.
func (k Key) IsZero() bool {
	return k == ZeroKey
}

// MarshalText implements encoding.TextMarshaler.
func (k Key) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Key) UnmarshalText(data []byte) error {
	parsed, err := ParseKey(string(data))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Value implements driver.Valuer.
func (k Key) Value() (driver.Value, error) {
	return k.String(), nil
}

// Scan implements sql.Scanner.
func (k *Key) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return k.UnmarshalText([]byte(v))
	case []byte:
		if len(v) == KeySize {
			copy(k[:], v)
			return nil
		}
		return k.UnmarshalText(v)
	default:
		return fmt.Errorf("key: cannot scan %T into Key", src)
	}
}
