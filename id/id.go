// Package id holds the TypeID identifiers of settle records: "inv_…" for
// invoices and "pay_…" for payment receipts. Suffixes are UUIDv7, so IDs of
// one kind sort in creation order.
package id

import (
	"database/sql/driver"
	"fmt"
	"strings"

	"go.jetify.com/typeid/v2"
)

// Prefix is the kind tag in front of the underscore.
type Prefix string

const (
	PrefixInvoice Prefix = "inv"
	PrefixPayment Prefix = "pay"
)

// ID is a prefixed TypeID. The zero value is Nil.
//
//nolint:recvcheck // pointer receivers only for UnmarshalText and Scan.
type ID struct {
	inner typeid.TypeID
	valid bool
}

// InvoiceID identifies an invoice record.
type InvoiceID = ID

// PaymentID identifies a payment receipt.
type PaymentID = ID

// Nil is the unset ID.
var Nil ID

func generate(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: generate %q: %v", prefix, err))
	}
	return ID{inner: tid, valid: true}
}

// NewInvoiceID returns a fresh invoice ID.
func NewInvoiceID() InvoiceID { return generate(PrefixInvoice) }

// NewPaymentID returns a fresh payment ID.
func NewPaymentID() PaymentID { return generate(PrefixPayment) }

// Parse reads an ID of any kind.
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: empty string")
	}
	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}
	return ID{inner: tid, valid: true}, nil
}

func parseKind(s string, want Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}
	if got := parsed.Prefix(); got != want {
		return Nil, fmt.Errorf("id: %q is a %s id, want %s", s, got, want)
	}
	return parsed, nil
}

// ParseInvoiceID reads an "inv_" ID.
func ParseInvoiceID(s string) (InvoiceID, error) { return parseKind(s, PrefixInvoice) }

// ParsePaymentID reads a "pay_" ID.
func ParsePaymentID(s string) (PaymentID, error) { return parseKind(s, PrefixPayment) }

// String returns "prefix_suffix", or "" for Nil.
func (i ID) String() string {
	if !i.valid {
		return ""
	}
	return i.inner.String()
}

// Prefix returns the kind tag, or "" for Nil.
func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}
	return Prefix(i.inner.Prefix())
}

// IsNil reports whether the ID is unset.
func (i ID) IsNil() bool { return !i.valid }

// Compare orders IDs by their string form, which is creation order within
// one prefix.
func (i ID) Compare(other ID) int {
	return strings.Compare(i.String(), other.String())
}

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Empty input yields Nil.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil
		return nil
	}
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

// Value implements driver.Valuer. Nil is stored as NULL.
func (i ID) Value() (driver.Value, error) {
	if !i.valid {
		return nil, nil //nolint:nilnil // NULL
	}
	return i.inner.String(), nil
}

// Scan implements sql.Scanner.
func (i *ID) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*i = Nil
		return nil
	case string:
		return i.UnmarshalText([]byte(v))
	case []byte:
		return i.UnmarshalText(v)
	default:
		return fmt.Errorf("id: cannot scan %T", src)
	}
}
