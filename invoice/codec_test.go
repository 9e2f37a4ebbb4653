package invoice

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/xraph/settle/types"
)

func sampleInvoice() *Invoice {
	issued := time.Unix(1_700_000_000, 0).UTC()
	return &Invoice{
		Creditor:  types.NewKey(),
		Debtor:    types.NewKey(),
		Namespace: "project-42",
		Memo:      "storage upload",
		Balance:   types.MustParseAmount("1.2"),
		IssuedAt:  issued,
		Bump:      254,
	}
}

func TestSizeMatchesEncoding(t *testing.T) {
	inv := sampleInvoice()
	if got, want := len(Encode(inv)), Size(inv.Namespace, inv.Memo); got != want {
		t.Errorf("encoded %d bytes, Size reports %d", got, want)
	}
}

func TestSizeEmptyMemo(t *testing.T) {
	// 8 discriminator, two keys, balance, namespace prefix, two timestamps,
	// memo prefix, bump.
	ns := "abc"
	want := 8 + 32 + 32 + 8 + 4 + len(ns) + 8 + 8 + 4 + 1
	if got := Size(ns, ""); got != want {
		t.Errorf("Size = %d, want %d", got, want)
	}
}

func TestEncodeDecode(t *testing.T) {
	inv := sampleInvoice()
	confirmed := time.Unix(1_700_000_600, 0).UTC()
	inv.ConfirmedAt = &confirmed

	got, err := Decode(Encode(inv))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Creditor != inv.Creditor || got.Debtor != inv.Debtor {
		t.Error("parties mismatch")
	}
	if got.Balance != inv.Balance || got.Namespace != inv.Namespace || got.Memo != inv.Memo || got.Bump != inv.Bump {
		t.Errorf("fields mismatch: %+v", got)
	}
	if !got.IssuedAt.Equal(inv.IssuedAt) {
		t.Errorf("issued_at: got %v, want %v", got.IssuedAt, inv.IssuedAt)
	}
	if got.ConfirmedAt == nil || !got.ConfirmedAt.Equal(confirmed) {
		t.Errorf("confirmed_at: got %v", got.ConfirmedAt)
	}
}

func TestEncodeLayout(t *testing.T) {
	inv := sampleInvoice()
	data := Encode(inv)

	if !bytes.Equal(data[:8], Discriminator[:]) {
		t.Error("discriminator not at offset 0")
	}
	if !bytes.Equal(data[8:40], inv.Creditor[:]) {
		t.Error("creditor not at offset 8")
	}
	if !bytes.Equal(data[40:72], inv.Debtor[:]) {
		t.Error("debtor not at offset 40")
	}
	// 1.2 units little-endian.
	if data[72] != 0x00 || data[73] != 0x8c || data[74] != 0x86 || data[75] != 0x47 {
		t.Errorf("balance bytes: % x", data[72:80])
	}
	if data[len(data)-1] != inv.Bump {
		t.Error("bump not at the last byte")
	}
}

func TestDecodeErrors(t *testing.T) {
	data := Encode(sampleInvoice())

	if _, err := Decode(data[:20]); !errors.Is(err, ErrShortBuffer) {
		t.Errorf("truncated: got %v", err)
	}

	bad := bytes.Clone(data)
	bad[0] ^= 0xff
	if _, err := Decode(bad); !errors.Is(err, ErrDiscriminator) {
		t.Errorf("discriminator: got %v", err)
	}

	if _, err := Decode(append(bytes.Clone(data), 0)); err == nil {
		t.Error("expected error for trailing bytes")
	}
}
