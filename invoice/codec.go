package invoice

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/settle/types"
)

// Encoded layout, little-endian:
//
//	discriminator  8
//	creditor       32
//	debtor         32
//	balance        8
//	namespace      4 + len
//	issued_at      8   unix seconds
//	confirmed_at   8   unix seconds, 0 when unconfirmed
//	memo           4 + len
//	bump           1
const (
	discriminatorLen = 8
	fixedLen         = discriminatorLen + types.KeySize + types.KeySize + 8 + 4 + 8 + 8 + 4 + 1
)

// Discriminator prefixes every encoded invoice.
var Discriminator = func() [discriminatorLen]byte {
	sum := sha256.Sum256([]byte("account:Invoice"))
	var d [discriminatorLen]byte
	copy(d[:], sum[:discriminatorLen])
	return d
}()

// Codec errors.
var (
	ErrShortBuffer   = errors.New("invoice: encoded record truncated")
	ErrDiscriminator = errors.New("invoice: discriminator mismatch")
)

// Size returns the encoded size of an invoice with the given namespace and
// memo. The storage reserve is computed from it.
func Size(namespace, memo string) int {
	return fixedLen + len(namespace) + len(memo)
}

// Encode serializes the persisted fields of inv.
func Encode(inv *Invoice) []byte {
	buf := make([]byte, 0, inv.Size())
	buf = append(buf, Discriminator[:]...)
	buf = append(buf, inv.Creditor[:]...)
	buf = append(buf, inv.Debtor[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(inv.Balance))
	buf = appendString(buf, inv.Namespace)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(unixOrZero(&inv.IssuedAt)))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(unixOrZero(inv.ConfirmedAt)))
	buf = appendString(buf, inv.Memo)
	buf = append(buf, inv.Bump)
	return buf
}

// Decode parses an encoded invoice. Only the persisted fields are populated.
func Decode(data []byte) (*Invoice, error) {
	r := reader{buf: data}

	disc := r.next(discriminatorLen)
	if r.err == nil && !bytes.Equal(disc, Discriminator[:]) {
		return nil, ErrDiscriminator
	}

	inv := &Invoice{}
	copy(inv.Creditor[:], r.next(types.KeySize))
	copy(inv.Debtor[:], r.next(types.KeySize))
	inv.Balance = types.Amount(r.uint64())
	inv.Namespace = r.string()
	issued := int64(r.uint64())
	confirmed := int64(r.uint64())
	inv.Memo = r.string()
	if b := r.next(1); len(b) == 1 {
		inv.Bump = b[0]
	}

	if r.err != nil {
		return nil, r.err
	}
	if len(r.buf) != 0 {
		return nil, fmt.Errorf("invoice: %d trailing bytes", len(r.buf))
	}

	inv.IssuedAt = time.Unix(issued, 0).UTC()
	if confirmed != 0 {
		t := time.Unix(confirmed, 0).UTC()
		inv.ConfirmedAt = &t
	}
	return inv, nil
}

func appendString(buf []byte, s string) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

func unixOrZero(t *time.Time) int64 {
	if t == nil || t.IsZero() {
		return 0
	}
	return t.Unix()
}

type reader struct {
	buf []byte
	err error
}

func (r *reader) next(n int) []byte {
	if r.err != nil {
		return nil
	}
	if len(r.buf) < n {
		r.err = ErrShortBuffer
		return nil
	}
	b := r.buf[:n]
	r.buf = r.buf[n:]
	return b
}

func (r *reader) uint64() uint64 {
	b := r.next(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *reader) string() string {
	b := r.next(4)
	if b == nil {
		return ""
	}
	return string(r.next(int(binary.LittleEndian.Uint32(b))))
}
