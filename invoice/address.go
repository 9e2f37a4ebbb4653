package invoice

import (
	"crypto/sha256"
	"errors"

	"github.com/xraph/settle/types"
)

const addressDomain = "settle/invoice"

// ErrNoViableBump is returned when no nonce yields a valid address. With a
// one-in-two chance per nonce this does not happen in practice.
var ErrNoViableBump = errors.New("invoice: no viable derivation nonce")

// errOffCurve marks a digest whose top bit is set. Those digests are not
// valid invoice addresses.
var errOffCurve = errors.New("invoice: derived digest is not a valid address")

// CreateAddress hashes the seeds with a specific nonce.
func CreateAddress(creditor, debtor types.Party, namespace string, bump uint8) (types.Address, error) {
	h := sha256.New()
	h.Write(creditor[:])
	h.Write(debtor[:])
	h.Write([]byte(namespace))
	h.Write([]byte{bump})
	h.Write([]byte(addressDomain))

	var addr types.Address
	copy(addr[:], h.Sum(nil))
	if addr[0]&0x80 != 0 {
		return types.ZeroKey, errOffCurve
	}
	return addr, nil
}

// DeriveAddress returns the canonical address for the triple and the nonce
// that produced it: the first nonce counting down from 255 that yields a
// valid address.
func DeriveAddress(creditor, debtor types.Party, namespace string) (types.Address, uint8, error) {
	for bump := 255; bump >= 0; bump-- {
		addr, err := CreateAddress(creditor, debtor, namespace, uint8(bump))
		if err == nil {
			return addr, uint8(bump), nil
		}
	}
	return types.ZeroKey, 0, ErrNoViableBump
}

// VerifyBump reports whether bump is the canonical nonce for the triple and
// returns the address it derives.
func VerifyBump(creditor, debtor types.Party, namespace string, bump uint8) (types.Address, bool) {
	addr, canonical, err := DeriveAddress(creditor, debtor, namespace)
	if err != nil || canonical != bump {
		return types.ZeroKey, false
	}
	return addr, true
}
