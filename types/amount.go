package types

import (
	"errors"
	"fmt"
	"math"
	"math/big"

	"github.com/shopspring/decimal"
)

// Decimals is the number of fractional digits between the major unit and the
// smallest unit an Amount counts in.
const Decimals = 9

// MaxStorable is the largest Amount a store can persist. Balances are kept in
// signed 64-bit columns.
const MaxStorable = Amount(math.MaxInt64)

// ErrAmountOverflow is returned when arithmetic leaves the uint64 range.
var ErrAmountOverflow = errors.New("amount: overflow")

// Amount is a quantity in the smallest currency unit. All arithmetic is
// integer-only; the decimal form exists for display and parsing.
//
// Examples:
//   - Amount(1_000_000_000) = 1 unit
//   - Amount(1_200_000_000) = 1.2 units
type Amount uint64

// Units returns the Amount for a whole number of major units.
func Units(n uint64) Amount {
	return Amount(n * pow10(Decimals))
}

// ParseAmount parses a major-unit decimal string such as "1.2" into an
// Amount. Negative values and precision finer than the smallest unit are
// rejected.
func ParseAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("amount: parse %q: %w", s, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("amount: parse %q: negative", s)
	}

	shifted := d.Shift(Decimals)
	if !shifted.Equal(shifted.Truncate(0)) {
		return 0, fmt.Errorf("amount: parse %q: more than %d decimal places", s, Decimals)
	}

	bi := shifted.BigInt()
	if !bi.IsUint64() {
		return 0, fmt.Errorf("amount: parse %q: %w", s, ErrAmountOverflow)
	}

	return Amount(bi.Uint64()), nil
}

// MustParseAmount is like ParseAmount but panics on error. Use for constants.
func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Arithmetic

// Add returns a+other, or ErrAmountOverflow.
func (a Amount) Add(other Amount) (Amount, error) {
	sum := a + other
	if sum < a {
		return 0, ErrAmountOverflow
	}
	return sum, nil
}

// Sub returns a-other, or ErrAmountOverflow when other exceeds a.
func (a Amount) Sub(other Amount) (Amount, error) {
	if other > a {
		return 0, ErrAmountOverflow
	}
	return a - other, nil
}

// Mul returns a*n, or ErrAmountOverflow.
func (a Amount) Mul(n uint64) (Amount, error) {
	if n != 0 && uint64(a) > math.MaxUint64/n {
		return 0, ErrAmountOverflow
	}
	return a * Amount(n), nil
}

// Min returns the smaller of a and other.
func (a Amount) Min(other Amount) Amount {
	if a < other {
		return a
	}
	return other
}

// Comparison

// IsZero returns true if the amount is zero.
func (a Amount) IsZero() bool { return a == 0 }

// IsPositive returns true if the amount is greater than zero.
func (a Amount) IsPositive() bool { return a > 0 }

// Storable reports whether the amount fits in a signed 64-bit column.
func (a Amount) Storable() bool { return a <= MaxStorable }

// Formatting

// Decimal returns the amount in major units.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(uint64(a)), -Decimals)
}

// FormatMajor returns the major unit string with all fractional digits,
// e.g. "1.200000000".
func (a Amount) FormatMajor() string {
	return a.Decimal().StringFixed(Decimals)
}

// String returns the shortest major unit form, e.g. "1.2".
func (a Amount) String() string {
	return a.Decimal().String()
}

func pow10(n int) uint64 {
	p := uint64(1)
	for i := 0; i < n; i++ {
		p *= 10
	}
	return p
}
