package settle

import (
	"errors"
	"fmt"

	"github.com/xraph/settle/types"
)

// Sentinel errors for common failure scenarios.
var (
	// Settlement errors
	ErrInsufficientFunds = errors.New("settle: not enough funds")
	ErrUnsettledBalance  = errors.New("settle: tried to confirm an unsettled invoice")
	ErrAlreadySettled    = errors.New("settle: invoice already settled")
	ErrUnauthorized      = errors.New("settle: unauthorized signer")
	ErrInvalidAmount     = errors.New("settle: invalid amount")
	ErrAddressCollision  = errors.New("settle: invoice address already in use")
	ErrNamespaceTooLong  = errors.New("settle: namespace too long")
	ErrMemoTooLong       = errors.New("settle: memo too long")
	ErrInvalidDerivation = errors.New("settle: derivation nonce does not match address")
	ErrInvoiceNotFound   = errors.New("settle: invoice not found")
	ErrConflict          = errors.New("settle: concurrent modification")

	// Store errors
	ErrStoreNotReady   = errors.New("settle: store not ready")
	ErrStoreClosed     = errors.New("settle: store is closed")
	ErrMigrationFailed = errors.New("settle: migration failed")
)

// Code is the stable numeric identifier of a ledger error.
type Code int

// Error codes. Values are stable; new codes are only ever appended.
const (
	CodeInsufficientFunds Code = 300 + iota
	CodeUnsettledBalance
	CodeAlreadySettled
	CodeUnauthorized
	CodeInvalidAmount
	CodeAddressCollision
	CodeNamespaceTooLong
	CodeMemoTooLong
	CodeInvalidDerivation
	CodeInvoiceNotFound
	CodeConflict
)

var codeNames = map[Code]string{
	CodeInsufficientFunds: "insufficient_funds",
	CodeUnsettledBalance:  "unsettled_balance",
	CodeAlreadySettled:    "already_settled",
	CodeUnauthorized:      "unauthorized",
	CodeInvalidAmount:     "invalid_amount",
	CodeAddressCollision:  "address_collision",
	CodeNamespaceTooLong:  "namespace_too_long",
	CodeMemoTooLong:       "memo_too_long",
	CodeInvalidDerivation: "invalid_derivation",
	CodeInvoiceNotFound:   "invoice_not_found",
	CodeConflict:          "conflict",
}

// String returns the snake_case name of the code, or "unknown".
func (c Code) String() string {
	if n, ok := codeNames[c]; ok {
		return n
	}
	return "unknown"
}

var codes = map[error]Code{
	ErrInsufficientFunds: CodeInsufficientFunds,
	ErrUnsettledBalance:  CodeUnsettledBalance,
	ErrAlreadySettled:    CodeAlreadySettled,
	ErrUnauthorized:      CodeUnauthorized,
	ErrInvalidAmount:     CodeInvalidAmount,
	ErrAddressCollision:  CodeAddressCollision,
	ErrNamespaceTooLong:  CodeNamespaceTooLong,
	ErrMemoTooLong:       CodeMemoTooLong,
	ErrInvalidDerivation: CodeInvalidDerivation,
	ErrInvoiceNotFound:   CodeInvoiceNotFound,
	ErrConflict:          CodeConflict,
}

// Error is a rejected ledger operation. It unwraps to one of the sentinel
// errors above, so errors.Is works against the sentinel.
type Error struct {
	Code     Code
	Op       string
	Identity types.Key
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("settle: %s: %d: %s", e.Op, e.Code, trimPrefix(e.Err))
	if !e.Identity.IsZero() {
		msg += " (identity " + e.Identity.Short() + ")"
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// newError builds an Error for op. err may be a sentinel or wrap one; the
// code is taken from the first sentinel found in the chain.
func newError(op string, identity types.Key, err error) *Error {
	e := &Error{Op: op, Identity: identity, Err: err}
	for sentinel, code := range codes {
		if errors.Is(err, sentinel) {
			e.Code = code
			break
		}
	}
	return e
}

// CodeOf returns the ledger code carried by err, or 0.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	for sentinel, code := range codes {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return 0
}

func trimPrefix(err error) string {
	const prefix = "settle: "
	s := err.Error()
	if len(s) > len(prefix) && s[:len(prefix)] == prefix {
		return s[len(prefix):]
	}
	return s
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrInvoiceNotFound)
}

// IsValidation returns true if the operation was rejected by a precondition
// and retrying the same call cannot succeed.
func IsValidation(err error) bool {
	return errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrUnsettledBalance) ||
		errors.Is(err, ErrAlreadySettled) ||
		errors.Is(err, ErrNamespaceTooLong) ||
		errors.Is(err, ErrMemoTooLong) ||
		errors.Is(err, ErrInvalidDerivation) ||
		errors.Is(err, ErrAddressCollision)
}

// IsRetryable returns true if the error is temporary and the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrStoreNotReady)
}
