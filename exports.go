package settle

import (
	"github.com/xraph/settle/invoice"
	"github.com/xraph/settle/payment"
	"github.com/xraph/settle/types"
)

// Re-export common types for convenience so users don't have to import the
// types, invoice and payment packages for everyday use.

// Amount is re-exported from types package.
type Amount = types.Amount

// Party is re-exported from types package.
type Party = types.Party

// Address is re-exported from types package.
type Address = types.Address

// Invoice is re-exported from invoice package.
type Invoice = invoice.Invoice

// State is re-exported from invoice package.
type State = invoice.State

// Payment is re-exported from payment package.
type Payment = payment.Payment

// Invoice states.
const (
	StateOpen        = invoice.StateOpen
	StatePaidPending = invoice.StatePaidPending
	StateSettled     = invoice.StateSettled
)

// Re-export Amount constructors
var (
	Units           = types.Units
	ParseAmount     = types.ParseAmount
	MustParseAmount = types.MustParseAmount
	ParseKey        = types.ParseKey
	NewKey          = types.NewKey
)
