// Package custody defines the balance-holding collaborators the ledger
// engine moves funds through: a Directory of party balances and an escrow
// Holding that custodies the storage reserve of each invoice.
package custody

import (
	"context"
	"errors"

	"github.com/xraph/settle/types"
)

// Sentinel errors returned by Directory implementations.
var (
	ErrInsufficientFunds = errors.New("custody: insufficient funds")
	ErrInvalidTransfer   = errors.New("custody: invalid transfer")
)

// Directory resolves balances and moves funds between keys. Transfer is
// atomic: either the full amount moves or nothing does.
type Directory interface {
	Balance(ctx context.Context, key types.Key) (types.Amount, error)
	Transfer(ctx context.Context, from, to types.Key, amount types.Amount) error
}

// Holding custodies the funds tied to an invoice record. The holding of an
// invoice is identified by the invoice address.
type Holding interface {
	MinimumReserve(size int) types.Amount
	Deposit(ctx context.Context, from types.Party, holding types.Address, amount types.Amount) error
	Withdraw(ctx context.Context, holding types.Address, to types.Party, amount types.Amount) error
	Balance(ctx context.Context, holding types.Address) (types.Amount, error)
}

// Escrow is a Holding kept as ordinary balances in a Directory.
type Escrow struct {
	dir  Directory
	rent RentSchedule
}

var _ Holding = (*Escrow)(nil)

// NewHolding returns an Escrow over dir that sizes reserves with rent.
func NewHolding(dir Directory, rent RentSchedule) *Escrow {
	return &Escrow{dir: dir, rent: rent}
}

// MinimumReserve returns the reserve required to keep a record of size bytes.
func (e *Escrow) MinimumReserve(size int) types.Amount {
	return e.rent.Reserve(size)
}

// Deposit moves amount from a party into the holding.
func (e *Escrow) Deposit(ctx context.Context, from types.Party, holding types.Address, amount types.Amount) error {
	return e.dir.Transfer(ctx, from, holding, amount)
}

// Withdraw moves amount out of the holding to a party.
func (e *Escrow) Withdraw(ctx context.Context, holding types.Address, to types.Party, amount types.Amount) error {
	return e.dir.Transfer(ctx, holding, to, amount)
}

// Balance returns the funds currently in the holding.
func (e *Escrow) Balance(ctx context.Context, holding types.Address) (types.Amount, error) {
	return e.dir.Balance(ctx, holding)
}
