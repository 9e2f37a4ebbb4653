// Package memory provides an in-process custody.Directory. Balances live in
// a map guarded by a mutex, so every transfer is atomic.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/xraph/settle/custody"
	"github.com/xraph/settle/types"
)

// Directory is an in-memory balance directory.
type Directory struct {
	mu       sync.RWMutex
	balances map[types.Key]types.Amount
}

var _ custody.Directory = (*Directory)(nil)

// New returns an empty directory.
func New() *Directory {
	return &Directory{
		balances: make(map[types.Key]types.Amount),
	}
}

// NewAccount creates a random key funded with amount.
func (d *Directory) NewAccount(amount types.Amount) types.Key {
	k := types.NewKey()
	d.mu.Lock()
	d.balances[k] = amount
	d.mu.Unlock()
	return k
}

// Credit adds amount to key out of thin air. It stands in for funding
// accounts outside the ledger.
func (d *Directory) Credit(_ context.Context, key types.Key, amount types.Amount) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	next, err := d.balances[key].Add(amount)
	if err != nil {
		return fmt.Errorf("custody/memory: credit %s: %w", key.Short(), err)
	}
	d.balances[key] = next
	return nil
}

// Balance returns the balance of key. Unknown keys hold zero.
func (d *Directory) Balance(_ context.Context, key types.Key) (types.Amount, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.balances[key], nil
}

// Transfer moves amount from one key to another.
func (d *Directory) Transfer(_ context.Context, from, to types.Key, amount types.Amount) error {
	if from == to {
		return fmt.Errorf("%w: source and destination are the same", custody.ErrInvalidTransfer)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	src := d.balances[from]
	if src < amount {
		return fmt.Errorf("%w: %s holds %s, needs %s", custody.ErrInsufficientFunds, from.Short(), src, amount)
	}
	dst, err := d.balances[to].Add(amount)
	if err != nil {
		return fmt.Errorf("%w: %v", custody.ErrInvalidTransfer, err)
	}

	d.balances[from] = src - amount
	d.balances[to] = dst
	return nil
}
