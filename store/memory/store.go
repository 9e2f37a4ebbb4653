// Package memory provides an in-process store.Store. It is the reference
// implementation of the store contract and the backend used in tests.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/xraph/settle"
	"github.com/xraph/settle/id"
	"github.com/xraph/settle/invoice"
	"github.com/xraph/settle/payment"
	"github.com/xraph/settle/store"
	"github.com/xraph/settle/types"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store keeps records in maps. Records are copied on the way in and out so
// callers never share memory with the store.
type Store struct {
	mu sync.RWMutex

	// Invoice storage
	invoices map[string]*invoice.Invoice
	// Active (unreclaimed) invoice ID per address
	active map[types.Address]string
	// Every invoice ID per address, oldest first
	byAddress map[types.Address][]string

	// Payment storage, per invoice in insertion order
	payments map[string][]*payment.Payment

	closed bool
}

// New returns an empty store.
func New() *Store {
	return &Store{
		invoices:  make(map[string]*invoice.Invoice),
		active:    make(map[types.Address]string),
		byAddress: make(map[types.Address][]string),
		payments:  make(map[string][]*payment.Payment),
	}
}

// ──────────────────────────────────────────────────
// Invoice Store
// ──────────────────────────────────────────────────

func (s *Store) CreateInvoice(_ context.Context, inv *invoice.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return settle.ErrStoreClosed
	}

	key := inv.ID.String()
	if _, exists := s.invoices[key]; exists {
		return settle.ErrAddressCollision
	}
	if inv.ReclaimedAt == nil {
		if _, taken := s.active[inv.Address]; taken {
			return settle.ErrAddressCollision
		}
		s.active[inv.Address] = key
	}

	s.invoices[key] = inv.Clone()
	s.byAddress[inv.Address] = append(s.byAddress[inv.Address], key)
	return nil
}

func (s *Store) GetInvoice(_ context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if inv, ok := s.invoices[invID.String()]; ok {
		return inv.Clone(), nil
	}
	return nil, settle.ErrInvoiceNotFound
}

func (s *Store) GetInvoiceByAddress(_ context.Context, addr types.Address) (*invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byAddress[addr]
	if len(ids) == 0 {
		return nil, settle.ErrInvoiceNotFound
	}
	return s.invoices[ids[len(ids)-1]].Clone(), nil
}

func (s *Store) ListInvoices(_ context.Context, opts invoice.ListOpts) ([]*invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*invoice.Invoice, 0)
	for _, inv := range s.invoices {
		if opts.Matches(inv) {
			result = append(result, inv.Clone())
		}
	}

	// Newest first, matching the SQL backends.
	slices.SortFunc(result, func(a, b *invoice.Invoice) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return b.ID.Compare(a.ID)
	})

	return page(result, opts.Offset, opts.Limit), nil
}

func (s *Store) UpdateInvoiceBalance(_ context.Context, invID id.InvoiceID, version int64, balance types.Amount, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.invoices[invID.String()]
	if !ok {
		return settle.ErrInvoiceNotFound
	}
	if inv.Version != version || inv.ConfirmedAt != nil {
		return settle.ErrConflict
	}

	inv.Balance = balance
	inv.Version++
	inv.Touch(at)
	return nil
}

func (s *Store) ConfirmInvoice(_ context.Context, invID id.InvoiceID, version int64, confirmedAt time.Time, reclaimedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := invID.String()
	inv, ok := s.invoices[key]
	if !ok {
		return settle.ErrInvoiceNotFound
	}
	if inv.Version != version || inv.ConfirmedAt != nil {
		return settle.ErrConflict
	}

	t := confirmedAt.UTC()
	inv.ConfirmedAt = &t
	if reclaimedAt != nil {
		r := reclaimedAt.UTC()
		inv.ReclaimedAt = &r
		if s.active[inv.Address] == key {
			delete(s.active, inv.Address)
		}
	}
	inv.Version++
	inv.Touch(confirmedAt)
	return nil
}

// ──────────────────────────────────────────────────
// Payment Store
// ──────────────────────────────────────────────────

func (s *Store) CreatePayment(_ context.Context, p *payment.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return settle.ErrStoreClosed
	}

	cp := *p
	key := p.InvoiceID.String()
	s.payments[key] = append(s.payments[key], &cp)
	return nil
}

func (s *Store) ListPayments(_ context.Context, invID id.InvoiceID, opts payment.ListOpts) ([]*payment.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src := s.payments[invID.String()]
	result := make([]*payment.Payment, 0, len(src))
	for _, p := range src {
		cp := *p
		result = append(result, &cp)
	}
	return page(result, opts.Offset, opts.Limit), nil
}

// ──────────────────────────────────────────────────
// Core methods
// ──────────────────────────────────────────────────

func (s *Store) Migrate(_ context.Context) error { return nil }

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return settle.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

func page[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return items[:0]
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
