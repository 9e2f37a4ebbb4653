// Package storetest is a conformance suite for store.Store implementations.
// Each backend's tests call Run with a constructor for a fresh, migrated
// store.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/settle"
	"github.com/xraph/settle/id"
	"github.com/xraph/settle/invoice"
	"github.com/xraph/settle/payment"
	"github.com/xraph/settle/store"
	"github.com/xraph/settle/types"
)

// Run executes the suite. newStore must return an empty, migrated store.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"CreateAndGet", testCreateAndGet},
		{"AddressCollision", testAddressCollision},
		{"ReclaimFreesAddress", testReclaimFreesAddress},
		{"UpdateBalanceCAS", testUpdateBalanceCAS},
		{"ConfirmCAS", testConfirmCAS},
		{"ListInvoices", testListInvoices},
		{"Payments", testPayments},
		{"NotFound", testNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

// NewInvoice returns an unpersisted open invoice for a fresh triple.
func NewInvoice(namespace string, amount types.Amount) *invoice.Invoice {
	creditor, debtor := types.NewKey(), types.NewKey()
	addr, bump, err := invoice.DeriveAddress(creditor, debtor, namespace)
	if err != nil {
		panic(err)
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	return &invoice.Invoice{
		Entity:    types.NewEntity(now),
		ID:        id.NewInvoiceID(),
		Address:   addr,
		Bump:      bump,
		Creditor:  creditor,
		Debtor:    debtor,
		Namespace: namespace,
		Memo:      "conformance",
		Amount:    amount,
		Balance:   amount,
		Reserve:   1_000,
		IssuedAt:  now,
		Version:   1,
	}
}

func sibling(inv *invoice.Invoice) *invoice.Invoice {
	cp := inv.Clone()
	cp.ID = id.NewInvoiceID()
	cp.ConfirmedAt = nil
	cp.ReclaimedAt = nil
	cp.Version = 1
	return cp
}

func testCreateAndGet(t *testing.T, s store.Store) {
	ctx := context.Background()
	inv := NewInvoice("create", types.MustParseAmount("1.2"))

	if err := s.CreateInvoice(ctx, inv); err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}

	got, err := s.GetInvoice(ctx, inv.ID)
	if err != nil {
		t.Fatalf("GetInvoice: %v", err)
	}
	assertSame(t, got, inv)

	byAddr, err := s.GetInvoiceByAddress(ctx, inv.Address)
	if err != nil {
		t.Fatalf("GetInvoiceByAddress: %v", err)
	}
	assertSame(t, byAddr, inv)
}

func testAddressCollision(t *testing.T, s store.Store) {
	ctx := context.Background()
	inv := NewInvoice("collide", 100)

	if err := s.CreateInvoice(ctx, inv); err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	err := s.CreateInvoice(ctx, sibling(inv))
	if !errors.Is(err, settle.ErrAddressCollision) {
		t.Fatalf("second CreateInvoice: got %v, want ErrAddressCollision", err)
	}
}

func testReclaimFreesAddress(t *testing.T, s store.Store) {
	ctx := context.Background()
	inv := NewInvoice("reclaim", 100)
	if err := s.CreateInvoice(ctx, inv); err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	if err := s.UpdateInvoiceBalance(ctx, inv.ID, 1, 0, time.Now()); err != nil {
		t.Fatalf("UpdateInvoiceBalance: %v", err)
	}
	now := time.Now()
	if err := s.ConfirmInvoice(ctx, inv.ID, 2, now, &now); err != nil {
		t.Fatalf("ConfirmInvoice: %v", err)
	}

	next := sibling(inv)
	next.CreatedAt = next.CreatedAt.Add(time.Second)
	if err := s.CreateInvoice(ctx, next); err != nil {
		t.Fatalf("CreateInvoice after reclaim: %v", err)
	}

	got, err := s.GetInvoiceByAddress(ctx, inv.Address)
	if err != nil {
		t.Fatalf("GetInvoiceByAddress: %v", err)
	}
	if got.ID.String() != next.ID.String() {
		t.Errorf("address resolves to %s, want newest %s", got.ID, next.ID)
	}

	old, err := s.GetInvoice(ctx, inv.ID)
	if err != nil {
		t.Fatalf("GetInvoice(reclaimed): %v", err)
	}
	if !old.IsReclaimed() || !old.IsSettled() {
		t.Error("reclaimed invoice lost its confirmation")
	}
}

func testUpdateBalanceCAS(t *testing.T, s store.Store) {
	ctx := context.Background()
	inv := NewInvoice("cas", 100)
	if err := s.CreateInvoice(ctx, inv); err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}

	if err := s.UpdateInvoiceBalance(ctx, inv.ID, 1, 60, time.Now()); err != nil {
		t.Fatalf("UpdateInvoiceBalance: %v", err)
	}
	err := s.UpdateInvoiceBalance(ctx, inv.ID, 1, 10, time.Now())
	if !errors.Is(err, settle.ErrConflict) {
		t.Fatalf("stale version: got %v, want ErrConflict", err)
	}

	got, err := s.GetInvoice(ctx, inv.ID)
	if err != nil {
		t.Fatalf("GetInvoice: %v", err)
	}
	if got.Balance != 60 || got.Version != 2 {
		t.Errorf("balance=%d version=%d, want 60 and 2", got.Balance, got.Version)
	}
}

func testConfirmCAS(t *testing.T, s store.Store) {
	ctx := context.Background()
	inv := NewInvoice("confirm", 100)
	if err := s.CreateInvoice(ctx, inv); err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}

	now := time.Now()
	if err := s.ConfirmInvoice(ctx, inv.ID, 7, now, nil); !errors.Is(err, settle.ErrConflict) {
		t.Fatalf("stale confirm: got %v, want ErrConflict", err)
	}
	if err := s.ConfirmInvoice(ctx, inv.ID, 1, now, nil); err != nil {
		t.Fatalf("ConfirmInvoice: %v", err)
	}
	if err := s.ConfirmInvoice(ctx, inv.ID, 2, now, nil); !errors.Is(err, settle.ErrConflict) {
		t.Fatalf("double confirm: got %v, want ErrConflict", err)
	}
	if err := s.UpdateInvoiceBalance(ctx, inv.ID, 2, 0, now); !errors.Is(err, settle.ErrConflict) {
		t.Fatalf("update after confirm: got %v, want ErrConflict", err)
	}

	got, err := s.GetInvoice(ctx, inv.ID)
	if err != nil {
		t.Fatalf("GetInvoice: %v", err)
	}
	if got.ConfirmedAt == nil || got.ReclaimedAt != nil {
		t.Errorf("confirmed_at=%v reclaimed_at=%v", got.ConfirmedAt, got.ReclaimedAt)
	}
}

func testListInvoices(t *testing.T, s store.Store) {
	ctx := context.Background()

	open := NewInvoice("list-a", 100)
	drained := NewInvoice("list-b", 100)
	drained.Creditor = open.Creditor
	drained.Address, drained.Bump, _ = invoice.DeriveAddress(drained.Creditor, drained.Debtor, drained.Namespace)
	other := NewInvoice("list-a", 100)

	for _, inv := range []*invoice.Invoice{open, drained, other} {
		if err := s.CreateInvoice(ctx, inv); err != nil {
			t.Fatalf("CreateInvoice: %v", err)
		}
	}
	if err := s.UpdateInvoiceBalance(ctx, drained.ID, 1, 0, time.Now()); err != nil {
		t.Fatalf("UpdateInvoiceBalance: %v", err)
	}

	ns := "list-a"
	tests := []struct {
		name string
		opts invoice.ListOpts
		want int
	}{
		{"by creditor", invoice.ListOpts{Creditor: open.Creditor}, 2},
		{"by debtor", invoice.ListOpts{Debtor: other.Debtor}, 1},
		{"by namespace", invoice.ListOpts{Namespace: &ns}, 2},
		{"by state", invoice.ListOpts{Creditor: open.Creditor, State: invoice.StatePaidPending}, 1},
		{"limit", invoice.ListOpts{Creditor: open.Creditor, Limit: 1}, 1},
		{"offset past end", invoice.ListOpts{Creditor: open.Creditor, Offset: 5}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListInvoices(ctx, tt.opts)
			if err != nil {
				t.Fatalf("ListInvoices: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d invoices, want %d", len(got), tt.want)
			}
		})
	}
}

func testPayments(t *testing.T, s store.Store) {
	ctx := context.Background()
	inv := NewInvoice("payments", 100)
	if err := s.CreateInvoice(ctx, inv); err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}

	base := time.Now().UTC().Truncate(time.Microsecond)
	for i, applied := range []types.Amount{30, 70, 0} {
		p := &payment.Payment{
			ID:        id.NewPaymentID(),
			InvoiceID: inv.ID,
			Address:   inv.Address,
			Debtor:    inv.Debtor,
			Creditor:  inv.Creditor,
			Tendered:  applied + 5,
			Applied:   applied,
			Refunded:  5,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := s.CreatePayment(ctx, p); err != nil {
			t.Fatalf("CreatePayment: %v", err)
		}
	}

	got, err := s.ListPayments(ctx, inv.ID, payment.ListOpts{})
	if err != nil {
		t.Fatalf("ListPayments: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d payments, want 3", len(got))
	}
	if got[0].Applied != 30 || got[1].Applied != 70 || got[2].Applied != 0 {
		t.Errorf("payments out of order: %d %d %d", got[0].Applied, got[1].Applied, got[2].Applied)
	}

	paged, err := s.ListPayments(ctx, inv.ID, payment.ListOpts{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("ListPayments paged: %v", err)
	}
	if len(paged) != 1 || paged[0].Applied != 70 {
		t.Errorf("paged payments: %+v", paged)
	}
}

func testNotFound(t *testing.T, s store.Store) {
	ctx := context.Background()

	if _, err := s.GetInvoice(ctx, id.NewInvoiceID()); !errors.Is(err, settle.ErrInvoiceNotFound) {
		t.Errorf("GetInvoice: got %v", err)
	}
	if _, err := s.GetInvoiceByAddress(ctx, types.NewKey()); !errors.Is(err, settle.ErrInvoiceNotFound) {
		t.Errorf("GetInvoiceByAddress: got %v", err)
	}
	if err := s.UpdateInvoiceBalance(ctx, id.NewInvoiceID(), 1, 0, time.Now()); err == nil {
		t.Error("UpdateInvoiceBalance on missing invoice succeeded")
	}
}

func assertSame(t *testing.T, got, want *invoice.Invoice) {
	t.Helper()

	if got.ID.String() != want.ID.String() {
		t.Errorf("id: got %s, want %s", got.ID, want.ID)
	}
	if got.Address != want.Address || got.Bump != want.Bump {
		t.Error("address or bump mismatch")
	}
	if got.Creditor != want.Creditor || got.Debtor != want.Debtor {
		t.Error("party mismatch")
	}
	if got.Namespace != want.Namespace || got.Memo != want.Memo {
		t.Errorf("namespace/memo: got %q/%q", got.Namespace, got.Memo)
	}
	if got.Amount != want.Amount || got.Balance != want.Balance || got.Reserve != want.Reserve {
		t.Errorf("amounts: got %d/%d/%d", got.Amount, got.Balance, got.Reserve)
	}
	if got.Version != want.Version {
		t.Errorf("version: got %d, want %d", got.Version, want.Version)
	}
	if !got.IssuedAt.Equal(want.IssuedAt) {
		t.Errorf("issued_at: got %v, want %v", got.IssuedAt, want.IssuedAt)
	}
	if got.IsSettled() != want.IsSettled() {
		t.Error("settled mismatch")
	}
}
