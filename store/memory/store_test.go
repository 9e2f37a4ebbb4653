package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/xraph/settle"
	"github.com/xraph/settle/store"
	"github.com/xraph/settle/store/storetest"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(*testing.T) store.Store { return New() })
}

func TestReturnedInvoicesAreCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	inv := storetest.NewInvoice("copies", 100)
	if err := s.CreateInvoice(ctx, inv); err != nil {
		t.Fatal(err)
	}

	inv.Balance = 1
	got, err := s.GetInvoice(ctx, inv.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Balance != 100 {
		t.Error("store shares memory with the caller's invoice")
	}

	got.Balance = 2
	again, _ := s.GetInvoice(ctx, inv.ID)
	if again.Balance != 100 {
		t.Error("store shares memory with returned invoices")
	}
}

func TestClosedStore(t *testing.T) {
	s := New()
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Ping(context.Background()); !errors.Is(err, settle.ErrStoreClosed) {
		t.Errorf("Ping after Close: got %v", err)
	}
	err := s.CreateInvoice(context.Background(), storetest.NewInvoice("closed", 1))
	if !errors.Is(err, settle.ErrStoreClosed) {
		t.Errorf("CreateInvoice after Close: got %v", err)
	}
}
