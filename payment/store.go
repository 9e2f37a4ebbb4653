package payment

import (
	"context"

	"github.com/xraph/settle/id"
)

// Store persists payment receipts. Receipts are append-only.
type Store interface {
	CreatePayment(ctx context.Context, p *Payment) error
	// ListPayments returns receipts for an invoice, oldest first.
	ListPayments(ctx context.Context, invID id.InvoiceID, opts ListOpts) ([]*Payment, error)
}

// ListOpts pages ListPayments.
type ListOpts struct {
	Limit  int
	Offset int
}
