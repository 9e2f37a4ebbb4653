package invoice

import (
	"context"
	"time"

	"github.com/xraph/settle/id"
	"github.com/xraph/settle/types"
)

// Store persists invoices. Mutations are compare-and-swap on Version: an
// update whose expected version no longer matches fails with a conflict and
// changes nothing.
type Store interface {
	// CreateInvoice inserts a new invoice. It fails with an address
	// collision when an unreclaimed invoice already holds the address.
	CreateInvoice(ctx context.Context, inv *Invoice) error
	GetInvoice(ctx context.Context, invID id.InvoiceID) (*Invoice, error)
	// GetInvoiceByAddress returns the most recently issued invoice at addr.
	GetInvoiceByAddress(ctx context.Context, addr types.Address) (*Invoice, error)
	ListInvoices(ctx context.Context, opts ListOpts) ([]*Invoice, error)
	UpdateInvoiceBalance(ctx context.Context, invID id.InvoiceID, version int64, balance types.Amount, at time.Time) error
	ConfirmInvoice(ctx context.Context, invID id.InvoiceID, version int64, confirmedAt time.Time, reclaimedAt *time.Time) error
}

// ListOpts filters ListInvoices. Zero-valued fields do not filter.
type ListOpts struct {
	Creditor  types.Party
	Debtor    types.Party
	Namespace *string
	State     State
	Limit     int
	Offset    int
}

// Matches reports whether inv passes every filter in opts.
func (o ListOpts) Matches(inv *Invoice) bool {
	if !o.Creditor.IsZero() && inv.Creditor != o.Creditor {
		return false
	}
	if !o.Debtor.IsZero() && inv.Debtor != o.Debtor {
		return false
	}
	if o.Namespace != nil && inv.Namespace != *o.Namespace {
		return false
	}
	if o.State != "" && inv.State() != o.State {
		return false
	}
	return true
}
