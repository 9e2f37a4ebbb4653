// Package plugin provides an extensible plugin system for Settle.
// Plugins can hook into invoice lifecycle events to extend functionality.
package plugin

import (
	"context"

	"github.com/xraph/settle/invoice"
	"github.com/xraph/settle/payment"
	"github.com/xraph/settle/types"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the engine starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine any) error
}

// OnShutdown is called when the engine stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Invoice lifecycle hooks
// ──────────────────────────────────────────────────

// OnInvoiceIssued is called after an invoice is created and its reserve funded.
type OnInvoiceIssued interface {
	Plugin
	OnInvoiceIssued(ctx context.Context, inv *invoice.Invoice) error
}

// OnPaymentApplied is called after every accepted payment, including full refunds.
type OnPaymentApplied interface {
	Plugin
	OnPaymentApplied(ctx context.Context, inv *invoice.Invoice, p *payment.Payment) error
}

// OnInvoicePaidInFull is called when a payment drains the balance to zero.
type OnInvoicePaidInFull interface {
	Plugin
	OnInvoicePaidInFull(ctx context.Context, inv *invoice.Invoice) error
}

// OnSettlementConfirmed is called when the creditor confirms settlement.
type OnSettlementConfirmed interface {
	Plugin
	OnSettlementConfirmed(ctx context.Context, inv *invoice.Invoice) error
}

// OnReserveReleased is called when the storage reserve returns to the creditor.
type OnReserveReleased interface {
	Plugin
	OnReserveReleased(ctx context.Context, inv *invoice.Invoice, amount types.Amount) error
}

// OnOperationRejected is called when an operation fails a precondition.
type OnOperationRejected interface {
	Plugin
	OnOperationRejected(ctx context.Context, op string, err error) error
}

// ──────────────────────────────────────────────────
// Issue validators
// ──────────────────────────────────────────────────

// IssueValidator can veto an invoice before it is created. inv is fully
// populated except for persistence.
type IssueValidator interface {
	Plugin
	ValidateIssue(ctx context.Context, inv *invoice.Invoice) error
}
