// Package audithook bridges Settle lifecycle events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not import
// Chronicle directly. Callers inject a RecorderFunc adapter that bridges
// to Chronicle at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	settle "github.com/xraph/settle"
	"github.com/xraph/settle/invoice"
	"github.com/xraph/settle/payment"
	"github.com/xraph/settle/plugin"
	"github.com/xraph/settle/types"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                = (*Extension)(nil)
	_ plugin.OnInvoiceIssued       = (*Extension)(nil)
	_ plugin.OnPaymentApplied      = (*Extension)(nil)
	_ plugin.OnInvoicePaidInFull   = (*Extension)(nil)
	_ plugin.OnSettlementConfirmed = (*Extension)(nil)
	_ plugin.OnReserveReleased     = (*Extension)(nil)
	_ plugin.OnOperationRejected   = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
// This matches chronicle.Emitter but is defined locally so that the
// audit_hook package does not import Chronicle directly.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges Settle lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Invoice lifecycle hooks
// ──────────────────────────────────────────────────

// OnInvoiceIssued implements plugin.OnInvoiceIssued.
func (e *Extension) OnInvoiceIssued(ctx context.Context, inv *invoice.Invoice) error {
	return e.record(ctx, ActionInvoiceIssued, SeverityInfo, OutcomeSuccess,
		ResourceInvoice, inv.ID.String(), CategoryBilling, nil,
		"address", inv.Address.String(),
		"creditor", inv.Creditor.String(),
		"debtor", inv.Debtor.String(),
		"namespace", inv.Namespace,
		"amount", inv.Amount.String(),
		"reserve", inv.Reserve.String(),
	)
}

// OnPaymentApplied implements plugin.OnPaymentApplied. A payment that found
// nothing to apply is recorded as a refund.
func (e *Extension) OnPaymentApplied(ctx context.Context, inv *invoice.Invoice, p *payment.Payment) error {
	action, outcome := ActionPaymentApplied, OutcomeSuccess
	if p.FullRefund() {
		action, outcome = ActionPaymentRefunded, OutcomePartial
	}
	return e.record(ctx, action, SeverityInfo, outcome,
		ResourcePayment, p.ID.String(), CategoryPayment, nil,
		"invoice_id", inv.ID.String(),
		"tendered", p.Tendered.String(),
		"applied", p.Applied.String(),
		"refunded", p.Refunded.String(),
		"balance", p.BalanceAfter.String(),
	)
}

// OnInvoicePaidInFull implements plugin.OnInvoicePaidInFull.
func (e *Extension) OnInvoicePaidInFull(ctx context.Context, inv *invoice.Invoice) error {
	return e.record(ctx, ActionInvoicePaidInFull, SeverityInfo, OutcomeSuccess,
		ResourceInvoice, inv.ID.String(), CategoryPayment, nil,
		"address", inv.Address.String(),
		"amount", inv.Amount.String(),
	)
}

// ──────────────────────────────────────────────────
// Settlement hooks
// ──────────────────────────────────────────────────

// OnSettlementConfirmed implements plugin.OnSettlementConfirmed.
func (e *Extension) OnSettlementConfirmed(ctx context.Context, inv *invoice.Invoice) error {
	return e.record(ctx, ActionSettlementConfirmed, SeverityInfo, OutcomeSuccess,
		ResourceInvoice, inv.ID.String(), CategorySettlement, nil,
		"address", inv.Address.String(),
		"creditor", inv.Creditor.String(),
	)
}

// OnReserveReleased implements plugin.OnReserveReleased.
func (e *Extension) OnReserveReleased(ctx context.Context, inv *invoice.Invoice, amount types.Amount) error {
	return e.record(ctx, ActionReserveReleased, SeverityInfo, OutcomeSuccess,
		ResourceInvoice, inv.ID.String(), CategorySettlement, nil,
		"creditor", inv.Creditor.String(),
		"amount", amount.String(),
	)
}

// OnOperationRejected implements plugin.OnOperationRejected.
func (e *Extension) OnOperationRejected(ctx context.Context, op string, err error) error {
	severity := SeverityWarning
	if settle.IsValidation(err) && settle.CodeOf(err) == settle.CodeUnauthorized {
		severity = SeverityError
	}
	return e.record(ctx, ActionOperationRejected, severity, OutcomeFailure,
		ResourceOperation, op, CategoryAccess, err,
		"op", op,
		"code", int(settle.CodeOf(err)),
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
