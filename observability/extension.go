// Package observability provides a metrics extension for Settle that records
// lifecycle event counts via a MetricFactory such as forge's app.Metrics().
package observability

import (
	"context"

	settle "github.com/xraph/settle"
	"github.com/xraph/settle/invoice"
	"github.com/xraph/settle/payment"
	"github.com/xraph/settle/plugin"
	"github.com/xraph/settle/types"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                = (*MetricsExtension)(nil)
	_ plugin.OnInit                = (*MetricsExtension)(nil)
	_ plugin.OnInvoiceIssued       = (*MetricsExtension)(nil)
	_ plugin.OnPaymentApplied      = (*MetricsExtension)(nil)
	_ plugin.OnInvoicePaidInFull   = (*MetricsExtension)(nil)
	_ plugin.OnSettlementConfirmed = (*MetricsExtension)(nil)
	_ plugin.OnReserveReleased     = (*MetricsExtension)(nil)
	_ plugin.OnOperationRejected   = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as a Settle plugin to automatically track settlement metrics.
type MetricsExtension struct {
	factory MetricFactory

	// Invoice metrics
	InvoiceIssued     Counter
	InvoicePaidInFull Counter
	InvoiceAmount     Histogram
	InvoiceReserve    Histogram

	// Payment metrics
	PaymentApplied  Counter
	PaymentRefunded Counter
	AppliedAmount   Histogram
	RefundedAmount  Histogram

	// Settlement metrics
	SettlementConfirmed Counter
	ReserveReleased     Counter
	ReleasedAmount      Histogram

	// Rejections, one counter per error code
	Rejected map[settle.Code]Counter
	// Rejections without a code (store or custody failures)
	OtherErrors Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	m := &MetricsExtension{
		factory: factory,

		InvoiceIssued:     factory.Counter("settle.invoice.issued"),
		InvoicePaidInFull: factory.Counter("settle.invoice.paid_in_full"),
		InvoiceAmount:     factory.Histogram("settle.invoice.amount"),
		InvoiceReserve:    factory.Histogram("settle.invoice.reserve"),

		PaymentApplied:  factory.Counter("settle.payment.applied"),
		PaymentRefunded: factory.Counter("settle.payment.refunded"),
		AppliedAmount:   factory.Histogram("settle.payment.applied_amount"),
		RefundedAmount:  factory.Histogram("settle.payment.refunded_amount"),

		SettlementConfirmed: factory.Counter("settle.settlement.confirmed"),
		ReserveReleased:     factory.Counter("settle.reserve.released"),
		ReleasedAmount:      factory.Histogram("settle.reserve.released_amount"),

		Rejected:    make(map[settle.Code]Counter),
		OtherErrors: factory.Counter("settle.rejected.other"),
	}

	for code := settle.CodeInsufficientFunds; code <= settle.CodeConflict; code++ {
		m.Rejected[code] = factory.Counter("settle.rejected." + code.String())
	}

	return m
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ any) error {
	return nil
}

// ──────────────────────────────────────────────────
// Invoice lifecycle hooks
// ──────────────────────────────────────────────────

// OnInvoiceIssued implements plugin.OnInvoiceIssued.
func (m *MetricsExtension) OnInvoiceIssued(_ context.Context, inv *invoice.Invoice) error {
	m.InvoiceIssued.Inc()
	m.InvoiceAmount.Observe(major(inv.Amount))
	m.InvoiceReserve.Observe(major(inv.Reserve))
	return nil
}

// OnPaymentApplied implements plugin.OnPaymentApplied.
func (m *MetricsExtension) OnPaymentApplied(_ context.Context, _ *invoice.Invoice, p *payment.Payment) error {
	if p.Applied > 0 {
		m.PaymentApplied.Inc()
		m.AppliedAmount.Observe(major(p.Applied))
	}
	if p.Refunded > 0 {
		m.PaymentRefunded.Inc()
		m.RefundedAmount.Observe(major(p.Refunded))
	}
	return nil
}

// OnInvoicePaidInFull implements plugin.OnInvoicePaidInFull.
func (m *MetricsExtension) OnInvoicePaidInFull(_ context.Context, _ *invoice.Invoice) error {
	m.InvoicePaidInFull.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Settlement hooks
// ──────────────────────────────────────────────────

// OnSettlementConfirmed implements plugin.OnSettlementConfirmed.
func (m *MetricsExtension) OnSettlementConfirmed(_ context.Context, _ *invoice.Invoice) error {
	m.SettlementConfirmed.Inc()
	return nil
}

// OnReserveReleased implements plugin.OnReserveReleased.
func (m *MetricsExtension) OnReserveReleased(_ context.Context, _ *invoice.Invoice, amount types.Amount) error {
	m.ReserveReleased.Inc()
	m.ReleasedAmount.Observe(major(amount))
	return nil
}

// OnOperationRejected implements plugin.OnOperationRejected.
func (m *MetricsExtension) OnOperationRejected(_ context.Context, _ string, err error) error {
	if c, ok := m.Rejected[settle.CodeOf(err)]; ok {
		c.Inc()
		return nil
	}
	m.OtherErrors.Inc()
	return nil
}

func major(a types.Amount) float64 {
	return a.Decimal().InexactFloat64()
}
