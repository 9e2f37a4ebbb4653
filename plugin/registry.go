package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/settle/invoice"
	"github.com/xraph/settle/payment"
	"github.com/xraph/settle/types"
)

// DefaultTimeout bounds every plugin call.
const DefaultTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit                []OnInit
	onShutdown            []OnShutdown
	onInvoiceIssued       []OnInvoiceIssued
	onPaymentApplied      []OnPaymentApplied
	onInvoicePaidInFull   []OnInvoicePaidInFull
	onSettlementConfirmed []OnSettlementConfirmed
	onReserveReleased     []OnReserveReleased
	onOperationRejected   []OnOperationRejected
	issueValidators       []IssueValidator
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-call plugin timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnInvoiceIssued); ok {
		r.onInvoiceIssued = append(r.onInvoiceIssued, v)
	}
	if v, ok := p.(OnPaymentApplied); ok {
		r.onPaymentApplied = append(r.onPaymentApplied, v)
	}
	if v, ok := p.(OnInvoicePaidInFull); ok {
		r.onInvoicePaidInFull = append(r.onInvoicePaidInFull, v)
	}
	if v, ok := p.(OnSettlementConfirmed); ok {
		r.onSettlementConfirmed = append(r.onSettlementConfirmed, v)
	}
	if v, ok := p.(OnReserveReleased); ok {
		r.onReserveReleased = append(r.onReserveReleased, v)
	}
	if v, ok := p.(OnOperationRejected); ok {
		r.onOperationRejected = append(r.onOperationRejected, v)
	}
	if v, ok := p.(IssueValidator); ok {
		r.issueValidators = append(r.issueValidators, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", implementedInterfaces(p),
	)

	return nil
}

var hookTypes = []struct {
	name string
	typ  reflect.Type
}{
	{"OnInit", reflect.TypeOf((*OnInit)(nil)).Elem()},
	{"OnShutdown", reflect.TypeOf((*OnShutdown)(nil)).Elem()},
	{"OnInvoiceIssued", reflect.TypeOf((*OnInvoiceIssued)(nil)).Elem()},
	{"OnPaymentApplied", reflect.TypeOf((*OnPaymentApplied)(nil)).Elem()},
	{"OnInvoicePaidInFull", reflect.TypeOf((*OnInvoicePaidInFull)(nil)).Elem()},
	{"OnSettlementConfirmed", reflect.TypeOf((*OnSettlementConfirmed)(nil)).Elem()},
	{"OnReserveReleased", reflect.TypeOf((*OnReserveReleased)(nil)).Elem()},
	{"OnOperationRejected", reflect.TypeOf((*OnOperationRejected)(nil)).Elem()},
	{"IssueValidator", reflect.TypeOf((*IssueValidator)(nil)).Elem()},
}

// implementedInterfaces returns the hook names p implements.
func implementedInterfaces(p Plugin) []string {
	var names []string
	v := reflect.TypeOf(p)
	for _, h := range hookTypes {
		if v.Implements(h.typ) {
			names = append(names, h.name)
		}
	}
	return names
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// snapshot copies a cached hook slice under the read lock.
func snapshot[T any](r *Registry, hooks *[]T) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]T, len(*hooks))
	copy(out, *hooks)
	return out
}

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine any) {
	for _, p := range snapshot(r, &r.onInit) {
		r.dispatch(ctx, p.Name(), "OnInit", func() error {
			return p.OnInit(ctx, engine)
		})
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, p := range snapshot(r, &r.onShutdown) {
		r.dispatch(ctx, p.Name(), "OnShutdown", func() error {
			return p.OnShutdown(ctx)
		})
	}
}

// EmitInvoiceIssued emits an invoice issued event.
func (r *Registry) EmitInvoiceIssued(ctx context.Context, inv *invoice.Invoice) {
	for _, p := range snapshot(r, &r.onInvoiceIssued) {
		r.dispatch(ctx, p.Name(), "OnInvoiceIssued", func() error {
			return p.OnInvoiceIssued(ctx, inv)
		})
	}
}

// EmitPaymentApplied emits a payment applied event.
func (r *Registry) EmitPaymentApplied(ctx context.Context, inv *invoice.Invoice, pay *payment.Payment) {
	for _, p := range snapshot(r, &r.onPaymentApplied) {
		r.dispatch(ctx, p.Name(), "OnPaymentApplied", func() error {
			return p.OnPaymentApplied(ctx, inv, pay)
		})
	}
}

// EmitInvoicePaidInFull emits a paid in full event.
func (r *Registry) EmitInvoicePaidInFull(ctx context.Context, inv *invoice.Invoice) {
	for _, p := range snapshot(r, &r.onInvoicePaidInFull) {
		r.dispatch(ctx, p.Name(), "OnInvoicePaidInFull", func() error {
			return p.OnInvoicePaidInFull(ctx, inv)
		})
	}
}

// EmitSettlementConfirmed emits a settlement confirmed event.
func (r *Registry) EmitSettlementConfirmed(ctx context.Context, inv *invoice.Invoice) {
	for _, p := range snapshot(r, &r.onSettlementConfirmed) {
		r.dispatch(ctx, p.Name(), "OnSettlementConfirmed", func() error {
			return p.OnSettlementConfirmed(ctx, inv)
		})
	}
}

// EmitReserveReleased emits a reserve released event.
func (r *Registry) EmitReserveReleased(ctx context.Context, inv *invoice.Invoice, amount types.Amount) {
	for _, p := range snapshot(r, &r.onReserveReleased) {
		r.dispatch(ctx, p.Name(), "OnReserveReleased", func() error {
			return p.OnReserveReleased(ctx, inv, amount)
		})
	}
}

// EmitOperationRejected emits an operation rejected event.
func (r *Registry) EmitOperationRejected(ctx context.Context, op string, opErr error) {
	for _, p := range snapshot(r, &r.onOperationRejected) {
		r.dispatch(ctx, p.Name(), "OnOperationRejected", func() error {
			return p.OnOperationRejected(ctx, op, opErr)
		})
	}
}

// ValidateIssue runs every IssueValidator and returns the first rejection.
// A validator that times out rejects.
func (r *Registry) ValidateIssue(ctx context.Context, inv *invoice.Invoice) error {
	for _, v := range snapshot(r, &r.issueValidators) {
		if err := r.callWithTimeout(ctx, v.Name(), func() error {
			return v.ValidateIssue(ctx, inv)
		}); err != nil {
			return fmt.Errorf("plugin %s: %w", v.Name(), err)
		}
	}
	return nil
}

func (r *Registry) dispatch(ctx context.Context, name, hook string, fn func() error) {
	if err := r.callWithTimeout(ctx, name, fn); err != nil {
		r.logger.Warn("plugin "+hook+" failed",
			"plugin", name,
			"error", err,
		)
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block a settlement operation.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
