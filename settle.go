package settle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/settle/custody"
	"github.com/xraph/settle/id"
	"github.com/xraph/settle/invoice"
	"github.com/xraph/settle/payment"
	"github.com/xraph/settle/plugin"
	"github.com/xraph/settle/store"
	"github.com/xraph/settle/types"
)

// Limits applied when no option overrides them.
const (
	DefaultMaxNamespaceLen = 32
	DefaultMaxMemoLen      = 256
)

// ReservePolicy decides what happens to an invoice's storage reserve at
// confirmation.
type ReservePolicy string

const (
	// ReserveRetain leaves the reserve in the holding. The address stays
	// occupied by the settled invoice.
	ReserveRetain ReservePolicy = "retain"
	// ReserveRelease returns the reserve to the creditor in the same
	// confirmation and frees the address for a new invoice.
	ReserveRelease ReservePolicy = "release"
)

// Engine is the invoice settlement ledger. It owns every invoice record and
// enforces the balance and authorization rules; funds move through a
// custody.Directory and a custody.Holding.
type Engine struct {
	store   store.Store
	dir     custody.Directory
	holding custody.Holding
	plugins *plugin.Registry
	logger  *slog.Logger
	now     func() time.Time

	// Configuration
	rent            custody.RentSchedule
	maxNamespaceLen int
	maxMemoLen      int
	reservePolicy   ReservePolicy
	skipMigrate     bool
}

// New creates an Engine over a store and a balance directory.
func New(s store.Store, dir custody.Directory, opts ...Option) *Engine {
	e := &Engine{
		store:           s,
		dir:             dir,
		plugins:         plugin.NewRegistry(),
		logger:          slog.Default(),
		now:             time.Now,
		rent:            custody.DefaultRent(),
		maxNamespaceLen: DefaultMaxNamespaceLen,
		maxMemoLen:      DefaultMaxMemoLen,
		reservePolicy:   ReserveRetain,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.holding == nil {
		e.holding = custody.NewHolding(dir, e.rent)
	}

	return e
}

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithPluginTimeout bounds each plugin call.
func WithPluginTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.plugins.WithTimeout(d)
	}
}

// WithMaxNamespaceLen sets the longest accepted namespace in bytes.
func WithMaxNamespaceLen(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxNamespaceLen = n
		}
	}
}

// WithMaxMemoLen sets the longest accepted memo in bytes.
func WithMaxMemoLen(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.maxMemoLen = n
		}
	}
}

// WithReservePolicy sets the reserve policy applied at confirmation.
func WithReservePolicy(p ReservePolicy) Option {
	return func(e *Engine) {
		if p == ReserveRetain || p == ReserveRelease {
			e.reservePolicy = p
		}
	}
}

// WithRentSchedule sets the schedule used to size storage reserves. It is
// ignored when WithHolding supplies a holding.
func WithRentSchedule(r custody.RentSchedule) Option {
	return func(e *Engine) {
		e.rent = r
	}
}

// WithHolding replaces the default escrow holding.
func WithHolding(h custody.Holding) Option {
	return func(e *Engine) {
		e.holding = h
	}
}

// WithClock sets the time source for issue and confirmation timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithSkipMigrate makes Start leave the schema alone.
func WithSkipMigrate() Option {
	return func(e *Engine) {
		e.skipMigrate = true
	}
}

// Start migrates the store and initializes plugins.
func (e *Engine) Start(ctx context.Context) error {
	if !e.skipMigrate {
		if err := e.store.Migrate(ctx); err != nil {
			return fmt.Errorf("%w: %w", ErrMigrationFailed, err)
		}
	}

	e.plugins.EmitInit(ctx, e)

	e.logger.Info("settle engine started",
		"reserve_policy", e.reservePolicy,
		"max_namespace_len", e.maxNamespaceLen,
		"plugins", e.plugins.Count(),
	)

	return nil
}

// Stop shuts down plugins and closes the store.
func (e *Engine) Stop() error {
	ctx := context.Background()
	e.plugins.EmitShutdown(ctx)

	return e.store.Close()
}

// Store returns the underlying store.
func (e *Engine) Store() store.Store { return e.store }

// Plugins returns the plugin registry.
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// ──────────────────────────────────────────────────
// Issue
// ──────────────────────────────────────────────────

// IssueRequest describes a new invoice. Bump must be the canonical nonce for
// (Creditor, Debtor, Namespace); see DeriveAddress.
type IssueRequest struct {
	Creditor  types.Party
	Debtor    types.Party
	Amount    types.Amount
	Namespace string
	Memo      string
	Bump      uint8
}

// Issue creates an invoice at the address derived from the request and
// funds its holding with the storage reserve, drawn from the creditor.
// The signer must be the creditor, and the debtor must be another party.
func (e *Engine) Issue(ctx context.Context, signer types.Party, req IssueRequest) (*invoice.Invoice, error) {
	const op = "issue"

	switch {
	case signer != req.Creditor:
		return nil, e.reject(ctx, op, signer, ErrUnauthorized)
	case req.Debtor == req.Creditor:
		// A self-billed invoice could never be paid.
		return nil, e.reject(ctx, op, signer, ErrUnauthorized)
	case req.Amount == 0 || !req.Amount.Storable():
		return nil, e.reject(ctx, op, signer, ErrInvalidAmount)
	case len(req.Namespace) > e.maxNamespaceLen:
		return nil, e.reject(ctx, op, signer, ErrNamespaceTooLong)
	case len(req.Memo) > e.maxMemoLen:
		return nil, e.reject(ctx, op, signer, ErrMemoTooLong)
	}

	addr, ok := invoice.VerifyBump(req.Creditor, req.Debtor, req.Namespace, req.Bump)
	if !ok {
		return nil, e.reject(ctx, op, signer, ErrInvalidDerivation)
	}

	existing, err := e.store.GetInvoiceByAddress(ctx, addr)
	switch {
	case err == nil && !existing.IsReclaimed():
		return nil, e.reject(ctx, op, addr, ErrAddressCollision)
	case err != nil && !IsNotFound(err):
		return nil, err
	}

	now := e.now().UTC()
	inv := &invoice.Invoice{
		Entity:    types.NewEntity(now),
		ID:        id.NewInvoiceID(),
		Address:   addr,
		Bump:      req.Bump,
		Creditor:  req.Creditor,
		Debtor:    req.Debtor,
		Namespace: req.Namespace,
		Memo:      req.Memo,
		Amount:    req.Amount,
		Balance:   req.Amount,
		IssuedAt:  now,
		Version:   1,
	}
	inv.Reserve = e.holding.MinimumReserve(inv.Size())

	if err := e.plugins.ValidateIssue(ctx, inv); err != nil {
		return nil, e.reject(ctx, op, signer, err)
	}

	if err := e.holding.Deposit(ctx, req.Creditor, addr, inv.Reserve); err != nil {
		return nil, e.custodyError(ctx, op, signer, err)
	}

	if err := e.store.CreateInvoice(ctx, inv); err != nil {
		e.compensate(op, inv, func() error {
			return e.holding.Withdraw(ctx, addr, req.Creditor, inv.Reserve)
		})
		if errors.Is(err, ErrAddressCollision) {
			return nil, e.reject(ctx, op, addr, ErrAddressCollision)
		}
		return nil, err
	}

	e.logger.Info("invoice issued",
		"invoice_id", inv.ID.String(),
		"address", addr.Short(),
		"amount", inv.Amount.String(),
		"reserve", inv.Reserve.String(),
		"namespace", inv.Namespace,
	)

	e.plugins.EmitInvoiceIssued(ctx, inv)
	return inv, nil
}

// ──────────────────────────────────────────────────
// Pay
// ──────────────────────────────────────────────────

// Pay applies up to amount against the invoice at addr. Only the
// outstanding balance is ever charged; the excess is refunded in the same
// call and recorded on the receipt. Funds move from debtor to creditor
// directly and the holding is not touched. The signer must be the debtor.
func (e *Engine) Pay(ctx context.Context, signer types.Party, addr types.Address, amount types.Amount) (*payment.Payment, error) {
	const op = "pay"

	inv, err := e.store.GetInvoiceByAddress(ctx, addr)
	if err != nil {
		return nil, e.lookupError(ctx, op, addr, err)
	}

	switch {
	case signer != inv.Debtor:
		return nil, e.reject(ctx, op, signer, ErrUnauthorized)
	case amount == 0:
		return nil, e.reject(ctx, op, signer, ErrInvalidAmount)
	case inv.IsSettled():
		return nil, e.reject(ctx, op, addr, ErrAlreadySettled)
	}

	before := inv.Balance
	applied := amount.Min(before)
	after := before - applied

	from := inv.State()
	to := invoice.StateOpen
	if after == 0 {
		to = invoice.StatePaidPending
	}
	if !invoice.CanTransition(from, to) {
		return nil, e.reject(ctx, op, addr, ErrAlreadySettled)
	}

	now := e.now().UTC()
	if applied > 0 {
		if err := e.dir.Transfer(ctx, inv.Debtor, inv.Creditor, applied); err != nil {
			return nil, e.custodyError(ctx, op, signer, err)
		}

		if err := e.store.UpdateInvoiceBalance(ctx, inv.ID, inv.Version, after, now); err != nil {
			e.compensate(op, inv, func() error {
				return e.dir.Transfer(ctx, inv.Creditor, inv.Debtor, applied)
			})
			if errors.Is(err, ErrConflict) {
				return nil, e.reject(ctx, op, addr, ErrConflict)
			}
			return nil, err
		}

		inv.Balance = after
		inv.Version++
		inv.Touch(now)
	}

	receipt := &payment.Payment{
		ID:            id.NewPaymentID(),
		InvoiceID:     inv.ID,
		Address:       inv.Address,
		Debtor:        inv.Debtor,
		Creditor:      inv.Creditor,
		Tendered:      amount,
		Applied:       applied,
		Refunded:      amount - applied,
		BalanceBefore: before,
		BalanceAfter:  after,
		CreatedAt:     now,
	}
	if err := e.store.CreatePayment(ctx, receipt); err != nil {
		e.logger.Warn("failed to record payment receipt",
			"invoice_id", inv.ID.String(),
			"payment_id", receipt.ID.String(),
			"error", err,
		)
	}

	e.logger.Debug("payment applied",
		"invoice_id", inv.ID.String(),
		"tendered", amount.String(),
		"applied", applied.String(),
		"balance", after.String(),
	)

	e.plugins.EmitPaymentApplied(ctx, inv, receipt)
	if applied > 0 && after == 0 {
		e.plugins.EmitInvoicePaidInFull(ctx, inv)
	}

	return receipt, nil
}

// ──────────────────────────────────────────────────
// Confirm settlement
// ──────────────────────────────────────────────────

// ConfirmSettlement marks a fully paid invoice settled. The signer must be
// the creditor. A failed confirmation leaves the record unchanged.
func (e *Engine) ConfirmSettlement(ctx context.Context, signer types.Party, addr types.Address) (*invoice.Invoice, error) {
	const op = "confirm_settlement"

	inv, err := e.store.GetInvoiceByAddress(ctx, addr)
	if err != nil {
		return nil, e.lookupError(ctx, op, addr, err)
	}

	switch {
	case signer != inv.Creditor:
		return nil, e.reject(ctx, op, signer, ErrUnauthorized)
	case inv.IsSettled():
		return nil, e.reject(ctx, op, addr, ErrAlreadySettled)
	case inv.Balance > 0:
		return nil, e.reject(ctx, op, addr, ErrUnsettledBalance)
	case !invoice.CanTransition(inv.State(), invoice.StateSettled):
		return nil, e.reject(ctx, op, addr, ErrUnsettledBalance)
	}

	now := e.now().UTC()

	var (
		reclaimedAt *time.Time
		released    types.Amount
	)
	if e.reservePolicy == ReserveRelease && inv.Reserve > 0 {
		if err := e.holding.Withdraw(ctx, inv.Address, inv.Creditor, inv.Reserve); err != nil {
			return nil, e.custodyError(ctx, op, addr, err)
		}
		reclaimedAt = &now
		released = inv.Reserve
	}

	if err := e.store.ConfirmInvoice(ctx, inv.ID, inv.Version, now, reclaimedAt); err != nil {
		if released > 0 {
			e.compensate(op, inv, func() error {
				return e.holding.Deposit(ctx, inv.Creditor, inv.Address, released)
			})
		}
		if errors.Is(err, ErrConflict) {
			return nil, e.reject(ctx, op, addr, ErrConflict)
		}
		return nil, err
	}

	inv.ConfirmedAt = &now
	inv.ReclaimedAt = reclaimedAt
	inv.Version++
	inv.Touch(now)

	e.logger.Info("settlement confirmed",
		"invoice_id", inv.ID.String(),
		"address", addr.Short(),
		"reserve_released", released.String(),
	)

	e.plugins.EmitSettlementConfirmed(ctx, inv)
	if released > 0 {
		e.plugins.EmitReserveReleased(ctx, inv, released)
	}

	return inv, nil
}

// ──────────────────────────────────────────────────
// Reads
// ──────────────────────────────────────────────────

// DeriveAddress returns the address and canonical nonce for a triple.
func (e *Engine) DeriveAddress(creditor, debtor types.Party, namespace string) (types.Address, uint8, error) {
	return invoice.DeriveAddress(creditor, debtor, namespace)
}

// GetInvoice returns the invoice at addr.
func (e *Engine) GetInvoice(ctx context.Context, addr types.Address) (*invoice.Invoice, error) {
	return e.store.GetInvoiceByAddress(ctx, addr)
}

// GetInvoiceByID returns an invoice by ID, including reclaimed ones.
func (e *Engine) GetInvoiceByID(ctx context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	return e.store.GetInvoice(ctx, invID)
}

// ListInvoices lists invoices matching opts.
func (e *Engine) ListInvoices(ctx context.Context, opts invoice.ListOpts) ([]*invoice.Invoice, error) {
	return e.store.ListInvoices(ctx, opts)
}

// ListPayments lists the receipts of an invoice, oldest first.
func (e *Engine) ListPayments(ctx context.Context, invID id.InvoiceID, opts payment.ListOpts) ([]*payment.Payment, error) {
	return e.store.ListPayments(ctx, invID, opts)
}

// Snapshot returns the invoice at addr in its fixed byte layout.
func (e *Engine) Snapshot(ctx context.Context, addr types.Address) ([]byte, error) {
	inv, err := e.store.GetInvoiceByAddress(ctx, addr)
	if err != nil {
		return nil, err
	}
	return invoice.Encode(inv), nil
}

// HoldingBalance returns the funds custodied for the invoice at addr.
func (e *Engine) HoldingBalance(ctx context.Context, addr types.Address) (types.Amount, error) {
	return e.holding.Balance(ctx, addr)
}

// MinimumReserve returns the reserve an invoice with the given namespace
// and memo would require.
func (e *Engine) MinimumReserve(namespace, memo string) types.Amount {
	return e.holding.MinimumReserve(invoice.Size(namespace, memo))
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func (e *Engine) reject(ctx context.Context, op string, identity types.Key, err error) error {
	rerr := newError(op, identity, err)

	e.logger.Warn("operation rejected",
		"op", op,
		"code", int(rerr.Code),
		"identity", identity.Short(),
		"error", err,
	)

	e.plugins.EmitOperationRejected(ctx, op, rerr)
	return rerr
}

func (e *Engine) lookupError(ctx context.Context, op string, addr types.Address, err error) error {
	if IsNotFound(err) {
		return e.reject(ctx, op, addr, ErrInvoiceNotFound)
	}
	return err
}

func (e *Engine) custodyError(ctx context.Context, op string, identity types.Key, err error) error {
	if errors.Is(err, custody.ErrInsufficientFunds) {
		return e.reject(ctx, op, identity, fmt.Errorf("%w: %w", ErrInsufficientFunds, err))
	}
	return fmt.Errorf("settle: %s: custody: %w", op, err)
}

// compensate reverses a custody move after a failed store write. A failure
// here leaves funds out of place and needs an operator.
func (e *Engine) compensate(op string, inv *invoice.Invoice, undo func() error) {
	if err := undo(); err != nil {
		e.logger.Error("compensating transfer failed",
			"op", op,
			"invoice_id", inv.ID.String(),
			"address", inv.Address.Short(),
			"error", err,
		)
	}
}
