package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	settle "github.com/xraph/settle"
	"github.com/xraph/settle/id"
	"github.com/xraph/settle/invoice"
	"github.com/xraph/settle/payment"
	settlestore "github.com/xraph/settle/store"
	"github.com/xraph/settle/types"
)

// compile-time interface check
var _ settlestore.Store = (*Store)(nil)

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("settle/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("settle/postgres: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Invoice Store ====================

func (s *Store) CreateInvoice(ctx context.Context, inv *invoice.Invoice) error {
	m := toInvoiceModel(inv)
	if _, err := s.pg.NewInsert(m).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return settle.ErrAddressCollision
		}
		return fmt.Errorf("settle/postgres: insert invoice: %w", err)
	}
	return nil
}

func (s *Store) GetInvoice(ctx context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	m := new(invoiceModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", invID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, settle.ErrInvoiceNotFound
		}
		return nil, err
	}
	return fromInvoiceModel(m)
}

func (s *Store) GetInvoiceByAddress(ctx context.Context, addr types.Address) (*invoice.Invoice, error) {
	m := new(invoiceModel)
	err := s.pg.NewSelect(m).
		Where("address = $1", addr.String()).
		OrderExpr("created_at DESC, id DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, settle.ErrInvoiceNotFound
		}
		return nil, err
	}
	return fromInvoiceModel(m)
}

func (s *Store) ListInvoices(ctx context.Context, opts invoice.ListOpts) ([]*invoice.Invoice, error) {
	var models []invoiceModel
	q := s.pg.NewSelect(&models)

	argIdx := 0
	if !opts.Creditor.IsZero() {
		argIdx++
		q = q.Where(fmt.Sprintf("creditor = $%d", argIdx), opts.Creditor.String())
	}
	if !opts.Debtor.IsZero() {
		argIdx++
		q = q.Where(fmt.Sprintf("debtor = $%d", argIdx), opts.Debtor.String())
	}
	if opts.Namespace != nil {
		argIdx++
		q = q.Where(fmt.Sprintf("namespace = $%d", argIdx), *opts.Namespace)
	}
	switch opts.State {
	case invoice.StateOpen:
		q = q.Where("confirmed_at IS NULL AND balance > 0")
	case invoice.StatePaidPending:
		q = q.Where("confirmed_at IS NULL AND balance = 0")
	case invoice.StateSettled:
		q = q.Where("confirmed_at IS NOT NULL")
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at DESC, id DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*invoice.Invoice, len(models))
	for i := range models {
		inv, err := fromInvoiceModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = inv
	}
	return result, nil
}

func (s *Store) UpdateInvoiceBalance(ctx context.Context, invID id.InvoiceID, version int64, balance types.Amount, at time.Time) error {
	res, err := s.pg.NewUpdate((*invoiceModel)(nil)).
		Set("balance = $1", int64(balance)).
		Set("version = version + 1").
		Set("updated_at = $2", at.UTC()).
		Where("id = $3", invID.String()).
		Where("version = $4", version).
		Where("confirmed_at IS NULL").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("settle/postgres: update balance: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	return s.checkSwapped(ctx, rows, invID)
}

func (s *Store) ConfirmInvoice(ctx context.Context, invID id.InvoiceID, version int64, confirmedAt time.Time, reclaimedAt *time.Time) error {
	var reclaimed *time.Time
	if reclaimedAt != nil {
		r := reclaimedAt.UTC()
		reclaimed = &r
	}
	res, err := s.pg.NewUpdate((*invoiceModel)(nil)).
		Set("confirmed_at = $1", confirmedAt.UTC()).
		Set("reclaimed_at = $2", reclaimed).
		Set("version = version + 1").
		Set("updated_at = $3", confirmedAt.UTC()).
		Where("id = $4", invID.String()).
		Where("version = $5", version).
		Where("confirmed_at IS NULL").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("settle/postgres: confirm invoice: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	return s.checkSwapped(ctx, rows, invID)
}

// checkSwapped turns a zero-row update into not-found or conflict.
func (s *Store) checkSwapped(ctx context.Context, rows int64, invID id.InvoiceID) error {
	if rows > 0 {
		return nil
	}
	if _, err := s.GetInvoice(ctx, invID); err != nil {
		return err
	}
	return settle.ErrConflict
}

// ==================== Payment Store ====================

func (s *Store) CreatePayment(ctx context.Context, p *payment.Payment) error {
	m := toPaymentModel(p)
	if _, err := s.pg.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("settle/postgres: insert payment: %w", err)
	}
	return nil
}

func (s *Store) ListPayments(ctx context.Context, invID id.InvoiceID, opts payment.ListOpts) ([]*payment.Payment, error) {
	var models []paymentModel
	q := s.pg.NewSelect(&models).Where("invoice_id = $1", invID.String())
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC, id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*payment.Payment, len(models))
	for i := range models {
		p, err := fromPaymentModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = p
	}
	return result, nil
}

// ==================== Helpers ====================

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	// Some driver paths flatten the error to text.
	return strings.Contains(err.Error(), uniqueViolation) ||
		strings.Contains(err.Error(), "duplicate key")
}
