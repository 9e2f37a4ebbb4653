package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
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

// Store implements store.Store using SQLite via Grove ORM.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("settle/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("settle/sqlite: migration failed: %w", err)
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
	if _, err := s.sdb.NewInsert(m).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return settle.ErrAddressCollision
		}
		return fmt.Errorf("settle/sqlite: insert invoice: %w", err)
	}
	return nil
}

func (s *Store) GetInvoice(ctx context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	m := new(invoiceModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", invID.String()).
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
	err := s.sdb.NewSelect(m).
		Where("address = ?", addr.String()).
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
	q := s.sdb.NewSelect(&models)

	if !opts.Creditor.IsZero() {
		q = q.Where("creditor = ?", opts.Creditor.String())
	}
	if !opts.Debtor.IsZero() {
		q = q.Where("debtor = ?", opts.Debtor.String())
	}
	if opts.Namespace != nil {
		q = q.Where("namespace = ?", *opts.Namespace)
	}
	switch opts.State {
	case invoice.StateOpen:
		q = q.Where("confirmed_at IS NULL AND balance > 0")
	case invoice.StatePaidPending:
		q = q.Where("confirmed_at IS NULL AND balance = 0")
	case invoice.StateSettled:
		q = q.Where("confirmed_at IS NOT NULL")
	}
	q = q.Limit(pageLimit(opts.Limit, opts.Offset))
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
	res, err := s.sdb.NewUpdate((*invoiceModel)(nil)).
		Set("balance = ?", int64(balance)).
		Set("version = version + 1").
		Set("updated_at = ?", at.UTC()).
		Where("id = ?", invID.String()).
		Where("version = ?", version).
		Where("confirmed_at IS NULL").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("settle/sqlite: update balance: %w", err)
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
	res, err := s.sdb.NewUpdate((*invoiceModel)(nil)).
		Set("confirmed_at = ?", confirmedAt.UTC()).
		Set("reclaimed_at = ?", reclaimed).
		Set("version = version + 1").
		Set("updated_at = ?", confirmedAt.UTC()).
		Where("id = ?", invID.String()).
		Where("version = ?", version).
		Where("confirmed_at IS NULL").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("settle/sqlite: confirm invoice: %w", err)
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
	if _, err := s.sdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("settle/sqlite: insert payment: %w", err)
	}
	return nil
}

func (s *Store) ListPayments(ctx context.Context, invID id.InvoiceID, opts payment.ListOpts) ([]*payment.Payment, error) {
	var models []paymentModel
	q := s.sdb.NewSelect(&models).Where("invoice_id = ?", invID.String())
	q = q.Limit(pageLimit(opts.Limit, opts.Offset))
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

// pageLimit returns the LIMIT to send. SQLite rejects OFFSET without LIMIT,
// so an offset-only page gets the largest limit it accepts.
func pageLimit(limit, offset int) int {
	if limit <= 0 && offset > 0 {
		return math.MaxInt
	}
	return limit
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
