package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	settle "github.com/xraph/settle"
	"github.com/xraph/settle/id"
	"github.com/xraph/settle/invoice"
	"github.com/xraph/settle/payment"
	settlestore "github.com/xraph/settle/store"
	"github.com/xraph/settle/types"
)

// Collection name constants.
const (
	colInvoices = "settle_invoices"
	colPayments = "settle_payments"
)

// compile-time interface check
var _ settlestore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all settle collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("settle/mongo: migrate %s indexes: %w", col, err)
		}
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
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return settle.ErrAddressCollision
		}
		return fmt.Errorf("settle/mongo: create invoice: %w", err)
	}
	return nil
}

func (s *Store) GetInvoice(ctx context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	var m invoiceModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": invID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, settle.ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("settle/mongo: get invoice: %w", err)
	}
	return fromInvoiceModel(&m)
}

func (s *Store) GetInvoiceByAddress(ctx context.Context, addr types.Address) (*invoice.Invoice, error) {
	var models []invoiceModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{"address": addr.String()}).
		Sort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("settle/mongo: get invoice by address: %w", err)
	}
	if len(models) == 0 {
		return nil, settle.ErrInvoiceNotFound
	}
	return fromInvoiceModel(&models[0])
}

func (s *Store) ListInvoices(ctx context.Context, opts invoice.ListOpts) ([]*invoice.Invoice, error) {
	var models []invoiceModel

	filter := bson.M{}
	if !opts.Creditor.IsZero() {
		filter["creditor"] = opts.Creditor.String()
	}
	if !opts.Debtor.IsZero() {
		filter["debtor"] = opts.Debtor.String()
	}
	if opts.Namespace != nil {
		filter["namespace"] = *opts.Namespace
	}
	switch opts.State {
	case invoice.StateOpen:
		filter["confirmed_at"] = nil
		filter["balance"] = bson.M{"$gt": 0}
	case invoice.StatePaidPending:
		filter["confirmed_at"] = nil
		filter["balance"] = 0
	case invoice.StateSettled:
		filter["confirmed_at"] = bson.M{"$ne": nil}
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("settle/mongo: list invoices: %w", err)
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
	res, err := s.mdb.NewUpdate((*invoiceModel)(nil)).
		Filter(swapFilter(invID, version)).
		Set("balance", int64(balance)).
		Set("version", version+1).
		Set("updated_at", at.UTC()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("settle/mongo: update balance: %w", err)
	}
	return s.checkSwapped(ctx, res.MatchedCount() > 0, invID)
}

func (s *Store) ConfirmInvoice(ctx context.Context, invID id.InvoiceID, version int64, confirmedAt time.Time, reclaimedAt *time.Time) error {
	update := s.mdb.NewUpdate((*invoiceModel)(nil)).
		Filter(swapFilter(invID, version)).
		Set("confirmed_at", confirmedAt.UTC()).
		Set("version", version+1).
		Set("updated_at", confirmedAt.UTC())

	if reclaimedAt != nil {
		update = update.
			Set("reclaimed_at", reclaimedAt.UTC()).
			Set("active", false)
	}

	res, err := update.Exec(ctx)
	if err != nil {
		return fmt.Errorf("settle/mongo: confirm invoice: %w", err)
	}
	return s.checkSwapped(ctx, res.MatchedCount() > 0, invID)
}

func swapFilter(invID id.InvoiceID, version int64) bson.M {
	return bson.M{
		"_id":          invID.String(),
		"version":      version,
		"confirmed_at": nil,
	}
}

// checkSwapped turns an unmatched update into not-found or conflict.
func (s *Store) checkSwapped(ctx context.Context, matched bool, invID id.InvoiceID) error {
	if matched {
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
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("settle/mongo: create payment: %w", err)
	}
	return nil
}

func (s *Store) ListPayments(ctx context.Context, invID id.InvoiceID, opts payment.ListOpts) ([]*payment.Payment, error) {
	var models []paymentModel

	q := s.mdb.NewFind(&models).
		Filter(bson.M{"invoice_id": invID.String()}).
		Sort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("settle/mongo: list payments: %w", err)
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

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all settle collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colInvoices: {
			{
				Keys: bson.D{{Key: "address", Value: 1}},
				Options: options.Index().
					SetName("active_address").
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"active": true}),
			},
			{Keys: bson.D{{Key: "address", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "creditor", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "debtor", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "namespace", Value: 1}}},
		},
		colPayments: {
			{Keys: bson.D{{Key: "invoice_id", Value: 1}, {Key: "created_at", Value: 1}}},
		},
	}
}
