package store

import (
	"context"

	"github.com/xraph/settle/invoice"
	"github.com/xraph/settle/payment"
)

// Store is the unified storage interface for Settle records.
type Store interface {
	invoice.Store
	payment.Store

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
