package postgres

import (
	"context"

	_ "github.com/xraph/grove/drivers/pgdriver/pgmigrate"
	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Settle store.
var Migrations = migrate.NewGroup("settle")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_settle_invoices",
			Version: "20261001000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS settle_invoices (
    id           TEXT PRIMARY KEY,
    address      TEXT NOT NULL,
    bump         SMALLINT NOT NULL,
    creditor     TEXT NOT NULL,
    debtor       TEXT NOT NULL,
    namespace    TEXT NOT NULL DEFAULT '',
    memo         TEXT NOT NULL DEFAULT '',
    amount       BIGINT NOT NULL CHECK (amount > 0),
    balance      BIGINT NOT NULL CHECK (balance >= 0 AND balance <= amount),
    reserve      BIGINT NOT NULL DEFAULT 0 CHECK (reserve >= 0),
    issued_at    TIMESTAMPTZ NOT NULL,
    confirmed_at TIMESTAMPTZ,
    reclaimed_at TIMESTAMPTZ,
    version      BIGINT NOT NULL DEFAULT 1,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_settle_invoices_active_address
    ON settle_invoices (address) WHERE reclaimed_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_settle_invoices_address ON settle_invoices (address, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_settle_invoices_creditor ON settle_invoices (creditor, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_settle_invoices_debtor ON settle_invoices (debtor, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_settle_invoices_namespace ON settle_invoices (namespace);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS settle_invoices`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_settle_payments",
			Version: "20261001000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS settle_payments (
    id             TEXT PRIMARY KEY,
    invoice_id     TEXT NOT NULL REFERENCES settle_invoices (id),
    address        TEXT NOT NULL,
    debtor         TEXT NOT NULL,
    creditor       TEXT NOT NULL,
    tendered       BIGINT NOT NULL,
    applied        BIGINT NOT NULL,
    refunded       BIGINT NOT NULL,
    balance_before BIGINT NOT NULL,
    balance_after  BIGINT NOT NULL,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_settle_payments_invoice ON settle_payments (invoice_id, created_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS settle_payments`)
				return err
			},
		},
	)
}
