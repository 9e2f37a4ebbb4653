package sqlite

import (
	"context"

	_ "github.com/xraph/grove/drivers/sqlitedriver/sqlitemigrate"
	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Settle store (SQLite).
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
    bump         INTEGER NOT NULL,
    creditor     TEXT NOT NULL,
    debtor       TEXT NOT NULL,
    namespace    TEXT NOT NULL DEFAULT '',
    memo         TEXT NOT NULL DEFAULT '',
    amount       INTEGER NOT NULL CHECK (amount > 0),
    balance      INTEGER NOT NULL CHECK (balance >= 0 AND balance <= amount),
    reserve      INTEGER NOT NULL DEFAULT 0,
    issued_at    DATETIME NOT NULL,
    confirmed_at DATETIME,
    reclaimed_at DATETIME,
    version      INTEGER NOT NULL DEFAULT 1,
    created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
    updated_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_settle_invoices_active_address
    ON settle_invoices (address) WHERE reclaimed_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_settle_invoices_address ON settle_invoices (address, created_at);
CREATE INDEX IF NOT EXISTS idx_settle_invoices_creditor ON settle_invoices (creditor);
CREATE INDEX IF NOT EXISTS idx_settle_invoices_debtor ON settle_invoices (debtor);
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
    tendered       INTEGER NOT NULL,
    applied        INTEGER NOT NULL,
    refunded       INTEGER NOT NULL,
    balance_before INTEGER NOT NULL,
    balance_after  INTEGER NOT NULL,
    created_at     DATETIME NOT NULL DEFAULT (datetime('now'))
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
