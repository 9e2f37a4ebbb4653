// Package settle provides an invoice settlement ledger for Go applications.
//
// Settle is designed as a library, not a service. A creditor issues an
// invoice against a debtor, the debtor pays it down in one or more payments,
// and the creditor confirms settlement once the balance reaches zero.
// It provides:
//
//   - One live invoice per (creditor, debtor, namespace) at a derived address
//   - Overpayment protection: only the outstanding balance is ever charged
//   - A storage reserve drawn from the creditor at issue
//   - Compare-and-swap persistence on PostgreSQL, SQLite, MongoDB or memory
//   - Stable numeric error codes for every rejected operation
//   - Lifecycle hooks for audit trails and metrics
//
// # Quick Start
//
//	import (
//	    "github.com/xraph/settle"
//	    custodymem "github.com/xraph/settle/custody/memory"
//	    "github.com/xraph/settle/store/memory"
//	)
//
//	eng := settle.New(memory.New(), custodymem.New())
//	if err := eng.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Stop()
//
//	addr, bump, _ := eng.DeriveAddress(creditor, debtor, "rent")
//	inv, err := eng.Issue(ctx, creditor, settle.IssueRequest{
//	    Creditor:  creditor,
//	    Debtor:    debtor,
//	    Amount:    settle.MustParseAmount("1.2"),
//	    Namespace: "rent",
//	    Bump:      bump,
//	})
//
//	receipt, err := eng.Pay(ctx, debtor, addr, settle.MustParseAmount("1.8"))
//	// receipt.Applied == 1.2, receipt.Refunded == 0.6
//
//	inv, err = eng.ConfirmSettlement(ctx, creditor, addr)
//
// # States
//
// An invoice is Open while it has an outstanding balance, PaidPending once
// the balance is zero, and Settled after the creditor confirms. Settled is
// terminal: further payments and confirmations fail with ErrAlreadySettled.
//
// # Amounts
//
// Amounts are unsigned integers of base units with nine decimal places.
// ParseAmount and Amount.String convert to and from major units.
//
// # Integration
//
// The extension package registers the engine with a Forge application,
// audit_hook bridges lifecycle events to Chronicle, and observability
// records counters and histograms through a MetricFactory.
package settle
