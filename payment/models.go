// Package payment defines the receipt written for every accepted payment.
package payment

import (
	"time"

	"github.com/xraph/settle/id"
	"github.com/xraph/settle/types"
)

// Payment records one pay call against an invoice. Tendered is what the
// debtor offered, Applied is what moved to the creditor, and Refunded is
// the excess that was never charged.
type Payment struct {
	ID            id.PaymentID  `json:"id"`
	InvoiceID     id.InvoiceID  `json:"invoice_id"`
	Address       types.Address `json:"address"`
	Debtor        types.Party   `json:"debtor"`
	Creditor      types.Party   `json:"creditor"`
	Tendered      types.Amount  `json:"tendered"`
	Applied       types.Amount  `json:"applied"`
	Refunded      types.Amount  `json:"refunded"`
	BalanceBefore types.Amount  `json:"balance_before"`
	BalanceAfter  types.Amount  `json:"balance_after"`
	CreatedAt     time.Time     `json:"created_at"`
}

// FullRefund reports whether nothing was applied.
func (p *Payment) FullRefund() bool {
	return p.Applied == 0
}
