package invoice

import (
	"time"

	"github.com/xraph/settle/id"
	"github.com/xraph/settle/types"
)

// Invoice is a debt obligation from Debtor to Creditor, stored at an address
// derived from (Creditor, Debtor, Namespace).
type Invoice struct {
	types.Entity
	ID          id.InvoiceID  `json:"id"`
	Address     types.Address `json:"address"`
	Bump        uint8         `json:"bump"`
	Creditor    types.Party   `json:"creditor"`
	Debtor      types.Party   `json:"debtor"`
	Namespace   string        `json:"namespace"`
	Memo        string        `json:"memo,omitempty"`
	Amount      types.Amount  `json:"amount"`
	Balance     types.Amount  `json:"balance"`
	Reserve     types.Amount  `json:"reserve"`
	IssuedAt    time.Time     `json:"issued_at"`
	ConfirmedAt *time.Time    `json:"confirmed_at,omitempty"`
	ReclaimedAt *time.Time    `json:"reclaimed_at,omitempty"`
	Version     int64         `json:"version"`
}

// Record is the externally visible view of an invoice.
type Record struct {
	Creditor  types.Party  `json:"creditor"`
	Debtor    types.Party  `json:"debtor"`
	Balance   types.Amount `json:"balance"`
	Namespace string       `json:"namespace"`
}

// Record returns the creditor/debtor/balance/namespace view.
func (inv *Invoice) Record() Record {
	return Record{
		Creditor:  inv.Creditor,
		Debtor:    inv.Debtor,
		Balance:   inv.Balance,
		Namespace: inv.Namespace,
	}
}

// State derives the lifecycle state. A zero balance alone is not settled;
// settlement requires a recorded confirmation.
func (inv *Invoice) State() State {
	switch {
	case inv.ConfirmedAt != nil:
		return StateSettled
	case inv.Balance == 0:
		return StatePaidPending
	default:
		return StateOpen
	}
}

// IsSettled reports whether confirmation has been recorded.
func (inv *Invoice) IsSettled() bool {
	return inv.ConfirmedAt != nil
}

// IsReclaimed reports whether the storage reserve has been released.
func (inv *Invoice) IsReclaimed() bool {
	return inv.ReclaimedAt != nil
}

// Paid returns how much of the issued amount has been applied.
func (inv *Invoice) Paid() types.Amount {
	return inv.Amount - inv.Balance
}

// Size returns the encoded record size in bytes.
func (inv *Invoice) Size() int {
	return Size(inv.Namespace, inv.Memo)
}

// Clone returns a deep copy.
func (inv *Invoice) Clone() *Invoice {
	cp := *inv
	if inv.ConfirmedAt != nil {
		t := *inv.ConfirmedAt
		cp.ConfirmedAt = &t
	}
	if inv.ReclaimedAt != nil {
		t := *inv.ReclaimedAt
		cp.ReclaimedAt = &t
	}
	return &cp
}
