package mongo

import (
	"fmt"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/settle/id"
	"github.com/xraph/settle/invoice"
	"github.com/xraph/settle/payment"
	"github.com/xraph/settle/types"
)

// ==================== Invoice models ====================

// invoiceModel carries an Active flag alongside ReclaimedAt. The unique
// address index is partial on active documents, since MongoDB partial
// filters cannot match on a null field.
type invoiceModel struct {
	grove.BaseModel `grove:"table:settle_invoices"`

	ID          string     `grove:"id,pk"        bson:"_id"`
	Address     string     `grove:"address"      bson:"address"`
	Bump        int32      `grove:"bump"         bson:"bump"`
	Creditor    string     `grove:"creditor"     bson:"creditor"`
	Debtor      string     `grove:"debtor"       bson:"debtor"`
	Namespace   string     `grove:"namespace"    bson:"namespace"`
	Memo        string     `grove:"memo"         bson:"memo"`
	Amount      int64      `grove:"amount"       bson:"amount"`
	Balance     int64      `grove:"balance"      bson:"balance"`
	Reserve     int64      `grove:"reserve"      bson:"reserve"`
	IssuedAt    time.Time  `grove:"issued_at"    bson:"issued_at"`
	ConfirmedAt *time.Time `grove:"confirmed_at" bson:"confirmed_at"`
	ReclaimedAt *time.Time `grove:"reclaimed_at" bson:"reclaimed_at"`
	Active      bool       `grove:"active"       bson:"active"`
	Version     int64      `grove:"version"      bson:"version"`
	CreatedAt   time.Time  `grove:"created_at"   bson:"created_at"`
	UpdatedAt   time.Time  `grove:"updated_at"   bson:"updated_at"`
}

func toInvoiceModel(inv *invoice.Invoice) *invoiceModel {
	return &invoiceModel{
		ID:          inv.ID.String(),
		Address:     inv.Address.String(),
		Bump:        int32(inv.Bump),
		Creditor:    inv.Creditor.String(),
		Debtor:      inv.Debtor.String(),
		Namespace:   inv.Namespace,
		Memo:        inv.Memo,
		Amount:      int64(inv.Amount),
		Balance:     int64(inv.Balance),
		Reserve:     int64(inv.Reserve),
		IssuedAt:    inv.IssuedAt,
		ConfirmedAt: inv.ConfirmedAt,
		ReclaimedAt: inv.ReclaimedAt,
		Active:      inv.ReclaimedAt == nil,
		Version:     inv.Version,
		CreatedAt:   inv.CreatedAt,
		UpdatedAt:   inv.UpdatedAt,
	}
}

func fromInvoiceModel(m *invoiceModel) (*invoice.Invoice, error) {
	invID, err := id.ParseInvoiceID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("settle/mongo: parse invoice id %q: %w", m.ID, err)
	}
	keys, err := parseKeys(m.Address, m.Creditor, m.Debtor)
	if err != nil {
		return nil, err
	}

	return &invoice.Invoice{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:          invID,
		Address:     keys[0],
		Bump:        uint8(m.Bump),
		Creditor:    keys[1],
		Debtor:      keys[2],
		Namespace:   m.Namespace,
		Memo:        m.Memo,
		Amount:      types.Amount(m.Amount),
		Balance:     types.Amount(m.Balance),
		Reserve:     types.Amount(m.Reserve),
		IssuedAt:    m.IssuedAt,
		ConfirmedAt: m.ConfirmedAt,
		ReclaimedAt: m.ReclaimedAt,
		Version:     m.Version,
	}, nil
}

// ==================== Payment models ====================

type paymentModel struct {
	grove.BaseModel `grove:"table:settle_payments"`

	ID            string    `grove:"id,pk"          bson:"_id"`
	InvoiceID     string    `grove:"invoice_id"     bson:"invoice_id"`
	Address       string    `grove:"address"        bson:"address"`
	Debtor        string    `grove:"debtor"         bson:"debtor"`
	Creditor      string    `grove:"creditor"       bson:"creditor"`
	Tendered      int64     `grove:"tendered"       bson:"tendered"`
	Applied       int64     `grove:"applied"        bson:"applied"`
	Refunded      int64     `grove:"refunded"       bson:"refunded"`
	BalanceBefore int64     `grove:"balance_before" bson:"balance_before"`
	BalanceAfter  int64     `grove:"balance_after"  bson:"balance_after"`
	CreatedAt     time.Time `grove:"created_at"     bson:"created_at"`
}

func toPaymentModel(p *payment.Payment) *paymentModel {
	return &paymentModel{
		ID:            p.ID.String(),
		InvoiceID:     p.InvoiceID.String(),
		Address:       p.Address.String(),
		Debtor:        p.Debtor.String(),
		Creditor:      p.Creditor.String(),
		Tendered:      int64(p.Tendered),
		Applied:       int64(p.Applied),
		Refunded:      int64(p.Refunded),
		BalanceBefore: int64(p.BalanceBefore),
		BalanceAfter:  int64(p.BalanceAfter),
		CreatedAt:     p.CreatedAt,
	}
}

func fromPaymentModel(m *paymentModel) (*payment.Payment, error) {
	payID, err := id.ParsePaymentID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("settle/mongo: parse payment id %q: %w", m.ID, err)
	}
	invID, err := id.ParseInvoiceID(m.InvoiceID)
	if err != nil {
		return nil, fmt.Errorf("settle/mongo: parse invoice id %q: %w", m.InvoiceID, err)
	}
	keys, err := parseKeys(m.Address, m.Debtor, m.Creditor)
	if err != nil {
		return nil, err
	}

	return &payment.Payment{
		ID:            payID,
		InvoiceID:     invID,
		Address:       keys[0],
		Debtor:        keys[1],
		Creditor:      keys[2],
		Tendered:      types.Amount(m.Tendered),
		Applied:       types.Amount(m.Applied),
		Refunded:      types.Amount(m.Refunded),
		BalanceBefore: types.Amount(m.BalanceBefore),
		BalanceAfter:  types.Amount(m.BalanceAfter),
		CreatedAt:     m.CreatedAt,
	}, nil
}

func parseKeys(hex ...string) ([]types.Key, error) {
	keys := make([]types.Key, len(hex))
	for i, h := range hex {
		k, err := types.ParseKey(h)
		if err != nil {
			return nil, fmt.Errorf("settle/mongo: parse key %q: %w", h, err)
		}
		keys[i] = k
	}
	return keys, nil
}
