package sqlite

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/settle/id"
	"github.com/xraph/settle/invoice"
	"github.com/xraph/settle/payment"
	"github.com/xraph/settle/types"
)

// ==================== Invoice models ====================

type invoiceModel struct {
	grove.BaseModel `grove:"table:settle_invoices"`

	ID          string     `grove:"id,pk"`
	Address     string     `grove:"address"`
	Bump        int16      `grove:"bump"`
	Creditor    string     `grove:"creditor"`
	Debtor      string     `grove:"debtor"`
	Namespace   string     `grove:"namespace"`
	Memo        string     `grove:"memo"`
	Amount      int64      `grove:"amount"`
	Balance     int64      `grove:"balance"`
	Reserve     int64      `grove:"reserve"`
	IssuedAt    time.Time  `grove:"issued_at"`
	ConfirmedAt *time.Time `grove:"confirmed_at"`
	ReclaimedAt *time.Time `grove:"reclaimed_at"`
	Version     int64      `grove:"version"`
	CreatedAt   time.Time  `grove:"created_at"`
	UpdatedAt   time.Time  `grove:"updated_at"`
}

func toInvoiceModel(inv *invoice.Invoice) *invoiceModel {
	return &invoiceModel{
		ID:          inv.ID.String(),
		Address:     inv.Address.String(),
		Bump:        int16(inv.Bump),
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
		Version:     inv.Version,
		CreatedAt:   inv.CreatedAt,
		UpdatedAt:   inv.UpdatedAt,
	}
}

func fromInvoiceModel(m *invoiceModel) (*invoice.Invoice, error) {
	invID, err := id.ParseInvoiceID(m.ID)
	if err != nil {
		return nil, err
	}
	addr, err := types.ParseKey(m.Address)
	if err != nil {
		return nil, err
	}
	creditor, err := types.ParseKey(m.Creditor)
	if err != nil {
		return nil, err
	}
	debtor, err := types.ParseKey(m.Debtor)
	if err != nil {
		return nil, err
	}

	return &invoice.Invoice{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:          invID,
		Address:     addr,
		Bump:        uint8(m.Bump),
		Creditor:    creditor,
		Debtor:      debtor,
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

	ID            string    `grove:"id,pk"`
	InvoiceID     string    `grove:"invoice_id"`
	Address       string    `grove:"address"`
	Debtor        string    `grove:"debtor"`
	Creditor      string    `grove:"creditor"`
	Tendered      int64     `grove:"tendered"`
	Applied       int64     `grove:"applied"`
	Refunded      int64     `grove:"refunded"`
	BalanceBefore int64     `grove:"balance_before"`
	BalanceAfter  int64     `grove:"balance_after"`
	CreatedAt     time.Time `grove:"created_at"`
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
		return nil, err
	}
	invID, err := id.ParseInvoiceID(m.InvoiceID)
	if err != nil {
		return nil, err
	}
	addr, err := types.ParseKey(m.Address)
	if err != nil {
		return nil, err
	}
	debtor, err := types.ParseKey(m.Debtor)
	if err != nil {
		return nil, err
	}
	creditor, err := types.ParseKey(m.Creditor)
	if err != nil {
		return nil, err
	}

	return &payment.Payment{
		ID:            payID,
		InvoiceID:     invID,
		Address:       addr,
		Debtor:        debtor,
		Creditor:      creditor,
		Tendered:      types.Amount(m.Tendered),
		Applied:       types.Amount(m.Applied),
		Refunded:      types.Amount(m.Refunded),
		BalanceBefore: types.Amount(m.BalanceBefore),
		BalanceAfter:  types.Amount(m.BalanceAfter),
		CreatedAt:     m.CreatedAt,
	}, nil
}
