package settle_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/xraph/settle"
	"github.com/xraph/settle/custody"
	custodymem "github.com/xraph/settle/custody/memory"
	"github.com/xraph/settle/id"
	"github.com/xraph/settle/invoice"
	"github.com/xraph/settle/payment"
	"github.com/xraph/settle/store"
	"github.com/xraph/settle/store/memory"
	"github.com/xraph/settle/types"
)

type fixture struct {
	t        *testing.T
	ctx      context.Context
	eng      *settle.Engine
	dir      *custodymem.Directory
	creditor types.Party
	debtor   types.Party
}

func newFixture(t *testing.T, opts ...settle.Option) *fixture {
	t.Helper()
	return newFixtureWithStore(t, memory.New(), opts...)
}

func newFixtureWithStore(t *testing.T, s store.Store, opts ...settle.Option) *fixture {
	t.Helper()

	dir := custodymem.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts = append([]settle.Option{settle.WithLogger(logger)}, opts...)
	eng := settle.New(s, dir, opts...)

	ctx := context.Background()
	if err := eng.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = eng.Stop() }) //nolint:errcheck // test cleanup

	return &fixture{
		t:        t,
		ctx:      ctx,
		eng:      eng,
		dir:      dir,
		creditor: dir.NewAccount(types.Units(10)),
		debtor:   dir.NewAccount(types.Units(10)),
	}
}

func (f *fixture) issue(amount string, namespace string) (*invoice.Invoice, error) {
	f.t.Helper()
	_, bump, err := f.eng.DeriveAddress(f.creditor, f.debtor, namespace)
	if err != nil {
		f.t.Fatal(err)
	}
	return f.eng.Issue(f.ctx, f.creditor, settle.IssueRequest{
		Creditor:  f.creditor,
		Debtor:    f.debtor,
		Amount:    types.MustParseAmount(amount),
		Namespace: namespace,
		Bump:      bump,
	})
}

func (f *fixture) mustIssue(amount string) *invoice.Invoice {
	f.t.Helper()
	inv, err := f.issue(amount, "")
	if err != nil {
		f.t.Fatalf("Issue(%s): %v", amount, err)
	}
	return inv
}

func (f *fixture) balance(k types.Key) types.Amount {
	f.t.Helper()
	b, err := f.dir.Balance(f.ctx, k)
	if err != nil {
		f.t.Fatal(err)
	}
	return b
}

func (f *fixture) holding(addr types.Address) types.Amount {
	f.t.Helper()
	b, err := f.eng.HoldingBalance(f.ctx, addr)
	if err != nil {
		f.t.Fatal(err)
	}
	return b
}

func wantCode(t *testing.T, err error, sentinel error, code settle.Code) {
	t.Helper()
	if !errors.Is(err, sentinel) {
		t.Fatalf("err = %v, want %v", err, sentinel)
	}
	if got := settle.CodeOf(err); got != code {
		t.Errorf("code = %d, want %d", got, code)
	}
}

// ──────────────────────────────────────────────────
// Issue
// ──────────────────────────────────────────────────

func TestIssueChargesReserve(t *testing.T) {
	f := newFixture(t)
	before := f.balance(f.creditor)

	inv := f.mustIssue("1.2")

	if inv.Balance != types.MustParseAmount("1.2") || inv.Amount != inv.Balance {
		t.Errorf("balance = %s, amount = %s", inv.Balance, inv.Amount)
	}
	if inv.Creditor != f.creditor || inv.Debtor != f.debtor {
		t.Error("parties not recorded")
	}
	if inv.State() != settle.StateOpen {
		t.Errorf("state = %s, want open", inv.State())
	}

	want := custody.DefaultRent().Reserve(inv.Size())
	if inv.Reserve != want {
		t.Errorf("reserve = %d, want %d", inv.Reserve, want)
	}
	if got := before - f.balance(f.creditor); got != inv.Reserve {
		t.Errorf("creditor charged %d, want exactly the reserve %d", got, inv.Reserve)
	}
	if got := f.holding(inv.Address); got != inv.Reserve {
		t.Errorf("holding = %d, want %d", got, inv.Reserve)
	}
	if f.eng.MinimumReserve("", "") != inv.Reserve {
		t.Error("MinimumReserve disagrees with the charged reserve")
	}
}

func TestIssueValidation(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(f *fixture, req *settle.IssueRequest) types.Party
		sentinel error
		code     settle.Code
	}{
		{
			name:     "signed by debtor",
			mutate:   func(f *fixture, _ *settle.IssueRequest) types.Party { return f.debtor },
			sentinel: settle.ErrUnauthorized,
			code:     settle.CodeUnauthorized,
		},
		{
			name: "debtor is the creditor",
			mutate: func(f *fixture, req *settle.IssueRequest) types.Party {
				req.Debtor = f.creditor
				_, req.Bump, _ = f.eng.DeriveAddress(f.creditor, f.creditor, "")
				return f.creditor
			},
			sentinel: settle.ErrUnauthorized,
			code:     settle.CodeUnauthorized,
		},
		{
			name: "zero amount",
			mutate: func(f *fixture, req *settle.IssueRequest) types.Party {
				req.Amount = 0
				return f.creditor
			},
			sentinel: settle.ErrInvalidAmount,
			code:     settle.CodeInvalidAmount,
		},
		{
			name: "amount beyond storable range",
			mutate: func(f *fixture, req *settle.IssueRequest) types.Party {
				req.Amount = types.MaxStorable + 1
				return f.creditor
			},
			sentinel: settle.ErrInvalidAmount,
			code:     settle.CodeInvalidAmount,
		},
		{
			name: "namespace too long",
			mutate: func(f *fixture, req *settle.IssueRequest) types.Party {
				req.Namespace = strings.Repeat("n", settle.DefaultMaxNamespaceLen+1)
				return f.creditor
			},
			sentinel: settle.ErrNamespaceTooLong,
			code:     settle.CodeNamespaceTooLong,
		},
		{
			name: "memo too long",
			mutate: func(f *fixture, req *settle.IssueRequest) types.Party {
				req.Memo = strings.Repeat("m", settle.DefaultMaxMemoLen+1)
				return f.creditor
			},
			sentinel: settle.ErrMemoTooLong,
			code:     settle.CodeMemoTooLong,
		},
		{
			name: "wrong bump",
			mutate: func(f *fixture, req *settle.IssueRequest) types.Party {
				req.Bump--
				return f.creditor
			},
			sentinel: settle.ErrInvalidDerivation,
			code:     settle.CodeInvalidDerivation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, bump, _ := f.eng.DeriveAddress(f.creditor, f.debtor, "")
			req := settle.IssueRequest{
				Creditor: f.creditor,
				Debtor:   f.debtor,
				Amount:   types.Units(1),
				Bump:     bump,
			}
			signer := tt.mutate(f, &req)
			before := f.balance(f.creditor)

			_, err := f.eng.Issue(f.ctx, signer, req)
			wantCode(t, err, tt.sentinel, tt.code)

			if f.balance(f.creditor) != before {
				t.Error("rejected issue moved funds")
			}
			if !settle.IsValidation(err) {
				t.Error("IsValidation = false")
			}
		})
	}
}

func TestIssueCollision(t *testing.T) {
	f := newFixture(t)
	first := f.mustIssue("1")
	before := f.balance(f.creditor)

	_, err := f.issue("2", "")
	wantCode(t, err, settle.ErrAddressCollision, settle.CodeAddressCollision)

	if f.balance(f.creditor) != before {
		t.Error("collision charged a second reserve")
	}
	got, err := f.eng.GetInvoice(f.ctx, first.Address)
	if err != nil || got.ID != first.ID {
		t.Errorf("existing invoice disturbed: %v %v", got, err)
	}

	// A different namespace is a different address.
	if _, err := f.issue("2", "other"); err != nil {
		t.Errorf("issue in another namespace: %v", err)
	}
}

func TestIssueInsufficientReserveFunds(t *testing.T) {
	f := newFixture(t)
	f.creditor = f.dir.NewAccount(1)

	_, err := f.issue("1", "")
	wantCode(t, err, settle.ErrInsufficientFunds, settle.CodeInsufficientFunds)

	if f.balance(f.creditor) != 1 {
		t.Error("failed issue moved funds")
	}
	addr, _, _ := f.eng.DeriveAddress(f.creditor, f.debtor, "")
	if _, err := f.eng.GetInvoice(f.ctx, addr); !settle.IsNotFound(err) {
		t.Errorf("invoice persisted after failed issue: %v", err)
	}
}

type vetoPlugin struct{}

func (vetoPlugin) Name() string { return "veto" }

func (vetoPlugin) ValidateIssue(_ context.Context, inv *invoice.Invoice) error {
	if inv.Namespace == "blocked" {
		return errors.New("namespace blocked")
	}
	return nil
}

func TestIssueValidatorVeto(t *testing.T) {
	f := newFixture(t, settle.WithPlugin(vetoPlugin{}))
	before := f.balance(f.creditor)

	if _, err := f.issue("1", "blocked"); err == nil || !strings.Contains(err.Error(), "namespace blocked") {
		t.Fatalf("err = %v, want veto", err)
	}
	if f.balance(f.creditor) != before {
		t.Error("vetoed issue moved funds")
	}
	if _, err := f.issue("1", "fine"); err != nil {
		t.Errorf("allowed namespace rejected: %v", err)
	}
}

// ──────────────────────────────────────────────────
// Pay
// ──────────────────────────────────────────────────

func TestPayPartial(t *testing.T) {
	f := newFixture(t)
	inv := f.mustIssue("1.2")
	creditorBefore, debtorBefore := f.balance(f.creditor), f.balance(f.debtor)
	holdingBefore := f.holding(inv.Address)

	receipt, err := f.eng.Pay(f.ctx, f.debtor, inv.Address, types.MustParseAmount("1.0"))
	if err != nil {
		t.Fatalf("Pay: %v", err)
	}

	got, _ := f.eng.GetInvoice(f.ctx, inv.Address)
	if got.Balance != types.MustParseAmount("0.2") {
		t.Errorf("balance = %s, want 0.2", got.Balance)
	}
	// A remaining balance keeps the invoice open.
	if got.State() != settle.StateOpen {
		t.Errorf("state = %s, want open", got.State())
	}
	if receipt.Applied != types.Units(1) || receipt.Refunded != 0 {
		t.Errorf("receipt = %+v", receipt)
	}
	if f.balance(f.creditor)-creditorBefore != types.Units(1) {
		t.Error("creditor not credited the payment")
	}
	if debtorBefore-f.balance(f.debtor) != types.Units(1) {
		t.Error("debtor not debited the payment")
	}
	if f.holding(inv.Address) != holdingBefore {
		t.Error("payment touched the holding")
	}
}

func TestPayOverpaymentRefunded(t *testing.T) {
	f := newFixture(t)
	inv := f.mustIssue("1.2")
	creditorBefore, debtorBefore := f.balance(f.creditor), f.balance(f.debtor)

	receipt, err := f.eng.Pay(f.ctx, f.debtor, inv.Address, types.MustParseAmount("1.8"))
	if err != nil {
		t.Fatalf("Pay: %v", err)
	}

	if got := debtorBefore - f.balance(f.debtor); got != types.MustParseAmount("1.2") {
		t.Errorf("debtor net charge = %s, want 1.2", got)
	}
	if got := f.balance(f.creditor) - creditorBefore; got != types.MustParseAmount("1.2") {
		t.Errorf("creditor received %s, want 1.2", got)
	}
	if receipt.Refunded != types.MustParseAmount("0.6") || receipt.BalanceAfter != 0 {
		t.Errorf("receipt = %+v", receipt)
	}

	got, _ := f.eng.GetInvoice(f.ctx, inv.Address)
	if got.State() != settle.StatePaidPending {
		t.Errorf("state = %s, want paid_pending", got.State())
	}

	// Paying a zero balance is accepted and refunded in full.
	again, err := f.eng.Pay(f.ctx, f.debtor, inv.Address, types.Units(1))
	if err != nil {
		t.Fatalf("second Pay: %v", err)
	}
	if !again.FullRefund() {
		t.Errorf("second receipt = %+v, want full refund", again)
	}

	receipts, err := f.eng.ListPayments(f.ctx, inv.ID, payment.ListOpts{})
	if err != nil || len(receipts) != 2 {
		t.Fatalf("receipts = %d (%v), want 2", len(receipts), err)
	}
	if receipts[0].ID != receipt.ID {
		t.Error("receipts not oldest first")
	}
}

func TestPayRejections(t *testing.T) {
	f := newFixture(t)
	inv := f.mustIssue("1")

	_, err := f.eng.Pay(f.ctx, f.creditor, inv.Address, types.Units(1))
	wantCode(t, err, settle.ErrUnauthorized, settle.CodeUnauthorized)

	_, err = f.eng.Pay(f.ctx, f.debtor, inv.Address, 0)
	wantCode(t, err, settle.ErrInvalidAmount, settle.CodeInvalidAmount)

	_, err = f.eng.Pay(f.ctx, f.debtor, types.NewKey(), types.Units(1))
	wantCode(t, err, settle.ErrInvoiceNotFound, settle.CodeInvoiceNotFound)

	poor := f.dir.NewAccount(types.MustParseAmount("0.5"))
	f.debtor = poor
	inv2, err := f.issue("1", "")
	if err != nil {
		t.Fatal(err)
	}
	creditorBefore := f.balance(f.creditor)
	_, err = f.eng.Pay(f.ctx, poor, inv2.Address, types.Units(1))
	wantCode(t, err, settle.ErrInsufficientFunds, settle.CodeInsufficientFunds)
	if f.balance(poor) != types.MustParseAmount("0.5") || f.balance(f.creditor) != creditorBefore {
		t.Error("failed payment moved funds")
	}
	got, _ := f.eng.GetInvoice(f.ctx, inv2.Address)
	if got.Balance != types.Units(1) {
		t.Errorf("balance = %s after failed payment", got.Balance)
	}
}

// conflictStore fails every balance update as if another writer won the race.
type conflictStore struct {
	*memory.Store
}

func (conflictStore) UpdateInvoiceBalance(context.Context, id.InvoiceID, int64, types.Amount, time.Time) error {
	return settle.ErrConflict
}

func TestPayConflictReversesTransfer(t *testing.T) {
	f := newFixtureWithStore(t, conflictStore{memory.New()})
	inv := f.mustIssue("1")
	creditorBefore, debtorBefore := f.balance(f.creditor), f.balance(f.debtor)

	_, err := f.eng.Pay(f.ctx, f.debtor, inv.Address, types.Units(1))
	wantCode(t, err, settle.ErrConflict, settle.CodeConflict)
	if !settle.IsRetryable(err) {
		t.Error("conflict should be retryable")
	}

	if f.balance(f.creditor) != creditorBefore || f.balance(f.debtor) != debtorBefore {
		t.Error("transfer not reversed after conflict")
	}
}

// ──────────────────────────────────────────────────
// Confirm settlement
// ──────────────────────────────────────────────────

func TestSettleFullLifecycle(t *testing.T) {
	f := newFixture(t)
	inv := f.mustIssue("1")

	if _, err := f.eng.Pay(f.ctx, f.debtor, inv.Address, types.Units(1)); err != nil {
		t.Fatalf("Pay: %v", err)
	}
	got, err := f.eng.ConfirmSettlement(f.ctx, f.creditor, inv.Address)
	if err != nil {
		t.Fatalf("ConfirmSettlement: %v", err)
	}

	if got.State() != settle.StateSettled || got.Balance != 0 {
		t.Errorf("state = %s, balance = %s", got.State(), got.Balance)
	}
	stored, _ := f.eng.GetInvoiceByID(f.ctx, inv.ID)
	if stored.ConfirmedAt == nil {
		t.Error("confirmation not persisted")
	}

	// Retain policy: the reserve stays put and the address stays taken.
	if f.holding(inv.Address) != inv.Reserve {
		t.Error("reserve left the holding under the retain policy")
	}
	_, err = f.issue("1", "")
	wantCode(t, err, settle.ErrAddressCollision, settle.CodeAddressCollision)

	_, err = f.eng.ConfirmSettlement(f.ctx, f.creditor, inv.Address)
	wantCode(t, err, settle.ErrAlreadySettled, settle.CodeAlreadySettled)

	_, err = f.eng.Pay(f.ctx, f.debtor, inv.Address, types.Units(1))
	wantCode(t, err, settle.ErrAlreadySettled, settle.CodeAlreadySettled)
}

func TestConfirmRejectionsLeaveRecordUnchanged(t *testing.T) {
	f := newFixture(t)
	inv := f.mustIssue("1.2")

	snapshot := func() []byte {
		b, err := f.eng.Snapshot(f.ctx, inv.Address)
		if err != nil {
			t.Fatal(err)
		}
		return b
	}
	before := snapshot()

	_, err := f.eng.ConfirmSettlement(f.ctx, f.creditor, inv.Address)
	wantCode(t, err, settle.ErrUnsettledBalance, settle.CodeUnsettledBalance)
	if err.Error() == "" || !strings.Contains(err.Error(), "tried to confirm an unsettled invoice") {
		t.Errorf("message = %q", err.Error())
	}

	_, err = f.eng.ConfirmSettlement(f.ctx, f.debtor, inv.Address)
	wantCode(t, err, settle.ErrUnauthorized, settle.CodeUnauthorized)

	if !bytes.Equal(before, snapshot()) {
		t.Error("failed confirmation changed the encoded record")
	}

	// Debtor is refused even once the invoice is fully paid.
	if _, err := f.eng.Pay(f.ctx, f.debtor, inv.Address, types.MustParseAmount("1.2")); err != nil {
		t.Fatal(err)
	}
	paid := snapshot()
	_, err = f.eng.ConfirmSettlement(f.ctx, f.debtor, inv.Address)
	wantCode(t, err, settle.ErrUnauthorized, settle.CodeUnauthorized)
	if !bytes.Equal(paid, snapshot()) {
		t.Error("unauthorized confirmation changed the encoded record")
	}
}

func TestConfirmReleasePolicy(t *testing.T) {
	f := newFixture(t, settle.WithReservePolicy(settle.ReserveRelease))
	inv := f.mustIssue("1")
	if _, err := f.eng.Pay(f.ctx, f.debtor, inv.Address, types.Units(1)); err != nil {
		t.Fatal(err)
	}
	creditorBefore := f.balance(f.creditor)

	got, err := f.eng.ConfirmSettlement(f.ctx, f.creditor, inv.Address)
	if err != nil {
		t.Fatalf("ConfirmSettlement: %v", err)
	}
	if !got.IsReclaimed() {
		t.Error("invoice not marked reclaimed")
	}
	if f.balance(f.creditor)-creditorBefore != inv.Reserve {
		t.Error("reserve not returned to the creditor")
	}
	if f.holding(inv.Address) != 0 {
		t.Error("holding not emptied")
	}

	// The address is free for the next invoice on the same triple.
	next, err := f.issue("2", "")
	if err != nil {
		t.Fatalf("reissue: %v", err)
	}
	if next.Address != inv.Address || next.ID == inv.ID {
		t.Error("reissue should reuse the address with a new ID")
	}
	current, _ := f.eng.GetInvoice(f.ctx, inv.Address)
	if current.ID != next.ID {
		t.Error("GetInvoice should return the newest invoice at the address")
	}
	old, _ := f.eng.GetInvoiceByID(f.ctx, inv.ID)
	if old.State() != settle.StateSettled {
		t.Error("reclaimed invoice lost its history")
	}
}

// ──────────────────────────────────────────────────
// Reads and errors
// ──────────────────────────────────────────────────

func TestListInvoicesByState(t *testing.T) {
	f := newFixture(t)
	open := f.mustIssue("1")
	paid, err := f.issue("1", "paid")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.eng.Pay(f.ctx, f.debtor, paid.Address, types.Units(1)); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		state settle.State
		want  id.InvoiceID
	}{
		{settle.StateOpen, open.ID},
		{settle.StatePaidPending, paid.ID},
	}
	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			got, err := f.eng.ListInvoices(f.ctx, invoice.ListOpts{Creditor: f.creditor, State: tt.state})
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != 1 || got[0].ID != tt.want {
				t.Errorf("got %d invoices", len(got))
			}
		})
	}
}

func TestErrorFormat(t *testing.T) {
	f := newFixture(t)
	inv := f.mustIssue("1")

	_, err := f.eng.ConfirmSettlement(f.ctx, f.creditor, inv.Address)

	var serr *settle.Error
	if !errors.As(err, &serr) {
		t.Fatalf("err = %T, want *settle.Error", err)
	}
	if serr.Op != "confirm_settlement" || serr.Code != 301 {
		t.Errorf("op = %q, code = %d", serr.Op, serr.Code)
	}
	if !strings.Contains(err.Error(), "301") {
		t.Errorf("message %q lacks the code", err.Error())
	}
	if settle.CodeOf(errors.New("other")) != 0 {
		t.Error("CodeOf on a foreign error should be 0")
	}
}

func TestErrorCodesStable(t *testing.T) {
	tests := []struct {
		code settle.Code
		want int
		name string
	}{
		{settle.CodeInsufficientFunds, 300, "insufficient_funds"},
		{settle.CodeUnsettledBalance, 301, "unsettled_balance"},
		{settle.CodeAlreadySettled, 302, "already_settled"},
		{settle.CodeConflict, 310, "conflict"},
	}
	for _, tt := range tests {
		if int(tt.code) != tt.want || tt.code.String() != tt.name {
			t.Errorf("code %d (%s), want %d (%s)", tt.code, tt.code, tt.want, tt.name)
		}
	}
}
