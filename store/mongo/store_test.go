package mongo

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/settle/id"
	"github.com/xraph/settle/store/storetest"
	"github.com/xraph/settle/types"
)

func TestInvoiceModelActiveFlag(t *testing.T) {
	inv := storetest.NewInvoice("ns", types.Units(1))
	if m := toInvoiceModel(inv); !m.Active {
		t.Error("unreclaimed invoice should be active")
	}

	at := time.Now().UTC()
	inv.ConfirmedAt = &at
	inv.ReclaimedAt = &at
	m := toInvoiceModel(inv)
	if m.Active {
		t.Error("reclaimed invoice should not be active")
	}

	got, err := fromInvoiceModel(m)
	if err != nil {
		t.Fatalf("fromInvoiceModel: %v", err)
	}
	if got.Address != inv.Address || got.Creditor != inv.Creditor || got.Debtor != inv.Debtor {
		t.Error("keys not preserved")
	}
	if !got.IsReclaimed() || !got.IsSettled() {
		t.Errorf("state lost: %+v", got)
	}
}

func TestInvoiceModelBSON(t *testing.T) {
	m := toInvoiceModel(storetest.NewInvoice("", types.Units(2)))

	raw, err := bson.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if doc["_id"] != m.ID {
		t.Errorf("_id = %v, want %s", doc["_id"], m.ID)
	}
	for _, key := range []string{"address", "balance", "version", "active", "confirmed_at"} {
		if _, ok := doc[key]; !ok {
			t.Errorf("missing field %q", key)
		}
	}
}

func TestSwapFilter(t *testing.T) {
	invID := id.NewInvoiceID()
	f := swapFilter(invID, 7)

	if f["_id"] != invID.String() || f["version"] != int64(7) {
		t.Errorf("filter = %v", f)
	}
	if v, ok := f["confirmed_at"]; !ok || v != nil {
		t.Error("filter must require an unconfirmed invoice")
	}
}

func TestMigrationIndexes(t *testing.T) {
	idx := migrationIndexes()
	if len(idx[colInvoices]) == 0 || len(idx[colPayments]) == 0 {
		t.Fatalf("missing index definitions: %v", idx)
	}
}

func TestFromPaymentModelRejectsBadID(t *testing.T) {
	if _, err := fromPaymentModel(&paymentModel{ID: "bogus"}); err == nil {
		t.Fatal("expected parse error")
	}
}
