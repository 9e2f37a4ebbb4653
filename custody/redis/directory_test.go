package redis

import (
	"context"
	"errors"
	"os"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/settle/custody"
	"github.com/xraph/settle/types"
)

// newTestDirectory uses an in-process server unless REDIS_ADDR points at a
// real one.
func newTestDirectory(t *testing.T) (*Directory, goredis.UniversalClient) {
	t.Helper()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = miniredis.RunT(t).Addr()
	}

	rdb := goredis.NewClient(&goredis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("redis ping: %v", err)
	}

	return New(rdb, WithPrefix("settle:test:"+types.NewKey().Short()+":")), rdb
}

func TestRedisTransfer(t *testing.T) {
	ctx := context.Background()
	d, _ := newTestDirectory(t)
	a, b := types.NewKey(), types.NewKey()

	if err := d.Credit(ctx, a, 100); err != nil {
		t.Fatalf("Credit: %v", err)
	}
	if err := d.Transfer(ctx, a, b, 30); err != nil {
		t.Fatalf("Transfer: %v", err)
	}

	if got, _ := d.Balance(ctx, a); got != 70 {
		t.Errorf("source = %d, want 70", got)
	}
	if got, _ := d.Balance(ctx, b); got != 30 {
		t.Errorf("destination = %d, want 30", got)
	}
}

func TestRedisTransferInsufficient(t *testing.T) {
	ctx := context.Background()
	const big = types.Amount(1 << 53)

	tests := []struct {
		name     string
		balance  types.Amount
		transfer types.Amount
	}{
		{"small", 5, 6},
		{"empty source", 0, 1},
		{"one short above float precision", big, big + 1},
		{"max storable", types.MaxStorable - 1, types.MaxStorable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _ := newTestDirectory(t)
			a, b := types.NewKey(), types.NewKey()

			if tt.balance > 0 {
				if err := d.Credit(ctx, a, tt.balance); err != nil {
					t.Fatalf("Credit: %v", err)
				}
			}
			err := d.Transfer(ctx, a, b, tt.transfer)
			if !errors.Is(err, custody.ErrInsufficientFunds) {
				t.Fatalf("got %v, want ErrInsufficientFunds", err)
			}

			got, err := d.Balance(ctx, a)
			if err != nil {
				t.Fatalf("Balance(source): %v", err)
			}
			if got != tt.balance {
				t.Errorf("source = %d, want %d", got, tt.balance)
			}
			if got, _ := d.Balance(ctx, b); got != 0 {
				t.Errorf("destination = %d, want 0", got)
			}
		})
	}
}

func TestRedisTransferExactAboveFloatPrecision(t *testing.T) {
	ctx := context.Background()
	d, _ := newTestDirectory(t)
	a, b := types.NewKey(), types.NewKey()
	const big = types.Amount(1<<53 + 1)

	if err := d.Credit(ctx, a, big); err != nil {
		t.Fatalf("Credit: %v", err)
	}
	if err := d.Transfer(ctx, a, b, big); err != nil {
		t.Fatalf("Transfer: %v", err)
	}

	if got, _ := d.Balance(ctx, a); got != 0 {
		t.Errorf("source = %d, want 0", got)
	}
	if got, _ := d.Balance(ctx, b); got != big {
		t.Errorf("destination = %d, want %d", got, big)
	}
}

func TestRedisTransferCreditOverflowRestoresSource(t *testing.T) {
	ctx := context.Background()
	d, rdb := newTestDirectory(t)
	a, b := types.NewKey(), types.NewKey()

	if err := d.Credit(ctx, a, 10); err != nil {
		t.Fatalf("Credit: %v", err)
	}
	full := strconv.FormatInt(int64(types.MaxStorable), 10)
	if err := rdb.Set(ctx, d.key(b), full, 0).Err(); err != nil {
		t.Fatalf("seed destination: %v", err)
	}

	if err := d.Transfer(ctx, a, b, 10); err == nil {
		t.Fatal("expected overflow error")
	}
	if got, _ := d.Balance(ctx, a); got != 10 {
		t.Errorf("source = %d, want 10", got)
	}
	if got, _ := d.Balance(ctx, b); got != types.MaxStorable {
		t.Errorf("destination = %d, want %d", got, types.MaxStorable)
	}
}

func TestRedisTransferRejects(t *testing.T) {
	ctx := context.Background()
	d, _ := newTestDirectory(t)
	a := types.NewKey()

	if err := d.Transfer(ctx, a, a, 1); !errors.Is(err, custody.ErrInvalidTransfer) {
		t.Errorf("self transfer: got %v", err)
	}
	if err := d.Transfer(ctx, a, types.NewKey(), types.MaxStorable+1); !errors.Is(err, custody.ErrInvalidTransfer) {
		t.Errorf("unstorable amount: got %v", err)
	}
}

func TestRedisBalanceMissingKey(t *testing.T) {
	d, _ := newTestDirectory(t)
	got, err := d.Balance(context.Background(), types.NewKey())
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if got != 0 {
		t.Errorf("missing key = %d, want 0", got)
	}
}
