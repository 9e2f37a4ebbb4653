// Package redis provides a custody.Directory backed by Redis. Each balance
// is an integer key; transfers run as a single Lua script so the check and
// both updates are atomic on the server.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/settle/custody"
	"github.com/xraph/settle/types"
)

const defaultPrefix = "settle:balance:"

// transferScript returns 1 on success and 0 when the source is short.
// DECRBY keeps the funds check exact in int64. A failed credit undoes the
// debit before the error is returned.
var transferScript = goredis.NewScript(`
local left = redis.call('DECRBY', KEYS[1], ARGV[1])
if left < 0 then
  redis.call('INCRBY', KEYS[1], ARGV[1])
  return 0
end
local credited = redis.pcall('INCRBY', KEYS[2], ARGV[1])
if type(credited) == 'table' and credited.err then
  redis.call('INCRBY', KEYS[1], ARGV[1])
  return redis.error_reply(credited.err)
end
return 1
`)

// Directory stores balances in Redis.
type Directory struct {
	rdb    goredis.UniversalClient
	prefix string
}

var _ custody.Directory = (*Directory)(nil)

// Option configures a Directory.
type Option func(*Directory)

// WithPrefix sets the key prefix. The default is "settle:balance:".
func WithPrefix(prefix string) Option {
	return func(d *Directory) { d.prefix = prefix }
}

// New wraps an existing client.
func New(rdb goredis.UniversalClient, opts ...Option) *Directory {
	d := &Directory{rdb: rdb, prefix: defaultPrefix}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Directory) key(k types.Key) string {
	return d.prefix + k.String()
}

// Balance returns the balance of k. Missing keys hold zero.
func (d *Directory) Balance(ctx context.Context, k types.Key) (types.Amount, error) {
	v, err := d.rdb.Get(ctx, d.key(k)).Result()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("custody/redis: get balance: %w", err)
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("custody/redis: corrupt balance %q for %s", v, k.Short())
	}
	return types.Amount(n), nil
}

// Credit adds amount to k.
func (d *Directory) Credit(ctx context.Context, k types.Key, amount types.Amount) error {
	if !amount.Storable() {
		return fmt.Errorf("%w: amount %s out of range", custody.ErrInvalidTransfer, amount)
	}
	if err := d.rdb.IncrBy(ctx, d.key(k), int64(amount)).Err(); err != nil {
		return fmt.Errorf("custody/redis: credit: %w", err)
	}
	return nil
}

// Transfer moves amount from one key to another atomically.
func (d *Directory) Transfer(ctx context.Context, from, to types.Key, amount types.Amount) error {
	if from == to {
		return fmt.Errorf("%w: source and destination are the same", custody.ErrInvalidTransfer)
	}
	if !amount.Storable() {
		return fmt.Errorf("%w: amount %s out of range", custody.ErrInvalidTransfer, amount)
	}

	ok, err := transferScript.Run(ctx, d.rdb,
		[]string{d.key(from), d.key(to)},
		strconv.FormatUint(uint64(amount), 10),
	).Int()
	if err != nil {
		return fmt.Errorf("custody/redis: transfer: %w", err)
	}
	if ok == 0 {
		return fmt.Errorf("%w: %s short of %s", custody.ErrInsufficientFunds, from.Short(), amount)
	}
	return nil
}
