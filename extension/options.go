package extension

import (
	"time"

	"github.com/xraph/grove"

	settle "github.com/xraph/settle"
	"github.com/xraph/settle/custody"
	"github.com/xraph/settle/plugin"
	"github.com/xraph/settle/store"
)

// Option configures the Settle Forge extension.
type Option func(*Extension)

// WithStore sets the store for the settle engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithGroveDB builds the store from a grove database. driver selects the
// backend package that matches the database's grove driver.
func WithGroveDB(db *grove.DB, driver Driver) Option {
	return func(e *Extension) {
		e.groveDB = db
		e.groveDriver = driver
	}
}

// WithDirectory sets the balance directory funds move through.
func WithDirectory(d custody.Directory) Option {
	return func(e *Extension) {
		e.dir = d
	}
}

// WithSettleOption passes a settle.Option through to the underlying engine.
func WithSettleOption(opt settle.Option) Option {
	return func(e *Extension) {
		e.settleOpts = append(e.settleOpts, opt)
	}
}

// WithPlugin registers a settle plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.settleOpts = append(e.settleOpts, settle.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithReservePolicy sets what happens to the storage reserve at confirmation.
func WithReservePolicy(p settle.ReservePolicy) Option {
	return func(e *Extension) { e.config.ReservePolicy = p }
}

// WithMaxNamespaceLen sets the longest accepted namespace.
func WithMaxNamespaceLen(n int) Option {
	return func(e *Extension) { e.config.MaxNamespaceLen = n }
}

// WithMaxMemoLen sets the longest accepted memo.
func WithMaxMemoLen(n int) Option {
	return func(e *Extension) { e.config.MaxMemoLen = n }
}

// WithPluginTimeout bounds every plugin hook call.
func WithPluginTimeout(d time.Duration) Option {
	return func(e *Extension) { e.config.PluginTimeout = d }
}

// WithRedis backs the balance directory with the Redis nodes at addrs.
func WithRedis(addrs ...string) Option {
	return func(e *Extension) { e.config.RedisAddrs = addrs }
}
