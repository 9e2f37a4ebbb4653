package extension

import (
	"time"

	settle "github.com/xraph/settle"
	"github.com/xraph/settle/custody"
)

// Config holds the Settle extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.settle" or "settle" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// MaxNamespaceLen is the longest accepted namespace in bytes (default: 32).
	MaxNamespaceLen int `json:"max_namespace_len" mapstructure:"max_namespace_len" yaml:"max_namespace_len"`

	// MaxMemoLen is the longest accepted memo in bytes (default: 256).
	MaxMemoLen int `json:"max_memo_len" mapstructure:"max_memo_len" yaml:"max_memo_len"`

	// ReservePolicy is "retain" (default) or "release".
	ReservePolicy settle.ReservePolicy `json:"reserve_policy" mapstructure:"reserve_policy" yaml:"reserve_policy"`

	// Rent sizes the storage reserve charged at issue.
	Rent custody.RentSchedule `json:"rent" mapstructure:"rent" yaml:"rent"`

	// PluginTimeout bounds every plugin hook call (default: 5s).
	PluginTimeout time.Duration `json:"plugin_timeout" mapstructure:"plugin_timeout" yaml:"plugin_timeout"`

	// RedisAddrs, when set, backs the balance directory with Redis instead
	// of process memory. One address selects a single node, several a cluster.
	RedisAddrs []string `json:"redis_addrs" mapstructure:"redis_addrs" yaml:"redis_addrs"`

	// RedisPrefix namespaces the balance keys (default: "settle:balance:").
	RedisPrefix string `json:"redis_prefix" mapstructure:"redis_prefix" yaml:"redis_prefix"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxNamespaceLen: settle.DefaultMaxNamespaceLen,
		MaxMemoLen:      settle.DefaultMaxMemoLen,
		ReservePolicy:   settle.ReserveRetain,
		Rent:            custody.DefaultRent(),
		PluginTimeout:   5 * time.Second,
	}
}
