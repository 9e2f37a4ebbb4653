// Package extension provides the Forge extension adapter for Settle.
//
// It implements the forge.Extension interface to integrate Settle
// into a Forge application with DI registration and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.settle" or "settle" keys.
package extension

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"github.com/xraph/forge"
	"github.com/xraph/grove"
	"github.com/xraph/vessel"

	settle "github.com/xraph/settle"
	"github.com/xraph/settle/custody"
	custodymem "github.com/xraph/settle/custody/memory"
	custodyredis "github.com/xraph/settle/custody/redis"
	"github.com/xraph/settle/store"
	"github.com/xraph/settle/store/memory"
	"github.com/xraph/settle/store/mongo"
	"github.com/xraph/settle/store/postgres"
	"github.com/xraph/settle/store/sqlite"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "settle"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Invoice settlement ledger"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Driver names the grove driver behind a database passed to WithGroveDB.
type Driver string

// Supported grove drivers.
const (
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
	DriverMongo    Driver = "mongo"
)

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts Settle as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *settle.Engine
	store      store.Store
	dir        custody.Directory
	settleOpts []settle.Option

	groveDB     *grove.DB
	groveDriver Driver

	// redis is set when the extension opened the client itself.
	redis goredis.UniversalClient
}

// New creates a new Settle Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying Settle engine.
// This is nil until Register is called.
func (e *Extension) Engine() *settle.Engine { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the settle engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	if err := e.resolveStore(); err != nil {
		return err
	}
	e.resolveDirectory()

	e.engine = settle.New(e.store, e.dir, e.buildSettleOpts()...)

	return vessel.Provide(fapp.Container(), func() (*settle.Engine, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("settle: extension not initialized")
	}

	if err := e.engine.Start(ctx); err != nil {
		return err
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	defer e.MarkStopped()

	var errs []error
	if e.engine != nil {
		errs = append(errs, e.engine.Stop())
	}
	if e.redis != nil {
		errs = append(errs, e.redis.Close())
	}
	return errors.Join(errs...)
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("settle: store not initialized")
	}
	if err := e.store.Ping(ctx); err != nil {
		return err
	}
	if e.redis != nil {
		return e.redis.Ping(ctx).Err()
	}
	return nil
}

// resolveStore picks the store: an explicit one, then a grove database,
// then process memory.
func (e *Extension) resolveStore() error {
	if e.store != nil {
		return nil
	}
	if e.groveDB == nil {
		e.store = memory.New()
		return nil
	}

	switch e.groveDriver {
	case DriverPostgres:
		e.store = postgres.New(e.groveDB)
	case DriverSQLite:
		e.store = sqlite.New(e.groveDB)
	case DriverMongo:
		e.store = mongo.New(e.groveDB)
	default:
		return fmt.Errorf("settle: unsupported grove driver %q", e.groveDriver)
	}
	return nil
}

// resolveDirectory picks the balance directory: an explicit one, then
// Redis when addresses are configured, then process memory.
func (e *Extension) resolveDirectory() {
	if e.dir != nil {
		return
	}
	if len(e.config.RedisAddrs) == 0 {
		e.dir = custodymem.New()
		return
	}

	e.redis = goredis.NewUniversalClient(&goredis.UniversalOptions{
		Addrs: e.config.RedisAddrs,
	})

	var opts []custodyredis.Option
	if e.config.RedisPrefix != "" {
		opts = append(opts, custodyredis.WithPrefix(e.config.RedisPrefix))
	}
	e.dir = custodyredis.New(e.redis, opts...)
}

// buildSettleOpts constructs settle.Option values from the resolved config.
func (e *Extension) buildSettleOpts() []settle.Option {
	opts := make([]settle.Option, 0, len(e.settleOpts)+6)

	opts = append(opts,
		settle.WithMaxNamespaceLen(e.config.MaxNamespaceLen),
		settle.WithMaxMemoLen(e.config.MaxMemoLen),
		settle.WithReservePolicy(e.config.ReservePolicy),
		settle.WithRentSchedule(e.config.Rent),
		settle.WithPluginTimeout(e.config.PluginTimeout),
	)
	if e.config.DisableMigrate {
		opts = append(opts, settle.WithSkipMigrate())
	}

	// Append any pass-through settle options.
	opts = append(opts, e.settleOpts...)

	return opts
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("settle: configuration is required but not found in config files; " +
				"ensure 'extensions.settle' or 'settle' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	if err := validateConfig(e.config); err != nil {
		return err
	}

	e.Logger().Debug("settle: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("max_namespace_len", e.config.MaxNamespaceLen),
		forge.F("max_memo_len", e.config.MaxMemoLen),
		forge.F("reserve_policy", string(e.config.ReservePolicy)),
		forge.F("plugin_timeout", e.config.PluginTimeout),
		forge.F("redis", len(e.config.RedisAddrs) > 0),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	for _, key := range []string{"extensions.settle", "settle"} {
		if !cm.IsSet(key) {
			continue
		}
		if err := cm.Bind(key, &cfg); err != nil {
			e.Logger().Warn("settle: failed to bind config",
				forge.F("key", key),
				forge.F("error", err.Error()),
			)
			continue
		}
		e.Logger().Debug("settle: loaded config from file",
			forge.F("key", key),
		)
		return cfg, true
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.MaxNamespaceLen == 0 {
		cfg.MaxNamespaceLen = defaults.MaxNamespaceLen
	}
	if cfg.MaxMemoLen == 0 {
		cfg.MaxMemoLen = defaults.MaxMemoLen
	}
	if cfg.ReservePolicy == "" {
		cfg.ReservePolicy = defaults.ReservePolicy
	}
	if cfg.Rent == (custody.RentSchedule{}) {
		cfg.Rent = defaults.Rent
	}
	if cfg.PluginTimeout == 0 {
		cfg.PluginTimeout = defaults.PluginTimeout
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic values fill gaps.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}

	if yamlConfig.MaxNamespaceLen == 0 {
		yamlConfig.MaxNamespaceLen = programmaticConfig.MaxNamespaceLen
	}
	if yamlConfig.MaxMemoLen == 0 {
		yamlConfig.MaxMemoLen = programmaticConfig.MaxMemoLen
	}
	if yamlConfig.ReservePolicy == "" {
		yamlConfig.ReservePolicy = programmaticConfig.ReservePolicy
	}
	if yamlConfig.Rent == (custody.RentSchedule{}) {
		yamlConfig.Rent = programmaticConfig.Rent
	}
	if yamlConfig.PluginTimeout == 0 {
		yamlConfig.PluginTimeout = programmaticConfig.PluginTimeout
	}
	if len(yamlConfig.RedisAddrs) == 0 {
		yamlConfig.RedisAddrs = programmaticConfig.RedisAddrs
	}
	if yamlConfig.RedisPrefix == "" {
		yamlConfig.RedisPrefix = programmaticConfig.RedisPrefix
	}

	// Fill remaining zeros with defaults.
	return mergeWithDefaults(yamlConfig)
}

func validateConfig(cfg Config) error {
	switch cfg.ReservePolicy {
	case settle.ReserveRetain, settle.ReserveRelease:
	default:
		return fmt.Errorf("settle: unknown reserve policy %q", cfg.ReservePolicy)
	}
	if cfg.MaxNamespaceLen < 0 || cfg.MaxMemoLen < 0 {
		return errors.New("settle: length limits must not be negative")
	}
	return nil
}
