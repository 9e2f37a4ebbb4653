package extension

import (
	"testing"
	"time"

	settle "github.com/xraph/settle"
	"github.com/xraph/settle/custody"
	custodymem "github.com/xraph/settle/custody/memory"
	custodyredis "github.com/xraph/settle/custody/redis"
	"github.com/xraph/settle/store/memory"
)

func TestMergeWithDefaults(t *testing.T) {
	cfg := mergeWithDefaults(Config{MaxMemoLen: 64})

	if cfg.MaxMemoLen != 64 {
		t.Errorf("MaxMemoLen = %d, want 64", cfg.MaxMemoLen)
	}
	if cfg.MaxNamespaceLen != settle.DefaultMaxNamespaceLen {
		t.Errorf("MaxNamespaceLen = %d", cfg.MaxNamespaceLen)
	}
	if cfg.ReservePolicy != settle.ReserveRetain {
		t.Errorf("ReservePolicy = %q", cfg.ReservePolicy)
	}
	if cfg.Rent != custody.DefaultRent() {
		t.Errorf("Rent = %+v", cfg.Rent)
	}
	if cfg.PluginTimeout != 5*time.Second {
		t.Errorf("PluginTimeout = %v", cfg.PluginTimeout)
	}
}

func TestMergeConfigurations(t *testing.T) {
	tests := []struct {
		name  string
		yaml  Config
		prog  Config
		check func(t *testing.T, cfg Config)
	}{
		{
			name: "yaml wins",
			yaml: Config{ReservePolicy: settle.ReserveRelease, MaxNamespaceLen: 16},
			prog: Config{ReservePolicy: settle.ReserveRetain, MaxNamespaceLen: 8},
			check: func(t *testing.T, cfg Config) {
				if cfg.ReservePolicy != settle.ReserveRelease || cfg.MaxNamespaceLen != 16 {
					t.Errorf("got %+v", cfg)
				}
			},
		},
		{
			name: "programmatic fills gaps",
			prog: Config{RedisAddrs: []string{"localhost:6379"}, RedisPrefix: "x:", PluginTimeout: time.Second},
			check: func(t *testing.T, cfg Config) {
				if len(cfg.RedisAddrs) != 1 || cfg.RedisPrefix != "x:" || cfg.PluginTimeout != time.Second {
					t.Errorf("got %+v", cfg)
				}
			},
		},
		{
			name: "programmatic disable migrate",
			prog: Config{DisableMigrate: true},
			check: func(t *testing.T, cfg Config) {
				if !cfg.DisableMigrate {
					t.Error("DisableMigrate lost")
				}
			},
		},
		{
			name: "defaults after merge",
			check: func(t *testing.T, cfg Config) {
				if cfg.MaxMemoLen != settle.DefaultMaxMemoLen {
					t.Errorf("MaxMemoLen = %d", cfg.MaxMemoLen)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, mergeConfigurations(tt.yaml, tt.prog))
		})
	}
}

func TestValidateConfig(t *testing.T) {
	if err := validateConfig(DefaultConfig()); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	bad := DefaultConfig()
	bad.ReservePolicy = "burn"
	if err := validateConfig(bad); err == nil {
		t.Error("expected error for unknown policy")
	}

	bad = DefaultConfig()
	bad.MaxMemoLen = -1
	if err := validateConfig(bad); err == nil {
		t.Error("expected error for negative limit")
	}
}

func TestResolveBackends(t *testing.T) {
	t.Run("defaults to memory", func(t *testing.T) {
		e := New()
		e.config = DefaultConfig()
		if err := e.resolveStore(); err != nil {
			t.Fatal(err)
		}
		e.resolveDirectory()

		if _, ok := e.store.(*memory.Store); !ok {
			t.Errorf("store = %T, want *memory.Store", e.store)
		}
		if _, ok := e.dir.(*custodymem.Directory); !ok {
			t.Errorf("dir = %T, want *memory.Directory", e.dir)
		}
	})

	t.Run("explicit store kept", func(t *testing.T) {
		s := memory.New()
		e := New(WithStore(s))
		if err := e.resolveStore(); err != nil {
			t.Fatal(err)
		}
		if e.store != s {
			t.Error("explicit store replaced")
		}
	})

	t.Run("nil grove db falls back to memory", func(t *testing.T) {
		e := New()
		e.groveDB = nil
		e.groveDriver = "oracle"
		if err := e.resolveStore(); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("redis directory", func(t *testing.T) {
		e := New(WithRedis("127.0.0.1:6379"))
		e.config = mergeWithDefaults(e.config)
		e.resolveDirectory()
		defer e.redis.Close() //nolint:errcheck // test cleanup

		if _, ok := e.dir.(*custodyredis.Directory); !ok {
			t.Errorf("dir = %T, want *redis.Directory", e.dir)
		}
	})
}

func TestBuildSettleOpts(t *testing.T) {
	e := New(WithDisableMigrate(), WithSettleOption(settle.WithMaxMemoLen(1)))
	e.config = mergeWithDefaults(e.config)

	// Five config options, skip-migrate, and the pass-through.
	if got := len(e.buildSettleOpts()); got != 7 {
		t.Errorf("len(opts) = %d, want 7", got)
	}
}
