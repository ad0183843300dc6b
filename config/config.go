// Package config loads the YAML configuration of the randselect server.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/unkn0wn-root/randselect/coherency"
)

// Config is the root of the YAML file. Zero fields take the values of Default.
type Config struct {
	Namespace string `yaml:"namespace"`
	Listen    string `yaml:"listen"`

	Log             LogConfig          `yaml:"log"`
	RenderCache     CacheConfig        `yaml:"render_cache"`
	ValidationCache CacheConfig        `yaml:"validation_cache"`
	Redis           RedisConfig        `yaml:"redis"`
	Store           StoreConfig        `yaml:"store"`
	Coherency       coherency.Config   `yaml:"coherency"`
	Substitution    SubstitutionConfig `yaml:"substitution"`
	Hooks           HooksConfig        `yaml:"hooks"`

	// CDNMaxAge is the shared-cache lifetime of pages without randomization.
	CDNMaxAge time.Duration `yaml:"cdn_max_age"`

	// Pages are loaded into the in-memory page source at startup.
	Pages []PageSeed `yaml:"pages"`
}

type LogConfig struct {
	Backend string `yaml:"backend"` // zap | logrus | slog
	Level   string `yaml:"level"`   // debug | info | warn | error
}

// CacheConfig selects and sizes a byte provider.
type CacheConfig struct {
	Provider string        `yaml:"provider"` // ristretto | bigcache | redis
	Codec    string        `yaml:"codec"`    // cbor | msgpack | json (render cache only)
	GenStore string        `yaml:"genstore"` // local | redis (render cache only)
	TTL      time.Duration `yaml:"ttl"`
	Disabled bool          `yaml:"disabled"`

	MaxCost     int64 `yaml:"max_cost"`     // ristretto
	NumCounters int64 `yaml:"num_counters"` // ristretto
	MaxSizeMB   int   `yaml:"max_size_mb"`  // bigcache
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type StoreConfig struct {
	Driver string `yaml:"driver"` // sqlite | memory
	DSN    string `yaml:"dsn"`
}

type SubstitutionConfig struct {
	MaxPasses             int    `yaml:"max_passes"`
	InvalidWeightsMessage string `yaml:"invalid_weights_message"`
}

type HooksConfig struct {
	Metrics     bool `yaml:"metrics"`
	LogEvents   bool `yaml:"log_events"`
	AsyncQueue  int  `yaml:"async_queue"` // 0 => synchronous
	SelfHealLog int  `yaml:"self_heal_log_every"`
}

type PageSeed struct {
	ID     uint64 `yaml:"id"`
	Title  string `yaml:"title"`
	Source string `yaml:"source"`
}

// Default returns a single-process configuration with in-memory backends.
func Default() Config {
	return Config{
		Namespace: "wiki",
		Listen:    ":8080",
		Log:       LogConfig{Backend: "zap", Level: "info"},
		RenderCache: CacheConfig{
			Provider:    "ristretto",
			Codec:       "cbor",
			GenStore:    "local",
			TTL:         24 * time.Hour,
			MaxCost:     64 << 20,
			NumCounters: 1e5,
		},
		ValidationCache: CacheConfig{
			Provider:  "bigcache",
			TTL:       coherency.DefaultValidationTTL,
			MaxSizeMB: 16,
		},
		Store:     StoreConfig{Driver: "sqlite", DSN: "file:randselect.db?_pragma=busy_timeout(5000)"},
		Hooks:     HooksConfig{Metrics: true},
		CDNMaxAge: time.Hour,
	}
}

// Load reads path over Default and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Namespace == "" {
		errs = append(errs, errors.New("namespace is required"))
	}
	switch c.Log.Backend {
	case "zap", "logrus", "slog":
	default:
		errs = append(errs, fmt.Errorf("log.backend %q: want zap, logrus or slog", c.Log.Backend))
	}
	errs = append(errs, c.RenderCache.validate("render_cache")...)
	errs = append(errs, c.ValidationCache.validate("validation_cache")...)
	switch c.RenderCache.Codec {
	case "cbor", "msgpack", "json":
	default:
		errs = append(errs, fmt.Errorf("render_cache.codec %q: want cbor, msgpack or json", c.RenderCache.Codec))
	}
	switch c.RenderCache.GenStore {
	case "local":
	case "redis":
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("render_cache.genstore redis needs redis.addr"))
		}
	default:
		errs = append(errs, fmt.Errorf("render_cache.genstore %q: want local or redis", c.RenderCache.GenStore))
	}
	if (c.RenderCache.Provider == "redis" || c.ValidationCache.Provider == "redis") && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis provider needs redis.addr"))
	}
	switch c.Store.Driver {
	case "memory":
	case "sqlite":
		if c.Store.DSN == "" {
			errs = append(errs, errors.New("store.dsn is required for sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.driver %q: want sqlite or memory", c.Store.Driver))
	}
	if c.Substitution.MaxPasses < 0 {
		errs = append(errs, errors.New("substitution.max_passes must not be negative"))
	}
	for i, p := range c.Pages {
		if p.ID == 0 {
			errs = append(errs, fmt.Errorf("pages[%d]: id is required", i))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

func (cc CacheConfig) validate(name string) []error {
	switch cc.Provider {
	case "ristretto", "bigcache", "redis":
		return nil
	default:
		return []error{fmt.Errorf("%s.provider %q: want ristretto, bigcache or redis", name, cc.Provider)}
	}
}
