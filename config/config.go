// Package config supplies engine configuration from the environment or a
// yaml file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// DefaultMaxValueBytes bounds the size of a single translation value.
const DefaultMaxValueBytes = 100_000

// Localization is the engine configuration.
type Localization struct {
	LogLevel string `envDefault:"info" env:"LOG_LEVEL" yaml:"log_level"`

	DatabaseURL        string `env:"DATABASE_URL"         yaml:"database_url"`
	ReplicaDatabaseURL string `env:"REPLICA_DATABASE_URL" yaml:"replica_database_url"`

	// CacheURI selects the caching tier by scheme: redis://, valkey:// or
	// mem:// (default).
	CacheURI string `envDefault:"mem://" env:"CACHE_URI" yaml:"cache_uri"`

	// NatsURL enables cross-replica invalidation broadcasting when set.
	NatsURL string `env:"NATS_URL" yaml:"nats_url"`

	Locales    []string `envDefault:"en,th" env:"LOCALES"     yaml:"locales"`
	BaseLocale string   `envDefault:"en"    env:"BASE_LOCALE" yaml:"base_locale"`

	CacheTTL          time.Duration `envDefault:"15m"   env:"CACHE_TTL"            yaml:"cache_ttl"`
	CacheTTLJitterPct int           `envDefault:"10"    env:"CACHE_TTL_JITTER_PCT" yaml:"cache_ttl_jitter_pct"`
	CacheOpTimeout    time.Duration `envDefault:"150ms" env:"CACHE_OP_TIMEOUT"     yaml:"cache_op_timeout"`

	MaxValueBytes int `envDefault:"100000" env:"MAX_VALUE_BYTES" yaml:"max_value_bytes"`

	SeedPath string `envDefault:"localization" env:"SEED_PATH" yaml:"seed_path"`

	WorkerPoolSize int `envDefault:"10" env:"WORKER_POOL_SIZE" yaml:"worker_pool_size"`
}

// FromEnv convenience method to process configs.
func FromEnv[T any]() (T, error) {
	return env.ParseAs[T]()
}

// FromYAMLFile loads configuration from a yaml file, with environment values
// filling whatever the file leaves unset.
func FromYAMLFile[T any](path string) (T, error) {
	cfg, err := FromEnv[T]()
	if err != nil {
		return cfg, err
	}

	raw, err := os.ReadFile(path) // #nosec G304 - path is operator supplied
	if err != nil {
		return cfg, err
	}

	if err = yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Validate checks the locale set is parseable and contains the base locale.
func (c *Localization) Validate() error {
	if len(c.Locales) == 0 {
		return fmt.Errorf("at least one locale must be configured")
	}

	baseFound := false
	for _, locale := range c.Locales {
		if _, err := language.Parse(locale); err != nil {
			return fmt.Errorf("invalid locale %q: %w", locale, err)
		}
		if locale == c.BaseLocale {
			baseFound = true
		}
	}

	if !baseFound {
		return fmt.Errorf("base locale %q is not in the configured locale set %v", c.BaseLocale, c.Locales)
	}

	if c.MaxValueBytes <= 0 {
		c.MaxValueBytes = DefaultMaxValueBytes
	}

	return nil
}

// Matcher builds a language matcher over the configured locale set, with the
// base locale as the default when nothing matches.
func (c *Localization) Matcher() (language.Matcher, error) {
	tags := make([]language.Tag, 0, len(c.Locales))

	base, err := language.Parse(c.BaseLocale)
	if err != nil {
		return nil, err
	}
	tags = append(tags, base)

	for _, locale := range c.Locales {
		if locale == c.BaseLocale {
			continue
		}
		tag, parseErr := language.Parse(locale)
		if parseErr != nil {
			return nil, parseErr
		}
		tags = append(tags, tag)
	}

	return language.NewMatcher(tags), nil
}

// MatchLocale maps an arbitrary requested tag, e.g. from an Accept-Language
// header, onto the configured locale set. Unknown tags land on the base
// locale.
func (c *Localization) MatchLocale(requested string) string {
	matcher, err := c.Matcher()
	if err != nil {
		return c.BaseLocale
	}

	_, idx := language.MatchStrings(matcher, requested)
	if idx < 0 || idx >= len(c.Locales) {
		return c.BaseLocale
	}

	// Matcher tag order: base first, then the rest in configured order.
	ordered := make([]string, 0, len(c.Locales))
	ordered = append(ordered, c.BaseLocale)
	for _, locale := range c.Locales {
		if locale != c.BaseLocale {
			ordered = append(ordered, locale)
		}
	}
	return ordered[idx]
}
