// Package config loads client settings from the environment.
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
)

// Storage backends.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Config holds the client settings.
type Config struct {
	// APIBaseURL is the backend API root.
	APIBaseURL string `env:"STOREFRONT_API_URL" envDefault:"http://localhost:5000/api"`

	// Storage selects where the cart and session persist.
	Storage     string `env:"STOREFRONT_STORAGE" envDefault:"sqlite"`
	SQLitePath  string `env:"STOREFRONT_SQLITE_PATH" envDefault:"./data/storefront.db"`
	RedisAddr   string `env:"STOREFRONT_REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPrefix string `env:"STOREFRONT_REDIS_PREFIX" envDefault:"storefront:"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Keep-alive windows for cached queries.
	VolatileKeepAlive time.Duration `env:"STOREFRONT_VOLATILE_KEEP_ALIVE" envDefault:"5s"`
	ConfigKeepAlive   time.Duration `env:"STOREFRONT_CONFIG_KEEP_ALIVE" envDefault:"5m"`

	// RequestTimeout bounds each HTTP call. Zero means none.
	RequestTimeout time.Duration `env:"STOREFRONT_REQUEST_TIMEOUT" envDefault:"0s"`

	// Trace prints spans of remote calls to stderr.
	Trace bool `env:"STOREFRONT_TRACE" envDefault:"false"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses and validates the Config.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks settings that parse but cannot work.
func (c Config) Validate() error {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid STOREFRONT_API_URL %q", c.APIBaseURL)
	}

	switch c.Storage {
	case BackendSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("STOREFRONT_SQLITE_PATH is required for the sqlite backend")
		}
	case BackendRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("STOREFRONT_REDIS_ADDR is required for the redis backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown STOREFRONT_STORAGE %q (want sqlite, redis or memory)", c.Storage)
	}

	if c.VolatileKeepAlive <= 0 || c.ConfigKeepAlive <= 0 {
		return fmt.Errorf("keep-alive windows must be positive")
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("STOREFRONT_REQUEST_TIMEOUT must not be negative")
	}
	return nil
}
