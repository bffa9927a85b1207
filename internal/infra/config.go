// Package infra carries the ambient concerns of the engine: configuration
// loading, logger construction, reconnect backoff and panic recovery.
package infra

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all runtime settings. Values are loaded from a YAML file
// and may be overridden by environment variables for deployment-sensitive
// fields.
type Config struct {
	Engine struct {
		// Slippage is the fractional price tolerance applied to every
		// execution-price resolution (0.001 = 10 bps).
		Slippage float64 `yaml:"slippage"`
		// MinQuantity is the smallest tradable absolute order quantity;
		// smaller orders are dropped.
		MinQuantity float64 `yaml:"min_quantity"`
	} `yaml:"engine"`

	Feed struct {
		WSURL           string `yaml:"ws_url"`
		ReadTimeoutSec  int    `yaml:"read_timeout_sec"`
		PingIntervalSec int    `yaml:"ping_interval_sec"`
	} `yaml:"feed"`

	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// DefaultConfig returns the configuration used when a field is absent.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Engine.MinQuantity = 1e-4
	cfg.Feed.ReadTimeoutSec = 60
	cfg.Feed.PingIntervalSec = 30
	cfg.Storage.Path = "trade_engine.db"
	cfg.Logging.Level = "info"
	return cfg
}

// LoadConfig reads and validates the configuration file, applying
// defaults and environment overrides.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	overrideWithEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// overrideWithEnv applies TRADE_* environment variables on top of the
// file values.
func overrideWithEnv(cfg *Config) {
	if v := os.Getenv("TRADE_FEED_WS_URL"); v != "" {
		cfg.Feed.WSURL = v
	}
	if v := os.Getenv("TRADE_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("TRADE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("TRADE_ENGINE_SLIPPAGE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Engine.Slippage = f
		}
	}
}

// Validate checks the configuration for values the engine cannot run with.
func (c *Config) Validate() error {
	if c.Engine.Slippage < 0 || c.Engine.Slippage >= 1 {
		return fmt.Errorf("engine.slippage %v out of range [0, 1)", c.Engine.Slippage)
	}
	if c.Engine.MinQuantity <= 0 {
		return fmt.Errorf("engine.min_quantity must be positive, got %v", c.Engine.MinQuantity)
	}
	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path must not be empty")
	}
	if c.Feed.ReadTimeoutSec <= 0 || c.Feed.PingIntervalSec <= 0 {
		return fmt.Errorf("feed timeouts must be positive")
	}
	return nil
}
