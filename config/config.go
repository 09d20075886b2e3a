// Package config loads and validates the hub's process-wide configuration:
// naming limits, pool capacities, string size classes, and the optional
// NATS/metrics endpoints.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the complete hub configuration.
type Config struct {
	// MaxNameBytes bounds a single path segment (entry name); MaxPathBytes
	// bounds a fully-resolved resource path.
	MaxNameBytes int `json:"max_name_bytes"`
	MaxPathBytes int `json:"max_path_bytes"`

	// Pools sizes the entry and sample free lists at startup.
	Pools PoolConfig `json:"pools"`

	// NATS configures the optional change-notification publisher. URL
	// empty means the notifier is disabled and changes are dispatched
	// in-process only.
	NATS NATSConfig `json:"nats"`

	// Metrics configures the Prometheus HTTP endpoint.
	Metrics MetricsConfig `json:"metrics"`
}

// PoolConfig sizes the fixed-capacity pools backing entries, samples, and
// the three string size classes.
type PoolConfig struct {
	EntryCapacity  int `json:"entry_capacity"`
	SampleCapacity int `json:"sample_capacity"`

	StringSmallBytes  int `json:"string_small_bytes"`
	StringMediumBytes int `json:"string_medium_bytes"`
	StringLargeBytes  int `json:"string_large_bytes"`

	StringSmallCount  int `json:"string_small_count"`
	StringMediumCount int `json:"string_medium_count"`
	StringLargeCount  int `json:"string_large_count"`
}

// NATSConfig configures the change notifier's connection to the broker.
type NATSConfig struct {
	URL           string        `json:"url,omitempty"`
	MaxReconnects int           `json:"max_reconnects,omitempty"`
	ReconnectWait time.Duration `json:"reconnect_wait,omitempty"`
	Subject       string        `json:"subject,omitempty"`
}

// MetricsConfig configures the Prometheus HTTP server.
type MetricsConfig struct {
	ListenAddr string `json:"listen_addr"`
	Path       string `json:"path"`
}

// Validate checks the configuration for internal consistency, normalizing
// derivable defaults in place.
func (c *Config) Validate() error {
	if c.MaxNameBytes <= 0 {
		return fmt.Errorf("max_name_bytes must be positive, got %d", c.MaxNameBytes)
	}
	if c.MaxPathBytes <= 0 {
		return fmt.Errorf("max_path_bytes must be positive, got %d", c.MaxPathBytes)
	}
	if c.MaxPathBytes < c.MaxNameBytes {
		return fmt.Errorf("max_path_bytes (%d) cannot be smaller than max_name_bytes (%d)", c.MaxPathBytes, c.MaxNameBytes)
	}

	if err := c.Pools.validate(); err != nil {
		return fmt.Errorf("pools: %w", err)
	}

	if c.NATS.URL != "" {
		if c.NATS.Subject == "" {
			return fmt.Errorf("nats.subject is required when nats.url is set")
		}
		if c.NATS.MaxReconnects == 0 {
			c.NATS.MaxReconnects = -1
		}
		if c.NATS.ReconnectWait == 0 {
			c.NATS.ReconnectWait = 2 * time.Second
		}
	}

	if c.Metrics.ListenAddr == "" {
		return fmt.Errorf("metrics.listen_addr is required")
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}

	return nil
}

func (p *PoolConfig) validate() error {
	if p.EntryCapacity <= 0 {
		return fmt.Errorf("entry_capacity must be positive, got %d", p.EntryCapacity)
	}
	if p.SampleCapacity <= 0 {
		return fmt.Errorf("sample_capacity must be positive, got %d", p.SampleCapacity)
	}
	if p.StringSmallBytes <= 0 || p.StringMediumBytes <= 0 || p.StringLargeBytes <= 0 {
		return fmt.Errorf("string size classes must all be positive")
	}
	if !(p.StringSmallBytes < p.StringMediumBytes && p.StringMediumBytes < p.StringLargeBytes) {
		return fmt.Errorf("string size classes must be strictly increasing, got %d/%d/%d",
			p.StringSmallBytes, p.StringMediumBytes, p.StringLargeBytes)
	}
	if p.StringSmallCount <= 0 || p.StringMediumCount <= 0 || p.StringLargeCount <= 0 {
		return fmt.Errorf("string size class counts must all be positive")
	}
	return nil
}

// Default returns the built-in configuration used when no file or
// environment overrides are present.
func Default() *Config {
	return &Config{
		MaxNameBytes: 64,
		MaxPathBytes: 512,
		Pools: PoolConfig{
			EntryCapacity:     4096,
			SampleCapacity:    4096,
			StringSmallBytes:  32,
			StringMediumBytes: 256,
			StringLargeBytes:  4096,
			StringSmallCount:  2048,
			StringMediumCount: 512,
			StringLargeCount:  64,
		},
		Metrics: MetricsConfig{
			ListenAddr: ":9090",
			Path:       "/metrics",
		},
	}
}

// Loader loads configuration from an optional JSON file layered under the
// built-in defaults, then applies environment overrides.
type Loader struct {
	envPrefix string
}

// NewLoader creates a loader using the given environment variable prefix
// (e.g. "DATAHUB" reads DATAHUB_NATS_URL).
func NewLoader(envPrefix string) *Loader {
	return &Loader{envPrefix: envPrefix}
}

// LoadFile loads defaults, merges in the JSON file at path (if non-empty),
// applies environment overrides, and validates the result.
func (l *Loader) LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	l.applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (l *Loader) applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(l.envPrefix + "_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv(l.envPrefix + "_NATS_SUBJECT"); v != "" {
		cfg.NATS.Subject = v
	}
	if v := os.Getenv(l.envPrefix + "_METRICS_LISTEN_ADDR"); v != "" {
		cfg.Metrics.ListenAddr = v
	}
	if v := os.Getenv(l.envPrefix + "_MAX_NAME_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxNameBytes = n
		}
	}
	if v := os.Getenv(l.envPrefix + "_MAX_PATH_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxPathBytes = n
		}
	}
}

// String returns a JSON representation of the config, for logging at startup.
func (c *Config) String() string {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Sprintf("<config marshal error: %v>", err)
	}
	return string(data)
}
