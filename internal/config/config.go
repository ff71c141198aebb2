// Package config loads the service's YAML configuration file into a
// typed struct tree, applying defaults for anything left unset. The
// shape mirrors the teacher's provider-operations config: a top-level
// struct with nested, yaml-tagged sub-structs and a single Load entry
// point.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete runtime configuration for the ingestion
// pipeline, persistence layer, and report orchestrator. Load does not
// validate field values.
type Config struct {
	VenueBaseURL    string   `yaml:"venue_base_url"`
	VenueWSBaseURL  string   `yaml:"venue_ws_base_url"`
	DataPath        string   `yaml:"data_path"`
	TrackedSymbols  []string `yaml:"tracked_symbols"`

	SnapshotIntervalMS int `yaml:"snapshot_interval_ms"`
	TradeFlushMS       int `yaml:"trade_flush_ms"`

	RetentionSeconds int64 `yaml:"retention_seconds"`
	StoreByteBudget  int64 `yaml:"store_byte_budget"`

	RestRatePerSecond float64 `yaml:"rest_rate"`
	RestBurst         int     `yaml:"rest_burst"`

	ReportCacheTTLMS    int `yaml:"report_cache_ttl_ms"`
	ReportCacheCapacity int `yaml:"report_cache_capacity"`

	Microstructure MicrostructureConfig `yaml:"microstructure"`
	Metrics        MetricsConfig        `yaml:"metrics"`
}

// MicrostructureConfig carries the Open-Question constants spec.md §9
// leaves as "configurable" rather than fixed.
type MicrostructureConfig struct {
	TargetDepthUSD    float64 `yaml:"target_depth_usd"`
	TargetUpdatesPerS float64 `yaml:"target_updates_per_s"`
}

// MetricsConfig controls the ambient Prometheus registry.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// SnapshotInterval and TradeFlushInterval convert the config's
// millisecond fields into time.Duration for ticker construction.
func (c *Config) SnapshotInterval() time.Duration {
	return time.Duration(c.SnapshotIntervalMS) * time.Millisecond
}

func (c *Config) TradeFlushInterval() time.Duration {
	return time.Duration(c.TradeFlushMS) * time.Millisecond
}

func (c *Config) Retention() time.Duration {
	return time.Duration(c.RetentionSeconds) * time.Second
}

func (c *Config) ReportCacheTTL() time.Duration {
	return time.Duration(c.ReportCacheTTLMS) * time.Millisecond
}

// Default returns the configuration documented in spec.md §6.4.
func Default() *Config {
	return &Config{
		VenueBaseURL:        "https://api.binance.com",
		VenueWSBaseURL:      "wss://stream.binance.com:9443",
		DataPath:            "./data/analytics",
		TrackedSymbols:      []string{"BTCUSDT", "ETHUSDT"},
		SnapshotIntervalMS:  1000,
		TradeFlushMS:        1000,
		RetentionSeconds:    604800,
		StoreByteBudget:     1 << 30,
		RestRatePerSecond:   20,
		RestBurst:           40,
		ReportCacheTTLMS:    60000,
		ReportCacheCapacity: 256,
		Microstructure: MicrostructureConfig{
			TargetDepthUSD:    100000,
			TargetUpdatesPerS: 50,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    ":9090",
		},
	}
}

// Load reads a YAML file at path and overlays it on top of Default().
// A missing file is not an error; the caller gets defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
