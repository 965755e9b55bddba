package config

import (
	"strings"
	"time"

	"github.com/mediasweep/mediasweep/pkg/classify"
	"github.com/mediasweep/mediasweep/pkg/retention"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Called after loading configuration from file and environment variables to
// fill in missing values.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
//   - Store-specific defaults are handled by store implementations
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyEngineDefaults(&cfg.Engine)
	applyCatalogDefaults(&cfg.Catalog)
	applyBackendsDefaults(&cfg.Backends)
	applyClassifierDefaults(&cfg.Classifier)
	applyMetricsDefaults(&cfg.Metrics)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyEngineDefaults sets run-shaping defaults.
func applyEngineDefaults(cfg *EngineConfig) {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = retention.DefaultBatchSize
	}
	if cfg.BatchPause == 0 {
		cfg.BatchPause = 2 * time.Second
	}
	if cfg.Limit == 0 {
		cfg.Limit = retention.DefaultLimit
	}
}

// applyCatalogDefaults sets catalog store defaults.
func applyCatalogDefaults(cfg *CatalogConfig) {
	if cfg.Type == "" {
		cfg.Type = "memory"
	}

	if cfg.Memory == nil {
		cfg.Memory = make(map[string]any)
	}
	if cfg.Badger == nil {
		cfg.Badger = make(map[string]any)
	}
}

// applyBackendsDefaults initializes the adapter sections.
func applyBackendsDefaults(cfg *BackendsConfig) {
	if cfg.Pin == nil {
		cfg.Pin = make(map[string]any)
	}
	if cfg.ObjectStore == nil {
		cfg.ObjectStore = make(map[string]any)
	}
}

// applyClassifierDefaults fills in the production heuristics for any rule
// the operator did not override.
func applyClassifierDefaults(cfg *classify.Rules) {
	defaults := classify.DefaultRules()

	if cfg.HashPrefix == "" {
		cfg.HashPrefix = defaults.HashPrefix
	}
	if cfg.HashLength == 0 {
		cfg.HashLength = defaults.HashLength
	}
	if cfg.HashAlphabet == "" {
		cfg.HashAlphabet = defaults.HashAlphabet
	}
	if cfg.SessionTokenLengths == nil {
		cfg.SessionTokenLengths = defaults.SessionTokenLengths
	}
	if cfg.Resolutions == nil {
		cfg.Resolutions = defaults.Resolutions
	}
	if cfg.PlaylistSuffix == "" {
		cfg.PlaylistSuffix = defaults.PlaylistSuffix
	}
	if cfg.ThumbnailDir == "" {
		cfg.ThumbnailDir = defaults.ThumbnailDir
	}
}

// applyMetricsDefaults sets metrics defaults.
func applyMetricsDefaults(cfg *MetricsConfig) {
	// Enabled defaults to false
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// Useful for generating sample configuration files and for tests.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
