// Package config loads, defaults, and validates the mediasweep
// configuration, and provides factory functions that build the catalog
// store and backend adapters from it.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/mediasweep/mediasweep/pkg/classify"
)

// Config represents the complete mediasweep configuration.
//
// This structure captures all configurable aspects of the retention engine:
//   - Logging configuration
//   - Engine run-shaping (batch size, pacing, selection limit)
//   - Catalog store selection and configuration (store-specific)
//   - Backend adapter configuration (pin API, object store)
//   - Classifier heuristics
//   - Metrics exposure
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (MEDIASWEEP_*)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
//
// Store Configuration Pattern:
// The catalog section contains type-specific subsections (catalog.memory,
// catalog.badger) and only the section matching the selected type is used.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Engine contains run-shaping defaults applied to every policy
	Engine EngineConfig `mapstructure:"engine" yaml:"engine"`

	// Catalog specifies the catalog store type and type-specific configuration
	Catalog CatalogConfig `mapstructure:"catalog" yaml:"catalog"`

	// Backends contains the storage backend adapter configurations
	Backends BackendsConfig `mapstructure:"backends" yaml:"backends"`

	// Classifier holds the locator classification heuristics
	Classifier classify.Rules `mapstructure:"classifier" yaml:"classifier"`

	// Metrics controls the Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" yaml:"output" validate:"required"`
}

// EngineConfig contains run-shaping settings shared by every policy run.
type EngineConfig struct {
	// BatchSize is the number of records processed per paced batch
	BatchSize int `mapstructure:"batch_size" yaml:"batch_size" validate:"gte=0"`

	// BatchPause is the delay inserted between batches
	BatchPause time.Duration `mapstructure:"batch_pause" yaml:"batch_pause" validate:"gte=0"`

	// Limit caps the records a single run will consider
	Limit int `mapstructure:"limit" yaml:"limit" validate:"gte=0"`
}

// CatalogConfig specifies catalog store configuration.
//
// The Type field determines which store implementation is used.
// Only the corresponding type-specific configuration section is used.
type CatalogConfig struct {
	// Type specifies which catalog store implementation to use
	// Valid values: memory, badger
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=memory badger"`

	// Memory contains memory-specific configuration
	// Only used when Type = "memory"
	Memory map[string]any `mapstructure:"memory" yaml:"memory"`

	// Badger contains BadgerDB-specific configuration
	// Only used when Type = "badger"
	Badger map[string]any `mapstructure:"badger" yaml:"badger"`
}

// BackendsConfig contains the storage backend adapter configurations.
//
// Each adapter decodes its own section in its factory, so new adapter
// options never touch this struct.
type BackendsConfig struct {
	// Pin configures the content-addressed pin API adapter
	Pin map[string]any `mapstructure:"pin" yaml:"pin"`

	// ObjectStore configures the S3-compatible object store adapter
	ObjectStore map[string]any `mapstructure:"object_store" yaml:"object_store"`
}

// MetricsConfig controls the Prometheus metrics endpoint.
type MetricsConfig struct {
	// Enabled turns metric collection and the HTTP endpoint on
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the metrics HTTP port
	Port int `mapstructure:"port" yaml:"port" validate:"gte=0,lte=65535"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (MEDIASWEEP_*)
//  2. Configuration file
//  3. Default values
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use the MEDIASWEEP_ prefix with underscores.
	// Example: MEDIASWEEP_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("MEDIASWEEP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		// A missing config file is acceptable: defaults apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to the
// current directory if the home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "mediasweep")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "mediasweep")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}
