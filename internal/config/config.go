// Package config provides an optional YAML config loader for
// process-style deployment (cmd/tradecore). Programmatic construction
// remains the primary way to embed this module; nothing here is
// required for library use.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/quantis-labs/tradecore/internal/ingestion"
)

// RuntimeConfig mirrors the runtime options spec.md §6 recognizes.
type RuntimeConfig struct {
	Symbols             []string `mapstructure:"symbols" yaml:"symbols"`
	APIKey              string   `mapstructure:"apiKey" yaml:"apiKey"`
	UpdateIntervalMs    int      `mapstructure:"updateIntervalMs" yaml:"updateIntervalMs"`
	MinUpdateIntervalMs int      `mapstructure:"minUpdateIntervalMs" yaml:"minUpdateIntervalMs"`
}

// UpdateInterval converts UpdateIntervalMs to a time.Duration.
func (c RuntimeConfig) UpdateInterval() time.Duration {
	return time.Duration(c.UpdateIntervalMs) * time.Millisecond
}

// MinUpdateInterval converts MinUpdateIntervalMs to a time.Duration.
func (c RuntimeConfig) MinUpdateInterval() time.Duration {
	return time.Duration(c.MinUpdateIntervalMs) * time.Millisecond
}

// DefaultRuntimeConfig returns spec.md §6's defaults: the vendor's
// quoted 12ms cadence for both intervals and the default tracked
// symbol seed list carried forward from original_source.
func DefaultRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{
		Symbols:             ingestion.DefaultSymbols(),
		UpdateIntervalMs:    12,
		MinUpdateIntervalMs: 12,
	}
}

// Load reads a YAML (or any viper-supported format) config file at
// path and unmarshals it into a fresh T. This generalizes the
// teacher's services/marketfeeds/common/cfg.MustLoad[T any](), which
// panics on any error — relaxed here to return an error since this
// package is consumed by a library, not only a service main.
func Load[T any](path string) (*T, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if ext := strings.TrimPrefix(fileExt(path), "."); ext != "" {
		v.SetConfigType(ext)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg T
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal %s: %w", path, err)
	}
	return &cfg, nil
}

// SaveRuntimeConfig writes cfg to path as YAML, grounded on
// backpressure/config.go's own save-current-config-to-disk pattern.
// Unlike Load, this always writes YAML rather than deferring to
// viper's format-by-extension detection, since it's the format this
// module reads back with Load.
func SaveRuntimeConfig(path string, cfg RuntimeConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

func fileExt(path string) string {
	for i := len(path) - 1; i >= 0 && path[i] != '/'; i-- {
		if path[i] == '.' {
			return path[i:]
		}
	}
	return ""
}
