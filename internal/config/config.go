// Package config loads winsight's configuration from defaults, an optional
// config file, and WINSIGHT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the tracker's tunable settings.
type Config struct {
	// Headless disables the screen-capture pass and preview capture.
	Headless bool `mapstructure:"headless"`

	// PreviewCacheDuration bounds preview freshness.
	PreviewCacheDuration time.Duration `mapstructure:"preview_cache_duration"`

	// DebounceDelay is the coalescing window for refresh operations.
	DebounceDelay time.Duration `mapstructure:"debounce_delay"`

	// IgnoredPIDs are excluded from tracking.
	IgnoredPIDs []int `mapstructure:"ignored_pids"`

	// BruteForceTokens bounds the synthetic-token window sweep.
	BruteForceTokens int `mapstructure:"brute_force_tokens"`

	LogLevel  string `mapstructure:"log_level"`
	LogPretty bool   `mapstructure:"log_pretty"`
}

// Load reads the configuration. path may name a config file explicitly;
// when empty the standard locations are searched and a missing file is fine.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("headless", false)
	v.SetDefault("preview_cache_duration", 30*time.Second)
	v.SetDefault("debounce_delay", 300*time.Millisecond)
	v.SetDefault("ignored_pids", []int{})
	v.SetDefault("brute_force_tokens", 1000)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_pretty", false)

	v.SetEnvPrefix("WINSIGHT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("winsight")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/winsight")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}
