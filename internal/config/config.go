// Package config handles configuration loading for fnopulse.
// It supports YAML config files with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	Signals SignalsConfig `mapstructure:"signals" yaml:"signals"`
	Ingest  IngestConfig  `mapstructure:"ingest"  yaml:"ingest"`
	API     APIConfig     `mapstructure:"api"     yaml:"api"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// SignalsConfig holds every weight and policy knob of the signal
// engine. Nothing in the analyzers or combiner is hard-coded; runs are
// reproducible from this struct alone.
type SignalsConfig struct {
	// Options analyzer weights.
	OIWeight     float64 `mapstructure:"oi_weight"     yaml:"oi_weight"`
	SkewWeight   float64 `mapstructure:"skew_weight"   yaml:"skew_weight"`
	VolumeWeight float64 `mapstructure:"volume_weight" yaml:"volume_weight"`

	// Futures analyzer weights.
	BasisWeight        float64 `mapstructure:"basis_weight"         yaml:"basis_weight"`
	OIPercentileWeight float64 `mapstructure:"oi_percentile_weight" yaml:"oi_percentile_weight"`
	ConfirmationWeight float64 `mapstructure:"confirmation_weight"  yaml:"confirmation_weight"`

	// Combiner policy.
	CombinerOptionWeight float64 `mapstructure:"combiner_option_weight" yaml:"combiner_option_weight"`
	CombinerFutureWeight float64 `mapstructure:"combiner_future_weight" yaml:"combiner_future_weight"`
	SingleSourceDiscount float64 `mapstructure:"single_source_discount" yaml:"single_source_discount"`
	NeutralDeadZone      float64 `mapstructure:"neutral_dead_zone"      yaml:"neutral_dead_zone"`
	KeepNeutral          bool    `mapstructure:"keep_neutral"           yaml:"keep_neutral"`

	// Analyzer thresholds.
	UnusualVolumeMultiple float64 `mapstructure:"unusual_volume_multiple" yaml:"unusual_volume_multiple"`
	SkewBaselinePCR       float64 `mapstructure:"skew_baseline_pcr"       yaml:"skew_baseline_pcr"`
	BasisNormPct          float64 `mapstructure:"basis_norm_pct"          yaml:"basis_norm_pct"`
}

// IngestConfig holds bhavcopy download settings.
type IngestConfig struct {
	BaseURL        string `mapstructure:"base_url"        yaml:"base_url"`
	TimeoutSec     int    `mapstructure:"timeout_sec"     yaml:"timeout_sec"`
	RatePerSec     int    `mapstructure:"rate_per_sec"    yaml:"rate_per_sec"`
	DataDir        string `mapstructure:"data_dir"        yaml:"data_dir"`
	RetryDiscovery bool   `mapstructure:"retry_discovery" yaml:"retry_discovery"` // scrape reports page when dated URL 404s
}

// APIConfig holds the dashboard HTTP server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host"`
	Port        int      `mapstructure:"port"         yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format"` // "text" or "json"
}

// ConfigurationError is fatal: a misconfigured run produces no partial
// result. Silently clamping bad weights would hide the mistake.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s %s", e.Field, e.Reason)
}

// Validate checks the signal weights eagerly, before any computation.
func (c SignalsConfig) Validate() error {
	weights := []struct {
		name  string
		value float64
	}{
		{"signals.oi_weight", c.OIWeight},
		{"signals.skew_weight", c.SkewWeight},
		{"signals.volume_weight", c.VolumeWeight},
		{"signals.basis_weight", c.BasisWeight},
		{"signals.oi_percentile_weight", c.OIPercentileWeight},
		{"signals.confirmation_weight", c.ConfirmationWeight},
		{"signals.combiner_option_weight", c.CombinerOptionWeight},
		{"signals.combiner_future_weight", c.CombinerFutureWeight},
	}
	for _, w := range weights {
		if w.value < 0 {
			return &ConfigurationError{Field: w.name, Reason: "must not be negative"}
		}
	}
	if c.SingleSourceDiscount <= 0 || c.SingleSourceDiscount > 1 {
		return &ConfigurationError{Field: "signals.single_source_discount", Reason: "must be in (0, 1]"}
	}
	if c.NeutralDeadZone < 0 || c.NeutralDeadZone >= 1 {
		return &ConfigurationError{Field: "signals.neutral_dead_zone", Reason: "must be in [0, 1)"}
	}
	if c.UnusualVolumeMultiple < 1 {
		return &ConfigurationError{Field: "signals.unusual_volume_multiple", Reason: "must be at least 1"}
	}
	if c.SkewBaselinePCR < 0 {
		return &ConfigurationError{Field: "signals.skew_baseline_pcr", Reason: "must not be negative"}
	}
	if c.BasisNormPct <= 0 {
		return &ConfigurationError{Field: "signals.basis_norm_pct", Reason: "must be positive"}
	}
	return nil
}

// DefaultSignals returns the documented default weighting policy:
// equal weighting inside each analyzer, 50/50 at the combiner, and a
// 0.6 discount when only one side of the market contributed.
func DefaultSignals() SignalsConfig {
	return SignalsConfig{
		OIWeight:              1.0 / 3,
		SkewWeight:            1.0 / 3,
		VolumeWeight:          1.0 / 3,
		BasisWeight:           1.0 / 3,
		OIPercentileWeight:    1.0 / 3,
		ConfirmationWeight:    1.0 / 3,
		CombinerOptionWeight:  0.5,
		CombinerFutureWeight:  0.5,
		SingleSourceDiscount:  0.6,
		NeutralDeadZone:       0.05,
		KeepNeutral:           true,
		UnusualVolumeMultiple: 3.0,
		SkewBaselinePCR:       1.0,
		BasisNormPct:          2.0,
	}
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.fnopulse/config.yaml (home directory)
//  3. /etc/fnopulse/config.yaml (system)
//
// Environment variables override config file values.
// Format: FNOPULSE_<SECTION>_<KEY>, e.g., FNOPULSE_API_PORT
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".fnopulse"))
	v.AddConfigPath("/etc/fnopulse")

	v.SetEnvPrefix("FNOPULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file not required to exist; defaults + env vars suffice.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvPrefix("FNOPULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	def := DefaultSignals()
	v.SetDefault("signals.oi_weight", def.OIWeight)
	v.SetDefault("signals.skew_weight", def.SkewWeight)
	v.SetDefault("signals.volume_weight", def.VolumeWeight)
	v.SetDefault("signals.basis_weight", def.BasisWeight)
	v.SetDefault("signals.oi_percentile_weight", def.OIPercentileWeight)
	v.SetDefault("signals.confirmation_weight", def.ConfirmationWeight)
	v.SetDefault("signals.combiner_option_weight", def.CombinerOptionWeight)
	v.SetDefault("signals.combiner_future_weight", def.CombinerFutureWeight)
	v.SetDefault("signals.single_source_discount", def.SingleSourceDiscount)
	v.SetDefault("signals.neutral_dead_zone", def.NeutralDeadZone)
	v.SetDefault("signals.keep_neutral", def.KeepNeutral)
	v.SetDefault("signals.unusual_volume_multiple", def.UnusualVolumeMultiple)
	v.SetDefault("signals.skew_baseline_pcr", def.SkewBaselinePCR)
	v.SetDefault("signals.basis_norm_pct", def.BasisNormPct)

	v.SetDefault("ingest.base_url", "https://nsearchives.nseindia.com")
	v.SetDefault("ingest.timeout_sec", 30)
	v.SetDefault("ingest.rate_per_sec", 3)
	v.SetDefault("ingest.data_dir", "./data")
	v.SetDefault("ingest.retry_discovery", true)

	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"http://localhost:3000"})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
