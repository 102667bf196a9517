package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cuemby/backfill/pkg/log"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultModule is the predictor module loaded when none is configured
	DefaultModule = "predict_func_v1"
	// DefaultFunction is the predictor entry point
	DefaultFunction = "priority"
	// DefaultSearchPath is where the predictor module is looked up
	DefaultSearchPath = "/home/slurm"
	// DefaultInterval is the pause between two backfill passes
	DefaultInterval = 30 * time.Second
	// DefaultTimeout bounds a single predictor call
	DefaultTimeout = 2 * time.Second
	// DefaultProbeFeature is the feature sent by the predictor health probe
	DefaultProbeFeature = "probe"
	// DefaultProbeRetries is the number of failed probes before the predictor is unhealthy
	DefaultProbeRetries = 3
)

// Config is the plugin configuration as supplied by the host
type Config struct {
	SchedulingDisabled bool            `yaml:"scheduling_disabled"`
	Backfill           BackfillConfig  `yaml:"backfill"`
	Predictor          PredictorConfig `yaml:"predictor"`
	Log                LogConfig       `yaml:"log"`
	Metrics            MetricsConfig   `yaml:"metrics"`
}

// BackfillConfig holds backfill agent settings
type BackfillConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// PredictorConfig holds the embedded predictor settings
type PredictorConfig struct {
	Module      string        `yaml:"module"`
	Function    string        `yaml:"function"`
	SearchPaths []string      `yaml:"search_paths"`
	Timeout     time.Duration `yaml:"timeout"` // 0 disables the per-call timeout
	Watch       bool          `yaml:"watch"`   // reload the module when its files change
	Probe       ProbeConfig   `yaml:"probe"`
}

// ProbeConfig schedules the background predictor health probe
type ProbeConfig struct {
	Interval time.Duration `yaml:"interval"` // 0 disables the probe
	Retries  int           `yaml:"retries"`
	Feature  string        `yaml:"feature"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level log.Level `yaml:"level"`
	JSON  bool      `yaml:"json"`
}

// MetricsConfig holds the metrics/health listener
type MetricsConfig struct {
	Addr string `yaml:"addr"` // empty disables the listener
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Backfill: BackfillConfig{
			Interval: DefaultInterval,
		},
		Predictor: PredictorConfig{
			Module:      DefaultModule,
			Function:    DefaultFunction,
			SearchPaths: []string{DefaultSearchPath},
			Timeout:     DefaultTimeout,
			Probe: ProbeConfig{
				Retries: DefaultProbeRetries,
				Feature: DefaultProbeFeature,
			},
		},
		Log: LogConfig{
			Level: log.InfoLevel,
		},
	}
}

// Load reads a YAML configuration file on top of the defaults
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration on top of the defaults
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the plugin cannot run with
func (c *Config) Validate() error {
	if c.Backfill.Interval <= 0 {
		return fmt.Errorf("backfill.interval must be positive, got %s", c.Backfill.Interval)
	}
	if c.Predictor.Module == "" {
		return errors.New("predictor.module is required")
	}
	if c.Predictor.Function == "" {
		return errors.New("predictor.function is required")
	}
	if c.Predictor.Timeout < 0 {
		return fmt.Errorf("predictor.timeout must not be negative, got %s", c.Predictor.Timeout)
	}
	if c.Predictor.Probe.Interval < 0 {
		return fmt.Errorf("predictor.probe.interval must not be negative, got %s", c.Predictor.Probe.Interval)
	}
	if c.Predictor.Probe.Interval > 0 && c.Predictor.Probe.Feature == "" {
		return errors.New("predictor.probe.feature is required when the probe is enabled")
	}
	return nil
}
