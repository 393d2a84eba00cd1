// Package config loads the usbtaskd configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the usbtaskd configuration.
type Config struct {
	// Name of the executor, used in logs and as the metrics label.
	Name string `yaml:"name"`
	// PollInterval is how often the running task is advanced.
	PollInterval time.Duration `yaml:"poll_interval"`
	// MaxResponse is the size limit of a response payload.
	MaxResponse int `yaml:"max_response"`
	// MetricsAddr is where /metrics is served. Empty disables it.
	MetricsAddr string `yaml:"metrics_addr"`
	// LogLevel is one of trace, debug, info, warning, error.
	LogLevel string `yaml:"log_level"`
}

const (
	DefaultName         = "usb"
	DefaultPollInterval = 10 * time.Millisecond
	DefaultMaxResponse  = 4096
	DefaultLogLevel     = "info"
)

// Environment variables overriding the config file.
const (
	EnvPollInterval = "USBTASK_POLL_INTERVAL"
	EnvMetricsAddr  = "USBTASK_METRICS_ADDR"
)

// Default returns a Config with every field set to its default.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads a YAML config file, applies environment overrides and fills
// in defaults. A missing file is not an error: the defaults are used.
func Load(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// LoadDotenv loads environment variables from the given .env files.
// Variables already set are kept. Missing files are ignored.
func LoadDotenv(paths ...string) error {
	for _, p := range paths {
		err := godotenv.Load(p)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv(EnvPollInterval); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPollInterval, err)
		}
		cfg.PollInterval = d
	}
	if v, ok := os.LookupEnv(EnvMetricsAddr); ok {
		cfg.MetricsAddr = v
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.MaxResponse <= 0 {
		cfg.MaxResponse = DefaultMaxResponse
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
}
