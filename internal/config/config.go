// Package config loads and saves taskbench configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds all taskbench configuration.
type Config struct {
	Bench   BenchConfig   `toml:"bench"`
	Logging LoggingConfig `toml:"logging"`
	Server  ServerConfig  `toml:"server"`
	Store   StoreConfig   `toml:"store"`
}

// BenchConfig is the default workload for `taskbench run` and the API.
type BenchConfig struct {
	Name        string   `toml:"name"`
	Concurrency int      `toml:"concurrency"`
	Tasks       int      `toml:"tasks"`
	MinDelay    Duration `toml:"min_delay"`
	MaxDelay    Duration `toml:"max_delay"`
	FailureRate float64  `toml:"failure_rate"`
	PanicRate   float64  `toml:"panic_rate"`
	Seed        uint64   `toml:"seed"`
	Retries     int      `toml:"retries"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level      string `toml:"level"`
	Format     string `toml:"format"`
	Timestamps bool   `toml:"timestamps"`
}

// ServerConfig controls the HTTP API server.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StoreConfig controls where reports are kept.
type StoreConfig struct {
	Dir          string `toml:"dir"`
	HistoryLimit int    `toml:"history_limit"`
}

// Duration is a time.Duration written as a string such as "250ms".
type Duration struct {
	time.Duration
}

// D wraps a time.Duration.
func D(d time.Duration) Duration {
	return Duration{Duration: d}
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	return Config{
		Bench: BenchConfig{
			Name:        "default",
			Concurrency: 4,
			Tasks:       20,
			MinDelay:    D(50 * time.Millisecond),
			MaxDelay:    D(250 * time.Millisecond),
			FailureRate: 0.1,
			Seed:        1,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Timestamps: true,
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8089,
		},
		Store: StoreConfig{
			Dir:          Home(),
			HistoryLimit: 20,
		},
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	b := c.Bench
	if b.Concurrency < 1 || b.Concurrency > 10000 {
		return fmt.Errorf("bench.concurrency must be in [1, 10000], got %d", b.Concurrency)
	}
	if b.Tasks < 0 {
		return fmt.Errorf("bench.tasks must not be negative, got %d", b.Tasks)
	}
	if b.MinDelay.Duration < 0 || b.MaxDelay.Duration < b.MinDelay.Duration {
		return fmt.Errorf("bench delays must satisfy 0 <= min_delay <= max_delay, got %s..%s", b.MinDelay, b.MaxDelay)
	}
	if b.FailureRate < 0 || b.FailureRate > 1 {
		return fmt.Errorf("bench.failure_rate must be in [0, 1], got %v", b.FailureRate)
	}
	if b.PanicRate < 0 || b.PanicRate > 1 || b.FailureRate+b.PanicRate > 1 {
		return fmt.Errorf("bench.panic_rate must be in [0, 1-failure_rate], got %v", b.PanicRate)
	}
	if b.Retries < 0 {
		return fmt.Errorf("bench.retries must not be negative, got %d", b.Retries)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	return nil
}

// Load reads config from path, falling back to defaults for a missing file
// or missing keys.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return cfg, nil // No config file yet, use defaults
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path, creating parent directories.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

// Path returns the default config file location.
func Path() string {
	return filepath.Join(Home(), "config.toml")
}

// Home returns the taskbench data directory.
func Home() string {
	if env := os.Getenv("TASKBENCH_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".taskbench")
}
