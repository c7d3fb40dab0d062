// Package config loads the recurdemo binary's configuration: how long the
// simulated producer takes, how long to wait between ticks, how many ticks
// to run before stopping, and at what verbosity to log.
package config

import (
	"os"

	yaml "github.com/goccy/go-yaml"
)

// Config holds the demo's settings, as read from the YAML file given to Load.
type Config struct {
	ProducerLatencyMS int    `yaml:"producer_latency_ms"` // 10 by default
	TickIntervalMS    int    `yaml:"tick_interval_ms"`    // 100 by default
	MaxTicks          int    `yaml:"max_ticks"`           // 20 by default
	LogLevel          string `yaml:"log_level"`           // "info" by default
}

// defaultConfig returns the values used when no config file is found.
func defaultConfig() Config {
	return Config{
		ProducerLatencyMS: 10,
		TickIntervalMS:    100,
		MaxTicks:          20,
		LogLevel:          "info",
	}
}

// Load reads YAML from path and overrides defaults with whatever it finds.
// An empty path, a missing file, or invalid YAML all fall back to defaults
// rather than failing the caller — the demo is allowed to run unconfigured.
func Load(path string) Config {
	cfg := defaultConfig()

	if path == "" {
		return cfg
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}

	_ = yaml.Unmarshal(data, &cfg)

	// sanity clamps
	if cfg.ProducerLatencyMS < 0 {
		cfg.ProducerLatencyMS = 0
	}
	if cfg.TickIntervalMS < 0 {
		cfg.TickIntervalMS = 0
	}
	if cfg.MaxTicks <= 0 {
		cfg.MaxTicks = 20
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	return cfg
}
