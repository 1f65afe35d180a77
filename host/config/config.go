// Package config holds the YAML configuration for the host runner.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the runner configuration.
type Config struct {
	Serial SerialConfig `yaml:"serial"`
	Sim    SimConfig    `yaml:"sim"`
}

// SerialConfig selects the external serial device the simulated UART is
// bridged to. An empty port means stdin/stdout.
type SerialConfig struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

// SimConfig shapes the simulated board.
type SimConfig struct {
	DieTempC    float32       `yaml:"die_temp_c"`   // simulated die temperature
	DriftC      float32       `yaml:"drift_c"`      // sinusoidal drift amplitude (0 = steady)
	DriftPeriod time.Duration `yaml:"drift_period"` // drift period
	Cal30       uint16        `yaml:"cal30"`        // factory calibration word override (0 = default)
	Quantum     time.Duration `yaml:"quantum"`      // virtual time per firmware spin (0 = default)
}

// Default returns a configuration with sensible values.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Port: "",
			Baud: 9600,
		},
		Sim: SimConfig{
			DieTempC:    32.5,
			DriftC:      0,
			DriftPeriod: time.Minute,
		},
	}
}

// Load reads a configuration file, filling unset fields from Default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration to path.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
