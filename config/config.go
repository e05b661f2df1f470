// Package config loads and saves the panel configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"helixscreen/printer"
)

// LimitsConfig pins explicit safety bounds. When present, discovery no
// longer widens the derived limits.
type LimitsConfig struct {
	MaxTemp         float64 `yaml:"max_temp"`
	MaxFanPercent   float64 `yaml:"max_fan_percent"`
	MaxFeedrate     float64 `yaml:"max_feedrate"`
	MaxRelativeMove float64 `yaml:"max_relative_move"`
}

// Config is the persisted panel configuration.
type Config struct {
	// Moonraker URL, ws:// or wss://.
	URL string `yaml:"url"`

	// TrackedLed is the Klipper LED object mirrored by the light toggle.
	TrackedLed string `yaml:"tracked_led,omitempty"`

	LogLevel string `yaml:"log_level,omitempty"`

	// DebugAddr enables the metrics listener when set, e.g. ":9101".
	DebugAddr string `yaml:"debug_addr,omitempty"`

	// LayerEpsilon tunes the parser's layer-change tolerance in mm.
	LayerEpsilon float64 `yaml:"layer_epsilon,omitempty"`

	Limits *LimitsConfig `yaml:"limits,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		URL:      "ws://localhost:7125/websocket",
		LogLevel: "info",
	}
}

// Load reads path, filling unset fields from the defaults. A missing file
// is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if cfg.URL == "" {
		cfg.URL = Default().URL
	}
	return cfg, nil
}

// Save writes the configuration, creating parent directories as needed.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: mkdir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// BuildLimits converts the config into runtime limits. Explicit values
// lock the result against discovery overrides.
func (c *Config) BuildLimits() *printer.Limits {
	limits := printer.NewLimits()
	if c.Limits == nil {
		return limits
	}
	if c.Limits.MaxTemp > 0 {
		limits.MaxTemp = c.Limits.MaxTemp
	}
	if c.Limits.MaxFanPercent > 0 {
		limits.MaxFanPercent = c.Limits.MaxFanPercent
	}
	if c.Limits.MaxFeedrate > 0 {
		limits.MaxFeedrate = c.Limits.MaxFeedrate
	}
	if c.Limits.MaxRelativeMove > 0 {
		limits.MaxRelativeMove = c.Limits.MaxRelativeMove
	}
	limits.Lock()
	return limits
}
