// Package config loads the engine configuration document. The hardware
// section has no defaults: pin assignment, sample rate and channel count all
// have to be stated, matching the one-fixed-format-per-device contract.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/adrg/xdg"
	"github.com/spf13/afero"

	"chime.click/internal/device"
	"chime.click/internal/logging"
)

// Hardware mirrors device.Config with pointer fields so a missing key is
// distinguishable from a zero value.
type Hardware struct {
	BCLKPin    *int `json:"bclk_pin"`
	LRCKPin    *int `json:"lrck_pin"`
	DOUTPin    *int `json:"dout_pin"`
	SampleRate *int `json:"sample_rate"`
	Channels   *int `json:"channels"`
}

// Config is the full configuration document.
type Config struct {
	Hardware    Hardware            `json:"hardware"`
	LogLevel    string              `json:"log_level"`
	FileLogging *logging.FileConfig `json:"file_logging,omitempty"`
}

// DefaultPath returns the XDG config path for the chime configuration file.
func DefaultPath() (string, error) {
	return xdg.ConfigFile("chime/config.json")
}

// Load reads and validates the configuration at path.
func Load(fsys afero.Fs, path string) (*Config, error) {
	slog.Debug("loading config", "path", path)

	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	slog.Debug("config loaded",
		"sample_rate", *cfg.Hardware.SampleRate,
		"channels", *cfg.Hardware.Channels,
		"log_level", cfg.LogLevel)
	return &cfg, nil
}

// Save writes the configuration to path.
func Save(fsys afero.Fs, path string, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("refusing to save invalid config: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := afero.WriteFile(fsys, path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	slog.Debug("config saved", "path", path)
	return nil
}

// Validate checks that every required hardware field is present and sane.
func (c *Config) Validate() error {
	hw := c.Hardware
	for name, field := range map[string]*int{
		"bclk_pin":    hw.BCLKPin,
		"lrck_pin":    hw.LRCKPin,
		"dout_pin":    hw.DOUTPin,
		"sample_rate": hw.SampleRate,
		"channels":    hw.Channels,
	} {
		if field == nil {
			return fmt.Errorf("missing required hardware field %q", name)
		}
	}
	if err := c.Device().Validate(); err != nil {
		return err
	}

	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	return nil
}

// Device converts the hardware section into the engine's config struct.
// Callers must Validate first.
func (c *Config) Device() device.Config {
	return device.Config{
		BCLKPin:    *c.Hardware.BCLKPin,
		LRCKPin:    *c.Hardware.LRCKPin,
		DOUTPin:    *c.Hardware.DOUTPin,
		SampleRate: *c.Hardware.SampleRate,
		Channels:   *c.Hardware.Channels,
	}
}
