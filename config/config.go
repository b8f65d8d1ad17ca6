package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// MidiPortConfig names the hardware ports backing one MIDI endpoint
type MidiPortConfig struct {
	InPort  string `json:"inPort,omitempty"`
	OutPort string `json:"outPort,omitempty"`
}

// UsbConfig controls USB MIDI hot-plug matching
type UsbConfig struct {
	// Substring matched against port names when scanning for USB devices.
	// Empty matches any port that is not the DIN interface.
	Match string `json:"match,omitempty"`
}

// Config is the main configuration structure
type Config struct {
	DinMidi         MidiPortConfig `json:"dinMidi,omitempty"`
	UsbMidi         UsbConfig      `json:"usbMidi,omitempty"`
	CalibrationFile string         `json:"calibrationFile,omitempty"`
	Debug           bool           `json:"debug,omitempty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		CalibrationFile: "calibration.json",
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-performer"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from disk, or returns defaults if not found
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, errors.Wrap(err, "reading config")
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "parsing config")
	}

	return &cfg, nil
}

// Save writes the config to disk
func (c *Config) Save() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}

	// Create directory if it doesn't exist
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	path, err := ConfigPath()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// CalibrationPath resolves the calibration file relative to the config dir
func (c *Config) CalibrationPath() (string, error) {
	if filepath.IsAbs(c.CalibrationFile) {
		return c.CalibrationFile, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	name := c.CalibrationFile
	if name == "" {
		name = "calibration.json"
	}
	return filepath.Join(dir, name), nil
}
