package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "calibration.json", cfg.CalibrationFile)
	assert.False(t, cfg.Debug)
	assert.Empty(t, cfg.UsbMidi.Match)
}

func TestCalibrationPathAbsolute(t *testing.T) {
	abs := filepath.Join(t.TempDir(), "cal.json")
	cfg := &Config{CalibrationFile: abs}
	path, err := cfg.CalibrationPath()
	require.NoError(t, err)
	assert.Equal(t, abs, path)
}

func TestCalibrationPathRelative(t *testing.T) {
	cfg := &Config{CalibrationFile: "tuning.json"}
	path, err := cfg.CalibrationPath()
	require.NoError(t, err)
	assert.Equal(t, "tuning.json", filepath.Base(path))

	dir, err := ConfigDir()
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))
}

func TestCalibrationPathDefaultsName(t *testing.T) {
	cfg := &Config{}
	path, err := cfg.CalibrationPath()
	require.NoError(t, err)
	assert.Equal(t, "calibration.json", filepath.Base(path))
}
