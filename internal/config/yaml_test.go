// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"os"
	"path/filepath"
	"spectrometer/internal/analysis"
	applog "spectrometer/internal/log"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 11, cfg.Spectrum.FFTOrder)
	assert.Equal(t, 256, cfg.Spectrum.Levels)
	assert.Equal(t, "hamming", cfg.Spectrum.Window)
	assert.Equal(t, 30, cfg.Render.RefreshHz)
	assert.Equal(t, 44100.0, cfg.Audio.SampleRate)
	assert.Equal(t, applog.LevelInfo, cfg.Level())

	acfg := cfg.AnalysisConfig()
	assert.Equal(t, analysis.DefaultConfig(), acfg)
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	t.Parallel()
	cfg, err := LoadConfig("nonexistent.yaml")
	if err == nil {
		t.Errorf("expected error for missing file, got nil")
	}
	if cfg != nil {
		t.Errorf("expected nil config on error, got %+v", cfg)
	}
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadConfig_UnmarshalError(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, ":\n:bad")
	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "failed to parse config file") {
		t.Error("expected unmarshal error, got nil or wrong error")
	}
}

func TestLoadConfig_File(t *testing.T) {
	path := writeTempConfig(t, `
log_level: warn
spectrum:
  fft_order: 10
  levels: 128
  window: hann
  deferred: true
audio:
  sample_rate: 48000
  input_channels: 2
render:
  refresh_hz: 60
  smoothing: 0.5
transport:
  udp_enabled: true
  udp_target_address: "127.0.0.1:7000"
  udp_send_interval: 50ms
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	acfg := cfg.AnalysisConfig()
	assert.Equal(t, 1024, acfg.FFTSize())
	assert.Equal(t, 128, acfg.Levels)
	assert.Equal(t, analysis.Hann, acfg.Window)
	assert.True(t, acfg.Deferred)
	assert.Equal(t, 48000.0, acfg.SampleRate)
	// Unset keys keep their defaults.
	assert.Equal(t, analysis.DefaultSkew, acfg.Skew)
	assert.Equal(t, analysis.DefaultMinDB, acfg.MinDB)

	assert.Equal(t, 2, cfg.Audio.InputChannels)
	assert.Equal(t, 60, cfg.Render.RefreshHz)
	assert.Equal(t, 50*time.Millisecond, cfg.Transport.UDPSendInterval)
	assert.Equal(t, applog.LevelWarn, cfg.Level())
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("ENV_DEBUG", "true")
	t.Setenv("ENV_FFT_ORDER", "12")
	t.Setenv("ENV_UDP_ENABLED", "true")
	t.Setenv("ENV_UDP_TARGET_ADDRESS", "10.0.0.1:9999")
	t.Setenv("ENV_UDP_SEND_INTERVAL", "100ms")
	t.Setenv("ENV_WS_ENABLED", "yes") // not a bool, ignored

	path := writeTempConfig(t, "spectrum:\n  fft_order: 9\n")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.True(t, cfg.Debug)
	assert.Equal(t, applog.LevelDebug, cfg.Level())
	assert.Equal(t, 12, cfg.Spectrum.FFTOrder)
	assert.True(t, cfg.Transport.UDPEnabled)
	assert.Equal(t, "10.0.0.1:9999", cfg.Transport.UDPTargetAddress)
	assert.Equal(t, 100*time.Millisecond, cfg.Transport.UDPSendInterval)
	assert.False(t, cfg.Transport.WebSocketEnabled)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		edit     func(*Config)
		contains string
	}{
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"window", func(c *Config) { c.Spectrum.Window = "square" }, "spectrum"},
		{"fft order", func(c *Config) { c.Spectrum.FFTOrder = 0 }, "fft_order"},
		{"levels", func(c *Config) { c.Spectrum.Levels = 0 }, "levels"},
		{"db range", func(c *Config) { c.Spectrum.MinDB = 0 }, "min_db"},
		{"device", func(c *Config) { c.Audio.InputDevice = -2 }, "input_device"},
		{"sample rate", func(c *Config) { c.Audio.SampleRate = 1000 }, "sample_rate"},
		{"frames", func(c *Config) { c.Audio.FramesPerBuffer = 0 }, "frames_per_buffer"},
		{"channels", func(c *Config) { c.Audio.InputChannels = 0 }, "input_channels"},
		{"gate", func(c *Config) { c.Audio.GateThreshold = 1.5 }, "gate_threshold"},
		{"refresh", func(c *Config) { c.Render.RefreshHz = 0 }, "refresh_hz"},
		{"smoothing", func(c *Config) { c.Render.Smoothing = 2 }, "smoothing"},
		{"udp address", func(c *Config) {
			c.Transport.UDPEnabled = true
			c.Transport.UDPTargetAddress = "localhost"
		}, "udp_target_address"},
		{"udp interval", func(c *Config) {
			c.Transport.UDPEnabled = true
			c.Transport.UDPSendInterval = 0
		}, "udp_send_interval"},
		{"websocket address", func(c *Config) {
			c.Transport.WebSocketEnabled = true
			c.Transport.WebSocketAddress = ""
		}, "websocket_address"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			require.NoError(t, cfg.Validate())

			tt.edit(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestValidate_SpectrumErrorIsTyped(t *testing.T) {
	cfg := NewConfig()
	cfg.Spectrum.Skew = -1

	var cfgErr *analysis.ConfigurationError
	require.True(t, errors.As(cfg.Validate(), &cfgErr))
	assert.Equal(t, "skew", cfgErr.Field)
}

func TestLoadConfig_OverridesApplyBeforeValidation(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, `
transport:
  websocket_enabled: true
  websocket_address: "nowhere"
`)
	_, err := LoadConfig(path)
	require.ErrorContains(t, err, "websocket_address")

	cfg, err := LoadConfig(path, func(c *Config) { c.Transport.WebSocketEnabled = false })
	require.NoError(t, err)
	assert.False(t, cfg.Transport.WebSocketEnabled)

	// An override can also make a valid file invalid.
	_, err = LoadConfig(path,
		func(c *Config) { c.Transport.WebSocketAddress = "127.0.0.1:8080" },
		func(c *Config) { c.Render.RefreshHz = 0 })
	assert.ErrorContains(t, err, "refresh_hz")
}
