// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"os"
	"spectrometer/internal/analysis"
	applog "spectrometer/internal/log"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	Debug     bool            `yaml:"debug"`     // Shorthand for log_level: debug.
	LogLevel  string          `yaml:"log_level"` // "debug", "info", "warn" or "error".
	Spectrum  SpectrumConfig  `yaml:"spectrum"`  // Analysis geometry, fixed at construction.
	Audio     AudioConfig     `yaml:"audio"`     // Capture settings.
	Render    RenderConfig    `yaml:"render"`    // Terminal display settings.
	Transport TransportConfig `yaml:"transport"` // Network publishers.
}

// SpectrumConfig holds the analysis geometry.
type SpectrumConfig struct {
	FFTOrder int     `yaml:"fft_order"` // Window size is 2^fft_order.
	Levels   int     `yaml:"levels"`    // Display values per frame.
	Skew     float64 `yaml:"skew"`      // Frequency skew, smaller widens the low range.
	MinDB    float64 `yaml:"min_db"`    // Level 0.
	MaxDB    float64 `yaml:"max_db"`    // Level 1.
	Window   string  `yaml:"window"`    // Taper name, e.g. "hamming", "hann".
	Deferred bool    `yaml:"deferred"`  // Transform off the audio thread.
}

// AudioConfig holds settings related to audio input.
type AudioConfig struct {
	InputDevice     int     `yaml:"input_device"`      // PortAudio device index (-1 for default).
	SampleRate      float64 `yaml:"sample_rate"`       // Sample rate in Hz.
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // Frames per callback block.
	InputChannels   int     `yaml:"input_channels"`    // Captured channels; only the first is analysed.
	LowLatency      bool    `yaml:"low_latency"`       // Request the device's low latency setting.
	GateThreshold   float64 `yaml:"gate_threshold"`    // Blocks quieter than this peak are zeroed (0 disables).
}

// RenderConfig holds settings for the terminal display.
type RenderConfig struct {
	RefreshHz int     `yaml:"refresh_hz"` // Frames per second.
	Smoothing float64 `yaml:"smoothing"`  // Spring damping in (0, 1]; 0 disables smoothing.
}

// TransportConfig holds settings related to sending levels over the network.
type TransportConfig struct {
	UDPEnabled        bool          `yaml:"udp_enabled"`
	UDPTargetAddress  string        `yaml:"udp_target_address"` // e.g. "127.0.0.1:9090"
	UDPSendInterval   time.Duration `yaml:"udp_send_interval"`
	WebSocketEnabled  bool          `yaml:"websocket_enabled"`
	WebSocketAddress  string        `yaml:"websocket_address"` // Listen address, e.g. ":8080"
	WebSocketInterval time.Duration `yaml:"websocket_interval"`
}

// AnalysisConfig converts the section into the analyzer's construction
// settings. An unknown window name is reported by Validate.
func (c *Config) AnalysisConfig() analysis.Config {
	window, _ := analysis.ParseWindowFunc(c.Spectrum.Window)
	return analysis.Config{
		FFTOrder:   c.Spectrum.FFTOrder,
		Levels:     c.Spectrum.Levels,
		Skew:       c.Spectrum.Skew,
		MinDB:      c.Spectrum.MinDB,
		MaxDB:      c.Spectrum.MaxDB,
		SampleRate: c.Audio.SampleRate,
		Window:     window,
		Deferred:   c.Spectrum.Deferred,
	}
}

// Level returns the effective log level. Debug wins over log_level.
func (c *Config) Level() applog.LogLevel {
	if c.Debug {
		return applog.LevelDebug
	}
	level, _ := applog.ParseLevel(c.LogLevel)
	return level
}

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches default locations ("config.yaml"). If no file is found, it uses built-in
// defaults. After loading defaults or from file, it applies environment variable
// overrides, then each of overrides in order (command line flags), and validates
// the final configuration once.
func LoadConfig(path string, overrides ...func(*Config)) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		candidates := []string{
			"config.yaml",
			"spectrometer.yaml",
		}
		for _, candidate := range candidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Environment wins over the file, flags win over both.
	cfg.applyEnvOverrides()
	for _, override := range overrides {
		override(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks every section. Spectrum errors wrap an
// *analysis.ConfigurationError.
func (c *Config) Validate() error {
	if _, ok := applog.ParseLevel(c.LogLevel); !ok && !c.Debug {
		return fmt.Errorf("log_level %q is not one of debug, info, warn, error", c.LogLevel)
	}

	if _, err := analysis.ParseWindowFunc(c.Spectrum.Window); err != nil {
		return fmt.Errorf("spectrum: %w", err)
	}
	if err := c.AnalysisConfig().Validate(); err != nil {
		return fmt.Errorf("spectrum: %w", err)
	}

	if c.Audio.InputDevice < MinDeviceID {
		return fmt.Errorf("audio.input_device %d is below %d", c.Audio.InputDevice, MinDeviceID)
	}
	if c.Audio.SampleRate < MinSampleRate || c.Audio.SampleRate > MaxSampleRate {
		return fmt.Errorf("audio.sample_rate %.0f outside [%d, %d]", c.Audio.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if c.Audio.FramesPerBuffer <= 0 || c.Audio.FramesPerBuffer > MaxBufferFrames {
		return fmt.Errorf("audio.frames_per_buffer %d outside [1, %d]", c.Audio.FramesPerBuffer, MaxBufferFrames)
	}
	if c.Audio.InputChannels < 1 || c.Audio.InputChannels > MaxChannels {
		return fmt.Errorf("audio.input_channels %d outside [1, %d]", c.Audio.InputChannels, MaxChannels)
	}
	if c.Audio.GateThreshold < 0 || c.Audio.GateThreshold >= 1 {
		return fmt.Errorf("audio.gate_threshold %g outside [0, 1)", c.Audio.GateThreshold)
	}

	if c.Render.RefreshHz <= 0 || c.Render.RefreshHz > MaxRefreshHz {
		return fmt.Errorf("render.refresh_hz %d outside [1, %d]", c.Render.RefreshHz, MaxRefreshHz)
	}
	if c.Render.Smoothing < 0 || c.Render.Smoothing > 1 {
		return fmt.Errorf("render.smoothing %g outside [0, 1]", c.Render.Smoothing)
	}

	if c.Transport.UDPEnabled {
		if c.Transport.UDPTargetAddress == "" {
			return fmt.Errorf("transport.udp_target_address must be set when UDP is enabled")
		}
		if !strings.Contains(c.Transport.UDPTargetAddress, ":") {
			return fmt.Errorf("transport.udp_target_address '%s' appears invalid (missing port?)", c.Transport.UDPTargetAddress)
		}
		if c.Transport.UDPSendInterval <= 0 {
			return fmt.Errorf("transport.udp_send_interval must be positive when UDP is enabled")
		}
	}
	if c.Transport.WebSocketEnabled {
		if !strings.Contains(c.Transport.WebSocketAddress, ":") {
			return fmt.Errorf("transport.websocket_address '%s' appears invalid (missing port?)", c.Transport.WebSocketAddress)
		}
		if c.Transport.WebSocketInterval <= 0 {
			return fmt.Errorf("transport.websocket_interval must be positive when the WebSocket server is enabled")
		}
	}
	return nil
}

// applyEnvOverrides replaces settings from ENV_* variables. Values that do
// not parse are ignored.
func (c *Config) applyEnvOverrides() {
	// ENV_DEBUG
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Debug = bVal
			applog.Debugf("Config: Overriding debug from env: %v", bVal)
		}
	}
	// ENV_LOG_LEVEL
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		c.LogLevel = val
		applog.Debugf("Config: Overriding log_level from env: %s", val)
	}

	// ENV_INPUT_DEVICE
	if val, ok := os.LookupEnv("ENV_INPUT_DEVICE"); ok {
		if iVal, err := strconv.Atoi(val); err == nil {
			c.Audio.InputDevice = iVal
			applog.Debugf("Config: Overriding audio.input_device from env: %d", iVal)
		}
	}
	// ENV_FFT_ORDER
	if val, ok := os.LookupEnv("ENV_FFT_ORDER"); ok {
		if iVal, err := strconv.Atoi(val); err == nil {
			c.Spectrum.FFTOrder = iVal
			applog.Debugf("Config: Overriding spectrum.fft_order from env: %d", iVal)
		}
	}

	// ENV_UDP_{...}
	// These are specific to the transport layer.

	// ENV_UDP_ENABLED
	if val, ok := os.LookupEnv("ENV_UDP_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Transport.UDPEnabled = bVal
			applog.Debugf("Config: Overriding transport.udp_enabled from env: %v", bVal)
		}
	}
	// ENV_UDP_TARGET_ADDRESS
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		c.Transport.UDPTargetAddress = val
		applog.Debugf("Config: Overriding transport.udp_target_address from env: %s", val)
	}
	// ENV_UDP_SEND_INTERVAL
	if val, ok := os.LookupEnv("ENV_UDP_SEND_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			c.Transport.UDPSendInterval = dur
			applog.Debugf("Config: Overriding transport.udp_send_interval from env: %s", dur)
		}
	}
	// ENV_WS_ENABLED
	if val, ok := os.LookupEnv("ENV_WS_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Transport.WebSocketEnabled = bVal
			applog.Debugf("Config: Overriding transport.websocket_enabled from env: %v", bVal)
		}
	}
	// ENV_WS_ADDRESS
	if val, ok := os.LookupEnv("ENV_WS_ADDRESS"); ok {
		c.Transport.WebSocketAddress = val
		applog.Debugf("Config: Overriding transport.websocket_address from env: %s", val)
	}
}
