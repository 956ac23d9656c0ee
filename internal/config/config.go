// SPDX-License-Identifier: MIT
package config

import (
	"spectrometer/internal/analysis"
	"time"
)

// Boundaries and defaults for the capture and render side. Spectrum defaults
// live in the analysis package.
const (
	DefaultDeviceID        = MinDeviceID // System default input.
	DefaultFramesPerBuffer = 512
	DefaultChannels        = 1
	DefaultLowLatency      = false
	DefaultGateThreshold   = 0.0 // Disabled.
	DefaultRefreshHz       = 30
	DefaultSmoothing       = 0.0 // Disabled.
	DefaultLogLevel        = "info"

	DefaultUDPTargetAddress = "127.0.0.1:9090"
	DefaultUDPSendInterval  = 33 * time.Millisecond // ~30Hz
	DefaultWebSocketAddress = "127.0.0.1:8080"
	DefaultWebSocketPoll    = 33 * time.Millisecond

	MinDeviceID     = -1     // -1 selects the system default device.
	MinSampleRate   = 8000   // Hz
	MaxSampleRate   = 192000 // Hz
	MaxBufferFrames = 8192
	MaxChannels     = 32
	MaxRefreshHz    = 240
)

// NewConfig returns the built-in defaults.
func NewConfig() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		Spectrum: SpectrumConfig{
			FFTOrder: analysis.DefaultFFTOrder,
			Levels:   analysis.DefaultLevels,
			Skew:     analysis.DefaultSkew,
			MinDB:    analysis.DefaultMinDB,
			MaxDB:    analysis.DefaultMaxDB,
			Window:   analysis.Hamming.String(),
			Deferred: false,
		},
		Audio: AudioConfig{
			InputDevice:     DefaultDeviceID,
			SampleRate:      analysis.DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			InputChannels:   DefaultChannels,
			LowLatency:      DefaultLowLatency,
			GateThreshold:   DefaultGateThreshold,
		},
		Render: RenderConfig{
			RefreshHz: DefaultRefreshHz,
			Smoothing: DefaultSmoothing,
		},
		Transport: TransportConfig{
			UDPEnabled:        false,
			UDPTargetAddress:  DefaultUDPTargetAddress,
			UDPSendInterval:   DefaultUDPSendInterval,
			WebSocketEnabled:  false,
			WebSocketAddress:  DefaultWebSocketAddress,
			WebSocketInterval: DefaultWebSocketPoll,
		},
	}
}
