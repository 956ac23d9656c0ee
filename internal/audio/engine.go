// SPDX-License-Identifier: MIT
/*
Package audio captures live input through PortAudio and feeds it to an
input.Sink:
- float32 input stream, channel 0 taken as the mono signal
- optional noise gate applied before the sink
- pre-allocated buffers only on the callback path

Thread Safety:
- The stream callback is the only producer; it locks its OS thread
- Start/Stop/Close are called from the controlling goroutine
*/
package audio

import (
	"fmt"
	"runtime"
	"spectrometer/internal/config"
	"spectrometer/internal/input"
	applog "spectrometer/internal/log"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"
)

type Engine struct {
	cfg  config.AudioConfig
	sink input.Sink
	gate *input.Gate

	// Audio input handling.
	inputDevice  *portaudio.DeviceInfo
	inputLatency time.Duration
	inputStream  *portaudio.Stream

	monoBuffer []float32 // channel 0 of the current block

	blocks atomic.Uint64
}

// NewEngine resolves the configured input device and prepares buffers.
// PortAudio must already be initialized.
func NewEngine(cfg config.AudioConfig, sink input.Sink) (*Engine, error) {
	inputDevice, err := InputDevice(cfg.InputDevice)
	if err != nil {
		return nil, err
	}
	if cfg.InputChannels > inputDevice.MaxInputChannels {
		return nil, fmt.Errorf("device %s has %d input channels, %d requested",
			inputDevice.Name, inputDevice.MaxInputChannels, cfg.InputChannels)
	}

	engine := newEngine(cfg, sink)
	engine.inputDevice = inputDevice
	if cfg.LowLatency {
		engine.inputLatency = inputDevice.DefaultLowInputLatency
	} else {
		engine.inputLatency = inputDevice.DefaultHighInputLatency
	}

	applog.Infof("Audio: Using input device %s (%d channels, %.0f Hz, %d frames, latency %s, gate %.4f)",
		inputDevice.Name, cfg.InputChannels, cfg.SampleRate, cfg.FramesPerBuffer,
		engine.inputLatency, engine.gate.Threshold())
	return engine, nil
}

func newEngine(cfg config.AudioConfig, sink input.Sink) *Engine {
	return &Engine{
		cfg:        cfg,
		sink:       sink,
		gate:       input.NewGate(cfg.GateThreshold),
		monoBuffer: make([]float32, cfg.FramesPerBuffer),
	}
}

func (e *Engine) StartInputStream() error {
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: e.cfg.InputChannels,
			Device:   e.inputDevice,
			Latency:  e.inputLatency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0, // No output device
			Device:   nil,
		},
		FramesPerBuffer: e.cfg.FramesPerBuffer,
		SampleRate:      e.cfg.SampleRate,
	}

	stream, err := portaudio.OpenStream(params, e.processInputStream)
	if err != nil {
		return fmt.Errorf("failed to open input stream: %w", err)
	}
	e.inputStream = stream

	if err := e.inputStream.Start(); err != nil {
		e.inputStream.Close()
		e.inputStream = nil
		return fmt.Errorf("failed to start input stream: %w", err)
	}

	applog.Debugf("Audio: Input stream started")
	return nil
}

func (e *Engine) StopInputStream() error {
	if e.inputStream != nil {
		if err := e.inputStream.Stop(); err != nil {
			return fmt.Errorf("failed to stop input stream: %w", err)
		}

		if err := e.inputStream.Close(); err != nil {
			return fmt.Errorf("failed to close input stream: %w", err)
		}

		e.inputStream = nil
		applog.Debugf("Audio: Input stream stopped after %d blocks", e.blocks.Load())
	}

	return nil
}

// Close stops the stream if it is running.
func (e *Engine) Close() error {
	return e.StopInputStream()
}

// Blocks returns how many callback blocks reached the sink.
func (e *Engine) Blocks() uint64 {
	return e.blocks.Load()
}

// Gate returns the engine's noise gate.
func (e *Engine) Gate() *input.Gate {
	return e.gate
}

// processInputStream is the core audio processing callback.
// Performance Critical:
// - Runs in a dedicated OS thread (LockOSThread)
// - Uses pre-allocated buffers only
// - No dynamic allocations in the hot path
func (e *Engine) processInputStream(in []float32) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	var mono []float32
	if e.cfg.InputChannels <= 1 {
		// Copy so the gate never writes into PortAudio's buffer.
		mono = e.monoBuffer[:copy(e.monoBuffer, in)]
	} else {
		mono = input.Downmix(e.monoBuffer, in, e.cfg.InputChannels)
	}

	e.gate.Process(mono)
	e.sink.OnAudioBlock(mono)
	e.blocks.Add(1)
}
