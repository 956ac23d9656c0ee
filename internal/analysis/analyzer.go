// SPDX-License-Identifier: MIT
/*
Package analysis implements the real-time spectrum pipeline:

	OnAudioBlock -> SampleFifo -> Engine (window + FFT) -> LevelMapper -> Handoff -> Latest

Thread Safety:
  - OnAudioBlock is called by exactly one producer (the audio callback).
  - Latest is called by exactly one consumer (the renderer); every Tap has
    its own single consumer.
  - Nothing on the producer path locks, allocates or logs.
*/
package analysis

import (
	"context"
	applog "spectrometer/internal/log"
	"spectrometer/pkg/bitint"
	"sync/atomic"
)

// Default display geometry.
const (
	DefaultFFTOrder   = 11 // 2048 samples
	DefaultLevels     = 256
	DefaultSkew       = 0.1
	DefaultMinDB      = -115.0
	DefaultMaxDB      = -20.0
	DefaultSampleRate = 44100.0
)

// Config fixes the analyzer geometry at construction.
type Config struct {
	FFTOrder   int        // Window size is 2^FFTOrder.
	Levels     int        // Length of every published level array.
	Skew       float64    // LevelMapper frequency skew.
	MinDB      float64    // Level 0.
	MaxDB      float64    // Level 1.
	SampleRate float64    // Reference rate for bin frequencies (Hz).
	Window     WindowFunc // Taper applied before the FFT.

	// Deferred moves transform, mapping and publishing off the audio thread
	// onto the goroutine started by Run. The audio thread then only pushes.
	Deferred bool
}

// DefaultConfig returns the 2048-point, 256-level Hamming configuration.
func DefaultConfig() Config {
	return Config{
		FFTOrder:   DefaultFFTOrder,
		Levels:     DefaultLevels,
		Skew:       DefaultSkew,
		MinDB:      DefaultMinDB,
		MaxDB:      DefaultMaxDB,
		SampleRate: DefaultSampleRate,
		Window:     Hamming,
	}
}

// FFTSize returns 2^FFTOrder, or 0 for an out of range order.
func (c Config) FFTSize() int {
	return bitint.Pow2(c.FFTOrder)
}

// Validate checks the geometry without allocating any buffers.
func (c Config) Validate() error {
	if c.FFTOrder < 1 || c.FFTOrder > bitint.MaxOrder {
		return configErr("fft_order", c.FFTOrder, "window size 2^order must be a power of two >= 2")
	}
	if !(c.SampleRate > 0) {
		return configErr("sample_rate", c.SampleRate, "must be positive")
	}
	return c.mapperConfig().validate()
}

func (c Config) mapperConfig() MapperConfig {
	return MapperConfig{
		FFTSize: c.FFTSize(),
		Levels:  c.Levels,
		Skew:    c.Skew,
		MinDB:   c.MinDB,
		MaxDB:   c.MaxDB,
	}
}

// Stats are cumulative counters, readable from any goroutine.
type Stats struct {
	Windows   uint64 // Windows handed to the engine.
	Dropped   uint64 // Windows discarded because the previous one was unread.
	Published uint64 // Level arrays published.
}

// Analyzer connects the audio push port to the render pull port.
type Analyzer struct {
	cfg     Config
	fifo    *SampleFifo
	engine  *Engine
	mapper  *LevelMapper
	primary *Handoff
	taps    []*Handoff

	kick    chan struct{}
	windows atomic.Uint64
}

// NewAnalyzer validates cfg and allocates every buffer the pipeline needs.
func NewAnalyzer(cfg Config) (*Analyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	size := cfg.FFTSize()

	fifo, err := NewSampleFifo(size)
	if err != nil {
		return nil, err
	}
	engine, err := NewEngine(size, cfg.Window)
	if err != nil {
		return nil, err
	}
	mapper, err := NewLevelMapper(cfg.mapperConfig())
	if err != nil {
		return nil, err
	}

	applog.Infof("Analysis: Initializing Analyzer (FFT: %d, Levels: %d, Window: %s, SampleRate: %.1f Hz, Deferred: %t)",
		size, cfg.Levels, cfg.Window, cfg.SampleRate, cfg.Deferred)

	return &Analyzer{
		cfg:     cfg,
		fifo:    fifo,
		engine:  engine,
		mapper:  mapper,
		primary: NewHandoff(cfg.Levels),
		kick:    make(chan struct{}, 1),
	}, nil
}

// OnAudioBlock pushes a block of mono samples. Producer side only.
func (a *Analyzer) OnAudioBlock(samples []float32) {
	for _, s := range samples {
		if a.fifo.Push(s) != WindowReady {
			continue
		}
		a.windows.Add(1)
		if !a.cfg.Deferred {
			a.process()
			continue
		}
		select {
		case a.kick <- struct{}{}:
		default:
		}
	}
}

// Run drives the deferred worker until ctx is cancelled. In inline mode it
// returns immediately.
func (a *Analyzer) Run(ctx context.Context) error {
	if !a.cfg.Deferred {
		return nil
	}
	applog.Debugf("Analysis: deferred worker started")
	for {
		select {
		case <-ctx.Done():
			applog.Debugf("Analysis: deferred worker stopped")
			return ctx.Err()
		case <-a.kick:
			a.process()
		}
	}
}

func (a *Analyzer) process() {
	bins := a.engine.Transform(a.fifo.Window())
	a.fifo.Release()

	levels := a.mapper.Map(bins)
	a.primary.Publish(levels)
	for _, tap := range a.taps {
		tap.Publish(levels)
	}
}

// Latest returns the most recent level array for the primary consumer.
func (a *Analyzer) Latest() []float64 {
	return a.primary.Latest()
}

// Published returns how many arrays reached the primary handoff.
func (a *Analyzer) Published() uint64 {
	return a.primary.Published()
}

// Tap adds a handoff that receives every published array, for a consumer
// other than the primary one. Call it before audio starts flowing.
func (a *Analyzer) Tap() *Handoff {
	h := NewHandoff(a.cfg.Levels)
	a.taps = append(a.taps, h)
	return h
}

// Stats returns the cumulative counters.
func (a *Analyzer) Stats() Stats {
	return Stats{
		Windows:   a.windows.Load(),
		Dropped:   a.fifo.Dropped(),
		Published: a.primary.Published(),
	}
}

// Config returns the construction settings.
func (a *Analyzer) Config() Config { return a.cfg }

// Engine returns the spectrum engine. It is owned by the producer side.
func (a *Analyzer) Engine() *Engine { return a.engine }

// Mapper returns the level mapper. It is owned by the producer side.
func (a *Analyzer) Mapper() *LevelMapper { return a.mapper }
