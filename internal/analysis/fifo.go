// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"spectrometer/pkg/bitint"
	"sync/atomic"
)

// PushResult is returned by SampleFifo.Push for every sample.
type PushResult uint8

const (
	// Accepted means the sample was stored and no new window is available.
	// A window dropped under overload also reports Accepted.
	Accepted PushResult = iota
	// WindowReady means the sample completed a window and Window() holds it.
	WindowReady
)

func (r PushResult) String() string {
	if r == WindowReady {
		return "WindowReady"
	}
	return "Accepted"
}

// SampleFifo accumulates single samples into fixed-size analysis windows.
//
// Push is owned by the producer (the audio callback). The completed window
// is copied into a snapshot that stays pending until Release is called,
// possibly from another goroutine. While a snapshot is pending, newly
// completed windows are dropped instead of overwriting it.
type SampleFifo struct {
	buf      []float64
	snapshot []float64
	cursor   int // always in [0, len(buf))

	pending atomic.Bool
	dropped atomic.Uint64
}

// NewSampleFifo creates a fifo holding windows of size samples. size must be
// a power of two >= 2.
func NewSampleFifo(size int) (*SampleFifo, error) {
	if err := validateWindowSize(size); err != nil {
		return nil, err
	}
	return &SampleFifo{
		buf:      make([]float64, size),
		snapshot: make([]float64, size),
	}, nil
}

// Push stores one sample. It never blocks and never allocates.
func (f *SampleFifo) Push(sample float32) PushResult {
	f.buf[f.cursor] = float64(sample)
	f.cursor++
	if f.cursor < len(f.buf) {
		return Accepted
	}
	f.cursor = 0

	// The snapshot is still being read; keep it intact and lose this window.
	if f.pending.Load() {
		f.dropped.Add(1)
		return Accepted
	}
	copy(f.snapshot, f.buf)
	f.pending.Store(true)
	return WindowReady
}

// Window returns the last completed window. The caller owns it until Release.
func (f *SampleFifo) Window() []float64 {
	return f.snapshot
}

// Release marks the pending window as consumed, allowing the next one in.
func (f *SampleFifo) Release() {
	f.pending.Store(false)
}

// Pending reports whether a completed window is waiting to be consumed.
func (f *SampleFifo) Pending() bool {
	return f.pending.Load()
}

// Size returns the window length.
func (f *SampleFifo) Size() int {
	return len(f.buf)
}

// Cursor returns the write position in [0, Size()).
func (f *SampleFifo) Cursor() int {
	return f.cursor
}

// Dropped returns how many completed windows were discarded under overload.
func (f *SampleFifo) Dropped() uint64 {
	return f.dropped.Load()
}

func validateWindowSize(size int) error {
	order, ok := bitint.Order(size)
	if !ok {
		return configErr("fft_size", size,
			fmt.Sprintf("must be a power of two, nearest above is %d", bitint.NextPowerOfTwo(size)))
	}
	if order < 1 {
		return configErr("fft_size", size, "must be at least 2")
	}
	return nil
}
