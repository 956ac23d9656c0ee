// SPDX-License-Identifier: MIT
package transport

import (
	applog "spectrometer/internal/log"
	"sync/atomic"

	"gonum.org/v1/gonum/floats"
)

// LoggingTransport implements the Transport interface by logging a one line
// summary of each frame. The headless mode uses it as its consumer.
type LoggingTransport struct {
	frames atomic.Uint64
}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	applog.Infof("Transport: Using LoggingTransport")
	return &LoggingTransport{}
}

// Send logs the peak position and value of frame at debug level.
func (lt *LoggingTransport) Send(frame Frame) error {
	lt.frames.Add(1)
	if len(frame.Levels) == 0 {
		return nil
	}
	peak := floats.MaxIdx(frame.Levels)
	applog.Debugf("LoggingTransport: frame %d peak index %d level %.3f mean %.3f",
		frame.Seq, peak, frame.Levels[peak], floats.Sum(frame.Levels)/float64(len(frame.Levels)))
	return nil
}

// Frames returns how many frames were received.
func (lt *LoggingTransport) Frames() uint64 {
	return lt.frames.Load()
}

// Close logs the frame count.
func (lt *LoggingTransport) Close() error {
	applog.Infof("LoggingTransport: Closed after %d frames", lt.frames.Load())
	return nil
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)
