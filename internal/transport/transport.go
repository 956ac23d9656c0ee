// SPDX-License-Identifier: MIT
/*
Package transport publishes level arrays to consumers outside the process.

Every transport reads from its own LevelSource (an analyzer tap), so each
one is the single consumer of its handoff. Nothing here runs on the audio
thread.
*/
package transport

import (
	"context"
	applog "spectrometer/internal/log"
	"time"
)

// LevelSource is the pull side of a level handoff (an *analysis.Handoff).
type LevelSource interface {
	// LatestSeq returns the newest array and the publish number it carries.
	LatestSeq() ([]float64, uint64)
	// Published returns the number of arrays published so far.
	Published() uint64
	// Len returns the array length.
	Len() int
}

// Frame is one published level array. Levels is only valid during Send.
type Frame struct {
	Seq    uint64    `json:"seq"`
	Levels []float64 `json:"levels"`
}

// Transport defines a generic interface for sending frames.
// Implementations should be thread-safe.
type Transport interface {
	Send(frame Frame) error
	Close() error
}

// Pump polls src every interval and sends each newly published array to t.
// Arrays published between two polls are coalesced into the latest one. It
// returns ctx.Err() when ctx is cancelled.
func Pump(ctx context.Context, src LevelSource, t Transport, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var (
		last uint64
		buf  []float64
	)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if src.Published() == last {
			continue
		}
		// The seq comes with the array, so a publish racing this read
		// cannot relabel it.
		latest, seq := src.LatestSeq()
		if seq == last {
			continue
		}
		last = seq

		if cap(buf) < len(latest) {
			buf = make([]float64, len(latest))
		}
		buf = buf[:copy(buf[:len(latest)], latest)]

		if err := t.Send(Frame{Seq: seq, Levels: buf}); err != nil {
			applog.Warnf("Transport: send of frame %d failed: %v", seq, err)
		}
	}
}
