// SPDX-License-Identifier: MIT
package input

import "math"

const absMask = 0x7fffffff

// Gate silences blocks whose peak amplitude stays below a threshold. A closed
// gate zeroes the block rather than withholding it, so window cadence is
// unaffected and quiet input sits on the display floor.
//
// The peak scan compares IEEE bit patterns with the sign bit cleared, which
// orders non-negative floats the same way as their values.
type Gate struct {
	enabled   bool
	threshold uint32 // bit pattern of the float32 threshold
}

// NewGate returns a gate at threshold, in [0, 1] full scale. Zero disables it.
func NewGate(threshold float64) *Gate {
	g := &Gate{}
	g.SetThreshold(threshold)
	if threshold > 0 {
		g.Enable()
	}
	return g
}

func (g *Gate) Enable() {
	g.enabled = true
}

func (g *Gate) Disable() {
	g.enabled = false
}

// Enabled reports whether the gate is active.
func (g *Gate) Enabled() bool {
	return g.enabled
}

// SetThreshold adjusts the gate threshold, clamped to [0, 1] where 0 is
// always open and 1 is always closed for non-clipping input.
func (g *Gate) SetThreshold(threshold float64) {
	threshold = math.Min(math.Max(threshold, 0), 1)
	g.threshold = math.Float32bits(float32(threshold))
}

// Threshold returns the current threshold.
func (g *Gate) Threshold() float64 {
	return float64(math.Float32frombits(g.threshold))
}

// Process zeroes block in place when the gate is closed and reports whether
// it was open. No allocation.
func (g *Gate) Process(block []float32) bool {
	if !g.enabled {
		return true
	}
	var peak uint32
	for _, s := range block {
		if a := math.Float32bits(s) & absMask; a > peak {
			peak = a
		}
	}
	if peak > g.threshold {
		return true
	}
	clear(block)
	return false
}
