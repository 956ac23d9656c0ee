// SPDX-License-Identifier: MIT
// Package utils holds signal generators and sinks shared by tests and the
// offline analyze command.
package utils

import (
	"math"
	"sync"
)

// BlockRecorder is a sink that keeps a copy of every block it receives.
type BlockRecorder struct {
	mu     sync.Mutex
	blocks [][]float32
}

// OnAudioBlock stores a copy of samples.
func (r *BlockRecorder) OnAudioBlock(samples []float32) {
	block := make([]float32, len(samples))
	copy(block, samples)
	r.mu.Lock()
	r.blocks = append(r.blocks, block)
	r.mu.Unlock()
}

// Blocks returns the recorded blocks in arrival order.
func (r *BlockRecorder) Blocks() [][]float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]float32, len(r.blocks))
	copy(out, r.blocks)
	return out
}

// Samples returns all recorded samples concatenated.
func (r *BlockRecorder) Samples() []float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []float32
	for _, b := range r.blocks {
		out = append(out, b...)
	}
	return out
}

// GenerateSineWave returns size samples of a sine at frequency Hz.
func GenerateSineWave(size int, sampleRate, frequency, amplitude float64) []float32 {
	buffer := make([]float32, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = float32(amplitude * math.Sin(2*math.Pi*frequency*t))
	}
	return buffer
}

// GenerateComplexWave returns a 440 Hz fundamental with two harmonics.
func GenerateComplexWave(size int, sampleRate float64) []float32 {
	buffer := make([]float32, size)
	for i := range buffer {
		tm := float64(i) / sampleRate
		signal := math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2
		buffer[i] = float32(signal * 0.9)
	}
	return buffer
}

// FindPeakBin returns the index of the largest value in
// magnitudes[startBin:endBin+1], clamping the range to the slice.
func FindPeakBin(magnitudes []float64, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}
	if startBin < 0 {
		startBin = 0
	}
	if endBin >= len(magnitudes) {
		endBin = len(magnitudes) - 1
	}

	peakBin := startBin
	peakValue := magnitudes[startBin]
	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > peakValue {
			peakValue = magnitudes[bin]
			peakBin = bin
		}
	}
	return peakBin
}
