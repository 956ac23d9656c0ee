// SPDX-License-Identifier: MIT
package input

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDownmix(t *testing.T) {
	tests := []struct {
		name     string
		in       []float32
		channels int
		want     []float32
	}{
		{"Mono passthrough", []float32{1, 2, 3}, 1, []float32{1, 2, 3}},
		{"Stereo takes left", []float32{1, -1, 2, -2, 3, -3}, 2, []float32{1, 2, 3}},
		{"Quad", []float32{1, 9, 9, 9, 2, 9, 9, 9}, 4, []float32{1, 2}},
		{"Trailing partial frame", []float32{1, 9, 2}, 2, []float32{1}},
		{"Empty", []float32{}, 2, []float32{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := make([]float32, len(tt.in))
			assert.Equal(t, tt.want, Downmix(dst, tt.in, tt.channels))
		})
	}
}

func TestDownmixZeroAllocs(t *testing.T) {
	in := make([]float32, 1024)
	dst := make([]float32, 512)
	allocs := testing.AllocsPerRun(100, func() {
		Downmix(dst, in, 2)
	})
	if allocs > 0 {
		t.Errorf("Downmix allocated memory: got %.1f allocs, want 0", allocs)
	}
}

func TestSinkFunc(t *testing.T) {
	var got int
	var s Sink = SinkFunc(func(b []float32) { got += len(b) })
	s.OnAudioBlock(make([]float32, 7))
	assert.Equal(t, 7, got)
}
