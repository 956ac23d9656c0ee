// SPDX-License-Identifier: MIT
/*
Package input adapts audio sources to the analyzer's push port.

Every source reduces its frames to mono and hands fixed-size blocks to a
Sink. Blocks are only valid for the duration of the call.
*/
package input

// Sink receives mono sample blocks. Implementations must not retain the
// slice after returning.
type Sink interface {
	OnAudioBlock(samples []float32)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(samples []float32)

// OnAudioBlock calls f(samples).
func (f SinkFunc) OnAudioBlock(samples []float32) { f(samples) }

// Downmix writes channel 0 of each interleaved frame into dst and returns
// dst[:frames]. When channels is 1 the input is returned unchanged. dst must
// hold at least len(interleaved)/channels samples.
func Downmix(dst, interleaved []float32, channels int) []float32 {
	if channels <= 1 {
		return interleaved
	}
	frames := len(interleaved) / channels
	for i := range frames {
		dst[i] = interleaved[i*channels]
	}
	return dst[:frames]
}
