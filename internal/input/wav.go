// SPDX-License-Identifier: MIT
package input

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	applog "spectrometer/internal/log"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVSource streams a PCM WAV file to a Sink as mono float32 blocks.
type WAVSource struct {
	// Realtime paces blocks at the file's sample rate instead of delivering
	// them as fast as they decode.
	Realtime bool
	// Gate, when set, is applied to each block before delivery.
	Gate *Gate

	path     string
	file     *os.File
	decoder  *wav.Decoder
	format   *audio.Format
	bitDepth int
	frames   int
	duration time.Duration

	intBuf *audio.IntBuffer
	interl []float32
	mono   []float32
	scale  float32
	offset int // 8-bit PCM is unsigned
}

const wavFormatPCM = 1

// OpenWAV opens and validates path. Blocks carry framesPerBuffer frames; the
// final block may be shorter.
func OpenWAV(path string, framesPerBuffer int) (*WAVSource, error) {
	if framesPerBuffer <= 0 {
		return nil, fmt.Errorf("frames per buffer must be positive, got %d", framesPerBuffer)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		_ = f.Close()
		return nil, fmt.Errorf("invalid WAV file: %s", path)
	}

	format := decoder.Format()
	bitDepth := int(decoder.BitDepth)
	if decoder.WavAudioFormat != wavFormatPCM || format.NumChannels < 1 || bitDepth%8 != 0 || bitDepth < 8 || bitDepth > 32 {
		_ = f.Close()
		return nil, fmt.Errorf("unsupported WAV format in %s: format %d, %d channels, %d-bit",
			path, decoder.WavAudioFormat, format.NumChannels, bitDepth)
	}

	duration, err := decoder.Duration()
	if err != nil {
		duration = 0
	}

	channels := format.NumChannels
	s := &WAVSource{
		path:     path,
		file:     f,
		decoder:  decoder,
		format:   format,
		bitDepth: bitDepth,
		frames:   framesPerBuffer,
		duration: duration,
		intBuf: &audio.IntBuffer{
			Data:   make([]int, framesPerBuffer*channels),
			Format: format,
		},
		interl: make([]float32, framesPerBuffer*channels),
		mono:   make([]float32, framesPerBuffer),
		scale:  1 / float32(int64(1)<<(bitDepth-1)),
	}
	if bitDepth == 8 {
		s.offset = 128
	}

	applog.Infof("WAVSource: Opened %s (%d Hz, %d channels, %d-bit, %s)",
		path, format.SampleRate, channels, bitDepth, duration)
	return s, nil
}

// SampleRate returns the file's sample rate in Hz.
func (s *WAVSource) SampleRate() float64 {
	return float64(s.format.SampleRate)
}

// Channels returns the file's channel count.
func (s *WAVSource) Channels() int {
	return s.format.NumChannels
}

// Duration returns the file length, or 0 if the header does not say.
func (s *WAVSource) Duration() time.Duration {
	return s.duration
}

// Run decodes the file and delivers every block to sink. It returns nil at
// end of file and ctx.Err() when cancelled.
func (s *WAVSource) Run(ctx context.Context, sink Sink) error {
	channels := s.format.NumChannels

	var tick <-chan time.Time
	if s.Realtime {
		period := time.Duration(float64(time.Second) * float64(s.frames) / s.SampleRate())
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		tick = ticker.C
	}

	var blocks int
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.intBuf.Data = s.intBuf.Data[:cap(s.intBuf.Data)]
		n, err := s.decoder.PCMBuffer(s.intBuf)
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to read audio data: %w", err)
		}
		// Drop a trailing partial frame.
		n -= n % channels
		if n == 0 {
			applog.Debugf("WAVSource: %s finished after %d blocks", s.path, blocks)
			return nil
		}

		for i, v := range s.intBuf.Data[:n] {
			s.interl[i] = float32(v-s.offset) * s.scale
		}
		block := Downmix(s.mono, s.interl[:n], channels)
		if s.Gate != nil {
			s.Gate.Process(block)
		}

		if tick != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-tick:
			}
		}
		sink.OnAudioBlock(block)
		blocks++
	}
}

// Close releases the file.
func (s *WAVSource) Close() error {
	return s.file.Close()
}
