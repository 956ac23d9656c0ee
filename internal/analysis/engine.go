// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math/cmplx"
	"strings"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/floats"
)

// WindowFunc selects the taper applied before the transform.
type WindowFunc int

const (
	Hamming WindowFunc = iota
	Hann
	BartlettHann
	Blackman
	BlackmanNuttall
	Lanczos
	Nuttall
)

func (w WindowFunc) String() string {
	switch w {
	case Hamming:
		return "hamming"
	case Hann:
		return "hann"
	case BartlettHann:
		return "bartletthann"
	case Blackman:
		return "blackman"
	case BlackmanNuttall:
		return "blackmannuttall"
	case Lanczos:
		return "lanczos"
	case Nuttall:
		return "nuttall"
	default:
		return fmt.Sprintf("WindowFunc(%d)", int(w))
	}
}

// ParseWindowFunc converts a case-insensitive name to a WindowFunc. Unknown
// names return Hamming and an error.
func ParseWindowFunc(name string) (WindowFunc, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "hamming":
		return Hamming, nil
	case "hann", "hanning":
		return Hann, nil
	case "bartletthann":
		return BartlettHann, nil
	case "blackman":
		return Blackman, nil
	case "blackmannuttall":
		return BlackmanNuttall, nil
	case "lanczos":
		return Lanczos, nil
	case "nuttall":
		return Nuttall, nil
	default:
		return Hamming, configErr("window", name, "unknown window function")
	}
}

// Engine converts a time-domain window into N/2+1 magnitudes.
//
// The window table and FFT plan are fixed at construction. coeffs and
// magnitude are scratch space overwritten on every call, so the output
// depends only on the input window.
type Engine struct {
	size      int
	windowFn  WindowFunc
	table     []float64
	fft       *fourier.FFT
	coeffs    []complex128
	magnitude []float64
}

// NewEngine builds an engine for windows of size samples.
func NewEngine(size int, fn WindowFunc) (*Engine, error) {
	if err := validateWindowSize(size); err != nil {
		return nil, err
	}
	if fn < Hamming || fn > Nuttall {
		return nil, configErr("window", fn, "unknown window function")
	}

	bins := size/2 + 1
	return &Engine{
		size:      size,
		windowFn:  fn,
		table:     windowTable(size, fn),
		fft:       fourier.NewFFT(size),
		coeffs:    make([]complex128, bins),
		magnitude: make([]float64, bins),
	}, nil
}

// Transform tapers w in place, runs the forward FFT and returns the
// magnitudes. The returned slice belongs to the engine and is overwritten by
// the next call. w must have exactly Size() samples.
func (e *Engine) Transform(w []float64) []float64 {
	if len(w) != e.size {
		panic(fmt.Sprintf("analysis: window length %d, engine size %d", len(w), e.size))
	}

	for i, c := range e.table {
		w[i] *= c
	}

	e.fft.Coefficients(e.coeffs, w)
	for i, c := range e.coeffs {
		e.magnitude[i] = cmplx.Abs(c)
	}
	return e.magnitude
}

// BinFrequency returns the centre frequency in Hz of bin i, or 0 when i is
// outside [0, Bins()).
func (e *Engine) BinFrequency(i int, sampleRate float64) float64 {
	if i < 0 || i >= len(e.magnitude) {
		return 0
	}
	return e.fft.Freq(i) * sampleRate
}

// Size returns the window length N.
func (e *Engine) Size() int { return e.size }

// Bins returns N/2+1.
func (e *Engine) Bins() int { return len(e.magnitude) }

// Window returns the taper in use.
func (e *Engine) Window() WindowFunc { return e.windowFn }

// windowTable returns the coefficients of fn for n samples, scaled so they
// sum to n. The taper then has unity gain and a full-scale sine centred on a
// bin reads n/2 whatever the window. gonum window functions scale a sequence
// in place, so they are applied to a run of ones.
func windowTable(n int, fn WindowFunc) []float64 {
	coeffs := make([]float64, n)
	for i := range coeffs {
		coeffs[i] = 1
	}
	switch fn {
	case Hann:
		window.Hann(coeffs)
	case BartlettHann:
		window.BartlettHann(coeffs)
	case Blackman:
		window.Blackman(coeffs)
	case BlackmanNuttall:
		window.BlackmanNuttall(coeffs)
	case Lanczos:
		window.Lanczos(coeffs)
	case Nuttall:
		window.Nuttall(coeffs)
	default:
		window.Hamming(coeffs)
	}
	floats.Scale(float64(n)/floats.Sum(coeffs), coeffs)
	return coeffs
}
