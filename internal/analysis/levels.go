// SPDX-License-Identifier: MIT
package analysis

import "math"

// MapperConfig is the display geometry of a LevelMapper.
type MapperConfig struct {
	FFTSize int     // N, the transform size the bins came from.
	Levels  int     // Output length, one value per horizontal position.
	Skew    float64 // Frequency skew, smaller favours low bins.
	MinDB   float64 // Level 0.
	MaxDB   float64 // Level 1.
}

// LevelMapper turns N/2+1 magnitudes into Levels values in [0, 1].
//
// Display index i reads bin round(p*N/3) where p = 1-(1-i/Levels)^Skew.
// The /3 keeps roughly the lower two thirds of the spectrum on screen, and
// the skew widens the low (voice) range at the expense of the top end.
type LevelMapper struct {
	cfg   MapperConfig
	index []int   // bin read by each display position
	refDB float64 // dB of N, the FFT gain of a full-scale sine
	out   []float64
}

func (cfg MapperConfig) validate() error {
	if err := validateWindowSize(cfg.FFTSize); err != nil {
		return err
	}
	if cfg.Levels <= 0 {
		return configErr("levels", cfg.Levels, "must be positive")
	}
	if !(cfg.Skew > 0) || math.IsInf(cfg.Skew, 0) {
		return configErr("skew", cfg.Skew, "must be a positive finite number")
	}
	if !(cfg.MinDB < cfg.MaxDB) || math.IsInf(cfg.MinDB, 0) || math.IsInf(cfg.MaxDB, 0) {
		return configErr("min_db", cfg.MinDB, "must be finite and below max_db")
	}
	return nil
}

// NewLevelMapper validates cfg and precomputes the bin table.
func NewLevelMapper(cfg MapperConfig) (*LevelMapper, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	m := &LevelMapper{
		cfg:   cfg,
		index: make([]int, cfg.Levels),
		refDB: gainToDecibels(float64(cfg.FFTSize)),
		out:   make([]float64, cfg.Levels),
	}

	n := float64(cfg.FFTSize)
	maxBin := cfg.FFTSize / 2
	for i := range m.index {
		p := 1 - math.Exp(math.Log(1-float64(i)/float64(cfg.Levels))*cfg.Skew)
		m.index[i] = clampInt(int(math.Round(p*n/3)), 0, maxBin)
	}
	return m, nil
}

// Map fills the mapper's own output buffer and returns it. The buffer is
// reused by the next Map call.
func (m *LevelMapper) Map(bins []float64) []float64 {
	m.MapInto(m.out, bins)
	return m.out
}

// MapInto writes Levels() values into dst. bins must hold at least N/2+1
// magnitudes and dst at least Levels() entries.
func (m *LevelMapper) MapInto(dst, bins []float64) {
	span := m.cfg.MaxDB - m.cfg.MinDB
	for i, bin := range m.index {
		mag := bins[bin]
		// Silence, negative or NaN input sits on the floor.
		if !(mag > 0) {
			dst[i] = 0
			continue
		}
		db := gainToDecibels(mag) - m.refDB
		db = math.Min(math.Max(db, m.cfg.MinDB), m.cfg.MaxDB)
		dst[i] = (db - m.cfg.MinDB) / span
	}
}

// BinIndex returns the bin displayed at position i.
func (m *LevelMapper) BinIndex(i int) int {
	return m.index[i]
}

// Levels returns the output length.
func (m *LevelMapper) Levels() int {
	return m.cfg.Levels
}

func gainToDecibels(gain float64) float64 {
	return 20 * math.Log10(gain)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
