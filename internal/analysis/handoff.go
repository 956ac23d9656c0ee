// SPDX-License-Identifier: MIT
package analysis

import "sync/atomic"

const (
	slotMask  = 0b011
	freshFlag = 0b100
)

// Handoff passes the latest level array from one producer goroutine to one
// consumer goroutine without locks.
//
// Three equally sized buffers rotate between roles. The producer owns back,
// the consumer owns front, and middle holds the most recent complete array.
// Publish fills back and exchanges it with middle; Latest exchanges middle
// with front only when middle holds something newer. Neither side ever
// touches the buffer the other one owns, so a reader can never observe a
// half written array, and neither side waits for the other.
type Handoff struct {
	bufs  [3][]float64
	seqs  [3]uint64     // publish number of each slot, owned with the slot
	state atomic.Uint32 // middle slot index | freshFlag

	back  int // producer owned
	front int // consumer owned

	published atomic.Uint64
}

// NewHandoff creates a handoff for arrays of length n. Until the first
// Publish, Latest returns n zeros.
func NewHandoff(n int) *Handoff {
	h := &Handoff{back: 2, front: 0}
	for i := range h.bufs {
		h.bufs[i] = make([]float64, n)
	}
	h.state.Store(1)
	return h
}

// Publish makes levels the latest array. Producer side only. A shorter input
// leaves the remaining entries at zero; extra entries are ignored.
func (h *Handoff) Publish(levels []float64) {
	buf := h.bufs[h.back]
	n := copy(buf, levels)
	clear(buf[n:])

	seq := h.published.Load() + 1
	h.seqs[h.back] = seq
	old := h.state.Swap(uint32(h.back) | freshFlag)
	h.back = int(old & slotMask)
	h.published.Store(seq)
}

// Latest returns the most recently published array. Consumer side only. The
// slice stays valid and unchanged until this consumer calls Latest again, so
// repeated calls with no publish in between return identical contents.
func (h *Handoff) Latest() []float64 {
	if h.state.Load()&freshFlag != 0 {
		old := h.state.Swap(uint32(h.front))
		h.front = int(old & slotMask)
	}
	return h.bufs[h.front]
}

// LatestSeq is Latest plus the publish number of the returned array, 0
// before the first publish. Consumer side only. Unlike pairing Latest with
// Published, the number always belongs to the returned contents.
func (h *Handoff) LatestSeq() ([]float64, uint64) {
	levels := h.Latest()
	return levels, h.seqs[h.front]
}

// Published returns the number of arrays published so far. Safe from any
// goroutine.
func (h *Handoff) Published() uint64 {
	return h.published.Load()
}

// Len returns the array length.
func (h *Handoff) Len() int {
	return len(h.bufs[0])
}
