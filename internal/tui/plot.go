// SPDX-License-Identifier: MIT
package tui

import "strings"

// Braille dot positions (col, row) → bit offset:
//
//	(0,0)=0  (1,0)=3
//	(0,1)=1  (1,1)=4
//	(0,2)=2  (1,2)=5
//	(0,3)=6  (1,3)=7
var brailleBits = [2][4]uint8{
	{0, 1, 2, 6},
	{3, 4, 5, 7},
}

const brailleBlank = 0x2800

// Plot rasterises levels as a connected polyline into rows lines of cols
// braille cells. Each cell holds 2x4 dots. Vertex i sits at
// x = i*(dotCols-1)/(n-1) and y = (1-level)*(dotRows-1), so level 0 lies on
// the bottom dot row and level 1 on the top one. Levels outside [0, 1] are
// clamped.
func Plot(levels []float64, cols, rows int) []string {
	if cols < 1 || rows < 1 {
		return nil
	}
	dotCols, dotRows := cols*2, rows*4
	cells := make([]uint8, cols*rows)

	set := func(x, y int) {
		cells[(y/4)*cols+x/2] |= 1 << brailleBits[x%2][y%4]
	}
	toY := func(level float64) int {
		level = min(max(level, 0), 1)
		return int((1-level)*float64(dotRows-1) + 0.5)
	}

	switch len(levels) {
	case 0:
	case 1:
		y := toY(levels[0])
		for x := range dotCols {
			set(x, y)
		}
	default:
		last := len(levels) - 1
		px, py := 0, toY(levels[0])
		for i := 1; i <= last; i++ {
			x := (i*(dotCols-1) + last/2) / last
			y := toY(levels[i])
			line(px, py, x, y, set)
			px, py = x, y
		}
	}

	out := make([]string, rows)
	var sb strings.Builder
	for r := range rows {
		sb.Reset()
		for _, c := range cells[r*cols : (r+1)*cols] {
			sb.WriteRune(rune(brailleBlank + int(c)))
		}
		out[r] = sb.String()
	}
	return out
}

// line draws from (x0, y0) to (x1, y1) inclusive with Bresenham's algorithm.
func line(x0, y0, x1, y1 int, set func(x, y int)) {
	dx, dy := abs(x1-x0), -abs(y1-y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		set(x0, y0)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
