// Package heightmap converts a QR raster into a grid of column heights.
package heightmap

import (
	"slices"
)

// Grid holds one height per raster cell in row-major order.
// Row 0 is the first image row. Heights are in millimeters and never negative.
type Grid struct {
	Rows    int
	Cols    int
	Heights []float64
}

// NewGrid creates a grid filled with h.
func NewGrid(rows, cols int, h float64) *Grid {
	g := &Grid{Rows: rows, Cols: cols, Heights: make([]float64, rows*cols)}
	for i := range g.Heights {
		g.Heights[i] = h
	}
	return g
}

// FromRows creates a grid from nested rows. All rows must have equal length.
func FromRows(rows [][]float64) *Grid {
	if len(rows) == 0 {
		return &Grid{}
	}
	g := &Grid{Rows: len(rows), Cols: len(rows[0])}
	g.Heights = make([]float64, 0, g.Rows*g.Cols)
	for _, r := range rows {
		g.Heights = append(g.Heights, r[:g.Cols]...)
	}
	return g
}

// Empty reports whether the grid has no cells.
func (g *Grid) Empty() bool {
	return g == nil || g.Rows <= 0 || g.Cols <= 0 || len(g.Heights) < g.Rows*g.Cols
}

// At returns the height at (row, col). Out of range cells return 0.
func (g *Grid) At(row, col int) float64 {
	if row < 0 || row >= g.Rows || col < 0 || col >= g.Cols {
		return 0
	}
	return g.Heights[row*g.Cols+col]
}

func (g *Grid) set(row, col int, h float64) {
	g.Heights[row*g.Cols+col] = h
}

// Min returns the lowest height.
func (g *Grid) Min() float64 {
	if len(g.Heights) == 0 {
		return 0
	}
	return slices.Min(g.Heights)
}

// Max returns the highest height.
func (g *Grid) Max() float64 {
	if len(g.Heights) == 0 {
		return 0
	}
	return slices.Max(g.Heights)
}

// Levels returns the distinct heights in ascending order.
func (g *Grid) Levels() []float64 {
	levels := slices.Clone(g.Heights)
	slices.Sort(levels)
	return slices.Compact(levels)
}

// Uniform reports whether every cell has the same height.
func (g *Grid) Uniform() bool {
	return len(g.Levels()) <= 1
}

// FlipRows returns a copy mirrored vertically, so that the first image row
// ends up at the largest Y coordinate once meshed.
func (g *Grid) FlipRows() *Grid {
	out := &Grid{Rows: g.Rows, Cols: g.Cols, Heights: make([]float64, len(g.Heights))}
	for r := 0; r < g.Rows; r++ {
		copy(out.Heights[r*g.Cols:(r+1)*g.Cols], g.Heights[(g.Rows-1-r)*g.Cols:(g.Rows-r)*g.Cols])
	}
	return out
}

// Map returns a copy with f applied to every height.
func (g *Grid) Map(f func(h float64) float64) *Grid {
	out := &Grid{Rows: g.Rows, Cols: g.Cols, Heights: make([]float64, len(g.Heights))}
	for i, h := range g.Heights {
		out.Heights[i] = f(h)
	}
	return out
}
