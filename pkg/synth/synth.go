// Package synth turns a height grid into a closed triangle mesh made of one
// rectangular column per solid cell.
package synth

import (
	"errors"
	"fmt"
	"slices"

	"github.com/Faultbox/qr3d/pkg/heightmap"
	"github.com/Faultbox/qr3d/pkg/math"
	"github.com/Faultbox/qr3d/pkg/mesh"
)

// Sentinel errors.
var (
	ErrEmptyGrid       = errors.New("height grid is empty")
	ErrInvalidCellSize = errors.New("cell size must be positive")
)

// baseTolerance absorbs float noise when comparing a height to the base level.
const baseTolerance = 1e-9

// Options configures Synthesize.
type Options struct {
	CellSize             float64 // cell edge length in mm
	IncludeBase          bool    // emit bottom faces at Floor
	IncludeInternalWalls bool    // emit walls between cells of different height
	// BaseLevel is the height of the base plate. Cells at or below it are
	// tagged as base. Zero means the lowest height of the grid.
	BaseLevel float64
	// Floor is the bottom of every column. Cells at or below it are empty.
	Floor float64
	// SplitLevels adds extra vertices on walls crossing these heights.
	// Including BaseLevel tags the part of outer walls below it as base.
	SplitLevels []float64
	// Compact merges runs of identical rows and columns before meshing.
	Compact bool
}

// DefaultOptions returns a closed, compacted mesh with the given cell size.
func DefaultOptions(cellSize float64) Options {
	return Options{
		CellSize:             cellSize,
		IncludeBase:          true,
		IncludeInternalWalls: true,
		Compact:              true,
	}
}

// Summary describes the generated geometry.
type Summary struct {
	Rows          int // rows after compaction
	Cols          int // columns after compaction
	SolidCells    int
	InternalWalls int
	OuterWalls    int
	Triangles     int
	Vertices      int
}

type vertexKey struct {
	i, j int
	z    float64
	run  int
}

type builder struct {
	l       *lattice
	opts    Options
	m       *mesh.Mesh
	verts   map[vertexKey]int
	sum     Summary
	baseCut bool
}

// Synthesize builds the mesh for grid. Grid row r covers y in
// [r*CellSize, (r+1)*CellSize]; flip the grid first to keep image orientation.
func Synthesize(grid *heightmap.Grid, opts Options) (*mesh.Mesh, Summary, error) {
	if grid.Empty() {
		return nil, Summary{}, ErrEmptyGrid
	}
	if !(opts.CellSize > 0) {
		return nil, Summary{}, fmt.Errorf("%w: %g", ErrInvalidCellSize, opts.CellSize)
	}
	if lo := grid.Min(); lo < 0 {
		return nil, Summary{}, fmt.Errorf("%w: negative cell height %g", heightmap.ErrInvalidHeight, lo)
	}
	if opts.BaseLevel <= opts.Floor {
		opts.BaseLevel = grid.Min()
	}

	b := &builder{
		l:       newLattice(grid, opts.CellSize, opts.Compact, opts.Floor, opts.SplitLevels),
		opts:    opts,
		m:       mesh.New(),
		verts:   make(map[vertexKey]int),
		baseCut: slices.Contains(opts.SplitLevels, opts.BaseLevel),
	}
	b.sum.Rows, b.sum.Cols = b.l.rows(), b.l.cols()
	b.m.Reserve(8*b.sum.Rows*b.sum.Cols, 12*b.sum.Rows*b.sum.Cols)

	for j := 0; j < b.l.rows(); j++ {
		for i := 0; i < b.l.cols(); i++ {
			if !b.l.solid(j, i) {
				continue
			}
			b.sum.SolidCells++
			b.cell(j, i)
		}
	}

	b.sum.Triangles = len(b.m.Triangles)
	b.sum.Vertices = len(b.m.Vertices)
	return b.m, b.sum, nil
}

// vertex returns the index of corner (i, j) at height z as seen from cell
// (row, col), creating it on first use.
func (b *builder) vertex(i, j int, z float64, row, col int) int {
	key := vertexKey{i: i, j: j, z: z, run: b.l.run(i, j, z, row, col)}
	if idx, ok := b.verts[key]; ok {
		return idx
	}
	idx := b.m.AddVertex(math.Vec3{X: b.l.xs[i], Y: b.l.ys[j], Z: z})
	b.verts[key] = idx
	return idx
}

func (b *builder) isBase(h float64) bool {
	return h <= b.opts.BaseLevel+baseTolerance
}

func (b *builder) cell(j, i int) {
	h := b.l.heights[j][i]

	v00 := b.vertex(i, j, h, j, i)
	v10 := b.vertex(i+1, j, h, j, i)
	v11 := b.vertex(i+1, j+1, h, j, i)
	v01 := b.vertex(i, j+1, h, j, i)
	topTag := mesh.Feature
	if b.isBase(h) {
		topTag = mesh.TopSurface
	}
	b.m.AddTriangle(v00, v10, v11, topTag)
	b.m.AddTriangle(v00, v11, v01, topTag)

	if b.opts.IncludeBase {
		f := b.l.floor
		v00 = b.vertex(i, j, f, j, i)
		v10 = b.vertex(i+1, j, f, j, i)
		v11 = b.vertex(i+1, j+1, f, j, i)
		v01 = b.vertex(i, j+1, f, j, i)
		b.m.AddTriangle(v00, v11, v10, mesh.Base)
		b.m.AddTriangle(v00, v01, v11, mesh.Base)
	}

	// Each wall runs from corner a to corner b so that the quad
	// (a_lo, b_lo, b_hi, a_hi) faces away from the cell.
	b.wall(j, i, j, i+1, [2]int{i + 1, j}, [2]int{i + 1, j + 1}) // +x
	b.wall(j, i, j, i-1, [2]int{i, j + 1}, [2]int{i, j})         // -x
	b.wall(j, i, j+1, i, [2]int{i + 1, j + 1}, [2]int{i, j + 1}) // +y
	b.wall(j, i, j-1, i, [2]int{i, j}, [2]int{i + 1, j})         // -y
}

// wall closes the side of cell (j, i) facing neighbor (nj, ni) when the
// neighbor is lower.
func (b *builder) wall(j, i, nj, ni int, a, c [2]int) {
	h := b.l.heights[j][i]
	lo := b.l.top(nj, ni)
	if lo >= h {
		return
	}
	internal := b.l.inside(nj, ni)
	if internal && !b.opts.IncludeInternalWalls {
		return
	}
	if internal {
		b.sum.InternalWalls++
	} else {
		b.sum.OuterWalls++
	}

	tag := mesh.Wall
	if !internal && b.isBase(h) {
		tag = mesh.Base
	}

	left := b.l.span(a[0], a[1], lo, h)
	right := b.l.span(c[0], c[1], lo, h)
	av := make([]int, len(left))
	for k, z := range left {
		av[k] = b.vertex(a[0], a[1], z, j, i)
	}
	bv := make([]int, len(right))
	for k, z := range right {
		bv[k] = b.vertex(c[0], c[1], z, j, i)
	}

	emit := func(p, q, r int, zsum float64) {
		t := tag
		if !internal && b.baseCut && zsum/3 < b.opts.BaseLevel {
			t = mesh.Base
		}
		b.m.AddTriangle(p, q, r, t)
	}

	// Zip the two vertical chains together, always advancing the side whose
	// next level is lower.
	x, y := 0, 0
	for x < len(av)-1 || y < len(bv)-1 {
		if y < len(bv)-1 && (x == len(av)-1 || right[y+1] <= left[x+1]) {
			emit(av[x], bv[y], bv[y+1], left[x]+right[y]+right[y+1])
			y++
		} else {
			emit(av[x], bv[y], av[x+1], left[x]+right[y]+left[x+1])
			x++
		}
	}
}
