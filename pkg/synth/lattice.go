package synth

import (
	"slices"

	"github.com/Faultbox/qr3d/pkg/heightmap"
)

// lattice is the (possibly compacted) cell layout. Cell (row j, col i) spans
// xs[i]..xs[i+1] and ys[j]..ys[j+1]; corner (i, j) sits at (xs[i], ys[j]).
type lattice struct {
	xs, ys  []float64
	heights [][]float64
	floor   float64
	splits  []float64

	levelCache map[[2]int][]float64
}

func (l *lattice) rows() int { return len(l.heights) }
func (l *lattice) cols() int { return len(l.heights[0]) }

func (l *lattice) inside(row, col int) bool {
	return row >= 0 && row < l.rows() && col >= 0 && col < l.cols()
}

// solid reports whether a cell carries a column. Cells outside the grid and
// cells at or below the floor are empty.
func (l *lattice) solid(row, col int) bool {
	return l.inside(row, col) && l.heights[row][col] > l.floor
}

// top returns the column height, or the floor for empty cells.
func (l *lattice) top(row, col int) float64 {
	if !l.solid(row, col) {
		return l.floor
	}
	return l.heights[row][col]
}

// quadrants lists the four cells around corner (i, j) in counter-clockwise
// order: (-x,-y), (+x,-y), (+x,+y), (-x,+y). Each entry is {row, col}.
func quadrants(i, j int) [4][2]int {
	return [4][2]int{
		{j - 1, i - 1},
		{j - 1, i},
		{j, i},
		{j, i - 1},
	}
}

func quadrantOf(i, j, row, col int) int {
	for q, c := range quadrants(i, j) {
		if c[0] == row && c[1] == col {
			return q
		}
	}
	panic("synth: cell does not touch corner")
}

// run returns the id of the group of consecutive quadrants around corner
// (i, j) that are solid at height z and contain the given cell. Columns
// meeting only diagonally get different ids.
func (l *lattice) run(i, j int, z float64, row, col int) int {
	quads := quadrants(i, j)
	var solidAt [4]bool
	start := -1
	for q, c := range quads {
		solidAt[q] = l.solid(c[0], c[1]) && l.heights[c[0]][c[1]] >= z
		if !solidAt[q] {
			start = q
		}
	}
	if start < 0 {
		return 0
	}

	var labels [4]int
	cur := -1
	for s := 1; s <= 4; s++ {
		q := (start + s) % 4
		if !solidAt[q] {
			cur = -1
			continue
		}
		if cur < 0 {
			cur = q
		}
		labels[q] = cur
	}
	return labels[quadrantOf(i, j, row, col)]
}

// levels returns the heights at which the vertical line through corner
// (i, j) is split: the floor, every incident column top, and the split
// levels crossing those columns. Walls meeting at the line share these
// vertices, which keeps the surface free of T-junctions.
func (l *lattice) levels(i, j int) []float64 {
	key := [2]int{i, j}
	if lv, ok := l.levelCache[key]; ok {
		return lv
	}
	lv := []float64{l.floor}
	highest := l.floor
	for _, c := range quadrants(i, j) {
		if l.solid(c[0], c[1]) {
			h := l.heights[c[0]][c[1]]
			lv = append(lv, h)
			highest = max(highest, h)
		}
	}
	for _, s := range l.splits {
		if s > l.floor && s < highest {
			lv = append(lv, s)
		}
	}
	slices.Sort(lv)
	lv = slices.Compact(lv)
	l.levelCache[key] = lv
	return lv
}

// span returns the levels of corner (i, j) within [lo, hi].
func (l *lattice) span(i, j int, lo, hi float64) []float64 {
	lv := l.levels(i, j)
	from, _ := slices.BinarySearch(lv, lo)
	to, found := slices.BinarySearch(lv, hi)
	if found {
		to++
	}
	return lv[from:to]
}

// newLattice lays the grid out with the given cell size. With compact set,
// a grid line is dropped when the cells on both sides are equal along its
// whole length, so merged cells are always uniform rectangles.
func newLattice(g *heightmap.Grid, cell float64, compact bool, floor float64, splits []float64) *lattice {
	colStarts := []int{0}
	for c := 1; c < g.Cols; c++ {
		keep := !compact
		for r := 0; r < g.Rows && !keep; r++ {
			keep = g.At(r, c-1) != g.At(r, c)
		}
		if keep {
			colStarts = append(colStarts, c)
		}
	}
	rowStarts := []int{0}
	for r := 1; r < g.Rows; r++ {
		keep := !compact
		for c := 0; c < g.Cols && !keep; c++ {
			keep = g.At(r-1, c) != g.At(r, c)
		}
		if keep {
			rowStarts = append(rowStarts, r)
		}
	}

	l := &lattice{
		floor:      floor,
		splits:     splits,
		levelCache: make(map[[2]int][]float64),
	}
	for _, c := range colStarts {
		l.xs = append(l.xs, float64(c)*cell)
	}
	l.xs = append(l.xs, float64(g.Cols)*cell)
	for _, r := range rowStarts {
		l.ys = append(l.ys, float64(r)*cell)
	}
	l.ys = append(l.ys, float64(g.Rows)*cell)

	l.heights = make([][]float64, len(rowStarts))
	for j, r := range rowStarts {
		l.heights[j] = make([]float64, len(colStarts))
		for i, c := range colStarts {
			l.heights[j][i] = g.At(r, c)
		}
	}
	return l
}
