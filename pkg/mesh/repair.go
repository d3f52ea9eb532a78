package mesh

import (
	"fmt"
	stdmath "math"

	"github.com/Faultbox/qr3d/pkg/math"
)

// RepairOptions controls Repair.
type RepairOptions struct {
	// Epsilon is the merge distance for coincident vertices.
	Epsilon float64
	// FillHoles closes remaining boundary loops with fan triangles.
	FillHoles bool
}

// DefaultRepairOptions returns the options used by the conversion pipeline.
func DefaultRepairOptions() RepairOptions {
	return RepairOptions{Epsilon: DefaultEpsilon, FillHoles: true}
}

// Result is the outcome of Process.
type Result struct {
	Initial  Report
	Final    Report
	Repaired bool
	Steps    []string
}

// Process validates m and repairs it when the report is not clean.
// A clean mesh is returned unchanged.
func Process(m *Mesh, opts RepairOptions) (*Mesh, Result) {
	res := Result{Initial: Validate(m)}
	if res.Initial.Clean() {
		res.Final = res.Initial
		return m, res
	}
	out, steps := Repair(m, opts)
	res.Repaired = true
	res.Steps = steps
	res.Final = Validate(out)
	return out, res
}

// Repair returns a repaired copy of m and the list of steps that changed it.
//
// Only vertices lying on boundary edges are merged, so columns that touch
// diagonally keep their separate vertex copies.
func Repair(m *Mesh, opts RepairOptions) (*Mesh, []string) {
	if opts.Epsilon <= 0 {
		opts.Epsilon = DefaultEpsilon
	}
	out := m.Clone()
	var steps []string

	if n := mergeBoundaryVertices(out, opts.Epsilon); n > 0 {
		steps = append(steps, pluralize("merged", n, "vertex", "vertices"))
	}
	if n := removeDuplicateFaces(out); n > 0 {
		steps = append(steps, pluralize("removed", n, "duplicate face", "duplicate faces"))
	}
	if n := removeDegenerateFaces(out, opts.Epsilon); n > 0 {
		steps = append(steps, pluralize("removed", n, "degenerate face", "degenerate faces"))
	}
	if n := removeUnreferencedVertices(out); n > 0 {
		steps = append(steps, pluralize("removed", n, "unreferenced vertex", "unreferenced vertices"))
	}
	if !Validate(out).WindingConsistent || out.Volume() < 0 {
		if n := reorient(out); n > 0 {
			steps = append(steps, pluralize("flipped", n, "face", "faces"))
		}
	}
	if opts.FillHoles && Validate(out).BoundaryEdges > 0 {
		if n := fillHoles(out); n > 0 {
			steps = append(steps, pluralize("filled", n, "hole", "holes"))
		}
		// Fill faces follow the surrounding winding, but the volume sign of an
		// open shell is not meaningful until it is closed.
		if out.Volume() < 0 {
			if n := reorient(out); n > 0 {
				steps = append(steps, pluralize("flipped", n, "face", "faces"))
			}
		}
	}
	return out, steps
}

func pluralize(verb string, n int, one, many string) string {
	if n == 1 {
		return fmt.Sprintf("%s %d %s", verb, n, one)
	}
	return fmt.Sprintf("%s %d %s", verb, n, many)
}

type cellKey [3]int64

func cellOf(p math.Vec3, eps float64) cellKey {
	return cellKey{
		int64(stdmath.Floor(p.X / eps)),
		int64(stdmath.Floor(p.Y / eps)),
		int64(stdmath.Floor(p.Z / eps)),
	}
}

// mergeBoundaryVertices welds boundary vertices closer than eps using a
// spatial hash of eps-sized cells. It returns the number of vertices merged.
func mergeBoundaryVertices(m *Mesh, eps float64) int {
	onBoundary := make([]bool, len(m.Vertices))
	for key, e := range collectEdges(m) {
		if e.faces == 1 {
			onBoundary[key.a] = true
			onBoundary[key.b] = true
		}
	}

	remap := make([]int, len(m.Vertices))
	buckets := make(map[cellKey][]int)
	merged := 0
	for i, p := range m.Vertices {
		remap[i] = i
		if !onBoundary[i] {
			continue
		}
		c := cellOf(p, eps)
		target := -1
	search:
		for dx := int64(-1); dx <= 1; dx++ {
			for dy := int64(-1); dy <= 1; dy++ {
				for dz := int64(-1); dz <= 1; dz++ {
					for _, j := range buckets[cellKey{c[0] + dx, c[1] + dy, c[2] + dz}] {
						if m.Vertices[j].Distance(p) < eps {
							target = j
							break search
						}
					}
				}
			}
		}
		if target >= 0 {
			remap[i] = target
			merged++
			continue
		}
		buckets[c] = append(buckets[c], i)
	}
	if merged == 0 {
		return 0
	}
	for i := range m.Triangles {
		t := &m.Triangles[i]
		for k := range t.V {
			t.V[k] = remap[t.V[k]]
		}
	}
	return merged
}

// keepTriangles filters triangles and their tags in place.
func (m *Mesh) keepTriangles(keep func(i int) bool) int {
	n := 0
	removed := 0
	for i := range m.Triangles {
		if !keep(i) {
			removed++
			continue
		}
		m.Triangles[n] = m.Triangles[i]
		if i < len(m.Tags) {
			m.Tags[n] = m.Tags[i]
		}
		n++
	}
	m.Triangles = m.Triangles[:n]
	if len(m.Tags) > n {
		m.Tags = m.Tags[:n]
	}
	return removed
}

func removeDuplicateFaces(m *Mesh) int {
	seen := make(map[[3]int]bool, len(m.Triangles))
	return m.keepTriangles(func(i int) bool {
		key := sortedTriple(m.Triangles[i])
		if seen[key] {
			return false
		}
		seen[key] = true
		return true
	})
}

func removeDegenerateFaces(m *Mesh, eps float64) int {
	// Decide on the unfiltered slice before compaction moves triangles.
	degenerate := make([]bool, len(m.Triangles))
	for i := range m.Triangles {
		degenerate[i] = m.isDegenerate(i, eps)
	}
	return m.keepTriangles(func(i int) bool { return !degenerate[i] })
}

func removeUnreferencedVertices(m *Mesh) int {
	remap := make([]int, len(m.Vertices))
	for i := range remap {
		remap[i] = -1
	}
	for _, t := range m.Triangles {
		for _, v := range t.V {
			remap[v] = 0
		}
	}
	kept := make([]math.Vec3, 0, len(m.Vertices))
	for i, p := range m.Vertices {
		if remap[i] < 0 {
			continue
		}
		remap[i] = len(kept)
		kept = append(kept, p)
	}
	removed := len(m.Vertices) - len(kept)
	if removed == 0 {
		return 0
	}
	m.Vertices = kept
	for i := range m.Triangles {
		t := &m.Triangles[i]
		for k := range t.V {
			t.V[k] = remap[t.V[k]]
		}
	}
	return removed
}

func (t *Triangle) flip() {
	t.V[1], t.V[2] = t.V[2], t.V[1]
}

// traverses reports whether t walks the directed edge u->v.
func (t Triangle) traverses(u, v int) bool {
	for k := 0; k < 3; k++ {
		if t.V[k] == u && t.V[(k+1)%3] == v {
			return true
		}
	}
	return false
}

// reorient makes winding consistent across every manifold edge by a
// breadth-first walk per connected component, then flips components whose
// signed volume is negative. It returns the number of faces flipped.
func reorient(m *Mesh) int {
	adjacent := make(map[edgeKey][]int, len(m.Triangles)*3/2)
	for i, t := range m.Triangles {
		for k := 0; k < 3; k++ {
			key := makeEdge(t.V[k], t.V[(k+1)%3])
			adjacent[key] = append(adjacent[key], i)
		}
	}

	flipped := make([]bool, len(m.Triangles))
	component := make([]int, len(m.Triangles))
	for i := range component {
		component[i] = -1
	}

	var components [][]int
	for seed := range m.Triangles {
		if component[seed] >= 0 {
			continue
		}
		id := len(components)
		members := []int{seed}
		component[seed] = id
		queue := []int{seed}
		for len(queue) > 0 {
			f := queue[0]
			queue = queue[1:]
			t := m.Triangles[f]
			for k := 0; k < 3; k++ {
				u, v := t.V[k], t.V[(k+1)%3]
				faces := adjacent[makeEdge(u, v)]
				if len(faces) != 2 {
					continue
				}
				g := faces[0]
				if g == f {
					g = faces[1]
				}
				if component[g] >= 0 {
					continue
				}
				// The neighbor must walk the shared edge v->u.
				if m.Triangles[g].traverses(u, v) {
					m.Triangles[g].flip()
					flipped[g] = !flipped[g]
				}
				component[g] = id
				members = append(members, g)
				queue = append(queue, g)
			}
		}
		components = append(components, members)
	}

	for _, members := range components {
		var vol float64
		for _, f := range members {
			a, b, c := m.Corners(f)
			vol += a.Dot(b.Cross(c))
		}
		if vol < 0 {
			for _, f := range members {
				m.Triangles[f].flip()
				flipped[f] = !flipped[f]
			}
		}
	}

	n := 0
	for _, f := range flipped {
		if f {
			n++
		}
	}
	return n
}
