package mesh

import (
	stdmath "math"

	"github.com/Faultbox/qr3d/pkg/math"
)

// boundaryLoops traces closed loops of boundary edges. Each loop is ordered
// in the direction a filling face must walk it, which is the reverse of the
// face that owns the boundary edge.
func boundaryLoops(m *Mesh) [][]int {
	edges := collectEdges(m)
	next := make(map[int][]int)
	for _, t := range m.Triangles {
		for k := 0; k < 3; k++ {
			u, v := t.V[k], t.V[(k+1)%3]
			if u == v || edges[makeEdge(u, v)].faces != 1 {
				continue
			}
			next[v] = append(next[v], u)
		}
	}

	var loops [][]int
	for len(next) > 0 {
		var start int
		for s := range next {
			start = s
			break
		}
		loop := []int{start}
		cur := start
		for {
			outs := next[cur]
			if len(outs) == 0 {
				// Open chain; cannot close it.
				loop = nil
				break
			}
			nxt := outs[len(outs)-1]
			if len(outs) == 1 {
				delete(next, cur)
			} else {
				next[cur] = outs[:len(outs)-1]
			}
			if nxt == start {
				break
			}
			loop = append(loop, nxt)
			cur = nxt
		}
		if len(loop) >= 3 {
			loops = append(loops, loop)
		}
	}
	return loops
}

// maxTriangulatedLoop bounds the cubic search in triangulateLoop. Longer
// loops are fanned from their centroid.
const maxTriangulatedLoop = 512

// fillHoles closes every boundary loop with the minimum-area triangulation
// whose faces all turn the same way as the loop. Loops with no such
// triangulation are fanned from a new vertex at the loop centroid. Fill faces
// are tagged Base. It returns the number of loops filled.
func fillHoles(m *Mesh) int {
	loops := boundaryLoops(m)
	for _, loop := range loops {
		if tris, ok := triangulateLoop(m, loop); ok {
			for _, t := range tris {
				m.AddTriangle(t[0], t[1], t[2], Base)
			}
			continue
		}
		var centroid math.Vec3
		for _, v := range loop {
			centroid = centroid.Add(m.Vertices[v])
		}
		c := m.AddVertex(centroid.Scale(1 / float64(len(loop))))
		for i, v := range loop {
			m.AddTriangle(v, loop[(i+1)%len(loop)], c, Base)
		}
	}
	return len(loops)
}

// triangulateLoop fills loop by dynamic programming over its sub-polygons,
// minimizing total area. A candidate triangle is rejected when its normal
// does not agree with the loop's Newell normal, which rules out the folded
// faces a fan produces on concave outlines. ok is false when no
// triangulation survives.
func triangulateLoop(m *Mesh, loop []int) (tris [][3]int, ok bool) {
	n := len(loop)
	if n == 3 {
		return [][3]int{{loop[0], loop[1], loop[2]}}, true
	}
	if n > maxTriangulatedLoop {
		return nil, false
	}

	var normal math.Vec3
	for i, v := range loop {
		normal = normal.Add(m.Vertices[v].Cross(m.Vertices[loop[(i+1)%n]]))
	}
	if normal.Length() < DefaultEpsilon*DefaultEpsilon {
		return nil, false
	}
	normal = normal.Normalize()

	weight := func(i, k, j int) float64 {
		a, b, c := m.Vertices[loop[i]], m.Vertices[loop[k]], m.Vertices[loop[j]]
		cross := b.Sub(a).Cross(c.Sub(a))
		if cross.Dot(normal) <= DefaultEpsilon*DefaultEpsilon {
			return stdmath.Inf(1)
		}
		return cross.Length() / 2
	}

	// areas[g][i] is the best area of the sub-polygon loop[i..i+g], and
	// lambdas[g][i] the apex chosen for its edge (i, i+g).
	areas := make([][]float64, n)
	lambdas := make([][]int, n)
	for g := 2; g < n; g++ {
		areas[g] = make([]float64, n-g)
		lambdas[g] = make([]int, n-g)
	}
	best := func(g, i int) float64 {
		if g < 2 {
			return 0
		}
		return areas[g][i]
	}
	for g := 2; g < n; g++ {
		for i := 0; i+g < n; i++ {
			j := i + g
			minArea, apex := stdmath.Inf(1), -1
			for k := i + 1; k < j; k++ {
				area := best(k-i, i) + best(j-k, k) + weight(i, k, j)
				if area < minArea {
					minArea, apex = area, k
				}
			}
			areas[g][i] = minArea
			lambdas[g][i] = apex
		}
	}
	if stdmath.IsInf(areas[n-1][0], 1) {
		return nil, false
	}

	sections := [][2]int{{0, n - 1}}
	for len(sections) > 0 {
		s := sections[len(sections)-1]
		sections = sections[:len(sections)-1]
		i, j := s[0], s[1]
		k := lambdas[j-i][i]
		tris = append(tris, [3]int{loop[i], loop[k], loop[j]})
		if k-i > 1 {
			sections = append(sections, [2]int{i, k})
		}
		if j-k > 1 {
			sections = append(sections, [2]int{k, j})
		}
	}
	return tris, true
}
