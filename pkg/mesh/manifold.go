package mesh

import (
	stdmath "math"
	"sort"

	"github.com/Faultbox/qr3d/pkg/math"
)

// angleTolerance treats spokes this close in angle as coincident.
const angleTolerance = 1e-9

// SplitNonManifold unzips vertices where separate sheets of surface touch
// along an edge or at a single point. Welding by coordinate joins such sheets;
// splitting gives every sheet its own copy of the shared vertices again.
//
// Around each vertex, faces stay together when they share a manifold edge at
// that vertex, or when they bound the same solid wedge of a non-manifold
// edge. The fan holding the vertex's first face keeps the original index; each
// other fan gets a new vertex at the same position. It returns the number of
// vertices added.
func SplitNonManifold(m *Mesh) int {
	edgeFaces := make(map[edgeKey][]int)
	vertFaces := make([][]int, len(m.Vertices))
	for i, t := range m.Triangles {
		for k := 0; k < 3; k++ {
			u, v := t.V[k], t.V[(k+1)%3]
			if u != v {
				key := makeEdge(u, v)
				edgeFaces[key] = append(edgeFaces[key], i)
			}
			if (k > 0 && u == t.V[0]) || (k == 2 && u == t.V[1]) {
				continue
			}
			vertFaces[u] = append(vertFaces[u], i)
		}
	}

	partners := make(map[edgeKey]map[int]int)
	for key, faces := range edgeFaces {
		if len(faces) > 2 {
			partners[key] = pairWedges(m, key, faces)
		}
	}

	type rewrite struct{ face, from, to int }
	var rewrites []rewrite
	added := 0
	for v, faces := range vertFaces {
		if len(faces) < 2 {
			continue
		}
		local := make(map[int]int, len(faces))
		parent := make([]int, len(faces))
		for i, f := range faces {
			local[f] = i
			parent[i] = i
		}
		find := func(i int) int {
			for parent[i] != i {
				parent[i] = parent[parent[i]]
				i = parent[i]
			}
			return i
		}
		union := func(i, j int) {
			if ri, rj := find(i), find(j); ri != rj {
				parent[rj] = ri
			}
		}

		for i, f := range faces {
			t := m.Triangles[f]
			for k := 0; k < 3; k++ {
				a, b := t.V[k], t.V[(k+1)%3]
				if a == b || (a != v && b != v) {
					continue
				}
				key := makeEdge(a, b)
				shared := edgeFaces[key]
				switch {
				case len(shared) == 2:
					union(local[shared[0]], local[shared[1]])
				case len(shared) > 2:
					if p, ok := partners[key][f]; ok {
						union(i, local[p])
					}
				}
			}
		}

		keep := find(0)
		copies := make(map[int]int)
		for i, f := range faces {
			root := find(i)
			if root == keep {
				continue
			}
			nv, ok := copies[root]
			if !ok {
				nv = m.AddVertex(m.Vertices[v])
				copies[root] = nv
				added++
			}
			rewrites = append(rewrites, rewrite{face: f, from: v, to: nv})
		}
	}

	for _, r := range rewrites {
		t := &m.Triangles[r.face]
		for k := 0; k < 3; k++ {
			if t.V[k] == r.from {
				t.V[k] = r.to
			}
		}
	}
	return added
}

// pairWedges matches the faces around a non-manifold edge into pairs that
// bound the same solid. Faces are ordered by the angle of their third vertex
// around the edge; a face whose normal points back against the sweep opens a
// wedge of solid, which the next face in the sweep closes.
func pairWedges(m *Mesh, key edgeKey, faces []int) map[int]int {
	type spoke struct {
		face    int
		angle   float64
		opening bool
	}

	a := m.Vertices[key.a]
	d := m.Vertices[key.b].Sub(a).Normalize()
	var x, y math.Vec3
	spokes := make([]spoke, 0, len(faces))
	for _, f := range faces {
		t := m.Triangles[f]
		third := -1
		for _, c := range t.V {
			if c != key.a && c != key.b {
				third = c
			}
		}
		if third < 0 {
			continue
		}
		u := m.Vertices[third].Sub(a)
		u = u.Sub(d.Scale(u.Dot(d))).Normalize()
		if len(spokes) == 0 {
			x = u
			y = d.Cross(x)
		}
		angle := stdmath.Atan2(u.Dot(y), u.Dot(x))
		if angle < 0 {
			angle += 2 * stdmath.Pi
		}
		if angle > 2*stdmath.Pi-angleTolerance {
			angle = 0
		}
		p0, p1, p2 := m.Corners(f)
		n := p1.Sub(p0).Cross(p2.Sub(p0))
		spokes = append(spokes, spoke{face: f, angle: angle, opening: n.Dot(d.Cross(u)) < 0})
	}

	sort.SliceStable(spokes, func(i, j int) bool {
		if stdmath.Abs(spokes[i].angle-spokes[j].angle) > angleTolerance {
			return spokes[i].angle < spokes[j].angle
		}
		return !spokes[i].opening && spokes[j].opening
	})

	pairs := make(map[int]int, len(spokes))
	for i, s := range spokes {
		next := spokes[(i+1)%len(spokes)]
		if !s.opening || next.opening || next.face == s.face {
			continue
		}
		pairs[s.face] = next.face
		pairs[next.face] = s.face
	}
	return pairs
}
