package mesh

import (
	"fmt"
	"strings"
)

// DefaultEpsilon is the distance under which two vertices are considered
// coincident (millimeters).
const DefaultEpsilon = 1e-6

// Report describes the topological health of a mesh.
type Report struct {
	Vertices   int
	Faces      int
	Edges      int
	Watertight bool
	// EdgeManifold is true when every edge borders exactly two faces.
	EdgeManifold      bool
	WindingConsistent bool
	// Inverted is true for a watertight mesh whose normals point inward.
	Inverted bool

	DuplicateFaces       int
	DegenerateFaces      int
	UnreferencedVertices int
	NonManifoldEdges     int
	BoundaryEdges        int
	EulerCharacteristic  int
}

// Clean reports whether the mesh is printable as is.
func (r Report) Clean() bool {
	return r.Watertight && !r.Inverted && r.DuplicateFaces == 0 && r.DegenerateFaces == 0 && r.UnreferencedVertices == 0
}

// Summary returns a multi-line human readable description.
func (r Report) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "vertices:              %d\n", r.Vertices)
	fmt.Fprintf(&b, "faces:                 %d\n", r.Faces)
	fmt.Fprintf(&b, "edges:                 %d\n", r.Edges)
	fmt.Fprintf(&b, "watertight:            %t\n", r.Watertight)
	fmt.Fprintf(&b, "edge manifold:         %t\n", r.EdgeManifold)
	fmt.Fprintf(&b, "winding consistent:    %t\n", r.WindingConsistent)
	fmt.Fprintf(&b, "inverted:              %t\n", r.Inverted)
	fmt.Fprintf(&b, "boundary edges:        %d\n", r.BoundaryEdges)
	fmt.Fprintf(&b, "non-manifold edges:    %d\n", r.NonManifoldEdges)
	fmt.Fprintf(&b, "duplicate faces:       %d\n", r.DuplicateFaces)
	fmt.Fprintf(&b, "degenerate faces:      %d\n", r.DegenerateFaces)
	fmt.Fprintf(&b, "unreferenced vertices: %d\n", r.UnreferencedVertices)
	fmt.Fprintf(&b, "euler characteristic:  %d\n", r.EulerCharacteristic)
	if r.Clean() {
		b.WriteString("result:                PASS\n")
	} else {
		b.WriteString("result:                FAIL\n")
	}
	return b.String()
}

type edgeKey struct {
	a, b int
}

func makeEdge(u, v int) edgeKey {
	if u > v {
		u, v = v, u
	}
	return edgeKey{u, v}
}

// edgeUse counts the faces incident to an undirected edge and how many of
// them traverse it from the lower index to the higher one.
type edgeUse struct {
	faces   int
	forward int
}

func collectEdges(m *Mesh) map[edgeKey]*edgeUse {
	edges := make(map[edgeKey]*edgeUse, len(m.Triangles)*3/2)
	for _, t := range m.Triangles {
		for k := 0; k < 3; k++ {
			u, v := t.V[k], t.V[(k+1)%3]
			if u == v {
				continue
			}
			key := makeEdge(u, v)
			e := edges[key]
			if e == nil {
				e = &edgeUse{}
				edges[key] = e
			}
			e.faces++
			if u < v {
				e.forward++
			}
		}
	}
	return edges
}

func sortedTriple(t Triangle) [3]int {
	a, b, c := t.V[0], t.V[1], t.V[2]
	if a > b {
		a, b = b, a
	}
	if b > c {
		b, c = c, b
	}
	if a > b {
		a, b = b, a
	}
	return [3]int{a, b, c}
}

func (m *Mesh) isDegenerate(i int, eps float64) bool {
	t := m.Triangles[i]
	for k := 0; k < 3; k++ {
		u, v := t.V[k], t.V[(k+1)%3]
		if u == v || m.Vertices[u].Distance(m.Vertices[v]) < eps {
			return true
		}
	}
	a, b, c := m.Corners(i)
	return b.Sub(a).Cross(c.Sub(a)).Length() < eps*eps
}

// Validate inspects m without modifying it.
func Validate(m *Mesh) Report {
	r := Report{
		Vertices:          len(m.Vertices),
		Faces:             len(m.Triangles),
		EdgeManifold:      true,
		WindingConsistent: true,
	}

	referenced := make([]bool, len(m.Vertices))
	seen := make(map[[3]int]int, len(m.Triangles))
	for i, t := range m.Triangles {
		for _, v := range t.V {
			referenced[v] = true
		}
		key := sortedTriple(t)
		if seen[key] > 0 {
			r.DuplicateFaces++
		}
		seen[key]++
		if m.isDegenerate(i, DefaultEpsilon) {
			r.DegenerateFaces++
		}
	}

	referencedCount := 0
	for _, ok := range referenced {
		if ok {
			referencedCount++
		}
	}
	r.UnreferencedVertices = len(m.Vertices) - referencedCount

	edges := collectEdges(m)
	r.Edges = len(edges)
	for _, e := range edges {
		switch {
		case e.faces == 1:
			r.BoundaryEdges++
		case e.faces > 2:
			r.NonManifoldEdges++
		case e.forward != 1:
			r.WindingConsistent = false
		}
	}

	r.EdgeManifold = r.NonManifoldEdges == 0 && r.BoundaryEdges == 0
	r.Watertight = len(m.Triangles) > 0 && r.BoundaryEdges == 0 && r.EdgeManifold && r.WindingConsistent
	r.Inverted = r.Watertight && m.Volume() < 0
	r.EulerCharacteristic = referencedCount - r.Edges + r.Faces
	return r
}
