// Package mesh provides the indexed triangle mesh used by every stage of the
// pipeline, together with validation and repair.
package mesh

import (
	stdmath "math"

	"github.com/Faultbox/qr3d/pkg/math"
)

// ComponentTag labels a triangle with the part of the model it belongs to.
// Tags never affect geometry; exporters map them to materials.
type ComponentTag uint8

const (
	Base ComponentTag = iota
	Feature
	Wall
	TopSurface
)

// String returns the tag name.
func (t ComponentTag) String() string {
	switch t {
	case Base:
		return "base"
	case Feature:
		return "feature"
	case Wall:
		return "wall"
	case TopSurface:
		return "top"
	default:
		return "unknown"
	}
}

// IsFeature reports whether the tag is colored with the feature material.
func (t ComponentTag) IsFeature() bool {
	return t == Feature || t == Wall
}

// Triangle references three vertices of its mesh. Counter-clockwise winding
// seen from outside gives the outward normal.
type Triangle struct {
	V [3]int
}

// Bounds holds an axis-aligned bounding box.
type Bounds struct {
	Min math.Vec3
	Max math.Vec3
}

// Size returns the extent of the box on each axis.
func (b Bounds) Size() math.Vec3 {
	return b.Max.Sub(b.Min)
}

// Mesh is an append-only arena of vertices and tagged triangles.
type Mesh struct {
	Vertices  []math.Vec3
	Triangles []Triangle
	Tags      []ComponentTag
}

// New returns an empty mesh.
func New() *Mesh {
	return &Mesh{}
}

// Reserve grows the buffers to hold at least the given number of additional
// vertices and triangles.
func (m *Mesh) Reserve(vertices, triangles int) {
	if need := len(m.Vertices) + vertices; need > cap(m.Vertices) {
		v := make([]math.Vec3, len(m.Vertices), need)
		copy(v, m.Vertices)
		m.Vertices = v
	}
	if need := len(m.Triangles) + triangles; need > cap(m.Triangles) {
		t := make([]Triangle, len(m.Triangles), need)
		copy(t, m.Triangles)
		m.Triangles = t
		g := make([]ComponentTag, len(m.Tags), need)
		copy(g, m.Tags)
		m.Tags = g
	}
}

// AddVertex appends a vertex and returns its index.
func (m *Mesh) AddVertex(p math.Vec3) int {
	m.Vertices = append(m.Vertices, p)
	return len(m.Vertices) - 1
}

// AddTriangle appends a triangle with the given tag.
func (m *Mesh) AddTriangle(a, b, c int, tag ComponentTag) {
	m.Triangles = append(m.Triangles, Triangle{V: [3]int{a, b, c}})
	m.Tags = append(m.Tags, tag)
}

// Append copies other into m, re-indexing its triangles.
// Coincident vertices are not merged.
func (m *Mesh) Append(other *Mesh) {
	if other == nil {
		return
	}
	offset := len(m.Vertices)
	m.Reserve(len(other.Vertices), len(other.Triangles))
	m.Vertices = append(m.Vertices, other.Vertices...)
	for i, t := range other.Triangles {
		m.Triangles = append(m.Triangles, Triangle{V: [3]int{t.V[0] + offset, t.V[1] + offset, t.V[2] + offset}})
		m.Tags = append(m.Tags, other.TagAt(i))
	}
}

// TagAt returns the tag of triangle i, or Base when the mesh carries no tags.
func (m *Mesh) TagAt(i int) ComponentTag {
	if i < len(m.Tags) {
		return m.Tags[i]
	}
	return Base
}

// Clone returns a deep copy.
func (m *Mesh) Clone() *Mesh {
	c := &Mesh{
		Vertices:  make([]math.Vec3, len(m.Vertices)),
		Triangles: make([]Triangle, len(m.Triangles)),
		Tags:      make([]ComponentTag, len(m.Tags)),
	}
	copy(c.Vertices, m.Vertices)
	copy(c.Triangles, m.Triangles)
	copy(c.Tags, m.Tags)
	return c
}

// Corners returns the three vertex positions of triangle i.
func (m *Mesh) Corners(i int) (a, b, c math.Vec3) {
	t := m.Triangles[i]
	return m.Vertices[t.V[0]], m.Vertices[t.V[1]], m.Vertices[t.V[2]]
}

// FaceNormal returns the unit normal of triangle i.
func (m *Mesh) FaceNormal(i int) math.Vec3 {
	a, b, c := m.Corners(i)
	return math.TriangleNormal(a, b, c)
}

// Bounds returns the bounding box of all vertices.
func (m *Mesh) Bounds() Bounds {
	if len(m.Vertices) == 0 {
		return Bounds{}
	}
	b := Bounds{Min: m.Vertices[0], Max: m.Vertices[0]}
	for _, v := range m.Vertices[1:] {
		b.Min = b.Min.Min(v)
		b.Max = b.Max.Max(v)
	}
	return b
}

// Volume returns the signed enclosed volume (divergence theorem).
// Closed meshes with outward winding have positive volume.
func (m *Mesh) Volume() float64 {
	var vol float64
	for i := range m.Triangles {
		a, b, c := m.Corners(i)
		vol += a.Dot(b.Cross(c))
	}
	return vol / 6
}

// SurfaceArea returns the total triangle area.
func (m *Mesh) SurfaceArea() float64 {
	var area float64
	for i := range m.Triangles {
		a, b, c := m.Corners(i)
		area += math.TriangleArea(a, b, c)
	}
	return area
}

// Transform applies tr to every vertex. Mirroring transforms also reverse
// the winding so normals keep pointing outward.
func (m *Mesh) Transform(tr math.Mat4) {
	for i, v := range m.Vertices {
		m.Vertices[i] = tr.TransformPoint(v)
	}
	if tr.Determinant3() < 0 {
		for i := range m.Triangles {
			t := &m.Triangles[i]
			t.V[1], t.V[2] = t.V[2], t.V[1]
		}
	}
}

// IsFinite reports whether every vertex coordinate is a finite number.
func (m *Mesh) IsFinite() bool {
	for _, v := range m.Vertices {
		if stdmath.IsNaN(v.X+v.Y+v.Z) || stdmath.IsInf(v.X+v.Y+v.Z, 0) {
			return false
		}
	}
	return true
}
