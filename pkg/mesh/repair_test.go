package mesh

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/qr3d/pkg/math"
)

func TestProcessCleanMeshIsUntouched(t *testing.T) {
	m := createTestCube()

	out, res := Process(m, DefaultRepairOptions())
	assert.Same(t, m, out)
	assert.False(t, res.Repaired)
	assert.Empty(t, res.Steps)
	assert.Equal(t, res.Initial, res.Final)
}

func TestRepairCleanMeshKeepsCounts(t *testing.T) {
	m := createTestCube()

	out, steps := Repair(m, DefaultRepairOptions())
	assert.Empty(t, steps)
	assert.Len(t, out.Vertices, 8)
	assert.Len(t, out.Triangles, 12)
	assert.Equal(t, Validate(m), Validate(out))
}

func TestProcessFixesFlippedFace(t *testing.T) {
	m := createTestCube()
	m.Triangles[3].flip()
	m.Triangles[7].flip()

	out, res := Process(m, DefaultRepairOptions())
	require.True(t, res.Repaired)
	assert.False(t, res.Initial.WindingConsistent)
	assert.True(t, res.Final.Watertight)
	assert.True(t, res.Final.Clean())
	assert.InDelta(t, 1.0, out.Volume(), 1e-12)
	assert.Contains(t, res.Steps, "flipped 2 faces")

	// The input is not modified.
	assert.False(t, Validate(m).WindingConsistent)
}

func TestProcessFixesInvertedMesh(t *testing.T) {
	m := createTestCube()
	for i := range m.Triangles {
		m.Triangles[i].flip()
	}

	out, res := Process(m, DefaultRepairOptions())
	assert.True(t, res.Final.Clean())
	assert.InDelta(t, 1.0, out.Volume(), 1e-12)
}

func TestProcessFillsOpenBottom(t *testing.T) {
	m := createTestCube()
	m.Triangles = m.Triangles[2:]
	m.Tags = m.Tags[2:]

	out, res := Process(m, DefaultRepairOptions())
	assert.Equal(t, 4, res.Initial.BoundaryEdges)
	assert.True(t, res.Final.Watertight)
	assert.Equal(t, 2, res.Final.EulerCharacteristic)
	assert.Len(t, out.Triangles, 12)
	assert.Len(t, out.Vertices, 8)
	assert.InDelta(t, 1.0, out.Volume(), 1e-12)
	assert.Contains(t, res.Steps, "filled 1 hole")
}

func TestTriangulateLoop(t *testing.T) {
	tests := []struct {
		name    string
		outline [][2]float64
		area    float64
	}{
		{"square with side points", [][2]float64{{0, 0}, {1, 0}, {2, 0}, {2, 1}, {2, 2}, {1, 2}, {0, 2}, {0, 1}}, 4},
		{"L shape", [][2]float64{{0, 0}, {2, 0}, {2, 1}, {1, 1}, {1, 2}, {0, 2}}, 3},
		{"U shape", [][2]float64{{0, 0}, {3, 0}, {3, 2}, {2, 2}, {2, 1}, {1, 1}, {1, 2}, {0, 2}}, 5},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := New()
			loop := make([]int, len(tc.outline))
			for i, p := range tc.outline {
				loop[i] = m.AddVertex(math.Vec3{X: p[0], Y: p[1]})
			}

			tris, ok := triangulateLoop(m, loop)
			require.True(t, ok)
			require.Len(t, tris, len(loop)-2)

			for _, tri := range tris {
				m.AddTriangle(tri[0], tri[1], tri[2], Base)
				assert.Greater(t, m.FaceNormal(len(m.Triangles)-1).Z, 0.0, "face %v folds", tri)
			}
			assert.InDelta(t, tc.area, m.SurfaceArea(), 1e-12)
		})
	}
}

func TestTriangulateLoopRejectsCollinear(t *testing.T) {
	m := New()
	for i := 0; i < 4; i++ {
		m.AddVertex(math.Vec3{X: float64(i)})
	}
	_, ok := triangulateLoop(m, []int{0, 1, 2, 3})
	assert.False(t, ok)
}

func TestProcessFillsTriangularHole(t *testing.T) {
	m := createTestCube()
	m.Triangles = m.Triangles[1:]
	m.Tags = m.Tags[1:]

	out, res := Process(m, DefaultRepairOptions())
	assert.True(t, res.Final.Clean())
	assert.Len(t, out.Triangles, 12)
	assert.Len(t, out.Vertices, 8)
}

func TestRepairWithoutHoleFilling(t *testing.T) {
	m := createTestCube()
	m.Triangles = m.Triangles[2:]
	m.Tags = m.Tags[2:]

	_, res := Process(m, RepairOptions{Epsilon: DefaultEpsilon})
	assert.True(t, res.Repaired)
	assert.False(t, res.Final.Watertight)
	assert.Equal(t, 4, res.Final.BoundaryEdges)
}

func TestProcessWeldsTriangleSoup(t *testing.T) {
	cube := createTestCube()
	soup := New()
	for i := range cube.Triangles {
		a, b, c := cube.Corners(i)
		ia := soup.AddVertex(a)
		ib := soup.AddVertex(b)
		ic := soup.AddVertex(c)
		soup.AddTriangle(ia, ib, ic, cube.Tags[i])
	}
	require.Equal(t, 12*3, Validate(soup).BoundaryEdges)

	out, res := Process(soup, DefaultRepairOptions())
	assert.True(t, res.Final.Clean())
	assert.Len(t, out.Vertices, 8)
	assert.Len(t, out.Triangles, 12)
	assert.Contains(t, res.Steps, "merged 28 vertices")
	assert.Contains(t, res.Steps, "removed 28 unreferenced vertices")
}

func TestProcessRemovesDuplicatesAndDegenerates(t *testing.T) {
	m := createTestCube()
	m.AddTriangle(0, 2, 3, Base)
	m.AddTriangle(0, 0, 1, Base)
	m.AddVertex(m.Vertices[7].Scale(3))

	out, res := Process(m, DefaultRepairOptions())
	assert.Equal(t, 1, res.Initial.DuplicateFaces)
	assert.Equal(t, 1, res.Initial.DegenerateFaces)
	assert.Equal(t, 1, res.Initial.UnreferencedVertices)
	assert.Equal(t, 0, res.Final.DuplicateFaces)
	assert.Equal(t, 0, res.Final.UnreferencedVertices)
	assert.True(t, res.Final.Clean())
	assert.Len(t, out.Triangles, 12)
	assert.Len(t, out.Tags, 12)
}
