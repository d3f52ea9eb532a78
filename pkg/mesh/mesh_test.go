package mesh

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/qr3d/pkg/math"
)

// createTestCube builds a closed unit cube with outward winding.
// Vertex index is x + 2y + 4z; the first two triangles are the bottom.
func createTestCube() *Mesh {
	m := New()
	for i := 0; i < 8; i++ {
		m.AddVertex(math.Vec3{X: float64(i & 1), Y: float64(i >> 1 & 1), Z: float64(i >> 2 & 1)})
	}
	faces := [][3]int{
		{0, 2, 3}, {0, 3, 1}, // bottom
		{4, 5, 7}, {4, 7, 6}, // top
		{0, 1, 5}, {0, 5, 4}, // front
		{2, 6, 7}, {2, 7, 3}, // back
		{0, 4, 6}, {0, 6, 2}, // left
		{1, 3, 7}, {1, 7, 5}, // right
	}
	for _, f := range faces {
		m.AddTriangle(f[0], f[1], f[2], Base)
	}
	return m
}

func TestCubeMeasurements(t *testing.T) {
	m := createTestCube()

	assert.InDelta(t, 1.0, m.Volume(), 1e-12)
	assert.InDelta(t, 6.0, m.SurfaceArea(), 1e-12)

	b := m.Bounds()
	assert.Equal(t, math.Vec3{}, b.Min)
	assert.Equal(t, math.Vec3{X: 1, Y: 1, Z: 1}, b.Size())
	assert.Equal(t, math.Vec3{Z: -1}, m.FaceNormal(0))
	assert.True(t, m.IsFinite())
}

func TestAppendReindexes(t *testing.T) {
	a := createTestCube()
	b := createTestCube()
	b.Transform(math.Translate(5, 0, 0))
	b.Tags[0] = Feature

	a.Append(b)

	require.Len(t, a.Vertices, 16)
	require.Len(t, a.Triangles, 24)
	require.Len(t, a.Tags, 24)
	assert.Equal(t, [3]int{8, 10, 11}, a.Triangles[12].V)
	assert.Equal(t, Feature, a.Tags[12])
	assert.InDelta(t, 2.0, a.Volume(), 1e-12)

	r := Validate(a)
	assert.True(t, r.Watertight)
	assert.Equal(t, 4, r.EulerCharacteristic)
}

func TestTransformMirrorKeepsOutwardWinding(t *testing.T) {
	m := createTestCube()
	m.Transform(math.Scale(-1, 1, 1))
	assert.InDelta(t, 1.0, m.Volume(), 1e-12)
	assert.True(t, Validate(m).Clean())
}

func TestReserveKeepsContents(t *testing.T) {
	m := createTestCube()
	m.Reserve(100, 100)
	assert.GreaterOrEqual(t, cap(m.Vertices), 108)
	assert.GreaterOrEqual(t, cap(m.Triangles), 112)
	assert.Len(t, m.Triangles, 12)
	assert.True(t, Validate(m).Clean())
}

func TestComponentTagColoring(t *testing.T) {
	tests := []struct {
		tag     ComponentTag
		name    string
		feature bool
	}{
		{Base, "base", false},
		{Feature, "feature", true},
		{Wall, "wall", true},
		{TopSurface, "top", false},
		{ComponentTag(9), "unknown", false},
	}

	for _, tc := range tests {
		if got := tc.tag.IsFeature(); got != tc.feature {
			t.Errorf("%v.IsFeature() = %v, expected %v", tc.tag, got, tc.feature)
		}
		assert.Equal(t, tc.name, tc.tag.String())
	}
}
