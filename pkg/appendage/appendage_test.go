package appendage

import (
	stdmath "math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/qr3d/pkg/heightmap"
	"github.com/Faultbox/qr3d/pkg/mesh"
	"github.com/Faultbox/qr3d/pkg/synth"
)

// tabVolume is the volume of a w x d x t plate minus a regular octagon of
// circumradius r.
func tabVolume(w, d, t, r float64) float64 {
	octagon := 2 * stdmath.Sqrt2 * r * r
	return (w*d - octagon) * t
}

func TestKeychainTabTopology(t *testing.T) {
	m := KeychainTab(50, 50, 4, DefaultTabSpec())

	assert.Len(t, m.Triangles, 48)
	assert.Len(t, m.Vertices, 24)

	r := mesh.Validate(m)
	assert.True(t, r.Clean(), r.Summary())
	assert.Equal(t, 0, r.EulerCharacteristic)
	assert.InDelta(t, tabVolume(15, 10, 2, 2), m.Volume(), 1e-9)

	for _, tag := range m.Tags {
		assert.Equal(t, mesh.Base, tag)
	}
}

func TestKeychainTabPlacement(t *testing.T) {
	tests := []struct {
		edge     Edge
		min, max [2]float64
	}{
		{EdgeTop, [2]float64{17.5, 40}, [2]float64{32.5, 50}},
		{EdgeBottom, [2]float64{17.5, -10}, [2]float64{32.5, 0}},
		{EdgeRight, [2]float64{50, 12.5}, [2]float64{60, 27.5}},
		{EdgeLeft, [2]float64{-10, 12.5}, [2]float64{0, 27.5}},
	}

	for _, tt := range tests {
		spec := DefaultTabSpec()
		spec.Edge = tt.edge
		m := KeychainTab(50, 40, 0, spec)

		b := m.Bounds()
		assert.InDelta(t, tt.min[0], b.Min.X, 1e-9, "edge %d", tt.edge)
		assert.InDelta(t, tt.min[1], b.Min.Y, 1e-9, "edge %d", tt.edge)
		assert.InDelta(t, tt.max[0], b.Max.X, 1e-9, "edge %d", tt.edge)
		assert.InDelta(t, tt.max[1], b.Max.Y, 1e-9, "edge %d", tt.edge)
		assert.InDelta(t, 2.0, b.Max.Z, 1e-12)
		assert.Greater(t, m.Volume(), 0.0)
	}
}

func TestKeychainTabClampsThickness(t *testing.T) {
	m := KeychainTab(20, 20, 1.2, DefaultTabSpec())
	assert.InDelta(t, 1.2, m.Bounds().Max.Z, 1e-12)
}

func TestKeychainTabHoleFacesAxis(t *testing.T) {
	m := KeychainTab(0, 0, 0, DefaultTabSpec())
	// The hole axis is at (0, 5) once placed on a zero-size footprint.
	for i := range m.Triangles {
		a, b, c := m.Corners(i)
		centroid := a.Add(b).Add(c).Scale(1.0 / 3)
		dx, dy := centroid.X, centroid.Y-5
		if stdmath.Hypot(dx, dy) > 2.5 || stdmath.Abs(m.FaceNormal(i).Z) > 0.5 {
			continue
		}
		n := m.FaceNormal(i)
		assert.Less(t, n.X*dx+n.Y*dy, 0.0, "hole wall %d points away from the axis", i)
	}
}

func TestKeychainCombinedWithGrid(t *testing.T) {
	g := heightmap.NewGrid(25, 25, 2)
	for i := 0; i < 25; i += 3 {
		g.Heights[i*25+i] = 4
	}
	m, _, err := synth.Synthesize(g, synth.DefaultOptions(2))
	require.NoError(t, err)
	before := len(m.Triangles)

	mount, err := ParseMount("keychain", 0)
	require.NoError(t, err)
	b := m.Bounds()
	m.Append(mount.Build(b.Size().X, b.Size().Y, b.Max.Z))

	assert.Equal(t, before+48, len(m.Triangles))
	assert.True(t, mesh.Validate(m).Clean())
}

func TestScrewHoles(t *testing.T) {
	mount, err := ParseMount("holes", 3)
	require.NoError(t, err)
	require.IsType(t, ScrewHoles{}, mount)

	m := mount.Build(40, 30, 5)
	assert.Len(t, m.Triangles, 96)
	r := mesh.Validate(m)
	assert.True(t, r.Clean())
	assert.Equal(t, 0, r.EulerCharacteristic)

	b := m.Bounds()
	assert.InDelta(t, -10, b.Min.X, 1e-9)
	assert.InDelta(t, 50, b.Max.X, 1e-9)
	assert.InDelta(t, 2*tabVolume(15, 10, 2, 1.5), m.Volume(), 1e-9)
}

func TestParseMount(t *testing.T) {
	tests := []struct {
		kind string
		want string
	}{
		{"", "none"},
		{"none", "none"},
		{"Keychain", "keychain"},
		{" holes ", "holes"},
	}
	for _, tt := range tests {
		m, err := ParseMount(tt.kind, 4)
		require.NoError(t, err)
		assert.Equal(t, tt.want, m.Name())
	}

	assert.Nil(t, NoMount{}.Build(10, 10, 1))

	k, err := ParseMount("keychain", 6)
	require.NoError(t, err)
	assert.Equal(t, 6.0, k.(Keychain).Tab.HoleDiameter)

	_, err = ParseMount("magnet", 4)
	assert.ErrorIs(t, err, ErrUnknownMount)
}

func TestOversizedHoleIsFlaggedNotRejected(t *testing.T) {
	spec := DefaultTabSpec()
	spec.HoleDiameter = 30

	m := KeychainTab(50, 50, 4, spec)
	assert.Len(t, m.Triangles, 48)
	assert.Less(t, m.Volume(), 0.0)
	assert.False(t, mesh.Validate(m).Clean())
}
