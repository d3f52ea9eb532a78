// Package appendage generates mounting features attached to the edge of a
// model footprint.
package appendage

import (
	stdmath "math"

	"github.com/Faultbox/qr3d/pkg/math"
	"github.com/Faultbox/qr3d/pkg/mesh"
)

// Edge selects the footprint side a tab is attached to.
type Edge int

const (
	EdgeTop    Edge = iota // +Y
	EdgeRight              // +X
	EdgeBottom             // -Y
	EdgeLeft               // -X
)

// holeSegments is the number of sides of the through-hole polygon.
const holeSegments = 8

// TabSpec describes a flat tab with a through-hole.
type TabSpec struct {
	Width        float64 // along the attached edge
	Depth        float64 // outward from the edge
	Thickness    float64
	HoleDiameter float64
	Edge         Edge
}

// DefaultTabSpec returns a 15x10x2mm tab with a 4mm hole.
func DefaultTabSpec() TabSpec {
	return TabSpec{Width: 15, Depth: 10, Thickness: 2, HoleDiameter: 4, Edge: EdgeTop}
}

// KeychainTab builds a closed tab centered on one edge of a baseWidth x
// baseDepth footprint whose origin is at (0, 0). The tab thickness is
// clamped to maxZ when maxZ is positive. The result has 48 triangles and
// genus one; oversized holes are not rejected.
func KeychainTab(baseWidth, baseDepth, maxZ float64, t TabSpec) *mesh.Mesh {
	thickness := t.Thickness
	if maxZ > 0 && thickness > maxZ {
		thickness = maxZ
	}
	m := buildTab(t.Width, t.Depth, thickness, t.HoleDiameter/2)
	m.Transform(placement(baseWidth, baseDepth, t.Edge))
	return m
}

// placement moves a tab built along +Y from the origin onto the given edge.
func placement(baseWidth, baseDepth float64, edge Edge) math.Mat4 {
	switch edge {
	case EdgeRight:
		return math.Translate(baseWidth, baseDepth/2, 0).Mul(math.RotateZ(-stdmath.Pi / 2))
	case EdgeBottom:
		return math.Translate(baseWidth/2, 0, 0).Mul(math.RotateZ(stdmath.Pi))
	case EdgeLeft:
		return math.Translate(0, baseDepth/2, 0).Mul(math.RotateZ(stdmath.Pi / 2))
	default:
		return math.Translate(baseWidth/2, baseDepth, 0)
	}
}

// buildTab creates the tab in local coordinates: x in [-w/2, w/2], y in
// [0, d], z in [0, thickness], hole centered at (0, d/2).
func buildTab(w, d, thickness, radius float64) *mesh.Mesh {
	m := mesh.New()
	m.Reserve(24, 48)

	// Rectangle corners counter-clockwise from (-x,-y).
	corners := [4][2]float64{
		{-w / 2, 0},
		{w / 2, 0},
		{w / 2, d},
		{-w / 2, d},
	}
	var cb, ct [4]int
	for k, c := range corners {
		cb[k] = m.AddVertex(math.Vec3{X: c[0], Y: c[1]})
		ct[k] = m.AddVertex(math.Vec3{X: c[0], Y: c[1], Z: thickness})
	}

	var hb, ht [holeSegments]int
	for k := 0; k < holeSegments; k++ {
		a := float64(k) * 2 * stdmath.Pi / holeSegments
		x := radius * stdmath.Cos(a)
		y := d/2 + radius*stdmath.Sin(a)
		hb[k] = m.AddVertex(math.Vec3{X: x, Y: y})
		ht[k] = m.AddVertex(math.Vec3{X: x, Y: y, Z: thickness})
	}

	// Each corner fans to the three hole vertices facing it; each side closes
	// with the hole vertex at its middle. Corner k faces hole vertices
	// 2k+4 .. 2k+6 (mod 8), side k (corner k to k+1) faces 2k+6.
	face := func(top bool, a, b, c int) {
		if top {
			m.AddTriangle(a, b, c, mesh.Base)
		} else {
			m.AddTriangle(a, c, b, mesh.Base)
		}
	}
	for _, top := range []bool{true, false} {
		cv, hv := cb, hb
		if top {
			cv, hv = ct, ht
		}
		for k := 0; k < 4; k++ {
			first := (2*k + 4) % holeSegments
			for s := 0; s < 2; s++ {
				face(top, cv[k], hv[(first+s+1)%holeSegments], hv[(first+s)%holeSegments])
			}
			face(top, cv[k], cv[(k+1)%4], hv[(2*k+6)%holeSegments])
		}
	}

	// Outer sides face away from the rectangle.
	for k := 0; k < 4; k++ {
		n := (k + 1) % 4
		m.AddTriangle(cb[k], cb[n], ct[n], mesh.Base)
		m.AddTriangle(cb[k], ct[n], ct[k], mesh.Base)
	}

	// Hole sides face the hole axis.
	for k := 0; k < holeSegments; k++ {
		n := (k + 1) % holeSegments
		m.AddTriangle(hb[n], hb[k], ht[k], mesh.Base)
		m.AddTriangle(hb[n], ht[k], ht[n], mesh.Base)
	}
	return m
}
