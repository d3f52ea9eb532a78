package appendage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Faultbox/qr3d/pkg/mesh"
)

// ErrUnknownMount is returned by ParseMount for unsupported kinds.
var ErrUnknownMount = errors.New("unknown mount type")

// Mount is an optional feature attached to the model.
type Mount interface {
	// Name returns the mount kind as accepted by ParseMount.
	Name() string
	// Build returns the mount geometry for a baseWidth x baseDepth footprint
	// of height maxZ, or nil when there is nothing to add.
	Build(baseWidth, baseDepth, maxZ float64) *mesh.Mesh
}

// NoMount adds nothing.
type NoMount struct{}

func (NoMount) Name() string { return "none" }

func (NoMount) Build(_, _, _ float64) *mesh.Mesh { return nil }

// Keychain adds one tab with a hole on the top edge.
type Keychain struct {
	Tab TabSpec
}

func (Keychain) Name() string { return "keychain" }

func (k Keychain) Build(baseWidth, baseDepth, maxZ float64) *mesh.Mesh {
	tab := k.Tab
	tab.Edge = EdgeTop
	return KeychainTab(baseWidth, baseDepth, maxZ, tab)
}

// ScrewHoles adds a tab with a hole on the left and right edges.
type ScrewHoles struct {
	Tab TabSpec
}

func (ScrewHoles) Name() string { return "holes" }

func (s ScrewHoles) Build(baseWidth, baseDepth, maxZ float64) *mesh.Mesh {
	out := mesh.New()
	for _, edge := range []Edge{EdgeLeft, EdgeRight} {
		tab := s.Tab
		tab.Edge = edge
		out.Append(KeychainTab(baseWidth, baseDepth, maxZ, tab))
	}
	return out
}

// ParseMount returns the mount for kind ("none", "keychain" or "holes").
// A non-positive hole diameter keeps the default.
func ParseMount(kind string, holeDiameter float64) (Mount, error) {
	tab := DefaultTabSpec()
	if holeDiameter > 0 {
		tab.HoleDiameter = holeDiameter
	}
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "none":
		return NoMount{}, nil
	case "keychain":
		return Keychain{Tab: tab}, nil
	case "holes", "screw-holes":
		return ScrewHoles{Tab: tab}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMount, kind)
	}
}
