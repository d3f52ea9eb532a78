package heightmap

import (
	"fmt"
	"strconv"
	"strings"
)

// LayerHeights lists absolute layer heights: base, feature and optionally frame.
type LayerHeights []float64

// ParseLayerHeights parses a comma separated list such as "2,4,6".
func ParseLayerHeights(s string) (LayerHeights, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty list", ErrInvalidLayers)
	}
	parts := strings.Split(s, ",")
	layers := make(LayerHeights, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", ErrInvalidLayers, p)
		}
		layers = append(layers, v)
	}
	if err := layers.Validate(); err != nil {
		return nil, err
	}
	return layers, nil
}

// Validate checks that there are two or three positive, strictly increasing heights.
func (l LayerHeights) Validate() error {
	if len(l) < 2 || len(l) > 3 {
		return fmt.Errorf("%w: need 2 or 3 heights, got %d", ErrInvalidLayers, len(l))
	}
	for i, h := range l {
		if h <= 0 {
			return fmt.Errorf("%w: height %d is %g, must be positive", ErrInvalidLayers, i, h)
		}
		if i > 0 && h <= l[i-1] {
			return fmt.Errorf("%w: heights must increase (%g after %g)", ErrInvalidLayers, h, l[i-1])
		}
	}
	return nil
}

// Base returns the base layer height.
func (l LayerHeights) Base() float64 { return l[0] }

// Feature returns the feature layer height.
func (l LayerHeights) Feature() float64 { return l[1] }

// Frame returns the frame layer height and whether one is defined.
func (l LayerHeights) Frame() (float64, bool) {
	if len(l) < 3 {
		return 0, false
	}
	return l[2], true
}

// String formats the list the way ParseLayerHeights reads it.
func (l LayerHeights) String() string {
	parts := make([]string, len(l))
	for i, h := range l {
		parts[i] = strconv.FormatFloat(h, 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}
