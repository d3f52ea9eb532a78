// Package color parses user supplied color strings for multi-color output.
package color

import (
	"fmt"
	"image/color"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"go.uber.org/zap"
	"golang.org/x/image/colornames"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/Faultbox/qr3d/internal/logger"
)

// Fallbacks used when a color string cannot be parsed.
var (
	DefaultBase    = color.NRGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
	DefaultFeature = color.NRGBA{A: 0xFF}
)

var fold = cases.Fold()

// Lookup resolves a CSS/X11 color name or a #rgb / #rrggbb hex code.
func Lookup(s string) (color.NRGBA, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return color.NRGBA{}, fmt.Errorf("empty color")
	}
	if strings.HasPrefix(s, "#") {
		if len(s) != 4 && len(s) != 7 {
			return color.NRGBA{}, fmt.Errorf("color %q: want #rgb or #rrggbb", s)
		}
		c, err := colorful.Hex(s)
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("color %q: %w", s, err)
		}
		r, g, b := c.RGB255()
		return color.NRGBA{R: r, G: g, B: b, A: 0xFF}, nil
	}

	name := strings.ReplaceAll(fold.String(s), " ", "")
	if c, ok := colornames.Map[name]; ok {
		return color.NRGBA{R: c.R, G: c.G, B: c.B, A: 0xFF}, nil
	}
	return color.NRGBA{}, fmt.Errorf("unknown color name %q", s)
}

// Parse resolves s like Lookup. On failure it logs a warning and returns
// fallback.
func Parse(s string, fallback color.NRGBA) color.NRGBA {
	c, err := Lookup(s)
	if err != nil {
		logger.Warn("invalid color, using default",
			zap.String("input", s),
			zap.String("default", Hex(fallback)),
			zap.Error(err))
		return fallback
	}
	return c
}

// Hex formats c as #RRGGBB.
func Hex(c color.NRGBA) string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

// Title formats a color name for display, e.g. "dark blue" -> "Dark Blue".
func Title(s string) string {
	return cases.Title(language.English).String(strings.TrimSpace(s))
}
