package heightmap

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
)

// Preview renders the grid as a grayscale image, brighter for taller cells.
// Row 0 of the grid becomes the top row of the image.
func Preview(g *Grid) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, g.Cols, g.Rows))
	lo, hi := g.Min(), g.Max()
	span := hi - lo
	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			v := uint8(255)
			if span > 0 {
				v = uint8(32 + (g.At(r, c)-lo)/span*223)
			}
			img.SetGray(c, r, color.Gray{Y: v})
		}
	}
	return img
}

// WritePreview saves Preview(g) as a PNG file, creating parent directories.
func WritePreview(g *Grid, path string) error {
	if g.Empty() {
		return ErrEmptyImage
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating output dir: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	defer file.Close()

	if err := png.Encode(file, Preview(g)); err != nil {
		return fmt.Errorf("encoding PNG: %w", err)
	}
	return nil
}
