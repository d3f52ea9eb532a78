package heightmap

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestImage builds a grayscale raster from a pattern where '#' is a
// black pixel and anything else is white.
func createTestImage(pattern ...string) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, len(pattern[0]), len(pattern)))
	for y, row := range pattern {
		for x, ch := range row {
			if ch == '#' {
				img.SetGray(x, y, color.Gray{Y: 0})
			} else {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return img
}

func TestBuildSingleLayer(t *testing.T) {
	img := createTestImage(
		"#.",
		".#",
	)

	g, err := Build(img, BuildOptions{BaseHeight: 2, FeatureHeight: 1.5})
	require.NoError(t, err)
	require.Equal(t, 2, g.Rows)
	require.Equal(t, 2, g.Cols)

	assert.Equal(t, 3.5, g.At(0, 0))
	assert.Equal(t, 2.0, g.At(0, 1))
	assert.Equal(t, 2.0, g.At(1, 0))
	assert.Equal(t, 3.5, g.At(1, 1))
	assert.Equal(t, []float64{2, 3.5}, g.Levels())
}

func TestBuildGrayscaleIsProportional(t *testing.T) {
	img := image.NewGray16(image.Rect(0, 0, 1, 1))
	img.SetGray16(0, 0, color.Gray16{Y: 0x8000})

	g, err := Build(img, BuildOptions{BaseHeight: 1, FeatureHeight: 2})
	require.NoError(t, err)
	assert.InDelta(t, 1+2*(1-float64(0x8000)/0xffff), g.At(0, 0), 1e-9)
}

func TestBuildInvertSwapsRaisedCells(t *testing.T) {
	img := createTestImage(
		"##.",
		"#..",
	)
	opts := DefaultBuildOptions()

	normal, err := Build(img, opts)
	require.NoError(t, err)
	opts.Invert = true
	inverted, err := Build(img, opts)
	require.NoError(t, err)

	assert.Equal(t, normal.Max(), inverted.Max())
	for r := 0; r < normal.Rows; r++ {
		for c := 0; c < normal.Cols; c++ {
			assert.NotEqual(t, normal.At(r, c), inverted.At(r, c), "cell %d,%d", r, c)
		}
	}
}

func TestBuildEmptyImage(t *testing.T) {
	_, err := Build(image.NewGray(image.Rect(0, 0, 0, 0)), DefaultBuildOptions())
	assert.ErrorIs(t, err, ErrEmptyImage)

	_, err = Build(nil, DefaultBuildOptions())
	assert.ErrorIs(t, err, ErrEmptyImage)
}

func TestBuildNegativeHeight(t *testing.T) {
	_, err := Build(createTestImage("#"), BuildOptions{BaseHeight: -1, FeatureHeight: 2})
	assert.ErrorIs(t, err, ErrInvalidHeight)
}

func TestBuildMultiLayerFrame(t *testing.T) {
	img := createTestImage(
		"########",
		"#......#",
		"#.##...#",
		"#.##.#.#",
		"#......#",
		"########",
	)

	g, err := Build(img, BuildOptions{Layers: LayerHeights{1, 2, 3}, HasFrame: true})
	require.NoError(t, err)

	// Border ring is frame.
	for c := 0; c < 8; c++ {
		assert.Equal(t, 3.0, g.At(0, c))
		assert.Equal(t, 3.0, g.At(5, c))
	}
	assert.Equal(t, 3.0, g.At(3, 0))
	// Inner modules are features, light pixels are base.
	assert.Equal(t, 2.0, g.At(2, 2))
	assert.Equal(t, 2.0, g.At(3, 5))
	assert.Equal(t, 1.0, g.At(1, 1))
	assert.Equal(t, []float64{1, 2, 3}, g.Levels())
}

func TestBuildMultiLayerFrameInvert(t *testing.T) {
	img := createTestImage(
		"######",
		"#....#",
		"#.##.#",
		"#....#",
		"######",
	)

	g, err := Build(img, BuildOptions{Layers: LayerHeights{1, 2, 3}, HasFrame: true, Invert: true})
	require.NoError(t, err)

	assert.Equal(t, 3.0, g.At(0, 0))
	assert.Equal(t, 1.0, g.At(2, 2))
	assert.Equal(t, 2.0, g.At(1, 1))
}

func TestBuildMultiLayerWithoutFrame(t *testing.T) {
	img := createTestImage(
		"##",
		"#.",
	)

	// A third height without HasFrame, and HasFrame with only two heights,
	// both behave as a binary split.
	for _, opts := range []BuildOptions{
		{Layers: LayerHeights{1, 2, 3}},
		{Layers: LayerHeights{1, 2}, HasFrame: true},
	} {
		g, err := Build(img, opts)
		require.NoError(t, err)
		assert.Equal(t, []float64{2, 2, 2, 1}, g.Heights)
	}
}

func TestDetectFrameIgnoresSmallComponents(t *testing.T) {
	// The top line touches three edges but holds less than 10% of the dark pixels.
	mask := make([][]bool, 30)
	for r := range mask {
		mask[r] = make([]bool, 12)
	}
	for c := 0; c < 12; c++ {
		mask[0][c] = true
	}
	for r := 3; r < 28; r++ {
		for c := 2; c < 10; c++ {
			mask[r][c] = true
		}
	}

	frame := DetectFrame(mask)
	assert.False(t, frame[0][0])
	assert.False(t, frame[10][5])

	// Without the block the line is the only dark component.
	for r := 3; r < 28; r++ {
		for c := 2; c < 10; c++ {
			mask[r][c] = false
		}
	}
	frame = DetectFrame(mask)
	assert.True(t, frame[0][0])
}

func TestBuildRejectsInvalidLayers(t *testing.T) {
	_, err := Build(createTestImage("#"), BuildOptions{Layers: LayerHeights{2}})
	assert.ErrorIs(t, err, ErrInvalidLayers)
}

func TestParseLayerHeights(t *testing.T) {
	tests := []struct {
		in      string
		want    LayerHeights
		wantErr bool
	}{
		{"2,4,6", LayerHeights{2, 4, 6}, false},
		{" 1.5 , 3 ", LayerHeights{1.5, 3}, false},
		{"", nil, true},
		{"2", nil, true},
		{"1,2,3,4", nil, true},
		{"4,2", nil, true},
		{"0,2", nil, true},
		{"2,2", nil, true},
		{"a,b", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLayerHeights(tt.in)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidLayers), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.String(), got.String())
		})
	}
}

func TestGridHelpers(t *testing.T) {
	g := FromRows([][]float64{
		{1, 2, 3},
		{4, 5, 6},
	})

	assert.Equal(t, 1.0, g.Min())
	assert.Equal(t, 6.0, g.Max())
	assert.Equal(t, 0.0, g.At(5, 5))
	assert.False(t, g.Uniform())
	assert.True(t, NewGrid(3, 3, 2).Uniform())

	flipped := g.FlipRows()
	assert.Equal(t, []float64{4, 5, 6, 1, 2, 3}, flipped.Heights)
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, g.Heights)

	doubled := g.Map(func(h float64) float64 { return h * 2 })
	assert.Equal(t, 12.0, doubled.Max())

	assert.True(t, (&Grid{}).Empty())
	assert.True(t, (*Grid)(nil).Empty())
}

func TestPixelSize(t *testing.T) {
	assert.Equal(t, 1.0, PixelSize(50, 50, 50, 50))
	assert.Equal(t, 1.5, PixelSize(10, 10, 10, 20))
	assert.Equal(t, 0.0, PixelSize(0, 10, 10, 10))
}

func TestLoadImageAndPreview(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "qr.png")

	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, createTestImage("#.", "..")))
	require.NoError(t, f.Close())

	img, err := LoadImage(path)
	require.NoError(t, err)
	g, err := Build(img, DefaultBuildOptions())
	require.NoError(t, err)
	assert.Equal(t, 4.0, g.At(0, 0))

	preview := filepath.Join(dir, "debug", "preview.png")
	require.NoError(t, WritePreview(g, preview))
	img, err = LoadImage(preview)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 2, 2), img.Bounds())
	assert.Equal(t, color.Gray{Y: 255}, color.GrayModel.Convert(img.At(0, 0)))
	assert.Equal(t, color.Gray{Y: 32}, color.GrayModel.Convert(img.At(1, 1)))

	_, err = LoadImage(filepath.Join(dir, "missing.png"))
	assert.Error(t, err)
}
