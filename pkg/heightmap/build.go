package heightmap

import (
	"errors"
	"fmt"
	"image"
	"image/color"
)

// Sentinel errors.
var (
	ErrEmptyImage    = errors.New("image has no pixels")
	ErrInvalidLayers = errors.New("invalid layer heights")
	ErrInvalidHeight = errors.New("invalid height")
)

// darkThreshold splits pixels into dark and light in multi-layer mode.
const darkThreshold = 0.5

// frameMinEdges is the number of image edges a dark component must touch to
// count as a frame.
const frameMinEdges = 3

// frameMinShare is the share of all dark pixels a frame component must exceed.
const frameMinShare = 0.1

// BuildOptions configures Build.
type BuildOptions struct {
	BaseHeight    float64 // base plate thickness (single-layer)
	FeatureHeight float64 // extra height of dark modules (single-layer)
	Invert        bool    // raise light pixels instead of dark ones
	// Layers switches to multi-layer mode with absolute heights.
	Layers   LayerHeights
	HasFrame bool // classify the border component as frame (needs 3 layers)
}

// DefaultBuildOptions returns 2mm base and 2mm features.
func DefaultBuildOptions() BuildOptions {
	return BuildOptions{BaseHeight: 2, FeatureHeight: 2}
}

// Build converts img into a height grid with one cell per pixel.
func Build(img image.Image, opts BuildOptions) (*Grid, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}
	if opts.Layers != nil {
		if err := opts.Layers.Validate(); err != nil {
			return nil, err
		}
		return buildMultiLayer(img, opts), nil
	}
	if opts.BaseHeight < 0 || opts.FeatureHeight < 0 {
		return nil, fmt.Errorf("%w: base %g, feature %g", ErrInvalidHeight, opts.BaseHeight, opts.FeatureHeight)
	}
	return buildSingleLayer(img, opts), nil
}

// luminance returns the pixel brightness in [0,1].
func luminance(c color.Color) float64 {
	g := color.Gray16Model.Convert(c).(color.Gray16)
	return float64(g.Y) / 0xffff
}

func buildSingleLayer(img image.Image, opts BuildOptions) *Grid {
	b := img.Bounds()
	g := NewGrid(b.Dy(), b.Dx(), opts.BaseHeight)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			v := luminance(img.At(x, y))
			if opts.Invert {
				v = 1 - v
			}
			g.set(y-b.Min.Y, x-b.Min.X, opts.BaseHeight+(1-v)*opts.FeatureHeight)
		}
	}
	return g
}

// darkMask binarizes img; mask[row][col] is true for dark pixels.
func darkMask(img image.Image) [][]bool {
	b := img.Bounds()
	mask := make([][]bool, b.Dy())
	for y := range mask {
		mask[y] = make([]bool, b.Dx())
		for x := range mask[y] {
			mask[y][x] = luminance(img.At(b.Min.X+x, b.Min.Y+y)) < darkThreshold
		}
	}
	return mask
}

func buildMultiLayer(img image.Image, opts BuildOptions) *Grid {
	mask := darkMask(img)
	rows, cols := len(mask), len(mask[0])
	base, feature := opts.Layers.Base(), opts.Layers.Feature()
	frameHeight, hasFrameLayer := opts.Layers.Frame()

	var frame [][]bool
	if opts.HasFrame && hasFrameLayer {
		frame = DetectFrame(mask)
	}

	g := NewGrid(rows, cols, base)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			switch {
			case frame != nil && frame[r][c]:
				g.set(r, c, frameHeight)
			case mask[r][c] != opts.Invert:
				g.set(r, c, feature)
			default:
				g.set(r, c, base)
			}
		}
	}
	return g
}

// DetectFrame returns the pixels of dark 8-connected components that touch at
// least three image edges and hold more than a tenth of all dark pixels.
func DetectFrame(mask [][]bool) [][]bool {
	rows := len(mask)
	if rows == 0 {
		return nil
	}
	cols := len(mask[0])

	labels := make([][]int, rows)
	for r := range labels {
		labels[r] = make([]int, cols)
	}

	totalDark := 0
	for r := range mask {
		for c := range mask[r] {
			if mask[r][c] {
				totalDark++
			}
		}
	}

	frame := make([][]bool, rows)
	for r := range frame {
		frame[r] = make([]bool, cols)
	}

	next := 0
	stack := make([][2]int, 0, 64)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if !mask[r][c] || labels[r][c] != 0 {
				continue
			}
			next++
			labels[r][c] = next
			stack = append(stack[:0], [2]int{r, c})
			var members [][2]int
			var top, bottom, left, right bool

			for len(stack) > 0 {
				p := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				members = append(members, p)
				top = top || p[0] == 0
				bottom = bottom || p[0] == rows-1
				left = left || p[1] == 0
				right = right || p[1] == cols-1

				for dr := -1; dr <= 1; dr++ {
					for dc := -1; dc <= 1; dc++ {
						nr, nc := p[0]+dr, p[1]+dc
						if nr < 0 || nr >= rows || nc < 0 || nc >= cols {
							continue
						}
						if mask[nr][nc] && labels[nr][nc] == 0 {
							labels[nr][nc] = next
							stack = append(stack, [2]int{nr, nc})
						}
					}
				}
			}

			edges := 0
			for _, touched := range []bool{top, bottom, left, right} {
				if touched {
					edges++
				}
			}
			if edges >= frameMinEdges && float64(len(members)) > frameMinShare*float64(totalDark) {
				for _, p := range members {
					frame[p[0]][p[1]] = true
				}
			}
		}
	}
	return frame
}

// PixelSize returns the cell edge length that maps a rows x cols raster onto
// a width x depth footprint: the mean of the two axis scales.
func PixelSize(rows, cols int, width, depth float64) float64 {
	if rows <= 0 || cols <= 0 {
		return 0
	}
	return (width/float64(cols) + depth/float64(rows)) / 2
}
