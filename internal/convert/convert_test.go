package convert

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qrcolor "github.com/Faultbox/qr3d/internal/color"
	"github.com/Faultbox/qr3d/internal/config"
	"github.com/Faultbox/qr3d/internal/logger"
	"github.com/Faultbox/qr3d/pkg/appendage"
	"github.com/Faultbox/qr3d/pkg/formats"
	"github.com/Faultbox/qr3d/pkg/heightmap"
	"github.com/Faultbox/qr3d/pkg/mesh"
)

func TestMain(m *testing.M) {
	_ = logger.InitWithFileConfig("error", logger.FileConfig{}, false)
	os.Exit(m.Run())
}

// createTestImage returns a 10x10 white raster with a 5x5 black block at
// rows and columns 2..6.
func createTestImage() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			v := uint8(255)
			if x >= 2 && x <= 6 && y >= 2 && y <= 6 {
				v = 0
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return img
}

// createDiagonalImage returns a 4x4 white raster with two black pixels that
// touch only at a corner.
func createDiagonalImage() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	img.SetGray(1, 1, color.Gray{})
	img.SetGray(2, 2, color.Gray{})
	return img
}

func writeTestPNG(t *testing.T, dir, name string) string {
	t.Helper()
	return writePNG(t, dir, name, createTestImage())
}

func writePNG(t *testing.T, dir, name string, img image.Image) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

// testConfig maps the 10x10 test image onto 10x10mm, 2mm base, 2mm modules.
func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Model.Width = 10
	cfg.Model.Depth = 10
	return cfg
}

func TestConvertSTL(t *testing.T) {
	dir := t.TempDir()
	input := writeTestPNG(t, dir, "qr.png")

	res, err := New(testConfig(), ThreeMF{}).Convert(context.Background(), input, filepath.Join(dir, "out"))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "out.stl"), res.Output)
	assert.Equal(t, input, res.Input)
	assert.Equal(t, FormatSTL, res.Format)
	assert.Equal(t, 10, res.Rows)
	assert.Equal(t, 10, res.Cols)
	assert.InDelta(t, 1.0, res.CellSize, 1e-12)
	require.Len(t, res.Objects, 1)
	assert.False(t, res.Objects[0].Repaired)
	assert.Equal(t, 3, res.Objects[0].Summary.Rows)
	assert.Equal(t, 3, res.Objects[0].Summary.Cols)
	assert.Equal(t, 68, res.Triangles())
	assert.True(t, res.Clean())

	info, err := os.Stat(res.Output)
	require.NoError(t, err)
	assert.Equal(t, formats.BinarySTLSize(68), info.Size())

	m, err := formats.LoadSTL(res.Output)
	require.NoError(t, err)
	assert.Len(t, m.Triangles, 68)
	assert.Len(t, m.Vertices, 36)
	assert.True(t, mesh.Validate(m).Watertight)

	b := m.Bounds()
	assert.InDelta(t, 10, b.Max.X, 1e-5)
	assert.InDelta(t, 10, b.Max.Y, 1e-5)
	assert.InDelta(t, 4, b.Max.Z, 1e-5)
	assert.InDelta(t, 0, b.Min.Z, 1e-5)
}

func TestConvertKeychain(t *testing.T) {
	dir := t.TempDir()
	input := writeTestPNG(t, dir, "qr.png")

	cfg := testConfig()
	cfg.Mount.Type = "keychain"
	res, err := New(cfg, nil).Convert(context.Background(), input, filepath.Join(dir, "tag.stl"))
	require.NoError(t, err)

	assert.Equal(t, 68+48, res.Triangles())
	assert.True(t, res.Objects[0].Final.Watertight)

	m, err := formats.LoadSTL(res.Output)
	require.NoError(t, err)
	b := m.Bounds()
	assert.InDelta(t, 20, b.Max.Y, 1e-5, "tab extends 10mm past the top edge")
	assert.InDelta(t, 4, b.Max.Z, 1e-5)
}

func TestConvertDiagonalContactRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		mount string
		width float64
	}{
		{"plain", "none", 4},
		{"keychain", "keychain", 25},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			input := writePNG(t, dir, "diag.png", createDiagonalImage())

			cfg := testConfig()
			cfg.Model.Width = tc.width
			cfg.Model.Depth = tc.width
			cfg.Mount.Type = tc.mount
			res, err := New(cfg, nil).Convert(context.Background(), input, filepath.Join(dir, "diag.stl"))
			require.NoError(t, err)
			want := res.Objects[0].Final
			require.True(t, want.Watertight, want.Summary())

			m, err := formats.LoadSTL(res.Output)
			require.NoError(t, err)
			got := mesh.Validate(m)
			assert.Equal(t, want.Vertices, got.Vertices)
			assert.Equal(t, want.Faces, got.Faces)
			assert.Equal(t, want.Watertight, got.Watertight, got.Summary())
			assert.Equal(t, want.EulerCharacteristic, got.EulerCharacteristic)
		})
	}
}

func TestConvertInvert(t *testing.T) {
	dir := t.TempDir()
	input := writeTestPNG(t, dir, "qr.png")

	cfg := testConfig()
	cfg.Model.Invert = true
	res, err := New(cfg, nil).Convert(context.Background(), input, filepath.Join(dir, "inv.stl"))
	require.NoError(t, err)
	assert.True(t, res.Clean())

	m, err := formats.LoadSTL(res.Output)
	require.NoError(t, err)
	assert.InDelta(t, 4, m.Bounds().Max.Z, 1e-5)
	// The block is now a 2mm well inside a 4mm plate.
	assert.InDelta(t, 10*10*4-5*5*2, m.Volume(), 1e-3)
}

func TestConvertThreeMF(t *testing.T) {
	dir := t.TempDir()
	input := writeTestPNG(t, dir, "qr.png")

	cfg := testConfig()
	cfg.Output.Format = FormatThreeMF
	cfg.Colors.Base = "navy"
	cfg.Colors.Feature = "#FFCC00"
	res, err := New(cfg, ThreeMF{}).Convert(context.Background(), input, filepath.Join(dir, "qr.3mf"))
	require.NoError(t, err)
	assert.True(t, res.Clean())

	pkg, err := formats.ReadThreeMF(res.Output)
	require.NoError(t, err)
	require.Len(t, pkg.Objects, 1)
	assert.Equal(t, formats.SingleObjectName, pkg.Objects[0].Name)
	require.Len(t, pkg.Materials, 2)
	assert.Equal(t, "Navy base", pkg.Materials[0].Name)
	assert.Equal(t, "#FFCC00 QR", pkg.Materials[1].Name)

	m := pkg.Objects[0].Mesh
	assert.Len(t, m.Triangles, res.Triangles())
	assert.True(t, mesh.Validate(m).Watertight)

	// Two top triangles of the raised block plus its four internal walls.
	features := 0
	for i := range m.Triangles {
		if m.TagAt(i).IsFeature() {
			features++
		}
	}
	assert.Equal(t, 10, features)
}

func TestConvertThreeMFSeparate(t *testing.T) {
	dir := t.TempDir()
	input := writeTestPNG(t, dir, "qr.png")

	cfg := testConfig()
	cfg.Output.Format = FormatThreeMF
	cfg.Colors.Separate = true
	res, err := New(cfg, ThreeMF{}).Convert(context.Background(), input, filepath.Join(dir, "parts.3mf"))
	require.NoError(t, err)
	require.Len(t, res.Objects, 2)

	pkg, err := formats.ReadThreeMF(res.Output)
	require.NoError(t, err)
	require.Len(t, pkg.Objects, 2)
	assert.Len(t, pkg.Items, 2)

	base, modules := pkg.Objects[0], pkg.Objects[1]
	assert.Equal(t, formats.BaseObjectName, base.Name)
	assert.Equal(t, formats.FeatureObjectName, modules.Name)
	assert.Len(t, base.Mesh.Triangles, 12)
	assert.Len(t, modules.Mesh.Triangles, 12)
	assert.True(t, mesh.Validate(base.Mesh).Watertight)
	assert.True(t, mesh.Validate(modules.Mesh).Watertight)

	mb := modules.Mesh.Bounds()
	assert.InDelta(t, 2, mb.Min.Z, 1e-5, "modules sit on the base plate")
	assert.InDelta(t, 4, mb.Max.Z, 1e-5)
	assert.InDelta(t, 5*5*2, modules.Mesh.Volume(), 1e-3)
}

func TestConvertThreeMFWithoutExporter(t *testing.T) {
	dir := t.TempDir()
	input := writeTestPNG(t, dir, "qr.png")

	cfg := testConfig()
	cfg.Output.Format = FormatThreeMF
	_, err := New(cfg, nil).Convert(context.Background(), input, filepath.Join(dir, "qr.3mf"))
	require.ErrorIs(t, err, ErrColoredExportUnavailable)

	_, err = os.Stat(filepath.Join(dir, "qr.3mf"))
	assert.True(t, os.IsNotExist(err), "nothing is written")
}

func TestConvertContractViolations(t *testing.T) {
	dir := t.TempDir()
	input := writeTestPNG(t, dir, "qr.png")
	output := filepath.Join(dir, "bad.stl")

	cfg := testConfig()
	cfg.Mount.Type = "magnet"
	_, err := New(cfg, nil).Convert(context.Background(), input, output)
	assert.ErrorIs(t, err, appendage.ErrUnknownMount)

	cfg = testConfig()
	cfg.Model.Layers = "4,2"
	_, err = New(cfg, nil).Convert(context.Background(), input, output)
	assert.ErrorIs(t, err, heightmap.ErrInvalidLayers)

	cfg = testConfig()
	cfg.Model.Width = -1
	_, err = New(cfg, nil).Convert(context.Background(), input, output)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	_, err = New(testConfig(), nil).Convert(context.Background(), filepath.Join(dir, "missing.png"), output)
	assert.Error(t, err)

	_, err = os.Stat(output)
	assert.True(t, os.IsNotExist(err))
}

func TestConvertCanceled(t *testing.T) {
	dir := t.TempDir()
	input := writeTestPNG(t, dir, "qr.png")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(testConfig(), nil).Convert(ctx, input, filepath.Join(dir, "out.stl"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConvertDebugPreview(t *testing.T) {
	dir := t.TempDir()
	input := writeTestPNG(t, dir, "qr.png")

	cfg := testConfig()
	cfg.Output.Debug = true
	res, err := New(cfg, nil).Convert(context.Background(), input, filepath.Join(dir, "sub", "out.stl"))
	require.NoError(t, err)

	preview, err := heightmap.LoadImage(PreviewPath(res.Output))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 10, 10), preview.Bounds())
	// Image orientation is kept: the raised block is bright at the same pixels.
	r, _, _, _ := preview.At(3, 3).RGBA()
	r0, _, _, _ := preview.At(0, 0).RGBA()
	assert.Greater(t, r, r0)
}

func TestConvertMultiLayer(t *testing.T) {
	dir := t.TempDir()
	input := writeTestPNG(t, dir, "qr.png")

	cfg := testConfig()
	cfg.Model.Layers = "1,3"
	res, err := New(cfg, nil).Convert(context.Background(), input, filepath.Join(dir, "layers.stl"))
	require.NoError(t, err)
	assert.Equal(t, 68, res.Triangles())

	m, err := formats.LoadSTL(res.Output)
	require.NoError(t, err)
	assert.InDelta(t, 3, m.Bounds().Max.Z, 1e-5)
}

func TestConvertImage(t *testing.T) {
	dir := t.TempDir()
	res, err := New(testConfig(), nil).ConvertImage(context.Background(), createTestImage(), filepath.Join(dir, "mem"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "mem.stl"), res.Output)
	assert.Empty(t, res.Input)
}

func TestOutputPath(t *testing.T) {
	tests := []struct {
		input, output, format, want string
	}{
		{"codes/qr.png", "", "stl", "codes/qr.stl"},
		{"qr.png", "out", "3mf", "out.3mf"},
		{"qr.png", "out.STL", "3mf", "out.STL"},
		{"qr", "", "3MF", "qr.3mf"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, OutputPath(tt.input, tt.output, tt.format))
	}
	assert.Equal(t, "dir/out.heightmap.png", PreviewPath("dir/out.stl"))
}

func TestMaterialFallback(t *testing.T) {
	m := material("blurple", qrcolor.DefaultBase, "white")
	assert.Equal(t, "White", m.Name)
	assert.Equal(t, qrcolor.DefaultBase, m.Color)

	m = material(" dark red ", qrcolor.DefaultBase, "white")
	assert.Equal(t, "Dark Red", m.Name)
	assert.Equal(t, color.NRGBA{R: 139, A: 255}, m.Color)
}
