// Package convert runs the image to printable model pipeline.
package convert

import (
	"context"
	"fmt"
	"image"
	imgcolor "image/color"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Faultbox/qr3d/internal/color"
	"github.com/Faultbox/qr3d/internal/config"
	"github.com/Faultbox/qr3d/internal/logger"
	"github.com/Faultbox/qr3d/pkg/appendage"
	"github.com/Faultbox/qr3d/pkg/formats"
	"github.com/Faultbox/qr3d/pkg/heightmap"
	"github.com/Faultbox/qr3d/pkg/mesh"
	"github.com/Faultbox/qr3d/pkg/synth"
)

// Output formats.
const (
	FormatSTL     = string(formats.FormatSTL)
	FormatThreeMF = string(formats.FormatThreeMF)
)

// ModelName is written into file headers and 3MF metadata.
const ModelName = "QR Code"

// Result describes one finished conversion.
type Result struct {
	JobID  string
	Input  string
	Output string
	Format string
	Rows   int // source raster rows
	Cols   int // source raster columns
	// CellSize is the footprint of one pixel in mm.
	CellSize float64
	// Objects holds one entry per written object.
	Objects []Object
}

// Triangles returns the number of triangles written.
func (r *Result) Triangles() int {
	n := 0
	for _, o := range r.Objects {
		n += o.Final.Faces
	}
	return n
}

// Clean reports whether every written object passed validation.
func (r *Result) Clean() bool {
	for _, o := range r.Objects {
		if !o.Final.Clean() {
			return false
		}
	}
	return true
}

// Object is the validation outcome of one written mesh.
type Object struct {
	Name    string
	Summary synth.Summary
	mesh.Result
}

// Converter turns raster images into model files.
type Converter struct {
	cfg      *config.Config
	exporter ColoredExporter
}

// New returns a converter for cfg. A nil exporter disables 3MF output.
func New(cfg *config.Config, exporter ColoredExporter) *Converter {
	return &Converter{cfg: cfg, exporter: exporter}
}

// plan holds the settings checked before any work starts.
type plan struct {
	format string
	build  heightmap.BuildOptions
	mount  appendage.Mount
	base   float64 // top of the base plate
}

func (c *Converter) plan() (*plan, error) {
	if err := c.cfg.Validate(); err != nil {
		return nil, err
	}
	p := &plan{format: strings.ToLower(c.cfg.Output.Format)}
	if p.format == FormatThreeMF && c.exporter == nil {
		return nil, ErrColoredExportUnavailable
	}

	mc := c.cfg.Model
	p.build = heightmap.BuildOptions{
		BaseHeight:    mc.BaseHeight,
		FeatureHeight: mc.FeatureHeight,
		Invert:        mc.Invert,
		HasFrame:      mc.Frame,
	}
	p.base = mc.BaseHeight
	if mc.Layers != "" {
		layers, err := heightmap.ParseLayerHeights(mc.Layers)
		if err != nil {
			return nil, err
		}
		p.build.Layers = layers
		p.base = layers.Base()
	}

	mount, err := appendage.ParseMount(c.cfg.Mount.Type, c.cfg.Mount.HoleDiameter)
	if err != nil {
		return nil, err
	}
	p.mount = mount
	return p, nil
}

// OutputPath returns output with the extension of format, deriving the
// name from input when output is empty.
func OutputPath(input, output, format string) string {
	ext := "." + strings.ToLower(format)
	if output == "" {
		return strings.TrimSuffix(input, filepath.Ext(input)) + ext
	}
	if filepath.Ext(output) == "" {
		return output + ext
	}
	return output
}

// PreviewPath returns the debug heightmap path for an output file.
func PreviewPath(output string) string {
	return strings.TrimSuffix(output, filepath.Ext(output)) + ".heightmap.png"
}

// Convert reads the image at input and writes the model to output.
func (c *Converter) Convert(ctx context.Context, input, output string) (*Result, error) {
	p, err := c.plan()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := heightmap.LoadImage(input)
	if err != nil {
		return nil, err
	}
	res, err := c.run(ctx, p, img, OutputPath(input, output, p.format))
	if res != nil {
		res.Input = input
	}
	return res, err
}

// ConvertImage writes the model for img to output.
func (c *Converter) ConvertImage(ctx context.Context, img image.Image, output string) (*Result, error) {
	p, err := c.plan()
	if err != nil {
		return nil, err
	}
	return c.run(ctx, p, img, OutputPath("model", output, p.format))
}

func (c *Converter) run(ctx context.Context, p *plan, img image.Image, output string) (*Result, error) {
	res := &Result{JobID: uuid.NewString()[:8], Output: output, Format: p.format}
	log := logger.Named("convert", zap.String("job", res.JobID))

	grid, err := heightmap.Build(img, p.build)
	if err != nil {
		return nil, fmt.Errorf("building heightmap: %w", err)
	}
	// Image row 0 is the top edge, which is the far (max Y) side of the model.
	grid = grid.FlipRows()
	res.Rows, res.Cols = grid.Rows, grid.Cols
	res.CellSize = heightmap.PixelSize(grid.Rows, grid.Cols, c.cfg.Model.Width, c.cfg.Model.Depth)
	log.Debug("heightmap built",
		zap.Int("rows", grid.Rows),
		zap.Int("cols", grid.Cols),
		zap.Float64s("levels", grid.Levels()),
		zap.Float64("cell", res.CellSize))

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if dir := filepath.Dir(output); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating output dir: %w", err)
		}
	}
	if c.cfg.Output.Debug {
		preview := PreviewPath(output)
		if err := heightmap.WritePreview(grid.FlipRows(), preview); err != nil {
			log.Warn("heightmap preview failed", zap.Error(err))
		} else {
			log.Info("wrote heightmap preview", zap.String("path", preview))
		}
	}

	switch {
	case p.format == FormatSTL:
		obj, m, err := c.single(p, grid, res.CellSize, false, log)
		if err != nil {
			return nil, err
		}
		res.Objects = append(res.Objects, obj)
		if err := formats.SaveSTL(output, m, ModelName); err != nil {
			return nil, err
		}
	case c.cfg.Colors.Separate:
		parts, objs, err := c.separate(p, grid, res.CellSize, log)
		if err != nil {
			return nil, err
		}
		res.Objects = append(res.Objects, objs...)
		if err := c.exporter.ExportParts(output, parts, c.threeMFOptions()); err != nil {
			return nil, err
		}
	default:
		obj, m, err := c.single(p, grid, res.CellSize, true, log)
		if err != nil {
			return nil, err
		}
		res.Objects = append(res.Objects, obj)
		if err := c.exporter.Export(output, m, c.threeMFOptions()); err != nil {
			return nil, err
		}
	}

	log.Info("wrote model",
		zap.String("path", output),
		zap.String("format", p.format),
		zap.Int("triangles", res.Triangles()),
		zap.Bool("clean", res.Clean()))
	return res, nil
}

func (c *Converter) synthOptions(cell float64) synth.Options {
	opts := synth.DefaultOptions(cell)
	opts.IncludeBase = c.cfg.Model.Base
	opts.IncludeInternalWalls = c.cfg.Model.InternalWalls
	opts.Compact = c.cfg.Model.Compact
	return opts
}

// single builds the whole model as one mesh. splitBase cuts outer walls at
// the base level so their lower part takes the base color.
func (c *Converter) single(p *plan, grid *heightmap.Grid, cell float64, splitBase bool, log *zap.Logger) (Object, *mesh.Mesh, error) {
	opts := c.synthOptions(cell)
	opts.BaseLevel = p.base
	if splitBase && p.base > 0 && grid.Max() > p.base {
		opts.SplitLevels = []float64{p.base}
	}
	m, sum, err := synth.Synthesize(grid, opts)
	if err != nil {
		return Object{}, nil, fmt.Errorf("synthesizing mesh: %w", err)
	}
	c.attachMount(p, m, grid, cell)

	obj := Object{Name: formats.SingleObjectName, Summary: sum}
	m = finish(&obj, m, log)
	return obj, m, nil
}

// separate builds the base slab and the raised modules as two meshes.
func (c *Converter) separate(p *plan, grid *heightmap.Grid, cell float64, log *zap.Logger) ([]formats.Part, []Object, error) {
	var parts []formats.Part
	var objs []Object

	if p.base > 0 {
		opts := c.synthOptions(cell)
		slab, sum, err := synth.Synthesize(heightmap.NewGrid(grid.Rows, grid.Cols, p.base), opts)
		if err != nil {
			return nil, nil, fmt.Errorf("synthesizing base: %w", err)
		}
		c.attachMount(p, slab, grid, cell)
		obj := Object{Name: formats.BaseObjectName, Summary: sum}
		slab = finish(&obj, slab, log)
		objs = append(objs, obj)
		parts = append(parts, formats.Part{Name: obj.Name, Mesh: slab})
	}

	if grid.Max() > p.base {
		opts := c.synthOptions(cell)
		opts.Floor = p.base
		modules, sum, err := synth.Synthesize(grid, opts)
		if err != nil {
			return nil, nil, fmt.Errorf("synthesizing modules: %w", err)
		}
		obj := Object{Name: formats.FeatureObjectName, Summary: sum}
		modules = finish(&obj, modules, log)
		objs = append(objs, obj)
		parts = append(parts, formats.Part{Name: obj.Name, Mesh: modules, Feature: true})
	}
	return parts, objs, nil
}

func (c *Converter) attachMount(p *plan, m *mesh.Mesh, grid *heightmap.Grid, cell float64) {
	w, d := float64(grid.Cols)*cell, float64(grid.Rows)*cell
	if tab := p.mount.Build(w, d, p.base); tab != nil {
		m.Append(tab)
	}
}

// finish validates and repairs m, recording the outcome in obj. Invalid
// geometry is logged, never fatal.
func finish(obj *Object, m *mesh.Mesh, log *zap.Logger) *mesh.Mesh {
	out, res := mesh.Process(m, mesh.DefaultRepairOptions())
	obj.Result = res
	if res.Repaired {
		log.Info("repaired mesh", zap.String("object", obj.Name), zap.Strings("steps", res.Steps))
	}
	if !res.Final.Clean() {
		log.Warn("mesh is not clean",
			zap.String("object", obj.Name),
			zap.Bool("watertight", res.Final.Watertight),
			zap.Int("boundary_edges", res.Final.BoundaryEdges),
			zap.Int("non_manifold_edges", res.Final.NonManifoldEdges))
	}
	return out
}

func (c *Converter) threeMFOptions() formats.ThreeMFOptions {
	return formats.ThreeMFOptions{
		Name:    ModelName,
		Base:    material(c.cfg.Colors.Base, color.DefaultBase, "white"),
		Feature: material(c.cfg.Colors.Feature, color.DefaultFeature, "black"),
	}
}

// material names the color after the user's input in title case, or after
// the fallback when the input does not parse. Hex codes are kept as given.
func material(s string, fallback imgcolor.NRGBA, fallbackName string) formats.Material {
	c, err := color.Lookup(s)
	if err != nil {
		return formats.Material{Name: color.Title(fallbackName), Color: color.Parse(s, fallback)}
	}
	name := strings.TrimSpace(s)
	if !strings.HasPrefix(name, "#") {
		name = color.Title(name)
	}
	return formats.Material{Name: name, Color: c}
}
