// qr3d converts QR code images into watertight 3D printable models.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/Faultbox/qr3d/internal/config"
	"github.com/Faultbox/qr3d/internal/convert"
	"github.com/Faultbox/qr3d/internal/logger"
	"github.com/Faultbox/qr3d/internal/watch"
	"github.com/Faultbox/qr3d/pkg/formats"
	"github.com/Faultbox/qr3d/pkg/mesh"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run dispatches a command and returns the process exit code. Commands
// return instead of exiting so their deferred cleanup runs.
func run(args []string) int {
	if len(args) < 1 {
		printUsage()
		return 1
	}

	command, rest := args[0], args[1:]
	switch command {
	case "convert", "c":
		return cmdConvert(rest)
	case "check-mesh", "check":
		return cmdCheckMesh(rest)
	case "watch", "w":
		return cmdWatch(rest)
	case "config":
		return cmdConfig(rest)
	case "help", "-h", "--help":
		printUsage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		return 1
	}
}

func printUsage() {
	fmt.Println(`qr3d - QR code image to 3D printable model converter

Usage:
  qr3d <command> [options]

Commands:
  convert -i <image> [-o out] [options]   Convert an image to STL or 3MF
  convert [options] <image>...            Convert several images (-o is a directory)
  check-mesh [-repair out.stl] <file>     Validate an STL or 3MF mesh
  watch -i <image> [-o out] [options]     Re-convert whenever the image changes
  config [-o path] [options]              Save the effective settings
  help                                    Show this help

Run "qr3d convert -h" for conversion options.

Examples:
  qr3d convert -i qr.png -o qr.stl -width 40 -depth 40
  qr3d convert -i qr.png -o qr.3mf -format 3mf -mount keychain -feature-color navy
  qr3d check-mesh qr.stl
  qr3d watch -i qr.png -format 3mf -separate`)
}

// setup parses conversion flags, loads the config and starts logging.
func setup(fs *flag.FlagSet, flags *config.Flags, args []string) (*config.Config, error) {
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	cfg, err := config.Load(flags)
	if err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fail(err error) int {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return 1
}

func cmdConvert(args []string) int {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	input := fs.String("i", "", "Input image (PNG, JPEG, GIF, BMP or WebP)")
	output := fs.String("o", "", "Output file, or directory for several inputs")
	jobs := fs.Int("j", 0, "Parallel conversions for several inputs (0 = unlimited)")
	flags := config.RegisterFlags(fs)
	cfg, err := setup(fs, flags, args)
	if err != nil {
		return fail(err)
	}
	defer logger.Sync()

	inputs := fs.Args()
	if *input != "" {
		inputs = append([]string{*input}, inputs...)
	}
	if len(inputs) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: qr3d convert -i <image> [-o out] [options]")
		return 1
	}

	conv := convert.New(cfg, convert.ThreeMF{})
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(inputs) == 1 {
		res, err := conv.Convert(ctx, inputs[0], *output)
		if err != nil {
			return fail(err)
		}
		printResult(os.Stdout, res)
		return 0
	}

	batch := make([]convert.Job, len(inputs))
	for i, in := range inputs {
		batch[i] = convert.Job{Input: in}
		if *output != "" {
			name := strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))
			batch[i].Output = filepath.Join(*output, name)
		}
	}
	results, err := conv.Batch(ctx, batch, *jobs)
	for _, res := range results {
		if res != nil {
			printResult(os.Stdout, res)
		}
	}
	if err != nil {
		return fail(err)
	}
	fmt.Fprintf(os.Stderr, "\nConverted %d files\n", len(results))
	return 0
}

func printResult(w io.Writer, res *convert.Result) {
	status := "watertight"
	if !res.Clean() {
		status = "NOT clean, check the mesh before printing"
	}
	fmt.Fprintf(w, "Wrote: %s (%d triangles, %dx%d px at %.3f mm, %s)\n",
		res.Output, res.Triangles(), res.Cols, res.Rows, res.CellSize, status)
	for _, obj := range res.Objects {
		if obj.Repaired {
			fmt.Fprintf(w, "  %s repaired: %s\n", obj.Name, strings.Join(obj.Steps, ", "))
		}
	}
}

// checkedObject is the validation report of one mesh in a file.
type checkedObject struct {
	Name   string
	Mesh   *mesh.Mesh
	Report mesh.Report
}

// passes reports whether a mesh is good enough to print: closed and free of
// duplicate faces.
func passes(r mesh.Report) bool {
	return r.Watertight && r.DuplicateFaces == 0
}

// loadMeshes reads every object of an STL or 3MF file.
func loadMeshes(path string) ([]checkedObject, error) {
	format, ok := formats.DetectFormat(path)
	if !ok {
		return nil, fmt.Errorf("unsupported mesh file %s (want .stl or .3mf)", path)
	}

	var objs []checkedObject
	switch format {
	case formats.FormatSTL:
		m, err := formats.LoadSTL(path)
		if err != nil {
			return nil, err
		}
		objs = append(objs, checkedObject{Name: filepath.Base(path), Mesh: m})
	case formats.FormatThreeMF:
		pkg, err := formats.ReadThreeMF(path)
		if err != nil {
			return nil, err
		}
		for _, o := range pkg.Objects {
			objs = append(objs, checkedObject{Name: o.Name, Mesh: o.Mesh})
		}
	}
	if len(objs) == 0 {
		return nil, errors.New("no mesh objects found")
	}
	for i := range objs {
		objs[i].Report = mesh.Validate(objs[i].Mesh)
	}
	return objs, nil
}

func cmdCheckMesh(args []string) int {
	fs := flag.NewFlagSet("check-mesh", flag.ExitOnError)
	repairOut := fs.String("repair", "", "Write a repaired STL to this path")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: qr3d check-mesh [-repair out.stl] <file.stl|file.3mf>")
		return 1
	}
	path := fs.Arg(0)

	objs, err := loadMeshes(path)
	if err != nil {
		return fail(err)
	}

	ok := true
	combined := mesh.New()
	for _, obj := range objs {
		fmt.Printf("Object: %s\n", obj.Name)
		fmt.Print(obj.Report.Summary())
		fmt.Println()
		ok = ok && passes(obj.Report)
		combined.Append(obj.Mesh)
	}

	if *repairOut != "" {
		fixed, res := mesh.Process(combined, mesh.DefaultRepairOptions())
		if err := formats.SaveSTL(*repairOut, fixed, filepath.Base(path)); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing repaired mesh: %v\n", err)
			return 1
		}
		if res.Repaired {
			fmt.Printf("Repaired: %s\n", strings.Join(res.Steps, ", "))
		}
		fmt.Printf("Wrote: %s (watertight: %t)\n", *repairOut, res.Final.Watertight)
	}

	if !ok {
		fmt.Println("FAIL: mesh is not watertight or has duplicate faces")
		return 1
	}
	fmt.Println("PASS")
	return 0
}

func cmdWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	input := fs.String("i", "", "Input image to watch")
	output := fs.String("o", "", "Output file")
	flags := config.RegisterFlags(fs)
	cfg, err := setup(fs, flags, args)
	if err != nil {
		return fail(err)
	}
	defer logger.Sync()

	if *input == "" && fs.NArg() > 0 {
		*input = fs.Arg(0)
	}
	if *input == "" {
		fmt.Fprintln(os.Stderr, "Usage: qr3d watch -i <image> [-o out] [options]")
		return 1
	}

	conv := convert.New(cfg, convert.ThreeMF{})
	w, err := watch.New([]string{*input}, 0, func(ctx context.Context, path string) error {
		res, err := conv.Convert(ctx, path, *output)
		if err != nil {
			return err
		}
		printResult(os.Stdout, res)
		return nil
	})
	if err != nil {
		return fail(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	fmt.Fprintf(os.Stderr, "Watching %s (Ctrl+C to stop)\n", *input)
	if err := w.Run(ctx); err != nil {
		return fail(err)
	}
	return 0
}

func cmdConfig(args []string) int {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	output := fs.String("o", "", "Config file to write (.yaml or .toml), default user config dir")
	flags := config.RegisterFlags(fs)
	cfg, err := setup(fs, flags, args)
	if err != nil {
		return fail(err)
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		return fail(err)
	}

	path := *output
	if path == "" {
		path = filepath.Join(config.ConfigDir(), "config.yaml")
		err = cfg.Save()
	} else {
		err = cfg.SaveTo(path)
	}
	if err != nil {
		return fail(err)
	}
	fmt.Printf("Saved: %s\n", path)
	return 0
}
