package config

import "flag"

// Flags binds the conversion settings to a flag set. Only flags given on the
// command line override values from the config file.
type Flags struct {
	fs     *flag.FlagSet
	config string
	debug  bool
	noWall bool
	noBase bool
	noComp bool
	values Config
}

// RegisterFlags defines the conversion flags on fs with defaults shown in help.
func RegisterFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{fs: fs, values: *Default()}
	v := &f.values

	fs.StringVar(&f.config, "config", "", "Path to config file (.yaml or .toml)")
	fs.BoolVar(&f.debug, "debug", false, "Enable debug logging and write a heightmap preview")

	fs.Float64Var(&v.Model.Width, "width", v.Model.Width, "Model width in mm")
	fs.Float64Var(&v.Model.Depth, "depth", v.Model.Depth, "Model depth in mm")
	fs.Float64Var(&v.Model.BaseHeight, "base", v.Model.BaseHeight, "Base plate height in mm")
	fs.Float64Var(&v.Model.FeatureHeight, "feature", v.Model.FeatureHeight, "Module height above the base in mm")
	fs.BoolVar(&v.Model.Invert, "invert", false, "Raise light pixels instead of dark ones")
	fs.StringVar(&v.Model.Layers, "layers", "", "Absolute layer heights base,feature[,frame] in mm")
	fs.BoolVar(&v.Model.Frame, "frame", false, "Detect a border frame (needs three layers)")
	fs.BoolVar(&f.noWall, "no-walls", false, "Omit walls between cells")
	fs.BoolVar(&f.noBase, "no-base", false, "Omit the bottom faces")
	fs.BoolVar(&f.noComp, "no-compact", false, "Keep one cell per pixel")

	fs.StringVar(&v.Mount.Type, "mount", v.Mount.Type, "Mount type: none, keychain or holes")
	fs.Float64Var(&v.Mount.HoleDiameter, "hole", v.Mount.HoleDiameter, "Mount hole diameter in mm")

	fs.StringVar(&v.Colors.Base, "base-color", v.Colors.Base, "Base color name or hex")
	fs.StringVar(&v.Colors.Feature, "feature-color", v.Colors.Feature, "Module color name or hex")
	fs.BoolVar(&v.Colors.Separate, "separate", false, "Write base and modules as separate 3MF objects")

	fs.StringVar(&v.Output.Format, "format", v.Output.Format, "Output format: stl or 3mf")
	fs.StringVar(&v.Logging.LogFile, "log-file", "", "Also write logs to this file")
	return f
}

// ConfigPath returns the explicit config path if provided via -config.
func (f *Flags) ConfigPath() string {
	return f.config
}

// apply copies explicitly set flags into cfg.
func (f *Flags) apply(cfg *Config) {
	v := &f.values
	f.fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "debug":
			if f.debug {
				cfg.Logging.Level = "debug"
				cfg.Output.Debug = true
			}
		case "width":
			cfg.Model.Width = v.Model.Width
		case "depth":
			cfg.Model.Depth = v.Model.Depth
		case "base":
			cfg.Model.BaseHeight = v.Model.BaseHeight
		case "feature":
			cfg.Model.FeatureHeight = v.Model.FeatureHeight
		case "invert":
			cfg.Model.Invert = v.Model.Invert
		case "layers":
			cfg.Model.Layers = v.Model.Layers
		case "frame":
			cfg.Model.Frame = v.Model.Frame
		case "no-walls":
			cfg.Model.InternalWalls = !f.noWall
		case "no-base":
			cfg.Model.Base = !f.noBase
		case "no-compact":
			cfg.Model.Compact = !f.noComp
		case "mount":
			cfg.Mount.Type = v.Mount.Type
		case "hole":
			cfg.Mount.HoleDiameter = v.Mount.HoleDiameter
		case "base-color":
			cfg.Colors.Base = v.Colors.Base
		case "feature-color":
			cfg.Colors.Feature = v.Colors.Feature
		case "separate":
			cfg.Colors.Separate = v.Colors.Separate
		case "format":
			cfg.Output.Format = v.Output.Format
		case "log-file":
			cfg.Logging.LogFile = v.Logging.LogFile
		}
	})
}
