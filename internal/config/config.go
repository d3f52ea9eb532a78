// Package config handles conversion settings loading and management.
package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds all conversion settings.
type Config struct {
	Model   ModelConfig   `yaml:"model" toml:"model"`
	Mount   MountConfig   `yaml:"mount" toml:"mount"`
	Colors  ColorConfig   `yaml:"colors" toml:"colors"`
	Output  OutputConfig  `yaml:"output" toml:"output"`
	Logging LoggingConfig `yaml:"logging" toml:"logging"`
}

// ModelConfig holds geometry settings. Lengths are in millimeters.
type ModelConfig struct {
	Width         float64 `yaml:"width" toml:"width"`
	Depth         float64 `yaml:"depth" toml:"depth"`
	BaseHeight    float64 `yaml:"base_height" toml:"base_height"`
	FeatureHeight float64 `yaml:"feature_height" toml:"feature_height"`
	Invert        bool    `yaml:"invert" toml:"invert"`
	Layers        string  `yaml:"layers" toml:"layers"` // e.g. "2,4,6"; empty for single layer
	Frame         bool    `yaml:"frame" toml:"frame"`
	InternalWalls bool    `yaml:"internal_walls" toml:"internal_walls"`
	Base          bool    `yaml:"base" toml:"base"`
	Compact       bool    `yaml:"compact" toml:"compact"`
}

// MountConfig holds mounting feature settings.
type MountConfig struct {
	Type         string  `yaml:"type" toml:"type"` // none, keychain or holes
	HoleDiameter float64 `yaml:"hole_diameter" toml:"hole_diameter"`
}

// ColorConfig holds 3MF color settings.
type ColorConfig struct {
	Base     string `yaml:"base" toml:"base"`
	Feature  string `yaml:"feature" toml:"feature"`
	Separate bool   `yaml:"separate" toml:"separate"` // one object per color
}

// OutputConfig holds output settings.
type OutputConfig struct {
	Format string `yaml:"format" toml:"format"` // stl or 3mf
	Debug  bool   `yaml:"debug" toml:"debug"`   // write a heightmap preview next to the output
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level" toml:"level"`
	LogFile string `yaml:"log_file" toml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Model: ModelConfig{
			Width:         50,
			Depth:         50,
			BaseHeight:    2,
			FeatureHeight: 2,
			InternalWalls: true,
			Base:          true,
			Compact:       true,
		},
		Mount: MountConfig{
			Type:         "none",
			HoleDiameter: 4,
		},
		Colors: ColorConfig{
			Base:    "white",
			Feature: "black",
		},
		Output: OutputConfig{
			Format: "stl",
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Validate checks value ranges. It does not parse colors, which fall back
// to defaults instead of failing.
func (c *Config) Validate() error {
	var errs []error
	if c.Model.Width <= 0 || c.Model.Depth <= 0 {
		errs = append(errs, fmt.Errorf("model size %gx%g must be positive", c.Model.Width, c.Model.Depth))
	}
	if c.Model.BaseHeight < 0 || c.Model.FeatureHeight < 0 {
		errs = append(errs, fmt.Errorf("heights must not be negative"))
	}
	switch strings.ToLower(c.Output.Format) {
	case "stl", "3mf":
	default:
		errs = append(errs, fmt.Errorf("unknown output format %q", c.Output.Format))
	}
	if c.Mount.HoleDiameter < 0 {
		errs = append(errs, fmt.Errorf("hole diameter must not be negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
