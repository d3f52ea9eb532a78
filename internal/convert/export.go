package convert

import (
	"errors"

	"github.com/Faultbox/qr3d/pkg/formats"
	"github.com/Faultbox/qr3d/pkg/mesh"
)

// ErrColoredExportUnavailable is returned for 3MF output when the converter
// has no colored exporter.
var ErrColoredExportUnavailable = errors.New("colored export unavailable")

// ColoredExporter writes multi-color model files.
type ColoredExporter interface {
	// Export writes one object colored per triangle by component tag.
	Export(path string, m *mesh.Mesh, opts formats.ThreeMFOptions) error
	// ExportParts writes one object per part.
	ExportParts(path string, parts []formats.Part, opts formats.ThreeMFOptions) error
}

// ThreeMF exports 3MF packages.
type ThreeMF struct{}

func (ThreeMF) Export(path string, m *mesh.Mesh, opts formats.ThreeMFOptions) error {
	return formats.SaveThreeMF(path, m, opts)
}

func (ThreeMF) ExportParts(path string, parts []formats.Part, opts formats.ThreeMFOptions) error {
	return formats.SaveThreeMFParts(path, parts, opts)
}
