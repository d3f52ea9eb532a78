// Package formats reads and writes printable mesh files: binary STL for
// single-material printing and 3MF packages for multi-color printing.
package formats

import "strings"

// Format identifies a mesh file format.
type Format string

const (
	FormatSTL     Format = "stl"
	FormatThreeMF Format = "3mf"
)

// DetectFormat returns the format for a file name by extension.
func DetectFormat(path string) (Format, bool) {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".stl"):
		return FormatSTL, true
	case strings.HasSuffix(lower, ".3mf"):
		return FormatThreeMF, true
	}
	return "", false
}
