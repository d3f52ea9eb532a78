package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hschendel/stl"

	"github.com/Faultbox/qr3d/pkg/math"
	"github.com/Faultbox/qr3d/pkg/mesh"
)

// Binary STL layout.
const (
	stlHeaderSize   = 80
	stlCountSize    = 4
	stlTriangleSize = 50
)

// ErrTruncatedSTL is returned when a binary STL is shorter than its
// triangle count requires.
var ErrTruncatedSTL = errors.New("truncated STL data")

// stlHeader returns an 80-byte header. Binary headers must not start with
// "solid" or readers mistake the file for ASCII.
func stlHeader(name string) []byte {
	header := make([]byte, stlHeaderSize)
	copy(header, "qr3d binary STL "+name)
	return header
}

// ToSolid flattens m into an STL solid. Normals are recomputed from winding.
func ToSolid(m *mesh.Mesh, name string) *stl.Solid {
	solid := &stl.Solid{
		Name:         name,
		BinaryHeader: stlHeader(name),
		Triangles:    make([]stl.Triangle, len(m.Triangles)),
	}
	for i, t := range m.Triangles {
		solid.Triangles[i] = stl.Triangle{
			Normal: stl.Vec3(m.FaceNormal(i).Array()),
			Vertices: [3]stl.Vec3{
				stl.Vec3(m.Vertices[t.V[0]].Array()),
				stl.Vec3(m.Vertices[t.V[1]].Array()),
				stl.Vec3(m.Vertices[t.V[2]].Array()),
			},
		}
	}
	return solid
}

// WriteSTL writes m as binary STL.
func WriteSTL(w io.Writer, m *mesh.Mesh, name string) error {
	if err := ToSolid(m, name).WriteAll(w); err != nil {
		return fmt.Errorf("writing STL: %w", err)
	}
	return nil
}

// SaveSTL writes m as a binary STL file.
func SaveSTL(path string, m *mesh.Mesh, name string) error {
	return writeFileAtomic(path, func(w io.Writer) error {
		return WriteSTL(w, m, name)
	})
}

// FromSolid converts an STL solid into an indexed mesh, welding vertices
// with identical coordinates. Solids that only touch along an edge or at a
// corner are unzipped again after welding, so a saddle between two diagonal
// modules reads back as two sheets. All triangles are tagged Base.
func FromSolid(solid *stl.Solid) *mesh.Mesh {
	m := mesh.New()
	m.Reserve(len(solid.Triangles)/2+3, len(solid.Triangles))
	index := make(map[stl.Vec3]int, len(solid.Triangles)/2)
	for _, t := range solid.Triangles {
		var v [3]int
		for k, p := range t.Vertices {
			idx, ok := index[p]
			if !ok {
				idx = m.AddVertex(math.FromArray(p))
				index[p] = idx
			}
			v[k] = idx
		}
		m.AddTriangle(v[0], v[1], v[2], mesh.Base)
	}
	mesh.SplitNonManifold(m)
	return m
}

// ReadSTL parses a binary or ASCII STL stream.
func ReadSTL(r io.Reader) (*mesh.Mesh, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading STL: %w", err)
	}
	if err := checkBinarySTLSize(data); err != nil {
		return nil, err
	}

	solid, err := stl.ReadAll(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing STL: %w", err)
	}
	return FromSolid(solid), nil
}

// LoadSTL reads an STL file.
func LoadSTL(path string) (*mesh.Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening STL: %w", err)
	}
	defer f.Close()
	return ReadSTL(f)
}

// checkBinarySTLSize validates the length of binary data. ASCII files pass.
func checkBinarySTLSize(data []byte) error {
	if bytes.HasPrefix(bytes.TrimLeft(data, " \t\r\n"), []byte("solid")) &&
		bytes.Contains(data, []byte("facet")) {
		return nil
	}
	if len(data) < stlHeaderSize+stlCountSize {
		return fmt.Errorf("%w: %d bytes", ErrTruncatedSTL, len(data))
	}
	count := binary.LittleEndian.Uint32(data[stlHeaderSize:])
	need := stlHeaderSize + stlCountSize + int64(count)*stlTriangleSize
	if int64(len(data)) < need {
		return fmt.Errorf("%w: %d triangles need %d bytes, got %d", ErrTruncatedSTL, count, need, len(data))
	}
	return nil
}

// BinarySTLSize returns the byte size of a binary STL with n triangles.
func BinarySTLSize(n int) int64 {
	return stlHeaderSize + stlCountSize + int64(n)*stlTriangleSize
}

// writeFileAtomic writes through a temporary file in the target directory
// and renames it into place, so a failed write leaves no partial file.
func writeFileAtomic(path string, write func(w io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming output: %w", err)
	}
	return nil
}
