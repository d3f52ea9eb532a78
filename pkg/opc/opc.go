// Package opc reads and writes Open Packaging Conventions archives, the zip
// container used by 3MF.
package opc

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// ErrPartNotFound is returned when a part is missing from the archive.
var ErrPartNotFound = errors.New("part not found")

// Archive represents an opened package.
type Archive struct {
	file     *os.File
	reader   *zip.Reader
	fileList map[string]*zip.File
}

// Open opens a package for reading.
func Open(path string) (*Archive, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat file: %w", err)
	}

	archive, err := NewReader(file, info.Size())
	if err != nil {
		file.Close()
		return nil, err
	}
	archive.file = file
	return archive, nil
}

// NewReader reads a package from r.
func NewReader(r io.ReaderAt, size int64) (*Archive, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("reading zip directory: %w", err)
	}

	archive := &Archive{
		reader:   zr,
		fileList: make(map[string]*zip.File, len(zr.File)),
	}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		archive.fileList[normalizePath(f.Name)] = f
	}
	return archive, nil
}

// Close closes the archive.
func (a *Archive) Close() error {
	if a.file != nil {
		return a.file.Close()
	}
	return nil
}

// List returns all part names in the archive, sorted.
func (a *Archive) List() []string {
	result := make([]string, 0, len(a.fileList))
	for _, f := range a.fileList {
		result = append(result, "/"+strings.TrimPrefix(f.Name, "/"))
	}
	sort.Strings(result)
	return result
}

// Contains checks if a part exists. Part names are case-insensitive.
func (a *Archive) Contains(name string) bool {
	_, ok := a.fileList[normalizePath(name)]
	return ok
}

// Read returns the content of a part.
func (a *Archive) Read(name string) ([]byte, error) {
	f, ok := a.fileList[normalizePath(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPartNotFound, name)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return data, nil
}

// Writer creates a package part by part.
type Writer struct {
	zw *zip.Writer
}

// NewWriter returns a Writer writing to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{zw: zip.NewWriter(w)}
}

// AddPart writes a deflated part.
func (w *Writer) AddPart(name string, data []byte) error {
	part, err := w.zw.CreateHeader(&zip.FileHeader{
		Name:   strings.TrimPrefix(name, "/"),
		Method: zip.Deflate,
	})
	if err != nil {
		return fmt.Errorf("creating part %s: %w", name, err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("writing part %s: %w", name, err)
	}
	return nil
}

// Close finishes the central directory. It does not close the underlying writer.
func (w *Writer) Close() error {
	return w.zw.Close()
}

func normalizePath(path string) string {
	path = strings.ReplaceAll(path, "\\", "/")
	path = strings.TrimPrefix(path, "/")
	return strings.ToLower(path)
}
