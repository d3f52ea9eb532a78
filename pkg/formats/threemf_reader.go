package formats

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"image/color"
	"io"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/Faultbox/qr3d/pkg/math"
	"github.com/Faultbox/qr3d/pkg/mesh"
	"github.com/Faultbox/qr3d/pkg/opc"
)

// ThreeMFObject is one mesh object read from a package. Triangles whose
// property index is 1 are tagged Feature, all others Base.
type ThreeMFObject struct {
	ID   int
	Name string
	UUID string
	Mesh *mesh.Mesh
}

// ThreeMF is the content of a 3MF package.
type ThreeMF struct {
	Unit      string
	Parts     []string
	Materials []Material
	Objects   []ThreeMFObject
	// Items lists the object ids placed on the build plate.
	Items []int
}

// Mesh returns all built objects appended into one mesh.
func (t *ThreeMF) Mesh() *mesh.Mesh {
	out := mesh.New()
	for _, id := range t.Items {
		for _, obj := range t.Objects {
			if obj.ID == id {
				out.Append(obj.Mesh)
			}
		}
	}
	return out
}

// Reading uses local names so any namespace prefix is accepted.
type readModel struct {
	Unit      string `xml:"unit,attr"`
	Resources struct {
		BaseMaterials []struct {
			ID    int `xml:"id,attr"`
			Bases []struct {
				Name         string `xml:"name,attr"`
				DisplayColor string `xml:"displaycolor,attr"`
			} `xml:"base"`
		} `xml:"basematerials"`
		ColorGroups []struct {
			ID     int `xml:"id,attr"`
			Colors []struct {
				Color string `xml:"color,attr"`
			} `xml:"color"`
		} `xml:"colorgroup"`
		Objects []struct {
			ID     int    `xml:"id,attr"`
			Name   string `xml:"name,attr"`
			PIndex *int   `xml:"pindex,attr"`
			UUID   string `xml:"UUID,attr"`
			Mesh   struct {
				Vertices []struct {
					X float64 `xml:"x,attr"`
					Y float64 `xml:"y,attr"`
					Z float64 `xml:"z,attr"`
				} `xml:"vertices>vertex"`
				Triangles []struct {
					V1 int  `xml:"v1,attr"`
					V2 int  `xml:"v2,attr"`
					V3 int  `xml:"v3,attr"`
					P1 *int `xml:"p1,attr"`
				} `xml:"triangles>triangle"`
			} `xml:"mesh"`
		} `xml:"object"`
	} `xml:"resources"`
	Build struct {
		Items []struct {
			ObjectID int `xml:"objectid,attr"`
		} `xml:"item"`
	} `xml:"build"`
}

// ReadThreeMF opens a 3MF file.
func ReadThreeMF(path string) (*ThreeMF, error) {
	archive, err := opc.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidThreeMF, err)
	}
	defer archive.Close()
	return readThreeMF(archive)
}

// ParseThreeMF reads a 3MF package from memory.
func ParseThreeMF(data []byte) (*ThreeMF, error) {
	archive, err := opc.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidThreeMF, err)
	}
	return readThreeMF(archive)
}

func readThreeMF(archive *opc.Archive) (*ThreeMF, error) {
	for _, part := range []string{partContentTypes, partRels, partModel} {
		if !archive.Contains(part) {
			return nil, fmt.Errorf("%w: missing %s", ErrInvalidThreeMF, part)
		}
	}
	data, err := archive.Read(partModel)
	if err != nil {
		return nil, err
	}

	var rm readModel
	if err := xml.Unmarshal(data, &rm); err != nil && err != io.EOF {
		return nil, fmt.Errorf("%w: %v", ErrInvalidThreeMF, err)
	}

	out := &ThreeMF{Unit: rm.Unit, Parts: archive.List()}
	for _, group := range rm.Resources.BaseMaterials {
		for _, b := range group.Bases {
			c, _ := parseHexColor(b.DisplayColor)
			out.Materials = append(out.Materials, Material{Name: b.Name, Color: c})
		}
	}
	for _, group := range rm.Resources.ColorGroups {
		for _, col := range group.Colors {
			c, _ := parseHexColor(col.Color)
			out.Materials = append(out.Materials, Material{Color: c})
		}
	}

	for _, obj := range rm.Resources.Objects {
		m := mesh.New()
		m.Reserve(len(obj.Mesh.Vertices), len(obj.Mesh.Triangles))
		for _, v := range obj.Mesh.Vertices {
			m.AddVertex(math.Vec3{X: v.X, Y: v.Y, Z: v.Z})
		}
		for _, t := range obj.Mesh.Triangles {
			for _, idx := range []int{t.V1, t.V2, t.V3} {
				if idx < 0 || idx >= len(m.Vertices) {
					return nil, fmt.Errorf("%w: object %d references vertex %d of %d",
						ErrInvalidThreeMF, obj.ID, idx, len(m.Vertices))
				}
			}
			p := obj.PIndex
			if t.P1 != nil {
				p = t.P1
			}
			tag := mesh.Base
			if p != nil && *p == 1 {
				tag = mesh.Feature
			}
			m.AddTriangle(t.V1, t.V2, t.V3, tag)
		}
		out.Objects = append(out.Objects, ThreeMFObject{ID: obj.ID, Name: obj.Name, UUID: obj.UUID, Mesh: m})
	}
	for _, item := range rm.Build.Items {
		out.Items = append(out.Items, item.ObjectID)
	}
	return out, nil
}

// parseHexColor reads a #RRGGBB display color.
func parseHexColor(s string) (color.NRGBA, error) {
	if len(s) == 9 {
		s = s[:7] // drop alpha
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return color.NRGBA{}, err
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 0xff}, nil
}
