package formats

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"image/color"
	"io"

	"github.com/google/uuid"

	"github.com/Faultbox/qr3d/pkg/mesh"
	"github.com/Faultbox/qr3d/pkg/opc"
)

// 3MF namespaces and part names.
const (
	nsCore       = "http://schemas.microsoft.com/3dmanufacturing/core/2015/02"
	nsMaterial   = "http://schemas.microsoft.com/3dmanufacturing/material/2015/02"
	nsProduction = "http://schemas.microsoft.com/3dmanufacturing/production/2015/06"

	partContentTypes = "/[Content_Types].xml"
	partRels         = "/_rels/.rels"
	partModel        = "/3D/3dmodel.model"
)

const contentTypesXML = xml.Header + `<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
 <Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
 <Default Extension="model" ContentType="application/vnd.ms-package.3dmanufacturing-3dmodel+xml"/>
</Types>
`

const relsXML = xml.Header + `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
 <Relationship Target="/3D/3dmodel.model" Id="rel0" Type="http://schemas.microsoft.com/3dmanufacturing/2013/01/3dmodel"/>
</Relationships>
`

// Object names used by the writers.
const (
	SingleObjectName  = "QR Code"
	BaseObjectName    = "Base"
	FeatureObjectName = "QR Modules"
)

// ErrInvalidThreeMF is returned for packages that are not readable 3MF files.
var ErrInvalidThreeMF = errors.New("invalid 3MF package")

// Material is a named display color. The name is the color as the user
// spelled it.
type Material struct {
	Name  string
	Color color.Color
}

// HexColor formats c as #RRGGBB.
func HexColor(c color.Color) string {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return fmt.Sprintf("#%02X%02X%02X", n.R, n.G, n.B)
}

// ThreeMFOptions configures the 3MF writers.
type ThreeMFOptions struct {
	Name    string // model title
	Base    Material
	Feature Material
}

// Part is one object of a multi-object package.
type Part struct {
	Name string
	Mesh *mesh.Mesh
	// Feature selects the feature color instead of the base color.
	Feature bool
}

type xmlModel struct {
	XMLName   xml.Name      `xml:"model"`
	Unit      string        `xml:"unit,attr"`
	Lang      string        `xml:"xml:lang,attr"`
	Xmlns     string        `xml:"xmlns,attr"`
	XmlnsM    string        `xml:"xmlns:m,attr,omitempty"`
	XmlnsP    string        `xml:"xmlns:p,attr"`
	Metadata  []xmlMetadata `xml:"metadata"`
	Resources xmlResources  `xml:"resources"`
	Build     xmlBuild      `xml:"build"`
}

type xmlMetadata struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

type xmlResources struct {
	BaseMaterials []xmlBaseMaterials `xml:"basematerials"`
	ColorGroups   []xmlColorGroup    `xml:"m:colorgroup"`
	Objects       []xmlObject        `xml:"object"`
}

type xmlBaseMaterials struct {
	ID    int       `xml:"id,attr"`
	Bases []xmlBase `xml:"base"`
}

type xmlBase struct {
	Name         string `xml:"name,attr"`
	DisplayColor string `xml:"displaycolor,attr"`
}

type xmlColorGroup struct {
	ID     int        `xml:"id,attr"`
	Colors []xmlColor `xml:"m:color"`
}

type xmlColor struct {
	Color string `xml:"color,attr"`
}

type xmlObject struct {
	ID     int     `xml:"id,attr"`
	Type   string  `xml:"type,attr"`
	Name   string  `xml:"name,attr,omitempty"`
	PID    int     `xml:"pid,attr,omitempty"`
	PIndex *int    `xml:"pindex,attr"`
	UUID   string  `xml:"p:UUID,attr"`
	Mesh   xmlMesh `xml:"mesh"`
}

type xmlMesh struct {
	Vertices  []xmlVertex   `xml:"vertices>vertex"`
	Triangles []xmlTriangle `xml:"triangles>triangle"`
}

type xmlVertex struct {
	X float32 `xml:"x,attr"`
	Y float32 `xml:"y,attr"`
	Z float32 `xml:"z,attr"`
}

type xmlTriangle struct {
	V1  int  `xml:"v1,attr"`
	V2  int  `xml:"v2,attr"`
	V3  int  `xml:"v3,attr"`
	PID int  `xml:"pid,attr,omitempty"`
	P1  *int `xml:"p1,attr"`
}

type xmlBuild struct {
	UUID  string    `xml:"p:UUID,attr"`
	Items []xmlItem `xml:"item"`
}

type xmlItem struct {
	ObjectID int    `xml:"objectid,attr"`
	UUID     string `xml:"p:UUID,attr"`
}

func newModel(name string) *xmlModel {
	m := &xmlModel{
		Unit:   "millimeter",
		Lang:   "en-US",
		Xmlns:  nsCore,
		XmlnsP: nsProduction,
		Build:  xmlBuild{UUID: uuid.NewString()},
	}
	m.Metadata = append(m.Metadata, xmlMetadata{Name: "Application", Value: "qr3d"})
	if name != "" {
		m.Metadata = append(m.Metadata, xmlMetadata{Name: "Title", Value: name})
	}
	return m
}

func toXMLMesh(m *mesh.Mesh) xmlMesh {
	out := xmlMesh{
		Vertices:  make([]xmlVertex, len(m.Vertices)),
		Triangles: make([]xmlTriangle, len(m.Triangles)),
	}
	for i, v := range m.Vertices {
		a := v.Array()
		out.Vertices[i] = xmlVertex{X: a[0], Y: a[1], Z: a[2]}
	}
	for i, t := range m.Triangles {
		out.Triangles[i] = xmlTriangle{V1: t.V[0], V2: t.V[1], V3: t.V[2]}
	}
	return out
}

func (x *xmlModel) addObject(obj xmlObject) {
	x.Resources.Objects = append(x.Resources.Objects, obj)
	x.Build.Items = append(x.Build.Items, xmlItem{ObjectID: obj.ID, UUID: uuid.NewString()})
}

func intPtr(v int) *int { return &v }

// WriteThreeMF writes m as a single object. Each triangle references the
// base or feature material of one basematerials group according to its tag.
func WriteThreeMF(w io.Writer, m *mesh.Mesh, opts ThreeMFOptions) error {
	const materialsID, objectID = 1, 2

	model := newModel(opts.Name)
	model.Resources.BaseMaterials = []xmlBaseMaterials{{
		ID: materialsID,
		Bases: []xmlBase{
			{Name: materialName(opts.Base, "base"), DisplayColor: HexColor(opts.Base.Color)},
			{Name: materialName(opts.Feature, "QR"), DisplayColor: HexColor(opts.Feature.Color)},
		},
	}}

	xm := toXMLMesh(m)
	for i := range xm.Triangles {
		p := 0
		if m.TagAt(i).IsFeature() {
			p = 1
		}
		xm.Triangles[i].PID = materialsID
		xm.Triangles[i].P1 = intPtr(p)
	}
	model.addObject(xmlObject{
		ID:     objectID,
		Type:   "model",
		Name:   SingleObjectName,
		PID:    materialsID,
		PIndex: intPtr(0),
		UUID:   uuid.NewString(),
		Mesh:   xm,
	})
	return writePackage(w, model)
}

// WriteThreeMFParts writes each part as its own object and build item,
// colored through one color group.
func WriteThreeMFParts(w io.Writer, parts []Part, opts ThreeMFOptions) error {
	const colorsID = 1

	model := newModel(opts.Name)
	model.XmlnsM = nsMaterial
	model.Resources.ColorGroups = []xmlColorGroup{{
		ID: colorsID,
		Colors: []xmlColor{
			{Color: HexColor(opts.Base.Color)},
			{Color: HexColor(opts.Feature.Color)},
		},
	}}

	for i, part := range parts {
		if part.Mesh == nil || len(part.Mesh.Triangles) == 0 {
			continue
		}
		index := 0
		if part.Feature {
			index = 1
		}
		model.addObject(xmlObject{
			ID:     colorsID + 1 + i,
			Type:   "model",
			Name:   part.Name,
			PID:    colorsID,
			PIndex: intPtr(index),
			UUID:   uuid.NewString(),
			Mesh:   toXMLMesh(part.Mesh),
		})
	}
	if len(model.Build.Items) == 0 {
		return fmt.Errorf("%w: no objects to write", ErrInvalidThreeMF)
	}
	return writePackage(w, model)
}

func materialName(m Material, role string) string {
	if m.Name != "" {
		return m.Name + " " + role
	}
	return role
}

func writePackage(w io.Writer, model *xmlModel) error {
	var body bytes.Buffer
	body.WriteString(xml.Header)
	enc := xml.NewEncoder(&body)
	enc.Indent("", " ")
	if err := enc.Encode(model); err != nil {
		return fmt.Errorf("encoding model: %w", err)
	}

	pw := opc.NewWriter(w)
	if err := pw.AddPart(partContentTypes, []byte(contentTypesXML)); err != nil {
		return err
	}
	if err := pw.AddPart(partRels, []byte(relsXML)); err != nil {
		return err
	}
	if err := pw.AddPart(partModel, body.Bytes()); err != nil {
		return err
	}
	return pw.Close()
}

// SaveThreeMF writes a single-object 3MF file.
func SaveThreeMF(path string, m *mesh.Mesh, opts ThreeMFOptions) error {
	return writeFileAtomic(path, func(w io.Writer) error {
		return WriteThreeMF(w, m, opts)
	})
}

// SaveThreeMFParts writes a multi-object 3MF file.
func SaveThreeMFParts(path string, parts []Part, opts ThreeMFOptions) error {
	return writeFileAtomic(path, func(w io.Writer) error {
		return WriteThreeMFParts(w, parts, opts)
	})
}
