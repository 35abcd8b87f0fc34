package draw

import (
	"encoding/xml"
	"io"
	"strconv"

	"github.com/pkg/errors"
)

/*
	Master libraries are written as XML, one <master> per cell, with the
	primitives of each master in emission order.
*/

type XMLLibrary struct {
	XMLName     xml.Name     `xml:"library"`
	Description string       `xml:"description,omitempty"`
	Masters     []*XMLMaster `xml:"master"`
}

type XMLMaster struct {
	Name   string     `xml:"name,attr"`
	Width  string     `xml:"width,attr"`
	Height string     `xml:"height,attr"`
	Items  []*XMLItem `xml:",any"`
}

type XMLItem struct {
	XMLName xml.Name
	Layer   string `xml:"layer,attr,omitempty"`
	Net     string `xml:"net,attr,omitempty"`
	Role    string `xml:"role,attr,omitempty"`
	X1      string `xml:"x1,attr,omitempty"`
	Y1      string `xml:"y1,attr,omitempty"`
	X2      string `xml:"x2,attr,omitempty"`
	Y2      string `xml:"y2,attr,omitempty"`
	Width   string `xml:"width,attr,omitempty"`
	X       string `xml:"x,attr,omitempty"`
	Y       string `xml:"y,attr,omitempty"`
	Rows    string `xml:"rows,attr,omitempty"`
	Cols    string `xml:"cols,attr,omitempty"`
	Master  string `xml:"master,attr,omitempty"`
	PitchX  string `xml:"pitchx,attr,omitempty"`
	PitchY  string `xml:"pitchy,attr,omitempty"`
	Text    string `xml:",chardata"`
}

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// NewXMLMaster converts an ordered primitive list into a library master.
func NewXMLMaster(name string, width, height float64, prims []Primitive) *XMLMaster {
	m := &XMLMaster{Name: name, Width: ftoa(width), Height: ftoa(height)}
	for _, p := range prims {
		item := &XMLItem{XMLName: xml.Name{Local: string(p.Kind)}, Layer: p.Layer, Net: p.Net, Role: string(p.Role)}
		switch p.Kind {
		case KindRect:
			item.X1, item.Y1, item.X2, item.Y2 = ftoa(p.Box.X0), ftoa(p.Box.Y0), ftoa(p.Box.X1), ftoa(p.Box.Y1)
		case KindPath:
			first, last := p.Points[0], p.Points[len(p.Points)-1]
			item.X1, item.Y1, item.X2, item.Y2 = ftoa(first.X), ftoa(first.Y), ftoa(last.X), ftoa(last.Y)
			item.Width = ftoa(p.Width)
		case KindVia:
			item.X, item.Y = ftoa(p.Center.X), ftoa(p.Center.Y)
			item.Rows, item.Cols = strconv.Itoa(p.Rows), strconv.Itoa(p.Cols)
		case KindLabel:
			item.X, item.Y = ftoa(p.Center.X), ftoa(p.Center.Y)
			item.Text = p.Text
		case KindInstance:
			item.X, item.Y = ftoa(p.Center.X), ftoa(p.Center.Y)
			item.Rows, item.Cols = strconv.Itoa(p.Rows), strconv.Itoa(p.Cols)
			item.Master = p.Master
			item.PitchX, item.PitchY = ftoa(p.PitchX), ftoa(p.PitchY)
		}
		m.Items = append(m.Items, item)
	}
	return m
}

// EncodeXML writes the library with indentation.
func EncodeXML(w io.Writer, library *XMLLibrary) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(library); err != nil {
		return errors.Wrap(err, "encode library")
	}
	return nil
}

// DecodeXML reads a library written by EncodeXML.
func DecodeXML(r io.Reader) (*XMLLibrary, error) {
	library := &XMLLibrary{}
	if err := xml.NewDecoder(r).Decode(library); err != nil {
		return nil, errors.Wrap(err, "decode library")
	}
	return library, nil
}
