// Package draw serializes resolved geometry into a flat, ordered list of
// drawing primitives. The list holds literal coordinates only, so two
// rounds can be compared byte for byte.
package draw

import (
	"github.com/xoviat/capsynth/lib"
	"github.com/xoviat/capsynth/lib/geom"
)

type Kind string

const (
	KindInstance Kind = "instance"
	KindRect     Kind = "rect"
	KindPath     Kind = "path"
	KindVia      Kind = "via"
	KindLabel    Kind = "label"
)

// Primitive is one drawing primitive. Which fields are meaningful depends
// on Kind:
//
//	rect:     Layer, Box
//	path:     Layer, Points, Width (Box is the covered area)
//	via:      Layer (cut layer), Lower, Upper, Center, Rows, Cols
//	label:    Layer, Center, Text
//	instance: Master, Center (origin cell centre), Rows, Cols, PitchX, PitchY
type Primitive struct {
	Kind   Kind         `json:"kind"`
	Layer  string       `json:"layer,omitempty"`
	Net    string       `json:"net,omitempty"`
	Role   geom.Role    `json:"role,omitempty"`
	Box    geom.Rect    `json:"box"`
	Points []geom.Point `json:"points,omitempty"`
	Width  float64      `json:"width,omitempty"`
	Lower  string       `json:"lower,omitempty"`
	Upper  string       `json:"upper,omitempty"`
	Center geom.Point   `json:"center"`
	Rows   int          `json:"rows,omitempty"`
	Cols   int          `json:"cols,omitempty"`
	Text   string       `json:"text,omitempty"`
	Master string       `json:"master,omitempty"`
	PitchX float64      `json:"pitch_x,omitempty"`
	PitchY float64      `json:"pitch_y,omitempty"`
}

func Rectangle(layer string, box geom.Rect, net string, role geom.Role) Primitive {
	return Primitive{Kind: KindRect, Layer: layer, Box: box, Net: net, Role: role}
}

func Path(layer string, points []geom.Point, width float64, net string, role geom.Role) Primitive {
	p := Primitive{
		Kind:   KindPath,
		Layer:  layer,
		Points: append([]geom.Point(nil), points...),
		Width:  width,
		Net:    net,
		Role:   role,
	}
	p.Box = PathBox(points, width)
	return p
}

func Via(v geom.ViaArray) Primitive {
	return Primitive{
		Kind:   KindVia,
		Layer:  v.Pair,
		Lower:  v.Lower,
		Upper:  v.Upper,
		Net:    v.Net,
		Center: v.Center,
		Rows:   v.Rows,
		Cols:   v.Cols,
	}
}

func Label(layer string, at geom.Point, text string) Primitive {
	return Primitive{Kind: KindLabel, Layer: layer, Center: at, Text: text, Net: text}
}

// Instance places rows×cols copies of master; origin is the centre of the
// bottom-left copy.
func Instance(master string, origin geom.Point, rows, cols int, pitchX, pitchY float64) Primitive {
	return Primitive{
		Kind:   KindInstance,
		Master: master,
		Center: origin,
		Rows:   rows,
		Cols:   cols,
		PitchX: pitchX,
		PitchY: pitchY,
	}
}

// PathBox is the area covered by a manhattan path of the given width,
// including the half-width extension at both ends.
func PathBox(points []geom.Point, width float64) geom.Rect {
	if len(points) == 0 {
		return geom.Rect{}
	}
	box := geom.Rect{X0: points[0].X, Y0: points[0].Y, X1: points[0].X, Y1: points[0].Y}
	for _, p := range points[1:] {
		box = geom.R(min(box.X0, p.X), min(box.Y0, p.Y), max(box.X1, p.X), max(box.Y1, p.Y))
	}
	h := width / 2
	if box.W() == 0 || box.H() == 0 {
		// straight segment: extend across the width only, ends are flush
		if box.W() == 0 {
			return geom.R(box.X0-h, box.Y0, box.X1+h, box.Y1)
		}
		return geom.R(box.X0, box.Y0-h, box.X1, box.Y1+h)
	}
	return geom.R(box.X0-h, box.Y0-h, box.X1+h, box.Y1+h)
}

// Metal reports whether the primitive is a metal shape.
func (p Primitive) Metal() bool {
	return p.Kind == KindRect || p.Kind == KindPath
}

// rounded returns p with every coordinate rounded to the emission
// precision.
func (p Primitive) rounded() Primitive {
	r := func(v float64) float64 { return lib.Round(v, lib.Precision) }
	p.Box = geom.Rect{X0: r(p.Box.X0), Y0: r(p.Box.Y0), X1: r(p.Box.X1), Y1: r(p.Box.Y1)}
	p.Center = geom.Point{X: r(p.Center.X), Y: r(p.Center.Y)}
	if p.Points != nil {
		pts := make([]geom.Point, len(p.Points))
		for i, pt := range p.Points {
			pts[i] = geom.Point{X: r(pt.X), Y: r(pt.Y)}
		}
		p.Points = pts
	}
	p.Width = r(p.Width)
	p.PitchX = r(p.PitchX)
	p.PitchY = r(p.PitchY)
	return p
}

// Rounded returns p with its coordinates at emission precision, as Order
// leaves them.
func (p Primitive) Rounded() Primitive {
	return p.rounded()
}
