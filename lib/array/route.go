package array

import (
	"math"

	"github.com/pkg/errors"

	"github.com/xoviat/capsynth/lib"
	"github.com/xoviat/capsynth/lib/draw"
	"github.com/xoviat/capsynth/lib/geom"
)

// Segment is one route between the terminals of two neighbouring members.
type Segment struct {
	Group string
	A, B  Pos
	From  geom.Point
	To    geom.Point
}

// Router draws the routing of functional groups on one layer above the
// cells.
type Router struct {
	Grid     Grid
	Rules    geom.Rules
	Layer    string
	Width    float64
	Terminal geom.Point
	// Stack runs from the cell's top layer up to Layer.
	Stack []string
}

// NewRouter resolves the routing layer: layer, or the one above the cell
// when empty. terminal is the cell pin every member is wired at.
func NewRouter(grid Grid, r geom.Rules, unit *geom.Geometry, terminal, layer string, width float64) (*Router, error) {
	pin, ok := unit.Pin(terminal)
	if !ok {
		return nil, errors.Wrapf(ErrRedesign, "unit cell has no %q pin", terminal)
	}

	top := unit.TopLayer()
	if layer == "" {
		above, ok := r.Above(top)
		if !ok {
			return nil, errors.Wrapf(ErrRedesign, "no routing layer above %s", top)
		}
		layer = above
	}
	lo, hi := r.LayerIndex(top), r.LayerIndex(layer)
	if lo < 0 || hi <= lo {
		return nil, errors.Wrapf(ErrRedesign, "routing layer %s is not above %s", layer, top)
	}

	return &Router{
		Grid:     grid,
		Rules:    r,
		Layer:    layer,
		Width:    width,
		Terminal: pin.At,
		Stack:    append([]string(nil), r.Stack[lo:hi+1]...),
	}, nil
}

// TerminalOf is the terminal of the cell at p.
func (rt *Router) TerminalOf(p Pos) geom.Point {
	return rt.Grid.Center(p).Add(rt.Terminal)
}

// Segments connects every member to its right and lower neighbour in the
// same group. Neighbours in other groups or dummy cells are skipped.
func (rt *Router) Segments(s *Spec) []Segment {
	var out []Segment
	for _, g := range s.Groups {
		member := make(map[Pos]bool, len(g.Members))
		for _, m := range g.Members {
			member[m] = true
		}

		for _, m := range g.Members {
			for _, n := range []Pos{{m.Row, m.Col + 1}, {m.Row + 1, m.Col}} {
				if !member[n] || !s.InBounds(n) || s.ClassOf(n) == Dummy {
					continue
				}
				out = append(out, Segment{
					Group: g.Name,
					A:     m,
					B:     n,
					From:  rt.TerminalOf(m),
					To:    rt.TerminalOf(n),
				})
			}
		}
	}
	return out
}

// padSide is the landing pad edge: one cut with enclosure, no narrower
// than the route and no smaller than the minimum area.
func (rt *Router) padSide() float64 {
	r := rt.Rules
	side := math.Max(r.ViaSize+2*r.ViaEnclosure, rt.Width)
	side = math.Max(side, math.Sqrt(r.MinArea))
	return lib.SnapUp(side, r.Grid)
}

// Landing draws the pads and the via stack at one member terminal.
func (rt *Router) Landing(group string, p Pos) []draw.Primitive {
	r := rt.Rules
	t := rt.TerminalOf(p)
	pitch, margin := r.ViaPitch(), r.ViaMargin()
	center := geom.Point{
		X: geom.GridAnchor(t.X-margin, 1, pitch, margin),
		Y: geom.GridAnchor(t.Y-margin, 1, pitch, margin),
	}

	h := rt.padSide() / 2
	pad := geom.R(center.X-h, center.Y-h, center.X+h, center.Y+h)

	var out []draw.Primitive
	for k := 1; k < len(rt.Stack); k++ {
		lower, upper := rt.Stack[k-1], rt.Stack[k]
		out = append(out,
			draw.Rectangle(upper, pad, group, geom.RolePad),
			draw.Via(geom.ViaArray{
				Pair:   r.ViaName(lower, upper),
				Lower:  lower,
				Upper:  upper,
				Net:    group,
				Center: center,
				Rows:   1,
				Cols:   1,
			}),
		)
	}
	return out
}

// Path draws one segment.
func (rt *Router) Path(seg Segment) draw.Primitive {
	return draw.Path(rt.Layer, []geom.Point{seg.From, seg.To}, rt.Width, seg.Group, geom.RoleRoute)
}

// Labels places one label per named group at its first member.
func (rt *Router) Labels(s *Spec) []draw.Primitive {
	var out []draw.Primitive
	for _, g := range s.Groups {
		if g.Pin == "" {
			continue
		}
		out = append(out, draw.Label(rt.Layer, rt.TerminalOf(g.Members[0]), g.Pin))
	}
	return out
}

// checkIsolation fails when any routing primitive lands on a dummy cell.
func checkIsolation(s *Spec, grid Grid, prims []draw.Primitive) error {
	for _, p := range prims {
		var points []geom.Point
		switch p.Kind {
		case draw.KindPath:
			points = p.Points
		case draw.KindRect:
			points = []geom.Point{p.Box.Center()}
		case draw.KindVia, draw.KindLabel:
			points = []geom.Point{p.Center}
		default:
			continue
		}

		for _, pt := range points {
			pos, ok := grid.At(pt)
			if !ok {
				return errors.Wrapf(ErrIsolation, "%s %s at %v lies outside the grid", p.Kind, p.Net, pt)
			}
			if s.ClassOf(pos) == Dummy {
				return errors.Wrapf(ErrIsolation, "%s %s touches dummy cell %s", p.Kind, p.Net, pos)
			}
		}
	}
	return nil
}
