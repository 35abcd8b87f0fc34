package verify

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/xoviat/capsynth/lib"
	"github.com/xoviat/capsynth/lib/draw"
	"github.com/xoviat/capsynth/lib/geom"
)

// Eps0 is the vacuum permittivity in fF/µm.
const Eps0 = 8.854e-3

const tolerance = 1e-6

// Analytic checks layouts in-process. Spacing is measured between shapes
// that do not touch, whatever their nets; touching shapes form one
// polygon. Extraction adds parallel-plate terms for facing sidewalls on a
// layer and overlapping areas on adjacent layers.
type Analytic struct {
	Rules geom.Rules
}

func NewAnalytic(r geom.Rules) *Analytic {
	return &Analytic{Rules: r}
}

func (a *Analytic) Name() string {
	return "analytic"
}

type shape struct {
	index int
	p     draw.Primitive
}

// byLayer groups the metal of flat by layer, keeping primitive indices.
func byLayer(flat []draw.Primitive) map[string][]shape {
	out := map[string][]shape{}
	for i, p := range flat {
		if p.Metal() {
			out[p.Layer] = append(out[p.Layer], shape{i, p})
		}
	}
	return out
}

func sortedLayers(layers map[string][]shape, stack []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, l := range stack {
		if _, ok := layers[l]; ok {
			out = append(out, l)
			seen[l] = true
		}
	}
	var rest []string
	for l := range layers {
		if !seen[l] {
			rest = append(rest, l)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

func (a *Analytic) CheckRules(ctx context.Context, l Layout) (string, error) {
	r := a.Rules
	flat := l.Flat()
	metal := byLayer(flat)

	var violations []Violation
	add := func(rule string, s shape, box geom.Rect, value, limit float64) {
		violations = append(violations, Violation{
			Rule:  rule,
			Layer: s.p.Layer,
			Index: s.index,
			Role:  s.p.Role,
			Box:   box,
			Value: lib.Round(value, lib.Precision),
			Limit: limit,
		})
	}

	for _, layer := range sortedLayers(metal, l.Layers) {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		shapes := metal[layer]
		for _, s := range shapes {
			width := s.p.Box.MinSide()
			if s.p.Kind == draw.KindPath {
				width = s.p.Width
			}
			if width < r.MinWidth-tolerance {
				add(RuleMinWidth, s, s.p.Box, width, r.MinWidth)
			}
			if area := s.p.Box.Area(); area < r.MinArea-tolerance {
				add(RuleMinArea, s, s.p.Box, area, r.MinArea)
			}
		}

		/*
			Sweep along x: only shapes whose x ranges come within
			min spacing of each other can violate it.
		*/
		sorted := append([]shape(nil), shapes...)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].p.Box.X0 < sorted[j].p.Box.X0 })
		for i, s := range sorted {
			for _, t := range sorted[i+1:] {
				if t.p.Box.X0 >= s.p.Box.X1+r.MinSpacing {
					break
				}
				// placed copies may miss each other by rounding noise
				d := s.p.Box.Distance(t.p.Box)
				if d <= tolerance {
					continue
				}
				if d < r.MinSpacing-tolerance {
					add(RuleMinSpacing, s, gapBox(s.p.Box, t.p.Box), d, r.MinSpacing)
				}
			}
		}
	}

	/*
		Every cut block needs enclosure on both of its metals. Snapping
		the block centre to the grid may move it by half a grid step.
	*/
	slack := r.Grid/2 + tolerance
	for i, p := range flat {
		if p.Kind != draw.KindVia {
			continue
		}
		v := geom.ViaArray{Center: p.Center, Rows: p.Rows, Cols: p.Cols}
		ext := v.Extent(r)
		need := geom.R(ext.X0-r.ViaEnclosure, ext.Y0-r.ViaEnclosure, ext.X1+r.ViaEnclosure, ext.Y1+r.ViaEnclosure)
		for _, layer := range []string{p.Lower, p.Upper} {
			if !enclosed(metal[layer], need, slack) {
				s := shape{i, p}
				s.p.Layer = layer
				add(RuleViaEnclosure, s, need, 0, r.ViaEnclosure)
			}
		}
	}

	sort.SliceStable(violations, func(i, j int) bool {
		if violations[i].Index != violations[j].Index {
			return violations[i].Index < violations[j].Index
		}
		return violations[i].Rule < violations[j].Rule
	})

	var sb strings.Builder
	fmt.Fprintf(&sb, "# analytic rule check %s\n", l.Name)
	fmt.Fprintf(&sb, "# %d primitives checked\n", len(flat))
	for _, v := range violations {
		sb.WriteString(v.String())
		sb.WriteByte('\n')
	}
	if len(violations) == 0 {
		sb.WriteString("RESULT PASS 0\n")
	} else {
		fmt.Fprintf(&sb, "RESULT FAIL %d\n", len(violations))
	}
	return sb.String(), nil
}

func enclosed(shapes []shape, need geom.Rect, slack float64) bool {
	for _, s := range shapes {
		if s.p.Box.Contains(need, slack) {
			return true
		}
	}
	return false
}

// gapBox is the box spanning the space between two disjoint boxes.
func gapBox(a, b geom.Rect) geom.Rect {
	x0, x1 := math.Min(a.X1, b.X1), math.Max(a.X0, b.X0)
	y0, y1 := math.Min(a.Y1, b.Y1), math.Max(a.Y0, b.Y0)
	return geom.R(x0, y0, x1, y1)
}

// facing returns the sidewall overlap and gap of two boxes separated along
// exactly one axis, together with the box between them.
func facing(a, b geom.Rect) (overlap, gap float64, between geom.Rect, ok bool) {
	ox := math.Min(a.X1, b.X1) - math.Max(a.X0, b.X0)
	oy := math.Min(a.Y1, b.Y1) - math.Max(a.Y0, b.Y0)
	switch {
	case oy > tolerance && ox < -tolerance:
		y0, y1 := math.Max(a.Y0, b.Y0), math.Min(a.Y1, b.Y1)
		x0, x1 := math.Min(a.X1, b.X1), math.Max(a.X0, b.X0)
		return oy, -ox, geom.R(x0, y0, x1, y1), true
	case ox > tolerance && oy < -tolerance:
		x0, x1 := math.Max(a.X0, b.X0), math.Min(a.X1, b.X1)
		y0, y1 := math.Min(a.Y1, b.Y1), math.Max(a.Y0, b.Y0)
		return ox, -oy, geom.R(x0, y0, x1, y1), true
	}
	return 0, 0, geom.Rect{}, false
}

func intersection(a, b geom.Rect) float64 {
	w := math.Min(a.X1, b.X1) - math.Max(a.X0, b.X0)
	h := math.Min(a.Y1, b.Y1) - math.Max(a.Y0, b.Y0)
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

func (a *Analytic) ExtractParasitics(ctx context.Context, l Layout) (string, error) {
	r := a.Rules
	eps := Eps0 * r.Permittivity
	metal := byLayer(l.Flat())
	layers := sortedLayers(metal, l.Layers)
	totals := map[[2]string]float64{}

	for k, layer := range layers {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		shapes := metal[layer]

		/*
			Lateral: facing sidewalls of different nets with nothing
			else on the layer in between.
		*/
		for i, s := range shapes {
			for _, t := range shapes[i+1:] {
				if s.p.Net == "" || t.p.Net == "" || s.p.Net == t.p.Net {
					continue
				}
				overlap, gap, between, ok := facing(s.p.Box, t.p.Box)
				if !ok || blocked(shapes, between, s.index, t.index) {
					continue
				}
				totals[sortedPair(s.p.Net, t.p.Net)] += eps * r.Thickness * overlap / gap
			}
		}

		/*
			Vertical: overlapping areas on the layer directly above.
		*/
		if k+1 >= len(layers) || r.Dielectric <= 0 {
			continue
		}
		above := layers[k+1]
		if si, ai := r.LayerIndex(layer), r.LayerIndex(above); si >= 0 && ai != si+1 {
			continue
		}
		for _, s := range shapes {
			for _, t := range metal[above] {
				if s.p.Net == "" || t.p.Net == "" || s.p.Net == t.p.Net {
					continue
				}
				if area := intersection(s.p.Box, t.p.Box); area > 0 {
					totals[sortedPair(s.p.Net, t.p.Net)] += eps * area / r.Dielectric
				}
			}
		}
	}

	keys := make([][2]string, 0, len(totals))
	for key := range totals {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i][0] != keys[j][0] {
			return keys[i][0] < keys[j][0]
		}
		return keys[i][1] < keys[j][1]
	})

	var sb strings.Builder
	fmt.Fprintf(&sb, "# analytic extraction %s\n", l.Name)
	for _, key := range keys {
		c := Capacitance{A: key[0], B: key[1], Value: lib.Round(totals[key], lib.Precision)}
		sb.WriteString(c.String())
		sb.WriteByte('\n')
	}
	sb.WriteString("RESULT OK\n")
	return sb.String(), nil
}

// blocked reports whether any shape other than the pair intrudes into the
// space between them.
func blocked(shapes []shape, between geom.Rect, a, b int) bool {
	for _, c := range shapes {
		if c.index == a || c.index == b {
			continue
		}
		if c.p.Box.Overlaps(between) {
			return true
		}
	}
	return false
}
