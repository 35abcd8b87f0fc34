package geom

import (
	"sort"

	"github.com/pkg/errors"
)

// Geometry is the resolved, read-only form of a unit cell. All extents are
// half extents measured from the cell centre; the cell is symmetric about
// both axes.
type Geometry struct {
	Variant Variant
	Params  ParameterSet
	Rules   Rules
	Shield  bool
	Dummy   bool

	// Layers is the cell's own stack, bottom first.
	Layers []string

	ActiveX float64
	ActiveY float64

	// FrameOuterY is the outer edge of the finger bus bars.
	FrameOuterY float64

	// TabInnerX and TabOuterX bound the via tabs of SandwichMultilayer.
	TabInnerX float64
	TabOuterX float64

	// NotchInnerX is the inner edge of a SandwichNotched notch, NotchHalfY
	// its half height and PadHalfY the half height of the landing pad in it.
	NotchInnerX float64
	NotchHalfY  float64
	PadHalfY    float64

	ShieldInnerX float64
	ShieldInnerY float64

	OuterX float64
	OuterY float64

	// FrameWidthX and FrameWidthY are the widths of the outermost boundary
	// shared by abutting cells in an array.
	FrameWidthX float64
	FrameWidthY float64

	Elements []Element
	Vias     []ViaArray
	Pins     []Pin
	Chains   []Chain
}

// Width is the full cell width.
func (g *Geometry) Width() float64 {
	return 2 * g.OuterX
}

// Height is the full cell height.
func (g *Geometry) Height() float64 {
	return 2 * g.OuterY
}

// Envelope is the outer boundary box.
func (g *Geometry) Envelope() Rect {
	return R(-g.OuterX, -g.OuterY, g.OuterX, g.OuterY)
}

// TopLayer is the highest layer of the cell.
func (g *Geometry) TopLayer() string {
	if len(g.Layers) == 0 {
		return ""
	}
	return g.Layers[len(g.Layers)-1]
}

// Pin returns the pin with the given name.
func (g *Geometry) Pin(name string) (Pin, bool) {
	for _, p := range g.Pins {
		if p.Name == name {
			return p, true
		}
	}
	return Pin{}, false
}

// Derived names every numeric quantity resolution produced.
const (
	DerivedActiveX      = "active_x"
	DerivedActiveY      = "active_y"
	DerivedFrameOuterY  = "frame_outer_y"
	DerivedTabInnerX    = "tab_inner_x"
	DerivedTabOuterX    = "tab_outer_x"
	DerivedNotchInnerX  = "notch_inner_x"
	DerivedNotchHalfY   = "notch_half_y"
	DerivedPadHalfY     = "pad_half_y"
	DerivedShieldInnerX = "shield_inner_x"
	DerivedShieldInnerY = "shield_inner_y"
	DerivedOuterX       = "outer_x"
	DerivedOuterY       = "outer_y"
	DerivedFrameWidthX  = "frame_width_x"
	DerivedFrameWidthY  = "frame_width_y"
	DerivedFingerCount  = "finger_count"
	DerivedFingerWidth  = "finger_width"
	DerivedFingerPitch  = "finger_pitch"
	DerivedSpacing      = "spacing"
	DerivedShieldGap    = "shield_gap"
	DerivedLayerCount   = "layer_count"
	DerivedViaPitch     = "via_pitch"
	DerivedViaMargin    = "via_margin"
	DerivedViaCount     = "via_count"
)

// Derived looks up a derived quantity by name.
func (g *Geometry) Derived(name string) (float64, bool) {
	switch name {
	case DerivedActiveX:
		return g.ActiveX, true
	case DerivedActiveY:
		return g.ActiveY, true
	case DerivedFrameOuterY:
		return g.FrameOuterY, true
	case DerivedTabInnerX:
		return g.TabInnerX, true
	case DerivedTabOuterX:
		return g.TabOuterX, true
	case DerivedNotchInnerX:
		return g.NotchInnerX, true
	case DerivedNotchHalfY:
		return g.NotchHalfY, true
	case DerivedPadHalfY:
		return g.PadHalfY, true
	case DerivedShieldInnerX:
		return g.ShieldInnerX, true
	case DerivedShieldInnerY:
		return g.ShieldInnerY, true
	case DerivedOuterX:
		return g.OuterX, true
	case DerivedOuterY:
		return g.OuterY, true
	case DerivedFrameWidthX:
		return g.FrameWidthX, true
	case DerivedFrameWidthY:
		return g.FrameWidthY, true
	case DerivedFingerCount:
		return float64(g.Params.Count), true
	case DerivedFingerWidth:
		return g.Params.Width, true
	case DerivedFingerPitch:
		return g.Params.Width + g.Params.Spacing, true
	case DerivedSpacing:
		return g.Params.Spacing, true
	case DerivedShieldGap:
		return g.Params.ShieldGap, true
	case DerivedLayerCount:
		return float64(len(g.Layers)), true
	case DerivedViaPitch:
		return g.Rules.ViaPitch(), true
	case DerivedViaMargin:
		return g.Rules.ViaMargin(), true
	case DerivedViaCount:
		n := 0
		for _, v := range g.Vias {
			n += v.Rows * v.Cols
		}
		return float64(n), true
	}
	return 0, false
}

// validateChains checks that every ordering chain strictly decreases
// towards the centre. The first failing inequality is returned.
func (g *Geometry) validateChains() error {
	for _, c := range g.Chains {
		for i := 0; i+1 < len(c.Bounds); i++ {
			upper, lower := c.Bounds[i], c.Bounds[i+1]
			if !(upper.Value > lower.Value+eps) {
				return violation(g.Variant, c.Axis, upper.Name, upper.Value, lower.Name, lower.Value)
			}
		}
	}
	return nil
}

// validateElements checks that every element has a positive size and lies
// inside the symmetric envelope, which covers the mirrored side of each
// chain.
func (g *Geometry) validateElements() error {
	env := g.Envelope()
	for _, e := range g.Elements {
		if e.Rect.W() <= eps || e.Rect.H() <= eps {
			return violation(g.Variant, "XY", string(e.Role)+"_size", e.Rect.MinSide(), "0", 0)
		}
		if !env.Contains(e.Rect, eps) {
			return violation(g.Variant, "XY", "envelope", g.OuterX, string(e.Role)+"_extent", e.Rect.X1)
		}
	}
	return nil
}

// chain builds a Chain from bounds listed outermost first; the centre is
// appended.
func chain(axis string, bounds ...Bound) Chain {
	return Chain{Axis: axis, Bounds: append(bounds, Bound{Name: "center", Value: 0})}
}

// checkLayers requires a contiguous run of the process stack.
func checkLayers(v Variant, r Rules, layers []string, min int) error {
	if len(layers) < min {
		return violation(v, "Z", "layer_count", float64(len(layers)), "minimum-1", float64(min-1))
	}
	if len(r.Stack) == 0 {
		return nil
	}
	prev := -1
	for k, l := range layers {
		i := r.LayerIndex(l)
		if i < 0 {
			return errors.Wrapf(ErrParameterViolation, "layer %q is not in the process stack", l)
		}
		if k > 0 && i != prev+1 {
			return violation(v, "Z", l+"_index", float64(i), layers[k-1]+"_index+1", float64(prev+1))
		}
		prev = i
	}
	return nil
}

// sortElements orders elements by stack position, keeping insertion order
// within a layer.
func sortElements(layers []string, elements []Element) {
	rank := make(map[string]int, len(layers))
	for i, l := range layers {
		rank[l] = i
	}
	sort.SliceStable(elements, func(i, j int) bool {
		return rank[elements[i].Layer] < rank[elements[j].Layer]
	})
}
