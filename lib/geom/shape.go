package geom

// Shape resolves one variant. Implementations are stateless and are chosen
// once, at configuration time, through ShapeFor.
type Shape interface {
	Variant() Variant
	Resolve(p ParameterSet, r Rules, shield bool) (*Geometry, error)

	// dummy returns the floating element set of a resolved cell on layers,
	// reading derived quantities through read only.
	dummy(v Variant, layers []string, read reader) ([]Element, error)
}

var shapes = map[Variant]Shape{
	InterleavedFinger:  fingerShape{},
	AlternatingFinger:  fingerShape{alternating: true},
	SandwichNotched:    notchedShape{},
	SandwichMultilayer: multilayerShape{},
}

// ShapeFor returns the strategy for v.
func ShapeFor(v Variant) (Shape, error) {
	s, ok := shapes[v]
	if !ok {
		return nil, ErrUnknownVariant
	}
	return s, nil
}

// Synthesize resolves p into geometry for the given variant and validates
// every ordering chain. It is pure: equal inputs give equal geometry.
func Synthesize(p ParameterSet, r Rules, v Variant, shield bool) (*Geometry, error) {
	shape, err := ShapeFor(v)
	if err != nil {
		return nil, err
	}

	g, err := shape.Resolve(p.Clone(), r, shield)
	if err != nil {
		return nil, err
	}

	if err := g.validateChains(); err != nil {
		return nil, err
	}
	if err := g.validateElements(); err != nil {
		return nil, err
	}

	sortElements(g.Layers, g.Elements)
	return g, nil
}

func newGeometry(v Variant, p ParameterSet, r Rules, shield bool) *Geometry {
	return &Geometry{
		Variant: v,
		Params:  p,
		Rules:   r,
		Shield:  shield,
		Layers:  append([]string(nil), p.Layers...),
	}
}

// positive requires every bound to be strictly positive.
func positive(v Variant, bounds ...Bound) error {
	for _, b := range bounds {
		if !(b.Value > 0) {
			return violation(v, "-", b.Name, b.Value, "0", 0)
		}
	}
	return nil
}

// frame sets the outer envelope around the variant's own extent, adding
// the shield boundaries when enabled, and checks the resulting ordering
// chains before any element is placed. xs and ys are the variant's own
// boundaries, outermost first.
func frame(g *Geometry, edgeX, edgeY float64, xs, ys []Bound) error {
	p := g.Params
	g.OuterX, g.OuterY = edgeX, edgeY
	if g.Shield {
		g.ShieldInnerX = edgeX + p.ShieldGap
		g.ShieldInnerY = edgeY + p.ShieldGap
		g.OuterX = g.ShieldInnerX + p.ShieldWidth
		g.OuterY = g.ShieldInnerY + p.ShieldWidth
		g.FrameWidthX = p.ShieldWidth
		g.FrameWidthY = p.ShieldWidth

		xs = append([]Bound{{"outer_x", g.OuterX}, {"shield_inner_x", g.ShieldInnerX}}, xs...)
		ys = append([]Bound{{"outer_y", g.OuterY}, {"shield_inner_y", g.ShieldInnerY}}, ys...)
	}

	g.Chains = append(g.Chains, chain("X", xs...), chain("Y", ys...))
	return g.validateChains()
}

// shieldRing adds the shield segments on every layer, stitching vias where
// the ring is wide enough for them, and the shield pin.
func shieldRing(g *Geometry) {
	if !g.Shield {
		return
	}

	ox, oy, ix, iy := g.OuterX, g.OuterY, g.ShieldInnerX, g.ShieldInnerY
	bottom := R(-ox, -oy, ox, -iy)
	top := R(-ox, iy, ox, oy)
	for _, layer := range g.Layers {
		g.Elements = append(g.Elements,
			Element{Role: RoleShield, Layer: layer, Net: NetShield, Index: 0, Rect: bottom},
			Element{Role: RoleShield, Layer: layer, Net: NetShield, Index: 1, Rect: top},
			Element{Role: RoleShield, Layer: layer, Net: NetShield, Index: 2, Rect: R(-ox, -iy, -ix, iy)},
			Element{Role: RoleShield, Layer: layer, Net: NetShield, Index: 3, Rect: R(ix, -iy, ox, iy)},
		)
	}

	r := g.Rules
	if ViaCount(bottom.H(), r.ViaPitch(), r.ViaMargin()) > 0 {
		for _, seg := range []Rect{bottom, top} {
			vias, err := placeVias(g.Variant, r, g.Layers, NetShield, seg, "shield")
			if err == nil {
				g.Vias = append(g.Vias, vias...)
			}
		}
	}
}

func shieldPin(g *Geometry) {
	if !g.Shield {
		return
	}
	g.Pins = append(g.Pins, Pin{
		Name:  NetShield,
		Layer: g.TopLayer(),
		At:    Point{0, -(g.ShieldInnerY + g.OuterY) / 2},
	})
}
