package geom

// multilayerShape stacks full plates of alternating polarity. Even layers
// belong to PLUS, odd layers to GND. Each plate runs out into its own tab
// and faces an isolated landing pad of the other plate across Spacing, so
// both via stacks pass through every layer outside the active region.
type multilayerShape struct{}

func (multilayerShape) Variant() Variant {
	return SandwichMultilayer
}

func (s multilayerShape) Resolve(p ParameterSet, r Rules, shield bool) (*Geometry, error) {
	v := s.Variant()
	if err := positive(v,
		Bound{"length", p.Length},
		Bound{"width", p.Width},
		Bound{"spacing", p.Spacing},
		Bound{"frame_width", p.FrameWidth},
	); err != nil {
		return nil, err
	}
	if err := checkLayers(v, r, p.Layers, 2); err != nil {
		return nil, err
	}

	g := newGeometry(v, p, r, shield)
	g.ActiveX = p.Width / 2
	g.ActiveY = p.Length / 2
	g.TabInnerX = g.ActiveX + p.Spacing
	g.TabOuterX = g.TabInnerX + p.FrameWidth

	if err := frame(g, g.TabOuterX, g.ActiveY,
		[]Bound{{"tab_outer_x", g.TabOuterX}, {"tab_inner_x", g.TabInnerX}, {"active_x", g.ActiveX}},
		[]Bound{{"active_y", g.ActiveY}},
	); err != nil {
		return nil, err
	}
	shieldRing(g)

	ax, ay, ti, to := g.ActiveX, g.ActiveY, g.TabInnerX, g.TabOuterX
	for k, layer := range g.Layers {
		if k%2 == 0 {
			g.Elements = append(g.Elements,
				Element{Role: RolePlate, Layer: layer, Net: NetPlus, Index: k, Rect: R(-to, -ay, ax, ay)},
				Element{Role: RoleTab, Layer: layer, Net: NetGround, Index: 1, Rect: R(ti, -ay, to, ay)},
			)
		} else {
			g.Elements = append(g.Elements,
				Element{Role: RoleTab, Layer: layer, Net: NetPlus, Index: 0, Rect: R(-to, -ay, -ti, ay)},
				Element{Role: RolePlate, Layer: layer, Net: NetGround, Index: k, Rect: R(-ax, -ay, to, ay)},
			)
		}
	}

	for _, tab := range []struct {
		net    string
		region Rect
	}{{NetPlus, R(-to, -ay, -ti, ay)}, {NetGround, R(ti, -ay, to, ay)}} {
		vias, err := placeVias(v, r, g.Layers, tab.net, tab.region, "tab")
		if err != nil {
			return nil, err
		}
		g.Vias = append(g.Vias, vias...)
	}

	mid := (ti + to) / 2
	g.Pins = append(g.Pins,
		Pin{Name: NetPlus, Layer: g.TopLayer(), At: Point{-mid, 0}},
		Pin{Name: NetGround, Layer: g.TopLayer(), At: Point{mid, 0}},
	)
	shieldPin(g)

	return g, nil
}

// notchedShape keeps both via stacks inside the plate footprint. Each
// plate is notched where the other plate's stack passes through it, and
// the notch holds an isolated landing pad inset by Spacing.
type notchedShape struct{}

func (notchedShape) Variant() Variant {
	return SandwichNotched
}

func (s notchedShape) Resolve(p ParameterSet, r Rules, shield bool) (*Geometry, error) {
	v := s.Variant()
	if err := positive(v,
		Bound{"length", p.Length},
		Bound{"width", p.Width},
		Bound{"spacing", p.Spacing},
		Bound{"notch_depth", p.NotchDepth},
		Bound{"notch_width", p.NotchWidth},
	); err != nil {
		return nil, err
	}
	if err := checkLayers(v, r, p.Layers, 2); err != nil {
		return nil, err
	}

	g := newGeometry(v, p, r, shield)
	g.ActiveX = p.Width / 2
	g.ActiveY = p.Length / 2
	g.NotchInnerX = g.ActiveX - p.NotchDepth
	g.NotchHalfY = p.NotchWidth / 2
	g.PadHalfY = g.NotchHalfY - p.Spacing
	padInner := g.NotchInnerX + p.Spacing

	if err := frame(g, g.ActiveX, g.ActiveY,
		[]Bound{{"active_x", g.ActiveX}, {"pad_inner_x", padInner}, {"notch_inner_x", g.NotchInnerX}},
		[]Bound{{"active_y", g.ActiveY}, {"notch_half_y", g.NotchHalfY}, {"pad_half_y", g.PadHalfY}},
	); err != nil {
		return nil, err
	}
	shieldRing(g)

	ax, ay, ni, h, ph := g.ActiveX, g.ActiveY, g.NotchInnerX, g.NotchHalfY, g.PadHalfY
	for k, layer := range g.Layers {
		if k%2 == 0 {
			g.Elements = append(g.Elements,
				Element{Role: RolePlate, Layer: layer, Net: NetPlus, Index: 0, Rect: R(-ax, -ay, ni, ay)},
				Element{Role: RolePlate, Layer: layer, Net: NetPlus, Index: 1, Rect: R(ni, -ay, ax, -h)},
				Element{Role: RolePlate, Layer: layer, Net: NetPlus, Index: 2, Rect: R(ni, h, ax, ay)},
				Element{Role: RolePad, Layer: layer, Net: NetGround, Index: 1, Rect: R(padInner, -ph, ax, ph)},
			)
		} else {
			g.Elements = append(g.Elements,
				Element{Role: RolePlate, Layer: layer, Net: NetGround, Index: 0, Rect: R(-ni, -ay, ax, ay)},
				Element{Role: RolePlate, Layer: layer, Net: NetGround, Index: 1, Rect: R(-ax, -ay, -ni, -h)},
				Element{Role: RolePlate, Layer: layer, Net: NetGround, Index: 2, Rect: R(-ax, h, -ni, ay)},
				Element{Role: RolePad, Layer: layer, Net: NetPlus, Index: 0, Rect: R(-ax, -ph, -padInner, ph)},
			)
		}
	}

	plus := R(-ax, -ph, -padInner, ph)
	ground := R(padInner, -ph, ax, ph)
	for _, stack := range []struct {
		net    string
		region Rect
	}{{NetPlus, plus}, {NetGround, ground}} {
		vias, err := placeVias(v, r, g.Layers, stack.net, stack.region, "notch")
		if err != nil {
			return nil, err
		}
		g.Vias = append(g.Vias, vias...)
	}

	g.Pins = append(g.Pins,
		Pin{Name: NetPlus, Layer: g.TopLayer(), At: plus.Center()},
		Pin{Name: NetGround, Layer: g.TopLayer(), At: ground.Center()},
	)
	shieldPin(g)

	return g, nil
}
