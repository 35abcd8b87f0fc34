package geom

// fingerShape resolves both comb variants. Plate PLUS owns the bottom bus
// bar, GND the top one. Interleaved fingers keep their polarity on every
// layer; alternating fingers swap polarity from one layer to the next.
type fingerShape struct {
	alternating bool
}

func (s fingerShape) Variant() Variant {
	if s.alternating {
		return AlternatingFinger
	}
	return InterleavedFinger
}

func (s fingerShape) Resolve(p ParameterSet, r Rules, shield bool) (*Geometry, error) {
	v := s.Variant()
	if p.Count < 2 {
		return nil, violation(v, "X", "count", float64(p.Count), "1", 1)
	}
	if err := positive(v,
		Bound{"length", p.Length},
		Bound{"width", p.Width},
		Bound{"spacing", p.Spacing},
		Bound{"frame_width", p.FrameWidth},
	); err != nil {
		return nil, err
	}
	minLayers := 1
	if s.alternating {
		minLayers = 2
	}
	if err := checkLayers(v, r, p.Layers, minLayers); err != nil {
		return nil, err
	}

	g := newGeometry(v, p, r, shield)
	n, w, sp := p.Count, p.Width, p.Spacing

	g.ActiveX = (float64(n)*w + float64(n-1)*sp) / 2
	g.ActiveY = (p.Length + sp) / 2
	g.FrameOuterY = g.ActiveY + p.FrameWidth

	if err := frame(g, g.ActiveX, g.FrameOuterY,
		[]Bound{{"active_x", g.ActiveX}},
		[]Bound{{"frame_outer_y", g.FrameOuterY}, {"active_y", g.ActiveY}},
	); err != nil {
		return nil, err
	}
	shieldRing(g)

	ax, ay, fy := g.ActiveX, g.ActiveY, g.FrameOuterY
	bottom := R(-ax, -fy, ax, -ay)
	top := R(-ax, ay, ax, fy)
	for k, layer := range g.Layers {
		g.Elements = append(g.Elements,
			Element{Role: RoleBar, Layer: layer, Net: NetPlus, Index: 0, Rect: bottom},
			Element{Role: RoleBar, Layer: layer, Net: NetGround, Index: 1, Rect: top},
		)

		for i := 0; i < n; i++ {
			x := -ax + w/2 + float64(i)*(w+sp)
			polarity := i % 2
			if s.alternating {
				polarity = (i + k) % 2
			}

			net, y0, y1 := NetPlus, -ay, ay-sp
			if polarity == 1 {
				net, y0, y1 = NetGround, -ay+sp, ay
			}

			g.Elements = append(g.Elements, Element{
				Role:  RoleFinger,
				Layer: layer,
				Net:   net,
				Index: i,
				Rect:  R(x-w/2, y0, x+w/2, y1),
				Path:  []Point{{x, y0}, {x, y1}},
				Width: w,
			})
		}
	}

	for _, bar := range []struct {
		net    string
		region Rect
	}{{NetPlus, bottom}, {NetGround, top}} {
		vias, err := placeVias(v, r, g.Layers, bar.net, bar.region, "bar")
		if err != nil {
			return nil, err
		}
		g.Vias = append(g.Vias, vias...)
	}

	top0 := g.TopLayer()
	g.Pins = append(g.Pins,
		Pin{Name: NetPlus, Layer: top0, At: Point{0, -(ay + fy) / 2}},
		Pin{Name: NetGround, Layer: top0, At: Point{0, (ay + fy) / 2}},
	)
	shieldPin(g)

	return g, nil
}
