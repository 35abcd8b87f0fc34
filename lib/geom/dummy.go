package geom

import (
	"math"

	"github.com/pkg/errors"
	"github.com/xoviat/capsynth/lib"
)

// dummyFields is the complete set of derived quantities the dummy
// transform may read. It has no free parameters of its own.
var dummyFields = map[string]bool{
	DerivedActiveX:      true,
	DerivedActiveY:      true,
	DerivedFrameOuterY:  true,
	DerivedTabInnerX:    true,
	DerivedTabOuterX:    true,
	DerivedShieldInnerX: true,
	DerivedShieldInnerY: true,
	DerivedOuterX:       true,
	DerivedOuterY:       true,
	DerivedFrameWidthX:  true,
	DerivedFrameWidthY:  true,
	DerivedFingerCount:  true,
	DerivedFingerWidth:  true,
	DerivedFingerPitch:  true,
	DerivedSpacing:      true,
	DerivedShieldGap:    true,
}

type reader func(name string) (float64, error)

func whitelisted(g *Geometry) reader {
	return func(name string) (float64, error) {
		if !dummyFields[name] {
			return 0, errors.Wrapf(ErrDummyField, "%q", name)
		}
		v, ok := g.Derived(name)
		if !ok {
			return 0, errors.Wrapf(ErrDummyField, "%q is not derived", name)
		}
		return v, nil
	}
}

// readAll reads several whitelisted names at once.
func readAll(read reader, names ...string) ([]float64, error) {
	out := make([]float64, len(names))
	for i, n := range names {
		v, err := read(n)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// ShortenDelta is the quantized amount an outer boundary element loses at
// each end: min(15% of its span, the clearance) on the 0.005 grid.
func ShortenDelta(span, clearance float64) float64 {
	return lib.Round(math.Round(math.Min(0.15*span, clearance)/lib.Grid)*lib.Grid, lib.Precision)
}

// Dummy derives the electrically floating twin of a resolved unit cell.
// Repeated elements become uniform, outer boundary elements are shortened
// by ShortenDelta and never removed, and no vias or pins are produced.
// Every dimension is read through the whitelist of derived quantities.
// The variant, shield flag, process rules and layer stack are carried over
// as the cell's identity; the dummy has no parameter set of its own.
func Dummy(g *Geometry) (*Geometry, error) {
	if g == nil {
		return nil, errors.New("geom: nil geometry")
	}
	if g.Dummy {
		return nil, errors.New("geom: geometry is already a dummy")
	}

	shape, err := ShapeFor(g.Variant)
	if err != nil {
		return nil, err
	}

	read := whitelisted(g)
	ext, err := readAll(read,
		DerivedActiveX, DerivedActiveY, DerivedOuterX, DerivedOuterY,
		DerivedFrameWidthX, DerivedFrameWidthY,
	)
	if err != nil {
		return nil, err
	}

	d := &Geometry{
		Variant:     g.Variant,
		Rules:       g.Rules,
		Shield:      g.Shield,
		Dummy:       true,
		Layers:      append([]string(nil), g.Layers...),
		ActiveX:     ext[0],
		ActiveY:     ext[1],
		OuterX:      ext[2],
		OuterY:      ext[3],
		FrameWidthX: ext[4],
		FrameWidthY: ext[5],
	}

	if g.Shield {
		ring, err := dummyShield(d.Layers, read)
		if err != nil {
			return nil, err
		}
		d.Elements = append(d.Elements, ring...)
	}

	elements, err := shape.dummy(d.Variant, d.Layers, read)
	if err != nil {
		return nil, err
	}
	d.Elements = append(d.Elements, elements...)

	sortElements(d.Layers, d.Elements)
	return d, nil
}

func dummyShield(layers []string, read reader) ([]Element, error) {
	v, err := readAll(read, DerivedOuterX, DerivedOuterY, DerivedShieldInnerX, DerivedShieldInnerY, DerivedShieldGap)
	if err != nil {
		return nil, err
	}
	ox, oy, ix, iy, gap := v[0], v[1], v[2], v[3], v[4]

	dh := ShortenDelta(2*ox, gap)
	dv := ShortenDelta(2*iy, gap)
	var out []Element
	for _, layer := range layers {
		out = append(out,
			Element{Role: RoleShield, Layer: layer, Index: 0, Rect: R(-ox+dh, -oy, ox-dh, -iy)},
			Element{Role: RoleShield, Layer: layer, Index: 1, Rect: R(-ox+dh, iy, ox-dh, oy)},
			Element{Role: RoleShield, Layer: layer, Index: 2, Rect: R(-ox, -iy+dv, -ix, iy-dv)},
			Element{Role: RoleShield, Layer: layer, Index: 3, Rect: R(ix, -iy+dv, ox, iy-dv)},
		)
	}
	return out, nil
}

func (s fingerShape) dummy(variant Variant, layers []string, read reader) ([]Element, error) {
	v, err := readAll(read,
		DerivedFingerCount, DerivedFingerWidth, DerivedFingerPitch, DerivedSpacing,
		DerivedActiveX, DerivedActiveY, DerivedFrameOuterY,
	)
	if err != nil {
		return nil, err
	}
	n, w, pitch, sp, ax, ay, fy := int(v[0]), v[1], v[2], v[3], v[4], v[5], v[6]

	y0, y1 := -ay+sp, ay-sp
	if !(y1 > y0) {
		return nil, violation(variant, "Y", "dummy_finger_top", y1, "dummy_finger_bottom", y0)
	}

	delta := ShortenDelta(2*ax, sp)
	var out []Element
	for _, layer := range layers {
		out = append(out,
			Element{Role: RoleBar, Layer: layer, Index: 0, Rect: R(-ax+delta, -fy, ax-delta, -ay)},
			Element{Role: RoleBar, Layer: layer, Index: 1, Rect: R(-ax+delta, ay, ax-delta, fy)},
		)
		for i := 0; i < n; i++ {
			x := -ax + w/2 + float64(i)*pitch
			out = append(out, Element{
				Role:  RoleFinger,
				Layer: layer,
				Index: i,
				Rect:  R(x-w/2, y0, x+w/2, y1),
				Path:  []Point{{x, y0}, {x, y1}},
				Width: w,
			})
		}
	}
	return out, nil
}

func (multilayerShape) dummy(_ Variant, layers []string, read reader) ([]Element, error) {
	v, err := readAll(read, DerivedActiveX, DerivedActiveY, DerivedTabInnerX, DerivedTabOuterX, DerivedSpacing)
	if err != nil {
		return nil, err
	}
	ax, ay, ti, to, sp := v[0], v[1], v[2], v[3], v[4]

	delta := ShortenDelta(2*ay, sp)
	var out []Element
	for k, layer := range layers {
		out = append(out,
			Element{Role: RoleTab, Layer: layer, Index: 0, Rect: R(-to, -ay+delta, -ti, ay-delta)},
			Element{Role: RolePlate, Layer: layer, Index: k, Rect: R(-ax, -ay, ax, ay)},
			Element{Role: RoleTab, Layer: layer, Index: 1, Rect: R(ti, -ay+delta, to, ay-delta)},
		)
	}
	return out, nil
}

func (notchedShape) dummy(_ Variant, layers []string, read reader) ([]Element, error) {
	v, err := readAll(read, DerivedActiveX, DerivedActiveY)
	if err != nil {
		return nil, err
	}
	ax, ay := v[0], v[1]

	var out []Element
	for k, layer := range layers {
		out = append(out, Element{Role: RolePlate, Layer: layer, Index: k, Rect: R(-ax, -ay, ax, ay)})
	}
	return out, nil
}
