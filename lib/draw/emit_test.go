package draw_test

import (
	"bytes"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xoviat/capsynth/lib/draw"
	"github.com/xoviat/capsynth/lib/geom"
)

func unitCell(t *testing.T, v geom.Variant, shield bool) *geom.Geometry {
	t.Helper()
	p := geom.ParameterSet{
		Count:       6,
		Length:      3.3333333,
		Width:       0.12,
		Spacing:     0.11,
		FrameWidth:  0.4,
		NotchDepth:  0.6,
		NotchWidth:  0.8,
		ShieldGap:   0.2,
		ShieldWidth: 0.3,
		Layers:      []string{"M2", "M3", "M4"},
	}
	if !v.Finger() {
		p.Width = 5
	}
	g, err := geom.Synthesize(p, geom.DefaultRules(), v, shield)
	require.NoError(t, err)
	return g
}

func TestEmitOrder(t *testing.T) {
	for _, v := range geom.Variants() {
		g := unitCell(t, v, true)
		prims := draw.Emit(g)
		require.NotEmpty(t, prims)

		rank := map[string]int{"M2": 0, "M3": 1, "M4": 2}
		phase := 0
		lastLayer := -1
		for _, p := range prims {
			switch p.Kind {
			case draw.KindRect, draw.KindPath:
				require.Equal(t, 0, phase, "%s: metal after vias or labels", v)
				require.GreaterOrEqual(t, rank[p.Layer], lastLayer, "%s: metal layers out of order", v)
				lastLayer = rank[p.Layer]
			case draw.KindVia:
				if phase == 0 {
					phase, lastLayer = 1, -1
				}
				require.Equal(t, 1, phase, "%s: via after labels", v)
				require.GreaterOrEqual(t, rank[p.Lower], lastLayer, "%s: vias out of order", v)
				lastLayer = rank[p.Lower]
			case draw.KindLabel:
				phase = 2
				assert.Equal(t, "M4", p.Layer)
			default:
				t.Fatalf("%s: unexpected kind %s", v, p.Kind)
			}
		}
		assert.Equal(t, 2, phase, "%s: no labels emitted", v)
	}
}

func TestEmitRoundsToFiveDecimals(t *testing.T) {
	prims := draw.Emit(unitCell(t, geom.InterleavedFinger, false))
	check := func(v float64) {
		scaled := v * 1e5
		assert.InDelta(t, math.Round(scaled), scaled, 1e-6, "%v has more than 5 decimals", v)
	}
	for _, p := range prims {
		check(p.Box.X0)
		check(p.Box.Y0)
		check(p.Box.X1)
		check(p.Box.Y1)
		check(p.Center.X)
		check(p.Center.Y)
		for _, pt := range p.Points {
			check(pt.X)
			check(pt.Y)
		}
	}
}

func TestEmitIsByteStable(t *testing.T) {
	a := draw.Emit(unitCell(t, geom.AlternatingFinger, true))
	b := draw.Emit(unitCell(t, geom.AlternatingFinger, true))
	assert.Empty(t, cmp.Diff(a, b))
	assert.Equal(t, draw.Digest(a), draw.Digest(b))

	var bufA, bufB bytes.Buffer
	require.NoError(t, draw.Encode(&bufA, a))
	require.NoError(t, draw.Encode(&bufB, b))
	assert.Equal(t, bufA.Bytes(), bufB.Bytes())

	c := draw.Emit(unitCell(t, geom.InterleavedFinger, true))
	assert.NotEqual(t, draw.Digest(a), draw.Digest(c))
}

func TestDummyEmissionIsIdempotent(t *testing.T) {
	g := unitCell(t, geom.SandwichNotched, true)
	d1, err := geom.Dummy(g)
	require.NoError(t, err)
	d2, err := geom.Dummy(g)
	require.NoError(t, err)

	a, b := draw.Emit(d1), draw.Emit(d2)
	assert.Empty(t, cmp.Diff(a, b))
	for _, p := range a {
		assert.NotEqual(t, draw.KindVia, p.Kind)
		assert.NotEqual(t, draw.KindLabel, p.Kind)
	}
}

func TestOrderDropsLabelsBelowTop(t *testing.T) {
	prims := draw.Order([]draw.Primitive{
		draw.Label("M1", geom.Point{}, "A"),
		draw.Rectangle("M2", geom.R(0, 0, 1, 1), "A", geom.RolePad),
		draw.Instance("unit", geom.Point{}, 1, 1, 1, 1),
		draw.Label("M2", geom.Point{}, "B"),
	}, []string{"M1", "M2"})

	require.Len(t, prims, 3)
	assert.Equal(t, draw.KindInstance, prims[0].Kind)
	assert.Equal(t, draw.KindRect, prims[1].Kind)
	assert.Equal(t, "B", prims[2].Text)
}

func TestPathBox(t *testing.T) {
	assert.Equal(t, geom.R(-0.05, 0, 0.05, 2), draw.PathBox([]geom.Point{{0, 0}, {0, 2}}, 0.1))
	assert.Equal(t, geom.R(0, -0.1, 3, 0.1), draw.PathBox([]geom.Point{{3, 0}, {0, 0}}, 0.2))
}

func TestFlatten(t *testing.T) {
	masters := map[string][]draw.Primitive{
		"unit": {
			draw.Rectangle("M1", geom.R(-1, -1, 1, 1), "PLUS", geom.RolePlate),
			draw.Rectangle("M1", geom.R(-2, -2, 2, -1.5), "SHIELD", geom.RoleShield),
			draw.Rectangle("M1", geom.R(0, 0, 0.5, 0.5), "", geom.RolePlate),
			draw.Label("M1", geom.Point{}, "PLUS"),
		},
	}
	prims := []draw.Primitive{
		draw.Instance("unit", geom.Point{X: 10, Y: 20}, 2, 3, 4, 5),
		draw.Path("M2", []geom.Point{{0, 0}, {4, 0}}, 0.2, "G1", geom.RoleRoute),
	}

	flat := draw.Flatten(prims, masters, map[string]bool{"SHIELD": true})
	require.Len(t, flat, 2*3*3+1)

	nets := map[string]int{}
	for _, p := range flat {
		nets[p.Net]++
	}
	assert.Equal(t, 6, nets["SHIELD"])
	assert.Equal(t, 6, nets[""])
	assert.Equal(t, 1, nets["G1"])
	assert.Equal(t, 1, nets["PLUS[0:1,2]"])

	last := flat[len(flat)-2]
	assert.Equal(t, geom.R(18, 25, 18.5, 25.5), last.Box)
}

func TestXMLRoundTrip(t *testing.T) {
	g := unitCell(t, geom.SandwichMultilayer, false)
	prims := draw.Emit(g)

	library := &draw.XMLLibrary{
		Description: "unit masters",
		Masters:     []*draw.XMLMaster{draw.NewXMLMaster("unit", g.Width(), g.Height(), prims)},
	}

	var buf bytes.Buffer
	require.NoError(t, draw.EncodeXML(&buf, library))

	decoded, err := draw.DecodeXML(&buf)
	require.NoError(t, err)
	require.Len(t, decoded.Masters, 1)
	require.Len(t, decoded.Masters[0].Items, len(prims))
	for i, item := range decoded.Masters[0].Items {
		assert.Equal(t, string(prims[i].Kind), item.XMLName.Local)
	}
}
