package verify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xoviat/capsynth/lib/draw"
	"github.com/xoviat/capsynth/lib/geom"
)

func check(t *testing.T, prims ...draw.Primitive) *RuleReport {
	t.Helper()
	a := NewAnalytic(geom.DefaultRules())
	text, err := a.CheckRules(context.Background(), Layout{Name: "t", Layers: []string{"M1", "M2"}, Primitives: prims})
	require.NoError(t, err)
	report, err := ParseRuleReport(text)
	require.NoError(t, err)
	return report
}

func extract(t *testing.T, prims ...draw.Primitive) *ParasiticReport {
	t.Helper()
	a := NewAnalytic(geom.DefaultRules())
	text, err := a.ExtractParasitics(context.Background(), Layout{Name: "t", Layers: []string{"M1", "M2"}, Primitives: prims})
	require.NoError(t, err)
	report, err := ParseParasiticReport(text)
	require.NoError(t, err)
	return report
}

func TestAnalyticPass(t *testing.T) {
	report := check(t,
		draw.Rectangle("M1", geom.R(0, 0, 1, 1), geom.NetPlus, geom.RolePlate),
		draw.Rectangle("M1", geom.R(1.1, 0, 2, 1), geom.NetGround, geom.RolePlate),
		// touching shapes are one polygon
		draw.Rectangle("M1", geom.R(2, 0, 3, 1), geom.NetGround, geom.RolePlate),
	)
	assert.True(t, report.Pass, report.Text)
	assert.Empty(t, report.Violations)
}

func TestAnalyticViolations(t *testing.T) {
	report := check(t,
		draw.Rectangle("M1", geom.R(0, 0, 0.05, 2), geom.NetPlus, geom.RoleFinger),
		draw.Rectangle("M1", geom.R(0.1, 0, 1.1, 2), geom.NetGround, geom.RoleBar),
		draw.Rectangle("M2", geom.R(0, 0, 0.1, 0.1), geom.NetGround, geom.RoleTab),
	)
	require.False(t, report.Pass)

	got := map[string][]int{}
	for _, v := range report.Violations {
		got[v.Rule] = append(got[v.Rule], v.Index)
	}
	assert.Equal(t, map[string][]int{
		RuleMinWidth:   {0},
		RuleMinSpacing: {0},
		RuleMinArea:    {2},
	}, got)

	for _, v := range report.Violations {
		if v.Rule == RuleMinSpacing {
			assert.InDelta(t, 0.05, v.Value, 1e-9)
			assert.Equal(t, geom.R(0.05, 0, 0.1, 2), v.Box)
		}
	}
}

func TestAnalyticPathWidth(t *testing.T) {
	report := check(t, draw.Path("M1", []geom.Point{{X: 0, Y: 0}, {X: 5, Y: 0}}, 0.08, "G1", geom.RoleRoute))
	require.Len(t, report.Violations, 1)
	assert.Equal(t, RuleMinWidth, report.Violations[0].Rule)
	assert.Equal(t, geom.RoleRoute, report.Violations[0].Role)
}

func TestAnalyticViaEnclosure(t *testing.T) {
	via := draw.Via(geom.ViaArray{Pair: "V1", Lower: "M1", Upper: "M2", Center: geom.Point{X: 0.5, Y: 0.5}, Rows: 1, Cols: 1})

	report := check(t,
		draw.Rectangle("M1", geom.R(0, 0, 1, 1), geom.NetPlus, geom.RolePlate),
		draw.Rectangle("M2", geom.R(0, 0, 1, 1), geom.NetPlus, geom.RolePlate),
		via,
	)
	assert.True(t, report.Pass, report.Text)

	// M2 pad leaves 0.02 instead of 0.05 on the right
	report = check(t,
		draw.Rectangle("M1", geom.R(0, 0, 1, 1), geom.NetPlus, geom.RolePlate),
		draw.Rectangle("M2", geom.R(0.2, 0.2, 0.57, 0.8), geom.NetPlus, geom.RolePad),
		via,
	)
	require.Len(t, report.Violations, 1)
	assert.Equal(t, RuleViaEnclosure, report.Violations[0].Rule)
	assert.Equal(t, "M2", report.Violations[0].Layer)
	assert.Equal(t, 2, report.Violations[0].Index)
}

func TestAnalyticLateral(t *testing.T) {
	report := extract(t,
		draw.Rectangle("M1", geom.R(0, 0, 1, 2), geom.NetPlus, geom.RoleFinger),
		draw.Rectangle("M1", geom.R(1.2, 0, 2.2, 2), geom.NetGround, geom.RoleFinger),
	)
	// 8.854e-3 * 4 * 0.4 * 2 / 0.2
	assert.Equal(t, []Capacitance{{A: "GND", B: "PLUS", Value: 0.14166}}, report.Entries)
}

func TestAnalyticLateralBlocked(t *testing.T) {
	report := extract(t,
		draw.Rectangle("M1", geom.R(0, 0, 1, 2), geom.NetPlus, geom.RoleFinger),
		draw.Rectangle("M1", geom.R(1.2, 0, 2.2, 2), geom.NetShield, geom.RoleShield),
		draw.Rectangle("M1", geom.R(2.4, 0, 3.4, 2), geom.NetGround, geom.RoleFinger),
	)
	assert.Equal(t, []Capacitance{
		{A: "GND", B: "SHIELD", Value: 0.14166},
		{A: "PLUS", B: "SHIELD", Value: 0.14166},
	}, report.Entries)
}

func TestAnalyticVertical(t *testing.T) {
	report := extract(t,
		draw.Rectangle("M1", geom.R(0, 0, 1, 1), geom.NetPlus, geom.RolePlate),
		draw.Rectangle("M2", geom.R(0, 0, 1, 1), geom.NetGround, geom.RolePlate),
		// unnamed metal never couples
		draw.Rectangle("M2", geom.R(2, 0, 3, 1), "", geom.RolePlate),
	)
	// 8.854e-3 * 4 * 1 / 0.5
	assert.Equal(t, []Capacitance{{A: "GND", B: "PLUS", Value: 0.07083}}, report.Entries)
}

func TestAnalyticUnitCell(t *testing.T) {
	p := geom.ParameterSet{
		Count:       8,
		Length:      4,
		Width:       0.12,
		Spacing:     0.12,
		FrameWidth:  0.4,
		ShieldGap:   0.2,
		ShieldWidth: 0.4,
		Layers:      []string{"M1", "M2", "M3"},
	}
	g, err := geom.Synthesize(p, geom.DefaultRules(), geom.InterleavedFinger, true)
	require.NoError(t, err)

	a := NewAnalytic(geom.DefaultRules())
	gw := NewGateway(a, nil)
	l := Layout{Name: "cell", Layers: g.Layers, Primitives: draw.Emit(g)}

	rules, err := gw.CheckRules(context.Background(), l)
	require.NoError(t, err)
	assert.True(t, rules.Pass, rules.Text)

	pex, err := gw.ExtractParasitics(context.Background(), l)
	require.NoError(t, err)
	usable, err := pex.Usable(geom.NetPlus, []string{geom.NetGround})
	require.NoError(t, err)
	assert.Greater(t, usable, 5.0)
	assert.NotEmpty(t, pex.Parasitic([]string{geom.NetGround}))

	// more fingers, more capacitance
	p.Count = 12
	g, err = geom.Synthesize(p, geom.DefaultRules(), geom.InterleavedFinger, true)
	require.NoError(t, err)
	pex, err = gw.ExtractParasitics(context.Background(), Layout{Name: "cell", Layers: g.Layers, Primitives: draw.Emit(g)})
	require.NoError(t, err)
	more, err := pex.Usable(geom.NetPlus, []string{geom.NetGround})
	require.NoError(t, err)
	assert.Greater(t, more, usable)
}

func TestAnalyticCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := NewAnalytic(geom.DefaultRules())
	l := Layout{Primitives: []draw.Primitive{draw.Rectangle("M1", geom.R(0, 0, 1, 1), "A", geom.RolePlate)}}
	_, err := a.CheckRules(ctx, l)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = a.ExtractParasitics(ctx, l)
	assert.ErrorIs(t, err, context.Canceled)
}
