package array

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xoviat/capsynth/lib/config"
	"github.com/xoviat/capsynth/lib/draw"
	"github.com/xoviat/capsynth/lib/geom"
	"github.com/xoviat/capsynth/lib/verify"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// checker answers rule checks with a function of the call number and the
// flattened layout.
type checker struct {
	mu    sync.Mutex
	calls int
	rules func(n int, flat []draw.Primitive) string
}

func (c *checker) Name() string { return "checker" }

func (c *checker) CheckRules(ctx context.Context, l verify.Layout) (string, error) {
	c.mu.Lock()
	c.calls++
	n := c.calls
	c.mu.Unlock()
	if c.rules == nil {
		return "RESULT PASS 0\n", nil
	}
	return c.rules(n, l.Flat()), nil
}

func (c *checker) ExtractParasitics(ctx context.Context, l verify.Layout) (string, error) {
	return "RESULT OK\n", nil
}

func failing(vs ...verify.Violation) string {
	var sb strings.Builder
	for _, v := range vs {
		sb.WriteString(v.String() + "\n")
	}
	sb.WriteString("RESULT FAIL 1\n")
	return sb.String()
}

// firstRoute is the flat index of the first routing path.
func firstRoute(flat []draw.Primitive) int {
	for i, p := range flat {
		if p.Kind == draw.KindPath && p.Role == geom.RoleRoute {
			return i
		}
	}
	return -1
}

func routeArea(flat []draw.Primitive) string {
	i := firstRoute(flat)
	return failing(verify.Violation{
		Rule:  verify.RuleMinArea,
		Layer: flat[i].Layer,
		Index: i,
		Role:  geom.RoleRoute,
		Box:   flat[i].Box,
		Value: 0.01,
		Limit: 0.02,
	})
}

func cells(t *testing.T, shield bool) (*config.Config, *geom.Geometry, *geom.Geometry) {
	cfg := config.Default()
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
	unit, err := geom.Synthesize(p, cfg.Process, geom.InterleavedFinger, shield)
	require.NoError(t, err)
	dummy, err := geom.Dummy(unit)
	require.NoError(t, err)
	return cfg, unit, dummy
}

func assembler(t *testing.T, cfg *config.Config, b verify.Backend) *Assembler {
	log := zaptest.NewLogger(t)
	return NewAssembler(verify.NewGateway(b, log), cfg, log)
}

func TestPitch(t *testing.T) {
	p, err := Pitch(2.87, 0.66)
	require.NoError(t, err)
	assert.Equal(t, 2.21, p)

	for _, c := range [][2]float64{{1, 0}, {1, 1}, {1, 1.5}, {1, -0.1}} {
		_, err := Pitch(c[0], c[1])
		assert.True(t, errors.Is(err, ErrPitch), "unit %g frame %g", c[0], c[1])
	}
}

func TestGridCoordinates(t *testing.T) {
	g := Grid{Rows: 3, Cols: 4, PitchX: 2, PitchY: 5}
	assert.Equal(t, geom.Point{X: 0, Y: 0}, g.Center(Pos{2, 0}))
	assert.Equal(t, geom.Point{X: 6, Y: 10}, g.Center(Pos{0, 3}))
	assert.Equal(t, geom.Point{X: 2, Y: 0}, g.Origin(Region{StartRow: 1, EndRow: 2, StartCol: 1, EndCol: 3}))

	p, ok := g.At(geom.Point{X: 6.4, Y: 9.1})
	assert.True(t, ok)
	assert.Equal(t, Pos{0, 3}, p)
	_, ok = g.At(geom.Point{X: -1.5, Y: 0})
	assert.False(t, ok)
}

func TestAssembleSingleCentre(t *testing.T) {
	cfg, unit, dummy := cells(t, true)
	b := &checker{}
	s := grid("D D D", "D A D", "D D D")
	s.Groups = []Group{{Name: "A", Pin: "OUT", Members: []Pos{{1, 1}}}}

	l, err := assembler(t, cfg, b).Assemble(context.Background(), s, unit, dummy)
	require.NoError(t, err)
	assert.True(t, l.Report.Pass)
	assert.Equal(t, 1, b.calls)
	assert.Empty(t, l.Segments)
	assert.Equal(t, "M4", l.RouteLayer)
	assert.Equal(t, []string{"M1", "M2", "M3", "M4"}, l.Layers)
	assert.InDelta(t, 2.6, l.Grid.PitchX, 1e-9)
	assert.InDelta(t, 5.72, l.Grid.PitchY, 1e-9)

	require.Len(t, l.Regions, 5)
	for i, p := range l.Primitives {
		if i < len(l.Regions) {
			assert.Equal(t, draw.KindInstance, p.Kind)
			continue
		}
		require.NotEqual(t, draw.KindInstance, p.Kind)

		at := p.Center
		if p.Kind == draw.KindRect {
			at = p.Box.Center()
		}
		pos, ok := l.Grid.At(at)
		require.True(t, ok)
		assert.Equal(t, Pos{1, 1}, pos, "%s on %s", p.Kind, p.Layer)
	}

	placements := l.Placements()
	require.Len(t, placements, 5)
	assert.Equal(t, MasterUnit, placements[0].Master)
	assert.Equal(t, geom.Point{X: 2.6, Y: 5.72}, placements[0].Origin)
	for _, pl := range placements[1:] {
		assert.Equal(t, MasterDummy, pl.Master)
	}
}

func TestAssembleTwoGroups(t *testing.T) {
	cfg, unit, dummy := cells(t, true)
	s := grid(
		"A A A A B B B B",
		"A A A A B B B B",
		"A A A A B B B B",
		"A A A A B B B B",
	)

	l, err := assembler(t, cfg, &checker{}).Assemble(context.Background(), s, unit, dummy)
	require.NoError(t, err)
	assert.Len(t, l.Segments, 48)

	perGroup := map[string]int{}
	for _, seg := range l.Segments {
		perGroup[seg.Group]++
		assert.Equal(t, 1, (seg.B.Row-seg.A.Row)+(seg.B.Col-seg.A.Col))
	}
	assert.Equal(t, map[string]int{"A": 24, "B": 24}, perGroup)
	assert.Equal(t, []Region{
		{StartRow: 0, EndRow: 3, StartCol: 0, EndCol: 7, Class: Functional},
	}, l.Regions)
}

func TestAssembleNeedsSharedFrame(t *testing.T) {
	cfg, unit, dummy := cells(t, false)
	_, err := assembler(t, cfg, &checker{}).Assemble(context.Background(), grid("A D"), unit, dummy)
	assert.True(t, errors.Is(err, ErrPitch))
	assert.Contains(t, err.Error(), "no shield frame")
}

func TestAssembleRejectsDummyMember(t *testing.T) {
	cfg, unit, dummy := cells(t, true)
	s := grid("A D")
	s.Groups = []Group{{Name: "A", Members: []Pos{{0, 0}, {0, 1}}}}
	_, err := assembler(t, cfg, &checker{}).Assemble(context.Background(), s, unit, dummy)
	assert.True(t, errors.Is(err, ErrIsolation))
}

func TestAssembleRemovesRoutesWithAreaViolations(t *testing.T) {
	cfg, unit, dummy := cells(t, true)
	b := &checker{rules: func(n int, flat []draw.Primitive) string {
		if n == 1 {
			return routeArea(flat)
		}
		return "RESULT PASS 0\n"
	}}
	s := grid("D D D D", "D A A D", "D A A D", "D D D D")

	l, err := assembler(t, cfg, b).Assemble(context.Background(), s, unit, dummy)
	require.NoError(t, err)
	assert.Equal(t, 2, b.calls)
	assert.Equal(t, 1, l.Fixes)
	assert.Len(t, l.Removed, 1)
	assert.Len(t, l.Segments, 3)
	assert.True(t, l.Report.Pass)

	paths := 0
	for _, p := range l.Primitives {
		if p.Kind == draw.KindPath && p.Role == geom.RoleRoute {
			paths++
		}
	}
	assert.Equal(t, 3, paths)
}

func TestAssembleFixLimit(t *testing.T) {
	cfg, unit, dummy := cells(t, true)
	cfg.Array.MaxFixes = 1
	b := &checker{rules: func(n int, flat []draw.Primitive) string {
		return routeArea(flat)
	}}
	s := grid("A A", "A A")

	l, err := assembler(t, cfg, b).Assemble(context.Background(), s, unit, dummy)
	assert.True(t, errors.Is(err, ErrRedesign))
	require.NotNil(t, l)
	assert.Equal(t, 1, l.Fixes)
	assert.Equal(t, 2, b.calls)
}

func TestAssembleRedesign(t *testing.T) {
	cfg, unit, dummy := cells(t, true)
	cases := map[string]func(flat []draw.Primitive) string{
		"cell width": func(flat []draw.Primitive) string {
			return failing(verify.Violation{Rule: verify.RuleMinWidth, Index: 0, Layer: flat[0].Layer})
		},
		"cell area": func(flat []draw.Primitive) string {
			return failing(verify.Violation{Rule: verify.RuleMinArea, Index: 0, Layer: flat[0].Layer})
		},
		"route spacing": func(flat []draw.Primitive) string {
			return failing(verify.Violation{Rule: verify.RuleMinSpacing, Index: firstRoute(flat)})
		},
		"unknown index": func(flat []draw.Primitive) string {
			return "VIOLATION rule=min_area\nRESULT FAIL 1\n"
		},
	}
	for name, rules := range cases {
		t.Run(name, func(t *testing.T) {
			rules := rules
			b := &checker{rules: func(n int, flat []draw.Primitive) string { return rules(flat) }}
			_, err := assembler(t, cfg, b).Assemble(context.Background(), grid("A A"), unit, dummy)
			assert.True(t, errors.Is(err, ErrRedesign), "got %v", err)
		})
	}
}

func TestAssembleAnalytic(t *testing.T) {
	cfg, unit, dummy := cells(t, true)
	s := grid("D D D D", "D A A D", "D A A D", "D D D D")
	s.Groups = []Group{{Name: "A", Pin: "OUT", Members: []Pos{{1, 1}, {1, 2}, {2, 1}, {2, 2}}}}

	l, err := assembler(t, cfg, verify.NewAnalytic(cfg.Process)).Assemble(context.Background(), s, unit, dummy)
	require.NoError(t, err)
	assert.True(t, l.Report.Pass, l.Report.Text)
	assert.Len(t, l.Segments, 4)
	assert.Zero(t, l.Fixes)
}

func TestAssembleLeavesSpecUntouched(t *testing.T) {
	cfg, unit, dummy := cells(t, true)
	cfg.Array.DummySentinel = "X"
	s := grid("X X X", "X A X", "X X X")
	before := s.Clone()

	a := assembler(t, cfg, &checker{})
	layouts := make([]*Layout, 2)
	var wg sync.WaitGroup
	for i := range layouts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l, err := a.Assemble(context.Background(), s, unit, dummy)
			assert.NoError(t, err)
			layouts[i] = l
		}()
	}
	wg.Wait()

	assert.Equal(t, before, s)
	assert.Empty(t, s.Sentinel)
	assert.Nil(t, s.Groups)
	for _, l := range layouts {
		require.NotNil(t, l)
		assert.NotSame(t, s, l.Spec)
		assert.Equal(t, "X", l.Spec.Sentinel)
		assert.Equal(t, []Group{{Name: "A", Members: []Pos{{1, 1}}}}, l.Spec.Groups)
	}
	assert.Equal(t, draw.Digest(layouts[0].Primitives), draw.Digest(layouts[1].Primitives))
}
