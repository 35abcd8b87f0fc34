package flow

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xoviat/capsynth/lib/array"
	"github.com/xoviat/capsynth/lib/config"
	"github.com/xoviat/capsynth/lib/geom"
	"github.com/xoviat/capsynth/lib/optim"
	"github.com/xoviat/capsynth/lib/verify"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const pass = "RESULT PASS 0\n"

// backend passes every unit cell, answers dummy checks from a list whose
// last entry repeats and always measures the target.
type backend struct {
	mu     sync.Mutex
	dummy  []string
	checks int
	cells  []string
}

func (b *backend) Name() string { return "fake" }

func (b *backend) CheckRules(ctx context.Context, l verify.Layout) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !strings.HasSuffix(l.Name, "-dummy") {
		b.cells = append(b.cells, l.Name)
		return pass, nil
	}
	i := b.checks
	b.checks++
	if len(b.dummy) == 0 {
		return pass, nil
	}
	if i >= len(b.dummy) {
		i = len(b.dummy) - 1
	}
	return b.dummy[i], nil
}

func (b *backend) ExtractParasitics(ctx context.Context, l verify.Layout) (string, error) {
	return "CAP PLUS GND 10\nRESULT OK\n", nil
}

func spacingViolation() string {
	v := verify.Violation{Rule: verify.RuleMinSpacing, Layer: "M1", Index: 3, Role: geom.RoleFinger, Value: 0.09, Limit: 0.1}
	return v.String() + "\nRESULT FAIL 1\n"
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Cell.Name = "cap"
	cfg.Cell.Target = 10
	cfg.Cell.Initial = &geom.ParameterSet{
		Count:       8,
		Length:      4,
		Width:       0.12,
		Spacing:     0.12,
		FrameWidth:  0.4,
		ShieldGap:   0.2,
		ShieldWidth: 0.4,
		Layers:      []string{"M1", "M2", "M3"},
	}
	return cfg
}

func newFlow(t *testing.T, cfg *config.Config, b verify.Backend) *Flow {
	log := zaptest.NewLogger(t)
	return New(verify.NewGateway(b, log), cfg, log)
}

func TestCell(t *testing.T) {
	b := &backend{}
	run, err := newFlow(t, testConfig(), b).Cell(context.Background())
	require.NoError(t, err)

	_, err = uuid.Parse(run.ID)
	assert.NoError(t, err)
	assert.Equal(t, "cap", run.Cell)
	assert.Equal(t, 0, run.Restarts())
	assert.True(t, run.Result.Converged())
	require.NotNil(t, run.Unit)
	require.NotNil(t, run.Dummy)
	assert.True(t, run.Dummy.Dummy)
	assert.True(t, run.DummyReport.Pass)
	assert.False(t, run.Finished.Before(run.Started))
	assert.Equal(t, 1, b.checks)
}

func TestDummyFailureRestartsWithConstraint(t *testing.T) {
	b := &backend{dummy: []string{spacingViolation(), pass}}
	run, err := newFlow(t, testConfig(), b).Cell(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, run.Restarts())
	assert.Equal(t, optim.Constraints{geom.FieldSpacing: 0.135}, run.Constraints)
	assert.Empty(t, run.Attempts[0].Constraints)
	assert.Equal(t, 0.12, run.Attempts[0].Result.BestRound().Params.Spacing)
	assert.Equal(t, 0.135, run.Unit.Params.Spacing)
	assert.NotNil(t, run.Dummy)
	assert.Equal(t, 2, b.checks)
}

func TestDummyFailureIsBounded(t *testing.T) {
	cfg := testConfig()
	cfg.Flow.MaxRestarts = 1
	b := &backend{dummy: []string{spacingViolation()}}

	run, err := newFlow(t, cfg, b).Cell(context.Background())
	assert.True(t, errors.Is(err, ErrDummyInvalid))
	assert.Len(t, run.Attempts, 2)
	assert.Nil(t, run.Dummy)
	assert.False(t, run.DummyReport.Pass)

	_, err = newFlow(t, cfg, b).Array(context.Background(), run, &array.Spec{})
	assert.True(t, errors.Is(err, ErrNoCell))
}

func TestDegenerateDummyGrowsLength(t *testing.T) {
	cfg := testConfig()
	cfg.Cell.Initial.Length = 0.1
	b := &backend{}

	run, err := newFlow(t, cfg, b).Cell(context.Background())
	require.NoError(t, err)
	// 0.1 grows to 0.11, which still leaves no finger, then to 0.125
	assert.Equal(t, 2, run.Restarts())
	assert.Equal(t, optim.Constraints{geom.FieldLength: 0.125}, run.Constraints)
	assert.Equal(t, 0.125, run.Unit.Params.Length)
	assert.Equal(t, 1, b.checks)
}

func TestStartingConstraints(t *testing.T) {
	f := newFlow(t, testConfig(), &backend{}).WithConstraints(optim.Constraints{geom.FieldWidth: 0.2})
	run, err := f.Cell(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.2, run.Unit.Params.Width)
}

func TestOptimizerErrorKeepsRun(t *testing.T) {
	cfg := testConfig()
	cfg.Cell.Target = -1
	run, err := newFlow(t, cfg, &backend{}).Cell(context.Background())
	assert.True(t, errors.Is(err, optim.ErrTarget))
	require.NotNil(t, run)
	assert.Len(t, run.Attempts, 1)
}

func TestDesignAnalytic(t *testing.T) {
	cfg := testConfig()
	f := newFlow(t, cfg, verify.NewAnalytic(cfg.Process))

	spec := &array.Spec{
		Name: "quad",
		Rows: 4,
		Cols: 4,
		Cells: [][]string{
			{"D", "D", "D", "D"},
			{"D", "A", "A", "D"},
			{"D", "A", "A", "D"},
			{"D", "D", "D", "D"},
		},
	}
	run, err := f.Design(context.Background(), spec)
	require.NoError(t, err)

	assert.True(t, run.Result.Converged())
	require.Len(t, run.Arrays, 1)
	l := run.Arrays[0]
	assert.True(t, l.Report.Pass, l.Report.Text)
	assert.Len(t, l.Segments, 4)
	assert.Len(t, l.Regions, 5)
}

func TestDesignRejectsArraysWithoutShield(t *testing.T) {
	cfg := testConfig()
	cfg.Cell.Shield = false
	b := &backend{}
	spec := &array.Spec{Name: "row", Rows: 1, Cols: 2, Cells: [][]string{{"A", "A"}}}

	run, err := newFlow(t, cfg, b).Design(context.Background(), spec)
	assert.True(t, errors.Is(err, ErrNoFrame))
	require.NotNil(t, run)
	assert.Empty(t, run.Attempts)
	assert.Empty(t, b.cells)

	// a bare cell still designs without the shield
	run, err = newFlow(t, cfg, b).Design(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, run.Unit)
}

func TestArraysConcurrently(t *testing.T) {
	f := newFlow(t, testConfig(), &backend{})
	run, err := f.Cell(context.Background())
	require.NoError(t, err)

	specs := []*array.Spec{
		{Name: "row", Rows: 1, Cols: 3, Cells: [][]string{{"A", "A", "A"}}},
		{Name: "col", Rows: 3, Cols: 1, Cells: [][]string{{"A"}, {"D"}, {"B"}}},
	}
	layouts, err := f.Arrays(context.Background(), run, specs)
	require.NoError(t, err)
	require.Len(t, layouts, 2)
	assert.Equal(t, "row", layouts[0].Spec.Name)
	assert.Len(t, layouts[0].Segments, 2)
	assert.Empty(t, layouts[1].Segments)
	assert.Len(t, run.Arrays, 2)

	// one spec listed twice assembles twice without sharing state
	same := &array.Spec{Name: "same", Rows: 1, Cols: 2, Cells: [][]string{{"A", "A"}}}
	layouts, err = f.Arrays(context.Background(), run, []*array.Spec{same, same})
	require.NoError(t, err)
	require.Len(t, layouts, 2)
	assert.Empty(t, same.Groups)
	assert.Empty(t, same.Sentinel)
	assert.NotSame(t, layouts[0].Spec, layouts[1].Spec)
	assert.Len(t, run.Arrays, 4)

	_, err = f.Array(context.Background(), run, &array.Spec{Name: "bad", Rows: 1, Cols: 1, Cells: [][]string{{""}}})
	assert.True(t, errors.Is(err, array.ErrSpec))
	assert.Len(t, run.Arrays, 4)
}

func TestCellsFromStoredParameters(t *testing.T) {
	cfg := testConfig()
	unit, dummy, err := Cells(cfg, geom.InterleavedFinger, *cfg.Cell.Initial)
	require.NoError(t, err)
	assert.Equal(t, unit.Width(), dummy.Width())
	assert.True(t, dummy.Dummy)

	bad := cfg.Cell.Initial.Clone()
	bad.Count = 1
	_, _, err = Cells(cfg, geom.InterleavedFinger, bad)
	assert.True(t, errors.Is(err, geom.ErrParameterViolation))
}
