package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xoviat/capsynth/lib/array"
	"github.com/xoviat/capsynth/lib/flow"
	"github.com/xoviat/capsynth/lib/geom"
	"github.com/xoviat/capsynth/lib/optim"
	"github.com/xoviat/capsynth/lib/verify"
)

func open(t *testing.T, path string) *Store {
	s, err := Open(path, zaptest.NewLogger(t))
	require.NoError(t, err)
	return s
}

func params(spacing float64) geom.ParameterSet {
	return geom.ParameterSet{Count: 8, Length: 4, Width: 0.12, Spacing: spacing, FrameWidth: 0.4, Layers: []string{"M1", "M2"}}
}

func sampleRun(cell string, started time.Time) *flow.Run {
	rounds := []optim.Round{
		{
			Index:      1,
			Phase:      optim.PhaseInitial,
			Params:     params(0.08),
			Outcome:    optim.OutcomeRuleFailure,
			RuleReport: &verify.RuleReport{Text: "VIOLATION rule=min_spacing layer=M1 index=3\nRESULT FAIL 1\n"},
			Err:        errors.Wrap(optim.ErrRuleCheck, "round 1"),
		},
		{
			Index:           2,
			Phase:           optim.PhaseFine,
			Params:          params(0.12),
			Outcome:         optim.OutcomeConverged,
			RuleReport:      &verify.RuleReport{Pass: true, Text: "RESULT PASS 0\n"},
			ParasiticReport: &verify.ParasiticReport{Text: "CAP PLUS GND 9.95898\nRESULT OK\n"},
			HasMeasurement:  true,
			Measured:        9.95898,
			ErrorPercent:    0.4102,
		},
	}
	res := &optim.Result{Variant: geom.InterleavedFinger, Target: 10, Reason: optim.ReasonConverged, Best: 1, Rounds: rounds}
	return &flow.Run{
		ID:          uuid.New().String(),
		Cell:        cell,
		Variant:     geom.InterleavedFinger,
		Target:      10,
		Started:     started,
		Finished:    started.Add(time.Second),
		Constraints: optim.Constraints{geom.FieldSpacing: 0.12},
		Attempts:    []flow.Attempt{{Result: res}},
		Result:      res,
	}
}

func TestSaveAndLoadRuns(t *testing.T) {
	s := open(t, filepath.Join(t.TempDir(), "capsynth.db"))
	defer s.Close()

	now := time.Now()
	a := sampleRun("alpha", now)
	b := sampleRun("beta", now.Add(time.Minute))
	require.NoError(t, s.SaveRun(b, nil))
	require.NoError(t, s.SaveRun(a, errors.New("boom")))

	runs, err := s.Runs("")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, a.ID, runs[0].ID)
	assert.Equal(t, b.ID, runs[1].ID)

	rec, err := s.Run(a.ID)
	require.NoError(t, err)
	assert.Equal(t, "alpha", rec.Cell)
	assert.Equal(t, "interleaved-finger", rec.Variant)
	assert.Equal(t, "boom", rec.Err)
	assert.True(t, rec.Converged)
	assert.Equal(t, 2, rec.Rounds)
	assert.Equal(t, 0.12, rec.Params.Spacing)
	assert.Equal(t, 9.95898, rec.Measured)
	assert.Equal(t, map[string]float64{geom.FieldSpacing: 0.12}, rec.Constraints)

	latest, err := s.Latest("beta")
	require.NoError(t, err)
	assert.Equal(t, b.ID, latest.ID)
	_, err = s.Latest("gamma")
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = s.Run("missing")
	assert.True(t, errors.Is(err, ErrNotFound))

	rounds, err := s.Rounds(a.ID)
	require.NoError(t, err)
	require.Len(t, rounds, 2)
	assert.Equal(t, 1, rounds[0].Index)
	assert.Equal(t, "rule-failure", rounds[0].Outcome)
	assert.Contains(t, rounds[0].Err, "rule check failed")
	assert.Contains(t, rounds[1].Parasitics, "CAP PLUS GND")
	assert.Equal(t, []string{"M1", "M2"}, rounds[1].Params.Layers)
}

func TestSearchReports(t *testing.T) {
	s := open(t, filepath.Join(t.TempDir(), "capsynth.db"))
	defer s.Close()

	a := sampleRun("alpha", time.Now())
	a.Arrays = []*array.Layout{layout("quadrant")}
	require.NoError(t, s.SaveRun(a, nil))

	n, err := s.Reindex()
	require.NoError(t, err)
	assert.Zero(t, n)

	hits, err := s.Search("min_spacing", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "round", hits[0].Kind)
	assert.Equal(t, a.ID, hits[0].Run)
	assert.Equal(t, "alpha", hits[0].Cell)

	doc, err := s.Document(hits[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 1, doc.(*RoundRecord).Index)

	hits, err = s.Search("quadrant", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "array", hits[0].Kind)

	arrays, err := s.Arrays(a.ID)
	require.NoError(t, err)
	require.Len(t, arrays, 1)
	assert.True(t, arrays[0].Pass)
	assert.Equal(t, 2.6, arrays[0].PitchX)

	hits, err = s.Search("nothingmatchesthis", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	_, err = s.Document("bogus")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func layout(name string) *array.Layout {
	return &array.Layout{
		Spec:    &array.Spec{Name: name, Rows: 1, Cols: 2, Cells: [][]string{{"A", "D"}}},
		Grid:    array.Grid{Rows: 1, Cols: 2, PitchX: 2.6, PitchY: 5.72},
		Regions: []array.Region{{}, {StartCol: 1, EndCol: 1, Class: array.Dummy}},
		Report:  &verify.RuleReport{Pass: true, Text: "RESULT PASS 0\n"},
	}
}

func TestSaveArrayLater(t *testing.T) {
	s := open(t, filepath.Join(t.TempDir(), "capsynth.db"))
	defer s.Close()

	a := sampleRun("alpha", time.Now())
	a.Arrays = []*array.Layout{layout("first")}
	require.NoError(t, s.SaveRun(a, nil))
	require.NoError(t, s.SaveArray(a.ID, layout("second")))
	require.NoError(t, s.SaveArray(a.ID, layout("second")))
	assert.True(t, errors.Is(s.SaveArray("missing", layout("x")), ErrNotFound))

	rec, err := s.Run(a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, rec.Arrays)

	arrays, err := s.Arrays(a.ID)
	require.NoError(t, err)
	require.Len(t, arrays, 2)
	assert.Equal(t, "second", arrays[1].Spec.Name)

	placements := arrays[0].Placements()
	require.Len(t, placements, 2)
	assert.Equal(t, array.MasterDummy, placements[1].Master)
	assert.Equal(t, 2.6, placements[1].Origin.X)

	hits, err := s.Search("second", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, a.ID+"/second", hits[0].ID[len("array:"):])
}

func TestConstraints(t *testing.T) {
	s := open(t, filepath.Join(t.TempDir(), "capsynth.db"))
	defer s.Close()

	c, err := s.Constraints("alpha")
	require.NoError(t, err)
	assert.Empty(t, c)

	require.NoError(t, s.SetConstraint("alpha", geom.FieldSpacing, 0.2))
	require.NoError(t, s.SetConstraint("alpha", geom.FieldSpacing, 0.15))
	require.NoError(t, s.SetConstraint("alpha", geom.FieldLayers, 4))
	assert.True(t, errors.Is(s.SetConstraint("alpha", "colour", 1), ErrField))

	c, err = s.Constraints("alpha")
	require.NoError(t, err)
	assert.Equal(t, optim.Constraints{geom.FieldSpacing: 0.2, geom.FieldLayers: 4}, c)

	require.NoError(t, s.ClearConstraints("alpha"))
	c, err = s.Constraints("alpha")
	require.NoError(t, err)
	assert.Empty(t, c)
}

func TestReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "capsynth.db")
	s := open(t, path)
	a := sampleRun("alpha", time.Now())
	require.NoError(t, s.SaveRun(a, nil))
	require.NoError(t, s.Close())

	s = open(t, path)
	defer s.Close()
	rec, err := s.Run(a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, rec.ID)

	hits, err := s.Search("min_spacing", 10)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}
