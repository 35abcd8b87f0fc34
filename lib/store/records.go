package store

import (
	"fmt"
	"time"

	"github.com/xoviat/capsynth/lib/array"
	"github.com/xoviat/capsynth/lib/flow"
	"github.com/xoviat/capsynth/lib/geom"
	"github.com/xoviat/capsynth/lib/optim"
)

// RunRecord is the stored summary of a design run.
type RunRecord struct {
	ID       string
	Cell     string
	Variant  string
	Target   float64
	Started  time.Time
	Finished time.Time

	Reason       string
	Converged    bool
	Restarts     int
	Rounds       int
	Params       geom.ParameterSet
	Measured     float64
	ErrorPercent float64
	Constraints  map[string]float64
	Dummy        bool
	Arrays       []string
	Err          string
}

// RoundRecord is one optimizer round. Attempt counts optimizer restarts
// within the run.
type RoundRecord struct {
	Run            string
	Cell           string
	Attempt        int
	Index          int
	Phase          string
	Outcome        string
	Params         geom.ParameterSet
	HasMeasurement bool
	Measured       float64
	ErrorPercent   float64
	RuleFixes      int
	Touched        []string
	Rules          string
	Parasitics     string
	Err            string
}

func (r *RoundRecord) Key() string {
	return roundKey(r.Run, r.Attempt, r.Index)
}

func roundKey(run string, attempt, index int) string {
	return fmt.Sprintf("%s/%02d/%02d", run, attempt, index)
}

// ArrayRecord is an assembled array, keyed by run and array name.
type ArrayRecord struct {
	Run      string
	Spec     array.Spec
	PitchX   float64
	PitchY   float64
	Regions  []array.Region
	Segments int
	Removed  int
	Fixes    int
	Pass     bool
	Report   string
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func newRunRecord(run *flow.Run, err error) *RunRecord {
	rec := &RunRecord{
		ID:          run.ID,
		Cell:        run.Cell,
		Variant:     run.Variant.String(),
		Target:      run.Target,
		Started:     run.Started,
		Finished:    run.Finished,
		Restarts:    run.Restarts(),
		Constraints: map[string]float64(run.Constraints.Merge(nil)),
		Dummy:       run.Dummy != nil,
		Err:         errText(err),
	}
	for _, a := range run.Attempts {
		if a.Result != nil {
			rec.Rounds += len(a.Result.Rounds)
		}
	}
	if res := run.Result; res != nil {
		rec.Reason = string(res.Reason)
		rec.Converged = res.Converged()
		if best := res.BestRound(); best != nil {
			rec.Params = best.Params.Clone()
			rec.Measured = best.Measured
			rec.ErrorPercent = best.ErrorPercent
		}
	}
	for _, l := range run.Arrays {
		rec.Arrays = append(rec.Arrays, l.Spec.Name)
	}
	return rec
}

func newRoundRecord(run, cell string, attempt int, r *optim.Round) *RoundRecord {
	rec := &RoundRecord{
		Run:            run,
		Cell:           cell,
		Attempt:        attempt,
		Index:          r.Index,
		Phase:          string(r.Phase),
		Outcome:        string(r.Outcome),
		Params:         r.Params.Clone(),
		HasMeasurement: r.HasMeasurement,
		Measured:       r.Measured,
		ErrorPercent:   r.ErrorPercent,
		RuleFixes:      r.RuleFixes,
		Touched:        append([]string(nil), r.Touched...),
		Err:            errText(r.Err),
	}
	if r.RuleReport != nil {
		rec.Rules = r.RuleReport.Text
	}
	if r.ParasiticReport != nil {
		rec.Parasitics = r.ParasiticReport.Text
	}
	return rec
}

func (r *ArrayRecord) Key() string {
	return r.Run + "/" + r.Spec.Name
}

// Placements rebuilds the placement list of the array.
func (r *ArrayRecord) Placements() []array.Placement {
	g := array.Grid{Rows: r.Spec.Rows, Cols: r.Spec.Cols, PitchX: r.PitchX, PitchY: r.PitchY}
	return g.Placements(r.Regions)
}

func newArrayRecord(run string, l *array.Layout) *ArrayRecord {
	rec := &ArrayRecord{
		Run:      run,
		Spec:     *l.Spec,
		PitchX:   l.Grid.PitchX,
		PitchY:   l.Grid.PitchY,
		Regions:  append([]array.Region(nil), l.Regions...),
		Segments: len(l.Segments),
		Removed:  len(l.Removed),
		Fixes:    l.Fixes,
	}
	if l.Report != nil {
		rec.Pass = l.Report.Pass
		rec.Report = l.Report.Text
	}
	return rec
}
