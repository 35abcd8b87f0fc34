// Package optim drives a unit cell towards a target capacitance through a
// bounded sequence of synthesize, check and extract rounds.
package optim

import (
	"fmt"
	"math"

	"github.com/xoviat/capsynth/lib/draw"
	"github.com/xoviat/capsynth/lib/geom"
	"github.com/xoviat/capsynth/lib/verify"
)

type State int

const (
	Init State = iota
	Drafted
	Checked
	Extracted
	Evaluated
	Converged
	Exhausted
)

var stateNames = [...]string{"init", "drafted", "checked", "extracted", "evaluated", "converged", "exhausted"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// Outcome is how a round ended.
type Outcome string

const (
	OutcomeConverged          Outcome = "converged"
	OutcomeEvaluated          Outcome = "evaluated"
	OutcomeRuleFailure        Outcome = "rule-failure"
	OutcomeParameterViolation Outcome = "parameter-violation"
	OutcomeTimeout            Outcome = "timeout"
	OutcomeBackendError       Outcome = "backend-error"
)

// Reason is why a run stopped.
type Reason string

const (
	ReasonConverged      Reason = "converged"
	ReasonIterationLimit Reason = "iteration-limit"
)

// Phase is the step policy used to draft a round.
type Phase string

const (
	PhaseInitial Phase = "initial"
	PhaseCoarse  Phase = "coarse"
	PhaseFine    Phase = "fine"
	PhaseRetry   Phase = "retry"
)

// Round is the immutable record of one iteration. Measured and
// ErrorPercent are only meaningful when HasMeasurement is set.
type Round struct {
	Index      int
	Phase      Phase
	Params     geom.ParameterSet
	Geometry   *geom.Geometry
	Primitives []draw.Primitive

	RuleReport      *verify.RuleReport
	ParasiticReport *verify.ParasiticReport

	HasMeasurement bool
	Measured       float64
	ErrorPercent   float64

	RuleFixes int
	Touched   []string
	Outcome   Outcome
	Trace     []State
	Err       error
}

// Successful reports whether the round produced a measurement.
func (r *Round) Successful() bool {
	return r.HasMeasurement
}

// ErrorPercent is |measured - target| / target in percent.
func ErrorPercent(measured, target float64) float64 {
	return math.Abs(measured-target) / target * 100
}

// Result is the full history of a run.
type Result struct {
	Variant geom.Variant
	Target  float64
	Reason  Reason
	// Best is the index into Rounds of the lowest error, -1 when no round
	// was measured.
	Best   int
	Rounds []Round
}

// BestRound returns the round with the lowest error, or nil.
func (r *Result) BestRound() *Round {
	if r.Best < 0 || r.Best >= len(r.Rounds) {
		return nil
	}
	return &r.Rounds[r.Best]
}

func (r *Result) Converged() bool {
	return r.Reason == ReasonConverged
}

// best folds over rounds keeping the first minimum error.
func best(rounds []Round) int {
	idx := -1
	for i := range rounds {
		if !rounds[i].HasMeasurement {
			continue
		}
		if idx < 0 || rounds[i].ErrorPercent < rounds[idx].ErrorPercent {
			idx = i
		}
	}
	return idx
}
