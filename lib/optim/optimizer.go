package optim

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/xoviat/capsynth/lib/config"
	"github.com/xoviat/capsynth/lib/draw"
	"github.com/xoviat/capsynth/lib/geom"
	"github.com/xoviat/capsynth/lib/verify"
)

var (
	ErrRuleCheck     = errors.New("optim: rule check failed")
	ErrNoMeasurement = errors.New("optim: no round produced a measurement")
	ErrTarget        = errors.New("optim: target must be positive")
)

// Optimizer runs the round loop for one cell. It holds no state between
// runs; every run starts from its initial draft.
type Optimizer struct {
	gateway  *verify.Gateway
	rules    geom.Rules
	cell     config.Cell
	settings config.Optimizer

	policy      Policy
	constraints Constraints
	log         *zap.Logger
}

func New(gw *verify.Gateway, cfg *config.Config, log *zap.Logger) *Optimizer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Optimizer{
		gateway:  gw,
		rules:    cfg.Process,
		cell:     cfg.Cell,
		settings: cfg.Optimizer,
		policy:   PolicyFor(cfg.Cell.Variant),
		log:      log.Named("optim").With(zap.String("cell", cfg.Cell.Name), zap.Stringer("variant", cfg.Cell.Variant)),
	}
}

// WithConstraints returns a copy of o that clamps every draft to c.
func (o *Optimizer) WithConstraints(c Constraints) *Optimizer {
	cp := *o
	cp.constraints = o.constraints.Merge(c)
	return &cp
}

func (o *Optimizer) Constraints() Constraints {
	return o.constraints.Merge(nil)
}

// Initial is the configured first draft, or the policy's minimal set.
func (o *Optimizer) Initial() geom.ParameterSet {
	if o.cell.Initial != nil {
		return o.cell.Initial.Clone()
	}
	return o.policy.Initial(o.rules, o.cell.Layers)
}

func (o *Optimizer) Run(ctx context.Context, target float64) (*Result, error) {
	if !(target > 0) {
		return nil, errors.Wrapf(ErrTarget, "got %g", target)
	}

	res := &Result{Variant: o.cell.Variant, Target: target, Best: -1}
	draft, err := o.constraints.Clamp(o.Initial(), o.rules)
	if err != nil {
		return nil, errors.Wrap(err, "clamp initial draft")
	}

	phase, step, last := PhaseInitial, o.settings.FineStep, geom.FieldLength
	settled := false
	for i := 1; i <= o.settings.Rounds; i++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		round := o.round(ctx, i, phase, draft, target, &last)
		if round.Outcome == OutcomeParameterViolation && i == 1 {
			return nil, errors.Wrap(round.Err, "initial draft")
		}
		if round.Outcome != OutcomeConverged && i == o.settings.Rounds {
			round.Trace = append(round.Trace, Exhausted)
		}

		res.Rounds = append(res.Rounds, round)
		res.Best = best(res.Rounds)
		o.logRound(&round)

		if err := ctx.Err(); err != nil {
			return res, err
		}
		if round.Outcome == OutcomeConverged {
			res.Reason = ReasonConverged
			return res, nil
		}

		if round.Outcome == OutcomeParameterViolation {
			step /= 2
		}
		if round.HasMeasurement && round.ErrorPercent <= o.settings.CoarseThreshold {
			settled = true
		}
		draft, phase = o.next(res, &round, target, step, settled, &last)
		if draft, err = o.constraints.Clamp(draft, o.rules); err != nil {
			return res, errors.Wrapf(err, "clamp draft for round %d", i+1)
		}
	}

	res.Reason = ReasonIterationLimit
	if res.Best < 0 {
		return res, ErrNoMeasurement
	}
	return res, nil
}

// next drafts the parameters of the round after r. Once a round has come
// within the coarse threshold, settled is set and coarse steps are over.
func (o *Optimizer) next(res *Result, r *Round, target, step float64, settled bool, last *string) (geom.ParameterSet, Phase) {
	switch {
	case r.Outcome == OutcomeParameterViolation:
		/*
			Restart from the best measured round with the halved step,
			or from the first draft when nothing was measured yet.
		*/
		base, ratio := res.Rounds[0].Params, 1.0
		if b := res.BestRound(); b != nil {
			base, ratio = b.Params, target/b.Measured
		}
		*last = geom.FieldLength
		return fine(base, o.rules, ratio, step), PhaseRetry

	case !r.HasMeasurement:
		return r.Params.Clone(), PhaseRetry

	case !settled && r.ErrorPercent > o.settings.CoarseThreshold:
		p, field := o.policy.Coarse(r.Params, o.rules, target/r.Measured)
		*last = field
		return p, PhaseCoarse
	}

	*last = geom.FieldLength
	return fine(r.Params, o.rules, target/r.Measured, step), PhaseFine
}

func (o *Optimizer) layout(index int, g *geom.Geometry, prims []draw.Primitive) verify.Layout {
	return verify.Layout{
		Name:       fmt.Sprintf("%s-r%d", o.cell.Name, index),
		Layers:     g.Layers,
		Primitives: prims,
	}
}

// deadline bounds one gateway call.
func (o *Optimizer) deadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.settings.RoundTimeout > 0 {
		return context.WithTimeout(ctx, o.settings.RoundTimeout)
	}
	return context.WithCancel(ctx)
}

func (o *Optimizer) failed(ctx context.Context, r *Round, err error) {
	r.Err = err
	r.Outcome = OutcomeBackendError
	if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		r.Outcome = OutcomeTimeout
	}
}

func (o *Optimizer) round(ctx context.Context, index int, phase Phase, params geom.ParameterSet, target float64, last *string) Round {
	r := Round{Index: index, Phase: phase, Params: params}
	trace := func(s State) {
		r.Trace = append(r.Trace, s)
		o.log.Debug("state", zap.Int("round", index), zap.Stringer("state", s))
	}

	var layout verify.Layout
	for {
		g, err := geom.Synthesize(params, o.rules, o.cell.Variant, o.cell.Shield)
		if err != nil {
			r.Params, r.Outcome, r.Err = params, OutcomeParameterViolation, err
			return r
		}
		trace(Drafted)

		prims := draw.Emit(g)
		r.Params, r.Geometry, r.Primitives = params, g, prims
		layout = o.layout(index, g, prims)

		cctx, cancel := o.deadline(ctx)
		report, err := o.gateway.CheckRules(cctx, layout)
		cancel()
		if err != nil {
			o.failed(ctx, &r, err)
			return r
		}
		r.RuleReport = report
		trace(Checked)

		if report.Pass {
			break
		}
		if r.RuleFixes >= o.settings.MaxRuleFixes {
			r.Outcome = OutcomeRuleFailure
			r.Err = errors.Wrapf(ErrRuleCheck, "round %d: %s after %d fixes", index, strings.Join(report.Rules(), ","), r.RuleFixes)
			return r
		}

		fixed, touched := o.fix(params, report, last)
		if len(touched) == 0 {
			r.Outcome = OutcomeRuleFailure
			r.Err = errors.Wrapf(ErrRuleCheck, "round %d: no dimension cures %s", index, strings.Join(report.Rules(), ","))
			return r
		}
		o.log.Info("rule fix",
			zap.Int("round", index),
			zap.Strings("rules", report.Rules()),
			zap.Strings("fields", touched))
		params = fixed
		r.RuleFixes++
		r.Touched = append(r.Touched, touched...)
	}

	cctx, cancel := o.deadline(ctx)
	pex, err := o.gateway.ExtractParasitics(cctx, layout)
	cancel()
	if err != nil {
		o.failed(ctx, &r, err)
		return r
	}
	r.ParasiticReport = pex
	trace(Extracted)

	measured, err := pex.Usable(o.cell.Terminal, o.cell.Ground)
	if err == nil && !(measured > 0) {
		err = errors.Wrapf(verify.ErrNoUsable, "measured %g", measured)
	}
	if err != nil {
		r.Outcome, r.Err = OutcomeBackendError, err
		return r
	}

	r.HasMeasurement = true
	r.Measured = measured
	r.ErrorPercent = ErrorPercent(measured, target)
	trace(Evaluated)

	if r.ErrorPercent <= o.settings.Tolerance {
		r.Outcome = OutcomeConverged
		trace(Converged)
	} else {
		r.Outcome = OutcomeEvaluated
	}
	return r
}

// fix nudges one dimension per violated rule. Rules without a dimension of
// their own fall back to the most recently touched one.
func (o *Optimizer) fix(p geom.ParameterSet, report *verify.RuleReport, last *string) (geom.ParameterSet, []string) {
	seen := map[string]bool{}
	var touched []string
	for _, v := range report.Violations {
		field := ruleField(v)
		if field == "" {
			field = *last
		}
		if seen[field] {
			continue
		}
		seen[field] = true

		limit := 0.0
		if v.Rule == verify.RuleMinWidth || v.Rule == verify.RuleMinSpacing {
			limit = v.Limit
		}
		next, ok := nudge(p, o.rules, field, limit)
		if !ok {
			continue
		}
		p = next
		touched = append(touched, field)
		*last = field
	}
	return p, touched
}

func (o *Optimizer) logRound(r *Round) {
	fields := []zap.Field{
		zap.Int("round", r.Index),
		zap.String("phase", string(r.Phase)),
		zap.String("outcome", string(r.Outcome)),
		zap.Int("rule_fixes", r.RuleFixes),
	}
	if r.HasMeasurement {
		fields = append(fields, zap.Float64("measured", r.Measured), zap.Float64("error_percent", r.ErrorPercent))
	}
	if r.Err != nil {
		fields = append(fields, zap.Error(r.Err))
		o.log.Warn("round failed", fields...)
		return
	}
	o.log.Info("round", fields...)
}
