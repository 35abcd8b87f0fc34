// Package flow runs a complete design: the optimizer finds the unit cell,
// the dummy twin is derived and checked, and the array is assembled from
// both. A dummy that fails its rule check folds its violations back into
// the optimizer as constraints and the cell is designed again.
package flow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xoviat/capsynth/lib/array"
	"github.com/xoviat/capsynth/lib/config"
	"github.com/xoviat/capsynth/lib/draw"
	"github.com/xoviat/capsynth/lib/geom"
	"github.com/xoviat/capsynth/lib/optim"
	"github.com/xoviat/capsynth/lib/verify"
)

var (
	ErrDummyInvalid = errors.New("flow: dummy cell fails rule check")
	ErrNoCell       = errors.New("flow: run has no unit cell")
	ErrNoFrame      = errors.New("flow: arrays need the shield frame (cell.shield)")
)

// Attempt is one optimizer run inside a design run.
type Attempt struct {
	Constraints optim.Constraints
	Result      *optim.Result
	Err         error
}

// Run is one design run. It is identified by a random ID and records every
// optimizer attempt.
type Run struct {
	ID       string
	Cell     string
	Variant  geom.Variant
	Target   float64
	Started  time.Time
	Finished time.Time

	Constraints optim.Constraints
	Attempts    []Attempt

	Result      *optim.Result
	Unit        *geom.Geometry
	Dummy       *geom.Geometry
	DummyReport *verify.RuleReport

	Arrays []*array.Layout
}

func (r *Run) Restarts() int {
	if len(r.Attempts) == 0 {
		return 0
	}
	return len(r.Attempts) - 1
}

// Flow drives one cell configuration.
type Flow struct {
	gateway     *verify.Gateway
	cfg         *config.Config
	constraints optim.Constraints
	log         *zap.Logger
}

func New(gw *verify.Gateway, cfg *config.Config, log *zap.Logger) *Flow {
	if log == nil {
		log = zap.NewNop()
	}
	return &Flow{
		gateway: gw,
		cfg:     cfg,
		log:     log,
	}
}

// WithConstraints returns a copy of f whose runs start from c.
func (f *Flow) WithConstraints(c optim.Constraints) *Flow {
	cp := *f
	cp.constraints = f.constraints.Merge(c)
	return &cp
}

func (f *Flow) newRun() *Run {
	return &Run{
		ID:          uuid.New().String(),
		Cell:        f.cfg.Cell.Name,
		Variant:     f.cfg.Cell.Variant,
		Target:      f.cfg.Cell.Target,
		Started:     time.Now(),
		Constraints: f.constraints.Merge(nil),
	}
}

// Cell designs the unit cell and its dummy. The run is returned even on
// error so partial history can be kept.
func (f *Flow) Cell(ctx context.Context) (*Run, error) {
	run := f.newRun()
	defer func() { run.Finished = time.Now() }()
	return run, f.cell(ctx, run)
}

func (f *Flow) cell(ctx context.Context, run *Run) error {
	log := f.log.Named("flow").With(zap.String("run", run.ID), zap.String("cell", run.Cell))
	for attempt := 0; ; attempt++ {
		opt := optim.New(f.gateway, f.cfg, f.log).WithConstraints(run.Constraints)
		res, err := opt.Run(ctx, f.cfg.Cell.Target)
		run.Attempts = append(run.Attempts, Attempt{Constraints: run.Constraints, Result: res, Err: err})
		run.Result = res
		if err != nil {
			return errors.Wrap(err, "optimize")
		}

		best := res.BestRound()
		if best == nil || best.Geometry == nil {
			return errors.Wrap(optim.ErrNoMeasurement, "optimize")
		}
		run.Unit, run.Dummy, run.DummyReport = best.Geometry, nil, nil

		log.Info("unit cell",
			zap.Int("attempt", attempt),
			zap.String("reason", string(res.Reason)),
			zap.Int("round", best.Index),
			zap.Float64("measured", best.Measured),
			zap.Float64("error_percent", best.ErrorPercent))

		floors, err := f.dummy(ctx, run)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrDummyInvalid) {
			return err
		}
		if attempt >= f.cfg.Flow.MaxRestarts {
			return errors.Wrapf(err, "after %d restarts", attempt)
		}

		run.Constraints = run.Constraints.Merge(floors)
		log.Warn("restarting optimizer",
			zap.Int("attempt", attempt+1),
			zap.Error(err),
			zap.Any("constraints", run.Constraints))
	}
}

// dummy derives and checks the dummy of run.Unit. On failure it returns
// the constraints that should cure it.
func (f *Flow) dummy(ctx context.Context, run *Run) (optim.Constraints, error) {
	p := run.Unit.Params
	d, err := geom.Dummy(run.Unit)
	if err != nil {
		var pv *geom.ParameterViolation
		if errors.As(err, &pv) {
			return optim.Grow(p, f.cfg.Process, geom.FieldLength, 0), errors.Wrapf(ErrDummyInvalid, "%s", pv)
		}
		return nil, errors.Wrap(err, "derive dummy")
	}

	report, err := f.gateway.CheckRules(ctx, verify.Layout{
		Name:       run.Cell + "-dummy",
		Layers:     d.Layers,
		Primitives: draw.Emit(d),
	})
	if err != nil {
		return nil, errors.Wrap(err, "dummy rule check")
	}
	run.DummyReport = report
	if !report.Pass {
		return optim.Floors(p, f.cfg.Process, report), errors.Wrapf(ErrDummyInvalid, "%v", report.Rules())
	}

	run.Dummy = d
	return nil, nil
}

// Array assembles spec from the cells of run.
func (f *Flow) Array(ctx context.Context, run *Run, spec *array.Spec) (*array.Layout, error) {
	layouts, err := f.Arrays(ctx, run, []*array.Spec{spec})
	if len(layouts) == 0 {
		return nil, err
	}
	return layouts[0], err
}

// Arrays assembles every spec from the cells of run concurrently. Layouts
// are added to run in spec order, failed ones included when the assembler
// got far enough to produce one.
func (f *Flow) Arrays(ctx context.Context, run *Run, specs []*array.Spec) ([]*array.Layout, error) {
	if run.Unit == nil || run.Dummy == nil {
		return nil, ErrNoCell
	}

	layouts := make([]*array.Layout, len(specs))
	g, gctx := errgroup.WithContext(ctx)
	for i, spec := range specs {
		g.Go(func() error {
			l, err := array.NewAssembler(f.gateway, f.cfg, f.log).Assemble(gctx, spec, run.Unit, run.Dummy)
			layouts[i] = l
			return errors.Wrapf(err, "array %s", spec.Name)
		})
	}
	err := g.Wait()

	var out []*array.Layout
	for _, l := range layouts {
		if l != nil {
			out = append(out, l)
		}
	}
	run.Arrays = append(run.Arrays, out...)
	run.Finished = time.Now()
	return out, err
}

// Design runs Cell and then Arrays. Array specs without a shielded cell are
// rejected before the optimizer starts.
func (f *Flow) Design(ctx context.Context, specs ...*array.Spec) (*Run, error) {
	if len(specs) > 0 && !f.cfg.Cell.Shield {
		run := f.newRun()
		run.Finished = run.Started
		return run, ErrNoFrame
	}
	run, err := f.Cell(ctx)
	if err != nil {
		return run, err
	}
	_, err = f.Arrays(ctx, run, specs)
	return run, err
}

// Cells rebuilds the unit cell and its dummy from stored parameters.
func Cells(cfg *config.Config, v geom.Variant, p geom.ParameterSet) (*geom.Geometry, *geom.Geometry, error) {
	unit, err := geom.Synthesize(p, cfg.Process, v, cfg.Cell.Shield)
	if err != nil {
		return nil, nil, errors.Wrap(err, "synthesize unit")
	}
	dummy, err := geom.Dummy(unit)
	if err != nil {
		return nil, nil, errors.Wrap(err, "derive dummy")
	}
	return unit, dummy, nil
}
