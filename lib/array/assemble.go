package array

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/xoviat/capsynth/lib/config"
	"github.com/xoviat/capsynth/lib/draw"
	"github.com/xoviat/capsynth/lib/geom"
	"github.com/xoviat/capsynth/lib/verify"
)

// Layout is an assembled array.
type Layout struct {
	Spec       *Spec
	Grid       Grid
	Regions    []Region
	Segments   []Segment
	Removed    []Segment
	RouteLayer string
	Layers     []string
	Masters    map[string][]draw.Primitive
	Primitives []draw.Primitive
	Report     *verify.RuleReport
	Fixes      int
}

// Verify is the layout handed to the rule checker.
func (l *Layout) Verify() verify.Layout {
	return verify.Layout{
		Name:       l.Spec.Name,
		Layers:     l.Layers,
		Primitives: l.Primitives,
		Masters:    l.Masters,
		Global:     []string{geom.NetGround, geom.NetShield},
	}
}

func (l *Layout) Placements() []Placement {
	return l.Grid.Placements(l.Regions)
}

type Assembler struct {
	gateway  *verify.Gateway
	rules    geom.Rules
	settings config.Array
	terminal string
	log      *zap.Logger
}

func NewAssembler(gw *verify.Gateway, cfg *config.Config, log *zap.Logger) *Assembler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Assembler{
		gateway:  gw,
		rules:    cfg.Process,
		settings: cfg.Array,
		terminal: cfg.Cell.Terminal,
		log:      log.Named("array"),
	}
}

// Assemble places, routes and verifies spec using unit for functional
// cells and dummy for the rest.
func (a *Assembler) Assemble(ctx context.Context, spec *Spec, unit, dummy *geom.Geometry) (*Layout, error) {
	spec, err := spec.Resolve(a.settings.DummySentinel)
	if err != nil {
		return nil, err
	}

	regions, err := MergeAll(ctx, spec)
	if err != nil {
		return nil, err
	}

	grid, err := NewGrid(spec, unit, dummy)
	if err != nil {
		return nil, err
	}

	router, err := NewRouter(grid, a.rules, unit, a.terminal, a.settings.RouteLayer, a.settings.RouteWidth)
	if err != nil {
		return nil, err
	}

	layers := append([]string(nil), unit.Layers...)
	layers = append(layers, router.Stack[1:]...)

	l := &Layout{
		Spec:       spec,
		Grid:       grid,
		Regions:    regions,
		Segments:   router.Segments(spec),
		RouteLayer: router.Layer,
		Layers:     layers,
		Masters: map[string][]draw.Primitive{
			MasterUnit:  draw.Emit(unit),
			MasterDummy: draw.Emit(dummy),
		},
	}
	if err := a.emit(l, router); err != nil {
		return nil, err
	}

	a.log.Info("placed array",
		zap.String("array", spec.Name),
		zap.Int("rows", spec.Rows),
		zap.Int("cols", spec.Cols),
		zap.Int("regions", len(regions)),
		zap.Int("segments", len(l.Segments)),
		zap.Float64("pitch_x", grid.PitchX),
		zap.Float64("pitch_y", grid.PitchY))

	return l, a.verify(ctx, l, router)
}

// emit rebuilds the primitive list from the current segments.
func (a *Assembler) emit(l *Layout, router *Router) error {
	var prims, routing []draw.Primitive
	for _, reg := range l.Regions {
		prims = append(prims, l.Grid.Instance(reg))
	}

	for _, seg := range l.Segments {
		routing = append(routing, router.Path(seg))
	}
	for _, g := range l.Spec.Groups {
		for _, m := range g.Members {
			routing = append(routing, router.Landing(g.Name, m)...)
		}
	}
	routing = append(routing, router.Labels(l.Spec)...)

	if err := checkIsolation(l.Spec, l.Grid, routing); err != nil {
		return err
	}

	l.Primitives = draw.Order(append(prims, routing...), l.Layers)
	return nil
}

// verify runs the rule check. Min-area violations on routing paths are
// fixed by deleting those paths, up to the configured number of passes;
// anything else needs a new cell.
func (a *Assembler) verify(ctx context.Context, l *Layout, router *Router) error {
	for {
		vl := l.Verify()
		report, err := a.gateway.CheckRules(ctx, vl)
		if err != nil {
			return errors.Wrap(err, "array rule check")
		}
		l.Report = report
		if report.Pass {
			return nil
		}

		flat := vl.Flat()
		doomed := map[string]bool{}
		for _, v := range report.Violations {
			if v.Index < 0 || v.Index >= len(flat) {
				return errors.Wrapf(ErrRedesign, "%s violation at unknown primitive %d", v.Rule, v.Index)
			}
			p := flat[v.Index]
			if v.Rule != verify.RuleMinArea || p.Kind != draw.KindPath || p.Role != geom.RoleRoute {
				return errors.Wrapf(ErrRedesign, "%s on %s %s layer %s", v.Rule, p.Role, p.Kind, p.Layer)
			}
			doomed[pathKey(p)] = true
		}

		if l.Fixes >= a.settings.MaxFixes {
			return errors.Wrapf(ErrRedesign, "routing min-area violations remain after %d fixes", l.Fixes)
		}
		l.Fixes++

		var kept []Segment
		for _, seg := range l.Segments {
			if doomed[pathKey(router.Path(seg).Rounded())] {
				l.Removed = append(l.Removed, seg)
				a.log.Warn("removed routing segment",
					zap.String("group", seg.Group),
					zap.Stringer("from", seg.A),
					zap.Stringer("to", seg.B))
				continue
			}
			kept = append(kept, seg)
		}
		if len(kept) == len(l.Segments) {
			return errors.Wrap(ErrRedesign, "min-area violations match no routing segment")
		}
		l.Segments = kept

		if err := a.emit(l, router); err != nil {
			return err
		}
	}
}

func pathKey(p draw.Primitive) string {
	return fmt.Sprintf("%s|%s|%v", p.Net, p.Layer, p.Points)
}
