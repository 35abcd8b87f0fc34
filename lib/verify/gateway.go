// Package verify hands layouts to a rule-check and extraction backend and
// turns the backend's answer into structured reports.
package verify

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/xoviat/capsynth/lib/draw"
)

var ErrBackend = errors.New("verify: backend failed")

// Layout is what gets checked: a primitive list in emission order, the
// masters its instances refer to and the nets that stay global when
// instances are flattened.
type Layout struct {
	Name       string
	Layers     []string
	Primitives []draw.Primitive
	Masters    map[string][]draw.Primitive
	Global     []string
}

// Deck is the serializable form sent to external backends.
func (l Layout) Deck() draw.Deck {
	return draw.Deck{
		Name:       l.Name,
		Layers:     l.Layers,
		Primitives: l.Primitives,
		Masters:    l.Masters,
	}
}

// Flat returns the primitives with every instance expanded.
func (l Layout) Flat() []draw.Primitive {
	if len(l.Masters) == 0 {
		return l.Primitives
	}
	global := make(map[string]bool, len(l.Global))
	for _, n := range l.Global {
		global[n] = true
	}
	return draw.Flatten(l.Primitives, l.Masters, global)
}

// Backend runs the actual checks and answers with report text.
type Backend interface {
	Name() string
	CheckRules(ctx context.Context, l Layout) (string, error)
	ExtractParasitics(ctx context.Context, l Layout) (string, error)
}

// Gateway is the single entry point to a backend. Reports are returned
// complete; nothing is filtered on the way.
type Gateway struct {
	backend Backend
	log     *zap.Logger
}

func NewGateway(b Backend, log *zap.Logger) *Gateway {
	if log == nil {
		log = zap.NewNop()
	}
	return &Gateway{backend: b, log: log.Named("verify")}
}

func (g *Gateway) Backend() string {
	return g.backend.Name()
}

// CheckRules runs a design rule check on l.
func (g *Gateway) CheckRules(ctx context.Context, l Layout) (*RuleReport, error) {
	start := time.Now()
	text, err := g.backend.CheckRules(ctx, l)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.Wrapf(ctx.Err(), "rule check of %s", l.Name)
		}
		return nil, errors.Wrapf(ErrBackend, "rule check of %s: %s", l.Name, err)
	}

	report, err := ParseRuleReport(text)
	if err != nil {
		return nil, errors.Wrapf(err, "rule check of %s", l.Name)
	}

	g.log.Debug("rule check",
		zap.String("layout", l.Name),
		zap.String("backend", g.backend.Name()),
		zap.Bool("pass", report.Pass),
		zap.Int("violations", len(report.Violations)),
		zap.Strings("rules", report.Rules()),
		zap.Duration("took", time.Since(start)))
	return report, nil
}

// ExtractParasitics runs a capacitance extraction on l.
func (g *Gateway) ExtractParasitics(ctx context.Context, l Layout) (*ParasiticReport, error) {
	start := time.Now()
	text, err := g.backend.ExtractParasitics(ctx, l)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.Wrapf(ctx.Err(), "extraction of %s", l.Name)
		}
		return nil, errors.Wrapf(ErrBackend, "extraction of %s: %s", l.Name, err)
	}

	report, err := ParseParasiticReport(text)
	if err != nil {
		return nil, errors.Wrapf(err, "extraction of %s", l.Name)
	}

	g.log.Debug("extraction",
		zap.String("layout", l.Name),
		zap.String("backend", g.backend.Name()),
		zap.Int("entries", len(report.Entries)),
		zap.Duration("took", time.Since(start)))
	return report, nil
}

// sortedPair orders two net names so equal pairs share a key.
func sortedPair(a, b string) [2]string {
	p := []string{a, b}
	sort.Strings(p)
	return [2]string{p[0], p[1]}
}
