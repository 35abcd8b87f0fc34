package optim

import (
	"math"
	"sort"

	"github.com/pkg/errors"

	"github.com/xoviat/capsynth/lib"
	"github.com/xoviat/capsynth/lib/geom"
	"github.com/xoviat/capsynth/lib/verify"
)

// Constraints are lower bounds per parameter field. The layers field
// bounds the layer count.
type Constraints map[string]float64

// Merge returns the union of c and o, keeping the larger floor.
func (c Constraints) Merge(o Constraints) Constraints {
	out := make(Constraints, len(c)+len(o))
	for k, v := range c {
		out[k] = v
	}
	for k, v := range o {
		if cur, ok := out[k]; !ok || v > cur {
			out[k] = v
		}
	}
	return out
}

func (c Constraints) fields() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clamp raises every constrained field of p to its floor. Layers are added
// from the process stack above the current top layer.
func (c Constraints) Clamp(p geom.ParameterSet, r geom.Rules) (geom.ParameterSet, error) {
	out := p.Clone()
	for _, field := range c.fields() {
		floor := c[field]
		if field == geom.FieldLayers {
			for float64(len(out.Layers)) < floor {
				if len(out.Layers) == 0 {
					return p, errors.Wrap(geom.ErrParameterViolation, "no layers to extend")
				}
				next, ok := r.Above(out.Layers[len(out.Layers)-1])
				if !ok {
					return p, errors.Wrapf(geom.ErrParameterViolation, "cannot reach %g layers", floor)
				}
				out.Layers = append(out.Layers, next)
			}
			continue
		}

		v, err := out.Get(field)
		if err != nil {
			return p, err
		}
		if v < floor {
			if field == geom.FieldCount {
				floor = math.Ceil(floor)
			} else {
				floor = lib.SnapUp(floor, r.Grid)
			}
			if out, err = out.With(field, floor); err != nil {
				return p, err
			}
		}
	}
	return out, nil
}

// Grow is the constraint that makes field grow by one nudge from its
// value in p. limit is the smallest acceptable value, zero when unknown.
func Grow(p geom.ParameterSet, r geom.Rules, field string, limit float64) Constraints {
	next, ok := nudge(p, r, field, limit)
	if !ok {
		return Constraints{}
	}
	v, err := next.Get(field)
	if err != nil {
		return Constraints{}
	}
	return Constraints{field: v}
}

// Floors turns the violations of a rule report on cells derived from p
// into constraints. Rules without a dimension of their own bound the
// length.
func Floors(p geom.ParameterSet, r geom.Rules, report *verify.RuleReport) Constraints {
	out := Constraints{}
	for _, v := range report.Violations {
		field := ruleField(v)
		if field == "" {
			field = geom.FieldLength
		}
		limit := 0.0
		if v.Rule == verify.RuleMinWidth || v.Rule == verify.RuleMinSpacing {
			limit = v.Limit
		}
		out = out.Merge(Grow(p, r, field, limit))
	}
	return out
}
