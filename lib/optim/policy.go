package optim

import (
	"math"

	"github.com/xoviat/capsynth/lib"
	"github.com/xoviat/capsynth/lib/geom"
	"github.com/xoviat/capsynth/lib/verify"
)

// MaxCount caps the finger count before the coarse policy adds a layer.
const MaxCount = 128

// Policy drafts parameter sets for one family of variants.
type Policy interface {
	// Initial is the minimal viable set for the process.
	Initial(r geom.Rules, layers []string) geom.ParameterSet
	// Coarse scales the dominant dimension by ratio = target / measured.
	Coarse(p geom.ParameterSet, r geom.Rules, ratio float64) (geom.ParameterSet, string)
}

func PolicyFor(v geom.Variant) Policy {
	if v.Finger() {
		return fingerPolicy{}
	}
	return sandwichPolicy{notched: v == geom.SandwichNotched}
}

func snap(r geom.Rules, v float64) float64 {
	return lib.SnapUp(v, r.Grid)
}

// viaRegion is the narrowest strip that still holds one via.
func viaRegion(r geom.Rules) float64 {
	return snap(r, 2*r.ViaMargin())
}

type fingerPolicy struct{}

func (fingerPolicy) Initial(r geom.Rules, layers []string) geom.ParameterSet {
	return geom.ParameterSet{
		Count:       4,
		Length:      snap(r, 20*r.MinWidth),
		Width:       snap(r, r.MinWidth),
		Spacing:     snap(r, r.MinSpacing),
		FrameWidth:  viaRegion(r),
		ShieldGap:   snap(r, 2*r.MinSpacing),
		ShieldWidth: viaRegion(r),
		Layers:      append([]string(nil), layers...),
	}
}

// Coarse scales the finger count. Below two fingers the remainder goes to
// the length; past MaxCount a layer is added first.
func (fingerPolicy) Coarse(p geom.ParameterSet, r geom.Rules, ratio float64) (geom.ParameterSet, string) {
	out := p.Clone()
	want := float64(p.Count) * ratio

	if want > MaxCount && len(out.Layers) > 0 {
		if next, ok := r.Above(out.Layers[len(out.Layers)-1]); ok {
			n := float64(len(out.Layers))
			out.Layers = append(out.Layers, next)
			out.Count = int(math.Round(want * n / (n + 1)))
			if out.Count > MaxCount {
				out.Count = MaxCount
			}
			return out, geom.FieldLayers
		}
	}

	count := int(math.Round(want))
	switch {
	case count < 2:
		count = 2
		out.Length = snap(r, p.Length*want/2)
	case count > MaxCount:
		count = MaxCount
	case count == p.Count:
		if ratio > 1 {
			count++
		} else if count > 2 {
			count--
		}
	}
	out.Count = count
	return out, geom.FieldCount
}

type sandwichPolicy struct {
	notched bool
}

func (s sandwichPolicy) Initial(r geom.Rules, layers []string) geom.ParameterSet {
	p := geom.ParameterSet{
		Length:      snap(r, 20*r.MinWidth),
		Width:       snap(r, 20*r.MinWidth),
		Spacing:     snap(r, r.MinSpacing),
		FrameWidth:  viaRegion(r),
		ShieldGap:   snap(r, 2*r.MinSpacing),
		ShieldWidth: viaRegion(r),
		Layers:      append([]string(nil), layers...),
	}
	if s.notched {
		// the pad in the notch needs one via plus spacing on every side
		p.NotchDepth = snap(r, p.Spacing+2*r.ViaMargin()+r.MinSpacing)
		p.NotchWidth = snap(r, 2*(p.Spacing+r.ViaMargin())+2*r.MinSpacing)
	}
	return p
}

// Coarse moves whole layers when the ratio is at least two (or at most a
// half) and scales the plate width with what remains.
func (s sandwichPolicy) Coarse(p geom.ParameterSet, r geom.Rules, ratio float64) (geom.ParameterSet, string) {
	out := p.Clone()
	n := float64(len(p.Layers))

	if ratio >= 2 && n > 0 {
		if next, ok := r.Above(p.Layers[len(p.Layers)-1]); ok {
			out.Layers = append(out.Layers, next)
			out.Width = snap(r, p.Width*ratio*(n-1)/n)
			return out, geom.FieldLayers
		}
	}
	if ratio <= 0.5 && n > 2 {
		out.Layers = out.Layers[:len(out.Layers)-1]
		out.Width = snap(r, p.Width*ratio*(n-1)/(n-2))
		return out, geom.FieldLayers
	}

	out.Width = snap(r, p.Width*ratio)
	return out, geom.FieldWidth
}

// fine moves Length only, by at most step relative to its current value.
func fine(p geom.ParameterSet, r geom.Rules, ratio, step float64) geom.ParameterSet {
	ratio = math.Max(1-step, math.Min(1+step, ratio))
	out := p.Clone()
	out.Length = lib.Snap(p.Length*ratio, r.Grid)
	if out.Length == p.Length {
		if ratio > 1 {
			out.Length += r.Grid
		} else if ratio < 1 {
			out.Length -= r.Grid
		}
		out.Length = lib.Round(out.Length, lib.Precision)
	}
	return out
}

// ruleField maps a violated rule to the dimension that cures it. Shield
// shapes have their own dimensions.
func ruleField(v verify.Violation) string {
	shield := v.Role == geom.RoleShield
	switch v.Rule {
	case verify.RuleMinWidth:
		if shield {
			return geom.FieldShieldWidth
		}
		return geom.FieldWidth
	case verify.RuleMinSpacing:
		if shield {
			return geom.FieldShieldGap
		}
		return geom.FieldSpacing
	case verify.RuleViaEnclosure:
		return geom.FieldFrameWidth
	case verify.RuleMinArea:
		return geom.FieldLength
	}
	return ""
}

// nudge grows field by ten percent, by at least one grid step and at least
// up to limit.
func nudge(p geom.ParameterSet, r geom.Rules, field string, limit float64) (geom.ParameterSet, bool) {
	if field == geom.FieldLayers || field == "" {
		return p, false
	}
	v, err := p.Get(field)
	if err != nil {
		return p, false
	}

	next := math.Max(v*1.1, v+r.Grid)
	if field == geom.FieldCount {
		next = v + 1
	} else {
		next = snap(r, math.Max(next, limit))
	}
	out, err := p.With(field, next)
	if err != nil {
		return p, false
	}
	return out, true
}
