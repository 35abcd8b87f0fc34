package geom

import (
	"github.com/pkg/errors"
)

// Field names of the tunable dimensions of a ParameterSet.
const (
	FieldCount       = "count"
	FieldLength      = "length"
	FieldWidth       = "width"
	FieldSpacing     = "spacing"
	FieldFrameWidth  = "frame_width"
	FieldNotchDepth  = "notch_depth"
	FieldNotchWidth  = "notch_width"
	FieldShieldGap   = "shield_gap"
	FieldShieldWidth = "shield_width"
	FieldLayers      = "layers"
)

// ParameterSet holds the free dimensions of one unit cell. It is a value:
// the With* helpers return modified copies and never touch the receiver.
//
// Count is the number of fingers and is ignored by the sandwich variants.
// Length is the height-like dimension (finger length or plate height),
// Width is the finger width or the plate width.
type ParameterSet struct {
	Count       int      `yaml:"count" json:"count"`
	Length      float64  `yaml:"length" json:"length"`
	Width       float64  `yaml:"width" json:"width"`
	Spacing     float64  `yaml:"spacing" json:"spacing"`
	FrameWidth  float64  `yaml:"frame_width" json:"frame_width"`
	NotchDepth  float64  `yaml:"notch_depth" json:"notch_depth"`
	NotchWidth  float64  `yaml:"notch_width" json:"notch_width"`
	ShieldGap   float64  `yaml:"shield_gap" json:"shield_gap"`
	ShieldWidth float64  `yaml:"shield_width" json:"shield_width"`
	Layers      []string `yaml:"layers" json:"layers"`
}

// Clone returns a deep copy.
func (p ParameterSet) Clone() ParameterSet {
	c := p
	c.Layers = append([]string(nil), p.Layers...)
	return c
}

// Get returns the numeric value of a named field. Layers reports the layer
// count.
func (p ParameterSet) Get(field string) (float64, error) {
	switch field {
	case FieldCount:
		return float64(p.Count), nil
	case FieldLength:
		return p.Length, nil
	case FieldWidth:
		return p.Width, nil
	case FieldSpacing:
		return p.Spacing, nil
	case FieldFrameWidth:
		return p.FrameWidth, nil
	case FieldNotchDepth:
		return p.NotchDepth, nil
	case FieldNotchWidth:
		return p.NotchWidth, nil
	case FieldShieldGap:
		return p.ShieldGap, nil
	case FieldShieldWidth:
		return p.ShieldWidth, nil
	case FieldLayers:
		return float64(len(p.Layers)), nil
	}
	return 0, errors.Wrapf(ErrUnknownField, "%q", field)
}

// With returns a copy with one numeric field replaced. Count is rounded to
// the nearest integer. Layers cannot be set this way, use WithLayers.
func (p ParameterSet) With(field string, v float64) (ParameterSet, error) {
	c := p.Clone()
	switch field {
	case FieldCount:
		c.Count = int(v + 0.5)
	case FieldLength:
		c.Length = v
	case FieldWidth:
		c.Width = v
	case FieldSpacing:
		c.Spacing = v
	case FieldFrameWidth:
		c.FrameWidth = v
	case FieldNotchDepth:
		c.NotchDepth = v
	case FieldNotchWidth:
		c.NotchWidth = v
	case FieldShieldGap:
		c.ShieldGap = v
	case FieldShieldWidth:
		c.ShieldWidth = v
	default:
		return p, errors.Wrapf(ErrUnknownField, "%q", field)
	}
	return c, nil
}

// WithLayers returns a copy using the given layer stack.
func (p ParameterSet) WithLayers(layers []string) ParameterSet {
	c := p.Clone()
	c.Layers = append([]string(nil), layers...)
	return c
}

// Equal reports whether two parameter sets are identical.
func (p ParameterSet) Equal(o ParameterSet) bool {
	if len(p.Layers) != len(o.Layers) {
		return false
	}
	for i := range p.Layers {
		if p.Layers[i] != o.Layers[i] {
			return false
		}
	}
	return p.Count == o.Count &&
		p.Length == o.Length &&
		p.Width == o.Width &&
		p.Spacing == o.Spacing &&
		p.FrameWidth == o.FrameWidth &&
		p.NotchDepth == o.NotchDepth &&
		p.NotchWidth == o.NotchWidth &&
		p.ShieldGap == o.ShieldGap &&
		p.ShieldWidth == o.ShieldWidth
}
