package geom

import "github.com/xoviat/capsynth/lib"

// Rules are the process minima and electrical constants a cell is drawn
// against.
type Rules struct {
	Grid         float64 `yaml:"grid"`
	MinWidth     float64 `yaml:"min_width"`
	MinSpacing   float64 `yaml:"min_spacing"`
	MinArea      float64 `yaml:"min_area"`
	ViaSize      float64 `yaml:"via_size"`
	ViaSpacing   float64 `yaml:"via_spacing"`
	ViaEnclosure float64 `yaml:"via_enclosure"`

	// Thickness is the metal thickness, Dielectric the inter-metal
	// dielectric height and Permittivity its relative permittivity.
	Thickness    float64 `yaml:"thickness"`
	Dielectric   float64 `yaml:"dielectric"`
	Permittivity float64 `yaml:"permittivity"`

	// Stack is the full ordered metal stack, bottom first.
	Stack []string `yaml:"stack"`
	// Vias maps "lower:upper" to the cut layer name.
	Vias map[string]string `yaml:"vias"`
}

// DefaultRules is a generic 5-metal back-end-of-line stack.
func DefaultRules() Rules {
	return Rules{
		Grid:         lib.Grid,
		MinWidth:     0.1,
		MinSpacing:   0.1,
		MinArea:      0.02,
		ViaSize:      0.1,
		ViaSpacing:   0.1,
		ViaEnclosure: 0.05,
		Thickness:    0.4,
		Dielectric:   0.5,
		Permittivity: 4.0,
		Stack:        []string{"M1", "M2", "M3", "M4", "M5", "M6"},
		Vias: map[string]string{
			"M1:M2": "V1",
			"M2:M3": "V2",
			"M3:M4": "V3",
			"M4:M5": "V4",
			"M5:M6": "V5",
		},
	}
}

// ViaPitch is the centre-to-centre distance of adjacent cuts.
func (r Rules) ViaPitch() float64 {
	return r.ViaSize + r.ViaSpacing
}

// ViaMargin is the distance from a metal edge to the first cut centre.
func (r Rules) ViaMargin() float64 {
	return r.ViaEnclosure + r.ViaSize/2
}

// ViaName returns the cut layer between two adjacent metals.
func (r Rules) ViaName(lower, upper string) string {
	if name, ok := r.Vias[lower+":"+upper]; ok {
		return name
	}
	return lower + "_" + upper
}

// LayerIndex returns the position of layer in the stack, or -1.
func (r Rules) LayerIndex(layer string) int {
	for i, l := range r.Stack {
		if l == layer {
			return i
		}
	}
	return -1
}

// Above returns the stack layer directly above layer.
func (r Rules) Above(layer string) (string, bool) {
	i := r.LayerIndex(layer)
	if i < 0 || i+1 >= len(r.Stack) {
		return "", false
	}
	return r.Stack[i+1], true
}
