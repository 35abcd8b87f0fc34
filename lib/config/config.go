// Package config loads the YAML configuration shared by every command.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/xoviat/capsynth/lib"
	"github.com/xoviat/capsynth/lib/geom"
)

var ErrInvalid = errors.New("config: invalid")

// Backend kinds.
const (
	BackendAnalytic = "analytic"
	BackendExec     = "exec"
	BackendRemote   = "remote"
)

// MaxRounds bounds the optimizer round count.
const MaxRounds = 5

type Config struct {
	Process   geom.Rules `yaml:"process"`
	Cell      Cell       `yaml:"cell"`
	Optimizer Optimizer  `yaml:"optimizer"`
	Flow      Flow       `yaml:"flow"`
	Array     Array      `yaml:"array"`
	Backend   Backend    `yaml:"backend"`
	Store     Store      `yaml:"store"`
}

// Cell describes the unit cell to optimize.
type Cell struct {
	Name    string       `yaml:"name"`
	Variant geom.Variant `yaml:"variant"`
	Shield  bool         `yaml:"shield"`
	Layers  []string     `yaml:"layers"`

	// Initial replaces the draft built from the process minima.
	Initial *geom.ParameterSet `yaml:"initial,omitempty"`

	// Target is the wanted terminal-to-ground capacitance in fF.
	Target   float64  `yaml:"target"`
	Terminal string   `yaml:"terminal"`
	Ground   []string `yaml:"ground"`
}

type Optimizer struct {
	Rounds          int           `yaml:"rounds"`
	Tolerance       float64       `yaml:"tolerance"`
	CoarseThreshold float64       `yaml:"coarse_threshold"`
	FineStep        float64       `yaml:"fine_step"`
	MaxRuleFixes    int           `yaml:"max_rule_fixes"`
	RoundTimeout    time.Duration `yaml:"round_timeout"`
}

type Flow struct {
	MaxRestarts int `yaml:"max_restarts"`
}

type Array struct {
	// RouteLayer defaults to the layer above the cell's top layer.
	RouteLayer    string  `yaml:"route_layer"`
	RouteWidth    float64 `yaml:"route_width"`
	MaxFixes      int     `yaml:"max_fixes"`
	DummySentinel string  `yaml:"dummy_sentinel"`
}

type Backend struct {
	Kind       string        `yaml:"kind"`
	Root       string        `yaml:"root"`
	Binary     string        `yaml:"binary"`
	MinVersion string        `yaml:"min_version"`
	URL        string        `yaml:"url"`
	Interval   time.Duration `yaml:"interval"`
}

type Store struct {
	Path string `yaml:"path"`
}

// DefaultPath is where the store lives unless configured.
func DefaultPath() string {
	return filepath.Join(lib.GetLocalAppData(), "capsynth")
}

func Default() *Config {
	return &Config{
		Process: geom.DefaultRules(),
		Cell: Cell{
			Name:     "unit",
			Variant:  geom.InterleavedFinger,
			Shield:   true,
			Layers:   []string{"M1", "M2", "M3"},
			Target:   10,
			Terminal: geom.NetPlus,
			Ground:   []string{geom.NetGround},
		},
		Optimizer: Optimizer{
			Rounds:          MaxRounds,
			Tolerance:       1,
			CoarseThreshold: 20,
			FineStep:        0.25,
			MaxRuleFixes:    3,
			RoundTimeout:    2 * time.Minute,
		},
		Flow: Flow{
			MaxRestarts: 2,
		},
		Array: Array{
			RouteWidth:    0.2,
			MaxFixes:      3,
			DummySentinel: "D",
		},
		Backend: Backend{
			Kind:     BackendAnalytic,
			Binary:   "capcheck",
			Interval: 1500 * time.Millisecond,
		},
		Store: Store{
			Path: filepath.Join(DefaultPath(), "capsynth.db"),
		},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.Wrap(err, "read config")
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "create config directory")
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "marshal config")
	}
	return errors.Wrap(os.WriteFile(path, data, 0644), "write config")
}

func invalid(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalid, format, args...)
}

func (c *Config) Validate() error {
	r := c.Process
	for name, v := range map[string]float64{
		"grid":          r.Grid,
		"min_width":     r.MinWidth,
		"min_spacing":   r.MinSpacing,
		"min_area":      r.MinArea,
		"via_size":      r.ViaSize,
		"via_spacing":   r.ViaSpacing,
		"via_enclosure": r.ViaEnclosure,
		"thickness":     r.Thickness,
		"dielectric":    r.Dielectric,
		"permittivity":  r.Permittivity,
	} {
		if !(v > 0) {
			return invalid("process.%s must be positive, got %g", name, v)
		}
	}
	if len(r.Stack) < 2 {
		return invalid("process.stack needs at least two layers")
	}

	for _, l := range c.Cell.Layers {
		if r.LayerIndex(l) < 0 {
			return invalid("cell layer %q is not in the process stack", l)
		}
	}
	if !(c.Cell.Target > 0) {
		return invalid("cell.target must be positive, got %g", c.Cell.Target)
	}
	if c.Cell.Terminal == "" || len(c.Cell.Ground) == 0 {
		return invalid("cell.terminal and cell.ground are required")
	}

	o := c.Optimizer
	if o.Rounds < 1 || o.Rounds > MaxRounds {
		return invalid("optimizer.rounds must be within 1..%d, got %d", MaxRounds, o.Rounds)
	}
	if !(o.Tolerance > 0) || !(o.CoarseThreshold > o.Tolerance) {
		return invalid("optimizer needs 0 < tolerance < coarse_threshold")
	}
	if !(o.FineStep > 0 && o.FineStep < 1) {
		return invalid("optimizer.fine_step must be within (0, 1), got %g", o.FineStep)
	}
	if o.MaxRuleFixes < 0 || c.Flow.MaxRestarts < 0 || c.Array.MaxFixes < 0 {
		return invalid("retry limits must not be negative")
	}

	if c.Array.RouteWidth < r.MinWidth {
		return invalid("array.route_width %g is below min_width %g", c.Array.RouteWidth, r.MinWidth)
	}
	if c.Array.RouteLayer != "" && r.LayerIndex(c.Array.RouteLayer) < 0 {
		return invalid("array.route_layer %q is not in the process stack", c.Array.RouteLayer)
	}
	if c.Array.DummySentinel == "" {
		return invalid("array.dummy_sentinel is required")
	}

	switch c.Backend.Kind {
	case BackendAnalytic, BackendExec:
	case BackendRemote:
		if c.Backend.URL == "" {
			return invalid("backend.url is required for the remote backend")
		}
	default:
		return invalid("unknown backend kind %q", c.Backend.Kind)
	}
	return nil
}
