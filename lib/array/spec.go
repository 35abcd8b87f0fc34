// Package array assembles a grid of unit and dummy cells: it merges cells
// into rectangular regions, places one instance per region, routes the
// functional groups and verifies the result.
package array

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var (
	ErrSpec      = errors.New("array: invalid spec")
	ErrIsolation = errors.New("array: dummy cell isolation violated")
	ErrPartition = errors.New("array: regions do not partition the grid")
	ErrPitch     = errors.New("array: pitch out of range")
	ErrRedesign  = errors.New("array: violations need a cell redesign")
)

// DefaultSentinel marks a dummy cell.
const DefaultSentinel = "D"

type Class int

const (
	Functional Class = iota
	Dummy
)

func (c Class) String() string {
	if c == Dummy {
		return "dummy"
	}
	return "functional"
}

// Pos is a grid position; row 0 is the top row.
type Pos struct {
	Row int `yaml:"row" json:"row"`
	Col int `yaml:"col" json:"col"`
}

func (p Pos) String() string {
	return fmt.Sprintf("(%d,%d)", p.Row, p.Col)
}

// Group is a set of functional cells wired together. Pin names the label
// placed on the first member, if any.
type Group struct {
	Name    string `yaml:"name"`
	Pin     string `yaml:"pin,omitempty"`
	Members []Pos  `yaml:"members"`
}

// Spec is the grid to assemble. A cell holds its group name, or the
// sentinel for a dummy. Groups keep their order; when none are given they
// are collected from the cells in row-major order.
type Spec struct {
	Name     string     `yaml:"name"`
	Rows     int        `yaml:"rows"`
	Cols     int        `yaml:"cols"`
	Sentinel string     `yaml:"sentinel,omitempty"`
	Cells    [][]string `yaml:"cells"`
	Groups   []Group    `yaml:"groups,omitempty"`
}

// DecodeSpec reads a YAML spec and validates it.
func DecodeSpec(r io.Reader) (*Spec, error) {
	spec := &Spec{}
	if err := yaml.NewDecoder(r).Decode(spec); err != nil {
		return nil, errors.Wrap(err, "decode array spec")
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return spec, nil
}

func (s *Spec) EncodeYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return errors.Wrap(enc.Encode(s), "encode array spec")
}

func (s *Spec) sentinel() string {
	if s.Sentinel == "" {
		return DefaultSentinel
	}
	return s.Sentinel
}

func (s *Spec) InBounds(p Pos) bool {
	return p.Row >= 0 && p.Row < s.Rows && p.Col >= 0 && p.Col < s.Cols
}

// ClassOf returns the class of the cell at p.
func (s *Spec) ClassOf(p Pos) Class {
	if s.Cells[p.Row][p.Col] == s.sentinel() {
		return Dummy
	}
	return Functional
}

// Group returns the named group.
func (s *Spec) Group(name string) (*Group, bool) {
	for i := range s.Groups {
		if s.Groups[i].Name == name {
			return &s.Groups[i], true
		}
	}
	return nil, false
}

// Clone returns a deep copy.
func (s *Spec) Clone() *Spec {
	c := *s
	c.Cells = make([][]string, len(s.Cells))
	for r, row := range s.Cells {
		c.Cells[r] = append([]string(nil), row...)
	}
	c.Groups = make([]Group, len(s.Groups))
	for i, g := range s.Groups {
		g.Members = append([]Pos(nil), g.Members...)
		c.Groups[i] = g
	}
	if s.Groups == nil {
		c.Groups = nil
	}
	return &c
}

// Resolve validates s and returns a copy with the sentinel defaulted to
// sentinel when unset and the groups collected when none are given. s is
// left untouched.
func (s *Spec) Resolve(sentinel string) (*Spec, error) {
	c := s.Clone()
	if c.Sentinel == "" {
		c.Sentinel = sentinel
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	c.Groups = c.groups()
	return c, nil
}

// groups are the given groups, or the ones collected from the cells.
func (s *Spec) groups() []Group {
	if len(s.Groups) == 0 {
		return s.collect()
	}
	return s.Groups
}

// Validate checks the grid shape and the groups without changing s. When
// no groups are given the groups collected from the cells are checked. A
// group touching a dummy cell is an isolation error.
func (s *Spec) Validate() error {
	if s.Rows < 1 || s.Cols < 1 {
		return errors.Wrapf(ErrSpec, "grid is %dx%d", s.Rows, s.Cols)
	}
	if len(s.Cells) != s.Rows {
		return errors.Wrapf(ErrSpec, "%d rows of cells, want %d", len(s.Cells), s.Rows)
	}
	for r, row := range s.Cells {
		if len(row) != s.Cols {
			return errors.Wrapf(ErrSpec, "row %d has %d cells, want %d", r, len(row), s.Cols)
		}
		for c, cell := range row {
			if cell == "" {
				return errors.Wrapf(ErrSpec, "cell %s is empty", Pos{r, c})
			}
		}
	}

	owner := map[Pos]string{}
	names := map[string]bool{}
	for _, g := range s.groups() {
		if g.Name == "" || g.Name == s.sentinel() {
			return errors.Wrapf(ErrSpec, "invalid group name %q", g.Name)
		}
		if names[g.Name] {
			return errors.Wrapf(ErrSpec, "duplicate group %q", g.Name)
		}
		names[g.Name] = true
		if len(g.Members) == 0 {
			return errors.Wrapf(ErrSpec, "group %q has no members", g.Name)
		}

		for _, m := range g.Members {
			if !s.InBounds(m) {
				return errors.Wrapf(ErrSpec, "group %q member %s is outside the grid", g.Name, m)
			}
			if s.ClassOf(m) == Dummy {
				return errors.Wrapf(ErrIsolation, "group %q references dummy cell %s", g.Name, m)
			}
			if prev, ok := owner[m]; ok {
				return errors.Wrapf(ErrSpec, "cell %s is in groups %q and %q", m, prev, g.Name)
			}
			owner[m] = g.Name
		}
	}
	return nil
}

// collect builds one group per distinct functional cell name, in order of
// first appearance.
func (s *Spec) collect() []Group {
	var groups []Group
	index := map[string]int{}
	for r, row := range s.Cells {
		for c, cell := range row {
			if cell == s.sentinel() {
				continue
			}
			i, ok := index[cell]
			if !ok {
				i = len(groups)
				index[cell] = i
				groups = append(groups, Group{Name: cell})
			}
			groups[i].Members = append(groups[i].Members, Pos{r, c})
		}
	}
	return groups
}
