package array

import (
	"math"

	"github.com/pkg/errors"

	"github.com/xoviat/capsynth/lib"
	"github.com/xoviat/capsynth/lib/draw"
	"github.com/xoviat/capsynth/lib/geom"
)

// Master names of the two placed cells.
const (
	MasterUnit  = "unit"
	MasterDummy = "dummy"
)

// Pitch is the centre distance of abutting cells: neighbours share their
// outer frame.
func Pitch(unit, frame float64) (float64, error) {
	pitch := lib.Round(unit-frame, lib.Precision)
	if !(pitch > 0 && pitch < unit) {
		return 0, errors.Wrapf(ErrPitch, "unit %g, frame %g gives pitch %g", unit, frame, pitch)
	}
	return pitch, nil
}

// Grid maps cell positions to coordinates. Cell (Rows-1, 0) is centred on
// the origin and rows count downwards.
type Grid struct {
	Rows, Cols     int
	PitchX, PitchY float64
}

func NewGrid(s *Spec, unit, dummy *geom.Geometry) (Grid, error) {
	if math.Abs(unit.Width()-dummy.Width()) > 1e-9 || math.Abs(unit.Height()-dummy.Height()) > 1e-9 {
		return Grid{}, errors.Wrapf(ErrPitch, "dummy envelope %gx%g differs from unit %gx%g",
			dummy.Width(), dummy.Height(), unit.Width(), unit.Height())
	}
	if unit.FrameWidthX <= 0 || unit.FrameWidthY <= 0 {
		return Grid{}, errors.Wrap(ErrPitch, "unit cell has no shield frame to share")
	}
	px, err := Pitch(unit.Width(), unit.FrameWidthX)
	if err != nil {
		return Grid{}, errors.Wrap(err, "x")
	}
	py, err := Pitch(unit.Height(), unit.FrameWidthY)
	if err != nil {
		return Grid{}, errors.Wrap(err, "y")
	}
	return Grid{Rows: s.Rows, Cols: s.Cols, PitchX: px, PitchY: py}, nil
}

// Center is the centre of the cell at p.
func (g Grid) Center(p Pos) geom.Point {
	return geom.Point{
		X: float64(p.Col) * g.PitchX,
		Y: float64(g.Rows-1-p.Row) * g.PitchY,
	}
}

// At returns the cell whose pitch box contains pt.
func (g Grid) At(pt geom.Point) (Pos, bool) {
	c := int(math.Floor(pt.X/g.PitchX + 0.5))
	r := g.Rows - 1 - int(math.Floor(pt.Y/g.PitchY+0.5))
	p := Pos{r, c}
	return p, r >= 0 && r < g.Rows && c >= 0 && c < g.Cols
}

// Origin is the centre of the bottom-left cell of reg.
func (g Grid) Origin(reg Region) geom.Point {
	return g.Center(Pos{reg.EndRow, reg.StartCol})
}

// Instance places the master of reg's class over reg.
func (g Grid) Instance(reg Region) draw.Primitive {
	master := MasterUnit
	if reg.Class == Dummy {
		master = MasterDummy
	}
	return draw.Instance(master, g.Origin(reg), reg.Rows(), reg.Cols(), g.PitchX, g.PitchY)
}

// Placement is one row of the placement list.
type Placement struct {
	Region Region
	Master string
	Origin geom.Point
	PitchX float64
	PitchY float64
}

func (g Grid) Placements(regions []Region) []Placement {
	out := make([]Placement, 0, len(regions))
	for _, reg := range regions {
		inst := g.Instance(reg)
		out = append(out, Placement{
			Region: reg,
			Master: inst.Master,
			Origin: inst.Center,
			PitchX: g.PitchX,
			PitchY: g.PitchY,
		})
	}
	return out
}
