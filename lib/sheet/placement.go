package sheet

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/pkg/errors"

	"github.com/xoviat/capsynth/lib"
	"github.com/xoviat/capsynth/lib/array"
	"github.com/xoviat/capsynth/lib/geom"
)

var placementHeader = []string{
	"Master", "Class", "Start Row", "End Row", "Start Col", "End Col",
	"Rows", "Cols", "Origin X", "Origin Y", "Pitch X", "Pitch Y",
}

func ftoa(v float64) string {
	return strconv.FormatFloat(lib.Round(v, lib.Precision), 'f', -1, 64)
}

// WritePlacements writes the placement list as CSV, one instance per line.
func WritePlacements(w io.Writer, placements []array.Placement) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(placementHeader); err != nil {
		return err
	}
	for _, p := range placements {
		reg := p.Region
		if err := writer.Write([]string{
			p.Master,
			reg.Class.String(),
			strconv.Itoa(reg.StartRow),
			strconv.Itoa(reg.EndRow),
			strconv.Itoa(reg.StartCol),
			strconv.Itoa(reg.EndCol),
			strconv.Itoa(reg.Rows()),
			strconv.Itoa(reg.Cols()),
			ftoa(p.Origin.X),
			ftoa(p.Origin.Y),
			ftoa(p.PitchX),
			ftoa(p.PitchY),
		}); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// ReadPlacements reads a list written by WritePlacements.
func ReadPlacements(r io.Reader) ([]array.Placement, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(placementHeader)
	lines, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "read placements")
	}
	if len(lines) == 0 {
		return nil, errors.New("read placements: missing header")
	}

	var out []array.Placement
	for n, line := range lines[1:] {
		ints := make([]int, 4)
		for i := range ints {
			if ints[i], err = strconv.Atoi(line[2+i]); err != nil {
				return nil, errors.Wrapf(err, "line %d", n+2)
			}
		}
		floats := make([]float64, 4)
		for i := range floats {
			if floats[i], err = strconv.ParseFloat(line[8+i], 64); err != nil {
				return nil, errors.Wrapf(err, "line %d", n+2)
			}
		}

		class := array.Functional
		if line[1] == array.Dummy.String() {
			class = array.Dummy
		}
		out = append(out, array.Placement{
			Master: line[0],
			Region: array.Region{
				StartRow: ints[0],
				EndRow:   ints[1],
				StartCol: ints[2],
				EndCol:   ints[3],
				Class:    class,
			},
			Origin: geom.Point{X: floats[0], Y: floats[1]},
			PitchX: floats[2],
			PitchY: floats[3],
		})
	}
	return out, nil
}
