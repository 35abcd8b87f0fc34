package sheet

import (
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/xoviat/capsynth/lib/store"
)

// Sheet names of a history workbook.
const (
	SheetRuns   = "runs"
	SheetRounds = "rounds"
)

var (
	runHeader = []interface{}{
		"run", "cell", "variant", "target", "started", "reason", "converged",
		"restarts", "rounds", "measured", "error %", "error",
	}
	roundHeader = []interface{}{
		"run", "attempt", "round", "phase", "outcome",
		"count", "length", "width", "spacing", "frame_width", "notch_depth", "notch_width",
		"shield_gap", "shield_width", "layers",
		"measured", "error %", "rule fixes", "touched", "error",
	}
)

// WriteHistory writes one row per run and one per round. rounds maps run
// IDs to their rounds.
func WriteHistory(w io.Writer, runs []*store.RunRecord, rounds map[string][]*store.RoundRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetRuns); err != nil {
		return err
	}
	if _, err := f.NewSheet(SheetRounds); err != nil {
		return err
	}
	if err := f.SetSheetRow(SheetRuns, "A1", &runHeader); err != nil {
		return err
	}
	if err := f.SetSheetRow(SheetRounds, "A1", &roundHeader); err != nil {
		return err
	}

	line := 2
	for i, run := range runs {
		row := []interface{}{
			run.ID, run.Cell, run.Variant, run.Target, run.Started.Format(time.RFC3339), run.Reason, run.Converged,
			run.Restarts, run.Rounds, run.Measured, run.ErrorPercent, run.Err,
		}
		if err := f.SetSheetRow(SheetRuns, cell(1, i+2), &row); err != nil {
			return err
		}

		for _, r := range rounds[run.ID] {
			p := r.Params
			values := []interface{}{
				r.Run, r.Attempt, r.Index, r.Phase, r.Outcome,
				p.Count, p.Length, p.Width, p.Spacing, p.FrameWidth, p.NotchDepth, p.NotchWidth,
				p.ShieldGap, p.ShieldWidth, strings.Join(p.Layers, " "),
				r.Measured, r.ErrorPercent, r.RuleFixes, strings.Join(r.Touched, " "), r.Err,
			}
			if !r.HasMeasurement {
				values[15], values[16] = "", ""
			}
			if err := f.SetSheetRow(SheetRounds, cell(1, line), &values); err != nil {
				return err
			}
			line++
		}
	}

	_, err := f.WriteTo(w)
	return errors.Wrap(err, "write workbook")
}
