// Package sheet reads array specs from spreadsheets and writes run history
// and placement lists.
package sheet

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/xoviat/capsynth/lib/array"
)

// Sheet names of an array workbook.
const (
	SheetCells  = "cells"
	SheetGroups = "groups"
)

var ErrWorkbook = errors.New("sheet: invalid workbook")

/*
	An array workbook has a cells sheet holding the grid, top row first,
	one group name or the dummy sentinel per cell:

		D  D  D
		D  A  D
		D  D  D

	and an optional groups sheet, one group per row:

		group  pin  members
		A      OUT  1,1
*/

// ReadSpec reads an array spec from an XLSX workbook and validates it.
// Groups missing from the workbook are collected from the cells.
func ReadSpec(r io.Reader, name, sentinel string) (*array.Spec, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "open workbook")
	}
	defer f.Close()

	rows, err := f.GetRows(SheetCells)
	if err != nil {
		return nil, errors.Wrapf(ErrWorkbook, "%s sheet: %s", SheetCells, err)
	}
	for len(rows) > 0 && len(rows[len(rows)-1]) == 0 {
		rows = rows[:len(rows)-1]
	}

	spec := &array.Spec{Name: name, Sentinel: sentinel, Rows: len(rows)}
	for _, row := range rows {
		if len(row) > spec.Cols {
			spec.Cols = len(row)
		}
	}
	for _, row := range rows {
		cells := make([]string, spec.Cols)
		for c := range row {
			cells[c] = strings.TrimSpace(row[c])
		}
		spec.Cells = append(spec.Cells, cells)
	}

	if groups, err := f.GetRows(SheetGroups); err == nil {
		if spec.Groups, err = readGroups(groups); err != nil {
			return nil, err
		}
	}

	return spec.Resolve(sentinel)
}

func readGroups(rows [][]string) ([]array.Group, error) {
	var groups []array.Group
	for i, row := range rows {
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		if i == 0 && strings.EqualFold(strings.TrimSpace(row[0]), "group") {
			continue
		}

		g := array.Group{Name: strings.TrimSpace(row[0])}
		if len(row) > 1 {
			g.Pin = strings.TrimSpace(row[1])
		}
		for _, cell := range row[min(2, len(row)):] {
			cell = strings.TrimSpace(cell)
			if cell == "" {
				continue
			}
			p, err := parsePos(cell)
			if err != nil {
				return nil, errors.Wrapf(ErrWorkbook, "%s row %d: %s", SheetGroups, i+1, err)
			}
			g.Members = append(g.Members, p)
		}
		groups = append(groups, g)
	}
	return groups, nil
}

func parsePos(s string) (array.Pos, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return array.Pos{}, errors.Errorf("position %q is not row,col", s)
	}
	r, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return array.Pos{}, errors.Wrapf(err, "position %q", s)
	}
	c, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return array.Pos{}, errors.Wrapf(err, "position %q", s)
	}
	return array.Pos{Row: r, Col: c}, nil
}

// WriteSpec writes spec as an array workbook.
func WriteSpec(w io.Writer, spec *array.Spec) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetCells); err != nil {
		return err
	}
	for r, row := range spec.Cells {
		values := make([]interface{}, len(row))
		for c, v := range row {
			values[c] = v
		}
		if err := f.SetSheetRow(SheetCells, cell(1, r+1), &values); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(SheetGroups); err != nil {
		return err
	}
	if err := f.SetSheetRow(SheetGroups, "A1", &[]interface{}{"group", "pin", "members"}); err != nil {
		return err
	}
	for i, g := range spec.Groups {
		values := []interface{}{g.Name, g.Pin}
		for _, m := range g.Members {
			values = append(values, fmt.Sprintf("%d,%d", m.Row, m.Col))
		}
		if err := f.SetSheetRow(SheetGroups, cell(1, i+2), &values); err != nil {
			return err
		}
	}

	_, err := f.WriteTo(w)
	return errors.Wrap(err, "write workbook")
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}
