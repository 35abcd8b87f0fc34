package array

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Region is a rectangle of cells of one class, bounds inclusive.
type Region struct {
	StartRow int   `json:"start_row"`
	EndRow   int   `json:"end_row"`
	StartCol int   `json:"start_col"`
	EndCol   int   `json:"end_col"`
	Class    Class `json:"class"`
}

func (r Region) Rows() int { return r.EndRow - r.StartRow + 1 }
func (r Region) Cols() int { return r.EndCol - r.StartCol + 1 }

func (r Region) Contains(p Pos) bool {
	return p.Row >= r.StartRow && p.Row <= r.EndRow && p.Col >= r.StartCol && p.Col <= r.EndCol
}

// Merge covers every cell of class with rectangles in two passes: first
// maximal runs along each row, then runs with the same column span in
// consecutive rows are stacked. Regions come out ordered by start row,
// then start column.
func Merge(s *Spec, class Class) []Region {
	var open, done []Region
	for r := 0; r < s.Rows; r++ {
		var next []Region
		for _, run := range rowRuns(s, r, class) {
			merged := false
			for i, o := range open {
				if o.StartCol == run.StartCol && o.EndCol == run.EndCol && o.EndRow == r-1 {
					o.EndRow = r
					next = append(next, o)
					open = append(open[:i], open[i+1:]...)
					merged = true
					break
				}
			}
			if !merged {
				next = append(next, run)
			}
		}
		done = append(done, open...)
		open = next
	}
	done = append(done, open...)

	sort.SliceStable(done, func(i, j int) bool {
		if done[i].StartRow != done[j].StartRow {
			return done[i].StartRow < done[j].StartRow
		}
		return done[i].StartCol < done[j].StartCol
	})
	return done
}

func rowRuns(s *Spec, r int, class Class) []Region {
	var runs []Region
	start := -1
	for c := 0; c <= s.Cols; c++ {
		in := c < s.Cols && s.ClassOf(Pos{r, c}) == class
		switch {
		case in && start < 0:
			start = c
		case !in && start >= 0:
			runs = append(runs, Region{StartRow: r, EndRow: r, StartCol: start, EndCol: c - 1, Class: class})
			start = -1
		}
	}
	return runs
}

// MergeAll merges both classes concurrently; functional regions come
// first.
func MergeAll(ctx context.Context, s *Spec) ([]Region, error) {
	var functional, dummy []Region
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		functional = Merge(s, Functional)
		return nil
	})
	g.Go(func() error {
		dummy = Merge(s, Dummy)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	regions := append(functional, dummy...)
	if err := VerifyPartition(s, regions); err != nil {
		return nil, err
	}
	return regions, nil
}

// VerifyPartition checks that regions cover the grid exactly once and
// that every region holds cells of its own class only.
func VerifyPartition(s *Spec, regions []Region) error {
	cover := make([][]int, s.Rows)
	for r := range cover {
		cover[r] = make([]int, s.Cols)
	}

	for _, reg := range regions {
		if reg.StartRow > reg.EndRow || reg.StartCol > reg.EndCol ||
			!s.InBounds(Pos{reg.StartRow, reg.StartCol}) || !s.InBounds(Pos{reg.EndRow, reg.EndCol}) {
			return errors.Wrapf(ErrPartition, "region %+v is malformed", reg)
		}
		for r := reg.StartRow; r <= reg.EndRow; r++ {
			for c := reg.StartCol; c <= reg.EndCol; c++ {
				if s.ClassOf(Pos{r, c}) != reg.Class {
					return errors.Wrapf(ErrPartition, "%s region covers %s cell %s", reg.Class, s.ClassOf(Pos{r, c}), Pos{r, c})
				}
				cover[r][c]++
			}
		}
	}

	for r, row := range cover {
		for c, n := range row {
			if n != 1 {
				return errors.Wrapf(ErrPartition, "cell %s covered %d times", Pos{r, c}, n)
			}
		}
	}
	return nil
}
