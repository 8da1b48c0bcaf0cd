package cleaning

import (
	"math"
	"strings"

	"github.com/KaramelBytes/surveyloom-cli/internal/apperr"
	"github.com/KaramelBytes/surveyloom-cli/internal/dataset"
)

// DetectStraightLiners removes rows whose longest run of identical answers
// across the configured columns reaches the consecutive threshold. Numeric
// answers match when they differ by at most the variance threshold.
func DetectStraightLiners(ds *dataset.Dataset, cfg StraightLinerConfig) (*dataset.Dataset, ModuleResult, error) {
	names := cfg.Columns
	if len(names) == 0 {
		names = ds.ColumnsByRole(dataset.RoleResponse)
	}
	cols := make([]dataset.Column, len(names))
	for i, n := range names {
		c, ok := ds.Column(n)
		if !ok {
			return nil, ModuleResult{}, apperr.New(apperr.UnknownColumn, "straight-liner column not in dataset").WithColumn(n)
		}
		cols[i] = c
	}

	drop := make(map[int]bool)
	for _, row := range ds.Rows() {
		if longestRun(row, cols, cfg.VarianceThreshold) >= cfg.ConsecutiveThreshold {
			drop[row.Index] = true
		}
	}
	out, removed := dropRows(ds, drop)
	res := removalResult(ModuleStraightLiners, "consecutive", ds, out, removed)
	res.StraightLiner = &StraightLinerStats{
		Detected:  len(removed),
		Threshold: cfg.ConsecutiveThreshold,
		Columns:   names,
	}
	return out, res, nil
}

type answer struct {
	raw     string
	num     float64
	numeric bool
}

func longestRun(row dataset.Row, cols []dataset.Column, tolerance float64) int {
	best, run := 0, 0
	var prev *answer
	for _, col := range cols {
		cell, _ := row.Cell(col.Name)
		if !cell.Valid {
			run, prev = 0, nil
			continue
		}
		cur := &answer{raw: strings.TrimSpace(cell.Raw)}
		if col.Type.Numeric() {
			if v, err := dataset.Coerce(cell.Raw, col.Type); err == nil {
				cur.num, cur.numeric = v.(float64), true
			}
		}
		if prev != nil && sameAnswer(*prev, *cur, tolerance) {
			run++
		} else {
			run = 1
		}
		prev = cur
		if run > best {
			best = run
		}
	}
	return best
}

func sameAnswer(a, b answer, tolerance float64) bool {
	if a.numeric && b.numeric {
		return math.Abs(a.num-b.num) <= tolerance
	}
	return a.raw == b.raw
}
