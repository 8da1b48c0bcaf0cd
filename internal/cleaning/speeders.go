package cleaning

import (
	"github.com/KaramelBytes/surveyloom-cli/internal/apperr"
	"github.com/KaramelBytes/surveyloom-cli/internal/dataset"
)

// DetectSpeeders removes rows whose completion time lies outside
// [MinTimeSeconds, MaxTimeSeconds]. Rows without a time are kept and counted.
// An unparseable time is a TypeMismatch unless invalid-data validation is on,
// in which case the row is counted with the missing ones.
func DetectSpeeders(ds *dataset.Dataset, cfg SpeederConfig) (*dataset.Dataset, ModuleResult, error) {
	col, ok := ds.Column(cfg.TimeColumn)
	if !ok {
		return nil, ModuleResult{}, apperr.New(apperr.MissingTimeColumn, "time column not in dataset").WithColumn(cfg.TimeColumn)
	}

	stats := &SpeederStats{
		MinTime:    cfg.MinTimeSeconds,
		MaxTime:    cfg.MaxTimeSeconds,
		TimeColumn: cfg.TimeColumn,
	}
	drop := make(map[int]bool)
	for _, row := range ds.Rows() {
		cell, _ := row.Cell(col.Name)
		if !cell.Valid {
			stats.UnknownTime++
			continue
		}
		secs, ok := dataset.ParseDurationSeconds(cell.Raw)
		if !ok && cfg.skipInvalid {
			stats.UnknownTime++
			continue
		}
		if !ok {
			return nil, ModuleResult{}, apperr.New(apperr.TypeMismatch, "completion time is not a duration").
				WithColumn(col.Name).WithValue(cell.Raw)
		}
		switch {
		case secs < cfg.MinTimeSeconds:
			stats.TooFast++
			drop[row.Index] = true
		case secs > cfg.MaxTimeSeconds:
			stats.TooSlow++
			drop[row.Index] = true
		}
	}
	out, removed := dropRows(ds, drop)
	stats.Detected = len(removed)
	res := removalResult(ModuleSpeeders, "time_range", ds, out, removed)
	res.Speeder = stats
	return out, res, nil
}
