// Package cleaning implements the survey cleaning modules and the engine that
// runs them in canonical order. Every module is a pure function from a Dataset
// and its config to a new Dataset and a ModuleResult.
package cleaning

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/KaramelBytes/surveyloom-cli/internal/dataset"
)

// Engine runs the enabled modules of a Config against a dataset.
type Engine struct {
	logger *zap.Logger
}

// NewEngine creates an engine. A nil logger discards output.
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger}
}

type step struct {
	name ModuleName
	on   bool
	run  func(*dataset.Dataset) (*dataset.Dataset, ModuleResult, error)
}

// steps lists the modules in canonical order. With invalid-data validation
// enabled, the modules around it leave uncoercible cells for validation to
// report instead of failing on them.
func steps(cfg Config) []step {
	if cfg.InvalidData.Enabled {
		cfg.MissingValues.skipInvalid = true
		cfg.Outliers.skipInvalid = true
		cfg.Speeders.skipInvalid = true
	}
	return []step{
		{ModuleDeduplication, cfg.Deduplication.Enabled, func(d *dataset.Dataset) (*dataset.Dataset, ModuleResult, error) {
			return Deduplicate(d, cfg.Deduplication)
		}},
		{ModuleMissingValues, cfg.MissingValues.Enabled, func(d *dataset.Dataset) (*dataset.Dataset, ModuleResult, error) {
			return ImputeMissing(d, cfg.MissingValues, cfg.Seed)
		}},
		{ModuleOutliers, cfg.Outliers.Enabled, func(d *dataset.Dataset) (*dataset.Dataset, ModuleResult, error) {
			return DetectOutliers(d, cfg.Outliers, cfg.Seed)
		}},
		{ModuleInvalidData, cfg.InvalidData.Enabled, func(d *dataset.Dataset) (*dataset.Dataset, ModuleResult, error) {
			return ValidateData(d, cfg.InvalidData)
		}},
		{ModuleStraightLiners, cfg.StraightLiners.Enabled, func(d *dataset.Dataset) (*dataset.Dataset, ModuleResult, error) {
			return DetectStraightLiners(d, cfg.StraightLiners)
		}},
		{ModuleSpeeders, cfg.Speeders.Enabled, func(d *dataset.Dataset) (*dataset.Dataset, ModuleResult, error) {
			return DetectSpeeders(d, cfg.Speeders)
		}},
	}
}

// Run applies the enabled modules in CanonicalOrder. Cancellation is checked
// between modules: on cancellation the summary holds every completed module
// and Output is the last completed module's dataset. A module error stops the
// run the same way, with FailedModule set, and is returned alongside the summary.
func (e *Engine) Run(ctx context.Context, ds *dataset.Dataset, cfg Config) (*Summary, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sum := &Summary{
		OriginalRows:  ds.Len(),
		ProcessedRows: ds.Len(),
		Results:       []ModuleResult{},
		Output:        ds,
	}
	cur := ds
	for _, s := range steps(cfg) {
		if !s.on {
			continue
		}
		if err := ctx.Err(); err != nil {
			sum.Cancelled = true
			e.logger.Warn("cleaning cancelled",
				zap.String("next_module", string(s.name)),
				zap.Int("completed", len(sum.Results)))
			return sum, err
		}
		next, res, err := s.run(cur)
		if err != nil {
			sum.FailedModule = s.name
			e.logger.Warn("cleaning module failed", zap.String("module", string(s.name)), zap.Error(err))
			return sum, fmt.Errorf("%s: %w", s.name, err)
		}
		sum.add(res)
		cur = next
		e.logger.Info("cleaning module complete",
			zap.String("module", string(s.name)),
			zap.String("method", res.Method),
			zap.Int("rows_before", res.RowsBefore),
			zap.Int("rows_after", res.RowsAfter),
			zap.Int("removed", res.RowsRemoved),
			zap.Int("cells_affected", res.CellsAffected))
	}
	return sum, nil
}
