package cleaning

import (
	"github.com/KaramelBytes/surveyloom-cli/internal/dataset"
)

// ModuleName identifies a cleaning module.
type ModuleName string

const (
	ModuleDeduplication  ModuleName = "deduplication"
	ModuleMissingValues  ModuleName = "missing_values"
	ModuleOutliers       ModuleName = "outliers"
	ModuleInvalidData    ModuleName = "invalid_data"
	ModuleStraightLiners ModuleName = "straight_liners"
	ModuleSpeeders       ModuleName = "speeders"
)

// CanonicalOrder is the order the engine applies modules in. Later detectors
// assume duplicates are already gone so one respondent is not counted twice.
var CanonicalOrder = []ModuleName{
	ModuleDeduplication,
	ModuleMissingValues,
	ModuleOutliers,
	ModuleInvalidData,
	ModuleStraightLiners,
	ModuleSpeeders,
}

// ModuleResult records one module run. It is built once and never modified.
type ModuleResult struct {
	Module        ModuleName `json:"module"`
	Method        string     `json:"method,omitempty"`
	RowsBefore    int        `json:"rows_before"`
	RowsAfter     int        `json:"rows_after"`
	RowsRemoved   int        `json:"rows_removed"`
	CellsAffected int        `json:"cells_affected"`
	// RemovedRows are the original indices of removed rows.
	RemovedRows []int `json:"removed_rows,omitempty"`

	Dedup         *DedupStats         `json:"dedup,omitempty"`
	Imputation    *ImputationStats    `json:"imputation,omitempty"`
	Outlier       *OutlierStats       `json:"outlier,omitempty"`
	Validation    *ValidationStats    `json:"validation,omitempty"`
	StraightLiner *StraightLinerStats `json:"straight_liner,omitempty"`
	Speeder       *SpeederStats       `json:"speeder,omitempty"`

	// Output is the dataset this module produced.
	Output *dataset.Dataset `json:"-"`
}

type DedupStats struct {
	DuplicatesFound int      `json:"duplicates_found"`
	Clusters        int      `json:"clusters"`
	KeyColumns      []string `json:"key_columns"`
	Threshold       float64  `json:"threshold"`
}

type ImputationStats struct {
	CellsImputed    int      `json:"cells_imputed"`
	ColumnsAffected []string `json:"columns_affected"`
	// SkippedColumns exceeded the missing-fraction threshold and were left untouched.
	SkippedColumns []string `json:"skipped_columns,omitempty"`
	Iterations     int      `json:"iterations,omitempty"`
	Seed           int64    `json:"seed,omitempty"`
}

type OutlierStats struct {
	Columns          []string `json:"columns"`
	OutliersDetected int      `json:"outliers_detected"`
	OutliersRemoved  int      `json:"outliers_removed"`
	OutliersFlagged  int      `json:"outliers_flagged"`
	FlaggedRows      []int    `json:"flagged_rows,omitempty"`
	RemovalCut       float64  `json:"removal_cut"`
	FlagCut          float64  `json:"flag_cut"`
	Seed             int64    `json:"seed,omitempty"`
}

// Violation is one invalid cell.
type Violation struct {
	Row    int    `json:"row"`
	Column string `json:"column"`
	Value  string `json:"value"`
	Reason string `json:"reason"`
}

type ValidationStats struct {
	InvalidCells int         `json:"invalid_cells"`
	StrictMode   bool        `json:"strict_mode"`
	Tolerance    float64     `json:"tolerance"`
	Violations   []Violation `json:"violations,omitempty"`
}

type StraightLinerStats struct {
	Detected  int      `json:"straight_liners_detected"`
	Threshold int      `json:"threshold"`
	Columns   []string `json:"columns"`
}

type SpeederStats struct {
	Detected    int     `json:"speeders_detected"`
	TooFast     int     `json:"too_fast"`
	TooSlow     int     `json:"too_slow"`
	UnknownTime int     `json:"unknown_time"`
	MinTime     float64 `json:"min_time"`
	MaxTime     float64 `json:"max_time"`
	TimeColumn  string  `json:"time_column"`
}

// Summary is the running tally of one engine run.
type Summary struct {
	OriginalRows  int            `json:"original_rows"`
	ProcessedRows int            `json:"processed_rows"`
	Results       []ModuleResult `json:"results"`
	Cancelled     bool           `json:"cancelled,omitempty"`
	// FailedModule names the module whose error stopped the run, if any.
	FailedModule ModuleName `json:"failed_module,omitempty"`

	Output *dataset.Dataset `json:"-"`
}

// TotalRemoved sums RowsRemoved over every module that ran.
func (s *Summary) TotalRemoved() int {
	n := 0
	for _, r := range s.Results {
		n += r.RowsRemoved
	}
	return n
}

// Result returns the named module's result, if it ran.
func (s *Summary) Result(m ModuleName) (ModuleResult, bool) {
	for _, r := range s.Results {
		if r.Module == m {
			return r, true
		}
	}
	return ModuleResult{}, false
}

// Clone deep-copies the summary and its results. Datasets are shared since
// they are never modified.
func (s *Summary) Clone() *Summary {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Results = make([]ModuleResult, len(s.Results))
	for i, r := range s.Results {
		cp.Results[i] = r.clone()
	}
	return &cp
}

func (r ModuleResult) clone() ModuleResult {
	r.RemovedRows = cloneSlice(r.RemovedRows)
	if r.Dedup != nil {
		d := *r.Dedup
		d.KeyColumns = cloneSlice(d.KeyColumns)
		r.Dedup = &d
	}
	if r.Imputation != nil {
		m := *r.Imputation
		m.ColumnsAffected = cloneSlice(m.ColumnsAffected)
		m.SkippedColumns = cloneSlice(m.SkippedColumns)
		r.Imputation = &m
	}
	if r.Outlier != nil {
		o := *r.Outlier
		o.Columns = cloneSlice(o.Columns)
		o.FlaggedRows = cloneSlice(o.FlaggedRows)
		r.Outlier = &o
	}
	if r.Validation != nil {
		v := *r.Validation
		v.Violations = cloneSlice(v.Violations)
		r.Validation = &v
	}
	if r.StraightLiner != nil {
		sl := *r.StraightLiner
		sl.Columns = cloneSlice(sl.Columns)
		r.StraightLiner = &sl
	}
	if r.Speeder != nil {
		sp := *r.Speeder
		r.Speeder = &sp
	}
	return r
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	return append([]T(nil), s...)
}

func (s *Summary) add(r ModuleResult) {
	s.Results = append(s.Results, r)
	s.ProcessedRows = s.OriginalRows - s.TotalRemoved()
	s.Output = r.Output
}

// removalResult fills the row bookkeeping shared by every row-removing module.
func removalResult(module ModuleName, method string, before, after *dataset.Dataset, removed []int) ModuleResult {
	return ModuleResult{
		Module:      module,
		Method:      method,
		RowsBefore:  before.Len(),
		RowsAfter:   after.Len(),
		RowsRemoved: before.Len() - after.Len(),
		RemovedRows: removed,
		Output:      after,
	}
}

// dropRows filters out rows whose original index is in drop.
func dropRows(ds *dataset.Dataset, drop map[int]bool) (*dataset.Dataset, []int) {
	var removed []int
	out := ds.Filter(func(r dataset.Row) bool {
		if drop[r.Index] {
			removed = append(removed, r.Index)
			return false
		}
		return true
	})
	return out, removed
}
