package cleaning

import (
	"math"

	"github.com/KaramelBytes/surveyloom-cli/internal/apperr"
)

// DedupMethod selects how key-column values are compared.
type DedupMethod string

const (
	DedupExact    DedupMethod = "exact"
	DedupFuzzy    DedupMethod = "fuzzy"
	DedupPhonetic DedupMethod = "phonetic"
)

// ImputeMethod selects how missing numeric cells are filled.
type ImputeMethod string

const (
	ImputeMean     ImputeMethod = "mean"
	ImputeMedian   ImputeMethod = "median"
	ImputeKNN      ImputeMethod = "knn"
	ImputeMultiple ImputeMethod = "multiple_imputation"
)

// OutlierMethod selects the per-row anomaly score.
type OutlierMethod string

const (
	OutlierZScore          OutlierMethod = "zscore"
	OutlierIQR             OutlierMethod = "iqr"
	OutlierIsolationForest OutlierMethod = "isolation_forest"
	OutlierLOF             OutlierMethod = "lof"
)

// Config holds every module's settings plus the seed used by randomized methods.
type Config struct {
	Seed           int64               `json:"seed" yaml:"seed" mapstructure:"seed"`
	Deduplication  DedupConfig         `json:"deduplication" yaml:"deduplication" mapstructure:"deduplication"`
	MissingValues  MissingConfig       `json:"missing_values" yaml:"missing_values" mapstructure:"missing_values"`
	Outliers       OutlierConfig       `json:"outliers" yaml:"outliers" mapstructure:"outliers"`
	InvalidData    InvalidConfig       `json:"invalid_data" yaml:"invalid_data" mapstructure:"invalid_data"`
	StraightLiners StraightLinerConfig `json:"straight_liners" yaml:"straight_liners" mapstructure:"straight_liners"`
	Speeders       SpeederConfig       `json:"speeders" yaml:"speeders" mapstructure:"speeders"`
}

type DedupConfig struct {
	Enabled   bool        `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Method    DedupMethod `json:"method" yaml:"method" mapstructure:"method"`
	Threshold float64     `json:"threshold" yaml:"threshold" mapstructure:"threshold"`
	// KeyColumns are compared between rows. Empty means every column that is
	// not an identifier or excluded.
	KeyColumns []string `json:"key_columns" yaml:"key_columns" mapstructure:"key_columns"`
}

type MissingConfig struct {
	Enabled    bool         `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Method     ImputeMethod `json:"method" yaml:"method" mapstructure:"method"`
	Iterations int          `json:"iterations" yaml:"iterations" mapstructure:"iterations"`
	// Threshold is the largest missing fraction a column may have and still be imputed.
	Threshold float64 `json:"threshold" yaml:"threshold" mapstructure:"threshold"`
	Neighbors int     `json:"neighbors" yaml:"neighbors" mapstructure:"neighbors"`
	// Columns overrides the default target set (numeric response/demographic columns).
	Columns []string `json:"columns" yaml:"columns" mapstructure:"columns"`

	// skipInvalid treats uncoercible cells as neither observed nor missing.
	skipInvalid bool
}

type OutlierConfig struct {
	Enabled       bool          `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Method        OutlierMethod `json:"method" yaml:"method" mapstructure:"method"`
	Contamination float64       `json:"contamination" yaml:"contamination" mapstructure:"contamination"`
	Sensitivity   float64       `json:"sensitivity" yaml:"sensitivity" mapstructure:"sensitivity"`
	Trees         int           `json:"trees" yaml:"trees" mapstructure:"trees"`
	SampleSize    int           `json:"sample_size" yaml:"sample_size" mapstructure:"sample_size"`
	Neighbors     int           `json:"neighbors" yaml:"neighbors" mapstructure:"neighbors"`

	// skipInvalid scores uncoercible cells as missing.
	skipInvalid bool
}

// Rule constrains the values of one column beyond its declared type.
type Rule struct {
	Column  string   `json:"column" yaml:"column" mapstructure:"column"`
	Min     *float64 `json:"min,omitempty" yaml:"min,omitempty" mapstructure:"min"`
	Max     *float64 `json:"max,omitempty" yaml:"max,omitempty" mapstructure:"max"`
	Allowed []string `json:"allowed,omitempty" yaml:"allowed,omitempty" mapstructure:"allowed"`
	Pattern string   `json:"pattern,omitempty" yaml:"pattern,omitempty" mapstructure:"pattern"`
}

type InvalidConfig struct {
	Enabled    bool    `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	StrictMode bool    `json:"strict_mode" yaml:"strict_mode" mapstructure:"strict_mode"`
	Tolerance  float64 `json:"tolerance" yaml:"tolerance" mapstructure:"tolerance"`
	Rules      []Rule  `json:"rules" yaml:"rules" mapstructure:"rules"`
}

type StraightLinerConfig struct {
	Enabled              bool     `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	ConsecutiveThreshold int      `json:"consecutive_threshold" yaml:"consecutive_threshold" mapstructure:"consecutive_threshold"`
	VarianceThreshold    float64  `json:"variance_threshold" yaml:"variance_threshold" mapstructure:"variance_threshold"`
	Columns              []string `json:"columns" yaml:"columns" mapstructure:"columns"`
}

type SpeederConfig struct {
	Enabled        bool    `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	MinTimeSeconds float64 `json:"min_time_seconds" yaml:"min_time_seconds" mapstructure:"min_time_seconds"`
	MaxTimeSeconds float64 `json:"max_time_seconds" yaml:"max_time_seconds" mapstructure:"max_time_seconds"`
	TimeColumn     string  `json:"time_column" yaml:"time_column" mapstructure:"time_column"`

	skipInvalid bool
}

// Clone returns a copy of c that shares no slices or pointers with it.
func (c Config) Clone() Config {
	c.Deduplication.KeyColumns = cloneSlice(c.Deduplication.KeyColumns)
	c.MissingValues.Columns = cloneSlice(c.MissingValues.Columns)
	c.StraightLiners.Columns = cloneSlice(c.StraightLiners.Columns)
	if c.InvalidData.Rules != nil {
		rules := make([]Rule, len(c.InvalidData.Rules))
		for i, r := range c.InvalidData.Rules {
			if r.Min != nil {
				v := *r.Min
				r.Min = &v
			}
			if r.Max != nil {
				v := *r.Max
				r.Max = &v
			}
			r.Allowed = cloneSlice(r.Allowed)
			rules[i] = r
		}
		c.InvalidData.Rules = rules
	}
	return c
}

// DefaultConfig mirrors the defaults offered by the cleaning wizard.
func DefaultConfig() Config {
	return Config{
		Seed: 42,
		Deduplication: DedupConfig{
			Enabled:   true,
			Method:    DedupFuzzy,
			Threshold: 0.85,
		},
		MissingValues: MissingConfig{
			Enabled:    true,
			Method:     ImputeMultiple,
			Iterations: 5,
			Threshold:  0.5,
			Neighbors:  5,
		},
		Outliers: OutlierConfig{
			Enabled:       true,
			Method:        OutlierIsolationForest,
			Contamination: 0.1,
			Sensitivity:   0.8,
			Trees:         100,
			SampleSize:    256,
			Neighbors:     20,
		},
		InvalidData: InvalidConfig{
			Enabled:   false,
			Tolerance: 0.95,
		},
		StraightLiners: StraightLinerConfig{
			Enabled:              true,
			ConsecutiveThreshold: 5,
			VarianceThreshold:    0.1,
		},
		Speeders: SpeederConfig{
			Enabled:        true,
			MinTimeSeconds: 30,
			MaxTimeSeconds: 3600,
			TimeColumn:     "completion_time",
		},
	}
}

func outOfRange(module ModuleName, param string, v, lo, hi float64) error {
	return apperr.New(apperr.InvalidParameter, "%s.%s = %v outside [%v, %v]", module, param, v, lo, hi)
}

func inRange(v, lo, hi float64) bool {
	return !math.IsNaN(v) && v >= lo && v <= hi
}

// Validate checks every enabled module's parameters against their documented bounds.
func (c Config) Validate() error {
	if d := c.Deduplication; d.Enabled {
		switch d.Method {
		case DedupExact, DedupFuzzy, DedupPhonetic:
		default:
			return apperr.New(apperr.InvalidParameter, "unknown deduplication method %q", d.Method)
		}
		if !inRange(d.Threshold, 0.5, 1.0) {
			return outOfRange(ModuleDeduplication, "threshold", d.Threshold, 0.5, 1.0)
		}
	}
	if m := c.MissingValues; m.Enabled {
		switch m.Method {
		case ImputeMean, ImputeMedian, ImputeKNN, ImputeMultiple:
		default:
			return apperr.New(apperr.InvalidParameter, "unknown imputation method %q", m.Method)
		}
		if !inRange(m.Threshold, 0.1, 0.9) {
			return outOfRange(ModuleMissingValues, "threshold", m.Threshold, 0.1, 0.9)
		}
		if m.Method == ImputeMultiple && !inRange(float64(m.Iterations), 1, 50) {
			return outOfRange(ModuleMissingValues, "iterations", float64(m.Iterations), 1, 50)
		}
		if (m.Method == ImputeKNN || m.Method == ImputeMultiple) && !inRange(float64(m.Neighbors), 1, 50) {
			return outOfRange(ModuleMissingValues, "neighbors", float64(m.Neighbors), 1, 50)
		}
	}
	if o := c.Outliers; o.Enabled {
		switch o.Method {
		case OutlierZScore, OutlierIQR, OutlierIsolationForest, OutlierLOF:
		default:
			return apperr.New(apperr.InvalidParameter, "unknown outlier method %q", o.Method)
		}
		if !inRange(o.Contamination, 0.01, 0.3) {
			return outOfRange(ModuleOutliers, "contamination", o.Contamination, 0.01, 0.3)
		}
		if !inRange(o.Sensitivity, 0.5, 1.0) {
			return outOfRange(ModuleOutliers, "sensitivity", o.Sensitivity, 0.5, 1.0)
		}
		if o.Method == OutlierIsolationForest {
			if !inRange(float64(o.Trees), 1, 1000) {
				return outOfRange(ModuleOutliers, "trees", float64(o.Trees), 1, 1000)
			}
			if !inRange(float64(o.SampleSize), 2, 4096) {
				return outOfRange(ModuleOutliers, "sample_size", float64(o.SampleSize), 2, 4096)
			}
		}
		if o.Method == OutlierLOF && !inRange(float64(o.Neighbors), 1, 100) {
			return outOfRange(ModuleOutliers, "neighbors", float64(o.Neighbors), 1, 100)
		}
	}
	if v := c.InvalidData; v.Enabled {
		if !inRange(v.Tolerance, 0.5, 1.0) {
			return outOfRange(ModuleInvalidData, "tolerance", v.Tolerance, 0.5, 1.0)
		}
		for _, r := range v.Rules {
			if r.Column == "" {
				return apperr.New(apperr.InvalidParameter, "invalid_data rule without column")
			}
			if r.Min != nil && r.Max != nil && *r.Min > *r.Max {
				return apperr.New(apperr.InvalidParameter, "rule min %v > max %v", *r.Min, *r.Max).WithColumn(r.Column)
			}
		}
	}
	if s := c.StraightLiners; s.Enabled {
		if !inRange(float64(s.ConsecutiveThreshold), 3, 20) {
			return outOfRange(ModuleStraightLiners, "consecutive_threshold", float64(s.ConsecutiveThreshold), 3, 20)
		}
		if !inRange(s.VarianceThreshold, 0.01, 0.5) {
			return outOfRange(ModuleStraightLiners, "variance_threshold", s.VarianceThreshold, 0.01, 0.5)
		}
	}
	if s := c.Speeders; s.Enabled {
		if s.TimeColumn == "" {
			return apperr.New(apperr.InvalidParameter, "speeders.time_column is required")
		}
		if math.IsNaN(s.MinTimeSeconds) || s.MinTimeSeconds < 0 || !(s.MaxTimeSeconds > s.MinTimeSeconds) {
			return apperr.New(apperr.InvalidParameter, "speeders time range [%v, %v] is invalid", s.MinTimeSeconds, s.MaxTimeSeconds)
		}
	}
	return nil
}
