// Package analysis profiles a dataset column by column: inferred kind,
// Welford mean/std, robust (MAD) outlier counts, top categories, optional
// group-by means and correlations, rendered as a compact markdown summary.
package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/KaramelBytes/surveyloom-cli/internal/apperr"
	"github.com/KaramelBytes/surveyloom-cli/internal/cleaning"
	"github.com/KaramelBytes/surveyloom-cli/internal/dataset"
)

// Options controls profiling.
type Options struct {
	// SampleRows determines how many example rows to include in the report.
	SampleRows int
	// GroupBy computes per-group means for the given column names.
	GroupBy []string
	// Correlations computes Pearson correlations among numeric columns.
	Correlations bool
	// Outlier detection via robust Z-score (MAD). If Outliers is true, counts |z|>threshold.
	Outliers         bool
	OutlierThreshold float64
	// TopValues caps the categories listed per categorical column.
	TopValues int
}

// DefaultOptions returns reasonable defaults for survey profiling.
func DefaultOptions() Options {
	return Options{
		SampleRows:       5,
		Outliers:         true,
		OutlierThreshold: 3.5,
		TopValues:        8,
	}
}

// Report is a markdown-friendly profile of a dataset.
type Report struct {
	Name     string          `json:"name"`
	Rows     int             `json:"rows"`
	Cols     []ColumnSummary `json:"columns"`
	Samples  [][]string      `json:"samples,omitempty"`
	Warnings []string        `json:"warnings,omitempty"`
	Groups   []GroupResult   `json:"groups,omitempty"`
	Corr     *CorrMatrix     `json:"correlations,omitempty"`
	// CompleteResponses counts rows that answered every response column.
	CompleteResponses int `json:"complete_responses"`
}

// ColumnSummary captures inferred kind and statistics per column.
type ColumnSummary struct {
	Name    string             `json:"name"`
	Type    dataset.ColumnType `json:"type"`
	Role    dataset.Role       `json:"role"`
	Kind    string             `json:"kind"` // numeric|datetime|categorical|text|empty
	NonNull int                `json:"non_null"`
	Missing int                `json:"missing"`
	Unique  int                `json:"unique"`
	// Numeric stats
	Min  float64 `json:"min,omitempty"`
	Max  float64 `json:"max,omitempty"`
	Mean float64 `json:"mean,omitempty"`
	Std  float64 `json:"std,omitempty"`
	// Outliers (robust Z via MAD)
	OutliersCount    int     `json:"outliers,omitempty"`
	OutliersMaxAbsZ  float64 `json:"outliers_max_abs_z,omitempty"`
	OutlierThreshold float64 `json:"outlier_threshold,omitempty"`
	// Categorical top values
	TopValues    []CategoryCount `json:"top_values,omitempty"`
	ExampleTexts []string        `json:"examples,omitempty"`
}

// Completeness is the non-missing share of the column's cells.
func (c ColumnSummary) Completeness() float64 {
	total := c.NonNull + c.Missing
	if total == 0 {
		return 0
	}
	return float64(c.NonNull) / float64(total)
}

// CV is the coefficient of variation, 0 when the mean is 0.
func (c ColumnSummary) CV() float64 {
	if c.Mean == 0 {
		return 0
	}
	return c.Std / math.Abs(c.Mean)
}

type CategoryCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// GroupResult captures per-group means of the numeric columns.
type GroupResult struct {
	Key     string                `json:"key"`
	Size    int                   `json:"size"`
	Metrics map[string]NumSummary `json:"metrics"`
}

type NumSummary struct {
	Count          int
	Min, Max, Mean float64
}

// CorrMatrix holds a symmetric Pearson correlation matrix across numeric columns.
type CorrMatrix struct {
	Columns []string    `json:"columns"`
	Values  [][]float64 `json:"values"` // row-major, Values[i][j]
}

// Column returns the summary for name.
func (r *Report) Column(name string) (ColumnSummary, bool) {
	for _, c := range r.Cols {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnSummary{}, false
}

// colAcc accumulates one column in a single pass.
type colAcc struct {
	// numeric stats via Welford
	n    int
	mean float64
	m2   float64
	min  float64
	max  float64

	numCnt int
	dtCnt  int
	txtCnt int
	bad    int
	cats   map[string]int
	exText []string
	vals   []float64
	x      []float64 // per row, NaN where not numeric
}

func (c *colAcc) add(x float64) {
	c.numCnt++
	c.n++
	if x < c.min {
		c.min = x
	}
	if x > c.max {
		c.max = x
	}
	delta := x - c.mean
	c.mean += delta / float64(c.n)
	c.m2 += delta * (x - c.mean)
	c.vals = append(c.vals, x)
}

// Profile summarizes every column of ds. Declared numeric columns are read
// through their type; text columns are inferred per value like a raw upload.
func Profile(ds *dataset.Dataset, name string, opt Options) (*Report, error) {
	cols := ds.Columns()
	rep := &Report{Name: name, Rows: ds.Len()}
	sampleRows := opt.SampleRows
	if sampleRows < 0 {
		sampleRows = 0
	}
	topN := opt.TopValues
	if topN <= 0 {
		topN = 8
	}

	accs := make([]*colAcc, len(cols))
	for j := range cols {
		accs[j] = &colAcc{min: math.Inf(1), max: math.Inf(-1), cats: map[string]int{}, x: make([]float64, ds.Len())}
	}
	var gcols []string
	for _, g := range opt.GroupBy {
		if !ds.HasColumn(g) {
			return nil, apperr.New(apperr.UnknownColumn, "cannot group by").WithColumn(g)
		}
		gcols = append(gcols, g)
	}
	groupOf := make([]string, ds.Len())
	if sampleRows > ds.Len() {
		sampleRows = ds.Len()
	}
	if sampleRows > 0 {
		rep.Samples = ds.Records()[:sampleRows]
	}

	for i, row := range ds.Rows() {
		answered := true
		for _, col := range cols {
			if col.Role != dataset.RoleResponse {
				continue
			}
			if c, _ := row.Cell(col.Name); !c.Valid {
				answered = false
				break
			}
		}
		if answered {
			rep.CompleteResponses++
		}
		if len(gcols) > 0 {
			var parts []string
			for _, g := range gcols {
				c, _ := row.Cell(g)
				parts = append(parts, fmt.Sprintf("%s=%s", g, safeVal(c.String())))
			}
			groupOf[i] = strings.Join(parts, " | ")
		}
		for j, col := range cols {
			c := accs[j]
			c.x[i] = math.NaN()
			cell, _ := row.Cell(col.Name)
			if !cell.Valid {
				continue
			}
			v := strings.TrimSpace(cell.Raw)
			if col.Type.Numeric() {
				x, ok, err := row.Float(col.Name)
				if err != nil {
					c.bad++
					continue
				}
				if ok {
					c.add(x)
					c.x[i] = x
				}
				continue
			}
			if col.Type == dataset.TypeText {
				if x, ok := dataset.ParseNumber(v); ok {
					c.add(x)
					c.x[i] = x
					continue
				}
				if _, ok := dataset.ParseTime(v); ok {
					c.dtCnt++
					continue
				}
			}
			if col.Type == dataset.TypeDate {
				c.dtCnt++
				continue
			}
			c.txtCnt++
			if len(c.cats) <= 10000 && len(v) <= 64 {
				c.cats[v]++
			}
			if len(c.exText) < 3 {
				c.exText = append(c.exText, v)
			}
		}
	}

	var numCols []int
	rep.Cols = make([]ColumnSummary, len(cols))
	for j, col := range cols {
		c := accs[j]
		missing, _ := ds.MissingCount(col.Name)
		s := ColumnSummary{Name: col.Name, Type: col.Type, Role: col.Role, NonNull: ds.Len() - missing, Missing: missing}
		if c.bad > 0 {
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("%s: %d value(s) do not parse as %s", col.Name, c.bad, col.Type))
		}
		switch {
		case c.numCnt > 0 && c.numCnt >= c.dtCnt && c.numCnt >= c.txtCnt:
			s.Kind = "numeric"
			s.Min, s.Max, s.Mean = c.min, c.max, c.mean
			if c.n > 1 {
				s.Std = math.Sqrt(c.m2 / float64(c.n-1))
			}
			s.Unique = distinct(c.vals)
			numCols = append(numCols, j)
			if opt.Outliers && len(c.vals) >= 8 {
				s.OutliersCount, s.OutliersMaxAbsZ, s.OutlierThreshold = robustOutliers(c.vals, opt.OutlierThreshold)
			}
		case c.dtCnt > 0 && c.dtCnt >= c.txtCnt:
			s.Kind = "datetime"
		case len(c.cats) > 0 && (col.Type == dataset.TypeCategorical || col.Type == dataset.TypeBoolean || len(c.cats) <= max(20, s.NonNull/2)):
			s.Kind = "categorical"
			s.TopValues = topValues(c.cats, topN)
			s.Unique = len(c.cats)
		case c.txtCnt > 0:
			s.Kind = "text"
			s.ExampleTexts = c.exText
			s.Unique = len(c.cats)
		default:
			s.Kind = "empty"
		}
		rep.Cols[j] = s
	}

	if len(gcols) > 0 {
		rep.Groups = groupMeans(groupOf, cols, accs, numCols)
	}
	if opt.Correlations && len(numCols) >= 2 {
		rep.Corr = correlations(cols, accs, numCols)
	}
	return rep, nil
}

func distinct(vals []float64) int {
	seen := make(map[float64]struct{}, len(vals))
	for _, v := range vals {
		seen[v] = struct{}{}
	}
	return len(seen)
}

func robustOutliers(vals []float64, thr float64) (count int, maxAbsZ, threshold float64) {
	if thr <= 0 {
		thr = 3.5
	}
	median, mad := medianMAD(vals)
	if mad > 0 {
		for _, v := range vals {
			az := math.Abs(0.6745 * (v - median) / mad)
			if az > thr {
				count++
			}
			if az > maxAbsZ {
				maxAbsZ = az
			}
		}
	}
	return count, maxAbsZ, thr
}

func topValues(cats map[string]int, n int) []CategoryCount {
	tops := make([]CategoryCount, 0, len(cats))
	for k, v := range cats {
		tops = append(tops, CategoryCount{Value: k, Count: v})
	}
	sort.Slice(tops, func(i, j int) bool {
		if tops[i].Count == tops[j].Count {
			return tops[i].Value < tops[j].Value
		}
		return tops[i].Count > tops[j].Count
	})
	if len(tops) > n {
		tops = tops[:n]
	}
	return tops
}

func groupMeans(groupOf []string, cols []dataset.Column, accs []*colAcc, numCols []int) []GroupResult {
	byKey := map[string]*GroupResult{}
	sums := map[string]map[string]float64{}
	for i, key := range groupOf {
		g := byKey[key]
		if g == nil {
			g = &GroupResult{Key: key, Metrics: map[string]NumSummary{}}
			byKey[key] = g
			sums[key] = map[string]float64{}
		}
		g.Size++
		for _, j := range numCols {
			x := accs[j].x[i]
			if math.IsNaN(x) {
				continue
			}
			name := cols[j].Name
			m, ok := g.Metrics[name]
			if !ok || x < m.Min {
				m.Min = x
			}
			if !ok || x > m.Max {
				m.Max = x
			}
			m.Count++
			sums[key][name] += x
			m.Mean = sums[key][name] / float64(m.Count)
			g.Metrics[name] = m
		}
	}
	out := make([]GroupResult, 0, len(byKey))
	for _, g := range byKey {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Size == out[j].Size {
			return out[i].Key < out[j].Key
		}
		return out[i].Size > out[j].Size
	})
	if len(out) > 20 {
		out = out[:20]
	}
	return out
}

// correlations uses pairwise-complete rows for every pair of numeric columns.
func correlations(cols []dataset.Column, accs []*colAcc, numCols []int) *CorrMatrix {
	n := len(numCols)
	m := &CorrMatrix{Columns: make([]string, n), Values: make([][]float64, n)}
	for a, j := range numCols {
		m.Columns[a] = cols[j].Name
		m.Values[a] = make([]float64, n)
		m.Values[a][a] = 1
	}
	for a := 0; a < n; a++ {
		for b := a + 1; b < n; b++ {
			xa, xb := accs[numCols[a]].x, accs[numCols[b]].x
			var x, y []float64
			for i := range xa {
				if !math.IsNaN(xa[i]) && !math.IsNaN(xb[i]) {
					x = append(x, xa[i])
					y = append(y, xb[i])
				}
			}
			r := 0.0
			if len(x) >= 2 {
				r = stat.Correlation(x, y, nil)
			}
			if math.IsNaN(r) || math.IsInf(r, 0) {
				r = 0
			}
			m.Values[a][b], m.Values[b][a] = r, r
		}
	}
	return m
}

// medianMAD computes median and MAD (median absolute deviation) of values.
func medianMAD(vals []float64) (median, mad float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	cp := make([]float64, len(vals))
	copy(cp, vals)
	sort.Float64s(cp)
	median = cleaning.Quantile(cp, 0.5)
	dev := make([]float64, len(cp))
	for i, v := range cp {
		dev[i] = math.Abs(v - median)
	}
	sort.Float64s(dev)
	mad = cleaning.Quantile(dev, 0.5)
	return
}
