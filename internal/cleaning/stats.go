package cleaning

import (
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/KaramelBytes/surveyloom-cli/internal/apperr"
	"github.com/KaramelBytes/surveyloom-cli/internal/dataset"
)

// Quantile interpolates linearly between the closest ranks of a sorted slice.
func Quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}

func sortedCopy(vals []float64) []float64 {
	cp := make([]float64, len(vals))
	copy(cp, vals)
	sort.Float64s(cp)
	return cp
}

func median(vals []float64) float64 {
	return Quantile(sortedCopy(vals), 0.5)
}

// numericMatrix holds the numeric columns of a dataset in row-major order.
// Missing cells are NaN.
type numericMatrix struct {
	columns []string
	values  [][]float64
	mean    []float64
	std     []float64
	median  []float64
	// invalid holds the cells that failed coercion; they are NaN in values too.
	invalid map[[2]int]bool
}

func isNaN(x float64) bool { return math.IsNaN(x) }

// loadMatrix reads the named numeric columns. A cell that fails coercion is a
// TypeMismatch unless skipInvalid is set, in which case it loads as NaN and is
// recorded in invalid.
func loadMatrix(ds *dataset.Dataset, columns []string, skipInvalid bool) (*numericMatrix, error) {
	rows := ds.Rows()
	m := &numericMatrix{
		columns: columns,
		values:  make([][]float64, len(rows)),
		mean:    make([]float64, len(columns)),
		std:     make([]float64, len(columns)),
		median:  make([]float64, len(columns)),
		invalid: make(map[[2]int]bool),
	}
	for i := range m.values {
		m.values[i] = make([]float64, len(columns))
	}
	for j, name := range columns {
		var obs []float64
		for i, row := range rows {
			v, ok, err := row.Float(name)
			if err != nil {
				if !skipInvalid || !errors.Is(err, apperr.ErrTypeMismatch) {
					return nil, err
				}
				m.invalid[[2]int{i, j}] = true
				ok = false
			}
			if ok {
				m.values[i][j] = v
				obs = append(obs, v)
			} else {
				m.values[i][j] = math.NaN()
			}
		}
		if len(obs) > 0 {
			m.mean[j], m.std[j] = stat.MeanStdDev(obs, nil)
			if math.IsNaN(m.std[j]) {
				m.std[j] = 0
			}
			m.median[j] = median(obs)
		}
	}
	return m, nil
}

// standardized returns the z-scaled value of cell (i, j), or NaN if missing.
// Constant columns scale to zero.
func (m *numericMatrix) standardized(i, j int) float64 {
	v := m.values[i][j]
	if isNaN(v) {
		return v
	}
	if m.std[j] == 0 {
		return 0
	}
	return (v - m.mean[j]) / m.std[j]
}

// filled returns standardized rows with missing cells replaced by the column
// median, for methods that need complete vectors.
func (m *numericMatrix) filled() [][]float64 {
	out := make([][]float64, len(m.values))
	for i := range m.values {
		row := make([]float64, len(m.columns))
		for j := range m.columns {
			z := m.standardized(i, j)
			if isNaN(z) {
				if m.std[j] == 0 {
					z = 0
				} else {
					z = (m.median[j] - m.mean[j]) / m.std[j]
				}
			}
			row[j] = z
		}
		out[i] = row
	}
	return out
}

// distance is the Euclidean distance over dimensions both rows observe,
// rescaled to the full dimensionality. ok is false when no dimension is shared.
func distance(a, b []float64, skip int) (float64, bool) {
	var sum float64
	shared, dims := 0, 0
	for j := range a {
		if j == skip {
			continue
		}
		dims++
		if isNaN(a[j]) || isNaN(b[j]) {
			continue
		}
		d := a[j] - b[j]
		sum += d * d
		shared++
	}
	if shared == 0 {
		return 0, false
	}
	return math.Sqrt(sum * float64(dims) / float64(shared)), true
}
