package cleaning

import (
	"math"
	"math/rand"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/stat"

	"github.com/KaramelBytes/surveyloom-cli/internal/apperr"
	"github.com/KaramelBytes/surveyloom-cli/internal/dataset"
)

// ImputeMissing fills missing numeric cells of response and demographic columns.
// Columns whose missing fraction exceeds the threshold are reported as skipped
// and left untouched. Every fill is computed from the input dataset, so the
// order in which columns are processed does not matter.
func ImputeMissing(ds *dataset.Dataset, cfg MissingConfig, seed int64) (*dataset.Dataset, ModuleResult, error) {
	targets, err := imputationTargets(ds, cfg.Columns)
	if err != nil {
		return nil, ModuleResult{}, err
	}
	features := unionColumns(defaultNumericColumns(ds), targets)

	stats := &ImputationStats{ColumnsAffected: []string{}}
	if cfg.Method == ImputeMultiple {
		stats.Iterations = cfg.Iterations
		stats.Seed = seed
	}
	res := ModuleResult{
		Module:     ModuleMissingValues,
		Method:     string(cfg.Method),
		RowsBefore: ds.Len(),
		RowsAfter:  ds.Len(),
		Imputation: stats,
		Output:     ds,
	}
	if ds.Len() == 0 || len(targets) == 0 {
		return ds, res, nil
	}

	m, err := loadMatrix(ds, features, cfg.skipInvalid)
	if err != nil {
		return nil, ModuleResult{}, err
	}
	z := make([][]float64, ds.Len())
	for i := range z {
		z[i] = make([]float64, len(features))
		for j := range features {
			z[i][j] = m.standardized(i, j)
		}
	}
	rng := rand.New(rand.NewSource(seed))

	var edits []dataset.Edit
	for _, name := range targets {
		j := indexOf(features, name)
		col, _ := ds.Column(name)
		var observed []float64
		var missing []int
		for i := range m.values {
			if m.invalid[[2]int{i, j}] {
				continue
			}
			if isNaN(m.values[i][j]) {
				missing = append(missing, i)
			} else {
				observed = append(observed, m.values[i][j])
			}
		}
		if len(missing) == 0 {
			continue
		}
		if float64(len(missing))/float64(ds.Len()) > cfg.Threshold || len(observed) == 0 {
			stats.SkippedColumns = append(stats.SkippedColumns, name)
			continue
		}

		mean := stat.Mean(observed, nil)
		for _, i := range missing {
			var v float64
			switch cfg.Method {
			case ImputeMean:
				v = mean
			case ImputeMedian:
				v = median(observed)
			case ImputeKNN:
				v = knnEstimate(m, z, i, j, cfg.Neighbors, mean)
			case ImputeMultiple:
				v = multipleEstimate(m, z, i, j, cfg.Neighbors, cfg.Iterations, rng, mean)
			default:
				return nil, ModuleResult{}, apperr.New(apperr.InvalidParameter, "unknown imputation method %q", cfg.Method)
			}
			edits = append(edits, dataset.Edit{Row: i, Column: name, Value: dataset.Text(formatFill(v, col.Type))})
		}
		stats.ColumnsAffected = append(stats.ColumnsAffected, name)
	}

	out, err := ds.Apply(edits)
	if err != nil {
		return nil, ModuleResult{}, err
	}
	stats.CellsImputed = len(edits)
	res.CellsAffected = len(edits)
	res.Output = out
	return out, res, nil
}

func imputationTargets(ds *dataset.Dataset, explicit []string) ([]string, error) {
	if len(explicit) == 0 {
		return defaultNumericColumns(ds), nil
	}
	for _, name := range explicit {
		col, ok := ds.Column(name)
		if !ok {
			return nil, apperr.New(apperr.UnknownColumn, "imputation column not in dataset").WithColumn(name)
		}
		if !col.Type.Numeric() {
			return nil, apperr.New(apperr.UnsupportedColumnType, "cannot impute %s column", col.Type).WithColumn(name)
		}
	}
	return explicit, nil
}

func defaultNumericColumns(ds *dataset.Dataset) []string {
	var out []string
	for _, c := range ds.Columns() {
		if (c.Role == dataset.RoleResponse || c.Role == dataset.RoleDemographic) && c.Type.Numeric() {
			out = append(out, c.Name)
		}
	}
	return out
}

func unionColumns(a, b []string) []string {
	out := append([]string(nil), a...)
	for _, n := range b {
		if indexOf(out, n) < 0 {
			out = append(out, n)
		}
	}
	return out
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}

type donor struct {
	row  int
	dist float64
}

// nearestDonors returns up to k rows with an observed target, closest first.
// Ties break on row position so the choice is deterministic.
func nearestDonors(m *numericMatrix, z [][]float64, i, j, k int) []donor {
	var ds []donor
	for r := range m.values {
		if r == i || isNaN(m.values[r][j]) {
			continue
		}
		d, ok := distance(z[i], z[r], j)
		if !ok {
			continue
		}
		ds = append(ds, donor{row: r, dist: d})
	}
	sort.SliceStable(ds, func(a, b int) bool { return ds[a].dist < ds[b].dist })
	if len(ds) > k {
		ds = ds[:k]
	}
	return ds
}

func knnEstimate(m *numericMatrix, z [][]float64, i, j, k int, fallback float64) float64 {
	donors := nearestDonors(m, z, i, j, k)
	if len(donors) == 0 {
		return fallback
	}
	var sum float64
	for _, d := range donors {
		sum += m.values[d.row][j]
	}
	return sum / float64(len(donors))
}

// multipleEstimate averages N hot-deck draws from the nearest donors.
func multipleEstimate(m *numericMatrix, z [][]float64, i, j, k, iterations int, rng *rand.Rand, fallback float64) float64 {
	donors := nearestDonors(m, z, i, j, k)
	if len(donors) == 0 {
		return fallback
	}
	var sum float64
	for it := 0; it < iterations; it++ {
		sum += m.values[donors[rng.Intn(len(donors))].row][j]
	}
	return sum / float64(iterations)
}

func formatFill(v float64, t dataset.ColumnType) string {
	if t == dataset.TypeLikert {
		v = math.Round(v)
	} else {
		v = math.Round(v*1e4) / 1e4
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
