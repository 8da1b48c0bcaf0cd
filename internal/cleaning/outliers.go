package cleaning

import (
	"math"
	"math/rand"
	"sort"

	"github.com/KaramelBytes/surveyloom-cli/internal/apperr"
	"github.com/KaramelBytes/surveyloom-cli/internal/dataset"
)

// DetectOutliers scores every row over the numeric response columns and removes
// the rows above the contamination cut. Rows between the flag cut and the
// removal cut are kept and listed in FlaggedRows.
func DetectOutliers(ds *dataset.Dataset, cfg OutlierConfig, seed int64) (*dataset.Dataset, ModuleResult, error) {
	var cols []string
	for _, name := range ds.ColumnsByRole(dataset.RoleResponse) {
		if c, _ := ds.Column(name); c.Type.Numeric() {
			cols = append(cols, name)
		}
	}
	stats := &OutlierStats{Columns: cols}
	if cfg.Method == OutlierIsolationForest {
		stats.Seed = seed
	}
	if len(cols) == 0 || ds.Len() < 3 {
		res := removalResult(ModuleOutliers, string(cfg.Method), ds, ds, nil)
		res.Outlier = stats
		return ds, res, nil
	}

	m, err := loadMatrix(ds, cols, cfg.skipInvalid)
	if err != nil {
		return nil, ModuleResult{}, err
	}
	var scores []float64
	switch cfg.Method {
	case OutlierZScore:
		scores = zScores(m)
	case OutlierIQR:
		scores = iqrScores(m)
	case OutlierIsolationForest:
		scores = isolationScores(m.filled(), cfg.Trees, cfg.SampleSize, rand.New(rand.NewSource(seed)))
	case OutlierLOF:
		scores = lofScores(m.filled(), cfg.Neighbors)
	default:
		return nil, ModuleResult{}, apperr.New(apperr.InvalidParameter, "unknown outlier method %q", cfg.Method)
	}

	sorted := sortedCopy(scores)
	removeCut := Quantile(sorted, 1-cfg.Contamination)
	flagCut := Quantile(sorted, 1-cfg.Contamination/cfg.Sensitivity)
	stats.RemovalCut = removeCut
	stats.FlagCut = flagCut

	rows := ds.Rows()
	drop := make(map[int]bool)
	for i, s := range scores {
		switch {
		case s > removeCut:
			drop[rows[i].Index] = true
		case s > flagCut:
			stats.FlaggedRows = append(stats.FlaggedRows, rows[i].Index)
		}
	}
	out, removed := dropRows(ds, drop)
	stats.OutliersRemoved = len(removed)
	stats.OutliersFlagged = len(stats.FlaggedRows)
	stats.OutliersDetected = stats.OutliersRemoved + stats.OutliersFlagged

	res := removalResult(ModuleOutliers, string(cfg.Method), ds, out, removed)
	res.Outlier = stats
	return out, res, nil
}

// zScores is the largest absolute z-score among a row's observed cells.
func zScores(m *numericMatrix) []float64 {
	out := make([]float64, len(m.values))
	for i := range m.values {
		for j := range m.columns {
			z := m.standardized(i, j)
			if !isNaN(z) && math.Abs(z) > out[i] {
				out[i] = math.Abs(z)
			}
		}
	}
	return out
}

// iqrScores is the largest distance beyond the Tukey fences, in IQR units.
func iqrScores(m *numericMatrix) []float64 {
	lo := make([]float64, len(m.columns))
	hi := make([]float64, len(m.columns))
	iqr := make([]float64, len(m.columns))
	for j := range m.columns {
		var obs []float64
		for i := range m.values {
			if !isNaN(m.values[i][j]) {
				obs = append(obs, m.values[i][j])
			}
		}
		s := sortedCopy(obs)
		q1, q3 := Quantile(s, 0.25), Quantile(s, 0.75)
		iqr[j] = q3 - q1
		lo[j] = q1 - 1.5*iqr[j]
		hi[j] = q3 + 1.5*iqr[j]
	}
	out := make([]float64, len(m.values))
	for i := range m.values {
		for j := range m.columns {
			v := m.values[i][j]
			if isNaN(v) {
				continue
			}
			var d float64
			switch {
			case v < lo[j]:
				d = lo[j] - v
			case v > hi[j]:
				d = v - hi[j]
			default:
				continue
			}
			if iqr[j] > 0 {
				d /= iqr[j]
			}
			if d > out[i] {
				out[i] = d
			}
		}
	}
	return out
}

// averagePathLength is c(n), the mean path length of an unsuccessful search in
// a binary search tree of n points.
func averagePathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	}
	h := math.Log(float64(n-1)) + 0.5772156649
	return 2*h - 2*float64(n-1)/float64(n)
}

type iNode struct {
	size        int
	feature     int
	split       float64
	left, right *iNode
}

func buildITree(x [][]float64, idx []int, depth, limit int, rng *rand.Rand) *iNode {
	if depth >= limit || len(idx) <= 1 {
		return &iNode{size: len(idx)}
	}
	// only features with spread in this partition can split it
	var candidates []int
	mins := make([]float64, len(x[0]))
	maxs := make([]float64, len(x[0]))
	for f := range mins {
		mins[f], maxs[f] = math.Inf(1), math.Inf(-1)
		for _, i := range idx {
			mins[f] = math.Min(mins[f], x[i][f])
			maxs[f] = math.Max(maxs[f], x[i][f])
		}
		if maxs[f] > mins[f] {
			candidates = append(candidates, f)
		}
	}
	if len(candidates) == 0 {
		return &iNode{size: len(idx)}
	}
	f := candidates[rng.Intn(len(candidates))]
	split := mins[f] + rng.Float64()*(maxs[f]-mins[f])
	var left, right []int
	for _, i := range idx {
		if x[i][f] < split {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return &iNode{
		size:    len(idx),
		feature: f,
		split:   split,
		left:    buildITree(x, left, depth+1, limit, rng),
		right:   buildITree(x, right, depth+1, limit, rng),
	}
}

func pathLength(n *iNode, row []float64, depth int) float64 {
	if n.left == nil {
		return float64(depth) + averagePathLength(n.size)
	}
	if row[n.feature] < n.split {
		return pathLength(n.left, row, depth+1)
	}
	return pathLength(n.right, row, depth+1)
}

// isolationScores runs a seeded isolation forest and returns 2^(-E[h]/c(psi)).
func isolationScores(x [][]float64, trees, sampleSize int, rng *rand.Rand) []float64 {
	n := len(x)
	psi := sampleSize
	if psi > n {
		psi = n
	}
	limit := int(math.Ceil(math.Log2(float64(psi))))
	forest := make([]*iNode, trees)
	for t := range forest {
		sample := rng.Perm(n)[:psi]
		forest[t] = buildITree(x, sample, 0, limit, rng)
	}
	norm := averagePathLength(psi)
	out := make([]float64, n)
	for i, row := range x {
		var total float64
		for _, tree := range forest {
			total += pathLength(tree, row, 0)
		}
		if norm == 0 {
			continue
		}
		out[i] = math.Pow(2, -(total/float64(trees))/norm)
	}
	return out
}

func euclidean(a, b []float64) float64 {
	var s float64
	for j := range a {
		d := a[j] - b[j]
		s += d * d
	}
	return math.Sqrt(s)
}

type neighbour struct {
	row  int
	dist float64
}

// nearest returns the k rows closest to row i, closest first, with ties going
// to the earlier row. Only k candidates are held at a time.
func nearest(x [][]float64, i, k int) []neighbour {
	out := make([]neighbour, 0, k+1)
	for j := range x {
		if j == i {
			continue
		}
		d := euclidean(x[i], x[j])
		if len(out) == k && d >= out[k-1].dist {
			continue
		}
		pos := sort.Search(len(out), func(a int) bool { return out[a].dist > d })
		out = append(out, neighbour{})
		copy(out[pos+1:], out[pos:])
		out[pos] = neighbour{row: j, dist: d}
		if len(out) > k {
			out = out[:k]
		}
	}
	return out
}

// lofScores computes the local outlier factor of each row against its k
// nearest neighbours, holding k neighbours per row rather than all pairs.
func lofScores(x [][]float64, k int) []float64 {
	n := len(x)
	if k > n-1 {
		k = n - 1
	}
	neighbours := make([][]neighbour, n)
	kdist := make([]float64, n)
	for i := 0; i < n; i++ {
		neighbours[i] = nearest(x, i, k)
		kdist[i] = neighbours[i][k-1].dist
	}
	lrd := make([]float64, n)
	for i := 0; i < n; i++ {
		var reach float64
		for _, nb := range neighbours[i] {
			reach += math.Max(kdist[nb.row], nb.dist)
		}
		lrd[i] = 1 / (reach/float64(k) + 1e-10)
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		var sum float64
		for _, nb := range neighbours[i] {
			sum += lrd[nb.row]
		}
		out[i] = sum / float64(k) / lrd[i]
	}
	return out
}
