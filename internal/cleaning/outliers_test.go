package cleaning

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"reflect"
	"sort"
	"testing"

	"github.com/KaramelBytes/surveyloom-cli/internal/apperr"
	"github.com/KaramelBytes/surveyloom-cli/internal/dataset"
)

// clusterWithOutlier builds 19 tightly grouped rows plus one extreme row at index 19.
func clusterWithOutlier(t *testing.T) *dataset.Dataset {
	t.Helper()
	var rows [][]string
	for i := 0; i < 19; i++ {
		rows = append(rows, []string{fmt.Sprint(i), fmt.Sprint(10 + i%4), fmt.Sprint(20 + i%3)})
	}
	rows = append(rows, []string{"19", "90", "95"})
	return mustDataset(t, []dataset.Column{
		{Name: "id", Role: dataset.RoleIdentifier},
		{Name: "q1", Type: dataset.TypeNumber, Role: dataset.RoleResponse},
		{Name: "q2", Type: dataset.TypeNumber, Role: dataset.RoleResponse},
	}, rows...)
}

func TestDetectOutliersRemovesExtremeRow(t *testing.T) {
	for _, method := range []OutlierMethod{OutlierZScore, OutlierIQR, OutlierIsolationForest, OutlierLOF} {
		t.Run(string(method), func(t *testing.T) {
			ds := clusterWithOutlier(t)
			cfg := OutlierConfig{Method: method, Contamination: 0.05, Sensitivity: 1.0, Trees: 100, SampleSize: 256, Neighbors: 5}
			out, res, err := DetectOutliers(ds, cfg, 42)
			if err != nil {
				t.Fatalf("DetectOutliers: %v", err)
			}
			if !reflect.DeepEqual(res.RemovedRows, []int{19}) {
				t.Fatalf("removed = %v, want [19]", res.RemovedRows)
			}
			if out.Len() != 19 || res.Outlier.OutliersRemoved != 1 {
				t.Fatalf("rows after = %d, stats = %+v", out.Len(), res.Outlier)
			}
			if !reflect.DeepEqual(res.Outlier.Columns, []string{"q1", "q2"}) {
				t.Fatalf("columns = %v", res.Outlier.Columns)
			}
		})
	}
}

func TestDetectOutliersFlagsBetweenCuts(t *testing.T) {
	var rows [][]string
	for i := 1; i <= 20; i++ {
		rows = append(rows, []string{fmt.Sprint(i * i)})
	}
	ds := mustDataset(t, []dataset.Column{{Name: "q", Type: dataset.TypeNumber, Role: dataset.RoleResponse}}, rows...)

	out, res, err := DetectOutliers(ds, OutlierConfig{Method: OutlierZScore, Contamination: 0.1, Sensitivity: 0.5}, 0)
	if err != nil {
		t.Fatalf("DetectOutliers: %v", err)
	}
	if !reflect.DeepEqual(res.RemovedRows, []int{18, 19}) {
		t.Fatalf("removed = %v, want [18 19]", res.RemovedRows)
	}
	if !reflect.DeepEqual(res.Outlier.FlaggedRows, []int{16, 17}) {
		t.Fatalf("flagged = %v, want [16 17]", res.Outlier.FlaggedRows)
	}
	if res.Outlier.OutliersDetected != 4 || out.Len() != 18 {
		t.Fatalf("stats = %+v rows = %d", res.Outlier, out.Len())
	}
	if !(res.Outlier.FlagCut < res.Outlier.RemovalCut) {
		t.Fatalf("flag cut %v should sit below removal cut %v", res.Outlier.FlagCut, res.Outlier.RemovalCut)
	}
}

func TestDetectOutliersWithoutNumericResponses(t *testing.T) {
	ds := mustDataset(t, []dataset.Column{{Name: "note", Role: dataset.RoleResponse}},
		[]string{"a"}, []string{"b"}, []string{"c"}, []string{"d"})
	out, res, err := DetectOutliers(ds, DefaultConfig().Outliers, 42)
	if err != nil {
		t.Fatalf("DetectOutliers: %v", err)
	}
	if out.Len() != 4 || res.RowsRemoved != 0 {
		t.Fatalf("expected no-op, removed %d", res.RowsRemoved)
	}
}

func TestIsolationForestIsSeeded(t *testing.T) {
	ds := clusterWithOutlier(t)
	m, err := loadMatrix(ds, []string{"q1", "q2"}, false)
	if err != nil {
		t.Fatalf("loadMatrix: %v", err)
	}
	a := isolationScores(m.filled(), 50, 16, rand.New(rand.NewSource(3)))
	b := isolationScores(m.filled(), 50, 16, rand.New(rand.NewSource(3)))
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("same seed produced different scores")
	}
	for i, s := range a {
		if s <= 0 || s >= 1 {
			t.Fatalf("score %d = %v outside (0,1)", i, s)
		}
	}
}

func TestAveragePathLength(t *testing.T) {
	if averagePathLength(1) != 0 || averagePathLength(2) != 1 {
		t.Fatalf("base cases wrong")
	}
	// c(256) is about 10.24
	if c := averagePathLength(256); c < 10.2 || c > 10.3 {
		t.Fatalf("c(256) = %v", c)
	}
}

func TestDetectOutliersNonFiniteText(t *testing.T) {
	var rows [][]string
	for i := 0; i < 18; i++ {
		rows = append(rows, []string{fmt.Sprint(10 + i%4)})
	}
	rows = append(rows, []string{"inf"}, []string{"900"})
	ds := mustDataset(t, []dataset.Column{{Name: "q", Type: dataset.TypeNumber, Role: dataset.RoleResponse}}, rows...)
	cfg := OutlierConfig{Method: OutlierZScore, Contamination: 0.05, Sensitivity: 1.0}

	if _, _, err := DetectOutliers(ds, cfg, 0); !errors.Is(err, apperr.ErrTypeMismatch) {
		t.Fatalf("expected TypeMismatch for inf, got %v", err)
	}

	// with validation downstream the inf cell is scored as missing
	cfg.skipInvalid = true
	out, res, err := DetectOutliers(ds, cfg, 0)
	if err != nil {
		t.Fatalf("DetectOutliers: %v", err)
	}
	if !reflect.DeepEqual(res.RemovedRows, []int{19}) {
		t.Fatalf("removed = %v, want [19]", res.RemovedRows)
	}
	if c, _ := out.Cell(18, "q"); c.Raw != "inf" {
		t.Fatalf("uncoercible cell changed to %q", c.Raw)
	}
}

// pairwiseLOF is the textbook computation over a full distance matrix.
func pairwiseLOF(x [][]float64, k int) []float64 {
	n := len(x)
	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
		for j := range dist[i] {
			dist[i][j] = euclidean(x[i], x[j])
		}
	}
	nbrs := make([][]int, n)
	kdist := make([]float64, n)
	for i := 0; i < n; i++ {
		var others []int
		for j := 0; j < n; j++ {
			if j != i {
				others = append(others, j)
			}
		}
		sort.SliceStable(others, func(a, b int) bool { return dist[i][others[a]] < dist[i][others[b]] })
		nbrs[i] = others[:k]
		kdist[i] = dist[i][others[k-1]]
	}
	lrd := make([]float64, n)
	for i := range lrd {
		var reach float64
		for _, j := range nbrs[i] {
			reach += math.Max(kdist[j], dist[i][j])
		}
		lrd[i] = 1 / (reach/float64(k) + 1e-10)
	}
	out := make([]float64, n)
	for i := range out {
		var sum float64
		for _, j := range nbrs[i] {
			sum += lrd[j]
		}
		out[i] = sum / float64(k) / lrd[i]
	}
	return out
}

func TestLOFMatchesPairwiseComputation(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	x := make([][]float64, 300)
	for i := range x {
		// integer grid points so distance ties occur
		x[i] = []float64{float64(rng.Intn(6)), float64(rng.Intn(6)), rng.NormFloat64()}
	}
	x[299] = []float64{40, 40, 40}
	got := lofScores(x, 7)
	want := pairwiseLOF(x, 7)
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Fatalf("row %d: lof %v, want %v", i, got[i], want[i])
		}
	}
	if got[299] <= got[0] {
		t.Fatalf("far point not scored higher: %v vs %v", got[299], got[0])
	}
}

func TestNearestKeepsClosestK(t *testing.T) {
	x := [][]float64{{0}, {5}, {1}, {-1}, {3}, {1}}
	nb := nearest(x, 0, 3)
	var rows []int
	for _, n := range nb {
		rows = append(rows, n.row)
	}
	// rows 2, 3 and 5 all sit at distance 1; earlier rows win ties
	if !reflect.DeepEqual(rows, []int{2, 3, 5}) {
		t.Fatalf("neighbours = %v", rows)
	}
}
