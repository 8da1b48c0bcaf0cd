package cleaning

import (
	"errors"
	"fmt"
	"math/rand"
	"reflect"
	"testing"

	"github.com/KaramelBytes/surveyloom-cli/internal/apperr"
	"github.com/KaramelBytes/surveyloom-cli/internal/dataset"
)

func mustDataset(t *testing.T, cols []dataset.Column, rows ...[]string) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.New(cols, rows)
	if err != nil {
		t.Fatalf("dataset.New: %v", err)
	}
	return ds
}

func people(t *testing.T, rows ...[]string) *dataset.Dataset {
	return mustDataset(t, []dataset.Column{
		{Name: "id", Type: dataset.TypeText, Role: dataset.RoleIdentifier},
		{Name: "name", Type: dataset.TypeText, Role: dataset.RoleDemographic},
		{Name: "age", Type: dataset.TypeNumber, Role: dataset.RoleDemographic},
	}, rows...)
}

func TestDeduplicateExactThresholdOne(t *testing.T) {
	ds := people(t,
		[]string{"1", "Alice", "30"},
		[]string{"2", "Bob", "41"},
		[]string{"3", "Alice", "30"},
	)
	out, res, err := Deduplicate(ds, DedupConfig{Enabled: true, Method: DedupExact, Threshold: 1.0})
	if err != nil {
		t.Fatalf("Deduplicate: %v", err)
	}
	if res.Dedup.DuplicatesFound != 1 || res.RowsRemoved != 1 || res.Dedup.Clusters != 1 {
		t.Fatalf("unexpected stats: %+v removed=%d", res.Dedup, res.RowsRemoved)
	}
	if got := out.Indices(); !reflect.DeepEqual(got, []int{0, 1}) {
		t.Fatalf("kept rows = %v, want [0 1]", got)
	}
	if !reflect.DeepEqual(res.RemovedRows, []int{2}) {
		t.Fatalf("removed rows = %v", res.RemovedRows)
	}
	if !reflect.DeepEqual(res.Dedup.KeyColumns, []string{"name", "age"}) {
		t.Fatalf("default keys = %v", res.Dedup.KeyColumns)
	}
	if ds.Len() != 3 {
		t.Fatalf("input mutated: %d rows", ds.Len())
	}
}

func TestDeduplicateFuzzyKeepsFirstOfCluster(t *testing.T) {
	ds := people(t,
		[]string{"1", "Jon Smith", "30"},
		[]string{"2", "Jane Doe", "30"},
		[]string{"3", "John  Smith", "30"},
		[]string{"4", "john smith", "30"},
	)
	out, res, err := Deduplicate(ds, DedupConfig{Method: DedupFuzzy, Threshold: 0.85, KeyColumns: []string{"name"}})
	if err != nil {
		t.Fatalf("Deduplicate: %v", err)
	}
	if got := out.Indices(); !reflect.DeepEqual(got, []int{0, 1}) {
		t.Fatalf("kept rows = %v, want [0 1]", got)
	}
	if res.Dedup.DuplicatesFound != 2 || res.Dedup.Clusters != 1 {
		t.Fatalf("stats = %+v", res.Dedup)
	}
}

func TestDeduplicatePhonetic(t *testing.T) {
	ds := people(t,
		[]string{"1", "Smith", "30"},
		[]string{"2", "Smyth", "30"},
		[]string{"3", "Smyth", "31"},
	)
	out, res, err := Deduplicate(ds, DedupConfig{Method: DedupPhonetic, Threshold: 1.0})
	if err != nil {
		t.Fatalf("Deduplicate: %v", err)
	}
	if got := out.Indices(); !reflect.DeepEqual(got, []int{0, 2}) {
		t.Fatalf("kept rows = %v, want [0 2]", got)
	}
	if res.Dedup.DuplicatesFound != 1 {
		t.Fatalf("duplicates = %d", res.Dedup.DuplicatesFound)
	}
}

func TestDeduplicateUnknownKey(t *testing.T) {
	ds := people(t, []string{"1", "A", "1"})
	_, _, err := Deduplicate(ds, DedupConfig{Method: DedupExact, Threshold: 1, KeyColumns: []string{"email"}})
	if !errors.Is(err, apperr.ErrUnknownColumn) {
		t.Fatalf("expected UnknownColumn, got %v", err)
	}
}

func TestSoundex(t *testing.T) {
	cases := map[string]string{
		"Robert":   "R163",
		"Rupert":   "R163",
		"Ashcraft": "A261",
		"Tymczak":  "T522",
		"Pfister":  "P236",
		"Honeyman": "H555",
		"Lee":      "L000",
		"":         "",
	}
	for in, want := range cases {
		if got := soundex(in); got != want {
			t.Errorf("soundex(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSimilarity(t *testing.T) {
	a := []string{"jon smith", "30"}
	b := []string{"john smith", "30"}
	got := similarity(a, b, DedupFuzzy)
	if got < 0.94 || got > 0.96 {
		t.Fatalf("fuzzy similarity = %v, want 0.95", got)
	}
	if s := similarity(a, b, DedupExact); s != 0.5 {
		t.Fatalf("exact similarity = %v, want 0.5", s)
	}
	if similarAtLeast(a, b, DedupFuzzy, 0.96) {
		t.Fatalf("similarAtLeast should reject 0.95 against 0.96")
	}
	if !similarAtLeast(a, b, DedupFuzzy, 0.9) {
		t.Fatalf("similarAtLeast should accept 0.95 against 0.9")
	}
}

// scanDuplicates compares each row with every earlier representative, in order.
func scanDuplicates(norm [][]string, method DedupMethod, threshold float64) (removed []int, clusters int) {
	var reps []int
	members := map[int]int{}
	for i := range norm {
		matched := false
		for _, r := range reps {
			if similarAtLeast(norm[r], norm[i], method, threshold) {
				members[r]++
				removed = append(removed, i)
				matched = true
				break
			}
		}
		if !matched {
			reps = append(reps, i)
		}
	}
	return removed, len(members)
}

func TestDeduplicateLargeInputMatchesFullScan(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	first := []string{"Ann", "Anne", "Bob", "Robert", "Rob", "Jon", "John", "Jane", "Smyth", "Smith", "Mary", "Marie"}
	var rows [][]string
	for i := 0; i < 2000; i++ {
		if i > 0 && i%50 == 0 {
			dup := append([]string(nil), rows[rng.Intn(i)]...)
			dup[0] = fmt.Sprint(i)
			rows = append(rows, dup)
			continue
		}
		rows = append(rows, []string{
			fmt.Sprint(i),
			first[rng.Intn(len(first))] + " " + first[rng.Intn(len(first))],
			fmt.Sprint(18 + rng.Intn(70)),
			fmt.Sprint(1 + rng.Intn(5)),
			fmt.Sprint(1 + rng.Intn(5)),
		})
	}
	ds := mustDataset(t, []dataset.Column{
		{Name: "id", Role: dataset.RoleIdentifier},
		{Name: "name", Role: dataset.RoleDemographic},
		{Name: "age", Type: dataset.TypeNumber, Role: dataset.RoleDemographic},
		{Name: "q1", Type: dataset.TypeLikert, Role: dataset.RoleResponse},
		{Name: "q2", Type: dataset.TypeLikert, Role: dataset.RoleResponse},
	}, rows...)

	cases := []DedupConfig{
		{Method: DedupExact, Threshold: 1.0},
		{Method: DedupExact, Threshold: 0.75},
		{Method: DedupPhonetic, Threshold: 0.5},
		{Method: DedupFuzzy, Threshold: 0.85},
		{Method: DedupFuzzy, Threshold: 0.6},
		{Method: DedupFuzzy, Threshold: 1.0},
	}
	for _, cfg := range cases {
		t.Run(fmt.Sprintf("%s_%.2f", cfg.Method, cfg.Threshold), func(t *testing.T) {
			_, res, err := Deduplicate(ds, cfg)
			if err != nil {
				t.Fatalf("Deduplicate: %v", err)
			}
			var norm [][]string
			for _, r := range rows {
				var vals []string
				for _, v := range r[1:] {
					vals = append(vals, normalizeKey(v, cfg.Method))
				}
				norm = append(norm, vals)
			}
			wantRemoved, wantClusters := scanDuplicates(norm, cfg.Method, cfg.Threshold)
			if len(wantRemoved) == 0 {
				wantRemoved = nil
			}
			gotRemoved := res.RemovedRows
			if len(gotRemoved) == 0 {
				gotRemoved = nil
			}
			if !reflect.DeepEqual(gotRemoved, wantRemoved) {
				t.Fatalf("removed %d rows, full scan removes %d", len(gotRemoved), len(wantRemoved))
			}
			if res.Dedup.Clusters != wantClusters {
				t.Fatalf("clusters = %d, want %d", res.Dedup.Clusters, wantClusters)
			}
			if cfg.Threshold == 1.0 && len(gotRemoved) < 39 {
				t.Fatalf("planted duplicates missed: %d removed", len(gotRemoved))
			}
		})
	}
}
