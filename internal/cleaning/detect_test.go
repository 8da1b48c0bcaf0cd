package cleaning

import (
	"errors"
	"reflect"
	"testing"

	"github.com/KaramelBytes/surveyloom-cli/internal/apperr"
	"github.com/KaramelBytes/surveyloom-cli/internal/dataset"
)

func timed(t *testing.T, times ...string) *dataset.Dataset {
	t.Helper()
	rows := make([][]string, len(times))
	for i, v := range times {
		rows[i] = []string{string(rune('a' + i)), v}
	}
	return mustDataset(t, []dataset.Column{
		{Name: "id", Role: dataset.RoleIdentifier},
		{Name: "completion_time", Type: dataset.TypeDuration, Role: dataset.RoleMetadata},
	}, rows...)
}

func TestDetectSpeeders(t *testing.T) {
	ds := timed(t, "10", "245", "", "4000", "4:05")
	out, res, err := DetectSpeeders(ds, SpeederConfig{MinTimeSeconds: 30, MaxTimeSeconds: 3600, TimeColumn: "completion_time"})
	if err != nil {
		t.Fatalf("DetectSpeeders: %v", err)
	}
	if !reflect.DeepEqual(res.RemovedRows, []int{0, 3}) {
		t.Fatalf("removed = %v, want [0 3]", res.RemovedRows)
	}
	if !reflect.DeepEqual(out.Indices(), []int{1, 2, 4}) {
		t.Fatalf("kept = %v", out.Indices())
	}
	s := res.Speeder
	if s.Detected != 2 || s.TooFast != 1 || s.TooSlow != 1 || s.UnknownTime != 1 {
		t.Fatalf("stats = %+v", s)
	}
}

func TestDetectSpeedersMissingTimeColumn(t *testing.T) {
	ds := timed(t, "100")
	_, _, err := DetectSpeeders(ds, SpeederConfig{MinTimeSeconds: 30, MaxTimeSeconds: 3600, TimeColumn: "duration"})
	if !errors.Is(err, apperr.ErrMissingTimeColumn) {
		t.Fatalf("expected MissingTimeColumn, got %v", err)
	}
}

func TestDetectSpeedersBadValue(t *testing.T) {
	ds := timed(t, "100", "soon")
	_, _, err := DetectSpeeders(ds, SpeederConfig{MinTimeSeconds: 30, MaxTimeSeconds: 3600, TimeColumn: "completion_time"})
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Kind != apperr.TypeMismatch || ae.Value != "soon" {
		t.Fatalf("expected TypeMismatch on 'soon', got %v", err)
	}
}

func TestDetectSpeedersCountsBadValueWhenValidating(t *testing.T) {
	ds := timed(t, "100", "soon", "5")
	out, res, err := DetectSpeeders(ds, SpeederConfig{MinTimeSeconds: 30, MaxTimeSeconds: 3600, TimeColumn: "completion_time", skipInvalid: true})
	if err != nil {
		t.Fatalf("DetectSpeeders: %v", err)
	}
	if !reflect.DeepEqual(out.Indices(), []int{0, 1}) || res.Speeder.UnknownTime != 1 || res.Speeder.TooFast != 1 {
		t.Fatalf("kept = %v stats = %+v", out.Indices(), res.Speeder)
	}
}

func likertGrid(t *testing.T, rows ...[]string) *dataset.Dataset {
	t.Helper()
	var cols []dataset.Column
	for _, n := range []string{"q1", "q2", "q3", "q4", "q5", "q6"} {
		cols = append(cols, dataset.Column{Name: n, Type: dataset.TypeLikert, Role: dataset.RoleResponse})
	}
	return mustDataset(t, cols, rows...)
}

func TestDetectStraightLiners(t *testing.T) {
	ds := likertGrid(t,
		[]string{"3", "3", "3", "3", "3", "3"},
		[]string{"1", "2", "3", "4", "5", "1"},
		[]string{"3", "3", "3", "3", "", "3"},
		[]string{"2", "2", "2", "2", "2", "4"},
		[]string{"3", "3.05", "3", "3.05", "3", "1"},
	)
	out, res, err := DetectStraightLiners(ds, StraightLinerConfig{ConsecutiveThreshold: 5, VarianceThreshold: 0.1})
	if err != nil {
		t.Fatalf("DetectStraightLiners: %v", err)
	}
	if !reflect.DeepEqual(res.RemovedRows, []int{0, 3, 4}) {
		t.Fatalf("removed = %v, want [0 3 4]", res.RemovedRows)
	}
	if out.Len() != 2 || res.StraightLiner.Detected != 3 {
		t.Fatalf("rows = %d stats = %+v", out.Len(), res.StraightLiner)
	}
	if len(res.StraightLiner.Columns) != 6 {
		t.Fatalf("default columns = %v", res.StraightLiner.Columns)
	}
}

func TestDetectStraightLinersUnknownColumn(t *testing.T) {
	ds := likertGrid(t, []string{"1", "1", "1", "1", "1", "1"})
	_, _, err := DetectStraightLiners(ds, StraightLinerConfig{ConsecutiveThreshold: 3, VarianceThreshold: 0.1, Columns: []string{"q9"}})
	if !errors.Is(err, apperr.ErrUnknownColumn) {
		t.Fatalf("expected UnknownColumn, got %v", err)
	}
}

func TestValidateData(t *testing.T) {
	lo, hi := 18.0, 99.0
	ds := mustDataset(t, []dataset.Column{
		{Name: "age", Type: dataset.TypeNumber, Role: dataset.RoleDemographic},
		{Name: "gender", Type: dataset.TypeCategorical, Role: dataset.RoleDemographic},
	},
		[]string{"25", "M"},
		[]string{"abc", "F"},
		[]string{"15", "m"},
		[]string{"30", "X"},
		[]string{"", "F"},
	)
	rules := []Rule{
		{Column: "age", Min: &lo, Max: &hi},
		{Column: "gender", Allowed: []string{"M", "F"}},
	}

	out, res, err := ValidateData(ds, InvalidConfig{StrictMode: true, Tolerance: 0.95, Rules: rules})
	if err != nil {
		t.Fatalf("ValidateData: %v", err)
	}
	if !reflect.DeepEqual(out.Indices(), []int{0, 4}) {
		t.Fatalf("strict kept %v, want [0 4]", out.Indices())
	}
	if res.Validation.InvalidCells != 3 || len(res.Validation.Violations) != 3 {
		t.Fatalf("stats = %+v", res.Validation)
	}
	v := res.Validation.Violations[0]
	if v.Row != 1 || v.Column != "age" || v.Value != "abc" {
		t.Fatalf("first violation = %+v", v)
	}

	// one of two checked cells is valid, which meets a 0.5 tolerance
	out, res, err = ValidateData(ds, InvalidConfig{Tolerance: 0.5, Rules: rules})
	if err != nil {
		t.Fatalf("ValidateData: %v", err)
	}
	if out.Len() != 5 || res.RowsRemoved != 0 || res.CellsAffected != 3 {
		t.Fatalf("tolerant run removed %d rows", res.RowsRemoved)
	}
}

func TestValidateDataBadPattern(t *testing.T) {
	ds := mustDataset(t, []dataset.Column{{Name: "zip"}}, []string{"1234"})
	_, _, err := ValidateData(ds, InvalidConfig{Tolerance: 0.9, Rules: []Rule{{Column: "zip", Pattern: "(["}}})
	if !errors.Is(err, apperr.ErrInvalidParameter) {
		t.Fatalf("expected InvalidParameter, got %v", err)
	}
}
