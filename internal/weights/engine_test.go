package weights

import (
	"errors"
	"math"
	"math/rand"
	"reflect"
	"testing"

	"github.com/KaramelBytes/surveyloom-cli/internal/apperr"
)

var cols = []string{"q1", "q2", "q3", "q4"}

func newEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(cols)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func TestEqualSplitOnEntry(t *testing.T) {
	e := newEngine(t)
	for _, c := range cols {
		if w, _ := e.Weight(c); w != 25 {
			t.Fatalf("%s = %v, want 25", c, w)
		}
	}
	if err := e.CheckTotal(); err != nil {
		t.Fatalf("CheckTotal: %v", err)
	}
}

func TestSetWeightSpreadsDeltaEvenly(t *testing.T) {
	e := newEngine(t)
	changed, err := e.SetWeight("q1", 40)
	if err != nil || !changed {
		t.Fatalf("SetWeight: changed=%v err=%v", changed, err)
	}
	want := Vector{"q1": 40, "q2": 20, "q3": 20, "q4": 20}
	for k, v := range want {
		if math.Abs(e.Weights()[k]-v) > 1e-9 {
			t.Fatalf("%s = %v, want %v", k, e.Weights()[k], v)
		}
	}
}

func TestSetWeightClampsAndRenormalizes(t *testing.T) {
	e := newEngine(t)
	if err := e.Lock("q4"); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	// q2 and q3 each absorb -35 and clamp at zero; the rest is rescaled
	if _, err := e.SetWeight("q1", 95); err != nil {
		t.Fatalf("SetWeight: %v", err)
	}
	w := e.Weights()
	if w["q2"] != 0 || w["q3"] != 0 {
		t.Fatalf("unlocked others should clamp to 0: %v", w)
	}
	if math.Abs(w["q1"]-95.0/120*100) > 1e-9 || math.Abs(w["q4"]-25.0/120*100) > 1e-9 {
		t.Fatalf("renormalization wrong: %v", w)
	}
	if !w.Balanced() {
		t.Fatalf("sum = %v", w.Sum())
	}
}

func TestSetWeightIdempotentAtCurrentValue(t *testing.T) {
	e := newEngine(t)
	changed, err := e.SetWeight("q2", 25)
	if err != nil || changed {
		t.Fatalf("setting the current value must be a no-op: changed=%v err=%v", changed, err)
	}
	if e.HistoryDepth() != 0 {
		t.Fatalf("no-op pushed history")
	}
}

func TestSetWeightWithoutUnlockedOthersIsNoOp(t *testing.T) {
	e := newEngine(t)
	for _, c := range []string{"q2", "q3", "q4"} {
		_ = e.Lock(c)
	}
	before := e.Weights()
	changed, err := e.SetWeight("q1", 70)
	if err != nil || changed {
		t.Fatalf("changed=%v err=%v", changed, err)
	}
	if !reflect.DeepEqual(before, e.Weights()) {
		t.Fatalf("vector changed")
	}
}

func TestLockedColumnRejectsEdit(t *testing.T) {
	e := newEngine(t)
	_ = e.Lock("q3")
	_, err := e.SetWeight("q3", 50)
	if !errors.Is(err, apperr.ErrColumnLocked) {
		t.Fatalf("expected ColumnLocked, got %v", err)
	}
	if w, _ := e.Weight("q3"); w != 25 {
		t.Fatalf("locked value changed to %v", w)
	}
	_ = e.Unlock("q3")
	if _, err := e.SetWeight("q3", 50); err != nil {
		t.Fatalf("after unlock: %v", err)
	}
}

func TestUndoRestoresExactVector(t *testing.T) {
	e := newEngine(t)
	_, _ = e.SetWeight("q1", 33.3)
	before := e.Weights()
	if _, err := e.SetWeight("q2", 12.7); err != nil {
		t.Fatalf("SetWeight: %v", err)
	}
	if err := e.Undo(); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	after := e.Weights()
	for k := range before {
		if math.Float64bits(before[k]) != math.Float64bits(after[k]) {
			t.Fatalf("%s: %v != %v", k, before[k], after[k])
		}
	}
}

func TestUndoEmptyHistory(t *testing.T) {
	e := newEngine(t)
	if err := e.Undo(); !errors.Is(err, apperr.ErrNoHistory) {
		t.Fatalf("expected NoHistory, got %v", err)
	}
}

func TestHistoryIsBounded(t *testing.T) {
	e := newEngine(t)
	for i := 0; i < 15; i++ {
		if _, err := e.SetWeight("q1", float64(10+i)); err != nil {
			t.Fatalf("SetWeight: %v", err)
		}
	}
	if e.HistoryDepth() != HistoryCapacity {
		t.Fatalf("depth = %d, want %d", e.HistoryDepth(), HistoryCapacity)
	}
	for i := 0; i < HistoryCapacity; i++ {
		if err := e.Undo(); err != nil {
			t.Fatalf("undo %d: %v", i, err)
		}
	}
	if w, _ := e.Weight("q1"); math.Abs(w-14) > 1e-9 {
		t.Fatalf("oldest retained state has q1 = %v, want 14", w)
	}
}

func TestApplySuggestion(t *testing.T) {
	e := newEngine(t)
	_ = e.Lock("q1")
	if err := e.ApplySuggestion(Vector{"q1": 1, "q2": 1, "q3": 1, "q4": 2}); err != nil {
		t.Fatalf("ApplySuggestion: %v", err)
	}
	w := e.Weights()
	if math.Abs(w["q4"]-40) > 1e-9 || math.Abs(w["q1"]-20) > 1e-9 {
		t.Fatalf("weights = %v", w)
	}
	if !e.IsLocked("q1") {
		t.Fatalf("locks should survive a suggestion")
	}
	if e.HistoryDepth() != 1 {
		t.Fatalf("suggestion should push history")
	}

	err := e.ApplySuggestion(Vector{"q1": 50, "q2": 50, "q3": 0, "q9": 0})
	if !errors.Is(err, apperr.ErrColumnSetMismatch) {
		t.Fatalf("expected ColumnSetMismatch, got %v", err)
	}
	err = e.ApplySuggestion(Vector{"q1": 50, "q2": 50})
	if !errors.Is(err, apperr.ErrColumnSetMismatch) {
		t.Fatalf("expected ColumnSetMismatch, got %v", err)
	}
	err = e.ApplySuggestion(Vector{"q1": 0, "q2": 0, "q3": 0, "q4": 0})
	if !errors.Is(err, apperr.ErrInvalidWeightTotal) {
		t.Fatalf("expected InvalidWeightTotal, got %v", err)
	}
	if e.HistoryDepth() != 1 {
		t.Fatalf("rejected suggestions must not push history")
	}
}

func TestResetClearsLocks(t *testing.T) {
	e := newEngine(t)
	_, _ = e.SetWeight("q1", 70)
	_ = e.Lock("q2")
	e.Reset()
	if len(e.Locked()) != 0 {
		t.Fatalf("locks = %v", e.Locked())
	}
	if !reflect.DeepEqual(e.Weights(), EqualSplit(cols)) {
		t.Fatalf("weights = %v", e.Weights())
	}
	if err := e.Undo(); err != nil {
		t.Fatalf("Undo after reset: %v", err)
	}
	if w, _ := e.Weight("q1"); math.Abs(w-70) > 1e-9 {
		t.Fatalf("undo after reset gave q1 = %v", w)
	}
}

func TestUnknownColumn(t *testing.T) {
	e := newEngine(t)
	if _, err := e.SetWeight("nope", 1); !errors.Is(err, apperr.ErrUnknownColumn) {
		t.Fatalf("SetWeight: %v", err)
	}
	if err := e.Lock("nope"); !errors.Is(err, apperr.ErrUnknownColumn) {
		t.Fatalf("Lock: %v", err)
	}
}

func TestCheckTotalGuard(t *testing.T) {
	e := newEngine(t)
	e.current["q1"] = 30
	if err := e.CheckTotal(); !errors.Is(err, apperr.ErrInvalidWeightTotal) {
		t.Fatalf("expected InvalidWeightTotal, got %v", err)
	}
}

// Random edit sequences must keep the sum at 100 and never touch locked
// columns through SetWeight.
func TestRandomOperationsKeepTotal(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	e := newEngine(t)
	for step := 0; step < 2000; step++ {
		c := cols[rng.Intn(len(cols))]
		switch rng.Intn(6) {
		case 0, 1, 2:
			before, _ := e.Weight(c)
			_, err := e.SetWeight(c, rng.Float64()*120-10)
			if e.IsLocked(c) {
				if !errors.Is(err, apperr.ErrColumnLocked) {
					t.Fatalf("step %d: locked edit returned %v", step, err)
				}
				if after, _ := e.Weight(c); after != before {
					t.Fatalf("step %d: locked column moved", step)
				}
			} else if err != nil {
				t.Fatalf("step %d: %v", step, err)
			}
		case 3:
			if e.IsLocked(c) {
				_ = e.Unlock(c)
			} else {
				_ = e.Lock(c)
			}
		case 4:
			v := Vector{}
			for _, k := range cols {
				v[k] = rng.Float64() * 10
			}
			v[c] += 1
			if err := e.ApplySuggestion(v); err != nil {
				t.Fatalf("step %d: %v", step, err)
			}
		case 5:
			if rng.Intn(4) == 0 {
				e.Reset()
			} else {
				_ = e.Undo()
			}
		}
		if !e.Weights().Balanced() {
			t.Fatalf("step %d: sum = %v", step, e.Total())
		}
		for k, w := range e.Weights() {
			if w < 0 || w > Total {
				t.Fatalf("step %d: %s = %v out of range", step, k, w)
			}
		}
	}
}
