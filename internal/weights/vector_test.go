package weights

import (
	"math"
	"testing"
)

func TestRedistributeIsPure(t *testing.T) {
	cur := Vector{"a": 50, "b": 30, "c": 20}
	locked := map[string]bool{"c": true}
	next, changed := Redistribute(cur, locked, "a", 60)
	if !changed {
		t.Fatalf("expected a change")
	}
	if cur["a"] != 50 || cur["b"] != 30 {
		t.Fatalf("input vector mutated: %v", cur)
	}
	if math.Abs(next["a"]-60) > 1e-9 || math.Abs(next["b"]-20) > 1e-9 || math.Abs(next["c"]-20) > 1e-9 {
		t.Fatalf("next = %v", next)
	}
}

func TestRedistributeLockedDrift(t *testing.T) {
	// b cannot absorb the full -50, so it clamps at 0 and the rescale moves the
	// locked column too.
	cur := Vector{"a": 40, "b": 30, "c": 30}
	next, _ := Redistribute(cur, map[string]bool{"c": true}, "a", 90)
	if next["b"] != 0 {
		t.Fatalf("b = %v", next["b"])
	}
	if math.Abs(next["c"]-30.0/120*100) > 1e-9 {
		t.Fatalf("locked column should drift to %v, got %v", 30.0/120*100, next["c"])
	}
	if !next.Balanced() {
		t.Fatalf("sum = %v", next.Sum())
	}
}

func TestRedistributeUnknownColumn(t *testing.T) {
	cur := Vector{"a": 100}
	if next, changed := Redistribute(cur, nil, "zz", 3); changed || next["a"] != 100 {
		t.Fatalf("unknown column must be a no-op")
	}
}

func TestEqualSplit(t *testing.T) {
	v := EqualSplit([]string{"x", "y", "z"})
	if !v.Balanced() || len(v) != 3 {
		t.Fatalf("v = %v", v)
	}
	if len(EqualSplit(nil)) != 0 {
		t.Fatalf("empty split should be empty")
	}
}
