// Package weights maintains the response-column weight vector used after
// cleaning. Edits redistribute the change evenly over the unlocked columns and
// renormalize so the vector keeps summing to 100.
package weights

import (
	"math"
	"sort"
)

const (
	// Total is the sum every committed vector must reach.
	Total = 100.0
	// Epsilon is the tolerance on Total checked before leaving the weighting stage.
	Epsilon = 0.1
	// HistoryCapacity bounds the undo stack; the oldest entry is dropped first.
	HistoryCapacity = 10
)

// Vector maps response-column names to non-negative weights.
type Vector map[string]float64

// Clone returns an independent copy.
func (v Vector) Clone() Vector {
	out := make(Vector, len(v))
	for k, x := range v {
		out[k] = x
	}
	return out
}

// Sum adds the weights in key order so the result does not depend on map iteration.
func (v Vector) Sum() float64 {
	var s float64
	for _, k := range v.Keys() {
		s += v[k]
	}
	return s
}

// Keys returns the column names sorted.
func (v Vector) Keys() []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Balanced reports whether the vector sums to Total within Epsilon.
func (v Vector) Balanced() bool {
	return math.Abs(v.Sum()-Total) <= Epsilon
}

// EqualSplit gives every column Total/len(columns).
func EqualSplit(columns []string) Vector {
	out := make(Vector, len(columns))
	if len(columns) == 0 {
		return out
	}
	share := Total / float64(len(columns))
	for _, c := range columns {
		out[c] = share
	}
	return out
}

func clamp(x float64) float64 {
	return math.Max(0, math.Min(Total, x))
}

// Redistribute sets column to value and spreads the opposite of the change
// evenly over the other unlocked columns. Every entry is then clamped to
// [0, Total] and the whole vector, locked entries included, is rescaled to sum
// to Total. Locked entries can therefore drift slightly on each edit.
//
// changed is false, and current is returned untouched, when there is no other
// unlocked column to absorb the change or the value is unchanged. The caller
// is responsible for rejecting edits to locked columns.
func Redistribute(current Vector, locked map[string]bool, column string, value float64) (next Vector, changed bool) {
	old, ok := current[column]
	if !ok || old == value {
		return current, false
	}
	var others []string
	for _, k := range current.Keys() {
		if k != column && !locked[k] {
			others = append(others, k)
		}
	}
	if len(others) == 0 {
		return current, false
	}

	next = current.Clone()
	next[column] = value
	adj := -(value - old) / float64(len(others))
	for _, k := range others {
		next[k] += adj
	}
	for k, x := range next {
		next[k] = clamp(x)
	}
	if total := next.Sum(); total > 0 {
		for k, x := range next {
			next[k] = x / total * Total
		}
	}
	return next, true
}
