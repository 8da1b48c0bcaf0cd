package weights

import (
	"math"

	"github.com/KaramelBytes/surveyloom-cli/internal/apperr"
)

// Engine holds the current vector, the locked set and the undo history for one
// session. It is not safe for concurrent use; the owning session serializes calls.
type Engine struct {
	columns []string
	current Vector
	locked  map[string]bool
	history []Vector
}

// State is a read-only view of the engine for display and serialization.
type State struct {
	Columns      []string `json:"columns"`
	Weights      Vector   `json:"weights"`
	Locked       []string `json:"locked"`
	Total        float64  `json:"total"`
	Balanced     bool     `json:"balanced"`
	HistoryDepth int      `json:"history_depth"`
}

// NewEngine starts with an equal split over columns and nothing locked.
func NewEngine(columns []string) (*Engine, error) {
	if len(columns) == 0 {
		return nil, apperr.New(apperr.InvalidParameter, "no response columns to weight")
	}
	seen := make(map[string]bool, len(columns))
	for _, c := range columns {
		if seen[c] {
			return nil, apperr.New(apperr.InvalidParameter, "duplicate weight column").WithColumn(c)
		}
		seen[c] = true
	}
	return &Engine{
		columns: append([]string(nil), columns...),
		current: EqualSplit(columns),
		locked:  make(map[string]bool),
	}, nil
}

// Columns returns the weighted columns in dataset order.
func (e *Engine) Columns() []string {
	return append([]string(nil), e.columns...)
}

// Weights returns a copy of the current vector.
func (e *Engine) Weights() Vector { return e.current.Clone() }

// Weight returns one column's weight.
func (e *Engine) Weight(column string) (float64, error) {
	w, ok := e.current[column]
	if !ok {
		return 0, unknown(column)
	}
	return w, nil
}

func unknown(column string) error {
	return apperr.New(apperr.UnknownColumn, "not a weighted column").WithColumn(column)
}

func (e *Engine) push() {
	e.history = append(e.history, e.current.Clone())
	if len(e.history) > HistoryCapacity {
		e.history = e.history[len(e.history)-HistoryCapacity:]
	}
}

// SetWeight edits one column and redistributes the difference. It reports
// whether the vector changed; an unchanged vector leaves history alone.
func (e *Engine) SetWeight(column string, value float64) (bool, error) {
	if _, ok := e.current[column]; !ok {
		return false, unknown(column)
	}
	if e.locked[column] {
		return false, apperr.New(apperr.ColumnLocked, "unlock the column before editing it").WithColumn(column)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return false, apperr.New(apperr.InvalidParameter, "weight must be a finite number").WithColumn(column)
	}
	next, changed := Redistribute(e.current, e.locked, column, clamp(value))
	if !changed {
		return false, nil
	}
	e.push()
	e.current = next
	return true, nil
}

// Lock excludes a column from direct edits and redistribution shares.
func (e *Engine) Lock(column string) error {
	if _, ok := e.current[column]; !ok {
		return unknown(column)
	}
	e.locked[column] = true
	return nil
}

// Unlock reverses Lock.
func (e *Engine) Unlock(column string) error {
	if _, ok := e.current[column]; !ok {
		return unknown(column)
	}
	delete(e.locked, column)
	return nil
}

func (e *Engine) IsLocked(column string) bool { return e.locked[column] }

// Locked lists the locked columns in dataset order.
func (e *Engine) Locked() []string {
	out := []string{}
	for _, c := range e.columns {
		if e.locked[c] {
			out = append(out, c)
		}
	}
	return out
}

// ApplySuggestion replaces the whole vector. Keys must match the weighted
// columns exactly; values are rescaled to sum to Total. The locked set is kept.
func (e *Engine) ApplySuggestion(v Vector) error {
	if len(v) != len(e.columns) {
		return apperr.New(apperr.ColumnSetMismatch, "suggestion has %d columns, expected %d", len(v), len(e.columns))
	}
	for _, c := range e.columns {
		x, ok := v[c]
		if !ok {
			return apperr.New(apperr.ColumnSetMismatch, "suggestion is missing a weighted column").WithColumn(c)
		}
		if math.IsNaN(x) || math.IsInf(x, 0) || x < 0 {
			return apperr.New(apperr.InvalidParameter, "suggested weight %v is not a non-negative number", x).WithColumn(c)
		}
	}
	total := v.Sum()
	if total <= 0 {
		return apperr.New(apperr.InvalidWeightTotal, "suggested weights sum to %v", total)
	}
	next := make(Vector, len(v))
	for k, x := range v {
		next[k] = x / total * Total
	}
	e.push()
	e.current = next
	return nil
}

// Reset restores the equal split and clears every lock.
func (e *Engine) Reset() {
	e.push()
	e.current = EqualSplit(e.columns)
	e.locked = make(map[string]bool)
}

// Undo restores the vector saved before the most recent change.
func (e *Engine) Undo() error {
	if len(e.history) == 0 {
		return apperr.New(apperr.NoHistory, "nothing to undo")
	}
	last := len(e.history) - 1
	e.current = e.history[last]
	e.history = e.history[:last]
	return nil
}

// HistoryDepth is the number of undo steps available.
func (e *Engine) HistoryDepth() int { return len(e.history) }

// Total is the current sum of weights.
func (e *Engine) Total() float64 { return e.current.Sum() }

// CheckTotal is the guard applied before leaving the weighting stage.
func (e *Engine) CheckTotal() error {
	if !e.current.Balanced() {
		return apperr.New(apperr.InvalidWeightTotal, "weights sum to %.2f, expected %.0f ± %.1f", e.current.Sum(), Total, Epsilon)
	}
	return nil
}

// State snapshots the engine.
func (e *Engine) State() State {
	return State{
		Columns:      e.Columns(),
		Weights:      e.Weights(),
		Locked:       e.Locked(),
		Total:        e.Total(),
		Balanced:     e.current.Balanced(),
		HistoryDepth: len(e.history),
	}
}
