// Package suggest proposes importance weights for response columns. The
// built-in suggester is offline: it scores columns from their profile.
package suggest

import (
	"context"
	"fmt"
	"math"

	"github.com/KaramelBytes/surveyloom-cli/internal/analysis"
	"github.com/KaramelBytes/surveyloom-cli/internal/apperr"
	"github.com/KaramelBytes/surveyloom-cli/internal/dataset"
	"github.com/KaramelBytes/surveyloom-cli/internal/weights"
)

// Suggestion is one proposed weight with a short rationale for the UI.
type Suggestion struct {
	Column string  `json:"column"`
	Weight float64 `json:"weight"`
	Reason string  `json:"reason"`
}

// Suggester is implemented by anything that can propose weights, so a remote
// model can stand in for the profile scorer.
type Suggester interface {
	Suggest(ctx context.Context, ds *dataset.Dataset, columns []string) ([]Suggestion, error)
}

// Profiler scores columns by completeness and spread.
type Profiler struct{}

func (Profiler) Suggest(ctx context.Context, ds *dataset.Dataset, columns []string) ([]Suggestion, error) {
	return Weights(ctx, ds, columns)
}

// Weights scores each column as completeness × (1 + min(CV, 1)) and scales
// the scores to sum to 100. Weights are rounded to 0.1 and the last column
// takes the remainder. Empty columns means every response column.
func Weights(ctx context.Context, ds *dataset.Dataset, columns []string) ([]Suggestion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		columns = ds.ColumnsByRole(dataset.RoleResponse)
	}
	if len(columns) == 0 {
		return nil, apperr.New(apperr.InvalidParameter, "no response columns to weight")
	}
	for _, c := range columns {
		if !ds.HasColumn(c) {
			return nil, apperr.New(apperr.UnknownColumn, "cannot suggest a weight").WithColumn(c)
		}
	}
	sub, err := ds.Select(columns...)
	if err != nil {
		return nil, err
	}
	rep, err := analysis.Profile(sub, "", analysis.Options{})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scores := make([]float64, len(columns))
	reasons := make([]string, len(columns))
	total := 0.0
	for i, c := range rep.Cols {
		spread := math.Min(c.CV(), 1)
		scores[i] = c.Completeness() * (1 + spread)
		total += scores[i]
		if c.Kind == "numeric" {
			reasons[i] = fmt.Sprintf("%.0f%% answered, spread (CV) %.2f", c.Completeness()*100, c.CV())
		} else {
			reasons[i] = fmt.Sprintf("%.0f%% answered, %s column", c.Completeness()*100, c.Kind)
		}
	}

	out := make([]Suggestion, len(columns))
	assigned := 0.0
	for i, name := range columns {
		var w float64
		switch {
		case i == len(columns)-1:
			w = round1(weights.Total - assigned)
		case total > 0:
			w = round1(scores[i] / total * weights.Total)
		default:
			w = round1(weights.Total / float64(len(columns)))
		}
		if w < 0 {
			w = 0
		}
		assigned += w
		out[i] = Suggestion{Column: name, Weight: w, Reason: reasons[i]}
	}
	return out, nil
}

// ToVector converts suggestions into the map accepted by ApplySuggestion.
func ToVector(s []Suggestion) weights.Vector {
	out := make(weights.Vector, len(s))
	for _, x := range s {
		out[x.Column] = x.Weight
	}
	return out
}

func round1(x float64) float64 { return math.Round(x*10) / 10 }
