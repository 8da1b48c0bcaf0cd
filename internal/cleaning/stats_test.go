package cleaning

import (
	"math"
	"testing"
)

func TestQuantile(t *testing.T) {
	s := []float64{1, 2, 4, 10}
	cases := map[float64]float64{0: 1, 0.25: 1.75, 0.5: 3, 1: 10, 1.5: 10, -1: 1}
	for q, want := range cases {
		if got := Quantile(s, q); math.Abs(got-want) > 1e-12 {
			t.Fatalf("Quantile(%v) = %v, want %v", q, got, want)
		}
	}
	if Quantile(nil, 0.5) != 0 {
		t.Fatalf("empty input should give 0")
	}
}
