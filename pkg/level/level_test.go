package level

import (
	"math"
	"testing"
)

func TestAggregateWeightedMean(t *testing.T) {
	res, ok := Aggregate(map[string]int{"A1": 2, "B1": 1, "C2": 1})
	if !ok {
		t.Fatal("expected a result")
	}
	if math.Abs(res.Mean-3.5) > 1e-9 {
		t.Errorf("mean = %v, want 3.5", res.Mean)
	}
	if res.Level != "B2" {
		t.Errorf("level = %s, want B2", res.Level)
	}
	if res.N != 4 {
		t.Errorf("N = %d, want 4", res.N)
	}
}

func TestAggregateBoundaryGoesUp(t *testing.T) {
	// mean (1+2)/2 = 1.5 sits exactly on the A1/A2 boundary
	res, ok := Aggregate(map[string]int{"A1": 1, "A2": 1})
	if !ok {
		t.Fatal("expected a result")
	}
	if res.Level != "A2" {
		t.Errorf("level = %s, want A2", res.Level)
	}
}

func TestAggregateBands(t *testing.T) {
	cases := []struct {
		counts map[string]int
		want   string
	}{
		{map[string]int{"A1": 10}, "A1"},
		{map[string]int{"A2": 5}, "A2"},
		{map[string]int{"B1": 3}, "B1"},
		{map[string]int{"B1": 1, "B2": 1}, "C1"},
		{map[string]int{"C2": 1}, "C2"},
	}
	for _, tc := range cases {
		res, ok := Aggregate(tc.counts)
		if !ok {
			t.Fatalf("expected result for %v", tc.counts)
		}
		if res.Level != tc.want {
			t.Errorf("Aggregate(%v) level = %s, want %s", tc.counts, res.Level, tc.want)
		}
	}
}

func TestAggregateNoRecognizedLevels(t *testing.T) {
	if _, ok := Aggregate(nil); ok {
		t.Error("expected no result for nil counts")
	}
	if _, ok := Aggregate(map[string]int{"": 4, "unknown": 2}); ok {
		t.Error("expected no result for unrecognized labels")
	}
}

func TestAggregateIgnoresUnknownLabels(t *testing.T) {
	res, ok := Aggregate(map[string]int{"A1": 3, "": 10, "N/A": 2})
	if !ok {
		t.Fatal("expected a result")
	}
	if res.N != 3 {
		t.Errorf("N = %d, want 3", res.N)
	}
	if res.Level != "A1" {
		t.Errorf("level = %s, want A1", res.Level)
	}
}
