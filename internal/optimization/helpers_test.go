package optimization

import (
	"math"
	"testing"
)

// assertFloat64SlicesEqual checks if two float64 slices are approximately equal
func assertFloat64SlicesEqual(t *testing.T, got, want []float64, tol float64) {
	t.Helper()

	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}

	for i := range got {
		if math.Abs(got[i]-want[i]) > tol {
			t.Fatalf("at index %d: got %v, want %v (tolerance %v)", i, got[i], want[i], tol)
		}
	}
}

// record builds a ResultRecord with a one-dimensional solution tagged by id
// so tests can tell equal-valued records apart.
func record(id, value float64) ResultRecord {
	return ResultRecord{Solution: Vector{id}, Value: value}
}
