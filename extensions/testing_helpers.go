package extensions

import (
	"math"
	"testing"
)

func AssertAreEqual[T comparable](t *testing.T, name string, expected T, actual T) {
	t.Helper()
	if expected != actual {
		t.Fatalf("value mismatch for %s, expected %v, got %v", name, expected, actual)
	}
}

// AssertInDelta fails when actual strays more than tolerance from expected.
// Most of the statistical assertions in this repo are tolerance based, so
// this keeps the comparison in one place.
func AssertInDelta(t *testing.T, name string, expected, actual, tolerance float64) {
	t.Helper()
	if math.IsNaN(actual) || math.Abs(expected-actual) > tolerance {
		t.Errorf("value mismatch for %s, expected %.6f +/- %.6f, got %.6f", name, expected, tolerance, actual)
	}
}
