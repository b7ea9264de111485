package errors

import (
	"fmt"
	"math"
)

// CheckFinite returns a ValueError when value is NaN or ±Inf.
// Scores produced by scorers pass through this before being recorded.
func CheckFinite(operation string, value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return NewValueError(operation, fmt.Sprintf("non-finite value %g", value))
	}
	return nil
}

// SafeDivide performs division with protection against division by zero.
// Returns 0 if denominator is zero or close to zero.
func SafeDivide(numerator, denominator float64) float64 {
	if math.Abs(denominator) < 1e-10 {
		return 0
	}
	return numerator / denominator
}
