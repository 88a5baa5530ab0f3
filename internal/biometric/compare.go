package biometric

import (
	"fmt"
	"math"
)

// DefaultThreshold is the maximum accepted Euclidean distance for 128-d dlib templates.
// Lower values are stricter.
const DefaultThreshold = 0.6

// Distance computes the Euclidean (L2) distance between two templates.
// Templates of different length, or empty templates, cannot be compared; this
// happens when a reference was enrolled with a different model version.
func Distance(a, b Template) (float64, error) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}

	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum), nil
}

// IsMatch reports whether distance is strictly below threshold.
// A distance equal to the threshold is a reject.
func IsMatch(distance, threshold float64) bool {
	return distance < threshold
}
