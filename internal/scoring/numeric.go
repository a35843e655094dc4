// Package scoring holds the pure arithmetic of CIE results: activity
// normalization, subject aggregation and the analytics reductions.
package scoring

import "math"

const (
	// MaxRubricPoints is the ceiling of every rubric regardless of activity marks.
	MaxRubricPoints = 5
	// FinalCeiling is the system-wide scale of a subject result.
	FinalCeiling = 15.0
)

// Round2 rounds half away from zero to two decimals.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}
