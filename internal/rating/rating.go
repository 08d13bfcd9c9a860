// Package rating folds individual course ratings into a running average.
package rating

import "math"

const (
	// MinRating and MaxRating bound a single review's rating.
	MinRating = 1
	MaxRating = 5
)

// Result is the aggregate after one more rating has been folded in.
type Result struct {
	NewAverage float64
	NewCount   int64
}

// Recalculate adds newRating to an aggregate of currentCount ratings
// averaging currentAverage. The average is rounded half-up to one decimal
// place. Range checking newRating is the caller's job.
func Recalculate(currentAverage float64, currentCount int64, newRating int) Result {
	total := currentAverage*float64(currentCount) + float64(newRating)
	newCount := currentCount + 1
	return Result{
		NewAverage: RoundToOneDecimal(total / float64(newCount)),
		NewCount:   newCount,
	}
}

// Valid reports whether r may be submitted as a review rating.
func Valid(r int) bool {
	return r >= MinRating && r <= MaxRating
}

// RoundToOneDecimal rounds half away from zero at the first decimal digit,
// which is round-half-up for the non-negative averages stored here.
func RoundToOneDecimal(value float64) float64 {
	return math.Round(value*10) / 10.0
}
