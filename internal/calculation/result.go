package calculation

import (
	"time"

	"github.com/noah-isme/sma-grade-engine/internal/models"
)

// NewResult builds a stored result. This is the single place averages are rounded, so
// every level above re-derives from the same two-decimal values.
func NewResult(key models.ResultKey, classID string, average float64, configVersion string, computedAt time.Time) *models.CalculationResult {
	result := &models.CalculationResult{
		ResultKey:     key.Normalize(),
		ClassID:       classID,
		AverageValue:  Round(average),
		ConfigVersion: configVersion,
		ComputedAt:    computedAt.UTC(),
	}
	Describe(result)
	return result
}

// Value returns the stored average of a possibly absent result.
func Value(result *models.CalculationResult) *float64 {
	if result == nil {
		return nil
	}
	v := result.AverageValue
	return &v
}

// Settle picks the result to store after a recomputation. previous is kept, timestamp
// included, only when fresh carries the same outcome and no input was computed after it.
func Settle(previous, fresh *models.CalculationResult, inputs []*models.CalculationResult) *models.CalculationResult {
	if previous == nil || fresh == nil {
		return fresh
	}
	if !previous.SameValue(*fresh) || NewerInput(previous, inputs) {
		return fresh
	}
	return previous
}
