package calculation

import (
	"fmt"
	"math"

	"github.com/noah-isme/sma-grade-engine/internal/models"
	appErrors "github.com/noah-isme/sma-grade-engine/pkg/errors"
)

const (
	MinScore = 0.0
	MaxScore = 100.0

	weightTolerance = 0.001
)

// ValidateScore rejects scores outside [0,100].
func ValidateScore(score float64) error {
	if math.IsNaN(score) || math.IsInf(score, 0) || score < MinScore || score > MaxScore {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("score %v outside [0,100]", score))
	}
	return nil
}

// ValidateConfig rejects configs whose weights do not sum to 100 or that have no monthly exams.
func ValidateConfig(cfg models.AssessmentConfig) error {
	if cfg.MonthlyExamCount < 1 {
		return appErrors.Clone(appErrors.ErrValidation, "monthly exam count must be positive")
	}
	if cfg.MonthlyWeight < 0 || cfg.SemesterWeight < 0 {
		return appErrors.Clone(appErrors.ErrInvalidWeights, "weights must not be negative")
	}
	if math.Abs(cfg.MonthlyWeight+cfg.SemesterWeight-100) > weightTolerance {
		return appErrors.Clone(appErrors.ErrInvalidWeights, fmt.Sprintf("weights sum to %v", cfg.MonthlyWeight+cfg.SemesterWeight))
	}
	return nil
}
