package calculation

import "github.com/noah-isme/sma-grade-engine/internal/models"

// PassMark is the minimum average that counts as passed.
const PassMark = 40.0

type band struct {
	min    float64
	letter string
}

// Bands are ordered from the highest floor down; a boundary belongs to the higher band.
var bands = []band{
	{85, "A"},
	{70, "B"},
	{55, "C"},
	{40, "D"},
	{25, "E"},
	{0, "F"},
}

// LetterGrade maps an average to its band.
func LetterGrade(avg float64) string {
	avg = Round(avg)
	for _, b := range bands {
		if avg >= b.min {
			return b.letter
		}
	}
	return "F"
}

// Passed reports whether an average meets the pass mark.
func Passed(avg float64) bool {
	return Round(avg) >= PassMark
}

// Describe fills the derived fields of a result from its average.
func Describe(result *models.CalculationResult) {
	if result == nil {
		return
	}
	result.LetterGrade = LetterGrade(result.AverageValue)
	result.Passed = Passed(result.AverageValue)
}
