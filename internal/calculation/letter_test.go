package calculation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLetterGradeBoundaries(t *testing.T) {
	cases := []struct {
		avg    float64
		letter string
		passed bool
	}{
		{100, "A", true},
		{85.00, "A", true},
		{84.99, "B", true},
		{70.00, "B", true},
		{69.99, "C", true},
		{55.00, "C", true},
		{54.99, "D", true},
		{40.00, "D", true},
		{39.99, "E", false},
		{25.00, "E", false},
		{24.99, "F", false},
		{0, "F", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.letter, LetterGrade(tc.avg), "letter for %v", tc.avg)
		assert.Equal(t, tc.passed, Passed(tc.avg), "passed for %v", tc.avg)
	}
}

func TestRoundHalfUp(t *testing.T) {
	assert.Equal(t, 1.01, Round(1.005))
	assert.Equal(t, 2.68, Round(2.675))
	assert.Equal(t, 84.99, Round(84.994))
	assert.Equal(t, 85.0, Round(84.995))
	assert.Equal(t, 77.67, Round(233.0/3))
	assert.Equal(t, 0.0, Round(0))
}
