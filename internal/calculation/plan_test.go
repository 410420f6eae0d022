package calculation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-grade-engine/internal/models"
)

func indexOf(keys []models.ResultKey, key models.ResultKey) int {
	for i, k := range keys {
		if k == key {
			return i
		}
	}
	return -1
}

func TestPlanSingleSubjectOrder(t *testing.T) {
	keys, err := Plan(Trigger{StudentID: "S", SubjectIDs: []string{"M"}, Semester: 1, AcademicYear: "2024-2025"})
	require.NoError(t, err)

	levels := make([]models.CalculationLevel, len(keys))
	for i, k := range keys {
		levels[i] = k.Level
	}
	assert.Equal(t, []models.CalculationLevel{
		models.LevelMonthly,
		models.LevelSubjectSemester,
		models.LevelOverallSemester,
		models.LevelSubjectAnnual,
		models.LevelOverallAnnual,
	}, levels)

	assert.Equal(t, "", keys[2].SubjectID)
	assert.Equal(t, 0, keys[3].Semester)
	assert.Equal(t, "M", keys[3].SubjectID)
}

func TestPlanMultipleSubjectsRespectsDependencies(t *testing.T) {
	keys, err := Plan(Trigger{StudentID: "S", SubjectIDs: []string{"B", "A", "A"}, Semester: 2, AcademicYear: "2024-2025"})
	require.NoError(t, err)
	assert.Len(t, keys, 8)

	for _, key := range keys {
		for _, dep := range Dependents(key) {
			assert.Less(t, indexOf(keys, key), indexOf(keys, dep), "%s must precede %s", key, dep)
		}
	}

	overall := models.ResultKey{Level: models.LevelOverallSemester, StudentID: "S", Semester: 2, AcademicYear: "2024-2025"}
	for _, subject := range []string{"A", "B"} {
		ss := models.ResultKey{Level: models.LevelSubjectSemester, StudentID: "S", SubjectID: subject, Semester: 2, AcademicYear: "2024-2025"}
		assert.Less(t, indexOf(keys, ss), indexOf(keys, overall))
	}
}

func TestPlanRejectsBadTrigger(t *testing.T) {
	_, err := Plan(Trigger{StudentID: "S", SubjectIDs: []string{"M"}, Semester: 3, AcademicYear: "2024-2025"})
	assert.Error(t, err)
	_, err = Plan(Trigger{StudentID: "S", Semester: 1, AcademicYear: "2024-2025"})
	assert.Error(t, err)
}

func TestDependencyLevelsMirrorDependents(t *testing.T) {
	key := models.ResultKey{Level: models.LevelMonthly, StudentID: "S", SubjectID: "M", Semester: 1, AcademicYear: "y"}
	queue := []models.ResultKey{key}
	for len(queue) > 0 {
		k := queue[0]
		queue = queue[1:]
		for _, dep := range Dependents(k) {
			assert.Contains(t, DependencyLevels(dep.Level), k.Level)
			queue = append(queue, dep)
		}
	}
}

func TestInputsMirrorDependents(t *testing.T) {
	key := models.ResultKey{Level: models.LevelSubjectSemester, StudentID: "S", SubjectID: "M", Semester: 2, AcademicYear: "2024-2025"}
	for _, input := range Inputs(models.ResultKey{Level: models.LevelSubjectAnnual, StudentID: "S", SubjectID: "M", AcademicYear: "2024-2025"}) {
		assert.Equal(t, models.LevelSubjectSemester, input.Level)
	}
	for _, input := range Inputs(key) {
		assert.Contains(t, Dependents(input), key)
	}
	assert.Nil(t, Inputs(models.ResultKey{Level: models.LevelOverallSemester, StudentID: "S", Semester: 1, AcademicYear: "2024-2025"}))
}

func TestNewerInput(t *testing.T) {
	now := time.Now()
	result := &models.CalculationResult{ComputedAt: now}
	older := &models.CalculationResult{ComputedAt: now.Add(-time.Minute)}
	newer := &models.CalculationResult{ComputedAt: now.Add(time.Minute)}

	assert.False(t, NewerInput(result, []*models.CalculationResult{older, nil}))
	assert.True(t, NewerInput(result, []*models.CalculationResult{older, newer}))
	assert.False(t, NewerInput(nil, []*models.CalculationResult{newer}))
}

func TestCombineVersionsIsOrderIndependent(t *testing.T) {
	a := CombineVersions("teacher:4:50.00:50.00", "system_default:4:50.00:50.00")
	b := CombineVersions("system_default:4:50.00:50.00", "teacher:4:50.00:50.00")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, CombineVersions("teacher:3:50.00:50.00", "system_default:4:50.00:50.00"))
	assert.Equal(t, []string{"v1"}, VersionsOf(nil, &models.CalculationResult{ConfigVersion: "v1"}))
}

func TestDescendantsReachOverallLevels(t *testing.T) {
	monthly := models.ResultKey{Level: models.LevelMonthly, StudentID: "S", SubjectID: "M", Semester: 1, AcademicYear: "2024-2025"}
	assert.Equal(t, []models.ResultKey{
		{Level: models.LevelSubjectSemester, StudentID: "S", SubjectID: "M", Semester: 1, AcademicYear: "2024-2025"},
		{Level: models.LevelOverallSemester, StudentID: "S", Semester: 1, AcademicYear: "2024-2025"},
		{Level: models.LevelSubjectAnnual, StudentID: "S", SubjectID: "M", AcademicYear: "2024-2025"},
		{Level: models.LevelOverallAnnual, StudentID: "S", AcademicYear: "2024-2025"},
	}, Descendants(monthly))
	assert.Empty(t, Descendants(models.ResultKey{Level: models.LevelOverallAnnual, StudentID: "S", AcademicYear: "2024-2025"}))
}
