package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-grade-engine/internal/models"
)

var resultRowColumns = []string{"id", "level", "student_id", "subject_id", "class_id", "semester", "academic_year", "average_value", "config_version", "computed_at"}

func TestCalculationResultRepositoryGet(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	now := time.Now().UTC()
	mock.ExpectQuery("FROM calculation_results").
		WithArgs("OVERALL_ANNUAL", "stu-1", "", 0, "2024-2025").
		WillReturnRows(sqlmock.NewRows(resultRowColumns).
			AddRow("r-1", "OVERALL_ANNUAL", "stu-1", "", "class-1", 0, "2024-2025", 84.99, "teacher:4:50.00:50.00", now))

	// subject and semester are dropped for overall annual keys
	key := models.ResultKey{Level: models.LevelOverallAnnual, StudentID: "stu-1", SubjectID: "math", Semester: 2, AcademicYear: "2024-2025"}
	result, err := NewCalculationResultRepository(db).Get(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, 84.99, result.AverageValue)
	assert.Equal(t, "B", result.LetterGrade)
	assert.True(t, result.Passed)
	assert.Equal(t, models.LevelOverallAnnual, result.Level)
}

func TestCalculationResultRepositoryGetMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	mock.ExpectQuery("FROM calculation_results").WillReturnError(sql.ErrNoRows)

	_, err := NewCalculationResultRepository(db).Get(context.Background(), models.ResultKey{Level: models.LevelMonthly, StudentID: "stu-1", SubjectID: "math", Semester: 1, AcademicYear: "2024-2025"})
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestCalculationResultRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO calculation_results")).
		WithArgs(sqlmock.AnyArg(), "SUBJECT_SEMESTER", "stu-1", "math", "class-1", 1, "2024-2025", 80.0, "v1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	result := &models.CalculationResult{
		ResultKey:     models.ResultKey{Level: models.LevelSubjectSemester, StudentID: "stu-1", SubjectID: "math", Semester: 1, AcademicYear: "2024-2025"},
		ClassID:       "class-1",
		AverageValue:  80,
		ConfigVersion: "v1",
		ComputedAt:    time.Now(),
	}
	require.NoError(t, NewCalculationResultRepository(db).Upsert(context.Background(), result))
	assert.NotEmpty(t, result.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCalculationResultRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	mock.ExpectExec("DELETE FROM calculation_results").
		WithArgs("SUBJECT_ANNUAL", "stu-1", "math", 0, "2024-2025").
		WillReturnResult(sqlmock.NewResult(0, 0))

	key := models.ResultKey{Level: models.LevelSubjectAnnual, StudentID: "stu-1", SubjectID: "math", Semester: 1, AcademicYear: "2024-2025"}
	require.NoError(t, NewCalculationResultRepository(db).Delete(context.Background(), key))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCalculationResultRepositoryListForStudents(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	now := time.Now()
	mock.ExpectQuery("student_id IN \\(\\$5,\\$6\\)").
		WithArgs("OVERALL_SEMESTER", "", 1, "2024-2025", "stu-1", "stu-2").
		WillReturnRows(sqlmock.NewRows(resultRowColumns).
			AddRow("r-1", "OVERALL_SEMESTER", "stu-2", "", "class-1", 1, "2024-2025", 90.0, "v", now).
			AddRow("r-2", "OVERALL_SEMESTER", "stu-1", "", "class-1", 1, "2024-2025", 39.99, "v", now))

	results, err := NewCalculationResultRepository(db).ListForStudents(context.Background(), []string{"stu-1", "stu-2"}, models.LevelOverallSemester, "", 1, "2024-2025")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "A", results[0].LetterGrade)
	assert.False(t, results[1].Passed)
}

func TestCalculationResultRepositoryListForStudentsEmptyRoster(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	results, err := NewCalculationResultRepository(db).ListForStudents(context.Background(), nil, models.LevelOverallSemester, "", 1, "2024-2025")
	require.NoError(t, err)
	assert.Empty(t, results)
	require.NoError(t, mock.ExpectationsWereMet())
}
