package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-grade-engine/internal/models"
)

func TestGradeRepositoryList(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "student_id", "subject_id", "class_id", "semester", "academic_year", "slot", "score", "updated_at"}).
		AddRow("g-1", "stu-1", "math", "class-1", 1, "2024-2025", "MONTHLY_1", 80.0, now).
		AddRow("g-2", "stu-1", "math", "class-1", 1, "2024-2025", "SEMESTER_EXAM", 85.0, now)
	mock.ExpectQuery("SELECT id, student_id, subject_id").
		WithArgs("stu-1", "math", 1, "2024-2025").
		WillReturnRows(rows)

	repo := NewGradeRepository(db)
	grades, err := repo.List(context.Background(), models.GradeFilter{StudentID: "stu-1", SubjectID: "math", Semester: 1, AcademicYear: "2024-2025"})
	require.NoError(t, err)
	require.Len(t, grades, 2)
	assert.Equal(t, models.MonthlySlot(1), grades[0].Slot)
	assert.Equal(t, models.SlotSemesterExam, grades[1].Slot)
	assert.Equal(t, 85.0, grades[1].Score)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRepositoryListError(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	mock.ExpectQuery("SELECT id, student_id").WillReturnError(errors.New("connection reset"))

	_, err := NewGradeRepository(db).List(context.Background(), models.GradeFilter{StudentID: "stu-1", SubjectID: "math", Semester: 1, AcademicYear: "2024-2025"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list grade entries")
}

func TestGradeRepositorySubjectsWithGrades(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	mock.ExpectQuery("SELECT DISTINCT subject_id FROM grade_entries").
		WithArgs("stu-1", 2, "2024-2025").
		WillReturnRows(sqlmock.NewRows([]string{"subject_id"}).AddRow("bio").AddRow("math"))

	subjects, err := NewGradeRepository(db).SubjectsWithGrades(context.Background(), "stu-1", 2, "2024-2025")
	require.NoError(t, err)
	assert.Equal(t, []string{"bio", "math"}, subjects)
	require.NoError(t, mock.ExpectationsWereMet())
}
