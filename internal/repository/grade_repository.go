package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-grade-engine/internal/models"
)

// GradeRepository is a read-only view over raw exam scores written by grade management.
type GradeRepository struct {
	db *sqlx.DB
}

// NewGradeRepository creates a new grade repository.
func NewGradeRepository(db *sqlx.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

// List returns the entries of one student/subject/semester.
func (r *GradeRepository) List(ctx context.Context, filter models.GradeFilter) ([]models.GradeEntry, error) {
	const query = `SELECT id, student_id, subject_id, class_id, semester, academic_year, slot, score, updated_at
        FROM grade_entries
        WHERE student_id = $1 AND subject_id = $2 AND semester = $3 AND academic_year = $4
        ORDER BY slot`
	var grades []models.GradeEntry
	if err := r.db.SelectContext(ctx, &grades, query, filter.StudentID, filter.SubjectID, filter.Semester, filter.AcademicYear); err != nil {
		return nil, fmt.Errorf("list grade entries: %w", err)
	}
	return grades, nil
}

// SubjectsWithGrades lists subjects for which the student has any score in the semester.
func (r *GradeRepository) SubjectsWithGrades(ctx context.Context, studentID string, semester int, academicYear string) ([]string, error) {
	const query = `SELECT DISTINCT subject_id FROM grade_entries
        WHERE student_id = $1 AND semester = $2 AND academic_year = $3
        ORDER BY subject_id`
	var subjects []string
	if err := r.db.SelectContext(ctx, &subjects, query, studentID, semester, academicYear); err != nil {
		return nil, fmt.Errorf("list graded subjects: %w", err)
	}
	return subjects, nil
}
