package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-grade-engine/internal/models"
)

// RosterRepository reads class membership and the subjects taught in a class.
type RosterRepository struct {
	db *sqlx.DB
}

// NewRosterRepository constructs the repository.
func NewRosterRepository(db *sqlx.DB) *RosterRepository {
	return &RosterRepository{db: db}
}

// ActiveStudents lists students actively enrolled in the class for the academic year.
func (r *RosterRepository) ActiveStudents(ctx context.Context, classID, academicYear string) ([]string, error) {
	const query = `SELECT student_id FROM enrollments
        WHERE class_id = $1 AND academic_year = $2 AND status = $3
        ORDER BY student_id`
	var students []string
	if err := r.db.SelectContext(ctx, &students, query, classID, academicYear, string(models.EnrollmentStatusActive)); err != nil {
		return nil, fmt.Errorf("list active students: %w", err)
	}
	return students, nil
}

// IsEnrolled reports whether the student is actively enrolled in the class.
func (r *RosterRepository) IsEnrolled(ctx context.Context, studentID, classID, academicYear string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM enrollments
        WHERE student_id = $1 AND class_id = $2 AND academic_year = $3 AND status = $4)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, studentID, classID, academicYear, string(models.EnrollmentStatusActive)); err != nil {
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return exists, nil
}

// ClassSubjects lists the subjects assigned to the class.
func (r *RosterRepository) ClassSubjects(ctx context.Context, classID string) ([]string, error) {
	const query = `SELECT subject_id FROM class_subjects WHERE class_id = $1 ORDER BY subject_id`
	var subjects []string
	if err := r.db.SelectContext(ctx, &subjects, query, classID); err != nil {
		return nil, fmt.Errorf("list class subjects: %w", err)
	}
	return subjects, nil
}
