package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-grade-engine/internal/models"
)

// AssessmentConfigRepository reads teacher-defined assessment configs.
type AssessmentConfigRepository struct {
	db *sqlx.DB
}

// NewAssessmentConfigRepository creates a new repository instance.
func NewAssessmentConfigRepository(db *sqlx.DB) *AssessmentConfigRepository {
	return &AssessmentConfigRepository{db: db}
}

// FindByScope retrieves the config for an exact class+subject+semester+year tuple.
// sql.ErrNoRows is returned unwrapped when no teacher override exists.
func (r *AssessmentConfigRepository) FindByScope(ctx context.Context, scope models.ConfigScope) (*models.AssessmentConfig, error) {
	const query = `SELECT class_id, subject_id, semester, academic_year, monthly_exam_count, monthly_weight, semester_weight, updated_at
        FROM assessment_configs
        WHERE class_id = $1 AND subject_id = $2 AND semester = $3 AND academic_year = $4`
	var config models.AssessmentConfig
	if err := r.db.GetContext(ctx, &config, query, scope.ClassID, scope.SubjectID, scope.Semester, scope.AcademicYear); err != nil {
		return nil, err
	}
	config.Source = models.ConfigSourceTeacher
	return &config, nil
}
