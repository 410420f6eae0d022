package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-grade-engine/internal/calculation"
	"github.com/noah-isme/sma-grade-engine/internal/models"
)

const resultColumns = `id, level, student_id, subject_id, class_id, semester, academic_year, average_value, config_version, computed_at`

// CalculationResultRepository persists computed averages. It is the source of truth
// behind the result cache.
type CalculationResultRepository struct {
	db *sqlx.DB
}

// NewCalculationResultRepository constructs repository.
func NewCalculationResultRepository(db *sqlx.DB) *CalculationResultRepository {
	return &CalculationResultRepository{db: db}
}

// Get returns the result stored under key, or sql.ErrNoRows.
func (r *CalculationResultRepository) Get(ctx context.Context, key models.ResultKey) (*models.CalculationResult, error) {
	key = key.Normalize()
	query := `SELECT ` + resultColumns + ` FROM calculation_results
        WHERE level = $1 AND student_id = $2 AND subject_id = $3 AND semester = $4 AND academic_year = $5`
	var result models.CalculationResult
	if err := r.db.GetContext(ctx, &result, query, string(key.Level), key.StudentID, key.SubjectID, key.Semester, key.AcademicYear); err != nil {
		return nil, err
	}
	calculation.Describe(&result)
	return &result, nil
}

// Upsert writes the result, replacing any previous value for the same key.
func (r *CalculationResultRepository) Upsert(ctx context.Context, result *models.CalculationResult) error {
	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	result.ResultKey = result.ResultKey.Normalize()
	const query = `INSERT INTO calculation_results (` + resultColumns + `)
        VALUES (:id, :level, :student_id, :subject_id, :class_id, :semester, :academic_year, :average_value, :config_version, :computed_at)
        ON CONFLICT (level, student_id, subject_id, semester, academic_year)
        DO UPDATE SET class_id = EXCLUDED.class_id, average_value = EXCLUDED.average_value,
                      config_version = EXCLUDED.config_version, computed_at = EXCLUDED.computed_at`
	if _, err := r.db.NamedExecContext(ctx, query, result); err != nil {
		return fmt.Errorf("upsert calculation result: %w", err)
	}
	return nil
}

// Delete removes the result stored under key. Deleting an absent key is not an error.
func (r *CalculationResultRepository) Delete(ctx context.Context, key models.ResultKey) error {
	key = key.Normalize()
	const query = `DELETE FROM calculation_results
        WHERE level = $1 AND student_id = $2 AND subject_id = $3 AND semester = $4 AND academic_year = $5`
	if _, err := r.db.ExecContext(ctx, query, string(key.Level), key.StudentID, key.SubjectID, key.Semester, key.AcademicYear); err != nil {
		return fmt.Errorf("delete calculation result: %w", err)
	}
	return nil
}

// ListForStudents returns the results of one level/subject/semester for the given students.
func (r *CalculationResultRepository) ListForStudents(ctx context.Context, studentIDs []string, level models.CalculationLevel, subjectID string, semester int, academicYear string) ([]models.CalculationResult, error) {
	if len(studentIDs) == 0 {
		return nil, nil
	}
	args := []interface{}{string(level), subjectID, semester, academicYear}
	for _, id := range studentIDs {
		args = append(args, id)
	}
	query := fmt.Sprintf(`SELECT %s FROM calculation_results
        WHERE level = $1 AND subject_id = $2 AND semester = $3 AND academic_year = $4 AND student_id IN (%s)
        ORDER BY average_value DESC, student_id`, resultColumns, placeholdersFrom(5, len(studentIDs)))
	var results []models.CalculationResult
	if err := r.db.SelectContext(ctx, &results, query, args...); err != nil {
		return nil, fmt.Errorf("list ranking results: %w", err)
	}
	describeAll(results)
	return results, nil
}

func describeAll(results []models.CalculationResult) {
	for i := range results {
		calculation.Describe(&results[i])
	}
}
