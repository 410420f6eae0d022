package models

import (
	"fmt"
	"strings"
	"time"
)

// CalculationLevel tags the kind of derived average a result holds.
type CalculationLevel string

const (
	LevelMonthly         CalculationLevel = "MONTHLY"
	LevelSubjectSemester CalculationLevel = "SUBJECT_SEMESTER"
	LevelOverallSemester CalculationLevel = "OVERALL_SEMESTER"
	LevelSubjectAnnual   CalculationLevel = "SUBJECT_ANNUAL"
	LevelOverallAnnual   CalculationLevel = "OVERALL_ANNUAL"
)

// Levels lists every level from the leaves upward.
var Levels = []CalculationLevel{LevelMonthly, LevelSubjectSemester, LevelOverallSemester, LevelSubjectAnnual, LevelOverallAnnual}

// ParseLevel validates a raw level name.
func ParseLevel(raw string) (CalculationLevel, error) {
	for _, level := range Levels {
		if string(level) == raw {
			return level, nil
		}
	}
	return "", fmt.Errorf("unknown calculation level %q", raw)
}

// ResultQuery is the query string of a result lookup.
type ResultQuery struct {
	Level        string `form:"level" validate:"required"`
	SubjectID    string `form:"subjectId"`
	Semester     int    `form:"semester" validate:"oneof=0 1 2"`
	AcademicYear string `form:"academicYear" validate:"required"`
}

// Key builds the result key of studentID the query points at.
func (q ResultQuery) Key(studentID string) (ResultKey, error) {
	level, err := ParseLevel(strings.ToUpper(q.Level))
	if err != nil {
		return ResultKey{}, err
	}
	return ResultKey{Level: level, StudentID: studentID, SubjectID: q.SubjectID, Semester: q.Semester, AcademicYear: q.AcademicYear}, nil
}

// PerSubject reports whether results at this level are scoped to one subject.
func (l CalculationLevel) PerSubject() bool {
	return l == LevelMonthly || l == LevelSubjectSemester || l == LevelSubjectAnnual
}

// Annual reports whether results at this level span both semesters.
func (l CalculationLevel) Annual() bool {
	return l == LevelSubjectAnnual || l == LevelOverallAnnual
}

// ResultKey identifies one derived value. SubjectID is empty for overall levels and
// Semester is zero for annual levels.
type ResultKey struct {
	Level        CalculationLevel `db:"level" json:"level"`
	StudentID    string           `db:"student_id" json:"student_id"`
	SubjectID    string           `db:"subject_id" json:"subject_id,omitempty"`
	Semester     int              `db:"semester" json:"semester,omitempty"`
	AcademicYear string           `db:"academic_year" json:"academic_year"`
}

// String renders the cache key for the result.
func (k ResultKey) String() string {
	subject := k.SubjectID
	if subject == "" {
		subject = "overall"
	}
	semester := "annual"
	if k.Semester != 0 {
		semester = fmt.Sprintf("s%d", k.Semester)
	}
	return fmt.Sprintf("grade-engine:result:%s:%s:%s:%s:%s", k.AcademicYear, k.StudentID, k.Level, subject, semester)
}

// Normalize clears the fields that do not apply to the key's level.
func (k ResultKey) Normalize() ResultKey {
	if !k.Level.PerSubject() {
		k.SubjectID = ""
	}
	if k.Level.Annual() {
		k.Semester = 0
	}
	return k
}

// CalculationResult is a computed average. It is only ever replaced by recomputation.
type CalculationResult struct {
	ID string `db:"id" json:"id"`
	ResultKey
	ClassID       string    `db:"class_id" json:"class_id"`
	AverageValue  float64   `db:"average_value" json:"average_value"`
	LetterGrade   string    `db:"-" json:"letter_grade"`
	Passed        bool      `db:"-" json:"passed"`
	ConfigVersion string    `db:"config_version" json:"computed_from_config_version"`
	ComputedAt    time.Time `db:"computed_at" json:"computed_at"`
}

// SameValue reports whether two results carry an identical computation outcome.
func (r CalculationResult) SameValue(other CalculationResult) bool {
	return r.AverageValue == other.AverageValue && r.ConfigVersion == other.ConfigVersion && r.ClassID == other.ClassID
}
