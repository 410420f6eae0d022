package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ExamSlot identifies which assessment a score belongs to within a semester.
type ExamSlot string

const (
	// SlotSemesterExam is the single end-of-semester assessment.
	SlotSemesterExam ExamSlot = "SEMESTER_EXAM"

	monthlySlotPrefix = "MONTHLY_"
)

// MonthlySlot returns the slot for the n-th monthly exam (1-based).
func MonthlySlot(n int) ExamSlot {
	return ExamSlot(fmt.Sprintf("%s%d", monthlySlotPrefix, n))
}

// MonthlyIndex reports the 1-based monthly exam number, or false for non-monthly slots.
func (s ExamSlot) MonthlyIndex() (int, bool) {
	raw, ok := strings.CutPrefix(string(s), monthlySlotPrefix)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// Valid reports whether the slot is well formed.
func (s ExamSlot) Valid() bool {
	if s == SlotSemesterExam {
		return true
	}
	_, ok := s.MonthlyIndex()
	return ok
}

// ParseExamSlot normalises and validates a raw slot identifier.
func ParseExamSlot(raw string) (ExamSlot, error) {
	slot := ExamSlot(strings.ToUpper(strings.TrimSpace(raw)))
	if !slot.Valid() {
		return "", fmt.Errorf("invalid exam slot %q", raw)
	}
	return slot, nil
}

// GradeEntry is a raw exam score owned by grade management. The engine only reads it.
type GradeEntry struct {
	ID           string    `db:"id" json:"id"`
	StudentID    string    `db:"student_id" json:"student_id"`
	SubjectID    string    `db:"subject_id" json:"subject_id"`
	ClassID      string    `db:"class_id" json:"class_id"`
	Semester     int       `db:"semester" json:"semester"`
	AcademicYear string    `db:"academic_year" json:"academic_year"`
	Slot         ExamSlot  `db:"slot" json:"slot"`
	Score        float64   `db:"score" json:"score"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// GradeFilter scopes grade reads for one student/subject/semester.
type GradeFilter struct {
	StudentID    string
	SubjectID    string
	Semester     int
	AcademicYear string
}

// ConfigSource names where a resolved assessment configuration came from.
type ConfigSource string

const (
	ConfigSourceTeacher             ConfigSource = "TEACHER"
	ConfigSourceAcademicYearDefault ConfigSource = "ACADEMIC_YEAR_DEFAULT"
	ConfigSourceSystemDefault       ConfigSource = "SYSTEM_DEFAULT"
)

// AssessmentConfig is an immutable snapshot of how a class+subject+semester is assessed.
type AssessmentConfig struct {
	ClassID          string       `db:"class_id" json:"class_id"`
	SubjectID        string       `db:"subject_id" json:"subject_id"`
	Semester         int          `db:"semester" json:"semester"`
	AcademicYear     string       `db:"academic_year" json:"academic_year"`
	MonthlyExamCount int          `db:"monthly_exam_count" json:"monthly_exam_count" validate:"min=1"`
	MonthlyWeight    float64      `db:"monthly_weight" json:"monthly_weight" validate:"min=0,max=100"`
	SemesterWeight   float64      `db:"semester_weight" json:"semester_weight" validate:"min=0,max=100"`
	Source           ConfigSource `db:"-" json:"source"`
	Version          string       `db:"-" json:"version"`
	UpdatedAt        time.Time    `db:"updated_at" json:"updated_at,omitempty"`
}

// Fingerprint derives the version tag used to detect results computed under other values.
// It depends only on the effective values, so re-saving an identical config is not a change.
func (c AssessmentConfig) Fingerprint() string {
	return fmt.Sprintf("%s:%d:%.2f:%.2f", strings.ToLower(string(c.Source)), c.MonthlyExamCount, c.MonthlyWeight, c.SemesterWeight)
}

// WithVersion returns the config with Version populated from its fingerprint.
func (c AssessmentConfig) WithVersion() AssessmentConfig {
	c.Version = c.Fingerprint()
	return c
}

// ConfigScope identifies the tuple a configuration is resolved for.
type ConfigScope struct {
	ClassID      string `json:"class_id" form:"classId" validate:"required"`
	SubjectID    string `json:"subject_id" form:"subjectId" validate:"required"`
	Semester     int    `json:"semester" form:"semester" validate:"oneof=1 2"`
	AcademicYear string `json:"academic_year" form:"academicYear" validate:"required"`
}

// GradeChangedEvent is emitted by grade management after a score write.
type GradeChangedEvent struct {
	StudentID    string `json:"student_id" validate:"required"`
	SubjectID    string `json:"subject_id" validate:"required"`
	ClassID      string `json:"class_id" validate:"required"`
	Semester     int    `json:"semester" validate:"oneof=1 2"`
	AcademicYear string `json:"academic_year" validate:"required"`
}

// ConfigChangedEvent is emitted by configuration management when an assessment config changes.
type ConfigChangedEvent struct {
	ClassID      string `json:"class_id" validate:"required"`
	SubjectID    string `json:"subject_id" validate:"required"`
	Semester     int    `json:"semester" validate:"oneof=1 2"`
	AcademicYear string `json:"academic_year" validate:"required"`
}

// ClassRecalculationRequest asks for a full class recalculation.
type ClassRecalculationRequest struct {
	Semester     int    `json:"semester" validate:"oneof=1 2"`
	AcademicYear string `json:"academic_year" validate:"required"`
}
