package models

import (
	"fmt"
	"time"
)

// ConfigurationType defines supported types for configuration values.
type ConfigurationType string

const (
	ConfigurationTypeString  ConfigurationType = "STRING"
	ConfigurationTypeBoolean ConfigurationType = "BOOLEAN"
	ConfigurationTypeNumber  ConfigurationType = "NUMBER"
)

// Configuration represents a persisted configuration entry.
type Configuration struct {
	Key         string            `db:"key" json:"key"`
	Value       string            `db:"value" json:"value"`
	Type        ConfigurationType `db:"type" json:"type"`
	Description *string           `db:"description" json:"description,omitempty"`
	UpdatedBy   *string           `db:"updated_by" json:"updated_by,omitempty"`
	UpdatedAt   time.Time         `db:"updated_at" json:"updated_at"`
}

// AcademicYearDefaultKeys are the admin keys holding the assessment defaults of one academic year.
type AcademicYearDefaultKeys struct {
	MonthlyExamCount string
	MonthlyWeight    string
	SemesterWeight   string
}

// DefaultKeysFor returns the configuration keys for the academic year.
func DefaultKeysFor(academicYear string) AcademicYearDefaultKeys {
	prefix := fmt.Sprintf("grading.%s.", academicYear)
	return AcademicYearDefaultKeys{
		MonthlyExamCount: prefix + "monthly_exam_count",
		MonthlyWeight:    prefix + "monthly_weight",
		SemesterWeight:   prefix + "semester_weight",
	}
}

// All lists the keys in a stable order.
func (k AcademicYearDefaultKeys) All() []string {
	return []string{k.MonthlyExamCount, k.MonthlyWeight, k.SemesterWeight}
}
