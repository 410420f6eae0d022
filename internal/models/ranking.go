package models

import (
	"fmt"
	"time"
)

// RankingScope selects the population and level a ranking is built for.
// An empty SubjectID ranks overall averages; Semester 0 ranks annual averages.
type RankingScope struct {
	ClassID      string `json:"class_id" form:"classId" validate:"required"`
	SubjectID    string `json:"subject_id,omitempty" form:"subjectId"`
	Semester     int    `json:"semester,omitempty" form:"semester" validate:"oneof=0 1 2"`
	AcademicYear string `json:"academic_year" form:"academicYear" validate:"required"`
}

// Level returns the calculation level whose results feed this ranking.
func (s RankingScope) Level() CalculationLevel {
	switch {
	case s.SubjectID != "" && s.Semester != 0:
		return LevelSubjectSemester
	case s.SubjectID != "":
		return LevelSubjectAnnual
	case s.Semester != 0:
		return LevelOverallSemester
	default:
		return LevelOverallAnnual
	}
}

// CacheKey renders the cache key for the ranking.
func (s RankingScope) CacheKey() string {
	subject := s.SubjectID
	if subject == "" {
		subject = "overall"
	}
	return fmt.Sprintf("grade-engine:ranking:%s:%s:%s:%d", s.AcademicYear, s.ClassID, subject, s.Semester)
}

// ClassRankingPattern matches the cache keys of every ranking of a class in a year.
func ClassRankingPattern(classID, academicYear string) string {
	return fmt.Sprintf("grade-engine:ranking:%s:%s:*", academicYear, classID)
}

// RankingEntry is one ranked student.
type RankingEntry struct {
	StudentID    string  `json:"student_id"`
	AverageValue float64 `json:"average_value"`
	Rank         int     `json:"rank"`
}

// RankingSummary describes the spread of ranked averages.
type RankingSummary struct {
	Count int      `json:"count"`
	Min   *float64 `json:"min,omitempty"`
	Max   *float64 `json:"max,omitempty"`
	Mean  *float64 `json:"mean,omitempty"`
}

// Ranking is a fully rebuilt, ordered ranking for a scope.
type Ranking struct {
	Scope       RankingScope   `json:"scope"`
	Entries     []RankingEntry `json:"entries"`
	Summary     RankingSummary `json:"summary"`
	GeneratedAt time.Time      `json:"generated_at"`
}
