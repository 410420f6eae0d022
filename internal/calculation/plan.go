package calculation

import (
	"fmt"
	"sort"

	"github.com/noah-isme/sma-grade-engine/internal/models"
)

// Trigger describes which student inputs changed. SubjectIDs lists every subject whose
// raw scores or configuration changed; levels above them are derived from the graph.
type Trigger struct {
	StudentID    string
	SubjectIDs   []string
	Semester     int
	AcademicYear string
}

// Dependents returns the keys computed directly from k.
func Dependents(k models.ResultKey) []models.ResultKey {
	switch k.Level {
	case models.LevelMonthly:
		return []models.ResultKey{{Level: models.LevelSubjectSemester, StudentID: k.StudentID, SubjectID: k.SubjectID, Semester: k.Semester, AcademicYear: k.AcademicYear}}
	case models.LevelSubjectSemester:
		return []models.ResultKey{
			{Level: models.LevelOverallSemester, StudentID: k.StudentID, Semester: k.Semester, AcademicYear: k.AcademicYear},
			{Level: models.LevelSubjectAnnual, StudentID: k.StudentID, SubjectID: k.SubjectID, AcademicYear: k.AcademicYear},
		}
	case models.LevelOverallSemester:
		return []models.ResultKey{{Level: models.LevelOverallAnnual, StudentID: k.StudentID, AcademicYear: k.AcademicYear}}
	case models.LevelSubjectAnnual, models.LevelOverallAnnual:
		return nil
	default:
		return nil
	}
}

// Descendants returns every key derived from k, directly or through other levels, in
// dependency order.
func Descendants(k models.ResultKey) []models.ResultKey {
	seen := make(map[models.ResultKey]struct{})
	var out []models.ResultKey
	frontier := Dependents(k)
	for len(frontier) > 0 {
		node := frontier[0]
		frontier = frontier[1:]
		if _, ok := seen[node]; ok {
			continue
		}
		seen[node] = struct{}{}
		out = append(out, node)
		frontier = append(frontier, Dependents(node)...)
	}
	sortKeys(out)
	return out
}

// DependencyLevels returns the levels a level reads from.
func DependencyLevels(level models.CalculationLevel) []models.CalculationLevel {
	switch level {
	case models.LevelMonthly:
		return nil
	case models.LevelSubjectSemester:
		return []models.CalculationLevel{models.LevelMonthly}
	case models.LevelOverallSemester, models.LevelSubjectAnnual:
		return []models.CalculationLevel{models.LevelSubjectSemester}
	case models.LevelOverallAnnual:
		return []models.CalculationLevel{models.LevelOverallSemester}
	default:
		return nil
	}
}

// Plan expands a trigger into every affected key, ordered so that each key comes after
// all of its dependencies (Kahn's algorithm over the reachable part of the level graph).
func Plan(trigger Trigger) ([]models.ResultKey, error) {
	if trigger.StudentID == "" || trigger.AcademicYear == "" {
		return nil, fmt.Errorf("plan: student and academic year required")
	}
	if trigger.Semester != 1 && trigger.Semester != 2 {
		return nil, fmt.Errorf("plan: semester %d out of range", trigger.Semester)
	}
	if len(trigger.SubjectIDs) == 0 {
		return nil, fmt.Errorf("plan: at least one subject required")
	}

	edges := make(map[models.ResultKey][]models.ResultKey)
	indegree := make(map[models.ResultKey]int)
	var frontier []models.ResultKey
	for _, subjectID := range trigger.SubjectIDs {
		root := models.ResultKey{Level: models.LevelMonthly, StudentID: trigger.StudentID, SubjectID: subjectID, Semester: trigger.Semester, AcademicYear: trigger.AcademicYear}
		if _, seen := indegree[root]; seen {
			continue
		}
		indegree[root] = 0
		frontier = append(frontier, root)
	}
	for len(frontier) > 0 {
		node := frontier[0]
		frontier = frontier[1:]
		if _, expanded := edges[node]; expanded {
			continue
		}
		next := Dependents(node)
		edges[node] = next
		for _, dep := range next {
			if _, seen := indegree[dep]; !seen {
				frontier = append(frontier, dep)
			}
			indegree[dep]++
		}
	}

	var ready []models.ResultKey
	for key, deg := range indegree {
		if deg == 0 {
			ready = append(ready, key)
		}
	}
	order := make([]models.ResultKey, 0, len(indegree))
	for len(ready) > 0 {
		sortKeys(ready)
		node := ready[0]
		ready = ready[1:]
		order = append(order, node)
		for _, dep := range edges[node] {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}
	if len(order) != len(indegree) {
		return nil, fmt.Errorf("plan: cycle in level graph")
	}
	return order, nil
}

func levelRank(level models.CalculationLevel) int {
	for i, l := range models.Levels {
		if l == level {
			return i
		}
	}
	return len(models.Levels)
}

func sortKeys(keys []models.ResultKey) {
	sort.Slice(keys, func(i, j int) bool {
		ri, rj := levelRank(keys[i].Level), levelRank(keys[j].Level)
		if ri != rj {
			return ri < rj
		}
		return keys[i].String() < keys[j].String()
	})
}

// Inputs returns the stored results k is derived from. Overall semester keys span every
// subject of the student, which is only known from data, so it returns nil for them.
func Inputs(k models.ResultKey) []models.ResultKey {
	switch k.Level {
	case models.LevelMonthly:
		return nil
	case models.LevelSubjectSemester:
		return []models.ResultKey{{Level: models.LevelMonthly, StudentID: k.StudentID, SubjectID: k.SubjectID, Semester: k.Semester, AcademicYear: k.AcademicYear}}
	case models.LevelSubjectAnnual:
		return []models.ResultKey{
			{Level: models.LevelSubjectSemester, StudentID: k.StudentID, SubjectID: k.SubjectID, Semester: 1, AcademicYear: k.AcademicYear},
			{Level: models.LevelSubjectSemester, StudentID: k.StudentID, SubjectID: k.SubjectID, Semester: 2, AcademicYear: k.AcademicYear},
		}
	case models.LevelOverallAnnual:
		return []models.ResultKey{
			{Level: models.LevelOverallSemester, StudentID: k.StudentID, Semester: 1, AcademicYear: k.AcademicYear},
			{Level: models.LevelOverallSemester, StudentID: k.StudentID, Semester: 2, AcademicYear: k.AcademicYear},
		}
	case models.LevelOverallSemester:
		return nil
	default:
		return nil
	}
}

// NewerInput reports whether any defined input was computed after result.
func NewerInput(result *models.CalculationResult, inputs []*models.CalculationResult) bool {
	if result == nil {
		return false
	}
	for _, input := range inputs {
		if input != nil && input.ComputedAt.After(result.ComputedAt) {
			return true
		}
	}
	return false
}
