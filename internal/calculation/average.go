package calculation

import (
	"sort"

	"github.com/noah-isme/sma-grade-engine/internal/models"
)

// SubjectScores holds the scores of one student/subject/semester split by slot kind.
type SubjectScores struct {
	Monthly      []float64
	SemesterExam *float64
}

// SplitScores validates entries and separates monthly scores from the semester exam.
// Monthly slots beyond the configured count are not part of the assessment and are skipped.
// When a slot appears more than once the most recently updated entry wins.
func SplitScores(entries []models.GradeEntry, cfg models.AssessmentConfig) (SubjectScores, error) {
	latest := make(map[models.ExamSlot]models.GradeEntry, len(entries))
	for _, entry := range entries {
		if err := ValidateScore(entry.Score); err != nil {
			return SubjectScores{}, err
		}
		if prev, ok := latest[entry.Slot]; ok && prev.UpdatedAt.After(entry.UpdatedAt) {
			continue
		}
		latest[entry.Slot] = entry
	}

	slots := make([]models.ExamSlot, 0, len(latest))
	for slot := range latest {
		slots = append(slots, slot)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })

	var scores SubjectScores
	for _, slot := range slots {
		entry := latest[slot]
		if slot == models.SlotSemesterExam {
			score := entry.Score
			scores.SemesterExam = &score
			continue
		}
		n, ok := slot.MonthlyIndex()
		if !ok || n > cfg.MonthlyExamCount {
			continue
		}
		scores.Monthly = append(scores.Monthly, entry.Score)
	}
	return scores, nil
}

// MonthlyAverage is the mean of the monthly scores entered so far. Missing exams are
// left out rather than counted as zero. It returns nil when nothing has been entered.
func MonthlyAverage(scores []float64) (*float64, error) {
	if len(scores) == 0 {
		return nil, nil
	}
	sum := 0.0
	for _, score := range scores {
		if err := ValidateScore(score); err != nil {
			return nil, err
		}
		sum += score
	}
	avg := sum / float64(len(scores))
	return &avg, nil
}

// SubjectSemesterAverage weights the monthly average against the semester exam.
// It is undefined (nil) until both inputs exist.
func SubjectSemesterAverage(monthly, semesterExam *float64, cfg models.AssessmentConfig) (*float64, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if monthly == nil || semesterExam == nil {
		return nil, nil
	}
	if err := ValidateScore(*monthly); err != nil {
		return nil, err
	}
	if err := ValidateScore(*semesterExam); err != nil {
		return nil, err
	}
	avg := *monthly*cfg.MonthlyWeight/100 + *semesterExam*cfg.SemesterWeight/100
	return &avg, nil
}

// OverallAverage is the unweighted mean of the defined values. Undefined values are
// excluded, not treated as zero; the result is nil when none are defined.
func OverallAverage(values []*float64) *float64 {
	sum := 0.0
	count := 0
	for _, v := range values {
		if v == nil {
			continue
		}
		sum += *v
		count++
	}
	if count == 0 {
		return nil
	}
	avg := sum / float64(count)
	return &avg
}

// AnnualAverage is the mean of both semesters, undefined unless both are defined.
func AnnualAverage(first, second *float64) *float64 {
	if first == nil || second == nil {
		return nil
	}
	avg := (*first + *second) / 2
	return &avg
}
