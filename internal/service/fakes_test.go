package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/sma-grade-engine/internal/models"
)

const testYear = "2024-2025"

type fakeResultRepo struct {
	mu      sync.Mutex
	results map[models.ResultKey]models.CalculationResult
	upserts int
	failGet error
}

func newFakeResultRepo() *fakeResultRepo {
	return &fakeResultRepo{results: make(map[models.ResultKey]models.CalculationResult)}
}

func (f *fakeResultRepo) Get(ctx context.Context, key models.ResultKey) (*models.CalculationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGet != nil {
		return nil, f.failGet
	}
	result, ok := f.results[key.Normalize()]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &result, nil
}

func (f *fakeResultRepo) Upsert(ctx context.Context, result *models.CalculationResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if result.ID == "" {
		result.ID = fmt.Sprintf("res-%d", len(f.results)+f.upserts+1)
	}
	f.upserts++
	f.results[result.ResultKey.Normalize()] = *result
	return nil
}

func (f *fakeResultRepo) Delete(ctx context.Context, key models.ResultKey) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.results, key.Normalize())
	return nil
}

func (f *fakeResultRepo) ListForStudents(ctx context.Context, studentIDs []string, level models.CalculationLevel, subjectID string, semester int, academicYear string) ([]models.CalculationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	wanted := make(map[string]struct{}, len(studentIDs))
	for _, id := range studentIDs {
		wanted[id] = struct{}{}
	}
	var out []models.CalculationResult
	for key, result := range f.results {
		if _, ok := wanted[key.StudentID]; !ok {
			continue
		}
		if key.Level == level && key.SubjectID == subjectID && key.Semester == semester && key.AcademicYear == academicYear {
			out = append(out, result)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out, nil
}

func (f *fakeResultRepo) value(key models.ResultKey) (float64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result, ok := f.results[key.Normalize()]
	return result.AverageValue, ok
}

func (f *fakeResultRepo) snapshot() map[models.ResultKey]models.CalculationResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[models.ResultKey]models.CalculationResult, len(f.results))
	for k, v := range f.results {
		out[k] = v
	}
	return out
}

type fakeGrades struct {
	mu      sync.Mutex
	entries []models.GradeEntry
}

func (f *fakeGrades) add(studentID, subjectID string, semester int, slot models.ExamSlot, score float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, models.GradeEntry{
		ID:           fmt.Sprintf("g-%d", len(f.entries)+1),
		StudentID:    studentID,
		SubjectID:    subjectID,
		ClassID:      "class-1",
		Semester:     semester,
		AcademicYear: testYear,
		Slot:         slot,
		Score:        score,
		UpdatedAt:    time.Date(2024, 9, 1, 0, 0, len(f.entries), 0, time.UTC),
	})
}

func (f *fakeGrades) addMonthly(studentID, subjectID string, semester int, scores ...float64) {
	for i, score := range scores {
		f.add(studentID, subjectID, semester, models.MonthlySlot(i+1), score)
	}
}

func (f *fakeGrades) List(ctx context.Context, filter models.GradeFilter) ([]models.GradeEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.GradeEntry
	for _, entry := range f.entries {
		if entry.StudentID == filter.StudentID && entry.SubjectID == filter.SubjectID &&
			entry.Semester == filter.Semester && entry.AcademicYear == filter.AcademicYear {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (f *fakeGrades) SubjectsWithGrades(ctx context.Context, studentID string, semester int, academicYear string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := map[string]struct{}{}
	var out []string
	for _, entry := range f.entries {
		if entry.StudentID != studentID || entry.Semester != semester || entry.AcademicYear != academicYear {
			continue
		}
		if _, ok := seen[entry.SubjectID]; ok {
			continue
		}
		seen[entry.SubjectID] = struct{}{}
		out = append(out, entry.SubjectID)
	}
	sort.Strings(out)
	return out, nil
}

type fakeRoster struct {
	students []string
	subjects []string
	err      error
}

func (f *fakeRoster) ActiveStudents(ctx context.Context, classID, academicYear string) ([]string, error) {
	return f.students, f.err
}

func (f *fakeRoster) IsEnrolled(ctx context.Context, studentID, classID, academicYear string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	for _, id := range f.students {
		if id == studentID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRoster) ClassSubjects(ctx context.Context, classID string) ([]string, error) {
	return f.subjects, f.err
}

// fakeConfigSource returns a mutable config, or err when set.
type fakeConfigSource struct {
	mu   sync.Mutex
	name models.ConfigSource
	cfg  *models.AssessmentConfig
	err  error
}

func (f *fakeConfigSource) Name() models.ConfigSource { return f.name }

func (f *fakeConfigSource) Lookup(ctx context.Context, scope models.ConfigScope) (*models.AssessmentConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.cfg == nil {
		return nil, nil
	}
	cfg := *f.cfg
	return &cfg, nil
}

func (f *fakeConfigSource) set(cfg *models.AssessmentConfig) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cfg = cfg
}

// tickingClock advances one second per call.
type tickingClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTickingClock() *tickingClock {
	return &tickingClock{t: time.Date(2024, 10, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}
