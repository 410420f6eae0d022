package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/sma-grade-engine/internal/calculation"
	"github.com/noah-isme/sma-grade-engine/internal/models"
	appErrors "github.com/noah-isme/sma-grade-engine/pkg/errors"
)

type gradeReader interface {
	List(ctx context.Context, filter models.GradeFilter) ([]models.GradeEntry, error)
	SubjectsWithGrades(ctx context.Context, studentID string, semester int, academicYear string) ([]string, error)
}

type configResolver interface {
	Resolve(ctx context.Context, scope models.ConfigScope) models.AssessmentConfig
}

type rankingRebuilder interface {
	Rebuild(ctx context.Context, scope models.RankingScope) (*models.Ranking, error)
	InvalidateClass(ctx context.Context, classID, academicYear string) error
}

// ChainFailure records one aborted student/subject chain.
type ChainFailure struct {
	StudentID string                  `json:"student_id"`
	SubjectID string                  `json:"subject_id,omitempty"`
	Level     models.CalculationLevel `json:"level,omitempty"`
	Cause     string                  `json:"cause"`
	Err       error                   `json:"-"`
}

// CascadeReport summarises one student cascade.
type CascadeReport struct {
	StudentID    string                     `json:"student_id"`
	ClassID      string                     `json:"class_id"`
	Semester     int                        `json:"semester"`
	AcademicYear string                     `json:"academic_year"`
	Updated      []models.CalculationResult `json:"updated"`
	Undefined    []models.ResultKey         `json:"undefined"`
	Failures     []ChainFailure             `json:"failures,omitempty"`
	Rankings     []models.RankingScope      `json:"rankings_rebuilt,omitempty"`
}

// BatchResult summarises a class-wide recalculation. Failures never abort the batch.
type BatchResult struct {
	ClassID      string                `json:"class_id"`
	SubjectIDs   []string              `json:"subject_ids"`
	Semester     int                   `json:"semester"`
	AcademicYear string                `json:"academic_year"`
	Students     int                   `json:"students"`
	Succeeded    int                   `json:"succeeded"`
	Failures     []ChainFailure        `json:"failures"`
	Rankings     []models.RankingScope `json:"rankings_rebuilt"`
}

// Partial reports whether any chain failed.
func (b *BatchResult) Partial() bool {
	return b != nil && len(b.Failures) > 0
}

// RecalculationService propagates grade and config changes through the derived averages.
type RecalculationService struct {
	grades    gradeReader
	roster    rosterReader
	resolver  configResolver
	store     ResultStore
	rankings  rankingRebuilder
	workers   int
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewRecalculationService constructs the orchestrator. workers bounds the number of
// student chains a batch runs at once.
func NewRecalculationService(grades gradeReader, roster rosterReader, resolver configResolver, store ResultStore, rankings rankingRebuilder, workers int, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *RecalculationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if workers <= 0 {
		workers = 1
	}
	return &RecalculationService{
		grades:    grades,
		roster:    roster,
		resolver:  resolver,
		store:     store,
		rankings:  rankings,
		workers:   workers,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		tracer:    otel.Tracer("github.com/noah-isme/sma-grade-engine/internal/service/recalculation"),
		now:       time.Now,
	}
}

// OnGradeChanged recomputes every average depending on the changed score, then rebuilds
// the class rankings. A failed chain is reported and its error returned.
func (s *RecalculationService) OnGradeChanged(ctx context.Context, event models.GradeChangedEvent) (*CascadeReport, error) {
	if err := s.validator.Struct(event); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade change event")
	}
	enrolled, err := s.roster.IsEnrolled(ctx, event.StudentID, event.ClassID, event.AcademicYear)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if !enrolled {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student is not enrolled in class")
	}

	spanCtx, span := s.tracer.Start(ctx, "recalculation.grade_changed", trace.WithAttributes(
		attribute.String("recalculation.student_id", event.StudentID),
		attribute.String("recalculation.subject_id", event.SubjectID),
		attribute.Int("recalculation.semester", event.Semester),
	))
	defer span.End()

	c := s.newChain(event.StudentID, event.ClassID, event.Semester, event.AcademicYear)
	report, err := s.run(spanCtx, c, []string{event.SubjectID})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	rebuilt, rankErr := s.rebuildRankings(spanCtx, event.ClassID, []string{event.SubjectID}, event.Semester, event.AcademicYear)
	report.Rankings = rebuilt
	if len(report.Failures) > 0 {
		span.RecordError(report.Failures[0].Err)
		return report, report.Failures[0].Err
	}
	if rankErr != nil {
		span.RecordError(rankErr)
		return report, rankErr
	}
	return report, nil
}

// OnConfigChanged recomputes the class/subject/semester tuple for every active student.
// Results computed under the previous config are replaced.
func (s *RecalculationService) OnConfigChanged(ctx context.Context, event models.ConfigChangedEvent) (*BatchResult, error) {
	if err := s.validator.Struct(event); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid config change event")
	}
	spanCtx, span := s.tracer.Start(ctx, "recalculation.config_changed", trace.WithAttributes(
		attribute.String("recalculation.class_id", event.ClassID),
		attribute.String("recalculation.subject_id", event.SubjectID),
	))
	defer span.End()

	return s.recalculateClass(spanCtx, event.ClassID, []string{event.SubjectID}, event.Semester, event.AcademicYear)
}

// CalculateClassAverages runs the cascade for every (student, subject) pair of the class
// and rebuilds the rankings once at the end.
func (s *RecalculationService) CalculateClassAverages(ctx context.Context, classID string, req models.ClassRecalculationRequest) (*BatchResult, error) {
	if classID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "class id is required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class recalculation request")
	}
	spanCtx, span := s.tracer.Start(ctx, "recalculation.class", trace.WithAttributes(
		attribute.String("recalculation.class_id", classID),
		attribute.Int("recalculation.semester", req.Semester),
	))
	defer span.End()

	subjects, err := s.roster.ClassSubjects(spanCtx, classID)
	if err != nil {
		span.RecordError(err)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class subjects")
	}
	return s.recalculateClass(spanCtx, classID, subjects, req.Semester, req.AcademicYear)
}

// Result returns the stored result for key. Results computed under an outdated config
// or older than one of their inputs are recomputed first. An absent result yields
// ErrResultUndefined.
func (s *RecalculationService) Result(ctx context.Context, key models.ResultKey) (*models.CalculationResult, error) {
	key = key.Normalize()
	if err := validateKey(key); err != nil {
		return nil, err
	}
	result, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, appErrors.Clone(appErrors.ErrResultUndefined, fmt.Sprintf("%s average is not defined", key.Level))
	}

	stale, err := s.isStale(ctx, result)
	if err != nil {
		return nil, err
	}
	if !stale {
		return result, nil
	}
	s.logger.Info("recomputing stale result", zap.String("key", key.String()), zap.Error(appErrors.ErrStaleConfig))
	if err := s.refresh(ctx, result); err != nil {
		return nil, err
	}

	fresh, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if fresh == nil {
		return nil, appErrors.Clone(appErrors.ErrResultUndefined, fmt.Sprintf("%s average is not defined", key.Level))
	}
	return fresh, nil
}

func (s *RecalculationService) recalculateClass(ctx context.Context, classID string, subjects []string, semester int, academicYear string) (*BatchResult, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveBatch(time.Since(start)) }()

	students, err := s.roster.ActiveStudents(ctx, classID, academicYear)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class roster")
	}

	batch := &BatchResult{
		ClassID:      classID,
		SubjectIDs:   subjects,
		Semester:     semester,
		AcademicYear: academicYear,
		Students:     len(students),
		Failures:     []ChainFailure{},
	}
	if len(subjects) > 0 {
		if err := s.runBatch(ctx, batch, students); err != nil {
			return batch, err
		}
	}

	rebuilt, rankErr := s.rebuildRankings(ctx, classID, subjects, semester, academicYear)
	batch.Rankings = rebuilt

	s.logger.Info("class recalculation finished",
		zap.String("class_id", classID),
		zap.Strings("subjects", subjects),
		zap.Int("students", batch.Students),
		zap.Int("succeeded", batch.Succeeded),
		zap.Int("failures", len(batch.Failures)),
		zap.Duration("duration", time.Since(start)),
	)
	if rankErr != nil {
		return batch, rankErr
	}
	return batch, nil
}

func (s *RecalculationService) runBatch(ctx context.Context, batch *BatchResult, students []string) error {
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for _, studentID := range students {
		studentID := studentID
		g.Go(func() error {
			c := s.newChain(studentID, batch.ClassID, batch.Semester, batch.AcademicYear)
			report, err := s.run(gctx, c, batch.SubjectIDs)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				batch.Failures = append(batch.Failures, ChainFailure{StudentID: studentID, Cause: err.Error(), Err: err})
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				return nil
			}
			if len(report.Failures) == 0 {
				batch.Succeeded++
				return nil
			}
			batch.Failures = append(batch.Failures, report.Failures...)
			return nil
		})
	}
	err := g.Wait()

	sort.Slice(batch.Failures, func(i, j int) bool {
		a, b := batch.Failures[i], batch.Failures[j]
		if a.StudentID != b.StudentID {
			return a.StudentID < b.StudentID
		}
		return a.SubjectID < b.SubjectID
	})
	return err
}

// chain carries per-student lookups so each level reads grades and configs once.
type chain struct {
	studentID    string
	classID      string
	semester     int
	academicYear string
	configs      map[string]models.AssessmentConfig
	scores       map[string]calculation.SubjectScores
	subjects     []string
}

func (s *RecalculationService) newChain(studentID, classID string, semester int, academicYear string) *chain {
	return &chain{
		studentID:    studentID,
		classID:      classID,
		semester:     semester,
		academicYear: academicYear,
		configs:      make(map[string]models.AssessmentConfig),
		scores:       make(map[string]calculation.SubjectScores),
	}
}

// run recomputes every key the trigger reaches, in dependency order. A failed key aborts
// every key derived from it, up to the overall levels, which are invalidated instead of
// computed.
func (s *RecalculationService) run(ctx context.Context, c *chain, subjects []string) (*CascadeReport, error) {
	keys, err := calculation.Plan(calculation.Trigger{
		StudentID:    c.studentID,
		SubjectIDs:   subjects,
		Semester:     c.semester,
		AcademicYear: c.academicYear,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "cannot plan recalculation")
	}

	report := &CascadeReport{
		StudentID:    c.studentID,
		ClassID:      c.classID,
		Semester:     c.semester,
		AcademicYear: c.academicYear,
		Updated:      []models.CalculationResult{},
		Undefined:    []models.ResultKey{},
	}
	poisoned := make(map[models.ResultKey]struct{})
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if _, ok := poisoned[key]; ok {
			if err := s.store.Invalidate(ctx, key); err != nil {
				report.Failures = append(report.Failures, newChainFailure(key, err))
				continue
			}
			report.Undefined = append(report.Undefined, key)
			continue
		}

		start := time.Now()
		key := key
		result, err := s.store.Swap(ctx, key, func(ctx context.Context, previous *models.CalculationResult) (*models.CalculationResult, error) {
			fresh, inputs, err := s.compute(ctx, c, key)
			if err != nil {
				return nil, err
			}
			return calculation.Settle(previous, fresh, inputs), nil
		})
		s.metrics.ObserveRecalculation(key.Level, time.Since(start))
		if err != nil {
			for _, dependent := range calculation.Descendants(key) {
				poisoned[dependent] = struct{}{}
			}
			s.metrics.RecordRecalculationFailure(key.Level)
			s.logger.Warn("recalculation chain aborted",
				zap.String("student_id", c.studentID),
				zap.String("subject_id", key.SubjectID),
				zap.String("level", string(key.Level)),
				zap.Error(err),
			)
			report.Failures = append(report.Failures, newChainFailure(key, err))
			continue
		}
		if result == nil {
			report.Undefined = append(report.Undefined, key)
			continue
		}
		report.Updated = append(report.Updated, *result)
	}
	return report, nil
}

func newChainFailure(key models.ResultKey, err error) ChainFailure {
	return ChainFailure{StudentID: key.StudentID, SubjectID: key.SubjectID, Level: key.Level, Cause: err.Error(), Err: err}
}

// compute returns the fresh value of key together with the stored results it read.
func (s *RecalculationService) compute(ctx context.Context, c *chain, key models.ResultKey) (*models.CalculationResult, []*models.CalculationResult, error) {
	switch key.Level {
	case models.LevelMonthly:
		cfg := s.config(ctx, c, key.SubjectID)
		scores, err := s.scores(ctx, c, key.SubjectID)
		if err != nil {
			return nil, nil, err
		}
		avg, err := calculation.MonthlyAverage(scores.Monthly)
		if err != nil || avg == nil {
			return nil, nil, err
		}
		return calculation.NewResult(key, c.classID, *avg, cfg.Version, s.now()), nil, nil

	case models.LevelSubjectSemester:
		cfg := s.config(ctx, c, key.SubjectID)
		scores, err := s.scores(ctx, c, key.SubjectID)
		if err != nil {
			return nil, nil, err
		}
		monthly, err := s.store.Get(ctx, calculation.Inputs(key)[0])
		if err != nil {
			return nil, nil, err
		}
		inputs := []*models.CalculationResult{monthly}
		avg, err := calculation.SubjectSemesterAverage(calculation.Value(monthly), scores.SemesterExam, cfg)
		if err != nil || avg == nil {
			return nil, inputs, err
		}
		return calculation.NewResult(key, c.classID, *avg, cfg.Version, s.now()), inputs, nil

	case models.LevelOverallSemester:
		inputs, err := s.overallInputs(ctx, c.classID, c.studentID, key.Semester, key.AcademicYear, c)
		if err != nil {
			return nil, nil, err
		}
		return s.aggregate(key, c.classID, inputs, calculation.OverallAverage(values(inputs))), inputs, nil

	case models.LevelSubjectAnnual, models.LevelOverallAnnual:
		inputs, err := s.load(ctx, calculation.Inputs(key))
		if err != nil {
			return nil, nil, err
		}
		return s.aggregate(key, c.classID, inputs, calculation.AnnualAverage(calculation.Value(inputs[0]), calculation.Value(inputs[1]))), inputs, nil

	default:
		return nil, nil, fmt.Errorf("unsupported calculation level %q", key.Level)
	}
}

func (s *RecalculationService) aggregate(key models.ResultKey, classID string, inputs []*models.CalculationResult, avg *float64) *models.CalculationResult {
	if avg == nil {
		return nil
	}
	version := calculation.CombineVersions(calculation.VersionsOf(inputs...)...)
	return calculation.NewResult(key, classID, *avg, version, s.now())
}

func (s *RecalculationService) config(ctx context.Context, c *chain, subjectID string) models.AssessmentConfig {
	if cfg, ok := c.configs[subjectID]; ok {
		return cfg
	}
	cfg := s.resolver.Resolve(ctx, models.ConfigScope{ClassID: c.classID, SubjectID: subjectID, Semester: c.semester, AcademicYear: c.academicYear})
	c.configs[subjectID] = cfg
	return cfg
}

func (s *RecalculationService) scores(ctx context.Context, c *chain, subjectID string) (calculation.SubjectScores, error) {
	if scores, ok := c.scores[subjectID]; ok {
		return scores, nil
	}
	entries, err := s.grades.List(ctx, models.GradeFilter{StudentID: c.studentID, SubjectID: subjectID, Semester: c.semester, AcademicYear: c.academicYear})
	if err != nil {
		return calculation.SubjectScores{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read grades")
	}
	scores, err := calculation.SplitScores(entries, s.config(ctx, c, subjectID))
	if err != nil {
		return calculation.SubjectScores{}, err
	}
	c.scores[subjectID] = scores
	return scores, nil
}

// overallInputs reads every subject-semester result of the student: subjects of the class
// plus any subject the student has scores in. Within a chain the raw scores of each of
// those subjects are checked too, so a subject left undefined by invalid scores fails the
// overall average instead of silently dropping out of it.
func (s *RecalculationService) overallInputs(ctx context.Context, classID, studentID string, semester int, academicYear string, c *chain) ([]*models.CalculationResult, error) {
	var subjects []string
	if c != nil && c.subjects != nil {
		subjects = c.subjects
	} else {
		var err error
		subjects, err = s.studentSubjects(ctx, classID, studentID, semester, academicYear)
		if err != nil {
			return nil, err
		}
		if c != nil {
			c.subjects = subjects
		}
	}
	if c != nil {
		for _, subjectID := range subjects {
			if _, err := s.scores(ctx, c, subjectID); err != nil {
				return nil, fmt.Errorf("subject %s: %w", subjectID, err)
			}
		}
	}
	keys := make([]models.ResultKey, len(subjects))
	for i, subjectID := range subjects {
		keys[i] = models.ResultKey{Level: models.LevelSubjectSemester, StudentID: studentID, SubjectID: subjectID, Semester: semester, AcademicYear: academicYear}
	}
	return s.load(ctx, keys)
}

func (s *RecalculationService) studentSubjects(ctx context.Context, classID, studentID string, semester int, academicYear string) ([]string, error) {
	classSubjects, err := s.roster.ClassSubjects(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class subjects")
	}
	graded, err := s.grades.SubjectsWithGrades(ctx, studentID, semester, academicYear)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load graded subjects")
	}
	seen := make(map[string]struct{}, len(classSubjects)+len(graded))
	subjects := make([]string, 0, len(classSubjects)+len(graded))
	for _, list := range [][]string{classSubjects, graded} {
		for _, subjectID := range list {
			if _, ok := seen[subjectID]; ok {
				continue
			}
			seen[subjectID] = struct{}{}
			subjects = append(subjects, subjectID)
		}
	}
	sort.Strings(subjects)
	return subjects, nil
}

func (s *RecalculationService) load(ctx context.Context, keys []models.ResultKey) ([]*models.CalculationResult, error) {
	results := make([]*models.CalculationResult, len(keys))
	for i, key := range keys {
		result, err := s.store.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		results[i] = result
	}
	return results, nil
}

func values(results []*models.CalculationResult) []*float64 {
	out := make([]*float64, len(results))
	for i, result := range results {
		out[i] = calculation.Value(result)
	}
	return out
}

func (s *RecalculationService) isStale(ctx context.Context, result *models.CalculationResult) (bool, error) {
	key := result.ResultKey
	switch key.Level {
	case models.LevelMonthly, models.LevelSubjectSemester:
		cfg := s.resolver.Resolve(ctx, models.ConfigScope{ClassID: result.ClassID, SubjectID: key.SubjectID, Semester: key.Semester, AcademicYear: key.AcademicYear})
		if cfg.Version != result.ConfigVersion {
			return true, nil
		}
		inputs, err := s.load(ctx, calculation.Inputs(key))
		if err != nil {
			return false, err
		}
		return calculation.NewerInput(result, inputs), nil

	case models.LevelOverallSemester, models.LevelSubjectAnnual, models.LevelOverallAnnual:
		var inputs []*models.CalculationResult
		var err error
		if key.Level == models.LevelOverallSemester {
			inputs, err = s.overallInputs(ctx, result.ClassID, key.StudentID, key.Semester, key.AcademicYear, nil)
		} else {
			inputs, err = s.load(ctx, calculation.Inputs(key))
		}
		if err != nil {
			return false, err
		}
		if calculation.CombineVersions(calculation.VersionsOf(inputs...)...) != result.ConfigVersion {
			return true, nil
		}
		return calculation.NewerInput(result, inputs), nil

	default:
		return false, fmt.Errorf("unsupported calculation level %q", key.Level)
	}
}

// refresh reruns the chains that produce result.
func (s *RecalculationService) refresh(ctx context.Context, result *models.CalculationResult) error {
	key := result.ResultKey
	semesters := []int{key.Semester}
	if key.Level.Annual() {
		semesters = []int{1, 2}
	}

	var touched []string
	for _, semester := range semesters {
		subjects := []string{key.SubjectID}
		if !key.Level.PerSubject() {
			var err error
			subjects, err = s.studentSubjects(ctx, result.ClassID, key.StudentID, semester, key.AcademicYear)
			if err != nil {
				return err
			}
			if len(subjects) == 0 {
				continue
			}
		}
		c := s.newChain(key.StudentID, result.ClassID, semester, key.AcademicYear)
		report, err := s.run(ctx, c, subjects)
		if err != nil {
			return err
		}
		if len(report.Failures) > 0 {
			return report.Failures[0].Err
		}
		touched = subjects
		if _, err := s.rebuildRankings(ctx, result.ClassID, subjects, semester, key.AcademicYear); err != nil {
			s.logger.Warn("ranking rebuild after refresh failed", zap.String("class_id", result.ClassID), zap.Error(err))
		}
	}
	s.logger.Debug("stale result refreshed", zap.String("key", key.String()), zap.Strings("subjects", touched))
	return nil
}

// rebuildRankings rebuilds the subject and overall rankings touched by a cascade, for
// the semester and for the year.
func (s *RecalculationService) rebuildRankings(ctx context.Context, classID string, subjects []string, semester int, academicYear string) ([]models.RankingScope, error) {
	if s.rankings == nil {
		return nil, nil
	}
	scopes := make([]models.RankingScope, 0, 2*len(subjects)+2)
	for _, subjectID := range subjects {
		scopes = append(scopes,
			models.RankingScope{ClassID: classID, SubjectID: subjectID, Semester: semester, AcademicYear: academicYear},
			models.RankingScope{ClassID: classID, SubjectID: subjectID, AcademicYear: academicYear},
		)
	}
	scopes = append(scopes,
		models.RankingScope{ClassID: classID, Semester: semester, AcademicYear: academicYear},
		models.RankingScope{ClassID: classID, AcademicYear: academicYear},
	)

	rebuilt := make([]models.RankingScope, 0, len(scopes))
	var firstErr error
	for _, scope := range scopes {
		if _, err := s.rankings.Rebuild(ctx, scope); err != nil {
			s.logger.Warn("ranking rebuild failed", zap.String("cache_key", scope.CacheKey()), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		rebuilt = append(rebuilt, scope)
	}
	if firstErr != nil {
		if err := s.rankings.InvalidateClass(ctx, classID, academicYear); err != nil {
			s.logger.Warn("failed to drop cached class rankings", zap.String("class_id", classID), zap.Error(err))
		}
	}
	return rebuilt, firstErr
}

func validateKey(key models.ResultKey) error {
	if _, err := models.ParseLevel(string(key.Level)); err != nil {
		return appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if key.StudentID == "" || key.AcademicYear == "" {
		return appErrors.Clone(appErrors.ErrValidation, "student id and academic year are required")
	}
	if key.Level.PerSubject() && key.SubjectID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "subject id is required for this level")
	}
	if !key.Level.Annual() && key.Semester != 1 && key.Semester != 2 {
		return appErrors.Clone(appErrors.ErrValidation, "semester must be 1 or 2")
	}
	return nil
}
