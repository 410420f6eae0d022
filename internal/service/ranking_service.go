package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-grade-engine/internal/calculation"
	"github.com/noah-isme/sma-grade-engine/internal/models"
	appErrors "github.com/noah-isme/sma-grade-engine/pkg/errors"
	"github.com/noah-isme/sma-grade-engine/pkg/export"
)

type rosterReader interface {
	ActiveStudents(ctx context.Context, classID, academicYear string) ([]string, error)
	IsEnrolled(ctx context.Context, studentID, classID, academicYear string) (bool, error)
	ClassSubjects(ctx context.Context, classID string) ([]string, error)
}

type rankingResultReader interface {
	ListForStudents(ctx context.Context, studentIDs []string, level models.CalculationLevel, subjectID string, semester int, academicYear string) ([]models.CalculationResult, error)
}

// RankingExport is a rendered ranking document.
type RankingExport struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// RankingService builds class rankings from stored results.
type RankingService struct {
	roster    rosterReader
	results   rankingResultReader
	cache     *CacheService
	ttl       time.Duration
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	tracer    trace.Tracer
	stale     *staleKeys
	now       func() time.Time
}

// NewRankingService constructs the service.
func NewRankingService(roster rosterReader, results rankingResultReader, cache *CacheService, ttl time.Duration, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *RankingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RankingService{
		roster:    roster,
		results:   results,
		cache:     cache,
		ttl:       ttl,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		tracer:    otel.Tracer("github.com/noah-isme/sma-grade-engine/internal/service/ranking"),
		stale:     newStaleKeys(),
		now:       time.Now,
	}
}

// Rebuild ranks every active student of the class from current results and replaces
// the cached ranking.
func (s *RankingService) Rebuild(ctx context.Context, scope models.RankingScope) (*models.Ranking, error) {
	if err := s.validator.Struct(scope); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid ranking scope")
	}
	level := scope.Level()
	spanCtx, span := s.tracer.Start(ctx, "ranking.rebuild", trace.WithAttributes(
		attribute.String("ranking.class_id", scope.ClassID),
		attribute.String("ranking.level", string(level)),
	))
	defer span.End()

	students, err := s.roster.ActiveStudents(spanCtx, scope.ClassID, scope.AcademicYear)
	if err != nil {
		span.RecordError(err)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class roster")
	}
	results, err := s.results.ListForStudents(spanCtx, students, level, scope.SubjectID, scope.Semester, scope.AcademicYear)
	if err != nil {
		span.RecordError(err)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load results for ranking")
	}

	entries := calculation.Rank(results)
	ranking := &models.Ranking{
		Scope:       scope,
		Entries:     entries,
		Summary:     calculation.Summarize(entries),
		GeneratedAt: s.now().UTC(),
	}
	if err := s.cache.Set(spanCtx, scope.CacheKey(), ranking, s.ttl); err != nil {
		s.stale.mark(scope.CacheKey())
	} else {
		s.stale.clear(scope.CacheKey())
	}
	s.metrics.RecordRankingRebuild(level)
	span.SetAttributes(attribute.Int("ranking.entries", len(entries)))
	return ranking, nil
}

// Get serves the cached ranking, rebuilding it on a miss or when the last rebuild could
// not replace the cached copy.
func (s *RankingService) Get(ctx context.Context, scope models.RankingScope) (*models.Ranking, error) {
	if err := s.validator.Struct(scope); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid ranking scope")
	}
	if !s.stale.has(scope.CacheKey()) {
		var cached models.Ranking
		if hit, _ := s.cache.Get(ctx, scope.CacheKey(), &cached); hit {
			return &cached, nil
		}
	}
	return s.Rebuild(ctx, scope)
}

// InvalidateClass drops every cached ranking of the class for the academic year.
func (s *RankingService) InvalidateClass(ctx context.Context, classID, academicYear string) error {
	if classID == "" || academicYear == "" {
		return appErrors.Clone(appErrors.ErrValidation, "class id and academic year are required")
	}
	if err := s.cache.Invalidate(ctx, models.ClassRankingPattern(classID, academicYear)); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to drop cached rankings")
	}
	return nil
}

// Export renders the ranking as CSV or PDF.
func (s *RankingService) Export(ctx context.Context, scope models.RankingScope, format export.Format) (*RankingExport, error) {
	renderer, err := export.ForFormat(format)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnsupported.Code, appErrors.ErrUnsupported.Status, err.Error())
	}
	ranking, err := s.Get(ctx, scope)
	if err != nil {
		return nil, err
	}

	payload, err := renderer.Render(rankingDataset(ranking))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render ranking")
	}
	return &RankingExport{
		Filename:    fmt.Sprintf("ranking_%s_%s_%s.%s", scope.ClassID, rankingLabel(scope), scope.AcademicYear, renderer.Extension()),
		ContentType: renderer.ContentType(),
		Payload:     payload,
	}, nil
}

func rankingDataset(ranking *models.Ranking) export.Dataset {
	rows := make([][]string, 0, len(ranking.Entries))
	for _, entry := range ranking.Entries {
		rows = append(rows, []string{
			strconv.Itoa(entry.Rank),
			entry.StudentID,
			strconv.FormatFloat(entry.AverageValue, 'f', 2, 64),
			calculation.LetterGrade(entry.AverageValue),
		})
	}
	return export.Dataset{
		Title:    fmt.Sprintf("Ranking %s", ranking.Scope.ClassID),
		Subtitle: fmt.Sprintf("%s, %s, generated %s", rankingLabel(ranking.Scope), ranking.Scope.AcademicYear, ranking.GeneratedAt.Format(time.RFC3339)),
		Headers:  []string{"Rank", "Student", "Average", "Grade"},
		Rows:     rows,
	}
}

func rankingLabel(scope models.RankingScope) string {
	subject := scope.SubjectID
	if subject == "" {
		subject = "overall"
	}
	if scope.Semester == 0 {
		return subject + "_annual"
	}
	return fmt.Sprintf("%s_s%d", subject, scope.Semester)
}
