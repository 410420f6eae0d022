package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-grade-engine/internal/calculation"
	"github.com/noah-isme/sma-grade-engine/internal/models"
	"github.com/noah-isme/sma-grade-engine/pkg/config"
)

// ConfigSource yields an assessment config for a scope. A nil config with a nil error
// means the source has nothing for the scope.
type ConfigSource interface {
	Name() models.ConfigSource
	Lookup(ctx context.Context, scope models.ConfigScope) (*models.AssessmentConfig, error)
}

type assessmentConfigReader interface {
	FindByScope(ctx context.Context, scope models.ConfigScope) (*models.AssessmentConfig, error)
}

type configurationReader interface {
	ListByKeys(ctx context.Context, keys []string) ([]models.Configuration, error)
}

// TeacherConfigSource reads the exact-tuple override set by the subject teacher.
type TeacherConfigSource struct {
	repo assessmentConfigReader
}

// NewTeacherConfigSource constructs the source.
func NewTeacherConfigSource(repo assessmentConfigReader) *TeacherConfigSource {
	return &TeacherConfigSource{repo: repo}
}

// Name implements ConfigSource.
func (s *TeacherConfigSource) Name() models.ConfigSource { return models.ConfigSourceTeacher }

// Lookup implements ConfigSource.
func (s *TeacherConfigSource) Lookup(ctx context.Context, scope models.ConfigScope) (*models.AssessmentConfig, error) {
	cfg, err := s.repo.FindByScope(ctx, scope)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return cfg, nil
}

// AcademicYearDefaultSource reads the admin defaults of an academic year. Keys the admin
// did not set keep the system default value.
type AcademicYearDefaultSource struct {
	repo     configurationReader
	fallback models.AssessmentConfig
}

// NewAcademicYearDefaultSource constructs the source.
func NewAcademicYearDefaultSource(repo configurationReader, fallback models.AssessmentConfig) *AcademicYearDefaultSource {
	return &AcademicYearDefaultSource{repo: repo, fallback: fallback}
}

// Name implements ConfigSource.
func (s *AcademicYearDefaultSource) Name() models.ConfigSource {
	return models.ConfigSourceAcademicYearDefault
}

// Lookup implements ConfigSource.
func (s *AcademicYearDefaultSource) Lookup(ctx context.Context, scope models.ConfigScope) (*models.AssessmentConfig, error) {
	keys := models.DefaultKeysFor(scope.AcademicYear)
	entries, err := s.repo.ListByKeys(ctx, keys.All())
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}

	cfg := s.fallback
	for _, entry := range entries {
		switch entry.Key {
		case keys.MonthlyExamCount:
			n, err := strconv.Atoi(entry.Value)
			if err != nil {
				return nil, fmt.Errorf("parse %s: %w", entry.Key, err)
			}
			cfg.MonthlyExamCount = n
		case keys.MonthlyWeight:
			w, err := strconv.ParseFloat(entry.Value, 64)
			if err != nil {
				return nil, fmt.Errorf("parse %s: %w", entry.Key, err)
			}
			cfg.MonthlyWeight = w
		case keys.SemesterWeight:
			w, err := strconv.ParseFloat(entry.Value, 64)
			if err != nil {
				return nil, fmt.Errorf("parse %s: %w", entry.Key, err)
			}
			cfg.SemesterWeight = w
		}
		if entry.UpdatedAt.After(cfg.UpdatedAt) {
			cfg.UpdatedAt = entry.UpdatedAt
		}
	}
	return &cfg, nil
}

// SystemDefaultSource always answers with the built-in config.
type SystemDefaultSource struct {
	cfg models.AssessmentConfig
}

// NewSystemDefaultSource constructs the source.
func NewSystemDefaultSource(cfg models.AssessmentConfig) *SystemDefaultSource {
	return &SystemDefaultSource{cfg: cfg}
}

// Name implements ConfigSource.
func (s *SystemDefaultSource) Name() models.ConfigSource { return models.ConfigSourceSystemDefault }

// Lookup implements ConfigSource.
func (s *SystemDefaultSource) Lookup(context.Context, models.ConfigScope) (*models.AssessmentConfig, error) {
	cfg := s.cfg
	return &cfg, nil
}

// BuiltinDefault is the config used when nothing else applies.
var BuiltinDefault = models.AssessmentConfig{MonthlyExamCount: 4, MonthlyWeight: 50, SemesterWeight: 50}

// SystemDefault builds the system-wide default from env settings, falling back to the
// built-in 4/50/50 when they do not form a valid config.
func SystemDefault(cfg config.EngineConfig) models.AssessmentConfig {
	candidate := models.AssessmentConfig{
		MonthlyExamCount: cfg.DefaultMonthlyExamCount,
		MonthlyWeight:    cfg.DefaultMonthlyWeight,
		SemesterWeight:   cfg.DefaultSemesterWeight,
	}
	if err := calculation.ValidateConfig(candidate); err != nil {
		return BuiltinDefault
	}
	return candidate
}

// ConfigResolver resolves the effective assessment config by trying sources in order.
type ConfigResolver struct {
	sources   []ConfigSource
	fallback  models.AssessmentConfig
	validator *validator.Validate
	logger    *zap.Logger
}

// NewConfigResolver constructs a resolver over the ordered sources.
func NewConfigResolver(sources []ConfigSource, fallback models.AssessmentConfig, validate *validator.Validate, logger *zap.Logger) *ConfigResolver {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if calculation.ValidateConfig(fallback) != nil {
		fallback = BuiltinDefault
	}
	return &ConfigResolver{sources: sources, fallback: fallback, validator: validate, logger: logger}
}

// Resolve never fails. Sources that error or produce an invalid config are skipped.
func (r *ConfigResolver) Resolve(ctx context.Context, scope models.ConfigScope) models.AssessmentConfig {
	for _, source := range r.sources {
		cfg, err := source.Lookup(ctx, scope)
		if err != nil {
			r.logger.Warn("config source failed", zap.String("source", string(source.Name())), zap.Any("scope", scope), zap.Error(err))
			continue
		}
		if cfg == nil {
			continue
		}
		resolved := stamp(*cfg, scope, source.Name())
		if err := r.check(resolved); err != nil {
			r.logger.Warn("config source returned invalid config", zap.String("source", string(source.Name())), zap.Any("scope", scope), zap.Error(err))
			continue
		}
		return resolved
	}
	return stamp(r.fallback, scope, models.ConfigSourceSystemDefault)
}

func (r *ConfigResolver) check(cfg models.AssessmentConfig) error {
	if err := r.validator.Struct(cfg); err != nil {
		return err
	}
	return calculation.ValidateConfig(cfg)
}

func stamp(cfg models.AssessmentConfig, scope models.ConfigScope, source models.ConfigSource) models.AssessmentConfig {
	cfg.ClassID = scope.ClassID
	cfg.SubjectID = scope.SubjectID
	cfg.Semester = scope.Semester
	cfg.AcademicYear = scope.AcademicYear
	cfg.Source = source
	return cfg.WithVersion()
}
