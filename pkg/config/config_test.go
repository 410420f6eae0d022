package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)
	assert.Equal(t, 4, cfg.Engine.DefaultMonthlyExamCount)
	assert.Equal(t, 50.0, cfg.Engine.DefaultMonthlyWeight)
	assert.Equal(t, 50.0, cfg.Engine.DefaultSemesterWeight)
	assert.Equal(t, 4, cfg.Engine.WorkerConcurrency)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 30*time.Minute, cfg.Cache.ResultTTL)
	assert.Equal(t, "grades.changed", cfg.NATS.GradeSubject)
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("ENGINE_WORKER_CONCURRENCY", 0)
	v.Set("RANKING_CACHE_TTL", "not-a-duration")
	v.Set("ALLOWED_ORIGINS", " https://a.test , ,https://b.test")

	cfg := fromViper(v)
	assert.Equal(t, 4, cfg.Engine.WorkerConcurrency)
	assert.Equal(t, 10*time.Minute, cfg.Cache.RankingTTL)
	assert.Equal(t, []string{"https://a.test", "https://b.test"}, cfg.CORS.AllowedOrigins)
}
