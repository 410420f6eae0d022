package service

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheServiceHitMissAndMetrics(t *testing.T) {
	cache, _ := newRedisCacheService(t)
	ctx := context.Background()

	var out map[string]int
	hit, err := cache.Get(ctx, "grade-engine:test", &out)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, cache.Set(ctx, "grade-engine:test", map[string]int{"a": 1}, 0))
	hit, err = cache.Get(ctx, "grade-engine:test", &out)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, out["a"])

	assert.Equal(t, 1.0, testutil.ToFloat64(cache.metrics.cacheHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(cache.metrics.cacheMisses))
	assert.Equal(t, 0.5, testutil.ToFloat64(cache.metrics.cacheHitRatio))

	require.NoError(t, cache.Delete(ctx, "grade-engine:test"))
	hit, _ = cache.Get(ctx, "grade-engine:test", &out)
	assert.False(t, hit)
}

func TestCacheServiceReportsBackendFailures(t *testing.T) {
	cache, mr := newRedisCacheService(t)
	mr.Close()
	ctx := context.Background()

	var out map[string]int
	hit, err := cache.Get(ctx, "grade-engine:test", &out)
	assert.Error(t, err)
	assert.False(t, hit)
	assert.Error(t, cache.Set(ctx, "grade-engine:test", out, time.Minute))
	assert.Error(t, cache.Invalidate(ctx, "grade-engine:*"))
	assert.Equal(t, 1.0, testutil.ToFloat64(cache.metrics.cacheErrors.WithLabelValues("get")))
	assert.Equal(t, 1.0, testutil.ToFloat64(cache.metrics.cacheErrors.WithLabelValues("set")))
}

func TestCacheServiceDisabled(t *testing.T) {
	var nilCache *CacheService
	assert.False(t, nilCache.Enabled())
	hit, err := nilCache.Get(context.Background(), "k", nil)
	assert.NoError(t, err)
	assert.False(t, hit)

	disabled := NewCacheService(nil, nil, 0, nil, true)
	assert.False(t, disabled.Enabled())
	assert.NoError(t, disabled.Set(context.Background(), "k", 1, 0))
}

func TestMetricsServiceRecordsEngineMetrics(t *testing.T) {
	m := NewMetricsService()
	m.RecordRecalculationFailure("MONTHLY")
	m.RecordRankingRebuild("OVERALL_SEMESTER")
	m.RecordRankingRebuild("OVERALL_SEMESTER")
	m.ObserveRecalculation("MONTHLY", time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.recalcFailures.WithLabelValues("MONTHLY")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.rankingRebuilds.WithLabelValues("OVERALL_SEMESTER")))

	var nilMetrics *MetricsService
	nilMetrics.RecordRankingRebuild("MONTHLY")
	assert.Nil(t, nilMetrics.Registry())
}
