package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-grade-engine/internal/calculation"
	"github.com/noah-isme/sma-grade-engine/internal/models"
	"github.com/noah-isme/sma-grade-engine/internal/repository"
	appErrors "github.com/noah-isme/sma-grade-engine/pkg/errors"
)

var monthlyKey = models.ResultKey{Level: models.LevelMonthly, StudentID: "stu-1", SubjectID: "math", Semester: 1, AcademicYear: testYear}

func newRedisCacheService(t *testing.T) (*CacheService, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	return NewCacheService(repository.NewCacheRepository(client), NewMetricsService(), time.Minute, nil, true), mr
}

func computeValue(v float64, version string) ComputeFunc {
	return func(ctx context.Context, _ *models.CalculationResult) (*models.CalculationResult, error) {
		return calculation.NewResult(monthlyKey, "class-1", v, version, time.Now()), nil
	}
}

// settledValue keeps previous when the fresh value carries the same outcome.
func settledValue(v float64, version string) ComputeFunc {
	return func(ctx context.Context, previous *models.CalculationResult) (*models.CalculationResult, error) {
		return calculation.Settle(previous, calculation.NewResult(monthlyKey, "class-1", v, version, time.Now()), nil), nil
	}
}

// memoryCacheRepo is an in-memory CacheRepository whose writes can be made to fail
// while reads keep working.
type memoryCacheRepo struct {
	mu         sync.Mutex
	entries    map[string][]byte
	failWrites bool
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{entries: make(map[string][]byte)}
}

func (m *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	payload, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(payload, dest)
}

func (m *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrites {
		return errors.New("cache is read-only")
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = payload
	return nil
}

func (m *memoryCacheRepo) Delete(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrites {
		return errors.New("cache is read-only")
	}
	for _, key := range keys {
		delete(m.entries, key)
	}
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrites {
		return errors.New("cache is read-only")
	}
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			delete(m.entries, key)
		}
	}
	return nil
}

func (m *memoryCacheRepo) setFailWrites(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWrites = fail
}

func (m *memoryCacheRepo) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[key]
	return ok
}

func TestCachedResultStoreGetAbsent(t *testing.T) {
	store := NewCachedResultStore(newFakeResultRepo(), nil, time.Minute, nil)
	result, err := store.Get(context.Background(), monthlyKey)
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestCachedResultStoreSwapWritesThroughCache(t *testing.T) {
	cache, mr := newRedisCacheService(t)
	repo := newFakeResultRepo()
	store := NewCachedResultStore(repo, cache, time.Minute, nil)
	ctx := context.Background()

	result, err := store.Swap(ctx, monthlyKey, computeValue(75, "v1"))
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "B", result.LetterGrade)
	assert.True(t, mr.Exists(monthlyKey.String()))

	// served from Redis even when the repository would fail
	repo.failGet = errors.New("db unavailable")
	cached, err := store.Get(ctx, monthlyKey)
	require.NoError(t, err)
	assert.Equal(t, 75.0, cached.AverageValue)
	assert.Equal(t, "v1", cached.ConfigVersion)
}

func TestCachedResultStoreSwapKeepsIdenticalResult(t *testing.T) {
	repo := newFakeResultRepo()
	store := NewCachedResultStore(repo, nil, time.Minute, nil)
	ctx := context.Background()

	first, err := store.Swap(ctx, monthlyKey, settledValue(75, "v1"))
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	second, err := store.Swap(ctx, monthlyKey, settledValue(75, "v1"))
	require.NoError(t, err)

	assert.Equal(t, first.ComputedAt, second.ComputedAt)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, repo.upserts)

	// a compute that ignores previous always writes
	_, err = store.Swap(ctx, monthlyKey, computeValue(75, "v1"))
	require.NoError(t, err)
	assert.Equal(t, 2, repo.upserts)

	third, err := store.Swap(ctx, monthlyKey, settledValue(75, "v2"))
	require.NoError(t, err)
	assert.Equal(t, first.ID, third.ID)
	assert.Equal(t, "v2", third.ConfigVersion)
	assert.Equal(t, 3, repo.upserts)
}

func TestCachedResultStoreSwapUndefinedAndFailureInvalidate(t *testing.T) {
	cache, mr := newRedisCacheService(t)
	repo := newFakeResultRepo()
	store := NewCachedResultStore(repo, cache, time.Minute, nil)
	ctx := context.Background()

	_, err := store.Swap(ctx, monthlyKey, computeValue(75, "v1"))
	require.NoError(t, err)

	_, err = store.Swap(ctx, monthlyKey, func(context.Context, *models.CalculationResult) (*models.CalculationResult, error) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "score 150 outside [0,100]")
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	_, ok := repo.value(monthlyKey)
	assert.False(t, ok)
	assert.False(t, mr.Exists(monthlyKey.String()))

	_, err = store.Swap(ctx, monthlyKey, computeValue(60, "v1"))
	require.NoError(t, err)
	result, err := store.Swap(ctx, monthlyKey, func(context.Context, *models.CalculationResult) (*models.CalculationResult, error) {
		return nil, nil
	})
	require.NoError(t, err)
	assert.Nil(t, result)
	_, ok = repo.value(monthlyKey)
	assert.False(t, ok)
}

func TestCachedResultStoreSkipsCacheEntriesItCouldNotReplace(t *testing.T) {
	cacheRepo := newMemoryCacheRepo()
	cache := NewCacheService(cacheRepo, NewMetricsService(), time.Minute, nil, true)
	repo := newFakeResultRepo()
	store := NewCachedResultStore(repo, cache, time.Minute, nil)
	ctx := context.Background()

	_, err := store.Swap(ctx, monthlyKey, computeValue(75, "v1"))
	require.NoError(t, err)
	require.True(t, cacheRepo.has(monthlyKey.String()))

	cacheRepo.setFailWrites(true)
	result, err := store.Swap(ctx, monthlyKey, func(context.Context, *models.CalculationResult) (*models.CalculationResult, error) {
		return nil, nil
	})
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.True(t, cacheRepo.has(monthlyKey.String()))

	result, err = store.Get(ctx, monthlyKey)
	require.NoError(t, err)
	assert.Nil(t, result)

	_, err = store.Swap(ctx, monthlyKey, computeValue(80, "v1"))
	require.NoError(t, err)
	result, err = store.Get(ctx, monthlyKey)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 80.0, result.AverageValue)

	cacheRepo.setFailWrites(false)
	result, err = store.Get(ctx, monthlyKey)
	require.NoError(t, err)
	assert.Equal(t, 80.0, result.AverageValue)
	assert.False(t, store.stale.has(monthlyKey.String()))

	// the refilled entry is served again
	repo.failGet = errors.New("db unavailable")
	result, err = store.Get(ctx, monthlyKey)
	require.NoError(t, err)
	assert.Equal(t, 80.0, result.AverageValue)
}

func TestCachedResultStoreDegradesWhenCacheDown(t *testing.T) {
	cache, mr := newRedisCacheService(t)
	repo := newFakeResultRepo()
	store := NewCachedResultStore(repo, cache, time.Minute, nil)
	mr.Close()

	ctx := context.Background()
	_, err := store.Swap(ctx, monthlyKey, computeValue(88, "v1"))
	require.NoError(t, err)
	result, err := store.Get(ctx, monthlyKey)
	require.NoError(t, err)
	assert.Equal(t, 88.0, result.AverageValue)

	require.NoError(t, store.Invalidate(ctx, monthlyKey))
	result, err = store.Get(ctx, monthlyKey)
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestCachedResultStorePutAndInvalidate(t *testing.T) {
	repo := newFakeResultRepo()
	store := NewCachedResultStore(repo, nil, time.Minute, nil)
	ctx := context.Background()

	require.Error(t, store.Put(ctx, nil))
	require.NoError(t, store.Put(ctx, calculation.NewResult(monthlyKey, "class-1", 90, "v1", time.Now())))
	v, ok := repo.value(monthlyKey)
	require.True(t, ok)
	assert.Equal(t, 90.0, v)

	require.NoError(t, store.Invalidate(ctx, monthlyKey))
	_, ok = repo.value(monthlyKey)
	assert.False(t, ok)
}

func TestCachedResultStoreReadersNeverSeeTornSwap(t *testing.T) {
	repo := newFakeResultRepo()
	store := NewCachedResultStore(repo, nil, time.Minute, nil)
	ctx := context.Background()
	_, err := store.Swap(ctx, monthlyKey, computeValue(50, "v1"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		v := float64(50 + i)
		go func() {
			defer wg.Done()
			_, _ = store.Swap(ctx, monthlyKey, computeValue(v, "v1"))
		}()
		go func() {
			defer wg.Done()
			result, err := store.Get(ctx, monthlyKey)
			assert.NoError(t, err)
			assert.NotNil(t, result)
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, store.locks.size())
}
