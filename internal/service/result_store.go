package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-grade-engine/internal/models"
	appErrors "github.com/noah-isme/sma-grade-engine/pkg/errors"
)

// ComputeFunc produces the fresh value for a key. A nil result means the value is
// undefined and no result should be stored. Returning previous keeps the stored result
// untouched.
type ComputeFunc func(ctx context.Context, previous *models.CalculationResult) (*models.CalculationResult, error)

// ResultStore is keyed storage for calculation results.
type ResultStore interface {
	// Get returns nil without error when no result is stored.
	Get(ctx context.Context, key models.ResultKey) (*models.CalculationResult, error)
	Put(ctx context.Context, result *models.CalculationResult) error
	Invalidate(ctx context.Context, key models.ResultKey) error
	// Swap invalidates key, computes a new value and stores it. Readers of key wait for
	// the whole sequence. When compute fails the key stays invalidated.
	Swap(ctx context.Context, key models.ResultKey, compute ComputeFunc) (*models.CalculationResult, error)
}

type resultRepository interface {
	Get(ctx context.Context, key models.ResultKey) (*models.CalculationResult, error)
	Upsert(ctx context.Context, result *models.CalculationResult) error
	Delete(ctx context.Context, key models.ResultKey) error
}

// CachedResultStore keeps results in Postgres with Redis as a read-through cache.
type CachedResultStore struct {
	repo   resultRepository
	cache  *CacheService
	ttl    time.Duration
	locks  *keyLocks
	stale  *staleKeys
	logger *zap.Logger
}

// NewCachedResultStore constructs the store. cache may be nil or disabled.
func NewCachedResultStore(repo resultRepository, cache *CacheService, ttl time.Duration, logger *zap.Logger) *CachedResultStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedResultStore{repo: repo, cache: cache, ttl: ttl, locks: newKeyLocks(), stale: newStaleKeys(), logger: logger}
}

// Get implements ResultStore. Keys whose cache entry could not be dropped or replaced
// are read from the repository until a cache write succeeds again.
func (s *CachedResultStore) Get(ctx context.Context, key models.ResultKey) (*models.CalculationResult, error) {
	key = key.Normalize()
	unlock := s.locks.rlock(key.String())
	defer unlock()

	if !s.stale.has(key.String()) {
		var cached models.CalculationResult
		if hit, _ := s.cache.Get(ctx, key.String(), &cached); hit {
			return &cached, nil
		}
	}

	result, err := s.load(ctx, key)
	if err != nil {
		return nil, err
	}
	if result == nil {
		if s.stale.has(key.String()) {
			s.dropCached(ctx, key.String())
		}
		return nil, nil
	}
	s.fillCache(ctx, result)
	return result, nil
}

// Put implements ResultStore.
func (s *CachedResultStore) Put(ctx context.Context, result *models.CalculationResult) error {
	if result == nil {
		return appErrors.Clone(appErrors.ErrValidation, "result is required")
	}
	key := result.ResultKey.Normalize()
	unlock := s.locks.lock(key.String())
	defer unlock()
	return s.put(ctx, result)
}

// Invalidate implements ResultStore.
func (s *CachedResultStore) Invalidate(ctx context.Context, key models.ResultKey) error {
	key = key.Normalize()
	unlock := s.locks.lock(key.String())
	defer unlock()
	return s.invalidate(ctx, key, true)
}

// Swap implements ResultStore.
func (s *CachedResultStore) Swap(ctx context.Context, key models.ResultKey, compute ComputeFunc) (*models.CalculationResult, error) {
	key = key.Normalize()
	unlock := s.locks.lock(key.String())
	defer unlock()

	previous, err := s.load(ctx, key)
	if err != nil {
		return nil, err
	}
	s.dropCached(ctx, key.String())

	next, err := compute(ctx, previous)
	if err != nil {
		if previous != nil {
			if delErr := s.invalidate(ctx, key, false); delErr != nil {
				s.logger.Error("failed to drop result after aborted recalculation", zap.String("key", key.String()), zap.Error(delErr))
			}
		}
		return nil, err
	}

	if next == nil {
		if previous != nil {
			if err := s.invalidate(ctx, key, false); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}

	if previous != nil && next == previous {
		s.fillCache(ctx, previous)
		return previous, nil
	}

	if previous != nil {
		next.ID = previous.ID
	}
	if err := s.put(ctx, next); err != nil {
		return nil, err
	}
	return next, nil
}

func (s *CachedResultStore) load(ctx context.Context, key models.ResultKey) (*models.CalculationResult, error) {
	result, err := s.repo.Get(ctx, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load calculation result")
	}
	return result, nil
}

func (s *CachedResultStore) put(ctx context.Context, result *models.CalculationResult) error {
	if err := s.repo.Upsert(ctx, result); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store calculation result")
	}
	s.fillCache(ctx, result)
	return nil
}

func (s *CachedResultStore) invalidate(ctx context.Context, key models.ResultKey, dropCache bool) error {
	if dropCache {
		s.dropCached(ctx, key.String())
	}
	if err := s.repo.Delete(ctx, key); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to invalidate calculation result")
	}
	return nil
}

func (s *CachedResultStore) dropCached(ctx context.Context, key string) {
	if err := s.cache.Delete(ctx, key); err != nil {
		s.stale.mark(key)
		return
	}
	s.stale.clear(key)
}

func (s *CachedResultStore) fillCache(ctx context.Context, result *models.CalculationResult) {
	key := result.ResultKey.Normalize().String()
	if err := s.cache.Set(ctx, key, result, s.ttl); err != nil {
		s.stale.mark(key)
		return
	}
	s.stale.clear(key)
}

// staleKeys tracks cache entries that may still hold a superseded value.
type staleKeys struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func newStaleKeys() *staleKeys {
	return &staleKeys{keys: make(map[string]struct{})}
}

func (s *staleKeys) mark(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[key] = struct{}{}
}

func (s *staleKeys) clear(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, key)
}

func (s *staleKeys) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.keys[key]
	return ok
}

// keyLocks hands out one RWMutex per key and forgets it once nobody holds it.
type keyLocks struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sync.RWMutex
	refs int
}

func newKeyLocks() *keyLocks {
	return &keyLocks{locks: make(map[string]*keyLock)}
}

func (k *keyLocks) acquire(key string) *keyLock {
	k.mu.Lock()
	defer k.mu.Unlock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	return l
}

func (k *keyLocks) release(key string, l *keyLock) {
	k.mu.Lock()
	defer k.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(k.locks, key)
	}
}

func (k *keyLocks) lock(key string) func() {
	l := k.acquire(key)
	l.Lock()
	return func() {
		l.Unlock()
		k.release(key, l)
	}
}

func (k *keyLocks) rlock(key string) func() {
	l := k.acquire(key)
	l.RLock()
	return func() {
		l.RUnlock()
		k.release(key, l)
	}
}

func (k *keyLocks) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
