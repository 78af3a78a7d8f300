package service

import (
	"context"
	"encoding/json"
	"errors"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/course-planner-api/pkg/errors"
)

type memoryCacheRepo struct {
	mu     sync.Mutex
	items  map[string][]byte
	ttls   map[string]time.Duration
	getErr error
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{items: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memoryCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return m.getErr
	}
	raw, ok := m.items[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = raw
	m.ttls[key] = ttl
	return nil
}

func (m *memoryCacheRepo) Delete(_ context.Context, keys ...string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for _, key := range keys {
		if _, ok := m.items[key]; ok {
			delete(m.items, key)
			removed++
		}
	}
	return removed, nil
}

func (m *memoryCacheRepo) Purge(ctx context.Context, pattern string) (int, error) {
	return m.Delete(ctx, m.matching(pattern)...)
}

type recordingCacheMetrics struct {
	lookups map[string][]bool
	writes  int
}

func (r *recordingCacheMetrics) RecordCacheOperation(namespace string, hit bool, _ time.Duration) {
	if r.lookups == nil {
		r.lookups = map[string][]bool{}
	}
	r.lookups[namespace] = append(r.lookups[namespace], hit)
}

func (r *recordingCacheMetrics) ObserveCacheWrite(time.Duration) { r.writes++ }

func TestCacheServiceHitMissAndMetrics(t *testing.T) {
	repo := newMemoryCacheRepo()
	metrics := &recordingCacheMetrics{}
	svc := NewCacheService(repo, metrics, time.Minute, nil, true)

	var out []string
	assert.False(t, svc.Get(context.Background(), "catalog:2025-fall", &out))

	svc.Set(context.Background(), "catalog:2025-fall", []string{"CENG111"}, 0)
	assert.Equal(t, time.Minute, repo.ttls["catalog:2025-fall"])

	require.True(t, svc.Get(context.Background(), "catalog:2025-fall", &out))
	assert.Equal(t, []string{"CENG111"}, out)
	assert.Equal(t, []bool{false, true}, metrics.lookups["catalog"])
	assert.Equal(t, 1, metrics.writes)
}

func TestCacheServiceBackendErrorIsAMiss(t *testing.T) {
	repo := newMemoryCacheRepo()
	repo.getErr = errors.New("connection refused")
	svc := NewCacheService(repo, nil, 0, nil, true)

	var out int
	assert.False(t, svc.Get(context.Background(), "memo:x", &out))
}

func TestCacheServiceDisabled(t *testing.T) {
	repo := newMemoryCacheRepo()
	svc := NewCacheService(repo, nil, 0, nil, false)
	svc.Set(context.Background(), "memo:x", 1, 0)
	assert.Empty(t, repo.items)
	assert.NoError(t, svc.Invalidate(context.Background(), "memo:*"))

	var nilSvc *CacheService
	assert.False(t, nilSvc.Enabled())
}

func TestCacheServiceInvalidate(t *testing.T) {
	repo := newMemoryCacheRepo()
	svc := NewCacheService(repo, nil, 0, nil, true)
	svc.Set(context.Background(), "catalog:a", 1, 0)
	svc.Set(context.Background(), "catalog:b", 2, 0)
	svc.Set(context.Background(), "memo:a", 3, 0)

	require.NoError(t, svc.Invalidate(context.Background(), "catalog:*"))
	assert.Len(t, repo.items, 1)
	assert.Equal(t, "default", namespaceOf("plain"))

	svc.Set(context.Background(), "plan:p1", 4, 0)
	require.NoError(t, svc.Invalidate(context.Background(), "plan:p1", "memo:*", "plan:missing"))
	assert.Empty(t, repo.items)
}

func TestRememberLoadsOnce(t *testing.T) {
	repo := newMemoryCacheRepo()
	svc := NewCacheService(repo, nil, time.Minute, nil, true)
	calls := 0
	load := func(context.Context) ([]string, error) {
		calls++
		return []string{"10001", "10002"}, nil
	}

	got, hit, err := Remember(context.Background(), svc, "plan:p1", 0, load)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, []string{"10001", "10002"}, got)

	got, hit, err = Remember(context.Background(), svc, "plan:p1", 0, load)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []string{"10001", "10002"}, got)
	assert.Equal(t, 1, calls)

	_, _, err = Remember(context.Background(), svc, "plan:p2", 0, func(context.Context) (int, error) {
		return 0, appErrors.ErrNotFound
	})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	assert.NotContains(t, repo.items, "plan:p2")

	var off *CacheService
	n, hit, err := Remember(context.Background(), off, "plan:p3", 0, func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 7, n)
}

func (m *memoryCacheRepo) matching(pattern string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for key := range m.items {
		if ok, _ := path.Match(pattern, key); ok {
			keys = append(keys, key)
		}
	}
	return keys
}
