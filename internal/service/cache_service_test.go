package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type failingCache struct{ *memoryCache }

func (f *failingCache) Get(ctx context.Context, key string, dest interface{}) error {
	return errors.New("connection refused")
}

func TestCacheServiceRoundTrip(t *testing.T) {
	repo := newMemoryCache()
	svc := NewCacheService(repo, NewMetricsService(), time.Minute, nil, true)
	ctx := context.Background()

	var out map[string]int
	assert.False(t, svc.Get(ctx, "progress:s:de", &out))

	svc.Set(ctx, "progress:s:de", map[string]int{"passed": 7}, 0)
	assert.True(t, svc.Get(ctx, "progress:s:de", &out))
	assert.Equal(t, 7, out["passed"])

	svc.Invalidate(ctx, "progress:s:")
	assert.False(t, svc.Get(ctx, "progress:s:de", &out))
}

func TestCacheServiceDisabledOrNil(t *testing.T) {
	repo := newMemoryCache()
	disabled := NewCacheService(repo, nil, time.Minute, nil, false)
	ctx := context.Background()

	disabled.Set(ctx, "k", 1, 0)
	assert.False(t, repo.has("k"))
	assert.False(t, disabled.Enabled())

	var nilService *CacheService
	var out int
	assert.False(t, nilService.Get(ctx, "k", &out))
	nilService.Set(ctx, "k", 1, 0)
	nilService.Invalidate(ctx, "k")
}

func TestCacheServiceTreatsErrorsAsMiss(t *testing.T) {
	svc := NewCacheService(&failingCache{memoryCache: newMemoryCache()}, nil, time.Minute, nil, true)

	var out int
	assert.False(t, svc.Get(context.Background(), "k", &out))
}
