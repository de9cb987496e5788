package service

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/safe-solver/internal/logging"
	"github.com/safe-solver/internal/storage"
)

const sharedLoadTimeout = 10 * time.Second

// ReadCache is the subset of storage.CacheService the read paths use
type ReadCache interface {
	GenerateCacheKey(keyType storage.CacheKeyType, params ...string) string
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
}

// readPath bundles what the cached read paths of a service share
type readPath struct {
	cache   ReadCache
	group   singleflight.Group
	monitor *PerformanceMonitor
}

// readThrough serves key from cache, otherwise loads it once for all concurrent
// callers and stores the result. Cache failures fall back to load. Without a
// cache every call loads.
func readThrough[T any](ctx context.Context, rp *readPath, key func(ReadCache) string, load func(ctx context.Context) (T, error)) (T, error) {
	start := time.Now()
	if rp.cache == nil {
		v, err := load(ctx)
		rp.monitor.RecordRead(time.Since(start), false)
		return v, err
	}

	k := key(rp.cache)
	logger := logging.FromContext(ctx).WithField("cacheKey", k)

	var cached T
	hit, err := rp.cache.Get(ctx, k, &cached)
	if err != nil {
		logger.WithError(err).Warn("cache read failed")
	} else if hit {
		rp.monitor.RecordRead(time.Since(start), true)
		return cached, nil
	}

	// the shared load outlives any single caller; each caller still stops
	// waiting when its own context ends
	ch := rp.group.DoChan(k, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedLoadTimeout)
		defer cancel()
		value, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		if err := rp.cache.Set(loadCtx, k, value); err != nil {
			logger.WithError(err).Warn("cache write failed")
		}
		return value, nil
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		rp.monitor.RecordRead(time.Since(start), false)
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}
