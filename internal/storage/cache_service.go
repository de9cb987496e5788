package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheService is a JSON read-through cache for the REST read paths
type CacheService struct {
	redis *RedisCache
	ttl   time.Duration
}

// NewCacheService creates a new cache service
func NewCacheService(redis *RedisCache, ttl time.Duration) *CacheService {
	return &CacheService{
		redis: redis,
		ttl:   ttl,
	}
}

// CacheKeyType is the first segment of a cache key
type CacheKeyType string

const (
	// CacheKeyLeaderboard is for leaderboard pages
	CacheKeyLeaderboard CacheKeyType = "leaderboard"
	// CacheKeyUser is for per-address profiles and stats
	CacheKeyUser CacheKeyType = "user"
	// CacheKeyGameInfo is for game metadata with achievement counts
	CacheKeyGameInfo CacheKeyType = "gameinfo"
)

// GenerateCacheKey builds <type>:<param1>:<param2>:... with lowercased params
func (c *CacheService) GenerateCacheKey(keyType CacheKeyType, params ...string) string {
	parts := make([]string, 0, len(params)+1)
	parts = append(parts, string(keyType))
	for _, p := range params {
		parts = append(parts, strings.ToLower(p))
	}
	return strings.Join(parts, ":")
}

// Set stores a value with the configured TTL
func (c *CacheService) Set(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return c.redis.Set(ctx, key, data, c.ttl)
}

// Get loads a cached value into dest and reports whether it was a hit
func (c *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := c.redis.Get(ctx, key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get from cache: %w", err)
	}
	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached value: %w", err)
	}
	return true, nil
}

// InvalidatePattern removes all keys matching a pattern such as "leaderboard:*"
func (c *CacheService) InvalidatePattern(ctx context.Context, pattern string) error {
	keys, err := c.redis.Keys(ctx, pattern)
	if err != nil {
		return fmt.Errorf("failed to find keys matching pattern: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return c.redis.Del(ctx, keys...)
}

// InvalidateTypes drops every entry of the given key types
func (c *CacheService) InvalidateTypes(ctx context.Context, types ...CacheKeyType) error {
	for _, t := range types {
		if err := c.InvalidatePattern(ctx, string(t)+":*"); err != nil {
			return fmt.Errorf("failed to invalidate %s: %w", t, err)
		}
	}
	return nil
}

// TTL returns the configured TTL
func (c *CacheService) TTL() time.Duration {
	return c.ttl
}
