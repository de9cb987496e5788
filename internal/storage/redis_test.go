package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safe-solver/internal/config"
	"github.com/safe-solver/internal/models"
)

func TestNewRedisCache_Unreachable(t *testing.T) {
	_, err := NewRedisCache(&config.RedisConfig{Host: "127.0.0.1", Port: "1", MaxConnections: 1})
	assert.Error(t, err)
}

func queued(ids ...string) []*models.QueuedInput {
	out := make([]*models.QueuedInput, len(ids))
	for i, id := range ids {
		out[i] = &models.QueuedInput{ID: id, Address: "0xabc", Input: `["initLevel"]`, Timestamp: int64(i)}
	}
	return out
}

func ids(inputs []*models.QueuedInput) []string {
	out := make([]string, len(inputs))
	for i, in := range inputs {
		out[i] = in.ID
	}
	return out
}

func TestInputQueue_FIFO(t *testing.T) {
	cache, _ := newTestRedis(t)
	q := NewInputQueue(cache, "test:inputs")
	ctx := testContext(t)

	for _, in := range queued("a", "b", "c") {
		require.NoError(t, q.Push(ctx, in))
	}
	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	batch, skipped, err := q.PopBatch(ctx, 2)
	require.NoError(t, err)
	assert.Zero(t, skipped)
	assert.Equal(t, []string{"a", "b"}, ids(batch))

	batch, _, err = q.PopBatch(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, ids(batch))

	batch, _, err = q.PopBatch(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, batch)
}

func TestInputQueue_RequeueKeepsOrder(t *testing.T) {
	cache, _ := newTestRedis(t)
	q := NewInputQueue(cache, "test:inputs")
	ctx := testContext(t)

	for _, in := range queued("a", "b", "c", "d") {
		require.NoError(t, q.Push(ctx, in))
	}
	batch, _, err := q.PopBatch(ctx, 3)
	require.NoError(t, err)

	require.NoError(t, q.Requeue(ctx, batch))

	all, _, err := q.PopBatch(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(all))
}

func TestInputQueue_SkipsUndecodable(t *testing.T) {
	cache, mr := newTestRedis(t)
	q := NewInputQueue(cache, "test:inputs")
	ctx := testContext(t)

	require.NoError(t, q.Push(ctx, queued("a")[0]))
	_, err := mr.RPush("test:inputs", "{not json")
	require.NoError(t, err)
	require.NoError(t, q.Push(ctx, queued("b")[0]))

	batch, skipped, err := q.PopBatch(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
	assert.Equal(t, []string{"a", "b"}, ids(batch))
}

func TestCacheService_GetSet(t *testing.T) {
	cache, mr := newTestRedis(t)
	svc := NewCacheService(cache, time.Minute)
	ctx := testContext(t)

	key := svc.GenerateCacheKey(CacheKeyUser, "0xABC", "2025")
	assert.Equal(t, "user:0xabc:2025", key)

	var got models.UserStats
	found, err := svc.Get(ctx, key, &got)
	require.NoError(t, err)
	assert.False(t, found)

	rank := int64(3)
	require.NoError(t, svc.Set(ctx, key, models.UserStats{Rank: &rank, Score: 120, MatchesPlayed: 4}))

	found, err = svc.Get(ctx, key, &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(120), got.Score)
	require.NotNil(t, got.Rank)
	assert.Equal(t, int64(3), *got.Rank)

	assert.Equal(t, time.Minute, mr.TTL(key))
	mr.FastForward(2 * time.Minute)
	found, err = svc.Get(ctx, key, &got)
	require.NoError(t, err)
	assert.False(t, found, "entry expires after the TTL")
}

func TestCacheService_InvalidateTypes(t *testing.T) {
	cache, mr := newTestRedis(t)
	svc := NewCacheService(cache, time.Minute)
	ctx := testContext(t)

	for _, key := range []string{
		svc.GenerateCacheKey(CacheKeyLeaderboard, "50", "0"),
		svc.GenerateCacheKey(CacheKeyLeaderboard, "10", "10"),
		svc.GenerateCacheKey(CacheKeyUser, "0xabc"),
		svc.GenerateCacheKey(CacheKeyGameInfo, "1"),
	} {
		require.NoError(t, svc.Set(ctx, key, 1))
	}

	require.NoError(t, svc.InvalidateTypes(ctx, CacheKeyLeaderboard, CacheKeyUser))

	assert.False(t, mr.Exists("leaderboard:50:0"))
	assert.False(t, mr.Exists("leaderboard:10:10"))
	assert.False(t, mr.Exists("user:0xabc"))
	assert.True(t, mr.Exists("gameinfo:1"))
}
