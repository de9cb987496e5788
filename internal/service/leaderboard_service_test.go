package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/safe-solver/internal/errors"
	"github.com/safe-solver/internal/models"
	"github.com/safe-solver/internal/storage"
	"github.com/safe-solver/internal/types"
)

func newTestLeaderboardService(board *mockBoard, accounts *mockAccounts, games *mockGames, cache ReadCache) *LeaderboardService {
	s := NewLeaderboardService(board, accounts, games, cache, NewPerformanceMonitor())
	s.now = func() time.Time { return fixedNow }
	return s
}

func TestLeaderboardService_Defaults(t *testing.T) {
	board := &mockBoard{
		total: 2,
		entries: []*models.LeaderboardEntry{
			{Rank: 1, Address: "0xa", PlayerID: "1", Score: 120},
			{Rank: 2, Address: "0xb", PlayerID: "user_2", Score: 80},
		},
	}
	s := newTestLeaderboardService(board, newMockAccounts(), newMockGames(), nil)

	view, err := s.GetLeaderboard(context.Background(), LeaderboardQuery{})
	require.NoError(t, err)

	assert.Equal(t, int64(2), view.TotalPlayers)
	assert.Len(t, view.Entries, 2)
	assert.Equal(t, 50, board.lastLimit)
	assert.Equal(t, 0, board.lastOffset)
	assert.Equal(t, "2025-06-15T12:30:45.123Z", view.EndDate)
	assert.Equal(t, "2024-06-15T12:30:45.123Z", view.StartDate)
	assert.Equal(t, fixedNow.Add(-365*24*time.Hour), board.lastWindow.Start)
}

func TestLeaderboardService_Paging(t *testing.T) {
	tests := []struct {
		name       string
		query      LeaderboardQuery
		wantLimit  int
		wantOffset int
	}{
		{"explicit", LeaderboardQuery{Limit: "10", Offset: "20"}, 10, 20},
		{"limit above max", LeaderboardQuery{Limit: "500"}, 100, 0},
		{"negative limit", LeaderboardQuery{Limit: "-3"}, 1, 0},
		{"zero limit", LeaderboardQuery{Limit: "0"}, 50, 0},
		{"garbage", LeaderboardQuery{Limit: "ten", Offset: "x"}, 50, 0},
		{"negative offset", LeaderboardQuery{Offset: "-5"}, 50, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			board := &mockBoard{}
			s := newTestLeaderboardService(board, newMockAccounts(), newMockGames(), nil)

			view, err := s.GetLeaderboard(context.Background(), tt.query)
			require.NoError(t, err)
			assert.NotNil(t, view.Entries)
			assert.Equal(t, tt.wantLimit, board.lastLimit)
			assert.Equal(t, tt.wantOffset, board.lastOffset)
		})
	}
}

func TestLeaderboardService_Window(t *testing.T) {
	board := &mockBoard{}
	s := newTestLeaderboardService(board, newMockAccounts(), newMockGames(), nil)

	view, err := s.GetLeaderboard(context.Background(), LeaderboardQuery{
		StartDate: "2025-01-01",
		EndDate:   "not-a-date",
	})
	require.NoError(t, err)
	assert.Equal(t, "2025-01-01T00:00:00.000Z", view.StartDate)
	assert.Equal(t, "2025-06-15T12:30:45.123Z", view.EndDate, "invalid date falls back")
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), board.lastWindow.Start)
}

func TestLeaderboardService_CachedAndShared(t *testing.T) {
	cache, _ := newTestCache(t)
	board := &mockBoard{total: 1, entries: []*models.LeaderboardEntry{{Rank: 1, Address: "0xa", Score: 5}}}
	s := newTestLeaderboardService(board, newMockAccounts(), newMockGames(), cache)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			view, err := s.GetLeaderboard(context.Background(), LeaderboardQuery{Limit: "10"})
			assert.NoError(t, err)
			assert.Len(t, view.Entries, 1)
		}()
	}
	wg.Wait()

	_, err := s.GetLeaderboard(context.Background(), LeaderboardQuery{Limit: "10"})
	require.NoError(t, err)
	assert.LessOrEqual(t, board.entryCalls.Load(), int32(8))

	calls := board.entryCalls.Load()
	require.NoError(t, cache.InvalidateTypes(context.Background(), storage.CacheKeyLeaderboard))
	_, err = s.GetLeaderboard(context.Background(), LeaderboardQuery{Limit: "10"})
	require.NoError(t, err)
	assert.Equal(t, calls+1, board.entryCalls.Load(), "invalidation forces a reload")

	stats := s.reads.monitor.GetStats()
	assert.Equal(t, int64(10), stats.TotalReads)
	assert.GreaterOrEqual(t, stats.CacheHits, int64(1))
	assert.Equal(t, stats.TotalReads, stats.CacheHits+stats.CacheMisses)
}

func TestLeaderboardService_UserProfile(t *testing.T) {
	accounts := newMockAccounts()
	accounts.identities["0xbob"] = &models.ResolvedIdentity{AccountID: 2, ResolvedAddress: "0xbobpublic", DisplayName: ptr("bob")}
	accounts.identities["0xbobpublic"] = &models.ResolvedIdentity{AccountID: 2, ResolvedAddress: "0xbobpublic", DisplayName: ptr("bob")}
	games := newMockGames()
	games.completions[2] = []*models.AchievementCompletion{
		{AccountID: 2, AchievementID: "reach_level_1"},
		{AccountID: 2, AchievementID: "reach_level_2"},
	}
	board := &mockBoard{stats: map[int64]*models.UserStats{2: {Rank: ptr(int64(3)), Score: 80, MatchesPlayed: 6}}}
	s := newTestLeaderboardService(board, accounts, games, nil)

	view, err := s.GetUserProfile(context.Background(), "0xbob", "", "")
	require.NoError(t, err)
	assert.Equal(t, models.Identity{
		QueriedAddress:  "0xbob",
		ResolvedAddress: "0xbobpublic",
		IsDelegate:      true,
		DisplayName:     ptr("bob"),
	}, view.Identity)
	assert.Equal(t, int64(3), *view.Stats.Rank)
	assert.Equal(t, int64(6), view.Stats.MatchesPlayed)
	assert.Equal(t, []string{"reach_level_1", "reach_level_2"}, view.Achievements)

	view, err = s.GetUserProfile(context.Background(), "0xbobpublic", "", "")
	require.NoError(t, err)
	assert.False(t, view.Identity.IsDelegate)
}

func TestLeaderboardService_UserProfileNoScore(t *testing.T) {
	accounts := newMockAccounts()
	accounts.identities["0xcarol"] = &models.ResolvedIdentity{AccountID: 3, ResolvedAddress: "0xcarol"}
	s := newTestLeaderboardService(&mockBoard{}, accounts, newMockGames(), nil)

	view, err := s.GetUserProfile(context.Background(), "0xcarol", "", "")
	require.NoError(t, err)
	assert.Nil(t, view.Stats.Rank)
	assert.Zero(t, view.Stats.Score)
	assert.NotNil(t, view.Achievements)
	assert.Empty(t, view.Achievements)
}

func TestLeaderboardService_UserProfileNotFound(t *testing.T) {
	s := newTestLeaderboardService(&mockBoard{}, newMockAccounts(), newMockGames(), nil)

	_, err := s.GetUserProfile(context.Background(), "0xnobody", "", "")
	require.Error(t, err)
	assert.Equal(t, types.CodeUserNotFound, apperrors.Categorize(err).Code)
	assert.Equal(t, 404, apperrors.GetHTTPStatusCode(err))
}
