package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/safe-solver/internal/models"
	"github.com/safe-solver/internal/storage"
	"github.com/safe-solver/internal/types"
)

// LeaderboardReader ranks accounts by their best score inside a window
type LeaderboardReader interface {
	CountPlayers(ctx context.Context, window models.TimeWindow) (int64, error)
	Entries(ctx context.Context, window models.TimeWindow, limit, offset int) ([]*models.LeaderboardEntry, error)
	UserStats(ctx context.Context, accountID int64, window models.TimeWindow) (*models.UserStats, error)
}

// LeaderboardQuery holds the raw query parameters of a leaderboard request.
// Values that do not parse fall back to their defaults.
type LeaderboardQuery struct {
	Limit     string
	Offset    string
	StartDate string
	EndDate   string
}

// LeaderboardView is the body of GET /v1/game/leaderboard
type LeaderboardView struct {
	StartDate    string                     `json:"start_date"`
	EndDate      string                     `json:"end_date"`
	TotalPlayers int64                      `json:"total_players"`
	Entries      []*models.LeaderboardEntry `json:"entries"`
}

// UserProfileView is the body of GET /v1/game/users/:address
type UserProfileView struct {
	Identity     models.Identity  `json:"identity"`
	Stats        models.UserStats `json:"stats"`
	Achievements []string         `json:"achievements"`
	StartDate    string           `json:"start_date"`
	EndDate      string           `json:"end_date"`
}

// LeaderboardService serves the ranked leaderboard and per-user profiles
type LeaderboardService struct {
	board    LeaderboardReader
	accounts AccountReader
	games    GameReader
	reads    readPath
	now      func() time.Time
}

// NewLeaderboardService creates a new leaderboard service. cache and monitor may be nil.
func NewLeaderboardService(board LeaderboardReader, accounts AccountReader, games GameReader, cache ReadCache, monitor *PerformanceMonitor) *LeaderboardService {
	return &LeaderboardService{
		board:    board,
		accounts: accounts,
		games:    games,
		reads:    readPath{cache: cache, monitor: monitor},
		now:      time.Now,
	}
}

// GetLeaderboard returns one page of the leaderboard
func (s *LeaderboardService) GetLeaderboard(ctx context.Context, q LeaderboardQuery) (*LeaderboardView, error) {
	limit := parseLimit(q.Limit)
	offset := parseOffset(q.Offset)

	load := func(ctx context.Context) (*LeaderboardView, error) {
		return s.loadLeaderboard(ctx, limit, offset, q.StartDate, q.EndDate)
	}
	key := func(c ReadCache) string {
		return c.GenerateCacheKey(storage.CacheKeyLeaderboard,
			strconv.Itoa(limit), strconv.Itoa(offset), q.StartDate, q.EndDate)
	}
	return readThrough(ctx, &s.reads, key, load)
}

func (s *LeaderboardService) loadLeaderboard(ctx context.Context, limit, offset int, start, end string) (*LeaderboardView, error) {
	window := resolveWindow(start, end, s.now())

	total, err := s.board.CountPlayers(ctx, window)
	if err != nil {
		return nil, fmt.Errorf("failed to count players: %w", err)
	}
	entries, err := s.board.Entries(ctx, window, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get leaderboard entries: %w", err)
	}
	if entries == nil {
		entries = []*models.LeaderboardEntry{}
	}

	return &LeaderboardView{
		StartDate:    formatISO(window.Start),
		EndDate:      formatISO(window.End),
		TotalPlayers: total,
		Entries:      entries,
	}, nil
}

// GetUserProfile returns identity, in-window stats and unlocked achievements of
// the account behind address, or USER_NOT_FOUND
func (s *LeaderboardService) GetUserProfile(ctx context.Context, address, start, end string) (*UserProfileView, error) {
	load := func(ctx context.Context) (*UserProfileView, error) {
		return s.loadUserProfile(ctx, address, start, end)
	}
	key := func(c ReadCache) string { return c.GenerateCacheKey(storage.CacheKeyUser, "v1", address, start, end) }
	return readThrough(ctx, &s.reads, key, load)
}

func (s *LeaderboardService) loadUserProfile(ctx context.Context, address, start, end string) (*UserProfileView, error) {
	identity, err := s.accounts.ResolveIdentity(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve identity: %w", err)
	}
	if identity == nil {
		return nil, &types.ServiceError{
			Code:    types.CodeUserNotFound,
			Message: "address not found",
			Details: map[string]interface{}{"address": address},
		}
	}

	window := resolveWindow(start, end, s.now())
	stats, err := s.board.UserStats(ctx, identity.AccountID, window)
	if err != nil {
		return nil, fmt.Errorf("failed to get user stats: %w", err)
	}

	completions, err := s.games.ListCompletions(ctx, identity.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list achievements: %w", err)
	}
	achievements := make([]string, 0, len(completions))
	for _, c := range completions {
		achievements = append(achievements, c.AchievementID)
	}

	return &UserProfileView{
		Identity: models.Identity{
			QueriedAddress:  address,
			ResolvedAddress: identity.ResolvedAddress,
			IsDelegate:      identity.ResolvedAddress != address,
			DisplayName:     identity.DisplayName,
		},
		Stats:        *stats,
		Achievements: achievements,
		StartDate:    formatISO(window.Start),
		EndDate:      formatISO(window.End),
	}, nil
}
