// Package service holds the read side of the node: the queries behind the REST
// surface, with a Redis read-through cache in front of the hot ones.
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

// AccountReader looks up accounts and the addresses linked to them
type AccountReader interface {
	GetAddress(ctx context.Context, address string) (*models.Address, error)
	GetAccount(ctx context.Context, id int64) (*models.Account, error)
	ListAddresses(ctx context.Context, accountID int64) ([]*models.Address, error)
	ResolveIdentity(ctx context.Context, address string) (*models.ResolvedIdentity, error)
}

// GameReader reads per-account game data and the game catalogue
type GameReader interface {
	GetGameState(ctx context.Context, accountID int64) (*models.GameState, error)
	GetProfile(ctx context.Context, accountID int64) (*models.Profile, error)
	GetGameInfo(ctx context.Context) (*models.GameInfo, error)
	ListAchievements(ctx context.Context) ([]*models.AchievementWithCount, error)
	ListCompletions(ctx context.Context, accountID int64) ([]*models.AchievementCompletion, error)
}

// GameStateView is the body of GET /api/gamestate/:walletAddress
type GameStateView struct {
	Round        int     `json:"round"`
	SafeCount    int     `json:"safe_count"`
	IsOngoing    bool    `json:"is_ongoing"`
	RandomHash   *string `json:"random_hash"`
	CurrentScore int64   `json:"current_score"`
}

// DefaultGameState is reported for addresses that never started a game
func DefaultGameState() *GameStateView {
	return &GameStateView{Round: 1, SafeCount: 3}
}

// UserView is the body of GET /api/user/:walletAddress
type UserView struct {
	AccountID int64  `json:"accountId"`
	Balance   int64  `json:"balance"`
	LastLogin int64  `json:"lastLogin"`
	Name      string `json:"name"`
}

// GameInfoView is the game metadata plus its achievement catalogue
type GameInfoView struct {
	models.GameInfo
	Achievements []*models.AchievementWithCount `json:"achievements"`
}

// GameService serves account lookups, game state and game metadata
type GameService struct {
	accounts AccountReader
	games    GameReader
	reads    readPath
	now      func() time.Time
}

// NewGameService creates a new game service. cache and monitor may be nil.
func NewGameService(accounts AccountReader, games GameReader, cache ReadCache, monitor *PerformanceMonitor) *GameService {
	return &GameService{
		accounts: accounts,
		games:    games,
		reads:    readPath{cache: cache, monitor: monitor},
		now:      time.Now,
	}
}

// GetAddress returns the address row or ADDRESS_NOT_FOUND
func (s *GameService) GetAddress(ctx context.Context, address string) (*models.Address, error) {
	addr, err := s.accounts.GetAddress(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to get address: %w", err)
	}
	if addr == nil {
		return nil, &types.ServiceError{
			Code:    types.CodeAddressNotFound,
			Message: "address not found",
			Details: map[string]interface{}{"address": address},
		}
	}
	return addr, nil
}

// GetAccount returns the account or ACCOUNT_NOT_FOUND
func (s *GameService) GetAccount(ctx context.Context, id int64) (*models.Account, error) {
	account, err := s.accounts.GetAccount(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if account == nil {
		return nil, &types.ServiceError{
			Code:    types.CodeAccountNotFound,
			Message: "account not found",
			Details: map[string]interface{}{"id": id},
		}
	}
	return account, nil
}

// ListAddresses returns the addresses linked to an account, possibly none
func (s *GameService) ListAddresses(ctx context.Context, accountID int64) ([]*models.Address, error) {
	addresses, err := s.accounts.ListAddresses(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list addresses: %w", err)
	}
	if addresses == nil {
		addresses = []*models.Address{}
	}
	return addresses, nil
}

// accountFor returns the account linked to address, if any
func (s *GameService) accountFor(ctx context.Context, address string) (int64, bool, error) {
	addr, err := s.accounts.GetAddress(ctx, address)
	if err != nil {
		return 0, false, fmt.Errorf("failed to get address: %w", err)
	}
	if addr == nil || addr.AccountID == nil {
		return 0, false, nil
	}
	return *addr.AccountID, true, nil
}

// GetGameState returns the current game of the account behind address, or the
// default state when there is no account or no game
func (s *GameService) GetGameState(ctx context.Context, address string) (*GameStateView, error) {
	accountID, found, err := s.accountFor(ctx, address)
	if err != nil {
		return nil, err
	}
	if !found {
		return DefaultGameState(), nil
	}

	state, err := s.games.GetGameState(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get game state: %w", err)
	}
	if state == nil {
		return DefaultGameState(), nil
	}
	return &GameStateView{
		Round:        state.Round,
		SafeCount:    state.SafeCount,
		IsOngoing:    state.IsOngoing,
		RandomHash:   state.RandomHash,
		CurrentScore: state.CurrentScore,
	}, nil
}

// GetUser returns the wallet profile shown by the game client. Unknown
// addresses get an empty profile named after the shortened address.
func (s *GameService) GetUser(ctx context.Context, address string) (*UserView, error) {
	key := func(c ReadCache) string { return c.GenerateCacheKey(storage.CacheKeyUser, "profile", address) }
	return readThrough(ctx, &s.reads, key, func(ctx context.Context) (*UserView, error) {
		return s.loadUser(ctx, address)
	})
}

func (s *GameService) loadUser(ctx context.Context, address string) (*UserView, error) {
	fallback := &UserView{
		LastLogin: s.now().UnixMilli(),
		Name:      shortAddress(address),
	}

	accountID, found, err := s.accountFor(ctx, address)
	if err != nil {
		return nil, err
	}
	if !found {
		return fallback, nil
	}

	profile, err := s.games.GetProfile(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	if profile == nil {
		return fallback, nil
	}

	view := &UserView{
		AccountID: accountID,
		LastLogin: fallback.LastLogin,
		Name:      fallback.Name,
	}
	if profile.Balance != nil {
		view.Balance = *profile.Balance
	}
	if profile.LastLoginAt != nil {
		view.LastLogin = profile.LastLoginAt.UnixMilli()
	}
	if profile.Name != nil && *profile.Name != "" && *profile.Name != address {
		view.Name = *profile.Name
	}
	return view, nil
}

// GetGameInfo returns the game metadata with completion counts per achievement
func (s *GameService) GetGameInfo(ctx context.Context) (*GameInfoView, error) {
	key := func(c ReadCache) string { return c.GenerateCacheKey(storage.CacheKeyGameInfo, "1") }
	return readThrough(ctx, &s.reads, key, s.loadGameInfo)
}

func (s *GameService) loadGameInfo(ctx context.Context) (*GameInfoView, error) {
	info, err := s.games.GetGameInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get game info: %w", err)
	}
	if info == nil {
		return nil, &types.ServiceError{
			Code:    types.CodeGameNotFound,
			Message: "game info not configured",
		}
	}

	achievements, err := s.games.ListAchievements(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list achievements: %w", err)
	}
	if achievements == nil {
		achievements = []*models.AchievementWithCount{}
	}
	return &GameInfoView{GameInfo: *info, Achievements: achievements}, nil
}

// ParseAccountID parses a path account id
func ParseAccountID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("account id must be an integer: %q", raw)
	}
	return id, nil
}
