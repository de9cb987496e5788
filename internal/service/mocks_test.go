package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/safe-solver/internal/models"
	"github.com/safe-solver/internal/storage"
)

type mockAccounts struct {
	addresses  map[string]*models.Address
	accounts   map[int64]*models.Account
	identities map[string]*models.ResolvedIdentity
	err        error
}

func newMockAccounts() *mockAccounts {
	return &mockAccounts{
		addresses:  map[string]*models.Address{},
		accounts:   map[int64]*models.Account{},
		identities: map[string]*models.ResolvedIdentity{},
	}
}

func (m *mockAccounts) link(address string, accountID int64) {
	id := accountID
	m.addresses[address] = &models.Address{Address: address, AccountID: &id}
	primary := address
	m.accounts[accountID] = &models.Account{ID: accountID, PrimaryAddress: &primary}
}

func (m *mockAccounts) GetAddress(_ context.Context, address string) (*models.Address, error) {
	return m.addresses[address], m.err
}

func (m *mockAccounts) GetAccount(_ context.Context, id int64) (*models.Account, error) {
	return m.accounts[id], m.err
}

func (m *mockAccounts) ListAddresses(_ context.Context, accountID int64) ([]*models.Address, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []*models.Address
	for _, a := range m.addresses {
		if a.AccountID != nil && *a.AccountID == accountID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockAccounts) ResolveIdentity(_ context.Context, address string) (*models.ResolvedIdentity, error) {
	return m.identities[address], m.err
}

type mockGames struct {
	states       map[int64]*models.GameState
	profiles     map[int64]*models.Profile
	info         *models.GameInfo
	achievements []*models.AchievementWithCount
	completions  map[int64][]*models.AchievementCompletion
	infoCalls    atomic.Int32
	err          error
}

func newMockGames() *mockGames {
	return &mockGames{
		states:      map[int64]*models.GameState{},
		profiles:    map[int64]*models.Profile{},
		completions: map[int64][]*models.AchievementCompletion{},
	}
}

func (m *mockGames) GetGameState(_ context.Context, accountID int64) (*models.GameState, error) {
	return m.states[accountID], m.err
}

func (m *mockGames) GetProfile(_ context.Context, accountID int64) (*models.Profile, error) {
	return m.profiles[accountID], m.err
}

func (m *mockGames) GetGameInfo(context.Context) (*models.GameInfo, error) {
	m.infoCalls.Add(1)
	return m.info, m.err
}

func (m *mockGames) ListAchievements(context.Context) ([]*models.AchievementWithCount, error) {
	return m.achievements, m.err
}

func (m *mockGames) ListCompletions(_ context.Context, accountID int64) ([]*models.AchievementCompletion, error) {
	return m.completions[accountID], m.err
}

type mockBoard struct {
	mu         sync.Mutex
	total      int64
	entries    []*models.LeaderboardEntry
	stats      map[int64]*models.UserStats
	lastWindow models.TimeWindow
	lastLimit  int
	lastOffset int
	entryCalls atomic.Int32
	err        error
}

func (m *mockBoard) CountPlayers(_ context.Context, window models.TimeWindow) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastWindow = window
	return m.total, m.err
}

func (m *mockBoard) Entries(_ context.Context, window models.TimeWindow, limit, offset int) ([]*models.LeaderboardEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entryCalls.Add(1)
	m.lastWindow, m.lastLimit, m.lastOffset = window, limit, offset
	return m.entries, m.err
}

func (m *mockBoard) UserStats(_ context.Context, accountID int64, window models.TimeWindow) (*models.UserStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastWindow = window
	if s, ok := m.stats[accountID]; ok {
		return s, m.err
	}
	return &models.UserStats{}, m.err
}

func newTestCache(t *testing.T) (*storage.CacheService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return storage.NewCacheService(storage.NewRedisCacheFromClient(client), time.Minute), mr
}

var fixedNow = time.Date(2025, 6, 15, 12, 30, 45, 123000000, time.UTC)

func ptr[T any](v T) *T { return &v }
