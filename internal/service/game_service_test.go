package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/safe-solver/internal/errors"
	"github.com/safe-solver/internal/models"
	"github.com/safe-solver/internal/types"
)

const wallet = "0x1234567890abcdef1234567890abcdef12345678"

func newTestGameService(accounts *mockAccounts, games *mockGames, cache ReadCache) *GameService {
	s := NewGameService(accounts, games, cache, NewPerformanceMonitor())
	s.now = func() time.Time { return fixedNow }
	return s
}

func TestGameService_GetAddress(t *testing.T) {
	accounts := newMockAccounts()
	accounts.link(wallet, 7)
	s := newTestGameService(accounts, newMockGames(), nil)

	addr, err := s.GetAddress(context.Background(), wallet)
	require.NoError(t, err)
	assert.Equal(t, int64(7), *addr.AccountID)

	_, err = s.GetAddress(context.Background(), "0xmissing")
	require.Error(t, err)
	assert.Equal(t, 404, apperrors.GetHTTPStatusCode(err))
}

func TestGameService_GetAccount(t *testing.T) {
	accounts := newMockAccounts()
	accounts.link(wallet, 7)
	s := newTestGameService(accounts, newMockGames(), nil)

	account, err := s.GetAccount(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, wallet, *account.PrimaryAddress)

	_, err = s.GetAccount(context.Background(), 8)
	assert.Equal(t, types.CodeAccountNotFound, apperrors.Categorize(err).Code)
}

func TestGameService_ListAddressesEmpty(t *testing.T) {
	s := newTestGameService(newMockAccounts(), newMockGames(), nil)

	addresses, err := s.ListAddresses(context.Background(), 99)
	require.NoError(t, err)
	assert.NotNil(t, addresses)
	assert.Empty(t, addresses)
}

func TestGameService_GetGameState(t *testing.T) {
	accounts := newMockAccounts()
	accounts.link(wallet, 7)
	accounts.link("0xnogame", 8)
	games := newMockGames()
	games.states[7] = &models.GameState{AccountID: 7, Round: 4, SafeCount: 5, IsOngoing: true, RandomHash: ptr("ab"), CurrentScore: 90}
	s := newTestGameService(accounts, games, nil)

	state, err := s.GetGameState(context.Background(), wallet)
	require.NoError(t, err)
	assert.Equal(t, &GameStateView{Round: 4, SafeCount: 5, IsOngoing: true, RandomHash: ptr("ab"), CurrentScore: 90}, state)

	for _, address := range []string{"0xunknown", "0xnogame"} {
		state, err = s.GetGameState(context.Background(), address)
		require.NoError(t, err)
		assert.Equal(t, DefaultGameState(), state, address)
		assert.Nil(t, state.RandomHash)
	}
}

func TestGameService_GetGameStateStorageError(t *testing.T) {
	accounts := newMockAccounts()
	accounts.err = errors.New("connection refused")
	s := newTestGameService(accounts, newMockGames(), nil)

	_, err := s.GetGameState(context.Background(), wallet)
	assert.Error(t, err)
}

func TestGameService_GetUser(t *testing.T) {
	accounts := newMockAccounts()
	accounts.link(wallet, 7)
	accounts.link("0xabcdef000000000000000000000000000000beef", 8)
	accounts.link("0x9999999999999999999999999999999999999999", 9)
	games := newMockGames()
	login := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	games.profiles[7] = &models.Profile{AccountID: 7, Name: ptr("alice"), Balance: ptr(int64(320)), LastLoginAt: &login}
	games.profiles[8] = &models.Profile{AccountID: 8, Name: ptr("0xabcdef000000000000000000000000000000beef")}
	s := newTestGameService(accounts, games, nil)

	user, err := s.GetUser(context.Background(), wallet)
	require.NoError(t, err)
	assert.Equal(t, &UserView{AccountID: 7, Balance: 320, LastLogin: login.UnixMilli(), Name: "alice"}, user)

	user, err = s.GetUser(context.Background(), "0xabcdef000000000000000000000000000000beef")
	require.NoError(t, err)
	assert.Equal(t, "0xabcd...beef", user.Name, "address used as name is shortened")
	assert.Equal(t, fixedNow.UnixMilli(), user.LastLogin)

	user, err = s.GetUser(context.Background(), "0x9999999999999999999999999999999999999999")
	require.NoError(t, err)
	assert.Zero(t, user.AccountID, "no profile row")
	assert.Equal(t, "0x9999...9999", user.Name)

	user, err = s.GetUser(context.Background(), "0xfeedfacefeedfacefeedfacefeedfacefeedface")
	require.NoError(t, err)
	assert.Equal(t, &UserView{LastLogin: fixedNow.UnixMilli(), Name: "0xfeed...face"}, user)
}

func TestGameService_GetGameInfo(t *testing.T) {
	games := newMockGames()
	s := newTestGameService(newMockAccounts(), games, nil)

	_, err := s.GetGameInfo(context.Background())
	require.Error(t, err)
	assert.Equal(t, 404, apperrors.GetHTTPStatusCode(err))

	games.info = &models.GameInfo{Name: "Safe Solver", ScoreUnit: "points", SortOrder: "DESC"}
	info, err := s.GetGameInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Safe Solver", info.Name)
	assert.NotNil(t, info.Achievements)
}

func TestGameService_GetGameInfoCached(t *testing.T) {
	cache, mr := newTestCache(t)
	games := newMockGames()
	games.info = &models.GameInfo{Name: "Safe Solver", SortOrder: "DESC"}
	games.achievements = []*models.AchievementWithCount{{
		Achievement:    models.Achievement{ID: "reach_level_1", Name: "Level 1"},
		CompletedCount: 3,
	}}
	s := newTestGameService(newMockAccounts(), games, cache)

	first, err := s.GetGameInfo(context.Background())
	require.NoError(t, err)
	second, err := s.GetGameInfo(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), games.infoCalls.Load())
	assert.True(t, mr.Exists("gameinfo:1"))
}

func TestGameService_CacheFailureFallsBack(t *testing.T) {
	cache, mr := newTestCache(t)
	games := newMockGames()
	games.info = &models.GameInfo{Name: "Safe Solver"}
	s := newTestGameService(newMockAccounts(), games, cache)
	mr.Close()

	info, err := s.GetGameInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Safe Solver", info.Name)
}

func TestParseAccountID(t *testing.T) {
	id, err := ParseAccountID("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	_, err = ParseAccountID("4x")
	assert.Error(t, err)
}
