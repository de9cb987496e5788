package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safe-solver/internal/models"
	"github.com/safe-solver/internal/types"
)

func TestPostgresDB_Ping(t *testing.T) {
	db := openTestDB(t)
	if err := db.Ping(testContext(t)); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}

func TestTransitionStore_GameLifecycle(t *testing.T) {
	db := openTestDB(t)
	ctx := testContext(t)
	s := NewTransitionStore(db.Pool())
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	id, err := s.CreateAccount(ctx, "0xaaa", types.AddressTypeEVM, at)
	require.NoError(t, err)

	got, found, err := s.ResolveAccount(ctx, "0xaaa")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, id, got)

	state, err := s.GetGameState(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, state)

	require.NoError(t, s.SetAccountName(ctx, id, "alice"))
	state, err = s.GetGameState(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, state, "a profile row alone is not a game")

	require.NoError(t, s.EnsureBalance(ctx, id))
	started, err := s.StartGame(ctx, id, 5, "abc")
	require.NoError(t, err)
	assert.True(t, started)

	started, err = s.StartGame(ctx, id, 3, "def")
	require.NoError(t, err)
	assert.False(t, started, "ongoing game cannot be restarted")

	ok, err := s.AdvanceRound(ctx, id, 2, 10, 4)
	require.NoError(t, err)
	assert.False(t, ok, "stale round is rejected")

	ok, err = s.AdvanceRound(ctx, id, 1, 16, 4)
	require.NoError(t, err)
	assert.True(t, ok)

	state, err = s.GetGameState(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, 2, state.Round)
	assert.Equal(t, 4, state.SafeCount)
	assert.Equal(t, int64(16), state.CurrentScore)
	assert.Equal(t, "abc", *state.RandomHash)

	ok, err = s.RecordWin(ctx, id, 2)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.RecordWin(ctx, id, 2)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.CreditBalance(ctx, id, 16, at))
	require.NoError(t, s.CreditBalance(ctx, id, 4, at))
	profile, err := s.GetProfile(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, int64(20), *profile.Balance)
	assert.Equal(t, "alice", *profile.Name)

	isNew, err := s.UnlockAchievement(ctx, id, "reach_level_1", at)
	require.NoError(t, err)
	assert.True(t, isNew)
	isNew, err = s.UnlockAchievement(ctx, id, "reach_level_1", at)
	require.NoError(t, err)
	assert.False(t, isNew)
}

func TestTransitionStore_ClaimInputInsideRolledBackTx(t *testing.T) {
	db := openTestDB(t)
	ctx := testContext(t)
	boom := errors.New("boom")

	err := db.WithTx(ctx, func(q Querier) error {
		claimed, err := NewTransitionStore(q).ClaimInput(ctx, "in-1", 1, "initLevel")
		require.NoError(t, err)
		assert.True(t, claimed)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	claimed, err := NewTransitionStore(db.Pool()).ClaimInput(ctx, "in-1", 2, "initLevel")
	require.NoError(t, err)
	assert.True(t, claimed, "rollback discards the claim")

	claimed, err = NewTransitionStore(db.Pool()).ClaimInput(ctx, "in-1", 3, "initLevel")
	require.NoError(t, err)
	assert.False(t, claimed)
}

func seedScore(t *testing.T, ctx context.Context, s *TransitionStore, address string, scores ...int64) int64 {
	t.Helper()
	id, err := s.CreateAccount(ctx, address, types.AddressTypeEVM, time.Now())
	require.NoError(t, err)
	for _, score := range scores {
		require.NoError(t, s.InsertScoreEntry(ctx, id, score, time.Now().Add(-time.Hour)))
	}
	return id
}

func TestLeaderboardRepository(t *testing.T) {
	db := openTestDB(t)
	ctx := testContext(t)
	s := NewTransitionStore(db.Pool())

	alice := seedScore(t, ctx, s, "0xalice", 50, 120)
	bob := seedScore(t, ctx, s, "0xbob", 80)
	carol := seedScore(t, ctx, s, "0xcarol")
	require.NoError(t, s.UpsertDelegation(ctx, bob, "0xbobpublic", time.Now()))
	require.NoError(t, s.SetAccountName(ctx, alice, "alice"))

	window := models.TimeWindow{Start: time.Now().AddDate(-1, 0, 0), End: time.Now()}
	repo := NewLeaderboardRepository(db.Pool())

	total, err := repo.CountPlayers(ctx, window)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	entries, err := repo.Entries(ctx, window, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(1), entries[0].Rank)
	assert.Equal(t, "0xalice", entries[0].Address)
	assert.Equal(t, int64(120), entries[0].Score)
	assert.Equal(t, "alice", *entries[0].DisplayName)
	assert.Equal(t, "0xbobpublic", entries[1].Address)
	assert.Equal(t, strconv.FormatInt(bob, 10), entries[1].PlayerID)

	stats, err := repo.UserStats(ctx, bob, window)
	require.NoError(t, err)
	require.NotNil(t, stats.Rank)
	assert.Equal(t, int64(2), *stats.Rank)
	assert.Equal(t, int64(80), stats.Score)

	stats, err = repo.UserStats(ctx, carol, window)
	require.NoError(t, err)
	assert.Nil(t, stats.Rank)
	assert.Zero(t, stats.Score)

	accounts := NewAccountRepository(db.Pool())
	identity, err := accounts.ResolveIdentity(ctx, "0xbob")
	require.NoError(t, err)
	require.NotNil(t, identity)
	assert.Equal(t, bob, identity.AccountID)
	assert.Equal(t, "0xbobpublic", identity.ResolvedAddress)

	identity, err = accounts.ResolveIdentity(ctx, "0xnobody")
	require.NoError(t, err)
	assert.Nil(t, identity)
}

func TestLeaderboardRepository_TiedScoresRankLikeEntries(t *testing.T) {
	db := openTestDB(t)
	ctx := testContext(t)
	s := NewTransitionStore(db.Pool())

	first := seedScore(t, ctx, s, "0xa", 100)
	second := seedScore(t, ctx, s, "0xb", 100)
	third := seedScore(t, ctx, s, "0xc", 40)

	window := models.TimeWindow{Start: time.Now().AddDate(-1, 0, 0), End: time.Now()}
	repo := NewLeaderboardRepository(db.Pool())

	entries, err := repo.Entries(ctx, window, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	for i, id := range []int64{first, second, third} {
		stats, err := repo.UserStats(ctx, id, window)
		require.NoError(t, err)
		require.NotNil(t, stats.Rank)
		assert.Equal(t, entries[i].Rank, *stats.Rank, "account %d", id)
		assert.Equal(t, strconv.FormatInt(id, 10), entries[i].PlayerID)
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", fmt.Errorf("query: %w", context.Canceled), true},
		{"savepoint", fmt.Errorf("%w: release", ErrSavepoint), true},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, true},
		{"nul byte", fmt.Errorf("failed to set name: %w", &pgconn.PgError{Code: "22021"}), false},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"plain error", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestWithSavepoint(t *testing.T) {
	db := openTestDB(t)
	ctx := testContext(t)

	err := WithSavepoint(ctx, db.Pool(), func(Querier) error { return nil })
	assert.ErrorIs(t, err, ErrSavepoint, "the pool is not a transaction")

	err = db.WithTx(ctx, func(q Querier) error {
		s := NewTransitionStore(q)
		claimed, err := s.ClaimInput(ctx, "kept", 1, "initLevel")
		require.NoError(t, err)
		require.True(t, claimed)

		err = WithSavepoint(ctx, q, func(sq Querier) error {
			_, err := NewTransitionStore(sq).ClaimInput(ctx, "discarded", 1, "setName")
			require.NoError(t, err)
			_, err = sq.Exec(ctx, `SELECT 'a' || chr(0)`)
			require.Error(t, err)
			return err
		})
		require.Error(t, err)
		assert.False(t, IsTransient(err))

		// the block transaction is still usable after the savepoint rolled back
		claimed, err = s.ClaimInput(ctx, "after", 1, "initLevel")
		require.NoError(t, err)
		assert.True(t, claimed)

		return WithSavepoint(ctx, q, func(sq Querier) error {
			_, err := NewTransitionStore(sq).ClaimInput(ctx, "released", 1, "initLevel")
			return err
		})
	})
	require.NoError(t, err)

	s := NewTransitionStore(db.Pool())
	for id, wantFresh := range map[string]bool{"kept": false, "after": false, "released": false, "discarded": true} {
		claimed, err := s.ClaimInput(ctx, id, 2, "initLevel")
		require.NoError(t, err)
		assert.Equal(t, wantFresh, claimed, id)
	}
}

func TestGameRepository_Seeds(t *testing.T) {
	db := openTestDB(t)
	ctx := testContext(t)
	repo := NewGameRepository(db.Pool())

	info, err := repo.GetGameInfo(ctx)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "DESC", info.SortOrder)

	achievements, err := repo.ListAchievements(ctx)
	require.NoError(t, err)
	require.Len(t, achievements, 18)
	assert.Equal(t, "reach_level_1", achievements[0].ID)
	assert.Equal(t, "reach_level_50", achievements[17].ID)
}

func TestBlockRepository(t *testing.T) {
	db := openTestDB(t)
	ctx := testContext(t)
	repo := NewBlockRepository(db.Pool())

	latest, err := repo.LatestBlock(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	block := &models.Block{Height: 1, Seed: "s1", InputCount: 1, ProducedAt: time.Now().UTC()}
	require.NoError(t, repo.InsertBlock(ctx, block))
	require.NoError(t, repo.InsertRollupInputs(ctx, []*models.RollupInput{{
		QueuedInput: models.QueuedInput{ID: "in-1", Address: "0xabc", Input: `["initLevel"]`},
		BlockHeight: 1,
	}}))

	latest, err = repo.LatestBlock(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "s1", latest.Seed)

	_, found, err := repo.ProcessedHeight(ctx, "in-1")
	require.NoError(t, err)
	assert.False(t, found)
}
