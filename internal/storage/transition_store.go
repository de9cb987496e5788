package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/safe-solver/internal/models"
	"github.com/safe-solver/internal/stf"
	"github.com/safe-solver/internal/types"
)

// TransitionStore is the Postgres implementation of stf.Store. The block producer
// builds one per block over the block's transaction.
type TransitionStore struct {
	q Querier
}

var _ stf.Store = (*TransitionStore)(nil)

// NewTransitionStore creates a store bound to q
func NewTransitionStore(q Querier) *TransitionStore {
	return &TransitionStore{q: q}
}

// ClaimInput inserts the input into the processed-input ledger
func (s *TransitionStore) ClaimInput(ctx context.Context, inputID string, blockHeight int64, action string) (bool, error) {
	tag, err := s.q.Exec(ctx, `
		INSERT INTO processed_inputs (input_id, block_height, action)
		VALUES ($1, $2, $3)
		ON CONFLICT (input_id) DO NOTHING
	`, inputID, blockHeight, action)
	if err != nil {
		return false, fmt.Errorf("failed to claim input: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ResolveAccount maps an address to its linked account
func (s *TransitionStore) ResolveAccount(ctx context.Context, address string) (int64, bool, error) {
	var accountID int64
	err := s.q.QueryRow(ctx, `
		SELECT account_id FROM addresses
		WHERE address = $1 AND account_id IS NOT NULL
	`, address).Scan(&accountID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to resolve address: %w", err)
	}
	return accountID, true, nil
}

// CreateAccount inserts an account and links address to it
func (s *TransitionStore) CreateAccount(ctx context.Context, address string, addressType types.AddressType, at time.Time) (int64, error) {
	var accountID int64
	err := s.q.QueryRow(ctx, `
		INSERT INTO accounts (primary_address, created_at)
		VALUES ($1, $2)
		RETURNING id
	`, address, at).Scan(&accountID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert account: %w", err)
	}

	_, err = s.q.Exec(ctx, `
		INSERT INTO addresses (address, address_type, account_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (address) DO UPDATE
		SET account_id = EXCLUDED.account_id,
		    address_type = EXCLUDED.address_type
	`, address, int(addressType), accountID)
	if err != nil {
		return 0, fmt.Errorf("failed to link address: %w", err)
	}
	return accountID, nil
}

// SetAccountName upserts the display name
func (s *TransitionStore) SetAccountName(ctx context.Context, accountID int64, name string) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO user_game_state (account_id, name, player_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (account_id) DO UPDATE
		SET name = EXCLUDED.name
	`, accountID, name, stf.PlayerID(accountID))
	if err != nil {
		return fmt.Errorf("failed to set account name: %w", err)
	}
	return nil
}

// UpsertDelegation overwrites the account's delegate
func (s *TransitionStore) UpsertDelegation(ctx context.Context, accountID int64, delegateTo string, at time.Time) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO delegations (account_id, delegate_to_address, delegated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (account_id) DO UPDATE
		SET delegate_to_address = EXCLUDED.delegate_to_address,
		    delegated_at = EXCLUDED.delegated_at
	`, accountID, delegateTo, at)
	if err != nil {
		return fmt.Errorf("failed to upsert delegation: %w", err)
	}
	return nil
}

// GetGameState returns nil until the account's first initLevel
func (s *TransitionStore) GetGameState(ctx context.Context, accountID int64) (*models.GameState, error) {
	return scanGameState(s.q.QueryRow(ctx, `
		SELECT account_id, round, safe_count, is_ongoing, random_hash, current_score, games_won, games_lost
		FROM user_game_state
		WHERE account_id = $1 AND round IS NOT NULL
	`, accountID))
}

func scanGameState(row pgx.Row) (*models.GameState, error) {
	var g models.GameState
	err := row.Scan(
		&g.AccountID,
		&g.Round,
		&g.SafeCount,
		&g.IsOngoing,
		&g.RandomHash,
		&g.CurrentScore,
		&g.GamesWon,
		&g.GamesLost,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read game state: %w", err)
	}
	return &g, nil
}

// GetProfile returns nil when the account has no user_game_state row
func (s *TransitionStore) GetProfile(ctx context.Context, accountID int64) (*models.Profile, error) {
	return scanProfile(s.q.QueryRow(ctx, `
		SELECT account_id, player_id, name, balance, last_login_at
		FROM user_game_state
		WHERE account_id = $1
	`, accountID))
}

func scanProfile(row pgx.Row) (*models.Profile, error) {
	var p models.Profile
	err := row.Scan(&p.AccountID, &p.PlayerID, &p.Name, &p.Balance, &p.LastLoginAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}
	return &p, nil
}

// EnsureBalance creates the balance row at zero if it is missing
func (s *TransitionStore) EnsureBalance(ctx context.Context, accountID int64) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO user_game_state (account_id, balance, player_id)
		VALUES ($1, 0, $2)
		ON CONFLICT (account_id) DO UPDATE
		SET balance = COALESCE(user_game_state.balance, 0)
	`, accountID, stf.PlayerID(accountID))
	if err != nil {
		return fmt.Errorf("failed to ensure balance: %w", err)
	}
	return nil
}

// StartGame resets the game to round 1 unless one is ongoing
func (s *TransitionStore) StartGame(ctx context.Context, accountID int64, safeCount int, randomHash string) (bool, error) {
	tag, err := s.q.Exec(ctx, `
		INSERT INTO user_game_state (account_id, player_id, round, safe_count, random_hash, is_ongoing, current_score)
		VALUES ($1, $2, 1, $3, $4, TRUE, 0)
		ON CONFLICT (account_id) DO UPDATE
		SET round = 1,
		    safe_count = EXCLUDED.safe_count,
		    random_hash = EXCLUDED.random_hash,
		    is_ongoing = TRUE,
		    current_score = 0
		WHERE NOT user_game_state.is_ongoing
	`, accountID, stf.PlayerID(accountID), safeCount, randomHash)
	if err != nil {
		return false, fmt.Errorf("failed to start game: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// AdvanceRound credits prize and moves to the next round in one write
func (s *TransitionStore) AdvanceRound(ctx context.Context, accountID int64, expectedRound int, prize int64, nextSafeCount int) (bool, error) {
	tag, err := s.q.Exec(ctx, `
		UPDATE user_game_state
		SET current_score = current_score + $3,
		    safe_count = $4,
		    round = round + 1
		WHERE account_id = $1 AND is_ongoing AND round = $2
	`, accountID, expectedRound, prize, nextSafeCount)
	if err != nil {
		return false, fmt.Errorf("failed to advance round: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// RecordLoss ends the game as lost
func (s *TransitionStore) RecordLoss(ctx context.Context, accountID int64, expectedRound int) (bool, error) {
	tag, err := s.q.Exec(ctx, `
		UPDATE user_game_state
		SET games_lost = games_lost + 1, is_ongoing = FALSE
		WHERE account_id = $1 AND is_ongoing AND round = $2
	`, accountID, expectedRound)
	if err != nil {
		return false, fmt.Errorf("failed to record loss: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// RecordWin ends the game as cashed out
func (s *TransitionStore) RecordWin(ctx context.Context, accountID int64, expectedRound int) (bool, error) {
	tag, err := s.q.Exec(ctx, `
		UPDATE user_game_state
		SET games_won = games_won + 1, is_ongoing = FALSE
		WHERE account_id = $1 AND is_ongoing AND round = $2
	`, accountID, expectedRound)
	if err != nil {
		return false, fmt.Errorf("failed to record win: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// UnlockAchievement reports whether the completion is new
func (s *TransitionStore) UnlockAchievement(ctx context.Context, accountID int64, achievementID string, at time.Time) (bool, error) {
	tag, err := s.q.Exec(ctx, `
		INSERT INTO achievement_completions (account_id, achievement_id, unlocked_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (account_id, achievement_id) DO NOTHING
	`, accountID, achievementID, at)
	if err != nil {
		return false, fmt.Errorf("failed to unlock achievement: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// CreditBalance adds amount to the lifetime balance
func (s *TransitionStore) CreditBalance(ctx context.Context, accountID int64, amount int64, at time.Time) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO user_game_state (account_id, balance, last_login_at, player_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account_id) DO UPDATE
		SET balance = COALESCE(user_game_state.balance, 0) + EXCLUDED.balance,
		    last_login_at = EXCLUDED.last_login_at
	`, accountID, amount, at, stf.PlayerID(accountID))
	if err != nil {
		return fmt.Errorf("failed to credit balance: %w", err)
	}
	return nil
}

// InsertScoreEntry appends a cashed-out score
func (s *TransitionStore) InsertScoreEntry(ctx context.Context, accountID int64, score int64, at time.Time) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO score_entries (account_id, score, achieved_at)
		VALUES ($1, $2, $3)
	`, accountID, score, at)
	if err != nil {
		return fmt.Errorf("failed to insert score entry: %w", err)
	}
	return nil
}
