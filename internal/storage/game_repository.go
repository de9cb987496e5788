package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/safe-solver/internal/models"
)

// GameRepository reads game state, profiles, achievements and game metadata
type GameRepository struct {
	q Querier
}

// NewGameRepository creates a new game repository
func NewGameRepository(q Querier) *GameRepository {
	return &GameRepository{q: q}
}

// GetGameState returns nil when the account never started a game
func (r *GameRepository) GetGameState(ctx context.Context, accountID int64) (*models.GameState, error) {
	return NewTransitionStore(r.q).GetGameState(ctx, accountID)
}

// GetProfile returns nil when the account has no profile row
func (r *GameRepository) GetProfile(ctx context.Context, accountID int64) (*models.Profile, error) {
	return NewTransitionStore(r.q).GetProfile(ctx, accountID)
}

// GetGameInfo returns the seeded metadata row, or nil if it was never seeded
func (r *GameRepository) GetGameInfo(ctx context.Context) (*models.GameInfo, error) {
	var info models.GameInfo
	err := r.q.QueryRow(ctx, `
		SELECT name, description, score_unit, sort_order
		FROM game_info
		WHERE id = 1
	`).Scan(&info.Name, &info.Description, &info.ScoreUnit, &info.SortOrder)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get game info: %w", err)
	}
	return &info, nil
}

// ListAchievements returns the catalogue in display order with completion counts
func (r *GameRepository) ListAchievements(ctx context.Context) ([]*models.AchievementWithCount, error) {
	rows, err := r.q.Query(ctx, `
		SELECT a.id, a.name, a.description, a.icon_url, COUNT(ac.account_id) AS completed_count
		FROM achievements a
		LEFT JOIN achievement_completions ac ON a.id = ac.achievement_id
		GROUP BY a.order_id, a.id, a.name, a.description, a.icon_url
		ORDER BY a.order_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list achievements: %w", err)
	}
	defer rows.Close()

	out := []*models.AchievementWithCount{}
	for rows.Next() {
		var a models.AchievementWithCount
		if err := rows.Scan(&a.ID, &a.Name, &a.Description, &a.IconURL, &a.CompletedCount); err != nil {
			return nil, fmt.Errorf("failed to scan achievement: %w", err)
		}
		out = append(out, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating achievements: %w", err)
	}
	return out, nil
}

// ListCompletions returns the achievements an account unlocked, oldest first
func (r *GameRepository) ListCompletions(ctx context.Context, accountID int64) ([]*models.AchievementCompletion, error) {
	rows, err := r.q.Query(ctx, `
		SELECT ac.account_id, ac.achievement_id, a.name, ac.unlocked_at
		FROM achievement_completions ac
		JOIN achievements a ON a.id = ac.achievement_id
		WHERE ac.account_id = $1
		ORDER BY ac.unlocked_at, a.order_id
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list completions: %w", err)
	}
	defer rows.Close()

	out := []*models.AchievementCompletion{}
	for rows.Next() {
		var c models.AchievementCompletion
		if err := rows.Scan(&c.AccountID, &c.AchievementID, &c.Name, &c.UnlockedAt); err != nil {
			return nil, fmt.Errorf("failed to scan completion: %w", err)
		}
		c.UnlockedAt = c.UnlockedAt.UTC()
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating completions: %w", err)
	}
	return out, nil
}
