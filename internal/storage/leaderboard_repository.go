package storage

import (
	"context"
	"fmt"

	"github.com/safe-solver/internal/models"
)

// LeaderboardRepository ranks accounts by their best score inside a time window
type LeaderboardRepository struct {
	q Querier
}

// NewLeaderboardRepository creates a new leaderboard repository
func NewLeaderboardRepository(q Querier) *LeaderboardRepository {
	return &LeaderboardRepository{q: q}
}

const bestScoresCTE = `
	best_scores AS (
		SELECT account_id, MAX(score) AS score
		FROM score_entries
		WHERE achieved_at >= $1 AND achieved_at <= $2
		GROUP BY account_id
	)`

// CountPlayers returns how many accounts have a score inside the window
func (r *LeaderboardRepository) CountPlayers(ctx context.Context, window models.TimeWindow) (int64, error) {
	var total int64
	err := r.q.QueryRow(ctx, `WITH`+bestScoresCTE+`
		SELECT COUNT(*) FROM best_scores
	`, window.Start, window.End).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to count players: %w", err)
	}
	return total, nil
}

// Entries returns one page of the leaderboard. Ties are ordered by account id.
func (r *LeaderboardRepository) Entries(ctx context.Context, window models.TimeWindow, limit, offset int) ([]*models.LeaderboardEntry, error) {
	rows, err := r.q.Query(ctx, `WITH`+bestScoresCTE+`,
	ranked AS (
		SELECT account_id, score, ROW_NUMBER() OVER (ORDER BY score DESC, account_id ASC) AS rank
		FROM best_scores
	)
	SELECT r.rank,
	       COALESCE(d.delegate_to_address, a.primary_address, '') AS address,
	       COALESCE(u.player_id, r.account_id::text) AS player_id,
	       u.name,
	       r.score,
	       (SELECT COUNT(*) FROM achievement_completions ac WHERE ac.account_id = r.account_id) AS achievements_unlocked
	FROM ranked r
	JOIN accounts a ON a.id = r.account_id
	LEFT JOIN delegations d ON d.account_id = r.account_id
	LEFT JOIN user_game_state u ON u.account_id = r.account_id
	ORDER BY r.rank
	LIMIT $3 OFFSET $4
	`, window.Start, window.End, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	entries := []*models.LeaderboardEntry{}
	for rows.Next() {
		var e models.LeaderboardEntry
		if err := rows.Scan(&e.Rank, &e.Address, &e.PlayerID, &e.DisplayName, &e.Score, &e.AchievementsUnlocked); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard entry: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating leaderboard: %w", err)
	}
	return entries, nil
}

// UserStats returns the account's best in-window score, its rank and the number
// of finished games. Rank matches the position in Entries, ties included, and is
// nil unless the best score is positive.
func (r *LeaderboardRepository) UserStats(ctx context.Context, accountID int64, window models.TimeWindow) (*models.UserStats, error) {
	var (
		best          *int64
		better        int64
		matchesPlayed int64
	)
	err := r.q.QueryRow(ctx, `WITH`+bestScoresCTE+`,
	mine AS (
		SELECT score FROM best_scores WHERE account_id = $3
	)
	SELECT (SELECT score FROM mine),
	       (SELECT COUNT(*) FROM best_scores b, mine m
	         WHERE b.score > m.score OR (b.score = m.score AND b.account_id < $3)),
	       COALESCE((SELECT COALESCE(games_won, 0) + COALESCE(games_lost, 0)
	                 FROM user_game_state WHERE account_id = $3), 0)
	`, window.Start, window.End, accountID).Scan(&best, &better, &matchesPlayed)
	if err != nil {
		return nil, fmt.Errorf("failed to get user stats: %w", err)
	}

	stats := &models.UserStats{MatchesPlayed: matchesPlayed}
	if best != nil && *best > 0 {
		rank := better + 1
		stats.Rank = &rank
		stats.Score = *best
	}
	return stats, nil
}
