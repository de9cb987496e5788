package models

import "time"

// GameState is the per-account game record. It only exists once a game has been started.
type GameState struct {
	AccountID    int64   `json:"-" db:"account_id"`
	Round        int     `json:"round" db:"round"`
	SafeCount    int     `json:"safe_count" db:"safe_count"`
	IsOngoing    bool    `json:"is_ongoing" db:"is_ongoing"`
	RandomHash   *string `json:"random_hash" db:"random_hash"`
	CurrentScore int64   `json:"current_score" db:"current_score"`
	GamesWon     int64   `json:"-" db:"games_won"`
	GamesLost    int64   `json:"-" db:"games_lost"`
}

// DefaultGameState is what the API reports for an address with no game yet
func DefaultGameState() *GameState {
	return &GameState{
		Round:     1,
		SafeCount: 3,
	}
}

// Profile holds the name and lifetime balance of an account.
// Balance is nil when the row exists but no balance was ever written.
type Profile struct {
	AccountID   int64      `json:"account_id" db:"account_id"`
	PlayerID    *string    `json:"player_id" db:"player_id"`
	Name        *string    `json:"name" db:"name"`
	Balance     *int64     `json:"balance" db:"balance"`
	LastLoginAt *time.Time `json:"last_login_at" db:"last_login_at"`
}

// Achievement is an entry of the seeded achievements catalogue
type Achievement struct {
	ID          string  `json:"id" db:"id"`
	Name        string  `json:"name" db:"name"`
	Description string  `json:"description" db:"description"`
	IconURL     *string `json:"icon_url,omitempty" db:"icon_url"`
}

// AchievementWithCount is a catalogue entry plus the number of accounts holding it
type AchievementWithCount struct {
	Achievement
	CompletedCount int64 `json:"completed_count"`
}

// AchievementCompletion records that an account unlocked an achievement
type AchievementCompletion struct {
	AccountID     int64     `json:"-" db:"account_id"`
	AchievementID string    `json:"id" db:"achievement_id"`
	Name          string    `json:"name" db:"name"`
	UnlockedAt    time.Time `json:"unlocked_at" db:"unlocked_at"`
}

// ScoreEntry is one cashed-out game
type ScoreEntry struct {
	ID         int64     `json:"id" db:"id"`
	AccountID  int64     `json:"account_id" db:"account_id"`
	Score      int64     `json:"score" db:"score"`
	AchievedAt time.Time `json:"achieved_at" db:"achieved_at"`
}

// GameInfo is the seeded game metadata row
type GameInfo struct {
	Name        string `json:"name" db:"name"`
	Description string `json:"description" db:"description"`
	ScoreUnit   string `json:"score_unit" db:"score_unit"`
	SortOrder   string `json:"sort_order" db:"sort_order"`
}
