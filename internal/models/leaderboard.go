package models

import "time"

// TimeWindow bounds the score entries considered by leaderboard queries
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// LeaderboardEntry is one ranked row of the leaderboard
type LeaderboardEntry struct {
	Rank                 int64   `json:"rank"`
	Address              string  `json:"address"`
	PlayerID             string  `json:"player_id"`
	DisplayName          *string `json:"display_name"`
	Score                int64   `json:"score"`
	AchievementsUnlocked int64   `json:"achievements_unlocked"`
}

// UserStats is the in-window summary of one account
type UserStats struct {
	Rank          *int64 `json:"rank"`
	Score         int64  `json:"score"`
	MatchesPlayed int64  `json:"matches_played"`
}

// Identity describes how a queried address maps onto a public identity
type Identity struct {
	QueriedAddress  string  `json:"queried_address"`
	ResolvedAddress string  `json:"resolved_address"`
	IsDelegate      bool    `json:"is_delegate"`
	DisplayName     *string `json:"display_name"`
}

// ResolvedIdentity is the account behind an address plus its public address
type ResolvedIdentity struct {
	AccountID       int64
	ResolvedAddress string
	DisplayName     *string
}
