// Package stf is the Safe Solver rules engine: the state transition applied to each
// player input, the prize and achievement tables it uses, and the height-versioned
// router that picks which rule set applies to a block.
//
// Handlers never fail on bad player behaviour. Unknown signers, malformed arguments
// and stale game state produce an Outcome with Applied=false and a Reason. Only
// storage errors are returned, and the caller is expected to roll back and retry.
package stf

import (
	"context"
	"strconv"
	"time"

	"github.com/safe-solver/internal/models"
	"github.com/safe-solver/internal/rng"
	"github.com/safe-solver/internal/types"
)

// Input is one decoded player input as seen by the rules engine
type Input struct {
	ID                string
	BlockHeight       int64
	Timestamp         time.Time
	SignerAddress     string
	SignerAddressType types.AddressType
	Raw               string
	Random            rng.Generator
}

// Now is the time attributed to writes made by this input
func (in *Input) Now() time.Time {
	if in.Timestamp.IsZero() {
		return time.Now().UTC()
	}
	return in.Timestamp.UTC()
}

// Reason explains why an input was not applied
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonDuplicate       Reason = "duplicate_input"
	ReasonMalformed       Reason = "invalid_input"
	ReasonUnknownAction   Reason = "unknown_action"
	ReasonNoRules         Reason = "no_rules_for_height"
	ReasonUnknownAccount  Reason = "unknown_account"
	ReasonInvalidName     Reason = "invalid_name"
	ReasonEmptyDelegate   Reason = "empty_delegate"
	ReasonInvalidSafe     Reason = "invalid_safe_index"
	ReasonGameInProgress  Reason = "game_in_progress"
	ReasonNoActiveGame    Reason = "no_active_game"
	ReasonAccountMismatch Reason = "account_mismatch"
	ReasonStaleState      Reason = "stale_state"
	ReasonAlreadyLinked   Reason = "address_already_linked"
	// ReasonInternalError marks an input whose writes the database rejected
	ReasonInternalError   Reason = "internal_error"
)

// Outcome is the result of applying one input
type Outcome struct {
	InputID   string
	Action    types.Action
	Applied   bool
	Reason    Reason
	AccountID *int64
	Details   map[string]interface{}
}

func skipped(reason Reason) Outcome {
	return Outcome{Reason: reason}
}

func applied(accountID int64, details map[string]interface{}) Outcome {
	return Outcome{Applied: true, AccountID: &accountID, Details: details}
}

// Store is everything a transition may read or write. Implementations used by the
// node run every call of a block inside one database transaction.
type Store interface {
	// ClaimInput records inputID as processed. It reports false if it already was.
	ClaimInput(ctx context.Context, inputID string, blockHeight int64, action string) (bool, error)

	// ResolveAccount maps an address to its linked account
	ResolveAccount(ctx context.Context, address string) (accountID int64, found bool, err error)
	// CreateAccount creates an account whose primary address is address and links it
	CreateAccount(ctx context.Context, address string, addressType types.AddressType, at time.Time) (int64, error)

	SetAccountName(ctx context.Context, accountID int64, name string) error
	UpsertDelegation(ctx context.Context, accountID int64, delegateTo string, at time.Time) error

	// GetGameState returns nil when the account never started a game
	GetGameState(ctx context.Context, accountID int64) (*models.GameState, error)
	// GetProfile returns nil when the account has no profile row
	GetProfile(ctx context.Context, accountID int64) (*models.Profile, error)
	EnsureBalance(ctx context.Context, accountID int64) error

	// StartGame resets the game to round 1 unless a game is ongoing
	StartGame(ctx context.Context, accountID int64, safeCount int, randomHash string) (bool, error)
	// AdvanceRound adds prize and moves to the next round if the game is still at expectedRound
	AdvanceRound(ctx context.Context, accountID int64, expectedRound int, prize int64, nextSafeCount int) (bool, error)
	// RecordLoss ends the game at expectedRound as lost
	RecordLoss(ctx context.Context, accountID int64, expectedRound int) (bool, error)
	// RecordWin ends the game at expectedRound as cashed out
	RecordWin(ctx context.Context, accountID int64, expectedRound int) (bool, error)

	UnlockAchievement(ctx context.Context, accountID int64, achievementID string, at time.Time) (bool, error)
	CreditBalance(ctx context.Context, accountID int64, amount int64, at time.Time) error
	InsertScoreEntry(ctx context.Context, accountID int64, score int64, at time.Time) error
}

// PlayerID is the synthetic player id stored for an account: its decimal id
func PlayerID(accountID int64) string {
	return strconv.FormatInt(accountID, 10)
}
