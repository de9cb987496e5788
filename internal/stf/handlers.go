package stf

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/safe-solver/internal/grammar"
	"github.com/safe-solver/internal/logging"
)

const (
	minNameLength = 3
	maxNameLength = 24
)

// Handler applies one action. p is always the payload type registered for the action.
type Handler func(ctx context.Context, s Store, in *Input, p grammar.Payload) (Outcome, error)

// resolveSigner looks up the signer's account and logs the miss
func resolveSigner(ctx context.Context, s Store, in *Input) (int64, bool, error) {
	id, found, err := s.ResolveAccount(ctx, in.SignerAddress)
	if err != nil {
		return 0, false, fmt.Errorf("failed to resolve account for %s: %w", in.SignerAddress, err)
	}
	if !found {
		logging.FromContext(ctx).Info("signer has no linked account, skipping")
	}
	return id, found, nil
}

// SetNameHandler stores a display name of 3 to 24 characters
func SetNameHandler(ctx context.Context, s Store, in *Input, p grammar.Payload) (Outcome, error) {
	name := p.(grammar.SetName).Name
	if n := utf8.RuneCountInString(name); n < minNameLength || n > maxNameLength {
		logging.FromContext(ctx).WithField("length", n).Info("name length out of range")
		return skipped(ReasonInvalidName), nil
	}

	accountID, ok, err := resolveSigner(ctx, s, in)
	if err != nil || !ok {
		return skipped(ReasonUnknownAccount), err
	}

	if err := s.SetAccountName(ctx, accountID, name); err != nil {
		return Outcome{}, fmt.Errorf("failed to set name: %w", err)
	}
	return applied(accountID, map[string]interface{}{"name": name}), nil
}

// DelegateHandler points the account's public identity at another address
func DelegateHandler(ctx context.Context, s Store, in *Input, p grammar.Payload) (Outcome, error) {
	target := strings.TrimSpace(p.(grammar.Delegate).DelegateToAddress)
	if target == "" {
		logging.FromContext(ctx).Info("empty delegate address")
		return skipped(ReasonEmptyDelegate), nil
	}

	accountID, ok, err := resolveSigner(ctx, s, in)
	if err != nil || !ok {
		return skipped(ReasonUnknownAccount), err
	}

	if err := s.UpsertDelegation(ctx, accountID, target, in.Now()); err != nil {
		return Outcome{}, fmt.Errorf("failed to upsert delegation: %w", err)
	}
	return applied(accountID, map[string]interface{}{"delegateTo": target}), nil
}

// InitLevelHandler starts a new game. Draws: hash part A, hash part B, safe count.
func InitLevelHandler(ctx context.Context, s Store, in *Input, _ grammar.Payload) (Outcome, error) {
	logger := logging.FromContext(ctx)

	accountID, ok, err := resolveSigner(ctx, s, in)
	if err != nil || !ok {
		return skipped(ReasonUnknownAccount), err
	}

	state, err := s.GetGameState(ctx, accountID)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to read game state: %w", err)
	}
	if state != nil && state.IsOngoing {
		logger.WithField("round", state.Round).Info("game already in progress")
		return skipped(ReasonGameInProgress), nil
	}

	if err := s.EnsureBalance(ctx, accountID); err != nil {
		return Outcome{}, fmt.Errorf("failed to ensure balance: %w", err)
	}

	partA := in.Random.Next(0, math.MaxInt32)
	partB := in.Random.Next(0, math.MaxInt32)
	randomHash := strconv.FormatInt(int64(partA), 16) + strconv.FormatInt(int64(partB), 16)
	safeCount := in.Random.Next(MinSafeCount, MaxSafeCount)

	started, err := s.StartGame(ctx, accountID, safeCount, randomHash)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to start game: %w", err)
	}
	if !started {
		return skipped(ReasonStaleState), nil
	}

	logger.WithField("safeCount", safeCount).Info("game started")
	return applied(accountID, map[string]interface{}{
		"safeCount":  safeCount,
		"randomHash": randomHash,
	}), nil
}

// CheckSafeHandler opens one safe. Draws: the bad safe index, then the next
// round's safe count on a good pick.
func CheckSafeHandler(ctx context.Context, s Store, in *Input, p grammar.Payload) (Outcome, error) {
	logger := logging.FromContext(ctx)

	safeIndex := p.(grammar.CheckSafe).SafeIndex
	if safeIndex < 0 || safeIndex >= MaxSafeIndex {
		logger.WithField("safeIndex", safeIndex).Info("safe index out of range")
		return skipped(ReasonInvalidSafe), nil
	}

	accountID, ok, err := resolveSigner(ctx, s, in)
	if err != nil || !ok {
		return skipped(ReasonUnknownAccount), err
	}

	state, err := s.GetGameState(ctx, accountID)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to read game state: %w", err)
	}
	if state == nil || !state.IsOngoing {
		logger.Info("no ongoing game")
		return skipped(ReasonNoActiveGame), nil
	}

	profile, err := s.GetProfile(ctx, accountID)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to read profile: %w", err)
	}

	badSafeIndex := in.Random.Next(0, state.SafeCount-1)
	isBad := safeIndex == badSafeIndex
	protected := profile == nil || profile.Balance == nil || *profile.Balance < NewAccountBalanceFloor
	if protected {
		isBad = false
	}

	details := map[string]interface{}{
		"safeIndex":    safeIndex,
		"badSafeIndex": badSafeIndex,
		"round":        state.Round,
		"protected":    protected,
		"isBad":        isBad,
	}

	if isBad {
		ok, err := s.RecordLoss(ctx, accountID, state.Round)
		if err != nil {
			return Outcome{}, fmt.Errorf("failed to record loss: %w", err)
		}
		if !ok {
			return skipped(ReasonStaleState), nil
		}
		logger.WithFields(details).Info("bad safe, game lost")
		return applied(accountID, details), nil
	}

	prize := Prize(state.SafeCount, state.Round)
	nextSafeCount := in.Random.Next(MinSafeCount, MaxSafeCount)

	ok, err = s.AdvanceRound(ctx, accountID, state.Round, prize, nextSafeCount)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to advance round: %w", err)
	}
	if !ok {
		return skipped(ReasonStaleState), nil
	}

	details["prize"] = prize
	details["nextSafeCount"] = nextSafeCount
	logger.WithFields(details).Info("good safe, round advanced")
	return applied(accountID, details), nil
}

// SubmitScoreHandler cashes out the ongoing game of the signer's own account
func SubmitScoreHandler(ctx context.Context, s Store, in *Input, p grammar.Payload) (Outcome, error) {
	logger := logging.FromContext(ctx)
	claimed := p.(grammar.SubmitScore).AccountID

	accountID, ok, err := resolveSigner(ctx, s, in)
	if err != nil || !ok {
		return skipped(ReasonUnknownAccount), err
	}
	if claimed != accountID {
		logger.WithFields(map[string]interface{}{
			"claimedAccount": claimed,
			"signerAccount":  accountID,
		}).Warn("submitScore for another account")
		return skipped(ReasonAccountMismatch), nil
	}

	state, err := s.GetGameState(ctx, accountID)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to read game state: %w", err)
	}
	if state == nil || !state.IsOngoing {
		logger.Info("no ongoing game to submit")
		return skipped(ReasonNoActiveGame), nil
	}

	closed, err := s.RecordWin(ctx, accountID, state.Round)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to record win: %w", err)
	}
	if !closed {
		return skipped(ReasonStaleState), nil
	}

	now := in.Now()
	unlocked := []string{}
	for _, id := range EarnedAchievements(state.Round) {
		isNew, err := s.UnlockAchievement(ctx, accountID, id, now)
		if err != nil {
			return Outcome{}, fmt.Errorf("failed to unlock %s: %w", id, err)
		}
		if isNew {
			unlocked = append(unlocked, id)
		}
	}

	if state.CurrentScore > 0 {
		if err := s.CreditBalance(ctx, accountID, state.CurrentScore, now); err != nil {
			return Outcome{}, fmt.Errorf("failed to credit balance: %w", err)
		}
		if err := s.InsertScoreEntry(ctx, accountID, state.CurrentScore, now); err != nil {
			return Outcome{}, fmt.Errorf("failed to insert score entry: %w", err)
		}
	}

	details := map[string]interface{}{
		"score":        state.CurrentScore,
		"level":        state.Round,
		"achievements": unlocked,
	}
	logger.WithFields(details).Info("score submitted")
	return applied(accountID, details), nil
}

// CreateAccountHandler links an unlinked signer address to a new account
func CreateAccountHandler(ctx context.Context, s Store, in *Input, _ grammar.Payload) (Outcome, error) {
	if _, found, err := s.ResolveAccount(ctx, in.SignerAddress); err != nil {
		return Outcome{}, fmt.Errorf("failed to resolve account for %s: %w", in.SignerAddress, err)
	} else if found {
		return skipped(ReasonAlreadyLinked), nil
	}

	accountID, err := s.CreateAccount(ctx, in.SignerAddress, in.SignerAddressType, in.Now())
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to create account: %w", err)
	}
	logging.FromContext(ctx).WithField("accountId", accountID).Info("account created")
	return applied(accountID, map[string]interface{}{"addressType": in.SignerAddressType.String()}), nil
}
