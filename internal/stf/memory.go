package stf

import (
	"context"
	"sync"
	"time"

	"github.com/safe-solver/internal/models"
	"github.com/safe-solver/internal/types"
)

// MemoryStore is an in-process Store used by the simulator and by tests
type MemoryStore struct {
	mu           sync.Mutex
	nextAccount  int64
	addresses    map[string]int64
	primary      map[int64]string
	processed    map[string]int64
	names        map[int64]string
	delegations  map[int64]models.Delegation
	games        map[int64]models.GameState
	profiles     map[int64]models.Profile
	achievements map[int64]map[string]time.Time
	scores       []models.ScoreEntry
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		addresses:    make(map[string]int64),
		primary:      make(map[int64]string),
		processed:    make(map[string]int64),
		names:        make(map[int64]string),
		delegations:  make(map[int64]models.Delegation),
		games:        make(map[int64]models.GameState),
		profiles:     make(map[int64]models.Profile),
		achievements: make(map[int64]map[string]time.Time),
	}
}

// AddAccount creates an account for address and returns its id
func (m *MemoryStore) AddAccount(address string) int64 {
	id, _ := m.CreateAccount(context.Background(), address, types.AddressTypeEVM, time.Now())
	return id
}

// LinkAddress links an extra address to an existing account
func (m *MemoryStore) LinkAddress(address string, accountID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addresses[address] = accountID
}

// SetBalance overwrites an account's balance
func (m *MemoryStore) SetBalance(accountID int64, balance int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.profiles[accountID]
	p.AccountID = accountID
	p.Balance = &balance
	m.profiles[accountID] = p
}

// SetGameState overwrites an account's game state
func (m *MemoryStore) SetGameState(state models.GameState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.games[state.AccountID] = state
}

// Delegation returns the current delegation of an account
func (m *MemoryStore) Delegation(accountID int64) (models.Delegation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.delegations[accountID]
	return d, ok
}

// Achievements returns the unlocked achievement ids of an account
func (m *MemoryStore) Achievements(accountID int64) map[string]time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]time.Time, len(m.achievements[accountID]))
	for k, v := range m.achievements[accountID] {
		out[k] = v
	}
	return out
}

// Scores returns every score entry of an account
func (m *MemoryStore) Scores(accountID int64) []models.ScoreEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ScoreEntry
	for _, s := range m.scores {
		if s.AccountID == accountID {
			out = append(out, s)
		}
	}
	return out
}

// Processed reports whether inputID was claimed
func (m *MemoryStore) Processed(inputID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, seen := m.processed[inputID]
	return seen
}

func (m *MemoryStore) ClaimInput(_ context.Context, inputID string, blockHeight int64, _ string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, seen := m.processed[inputID]; seen {
		return false, nil
	}
	m.processed[inputID] = blockHeight
	return true, nil
}

func (m *MemoryStore) ResolveAccount(_ context.Context, address string) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.addresses[address]
	return id, ok, nil
}

func (m *MemoryStore) CreateAccount(_ context.Context, address string, _ types.AddressType, _ time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextAccount++
	id := m.nextAccount
	m.addresses[address] = id
	m.primary[id] = address
	return id, nil
}

func (m *MemoryStore) SetAccountName(_ context.Context, accountID int64, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.profiles[accountID]
	p.AccountID = accountID
	p.Name = &name
	if p.PlayerID == nil {
		pid := PlayerID(accountID)
		p.PlayerID = &pid
	}
	m.profiles[accountID] = p
	return nil
}

func (m *MemoryStore) UpsertDelegation(_ context.Context, accountID int64, delegateTo string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delegations[accountID] = models.Delegation{AccountID: accountID, DelegateToAddress: delegateTo, DelegatedAt: at}
	return nil
}

func (m *MemoryStore) GetGameState(_ context.Context, accountID int64) (*models.GameState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[accountID]
	if !ok {
		return nil, nil
	}
	return &g, nil
}

func (m *MemoryStore) GetProfile(_ context.Context, accountID int64) (*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[accountID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *MemoryStore) EnsureBalance(_ context.Context, accountID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[accountID]
	if !ok {
		var zero int64
		m.profiles[accountID] = models.Profile{AccountID: accountID, Balance: &zero}
		return nil
	}
	if p.Balance == nil {
		var zero int64
		p.Balance = &zero
		m.profiles[accountID] = p
	}
	return nil
}

func (m *MemoryStore) StartGame(_ context.Context, accountID int64, safeCount int, randomHash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, exists := m.games[accountID]
	if exists && g.IsOngoing {
		return false, nil
	}
	g.AccountID = accountID
	g.Round = 1
	g.SafeCount = safeCount
	g.RandomHash = &randomHash
	g.IsOngoing = true
	g.CurrentScore = 0
	m.games[accountID] = g
	return true, nil
}

func (m *MemoryStore) ongoingAt(accountID int64, round int) (models.GameState, bool) {
	g, ok := m.games[accountID]
	if !ok || !g.IsOngoing || g.Round != round {
		return g, false
	}
	return g, true
}

func (m *MemoryStore) AdvanceRound(_ context.Context, accountID int64, expectedRound int, prize int64, nextSafeCount int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.ongoingAt(accountID, expectedRound)
	if !ok {
		return false, nil
	}
	g.CurrentScore += prize
	g.SafeCount = nextSafeCount
	g.Round++
	m.games[accountID] = g
	return true, nil
}

func (m *MemoryStore) RecordLoss(_ context.Context, accountID int64, expectedRound int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.ongoingAt(accountID, expectedRound)
	if !ok {
		return false, nil
	}
	g.GamesLost++
	g.IsOngoing = false
	m.games[accountID] = g
	return true, nil
}

func (m *MemoryStore) RecordWin(_ context.Context, accountID int64, expectedRound int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.ongoingAt(accountID, expectedRound)
	if !ok {
		return false, nil
	}
	g.GamesWon++
	g.IsOngoing = false
	m.games[accountID] = g
	return true, nil
}

func (m *MemoryStore) UnlockAchievement(_ context.Context, accountID int64, achievementID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.achievements[accountID]
	if !ok {
		set = make(map[string]time.Time)
		m.achievements[accountID] = set
	}
	if _, done := set[achievementID]; done {
		return false, nil
	}
	set[achievementID] = at
	return true, nil
}

func (m *MemoryStore) CreditBalance(_ context.Context, accountID int64, amount int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.profiles[accountID]
	p.AccountID = accountID
	var balance int64
	if p.Balance != nil {
		balance = *p.Balance
	}
	balance += amount
	p.Balance = &balance
	p.LastLoginAt = &at
	m.profiles[accountID] = p
	return nil
}

func (m *MemoryStore) InsertScoreEntry(_ context.Context, accountID int64, score int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scores = append(m.scores, models.ScoreEntry{
		ID:         int64(len(m.scores) + 1),
		AccountID:  accountID,
		Score:      score,
		AchievedAt: at,
	})
	return nil
}
