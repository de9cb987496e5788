package models

import (
	"encoding/json"
	"time"

	"github.com/safe-solver/internal/types"
)

// QueuedInput is a signed player input waiting for the next block
type QueuedInput struct {
	ID          string            `json:"id"`
	Target      string            `json:"target"`
	Address     string            `json:"address"`
	AddressType types.AddressType `json:"addressType"`
	Input       string            `json:"input"`
	Timestamp   int64             `json:"timestamp"`
	ReceivedAt  time.Time         `json:"receivedAt"`
}

// Block is a committed batch of inputs with the seed its generators were built from
type Block struct {
	Height     int64     `json:"height" db:"height"`
	Seed       string    `json:"seed" db:"seed"`
	InputCount int       `json:"input_count" db:"input_count"`
	ProducedAt time.Time `json:"produced_at" db:"produced_at"`
}

// RollupInput is a queued input as recorded inside a block
type RollupInput struct {
	QueuedInput
	BlockHeight int64 `json:"blockHeight"`
	Index       int   `json:"index"`
}

// TransitionEvent is the outcome of applying one input, kept for history
type TransitionEvent struct {
	InputID     string          `json:"input_id"`
	BlockHeight int64           `json:"block_height"`
	Address     string          `json:"address"`
	AccountID   *int64          `json:"account_id"`
	Action      string          `json:"action"`
	Applied     bool            `json:"applied"`
	Reason      string          `json:"reason,omitempty"`
	Details     json.RawMessage `json:"details,omitempty"`
	At          time.Time       `json:"at"`
}
