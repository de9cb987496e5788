// Package batcher accepts signed player inputs over HTTP and queues them for the
// block producer. It is the single-node stand-in for a production batcher.
package batcher

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/safe-solver/internal/config"
	apperrors "github.com/safe-solver/internal/errors"
	"github.com/safe-solver/internal/logging"
	"github.com/safe-solver/internal/models"
	"github.com/safe-solver/internal/types"
)

// DefaultTarget is used when an input names no target
const DefaultTarget = "safe-solver"

// Queue receives accepted inputs
type Queue interface {
	Push(ctx context.Context, in *models.QueuedInput) error
}

// ProcessedLookup reports whether an input has been applied in a block
type ProcessedLookup interface {
	ProcessedHeight(ctx context.Context, inputID string) (int64, bool, error)
}

// InputData is the signed part of a submission
type InputData struct {
	Target      string            `json:"target"`
	Address     string            `json:"address"`
	AddressType types.AddressType `json:"addressType"`
	Input       string            `json:"input"`
	Timestamp   int64             `json:"timestamp"`
	Signature   string            `json:"signature,omitempty"`
}

// Request is the body of POST /send-input
type Request struct {
	Data              InputData               `json:"data"`
	ConfirmationLevel types.ConfirmationLevel `json:"confirmationLevel"`
}

// Receipt is returned for an accepted input
type Receipt struct {
	Success     bool   `json:"success"`
	InputID     string `json:"inputId"`
	BlockHeight *int64 `json:"blockHeight,omitempty"`
	Message     string `json:"message"`
}

// Batcher validates and queues inputs
type Batcher struct {
	cfg       config.BatcherConfig
	queue     Queue
	processed ProcessedLookup
	now       func() time.Time
	newID     func() string
}

// New creates a batcher
func New(cfg config.BatcherConfig, queue Queue, processed ProcessedLookup) *Batcher {
	return &Batcher{
		cfg:       cfg,
		queue:     queue,
		processed: processed,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Submit validates req, queues it and waits as long as its confirmation level asks
func (b *Batcher) Submit(ctx context.Context, req *Request) (*Receipt, error) {
	level := req.ConfirmationLevel
	if level == "" {
		level = types.ConfirmNoWait
	}
	if !level.IsValid() {
		return nil, apperrors.NewInvalidParameterError("confirmationLevel", fmt.Sprintf("unknown level %q", level))
	}

	in, err := b.validate(&req.Data)
	if err != nil {
		return nil, err
	}

	logger := logging.FromContext(ctx).WithInput(in.ID, "", in.Address)
	if err := b.queue.Push(ctx, in); err != nil {
		logger.WithError(err).Error("failed to enqueue input")
		return nil, apperrors.NewQueueError("enqueue", err)
	}
	logger.WithField("confirmationLevel", string(level)).Debug("input queued")

	receipt := &Receipt{Success: true, InputID: in.ID, Message: "input queued"}
	if level != types.ConfirmProcessed {
		return receipt, nil
	}

	height, err := b.waitProcessed(ctx, in.ID)
	if err != nil {
		logger.WithError(err).Warn("input not confirmed in time")
		return nil, err
	}
	receipt.BlockHeight = &height
	receipt.Message = "input processed"
	return receipt, nil
}

func (b *Batcher) validate(d *InputData) (*models.QueuedInput, error) {
	address := strings.TrimSpace(d.Address)
	if address == "" {
		return nil, apperrors.NewInvalidInputError("address is required")
	}
	if strings.TrimSpace(d.Input) == "" {
		return nil, apperrors.NewInvalidInputError("input is required")
	}
	if !types.IsStorableText(address) || !types.IsStorableText(d.Input) || !types.IsStorableText(d.Target) {
		return nil, apperrors.NewInvalidInputError("fields must be valid UTF-8 without NUL bytes")
	}
	if !d.AddressType.IsValid() || d.AddressType == types.AddressTypeNone {
		return nil, apperrors.NewInvalidInputError(fmt.Sprintf("unsupported address type %d", int(d.AddressType)))
	}
	if d.Timestamp <= 0 {
		return nil, apperrors.NewInvalidInputError("timestamp is required")
	}
	now := b.now()
	if b.cfg.MaxClockSkew > 0 {
		skew := now.Sub(time.UnixMilli(d.Timestamp))
		if skew < 0 {
			skew = -skew
		}
		if skew > b.cfg.MaxClockSkew {
			return nil, apperrors.NewInvalidInputError("timestamp is too far from the node clock")
		}
	}

	target := d.Target
	if target == "" {
		target = DefaultTarget
	}

	stored := address
	if d.AddressType == types.AddressTypeEVM {
		normalized, err := NormalizeEVMAddress(address)
		if err != nil {
			return nil, apperrors.NewInvalidInputError(err.Error())
		}
		stored = normalized

		if b.cfg.VerifySignatures {
			if d.Signature == "" {
				return nil, apperrors.NewInvalidSignatureError(address)
			}
			msg := SigningMessage(d.Target, address, d.AddressType, d.Timestamp)
			if err := VerifyEVMSignature(address, msg, d.Signature); err != nil {
				return nil, apperrors.NewInvalidSignatureError(address)
			}
		}
	}

	return &models.QueuedInput{
		ID:          b.newID(),
		Target:      target,
		Address:     stored,
		AddressType: d.AddressType,
		Input:       d.Input,
		Timestamp:   d.Timestamp,
		ReceivedAt:  now.UTC(),
	}, nil
}

func (b *Batcher) waitProcessed(ctx context.Context, inputID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.ConfirmTimeout)
	defer cancel()

	poll := b.cfg.ConfirmPoll
	if poll <= 0 {
		poll = 100 * time.Millisecond
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		height, found, err := b.processed.ProcessedHeight(ctx, inputID)
		if err != nil && ctx.Err() == nil {
			return 0, apperrors.NewDatabaseError("confirm input", err)
		}
		if found {
			return height, nil
		}

		select {
		case <-ctx.Done():
			return 0, apperrors.NewTimeoutError("input " + inputID)
		case <-ticker.C:
		}
	}
}
