// Package worker runs the block producer: it drains the input queue on a fixed
// tick, seeds each block from its predecessor and applies the block's inputs
// through the rules engine inside one transaction.
package worker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/safe-solver/internal/circuitbreaker"
	"github.com/safe-solver/internal/grammar"
	"github.com/safe-solver/internal/logging"
	"github.com/safe-solver/internal/models"
	"github.com/safe-solver/internal/retry"
	"github.com/safe-solver/internal/rng"
	"github.com/safe-solver/internal/stf"
	"github.com/safe-solver/internal/storage"
	"github.com/safe-solver/internal/types"
)

// Queue is the source of inputs for new blocks
type Queue interface {
	PopBatch(ctx context.Context, n int) ([]*models.QueuedInput, int, error)
	Requeue(ctx context.Context, inputs []*models.QueuedInput) error
}

// EventSink receives the outcomes of every committed block
type EventSink interface {
	InsertEvents(ctx context.Context, events []*models.TransitionEvent) error
}

// CacheInvalidator drops cached read models after state changes
type CacheInvalidator interface {
	InvalidateTypes(ctx context.Context, types ...storage.CacheKeyType) error
}

// BlockProducerConfig holds configuration for a block producer
type BlockProducerConfig struct {
	Namespace         string
	BlockTime         time.Duration
	MaxInputsPerBlock int
	Retry             *retry.Config

	Router *stf.Router
	Queue  Queue
	Ledger Ledger
	// Events and Cache are optional
	Events EventSink
	Cache  CacheInvalidator
}

// BlockResult summarizes one produced block
type BlockResult struct {
	Block    *models.Block
	Outcomes []stf.Outcome
	Applied  int
}

// BlockProducer turns queued inputs into blocks
type BlockProducer struct {
	namespace string
	blockTime time.Duration
	maxInputs int
	retryCfg  *retry.Config

	router  *stf.Router
	queue   Queue
	ledger  Ledger
	events  EventSink
	cache   CacheInvalidator
	breaker *circuitbreaker.CircuitBreaker

	mu       sync.RWMutex
	height   int64
	prevSeed string
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	now      func() time.Time
}

// NewBlockProducer creates a new block producer
func NewBlockProducer(cfg *BlockProducerConfig) (*BlockProducer, error) {
	if cfg.Router == nil {
		return nil, fmt.Errorf("router cannot be nil")
	}
	if cfg.Queue == nil {
		return nil, fmt.Errorf("queue cannot be nil")
	}
	if cfg.Ledger == nil {
		return nil, fmt.Errorf("ledger cannot be nil")
	}

	blockTime := cfg.BlockTime
	if blockTime <= 0 {
		blockTime = time.Second
	}
	maxInputs := cfg.MaxInputsPerBlock
	if maxInputs <= 0 {
		maxInputs = 100
	}
	retryCfg := cfg.Retry
	if retryCfg == nil {
		retryCfg = retry.DefaultConfig()
	}

	return &BlockProducer{
		namespace: cfg.Namespace,
		blockTime: blockTime,
		maxInputs: maxInputs,
		retryCfg:  retryCfg,
		router:    cfg.Router,
		queue:     cfg.Queue,
		ledger:    cfg.Ledger,
		events:    cfg.Events,
		cache:     cfg.Cache,
		breaker:   circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig("event-log")),
		now:       time.Now,
	}, nil
}

// Start resumes from the last committed block and begins producing
func (p *BlockProducer) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("block producer is already running")
	}
	p.mu.Unlock()

	if err := p.resume(ctx); err != nil {
		return err
	}

	p.mu.Lock()
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	logging.FromContext(ctx).WithFields(map[string]interface{}{
		"height":    p.Height(),
		"blockTime": p.blockTime.String(),
	}).Info("block producer started")

	go p.loop(ctx)
	return nil
}

// Stop waits for the current block to finish and stops the loop
func (p *BlockProducer) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return fmt.Errorf("block producer is not running")
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
	case <-ctx.Done():
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	logging.FromContext(ctx).Info("block producer stopped")
	return nil
}

// Height returns the last committed block height
func (p *BlockProducer) Height() int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.height
}

func (p *BlockProducer) resume(ctx context.Context) error {
	latest, err := p.ledger.LatestBlock(ctx)
	if err != nil {
		return fmt.Errorf("failed to load latest block: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if latest != nil {
		p.height = latest.Height
		p.prevSeed = latest.Seed
	}
	return nil
}

func (p *BlockProducer) loop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.blockTime)
	defer ticker.Stop()

	logger := logging.FromContext(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			result, err := p.Produce(ctx)
			if err != nil {
				logger.WithError(err).Error("block production failed")
				continue
			}
			if result != nil {
				logger.WithBlock(result.Block.Height).WithFields(map[string]interface{}{
					"inputs":  result.Block.InputCount,
					"applied": result.Applied,
				}).Info("block committed")
			}
		}
	}
}

// Produce builds and commits one block from the queue. It returns nil when the
// queue was empty. An input the database rejects is skipped on its own. When the
// commit itself cannot be completed the inputs go back to the head of the queue
// and the height does not move.
func (p *BlockProducer) Produce(ctx context.Context) (*BlockResult, error) {
	logger := logging.FromContext(ctx)

	inputs, skipped, err := p.queue.PopBatch(ctx, p.maxInputs)
	if err != nil {
		return nil, fmt.Errorf("failed to pop inputs: %w", err)
	}
	if skipped > 0 {
		logger.WithField("count", skipped).Warn("dropped undecodable queue entries")
	}
	inputs = dropUnstorable(ctx, inputs)
	if len(inputs) == 0 {
		return nil, nil
	}

	p.mu.RLock()
	height := p.height + 1
	prevSeed := p.prevSeed
	p.mu.RUnlock()

	seed := DeriveSeed(p.namespace, height, prevSeed, inputs)
	block := &models.Block{
		Height:     height,
		Seed:       seed,
		InputCount: len(inputs),
		ProducedAt: p.now().UTC(),
	}
	rollups := make([]*models.RollupInput, len(inputs))
	for i, in := range inputs {
		rollups[i] = &models.RollupInput{QueuedInput: *in, BlockHeight: height, Index: i}
	}

	ctx = logging.WithLogger(ctx, logger.WithBlock(height))

	var outcomes []stf.Outcome
	err = retry.Do(ctx, p.retryCfg, func(ctx context.Context, attempt int) error {
		outcomes = outcomes[:0]
		return p.ledger.CommitBlock(ctx, block, rollups, func(ctx context.Context, tx BlockTx) error {
			for i, in := range inputs {
				out, err := p.applyInput(ctx, tx, toSTFInput(in, height, seed, i))
				if err != nil {
					return err
				}
				outcomes = append(outcomes, out)
			}
			return nil
		})
	})
	if err != nil {
		requeueCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if rqErr := p.queue.Requeue(requeueCtx, inputs); rqErr != nil {
			logger.WithError(rqErr).WithField("inputs", len(inputs)).Error("failed to requeue inputs, they are lost")
		}
		return nil, fmt.Errorf("failed to commit block %d: %w", height, err)
	}

	p.mu.Lock()
	p.height = height
	p.prevSeed = seed
	p.mu.Unlock()

	result := &BlockResult{Block: block, Outcomes: outcomes}
	for _, out := range outcomes {
		if out.Applied {
			result.Applied++
		}
	}

	p.publishEvents(ctx, block, inputs, outcomes)
	p.invalidateCaches(ctx, outcomes)
	return result, nil
}

// applyInput runs one transition in a savepoint. A transition the database
// rejects for its own data is rolled back alone and recorded as internal_error.
// Transient failures abort the whole block.
func (p *BlockProducer) applyInput(ctx context.Context, tx BlockTx, in stf.Input) (stf.Outcome, error) {
	var out stf.Outcome
	err := tx.Isolated(ctx, func(ctx context.Context, s stf.Store) error {
		var err error
		out, err = p.router.Transition(ctx, s, in)
		return err
	})
	if err == nil {
		return out, nil
	}
	if storage.IsTransient(err) {
		return stf.Outcome{}, err
	}

	action, _ := grammar.Tag(in.Raw)
	logging.FromContext(ctx).WithInput(in.ID, string(action), in.SignerAddress).WithError(err).
		Error("transition rejected by the database, skipping input")

	if in.ID != "" {
		if _, err := tx.Store().ClaimInput(ctx, in.ID, in.BlockHeight, string(action)); err != nil {
			return stf.Outcome{}, fmt.Errorf("failed to claim rejected input %s: %w", in.ID, err)
		}
	}
	return stf.Outcome{InputID: in.ID, Action: action, Reason: stf.ReasonInternalError}, nil
}

// dropUnstorable removes inputs whose fields no TEXT column accepts
func dropUnstorable(ctx context.Context, inputs []*models.QueuedInput) []*models.QueuedInput {
	kept := inputs[:0]
	for _, in := range inputs {
		if types.IsStorableText(in.ID) && types.IsStorableText(in.Target) &&
			types.IsStorableText(in.Address) && types.IsStorableText(in.Input) {
			kept = append(kept, in)
			continue
		}
		logging.FromContext(ctx).WithField("inputID", strconv.Quote(in.ID)).Warn("dropped input with unstorable text")
	}
	return kept
}

// DeriveSeed chains a block's seed to its predecessor and the ids it carries
func DeriveSeed(namespace string, height int64, prevSeed string, inputs []*models.QueuedInput) string {
	h := sha256.New()
	h.Write([]byte(namespace))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatInt(height, 10)))
	h.Write([]byte{0})
	h.Write([]byte(prevSeed))
	for _, in := range inputs {
		h.Write([]byte{0})
		h.Write([]byte(in.ID))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func toSTFInput(in *models.QueuedInput, height int64, seed string, index int) stf.Input {
	var ts time.Time
	if in.Timestamp > 0 {
		ts = time.UnixMilli(in.Timestamp).UTC()
	}
	return stf.Input{
		ID:                in.ID,
		BlockHeight:       height,
		Timestamp:         ts,
		SignerAddress:     in.Address,
		SignerAddressType: in.AddressType,
		Raw:               in.Input,
		Random:            rng.New(seed, index),
	}
}

func (p *BlockProducer) publishEvents(ctx context.Context, block *models.Block, inputs []*models.QueuedInput, outcomes []stf.Outcome) {
	if p.events == nil || len(outcomes) == 0 {
		return
	}

	events := make([]*models.TransitionEvent, len(outcomes))
	for i, out := range outcomes {
		at := block.ProducedAt
		if inputs[i].Timestamp > 0 {
			at = time.UnixMilli(inputs[i].Timestamp).UTC()
		}
		var details json.RawMessage
		if len(out.Details) > 0 {
			if data, err := json.Marshal(out.Details); err == nil {
				details = data
			}
		}
		events[i] = &models.TransitionEvent{
			InputID:     out.InputID,
			BlockHeight: block.Height,
			Address:     inputs[i].Address,
			AccountID:   out.AccountID,
			Action:      string(out.Action),
			Applied:     out.Applied,
			Reason:      string(out.Reason),
			Details:     details,
			At:          at,
		}
	}

	err := p.breaker.Execute(ctx, func(ctx context.Context) error {
		return p.events.InsertEvents(ctx, events)
	})
	if err != nil {
		logging.FromContext(ctx).WithError(err).Warn("failed to write transition events")
	}
}

var cacheAffectingActions = map[types.Action]bool{
	types.ActionSetName:       true,
	types.ActionDelegate:      true,
	types.ActionSubmitScore:   true,
	types.ActionCreateAccount: true,
}

func (p *BlockProducer) invalidateCaches(ctx context.Context, outcomes []stf.Outcome) {
	if p.cache == nil {
		return
	}
	for _, out := range outcomes {
		if out.Applied && cacheAffectingActions[out.Action] {
			if err := p.cache.InvalidateTypes(ctx, storage.CacheKeyLeaderboard, storage.CacheKeyUser, storage.CacheKeyGameInfo); err != nil {
				logging.FromContext(ctx).WithError(err).Warn("failed to invalidate read caches")
			}
			return
		}
	}
}
