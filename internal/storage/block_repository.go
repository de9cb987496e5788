package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/safe-solver/internal/models"
)

// BlockRepository persists produced blocks and the inputs they carried
type BlockRepository struct {
	q Querier
}

// NewBlockRepository creates a new block repository
func NewBlockRepository(q Querier) *BlockRepository {
	return &BlockRepository{q: q}
}

// LatestBlock returns the highest committed block, or nil before genesis
func (r *BlockRepository) LatestBlock(ctx context.Context) (*models.Block, error) {
	var b models.Block
	err := r.q.QueryRow(ctx, `
		SELECT height, seed, input_count, produced_at
		FROM blocks
		ORDER BY height DESC
		LIMIT 1
	`).Scan(&b.Height, &b.Seed, &b.InputCount, &b.ProducedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest block: %w", err)
	}
	return &b, nil
}

// InsertBlock stores the block header
func (r *BlockRepository) InsertBlock(ctx context.Context, b *models.Block) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO blocks (height, seed, input_count, produced_at)
		VALUES ($1, $2, $3, $4)
	`, b.Height, b.Seed, b.InputCount, b.ProducedAt)
	if err != nil {
		return fmt.Errorf("failed to insert block %d: %w", b.Height, err)
	}
	return nil
}

// InsertRollupInputs records the block's inputs in order. An input id that was
// already recorded by an earlier block is skipped.
func (r *BlockRepository) InsertRollupInputs(ctx context.Context, inputs []*models.RollupInput) error {
	for _, in := range inputs {
		_, err := r.q.Exec(ctx, `
			INSERT INTO rollup_inputs (input_id, block_height, input_index, target, address, address_type, input, timestamp_ms)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (input_id) DO NOTHING
		`, in.ID, in.BlockHeight, in.Index, in.Target, in.Address, int(in.AddressType), in.Input, in.Timestamp)
		if err != nil {
			return fmt.Errorf("failed to insert rollup input %s: %w", in.ID, err)
		}
	}
	return nil
}

// ProcessedHeight reports the block an input was applied in
func (r *BlockRepository) ProcessedHeight(ctx context.Context, inputID string) (int64, bool, error) {
	var height int64
	err := r.q.QueryRow(ctx, `
		SELECT block_height FROM processed_inputs WHERE input_id = $1
	`, inputID).Scan(&height)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to look up processed input: %w", err)
	}
	return height, true, nil
}
