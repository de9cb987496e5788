package worker

import (
	"context"

	"github.com/safe-solver/internal/models"
	"github.com/safe-solver/internal/stf"
	"github.com/safe-solver/internal/storage"
)

// Ledger persists blocks and applies their transitions atomically
type Ledger interface {
	LatestBlock(ctx context.Context) (*models.Block, error)
	// CommitBlock stores the block and its inputs and runs apply against the
	// block's transaction. Any error from apply discards every write.
	CommitBlock(ctx context.Context, block *models.Block, inputs []*models.RollupInput, apply func(ctx context.Context, tx BlockTx) error) error
}

// BlockTx is the open transaction of a block being committed
type BlockTx interface {
	// Store is bound to the whole block transaction
	Store() stf.Store
	// Isolated runs fn inside a savepoint. When fn fails only its writes are
	// discarded and its error is returned. Errors wrapping storage.ErrSavepoint
	// mean the block transaction can no longer be used.
	Isolated(ctx context.Context, fn func(ctx context.Context, s stf.Store) error) error
}

// PostgresLedger commits each block in one Postgres transaction
type PostgresLedger struct {
	db *storage.PostgresDB
}

// NewPostgresLedger creates a ledger over db
func NewPostgresLedger(db *storage.PostgresDB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// LatestBlock returns the highest committed block, or nil before genesis
func (l *PostgresLedger) LatestBlock(ctx context.Context) (*models.Block, error) {
	return storage.NewBlockRepository(l.db.Pool()).LatestBlock(ctx)
}

// CommitBlock implements Ledger
func (l *PostgresLedger) CommitBlock(ctx context.Context, block *models.Block, inputs []*models.RollupInput, apply func(ctx context.Context, tx BlockTx) error) error {
	return l.db.WithTx(ctx, func(q storage.Querier) error {
		blocks := storage.NewBlockRepository(q)
		if err := blocks.InsertBlock(ctx, block); err != nil {
			return err
		}
		if err := blocks.InsertRollupInputs(ctx, inputs); err != nil {
			return err
		}
		return apply(ctx, &postgresBlockTx{q: q})
	})
}

type postgresBlockTx struct {
	q storage.Querier
}

func (t *postgresBlockTx) Store() stf.Store {
	return storage.NewTransitionStore(t.q)
}

func (t *postgresBlockTx) Isolated(ctx context.Context, fn func(ctx context.Context, s stf.Store) error) error {
	return storage.WithSavepoint(ctx, t.q, func(sp storage.Querier) error {
		return fn(ctx, storage.NewTransitionStore(sp))
	})
}
