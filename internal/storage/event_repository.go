package storage

import (
	"context"
	"fmt"

	"github.com/safe-solver/internal/models"
)

// EventRepository stores transition outcomes in ClickHouse
type EventRepository struct {
	db *ClickHouseDB
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *ClickHouseDB) *EventRepository {
	return &EventRepository{db: db}
}

// InsertEvents writes a block's outcomes as one batch
func (r *EventRepository) InsertEvents(ctx context.Context, events []*models.TransitionEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := r.db.Conn().PrepareBatch(ctx, "INSERT INTO transition_events")
	if err != nil {
		return fmt.Errorf("failed to prepare event batch: %w", err)
	}
	defer func() {
		_ = batch.Abort() // nolint:errcheck // no-op after Send
	}()

	for _, e := range events {
		var applied uint8
		if e.Applied {
			applied = 1
		}
		details := string(e.Details)
		if details == "" {
			details = "{}"
		}
		if err := batch.Append(
			e.InputID,
			e.BlockHeight,
			e.Address,
			e.AccountID,
			e.Action,
			applied,
			e.Reason,
			details,
			e.At,
		); err != nil {
			return fmt.Errorf("failed to append event %s: %w", e.InputID, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send event batch: %w", err)
	}
	return nil
}

// ListByAddress returns the most recent events signed by address
func (r *EventRepository) ListByAddress(ctx context.Context, address string, limit int) ([]*models.TransitionEvent, error) {
	rows, err := r.db.Conn().Query(ctx, `
		SELECT input_id, block_height, address, account_id, action, applied, reason, details, at
		FROM transition_events FINAL
		WHERE address = ?
		ORDER BY block_height DESC, input_id DESC
		LIMIT ?
	`, address, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	events := []*models.TransitionEvent{}
	for rows.Next() {
		var (
			e       models.TransitionEvent
			applied uint8
			details string
		)
		if err := rows.Scan(
			&e.InputID,
			&e.BlockHeight,
			&e.Address,
			&e.AccountID,
			&e.Action,
			&applied,
			&e.Reason,
			&details,
			&e.At,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Applied = applied == 1
		e.Details = []byte(details)
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}
	return events, nil
}
