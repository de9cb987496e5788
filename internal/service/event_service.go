package service

import (
	"context"
	"fmt"

	"github.com/safe-solver/internal/models"
	"github.com/safe-solver/internal/types"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 500
)

// EventReader lists recorded transition outcomes
type EventReader interface {
	ListByAddress(ctx context.Context, address string, limit int) ([]*models.TransitionEvent, error)
}

// EventService exposes the transition event log
type EventService struct {
	events EventReader
}

// NewEventService creates a new event service. A nil reader means the event
// log is not configured.
func NewEventService(events EventReader) *EventService {
	return &EventService{events: events}
}

// Enabled reports whether the event log is available
func (s *EventService) Enabled() bool {
	return s.events != nil
}

// ListEvents returns the most recent outcomes of inputs signed by address
func (s *EventService) ListEvents(ctx context.Context, address string, limit int) ([]*models.TransitionEvent, error) {
	if s.events == nil {
		return nil, &types.ServiceError{
			Code:    types.CodeEventsDisabled,
			Message: "transition event log is not enabled",
		}
	}
	if limit <= 0 {
		limit = defaultEventLimit
	}
	if limit > maxEventLimit {
		limit = maxEventLimit
	}

	events, err := s.events.ListByAddress(ctx, address, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}
