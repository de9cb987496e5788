package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/safe-solver/internal/models"
)

// InputQueue is the FIFO of signed inputs waiting for a block, kept in a Redis list
type InputQueue struct {
	redis *RedisCache
	key   string
}

// NewInputQueue creates a queue stored under key
func NewInputQueue(redis *RedisCache, key string) *InputQueue {
	return &InputQueue{redis: redis, key: key}
}

// Push appends an input to the tail of the queue
func (q *InputQueue) Push(ctx context.Context, in *models.QueuedInput) error {
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal input: %w", err)
	}
	if err := q.redis.Client().RPush(ctx, q.key, data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue input: %w", err)
	}
	return nil
}

// PopBatch removes up to n inputs from the head of the queue. Entries that
// cannot be decoded are dropped and counted in the returned skip count.
func (q *InputQueue) PopBatch(ctx context.Context, n int) ([]*models.QueuedInput, int, error) {
	if n <= 0 {
		return nil, 0, nil
	}
	raw, err := q.redis.Client().LPopCount(ctx, q.key, n).Result()
	if errors.Is(err, redis.Nil) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to pop inputs: %w", err)
	}

	inputs := make([]*models.QueuedInput, 0, len(raw))
	skipped := 0
	for _, item := range raw {
		var in models.QueuedInput
		if err := json.Unmarshal([]byte(item), &in); err != nil {
			skipped++
			continue
		}
		inputs = append(inputs, &in)
	}
	return inputs, skipped, nil
}

// Requeue puts inputs back at the head of the queue, keeping their order
func (q *InputQueue) Requeue(ctx context.Context, inputs []*models.QueuedInput) error {
	if len(inputs) == 0 {
		return nil
	}
	values := make([]interface{}, 0, len(inputs))
	for i := len(inputs) - 1; i >= 0; i-- {
		data, err := json.Marshal(inputs[i])
		if err != nil {
			return fmt.Errorf("failed to marshal input: %w", err)
		}
		values = append(values, data)
	}
	if err := q.redis.Client().LPush(ctx, q.key, values...).Err(); err != nil {
		return fmt.Errorf("failed to requeue inputs: %w", err)
	}
	return nil
}

// Len returns the number of waiting inputs
func (q *InputQueue) Len(ctx context.Context) (int64, error) {
	n, err := q.redis.Client().LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read queue length: %w", err)
	}
	return n, nil
}
