package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jwebster45206/puzzle-engine/pkg/queue"
	"github.com/redis/go-redis/v9"
)

const triggersKey = "triggers"

// TriggerQueue is the global FIFO of scene evaluation requests
type TriggerQueue struct {
	client *Client
}

func NewTriggerQueue(client *Client) *TriggerQueue {
	return &TriggerQueue{
		client: client,
	}
}

// EnqueueRequest adds a request to the end of the queue
func (q *TriggerQueue) EnqueueRequest(ctx context.Context, req *queue.Request) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}
	data, err := req.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize request: %w", err)
	}

	if err := q.client.rdb.RPush(ctx, triggersKey, data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue request: %w", err)
	}
	q.client.logger.Debug("Trigger enqueued", "request_id", req.RequestID, "type", req.Type, "scene", req.Scene)
	return nil
}

// DequeueRequest removes and returns the next request
// Returns nil if the queue is empty
func (q *TriggerQueue) DequeueRequest(ctx context.Context) (*queue.Request, error) {
	result, err := q.client.rdb.LPop(ctx, triggersKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue request: %w", err)
	}

	req, err := queue.FromJSON([]byte(result))
	if err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	return req, nil
}

// BlockingDequeueRequest waits up to timeout for a request. A timeout or a
// cancelled context returns nil, nil.
func (q *TriggerQueue) BlockingDequeueRequest(ctx context.Context, timeout time.Duration) (*queue.Request, error) {
	result, err := q.client.rdb.BLPop(ctx, timeout, triggersKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || ctx.Err() != nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue request: %w", err)
	}

	// BLPop returns [key, value]
	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected BLPop result: %v", result)
	}

	req, err := queue.FromJSON([]byte(result[1]))
	if err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	return req, nil
}

// Depth returns the number of queued requests
func (q *TriggerQueue) Depth(ctx context.Context) (int, error) {
	count, err := q.client.rdb.LLen(ctx, triggersKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get queue depth: %w", err)
	}
	return int(count), nil
}
