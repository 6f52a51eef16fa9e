package handlers

import (
	"context"
	"log/slog"

	"github.com/jwebster45206/puzzle-engine/pkg/queue"
)

// Enqueuer accepts evaluation triggers. queue.TriggerQueue satisfies it.
type Enqueuer interface {
	EnqueueRequest(ctx context.Context, req *queue.Request) error
}

// QueuedNotifier announces accepted triggers on the scene channel
type QueuedNotifier interface {
	PublishRequestQueued(ctx context.Context, scene, requestID, requestType string) error
}

// Dispatcher hands triggers to the worker pool. A nil *Dispatcher is valid
// and drops everything, for deployments without a worker.
type Dispatcher struct {
	queue    Enqueuer
	notifier QueuedNotifier
	logger   *slog.Logger
}

func NewDispatcher(queue Enqueuer, notifier QueuedNotifier, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		queue:    queue,
		notifier: notifier,
		logger:   logger,
	}
}

// Dispatch enqueues req. It reports false when no queue is configured.
func (d *Dispatcher) Dispatch(ctx context.Context, req *queue.Request) (bool, error) {
	if d == nil || d.queue == nil {
		return false, nil
	}
	if err := d.queue.EnqueueRequest(ctx, req); err != nil {
		return false, err
	}
	if d.notifier != nil {
		if err := d.notifier.PublishRequestQueued(ctx, req.Scene, req.RequestID, string(req.Type)); err != nil {
			// Don't fail the request just because event publishing failed
			d.logger.Error("Failed to publish queued event", "error", err, "request_id", req.RequestID)
		}
	}
	return true, nil
}
