package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/puzzle-engine/internal/services/queue"
	queuePkg "github.com/jwebster45206/puzzle-engine/pkg/queue"
	"github.com/redis/go-redis/v9"
)

const (
	workerTimeout = 5 * time.Second
	lockTTL       = 30 * time.Second
	lockBackoff   = 500 * time.Millisecond
)

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// Worker drains the trigger queue
type Worker struct {
	id          string
	queue       *queue.TriggerQueue
	processor   *Processor
	redisClient *redis.Client
	log         *slog.Logger
	pollTimeout time.Duration
	lockBackoff time.Duration
	ctx         context.Context
	cancel      context.CancelFunc
}

// New creates a new worker instance
func New(triggerQueue *queue.TriggerQueue, processor *Processor, redisClient *redis.Client, log *slog.Logger, workerID string) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	if workerID == "" {
		workerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	}

	return &Worker{
		id:          workerID,
		queue:       triggerQueue,
		processor:   processor,
		redisClient: redisClient,
		log:         log,
		pollTimeout: workerTimeout,
		lockBackoff: lockBackoff,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// ID returns the worker's lock owner id
func (w *Worker) ID() string {
	return w.id
}

// Start begins processing requests from the queue
func (w *Worker) Start() error {
	w.log.Info("Worker starting", "worker_id", w.id)

	for {
		select {
		case <-w.ctx.Done():
			w.log.Info("Worker shutting down", "worker_id", w.id)
			return nil
		default:
			if err := w.processNextRequest(); err != nil {
				w.log.Error("Error processing request", "error", err, "worker_id", w.id)
				// Continue processing even on error
				select {
				case <-w.ctx.Done():
				case <-time.After(time.Second):
				}
			}
		}
	}
}

// Stop gracefully shuts down the worker
func (w *Worker) Stop() {
	w.log.Info("Worker stop requested", "worker_id", w.id)
	w.cancel()
}

// processNextRequest pulls the next request from the queue and processes it
func (w *Worker) processNextRequest() error {
	req, err := w.queue.BlockingDequeueRequest(w.ctx, w.pollTimeout)
	if err != nil {
		return fmt.Errorf("failed to dequeue request: %w", err)
	}
	if req == nil {
		// timeout or shutdown
		return nil
	}

	w.log.Info("Received request from queue",
		"worker_id", w.id,
		"request_id", req.RequestID,
		"type", req.Type,
		"scene", req.Scene,
	)

	locked, err := w.acquireSceneLock(req.Scene)
	if err != nil {
		return fmt.Errorf("failed to acquire scene lock: %w", err)
	}
	if !locked {
		// Another worker holds this scene; wait a beat, then re-queue at the end
		w.log.Debug("Scene already locked, re-queueing request",
			"worker_id", w.id,
			"request_id", req.RequestID,
			"scene", req.Scene,
		)
		select {
		case <-w.ctx.Done():
		case <-time.After(w.lockBackoff):
		}

		// the request is already off the queue, so put it back even when stopping
		ctx, cancel := context.WithTimeout(context.Background(), workerTimeout)
		defer cancel()
		if err := w.queue.EnqueueRequest(ctx, req); err != nil {
			return fmt.Errorf("failed to re-queue request: %w", err)
		}
		return nil
	}
	defer w.releaseSceneLock(req.Scene)

	return w.processRequest(req)
}

func (w *Worker) processRequest(req *queuePkg.Request) error {
	start := time.Now()

	results, err := w.processor.Process(w.ctx, req)
	if err != nil {
		return fmt.Errorf("failed to process request %s: %w", req.RequestID, err)
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	w.log.Info("Request processed",
		"worker_id", w.id,
		"request_id", req.RequestID,
		"rule_sets", len(results),
		"failed", failed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func lockKey(scene string) string {
	return "scene-lock:" + scene
}

// acquireSceneLock returns true if the lock was acquired, false if held elsewhere
func (w *Worker) acquireSceneLock(scene string) (bool, error) {
	// not w.ctx: the request is already off the queue and must be settled
	ctx, cancel := context.WithTimeout(context.Background(), workerTimeout)
	defer cancel()
	return w.redisClient.SetNX(ctx, lockKey(scene), w.id, lockTTL).Result()
}

// releaseSceneLock deletes the lock only if this worker still owns it
func (w *Worker) releaseSceneLock(scene string) {
	// not w.ctx: the lock must still be released during shutdown
	if err := releaseScript.Run(context.Background(), w.redisClient, []string{lockKey(scene)}, w.id).Err(); err != nil && err != redis.Nil {
		w.log.Error("Failed to release scene lock", "error", err, "scene", scene)
	}
}
