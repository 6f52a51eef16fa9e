package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const connectTimeout = 5 * time.Second

// Client owns the Redis connection shared by the trigger queue, scene
// event pub/sub and the worker's scene locks.
type Client struct {
	rdb    *redis.Client
	logger *slog.Logger
}

// NewClient connects to redisURL. A DB number in the URL path is honored.
func NewClient(redisURL string, logger *slog.Logger) (*Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	rdb := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("queue redis at %s unreachable: %w", opt.Addr, err)
	}

	logger.Info("Queue client connected", "addr", opt.Addr, "db", opt.DB)
	return &Client{rdb: rdb, logger: logger}, nil
}

// Ping reports whether the queue's Redis still answers
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Redis exposes the connection for pub/sub and locking
func (c *Client) Redis() *redis.Client {
	return c.rdb
}

func (c *Client) Close() error {
	c.logger.Debug("Closing queue client")
	return c.rdb.Close()
}
