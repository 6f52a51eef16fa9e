package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/puzzle-engine/pkg/rules"
	"github.com/jwebster45206/puzzle-engine/pkg/storage"
	"github.com/redis/go-redis/v9"
)

const (
	ruleSetKeyPrefix  = "ruleset:"
	ruleSetIndexKey   = "rulesets"
	snapshotKeyPrefix = "snapshot:"
	bindingKeyPrefix  = "scene-rulesets:"
)

// RedisStorage implements the Storage interface using Redis for rule sets
// and scene snapshots and the filesystem for shipped rule set files
type RedisStorage struct {
	client  *redis.Client
	logger  *slog.Logger
	dataDir string
}

// Ensure RedisStorage implements Storage interface
var _ storage.Storage = (*RedisStorage)(nil)

// NewRedisStorage creates a new Redis storage instance. redisURL may be a
// bare host:port or a redis:// URL.
func NewRedisStorage(redisURL string, dataDir string, logger *slog.Logger) (*RedisStorage, error) {
	opts := &redis.Options{Addr: redisURL}
	if strings.Contains(redisURL, "://") {
		parsed, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis URL: %w", err)
		}
		opts = parsed
	}

	if dataDir == "" {
		dataDir = "./data"
	}

	return &RedisStorage{
		client:  redis.NewClient(opts),
		logger:  logger,
		dataDir: dataDir,
	}, nil
}

// Health and lifecycle methods

func (r *RedisStorage) Ping(ctx context.Context) error {
	cmd := r.client.Ping(ctx)
	if err := cmd.Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisStorage) Close() error {
	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis connection", "error", err)
		return err
	}
	r.logger.Info("Redis connection closed")
	return nil
}

// WaitForConnection waits for Redis to become available (used during startup)
func (r *RedisStorage) WaitForConnection(ctx context.Context, maxRetries int, retryDelay time.Duration) error {
	for i := 0; i < maxRetries; i++ {
		if err := r.Ping(ctx); err != nil {
			r.logger.Debug("Redis not ready yet", "error", err, "attempt", i+1)

			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled while waiting for redis: %w", ctx.Err())
			case <-time.After(retryDelay):
				continue
			}
		}

		r.logger.Info("Redis connection established")
		return nil
	}

	return fmt.Errorf("redis did not become available after %d attempts", maxRetries)
}

// RuleSet operations (Redis-backed)

func (r *RedisStorage) SaveRuleSet(ctx context.Context, rs *rules.RuleSet) error {
	if rs == nil {
		return errors.New("rule set cannot be nil")
	}
	if rs.ID == uuid.Nil {
		return errors.New("rule set ID is required")
	}

	data, err := json.Marshal(rs)
	if err != nil {
		r.logger.Error("Failed to marshal rule set", "uuid", rs.ID, "error", err)
		return fmt.Errorf("failed to marshal rule set: %w", err)
	}

	key := ruleSetKeyPrefix + rs.ID.String()
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, data, 0)
		pipe.SAdd(ctx, ruleSetIndexKey, rs.ID.String())
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to save rule set", "uuid", rs.ID, "error", err)
		return fmt.Errorf("failed to save rule set: %w", err)
	}

	r.logger.Debug("Rule set saved", "uuid", rs.ID, "branches", len(rs.Branches))
	return nil
}

func (r *RedisStorage) LoadRuleSet(ctx context.Context, id uuid.UUID) (*rules.RuleSet, error) {
	data, err := r.client.Get(ctx, ruleSetKeyPrefix+id.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			r.logger.Warn("Rule set not found", "uuid", id)
			return nil, nil
		}
		r.logger.Error("Failed to load rule set", "uuid", id, "error", err)
		return nil, fmt.Errorf("failed to load rule set: %w", err)
	}

	var rs rules.RuleSet
	if err := json.Unmarshal(data, &rs); err != nil {
		r.logger.Error("Failed to unmarshal rule set", "uuid", id, "error", err)
		return nil, fmt.Errorf("failed to unmarshal rule set: %w", err)
	}
	return &rs, nil
}

func (r *RedisStorage) DeleteRuleSet(ctx context.Context, id uuid.UUID) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, ruleSetKeyPrefix+id.String())
		pipe.SRem(ctx, ruleSetIndexKey, id.String())
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to delete rule set", "uuid", id, "error", err)
		return fmt.Errorf("failed to delete rule set: %w", err)
	}
	return nil
}

func (r *RedisStorage) ListRuleSets(ctx context.Context) ([]storage.RuleSetSummary, error) {
	ids, err := r.client.SMembers(ctx, ruleSetIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list rule sets: %w", err)
	}

	summaries := make([]storage.RuleSetSummary, 0, len(ids))
	for _, raw := range ids {
		id, err := uuid.Parse(raw)
		if err != nil {
			r.logger.Warn("Skipping malformed rule set index entry", "entry", raw, "error", err)
			continue
		}
		rs, err := r.LoadRuleSet(ctx, id)
		if err != nil {
			return nil, err
		}
		if rs == nil {
			// index entry outlived its blob
			continue
		}
		summaries = append(summaries, storage.RuleSetSummary{ID: rs.ID, Name: rs.Name, Branches: len(rs.Branches)})
	}

	storage.SortSummaries(summaries)
	return summaries, nil
}
