package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jwebster45206/puzzle-engine/pkg/storage"
)

// Scene binding operations (Redis-backed)

func bindingKey(scene string) string {
	return bindingKeyPrefix + scene
}

// BindRuleSet marks a rule set for evaluation whenever the scene changes
func (r *RedisStorage) BindRuleSet(ctx context.Context, scene string, id uuid.UUID) error {
	if scene == "" || id == uuid.Nil {
		return errors.New("scene and rule set ID are required")
	}
	if err := r.client.SAdd(ctx, bindingKey(scene), id.String()).Err(); err != nil {
		r.logger.Error("Failed to bind rule set", "scene", scene, "uuid", id, "error", err)
		return fmt.Errorf("failed to bind rule set: %w", err)
	}
	r.logger.Debug("Rule set bound", "scene", scene, "uuid", id)
	return nil
}

func (r *RedisStorage) UnbindRuleSet(ctx context.Context, scene string, id uuid.UUID) error {
	if err := r.client.SRem(ctx, bindingKey(scene), id.String()).Err(); err != nil {
		r.logger.Error("Failed to unbind rule set", "scene", scene, "uuid", id, "error", err)
		return fmt.Errorf("failed to unbind rule set: %w", err)
	}
	return nil
}

func (r *RedisStorage) SceneRuleSets(ctx context.Context, scene string) ([]uuid.UUID, error) {
	members, err := r.client.SMembers(ctx, bindingKey(scene)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list scene rule sets: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(members))
	for _, raw := range members {
		id, err := uuid.Parse(raw)
		if err != nil {
			r.logger.Warn("Skipping malformed scene binding", "scene", scene, "entry", raw, "error", err)
			continue
		}
		ids = append(ids, id)
	}
	storage.SortIDs(ids)
	return ids, nil
}
