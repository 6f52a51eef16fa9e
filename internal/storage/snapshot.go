package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/jwebster45206/puzzle-engine/pkg/snapshot"
	"github.com/redis/go-redis/v9"
)

// Snapshot operations (Redis-backed)
//
// A scene's variables live in one hash, snapshot:<scene>, with one field per
// entity/variable pair. Both halves of the field are path-escaped so either
// may contain a slash. Values are stored as JSON scalars to keep their kind.

func snapshotKey(scene string) string {
	return snapshotKeyPrefix + scene
}

func fieldFor(entityID, variable string) string {
	return url.PathEscape(entityID) + "/" + url.PathEscape(variable)
}

func parseField(field string) (string, string, error) {
	entityPart, variablePart, ok := strings.Cut(field, "/")
	if !ok {
		return "", "", fmt.Errorf("malformed snapshot field %q", field)
	}
	entityID, err := url.PathUnescape(entityPart)
	if err != nil {
		return "", "", fmt.Errorf("unescaping entity: %w", err)
	}
	variable, err := url.PathUnescape(variablePart)
	if err != nil {
		return "", "", fmt.Errorf("unescaping variable: %w", err)
	}
	return entityID, variable, nil
}

// SaveSnapshot replaces the scene's stored variables with snap
func (r *RedisStorage) SaveSnapshot(ctx context.Context, scene string, snap *snapshot.Snapshot) error {
	if snap == nil {
		return errors.New("snapshot cannot be nil")
	}
	if scene == "" {
		return errors.New("scene is required")
	}

	fields := make(map[string]interface{}, snap.Len())
	for _, k := range snap.Keys() {
		v, _ := snap.Lookup(k.EntityID, k.Variable)
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to marshal snapshot value %s: %w", k, err)
		}
		fields[fieldFor(k.EntityID, k.Variable)] = string(data)
	}

	key := snapshotKey(scene)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(fields) > 0 {
			pipe.HSet(ctx, key, fields)
		}
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to save snapshot", "scene", scene, "error", err)
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	r.logger.Debug("Snapshot saved", "scene", scene, "variables", len(fields))
	return nil
}

// LoadSnapshot captures the scene's variables as an immutable snapshot
func (r *RedisStorage) LoadSnapshot(ctx context.Context, scene string) (*snapshot.Snapshot, error) {
	return snapshot.Capture(ctx, r.SceneSource(scene))
}

// SetVariable updates a single variable in place
func (r *RedisStorage) SetVariable(ctx context.Context, scene, entityID, variable string, v snapshot.Value) error {
	return r.SetVariables(ctx, scene, []snapshot.Observation{{EntityID: entityID, Variable: variable, Value: v}})
}

// SetVariables writes all changes with one HSET so a failure leaves the
// scene untouched
func (r *RedisStorage) SetVariables(ctx context.Context, scene string, changes []snapshot.Observation) error {
	if scene == "" {
		return errors.New("scene is required")
	}
	if len(changes) == 0 {
		return nil
	}

	fields := make(map[string]interface{}, len(changes))
	for _, c := range changes {
		if c.EntityID == "" || c.Variable == "" {
			return errors.New("entity and variable are required")
		}
		data, err := json.Marshal(c.Value)
		if err != nil {
			return fmt.Errorf("failed to marshal snapshot value: %w", err)
		}
		fields[fieldFor(c.EntityID, c.Variable)] = string(data)
	}

	if err := r.client.HSet(ctx, snapshotKey(scene), fields).Err(); err != nil {
		r.logger.Error("Failed to set variables", "scene", scene, "changes", len(changes), "error", err)
		return fmt.Errorf("failed to set variables: %w", err)
	}
	return nil
}

// SceneSource returns a snapshot.Source reading the scene's stored variables
func (r *RedisStorage) SceneSource(scene string) snapshot.Source {
	return &sceneSource{storage: r, scene: scene}
}

type sceneSource struct {
	storage *RedisStorage
	scene   string
}

func (s *sceneSource) Observe(ctx context.Context) ([]snapshot.Observation, error) {
	raw, err := s.storage.client.HGetAll(ctx, snapshotKey(s.scene)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read scene %s: %w", s.scene, err)
	}

	observations := make([]snapshot.Observation, 0, len(raw))
	for field, encoded := range raw {
		entityID, variable, err := parseField(field)
		if err != nil {
			s.storage.logger.Warn("Skipping malformed snapshot field", "scene", s.scene, "field", field, "error", err)
			continue
		}
		var v snapshot.Value
		if err := json.Unmarshal([]byte(encoded), &v); err != nil {
			s.storage.logger.Warn("Skipping malformed snapshot value", "scene", s.scene, "field", field, "error", err)
			continue
		}
		observations = append(observations, snapshot.Observation{EntityID: entityID, Variable: variable, Value: v})
	}
	return observations, nil
}
