package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jwebster45206/puzzle-engine/pkg/rules"
	"github.com/redis/go-redis/v9"
)

// EventType represents the type of event being broadcast
type EventType string

const (
	EventTypeRequestQueued  EventType = "request.queued"
	EventTypeRulesEvaluated EventType = "rules.evaluated"
	EventTypeRulesFailed    EventType = "rules.failed"
)

// Event is the payload published on a scene channel
type Event struct {
	Type      EventType              `json:"type"`
	RequestID string                 `json:"request_id,omitempty"`
	Scene     string                 `json:"scene"`
	RuleSetID string                 `json:"rule_set_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// Channel returns the pub/sub channel for a scene
func Channel(scene string) string {
	return "scene-events:" + scene
}

// Broadcaster publishes events to Redis Pub/Sub for SSE distribution
type Broadcaster struct {
	redisClient *redis.Client
	logger      *slog.Logger
}

// NewBroadcaster creates a new event broadcaster
func NewBroadcaster(redisClient *redis.Client, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		redisClient: redisClient,
		logger:      logger,
	}
}

// PublishRequestQueued publishes a request.queued event
func (b *Broadcaster) PublishRequestQueued(ctx context.Context, scene, requestID, requestType string) error {
	event := Event{
		Type:      EventTypeRequestQueued,
		RequestID: requestID,
		Scene:     scene,
		Data: map[string]interface{}{
			"status": "queued",
			"type":   requestType,
		},
	}
	return b.publishToScene(ctx, scene, event)
}

// PublishRulesEvaluated publishes the matches of one rule set, after policy
func (b *Broadcaster) PublishRulesEvaluated(ctx context.Context, scene, requestID string, ruleSetID uuid.UUID, policy rules.Policy, matches []rules.Match) error {
	event := Event{
		Type:      EventTypeRulesEvaluated,
		RequestID: requestID,
		Scene:     scene,
		RuleSetID: ruleSetID.String(),
		Data: map[string]interface{}{
			"policy":  policy,
			"matched": len(matches) > 0,
			"matches": matches,
		},
	}
	return b.publishToScene(ctx, scene, event)
}

// PublishRulesFailed publishes a rules.failed event
func (b *Broadcaster) PublishRulesFailed(ctx context.Context, scene, requestID string, ruleSetID uuid.UUID, errorMsg string) error {
	event := Event{
		Type:      EventTypeRulesFailed,
		RequestID: requestID,
		Scene:     scene,
		Data: map[string]interface{}{
			"status": "failed",
			"error":  errorMsg,
		},
	}
	if ruleSetID != uuid.Nil {
		event.RuleSetID = ruleSetID.String()
	}
	return b.publishToScene(ctx, scene, event)
}

// publishToScene publishes an event to the scene-specific channel
func (b *Broadcaster) publishToScene(ctx context.Context, scene string, event Event) error {
	channel := Channel(scene)

	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("Failed to marshal event", "error", err, "event_type", event.Type)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.redisClient.Publish(ctx, channel, data).Err(); err != nil {
		b.logger.Error("Failed to publish event", "error", err, "channel", channel)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug("Event published",
		"channel", channel,
		"event_type", event.Type,
		"request_id", event.RequestID,
	)

	return nil
}
