package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jwebster45206/puzzle-engine/pkg/rules"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcaster_PublishRulesEvaluated(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	sub := client.Subscribe(ctx, Channel("crypt"))
	defer sub.Close()
	_, err = sub.Receive(ctx)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	b := NewBroadcaster(client, logger)

	id := uuid.New()
	matches := []rules.Match{{BranchIndex: 1, BranchName: "door opens"}}
	require.NoError(t, b.PublishRulesEvaluated(ctx, "crypt", "req-1", id, rules.PolicyFirst, matches))

	msgCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	msg, err := sub.ReceiveMessage(msgCtx)
	require.NoError(t, err)

	var event Event
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &event))
	assert.Equal(t, EventTypeRulesEvaluated, event.Type)
	assert.Equal(t, "req-1", event.RequestID)
	assert.Equal(t, "crypt", event.Scene)
	assert.Equal(t, id.String(), event.RuleSetID)
	assert.Equal(t, "first", event.Data["policy"])
	assert.Equal(t, true, event.Data["matched"])
	assert.Len(t, event.Data["matches"], 1)
}

func TestBroadcaster_PublishRulesFailed(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	sub := client.Subscribe(ctx, Channel("hall"))
	defer sub.Close()
	_, err = sub.Receive(ctx)
	require.NoError(t, err)

	b := NewBroadcaster(client, slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})))
	require.NoError(t, b.PublishRulesFailed(ctx, "hall", "req-2", uuid.Nil, "boom"))

	msgCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	msg, err := sub.ReceiveMessage(msgCtx)
	require.NoError(t, err)

	var event Event
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &event))
	assert.Equal(t, EventTypeRulesFailed, event.Type)
	assert.Empty(t, event.RuleSetID)
	assert.Equal(t, "boom", event.Data["error"])
}
