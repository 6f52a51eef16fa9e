package runner

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jwebster45206/puzzle-engine/pkg/rules"
)

// maxEventLine bounds one SSE data line; evaluated events carry every action
const maxEventLine = 1 << 20

const (
	EventConnected      = "connected"
	EventRulesEvaluated = "rules.evaluated"
	EventRulesFailed    = "rules.failed"
)

// SceneEvent is one SSE message from /v1/events/scenes/{scene}
type SceneEvent struct {
	Type      string                 `json:"type"`
	RequestID string                 `json:"request_id"`
	Scene     string                 `json:"scene"`
	RuleSetID string                 `json:"rule_set_id"`
	Data      map[string]interface{} `json:"data"`
}

// Matches decodes the matches carried by a rules.evaluated event
func (e SceneEvent) Matches() ([]rules.Match, error) {
	raw, ok := e.Data["matches"]
	if !ok || raw == nil {
		return nil, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var matches []rules.Match
	if err := json.Unmarshal(data, &matches); err != nil {
		return nil, fmt.Errorf("failed to decode event matches: %w", err)
	}
	return matches, nil
}

// EventStream reads a scene's Server-Sent Events
type EventStream struct {
	resp   *http.Response
	events chan SceneEvent
	errs   chan error
	done   chan struct{}
	once   sync.Once
}

// SubscribeSceneEvents opens the stream and returns once the server has
// confirmed the subscription, so later publishes are not missed.
func SubscribeSceneEvents(ctx context.Context, client *http.Client, baseURL, scene string) (*EventStream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/v1/events/scenes/"+url.PathEscape(scene), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create events request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	// the stream outlives the client's request timeout
	streamClient := *client
	streamClient.Timeout = 0

	resp, err := streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to open event stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("events endpoint returned %d", resp.StatusCode)
	}

	s := &EventStream{
		resp:   resp,
		events: make(chan SceneEvent, 16),
		errs:   make(chan error, 1),
		done:   make(chan struct{}),
	}
	go s.read()

	select {
	case <-ctx.Done():
		s.Close()
		return nil, ctx.Err()
	case err := <-s.errs:
		s.Close()
		return nil, fmt.Errorf("event stream closed before connecting: %w", err)
	case ev := <-s.events:
		if ev.Type != EventConnected {
			s.Close()
			return nil, fmt.Errorf("expected %s event first, got %s", EventConnected, ev.Type)
		}
	}
	return s, nil
}

func (s *EventStream) read() {
	defer close(s.events)

	scanner := bufio.NewScanner(s.resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventLine)
	var eventType string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			eventType = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			var ev SceneEvent
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
				continue
			}
			if ev.Type == "" {
				ev.Type = eventType
			}
			select {
			case s.events <- ev:
			case <-s.done:
				return
			}
		}
	}
	err := scanner.Err()
	if err == nil {
		err = errors.New("stream ended")
	}
	s.errs <- err
}

// WaitFor returns the first evaluated or failed event for requestID and ruleSetID
func (s *EventStream) WaitFor(ctx context.Context, requestID string, ruleSetID uuid.UUID) (SceneEvent, error) {
	for {
		select {
		case <-ctx.Done():
			return SceneEvent{}, fmt.Errorf("timeout waiting for worker event for request %s: %w", requestID, ctx.Err())
		case ev, ok := <-s.events:
			if !ok {
				return SceneEvent{}, fmt.Errorf("event stream closed waiting for request %s", requestID)
			}
			if ev.RequestID != requestID || ev.RuleSetID != ruleSetID.String() {
				continue
			}
			if ev.Type == EventRulesEvaluated || ev.Type == EventRulesFailed {
				return ev, nil
			}
		}
	}
}

func (s *EventStream) Close() {
	s.once.Do(func() {
		close(s.done)
		_ = s.resp.Body.Close()
	})
}
