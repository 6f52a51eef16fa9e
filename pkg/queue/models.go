package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/puzzle-engine/pkg/rules"
)

// RequestType identifies the type of request in the queue
type RequestType string

const (
	// RequestTypeSceneChanged evaluates every rule set bound to the scene
	RequestTypeSceneChanged RequestType = "scene_changed"

	// RequestTypeEvaluate evaluates a single rule set against the scene
	RequestTypeEvaluate RequestType = "evaluate"
)

// Request is one evaluation trigger in the queue
type Request struct {
	RequestID string      `json:"request_id"`
	Type      RequestType `json:"type"`
	Scene     string      `json:"scene"`

	// Evaluate-specific fields
	RuleSetID uuid.UUID `json:"rule_set_id"`

	Policy     rules.Policy `json:"policy,omitempty"`
	EnqueuedAt time.Time    `json:"enqueued_at"`
}

// NewSceneChanged builds a trigger for all rule sets bound to scene
func NewSceneChanged(scene string, policy rules.Policy) *Request {
	return &Request{
		RequestID:  uuid.New().String(),
		Type:       RequestTypeSceneChanged,
		Scene:      scene,
		Policy:     policy,
		EnqueuedAt: time.Now(),
	}
}

// NewEvaluate builds a trigger for a single rule set
func NewEvaluate(scene string, ruleSetID uuid.UUID, policy rules.Policy) *Request {
	return &Request{
		RequestID:  uuid.New().String(),
		Type:       RequestTypeEvaluate,
		Scene:      scene,
		RuleSetID:  ruleSetID,
		Policy:     policy,
		EnqueuedAt: time.Now(),
	}
}

// Validate checks the request is processable
func (r *Request) Validate() error {
	if r.RequestID == "" {
		return errors.New("request_id is required")
	}
	if r.Scene == "" {
		return errors.New("scene is required")
	}
	switch r.Type {
	case RequestTypeSceneChanged:
	case RequestTypeEvaluate:
		if r.RuleSetID == uuid.Nil {
			return errors.New("rule_set_id is required for evaluate requests")
		}
	default:
		return fmt.Errorf("unknown request type %q", r.Type)
	}
	if _, err := rules.ParsePolicy(string(r.Policy)); err != nil {
		return err
	}
	return nil
}

// ToJSON converts the request to JSON bytes for Redis
func (r *Request) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}

// FromJSON parses a request from JSON bytes
func FromJSON(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	return &req, nil
}
