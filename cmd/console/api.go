package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/jwebster45206/puzzle-engine/pkg/rules"
	"github.com/jwebster45206/puzzle-engine/pkg/snapshot"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// variableChange matches the PATCH /v1/snapshots/{scene} body
type variableChange struct {
	EntityID string         `json:"entityId"`
	Variable string         `json:"variable"`
	Value    snapshot.Value `json:"value"`
}

type patchSnapshotRequest struct {
	Changes []variableChange `json:"changes"`
}

// apiBackend edits a live scene through the API. Every change is sent as a
// PATCH so the worker re-evaluates the scene's bound rule sets.
type apiBackend struct {
	client    *http.Client
	baseURL   string
	scene     string
	ruleSetID uuid.UUID
}

func testConnection(client *http.Client, baseURL string) bool {
	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()
	return resp.StatusCode == http.StatusOK
}

func (b *apiBackend) Describe() string {
	return fmt.Sprintf("scene %s @ %s", b.scene, b.baseURL)
}

func (b *apiBackend) Load() (*rules.RuleSet, *snapshot.Snapshot, error) {
	var rs rules.RuleSet
	if err := b.get(fmt.Sprintf("/v1/rulesets/%s", b.ruleSetID), &rs); err != nil {
		return nil, nil, fmt.Errorf("failed to get rule set: %w", err)
	}

	var snap snapshot.Snapshot
	if err := b.get("/v1/snapshots/"+url.PathEscape(b.scene), &snap); err != nil {
		return nil, nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return &rs, &snap, nil
}

func (b *apiBackend) Set(key snapshot.Key, v snapshot.Value) error {
	req := patchSnapshotRequest{
		Changes: []variableChange{{EntityID: key.EntityID, Variable: key.Variable, Value: v}},
	}
	return b.send(http.MethodPatch, "/v1/snapshots/"+url.PathEscape(b.scene), req)
}

func (b *apiBackend) Save(snap *snapshot.Snapshot) error {
	return b.send(http.MethodPut, "/v1/snapshots/"+url.PathEscape(b.scene), snap)
}

func (b *apiBackend) get(path string, out interface{}) error {
	resp, err := b.client.Get(b.baseURL + path)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()
	return decodeResponse(resp, out)
}

func (b *apiBackend) send(method, path string, body interface{}) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequest(method, b.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()
	return decodeResponse(resp, nil)
}

func decodeResponse(resp *http.Response, out interface{}) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errorResp ErrorResponse
		if err := json.Unmarshal(body, &errorResp); err != nil || errorResp.Error == "" {
			return fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
		}
		return fmt.Errorf("API error: %s", errorResp.Error)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
