package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jwebster45206/puzzle-engine/pkg/rules"
	"github.com/jwebster45206/puzzle-engine/pkg/snapshot"
)

// MockStorage is a mock implementation of Storage for testing
type MockStorage struct {
	mu         sync.RWMutex
	ruleSets   map[uuid.UUID]*rules.RuleSet
	snapshots  map[string]*snapshot.Snapshot
	files      map[string]*rules.RuleSet
	bindings   map[string]map[uuid.UUID]struct{}
	pingError  error
	writeError error
}

// Ensure MockStorage implements Storage interface
var _ Storage = (*MockStorage)(nil)

// NewMockStorage creates a new mock storage
func NewMockStorage() *MockStorage {
	return &MockStorage{
		ruleSets:  make(map[uuid.UUID]*rules.RuleSet),
		snapshots: make(map[string]*snapshot.Snapshot),
		files:     make(map[string]*rules.RuleSet),
		bindings:  make(map[string]map[uuid.UUID]struct{}),
	}
}

// SetPingSuccess configures the mock to succeed on ping
func (m *MockStorage) SetPingSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = nil
}

// SetPingError configures the mock to fail on ping with the given error
func (m *MockStorage) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = err
}

// SetWriteError makes variable writes fail with err until cleared with nil
func (m *MockStorage) SetWriteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeError = err
}

func (m *MockStorage) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pingError
}

func (m *MockStorage) Close() error {
	return nil
}

// SaveRuleSet stores a deep copy so later edits by the caller are not visible
func (m *MockStorage) SaveRuleSet(ctx context.Context, rs *rules.RuleSet) error {
	if rs == nil {
		return errors.New("rule set cannot be nil")
	}
	if rs.ID == uuid.Nil {
		return errors.New("rule set ID is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ruleSets[rs.ID] = rs.Clone()
	return nil
}

func (m *MockStorage) LoadRuleSet(ctx context.Context, id uuid.UUID) (*rules.RuleSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rs, ok := m.ruleSets[id]
	if !ok {
		return nil, nil
	}
	return rs.Clone(), nil
}

func (m *MockStorage) DeleteRuleSet(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.ruleSets, id)
	return nil
}

func (m *MockStorage) ListRuleSets(ctx context.Context) ([]RuleSetSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RuleSetSummary, 0, len(m.ruleSets))
	for _, rs := range m.ruleSets {
		out = append(out, RuleSetSummary{ID: rs.ID, Name: rs.Name, Branches: len(rs.Branches)})
	}
	SortSummaries(out)
	return out, nil
}

func (m *MockStorage) SaveSnapshot(ctx context.Context, scene string, snap *snapshot.Snapshot) error {
	if snap == nil {
		return errors.New("snapshot cannot be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[scene] = snap
	return nil
}

func (m *MockStorage) LoadSnapshot(ctx context.Context, scene string) (*snapshot.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, ok := m.snapshots[scene]
	if !ok {
		return snapshot.Empty(), nil
	}
	return snap, nil
}

func (m *MockStorage) SetVariable(ctx context.Context, scene, entityID, variable string, v snapshot.Value) error {
	return m.SetVariables(ctx, scene, []snapshot.Observation{{EntityID: entityID, Variable: variable, Value: v}})
}

func (m *MockStorage) SetVariables(ctx context.Context, scene string, changes []snapshot.Observation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeError != nil {
		return m.writeError
	}
	current, ok := m.snapshots[scene]
	if !ok {
		current = snapshot.Empty()
	}
	for _, c := range changes {
		if c.EntityID == "" || c.Variable == "" {
			return errors.New("entity and variable are required")
		}
		current = current.With(snapshot.Key{EntityID: c.EntityID, Variable: c.Variable}, c.Value)
	}
	m.snapshots[scene] = current
	return nil
}

func (m *MockStorage) BindRuleSet(ctx context.Context, scene string, id uuid.UUID) error {
	if scene == "" || id == uuid.Nil {
		return errors.New("scene and rule set ID are required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.bindings[scene] == nil {
		m.bindings[scene] = make(map[uuid.UUID]struct{})
	}
	m.bindings[scene][id] = struct{}{}
	return nil
}

func (m *MockStorage) UnbindRuleSet(ctx context.Context, scene string, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.bindings[scene], id)
	return nil
}

func (m *MockStorage) SceneRuleSets(ctx context.Context, scene string) ([]uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]uuid.UUID, 0, len(m.bindings[scene]))
	for id := range m.bindings[scene] {
		ids = append(ids, id)
	}
	SortIDs(ids)
	return ids, nil
}

// AddRuleSetFile registers a rule set as if it were a file in the data directory
func (m *MockStorage) AddRuleSetFile(filename string, rs *rules.RuleSet) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[filename] = rs
}

func (m *MockStorage) ListRuleSetFiles(ctx context.Context) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.files))
	for filename, rs := range m.files {
		out[rs.Name] = filename
	}
	return out, nil
}

func (m *MockStorage) GetRuleSetFile(ctx context.Context, filename string) (*rules.RuleSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rs, ok := m.files[filename]
	if !ok {
		return nil, fmt.Errorf("rule set file %s: %w", filename, ErrNotFound)
	}
	return rs.Clone(), nil
}
