package storage

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"
	"github.com/jwebster45206/puzzle-engine/pkg/rules"
	"github.com/jwebster45206/puzzle-engine/pkg/snapshot"
)

// ErrNotFound is returned for lookups of resources that do not exist
var ErrNotFound = errors.New("not found")

// RuleSetSummary is the listing form of a stored rule set
type RuleSetSummary struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Branches int       `json:"branches"`
}

// Storage defines a unified interface for all storage operations
// Authored rule sets and scene snapshots live in Redis; rule set files
// shipped with a deployment are read from the data directory.
type Storage interface {
	// Health and lifecycle
	Ping(ctx context.Context) error
	Close() error

	// RuleSet operations (Redis-backed)
	// LoadRuleSet returns nil, nil when the rule set does not exist
	SaveRuleSet(ctx context.Context, rs *rules.RuleSet) error
	LoadRuleSet(ctx context.Context, id uuid.UUID) (*rules.RuleSet, error)
	DeleteRuleSet(ctx context.Context, id uuid.UUID) error
	ListRuleSets(ctx context.Context) ([]RuleSetSummary, error)

	// Snapshot operations (Redis-backed)
	// LoadSnapshot captures the scene's current variables; an unknown scene
	// yields an empty snapshot.
	SaveSnapshot(ctx context.Context, scene string, snap *snapshot.Snapshot) error
	LoadSnapshot(ctx context.Context, scene string) (*snapshot.Snapshot, error)
	SetVariable(ctx context.Context, scene, entityID, variable string, v snapshot.Value) error
	// SetVariables applies every change or none of them
	SetVariables(ctx context.Context, scene string, changes []snapshot.Observation) error

	// Scene bindings (Redis-backed)
	// SceneRuleSets returns the IDs bound to a scene in ascending order
	BindRuleSet(ctx context.Context, scene string, id uuid.UUID) error
	UnbindRuleSet(ctx context.Context, scene string, id uuid.UUID) error
	SceneRuleSets(ctx context.Context, scene string) ([]uuid.UUID, error)

	// RuleSet file operations (filesystem-backed)
	ListRuleSetFiles(ctx context.Context) (map[string]string, error)
	GetRuleSetFile(ctx context.Context, filename string) (*rules.RuleSet, error)
}

// SortSummaries orders summaries by name, then ID
func SortSummaries(s []RuleSetSummary) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].Name != s[j].Name {
			return s[i].Name < s[j].Name
		}
		return s[i].ID.String() < s[j].ID.String()
	})
}

// SortIDs orders rule set IDs by their string form
func SortIDs(ids []uuid.UUID) {
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].String() < ids[j].String()
	})
}
