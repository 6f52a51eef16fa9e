package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
)

// Key identifies one tracked variable on one entity
type Key struct {
	EntityID string
	Variable string
}

func (k Key) String() string { return k.EntityID + "/" + k.Variable }

// Snapshot is an immutable point-in-time mapping of tracked variables to
// their values. Nothing in this package mutates a Snapshot once built.
type Snapshot struct {
	values map[Key]Value
}

// New copies values into a new Snapshot
func New(values map[Key]Value) *Snapshot {
	copied := make(map[Key]Value, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return &Snapshot{values: copied}
}

// Empty returns a snapshot with no observations
func Empty() *Snapshot {
	return &Snapshot{values: map[Key]Value{}}
}

// Lookup returns the value observed for entity/variable
func (s *Snapshot) Lookup(entityID, variable string) (Value, bool) {
	if s == nil {
		return Value{}, false
	}
	v, ok := s.values[Key{EntityID: entityID, Variable: variable}]
	return v, ok
}

func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.values)
}

// Keys returns every key ordered by entity then variable
func (s *Snapshot) Keys() []Key {
	if s == nil {
		return nil
	}
	keys := make([]Key, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].EntityID != keys[j].EntityID {
			return keys[i].EntityID < keys[j].EntityID
		}
		return keys[i].Variable < keys[j].Variable
	})
	return keys
}

// With returns a copy of s with key set to value. s itself is unchanged.
func (s *Snapshot) With(key Key, value Value) *Snapshot {
	var next *Snapshot
	if s == nil {
		next = Empty()
	} else {
		next = New(s.values)
	}
	next.values[key] = value
	return next
}

// Entities returns the nested entity -> variable -> value form used on the wire
func (s *Snapshot) Entities() map[string]map[string]Value {
	out := make(map[string]map[string]Value)
	if s == nil {
		return out
	}
	for k, v := range s.values {
		vars, ok := out[k.EntityID]
		if !ok {
			vars = make(map[string]Value)
			out[k.EntityID] = vars
		}
		vars[k.Variable] = v
	}
	return out
}

// FromEntities builds a snapshot from the nested wire form
func FromEntities(entities map[string]map[string]Value) *Snapshot {
	values := make(map[Key]Value)
	for entityID, vars := range entities {
		for name, v := range vars {
			values[Key{EntityID: entityID, Variable: name}] = v
		}
	}
	return &Snapshot{values: values}
}

func (s *Snapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Entities())
}

func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var entities map[string]map[string]Value
	if err := json.Unmarshal(data, &entities); err != nil {
		return fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	s.values = FromEntities(entities).values
	return nil
}

func (s *Snapshot) MarshalYAML() (interface{}, error) {
	return s.Entities(), nil
}

func (s *Snapshot) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var entities map[string]map[string]Value
	if err := unmarshal(&entities); err != nil {
		return fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	s.values = FromEntities(entities).values
	return nil
}

// Builder accumulates observations before producing an immutable Snapshot
type Builder struct {
	values map[Key]Value
}

func NewBuilder() *Builder {
	return &Builder{values: make(map[Key]Value)}
}

// Set records a value; a later Set for the same key wins
func (b *Builder) Set(entityID, variable string, v Value) *Builder {
	b.values[Key{EntityID: entityID, Variable: variable}] = v
	return b
}

func (b *Builder) SetString(entityID, variable, v string) *Builder {
	return b.Set(entityID, variable, String(v))
}

func (b *Builder) SetBool(entityID, variable string, v bool) *Builder {
	return b.Set(entityID, variable, Bool(v))
}

func (b *Builder) SetNumber(entityID, variable string, v float64) *Builder {
	return b.Set(entityID, variable, Number(v))
}

// Build returns a Snapshot. The builder may keep being used afterwards
// without affecting snapshots it already produced.
func (b *Builder) Build() *Snapshot {
	return New(b.values)
}

// Observation is one variable reading reported by a Source
type Observation struct {
	EntityID string
	Variable string
	Value    Value
}

// Source reports the live state of tracked entities
type Source interface {
	Observe(ctx context.Context) ([]Observation, error)
}

// Capture reads src once and freezes the result. Evaluation always works on
// the captured value, never on the live source.
func Capture(ctx context.Context, src Source) (*Snapshot, error) {
	if src == nil {
		return nil, fmt.Errorf("snapshot source is nil")
	}
	observations, err := src.Observe(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to observe snapshot source: %w", err)
	}
	b := NewBuilder()
	for _, o := range observations {
		b.Set(o.EntityID, o.Variable, o.Value)
	}
	return b.Build(), nil
}
