package rules

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/jwebster45206/puzzle-engine/pkg/actions"
)

// NewRuleSet returns an empty rule set with a fresh ID
func NewRuleSet(name string) *RuleSet {
	return &RuleSet{ID: uuid.New(), Name: name, Branches: []Branch{}}
}

// AddBranch appends an empty branch and returns a pointer to it.
// The pointer is only valid until the next structural change to rs.
func (rs *RuleSet) AddBranch(name string) *Branch {
	rs.Branches = append(rs.Branches, Branch{Name: name, Conditions: []Condition{}, Actions: []actions.Descriptor{}})
	return &rs.Branches[len(rs.Branches)-1]
}

func (rs *RuleSet) RemoveBranch(i int) error {
	if i < 0 || i >= len(rs.Branches) {
		return fmt.Errorf("remove branch %d: %w", i, ErrIndexOutOfRange)
	}
	rs.Branches = append(rs.Branches[:i], rs.Branches[i+1:]...)
	return nil
}

// MoveBranch moves the branch at from to position to, shifting the others
func (rs *RuleSet) MoveBranch(from, to int) error {
	n := len(rs.Branches)
	if from < 0 || from >= n || to < 0 || to >= n {
		return fmt.Errorf("move branch %d to %d: %w", from, to, ErrIndexOutOfRange)
	}
	if from == to {
		return nil
	}
	b := rs.Branches[from]
	rest := append(rs.Branches[:from:from], rs.Branches[from+1:]...)
	rs.Branches = append(rest[:to:to], append([]Branch{b}, rest[to:]...)...)
	return nil
}

func (b *Branch) AddCondition(c Condition) {
	b.Conditions = append(b.Conditions, c)
}

func (b *Branch) RemoveCondition(i int) error {
	if i < 0 || i >= len(b.Conditions) {
		return fmt.Errorf("remove condition %d: %w", i, ErrIndexOutOfRange)
	}
	b.Conditions = append(b.Conditions[:i], b.Conditions[i+1:]...)
	return nil
}

func (b *Branch) AddAction(d actions.Descriptor) {
	b.Actions = append(b.Actions, d)
}

func (b *Branch) RemoveAction(i int) error {
	if i < 0 || i >= len(b.Actions) {
		return fmt.Errorf("remove action %d: %w", i, ErrIndexOutOfRange)
	}
	b.Actions = append(b.Actions[:i], b.Actions[i+1:]...)
	return nil
}

// Clone returns a deep copy so callers can edit without touching rs
func (rs *RuleSet) Clone() *RuleSet {
	if rs == nil {
		return nil
	}
	out := &RuleSet{ID: rs.ID, Name: rs.Name, Branches: make([]Branch, len(rs.Branches))}
	for i, b := range rs.Branches {
		out.Branches[i] = Branch{
			Name:       b.Name,
			Conditions: append([]Condition{}, b.Conditions...),
			Actions:    append([]actions.Descriptor{}, b.Actions...),
		}
	}
	return out
}
