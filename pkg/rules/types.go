// Package rules is the branch rule model behind "check state" puzzle gates.
//
// A RuleSet is an ordered list of Branches. Each Branch holds a flat list of
// Conditions joined by AND/OR connectors and the actions to emit when it
// matches. Evaluate runs every branch against an immutable snapshot and
// returns the matching branches in declaration order. It never dispatches
// anything itself.
package rules

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jwebster45206/puzzle-engine/pkg/actions"
)

var (
	ErrNilRuleSet      = errors.New("rule set is nil")
	ErrNilSnapshot     = errors.New("snapshot is nil")
	ErrIndexOutOfRange = errors.New("index out of range")
)

type Operator string

const (
	OpEquals             Operator = "EQUALS"
	OpNotEquals          Operator = "NOT_EQUALS"
	OpGreaterThan        Operator = "GREATER_THAN"
	OpLessThan           Operator = "LESS_THAN"
	OpGreaterThanOrEqual Operator = "GREATER_THAN_OR_EQUAL"
	OpLessThanOrEqual    Operator = "LESS_THAN_OR_EQUAL"
)

// Operators lists every operator in display order
var Operators = []Operator{
	OpEquals, OpNotEquals, OpGreaterThan, OpLessThan, OpGreaterThanOrEqual, OpLessThanOrEqual,
}

func (o Operator) Valid() bool {
	for _, known := range Operators {
		if o == known {
			return true
		}
	}
	return false
}

// Ordering reports whether o needs numeric operands
func (o Operator) Ordering() bool {
	switch o {
	case OpGreaterThan, OpLessThan, OpGreaterThanOrEqual, OpLessThanOrEqual:
		return true
	}
	return false
}

// Symbol is the compact form used in traces and the CLI
func (o Operator) Symbol() string {
	switch o {
	case OpEquals:
		return "=="
	case OpNotEquals:
		return "!="
	case OpGreaterThan:
		return ">"
	case OpLessThan:
		return "<"
	case OpGreaterThanOrEqual:
		return ">="
	case OpLessThanOrEqual:
		return "<="
	default:
		return string(o)
	}
}

// ParseOperator accepts the canonical names (any case) or their symbols
func ParseOperator(s string) (Operator, error) {
	trimmed := strings.TrimSpace(s)
	for _, op := range Operators {
		if strings.EqualFold(trimmed, string(op)) || trimmed == op.Symbol() {
			return op, nil
		}
	}
	return "", fmt.Errorf("unknown operator %q", s)
}

func (o *Operator) UnmarshalText(text []byte) error {
	op, err := ParseOperator(string(text))
	if err != nil {
		return err
	}
	*o = op
	return nil
}

// Connector joins a condition to the one before it in its branch
type Connector string

const (
	And Connector = "AND"
	Or  Connector = "OR"
)

func (c Connector) Valid() bool {
	return c == And || c == Or
}

func ParseConnector(s string) (Connector, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "AND", "&&":
		return And, nil
	case "OR", "||":
		return Or, nil
	default:
		return "", fmt.Errorf("unknown connector %q", s)
	}
}

func (c *Connector) UnmarshalText(text []byte) error {
	// An omitted connector is AND; the first condition's is ignored anyway.
	if len(text) == 0 {
		*c = And
		return nil
	}
	parsed, err := ParseConnector(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Condition compares one snapshot entry against a literal
type Condition struct {
	EntityID  string    `json:"entityId" yaml:"entityId"`
	Variable  string    `json:"variable" yaml:"variable"`
	Operator  Operator  `json:"operator" yaml:"operator"`
	Value     string    `json:"value" yaml:"value"`
	Connector Connector `json:"connector,omitempty" yaml:"connector,omitempty"`
}

func (c Condition) String() string {
	return fmt.Sprintf("%s.%s %s %q", c.EntityID, c.Variable, c.Operator.Symbol(), c.Value)
}

// Branch is a named rule. Empty Conditions make it an unconditional default.
type Branch struct {
	Name       string               `json:"name" yaml:"name"`
	Conditions []Condition          `json:"conditions" yaml:"conditions"`
	Actions    []actions.Descriptor `json:"actions" yaml:"actions"`
}

// RuleSet owns its branches; order is evaluation and output order
type RuleSet struct {
	ID       uuid.UUID `json:"id" yaml:"id"`
	Name     string    `json:"name" yaml:"name"`
	Branches []Branch  `json:"branches" yaml:"branches"`
}

// Match is one matching branch and the actions it emits
type Match struct {
	BranchIndex int                  `json:"branchIndex"`
	BranchName  string               `json:"branchName"`
	Actions     []actions.Descriptor `json:"actions"`
}
