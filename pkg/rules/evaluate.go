package rules

import (
	"github.com/jwebster45206/puzzle-engine/pkg/actions"
	"github.com/jwebster45206/puzzle-engine/pkg/snapshot"
)

// BranchMatches folds b's conditions strictly left to right. Each condition
// after the first is combined with the running result using its own
// connector, so [X, OR Y, AND Z] is ((X OR Y) AND Z). There is no grouping.
// A branch without conditions always matches.
func BranchMatches(b Branch, snap *snapshot.Snapshot) bool {
	if len(b.Conditions) == 0 {
		return true
	}

	result := EvaluateCondition(b.Conditions[0], snap)
	for _, c := range b.Conditions[1:] {
		switch c.Connector {
		case Or:
			if result {
				continue
			}
			result = EvaluateCondition(c, snap)
		default:
			if !result {
				continue
			}
			result = EvaluateCondition(c, snap)
		}
	}
	return result
}

// Evaluate returns every branch of rs that matches snap, in declaration
// order. No matches is a valid empty result. Only a nil rule set or
// snapshot is an error. Evaluate has no side effects and is safe to call
// concurrently on shared inputs.
func Evaluate(rs *RuleSet, snap *snapshot.Snapshot) ([]Match, error) {
	if rs == nil {
		return nil, ErrNilRuleSet
	}
	if snap == nil {
		return nil, ErrNilSnapshot
	}

	matches := []Match{}
	for i, b := range rs.Branches {
		if !BranchMatches(b, snap) {
			continue
		}
		matches = append(matches, Match{
			BranchIndex: i,
			BranchName:  b.Name,
			Actions:     append([]actions.Descriptor(nil), b.Actions...),
		})
	}
	return matches, nil
}
