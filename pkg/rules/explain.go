package rules

import "github.com/jwebster45206/puzzle-engine/pkg/snapshot"

// ConditionTrace records how one condition contributed to its branch
type ConditionTrace struct {
	Condition Condition `json:"condition"`
	Found     bool      `json:"found"`
	Actual    string    `json:"actual,omitempty"`
	Result    bool      `json:"result"`
	Running   bool      `json:"running"`
}

// BranchTrace is the full left-to-right fold for one branch
type BranchTrace struct {
	BranchIndex int              `json:"branchIndex"`
	BranchName  string           `json:"branchName"`
	Matched     bool             `json:"matched"`
	Conditions  []ConditionTrace `json:"conditions"`
}

// Explain evaluates every condition of every branch without short-circuiting
// and records the running result. Matched always agrees with BranchMatches.
func Explain(rs *RuleSet, snap *snapshot.Snapshot) ([]BranchTrace, error) {
	if rs == nil {
		return nil, ErrNilRuleSet
	}
	if snap == nil {
		return nil, ErrNilSnapshot
	}

	traces := make([]BranchTrace, 0, len(rs.Branches))
	for i, b := range rs.Branches {
		trace := BranchTrace{
			BranchIndex: i,
			BranchName:  b.Name,
			Matched:     true,
			Conditions:  make([]ConditionTrace, 0, len(b.Conditions)),
		}

		for j, c := range b.Conditions {
			actual, found := snap.Lookup(c.EntityID, c.Variable)
			result := EvaluateCondition(c, snap)

			switch {
			case j == 0:
				trace.Matched = result
			case c.Connector == Or:
				trace.Matched = trace.Matched || result
			default:
				trace.Matched = trace.Matched && result
			}

			ct := ConditionTrace{Condition: c, Found: found, Result: result, Running: trace.Matched}
			if found {
				ct.Actual = actual.Text()
			}
			trace.Conditions = append(trace.Conditions, ct)
		}
		traces = append(traces, trace)
	}
	return traces, nil
}
