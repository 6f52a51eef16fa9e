package render

import (
	"strings"
	"testing"

	"github.com/jwebster45206/puzzle-engine/pkg/actions"
	"github.com/jwebster45206/puzzle-engine/pkg/rules"
	"github.com/jwebster45206/puzzle-engine/pkg/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTitle(t *testing.T) {
	assert.Equal(t, "Vault Gate", Title("vault gate"))
	assert.Equal(t, "Untitled", Title(""))
	assert.Equal(t, "ON Gate", Title("ON gate"))
	assert.Equal(t, "Lever OFF", Title("lever OFF"))
}

func TestMatches(t *testing.T) {
	door, err := actions.NewDoorChange(actions.DoorChange{Target: actions.Target{ID: "d1", Name: "Crypt Door"}, State: actions.DoorLocked})
	require.NoError(t, err)

	rs := &rules.RuleSet{Name: "crypt"}
	out := Matches(rs, []rules.Match{
		{BranchIndex: 0, BranchName: "lock up", Actions: []actions.Descriptor{door}},
		{BranchIndex: 2, BranchName: "quiet"},
	}, 80)

	assert.Contains(t, out, "Crypt")
	assert.Contains(t, out, "[0] lock up")
	assert.Contains(t, out, "- door Crypt Door -> locked")
	assert.Contains(t, out, "[2] quiet")
	assert.Contains(t, out, "(no actions)")
	assert.Less(t, strings.Index(out, "lock up"), strings.Index(out, "quiet"))

	assert.Contains(t, Matches(rs, nil, 80), "no branch matches")
}

func TestMatches_Wraps(t *testing.T) {
	long := strings.Repeat("word ", 30)
	out := Matches(nil, []rules.Match{{BranchName: long}}, 40)
	for _, line := range strings.Split(strings.TrimRight(out, "\n"), "\n") {
		assert.LessOrEqual(t, len(strings.TrimRight(line, " ")), 40, line)
	}
}

func TestTraces(t *testing.T) {
	rs := &rules.RuleSet{Branches: []rules.Branch{
		{Name: "both", Conditions: []rules.Condition{
			{EntityID: "a", Variable: "x", Operator: rules.OpEquals, Value: "1"},
			{EntityID: "b", Variable: "y", Operator: rules.OpEquals, Value: "2", Connector: rules.Or},
		}},
		{Name: "default"},
	}}
	snap := snapshot.NewBuilder().SetNumber("a", "x", 1).Build()
	traces, err := rules.Explain(rs, snap)
	require.NoError(t, err)

	out := Traces(traces, 100)
	assert.Contains(t, out, "✓ [0] both")
	assert.Contains(t, out, `a.x == "1" (actual "1") -> true`)
	assert.Contains(t, out, `OR b.y == "2" (actual missing) -> false, running true`)
	assert.Contains(t, out, "unconditional")
}

func TestReport(t *testing.T) {
	assert.Contains(t, Report(rules.Report{}, 80), "No issues found.")

	out := Report(rules.Report{Issues: []rules.Issue{
		{Severity: rules.SeverityWarn, Code: rules.CodeNoActions, Message: "b has no actions"},
		{Severity: rules.SeverityError, Code: rules.CodeUnknownOperator, Message: "bad op"},
	}}, 80)
	assert.Contains(t, out, "Errors (1):")
	assert.Contains(t, out, "Warnings (1):")
	assert.Less(t, strings.Index(out, "Errors"), strings.Index(out, "Warnings"))
	assert.Contains(t, out, "[unknown_operator] bad op")
}
