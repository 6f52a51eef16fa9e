package rules

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/jwebster45206/puzzle-engine/pkg/actions"
	"github.com/jwebster45206/puzzle-engine/pkg/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestIsSwitchLike(t *testing.T) {
	tests := []struct {
		value    string
		expected bool
	}{
		{"ON", true},
		{"OFF", true},
		{"on", false},
		{"Off", false},
		{"5", false},
		{"", false},
		{"true", false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			if got := IsSwitchLike(tt.value); got != tt.expected {
				t.Errorf("IsSwitchLike(%q) = %v, expected %v", tt.value, got, tt.expected)
			}
		})
	}
}

func TestFlipSwitch(t *testing.T) {
	assert.Equal(t, SwitchOff, FlipSwitch(SwitchOn))
	assert.Equal(t, SwitchOn, FlipSwitch(SwitchOff))
	assert.Equal(t, "maybe", FlipSwitch("maybe"))
}

func TestDraftCondition(t *testing.T) {
	snap := snapshot.NewBuilder().
		SetString("lever", "position", "OFF").
		SetBool("plate", "pressed", true).
		SetNumber("dial", "value", 7).
		Build()

	c := DraftCondition(snap, "lever", "position")
	assert.Equal(t, "OFF", c.Value)
	assert.Equal(t, OpEquals, c.Operator)
	assert.Equal(t, And, c.Connector)

	c = DraftCondition(snap, "plate", "pressed")
	assert.Equal(t, "true", c.Value)

	c = DraftCondition(snap, "dial", "value")
	assert.Equal(t, "", c.Value, "free-form values are left for the author")

	c = DraftCondition(snap, "ghost", "value")
	assert.Equal(t, "ghost", c.EntityID)
	assert.Equal(t, "", c.Value)
}

func TestRuleSet_BranchEditing(t *testing.T) {
	rs := NewRuleSet("altar")
	assert.NotEqual(t, uuid.Nil, rs.ID)

	b := rs.AddBranch("lit")
	b.AddCondition(cond("brazier", "lit", OpEquals, "true", And))
	b.AddCondition(cond("brazier2", "lit", OpEquals, "true", And))
	require.NoError(t, b.RemoveCondition(0))
	assert.Equal(t, "brazier2", rs.Branches[0].Conditions[0].EntityID)

	d, err := actions.NewDoorChange(actions.DoorChange{Target: actions.Target{ID: "w"}, State: actions.DoorOpen})
	require.NoError(t, err)
	rs.Branches[0].AddAction(d)
	assert.Len(t, rs.Branches[0].Actions, 1)
	require.NoError(t, rs.Branches[0].RemoveAction(0))
	assert.Empty(t, rs.Branches[0].Actions)

	assert.ErrorIs(t, rs.Branches[0].RemoveAction(0), ErrIndexOutOfRange)
	assert.ErrorIs(t, rs.Branches[0].RemoveCondition(5), ErrIndexOutOfRange)

	rs.AddBranch("b")
	rs.AddBranch("c")
	require.NoError(t, rs.MoveBranch(2, 0))
	assert.Equal(t, []string{"c", "lit", "b"}, branchNames(rs))
	require.NoError(t, rs.MoveBranch(0, 2))
	assert.Equal(t, []string{"lit", "b", "c"}, branchNames(rs))
	assert.ErrorIs(t, rs.MoveBranch(0, 3), ErrIndexOutOfRange)

	require.NoError(t, rs.RemoveBranch(1))
	assert.Equal(t, []string{"lit", "c"}, branchNames(rs))
	assert.ErrorIs(t, rs.RemoveBranch(-1), ErrIndexOutOfRange)
}

func TestRuleSet_Clone(t *testing.T) {
	rs := NewRuleSet("orig")
	rs.AddBranch("a").AddCondition(cond("e", "v", OpEquals, "1", And))

	clone := rs.Clone()
	clone.Branches[0].Conditions[0].Value = "2"
	clone.AddBranch("b")

	assert.Equal(t, "1", rs.Branches[0].Conditions[0].Value)
	assert.Len(t, rs.Branches, 1)
	assert.Equal(t, rs.ID, clone.ID)
}

func branchNames(rs *RuleSet) []string {
	names := make([]string, 0, len(rs.Branches))
	for _, b := range rs.Branches {
		names = append(names, b.Name)
	}
	return names
}

func TestRuleSet_Decode(t *testing.T) {
	jsonSrc := []byte(`{
		"name": "gate",
		"branches": [{
			"name": "open",
			"conditions": [
				{"entityId": "t1", "variable": "switch_1", "operator": "EQUALS", "value": "ON"},
				{"entityId": "t1", "variable": "count", "operator": ">=", "value": "3", "connector": "or"}
			],
			"actions": [{"kind": "doorChange", "doorChange": {"target": {"id": "wall-1"}, "state": "open"}}]
		}]
	}`)

	var rs RuleSet
	require.NoError(t, json.Unmarshal(jsonSrc, &rs))
	require.Len(t, rs.Branches, 1)
	conds := rs.Branches[0].Conditions
	assert.Equal(t, OpEquals, conds[0].Operator)
	assert.Equal(t, Connector(""), conds[0].Connector)
	assert.Equal(t, OpGreaterThanOrEqual, conds[1].Operator)
	assert.Equal(t, Or, conds[1].Connector)

	yamlSrc := []byte(`name: gate
branches:
  - name: open
    conditions:
      - entityId: t1
        variable: switch_1
        operator: NOT_EQUALS
        value: "OFF"
    actions:
      - kind: tileChange
        tileChange:
          target: {id: tile-1}
          activation: toggle
          trigger: true
          visibility: show
`)
	var fromYAML RuleSet
	require.NoError(t, yaml.Unmarshal(yamlSrc, &fromYAML))
	require.Len(t, fromYAML.Branches, 1)
	assert.Equal(t, OpNotEquals, fromYAML.Branches[0].Conditions[0].Operator)
	assert.Equal(t, actions.KindTileChange, fromYAML.Branches[0].Actions[0].Kind())

	var bad RuleSet
	err := json.Unmarshal([]byte(`{"branches":[{"conditions":[{"operator":"LIKE"}]}]}`), &bad)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	door, err := actions.NewDoorChange(actions.DoorChange{Target: actions.Target{ID: "w"}, State: actions.DoorClosed})
	require.NoError(t, err)

	rs := &RuleSet{Branches: []Branch{
		{
			Name: "broken",
			Conditions: []Condition{
				{EntityID: "", Variable: "v", Operator: OpEquals, Value: "1"},
				{EntityID: "e", Variable: "", Operator: "LIKE", Value: "1", Connector: "XOR"},
				{EntityID: "e", Variable: "n", Operator: OpGreaterThan, Value: "many", Connector: And},
			},
			Actions: []actions.Descriptor{door},
		},
		{Name: "", Actions: []actions.Descriptor{door}},
		{Name: "after default"},
	}}

	report := Validate(rs)
	assert.True(t, report.HasErrors())

	codes := map[string]int{}
	for _, issue := range report.Issues {
		codes[issue.Code]++
	}
	assert.Equal(t, 1, codes[CodeMissingEntity])
	assert.Equal(t, 1, codes[CodeMissingVariable])
	assert.Equal(t, 1, codes[CodeUnknownOperator])
	assert.Equal(t, 1, codes[CodeUnknownConnector])
	assert.Equal(t, 1, codes[CodeNonNumericOrder])
	assert.Equal(t, 1, codes[CodeUnnamedBranch])
	assert.Equal(t, 1, codes[CodeUnreachableBranch])
	assert.Equal(t, 1, codes[CodeNoActions])
	assert.Zero(t, codes[CodeUnknownReference], "no snapshot, no reference checks")

	assert.True(t, Validate(nil).HasErrors())
}

func TestValidateAgainst(t *testing.T) {
	rs := &RuleSet{Branches: []Branch{{
		Name: "gate",
		Conditions: []Condition{
			cond("t1", "switch_1", OpEquals, "ON", And),
			cond("t1", "switch_9", OpEquals, "ON", Or),
		},
	}}}
	snap := snapshot.NewBuilder().SetString("t1", "switch_1", "OFF").Build()

	report := ValidateAgainst(rs, snap)
	assert.False(t, report.HasErrors())

	var refs []Issue
	for _, issue := range report.Issues {
		if issue.Code == CodeUnknownReference {
			refs = append(refs, issue)
		}
	}
	require.Len(t, refs, 1)
	assert.Equal(t, 0, refs[0].Branch)
	assert.Equal(t, 1, refs[0].Condition)
}
