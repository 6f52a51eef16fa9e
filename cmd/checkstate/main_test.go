package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/jwebster45206/puzzle-engine/pkg/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gateRules = `name: gate
branches:
  - name: lever thrown
    conditions:
      - entityId: lever
        variable: state
        operator: EQUALS
        value: "ON"
    actions:
      - kind: doorChange
        doorChange:
          target: {id: gate, name: Iron Gate}
          state: open
  - name: heavy plate
    conditions:
      - entityId: plate
        variable: weight
        operator: GREATER_THAN
        value: "10"
      - entityId: lever
        variable: state
        operator: EQUALS
        value: "ON"
        connector: OR
    actions:
      - kind: tileChange
        tileChange:
          target: {id: spikes}
          activation: deactivate
          trigger: false
          visibility: hide
`

func writeFixtures(t *testing.T, snapshotJSON string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	rulesPath := filepath.Join(dir, "gate.yaml")
	snapPath := filepath.Join(dir, "scene.json")
	require.NoError(t, os.WriteFile(rulesPath, []byte(gateRules), 0o644))
	require.NoError(t, os.WriteFile(snapPath, []byte(snapshotJSON), 0o644))
	return rulesPath, snapPath
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestEvaluate(t *testing.T) {
	rulesPath, snapPath := writeFixtures(t, `{"lever":{"state":"ON"},"plate":{"weight":3}}`)

	tests := []struct {
		name     string
		policy   string
		branches []string
	}{
		{"all", "all", []string{"lever thrown", "heavy plate"}},
		{"first", "first", []string{"lever thrown"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, "evaluate", "--rules", rulesPath, "--snapshot", snapPath, "--policy", tt.policy, "--json")
			require.NoError(t, err)

			var matches []rules.Match
			require.NoError(t, json.Unmarshal([]byte(out), &matches))
			var names []string
			for _, m := range matches {
				names = append(names, m.BranchName)
			}
			assert.Equal(t, tt.branches, names)
		})
	}
}

func TestEvaluate_Text(t *testing.T) {
	rulesPath, snapPath := writeFixtures(t, `{"lever":{"state":"OFF"},"plate":{"weight":12}}`)

	out, err := run(t, "evaluate", "--rules", rulesPath, "--snapshot", snapPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Gate")
	assert.Contains(t, out, "[1] heavy plate")
	assert.Contains(t, out, "tile spikes: deactivate, hide")
	assert.NotContains(t, out, "lever thrown")
}

func TestEvaluate_Copy(t *testing.T) {
	rulesPath, snapPath := writeFixtures(t, `{"lever":{"state":"ON"}}`)

	var copied string
	orig := writeClipboard
	writeClipboard = func(s string) error { copied = s; return nil }
	defer func() { writeClipboard = orig }()

	_, err := run(t, "evaluate", "--rules", rulesPath, "--snapshot", snapPath, "--copy")
	require.NoError(t, err)

	var matches []rules.Match
	require.NoError(t, json.Unmarshal([]byte(copied), &matches))
	assert.Len(t, matches, 2)
}

func TestEvaluate_Errors(t *testing.T) {
	rulesPath, snapPath := writeFixtures(t, `{"lever":{"state":"ON"}}`)

	_, err := run(t, "evaluate", "--rules", rulesPath, "--snapshot", snapPath, "--policy", "most")
	assert.Error(t, err)

	_, err = run(t, "evaluate", "--rules", rulesPath)
	assert.Error(t, err, "snapshot flag is required")

	_, err = run(t, "evaluate", "--rules", filepath.Join(t.TempDir(), "none.json"), "--snapshot", snapPath)
	assert.Error(t, err)
}

func TestExplain(t *testing.T) {
	rulesPath, snapPath := writeFixtures(t, `{"plate":{"weight":12}}`)

	out, err := run(t, "explain", "--rules", rulesPath, "--snapshot", snapPath)
	require.NoError(t, err)
	assert.Contains(t, out, "✗ [0] lever thrown")
	assert.Contains(t, out, "✓ [1] heavy plate")
	assert.Contains(t, out, "(actual missing)")

	out, err = run(t, "explain", "--rules", rulesPath, "--snapshot", snapPath, "--json")
	require.NoError(t, err)
	var traces []rules.BranchTrace
	require.NoError(t, json.Unmarshal([]byte(out), &traces))
	require.Len(t, traces, 2)
	assert.True(t, traces[1].Matched)
}

func TestValidate(t *testing.T) {
	rulesPath, snapPath := writeFixtures(t, `{"lever":{"state":"ON"}}`)

	out, err := run(t, "validate", rulesPath)
	require.NoError(t, err)
	assert.Contains(t, out, "No issues found.")

	out, err = run(t, "validate", rulesPath, "--snapshot", snapPath)
	require.NoError(t, err, "unknown references are warnings")
	assert.Contains(t, out, "unknown_reference")

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"name":"bad","branches":[{"name":"b","conditions":[{"entityId":"","variable":"v","operator":"EQUALS","value":"1"}],"actions":[]}]}`), 0o644))
	out, err = run(t, "validate", bad)
	assert.Error(t, err)
	assert.Contains(t, out, "missing_entity")
}
