package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jwebster45206/puzzle-engine/pkg/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func TestLoadRuleSetFile(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		path := writeTemp(t, "gate.json", `{"name":"gate","branches":[{"name":"open","conditions":[],"actions":[]}]}`)
		rs, err := LoadRuleSetFile(path)
		require.NoError(t, err)
		assert.Equal(t, "gate", rs.Name)
		assert.Len(t, rs.Branches, 1)
	})

	t.Run("json unknown field", func(t *testing.T) {
		path := writeTemp(t, "gate.json", `{"name":"gate","priority":3}`)
		_, err := LoadRuleSetFile(path)
		assert.Error(t, err)
	})

	t.Run("invalid json", func(t *testing.T) {
		path := writeTemp(t, "gate.json", `{"name":`)
		_, err := LoadRuleSetFile(path)
		assert.Error(t, err)
	})

	t.Run("yaml", func(t *testing.T) {
		path := writeTemp(t, "gate.yaml", "name: gate\nbranches:\n  - name: lit\n    conditions:\n      - {entityId: brazier, variable: lit, operator: EQUALS, value: \"true\"}\n")
		rs, err := LoadRuleSetFile(path)
		require.NoError(t, err)
		require.Len(t, rs.Branches, 1)
		assert.Equal(t, rules.OpEquals, rs.Branches[0].Conditions[0].Operator)
	})

	t.Run("yaml unknown field", func(t *testing.T) {
		path := writeTemp(t, "gate.yml", "name: gate\nweight: 2\n")
		_, err := LoadRuleSetFile(path)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadRuleSetFile(filepath.Join(t.TempDir(), "nope.json"))
		assert.Error(t, err)
	})
}

func TestSnapshotFiles(t *testing.T) {
	path := writeTemp(t, "scene.yaml", "t1:\n  switch_1: \"ON\"\n  count: 2\n")
	snap, err := LoadSnapshotFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Len())

	data, err := EncodeSnapshot("out.json", snap)
	require.NoError(t, err)
	assert.JSONEq(t, `{"t1":{"switch_1":"ON","count":2}}`, string(data))

	again, err := DecodeSnapshot("out.json", data)
	require.NoError(t, err)
	assert.Equal(t, snap.Keys(), again.Keys())

	yamlOut, err := EncodeSnapshot("out.yaml", snap)
	require.NoError(t, err)
	fromYAML, err := DecodeSnapshot("out.yaml", yamlOut)
	require.NoError(t, err)
	v, ok := fromYAML.Lookup("t1", "switch_1")
	require.True(t, ok)
	assert.Equal(t, "ON", v.Text())
}

func TestIsRuleFile(t *testing.T) {
	assert.True(t, IsRuleFile("a.json"))
	assert.True(t, IsRuleFile("a.YAML"))
	assert.True(t, IsRuleFile("a.yml"))
	assert.False(t, IsRuleFile("a.txt"))
}
