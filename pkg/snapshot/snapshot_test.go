package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestValue_Text(t *testing.T) {
	tests := []struct {
		name     string
		value    Value
		expected string
	}{
		{name: "string", value: String("ON"), expected: "ON"},
		{name: "bool true", value: Bool(true), expected: "true"},
		{name: "bool false", value: Bool(false), expected: "false"},
		{name: "integer number", value: Number(3), expected: "3"},
		{name: "fractional number", value: Number(2.5), expected: "2.5"},
		{name: "zero value", value: Value{}, expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.value.Text(); got != tt.expected {
				t.Errorf("Text() = %q, expected %q", got, tt.expected)
			}
		})
	}
}

func TestSnapshot_LookupMissing(t *testing.T) {
	snap := NewBuilder().SetBool("t1", "switch_1", true).Build()

	_, ok := snap.Lookup("t1", "switch_2")
	assert.False(t, ok)

	_, ok = snap.Lookup("t2", "switch_1")
	assert.False(t, ok)

	var nilSnap *Snapshot
	_, ok = nilSnap.Lookup("t1", "switch_1")
	assert.False(t, ok, "nil snapshot has no entries")
}

func TestSnapshot_Immutable(t *testing.T) {
	b := NewBuilder().SetString("door", "state", "closed")
	first := b.Build()

	b.SetString("door", "state", "open")
	second := b.Build()

	v, _ := first.Lookup("door", "state")
	assert.Equal(t, "closed", v.Text(), "builder changes must not leak into built snapshots")

	v, _ = second.Lookup("door", "state")
	assert.Equal(t, "open", v.Text())

	third := second.With(Key{EntityID: "door", Variable: "state"}, String("locked"))
	v, _ = second.Lookup("door", "state")
	assert.Equal(t, "open", v.Text(), "With must not modify the receiver")
	v, _ = third.Lookup("door", "state")
	assert.Equal(t, "locked", v.Text())
}

func TestSnapshot_NewCopiesInput(t *testing.T) {
	input := map[Key]Value{{EntityID: "t1", Variable: "count"}: Number(1)}
	snap := New(input)
	input[Key{EntityID: "t1", Variable: "count"}] = Number(2)

	v, ok := snap.Lookup("t1", "count")
	require.True(t, ok)
	n, _ := v.AsNumber()
	assert.Equal(t, 1.0, n)
}

func TestSnapshot_Keys(t *testing.T) {
	snap := NewBuilder().
		SetString("b", "x", "1").
		SetString("a", "z", "1").
		SetString("a", "y", "1").
		Build()

	expected := []Key{
		{EntityID: "a", Variable: "y"},
		{EntityID: "a", Variable: "z"},
		{EntityID: "b", Variable: "x"},
	}
	assert.Equal(t, expected, snap.Keys())
}

func TestSnapshot_JSON(t *testing.T) {
	data := []byte(`{"t1":{"switch_1":true,"count":4,"label":"ON"}}`)

	var snap Snapshot
	require.NoError(t, json.Unmarshal(data, &snap))
	assert.Equal(t, 3, snap.Len())

	v, _ := snap.Lookup("t1", "switch_1")
	assert.Equal(t, KindBool, v.Kind())
	v, _ = snap.Lookup("t1", "count")
	assert.Equal(t, KindNumber, v.Kind())
	v, _ = snap.Lookup("t1", "label")
	assert.Equal(t, KindString, v.Kind())

	out, err := json.Marshal(&snap)
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(out))
}

func TestSnapshot_JSONRejectsNested(t *testing.T) {
	var snap Snapshot
	err := json.Unmarshal([]byte(`{"t1":{"switch_1":{"a":1}}}`), &snap)
	assert.Error(t, err)

	err = json.Unmarshal([]byte(`{"t1":{"switch_1":null}}`), &snap)
	assert.Error(t, err)
}

func TestSnapshot_YAML(t *testing.T) {
	data := []byte("lever:\n  position: \"ON\"\n  pulls: 2\n  armed: false\n")

	var snap Snapshot
	require.NoError(t, yaml.Unmarshal(data, &snap))

	v, ok := snap.Lookup("lever", "position")
	require.True(t, ok)
	assert.Equal(t, "ON", v.Text())

	v, _ = snap.Lookup("lever", "pulls")
	assert.Equal(t, KindNumber, v.Kind())
	assert.Equal(t, "2", v.Text())

	v, _ = snap.Lookup("lever", "armed")
	assert.Equal(t, KindBool, v.Kind())
}

type staticSource struct {
	observations []Observation
	err          error
}

func (s staticSource) Observe(ctx context.Context) ([]Observation, error) {
	return s.observations, s.err
}

func TestCapture(t *testing.T) {
	src := staticSource{observations: []Observation{
		{EntityID: "t1", Variable: "switch_1", Value: String("OFF")},
		{EntityID: "t1", Variable: "switch_1", Value: String("ON")},
	}}

	snap, err := Capture(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Len())

	v, _ := snap.Lookup("t1", "switch_1")
	assert.Equal(t, "ON", v.Text(), "later observations win")

	_, err = Capture(context.Background(), staticSource{err: errors.New("boom")})
	assert.Error(t, err)

	_, err = Capture(context.Background(), nil)
	assert.Error(t, err)
}
