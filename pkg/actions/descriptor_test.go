package actions

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestNewTileChange(t *testing.T) {
	tests := []struct {
		name    string
		tc      TileChange
		wantErr bool
	}{
		{
			name: "valid",
			tc: TileChange{
				Target:     Target{ID: "tile-1", Name: "Pressure Plate"},
				Activation: ActivationToggle,
				Trigger:    true,
				Visibility: VisibilityShow,
			},
		},
		{
			name:    "missing target",
			tc:      TileChange{Activation: ActivationToggle, Visibility: VisibilityShow},
			wantErr: true,
		},
		{
			name:    "bad activation",
			tc:      TileChange{Target: Target{ID: "t"}, Activation: "flip", Visibility: VisibilityShow},
			wantErr: true,
		},
		{
			name:    "bad visibility",
			tc:      TileChange{Target: Target{ID: "t"}, Activation: ActivationNothing, Visibility: "fade"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := NewTileChange(tt.tc)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidDescriptor))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, KindTileChange, d.Kind())
			got, ok := d.TileChange()
			require.True(t, ok)
			assert.Equal(t, tt.tc, got)
			_, ok = d.DoorChange()
			assert.False(t, ok, "tile descriptor has no door variant")
		})
	}
}

func TestNewDoorChange(t *testing.T) {
	d, err := NewDoorChange(DoorChange{Target: Target{ID: "wall-9"}, State: DoorLocked})
	require.NoError(t, err)
	assert.Equal(t, KindDoorChange, d.Kind())
	assert.Equal(t, "door wall-9 -> locked", d.Summary())

	_, err = NewDoorChange(DoorChange{Target: Target{ID: "wall-9"}, State: "ajar"})
	assert.ErrorIs(t, err, ErrInvalidDescriptor)
}

func TestDescriptor_JSON(t *testing.T) {
	d, err := NewDoorChange(DoorChange{Target: Target{ID: "wall-9", Name: "Vault Door"}, State: DoorOpen})
	require.NoError(t, err)

	data, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"doorChange","doorChange":{"target":{"id":"wall-9","name":"Vault Door"},"state":"open"}}`, string(data))

	var decoded Descriptor
	require.NoError(t, json.Unmarshal(data, &decoded))
	got, ok := decoded.DoorChange()
	require.True(t, ok)
	assert.Equal(t, DoorOpen, got.State)
}

func TestDescriptor_JSONRejectsAmbiguous(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "no kind", data: `{"doorChange":{"target":{"id":"w"},"state":"open"}}`},
		{name: "unknown kind", data: `{"kind":"lightChange"}`},
		{name: "kind without body", data: `{"kind":"tileChange"}`},
		{name: "both bodies", data: `{"kind":"doorChange","doorChange":{"target":{"id":"w"},"state":"open"},"tileChange":{"target":{"id":"t"},"activation":"toggle","visibility":"show"}}`},
		{name: "mismatched body", data: `{"kind":"doorChange","tileChange":{"target":{"id":"t"},"activation":"toggle","visibility":"show"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Descriptor
			err := json.Unmarshal([]byte(tt.data), &d)
			assert.ErrorIs(t, err, ErrInvalidDescriptor)
		})
	}
}

func TestDescriptor_MarshalZeroFails(t *testing.T) {
	_, err := json.Marshal(Descriptor{})
	assert.Error(t, err)
}

func TestDescriptor_YAML(t *testing.T) {
	src := []byte(`kind: tileChange
tileChange:
  target:
    id: tile-2
  activation: activate
  trigger: false
  visibility: hide
`)
	var d Descriptor
	require.NoError(t, yaml.Unmarshal(src, &d))
	tc, ok := d.TileChange()
	require.True(t, ok)
	assert.Equal(t, ActivationActivate, tc.Activation)
	assert.Equal(t, VisibilityHide, tc.Visibility)
	assert.Equal(t, "tile tile-2: activate, hide", d.Summary())
}
