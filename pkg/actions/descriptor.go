// Package actions defines the effect descriptors attached to rule branches.
// Descriptors are handed to an external automation runtime; nothing in this
// repository interprets them.
package actions

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidDescriptor is returned when a descriptor fails construction checks
var ErrInvalidDescriptor = errors.New("invalid action descriptor")

type Kind string

const (
	KindTileChange Kind = "tileChange"
	KindDoorChange Kind = "doorChange"
)

type Activation string

const (
	ActivationActivate   Activation = "activate"
	ActivationDeactivate Activation = "deactivate"
	ActivationToggle     Activation = "toggle"
	ActivationNothing    Activation = "nothing"
)

func (a Activation) Valid() bool {
	switch a {
	case ActivationActivate, ActivationDeactivate, ActivationToggle, ActivationNothing:
		return true
	}
	return false
}

type Visibility string

const (
	VisibilityShow    Visibility = "show"
	VisibilityHide    Visibility = "hide"
	VisibilityToggle  Visibility = "toggle"
	VisibilityNothing Visibility = "nothing"
)

func (v Visibility) Valid() bool {
	switch v {
	case VisibilityShow, VisibilityHide, VisibilityToggle, VisibilityNothing:
		return true
	}
	return false
}

type DoorState string

const (
	DoorOpen   DoorState = "open"
	DoorClosed DoorState = "closed"
	DoorLocked DoorState = "locked"
)

func (s DoorState) Valid() bool {
	switch s {
	case DoorOpen, DoorClosed, DoorLocked:
		return true
	}
	return false
}

// Target names the tile or wall an action applies to
type Target struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
}

// TileChange activates and/or shows or hides a tile
type TileChange struct {
	Target     Target     `json:"target" yaml:"target"`
	Activation Activation `json:"activation" yaml:"activation"`
	Trigger    bool       `json:"trigger" yaml:"trigger"`
	Visibility Visibility `json:"visibility" yaml:"visibility"`
}

// DoorChange sets a door to open, closed or locked
type DoorChange struct {
	Target Target    `json:"target" yaml:"target"`
	State  DoorState `json:"state" yaml:"state"`
}

// Descriptor holds exactly one variant. The zero Descriptor is invalid and
// only appears as a decoding target.
type Descriptor struct {
	kind Kind
	tile *TileChange
	door *DoorChange
}

// NewTileChange validates tc and wraps it in a Descriptor
func NewTileChange(tc TileChange) (Descriptor, error) {
	if tc.Target.ID == "" {
		return Descriptor{}, fmt.Errorf("%w: tile change requires a target id", ErrInvalidDescriptor)
	}
	if !tc.Activation.Valid() {
		return Descriptor{}, fmt.Errorf("%w: unknown tile activation %q", ErrInvalidDescriptor, tc.Activation)
	}
	if !tc.Visibility.Valid() {
		return Descriptor{}, fmt.Errorf("%w: unknown tile visibility %q", ErrInvalidDescriptor, tc.Visibility)
	}
	return Descriptor{kind: KindTileChange, tile: &tc}, nil
}

// NewDoorChange validates dc and wraps it in a Descriptor
func NewDoorChange(dc DoorChange) (Descriptor, error) {
	if dc.Target.ID == "" {
		return Descriptor{}, fmt.Errorf("%w: door change requires a target id", ErrInvalidDescriptor)
	}
	if !dc.State.Valid() {
		return Descriptor{}, fmt.Errorf("%w: unknown door state %q", ErrInvalidDescriptor, dc.State)
	}
	return Descriptor{kind: KindDoorChange, door: &dc}, nil
}

func (d Descriptor) Kind() Kind { return d.kind }

// TileChange returns a copy of the tile variant
func (d Descriptor) TileChange() (TileChange, bool) {
	if d.kind != KindTileChange || d.tile == nil {
		return TileChange{}, false
	}
	return *d.tile, true
}

// DoorChange returns a copy of the door variant
func (d Descriptor) DoorChange() (DoorChange, bool) {
	if d.kind != KindDoorChange || d.door == nil {
		return DoorChange{}, false
	}
	return *d.door, true
}

// TargetName is the display label for whatever the descriptor targets
func (d Descriptor) TargetName() string {
	var t Target
	switch d.kind {
	case KindTileChange:
		t = d.tile.Target
	case KindDoorChange:
		t = d.door.Target
	default:
		return ""
	}
	if t.Name != "" {
		return t.Name
	}
	return t.ID
}

// Summary is a short human description, e.g. "door Vault Door -> locked"
func (d Descriptor) Summary() string {
	switch d.kind {
	case KindTileChange:
		s := fmt.Sprintf("tile %s: %s, %s", d.TargetName(), d.tile.Activation, d.tile.Visibility)
		if d.tile.Trigger {
			s += ", trigger"
		}
		return s
	case KindDoorChange:
		return fmt.Sprintf("door %s -> %s", d.TargetName(), d.door.State)
	default:
		return "invalid action"
	}
}

// wire is the encoded form: a kind tag plus the one matching variant
type wire struct {
	Kind       Kind        `json:"kind" yaml:"kind"`
	TileChange *TileChange `json:"tileChange,omitempty" yaml:"tileChange,omitempty"`
	DoorChange *DoorChange `json:"doorChange,omitempty" yaml:"doorChange,omitempty"`
}

func (d Descriptor) toWire() (wire, error) {
	switch d.kind {
	case KindTileChange:
		return wire{Kind: d.kind, TileChange: d.tile}, nil
	case KindDoorChange:
		return wire{Kind: d.kind, DoorChange: d.door}, nil
	default:
		return wire{}, fmt.Errorf("%w: descriptor has no variant", ErrInvalidDescriptor)
	}
}

func fromWire(w wire) (Descriptor, error) {
	switch w.Kind {
	case KindTileChange:
		if w.TileChange == nil || w.DoorChange != nil {
			return Descriptor{}, fmt.Errorf("%w: kind %q requires only a tileChange body", ErrInvalidDescriptor, w.Kind)
		}
		return NewTileChange(*w.TileChange)
	case KindDoorChange:
		if w.DoorChange == nil || w.TileChange != nil {
			return Descriptor{}, fmt.Errorf("%w: kind %q requires only a doorChange body", ErrInvalidDescriptor, w.Kind)
		}
		return NewDoorChange(*w.DoorChange)
	default:
		return Descriptor{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidDescriptor, w.Kind)
	}
}

func (d Descriptor) MarshalJSON() ([]byte, error) {
	w, err := d.toWire()
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

func (d *Descriptor) UnmarshalJSON(data []byte) error {
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("failed to unmarshal action descriptor: %w", err)
	}
	parsed, err := fromWire(w)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Descriptor) MarshalYAML() (interface{}, error) {
	return d.toWire()
}

func (d *Descriptor) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var w wire
	if err := unmarshal(&w); err != nil {
		return fmt.Errorf("failed to unmarshal action descriptor: %w", err)
	}
	parsed, err := fromWire(w)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
