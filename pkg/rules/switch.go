package rules

import "github.com/jwebster45206/puzzle-engine/pkg/snapshot"

const (
	SwitchOn  = "ON"
	SwitchOff = "OFF"
)

// IsSwitchLike reports whether v is one of the two canonical switch values.
// The check is case-sensitive.
func IsSwitchLike(v string) bool {
	return v == SwitchOn || v == SwitchOff
}

// FlipSwitch returns the opposite switch value, or v unchanged if it is not switch-like
func FlipSwitch(v string) string {
	switch v {
	case SwitchOn:
		return SwitchOff
	case SwitchOff:
		return SwitchOn
	}
	return v
}

// DraftCondition returns a new condition for entity/variable with the
// comparison value pre-filled from snap when the current value is a switch
// or a bool. Other values leave the comparison empty for the author to type.
func DraftCondition(snap *snapshot.Snapshot, entityID, variable string) Condition {
	c := Condition{
		EntityID:  entityID,
		Variable:  variable,
		Operator:  OpEquals,
		Connector: And,
	}

	v, ok := snap.Lookup(entityID, variable)
	if !ok {
		return c
	}
	if v.Kind() == snapshot.KindBool || IsSwitchLike(v.Text()) {
		c.Value = v.Text()
	}
	return c
}
