package snapshot

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ValueKind identifies which scalar a Value carries
type ValueKind int

const (
	KindString ValueKind = iota
	KindBool
	KindNumber
)

func (k ValueKind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	default:
		return "string"
	}
}

// Value is a single observed scalar: a string, a bool or a number.
// The zero Value is the empty string.
type Value struct {
	kind ValueKind
	s    string
	b    bool
	n    float64
}

func String(s string) Value  { return Value{kind: KindString, s: s} }
func Bool(b bool) Value      { return Value{kind: KindBool, b: b} }
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }

func (v Value) Kind() ValueKind { return v.kind }

// Text returns the form used for comparisons. Bools become "true"/"false"
// so that switch variables compare against literal condition values.
func (v Value) Text() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNumber:
		return strconv.FormatFloat(v.n, 'f', -1, 64)
	default:
		return v.s
	}
}

// AsBool reports the bool carried by v, if any
func (v Value) AsBool() (bool, bool) {
	return v.b, v.kind == KindBool
}

// AsNumber reports the number carried by v, if any
func (v Value) AsNumber() (float64, bool) {
	return v.n, v.kind == KindNumber
}

func (v Value) String() string { return v.Text() }

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindBool:
		return json.Marshal(v.b)
	case KindNumber:
		return json.Marshal(v.n)
	default:
		return json.Marshal(v.s)
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to unmarshal snapshot value: %w", err)
	}
	parsed, err := FromAny(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// MarshalYAML lets yaml.v3 encode a Value as a bare scalar
func (v Value) MarshalYAML() (interface{}, error) {
	switch v.kind {
	case KindBool:
		return v.b, nil
	case KindNumber:
		return v.n, nil
	default:
		return v.s, nil
	}
}

// UnmarshalYAML accepts any YAML scalar
func (v *Value) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw interface{}
	if err := unmarshal(&raw); err != nil {
		return fmt.Errorf("failed to unmarshal snapshot value: %w", err)
	}
	parsed, err := FromAny(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// FromAny converts a decoded JSON or YAML scalar into a Value
func FromAny(raw interface{}) (Value, error) {
	switch t := raw.(type) {
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case float64:
		return Number(t), nil
	case float32:
		return Number(float64(t)), nil
	case int:
		return Number(float64(t)), nil
	case int64:
		return Number(float64(t)), nil
	case uint64:
		return Number(float64(t)), nil
	case nil:
		return Value{}, fmt.Errorf("snapshot value must be a string, bool or number, got null")
	default:
		return Value{}, fmt.Errorf("snapshot value must be a string, bool or number, got %T", raw)
	}
}
