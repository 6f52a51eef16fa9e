package rules

import (
	"math"
	"strconv"
	"strings"

	"github.com/jwebster45206/puzzle-engine/pkg/snapshot"
)

// EvaluateCondition reports whether c holds in snap.
// A missing variable, an unknown operator, or an ordering operator applied to
// non-numeric operands all evaluate to false rather than failing.
func EvaluateCondition(c Condition, snap *snapshot.Snapshot) bool {
	actual, ok := snap.Lookup(c.EntityID, c.Variable)
	if !ok {
		return false
	}
	return compare(actual, c.Operator, c.Value)
}

func compare(actual snapshot.Value, op Operator, literal string) bool {
	left, leftNumeric := numericValue(actual)
	right, rightNumeric := parseFinite(literal)

	if leftNumeric && rightNumeric {
		switch op {
		case OpEquals:
			return left == right
		case OpNotEquals:
			return left != right
		case OpGreaterThan:
			return left > right
		case OpLessThan:
			return left < right
		case OpGreaterThanOrEqual:
			return left >= right
		case OpLessThanOrEqual:
			return left <= right
		}
		return false
	}

	text := actual.Text()
	switch op {
	case OpEquals:
		return text == literal
	case OpNotEquals:
		return text != literal
	}
	// ordering on strings is never a match
	return false
}

func numericValue(v snapshot.Value) (float64, bool) {
	switch v.Kind() {
	case snapshot.KindNumber:
		n, _ := v.AsNumber()
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return n, true
	case snapshot.KindString:
		return parseFinite(v.Text())
	default:
		return 0, false
	}
}

func parseFinite(s string) (float64, bool) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}
