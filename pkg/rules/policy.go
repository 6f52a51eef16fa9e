package rules

import (
	"fmt"
	"strings"
)

// Policy decides which matches a caller applies. Evaluate itself is neutral.
type Policy string

const (
	PolicyAll   Policy = "all"
	PolicyFirst Policy = "first"
)

func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case PolicyAll, "":
		return PolicyAll, nil
	case PolicyFirst:
		return PolicyFirst, nil
	default:
		return "", fmt.Errorf("unknown match policy %q (supported: all, first)", s)
	}
}

// ApplyPolicy narrows matches according to p
func ApplyPolicy(matches []Match, p Policy) []Match {
	if p == PolicyFirst && len(matches) > 1 {
		return matches[:1]
	}
	return matches
}
