package rules

import (
	"fmt"
	"strings"

	"github.com/jwebster45206/puzzle-engine/pkg/snapshot"
)

type Severity string

const (
	SeverityError Severity = "error"
	SeverityWarn  Severity = "warning"
)

const (
	CodeUnknownOperator   = "unknown_operator"
	CodeUnknownConnector  = "unknown_connector"
	CodeMissingEntity     = "missing_entity"
	CodeMissingVariable   = "missing_variable"
	CodeUnnamedBranch     = "unnamed_branch"
	CodeUnreachableBranch = "shadowed_by_default"
	CodeNonNumericOrder   = "non_numeric_comparand"
	CodeUnknownReference  = "unknown_reference"
	CodeNoActions         = "no_actions"
	CodeNilRuleSet        = "nil_rule_set"
)

// Issue is one authoring problem. Branch and Condition are -1 when the
// issue is not tied to one.
type Issue struct {
	Severity  Severity `json:"severity"`
	Code      string   `json:"code"`
	Message   string   `json:"message"`
	Branch    int      `json:"branch"`
	Condition int      `json:"condition"`
}

type Report struct {
	Issues []Issue `json:"issues"`
}

// HasErrors reports whether any issue is error severity
func (r Report) HasErrors() bool {
	for _, issue := range r.Issues {
		if issue.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Validate checks rs for authoring mistakes. Evaluate does not require a
// clean report: bad conditions there simply evaluate to false.
func Validate(rs *RuleSet) Report {
	return ValidateAgainst(rs, nil)
}

// ValidateAgainst additionally warns about conditions that reference
// variables absent from snap. A nil snap skips those checks.
func ValidateAgainst(rs *RuleSet, snap *snapshot.Snapshot) Report {
	report := Report{Issues: make([]Issue, 0)}
	if rs == nil {
		report.Issues = append(report.Issues, Issue{
			Severity: SeverityError, Code: CodeNilRuleSet, Message: "rule set is nil", Branch: -1, Condition: -1,
		})
		return report
	}

	add := func(sev Severity, code string, branch, cond int, format string, args ...interface{}) {
		report.Issues = append(report.Issues, Issue{
			Severity:  sev,
			Code:      code,
			Message:   fmt.Sprintf(format, args...),
			Branch:    branch,
			Condition: cond,
		})
	}

	defaultAt := -1
	for i, b := range rs.Branches {
		label := branchLabel(b, i)

		if strings.TrimSpace(b.Name) == "" {
			add(SeverityWarn, CodeUnnamedBranch, i, -1, "branch %d has no name", i)
		}
		if len(b.Actions) == 0 {
			add(SeverityWarn, CodeNoActions, i, -1, "%s has no actions", label)
		}
		if defaultAt >= 0 {
			add(SeverityWarn, CodeUnreachableBranch, i, -1,
				"%s follows unconditional branch %d; under a first-match policy it never applies", label, defaultAt)
		}
		if len(b.Conditions) == 0 && defaultAt < 0 {
			defaultAt = i
		}

		for j, c := range b.Conditions {
			if strings.TrimSpace(c.EntityID) == "" {
				add(SeverityError, CodeMissingEntity, i, j, "%s condition %d has no entity", label, j)
			}
			if strings.TrimSpace(c.Variable) == "" {
				add(SeverityError, CodeMissingVariable, i, j, "%s condition %d has no variable", label, j)
			}
			if !c.Operator.Valid() {
				add(SeverityError, CodeUnknownOperator, i, j, "%s condition %d has unknown operator %q", label, j, c.Operator)
			}
			if j > 0 && c.Connector != "" && !c.Connector.Valid() {
				add(SeverityError, CodeUnknownConnector, i, j, "%s condition %d has unknown connector %q", label, j, c.Connector)
			}
			if c.Operator.Ordering() {
				if _, ok := parseFinite(c.Value); !ok {
					add(SeverityWarn, CodeNonNumericOrder, i, j,
						"%s condition %d compares %q with %s; non-numeric values never match", label, j, c.Value, c.Operator)
				}
			}
			if snap != nil && c.EntityID != "" && c.Variable != "" {
				if _, ok := snap.Lookup(c.EntityID, c.Variable); !ok {
					add(SeverityWarn, CodeUnknownReference, i, j,
						"%s condition %d reads %s/%s which is not in the snapshot", label, j, c.EntityID, c.Variable)
				}
			}
		}
	}
	return report
}

func branchLabel(b Branch, i int) string {
	if b.Name == "" {
		return fmt.Sprintf("branch %d", i)
	}
	return fmt.Sprintf("branch %d (%s)", i, b.Name)
}
