// Package render formats evaluation results for terminals.
package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jwebster45206/puzzle-engine/pkg/rules"
	"github.com/muesli/reflow/wordwrap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")) // pink

	BranchStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	ActionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	DimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	WarnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow
)

const minWidth = 20

// Title cases a rule set or branch name for headings.
// Existing capitals are kept so switch values like ON stay as written.
func Title(s string) string {
	if s == "" {
		return "Untitled"
	}
	return cases.Title(language.English, cases.NoLower).String(s)
}

func wrap(s string, width, indent int) string {
	if width < minWidth {
		width = minWidth
	}
	pad := strings.Repeat(" ", indent)
	lines := strings.Split(wordwrap.String(s, width-indent), "\n")
	return pad + strings.Join(lines, "\n"+pad)
}

// Matches lists matching branches with their actions in output order
func Matches(rs *rules.RuleSet, matches []rules.Match, width int) string {
	var b strings.Builder

	name := ""
	if rs != nil {
		name = rs.Name
	}
	b.WriteString(TitleStyle.Render(Title(name)))
	b.WriteString("\n")

	if len(matches) == 0 {
		b.WriteString(DimStyle.Render(wrap("no branch matches", width, 2)))
		b.WriteString("\n")
		return b.String()
	}

	for _, m := range matches {
		b.WriteString(BranchStyle.Render(wrap(fmt.Sprintf("[%d] %s", m.BranchIndex, m.BranchName), width, 2)))
		b.WriteString("\n")
		if len(m.Actions) == 0 {
			b.WriteString(DimStyle.Render(wrap("(no actions)", width, 6)))
			b.WriteString("\n")
		}
		for _, a := range m.Actions {
			b.WriteString(ActionStyle.Render(wrap("- "+a.Summary(), width, 6)))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Traces shows each branch's fold one condition at a time
func Traces(traces []rules.BranchTrace, width int) string {
	var b strings.Builder
	for _, t := range traces {
		mark, style := "✗", ErrorStyle
		if t.Matched {
			mark, style = "✓", BranchStyle
		}
		b.WriteString(style.Render(wrap(fmt.Sprintf("%s [%d] %s", mark, t.BranchIndex, t.BranchName), width, 0)))
		b.WriteString("\n")

		if len(t.Conditions) == 0 {
			b.WriteString(DimStyle.Render(wrap("unconditional", width, 4)))
			b.WriteString("\n")
		}
		for i, c := range t.Conditions {
			actual := "missing"
			if c.Found {
				actual = fmt.Sprintf("%q", c.Actual)
			}
			connector := ""
			if i > 0 {
				connector = string(c.Condition.Connector)
				if connector == "" {
					connector = string(rules.And)
				}
				connector += " "
			}
			line := fmt.Sprintf("%s%s (actual %s) -> %t, running %t", connector, c.Condition, actual, c.Result, c.Running)
			b.WriteString(wrap(line, width, 4))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Report lists errors before warnings
func Report(report rules.Report, width int) string {
	if len(report.Issues) == 0 {
		return BranchStyle.Render("No issues found.") + "\n"
	}

	var errs, warns []rules.Issue
	for _, issue := range report.Issues {
		if issue.Severity == rules.SeverityError {
			errs = append(errs, issue)
		} else {
			warns = append(warns, issue)
		}
	}

	var b strings.Builder
	section := func(title string, style lipgloss.Style, issues []rules.Issue) {
		if len(issues) == 0 {
			return
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(style.Render(fmt.Sprintf("%s (%d):", title, len(issues))))
		b.WriteString("\n")
		for _, issue := range issues {
			b.WriteString(wrap(fmt.Sprintf("- [%s] %s", issue.Code, issue.Message), width, 2))
			b.WriteString("\n")
		}
	}
	section("Errors", ErrorStyle, errs)
	section("Warnings", WarnStyle, warns)
	return b.String()
}
