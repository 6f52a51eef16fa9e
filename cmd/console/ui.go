package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jwebster45206/puzzle-engine/internal/render"
	"github.com/jwebster45206/puzzle-engine/pkg/rules"
	"github.com/jwebster45206/puzzle-engine/pkg/snapshot"
)

// backend is where the console reads and writes the snapshot it is editing
type backend interface {
	Describe() string
	Load() (*rules.RuleSet, *snapshot.Snapshot, error)
	Set(key snapshot.Key, v snapshot.Value) error
	Save(snap *snapshot.Snapshot) error
}

// ConsoleUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	backend       backend
	ruleSet       *rules.RuleSet
	snap          *snapshot.Snapshot
	keys          []snapshot.Key
	cursor        int
	policy        rules.Policy
	matches       []rules.Match
	matchViewport viewport.Model
	ready         bool
	width         int
	height        int
	dirty         bool
	status        string
	err           error

	// writes go out one at a time; pending holds keys changed meanwhile
	pushing bool
	pending []snapshot.Key
}

type savedMsg struct {
	err error
}

type pushedMsg struct {
	key snapshot.Key
	err error
}

var (
	varsPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(1).
			PaddingLeft(3).
			PaddingRight(0)

	matchPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(0).
			PaddingLeft(0).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("205")).
			Bold(true)

	kindStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey
)

func NewConsoleUI(b backend, rs *rules.RuleSet, snap *snapshot.Snapshot, policy rules.Policy) ConsoleUI {
	if snap == nil {
		snap = snapshot.Empty()
	}
	m := ConsoleUI{
		backend:       b,
		ruleSet:       rs,
		snap:          snap,
		keys:          snap.Keys(),
		policy:        policy,
		matchViewport: viewport.New(50, 20),
	}
	m.evaluate()
	return m
}

func (m ConsoleUI) Init() tea.Cmd {
	return nil
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		_, matchWidth := m.panelWidths()
		m.matchViewport.Width = matchWidth - 2
		m.matchViewport.Height = m.height - 4
		m.ready = true
		m.writeMatches()
		return m, nil

	case savedMsg:
		if msg.err != nil {
			m.err = msg.err
			m.status = ""
			return m, nil
		}
		m.err = nil
		m.dirty = false
		m.status = "saved " + m.backend.Describe()
		return m, nil

	case pushedMsg:
		if msg.err != nil {
			m.err = fmt.Errorf("failed to update %s: %w", msg.key, msg.err)
		}
		if len(m.pending) == 0 {
			m.pushing = false
			return m, nil
		}
		next := m.pending[0]
		m.pending = m.pending[1:]
		return m, m.push(next)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil
		case "down", "j":
			if m.cursor < len(m.keys)-1 {
				m.cursor++
			}
			return m, nil
		case " ", "enter":
			return m.change(toggleValue)
		case "+", "=":
			return m.change(func(v snapshot.Value) (snapshot.Value, bool) { return nudgeValue(v, 1) })
		case "-", "_":
			return m.change(func(v snapshot.Value) (snapshot.Value, bool) { return nudgeValue(v, -1) })
		case "p":
			if m.policy == rules.PolicyFirst {
				m.policy = rules.PolicyAll
			} else {
				m.policy = rules.PolicyFirst
			}
			m.status = "policy " + string(m.policy)
			m.evaluate()
			m.writeMatches()
			return m, nil
		case "c":
			if len(m.keys) > 0 {
				k := m.keys[m.cursor]
				m.status = "condition: " + rules.DraftCondition(m.snap, k.EntityID, k.Variable).String()
			}
			return m, nil
		case "s":
			return m, m.save()
		}
	}

	var cmd tea.Cmd
	m.matchViewport, cmd = m.matchViewport.Update(msg)
	return m, cmd
}

// change applies fn to the selected variable and re-evaluates
func (m ConsoleUI) change(fn func(snapshot.Value) (snapshot.Value, bool)) (tea.Model, tea.Cmd) {
	if len(m.keys) == 0 {
		return m, nil
	}
	key := m.keys[m.cursor]
	current, _ := m.snap.Lookup(key.EntityID, key.Variable)
	next, ok := fn(current)
	if !ok {
		m.status = fmt.Sprintf("%s is a %s and cannot change that way", key, current.Kind())
		return m, nil
	}

	m.snap = m.snap.With(key, next)
	m.dirty = true
	m.status = fmt.Sprintf("%s = %s", key, next.Text())
	m.evaluate()
	m.writeMatches()
	return m, m.queuePush(key)
}

func (m *ConsoleUI) evaluate() {
	matches, err := rules.Evaluate(m.ruleSet, m.snap)
	if err != nil {
		m.err = err
		m.matches = nil
		return
	}
	m.matches = rules.ApplyPolicy(matches, m.policy)
}

func (m *ConsoleUI) writeMatches() {
	m.matchViewport.SetContent(render.Matches(m.ruleSet, m.matches, m.matchViewport.Width))
}

// queuePush sends key now, or once the write in flight has landed
func (m *ConsoleUI) queuePush(key snapshot.Key) tea.Cmd {
	if !m.pushing {
		m.pushing = true
		return m.push(key)
	}
	for _, k := range m.pending {
		if k == key {
			return nil
		}
	}
	m.pending = append(m.pending, key)
	return nil
}

// push writes the key's current value
func (m ConsoleUI) push(key snapshot.Key) tea.Cmd {
	b := m.backend
	v, _ := m.snap.Lookup(key.EntityID, key.Variable)
	return func() tea.Msg {
		return pushedMsg{key: key, err: b.Set(key, v)}
	}
}

func (m ConsoleUI) save() tea.Cmd {
	b, snap := m.backend, m.snap
	return func() tea.Msg {
		return savedMsg{err: b.Save(snap)}
	}
}

// toggleValue flips bools and ON/OFF switches
func toggleValue(v snapshot.Value) (snapshot.Value, bool) {
	switch v.Kind() {
	case snapshot.KindBool:
		b, _ := v.AsBool()
		return snapshot.Bool(!b), true
	case snapshot.KindString:
		if rules.IsSwitchLike(v.Text()) {
			return snapshot.String(rules.FlipSwitch(v.Text())), true
		}
	}
	return v, false
}

// nudgeValue steps numbers by delta
func nudgeValue(v snapshot.Value, delta float64) (snapshot.Value, bool) {
	n, ok := v.AsNumber()
	if !ok {
		return v, false
	}
	return snapshot.Number(n + delta), true
}

func (m ConsoleUI) panelWidths() (int, int) {
	varsWidth := int(float64(m.width)*0.45) - 4
	matchWidth := m.width - varsWidth - 6
	return varsWidth, matchWidth
}

func (m ConsoleUI) renderVariables(width int) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Variables"))
	b.WriteString("\n\n")

	if len(m.keys) == 0 {
		b.WriteString(promptStyle.Render("The snapshot is empty."))
		b.WriteString("\n")
	}
	for i, k := range m.keys {
		v, _ := m.snap.Lookup(k.EntityID, k.Variable)
		line := fmt.Sprintf("%s = %s", k, v.Text())
		if i == m.cursor {
			b.WriteString(selectedStyle.Render("▶ " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString(" " + kindStyle.Render(v.Kind().String()))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.err != nil {
		b.WriteString(errorStyle.Render(m.err.Error()))
		b.WriteString("\n")
	} else if m.status != "" {
		b.WriteString(promptStyle.Render(m.status))
		b.WriteString("\n")
	}

	dirty := ""
	if m.dirty {
		dirty = " (unsaved)"
	}
	b.WriteString(promptStyle.Render(m.backend.Describe() + dirty))
	b.WriteString("\n")
	b.WriteString(promptStyle.Render(fmt.Sprintf("policy %s · %d matching", m.policy, len(m.matches))))
	b.WriteString("\n\n")
	b.WriteString(promptStyle.Render(strings.Repeat("─", max(width-4, 0))))
	b.WriteString("\n")
	b.WriteString(promptStyle.Render("↑/↓ select · space toggle · +/- nudge · c condition · p policy · s save · q quit"))
	return b.String()
}

func (m ConsoleUI) View() string {
	if !m.ready {
		return "\n  Initializing..."
	}

	varsWidth, matchWidth := m.panelWidths()

	varsPanel := varsPanelStyle.Width(varsWidth).Height(m.height - 3).Render(
		m.renderVariables(varsWidth),
	)

	matchPanel := matchPanelStyle.Width(matchWidth).Height(m.height - 2).Render(
		m.matchViewport.View(),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, varsPanel, matchPanel)
}
