// Package ui provides a terminal monitor for the dispatch engine.
// Uses Bubbletea to display the live queue and the event feed, with keys
// for manual acceptance and auto-accept toggling.
package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/marcus/dispatch/internal/engine"
	"github.com/marcus/dispatch/internal/task"
)

// Controller is the slice of the engine the monitor drives.
type Controller interface {
	Snapshot() []*task.Task
	AcceptNext()
	Cancel(id string) bool
	SetAutoAccept(enabled bool)
	AutoAccept() bool
}

// EventMsg delivers an engine event into the Bubbletea loop. The run
// command forwards engine events with Program.Send.
type EventMsg struct {
	Event engine.Event
}

// feedEntry is one rendered line of the event feed.
type feedEntry struct {
	time time.Time
	kind engine.EventType
	text string
}

const maxFeed = 200

// Styles holds lipgloss styles for the monitor.
type Styles struct {
	Border    lipgloss.Style
	Title     lipgloss.Style
	Label     lipgloss.Style
	Muted     lipgloss.Style
	Good      lipgloss.Style
	Warn      lipgloss.Style
	Bad       lipgloss.Style
	Selected  lipgloss.Style
	HelpKey   lipgloss.Style
	HelpText  lipgloss.Style
	Highlight lipgloss.Style
}

func newStyles() *Styles {
	subtle := lipgloss.AdaptiveColor{Light: "#666", Dark: "#888"}
	highlight := lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	green := lipgloss.AdaptiveColor{Light: "#22863a", Dark: "#3fb950"}
	yellow := lipgloss.AdaptiveColor{Light: "#b08800", Dark: "#d29922"}
	red := lipgloss.AdaptiveColor{Light: "#cb2431", Dark: "#f85149"}

	return &Styles{
		Border:    lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(subtle),
		Title:     lipgloss.NewStyle().Bold(true).Foreground(highlight),
		Label:     lipgloss.NewStyle().Foreground(subtle),
		Muted:     lipgloss.NewStyle().Foreground(subtle),
		Good:      lipgloss.NewStyle().Foreground(green).Bold(true),
		Warn:      lipgloss.NewStyle().Foreground(yellow).Bold(true),
		Bad:       lipgloss.NewStyle().Foreground(red).Bold(true),
		Selected:  lipgloss.NewStyle().Background(highlight).Foreground(lipgloss.Color("#fff")),
		HelpKey:   lipgloss.NewStyle().Foreground(highlight).Bold(true),
		HelpText:  lipgloss.NewStyle().Foreground(subtle),
		Highlight: lipgloss.NewStyle().Foreground(highlight).Bold(true),
	}
}

// Model holds the monitor state.
type Model struct {
	ctrl     Controller
	width    int
	height   int
	quitting bool

	tasks    []*task.Task
	selected int
	feed     []feedEntry

	styles *Styles
}

// New creates a monitor over the given controller.
func New(ctrl Controller) *Model {
	return &Model{
		ctrl:   ctrl,
		width:  80,
		height: 24,
		styles: newStyles(),
	}
}

// tickMsg refreshes the queue snapshot once a second.
type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(tickCmd(), tea.EnterAltScreen)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		m.refresh()
		return m, tickCmd()

	case EventMsg:
		m.appendFeed(msg.Event)
		m.refresh()
		return m, nil
	}

	return m, nil
}

func (m *Model) refresh() {
	m.tasks = m.ctrl.Snapshot()
	if m.selected >= len(m.tasks) {
		m.selected = len(m.tasks) - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
}

func (m *Model) appendFeed(ev engine.Event) {
	text := ev.Type.String()
	if ev.TaskID != "" {
		text += " " + shortID(ev.TaskID)
	}
	if ev.Stage != "" {
		text += " @" + ev.Stage
	}
	if ev.Error != "" {
		text += ": " + ev.Error
	}
	m.feed = append(m.feed, feedEntry{time: ev.Time, kind: ev.Type, text: text})
	if len(m.feed) > maxFeed {
		m.feed = m.feed[len(m.feed)-maxFeed:]
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "a":
		// Manual acceptance runs the pipeline synchronously; do it off
		// the UI goroutine.
		return m, func() tea.Msg {
			m.ctrl.AcceptNext()
			return tickMsg(time.Now())
		}

	case "t":
		m.ctrl.SetAutoAccept(!m.ctrl.AutoAccept())
		return m, nil

	case "x":
		if m.selected < len(m.tasks) {
			m.ctrl.Cancel(m.tasks[m.selected].ID)
			m.refresh()
		}
		return m, nil

	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}
		return m, nil

	case "down", "j":
		if m.selected < len(m.tasks)-1 {
			m.selected++
		}
		return m, nil
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	mode := "manual"
	modeStyle := m.styles.Warn
	if m.ctrl.AutoAccept() {
		mode = "auto-accept"
		modeStyle = m.styles.Good
	}
	b.WriteString(m.styles.Title.Render("dispatch"))
	b.WriteString("  ")
	b.WriteString(modeStyle.Render(mode))
	b.WriteString("  ")
	b.WriteString(m.styles.Label.Render(fmt.Sprintf("%d queued", len(m.tasks))))
	b.WriteString("\n\n")

	b.WriteString(m.renderQueue())
	b.WriteString("\n")
	b.WriteString(m.renderFeed())
	b.WriteString("\n")
	b.WriteString(m.renderHelp())

	return b.String()
}

func (m Model) renderQueue() string {
	var b strings.Builder
	b.WriteString(m.styles.Highlight.Render("Queue"))
	b.WriteString("\n")

	if len(m.tasks) == 0 {
		b.WriteString(m.styles.Muted.Render("  (empty)"))
		b.WriteString("\n")
		return b.String()
	}

	rows := len(m.tasks)
	if max := m.height / 2; rows > max && max > 0 {
		rows = max
	}
	for i := 0; i < rows; i++ {
		t := m.tasks[i]
		line := fmt.Sprintf("  %-8s %-9s %s", shortID(t.ID), t.Priority, truncate(t.Payload, m.width-24))
		if i == m.selected {
			line = m.styles.Selected.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	if len(m.tasks) > rows {
		b.WriteString(m.styles.Muted.Render(fmt.Sprintf("  … %d more", len(m.tasks)-rows)))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderFeed() string {
	var b strings.Builder
	b.WriteString(m.styles.Highlight.Render("Events"))
	b.WriteString("\n")

	rows := m.height/2 - 4
	if rows < 3 {
		rows = 3
	}
	start := len(m.feed) - rows
	if start < 0 {
		start = 0
	}
	if len(m.feed) == 0 {
		b.WriteString(m.styles.Muted.Render("  (no events yet)"))
		b.WriteString("\n")
	}
	for _, entry := range m.feed[start:] {
		style := m.styles.Muted
		switch entry.kind {
		case engine.EventTaskCompleted:
			style = m.styles.Good
		case engine.EventTaskFailed:
			style = m.styles.Bad
		case engine.EventTaskRejected, engine.EventTaskCancelled:
			style = m.styles.Warn
		}
		b.WriteString(fmt.Sprintf("  %s %s\n",
			m.styles.Label.Render(entry.time.Format("15:04:05")),
			style.Render(entry.text)))
	}
	return b.String()
}

func (m Model) renderHelp() string {
	parts := []struct{ key, text string }{
		{"a", "accept next"},
		{"t", "toggle auto"},
		{"x", "cancel"},
		{"↑/↓", "select"},
		{"q", "quit"},
	}
	rendered := make([]string, 0, len(parts))
	for _, p := range parts {
		rendered = append(rendered, m.styles.HelpKey.Render(p.key)+" "+m.styles.HelpText.Render(p.text))
	}
	return strings.Join(rendered, m.styles.Muted.Render(" · "))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if n <= 3 {
		n = 3
	}
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
