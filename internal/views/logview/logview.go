// Package logview renders the activity log: a short recent strip for the
// main screen and a scrollable overlay.
package logview

import (
	"fmt"
	"strings"

	"github.com/TylerJayP/Orchestrator/internal/logbook"
	"github.com/TylerJayP/Orchestrator/internal/theme"
	"github.com/charmbracelet/lipgloss"
)

// Model holds the entries newest first and the overlay scroll offset.
type Model struct {
	Entries []logbook.Entry
	Offset  int // entries skipped from the newest end
	Status  string
}

func New() Model {
	return Model{}
}

// SetEntries replaces the entries. A scrolled view keeps its place.
func (m *Model) SetEntries(entries []logbook.Entry) {
	grown := len(entries) - len(m.Entries)
	m.Entries = entries
	if m.Offset > 0 && grown > 0 {
		m.Offset += grown
	}
	m.clamp()
}

func (m *Model) ScrollUp(n int) {
	m.Offset -= n
	m.clamp()
}

func (m *Model) ScrollDown(n int) {
	m.Offset += n
	m.clamp()
}

func (m *Model) clamp() {
	max := len(m.Entries) - 1
	if max < 0 {
		max = 0
	}
	if m.Offset > max {
		m.Offset = max
	}
	if m.Offset < 0 {
		m.Offset = 0
	}
}

// Recent renders the newest n entries without a frame.
func (m Model) Recent(width, n int) string {
	if len(m.Entries) == 0 {
		return theme.StyleDimmed.Render("  No activity yet.")
	}
	if n > len(m.Entries) {
		n = len(m.Entries)
	}
	lines := make([]string, 0, n)
	for _, e := range m.Entries[:n] {
		lines = append(lines, renderEntry(e, width))
	}
	return strings.Join(lines, "\n")
}

// View renders the log as an overlay panel.
func (m Model) View(width, height int) string {
	innerW := width - 4
	if innerW < 20 {
		innerW = 20
	}
	visible := height - 8
	if visible < 3 {
		visible = 3
	}

	title := theme.StyleHeader.Render(" ACTIVITY LOG ")
	helpText := fmt.Sprintf("j/k:scroll  e:export  x:clear  esc:close  %d entries", len(m.Entries))
	if m.Status != "" {
		helpText += "  " + m.Status
	}
	help := theme.StyleDimmed.Render(helpText)

	if len(m.Entries) == 0 {
		body := theme.StyleDimmed.Render("  No activity recorded yet.")
		content := lipgloss.JoinVertical(lipgloss.Left, title, "", body, "", help)
		return theme.PanelStyle(innerW).Render(content)
	}

	end := m.Offset + visible
	if end > len(m.Entries) {
		end = len(m.Entries)
	}
	lines := make([]string, 0, visible)
	for _, e := range m.Entries[m.Offset:end] {
		lines = append(lines, renderEntry(e, innerW))
	}

	scroll := ""
	if m.Offset > 0 {
		scroll = theme.StyleDimmed.Render(fmt.Sprintf(" ↑ %d newer", m.Offset))
	}
	content := lipgloss.JoinVertical(lipgloss.Left, title, scroll, strings.Join(lines, "\n"), help)
	return theme.PanelStyle(innerW).Render(content)
}

func renderEntry(e logbook.Entry, width int) string {
	ts := theme.StyleDimmed.Render(e.Time.Format("15:04:05"))
	cat := lipgloss.NewStyle().Foreground(theme.CategoryColor(string(e.Category))).Width(10).Render(strings.ToUpper(string(e.Category)))
	msg := e.Message
	if limit := width - 22; limit > 10 && len(msg) > limit {
		msg = msg[:limit-3] + "..."
	}
	return fmt.Sprintf("%s %s %s", ts, cat, msg)
}
