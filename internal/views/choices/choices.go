// Package choices renders the Presenter's current choice menu.
package choices

import (
	"fmt"
	"strings"

	"github.com/TylerJayP/Orchestrator/internal/protocol"
	"github.com/TylerJayP/Orchestrator/internal/theme"
	"github.com/charmbracelet/lipgloss"
)

// Model holds the menu as last reported by the session.
type Model struct {
	Choices   []protocol.Choice
	Selection int
	Enabled   int // leading choices that can be picked right now
	Width     int
}

func New() Model {
	return Model{Choices: []protocol.Choice{}}
}

func (m *Model) Set(choices []protocol.Choice, selection int) {
	m.Choices = choices
	m.Selection = selection
}

func (m Model) View() string {
	width := m.Width
	if width < 30 {
		width = 30
	}
	title := theme.StyleHeader.Render("CHOICES")

	var lines []string
	if len(m.Choices) == 0 {
		lines = append(lines, theme.StyleDimmed.Render("  No choices available"))
	}
	for i, c := range m.Choices {
		prefix := "  "
		if i == m.Selection {
			prefix = "> "
		}
		text := truncate(c.Text, width-10)
		line := fmt.Sprintf("%s%d. %s", prefix, i+1, text)
		switch {
		case i >= m.Enabled:
			line = theme.StyleDimmed.Render(line)
		case i == m.Selection:
			line = theme.StyleSelected.Render(line)
		}
		lines = append(lines, line)
	}

	body := lipgloss.JoinVertical(lipgloss.Left, append([]string{title}, lines...)...)
	return theme.StyleBorder.Width(width).Padding(0, 1).Render(body)
}

func truncate(s string, max int) string {
	if max < 4 {
		max = 4
	}
	r := []rune(strings.TrimSpace(s))
	if len(r) <= max {
		return string(r)
	}
	return string(r[:max-3]) + "..."
}
