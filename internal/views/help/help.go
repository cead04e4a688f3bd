// Package help renders the keyboard reference overlay from markdown using
// glamour.
package help

import (
	"fmt"
	"strings"

	"github.com/TylerJayP/Orchestrator/internal/theme"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// Section is a titled group of bindings.
type Section struct {
	Title    string
	Bindings []key.Binding
}

// Model caches the rendered overlay per width.
type Model struct {
	markdown string
	width    int
	rendered string
}

func New(sections []Section) Model {
	return Model{markdown: Markdown(sections)}
}

// Markdown builds the reference as one table per section.
func Markdown(sections []Section) string {
	var b strings.Builder
	b.WriteString("# Orchestrator keys\n")
	for _, s := range sections {
		fmt.Fprintf(&b, "\n## %s\n\n| Key | Action |\n| --- | --- |\n", s.Title)
		for _, kb := range s.Bindings {
			h := kb.Help()
			if h.Key == "" {
				continue
			}
			fmt.Fprintf(&b, "| `%s` | %s |\n", h.Key, h.Desc)
		}
	}
	b.WriteString("\nMinigame keys repeat while held. Press `esc` to close this page.\n")
	return b.String()
}

// View renders the overlay. Rendering falls back to the raw markdown when
// glamour fails.
func (m *Model) View(width, height int) string {
	innerW := width - 4
	if innerW < 30 {
		innerW = 30
	}
	if m.rendered == "" || m.width != innerW {
		m.width = innerW
		m.rendered = render(m.markdown, innerW-4)
	}

	body := m.rendered
	lines := strings.Split(body, "\n")
	if limit := height - 4; limit > 3 && len(lines) > limit {
		body = strings.Join(lines[:limit], "\n")
	}
	return lipgloss.NewStyle().
		Width(innerW).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(body)
}

func render(markdown string, wrap int) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		return markdown
	}
	out, err := r.Render(markdown)
	if err != nil {
		return markdown
	}
	return strings.TrimRight(out, "\n")
}
