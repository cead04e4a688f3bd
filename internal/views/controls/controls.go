// Package controls renders which intents are currently enabled and flashes
// the last one sent, animated with a harmonica spring.
package controls

import (
	"strings"
	"time"

	"github.com/TylerJayP/Orchestrator/internal/session"
	"github.com/TylerJayP/Orchestrator/internal/theme"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"
)

const fps = 30

// FrameMsg advances the flash animation by one frame.
type FrameMsg struct{}

type Model struct {
	Controls session.Controls
	Held     string
	Width    int

	label     string
	pos, vel  float64
	spring    harmonica.Spring
	animating bool
}

func New() Model {
	return Model{spring: harmonica.NewSpring(harmonica.FPS(fps), 6.0, 0.7)}
}

// Flash highlights label and returns the command that drives the fade.
func (m *Model) Flash(label string) tea.Cmd {
	m.label = label
	m.pos, m.vel = 1, 0
	if m.animating {
		return nil
	}
	m.animating = true
	return frame()
}

// Update advances the fade. It returns nil once the flash has settled.
func (m *Model) Update(FrameMsg) tea.Cmd {
	if !m.animating {
		return nil
	}
	m.pos, m.vel = m.spring.Update(m.pos, m.vel, 0)
	if m.pos < 0.02 && m.vel > -0.02 && m.vel < 0.02 {
		m.pos, m.vel = 0, 0
		m.animating = false
		m.label = ""
		return nil
	}
	return frame()
}

// Flashing reports the label being flashed, if any.
func (m Model) Flashing() (string, bool) {
	return m.label, m.animating
}

func frame() tea.Cmd {
	return tea.Tick(time.Second/fps, func(time.Time) tea.Msg { return FrameMsg{} })
}

func (m Model) View() string {
	c := m.Controls
	groups := []struct {
		keys, label string
		on          bool
	}{
		{"enter", "proceed", c.Proceed},
		{"1-9", "choose", c.Choices > 0},
		{"↑/↓", "navigate", c.Navigate},
		{"pgup/pgdn", "scroll", c.Scroll},
		{"wasd+space", "minigame", c.Minigame},
		{"ctrl+r", "reset", c.Reset},
		{"ctrl+o", "connect", true},
	}

	parts := make([]string, 0, len(groups))
	for _, g := range groups {
		text := g.keys + " " + g.label
		if g.on {
			parts = append(parts, lipgloss.NewStyle().Foreground(theme.ColorBright).Render(text))
		} else {
			parts = append(parts, theme.StyleDisabled.Render(text))
		}
	}
	line := strings.Join(parts, "  ")

	var extra []string
	if m.Held != "" {
		extra = append(extra, lipgloss.NewStyle().Foreground(theme.ColorMinigame).Render("holding "+strings.ToUpper(m.Held)))
	}
	if m.animating && m.label != "" {
		extra = append(extra, lipgloss.NewStyle().Foreground(m.flashColor()).Bold(m.pos > 0.5).Render("» "+m.label))
	}
	if len(extra) > 0 {
		line += "\n" + strings.Join(extra, "  ")
	}
	return lipgloss.NewStyle().Width(m.Width).Padding(0, 1).Render(line)
}

func (m Model) flashColor() lipgloss.Color {
	switch {
	case m.pos > 0.6:
		return theme.ColorFlash
	case m.pos > 0.25:
		return theme.ColorStory
	default:
		return theme.ColorDimmed
	}
}
