package status

import (
	"fmt"
	"sort"
	"strings"

	"github.com/TylerJayP/Orchestrator/internal/session"
	"github.com/TylerJayP/Orchestrator/internal/theme"
	"github.com/charmbracelet/lipgloss"
)

// Model holds the status bar state.
type Model struct {
	Connected          bool
	PresenterConnected bool
	Chapter            string
	Mode               session.Mode
	Awaiting           session.InputKind
	PlayerState        map[string]any
	Queued             int
	Failed             bool
	Width              int
}

// New creates a status bar model.
func New() Model {
	return Model{PlayerState: map[string]any{}}
}

// SetState copies the displayed fields from a session snapshot.
func (m *Model) SetState(s session.State) {
	m.Connected = s.Connected
	m.PresenterConnected = s.PresenterConnected
	m.Chapter = s.CurrentChapter
	m.Mode = s.Mode()
	m.Awaiting = s.AwaitingInputType
	m.PlayerState = s.PlayerState
}

// View renders the status bar.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	var connStr string
	switch {
	case m.Connected:
		connStr = theme.Indicator(true, "MQTT", "")
	case m.Failed:
		connStr = lipgloss.NewStyle().Foreground(theme.ColorDanger).Render("✗ MQTT gave up (ctrl+o)")
	default:
		connStr = theme.Indicator(false, "", "Connecting...")
	}
	peerStr := theme.Indicator(m.PresenterConnected, "Presenter", "Presenter")

	chapter := m.Chapter
	if chapter == "" {
		chapter = "-"
	}
	modeColor := theme.ColorStory
	if m.Mode == session.Minigame {
		modeColor = theme.ColorMinigame
	}
	modeStr := lipgloss.NewStyle().Foreground(modeColor).Bold(true).Render(strings.ToUpper(m.Mode.String()))

	awaiting := string(m.Awaiting)
	if awaiting == "" {
		awaiting = "-"
	}

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	parts := []string{
		connStr,
		peerStr,
		"chapter: " + theme.StyleHeader.Render(chapter),
		modeStr,
		"awaiting: " + awaiting,
	}
	if m.Queued > 0 {
		parts = append(parts, lipgloss.NewStyle().Foreground(theme.ColorWarning).Render(fmt.Sprintf("%d queued", m.Queued)))
	}
	content := strings.Join(parts, sep)
	if ps := playerLine(m.PlayerState); ps != "" {
		content += "\n" + theme.StyleDimmed.Render(ps)
	}

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}

// playerLine renders the player state as sorted key: value pairs.
func playerLine(ps map[string]any) string {
	if len(ps) == 0 {
		return ""
	}
	keys := make([]string, 0, len(ps))
	for k := range ps {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s: %v", k, ps[k])
	}
	return strings.Join(parts, "  ")
}
