package app

import (
	"errors"
	"strconv"

	"github.com/TylerJayP/Orchestrator/internal/intent"
	"github.com/TylerJayP/Orchestrator/internal/loop"
	"github.com/TylerJayP/Orchestrator/internal/protocol"
	"github.com/TylerJayP/Orchestrator/internal/session"
	"github.com/TylerJayP/Orchestrator/internal/theme"
	"github.com/TylerJayP/Orchestrator/internal/views/controls"
	helpview "github.com/TylerJayP/Orchestrator/internal/views/help"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Overlay identifies which modal is active.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayLog
	OverlayHelp
)

const recentLogLines = 6

// Pump delivers loop work to bubbletea. *loop.Loop implements it.
type Pump interface {
	Next() tea.Cmd
	Handle(ev loop.Event)
}

// Model is the root Bubble Tea model.
type Model struct {
	rt   *Runtime
	pump Pump

	keys     KeyMap
	help     help.Model
	helpView *helpview.Model
	width    int
	height   int
	overlay  Overlay
}

// New creates the root model. pump may be nil when the runtime is driven
// by another scheduler, as in tests.
func New(rt *Runtime, pump Pump) Model {
	keys := DefaultKeyMap()
	hv := helpview.New(keys.Sections())
	return Model{
		rt:       rt,
		pump:     pump,
		keys:     keys,
		help:     help.New(),
		helpView: &hv,
	}
}

// Init opens the broker connection and starts draining the loop.
func (m Model) Init() tea.Cmd {
	m.rt.Start()
	return m.next()
}

func (m Model) next() tea.Cmd {
	if m.pump == nil {
		return nil
	}
	return m.pump.Next()
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.rt.Panel.statusBar.Width = msg.Width
		m.rt.Panel.choices.Width = msg.Width
		m.rt.Panel.controls.Width = msg.Width
		return m, nil

	case loop.Event:
		if m.pump != nil {
			m.pump.Handle(msg)
		}
		m.rt.sync()
		return m, m.next()

	case controls.FrameMsg:
		return m, m.rt.Panel.controls.Update(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) && (m.overlay == OverlayNone || msg.String() == "ctrl+c") {
		m.rt.Close()
		return m, tea.Quit
	}

	switch m.overlay {
	case OverlayLog:
		return m.handleLogKey(msg)
	case OverlayHelp:
		if key.Matches(msg, m.keys.Escape, m.keys.Help, m.keys.Quit) {
			m.overlay = OverlayNone
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Log):
		m.overlay = OverlayLog
		return m, nil
	case key.Matches(msg, m.keys.Help):
		m.overlay = OverlayHelp
		return m, nil
	case key.Matches(msg, m.keys.Export):
		m.rt.ExportLog()
		return m, nil
	case key.Matches(msg, m.keys.Clear):
		m.rt.ClearLog()
		return m, nil
	}

	in, ok := m.intentFor(msg)
	if !ok {
		return m, nil
	}
	switch err := m.rt.Submit(in); {
	case err == nil:
		return m, m.rt.Panel.controls.Flash(in.String())
	case isRejection(err):
		// The reason is already in the activity log.
		return m, m.rt.Panel.controls.Flash("✗ " + in.String())
	}
	return m, nil
}

func (m Model) handleLogKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	lv := &m.rt.Panel.log
	switch {
	case key.Matches(msg, m.keys.Escape, m.keys.Log, m.keys.Quit):
		m.overlay = OverlayNone
		lv.Status = ""
	case key.Matches(msg, m.keys.Up):
		lv.ScrollUp(1)
	case key.Matches(msg, m.keys.Down):
		lv.ScrollDown(1)
	case key.Matches(msg, m.keys.PageUp):
		lv.ScrollUp(10)
	case key.Matches(msg, m.keys.PageDown):
		lv.ScrollDown(10)
	case key.Matches(msg, m.keys.Export):
		m.rt.ExportLog()
		lv.Status = "exported"
	case key.Matches(msg, m.keys.Clear):
		m.rt.ClearLog()
		lv.Status = "cleared"
	}
	return m, nil
}

// intentFor maps a key to an intent. Enter and space depend on the enabled
// controls: enter picks the highlighted choice when choices are open, space
// is the minigame action while a minigame runs.
func (m Model) intentFor(msg tea.KeyMsg) (intent.Intent, bool) {
	c := m.rt.Panel.Controls()
	switch {
	case key.Matches(msg, m.keys.Up):
		return intent.Intent{Kind: intent.Navigate, Direction: protocol.DirectionUp}, true
	case key.Matches(msg, m.keys.Down):
		return intent.Intent{Kind: intent.Navigate, Direction: protocol.DirectionDown}, true
	case key.Matches(msg, m.keys.PageUp):
		return intent.Intent{Kind: intent.Scroll, Direction: protocol.DirectionUp}, true
	case key.Matches(msg, m.keys.PageDown):
		return intent.Intent{Kind: intent.Scroll, Direction: protocol.DirectionDown}, true
	case key.Matches(msg, m.keys.Enter):
		if c.Choices > 0 {
			return intent.Intent{Kind: intent.Choose, Index: m.rt.Panel.state.CurrentSelection}, true
		}
		return intent.Intent{Kind: intent.Proceed}, true
	case key.Matches(msg, m.keys.Space):
		if c.Minigame {
			return intent.Intent{Kind: intent.Minigame, Symbol: protocol.InputSpace}, true
		}
		return intent.Intent{Kind: intent.Proceed}, true
	case key.Matches(msg, m.keys.Choose):
		n, err := strconv.Atoi(msg.String())
		if err != nil {
			return intent.Intent{}, false
		}
		return intent.Intent{Kind: intent.Choose, Index: n - 1}, true
	case key.Matches(msg, m.keys.Minigame):
		return intent.Intent{Kind: intent.Minigame, Symbol: msg.String()}, true
	case key.Matches(msg, m.keys.Reset):
		return intent.Intent{Kind: intent.Reset}, true
	case key.Matches(msg, m.keys.Connect):
		return intent.Intent{Kind: intent.Connect}, true
	}
	return intent.Intent{}, false
}

// View renders the full panel.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	switch m.overlay {
	case OverlayLog:
		return m.rt.Panel.log.View(m.width, m.height)
	case OverlayHelp:
		return m.helpView.View(m.width, m.height)
	}

	p := m.rt.Panel
	sections := []string{
		p.statusBar.View(),
		p.choices.View(),
		p.controls.View(),
		theme.StyleHeader.Render("ACTIVITY"),
		p.log.Recent(m.width, recentLogLines),
		m.help.View(m.keys),
	}
	if !p.state.Connected {
		sections = append([]string{disconnectedBanner(p.statusBar.Failed)}, sections...)
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func disconnectedBanner(failed bool) string {
	text := " DISCONNECTED  Reconnecting to broker... "
	if failed {
		text = " DISCONNECTED  Gave up reconnecting, press ctrl+o to retry "
	}
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorBright).
		Background(theme.ColorDanger).
		Render(text)
}

// isRejection tells a refused intent apart from a bounce.
func isRejection(err error) bool {
	return err != nil && !errors.Is(err, intent.ErrBounced) && !errors.Is(err, session.ErrDebounced)
}
