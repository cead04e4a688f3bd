package app

import (
	"github.com/TylerJayP/Orchestrator/internal/views/help"
	"github.com/charmbracelet/bubbles/key"
)

// KeyMap defines all keyboard bindings for the panel.
type KeyMap struct {
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Enter    key.Binding
	Space    key.Binding
	Choose   key.Binding
	Minigame key.Binding
	Reset    key.Binding
	Connect  key.Binding
	Log      key.Binding
	Export   key.Binding
	Clear    key.Binding
	Help     key.Binding
	Escape   key.Binding
	Quit     key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "previous choice"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "next choice"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("pgup", "scroll story up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("pgdn", "scroll story down"),
		),
		Enter: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "pick highlighted choice / proceed"),
		),
		Space: key.NewBinding(
			key.WithKeys(" ", "space"),
			key.WithHelp("space", "minigame action / proceed"),
		),
		Choose: key.NewBinding(
			key.WithKeys("1", "2", "3", "4", "5", "6", "7", "8", "9"),
			key.WithHelp("1-9", "pick choice N"),
		),
		Minigame: key.NewBinding(
			key.WithKeys("w", "a", "s", "d"),
			key.WithHelp("wasd", "minigame direction (hold to repeat)"),
		),
		Reset: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("ctrl+r", "reset story"),
		),
		Connect: key.NewBinding(
			key.WithKeys("ctrl+o"),
			key.WithHelp("ctrl+o", "reconnect"),
		),
		Log: key.NewBinding(
			key.WithKeys("l"),
			key.WithHelp("l", "activity log"),
		),
		Export: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "export log"),
		),
		Clear: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "clear log"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "close overlay"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp is the footer line.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Enter, k.Choose, k.Up, k.Minigame, k.Reset, k.Log, k.Help, k.Quit}
}

func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Enter, k.Choose, k.Up, k.Down, k.PageUp, k.PageDown},
		{k.Minigame, k.Space},
		{k.Reset, k.Connect},
		{k.Log, k.Export, k.Clear, k.Help, k.Escape, k.Quit},
	}
}

// Sections groups FullHelp for the help overlay.
func (k KeyMap) Sections() []help.Section {
	titles := []string{"Story", "Minigame", "Session", "Panel"}
	groups := k.FullHelp()
	out := make([]help.Section, len(groups))
	for i, g := range groups {
		out[i] = help.Section{Title: titles[i], Bindings: g}
	}
	return out
}
