// Package session keeps the orchestrator's view of the remote story session
// in sync with the Presenter. A Coordinator owns the single State; it applies
// inbound Presenter events, validates user intents, applies optimistic local
// updates and notifies a Sink.
package session

import (
	"encoding/json"

	"github.com/TylerJayP/Orchestrator/internal/protocol"
)

// InputKind is the kind of input the Presenter is waiting for. The empty
// value means none has been announced.
type InputKind string

const (
	InputNone     InputKind = ""
	InputProceed  InputKind = "proceed"
	InputChoice   InputKind = "choice"
	InputMinigame InputKind = "minigame"
)

// GatingContext tells a sink which control group the latest gating change
// concerns.
type GatingContext string

const (
	ContextStory        GatingContext = "story"
	ContextChoices      GatingContext = "choices"
	ContextMinigame     GatingContext = "minigame"
	ContextDisconnected GatingContext = "disconnected"
)

// StartChapter is the chapter a reset story returns to.
const StartChapter = "start"

// Mode partitions the intent set. It is orthogonal to connectivity.
type Mode int

const (
	Story Mode = iota
	Minigame
)

func (m Mode) String() string {
	if m == Minigame {
		return "minigame"
	}
	return "story"
}

func (m Mode) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *Mode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*m = Story
	if s == "minigame" {
		*m = Minigame
	}
	return nil
}

// State is the orchestrator's view of the session. CurrentChapter is empty
// until the first chapter update.
type State struct {
	Connected          bool              `json:"connected"`
	PresenterConnected bool              `json:"presenterConnected"`
	CurrentChapter     string            `json:"currentChapter"`
	CurrentChoices     []protocol.Choice `json:"currentChoices"`
	CurrentSelection   int               `json:"currentSelection"`
	PlayerState        map[string]any    `json:"playerState"`
	AwaitingInputType  InputKind         `json:"awaitingInputType"`
	MinigameActive     bool              `json:"minigameActive"`
}

// Mode derives the active intent set.
func (s State) Mode() Mode {
	if s.MinigameActive {
		return Minigame
	}
	return Story
}

// Clone returns a deep copy so the result can be handed to other
// components.
func (s State) Clone() State {
	c := s
	if s.CurrentChoices != nil {
		c.CurrentChoices = make([]protocol.Choice, len(s.CurrentChoices))
		copy(c.CurrentChoices, s.CurrentChoices)
	}
	c.PlayerState = cloneMap(s.PlayerState)
	return c
}

// clampSelection restores 0 <= CurrentSelection < max(1, len(CurrentChoices)).
func (s *State) clampSelection() {
	upper := len(s.CurrentChoices) - 1
	if upper < 0 {
		upper = 0
	}
	if s.CurrentSelection > upper {
		s.CurrentSelection = upper
	}
	if s.CurrentSelection < 0 {
		s.CurrentSelection = 0
	}
}

func (s *State) setChoices(choices []protocol.Choice, selection int) {
	if choices == nil {
		choices = []protocol.Choice{}
	}
	s.CurrentChoices = choices
	s.CurrentSelection = selection
	s.clampSelection()
}

// reset applies the reset shape. Connectivity flags are left alone.
func (s *State) reset(playerState map[string]any) {
	s.CurrentChapter = StartChapter
	s.setChoices(nil, 0)
	s.MinigameActive = false
	s.AwaitingInputType = InputProceed
	s.PlayerState = cloneMap(playerState)
	if s.PlayerState == nil {
		s.PlayerState = map[string]any{}
	}
}

func cloneMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
