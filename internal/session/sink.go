package session

import (
	"github.com/TylerJayP/Orchestrator/internal/logbook"
	"github.com/TylerJayP/Orchestrator/internal/protocol"
)

// Sink renders session changes. Calls arrive on the loop thread and must not
// block. Every State passed in is a private copy.
type Sink interface {
	RenderStatus(s State)
	RenderChoices(choices []protocol.Choice, selection int)
	RenderInputGating(ctx GatingContext, awaiting InputKind, minigameActive bool)
	RenderConnection(connected bool)
	RenderPeerConnection(connected bool)
	AppendLog(e logbook.Entry)
}

// Sinks fans every call out to each member in order.
type Sinks []Sink

func (ss Sinks) RenderStatus(s State) {
	for _, sink := range ss {
		sink.RenderStatus(s.Clone())
	}
}

func (ss Sinks) RenderChoices(choices []protocol.Choice, selection int) {
	for _, sink := range ss {
		sink.RenderChoices(append([]protocol.Choice(nil), choices...), selection)
	}
}

func (ss Sinks) RenderInputGating(ctx GatingContext, awaiting InputKind, minigameActive bool) {
	for _, sink := range ss {
		sink.RenderInputGating(ctx, awaiting, minigameActive)
	}
}

func (ss Sinks) RenderConnection(connected bool) {
	for _, sink := range ss {
		sink.RenderConnection(connected)
	}
}

func (ss Sinks) RenderPeerConnection(connected bool) {
	for _, sink := range ss {
		sink.RenderPeerConnection(connected)
	}
}

func (ss Sinks) AppendLog(e logbook.Entry) {
	for _, sink := range ss {
		sink.AppendLog(e)
	}
}

// Controls says which intents a panel should offer. The latest gating
// context can open a control group before the matching input kind is
// announced.
type Controls struct {
	Proceed  bool `json:"proceed"`
	Choices  int  `json:"choices"` // number of enabled choice slots
	Navigate bool `json:"navigate"`
	Scroll   bool `json:"scroll"`
	Minigame bool `json:"minigame"`
	Reset    bool `json:"reset"`
}

// ControlsFor computes the enabled controls for s under the latest gating
// context.
func ControlsFor(s State, ctx GatingContext) Controls {
	ready := s.Connected
	story := ready && !s.MinigameActive
	c := Controls{
		Proceed:  story && (s.AwaitingInputType == InputProceed || ctx == ContextStory),
		Navigate: story,
		Scroll:   story,
		Minigame: ready && s.MinigameActive,
		Reset:    ready,
	}
	if story && (s.AwaitingInputType == InputChoice || ctx == ContextChoices) {
		c.Choices = len(s.CurrentChoices)
	}
	return c
}
