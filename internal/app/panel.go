package app

import (
	"time"

	"github.com/TylerJayP/Orchestrator/internal/logbook"
	"github.com/TylerJayP/Orchestrator/internal/protocol"
	"github.com/TylerJayP/Orchestrator/internal/session"
	"github.com/TylerJayP/Orchestrator/internal/views/choices"
	"github.com/TylerJayP/Orchestrator/internal/views/controls"
	"github.com/TylerJayP/Orchestrator/internal/views/logview"
	"github.com/TylerJayP/Orchestrator/internal/views/status"
)

// Panel is the terminal session.Sink. It owns the activity log and the
// sub-views, and is only touched from the loop thread.
type Panel struct {
	book   *logbook.Book
	state  session.State
	gating session.GatingContext

	statusBar status.Model
	choices   choices.Model
	controls  controls.Model
	log       logview.Model
}

var _ session.Sink = (*Panel)(nil)

func NewPanel(maxEntries int) *Panel {
	p := &Panel{
		book:      logbook.New(maxEntries),
		state:     session.State{CurrentChoices: []protocol.Choice{}, PlayerState: map[string]any{}},
		gating:    session.ContextDisconnected,
		statusBar: status.New(),
		choices:   choices.New(),
		controls:  controls.New(),
		log:       logview.New(),
	}
	p.refresh()
	return p
}

func (p *Panel) RenderStatus(s session.State) {
	p.state = s
	p.statusBar.SetState(s)
	p.choices.Set(s.CurrentChoices, s.CurrentSelection)
	p.refresh()
}

func (p *Panel) RenderChoices(c []protocol.Choice, selection int) {
	p.state.CurrentChoices = c
	p.state.CurrentSelection = selection
	p.choices.Set(c, selection)
	p.refresh()
}

func (p *Panel) RenderInputGating(ctx session.GatingContext, awaiting session.InputKind, minigameActive bool) {
	p.gating = ctx
	if awaiting != session.InputNone {
		p.state.AwaitingInputType = awaiting
	}
	p.state.MinigameActive = minigameActive
	p.statusBar.SetState(p.state)
	p.refresh()
}

func (p *Panel) RenderConnection(connected bool) {
	p.state.Connected = connected
	p.statusBar.Connected = connected
	if connected {
		p.statusBar.Failed = false
	}
	p.refresh()
}

func (p *Panel) RenderPeerConnection(connected bool) {
	p.state.PresenterConnected = connected
	p.statusBar.PresenterConnected = connected
	p.refresh()
}

func (p *Panel) AppendLog(e logbook.Entry) {
	p.book.Add(e)
	p.log.SetEntries(p.book.Entries())
}

// Controls is the enabled intent set under the latest gating context.
func (p *Panel) Controls() session.Controls {
	return session.ControlsFor(p.state, p.gating)
}

// SetTransport shows adapter details the session does not track.
func (p *Panel) SetTransport(queued int, failed bool) {
	p.statusBar.Queued = queued
	p.statusBar.Failed = failed
}

// SetHeld shows the minigame key being held, or clears it.
func (p *Panel) SetHeld(symbol string) { p.controls.Held = symbol }

func (p *Panel) ExportLog(dir string, now time.Time) (string, error) {
	return p.book.ExportFile(dir, now)
}

func (p *Panel) ClearLog() {
	p.book.Clear()
	p.log.SetEntries(nil)
}

func (p *Panel) ResizeLog(maxEntries int) {
	p.book.Resize(maxEntries)
	p.log.SetEntries(p.book.Entries())
}

func (p *Panel) refresh() {
	c := p.Controls()
	p.controls.Controls = c
	p.choices.Enabled = c.Choices
}
