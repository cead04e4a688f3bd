package session

import (
	"fmt"

	"github.com/TylerJayP/Orchestrator/internal/logbook"
	"github.com/TylerJayP/Orchestrator/internal/protocol"
)

// MessageReceived applies one Presenter event. Every handled message ends
// with a status render.
func (c *Coordinator) MessageReceived(msg protocol.Message) {
	c.log(logbook.MQTT, "Received: "+string(msg.Type))

	var err error
	switch msg.Type {
	case protocol.KindChapterChanged:
		err = c.chapterChanged(msg)
	case protocol.KindChoicesAvailable:
		err = c.choicesAvailable(msg)
	case protocol.KindReadyForInput:
		err = c.readyForInput(msg)
	case protocol.KindChoiceSelected:
		err = c.choiceSelected(msg)
	case protocol.KindMinigameStatus:
		err = c.minigameStatus(msg)
	case protocol.KindAudioStatus:
		var p protocol.AudioStatus
		if err = msg.Decode(&p); err == nil {
			c.log(logbook.Presenter, fmt.Sprintf("Audio %s: %s", p.Status, p.AudioFile))
		}
	case protocol.KindAppReady:
		c.appReady()
	case protocol.KindScrollStatus:
		var p protocol.ScrollStatus
		if err = msg.Decode(&p); err == nil {
			c.log(logbook.Presenter, fmt.Sprintf("Scroll %s - Top: %t, Bottom: %t", p.Direction, p.AtTop, p.AtBottom))
		}
	case protocol.KindChoiceMade:
		var p protocol.ChoiceMade
		if err = msg.Decode(&p); err == nil {
			c.log(logbook.Presenter, "Choice confirmed: "+p.ChoiceText)
		}
	case protocol.KindGameReset:
		err = c.gameReset(msg)
	case protocol.KindPresenterDisconnected:
		err = c.presenterDisconnected(msg)
	default:
		c.log(logbook.Error, "Unknown message type: "+string(msg.Type))
		return
	}
	if err != nil {
		c.log(logbook.Error, fmt.Sprintf("Error processing %s: %v", msg.Type, err))
		return
	}
	c.sink.RenderStatus(c.Snapshot())
}

func (c *Coordinator) chapterChanged(msg protocol.Message) error {
	var p protocol.ChapterChanged
	if err := msg.Decode(&p); err != nil {
		return err
	}
	name, ok := protocol.ChapterName(p.CurrentChapter)
	if !ok && name == protocol.UnknownChapter {
		c.logger.Warn().RawJSON("currentChapter", p.CurrentChapter).Msg("chapter id has neither id nor name")
	}
	c.state.CurrentChapter = name
	c.state.PlayerState = p.PlayerState
	if c.state.PlayerState == nil {
		c.state.PlayerState = map[string]any{}
	}
	display := name
	if display == "" {
		display = "none"
	}
	c.log(logbook.Presenter, "Chapter changed to: "+display)

	if !p.HasChoices {
		c.state.setChoices(nil, 0)
		c.sink.RenderChoices(c.choices(), 0)
	}
	return nil
}

func (c *Coordinator) choicesAvailable(msg protocol.Message) error {
	var p protocol.ChoicesAvailable
	if err := msg.Decode(&p); err != nil {
		return err
	}
	sel := 0
	if p.CurrentSelection != nil {
		sel = *p.CurrentSelection
	}
	c.state.setChoices(p.Choices, sel)
	c.sink.RenderChoices(c.choices(), c.state.CurrentSelection)
	c.log(logbook.Presenter, fmt.Sprintf("%d choices available", len(c.state.CurrentChoices)))
	return nil
}

func (c *Coordinator) readyForInput(msg protocol.Message) error {
	var p protocol.ReadyForInput
	if err := msg.Decode(&p); err != nil {
		return err
	}
	c.state.AwaitingInputType = InputKind(p.AwaitingInputType)
	c.sink.RenderInputGating(GatingContext(p.Context), c.state.AwaitingInputType, c.state.MinigameActive)
	awaiting := p.AwaitingInputType
	if awaiting == "" {
		awaiting = "none"
	}
	c.log(logbook.Presenter, "Ready for input: "+awaiting)
	return nil
}

func (c *Coordinator) choiceSelected(msg protocol.Message) error {
	var p protocol.ChoiceSelected
	if err := msg.Decode(&p); err != nil {
		return err
	}
	c.state.CurrentSelection = p.ChoiceIndex
	c.state.clampSelection()
	c.sink.RenderChoices(c.choices(), c.state.CurrentSelection)
	c.log(logbook.Presenter, fmt.Sprintf("Choice %d selected: %s", p.ChoiceIndex+1, p.ChoiceText))
	return nil
}

// minigameStatus notifies the sink only when activity flips.
func (c *Coordinator) minigameStatus(msg protocol.Message) error {
	var p protocol.MinigameStatus
	if err := msg.Decode(&p); err != nil {
		return err
	}
	was := c.state.MinigameActive
	active := p.IsActive()
	c.state.MinigameActive = active

	switch {
	case active && !was:
		c.sink.RenderInputGating(ContextMinigame, InputMinigame, true)
		c.log(logbook.Success, "Minigame started: "+p.MinigameID)
		c.log(logbook.Success, "Use WASD + SPACE to control the minigame")
	case !active && was:
		c.sink.RenderInputGating(ContextStory, c.state.AwaitingInputType, false)
		c.log(logbook.Presenter, "Minigame ended: "+p.MinigameID)
	}

	switch p.Status {
	case protocol.MinigameStarted:
		c.log(logbook.Success, "Minigame controls are now active")
	case protocol.MinigameCompleted:
		c.log(logbook.Success, "Minigame completed successfully")
	case protocol.MinigameFailed:
		c.log(logbook.Error, "Minigame failed, try again")
	case protocol.MinigameError:
		reason := "Unknown error"
		if p.Result != nil && p.Result.Error != "" {
			reason = p.Result.Error
		}
		c.log(logbook.Error, "Minigame error: "+reason)
	case protocol.MinigameProgress:
	default:
		c.log(logbook.Presenter, fmt.Sprintf("Minigame %s: %s", p.Status, p.MinigameID))
	}
	return nil
}

func (c *Coordinator) appReady() {
	c.state.PresenterConnected = true
	c.sink.RenderPeerConnection(true)
	c.log(logbook.Success, "Presenter app connected and ready")
	c.requestStatus(c.opts.StatusRequestDelay)
}

// gameReset applies a confirmed reset. Confirming an already reset state
// changes nothing.
func (c *Coordinator) gameReset(msg protocol.Message) error {
	var p protocol.GameReset
	if err := msg.Decode(&p); err != nil {
		return err
	}
	if !p.Success {
		reason := p.Error
		if reason == "" {
			reason = "Unknown error"
		}
		c.log(logbook.Error, "Game reset failed: "+reason)
		return nil
	}
	c.applyReset()
	c.log(logbook.Success, "Game reset completed, story is back at the start")
	return nil
}

func (c *Coordinator) presenterDisconnected(msg protocol.Message) error {
	var p protocol.PresenterDisconnected
	if err := msg.Decode(&p); err != nil {
		return err
	}
	c.state.PresenterConnected = false
	c.state.MinigameActive = false
	c.sink.RenderPeerConnection(false)
	c.sink.RenderInputGating(ContextDisconnected, InputNone, false)
	c.log(logbook.Error, "Presenter disconnected: "+p.ClientID)
	return nil
}

// --- transport events ---

func (c *Coordinator) TransportConnected(endpoint string) {
	c.state.Connected = true
	c.sink.RenderConnection(true)
	c.log(logbook.Success, "MQTT connected to "+endpoint)
	c.requestStatus(c.opts.ConnectResyncDelay)
	c.sink.RenderStatus(c.Snapshot())
}

// TransportDisconnected also clears peer readiness: a Presenter behind a
// lost broker connection is unreachable.
func (c *Coordinator) TransportDisconnected(err error) {
	c.state.Connected = false
	c.state.PresenterConnected = false
	c.sink.RenderConnection(false)
	c.sink.RenderPeerConnection(false)
	if err != nil {
		c.log(logbook.Error, "Connection error: "+err.Error())
	}
	c.sink.RenderStatus(c.Snapshot())
}

func (c *Coordinator) TransportFailed(err error) {
	c.log(logbook.Error, "Max reconnection attempts reached, press ctrl+o to reconnect")
	c.logger.Error().Err(err).Msg("transport gave up")
}

func (c *Coordinator) MessageDropped(err error) {
	c.log(logbook.Error, "Received invalid message: "+err.Error())
}

func (c *Coordinator) PublishFailed(err error) {
	c.log(logbook.Error, "Publish failed: "+err.Error())
}
