package presenter

import (
	"encoding/json"

	"github.com/TylerJayP/Orchestrator/internal/config"
	"github.com/TylerJayP/Orchestrator/internal/loop"
	"github.com/TylerJayP/Orchestrator/internal/protocol"
	"github.com/TylerJayP/Orchestrator/internal/transport"
	"github.com/rs/zerolog"
)

const scrollSteps = 5

// Publisher sends one encoded message. *transport.Client implements it.
type Publisher interface {
	Publish(payload []byte) error
}

// chapterRef is the composite chapter identifier the real Presenter sends.
type chapterRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Simulator plays a Script in response to Orchestrator commands. It is a
// transport.Listener and, like everything on the loop, is single-threaded.
type Simulator struct {
	sched    loop.Scheduler
	script   Script
	clientID string
	logger   zerolog.Logger
	pub      Publisher

	chapter   string
	player    map[string]any
	selection int
	scroll    int
	inputs    int
	minigame  bool
	connected bool
	greetNext bool
}

var _ transport.Listener = (*Simulator)(nil)

func New(sched loop.Scheduler, script Script, clientID string, logger zerolog.Logger) *Simulator {
	s := &Simulator{
		sched:    sched,
		script:   script,
		clientID: clientID,
		logger:   logger.With().Str("component", "presenter").Logger(),
	}
	s.restart()
	return s
}

// Attach sets the publisher. It must be called before the first connect.
func (s *Simulator) Attach(p Publisher) { s.pub = p }

// Chapter returns the current chapter id.
func (s *Simulator) Chapter() string { return s.chapter }

// MinigameActive reports whether a minigame is running.
func (s *Simulator) MinigameActive() bool { return s.minigame }

// Shutdown tells the Orchestrator the Presenter is going away.
func (s *Simulator) Shutdown() {
	if !s.connected {
		return
	}
	s.publish(protocol.KindPresenterDisconnected, protocol.PresenterDisconnected{ClientID: s.clientID})
}

// --- transport.Listener ---

func (s *Simulator) TransportConnected(endpoint string) {
	s.connected = true
	s.greetNext = true
	s.logger.Info().Str("endpoint", endpoint).Str("chapter", s.chapter).Msg("presenter online")
	s.publish(protocol.KindAppReady, protocol.AppReady{ClientID: s.clientID})
	s.announce()
}

func (s *Simulator) TransportDisconnected(err error) {
	s.connected = false
	s.logger.Warn().Err(err).Msg("presenter offline")
}

func (s *Simulator) TransportFailed(err error) {
	s.logger.Error().Err(err).Msg("presenter gave up reconnecting")
}

func (s *Simulator) MessageDropped(err error) {
	s.logger.Warn().Err(err).Msg("dropped invalid command")
}

func (s *Simulator) PublishFailed(err error) {
	s.logger.Warn().Err(err).Msg("publish failed")
}

func (s *Simulator) MessageReceived(msg protocol.Message) {
	log := s.logger.With().Str("type", string(msg.Type)).Logger()
	var err error
	switch msg.Type {
	case protocol.KindStatusRequest:
		s.statusRequested()
	case protocol.KindProceedChapter:
		s.proceed()
	case protocol.KindNavigateChoice:
		err = s.navigate(msg)
	case protocol.KindMakeChoice:
		err = s.choose(msg)
	case protocol.KindScrollUp:
		s.scrollBy(-1)
	case protocol.KindScrollDown:
		s.scrollBy(1)
	case protocol.KindMinigameInput:
		err = s.minigameInput(msg)
	case protocol.KindResetGame:
		s.restart()
		s.publish(protocol.KindGameReset, protocol.GameReset{Success: true})
		s.announce()
	default:
		log.Debug().Msg("ignoring message")
		return
	}
	if err != nil {
		log.Warn().Err(err).Msg("bad command")
		return
	}
	log.Debug().Str("chapter", s.chapter).Msg("handled")
}

// --- story ---

func (s *Simulator) current() Chapter { return s.script.Chapters[s.chapter] }

func (s *Simulator) restart() {
	s.player = config.DefaultPlayerState()
	s.enter(s.script.Start)
}

func (s *Simulator) enter(id string) {
	s.chapter = id
	s.selection = 0
	s.scroll = 0
	s.inputs = 0
	ch := s.current()
	for k, v := range ch.PlayerState {
		s.player[k] = v
	}
	s.minigame = ch.Minigame != nil
}

// announce publishes the full state of the current chapter, the way the
// Presenter answers a status request.
func (s *Simulator) announce() {
	ch := s.current()
	ref, _ := json.Marshal(chapterRef{ID: ch.ID, Name: ch.Title})
	s.publish(protocol.KindChapterChanged, protocol.ChapterChanged{
		CurrentChapter: ref,
		PlayerState:    config.CopyPlayerState(s.player),
		HasChoices:     len(ch.Choices) > 0,
	})
	if len(ch.Choices) > 0 {
		sel := s.selection
		s.publish(protocol.KindChoicesAvailable, protocol.ChoicesAvailable{
			Choices:          choiceList(ch.Choices),
			CurrentSelection: &sel,
		})
	}
	if ch.Minigame != nil && s.minigame {
		s.publish(protocol.KindMinigameStatus, protocol.MinigameStatus{
			MinigameID: ch.Minigame.ID,
			Status:     protocol.MinigameStarted,
		})
	}
	s.publish(protocol.KindReadyForInput, protocol.ReadyForInput{
		AwaitingInputType: ch.Awaiting(),
		Context:           contextFor(ch),
	})
}

// statusRequested answers with the chapter state. Every other request also
// repeats app_ready so an Orchestrator that joined after the first one
// still learns the Presenter is up; app_ready makes it ask again, and the
// alternation stops that exchange after one round.
func (s *Simulator) statusRequested() {
	if s.greetNext {
		s.publish(protocol.KindAppReady, protocol.AppReady{ClientID: s.clientID})
	}
	s.greetNext = !s.greetNext
	s.announce()
}

func (s *Simulator) advance(id string) {
	s.enter(id)
	s.publish(protocol.KindAudioStatus, protocol.AudioStatus{Status: "playing", AudioFile: id + ".mp3"})
	s.announce()
}

func (s *Simulator) proceed() {
	ch := s.current()
	switch {
	case s.minigame, len(ch.Choices) > 0:
		s.logger.Info().Str("chapter", ch.ID).Msg("proceed ignored, chapter is waiting for other input")
	case ch.Next == "":
		s.logger.Info().Str("chapter", ch.ID).Msg("story finished")
	default:
		s.advance(ch.Next)
	}
}

func (s *Simulator) navigate(msg protocol.Message) error {
	var p protocol.NavigateChoice
	if err := msg.Decode(&p); err != nil {
		return err
	}
	ch := s.current()
	if len(ch.Choices) == 0 {
		return nil
	}
	switch p.Direction {
	case protocol.DirectionUp:
		if s.selection > 0 {
			s.selection--
		}
	case protocol.DirectionDown:
		if s.selection < len(ch.Choices)-1 {
			s.selection++
		}
	}
	s.publish(protocol.KindChoiceSelected, protocol.ChoiceSelected{
		ChoiceIndex: s.selection,
		ChoiceText:  ch.Choices[s.selection].Text,
	})
	return nil
}

func (s *Simulator) choose(msg protocol.Message) error {
	var p protocol.MakeChoice
	if err := msg.Decode(&p); err != nil {
		return err
	}
	ch := s.current()
	if p.ChoiceIndex < 0 || p.ChoiceIndex >= len(ch.Choices) {
		s.logger.Warn().Int("index", p.ChoiceIndex).Str("chapter", ch.ID).Msg("choice out of range")
		return nil
	}
	opt := ch.Choices[p.ChoiceIndex]
	s.publish(protocol.KindChoiceMade, protocol.ChoiceMade{ChoiceIndex: p.ChoiceIndex, ChoiceText: opt.Text})
	s.advance(opt.Target)
	return nil
}

func (s *Simulator) scrollBy(delta int) {
	s.scroll += delta
	if s.scroll < 0 {
		s.scroll = 0
	}
	if s.scroll > scrollSteps {
		s.scroll = scrollSteps
	}
	dir := protocol.DirectionDown
	if delta < 0 {
		dir = protocol.DirectionUp
	}
	s.publish(protocol.KindScrollStatus, protocol.ScrollStatus{
		Direction: dir,
		AtTop:     s.scroll == 0,
		AtBottom:  s.scroll == scrollSteps,
	})
}

func (s *Simulator) minigameInput(msg protocol.Message) error {
	var p protocol.MinigameInput
	if err := msg.Decode(&p); err != nil {
		return err
	}
	ch := s.current()
	if !s.minigame || ch.Minigame == nil {
		return nil
	}
	s.inputs++
	if s.inputs < ch.Minigame.Target {
		s.publish(protocol.KindMinigameStatus, protocol.MinigameStatus{
			MinigameID: ch.Minigame.ID,
			Status:     protocol.MinigameProgress,
		})
		return nil
	}
	s.minigame = false
	s.publish(protocol.KindMinigameStatus, protocol.MinigameStatus{
		MinigameID: ch.Minigame.ID,
		Status:     protocol.MinigameCompleted,
	})
	if ch.Next != "" {
		s.advance(ch.Next)
	}
	return nil
}

func (s *Simulator) publish(kind protocol.Kind, payload any) {
	if s.pub == nil {
		return
	}
	msg, err := protocol.New(kind, s.sched.Now(), payload)
	if err != nil {
		s.logger.Error().Err(err).Str("type", string(kind)).Msg("encode failed")
		return
	}
	if err := s.pub.Publish(msg.Raw); err != nil {
		s.logger.Warn().Err(err).Str("type", string(kind)).Msg("publish failed")
	}
}

func choiceList(opts []Option) []protocol.Choice {
	out := make([]protocol.Choice, len(opts))
	for i, o := range opts {
		out[i] = protocol.Choice{Text: o.Text}
	}
	return out
}

func contextFor(ch Chapter) string {
	switch ch.Awaiting() {
	case "minigame":
		return "minigame"
	case "choice":
		return "choices"
	}
	return "story"
}
