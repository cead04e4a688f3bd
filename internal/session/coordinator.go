package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/TylerJayP/Orchestrator/internal/config"
	"github.com/TylerJayP/Orchestrator/internal/logbook"
	"github.com/TylerJayP/Orchestrator/internal/loop"
	"github.com/TylerJayP/Orchestrator/internal/protocol"
	"github.com/TylerJayP/Orchestrator/internal/transport"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Intent rejection reasons.
var (
	ErrNotConnected       = errors.New("not connected")
	ErrPresenterNotReady  = errors.New("presenter not ready")
	ErrDebounced          = errors.New("debounced")
	ErrNoMinigame         = errors.New("no active minigame")
	ErrMinigameInProgress = errors.New("minigame in progress")
	ErrChoiceOutOfRange   = errors.New("choice out of range")
	ErrInvalidDirection   = errors.New("invalid direction")
	ErrInvalidSymbol      = errors.New("invalid minigame input")
)

// Transport is what the coordinator needs from the transport adapter.
type Transport interface {
	Publish(payload []byte) error
	Reconnect()
}

type Options struct {
	MinIntentInterval  time.Duration
	RequirePeerReady   bool
	StatusRequestDelay time.Duration
	ConnectResyncDelay time.Duration
	DefaultPlayerState map[string]any
}

// OptionsFrom maps the session config section.
func OptionsFrom(cfg config.SessionConfig) Options {
	ps := cfg.DefaultPlayerState
	if ps == nil {
		ps = config.DefaultPlayerState()
	}
	return Options{
		MinIntentInterval:  cfg.MinIntentInterval,
		RequirePeerReady:   cfg.RequirePeerReady,
		StatusRequestDelay: cfg.StatusRequestDelay,
		ConnectResyncDelay: cfg.ConnectResyncDelay,
		DefaultPlayerState: config.CopyPlayerState(ps),
	}
}

// Coordinator owns the session State. All methods must run on the loop
// thread.
type Coordinator struct {
	sched     loop.Scheduler
	transport Transport
	sink      Sink
	opts      Options
	logger    zerolog.Logger

	state       State
	lastIntent  time.Time
	statusTimer *loop.Timer
	closed      bool
}

var _ transport.Listener = (*Coordinator)(nil)

// NewCoordinator creates a coordinator with the initial disconnected state.
// Attach a transport before submitting intents.
func NewCoordinator(sched loop.Scheduler, sink Sink, opts Options, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		sched:  sched,
		sink:   sink,
		opts:   opts,
		logger: logger.With().Str("component", "session").Logger(),
		state: State{
			CurrentChoices: []protocol.Choice{},
			PlayerState:    map[string]any{},
		},
	}
}

// Attach sets the transport used for outbound messages.
func (c *Coordinator) Attach(t Transport) { c.transport = t }

// SetOptions applies reloaded timings. The state is untouched.
func (c *Coordinator) SetOptions(opts Options) { c.opts = opts }

// Snapshot returns a private copy of the current state.
func (c *Coordinator) Snapshot() State { return c.state.Clone() }

// Close cancels the pending status request. Safe to call more than once.
func (c *Coordinator) Close() {
	if c.closed {
		return
	}
	c.closed = true
	c.statusTimer.Cancel()
	c.statusTimer = nil
}

// --- intents ---

// Proceed asks the Presenter to advance the story.
func (c *Coordinator) Proceed() error {
	if err := c.checkStory("proceed"); err != nil {
		return err
	}
	if err := c.accept("proceed"); err != nil {
		return err
	}
	c.send(protocol.KindProceedChapter, protocol.ProceedChapter{Action: "next"})
	c.log(logbook.MQTT, "Sent: Proceed chapter")
	return nil
}

// Choose picks choice index (zero-based). The local cursor moves before the
// message is sent.
func (c *Coordinator) Choose(index int) error {
	action := fmt.Sprintf("select choice %d", index+1)
	if err := c.checkStory(action); err != nil {
		return err
	}
	if index < 0 || index >= len(c.state.CurrentChoices) {
		return c.reject(action, ErrChoiceOutOfRange)
	}
	if err := c.accept(action); err != nil {
		return err
	}
	c.state.CurrentSelection = index
	c.sink.RenderChoices(c.choices(), index)
	c.send(protocol.KindMakeChoice, protocol.MakeChoice{ChoiceIndex: index})
	c.log(logbook.MQTT, fmt.Sprintf("Selected choice %d: %s", index+1, c.state.CurrentChoices[index].Text))
	return nil
}

// Navigate moves the selection cursor one step without wrapping and tells
// the Presenter to do the same.
func (c *Coordinator) Navigate(direction string) error {
	action := "navigate " + direction
	if err := c.checkStory(action); err != nil {
		return err
	}
	if !protocol.ValidDirection(direction) {
		return c.reject(action, ErrInvalidDirection)
	}
	if err := c.accept(action); err != nil {
		return err
	}
	if n := len(c.state.CurrentChoices); n > 0 {
		next := c.state.CurrentSelection
		if direction == protocol.DirectionUp {
			next--
		} else {
			next++
		}
		prev := c.state.CurrentSelection
		c.state.CurrentSelection = next
		c.state.clampSelection()
		if c.state.CurrentSelection != prev {
			c.sink.RenderChoices(c.choices(), c.state.CurrentSelection)
		}
	}
	c.send(protocol.KindNavigateChoice, protocol.NavigateChoice{Direction: direction})
	c.log(logbook.MQTT, "Navigate "+direction)
	return nil
}

// Scroll scrolls the Presenter's story text.
func (c *Coordinator) Scroll(direction string) error {
	action := "scroll " + direction
	if err := c.checkStory(action); err != nil {
		return err
	}
	if !protocol.ValidDirection(direction) {
		return c.reject(action, ErrInvalidDirection)
	}
	if err := c.accept(action); err != nil {
		return err
	}
	kind := protocol.KindScrollDown
	if direction == protocol.DirectionUp {
		kind = protocol.KindScrollUp
	}
	c.send(kind, nil)
	c.log(logbook.MQTT, "Scroll "+direction)
	return nil
}

// MinigameInput forwards one of w, a, s, d or space. Minigame activity is
// checked before connectivity.
func (c *Coordinator) MinigameInput(symbol string) error {
	action := fmt.Sprintf("send input '%s'", symbol)
	if !c.state.MinigameActive {
		return c.reject(action, ErrNoMinigame)
	}
	if err := c.checkLink(action); err != nil {
		return err
	}
	if !protocol.ValidMinigameInput(symbol) {
		return c.reject(action, ErrInvalidSymbol)
	}
	if err := c.accept(action); err != nil {
		return err
	}
	c.send(protocol.KindMinigameInput, protocol.MinigameInput{Input: symbol})
	c.log(logbook.MQTT, "Minigame input: "+strings.ToUpper(symbol))
	return nil
}

// Reset restarts the story. The local state takes the reset shape before
// the request is sent; a later success confirmation applies the same shape.
func (c *Coordinator) Reset() error {
	if err := c.checkLink("reset"); err != nil {
		return err
	}
	if err := c.accept("reset"); err != nil {
		return err
	}
	c.applyReset()
	c.send(protocol.KindResetGame, nil)
	c.log(logbook.System, "Local state reset, waiting for Presenter confirmation")
	c.sink.RenderStatus(c.Snapshot())
	return nil
}

// RequestConnect starts a fresh connection cycle. It is never gated.
func (c *Coordinator) RequestConnect() {
	c.log(logbook.System, "Connecting to broker")
	if c.transport != nil {
		c.transport.Reconnect()
	}
}

func (c *Coordinator) checkLink(action string) error {
	if !c.state.Connected {
		return c.reject(action, ErrNotConnected)
	}
	if c.opts.RequirePeerReady && !c.state.PresenterConnected {
		return c.reject(action, ErrPresenterNotReady)
	}
	return nil
}

func (c *Coordinator) checkStory(action string) error {
	if err := c.checkLink(action); err != nil {
		return err
	}
	if c.state.MinigameActive {
		return c.reject(action, ErrMinigameInProgress)
	}
	return nil
}

// accept enforces the minimum interval between accepted intents and
// records this one.
func (c *Coordinator) accept(action string) error {
	now := c.sched.Now()
	if !c.lastIntent.IsZero() && now.Sub(c.lastIntent) < c.opts.MinIntentInterval {
		return c.reject(action, ErrDebounced)
	}
	c.lastIntent = now
	return nil
}

func (c *Coordinator) reject(action string, reason error) error {
	err := fmt.Errorf("cannot %s: %w", action, reason)
	if errors.Is(reason, ErrDebounced) {
		c.logger.Debug().Str("intent", action).Msg("intent debounced")
		return err
	}
	c.log(logbook.Error, fmt.Sprintf("Cannot %s - %s", action, reason))
	return err
}

func (c *Coordinator) send(kind protocol.Kind, payload any) {
	msg, err := protocol.New(kind, c.sched.Now(), payload)
	if err != nil {
		c.log(logbook.Error, fmt.Sprintf("Cannot encode %s: %v", kind, err))
		return
	}
	if c.transport == nil {
		c.logger.Warn().Str("type", string(kind)).Msg("no transport attached")
		return
	}
	if err := c.transport.Publish(msg.Raw); err != nil {
		c.log(logbook.Error, fmt.Sprintf("Cannot send %s: %v", kind, err))
		return
	}
	c.logger.Debug().Str("type", string(kind)).RawJSON("payload", msg.Raw).Msg("sent")
}

func (c *Coordinator) applyReset() {
	c.state.reset(c.opts.DefaultPlayerState)
	c.sink.RenderChoices(c.choices(), 0)
	c.sink.RenderInputGating(ContextStory, InputProceed, false)
}

func (c *Coordinator) requestStatus(after time.Duration) {
	c.statusTimer.Cancel()
	if c.closed {
		return
	}
	c.statusTimer = c.sched.After(after, func() {
		c.statusTimer = nil
		if !c.state.Connected || c.closed {
			return
		}
		c.send(protocol.KindStatusRequest, protocol.StatusRequest{RequestID: newRequestID()})
		c.logger.Debug().Msg("status requested")
	})
}

func newRequestID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
}

func (c *Coordinator) choices() []protocol.Choice {
	return append([]protocol.Choice(nil), c.state.CurrentChoices...)
}

func (c *Coordinator) log(cat logbook.Category, msg string) {
	c.sink.AppendLog(logbook.Entry{Time: c.sched.Now(), Message: msg, Category: cat})
	ev := c.logger.Info()
	if cat == logbook.Error {
		ev = c.logger.Warn()
	}
	ev.Str("category", string(cat)).Msg(msg)
}
