package intent

import (
	"errors"
	"time"

	"github.com/TylerJayP/Orchestrator/internal/config"
	"github.com/TylerJayP/Orchestrator/internal/loop"
	"github.com/TylerJayP/Orchestrator/internal/session"
	"github.com/rs/zerolog"
)

// ErrBounced is returned for input dropped by the device-level debounce.
var ErrBounced = errors.New("input bounced")

type Options struct {
	Debounce     time.Duration
	RepeatDelay  time.Duration
	ReleaseAfter time.Duration
}

func OptionsFrom(cfg config.InputConfig) Options {
	return Options{
		Debounce:     cfg.Debounce,
		RepeatDelay:  cfg.RepeatDelay,
		ReleaseAfter: cfg.ReleaseAfter,
	}
}

// hold is a minigame key treated as held down. Terminals report no key
// release, so a hold ends when no repeat keypress arrived for ReleaseAfter.
type hold struct {
	symbol  string
	repeat  *loop.Timer
	release *loop.Timer
}

// Source feeds intents to a Target. It must be used from the loop thread.
type Source struct {
	sched    loop.Scheduler
	target   Target
	opts     Options
	logger   zerolog.Logger
	debounce *Debouncer
	held     *hold
	stopped  bool
}

func NewSource(sched loop.Scheduler, target Target, opts Options, logger zerolog.Logger) *Source {
	return &Source{
		sched:    sched,
		target:   target,
		opts:     opts,
		logger:   logger.With().Str("component", "intent").Logger(),
		debounce: NewDebouncer(opts.Debounce),
	}
}

// SetOptions applies reloaded input timings. A running hold keeps its
// current repeat period.
func (s *Source) SetOptions(opts Options) {
	s.opts = opts
	s.debounce.SetInterval(opts.Debounce)
}

// Submit debounces and dispatches a one-shot intent. Any other input ends
// a running hold. Minigame intents go through Press instead.
func (s *Source) Submit(in Intent) error {
	if s.stopped {
		return nil
	}
	if in.Kind == Minigame {
		return s.Press(in.Symbol)
	}
	s.endHold()
	if !s.debounce.Allow(in.key(), s.sched.Now()) {
		s.logger.Debug().Stringer("intent", in).Msg("input bounced")
		return ErrBounced
	}
	return Dispatch(s.target, in)
}

// Press handles a minigame keypress. The first press sends the symbol and
// starts repeating it every RepeatDelay; further presses of the same key
// only keep the hold alive.
func (s *Source) Press(symbol string) error {
	if s.stopped {
		return nil
	}
	if s.held != nil && s.held.symbol == symbol {
		s.armRelease()
		return nil
	}
	s.endHold()

	in := Intent{Kind: Minigame, Symbol: symbol}
	if !s.debounce.Allow(in.key(), s.sched.Now()) {
		return ErrBounced
	}
	if err := Dispatch(s.target, in); err != nil {
		return err
	}

	h := &hold{symbol: symbol}
	s.held = h
	h.repeat = s.sched.Every(s.opts.RepeatDelay, func() { s.tick(h) })
	s.armRelease()
	return nil
}

// Holding reports the symbol currently held, if any.
func (s *Source) Holding() (string, bool) {
	if s.held == nil {
		return "", false
	}
	return s.held.symbol, true
}

// Release ends a running hold immediately.
func (s *Source) Release() { s.endHold() }

// Stop ends any hold and ignores further input.
func (s *Source) Stop() {
	s.endHold()
	s.stopped = true
}

func (s *Source) tick(h *hold) {
	if s.held != h {
		return
	}
	err := s.target.MinigameInput(h.symbol)
	if err != nil && !errors.Is(err, session.ErrDebounced) {
		s.logger.Debug().Err(err).Str("symbol", h.symbol).Msg("hold ended by rejection")
		s.endHold()
	}
}

func (s *Source) armRelease() {
	h := s.held
	h.release.Cancel()
	h.release = s.sched.After(s.opts.ReleaseAfter, func() {
		if s.held == h {
			s.endHold()
		}
	})
}

func (s *Source) endHold() {
	h := s.held
	if h == nil {
		return
	}
	s.held = nil
	h.repeat.Cancel()
	h.release.Cancel()
}
