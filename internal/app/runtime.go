package app

import (
	"github.com/TylerJayP/Orchestrator/internal/config"
	"github.com/TylerJayP/Orchestrator/internal/intent"
	"github.com/TylerJayP/Orchestrator/internal/logbook"
	"github.com/TylerJayP/Orchestrator/internal/loop"
	"github.com/TylerJayP/Orchestrator/internal/session"
	"github.com/TylerJayP/Orchestrator/internal/transport"
	"github.com/rs/zerolog"
)

// Runtime wires the transport, the session coordinator, the intent source
// and the panel. All methods run on the loop thread.
type Runtime struct {
	Sched       loop.Scheduler
	Panel       *Panel
	Coordinator *session.Coordinator
	Source      *intent.Source
	Transport   *transport.Client

	cfg    *config.Config
	logger zerolog.Logger
	closed bool
}

// NewRuntime builds the object graph. Extra sinks, such as the state
// mirror, receive every event the panel does.
func NewRuntime(sched loop.Scheduler, cfg *config.Config, dialer transport.Dialer, clientID string, logger zerolog.Logger, extra ...session.Sink) *Runtime {
	panel := NewPanel(cfg.Log.MaxEntries)
	var sink session.Sink = panel
	if len(extra) > 0 {
		sink = append(session.Sinks{panel}, extra...)
	}

	coord := session.NewCoordinator(sched, sink, session.OptionsFrom(cfg.Session), logger)
	opts := transport.OptionsFrom(cfg.Broker, cfg.Topics.Subscribe, cfg.Topics.Publish, clientID)
	tc := transport.New(sched, dialer, coord, opts, logger)
	coord.Attach(tc)

	return &Runtime{
		Sched:       sched,
		Panel:       panel,
		Coordinator: coord,
		Source:      intent.NewSource(sched, coord, intent.OptionsFrom(cfg.Input), logger),
		Transport:   tc,
		cfg:         cfg.Clone(),
		logger:      logger.With().Str("component", "app").Logger(),
	}
}

// Start opens the first broker connection.
func (r *Runtime) Start() {
	r.Coordinator.RequestConnect()
	r.sync()
}

// Submit hands one intent to the source and refreshes the adapter details.
func (r *Runtime) Submit(in intent.Intent) error {
	err := r.Source.Submit(in)
	r.sync()
	return err
}

// Apply takes a reloaded config. Timings, peer gating and the log size apply
// at once; broker and topic changes need a restart.
func (r *Runtime) Apply(cfg *config.Config) {
	if r.closed {
		return
	}
	r.Coordinator.SetOptions(session.OptionsFrom(cfg.Session))
	r.Source.SetOptions(intent.OptionsFrom(cfg.Input))
	r.Panel.ResizeLog(cfg.Log.MaxEntries)

	msg := "Configuration reloaded"
	if brokerChanged(r.cfg, cfg) {
		msg += ", broker and topic changes apply after restart"
	}
	r.cfg = cfg.Clone()
	r.note(logbook.System, msg)
	r.logger.Info().Msg("config applied")
}

// ConfigError reports a reload that failed to load or validate. The
// running config stays in effect.
func (r *Runtime) ConfigError(err error) {
	if r.closed {
		return
	}
	r.note(logbook.Error, "Configuration reload failed: "+err.Error())
	r.logger.Warn().Err(err).Msg("config reload failed")
}

// ExportLog writes the activity log to the configured export directory.
func (r *Runtime) ExportLog() {
	path, err := r.Panel.ExportLog(r.cfg.Log.ExportDir, r.Sched.Now())
	if err != nil {
		r.note(logbook.Error, "Log export failed: "+err.Error())
		return
	}
	r.note(logbook.Success, "Log exported to "+path)
}

func (r *Runtime) ClearLog() {
	r.Panel.ClearLog()
	r.note(logbook.System, "Log cleared")
}

// Close stops every timer and the connection. It is idempotent.
func (r *Runtime) Close() {
	if r.closed {
		return
	}
	r.closed = true
	r.Source.Stop()
	r.Coordinator.Close()
	r.Transport.Close()
}

// sync copies adapter details and the held key into the panel.
func (r *Runtime) sync() {
	st := r.Transport.Stats()
	r.Panel.SetTransport(st.Queued, st.Failed)
	held, _ := r.Source.Holding()
	r.Panel.SetHeld(held)
}

func (r *Runtime) note(cat logbook.Category, msg string) {
	r.Panel.AppendLog(logbook.Entry{Time: r.Sched.Now(), Message: msg, Category: cat})
}

func brokerChanged(a, b *config.Config) bool {
	return a.Broker.Primary != b.Broker.Primary ||
		a.Broker.Fallback != b.Broker.Fallback ||
		a.Broker.Port != b.Broker.Port ||
		a.Broker.SecurePort != b.Broker.SecurePort ||
		a.Broker.UseTLS != b.Broker.UseTLS ||
		a.Broker.Path != b.Broker.Path ||
		a.Topics != b.Topics
}
