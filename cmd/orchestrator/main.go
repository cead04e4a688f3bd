package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/TylerJayP/Orchestrator/internal/app"
	"github.com/TylerJayP/Orchestrator/internal/config"
	"github.com/TylerJayP/Orchestrator/internal/logging"
	"github.com/TylerJayP/Orchestrator/internal/loop"
	"github.com/TylerJayP/Orchestrator/internal/mirror"
	"github.com/TylerJayP/Orchestrator/internal/session"
	"github.com/TylerJayP/Orchestrator/internal/transport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := config.NewFlags("orchestrator", "config.yaml")
	if err := flags.Parse(args); err != nil {
		return err
	}
	loader := config.Loader{Path: flags.ConfigPath(), Flags: flags}
	cfg, err := loader.Load()
	if err != nil {
		return err
	}

	logger, closer, err := logging.File("orchestrator", cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	l := loop.New(ctx)
	clientID := transport.NewClientID(cfg.Broker.ClientIDPrefix, time.Now())
	dialer := transport.NewPahoDialer(cfg.Broker, clientID, logger)
	logger.Info().
		Str("client_id", clientID).
		Strs("endpoints", transport.Endpoints(cfg.Broker)).
		Str("config", loader.Path).
		Msg("starting orchestrator")

	var extra []session.Sink
	if cfg.Mirror.Enabled {
		b := mirror.NewBroadcaster(cfg.Mirror.MaxConns, logger)
		extra = append(extra, b)
		srv := mirror.NewServer(b, cfg.Mirror.AllowedOrigins, logger)
		go func() {
			if err := srv.ListenAndServe(ctx, cfg.Mirror.Addr); err != nil {
				logger.Error().Err(err).Str("addr", cfg.Mirror.Addr).Msg("mirror stopped")
			}
		}()
	}

	rt := app.NewRuntime(l, cfg, dialer, clientID, logger, extra...)

	go func() {
		err := loader.Watch(ctx,
			func(next *config.Config) { l.Run(func() { rt.Apply(next) }) },
			func(err error) { l.Run(func() { rt.ConfigError(err) }) },
		)
		if err != nil {
			logger.Warn().Err(err).Msg("config watch disabled")
		}
	}()

	p := tea.NewProgram(app.New(rt, l), tea.WithAltScreen(), tea.WithContext(ctx))
	if err := runUI(rt, p.Run); err != nil {
		return err
	}
	logger.Info().Msg("orchestrator stopped")
	return nil
}

// runUI runs the program and closes the runtime however it ends, a signal
// included. The program no longer drains the loop at that point, so Close
// does not race with it.
func runUI(rt *app.Runtime, run func() (tea.Model, error)) error {
	defer rt.Close()
	if _, err := run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}
