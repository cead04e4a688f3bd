package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/TylerJayP/Orchestrator/internal/config"
	"github.com/TylerJayP/Orchestrator/internal/logging"
	"github.com/TylerJayP/Orchestrator/internal/loop"
	"github.com/TylerJayP/Orchestrator/internal/presenter"
	"github.com/TylerJayP/Orchestrator/internal/transport"
	"github.com/spf13/pflag"
)

// Time allowed for the goodbye message to leave before the connection closes.
const shutdownGrace = 500 * time.Millisecond

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
	flags := config.NewFlags("presenter-sim", "config.yaml")
	if err := flags.Parse(args); err != nil {
		return err
	}
	cfg, err := config.Loader{Path: flags.ConfigPath(), Flags: flags}.Load()
	if err != nil {
		return err
	}
	logger := logging.Console("presenter-sim", cfg.Log.Level)

	script := presenter.DefaultScript()
	if err := script.Validate(); err != nil {
		return err
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := loop.New(ctx)
	clientID := transport.NewClientID("WhiskersPresenter", time.Now())
	sim := presenter.New(l, script, clientID, logger)
	// The simulator sits on the far side of the topic pair.
	opts := transport.OptionsFrom(cfg.Broker, cfg.Topics.Publish, cfg.Topics.Subscribe, clientID)
	client := transport.New(l, transport.NewPahoDialer(cfg.Broker, clientID, logger), sim, opts, logger)
	sim.Attach(client)

	logger.Info().
		Str("client_id", clientID).
		Str("subscribe", opts.SubscribeTopic).
		Str("publish", opts.PublishTopic).
		Msg("starting presenter simulator")
	l.Run(client.Connect)

	go func() {
		<-sigCtx.Done()
		l.Run(func() {
			sim.Shutdown()
			l.After(shutdownGrace, func() {
				client.Close()
				cancel()
			})
		})
	}()

	if err := l.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info().Msg("presenter simulator stopped")
	return nil
}
