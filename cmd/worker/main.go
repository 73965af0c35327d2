package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"escrow-marketplace/config"
	"escrow-marketplace/internal/app"
	"escrow-marketplace/pkg/logger"

	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Storage.Driver == "memory" {
		fmt.Fprintln(os.Stderr, "the worker needs shared storage; the memory driver runs its jobs inside the API process")
		os.Exit(1)
	}

	log := logger.New("worker", cfg.Log.Level, cfg.Log.Pretty)
	log.Info().Str("storage", cfg.Storage.Driver).Msg("Starting marketplace worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hostname, _ := os.Hostname()
	a, err := app.New(ctx, cfg, log, fmt.Sprintf("worker@%s:%d", hostname, os.Getpid()))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer a.Close()

	// Each replica relays and schedules; the job lock keeps sweeps single-run
	// and the relay claims outbox rows with SKIP LOCKED.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.Relay.Run(gctx) })
	g.Go(func() error { return a.Scheduler().Run(gctx) })

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Worker exited with error")
		return
	}
	log.Info().Msg("Worker exited")
}
