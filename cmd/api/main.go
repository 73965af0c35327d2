package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"escrow-marketplace/config"
	httpHandler "escrow-marketplace/internal/adapter/http/handler"
	"escrow-marketplace/internal/app"
	"escrow-marketplace/pkg/logger"

	"golang.org/x/sync/errgroup"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New("api", cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Str("storage", cfg.Storage.Driver).
		Int("port", cfg.Server.Port).
		Msg("Starting marketplace API")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hostname, _ := os.Hostname()
	a, err := app.New(ctx, cfg, log, "api@"+hostname)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer a.Close()

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		WalletSvc:       a.WalletSvc,
		OrderSvc:        a.OrderSvc,
		AuctionSvc:      a.AuctionSvc,
		ReturnSvc:       a.ReturnSvc,
		NotificationSvc: a.NotificationSvc,
		TokenSvc:        a.TokenSvc,
		AuctionFeed:     a.AuctionFeed,
		RateLimitStore:  a.RateLimits,
		HealthCheckers:  a.HealthCheckers,
		AuditSvc:        a.AuditSvc,
		BidsPerMinute:   cfg.Marketplace.BidRateLimitPerMinute,
		Logger:          log,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	// The memory driver keeps its outbox in this process; nobody else can relay it.
	if a.InProcess {
		log.Info().Msg("Running outbox relay and scheduler in-process")
		g.Go(func() error { return a.Relay.Run(gctx) })
		g.Go(func() error { return a.Scheduler().Run(gctx) })
	}

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server exited with error")
		return
	}
	log.Info().Msg("Server exited")
}
