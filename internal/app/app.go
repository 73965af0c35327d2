// Package app wires storage, messaging and services from configuration.
// Both binaries build on it: cmd/api serves HTTP, cmd/worker runs the outbox
// relay and the scheduled sweeps.
package app

import (
	"context"
	"fmt"

	"escrow-marketplace/config"
	natsBus "escrow-marketplace/internal/adapter/messaging/nats"
	"escrow-marketplace/internal/adapter/storage/memory"
	pgStorage "escrow-marketplace/internal/adapter/storage/postgres"
	redisStorage "escrow-marketplace/internal/adapter/storage/redis"
	"escrow-marketplace/internal/core/domain"
	"escrow-marketplace/internal/core/ports"
	"escrow-marketplace/internal/scheduler"
	"escrow-marketplace/internal/service"
	"escrow-marketplace/pkg/logger"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// App holds the wired services and the infrastructure they run on.
type App struct {
	Config *config.Config
	Log    zerolog.Logger

	WalletSvc       ports.WalletService
	OrderSvc        ports.OrderService
	AuctionSvc      ports.AuctionService
	ReturnSvc       ports.ReturnService
	CatalogSvc      ports.CatalogService
	NotificationSvc ports.NotificationService
	AuditSvc        ports.AuditService
	TokenSvc        ports.TokenService

	Relay          *service.OutboxRelay
	AuctionFeed    ports.AuctionFeed
	RateLimits     *redisStorage.RateLimitStore
	JobLock        *redisStorage.JobLock
	HealthCheckers []ports.HealthChecker

	// Store is the memory driver's store, nil otherwise. Users and the
	// catalog are owned elsewhere, so local runs seed them through it.
	Store *memory.Store

	// InProcess is set for the memory driver. Its outbox and feed live in
	// this process, so the relay and the scheduler must run here too.
	InProcess bool

	closers []func()
}

// New connects to every dependency named by cfg and builds the services.
// owner identifies this process in distributed job locks.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger, owner string) (*App, error) {
	settings, err := service.SettingsFromConfig(cfg.Marketplace)
	if err != nil {
		return nil, fmt.Errorf("marketplace settings: %w", err)
	}

	a := &App{Config: cfg, Log: log}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	a.closers = append(a.closers, func() { _ = rdb.Close() })
	a.RateLimits = redisStorage.NewRateLimitStore(rdb)
	a.JobLock = redisStorage.NewJobLock(rdb, owner)
	a.HealthCheckers = append(a.HealthCheckers, redisStorage.NewHealthCheck(rdb))

	deps := service.Deps{Settings: settings, Log: log}
	var (
		auditRepo  ports.AuditRepository
		bus        ports.EventPublisher
		relayFeed  ports.EventPublisher
		transactor ports.DBTransactor
	)

	switch cfg.Storage.Driver {
	case "memory":
		store := memory.New()
		store.Users().Put(domain.User{ID: settings.PlatformUserID, Email: "platform@localhost", Role: domain.RoleAdmin})
		deps.Wallets, deps.Transactions, deps.Users = store.Wallets(), store.Transactions(), store.Users()
		deps.Products, deps.Carts, deps.Orders = store.Products(), store.Carts(), store.Orders()
		deps.Auctions, deps.Returns, deps.Notifications = store.Auctions(), store.Returns(), store.Notifications()
		deps.Outbox = store.Outbox()
		transactor = store
		auditRepo = store.Audit()

		feed := memory.NewFeed()
		bus = feed
		a.AuctionFeed = feed
		a.InProcess = true
		a.Store = store
		a.HealthCheckers = append(a.HealthCheckers, store)
		log.Warn().Msg("memory storage driver: state is lost on exit")

	case "postgres":
		pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		if err := pgStorage.ApplySchema(ctx, pool); err != nil {
			return nil, err
		}
		deps.Wallets, deps.Transactions, deps.Users = pgStorage.NewWalletRepo(pool), pgStorage.NewTransactionRepo(pool), pgStorage.NewUserRepo(pool)
		deps.Products, deps.Carts, deps.Orders = pgStorage.NewProductRepo(pool), pgStorage.NewCartRepo(pool), pgStorage.NewOrderRepo(pool)
		deps.Auctions, deps.Returns, deps.Notifications = pgStorage.NewAuctionRepo(pool), pgStorage.NewReturnRepo(pool), pgStorage.NewNotificationRepo(pool)
		deps.Outbox = pgStorage.NewOutboxRepo(pool)
		transactor = pgStorage.NewTransactor(pool, cfg.Database.LockTimeout)
		auditRepo = pgStorage.NewAuditRepo(pool)
		a.HealthCheckers = append(a.HealthCheckers, pgStorage.NewHealthCheck(pool))

		publisher, err := a.connectNATS(ctx, cfg.NATS, log)
		if err != nil {
			return nil, err
		}
		bus = publisher
		feed := redisStorage.NewAuctionFeed(rdb, log)
		relayFeed = feed
		a.AuctionFeed = feed

	default:
		return nil, fmt.Errorf("storage.driver %q is not supported", cfg.Storage.Driver)
	}
	deps.Transactor = transactor

	idempotency := redisStorage.NewIdempotencyCache(rdb)
	a.WalletSvc = service.NewWalletService(deps, idempotency)
	a.OrderSvc = service.NewOrderService(deps)
	a.AuctionSvc = service.NewAuctionService(deps)
	a.ReturnSvc = service.NewReturnService(deps)
	a.CatalogSvc = service.NewCatalogService(deps.Products, nil, log)
	a.NotificationSvc = service.NewNotificationService(deps.Notifications)
	a.AuditSvc = service.NewAuditService(auditRepo, log)
	a.TokenSvc = service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	a.Relay = service.NewOutboxRelay(transactor, deps.Outbox, bus, relayFeed, service.RelayConfig{
		BatchSize:   cfg.Outbox.BatchSize,
		MaxAttempts: cfg.Outbox.MaxAttempts,
		Interval:    cfg.Outbox.PollInterval,
	}, logger.Component(log, "outbox"))

	if _, err := a.WalletSvc.Open(ctx, settings.PlatformUserID); err != nil {
		return nil, fmt.Errorf("opening platform wallet: %w", err)
	}

	ok = true
	return a, nil
}

func (a *App) connectNATS(ctx context.Context, cfg config.NATSConfig, log zerolog.Logger) (*natsBus.Publisher, error) {
	conn, err := natsBus.Connect(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("nats: %w", err)
	}
	a.closers = append(a.closers, func() { drain(conn, log) })
	a.HealthCheckers = append(a.HealthCheckers, natsBus.NewHealthCheck(conn))

	publisher, err := natsBus.NewPublisher(ctx, conn, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("nats stream: %w", err)
	}
	return publisher, nil
}

func drain(conn *nats.Conn, log zerolog.Logger) {
	if err := conn.Drain(); err != nil {
		log.Warn().Err(err).Msg("nats drain failed")
	}
}

// Scheduler builds the periodic sweeps guarded by the Redis job lock.
func (a *App) Scheduler() *scheduler.Scheduler {
	jobs := scheduler.Jobs(a.Config.Scheduler, scheduler.Services{
		Auctions: a.AuctionSvc,
		Orders:   a.OrderSvc,
		Catalog:  a.CatalogSvc,
	})
	return scheduler.New(jobs, a.JobLock, 0, logger.Component(a.Log, "scheduler")).WithAudit(a.AuditSvc)
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
