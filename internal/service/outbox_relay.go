package service

import (
	"context"
	"fmt"
	"time"

	"escrow-marketplace/internal/core/domain"
	"escrow-marketplace/internal/core/ports"
	"escrow-marketplace/internal/metrics"
	"escrow-marketplace/pkg/apperror"

	"github.com/rs/zerolog"
)

// RelayConfig tunes the outbox relay.
type RelayConfig struct {
	BatchSize   int
	MaxAttempts int
	Interval    time.Duration
}

// OutboxRelay publishes committed outbox events. Every event goes to the
// bus; auction events also go to the live feed.
type OutboxRelay struct {
	transactor ports.DBTransactor
	outbox     ports.OutboxRepository
	bus        ports.EventPublisher
	feed       ports.EventPublisher
	cfg        RelayConfig
	clock      func() time.Time
	log        zerolog.Logger
}

// NewOutboxRelay creates a relay. feed may be nil.
func NewOutboxRelay(
	transactor ports.DBTransactor,
	outbox ports.OutboxRepository,
	bus ports.EventPublisher,
	feed ports.EventPublisher,
	cfg RelayConfig,
	log zerolog.Logger,
) *OutboxRelay {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	return &OutboxRelay{
		transactor: transactor,
		outbox:     outbox,
		bus:        bus,
		feed:       feed,
		cfg:        cfg,
		clock:      time.Now,
		log:        log,
	}
}

// RelayOnce claims one batch and publishes it. Failed events stay pending
// until they run out of attempts.
func (r *OutboxRelay) RelayOnce(ctx context.Context) (ports.SweepResult, error) {
	var res ports.SweepResult

	tx, err := r.transactor.Begin(ctx)
	if err != nil {
		return res, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	events, err := r.outbox.ClaimPending(ctx, tx, r.cfg.BatchSize, r.cfg.MaxAttempts)
	if err != nil {
		return res, dbErr("claim outbox events", err)
	}

	for _, ev := range events {
		if err := r.publish(ctx, ev); err != nil {
			res.Failed++
			metrics.OutboxRelayed.WithLabelValues(r.bus.Name(), "failed").Inc()
			r.log.Warn().Err(err).
				Str("event_id", ev.ID.String()).
				Str("topic", ev.Topic).
				Int("attempt", ev.Attempts+1).
				Msg("outbox: publish failed")
			if err := r.outbox.MarkFailed(ctx, tx, ev.ID, err.Error()); err != nil {
				return res, dbErr("mark outbox event failed", err)
			}
			continue
		}
		if err := r.outbox.MarkPublished(ctx, tx, ev.ID, r.clock().UTC()); err != nil {
			return res, dbErr("mark outbox event published", err)
		}
		res.Processed++
		metrics.OutboxRelayed.WithLabelValues(r.bus.Name(), "published").Inc()
	}

	if err := tx.Commit(ctx); err != nil {
		return res, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	return res, nil
}

func (r *OutboxRelay) publish(ctx context.Context, ev domain.OutboxEvent) error {
	if err := r.bus.Publish(ctx, ev); err != nil {
		return fmt.Errorf("%s: %w", r.bus.Name(), err)
	}
	if r.feed != nil && ev.IsAuctionTopic() {
		if err := r.feed.Publish(ctx, ev); err != nil {
			return fmt.Errorf("%s: %w", r.feed.Name(), err)
		}
	}
	return nil
}

// Run relays on every tick until ctx is done.
func (r *OutboxRelay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	r.log.Info().Dur("interval", r.cfg.Interval).Msg("outbox relay started")
	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg("outbox relay stopped")
			return nil
		case <-ticker.C:
			res, err := r.RelayOnce(ctx)
			if err != nil {
				r.log.Error().Err(err).Msg("outbox relay batch failed")
				continue
			}
			if res.Processed+res.Failed > 0 {
				r.log.Debug().Int("published", res.Processed).Int("failed", res.Failed).Msg("outbox relay batch")
			}
		}
	}
}

