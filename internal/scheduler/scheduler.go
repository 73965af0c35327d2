// Package scheduler runs the periodic marketplace sweeps on cron specs.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"escrow-marketplace/config"
	"escrow-marketplace/internal/core/domain"
	"escrow-marketplace/internal/core/ports"
	"escrow-marketplace/internal/metrics"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job names, also used as lock keys and metric labels.
const (
	JobActivateAuctions = "activate_auctions"
	JobCloseAuctions    = "close_auctions"
	JobCompleteOrders   = "complete_orders"
	JobExpireSales      = "expire_sales"
)

// Locker grants a lease on a job name. The redis JobLock implements it.
type Locker interface {
	TryAcquire(ctx context.Context, job string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, job string) error
}

// Job is one periodic sweep.
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context) (ports.SweepResult, error)
}

// Services are the entry points the scheduler drives.
type Services struct {
	Auctions ports.AuctionService
	Orders   ports.OrderService
	Catalog  ports.CatalogService
}

// Scheduler fires jobs on their cron specs. With a Locker, each run first
// takes a lease so only one worker sweeps at a time.
type Scheduler struct {
	cron   *cron.Cron
	jobs   []Job
	locker Locker
	lease  time.Duration
	audit  ports.AuditService
	log    zerolog.Logger
}

// Jobs builds the standard job set from config. A job with an empty spec is
// disabled.
func Jobs(cfg config.SchedulerConfig, svc Services) []Job {
	batch := cfg.BatchSize
	jobs := []Job{
		{Name: JobActivateAuctions, Spec: cfg.ActivateAuctions, Run: func(ctx context.Context) (ports.SweepResult, error) {
			return svc.Auctions.ActivateDue(ctx, batch)
		}},
		{Name: JobCloseAuctions, Spec: cfg.CloseAuctions, Run: func(ctx context.Context) (ports.SweepResult, error) {
			return svc.Auctions.CloseDue(ctx, batch)
		}},
		{Name: JobCompleteOrders, Spec: cfg.CompleteOrders, Run: func(ctx context.Context) (ports.SweepResult, error) {
			return svc.Orders.AutoComplete(ctx, batch)
		}},
		{Name: JobExpireSales, Spec: cfg.ExpireSales, Run: func(ctx context.Context) (ports.SweepResult, error) {
			n, err := svc.Catalog.ExpireSales(ctx)
			return ports.SweepResult{Processed: int(n)}, err
		}},
	}

	enabled := jobs[:0]
	for _, j := range jobs {
		if j.Spec != "" {
			enabled = append(enabled, j)
		}
	}
	return enabled
}

// New creates a scheduler. locker may be nil.
func New(jobs []Job, locker Locker, lease time.Duration, log zerolog.Logger) *Scheduler {
	if lease <= 0 {
		lease = 5 * time.Minute
	}
	log = log.With().Str("component", "scheduler").Logger()
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(cronLogger{log}),
			cron.SkipIfStillRunning(cronLogger{log}),
		)),
		jobs:   jobs,
		locker: locker,
		lease:  lease,
		log:    log,
	}
}

// WithAudit records every sweep that touched something.
func (s *Scheduler) WithAudit(svc ports.AuditService) *Scheduler {
	s.audit = svc
	return s
}

// Run registers every job and blocks until ctx is done, then waits for
// running jobs to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	for _, j := range s.jobs {
		job := j
		if _, err := s.cron.AddFunc(job.Spec, func() { s.RunJob(ctx, job) }); err != nil {
			return fmt.Errorf("scheduling %s (%q): %w", job.Name, job.Spec, err)
		}
		s.log.Info().Str("job", job.Name).Str("spec", job.Spec).Msg("job scheduled")
	}

	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
	return nil
}

// RunJob executes one run of job, honoring the lease.
func (s *Scheduler) RunJob(ctx context.Context, job Job) {
	if ctx.Err() != nil {
		return
	}
	log := s.log.With().Str("job", job.Name).Logger()

	if s.locker != nil {
		ok, err := s.locker.TryAcquire(ctx, job.Name, s.lease)
		if err != nil {
			metrics.JobRuns.WithLabelValues(job.Name, "error").Inc()
			log.Error().Err(err).Msg("acquiring job lease")
			return
		}
		if !ok {
			metrics.JobRuns.WithLabelValues(job.Name, "skipped_locked").Inc()
			log.Debug().Msg("job held by another worker")
			return
		}
		defer func() {
			if err := s.locker.Release(context.WithoutCancel(ctx), job.Name); err != nil {
				log.Warn().Err(err).Msg("releasing job lease")
			}
		}()
	}

	start := time.Now()
	res, err := job.Run(ctx)
	metrics.JobDuration.WithLabelValues(job.Name).Observe(time.Since(start).Seconds())
	metrics.JobItems.WithLabelValues(job.Name, "processed").Add(float64(res.Processed))
	metrics.JobItems.WithLabelValues(job.Name, "skipped").Add(float64(res.Skipped))
	metrics.JobItems.WithLabelValues(job.Name, "failed").Add(float64(res.Failed))
	if err != nil {
		metrics.JobRuns.WithLabelValues(job.Name, "error").Inc()
		log.Error().Err(err).Msg("job failed")
		return
	}
	metrics.JobRuns.WithLabelValues(job.Name, "ok").Inc()

	ev := log.Debug()
	if res.Processed+res.Failed > 0 {
		ev = log.Info()
		s.recordSweep(ctx, job.Name, res)
	}
	ev.Int("processed", res.Processed).
		Int("skipped", res.Skipped).
		Int("failed", res.Failed).
		Dur("took", time.Since(start)).
		Msg("job finished")
}

func (s *Scheduler) recordSweep(ctx context.Context, job string, res ports.SweepResult) {
	if s.audit == nil {
		return
	}
	details, _ := json.Marshal(res)
	s.audit.Log(ctx, domain.AuditLog{
		ActorRole:    domain.SystemActor.Role,
		Action:       domain.AuditActionScheduledSweep,
		ResourceType: "job",
		ResourceID:   job,
		Details:      string(details),
	})
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
