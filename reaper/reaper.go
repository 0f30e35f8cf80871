// Package reaper is the garbage collector of the backend. It walks
// three independent scans — finished jobs old enough to expire, claimed
// jobs whose worker went silent, and disposable test jobs — and retires
// what it finds: expiry stamps, purged artifacts, broken name locks,
// failure bookkeeping for the stuck.
//
// Every operation the reaper performs is idempotent at the store level,
// so two reapers racing over the same rows do no harm.
package reaper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tank-bohr/baza"
	"github.com/tank-bohr/baza/artifact"
	"github.com/tank-bohr/baza/job"
	"github.com/tank-bohr/baza/lock"
	"github.com/tank-bohr/baza/notify"
)

// Reaper retires jobs that are done, stuck, or disposable.
type Reaper struct {
	jobs      job.Store
	locks     *lock.Manager
	artifacts artifact.Store
	notifier  notify.Notifier
	logger    *slog.Logger

	expireAfter time.Duration
	stuckAfter  time.Duration
	testAfter   time.Duration
}

// Option configures a Reaper.
type Option func(*Reaper)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reaper) { r.logger = l }
}

// WithNotifier sets the notifier told about reclaimed stuck jobs.
func WithNotifier(n notify.Notifier) Option {
	return func(r *Reaper) { r.notifier = n }
}

// WithArtifacts sets the artifact store whose payloads are purged when
// a job expires. Without one, expiry keeps the payloads.
func WithArtifacts(s artifact.Store) Option {
	return func(r *Reaper) { r.artifacts = s }
}

// WithExpireAfter sets how old a finished job's result must be before
// the job expires.
func WithExpireAfter(d time.Duration) Option {
	return func(r *Reaper) { r.expireAfter = d }
}

// WithStuckAfter sets how long a claim may stay open before the job
// counts as stuck.
func WithStuckAfter(d time.Duration) Option {
	return func(r *Reaper) { r.stuckAfter = d }
}

// WithTestAfter sets how old a test job must be before it expires.
func WithTestAfter(d time.Duration) Option {
	return func(r *Reaper) { r.testAfter = d }
}

// New creates a Reaper over the given stores.
func New(jobs job.Store, locks *lock.Manager, opts ...Option) *Reaper {
	cfg := baza.DefaultConfig()
	r := &Reaper{
		jobs:        jobs,
		locks:       locks,
		notifier:    notify.Discard{},
		logger:      slog.Default(),
		expireAfter: cfg.ExpireAfter,
		stuckAfter:  cfg.StuckAfter,
		testAfter:   time.Hour,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunOnce performs all three scans concurrently and returns the first
// scan-level error. Per-job failures inside a scan are logged and
// skipped, so one bad row never blocks the rest of the sweep.
func (r *Reaper) RunOnce(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.expireFinished(ctx) })
	g.Go(func() error { return r.reclaimStuck(ctx) })
	g.Go(func() error { return r.expireTests(ctx) })
	return g.Wait()
}

// Run sweeps on the given interval until the context is cancelled.
func (r *Reaper) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
			r.logger.Error("reaper sweep failed", slog.String("error", err.Error()))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// expireFinished expires jobs whose result is older than the threshold
// and purges their artifacts.
func (r *Reaper) expireFinished(ctx context.Context) error {
	jobs, err := r.jobs.ExpirableJobs(ctx, r.expireAfter)
	if err != nil {
		return fmt.Errorf("baza/reaper: scan finished: %w", err)
	}

	for _, j := range jobs {
		if err := r.expire(ctx, j); err != nil {
			r.logger.Error("expiry failed",
				slog.String("job_id", j.ID.String()),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

// reclaimStuck fails jobs whose claim outlived the threshold, breaks
// the name lock their dead worker held, expires them, and tells the
// tenant.
func (r *Reaper) reclaimStuck(ctx context.Context) error {
	jobs, err := r.jobs.StuckJobs(ctx, r.stuckAfter)
	if err != nil {
		return fmt.Errorf("baza/reaper: scan stuck: %w", err)
	}

	for _, j := range jobs {
		text := fmt.Sprintf("The job %q was claimed by %q at %s and never finished",
			j.Name, j.Taken, j.TakenAt.UTC().Format(time.RFC3339))
		if err := r.jobs.FailJob(ctx, j.ID, text, "reclaimed: "+text); err != nil {
			r.logger.Error("stuck reclaim failed",
				slog.String("job_id", j.ID.String()),
				slog.String("error", err.Error()),
			)
			continue
		}
		if err := r.locks.Break(ctx, j.TenantID, j.Name); err != nil {
			r.logger.Error("stuck lock break failed",
				slog.String("job_id", j.ID.String()),
				slog.String("name", j.Name),
				slog.String("error", err.Error()),
			)
		}
		if err := r.expire(ctx, j); err != nil {
			r.logger.Error("stuck expiry failed",
				slog.String("job_id", j.ID.String()),
				slog.String("error", err.Error()),
			)
		}

		r.logger.Warn("stuck job reclaimed",
			slog.String("job_id", j.ID.String()),
			slog.String("name", j.Name),
			slog.String("owner", j.Taken),
		)
		r.notifier.Notify(ctx, j.TenantID,
			fmt.Sprintf("The job %q is lost: its worker stopped reporting.", j.Name),
			"The job has been closed with an error.",
		)
	}
	return nil
}

// expireTests expires jobs submitted through the disposable test token.
func (r *Reaper) expireTests(ctx context.Context) error {
	jobs, err := r.jobs.TestJobs(ctx, r.testAfter)
	if err != nil {
		return fmt.Errorf("baza/reaper: scan tests: %w", err)
	}

	for _, j := range jobs {
		if err := r.expire(ctx, j); err != nil {
			r.logger.Error("test expiry failed",
				slog.String("job_id", j.ID.String()),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

// expire stamps the job and purges both its artifacts.
func (r *Reaper) expire(ctx context.Context, j *job.Job) error {
	if err := r.jobs.ExpireJob(ctx, j.ID, time.Now().UTC()); err != nil {
		return err
	}

	if r.artifacts != nil {
		uris := []string{j.URI1}
		if res, err := r.jobs.ResultFor(ctx, j.ID); err == nil && res.URI2 != "" {
			uris = append(uris, res.URI2)
		}
		for _, uri := range uris {
			if uri == "" {
				continue
			}
			if err := r.artifacts.Purge(ctx, uri); err != nil {
				r.logger.Error("artifact purge failed",
					slog.String("job_id", j.ID.String()),
					slog.String("uri", uri),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	r.logger.Info("job expired",
		slog.String("job_id", j.ID.String()),
		slog.String("name", j.Name),
	)
	return nil
}
