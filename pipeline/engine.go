// Package pipeline runs submitted jobs: it claims them from the shared
// store, serializes runs per job name through the lock manager, applies
// pending alterations, hands the working document to the external
// processor, and records the outcome.
//
// Many pipeline processes may poll one store. Exclusivity rests on two
// store-level primitives only: the conditional claim update and the
// uniqueness-guarded lock insert. Everything else tolerates races.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tank-bohr/baza"
	"github.com/tank-bohr/baza/alteration"
	"github.com/tank-bohr/baza/artifact"
	"github.com/tank-bohr/baza/id"
	"github.com/tank-bohr/baza/lock"
	"github.com/tank-bohr/baza/middleware"
	"github.com/tank-bohr/baza/notify"
	"github.com/tank-bohr/baza/processor"
	"github.com/tank-bohr/baza/store"
	"github.com/tank-bohr/baza/tenant"
)

// Outcome classifies one poll cycle.
type Outcome int

const (
	// Idle means no claimable job was found.
	Idle Outcome = iota
	// Processed means one job was claimed and ran to a recorded
	// outcome, successful or not.
	Processed
)

// Engine claims and runs jobs against a shared store.
type Engine struct {
	store     store.Store
	locks     *lock.Manager
	alts      *alteration.Engine
	artifacts artifact.Store
	proc      processor.Processor
	gate      tenant.Gate
	notifier  notify.Notifier
	logger    *slog.Logger
	cfg       baza.Config
	chain     middleware.Middleware
	limiter   *rate.Limiter
	workerID  id.WorkerID

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig replaces the default configuration.
func WithConfig(cfg baza.Config) Option {
	return func(e *Engine) { e.cfg = cfg }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithNotifier sets the notifier for run outcomes.
func WithNotifier(n notify.Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithGate sets the balance gate consulted before each claim. Without
// one, every backlog is admitted.
func WithGate(g tenant.Gate) Option {
	return func(e *Engine) { e.gate = g }
}

// WithMiddleware replaces the default middleware chain wrapped around
// every run.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(e *Engine) { e.chain = middleware.Chain(mws...) }
}

// New creates an Engine over the given store, artifact storage and
// processor.
func New(st store.Store, artifacts artifact.Store, proc processor.Processor, opts ...Option) *Engine {
	e := &Engine{
		store:     st,
		locks:     lock.NewManager(st),
		artifacts: artifacts,
		proc:      proc,
		gate:      tenant.OpenGate{},
		notifier:  notify.Discard{},
		logger:    slog.Default(),
		cfg:       baza.DefaultConfig(),
		workerID:  id.NewWorkerID(),
		stopCh:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.alts = alteration.NewEngine(st,
		alteration.WithLogger(e.logger),
		alteration.WithNotifier(e.notifier),
	)
	if e.chain == nil {
		e.chain = middleware.Chain(
			middleware.Recover(e.logger),
			middleware.Logging(e.logger),
			middleware.Tracing(),
			middleware.Metrics(),
			middleware.Timeout(e.cfg.RunTimeout),
		)
	}
	if e.cfg.ClaimRate > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(e.cfg.ClaimRate), 1)
	}
	return e
}

// WorkerID returns this engine's unique worker identifier.
func (e *Engine) WorkerID() id.WorkerID { return e.workerID }

// Start launches the poller goroutines. It returns immediately.
func (e *Engine) Start(_ context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return nil
	}
	e.running = true

	e.logger.Info("pipeline starting",
		slog.String("worker_id", e.workerID.String()),
		slog.Int("concurrency", e.cfg.Concurrency),
	)

	for n := range e.cfg.Concurrency {
		e.wg.Add(1)
		go e.pollLoop(n)
	}
	return nil
}

// Stop signals all pollers to stop and waits for them to finish, bound
// by the context deadline.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = false
	e.mu.Unlock()

	e.logger.Info("pipeline stopping", slog.String("worker_id", e.workerID.String()))
	close(e.stopCh)

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.logger.Info("pipeline stopped gracefully")
		return nil
	case <-ctx.Done():
		e.logger.Warn("pipeline shutdown timed out")
		return ctx.Err()
	}
}

// pollLoop is run by each poller goroutine. Each poller claims under
// its own owner string, so two pollers of one process still exclude
// each other on the name lock.
func (e *Engine) pollLoop(n int) {
	defer e.wg.Done()

	owner := fmt.Sprintf("%s:%d", e.workerID, n)
	for {
		select {
		case <-e.stopCh:
			return
		default:
		}

		ctx := context.Background()
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return
			}
		}

		outcome, err := e.ProcessOne(ctx, owner)
		if err != nil {
			e.logger.Error("poll cycle failed",
				slog.String("owner", owner),
				slog.String("error", err.Error()),
			)
			e.sleep()
			continue
		}
		if outcome == Idle {
			e.sleep()
		}
	}
}

// ProcessOne claims at most one job and runs it to a recorded outcome.
// The claim is first-come-first-served over the FIFO backlog; a job
// whose name lock is occupied is handed back and retried later.
func (e *Engine) ProcessOne(ctx context.Context, owner string) (Outcome, error) {
	jobs, err := e.store.UnclaimedJobs(ctx)
	if err != nil {
		return Idle, fmt.Errorf("baza/pipeline: list unclaimed: %w", err)
	}

	for _, j := range jobs {
		admitted, gateErr := e.admissible(ctx, j.TenantID)
		if gateErr != nil {
			// The gate is an external collaborator; a transient failure
			// parks the job for a later poll, it never drops it.
			e.logger.Warn("admission check failed",
				slog.String("job_id", j.ID.String()),
				slog.String("error", gateErr.Error()),
			)
			continue
		}
		if !admitted {
			continue
		}

		won, err := e.store.TakeJob(ctx, j.ID, owner)
		if err != nil {
			return Idle, fmt.Errorf("baza/pipeline: take job: %w", err)
		}
		if !won {
			continue
		}

		if err := e.locks.Acquire(ctx, j.TenantID, j.Name, owner); err != nil {
			if baza.IsLockHeld(err) {
				// Another run of the same name is in flight; give the
				// job back so any poller can pick it up afterwards.
				if relErr := e.store.ReleaseJob(context.WithoutCancel(ctx), j.ID, owner); relErr != nil {
					e.logger.Error("deferred job release failed",
						slog.String("job_id", j.ID.String()),
						slog.String("error", relErr.Error()),
					)
				}
				e.logger.Debug("job deferred, name busy",
					slog.String("job_id", j.ID.String()),
					slog.String("name", j.Name),
				)
				continue
			}
			return Idle, fmt.Errorf("baza/pipeline: acquire lock: %w", err)
		}

		e.run(ctx, j, owner)
		return Processed, nil
	}
	return Idle, nil
}

// admissible reports whether the tenant's backlog may run. A negative
// balance parks the jobs until it recovers; tester accounts are exempt.
func (e *Engine) admissible(ctx context.Context, tenantID id.TenantID) (bool, error) {
	tester, err := e.gate.Tester(ctx, tenantID)
	if err != nil {
		return false, err
	}
	if tester {
		return true, nil
	}
	return e.gate.BalancePositive(ctx, tenantID)
}

func (e *Engine) sleep() {
	select {
	case <-time.After(e.cfg.PollInterval):
	case <-e.stopCh:
	}
}
