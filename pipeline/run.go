package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/tank-bohr/baza"
	"github.com/tank-bohr/baza/id"
	"github.com/tank-bohr/baza/job"
	"github.com/tank-bohr/baza/processor"
	"github.com/tank-bohr/baza/work"
)

// documentFile is the name of the working document inside a run's
// directory.
const documentFile = "job.json"

// run executes one claimed job end to end. The name lock is held for
// the whole run and released on every path, including panics inside the
// middleware chain; the claim itself stays on the job as the record of
// who ran it.
func (e *Engine) run(ctx context.Context, j *job.Job, owner string) {
	defer func() {
		if err := e.locks.Release(context.WithoutCancel(ctx), j.TenantID, j.Name, owner); err != nil {
			e.logger.Error("lock release failed",
				slog.String("job_id", j.ID.String()),
				slog.String("name", j.Name),
				slog.String("error", err.Error()),
			)
		}
	}()

	dir, err := os.MkdirTemp("", "baza-run-")
	if err != nil {
		e.fatal(ctx, j, owner, nil, fmt.Errorf("create workdir: %w", err))
		return
	}
	defer os.RemoveAll(dir)

	docPath := filepath.Join(dir, documentFile)
	if err := e.artifacts.Load(ctx, j.URI1, docPath); err != nil {
		e.fatal(ctx, j, owner, nil, fmt.Errorf("load artifact: %w", err))
		return
	}

	doc, err := work.Load(docPath)
	if err != nil {
		e.fatal(ctx, j, owner, nil, fmt.Errorf("parse document: %w", err))
		return
	}

	doc, err = e.alts.ApplyPending(ctx, j, doc)
	if err != nil {
		e.fatal(ctx, j, owner, nil, fmt.Errorf("apply alterations: %w", err))
		return
	}
	if err := doc.Save(docPath); err != nil {
		e.fatal(ctx, j, owner, nil, err)
		return
	}

	tokenText := ""
	if tok, tokErr := e.store.GetToken(ctx, j.TokenID); tokErr == nil {
		tokenText = tok.Text
	}

	opts, confidential, err := assembleOptions(ctx, e.store, j, tokenText)
	if err != nil {
		e.fatal(ctx, j, owner, nil, err)
		return
	}

	var report *processor.Report
	handler := func(ctx context.Context) error {
		r, runErr := e.proc.Run(ctx, dir, opts, e.cfg.MaxCycles)
		if runErr != nil {
			return runErr
		}
		report = r
		return nil
	}

	if err := e.chain(ctx, j, handler); err != nil {
		e.fatal(ctx, j, owner, confidential, err)
		return
	}

	e.finalize(ctx, j, owner, docPath, report, confidential)
}

// finalize persists the run's outcome: output artifact, result row,
// trails, and the notifications the outcome warrants.
func (e *Engine) finalize(ctx context.Context, j *job.Job, owner, docPath string, report *processor.Report, confidential []string) {
	outDoc, err := work.Load(docPath)
	if err != nil {
		e.fatal(ctx, j, owner, confidential, fmt.Errorf("reload document: %w", err))
		return
	}

	result := &job.Result{
		Entity: baza.NewEntity(),
		ID:     id.NewResultID(),
		JobID:  j.ID,
		Stdout: maskSecrets(report.Stdout, confidential),
		Exit:   report.Exit,
		Msec:   report.Msec,
		Errors: outDoc.ErrorCount(),
	}

	if report.Exit == 0 {
		uri2, saveErr := e.artifacts.Save(ctx, docPath)
		if saveErr != nil {
			e.fatal(ctx, j, owner, confidential, fmt.Errorf("save artifact: %w", saveErr))
			return
		}
		result.URI2 = uri2
		if info, statErr := os.Stat(docPath); statErr == nil {
			result.Size = info.Size()
		}
	}

	if err := e.store.FinishJob(ctx, result); err != nil {
		if errors.Is(err, baza.ErrResultExists) {
			// Someone finished the job while we ran it; keep theirs.
			e.logger.Warn("result already recorded",
				slog.String("job_id", j.ID.String()),
			)
			return
		}
		e.logger.Error("result persistence failed",
			slog.String("job_id", j.ID.String()),
			slog.String("error", err.Error()),
		)
		return
	}

	for _, t := range report.Trails {
		trail := &job.Trail{
			Entity:  baza.NewEntity(),
			ID:      id.NewTrailID(),
			JobID:   j.ID,
			Emitter: t.Emitter,
			Name:    t.Name,
			Data:    t.Data,
		}
		if err := e.store.RecordTrail(ctx, trail); err != nil {
			e.logger.Error("trail persistence failed",
				slog.String("job_id", j.ID.String()),
				slog.String("trail", t.Name),
				slog.String("error", err.Error()),
			)
		}
	}

	e.logger.Info("job finished",
		slog.String("job_id", j.ID.String()),
		slog.String("name", j.Name),
		slog.Int("exit", result.Exit),
		slog.Int("errors", result.Errors),
		slog.Int64("msec", result.Msec),
	)

	e.notifyOutcome(ctx, j, result)
}

// notifyOutcome tells the tenant what deserves attention: a document
// that arrived already carrying errors, and a broken clean streak.
func (e *Engine) notifyOutcome(ctx context.Context, j *job.Job, result *job.Result) {
	if j.Errors > 0 {
		e.notifier.Notify(ctx, j.TenantID,
			fmt.Sprintf("The job %q arrived with %d error(s) already on board.", j.Name, j.Errors),
			"Fix them before the backlog grows.",
		)
	}

	if result.Errors > 0 {
		streak, err := e.store.CleanStreak(ctx, j.TenantID, j.Name, j.ID)
		if err != nil {
			e.logger.Error("clean streak query failed",
				slog.String("job_id", j.ID.String()),
				slog.String("error", err.Error()),
			)
			return
		}
		if streak > 0 {
			e.notifier.Notify(ctx, j.TenantID,
				fmt.Sprintf("The job %q finished with %d error(s) after %d clean run(s).",
					j.Name, result.Errors, streak),
			)
		}
	}
}

// fatal records a run the pipeline itself could not complete. The
// diagnostic goes into the result (masked), a short note lands on the
// job, and the tenant is told — including whether the name is still
// locked, which parks every further job of that name.
func (e *Engine) fatal(ctx context.Context, j *job.Job, owner string, confidential []string, cause error) {
	text := maskSecrets(cause.Error(), confidential)

	e.logger.Error("run failed fatally",
		slog.String("job_id", j.ID.String()),
		slog.String("name", j.Name),
		slog.String("error", text),
	)

	if err := e.store.FailJob(ctx, j.ID, text, "failed: "+text); err != nil {
		e.logger.Error("failure bookkeeping failed",
			slog.String("job_id", j.ID.String()),
			slog.String("error", err.Error()),
		)
		return
	}

	// Hand the name back before composing the message, so the lock
	// state it reports is the one the tenant will observe. The run's
	// deferred release then finds nothing to do.
	if err := e.locks.Release(context.WithoutCancel(ctx), j.TenantID, j.Name, owner); err != nil {
		e.logger.Error("lock release failed",
			slog.String("job_id", j.ID.String()),
			slog.String("name", j.Name),
			slog.String("error", err.Error()),
		)
	}

	lines := []string{
		fmt.Sprintf("The job %q could not be processed:", j.Name),
		text,
	}
	if locked, lockErr := e.locks.Locked(ctx, j.TenantID, j.Name); lockErr == nil && locked {
		lines = append(lines,
			fmt.Sprintf("The name %q remains locked: no further jobs of that name will run until the lock is released.", j.Name),
		)
	}
	e.notifier.Notify(ctx, j.TenantID, lines...)
}
