package alteration

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/tank-bohr/baza"
	"github.com/tank-bohr/baza/id"
	"github.com/tank-bohr/baza/job"
	"github.com/tank-bohr/baza/notify"
	"github.com/tank-bohr/baza/work"
)

// Engine evaluates pending alterations against a job's working
// document. One alteration failing is logged and skipped; it does not
// stop the run and it stays pending for the next job.
type Engine struct {
	store    Store
	notifier notify.Notifier
	logger   *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithNotifier sets the notifier told about each applied alteration.
func WithNotifier(n notify.Notifier) EngineOption {
	return func(e *Engine) { e.notifier = n }
}

// NewEngine creates an Engine on top of the given store.
func NewEngine(store Store, opts ...EngineOption) *Engine {
	e := &Engine{
		store:    store,
		notifier: notify.Discard{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ApplyPending runs every pending alteration targeting the job's name
// against doc, in creation order, and returns the resulting document.
//
// Each alteration is consumed exactly once: a conditional completion
// guards against two concurrent runs applying the same script. A script
// that fails to compile or evaluate is skipped and left pending.
func (e *Engine) ApplyPending(ctx context.Context, j *job.Job, doc work.Document) (work.Document, error) {
	pending, err := e.store.PendingAlterations(ctx, j.TenantID, j.Name)
	if err != nil {
		return doc, err
	}

	for _, a := range pending {
		out, evalErr := evaluate(a.Script, j, doc)
		if evalErr != nil {
			e.logger.Error("alteration failed",
				slog.String("alteration_id", a.ID.String()),
				slog.String("job_id", j.ID.String()),
				slog.String("name", a.Name),
				slog.String("error", evalErr.Error()),
			)
			continue
		}

		won, err := e.store.CompleteAlteration(ctx, a.ID, j.ID)
		if err != nil {
			return doc, err
		}
		if !won {
			// Another run consumed it first; its effect is theirs.
			continue
		}

		doc = out
		e.logger.Info("alteration applied",
			slog.String("alteration_id", a.ID.String()),
			slog.String("job_id", j.ID.String()),
			slog.String("name", a.Name),
		)
		e.notifier.Notify(ctx, j.TenantID,
			"An alteration has been applied to the job \""+j.Name+"\":",
			strings.TrimSpace(a.Script),
		)
	}
	return doc, nil
}

// evaluate compiles and runs one script. The script sees the document
// as "doc" plus a few read-only facts about the job; returning a map
// replaces the document, any other value leaves it untouched.
func evaluate(script string, j *job.Job, doc work.Document) (work.Document, error) {
	env := map[string]any{
		"doc":      map[string]any(doc),
		"job_id":   j.ID.String(),
		"job_name": j.Name,
		"now":      time.Now().UTC(),
		"has": func(key string) bool {
			_, ok := doc[key]
			return ok
		},
	}

	program, err := expr.Compile(script, expr.Env(env))
	if err != nil {
		return nil, err
	}

	out, err := vm.Run(program, env)
	if err != nil {
		return nil, err
	}

	if m, ok := out.(map[string]any); ok {
		return work.Document(m), nil
	}
	return doc, nil
}

// Add validates and persists a new pending alteration for the tenant.
func (e *Engine) Add(ctx context.Context, tenantID id.TenantID, name, script string) (*Alteration, error) {
	if !job.ValidName(name) {
		return nil, baza.ErrInvalidName
	}
	if _, err := expr.Compile(script); err != nil {
		return nil, err
	}

	a := &Alteration{
		Entity:   baza.NewEntity(),
		ID:       id.NewAlterationID(),
		TenantID: tenantID,
		Name:     name,
		Script:   script,
		Pending:  true,
	}

	if err := e.store.AddAlteration(ctx, a); err != nil {
		return nil, err
	}
	e.logger.Info("alteration registered",
		slog.String("alteration_id", a.ID.String()),
		slog.String("tenant_id", tenantID.String()),
		slog.String("name", name),
	)
	return a, nil
}
