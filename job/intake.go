package job

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/tank-bohr/baza"
	"github.com/tank-bohr/baza/id"
	"github.com/tank-bohr/baza/tenant"
)

var nameRe = regexp.MustCompile(`^[a-z0-9-]+$`)

// ValidName reports whether s is a well-formed job name.
func ValidName(s string) bool { return nameRe.MatchString(s) }

// Intake validates and admits submitted jobs. Validation errors are
// rejected synchronously and never reach the pipeline.
type Intake struct {
	jobs    Store
	tenants tenant.Store
	gate    tenant.Gate
	logger  *slog.Logger
}

// IntakeOption configures an Intake.
type IntakeOption func(*Intake)

// WithIntakeLogger sets the structured logger.
func WithIntakeLogger(l *slog.Logger) IntakeOption {
	return func(in *Intake) { in.logger = l }
}

// NewIntake creates the admission service.
func NewIntake(jobs Store, tenants tenant.Store, gate tenant.Gate, opts ...IntakeOption) *Intake {
	in := &Intake{
		jobs:    jobs,
		tenants: tenants,
		gate:    gate,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Submission carries the client-supplied fields of a new job.
type Submission struct {
	TokenText string
	Name      string
	URI1      string
	Size      int64
	Errors    int
	Agent     string
	Metas     []string
}

// Submit validates the submission, checks the token and the balance
// gate, and persists the job. The returned job carries its generated ID.
func (in *Intake) Submit(ctx context.Context, s Submission) (*Job, error) {
	name := strings.ToLower(s.Name)
	if !ValidName(name) {
		return nil, baza.ErrInvalidName
	}
	if s.Size <= 0 {
		return nil, baza.ErrInvalidSize
	}
	if s.Agent == "" {
		return nil, baza.ErrEmptyAgent
	}

	tok, err := in.tenants.TokenByText(ctx, s.TokenText)
	if err != nil {
		return nil, fmt.Errorf("baza/job: resolve token: %w", err)
	}
	if !tok.Active {
		return nil, baza.ErrTokenInactive
	}

	// Tester accounts bypass the balance gate.
	if !tok.Tester() {
		tester, gateErr := in.gate.Tester(ctx, tok.TenantID)
		if gateErr != nil {
			return nil, fmt.Errorf("baza/job: tester check: %w", gateErr)
		}
		if !tester {
			positive, balErr := in.gate.BalancePositive(ctx, tok.TenantID)
			if balErr != nil {
				return nil, fmt.Errorf("baza/job: balance check: %w", balErr)
			}
			if !positive {
				return nil, baza.ErrNegativeBalance
			}
		}
	}

	j := &Job{
		Entity:   baza.NewEntity(),
		ID:       id.NewJobID(),
		TokenID:  tok.ID,
		TenantID: tok.TenantID,
		Name:     name,
		URI1:     s.URI1,
		Size:     s.Size,
		Errors:   s.Errors,
		Agent:    s.Agent,
		Metas:    s.Metas,
	}

	if err := in.jobs.SubmitJob(ctx, j); err != nil {
		return nil, err
	}

	in.logger.Info("job submitted",
		slog.String("job_id", j.ID.String()),
		slog.String("name", j.Name),
		slog.Int64("size", j.Size),
		slog.String("agent", j.Agent),
	)

	return j, nil
}

// Busy reports whether an un-expired job with this name exists that has
// no result yet. Names are compared lower-case.
func (in *Intake) Busy(ctx context.Context, tenantID id.TenantID, name string) (bool, error) {
	return in.jobs.NameBusy(ctx, tenantID, strings.ToLower(name))
}

// Recent returns the most recent non-expired job with the given name.
func (in *Intake) Recent(ctx context.Context, tenantID id.TenantID, name string) (*Job, error) {
	return in.jobs.RecentJob(ctx, tenantID, strings.ToLower(name))
}
