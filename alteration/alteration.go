// Package alteration applies pending data patches to a job's working
// document before it runs.
//
// An alteration is a script tied to a (tenant, job-name) pair. The
// first matching run consumes it: the script is evaluated against the
// working document, the alteration is marked complete with the job ID
// recorded, and it never runs again. Scripts are expr expressions, not
// general code: they see the document and a few helpers, nothing else.
package alteration

import (
	"context"

	"github.com/tank-bohr/baza"
	"github.com/tank-bohr/baza/id"
)

// Alteration is one pending or completed patch.
type Alteration struct {
	baza.Entity

	ID       id.AlterationID `json:"id"`
	TenantID id.TenantID     `json:"tenant_id"`

	// Name is the job name the patch targets.
	Name string `json:"name"`

	// Script is the expr expression evaluated against the working
	// document.
	Script string `json:"script"`

	// Pending is cleared when a job consumes the alteration.
	Pending bool `json:"pending"`

	// JobID records which job consumed the alteration, once completed.
	JobID id.JobID `json:"job_id,omitempty"`
}

// Store defines the persistence contract for alterations. Completion is
// exclusive per alteration ID: a conditional update that only lands
// while the row is still pending.
type Store interface {
	// AddAlteration persists a new pending alteration.
	AddAlteration(ctx context.Context, a *Alteration) error

	// PendingAlterations returns the tenant's pending alterations whose
	// target equals name, in creation order.
	PendingAlterations(ctx context.Context, tenantID id.TenantID, name string) ([]*Alteration, error)

	// CompleteAlteration marks the alteration complete and records the
	// consuming job, iff it is still pending. Returns false when it was
	// already consumed.
	CompleteAlteration(ctx context.Context, altID id.AlterationID, jobID id.JobID) (bool, error)

	// ListAlterations returns the tenant's alterations, newest first.
	ListAlterations(ctx context.Context, tenantID id.TenantID) ([]*Alteration, error)

	// DeleteAlteration removes an alteration owned by the tenant.
	DeleteAlteration(ctx context.Context, tenantID id.TenantID, altID id.AlterationID) error
}
