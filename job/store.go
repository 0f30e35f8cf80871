package job

import (
	"context"
	"time"

	"github.com/tank-bohr/baza/id"
)

// Store defines the persistence contract for jobs, results, and trails.
//
// The claim path and every mutation that races another poller must be
// atomic at the store level: TakeJob is a single conditional update,
// FinishJob refuses a duplicate result, ExpireJob is idempotent.
type Store interface {
	// SubmitJob persists a new job together with its metadata in one
	// transaction.
	SubmitJob(ctx context.Context, j *Job) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID id.JobID) (*Job, error)

	// RecentJob returns the most recent non-expired job with the given
	// name, or baza.ErrJobNotFound.
	RecentJob(ctx context.Context, tenantID id.TenantID, name string) (*Job, error)

	// NameBusy reports whether an un-expired job with this name exists
	// that has no result yet.
	NameBusy(ctx context.Context, tenantID id.TenantID, name string) (bool, error)

	// NameExists reports whether any un-expired job with this name
	// exists, finished or not.
	NameExists(ctx context.Context, tenantID id.TenantID, name string) (bool, error)

	// UnclaimedJobs returns un-expired, unclaimed jobs lacking a
	// result, in creation order (FIFO).
	UnclaimedJobs(ctx context.Context) ([]*Job, error)

	// TakeJob marks the job taken by owner iff it is still unclaimed.
	// Returns false when another poller won the race; that is not an
	// error.
	TakeJob(ctx context.Context, jobID id.JobID, owner string) (bool, error)

	// ReleaseJob clears the claim iff it is held by owner. Used to
	// defer a claimed job whose name-lock turned out to be occupied.
	ReleaseJob(ctx context.Context, jobID id.JobID, owner string) error

	// FinishJob attaches the result to its job. Fails with
	// baza.ErrResultExists when a result is already present.
	FinishJob(ctx context.Context, r *Result) error

	// FailJob records a failure in one transaction: when no result
	// exists, it inserts one with exit 1, msec 1, and the diagnostic
	// text as stdout; when a partial result exists, it prefixes the
	// text to stdout and forces exit 1. The job's Taken field is
	// overwritten with note (truncated to 255 bytes).
	FailJob(ctx context.Context, jobID id.JobID, text, note string) error

	// ResultFor returns the job's result, or baza.ErrResultNotFound.
	ResultFor(ctx context.Context, jobID id.JobID) (*Result, error)

	// CleanStreak counts the consecutive most recent finished jobs of
	// this name, excluding the given job, whose results carry zero
	// errors. The count stops at the first unfinished or erroneous job.
	CleanStreak(ctx context.Context, tenantID id.TenantID, name string, before id.JobID) (int, error)

	// ExpireJob sets the expiry timestamp iff the job is not yet
	// expired. Expiring an expired job is a no-op, not an error.
	ExpireJob(ctx context.Context, jobID id.JobID, at time.Time) error

	// ExpirableJobs returns un-expired jobs whose result is older than
	// the threshold. Zero means any age.
	ExpirableJobs(ctx context.Context, olderThan time.Duration) ([]*Job, error)

	// StuckJobs returns un-expired jobs that were claimed longer ago
	// than the threshold but never got a result. Zero means any age.
	StuckJobs(ctx context.Context, olderThan time.Duration) ([]*Job, error)

	// TestJobs returns un-expired jobs submitted through the disposable
	// test token and older than the threshold, regardless of state.
	TestJobs(ctx context.Context, olderThan time.Duration) ([]*Job, error)

	// RecordTrail persists one diagnostic artifact of a run.
	RecordTrail(ctx context.Context, t *Trail) error

	// TrailsFor returns the trails of a job in creation order.
	TrailsFor(ctx context.Context, jobID id.JobID) ([]*Trail, error)
}
