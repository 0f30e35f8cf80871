package job

import (
	"time"

	"github.com/tank-bohr/baza"
	"github.com/tank-bohr/baza/id"
)

// Job represents one unit of submitted work referencing an input
// artifact.
type Job struct {
	baza.Entity

	ID       id.JobID    `json:"id"`
	TokenID  id.TokenID  `json:"token_id"`
	TenantID id.TenantID `json:"tenant_id"`

	// Name groups jobs into a logical stream; runs that share a name
	// are serialized through the lock manager. Lower-case [a-z0-9-]+.
	Name string `json:"name"`

	// URI1 is the opaque reference of the input artifact.
	URI1 string `json:"uri1"`

	// Size and Errors are the declared byte size and error count of the
	// input artifact at submission time.
	Size   int64 `json:"size"`
	Errors int   `json:"errors"`

	// Agent is the client software string that submitted the job.
	Agent string `json:"agent"`

	// Metas are free-form "key:value" strings merged into the option
	// map of the run.
	Metas []string `json:"metas,omitempty"`

	// Taken names the owner that claimed the job, or records the
	// failure message after a fatal run. Empty while unclaimed.
	Taken string `json:"taken,omitempty"`

	// TakenAt is when the claim landed; the reaper uses it to find
	// jobs whose worker crashed.
	TakenAt *time.Time `json:"taken_at,omitempty"`

	// ExpiredAt is set once by the reaper; an expired job is invisible
	// to every query except administrative ones.
	ExpiredAt *time.Time `json:"expired_at,omitempty"`
}

// Expired reports whether the reaper has expired this job.
func (j *Job) Expired() bool { return j.ExpiredAt != nil }

// Result is the terminal outcome record of a job's execution. Exactly
// one result exists per finished job.
type Result struct {
	baza.Entity

	ID    id.ResultID `json:"id"`
	JobID id.JobID    `json:"job_id"`

	// URI2 is the opaque reference of the output artifact; empty when
	// the run failed.
	URI2 string `json:"uri2,omitempty"`

	// Stdout is the captured log text of the run, with secrets masked.
	Stdout string `json:"stdout"`

	// Exit is the processor's exit code; zero means success.
	Exit int `json:"exit"`

	// Msec is the elapsed wall-clock time in milliseconds.
	Msec int64 `json:"msec"`

	// Size and Errors describe the output artifact; both are zero when
	// the run failed.
	Size   int64 `json:"size"`
	Errors int   `json:"errors"`
}

// OK reports whether the run succeeded.
func (r *Result) OK() bool { return r.Exit == 0 }

// Trail is one named diagnostic artifact emitted by the external
// processor during a run, recorded verbatim.
type Trail struct {
	baza.Entity

	ID      id.TrailID `json:"id"`
	JobID   id.JobID   `json:"job_id"`
	Emitter string     `json:"emitter"`
	Name    string     `json:"name"`
	Data    []byte     `json:"data"`
}
