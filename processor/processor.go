// Package processor runs the external tool that does the actual work of
// a job. The pipeline prepares a working directory with the job's
// payload, hands it to a Processor together with the merged option set,
// and gets back an exit code, the captured output and any trail records
// the tool emitted.
package processor

import "context"

// Trail is one audit record emitted by the tool during a run.
type Trail struct {
	Emitter string
	Name    string
	Data    []byte
}

// Report is the outcome of one invocation.
type Report struct {
	// Exit is the tool's exit code; zero means success.
	Exit int

	// Stdout is the combined captured output, already truncated to a
	// size safe to persist.
	Stdout string

	// Msec is the wall-clock duration of the invocation in
	// milliseconds.
	Msec int64

	// Trails holds the audit records collected from the run.
	Trails []Trail
}

// Processor executes one job attempt against a prepared directory.
//
// A non-zero exit code is reported through Report.Exit, not through the
// error: an error means the processor itself could not run the tool.
type Processor interface {
	Run(ctx context.Context, dir string, opts map[string]string, maxCycles int) (*Report, error)
}
