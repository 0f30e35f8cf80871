// Package middleware provides composable wrappers around a job run.
// Middleware observe or bound the run synchronously: recover from
// panics, log, enforce a deadline, emit traces and metrics. The run
// itself — processor invocation, document handling — stays in the
// pipeline; middleware never touch stores.
package middleware

import (
	"context"

	"github.com/tank-bohr/baza/job"
)

// Handler is the terminal function that performs the run.
type Handler func(ctx context.Context) error

// Middleware wraps a Handler with cross-cutting logic. It receives the
// current context, the job being run, and the next handler to call.
// Middleware must call next to continue the chain unless
// short-circuiting on error.
type Middleware func(ctx context.Context, j *job.Job, next Handler) error

// Chain composes middleware into one. The first middleware in the list
// is the outermost wrapper:
//
//	Chain(logging, recoverMW, timeout) runs as logging → recover → timeout → handler
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) error {
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			prev := h
			h = func(ctx context.Context) error {
				return mw(ctx, j, prev)
			}
		}
		return h(ctx)
	}
}
