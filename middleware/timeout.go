package middleware

import (
	"context"
	"time"

	"github.com/tank-bohr/baza/job"
)

// Timeout returns middleware that bounds the run with a deadline. When
// the deadline hits, the context is cancelled and the handler is
// expected to return context.DeadlineExceeded. A zero duration disables
// the bound.
func Timeout(d time.Duration) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) error {
		if d > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}
		return next(ctx)
	}
}
