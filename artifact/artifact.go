// Package artifact moves job payloads between durable storage and the
// local working directory of a run.
//
// A job references its input payload by URI (the job's uri1) and a
// finished run produces an output URI (the result's uri2). The store is
// the only component that understands those URIs; the pipeline just
// asks it to materialize or persist files.
package artifact

import "context"

// Store persists job payloads.
type Store interface {
	// Load materializes the payload behind uri into the local file at
	// dst, overwriting it.
	Load(ctx context.Context, uri, dst string) error

	// Save persists the local file at src and returns its new URI.
	Save(ctx context.Context, src string) (string, error)

	// Purge removes the payload behind uri. Purging a URI that is
	// already gone is not an error.
	Purge(ctx context.Context, uri string) error
}
