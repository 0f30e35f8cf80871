// Package job defines jobs, their results, and the admission path.
//
// A job references an input artifact by an opaque URI and carries the
// metadata the pipeline needs to execute it. A job is busy for its
// owner while an un-expired job of the same name has no result; it is
// immutable once a result exists, except for expiry.
//
// Claiming is a two-step scan-then-CAS: the pipeline lists unfinished
// jobs in creation order and marks the first eligible one taken with a
// single conditional update, so concurrent pollers never claim the same
// row.
package job
