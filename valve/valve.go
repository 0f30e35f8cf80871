// Package valve provides the at-most-once-side-effect primitive: an
// idempotent memoization gate keyed by (tenant, name, badge).
//
// The first caller to enter a key executes a body and the result is
// cached in the store; every other caller — concurrent or later —
// receives the cached result and never executes its own body. Exclusion
// is a unique-constraint-guarded insert, so it holds across processes.
package valve

import (
	"time"

	"github.com/tank-bohr/baza"
	"github.com/tank-bohr/baza/id"
)

// Valve is one memoized side effect.
type Valve struct {
	baza.Entity

	ID       id.ValveID  `json:"id"`
	TenantID id.TenantID `json:"tenant_id"`

	// Name and Badge form the caller-chosen key together with the
	// tenant. Name is [a-z0-9]+, badge is [a-zA-Z0-9_-]+.
	Name  string `json:"name"`
	Badge string `json:"badge"`

	// Why records the reason the first caller gave.
	Why string `json:"why"`

	// Result is the JSON-encoded cached value. Write-once: nil until
	// the winning caller's body finishes, permanent afterwards.
	Result []byte `json:"result,omitempty"`

	// Resolved flips to true when Result is persisted. A row that is
	// never resolved (the winner's body failed) is deleted, not kept.
	Resolved bool `json:"resolved"`

	// Jobs is the number of jobs sharing this valve's name; populated
	// by ListValves only.
	Jobs int `json:"jobs,omitempty"`
}

// Age returns how long ago the valve was created.
func (v *Valve) Age() time.Duration {
	return time.Since(v.CreatedAt)
}
