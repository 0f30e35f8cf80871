// Package lock provides per-(tenant, name) mutual exclusion backed by
// the store. At most one live lock row exists per pair; acquisition by a
// different holder fails fast with the conflicting owner named, it never
// blocks and never overwrites.
package lock

import (
	"context"
	"strings"

	"github.com/tank-bohr/baza"
	"github.com/tank-bohr/baza/id"
)

// Lock represents exclusive ownership of a (tenant, name) pair.
type Lock struct {
	baza.Entity

	ID       id.LockID   `json:"id"`
	TenantID id.TenantID `json:"tenant_id"`
	Name     string      `json:"name"`
	Owner    string      `json:"owner"`

	// Jobs is the number of jobs sharing this name; populated by
	// ListLocks only.
	Jobs int `json:"jobs,omitempty"`
}

// Store defines the persistence contract for locks. Acquisition must be
// atomic against concurrent acquirers: a racing insert for the same
// (tenant, name) by a different owner is rejected by a uniqueness
// constraint, not merged.
type Store interface {
	// AcquireLock creates the lock held by owner, or re-affirms it when
	// owner already holds it. When a different holder occupies the
	// pair, it fails with *baza.LockHeldError.
	AcquireLock(ctx context.Context, tenantID id.TenantID, name, owner string) error

	// ReleaseLock deletes the lock iff it is currently held by owner.
	// Releasing a lock held by someone else, or no lock at all, is a
	// no-op.
	ReleaseLock(ctx context.Context, tenantID id.TenantID, name, owner string) error

	// LockHolder returns the current holder of the named lock, or ""
	// when the pair is free.
	LockHolder(ctx context.Context, tenantID id.TenantID, name string) (string, error)

	// ListLocks returns the tenant's locks, newest first, with per-name
	// job counts.
	ListLocks(ctx context.Context, tenantID id.TenantID) ([]*Lock, error)

	// DeleteLock removes a lock by ID regardless of holder.
	// Administrative; also used by the reaper when it reclaims a stuck
	// job whose worker crashed holding the name.
	DeleteLock(ctx context.Context, tenantID id.TenantID, lockID id.LockID) error

	// BreakLock removes the named lock regardless of holder.
	BreakLock(ctx context.Context, tenantID id.TenantID, name string) error
}

// Manager wraps a Store with name normalization. All public entry
// points lower-case the name so "Build" and "build" contend for the
// same lock, as job names do.
type Manager struct {
	store Store
}

// NewManager creates a Manager on top of the given store.
func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

// Acquire takes or re-affirms the named lock for owner.
func (m *Manager) Acquire(ctx context.Context, tenantID id.TenantID, name, owner string) error {
	return m.store.AcquireLock(ctx, tenantID, strings.ToLower(name), owner)
}

// Release gives the named lock back iff owner holds it.
func (m *Manager) Release(ctx context.Context, tenantID id.TenantID, name, owner string) error {
	return m.store.ReleaseLock(ctx, tenantID, strings.ToLower(name), owner)
}

// Holder returns the current holder of the named lock, or "".
func (m *Manager) Holder(ctx context.Context, tenantID id.TenantID, name string) (string, error) {
	return m.store.LockHolder(ctx, tenantID, strings.ToLower(name))
}

// Locked reports whether the named lock is currently held by anyone.
func (m *Manager) Locked(ctx context.Context, tenantID id.TenantID, name string) (bool, error) {
	holder, err := m.Holder(ctx, tenantID, name)
	if err != nil {
		return false, err
	}
	return holder != "", nil
}

// Break removes the named lock regardless of holder.
func (m *Manager) Break(ctx context.Context, tenantID id.TenantID, name string) error {
	return m.store.BreakLock(ctx, tenantID, strings.ToLower(name))
}

// List returns the tenant's locks, newest first, with per-name job
// counts.
func (m *Manager) List(ctx context.Context, tenantID id.TenantID) ([]*Lock, error) {
	return m.store.ListLocks(ctx, tenantID)
}

// Delete removes a lock by ID regardless of holder. Administrative.
func (m *Manager) Delete(ctx context.Context, tenantID id.TenantID, lockID id.LockID) error {
	return m.store.DeleteLock(ctx, tenantID, lockID)
}
