package valve

import (
	"context"

	"github.com/tank-bohr/baza/id"
)

// Store defines the persistence contract for valves.
type Store interface {
	// CreateValve inserts an unresolved valve row. The (tenant, name,
	// badge) triple is guarded by a uniqueness constraint: a racing
	// insert fails with baza.ErrValveExists instead of merging.
	CreateValve(ctx context.Context, v *Valve) error

	// ResolveValve persists the winner's result, making the row
	// permanent and visible to waiting callers.
	ResolveValve(ctx context.Context, valveID id.ValveID, result []byte) error

	// GetValve retrieves a valve by key, resolved or not.
	GetValve(ctx context.Context, tenantID id.TenantID, name, badge string) (*Valve, error)

	// RemoveValve deletes an unresolved row after the winner's body
	// failed, so a future caller can retry. Deleting a missing row is a
	// no-op.
	RemoveValve(ctx context.Context, valveID id.ValveID) error

	// DeleteValve removes a valve by ID on behalf of its tenant.
	DeleteValve(ctx context.Context, tenantID id.TenantID, valveID id.ValveID) error

	// ListValves returns the tenant's valves, newest first, with
	// per-name job counts.
	ListValves(ctx context.Context, tenantID id.TenantID) ([]*Valve, error)
}
