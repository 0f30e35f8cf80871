package bunstore

import (
	"context"
	"fmt"
	"time"

	"github.com/tank-bohr/baza"
	"github.com/tank-bohr/baza/id"
	"github.com/tank-bohr/baza/lock"
)

// AcquireLock creates or re-affirms the lock for owner. The insert
// upserts only when the existing row already belongs to the same owner;
// a different holder trips the WHERE clause and surfaces as a conflict.
func (s *Store) AcquireLock(ctx context.Context, tenantID id.TenantID, name, owner string) error {
	now := time.Now().UTC()
	m := &lockModel{
		ID:        id.NewLockID().String(),
		TenantID:  tenantID.String(),
		Name:      name,
		Owner:     owner,
		CreatedAt: now,
		UpdatedAt: now,
	}

	res, err := s.db.NewInsert().Model(m).
		On("CONFLICT (tenant_id, name) DO UPDATE").
		Set("updated_at = NOW()").
		Where("baza_locks.owner = EXCLUDED.owner").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("baza/bun: acquire lock %s: %w", name, err)
	}

	rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
	if rows == 0 {
		holder, hErr := s.LockHolder(ctx, tenantID, name)
		if hErr != nil {
			return hErr
		}
		return &baza.LockHeldError{Name: name, Holder: holder}
	}
	return nil
}

// ReleaseLock deletes the lock iff owner holds it.
func (s *Store) ReleaseLock(ctx context.Context, tenantID id.TenantID, name, owner string) error {
	_, err := s.db.NewDelete().
		TableExpr("baza_locks").
		Where("tenant_id = ?", tenantID.String()).
		Where("name = ?", name).
		Where("owner = ?", owner).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("baza/bun: release lock %s: %w", name, err)
	}
	return nil
}

// LockHolder returns the current holder, or "".
func (s *Store) LockHolder(ctx context.Context, tenantID id.TenantID, name string) (string, error) {
	var owner string
	err := s.db.NewSelect().
		TableExpr("baza_locks").
		Column("owner").
		Where("tenant_id = ?", tenantID.String()).
		Where("name = ?", name).
		Limit(1).
		Scan(ctx, &owner)
	if err != nil {
		if isNoRows(err) {
			return "", nil
		}
		return "", fmt.Errorf("baza/bun: lock holder %s: %w", name, err)
	}
	return owner, nil
}

// ListLocks returns the tenant's locks, newest first, with per-name job
// counts.
func (s *Store) ListLocks(ctx context.Context, tenantID id.TenantID) ([]*lock.Lock, error) {
	var models []lockModel
	err := s.db.NewRaw(`
		SELECT l.*, (
			SELECT COUNT(*) FROM baza_jobs j
			WHERE j.tenant_id = l.tenant_id AND j.name = l.name
			  AND j.expired_at IS NULL
		) AS jobs
		FROM baza_locks l
		WHERE l.tenant_id = ?
		ORDER BY l.created_at DESC`,
		tenantID.String(),
	).Scan(ctx, &models)
	if err != nil {
		return nil, fmt.Errorf("baza/bun: list locks: %w", err)
	}

	out := make([]*lock.Lock, 0, len(models))
	for i := range models {
		l, convErr := fromLockModel(&models[i])
		if convErr != nil {
			return nil, convErr
		}
		out = append(out, l)
	}
	return out, nil
}

// DeleteLock removes a lock by ID regardless of holder.
func (s *Store) DeleteLock(ctx context.Context, tenantID id.TenantID, lockID id.LockID) error {
	res, err := s.db.NewDelete().
		TableExpr("baza_locks").
		Where("id = ?", lockID.String()).
		Where("tenant_id = ?", tenantID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("baza/bun: delete lock: %w", err)
	}
	rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
	if rows == 0 {
		return baza.ErrLockNotFound
	}
	return nil
}

// BreakLock removes the named lock regardless of holder.
func (s *Store) BreakLock(ctx context.Context, tenantID id.TenantID, name string) error {
	_, err := s.db.NewDelete().
		TableExpr("baza_locks").
		Where("tenant_id = ?", tenantID.String()).
		Where("name = ?", name).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("baza/bun: break lock %s: %w", name, err)
	}
	return nil
}
