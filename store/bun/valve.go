package bunstore

import (
	"context"
	"fmt"

	"github.com/tank-bohr/baza"
	"github.com/tank-bohr/baza/id"
	"github.com/tank-bohr/baza/valve"
)

// CreateValve inserts an unresolved valve. The (tenant, name, badge)
// uniqueness constraint rejects a racing insert.
func (s *Store) CreateValve(ctx context.Context, v *valve.Valve) error {
	m := toValveModel(v)
	if _, err := s.db.NewInsert().Model(m).Exec(ctx); err != nil {
		if isDuplicateKey(err) {
			return baza.ErrValveExists
		}
		return fmt.Errorf("baza/bun: create valve %s/%s: %w", v.Name, v.Badge, err)
	}
	return nil
}

// ResolveValve persists the winner's result.
func (s *Store) ResolveValve(ctx context.Context, valveID id.ValveID, result []byte) error {
	res, err := s.db.NewUpdate().
		TableExpr("baza_valves").
		Set("result = ?", result).
		Set("resolved = TRUE").
		Set("updated_at = NOW()").
		Where("id = ?", valveID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("baza/bun: resolve valve: %w", err)
	}
	rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
	if rows == 0 {
		return baza.ErrValveNotFound
	}
	return nil
}

// GetValve retrieves a valve by key.
func (s *Store) GetValve(ctx context.Context, tenantID id.TenantID, name, badge string) (*valve.Valve, error) {
	m := new(valveModel)
	err := s.db.NewSelect().Model(m).
		Where("tenant_id = ?", tenantID.String()).
		Where("name = ?", name).
		Where("badge = ?", badge).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, baza.ErrValveNotFound
		}
		return nil, fmt.Errorf("baza/bun: get valve %s/%s: %w", name, badge, err)
	}
	return fromValveModel(m)
}

// RemoveValve deletes a valve row; missing rows are ignored.
func (s *Store) RemoveValve(ctx context.Context, valveID id.ValveID) error {
	_, err := s.db.NewDelete().
		TableExpr("baza_valves").
		Where("id = ?", valveID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("baza/bun: remove valve: %w", err)
	}
	return nil
}

// DeleteValve removes a valve by ID on behalf of its tenant.
func (s *Store) DeleteValve(ctx context.Context, tenantID id.TenantID, valveID id.ValveID) error {
	res, err := s.db.NewDelete().
		TableExpr("baza_valves").
		Where("id = ?", valveID.String()).
		Where("tenant_id = ?", tenantID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("baza/bun: delete valve: %w", err)
	}
	rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
	if rows == 0 {
		return baza.ErrValveNotFound
	}
	return nil
}

// ListValves returns the tenant's valves, newest first, with per-name
// job counts.
func (s *Store) ListValves(ctx context.Context, tenantID id.TenantID) ([]*valve.Valve, error) {
	var models []valveModel
	err := s.db.NewRaw(`
		SELECT v.*, (
			SELECT COUNT(*) FROM baza_jobs j
			WHERE j.tenant_id = v.tenant_id AND j.name = v.name
			  AND j.expired_at IS NULL
		) AS jobs
		FROM baza_valves v
		WHERE v.tenant_id = ?
		ORDER BY v.created_at DESC`,
		tenantID.String(),
	).Scan(ctx, &models)
	if err != nil {
		return nil, fmt.Errorf("baza/bun: list valves: %w", err)
	}

	out := make([]*valve.Valve, 0, len(models))
	for i := range models {
		v, convErr := fromValveModel(&models[i])
		if convErr != nil {
			return nil, convErr
		}
		out = append(out, v)
	}
	return out, nil
}
