package bunstore

import (
	"context"
	"fmt"

	"github.com/tank-bohr/baza"
	"github.com/tank-bohr/baza/alteration"
	"github.com/tank-bohr/baza/id"
)

// AddAlteration persists a new pending alteration.
func (s *Store) AddAlteration(ctx context.Context, a *alteration.Alteration) error {
	m := toAlterationModel(a)
	if _, err := s.db.NewInsert().Model(m).Exec(ctx); err != nil {
		return fmt.Errorf("baza/bun: add alteration: %w", err)
	}
	return nil
}

// PendingAlterations returns pending alterations for the name, oldest
// first.
func (s *Store) PendingAlterations(ctx context.Context, tenantID id.TenantID, name string) ([]*alteration.Alteration, error) {
	var models []alterationModel
	err := s.db.NewSelect().Model(&models).
		Where("tenant_id = ?", tenantID.String()).
		Where("name = ?", name).
		Where("pending").
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("baza/bun: pending alterations: %w", err)
	}
	return convertAlterations(models)
}

// CompleteAlteration consumes the alteration with one conditional
// update; a racing consumer loses by finding zero rows updated.
func (s *Store) CompleteAlteration(ctx context.Context, altID id.AlterationID, jobID id.JobID) (bool, error) {
	res, err := s.db.NewUpdate().
		TableExpr("baza_alterations").
		Set("pending = FALSE").
		Set("job_id = ?", jobID.String()).
		Set("updated_at = NOW()").
		Where("id = ?", altID.String()).
		Where("pending").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("baza/bun: complete alteration: %w", err)
	}
	rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
	return rows == 1, nil
}

// ListAlterations returns the tenant's alterations, newest first.
func (s *Store) ListAlterations(ctx context.Context, tenantID id.TenantID) ([]*alteration.Alteration, error) {
	var models []alterationModel
	err := s.db.NewSelect().Model(&models).
		Where("tenant_id = ?", tenantID.String()).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("baza/bun: list alterations: %w", err)
	}
	return convertAlterations(models)
}

// DeleteAlteration removes an alteration owned by the tenant.
func (s *Store) DeleteAlteration(ctx context.Context, tenantID id.TenantID, altID id.AlterationID) error {
	res, err := s.db.NewDelete().
		TableExpr("baza_alterations").
		Where("id = ?", altID.String()).
		Where("tenant_id = ?", tenantID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("baza/bun: delete alteration: %w", err)
	}
	rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
	if rows == 0 {
		return baza.ErrAlterationNotFound
	}
	return nil
}

func convertAlterations(models []alterationModel) ([]*alteration.Alteration, error) {
	out := make([]*alteration.Alteration, 0, len(models))
	for i := range models {
		a, err := fromAlterationModel(&models[i])
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
