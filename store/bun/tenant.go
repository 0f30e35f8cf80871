package bunstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tank-bohr/baza"
	"github.com/tank-bohr/baza/id"
	"github.com/tank-bohr/baza/tenant"
)

// EnsureTenant creates the tenant for login if it is missing and
// returns it. The unique constraint on login makes the insert safe
// against concurrent callers.
func (s *Store) EnsureTenant(ctx context.Context, login string) (*tenant.Tenant, error) {
	login = strings.ToLower(login)
	now := time.Now().UTC()

	m := &tenantModel{
		ID:        id.NewTenantID().String(),
		Login:     login,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.NewInsert().Model(m).
		On("CONFLICT (login) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("baza/bun: ensure tenant: %w", err)
	}

	return s.FindTenant(ctx, login)
}

// GetTenant retrieves a tenant by ID.
func (s *Store) GetTenant(ctx context.Context, tenantID id.TenantID) (*tenant.Tenant, error) {
	m := new(tenantModel)
	err := s.db.NewSelect().Model(m).
		Where("id = ?", tenantID.String()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, baza.ErrTenantNotFound
		}
		return nil, fmt.Errorf("baza/bun: get tenant: %w", err)
	}
	return fromTenantModel(m)
}

// FindTenant retrieves a tenant by login.
func (s *Store) FindTenant(ctx context.Context, login string) (*tenant.Tenant, error) {
	m := new(tenantModel)
	err := s.db.NewSelect().Model(m).
		Where("login = ?", strings.ToLower(login)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, baza.ErrTenantNotFound
		}
		return nil, fmt.Errorf("baza/bun: find tenant: %w", err)
	}
	return fromTenantModel(m)
}

// CreateToken persists a new API token.
func (s *Store) CreateToken(ctx context.Context, t *tenant.Token) error {
	m := toTokenModel(t)
	if _, err := s.db.NewInsert().Model(m).Exec(ctx); err != nil {
		return fmt.Errorf("baza/bun: create token: %w", err)
	}
	return nil
}

// GetToken retrieves a token by ID.
func (s *Store) GetToken(ctx context.Context, tokenID id.TokenID) (*tenant.Token, error) {
	m := new(tokenModel)
	err := s.db.NewSelect().Model(m).
		Where("id = ?", tokenID.String()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, baza.ErrTokenNotFound
		}
		return nil, fmt.Errorf("baza/bun: get token: %w", err)
	}
	return fromTokenModel(m)
}

// TokenByText retrieves a token by its secret text.
func (s *Store) TokenByText(ctx context.Context, text string) (*tenant.Token, error) {
	m := new(tokenModel)
	err := s.db.NewSelect().Model(m).
		Where("text = ?", text).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, baza.ErrTokenNotFound
		}
		return nil, fmt.Errorf("baza/bun: token by text: %w", err)
	}
	return fromTokenModel(m)
}

// DeactivateToken marks a token inactive.
func (s *Store) DeactivateToken(ctx context.Context, tokenID id.TokenID) error {
	res, err := s.db.NewUpdate().
		TableExpr("baza_tokens").
		Set("active = FALSE").
		Set("updated_at = NOW()").
		Where("id = ?", tokenID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("baza/bun: deactivate token: %w", err)
	}
	rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
	if rows == 0 {
		return baza.ErrTokenNotFound
	}
	return nil
}

// AddSecret persists a new secret. The (tenant, name, key) uniqueness
// constraint rejects duplicates.
func (s *Store) AddSecret(ctx context.Context, sec *tenant.Secret) error {
	m := toSecretModel(sec)
	if _, err := s.db.NewInsert().Model(m).Exec(ctx); err != nil {
		if isDuplicateKey(err) {
			return baza.ErrSecretExists
		}
		return fmt.Errorf("baza/bun: add secret: %w", err)
	}
	return nil
}

// SecretsFor returns the tenant's secrets for the job name, by key.
func (s *Store) SecretsFor(ctx context.Context, tenantID id.TenantID, name string) ([]*tenant.Secret, error) {
	var models []secretModel
	err := s.db.NewSelect().Model(&models).
		Where("tenant_id = ?", tenantID.String()).
		Where("name = ?", name).
		Order("key ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("baza/bun: secrets for %s: %w", name, err)
	}

	out := make([]*tenant.Secret, 0, len(models))
	for i := range models {
		sec, convErr := fromSecretModel(&models[i])
		if convErr != nil {
			return nil, convErr
		}
		out = append(out, sec)
	}
	return out, nil
}

// ShareableSecrets returns every shareable secret across all tenants.
func (s *Store) ShareableSecrets(ctx context.Context) ([]*tenant.Secret, error) {
	var models []secretModel
	err := s.db.NewSelect().Model(&models).
		Where("shareable").
		Order("key ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("baza/bun: shareable secrets: %w", err)
	}

	out := make([]*tenant.Secret, 0, len(models))
	for i := range models {
		sec, convErr := fromSecretModel(&models[i])
		if convErr != nil {
			return nil, convErr
		}
		out = append(out, sec)
	}
	return out, nil
}

// DeleteSecret removes a secret owned by the tenant.
func (s *Store) DeleteSecret(ctx context.Context, tenantID id.TenantID, secretID id.SecretID) error {
	res, err := s.db.NewDelete().
		TableExpr("baza_secrets").
		Where("id = ?", secretID.String()).
		Where("tenant_id = ?", tenantID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("baza/bun: delete secret: %w", err)
	}
	rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
	if rows == 0 {
		return baza.ErrSecretNotFound
	}
	return nil
}
