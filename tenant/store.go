package tenant

import (
	"context"

	"github.com/tank-bohr/baza/id"
)

// Store defines the persistence contract for tenants, tokens, and
// secrets.
type Store interface {
	// EnsureTenant creates a tenant with the given login if it does not
	// exist yet and returns it. Idempotent; logins are compared
	// lower-case.
	EnsureTenant(ctx context.Context, login string) (*Tenant, error)

	// GetTenant retrieves a tenant by ID.
	GetTenant(ctx context.Context, tenantID id.TenantID) (*Tenant, error)

	// FindTenant retrieves a tenant by login.
	FindTenant(ctx context.Context, login string) (*Tenant, error)

	// CreateToken persists a new API token.
	CreateToken(ctx context.Context, t *Token) error

	// GetToken retrieves a token by ID.
	GetToken(ctx context.Context, tokenID id.TokenID) (*Token, error)

	// TokenByText retrieves a token by its secret text.
	TokenByText(ctx context.Context, text string) (*Token, error)

	// DeactivateToken marks a token inactive. Inactive tokens cannot
	// submit jobs; existing jobs are unaffected.
	DeactivateToken(ctx context.Context, tokenID id.TokenID) error

	// AddSecret persists a new secret. Fails with baza.ErrSecretExists
	// when the (tenant, name, key) triple is already present.
	AddSecret(ctx context.Context, s *Secret) error

	// SecretsFor returns the tenant's secrets whose name matches the
	// given job name, ordered by key.
	SecretsFor(ctx context.Context, tenantID id.TenantID, name string) ([]*Secret, error)

	// ShareableSecrets returns all secrets flagged shareable, across
	// every tenant.
	ShareableSecrets(ctx context.Context) ([]*Secret, error)

	// DeleteSecret removes a secret owned by the given tenant.
	DeleteSecret(ctx context.Context, tenantID id.TenantID, secretID id.SecretID) error
}

// Gate answers the two admission questions the pipeline asks about a
// tenant. The billing ledger behind it is an external collaborator.
type Gate interface {
	// BalancePositive reports whether the tenant's account balance
	// allows new work.
	BalancePositive(ctx context.Context, tenantID id.TenantID) (bool, error)

	// Tester reports whether the tenant is a disposable test account
	// that bypasses the balance gate.
	Tester(ctx context.Context, tenantID id.TenantID) (bool, error)
}

// OpenGate is a Gate that admits everyone. Useful for tests and for
// deployments without billing.
type OpenGate struct{}

// BalancePositive always returns true.
func (OpenGate) BalancePositive(context.Context, id.TenantID) (bool, error) { return true, nil }

// Tester always returns false.
func (OpenGate) Tester(context.Context, id.TenantID) (bool, error) { return false, nil }
