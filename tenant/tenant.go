package tenant

import (
	"regexp"

	"github.com/tank-bohr/baza"
	"github.com/tank-bohr/baza/id"
)

// TesterToken is the well-known token text of disposable test accounts.
// Jobs submitted through it are expired eagerly by the reaper and their
// owners bypass the balance gate.
const TesterToken = "00000000-0000-0000-0000-000000000000"

// Tenant is one account: the owner of jobs, locks, valves, alterations,
// and secrets.
type Tenant struct {
	baza.Entity

	ID    id.TenantID `json:"id"`
	Login string      `json:"login"`
}

// Token is an API token a tenant submits jobs with.
type Token struct {
	baza.Entity

	ID       id.TokenID  `json:"id"`
	TenantID id.TenantID `json:"tenant_id"`
	Name     string      `json:"name"`
	Text     string      `json:"text"`
	Active   bool        `json:"active"`
}

// Tester reports whether this is the disposable test token.
func (t *Token) Tester() bool { return t.Text == TesterToken }

// Secret is a per-(tenant, job-name) key/value pair merged into the
// option map of every matching run. Shareable secrets are visible
// cluster-wide; the rest only to their owner.
type Secret struct {
	baza.Entity

	ID        id.SecretID `json:"id"`
	TenantID  id.TenantID `json:"tenant_id"`
	Name      string      `json:"name"`
	Key       string      `json:"key"`
	Value     string      `json:"value"`
	Shareable bool        `json:"shareable"`
}

var (
	secretNameRe = regexp.MustCompile(`^[a-z0-9]+$`)
	secretKeyRe  = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
)

// ValidateSecret checks the name/key/value constraints a secret must
// satisfy before it may be stored.
func ValidateSecret(s *Secret) error {
	if s.Name == "" || !secretNameRe.MatchString(s.Name) {
		return baza.ErrInvalidName
	}
	if s.Key == "" || !secretKeyRe.MatchString(s.Key) {
		return baza.ErrInvalidSecretKey
	}
	if s.Value == "" || !isASCII(s.Value) {
		return baza.ErrInvalidSecretKey
	}
	return nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 127 {
			return false
		}
	}
	return true
}
