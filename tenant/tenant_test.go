package tenant_test

import (
	"errors"
	"testing"

	"github.com/tank-bohr/baza"
	"github.com/tank-bohr/baza/tenant"
)

func TestValidateSecret(t *testing.T) {
	t.Parallel()

	valid := func() *tenant.Secret {
		return &tenant.Secret{Name: "deploy", Key: "API_KEY", Value: "hunter2"}
	}

	tests := []struct {
		label  string
		mutate func(*tenant.Secret)
		want   error
	}{
		{"valid", func(*tenant.Secret) {}, nil},
		{"empty name", func(s *tenant.Secret) { s.Name = "" }, baza.ErrInvalidName},
		{"upper-case name", func(s *tenant.Secret) { s.Name = "Deploy" }, baza.ErrInvalidName},
		{"name with dash", func(s *tenant.Secret) { s.Name = "my-deploy" }, baza.ErrInvalidName},
		{"empty key", func(s *tenant.Secret) { s.Key = "" }, baza.ErrInvalidSecretKey},
		{"key with dash", func(s *tenant.Secret) { s.Key = "API-KEY" }, baza.ErrInvalidSecretKey},
		{"empty value", func(s *tenant.Secret) { s.Value = "" }, baza.ErrInvalidSecretKey},
		{"non-ascii value", func(s *tenant.Secret) { s.Value = "pässword" }, baza.ErrInvalidSecretKey},
	}
	for _, tc := range tests {
		t.Run(tc.label, func(t *testing.T) {
			t.Parallel()
			s := valid()
			tc.mutate(s)
			if err := tenant.ValidateSecret(s); !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestTokenTester(t *testing.T) {
	t.Parallel()

	if (&tenant.Token{Text: "regular"}).Tester() {
		t.Fatal("regular token flagged as tester")
	}
	if !(&tenant.Token{Text: tenant.TesterToken}).Tester() {
		t.Fatal("tester token not recognized")
	}
}
