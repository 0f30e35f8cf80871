package lock_test

import (
	"context"
	"errors"
	"testing"

	"github.com/tank-bohr/baza"
	"github.com/tank-bohr/baza/id"
	"github.com/tank-bohr/baza/lock"
	"github.com/tank-bohr/baza/store/memory"
)

func TestManagerNormalizesName(t *testing.T) {
	t.Parallel()
	m := lock.NewManager(memory.New())
	tenantID := id.NewTenantID()
	ctx := context.Background()

	if err := m.Acquire(ctx, tenantID, "Build", "w1"); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	// "BUILD" and "build" are the same lock.
	err := m.Acquire(ctx, tenantID, "BUILD", "w2")
	var lhe *baza.LockHeldError
	if !errors.As(err, &lhe) {
		t.Fatalf("expected LockHeldError, got %v", err)
	}
	if lhe.Holder != "w1" {
		t.Fatalf("wrong holder: %q", lhe.Holder)
	}

	holder, err := m.Holder(ctx, tenantID, "bUiLd")
	if err != nil {
		t.Fatalf("holder: %v", err)
	}
	if holder != "w1" {
		t.Fatalf("holder %q", holder)
	}
}

func TestManagerReleaseAndLocked(t *testing.T) {
	t.Parallel()
	m := lock.NewManager(memory.New())
	tenantID := id.NewTenantID()
	ctx := context.Background()

	if err := m.Acquire(ctx, tenantID, "deploy", "w1"); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	locked, err := m.Locked(ctx, tenantID, "Deploy")
	if err != nil || !locked {
		t.Fatalf("locked=%v err=%v", locked, err)
	}

	if err := m.Release(ctx, tenantID, "DEPLOY", "w1"); err != nil {
		t.Fatalf("release: %v", err)
	}
	locked, err = m.Locked(ctx, tenantID, "deploy")
	if err != nil || locked {
		t.Fatalf("still locked after release")
	}
}

func TestManagerReacquireSameOwner(t *testing.T) {
	t.Parallel()
	m := lock.NewManager(memory.New())
	tenantID := id.NewTenantID()
	ctx := context.Background()

	for range 3 {
		if err := m.Acquire(ctx, tenantID, "deploy", "w1"); err != nil {
			t.Fatalf("re-acquire: %v", err)
		}
	}
}

func TestManagerBreak(t *testing.T) {
	t.Parallel()
	m := lock.NewManager(memory.New())
	tenantID := id.NewTenantID()
	ctx := context.Background()

	if err := m.Acquire(ctx, tenantID, "deploy", "crashed"); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := m.Break(ctx, tenantID, "Deploy"); err != nil {
		t.Fatalf("break: %v", err)
	}
	if err := m.Acquire(ctx, tenantID, "deploy", "fresh"); err != nil {
		t.Fatalf("acquire after break: %v", err)
	}
}

func TestManagerListAndDelete(t *testing.T) {
	t.Parallel()
	m := lock.NewManager(memory.New())
	tenantID := id.NewTenantID()
	ctx := context.Background()

	if err := m.Acquire(ctx, tenantID, "build", "w1"); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := m.Acquire(ctx, tenantID, "deploy", "w2"); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	locks, err := m.List(ctx, tenantID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(locks) != 2 {
		t.Fatalf("got %d locks, want 2", len(locks))
	}

	if err := m.Delete(ctx, tenantID, locks[0].ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	locks, err = m.List(ctx, tenantID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(locks) != 1 {
		t.Fatalf("got %d locks after delete, want 1", len(locks))
	}
}

func TestTenantsIsolated(t *testing.T) {
	t.Parallel()
	m := lock.NewManager(memory.New())
	ctx := context.Background()

	a := id.NewTenantID()
	b := id.NewTenantID()
	if err := m.Acquire(ctx, a, "build", "w1"); err != nil {
		t.Fatalf("acquire a: %v", err)
	}
	if err := m.Acquire(ctx, b, "build", "w2"); err != nil {
		t.Fatalf("tenants share a lock namespace: %v", err)
	}
}
