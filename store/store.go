// Package store defines the aggregate persistence interface. Each
// subsystem (tenant, job, lock, valve, alteration) defines its own
// store interface; the composite Store composes them all, and a single
// backend implements every one. Backends: Postgres (bun) and Memory.
package store

import (
	"context"

	"github.com/tank-bohr/baza/alteration"
	"github.com/tank-bohr/baza/job"
	"github.com/tank-bohr/baza/lock"
	"github.com/tank-bohr/baza/tenant"
	"github.com/tank-bohr/baza/valve"
)

// Store is the aggregate persistence interface.
type Store interface {
	tenant.Store
	job.Store
	lock.Store
	valve.Store
	alteration.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
