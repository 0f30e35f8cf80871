// Package baza is a multi-tenant job-processing backend. Clients submit
// jobs — references to input artifacts plus metadata — and a background
// pipeline claims, executes, and finalizes them, charging the owning
// tenant and notifying it of outcomes.
//
// All cross-process coordination is enforced by the store, never by
// in-process mutexes: claims are atomic conditional updates, locks and
// valves are unique-constraint-guarded inserts. Any number of pipeline
// workers may poll the same store concurrently.
//
// # Architecture
//
// Baza follows a composable store pattern where each subsystem (job,
// lock, valve, alteration, tenant) defines its own store interface and a
// single backend implements all of them. Two backends ship with the
// module: store/memory for tests and development, store/bun for
// PostgreSQL.
//
// The pipeline package holds the control loop; reaper garbage-collects
// finished, stuck, and disposable jobs; artifact, notify, and processor
// are the seams to the external collaborators.
package baza
