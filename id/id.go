// Package id defines TypeID-based identity types for all Baza entities.
//
// Every entity uses a single ID struct with a prefix that identifies the
// entity type. IDs are K-sortable (UUIDv7-based), globally unique, and
// URL-safe in the format "prefix_suffix". K-sortability matters here:
// the pipeline claims jobs in creation order, and TypeID suffixes sort
// the same way the created timestamps do.
package id

import (
	"database/sql/driver"
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix identifies the entity type encoded in a TypeID.
type Prefix string

// Prefix constants for all Baza entity types.
const (
	PrefixTenant     Prefix = "hmn"
	PrefixToken      Prefix = "tok"
	PrefixSecret     Prefix = "sec"
	PrefixJob        Prefix = "job"
	PrefixResult     Prefix = "res"
	PrefixLock       Prefix = "lck"
	PrefixValve      Prefix = "vlv"
	PrefixAlteration Prefix = "alt"
	PrefixTrail      Prefix = "trl"
	PrefixWorker     Prefix = "wkr"
)

// ID is the primary identifier type for all Baza entities. It wraps a
// TypeID providing a prefix-qualified, globally unique, sortable,
// URL-safe identifier in the format "prefix_suffix".
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receivers for UnmarshalText/Scan.
type ID struct {
	inner typeid.TypeID
	valid bool
}

// Nil is the zero-value ID.
var Nil ID

// New generates a new globally unique ID with the given prefix.
// It panics if prefix is not a valid TypeID prefix (programming error).
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}

	return ID{inner: tid, valid: true}
}

// Parse parses a TypeID string (e.g., "job_01h2xcejqtf2nbrexx3vqjhp41")
// into an ID. Returns an error if the string is not valid.
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}

	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}

	return ID{inner: tid, valid: true}, nil
}

// ParseWithPrefix parses a TypeID string and validates that its prefix
// matches the expected value.
func ParseWithPrefix(s string, expected Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}

	if parsed.Prefix() != expected {
		return Nil, fmt.Errorf("id: expected prefix %q, got %q", expected, parsed.Prefix())
	}

	return parsed, nil
}

// MustParse is like Parse but panics on error. Use for hardcoded ID values.
func MustParse(s string) ID {
	parsed, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("id: must parse %q: %v", s, err))
	}

	return parsed
}

// ──────────────────────────────────────────────────
// Type aliases
// ──────────────────────────────────────────────────

// TenantID is a type-safe identifier for tenants (prefix: "hmn").
type TenantID = ID

// TokenID is a type-safe identifier for API tokens (prefix: "tok").
type TokenID = ID

// SecretID is a type-safe identifier for secrets (prefix: "sec").
type SecretID = ID

// JobID is a type-safe identifier for jobs (prefix: "job").
type JobID = ID

// ResultID is a type-safe identifier for results (prefix: "res").
type ResultID = ID

// LockID is a type-safe identifier for locks (prefix: "lck").
type LockID = ID

// ValveID is a type-safe identifier for valves (prefix: "vlv").
type ValveID = ID

// AlterationID is a type-safe identifier for alterations (prefix: "alt").
type AlterationID = ID

// TrailID is a type-safe identifier for trails (prefix: "trl").
type TrailID = ID

// WorkerID is a type-safe identifier for pipeline workers (prefix: "wkr").
type WorkerID = ID

// ──────────────────────────────────────────────────
// Convenience constructors
// ──────────────────────────────────────────────────

// NewTenantID generates a new unique tenant ID.
func NewTenantID() ID { return New(PrefixTenant) }

// NewTokenID generates a new unique token ID.
func NewTokenID() ID { return New(PrefixToken) }

// NewSecretID generates a new unique secret ID.
func NewSecretID() ID { return New(PrefixSecret) }

// NewJobID generates a new unique job ID.
func NewJobID() ID { return New(PrefixJob) }

// NewResultID generates a new unique result ID.
func NewResultID() ID { return New(PrefixResult) }

// NewLockID generates a new unique lock ID.
func NewLockID() ID { return New(PrefixLock) }

// NewValveID generates a new unique valve ID.
func NewValveID() ID { return New(PrefixValve) }

// NewAlterationID generates a new unique alteration ID.
func NewAlterationID() ID { return New(PrefixAlteration) }

// NewTrailID generates a new unique trail ID.
func NewTrailID() ID { return New(PrefixTrail) }

// NewWorkerID generates a new unique worker ID.
func NewWorkerID() ID { return New(PrefixWorker) }

// ──────────────────────────────────────────────────
// Convenience parsers
// ──────────────────────────────────────────────────

// ParseTenantID parses a string and validates the "hmn" prefix.
func ParseTenantID(s string) (ID, error) { return ParseWithPrefix(s, PrefixTenant) }

// ParseTokenID parses a string and validates the "tok" prefix.
func ParseTokenID(s string) (ID, error) { return ParseWithPrefix(s, PrefixToken) }

// ParseSecretID parses a string and validates the "sec" prefix.
func ParseSecretID(s string) (ID, error) { return ParseWithPrefix(s, PrefixSecret) }

// ParseJobID parses a string and validates the "job" prefix.
func ParseJobID(s string) (ID, error) { return ParseWithPrefix(s, PrefixJob) }

// ParseResultID parses a string and validates the "res" prefix.
func ParseResultID(s string) (ID, error) { return ParseWithPrefix(s, PrefixResult) }

// ParseLockID parses a string and validates the "lck" prefix.
func ParseLockID(s string) (ID, error) { return ParseWithPrefix(s, PrefixLock) }

// ParseValveID parses a string and validates the "vlv" prefix.
func ParseValveID(s string) (ID, error) { return ParseWithPrefix(s, PrefixValve) }

// ParseAlterationID parses a string and validates the "alt" prefix.
func ParseAlterationID(s string) (ID, error) { return ParseWithPrefix(s, PrefixAlteration) }

// ParseTrailID parses a string and validates the "trl" prefix.
func ParseTrailID(s string) (ID, error) { return ParseWithPrefix(s, PrefixTrail) }

// ParseWorkerID parses a string and validates the "wkr" prefix.
func ParseWorkerID(s string) (ID, error) { return ParseWithPrefix(s, PrefixWorker) }

// ──────────────────────────────────────────────────
// ID methods
// ──────────────────────────────────────────────────

// String returns the full TypeID string representation (prefix_suffix).
// Returns an empty string for the Nil ID.
func (i ID) String() string {
	if !i.valid {
		return ""
	}

	return i.inner.String()
}

// Prefix returns the prefix component of this ID.
func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}

	return Prefix(i.inner.Prefix())
}

// IsNil reports whether this ID is the zero value.
func (i ID) IsNil() bool {
	return !i.valid
}

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	if !i.valid {
		return []byte{}, nil
	}

	return []byte(i.inner.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil

		return nil
	}

	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}

	*i = parsed

	return nil
}

// Value implements driver.Valuer for database storage.
// Returns nil for the Nil ID so that optional foreign key columns store NULL.
func (i ID) Value() (driver.Value, error) {
	if !i.valid {
		return nil, nil //nolint:nilnil // nil is the canonical NULL for driver.Valuer
	}

	return i.inner.String(), nil
}

// Scan implements sql.Scanner for database retrieval.
func (i *ID) Scan(src any) error {
	if src == nil {
		*i = Nil

		return nil
	}

	switch v := src.(type) {
	case string:
		if v == "" {
			*i = Nil

			return nil
		}

		return i.UnmarshalText([]byte(v))
	case []byte:
		if len(v) == 0 {
			*i = Nil

			return nil
		}

		return i.UnmarshalText(v)
	default:
		return fmt.Errorf("id: cannot scan %T into ID", src)
	}
}
