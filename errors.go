package baza

import (
	"errors"
	"fmt"
)

var (
	// Store errors.
	ErrNoStore         = errors.New("baza: no store configured")
	ErrStoreClosed     = errors.New("baza: store closed")
	ErrMigrationFailed = errors.New("baza: migration failed")

	// Not found errors.
	ErrTenantNotFound     = errors.New("baza: tenant not found")
	ErrTokenNotFound      = errors.New("baza: token not found")
	ErrJobNotFound        = errors.New("baza: job not found")
	ErrResultNotFound     = errors.New("baza: result not found")
	ErrLockNotFound       = errors.New("baza: lock not found")
	ErrValveNotFound      = errors.New("baza: valve not found")
	ErrAlterationNotFound = errors.New("baza: alteration not found")
	ErrSecretNotFound     = errors.New("baza: secret not found")

	// Conflict errors.
	ErrJobAlreadyExists = errors.New("baza: job already exists")
	ErrResultExists     = errors.New("baza: job already has a result")
	ErrValveExists      = errors.New("baza: valve already exists")
	ErrSecretExists     = errors.New("baza: a secret with this name and key already exists")

	// Admission errors.
	ErrNoWork           = errors.New("baza: no jobs to process")
	ErrTokenInactive    = errors.New("baza: the token is inactive")
	ErrNegativeBalance  = errors.New("baza: the balance is negative")
	ErrInvalidName      = errors.New("baza: the name is not valid, make it lower-case")
	ErrInvalidBadge     = errors.New("baza: the badge is not valid")
	ErrInvalidSize      = errors.New("baza: the size is not positive")
	ErrEmptyAgent       = errors.New("baza: the agent is empty")
	ErrInvalidSecretKey = errors.New("baza: the secret key is not valid")
)

// LockHeldError reports a failed lock acquisition, naming the holder
// that currently occupies the lock.
type LockHeldError struct {
	Name   string
	Holder string
}

func (e *LockHeldError) Error() string {
	return fmt.Sprintf("baza: the %q lock is occupied by %q", e.Name, e.Holder)
}

// IsLockHeld reports whether err is a LockHeldError.
func IsLockHeld(err error) bool {
	var lhe *LockHeldError
	return errors.As(err, &lhe)
}
