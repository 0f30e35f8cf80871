package baza

import "time"

// Config holds configuration for the pipeline workers and the reaper.
type Config struct {
	// Concurrency is the number of poller goroutines claiming jobs.
	Concurrency int

	// PollInterval is how long a poller sleeps after an idle cycle.
	PollInterval time.Duration

	// ClaimRate caps claim attempts per second across all pollers of
	// this process. Zero means no cap.
	ClaimRate float64

	// MaxCycles is the convergence-cycle limit handed to the external
	// processor on every run.
	MaxCycles int

	// RunTimeout bounds a single job execution. Zero means no limit.
	RunTimeout time.Duration

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration

	// ExpireAfter is the retention window for finished jobs before the
	// reaper expires them.
	ExpireAfter time.Duration

	// StuckAfter is how long a claimed job may sit without a result
	// before the reaper treats its worker as crashed.
	StuckAfter time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:     4,
		PollInterval:    time.Second,
		MaxCycles:       3,
		RunTimeout:      15 * time.Minute,
		ShutdownTimeout: 30 * time.Second,
		ExpireAfter:     14 * 24 * time.Hour,
		StuckAfter:      2 * time.Hour,
	}
}
