package processor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// trailsDir is the subdirectory of the working directory the tool
// writes audit records into, one JSON file per record, grouped by
// emitter: trails/<emitter>/<name>.json.
const trailsDir = "trails"

// CLI runs jobs by invoking an external command in the working
// directory. Options are passed as environment variables, so the tool
// never sees them on the command line or in /proc cmdline.
type CLI struct {
	command   string
	args      []string
	logger    *slog.Logger
	maxStdout int
}

var _ Processor = (*CLI)(nil)

// CLIOption configures a CLI processor.
type CLIOption func(*CLI)

// WithArgs sets extra arguments passed before the working directory.
func WithArgs(args ...string) CLIOption {
	return func(c *CLI) { c.args = args }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) CLIOption {
	return func(c *CLI) { c.logger = l }
}

// WithMaxStdout caps the captured output in bytes.
func WithMaxStdout(n int) CLIOption {
	return func(c *CLI) { c.maxStdout = n }
}

// NewCLI creates a processor invoking command.
func NewCLI(command string, opts ...CLIOption) *CLI {
	c := &CLI{
		command:   command,
		logger:    slog.Default(),
		maxStdout: 256 * 1024,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run invokes the command with dir as its working directory and the
// options in the environment. The command's exit code lands in the
// report; only a failure to start or an interrupted run is an error.
func (c *CLI) Run(ctx context.Context, dir string, opts map[string]string, maxCycles int) (*Report, error) {
	args := append(append([]string{}, c.args...), dir)
	cmd := exec.CommandContext(ctx, c.command, args...)
	cmd.Dir = dir

	env := os.Environ()
	for key, value := range opts {
		env = append(env, key+"="+value)
	}
	env = append(env, "MAX_CYCLES="+strconv.Itoa(maxCycles))
	cmd.Env = env

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	report := &Report{
		Stdout: truncate(buf.String(), c.maxStdout),
		Msec:   elapsed.Milliseconds(),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		report.Exit = exitErr.ExitCode()
	case ctx.Err() != nil:
		return nil, ctx.Err()
	default:
		return nil, fmt.Errorf("baza/processor: run %s: %w", c.command, err)
	}

	trails, err := collectTrails(dir)
	if err != nil {
		c.logger.Error("trail collection failed",
			slog.String("dir", dir),
			slog.String("error", err.Error()),
		)
	}
	report.Trails = trails

	c.logger.Debug("processor finished",
		slog.String("command", c.command),
		slog.Int("exit", report.Exit),
		slog.Int64("msec", report.Msec),
		slog.Int("trails", len(report.Trails)),
	)
	return report, nil
}

// collectTrails gathers every trails/<emitter>/<name>.json file.
func collectTrails(dir string) ([]Trail, error) {
	root := filepath.Join(dir, trailsDir)
	if _, err := os.Stat(root); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	var trails []Trail
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".json") {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		emitter := filepath.Dir(rel)
		if emitter == "." {
			emitter = "unknown"
		}
		trails = append(trails, Trail{
			Emitter: emitter,
			Name:    strings.TrimSuffix(filepath.Base(path), ".json"),
			Data:    data,
		})
		return nil
	})
	if err != nil {
		return trails, fmt.Errorf("baza/processor: walk %s: %w", root, err)
	}
	return trails, nil
}

func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "\n... (truncated)"
}
