package processor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestCLIRunCapturesOutput(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	c := NewCLI("sh", WithArgs("-c", `echo "hello from $JOB_NAME, cycles=$MAX_CYCLES"; echo oops >&2`, "sh"))
	report, err := c.Run(context.Background(), dir, map[string]string{"JOB_NAME": "build"}, 7)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Exit != 0 {
		t.Fatalf("exit %d", report.Exit)
	}
	if !strings.Contains(report.Stdout, "hello from build, cycles=7") {
		t.Fatalf("env not passed: %q", report.Stdout)
	}
	if !strings.Contains(report.Stdout, "oops") {
		t.Fatalf("stderr not captured: %q", report.Stdout)
	}
	if report.Msec < 0 {
		t.Fatalf("msec %d", report.Msec)
	}
}

func TestCLIRunExitCode(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	c := NewCLI("sh", WithArgs("-c", "exit 3", "sh"))
	report, err := c.Run(context.Background(), dir, nil, 1)
	if err != nil {
		t.Fatalf("non-zero exit must be a report, not an error: %v", err)
	}
	if report.Exit != 3 {
		t.Fatalf("exit %d, want 3", report.Exit)
	}
}

func TestCLIRunMissingCommand(t *testing.T) {
	t.Parallel()

	c := NewCLI("definitely-not-a-command-7bd1")
	if _, err := c.Run(context.Background(), t.TempDir(), nil, 1); err == nil {
		t.Fatal("expected an error for a missing command")
	}
}

func TestCLIRunCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	c := NewCLI("sh", WithArgs("-c", "sleep 10", "sh"))
	_, err := c.Run(ctx, t.TempDir(), nil, 1)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestCLIRunCollectsTrails(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	emitterDir := filepath.Join(dir, "trails", "scanner")
	if err := os.MkdirAll(emitterDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(emitterDir, "summary.json"), []byte(`{"n":1}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "trails", "loose.json"), []byte(`{}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	// Non-JSON files are ignored.
	if err := os.WriteFile(filepath.Join(emitterDir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	c := NewCLI("true")
	report, err := c.Run(context.Background(), dir, nil, 1)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(report.Trails) != 2 {
		t.Fatalf("expected 2 trails, got %d", len(report.Trails))
	}

	byName := make(map[string]Trail)
	for _, tr := range report.Trails {
		byName[tr.Name] = tr
	}
	if got := byName["summary"]; got.Emitter != "scanner" || string(got.Data) != `{"n":1}` {
		t.Fatalf("scanner trail wrong: %+v", got)
	}
	if got := byName["loose"]; got.Emitter != "unknown" {
		t.Fatalf("top-level trail emitter %q", got.Emitter)
	}
}

func TestCLIRunNoTrailsDir(t *testing.T) {
	t.Parallel()

	c := NewCLI("true")
	report, err := c.Run(context.Background(), t.TempDir(), nil, 1)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(report.Trails) != 0 {
		t.Fatalf("phantom trails: %d", len(report.Trails))
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		label string
		in    string
		max   int
		want  string
	}{
		{"under", "short", 10, "short"},
		{"exact", "12345", 5, "12345"},
		{"over", "1234567890", 5, "12345\n... (truncated)"},
		{"unlimited", "anything", 0, "anything"},
	}
	for _, tc := range tests {
		t.Run(tc.label, func(t *testing.T) {
			t.Parallel()
			if got := truncate(tc.in, tc.max); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestCLIRunTruncatesOutput(t *testing.T) {
	t.Parallel()

	c := NewCLI("sh", WithArgs("-c", "printf 'aaaaaaaaaaaaaaaaaaaa'", "sh"), WithMaxStdout(10))
	report, err := c.Run(context.Background(), t.TempDir(), nil, 1)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.HasSuffix(report.Stdout, "(truncated)") {
		t.Fatalf("not truncated: %q", report.Stdout)
	}
}
