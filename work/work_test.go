package work

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadSaveRoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "doc.json")

	doc := Document{"kind": "report", "items": []any{"a", "b"}}
	if err := doc.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got["kind"] != "report" {
		t.Fatalf("kind %v", got["kind"])
	}
	items, ok := got["items"].([]any)
	if !ok || len(items) != 2 {
		t.Fatalf("items %v", got["items"])
	}
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	if _, err := Load(filepath.Join(dir, "missing.json")); err == nil {
		t.Fatal("missing file accepted")
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte("not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(bad); err == nil {
		t.Fatal("malformed document accepted")
	}
}

func TestErrorCount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		label string
		doc   Document
		want  int
	}{
		{"no errors key", Document{"kind": "x"}, 0},
		{"empty array", Document{"errors": []any{}}, 0},
		{"three errors", Document{"errors": []any{"a", "b", "c"}}, 3},
		{"wrong type", Document{"errors": "lots"}, 0},
		{"nil document", nil, 0},
	}
	for _, tc := range tests {
		t.Run(tc.label, func(t *testing.T) {
			t.Parallel()
			if got := tc.doc.ErrorCount(); got != tc.want {
				t.Fatalf("got %d, want %d", got, tc.want)
			}
		})
	}
}
