package id

import (
	"encoding/json"
	"testing"
)

func TestNewAndParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		prefix Prefix
	}{
		{"tenant", PrefixTenant},
		{"token", PrefixToken},
		{"job", PrefixJob},
		{"result", PrefixResult},
		{"lock", PrefixLock},
		{"valve", PrefixValve},
		{"alteration", PrefixAlteration},
		{"trail", PrefixTrail},
		{"worker", PrefixWorker},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			generated := New(tt.prefix)
			if generated.IsNil() {
				t.Fatal("New returned the Nil ID")
			}
			if generated.Prefix() != tt.prefix {
				t.Fatalf("got prefix %q, want %q", generated.Prefix(), tt.prefix)
			}

			parsed, err := Parse(generated.String())
			if err != nil {
				t.Fatalf("parse round-trip failed: %v", err)
			}
			if parsed.String() != generated.String() {
				t.Fatalf("round-trip mismatch: %q != %q", parsed.String(), generated.String())
			}
		})
	}
}

func TestParseWithPrefix(t *testing.T) {
	t.Parallel()

	jobID := NewJobID()

	if _, err := ParseJobID(jobID.String()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ParseLockID(jobID.String()); err == nil {
		t.Fatal("expected prefix mismatch error, got nil")
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"", "not-a-typeid", "job_"} {
		if _, err := Parse(s); err == nil {
			t.Fatalf("Parse(%q) unexpectedly succeeded", s)
		}
	}
}

func TestNilID(t *testing.T) {
	t.Parallel()

	if !Nil.IsNil() {
		t.Fatal("Nil.IsNil() = false")
	}
	if Nil.String() != "" {
		t.Fatalf("Nil.String() = %q, want empty", Nil.String())
	}

	v, err := Nil.Value()
	if err != nil {
		t.Fatalf("Nil.Value() error: %v", err)
	}
	if v != nil {
		t.Fatalf("Nil.Value() = %v, want nil", v)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	t.Parallel()

	original := NewValveID()
	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded ID
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.String() != original.String() {
		t.Fatalf("round-trip mismatch: %q != %q", decoded.String(), original.String())
	}
}

func TestScan(t *testing.T) {
	t.Parallel()

	original := NewJobID()

	tests := []struct {
		name string
		src  any
		want string
	}{
		{"string", original.String(), original.String()},
		{"bytes", []byte(original.String()), original.String()},
		{"nil", nil, ""},
		{"empty string", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var scanned ID
			if err := scanned.Scan(tt.src); err != nil {
				t.Fatalf("scan: %v", err)
			}
			if scanned.String() != tt.want {
				t.Fatalf("got %q, want %q", scanned.String(), tt.want)
			}
		})
	}

	var bad ID
	if err := bad.Scan(42); err == nil {
		t.Fatal("scanning an int unexpectedly succeeded")
	}
}
