// Package work handles the working document of a run: the JSON file the
// pipeline materializes from the input artifact, hands to alterations
// and the external processor, and saves back as the output artifact.
//
// The pipeline treats the document as opaque except for two things: the
// top-level "errors" array, whose length is the run's error count, and
// the alteration step, which may rewrite the document wholesale.
package work

import (
	"encoding/json"
	"fmt"
	"os"
)

// Document is the mutable working data of one run.
type Document map[string]any

// Load reads and parses the document at path.
func Load(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("baza/work: read %s: %w", path, err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("baza/work: parse %s: %w", path, err)
	}
	return doc, nil
}

// Save writes the document to path, replacing whatever is there.
func (d Document) Save(path string) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("baza/work: encode: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("baza/work: write %s: %w", path, err)
	}
	return nil
}

// ErrorCount returns the length of the top-level "errors" array, or
// zero when the document carries none.
func (d Document) ErrorCount() int {
	raw, ok := d["errors"]
	if !ok {
		return 0
	}
	arr, ok := raw.([]any)
	if !ok {
		return 0
	}
	return len(arr)
}
