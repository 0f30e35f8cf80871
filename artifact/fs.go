package artifact

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const fsScheme = "fs://"

// FS is a content-addressed Store on the local filesystem. Payloads
// live under root, named by the hex SHA-256 of their content, so saving
// the same bytes twice yields the same URI and costs nothing extra.
type FS struct {
	root string
}

var _ Store = (*FS)(nil)

// NewFS creates a filesystem store rooted at dir, creating it if
// needed.
func NewFS(dir string) (*FS, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("baza/artifact: create root %s: %w", dir, err)
	}
	return &FS{root: dir}, nil
}

// Load copies the payload into dst.
func (f *FS) Load(_ context.Context, uri, dst string) error {
	path, err := f.path(uri)
	if err != nil {
		return err
	}

	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("baza/artifact: open %s: %w", uri, err)
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("baza/artifact: create %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return fmt.Errorf("baza/artifact: copy %s: %w", uri, err)
	}
	return nil
}

// Save hashes src, stores it under its digest and returns fs://<hex>.
func (f *FS) Save(_ context.Context, src string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("baza/artifact: open %s: %w", src, err)
	}
	defer in.Close()

	h := sha256.New()
	if _, err := io.Copy(h, in); err != nil {
		return "", fmt.Errorf("baza/artifact: hash %s: %w", src, err)
	}
	digest := hex.EncodeToString(h.Sum(nil))
	dst := filepath.Join(f.root, digest)

	if _, err := os.Stat(dst); err == nil {
		return fsScheme + digest, nil
	}

	// Write to a temp file first so a crash never leaves a truncated
	// payload under a valid digest name.
	tmp, err := os.CreateTemp(f.root, "incoming-*")
	if err != nil {
		return "", fmt.Errorf("baza/artifact: temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := in.Seek(0, io.SeekStart); err != nil {
		tmp.Close()
		return "", fmt.Errorf("baza/artifact: rewind %s: %w", src, err)
	}
	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return "", fmt.Errorf("baza/artifact: copy %s: %w", src, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("baza/artifact: close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", fmt.Errorf("baza/artifact: place %s: %w", digest, err)
	}
	return fsScheme + digest, nil
}

// Purge deletes the payload. Missing payloads are ignored.
func (f *FS) Purge(_ context.Context, uri string) error {
	path, err := f.path(uri)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("baza/artifact: purge %s: %w", uri, err)
	}
	return nil
}

func (f *FS) path(uri string) (string, error) {
	digest, ok := strings.CutPrefix(uri, fsScheme)
	if !ok || digest == "" || strings.ContainsAny(digest, "/\\.") {
		return "", fmt.Errorf("baza/artifact: malformed uri %q", uri)
	}
	return filepath.Join(f.root, digest), nil
}
