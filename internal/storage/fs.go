package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/raido/internal/apperr"
)

const docExt = ".md"

// FS implements Documents over a directory of Markdown files. The document
// key "PROJ-1" maps to "PROJ-1.md"; keys may contain forward slashes.
type FS struct {
	root string // absolute path to vault directory
}

var _ Documents = (*FS)(nil)

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute vault directory.
func (f *FS) Root() string {
	return f.root
}

// KeyForPath maps an absolute file path inside the vault back to its
// document key. ok is false for paths outside the vault or non-Markdown files.
func (f *FS) KeyForPath(abs string) (key string, ok bool) {
	if !strings.HasSuffix(abs, docExt) {
		return "", false
	}
	rel, err := filepath.Rel(f.root, abs)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return strings.TrimSuffix(filepath.ToSlash(rel), docExt), true
}

// safePath resolves a document key against the vault root and rejects
// any result that escapes it (directory traversal).
func (f *FS) safePath(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("storage: empty document key")
	}
	cleaned := filepath.Clean(filepath.FromSlash(key) + docExt)
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("storage: absolute paths not allowed: %s", key)
	}
	abs, err := filepath.Abs(filepath.Join(f.root, cleaned))
	if err != nil {
		return "", fmt.Errorf("storage: resolve path: %w", err)
	}
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("storage: path escapes vault root: %s", key)
	}
	return abs, nil
}

// Fetch returns the document text.
func (f *FS) Fetch(_ context.Context, key string) (string, error) {
	abs, err := f.safePath(key)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("storage: %w: %s", apperr.ErrDocumentNotFound, key)
		}
		return "", fmt.Errorf("storage: read %s: %w", key, err)
	}
	return string(data), nil
}

// Replace atomically writes text: tmp file → fsync → rename.
func (f *FS) Replace(_ context.Context, key, text string) error {
	abs, err := f.safePath(key)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".raido-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.WriteString(text); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}
