package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/raido/internal/apperr"
)

func tempVault(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestReplaceAndFetch(t *testing.T) {
	s := tempVault(t)
	ctx := context.Background()
	content := "## Todos\n- [ ] write tests\n"
	if err := s.Replace(ctx, "PROJ-1", content); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	got, err := s.Fetch(ctx, "PROJ-1")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got != content {
		t.Errorf("content mismatch: got %q", got)
	}
	if _, err := os.Stat(filepath.Join(s.Root(), "PROJ-1.md")); err != nil {
		t.Errorf("expected PROJ-1.md on disk: %v", err)
	}
}

func TestReplaceCreatesSubdirs(t *testing.T) {
	s := tempVault(t)
	ctx := context.Background()
	if err := s.Replace(ctx, "team/PROJ-2", "deep"); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	got, err := s.Fetch(ctx, "team/PROJ-2")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got != "deep" {
		t.Errorf("content = %q", got)
	}
}

func TestFetchMissing(t *testing.T) {
	s := tempVault(t)
	_, err := s.Fetch(context.Background(), "NOPE-1")
	if !errors.Is(err, apperr.ErrDocumentNotFound) {
		t.Errorf("err = %v, want ErrDocumentNotFound", err)
	}
}

func TestKeyForPath(t *testing.T) {
	s := tempVault(t)
	cases := []struct {
		path string
		key  string
		ok   bool
	}{
		{filepath.Join(s.Root(), "PROJ-1.md"), "PROJ-1", true},
		{filepath.Join(s.Root(), "team", "PROJ-2.md"), "team/PROJ-2", true},
		{filepath.Join(s.Root(), "notes.txt"), "", false},
		{filepath.Join(filepath.Dir(s.Root()), "outside.md"), "", false},
	}
	for _, c := range cases {
		key, ok := s.KeyForPath(c.path)
		if key != c.key || ok != c.ok {
			t.Errorf("KeyForPath(%q) = %q,%v want %q,%v", c.path, key, ok, c.key, c.ok)
		}
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempVault(t)
	ctx := context.Background()

	cases := []string{
		"../../etc/passwd",
		"../outside",
		"/etc/shadow",
		"",
	}
	for _, p := range cases {
		if _, err := s.Fetch(ctx, p); err == nil {
			t.Errorf("expected error for key %q", p)
		}
		if err := s.Replace(ctx, p, "x"); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}

func TestAtomicReplaceNoLeftovers(t *testing.T) {
	s := tempVault(t)
	ctx := context.Background()
	_ = s.Replace(ctx, "atomic", "original content")

	if err := s.Replace(ctx, "atomic", "updated content"); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	got, _ := s.Fetch(ctx, "atomic")
	if got != "updated content" {
		t.Errorf("expected updated content, got %q", got)
	}

	matches, _ := filepath.Glob(filepath.Join(s.root, ".raido-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS("/tmp/raido-does-not-exist-" + t.Name())
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "raido-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	_, err := NewFS(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}
