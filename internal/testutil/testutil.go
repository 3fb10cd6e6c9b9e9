// Package testutil provides shared test helpers: temporary stores and
// in-memory collaborators with failure injection.
package testutil

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/models"
	"github.com/starford/raido/internal/sqlitestore"
	"github.com/starford/raido/internal/storage"
	"github.com/starford/raido/internal/todo"
)

// TestDB creates a temporary SQLite store that is automatically cleaned up.
func TestDB(t *testing.T) *sqlitestore.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "raido-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := sqlitestore.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestVault creates a temporary vault directory with a storage.FS.
func TestVault(t *testing.T) (string, *storage.FS) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, store
}

// MemoryDocuments is an in-memory storage.Documents.
type MemoryDocuments struct {
	mu       sync.Mutex
	docs     map[string]string
	writes   int
	FetchErr error
	WriteErr error
}

// NewMemoryDocuments returns a store seeded with docs.
func NewMemoryDocuments(docs map[string]string) *MemoryDocuments {
	m := &MemoryDocuments{docs: make(map[string]string)}
	for k, v := range docs {
		m.docs[k] = v
	}
	return m
}

// Fetch implements storage.Documents.
func (m *MemoryDocuments) Fetch(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FetchErr != nil {
		return "", m.FetchErr
	}
	text, ok := m.docs[key]
	if !ok {
		return "", fmt.Errorf("memory: %w: %s", apperr.ErrDocumentNotFound, key)
	}
	return text, nil
}

// Replace implements storage.Documents.
func (m *MemoryDocuments) Replace(_ context.Context, key, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.docs[key] = text
	m.writes++
	return nil
}

// Get returns the current text of key.
func (m *MemoryDocuments) Get(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.docs[key]
}

// Set overwrites key without counting a write, simulating an external edit.
func (m *MemoryDocuments) Set(key, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[key] = text
}

// Writes returns how many successful Replace calls were made.
func (m *MemoryDocuments) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// SetWriteErr makes subsequent Replace calls fail with err.
func (m *MemoryDocuments) SetWriteErr(err error) {
	m.mu.Lock()
	m.WriteErr = err
	m.mu.Unlock()
}

// RecordingTimeLog is a storage.TimeLog that keeps entries in memory.
type RecordingTimeLog struct {
	mu      sync.Mutex
	entries []models.LogEntry
	calls   int
	err     error
}

// NewRecordingTimeLog returns an empty log.
func NewRecordingTimeLog() *RecordingTimeLog {
	return &RecordingTimeLog{}
}

// Record implements storage.TimeLog.
func (l *RecordingTimeLog) Record(_ context.Context, key string, d time.Duration, comment string, startedAt time.Time) (models.LogEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.err != nil {
		return models.LogEntry{}, l.err
	}
	secs := int64(d / time.Second)
	e := models.LogEntry{
		ID:               fmt.Sprintf("wl-%d", len(l.entries)+1),
		DocumentKey:      key,
		Comment:          comment,
		StartedAt:        startedAt,
		TimeSpentSeconds: secs,
		TimeSpent:        todo.FormatDuration(d),
	}
	l.entries = append(l.entries, e)
	return e, nil
}

// Entries returns a copy of the recorded entries.
func (l *RecordingTimeLog) Entries() []models.LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.LogEntry(nil), l.entries...)
}

// Calls returns how many times Record was invoked, including failures.
func (l *RecordingTimeLog) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

// Total returns the sum of recorded seconds.
func (l *RecordingTimeLog) Total() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	var n int64
	for _, e := range l.entries {
		n += e.TimeSpentSeconds
	}
	return n
}

// SetErr makes subsequent Record calls fail with err.
func (l *RecordingTimeLog) SetErr(err error) {
	l.mu.Lock()
	l.err = err
	l.mu.Unlock()
}
