package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/checksum"
	"github.com/starford/raido/internal/models"
	"github.com/starford/raido/internal/storage"
	"github.com/starford/raido/internal/todo"
)

// Verify *DB satisfies both collaborators at compile time.
var (
	_ storage.Documents = (*DB)(nil)
	_ storage.TimeLog   = (*DB)(nil)
)

// DocumentRow is a stored document with its version checksum.
type DocumentRow struct {
	Key       string
	Body      string
	Checksum  string
	UpdatedAt time.Time
}

// Fetch returns the body of the document stored under key.
func (db *DB) Fetch(ctx context.Context, key string) (string, error) {
	var body string
	err := db.conn.QueryRowContext(ctx, `SELECT body FROM documents WHERE key = ?`, key).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("sqlitestore: %w: %s", apperr.ErrDocumentNotFound, key)
	}
	if err != nil {
		return "", fmt.Errorf("sqlitestore: fetch %s: %w", key, err)
	}
	return body, nil
}

// Replace inserts or overwrites the document.
func (db *DB) Replace(ctx context.Context, key, text string) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO documents (key, body, checksum, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			body       = excluded.body,
			checksum   = excluded.checksum,
			updated_at = excluded.updated_at
	`, key, text, checksum.Sum([]byte(text)), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("sqlitestore: replace %s: %w", key, err)
	}
	return nil
}

// Document returns the stored row for key.
func (db *DB) Document(ctx context.Context, key string) (*DocumentRow, error) {
	var r DocumentRow
	err := db.conn.QueryRowContext(ctx,
		`SELECT key, body, checksum, updated_at FROM documents WHERE key = ?`, key,
	).Scan(&r.Key, &r.Body, &r.Checksum, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sqlitestore: %w: %s", apperr.ErrDocumentNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: document %s: %w", key, err)
	}
	return &r, nil
}

// Record stores a worklog entry and returns it with a fresh id.
func (db *DB) Record(ctx context.Context, key string, d time.Duration, comment string, startedAt time.Time) (models.LogEntry, error) {
	secs := int64(d / time.Second)
	if secs < 0 {
		secs = 0
	}
	entry := models.LogEntry{
		ID:               uuid.New().String(),
		DocumentKey:      key,
		Comment:          comment,
		StartedAt:        startedAt.UTC(),
		Created:          time.Now().UTC(),
		TimeSpentSeconds: secs,
		TimeSpent:        todo.FormatDuration(time.Duration(secs) * time.Second),
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO worklogs (id, document_key, time_spent_seconds, comment, started_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, entry.ID, key, secs, comment, entry.StartedAt, entry.Created)
	if err != nil {
		return models.LogEntry{}, fmt.Errorf("sqlitestore: record worklog for %s: %w", key, err)
	}
	return entry, nil
}

// Worklogs returns all entries for key, oldest first.
func (db *DB) Worklogs(ctx context.Context, key string) ([]models.LogEntry, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, document_key, time_spent_seconds, comment, started_at, created_at
		FROM worklogs
		WHERE document_key = ?
		ORDER BY created_at, started_at
	`, key)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: worklogs: %w", err)
	}
	defer rows.Close()

	var out []models.LogEntry
	for rows.Next() {
		var e models.LogEntry
		if err := rows.Scan(&e.ID, &e.DocumentKey, &e.TimeSpentSeconds, &e.Comment, &e.StartedAt, &e.Created); err != nil {
			return nil, err
		}
		e.TimeSpent = todo.FormatDuration(time.Duration(e.TimeSpentSeconds) * time.Second)
		out = append(out, e)
	}
	return out, rows.Err()
}

// TotalLogged returns the sum of logged time for key.
func (db *DB) TotalLogged(ctx context.Context, key string) (time.Duration, error) {
	var secs sql.NullInt64
	err := db.conn.QueryRowContext(ctx,
		`SELECT SUM(time_spent_seconds) FROM worklogs WHERE document_key = ?`, key,
	).Scan(&secs)
	if err != nil {
		return 0, fmt.Errorf("sqlitestore: total logged: %w", err)
	}
	return time.Duration(secs.Int64) * time.Second, nil
}
