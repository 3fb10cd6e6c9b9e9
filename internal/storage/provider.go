// Package storage defines the Document Store and Time Log collaborators
// consumed by the tracker, plus a Markdown-vault implementation of Documents.
package storage

import (
	"context"
	"time"

	"github.com/starford/raido/internal/models"
)

// Documents reads and replaces whole documents by key.
type Documents interface {
	// Fetch returns the full text of the document. Missing documents fail
	// with an error matching apperr.ErrDocumentNotFound.
	Fetch(ctx context.Context, key string) (string, error)
	// Replace overwrites the document with text.
	Replace(ctx context.Context, key, text string) error
}

// TimeLog records time spent against a document.
type TimeLog interface {
	// Record stores an entry of d starting at startedAt. comment may be empty.
	Record(ctx context.Context, key string, d time.Duration, comment string, startedAt time.Time) (models.LogEntry, error)
}
