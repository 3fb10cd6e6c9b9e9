package tracker

import (
	"context"
	"errors"
	"log/slog"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/models"
	"github.com/starford/raido/internal/todo"
)

// Reconcile re-reads key and reports sessions whose todo id no longer
// appears in it, typically after an external edit moved or removed the line.
// A deleted document orphans all of its sessions.
// Orphaned sessions are left in place and can still be ended by todo id.
func (t *Tracker) Reconcile(ctx context.Context, key string) ([]models.WorkSession, error) {
	text, err := t.fetch(ctx, key)
	if err != nil && !errors.Is(err, apperr.ErrDocumentNotFound) {
		return nil, err
	}
	present := make(map[string]struct{})
	for _, it := range todo.Parse(text) {
		present[it.ID] = struct{}{}
	}

	var orphaned []models.WorkSession
	for _, s := range t.registry.List() {
		if s.DocumentKey != key {
			continue
		}
		if _, ok := present[s.TodoID]; ok {
			continue
		}
		orphaned = append(orphaned, s)
		t.metrics.RecordOrphan()
		t.logger.Warn("session todo no longer in document",
			slog.String("session", s.Key().String()),
			slog.String("todo_text", s.TodoText),
		)
		t.emit(EventOrphaned, s)
	}
	return orphaned, nil
}
