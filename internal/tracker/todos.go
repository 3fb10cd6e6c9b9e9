package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/models"
	"github.com/starford/raido/internal/todo"
)

// ListResult is the outcome of ListTodos.
type ListResult struct {
	DocumentKey string            `json:"issue_key"`
	Todos       []models.TodoItem `json:"todos"`
	Total       int               `json:"total_count"`
}

// AddResult is the outcome of AddTodo.
type AddResult struct {
	DocumentKey string          `json:"issue_key"`
	Todo        models.TodoItem `json:"todo"`
	Description string          `json:"updated_description"`
}

// UpdateResult is the outcome of UpdateTodo.
type UpdateResult struct {
	DocumentKey string          `json:"issue_key"`
	Todo        models.TodoItem `json:"todo"`
	Message     string          `json:"message"`
}

// ListTodos returns the todos of key. A non-empty filter keeps only items
// whose status is in it.
func (t *Tracker) ListTodos(ctx context.Context, key string, filter []models.Status) (*ListResult, error) {
	key, err := t.documentKey(key)
	if err != nil {
		return nil, err
	}
	text, err := t.fetch(ctx, key)
	if err != nil {
		return nil, err
	}
	items := t.parse(key, text)

	if len(filter) > 0 {
		keep := make(map[models.Status]bool, len(filter))
		for _, s := range filter {
			keep[s] = true
		}
		kept := items[:0]
		for _, it := range items {
			if keep[it.Status] {
				kept = append(kept, it)
			}
		}
		items = kept
	}
	if items == nil {
		items = []models.TodoItem{}
	}
	return &ListResult{DocumentKey: key, Todos: items, Total: len(items)}, nil
}

// AddTodo inserts a new unchecked todo and writes the document back.
func (t *Tracker) AddTodo(ctx context.Context, key, text string, prepend bool) (*AddResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperr.Invalid("todo_text", "must not be empty")
	}
	if strings.ContainsAny(text, "\r\n") {
		return nil, apperr.Invalid("todo_text", "must be a single line")
	}
	key, err := t.documentKey(key)
	if err != nil {
		return nil, err
	}
	doc, err := t.fetch(ctx, key)
	if err != nil {
		return nil, err
	}

	updated := todo.Insert(doc, text, prepend)
	if err := t.replace(ctx, key, updated); err != nil {
		return nil, err
	}

	items := t.parse(key, updated)
	if len(items) == 0 {
		return nil, fmt.Errorf("add todo to %s: inserted item not found after write", key)
	}
	added := items[len(items)-1]
	if prepend {
		added = items[0]
	}
	t.logger.Info("todo added", slog.String("document", key), slog.String("todo", added.ID))
	return &AddResult{DocumentKey: key, Todo: added, Description: updated}, nil
}

// UpdateTodo checks or unchecks the referenced todo.
func (t *Tracker) UpdateTodo(ctx context.Context, key, ref string, completed bool) (*UpdateResult, error) {
	r, err := t.resolve(ctx, key, ref, false)
	if err != nil {
		return nil, err
	}
	updated := todo.SetChecked(r.text, r.item().LineNumber, completed)
	if err := t.replace(ctx, r.key, updated); err != nil {
		return nil, err
	}

	items := t.parse(r.key, updated)
	result := r.item()
	if r.index < len(items) {
		result = items[r.index]
	}
	verb := "reopened"
	if completed {
		verb = "completed"
	}
	return &UpdateResult{
		DocumentKey: r.key,
		Todo:        result,
		Message:     fmt.Sprintf("Todo %s in issue %s", verb, r.key),
	}, nil
}
