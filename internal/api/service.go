package api

import (
	"context"

	"github.com/starford/raido/internal/models"
	"github.com/starford/raido/internal/tracker"
)

// TodoService is the tracker surface the REST handlers use.
type TodoService interface {
	SetBase(ctx context.Context, key string) (string, error)
	Base() (string, bool)
	ListTodos(ctx context.Context, key string, filter []models.Status) (*tracker.ListResult, error)
	AddTodo(ctx context.Context, key, text string, prepend bool) (*tracker.AddResult, error)
	UpdateTodo(ctx context.Context, key, ref string, completed bool) (*tracker.UpdateResult, error)
	StartWork(ctx context.Context, key, ref string) (*tracker.StartResult, error)
	PauseWork(ctx context.Context, key, ref, comment string) (*tracker.WorkResult, error)
	CheckpointWork(ctx context.Context, key, ref, comment string) (*tracker.WorkResult, error)
	CompleteWork(ctx context.Context, req tracker.CompleteRequest) (*tracker.WorkResult, error)
	CancelWork(ctx context.Context, key, ref string) (*tracker.CancelResult, error)
	ActiveSessions() []tracker.ActiveSession
}

var _ TodoService = (*tracker.Tracker)(nil)
