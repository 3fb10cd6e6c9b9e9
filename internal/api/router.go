package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/raido/internal/metrics"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
// Todo routes exist twice: under /issues/{key} and bare, where the bare
// form uses the base issue.
func NewRouter(svc TodoService, authEnabled bool, token string, sseHandler http.Handler, m *metrics.Metrics) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(MetricsMiddleware(m))
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/base", h.GetBase)
	r.Put("/base", h.SetBase)

	todoRoutes := func(r chi.Router) {
		r.Get("/", h.ListTodos)
		r.Post("/", h.AddTodo)
		r.Patch("/{ref}", h.UpdateTodo)
		r.Post("/{ref}/start", h.StartWork)
		r.Post("/{ref}/pause", h.PauseWork)
		r.Post("/{ref}/checkpoint", h.CheckpointWork)
		r.Post("/{ref}/complete", h.CompleteWork)
		r.Post("/{ref}/cancel", h.CancelWork)
	}
	r.Route("/issues/{key}/todos", todoRoutes)
	r.Route("/todos", todoRoutes)

	r.Get("/sessions", h.ActiveSessions)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
