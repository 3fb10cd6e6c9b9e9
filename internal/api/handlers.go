package api

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/models"
	"github.com/starford/raido/internal/tracker"
)

// Handler holds API route handlers.
type Handler struct {
	svc TodoService
}

// NewHandler creates a new Handler.
func NewHandler(svc TodoService) *Handler {
	return &Handler{svc: svc}
}

// issueKey returns the {key} URL parameter, empty on base-issue routes.
func issueKey(r *http.Request) string {
	return chi.URLParam(r, "key")
}

// todoRef returns the {ref} URL parameter. Text references may be escaped.
func todoRef(r *http.Request) string {
	raw := chi.URLParam(r, "ref")
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// GetBase handles GET /api/base.
//
//	@Summary		Show the base issue
//	@Tags			base
//	@Produce		json
//	@Success		200	{object}	BaseResponse
//	@Security		BearerAuth
//	@Router			/base [get]
func (h *Handler) GetBase(w http.ResponseWriter, r *http.Request) {
	key, ok := h.svc.Base()
	if !ok {
		writeJSON(w, http.StatusOK, BaseResponse{Message: "No base issue set."})
		return
	}
	writeJSON(w, http.StatusOK, BaseResponse{BaseIssueKey: key, Message: "Base issue is " + key + "."})
}

// SetBase handles PUT /api/base.
//
//	@Summary		Set the base issue
//	@Tags			base
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SetBaseRequest	true	"Issue key"
//	@Success		200		{object}	BaseResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/base [put]
func (h *Handler) SetBase(w http.ResponseWriter, r *http.Request) {
	var req SetBaseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	key := strings.TrimSpace(req.IssueKey)
	msg, err := h.svc.SetBase(r.Context(), key)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, BaseResponse{BaseIssueKey: key, Message: msg})
}

// ListTodos handles GET /api/issues/{key}/todos.
//
//	@Summary		List todos with derived status
//	@Tags			todos
//	@Produce		json
//	@Param			key		path		string	true	"Issue key"
//	@Param			status	query		string	false	"Comma-separated statuses"	Enums(open, completed, wip)
//	@Success		200		{object}	tracker.ListResult
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/issues/{key}/todos [get]
func (h *Handler) ListTodos(w http.ResponseWriter, r *http.Request) {
	var filter []models.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		for _, name := range strings.Split(raw, ",") {
			st, ok := models.ParseStatus(strings.ToLower(strings.TrimSpace(name)))
			if !ok {
				writeError(w, r, apperr.Invalid("status", "unknown status %q", name))
				return
			}
			filter = append(filter, st)
		}
	}
	res, err := h.svc.ListTodos(r.Context(), issueKey(r), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// AddTodo handles POST /api/issues/{key}/todos.
//
//	@Summary		Add a todo
//	@Tags			todos
//	@Accept			json
//	@Produce		json
//	@Param			key		path		string			true	"Issue key"
//	@Param			body	body		AddTodoRequest	true	"Todo"
//	@Success		201		{object}	tracker.AddResult
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/issues/{key}/todos [post]
func (h *Handler) AddTodo(w http.ResponseWriter, r *http.Request) {
	var req AddTodoRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	res, err := h.svc.AddTodo(r.Context(), issueKey(r), req.Text, req.Prepend)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// UpdateTodo handles PATCH /api/issues/{key}/todos/{ref}.
//
//	@Summary		Check or uncheck a todo
//	@Tags			todos
//	@Accept			json
//	@Produce		json
//	@Param			key		path		string				true	"Issue key"
//	@Param			ref		path		string				true	"Todo id, index or text"
//	@Param			body	body		UpdateTodoRequest	true	"New state"
//	@Success		200		{object}	tracker.UpdateResult
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/issues/{key}/todos/{ref} [patch]
func (h *Handler) UpdateTodo(w http.ResponseWriter, r *http.Request) {
	var req UpdateTodoRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Completed == nil {
		writeJSON(w, http.StatusBadRequest, errorBody("completed is required"))
		return
	}
	res, err := h.svc.UpdateTodo(r.Context(), issueKey(r), todoRef(r), *req.Completed)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// StartWork handles POST /api/issues/{key}/todos/{ref}/start.
//
//	@Summary		Start a work session
//	@Tags			work
//	@Produce		json
//	@Param			key	path		string	true	"Issue key"
//	@Param			ref	path		string	true	"Todo id, index or text"
//	@Success		201	{object}	tracker.StartResult
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/issues/{key}/todos/{ref}/start [post]
func (h *Handler) StartWork(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.StartWork(r.Context(), issueKey(r), todoRef(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// PauseWork handles POST /api/issues/{key}/todos/{ref}/pause.
func (h *Handler) PauseWork(w http.ResponseWriter, r *http.Request) {
	var req WorkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	res, err := h.svc.PauseWork(r.Context(), issueKey(r), todoRef(r), req.Comment)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// CheckpointWork handles POST /api/issues/{key}/todos/{ref}/checkpoint.
func (h *Handler) CheckpointWork(w http.ResponseWriter, r *http.Request) {
	var req WorkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	res, err := h.svc.CheckpointWork(r.Context(), issueKey(r), todoRef(r), req.Comment)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// CompleteWork handles POST /api/issues/{key}/todos/{ref}/complete.
//
//	@Summary		Complete a work session
//	@Tags			work
//	@Accept			json
//	@Produce		json
//	@Param			key		path		string			true	"Issue key"
//	@Param			ref		path		string			true	"Todo id, index or text"
//	@Param			body	body		CompleteRequest	false	"Comment and explicit time"
//	@Success		200		{object}	tracker.WorkResult
//	@Failure		409		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/issues/{key}/todos/{ref}/complete [post]
func (h *Handler) CompleteWork(w http.ResponseWriter, r *http.Request) {
	var req CompleteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	mark := true
	if req.MarkCompleted != nil {
		mark = *req.MarkCompleted
	}
	res, err := h.svc.CompleteWork(r.Context(), tracker.CompleteRequest{
		DocumentKey:   issueKey(r),
		Ref:           todoRef(r),
		Comment:       req.Comment,
		MarkCompleted: mark,
		Seconds:       req.Seconds,
		Minutes:       req.Minutes,
		Hours:         req.Hours,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// CancelWork handles POST /api/issues/{key}/todos/{ref}/cancel.
func (h *Handler) CancelWork(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.CancelWork(r.Context(), issueKey(r), todoRef(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ActiveSessions handles GET /api/sessions.
//
//	@Summary		List running work sessions
//	@Tags			work
//	@Produce		json
//	@Success		200	{object}	SessionsResponse
//	@Security		BearerAuth
//	@Router			/sessions [get]
func (h *Handler) ActiveSessions(w http.ResponseWriter, r *http.Request) {
	sessions := h.svc.ActiveSessions()
	writeJSON(w, http.StatusOK, SessionsResponse{Sessions: sessions, TotalCount: len(sessions)})
}
