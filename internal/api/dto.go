package api

import (
	"time"

	"github.com/starford/raido/internal/tracker"
)

// SetBaseRequest is the request body for PUT /base.
type SetBaseRequest struct {
	IssueKey string `json:"issue_key" example:"PROJ-123" validate:"required"`
}

// BaseResponse reports the base issue.
type BaseResponse struct {
	BaseIssueKey string `json:"base_issue_key,omitempty" example:"PROJ-123"`
	Message      string `json:"message"`
}

// AddTodoRequest is the request body for adding a todo.
type AddTodoRequest struct {
	Text    string `json:"text" example:"write tests" validate:"required"`
	Prepend bool   `json:"prepend"`
}

// UpdateTodoRequest is the request body for checking or unchecking a todo.
type UpdateTodoRequest struct {
	Completed *bool `json:"completed" validate:"required"`
}

// WorkRequest is the optional body of pause and checkpoint.
type WorkRequest struct {
	Comment string `json:"comment,omitempty"`
}

// CompleteRequest is the optional body of complete.
type CompleteRequest struct {
	Comment       string   `json:"comment,omitempty"`
	MarkCompleted *bool    `json:"mark_completed,omitempty"`
	Hours         *float64 `json:"time_spent_hours,omitempty" example:"8.5"`
	Minutes       *int64   `json:"time_spent_minutes,omitempty"`
	Seconds       *int64   `json:"time_spent_seconds,omitempty"`
}

// SessionsResponse lists running work sessions.
type SessionsResponse struct {
	Sessions   []tracker.ActiveSession `json:"sessions"`
	TotalCount int                     `json:"total_count"`
}

// MultiDayDetails accompanies a 422 response for a multi-day session.
type MultiDayDetails struct {
	ElapsedSeconds int64     `json:"elapsed_seconds"`
	StartedAt      time.Time `json:"started_at"`
	EndedAt        time.Time `json:"ended_at"`
}
