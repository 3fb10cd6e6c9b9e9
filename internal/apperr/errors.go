// Package apperr defines the error taxonomy shared by the tracker and its transports.
package apperr

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidReference             = errors.New("invalid reference")
	ErrTodoNotFound                 = errors.New("todo not found")
	ErrSessionAlreadyActive         = errors.New("work session already active")
	ErrNoActiveSession              = errors.New("no active work session")
	ErrMultiDayConfirmationRequired = errors.New("multi-day session requires explicit time")
	ErrNoBaseDocumentSet            = errors.New("no document key provided and no base document set")
	ErrDocumentNotFound             = errors.New("document not found")
	ErrDocumentStore                = errors.New("document store failure")
	ErrTimeLog                      = errors.New("time log failure")
)

// Invalid wraps ErrInvalidReference with a parameter name and message.
func Invalid(param, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidReference, param, fmt.Sprintf(format, args...))
}

// MultiDayError is returned by complete when a session spans calendar days
// or exceeds 24h and no explicit duration was supplied.
type MultiDayError struct {
	Elapsed          time.Duration
	StartedAt        time.Time
	EndedAt          time.Time
	CrossesDay       bool
	Reference        string
	ElapsedFormatted string
}

func (e *MultiDayError) Error() string {
	const layout = "January 02, 2006 at 15:04"
	dayInfo := "Started " + e.StartedAt.Format(layout)
	if e.CrossesDay {
		dayInfo = fmt.Sprintf("Started %s and ending %s", e.StartedAt.Format(layout), e.EndedAt.Format(layout))
	}
	return fmt.Sprintf("Session spans multiple days. %s\n"+
		"Auto-calculated time: %s\n\n"+
		"Please provide explicit time worked:\n"+
		"- Use 'time_spent_hours' (e.g., 8.5 for 8.5 hours)\n"+
		"- Use 'time_spent_minutes' (e.g., 480 for 8 hours)\n"+
		"- Use 'time_spent_seconds' for precise control\n\n"+
		"Or use 'pause_todo_work' to log partial progress.\n\n"+
		"Example: {\"todo_id_or_index\": %q, \"time_spent_hours\": 8}",
		dayInfo, e.ElapsedFormatted, e.Reference)
}

// Unwrap lets errors.Is match ErrMultiDayConfirmationRequired.
func (e *MultiDayError) Unwrap() error {
	return ErrMultiDayConfirmationRequired
}

// Category returns a short machine-readable name for err, used in metrics labels
// and transport error payloads.
func Category(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidReference):
		return "invalid_reference"
	case errors.Is(err, ErrTodoNotFound):
		return "todo_not_found"
	case errors.Is(err, ErrSessionAlreadyActive):
		return "session_already_active"
	case errors.Is(err, ErrNoActiveSession):
		return "no_active_session"
	case errors.Is(err, ErrMultiDayConfirmationRequired):
		return "multi_day_confirmation_required"
	case errors.Is(err, ErrNoBaseDocumentSet):
		return "no_base_document"
	case errors.Is(err, ErrDocumentNotFound):
		return "document_not_found"
	case errors.Is(err, ErrDocumentStore):
		return "document_store"
	case errors.Is(err, ErrTimeLog):
		return "time_log"
	}
	return "internal"
}
