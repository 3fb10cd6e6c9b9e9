// Package models defines the domain types shared across raido packages.
package models

import "time"

// Status is the derived state of a todo.
type Status string

const (
	StatusOpen      Status = "open"
	StatusCompleted Status = "completed"
	StatusWIP       Status = "wip"
)

// ParseStatus maps a user-supplied status name to a Status.
// "in_progress" and "work_in_progress" are accepted aliases for wip.
func ParseStatus(s string) (Status, bool) {
	switch s {
	case "open":
		return StatusOpen, true
	case "completed", "done":
		return StatusCompleted, true
	case "wip", "in_progress", "work_in_progress", "workinprogress":
		return StatusWIP, true
	}
	return "", false
}

// TodoItem is a checklist line extracted from a document.
//
// LineNumber is the 0-based line index at parse time and is only valid
// until the document is next written.
type TodoItem struct {
	Text       string `json:"text"`
	Completed  bool   `json:"completed"`
	Status     Status `json:"status"`
	LineNumber int    `json:"line_number"`
	ID         string `json:"id"`
}

// SessionKey identifies a work session.
type SessionKey struct {
	DocumentKey string `json:"document_key"`
	TodoID      string `json:"todo_id"`
}

// String returns the "doc:todo" form used in logs.
func (k SessionKey) String() string {
	return k.DocumentKey + ":" + k.TodoID
}

// WorkSession records that a todo is actively being worked on.
//
// Accumulated is the time already logged by checkpoints of this session;
// StartedAt is the start of the current, not yet logged, interval.
type WorkSession struct {
	DocumentKey string        `json:"issue_key"`
	TodoID      string        `json:"todo_id"`
	TodoText    string        `json:"todo_text"`
	StartedAt   time.Time     `json:"started_at"`
	Accumulated time.Duration `json:"-"`
}

// Key returns the registry key of the session.
func (s WorkSession) Key() SessionKey {
	return SessionKey{DocumentKey: s.DocumentKey, TodoID: s.TodoID}
}

// LogEntry is a durable time-log record returned by a TimeLog collaborator.
type LogEntry struct {
	ID               string    `json:"id"`
	DocumentKey      string    `json:"issue_key"`
	Comment          string    `json:"comment,omitempty"`
	StartedAt        time.Time `json:"started"`
	Created          time.Time `json:"created"`
	TimeSpentSeconds int64     `json:"time_spent_seconds"`
	TimeSpent        string    `json:"time_spent,omitempty"`
}
