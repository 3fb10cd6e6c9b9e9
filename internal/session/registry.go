// Package session holds the in-memory registry of active work sessions.
//
// The registry is the only place that decides whether a todo is being worked
// on. Every operation holds the lock for a map access only; callers do their
// document and time-log I/O after the registry call returns.
package session

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/models"
)

// Registry maps (document, todo) keys to at most one active WorkSession.
type Registry struct {
	mu       sync.Mutex
	sessions map[models.SessionKey]models.WorkSession
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[models.SessionKey]models.WorkSession)}
}

// Start registers a new session for key beginning at now. It fails with
// ErrSessionAlreadyActive if one exists; check and insert are one critical section.
func (r *Registry) Start(key models.SessionKey, todoText string, now time.Time) (models.WorkSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[key]; ok {
		return models.WorkSession{}, fmt.Errorf("%w for %s; complete, pause or cancel it first",
			apperr.ErrSessionAlreadyActive, key)
	}
	s := models.WorkSession{
		DocumentKey: key.DocumentKey,
		TodoID:      key.TodoID,
		TodoText:    todoText,
		StartedAt:   now,
	}
	r.sessions[key] = s
	return s, nil
}

// Take removes and returns the session for key, or fails with ErrNoActiveSession.
func (r *Registry) Take(key models.SessionKey) (models.WorkSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[key]
	if !ok {
		return models.WorkSession{}, fmt.Errorf("%w for %s", apperr.ErrNoActiveSession, key)
	}
	delete(r.sessions, key)
	return s, nil
}

// Reinsert puts s back under its key after a Take. A session registered in
// the meantime wins and ErrSessionAlreadyActive is returned. If prev is
// non-zero, s must not start before it.
func (r *Registry) Reinsert(s models.WorkSession, prev time.Time) error {
	if !prev.IsZero() && s.StartedAt.Before(prev) {
		return fmt.Errorf("reinsert %s: start %s precedes previous start %s",
			s.Key(), s.StartedAt.Format(time.RFC3339), prev.Format(time.RFC3339))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := s.Key()
	if _, ok := r.sessions[key]; ok {
		return fmt.Errorf("%w for %s", apperr.ErrSessionAlreadyActive, key)
	}
	r.sessions[key] = s
	return nil
}

// Restart atomically replaces the session for key with one starting at now
// and returns the replaced session. The closed interval is added to
// Accumulated. This is the checkpoint primitive: there is no window in which
// the key has no session.
func (r *Registry) Restart(key models.SessionKey, now time.Time) (prev models.WorkSession, err error) {
	return r.restart(key, time.Time{}, now)
}

// RestartIf is Restart for a session observed earlier: it applies only while
// the session for key still starts at startedAt. A session that was ended or
// replaced since yields ErrNoActiveSession. A zero startedAt matches any
// session.
func (r *Registry) RestartIf(key models.SessionKey, startedAt, now time.Time) (prev models.WorkSession, err error) {
	return r.restart(key, startedAt, now)
}

func (r *Registry) restart(key models.SessionKey, expect, now time.Time) (models.WorkSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.sessions[key]
	if !ok {
		return models.WorkSession{}, fmt.Errorf("%w for %s", apperr.ErrNoActiveSession, key)
	}
	if !expect.IsZero() && !prev.StartedAt.Equal(expect) {
		return models.WorkSession{}, fmt.Errorf("%w for %s started at %s",
			apperr.ErrNoActiveSession, key, expect.Format(time.RFC3339))
	}
	next := prev
	if now.After(prev.StartedAt) {
		next.Accumulated += now.Sub(prev.StartedAt)
		next.StartedAt = now
	}
	r.sessions[key] = next
	return prev, nil
}

// Discount takes d back out of Accumulated after a restart whose interval
// could not be logged. It only applies while the session for key still
// starts at startedAt.
func (r *Registry) Discount(key models.SessionKey, startedAt time.Time, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[key]
	if !ok || !s.StartedAt.Equal(startedAt) {
		return
	}
	s.Accumulated -= d
	if s.Accumulated < 0 {
		s.Accumulated = 0
	}
	r.sessions[key] = s
}

// Active reports whether key has a session.
func (r *Registry) Active(key models.SessionKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[key]
	return ok
}

// Get returns the session for key if present.
func (r *Registry) Get(key models.SessionKey) (models.WorkSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[key]
	return s, ok
}

// List returns a snapshot of all sessions ordered by start time.
func (r *Registry) List() []models.WorkSession {
	r.mu.Lock()
	out := make([]models.WorkSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].Key().String() < out[j].Key().String()
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// ActiveIDs returns the set of todo ids with a session in documentKey.
func (r *Registry) ActiveIDs(documentKey string) map[string]struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]struct{})
	for k := range r.sessions {
		if k.DocumentKey == documentKey {
			out[k.TodoID] = struct{}{}
		}
	}
	return out
}

// Len returns the number of active sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
