// Package tracker implements the work-session lifecycle over todos embedded
// in documents: listing and editing todos, start/pause/checkpoint/complete/
// cancel of sessions, and the periodic auto-checkpoint sweeper.
//
// The registry lock is never held across a Documents or TimeLog call.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/metrics"
	"github.com/starford/raido/internal/models"
	"github.com/starford/raido/internal/session"
	"github.com/starford/raido/internal/storage"
	"github.com/starford/raido/internal/todo"
)

// Session event kinds passed to an EventFunc.
const (
	EventStarted      = "started"
	EventPaused       = "paused"
	EventCheckpointed = "checkpointed"
	EventCompleted    = "completed"
	EventCanceled     = "canceled"
	EventOrphaned     = "orphaned"
)

// EventFunc is notified after a session transition has been applied.
type EventFunc func(kind string, s models.WorkSession)

// Tracker coordinates documents, the session registry and the time log.
type Tracker struct {
	docs     storage.Documents
	timelog  storage.TimeLog
	registry *session.Registry
	clock    session.Clock
	loc      *time.Location
	logger   *slog.Logger
	metrics  *metrics.Metrics
	events   EventFunc

	baseMu sync.RWMutex
	base   string
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock sets the time source.
func WithClock(c session.Clock) Option {
	return func(t *Tracker) { t.clock = c }
}

// WithLocation sets the location used to decide calendar-day boundaries.
func WithLocation(loc *time.Location) Option {
	return func(t *Tracker) {
		if loc != nil {
			t.loc = loc
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Tracker) { t.metrics = m }
}

// WithEvents registers a callback for session transitions.
func WithEvents(fn EventFunc) Option {
	return func(t *Tracker) { t.events = fn }
}

// WithRegistry shares an existing registry.
func WithRegistry(r *session.Registry) Option {
	return func(t *Tracker) { t.registry = r }
}

// New creates a Tracker over the given collaborators.
func New(docs storage.Documents, tl storage.TimeLog, opts ...Option) *Tracker {
	t := &Tracker{
		docs:    docs,
		timelog: tl,
		clock:   session.SystemClock{},
		loc:     time.UTC,
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(t)
	}
	if t.registry == nil {
		t.registry = session.NewRegistry()
	}
	t.logger = t.logger.With(slog.String("component", "tracker"))
	return t
}

// Registry exposes the session registry.
func (t *Tracker) Registry() *session.Registry {
	return t.registry
}

// SetBase makes key the default document after verifying it exists.
func (t *Tracker) SetBase(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", apperr.Invalid("document_key", "must not be empty")
	}
	if _, err := t.fetch(ctx, key); err != nil {
		return "", err
	}
	t.baseMu.Lock()
	t.base = key
	t.baseMu.Unlock()
	t.logger.Info("base document set", slog.String("document", key))
	return fmt.Sprintf("Base issue set to %s. You can now omit issue_key in todo commands.", key), nil
}

// Base returns the default document key, if set.
func (t *Tracker) Base() (string, bool) {
	t.baseMu.RLock()
	defer t.baseMu.RUnlock()
	return t.base, t.base != ""
}

// documentKey returns key, or the base document when key is empty.
func (t *Tracker) documentKey(key string) (string, error) {
	if key != "" {
		return key, nil
	}
	if base, ok := t.Base(); ok {
		return base, nil
	}
	return "", fmt.Errorf("%w; provide issue_key or call set_todo_base first", apperr.ErrNoBaseDocumentSet)
}

func (t *Tracker) fetch(ctx context.Context, key string) (string, error) {
	text, err := t.docs.Fetch(ctx, key)
	if err != nil {
		return "", fmt.Errorf("%w: fetch %s: %w", apperr.ErrDocumentStore, key, err)
	}
	return text, nil
}

func (t *Tracker) replace(ctx context.Context, key, text string) error {
	if err := t.docs.Replace(ctx, key, text); err != nil {
		return fmt.Errorf("%w: replace %s: %w", apperr.ErrDocumentStore, key, err)
	}
	return nil
}

// parse returns the todos of text with status derived from the registry.
func (t *Tracker) parse(key, text string) []models.TodoItem {
	items := todo.Parse(text)
	active := t.registry.ActiveIDs(key)
	for i := range items {
		if _, ok := active[items[i].ID]; ok {
			items[i].Status = models.StatusWIP
		}
	}
	return items
}

// resolved is a todo looked up from a fresh fetch of its document.
type resolved struct {
	key    string
	text   string
	items  []models.TodoItem
	index  int
	orphan bool
}

func (r resolved) item() models.TodoItem { return r.items[r.index] }

func (r resolved) sessionKey() models.SessionKey {
	return models.SessionKey{DocumentKey: r.key, TodoID: r.items[r.index].ID}
}

// resolve looks ref up in a fresh parse of key. With allowOrphan, an id that
// no longer appears in the document still resolves to its running session.
func (t *Tracker) resolve(ctx context.Context, key, ref string, allowOrphan bool) (resolved, error) {
	key, err := t.documentKey(key)
	if err != nil {
		return resolved{}, err
	}
	text, err := t.fetch(ctx, key)
	if err != nil {
		return resolved{}, err
	}
	items := t.parse(key, text)
	idx, err := todo.Resolve(items, ref)
	if err != nil {
		if allowOrphan && errors.Is(err, apperr.ErrTodoNotFound) {
			if s, ok := t.registry.Get(models.SessionKey{DocumentKey: key, TodoID: strings.TrimSpace(ref)}); ok {
				items = append(items, models.TodoItem{
					Text:       s.TodoText,
					Status:     models.StatusWIP,
					LineNumber: -1,
					ID:         s.TodoID,
				})
				return resolved{key: key, text: text, items: items, index: len(items) - 1, orphan: true}, nil
			}
		}
		return resolved{}, err
	}
	return resolved{key: key, text: text, items: items, index: idx}, nil
}

func (t *Tracker) observe(op string, err error) {
	t.metrics.RecordTransition(op, apperr.Category(err))
	t.metrics.SetActiveSessions(t.registry.Len())
}

func (t *Tracker) emit(kind string, s models.WorkSession) {
	if t.events != nil {
		t.events(kind, s)
	}
}
