package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/models"
	"github.com/starford/raido/internal/todo"
)

// Default time-log comments; %s is the todo text.
const (
	pauseComment          = "Partial work on todo: %s"
	checkpointComment     = "Checkpoint on todo: %s"
	autoCheckpointComment = "Auto-checkpoint on todo: %s"
	completeComment       = "Work on todo: %s"
)

// warnRatio is the relative difference between explicit and measured time
// above which complete reports a warning.
const warnRatio = 0.2

// StartResult is the outcome of StartWork.
type StartResult struct {
	DocumentKey string          `json:"issue_key"`
	Todo        models.TodoItem `json:"todo"`
	StartedAt   time.Time       `json:"started_at"`
	Message     string          `json:"message"`
}

// WorkResult is the outcome of a time-bearing transition.
//
// TimeSpent is what was sent to the time log: the measured interval, or the
// explicit override on complete. Elapsed is always the measured interval.
// TotalAccumulatedSeconds covers every interval the session has logged,
// checkpoints included.
type WorkResult struct {
	DocumentKey             string          `json:"issue_key"`
	Todo                    models.TodoItem `json:"todo"`
	TimeSpent               time.Duration   `json:"-"`
	TimeSpentSeconds        int64           `json:"time_spent_seconds"`
	TimeSpentFormatted      string          `json:"time_spent_formatted"`
	Elapsed                 time.Duration   `json:"-"`
	ElapsedSeconds          int64           `json:"elapsed_seconds"`
	CheckpointSeconds       *int64          `json:"checkpoint_time_seconds,omitempty"`
	TotalAccumulatedSeconds int64           `json:"total_accumulated_seconds"`
	Entry                   models.LogEntry `json:"worklog"`
	StartedAt               time.Time       `json:"started_at"`
	RestartedAt             *time.Time      `json:"restarted_at,omitempty"`
	Warning                 string          `json:"warning,omitempty"`
	Message                 string          `json:"message"`
}

// CancelResult is the outcome of CancelWork. Time logged by earlier
// checkpoints stays logged and is reported in TotalAccumulatedSeconds.
type CancelResult struct {
	DocumentKey             string          `json:"issue_key"`
	Todo                    models.TodoItem `json:"todo"`
	Discarded               time.Duration   `json:"-"`
	DiscardedSeconds        int64           `json:"discarded_time_seconds"`
	DiscardedFormatted      string          `json:"discarded_time_formatted"`
	TotalAccumulatedSeconds int64           `json:"total_accumulated_seconds"`
	Message                 string          `json:"message"`
}

// CompleteRequest holds the arguments of CompleteWork. The first non-nil of
// Seconds, Minutes and Hours overrides the measured time.
type CompleteRequest struct {
	DocumentKey   string
	Ref           string
	Comment       string
	MarkCompleted bool
	Seconds       *int64
	Minutes       *int64
	Hours         *float64
}

// ActiveSession is a session with its running time at listing. Duration is
// the current interval; the total adds what checkpoints already logged.
type ActiveSession struct {
	models.WorkSession
	DurationSeconds         int64  `json:"duration_seconds"`
	DurationFormatted       string `json:"duration_formatted"`
	TotalAccumulatedSeconds int64  `json:"total_accumulated_seconds"`
}

// StartWork begins a session on the referenced todo.
func (t *Tracker) StartWork(ctx context.Context, key, ref string) (res *StartResult, err error) {
	defer func() { t.observe("start", err) }()

	r, err := t.resolve(ctx, key, ref, false)
	if err != nil {
		return nil, err
	}
	item := r.item()
	s, err := t.registry.Start(r.sessionKey(), item.Text, t.clock.Now())
	if err != nil {
		return nil, err
	}
	item.Status = models.StatusWIP

	t.logger.Info("work started",
		slog.String("document", r.key),
		slog.String("todo", item.ID),
		slog.Time("started_at", s.StartedAt),
	)
	t.emit(EventStarted, s)
	return &StartResult{
		DocumentKey: r.key,
		Todo:        item,
		StartedAt:   s.StartedAt,
		Message:     fmt.Sprintf("Started tracking work on todo in issue %s", r.key),
	}, nil
}

// PauseWork ends the session and logs the elapsed time. The checkbox is
// left as is.
func (t *Tracker) PauseWork(ctx context.Context, key, ref, comment string) (res *WorkResult, err error) {
	defer func() { t.observe("pause", err) }()

	r, err := t.resolve(ctx, key, ref, true)
	if err != nil {
		return nil, err
	}
	s, err := t.registry.Take(r.sessionKey())
	if err != nil {
		return nil, err
	}
	elapsed := t.elapsedSince(s.StartedAt)
	item := r.item()
	item.Status = statusOf(item)

	if comment == "" {
		comment = fmt.Sprintf(pauseComment, item.Text)
	}
	entry, err := t.record(ctx, "pause", r.key, elapsed, comment, s.StartedAt)
	if err != nil {
		return nil, err
	}

	t.emit(EventPaused, s)
	res = newWorkResult(r.key, item, elapsed, elapsed, s.Accumulated, entry, s.StartedAt)
	res.Message = fmt.Sprintf("Logged %s to issue %s. Session paused, you can start work again later.",
		res.TimeSpentFormatted, r.key)
	return res, nil
}

// CheckpointWork logs the elapsed time and keeps the session running from now.
func (t *Tracker) CheckpointWork(ctx context.Context, key, ref, comment string) (res *WorkResult, err error) {
	defer func() { t.observe("checkpoint", err) }()

	r, err := t.resolve(ctx, key, ref, true)
	if err != nil {
		return nil, err
	}
	if comment == "" {
		comment = fmt.Sprintf(checkpointComment, r.item().Text)
	}
	return t.checkpoint(ctx, "checkpoint", r.sessionKey(), time.Time{}, r.item(), comment)
}

// checkpoint restarts the session under key before doing any I/O, then
// records the time accrued by the previous start. A non-zero expect limits
// the restart to the session that started at expect.
func (t *Tracker) checkpoint(ctx context.Context, op string, key models.SessionKey, expect time.Time, item models.TodoItem, comment string) (*WorkResult, error) {
	now := t.clock.Now()
	prev, err := t.registry.RestartIf(key, expect, now)
	if err != nil {
		return nil, err
	}
	elapsed := clampElapsed(now.Sub(prev.StartedAt))
	restarted := prev.StartedAt
	if now.After(restarted) {
		restarted = now
	}

	entry, err := t.record(ctx, op, key.DocumentKey, elapsed, comment, prev.StartedAt)
	if err != nil {
		t.registry.Discount(key, restarted, elapsed)
		return nil, err
	}

	item.Status = models.StatusWIP
	next := prev
	next.StartedAt = restarted
	next.Accumulated += elapsed
	t.emit(EventCheckpointed, next)

	res := newWorkResult(key.DocumentKey, item, elapsed, elapsed, prev.Accumulated, entry, prev.StartedAt)
	secs := res.TimeSpentSeconds
	res.CheckpointSeconds = &secs
	res.RestartedAt = &restarted
	res.Message = fmt.Sprintf("Checkpoint logged %s to issue %s. Work session continues.",
		res.TimeSpentFormatted, key.DocumentKey)
	return res, nil
}

// CompleteWork ends the session, logs time and, if requested, checks the todo.
func (t *Tracker) CompleteWork(ctx context.Context, req CompleteRequest) (res *WorkResult, err error) {
	defer func() { t.observe("complete", err) }()

	explicit, hasExplicit, err := explicitDuration(req)
	if err != nil {
		return nil, err
	}
	r, err := t.resolve(ctx, req.DocumentKey, req.Ref, true)
	if err != nil {
		return nil, err
	}
	s, err := t.registry.Take(r.sessionKey())
	if err != nil {
		return nil, err
	}
	now := t.clock.Now()
	elapsed := clampElapsed(now.Sub(s.StartedAt))

	if !hasExplicit && t.spansDays(s.StartedAt, now, elapsed) {
		if rerr := t.registry.Reinsert(s, time.Time{}); rerr != nil {
			t.logger.Warn("could not restore session after multi-day check",
				slog.String("session", s.Key().String()),
				slog.String("error", rerr.Error()),
			)
		}
		return nil, &apperr.MultiDayError{
			Elapsed:          elapsed,
			StartedAt:        s.StartedAt.In(t.loc),
			EndedAt:          now.In(t.loc),
			CrossesDay:       !sameDay(s.StartedAt.In(t.loc), now.In(t.loc)),
			Reference:        req.Ref,
			ElapsedFormatted: todo.FormatDuration(elapsed),
		}
	}

	logged := elapsed
	var warning string
	if hasExplicit {
		logged = explicit
		if elapsed > 0 && math.Abs(float64(explicit-elapsed))/float64(elapsed) > warnRatio {
			warning = fmt.Sprintf("Explicit time %s differs from tracked time %s by more than 20%%",
				todo.FormatDuration(explicit), todo.FormatDuration(elapsed))
			t.logger.Warn("explicit time differs from tracked time",
				slog.String("session", s.Key().String()),
				slog.Duration("explicit", explicit),
				slog.Duration("elapsed", elapsed),
			)
		}
	}

	item := r.item()
	comment := req.Comment
	if comment == "" {
		comment = fmt.Sprintf(completeComment, item.Text)
	}
	entry, err := t.record(ctx, "complete", r.key, logged, comment, s.StartedAt)
	if err != nil {
		return nil, err
	}

	if req.MarkCompleted && !item.Completed && !r.orphan {
		updated := todo.SetChecked(r.text, item.LineNumber, true)
		if err := t.replace(ctx, r.key, updated); err != nil {
			return nil, err
		}
		item.Completed = true
	}
	item.Status = statusOf(item)

	t.emit(EventCompleted, s)
	res = newWorkResult(r.key, item, logged, elapsed, s.Accumulated, entry, s.StartedAt)
	res.Warning = warning
	res.Message = fmt.Sprintf("Logged %s to issue %s. Todo completed.", res.TimeSpentFormatted, r.key)
	if !req.MarkCompleted {
		res.Message = fmt.Sprintf("Logged %s to issue %s. Work session ended.", res.TimeSpentFormatted, r.key)
	}
	return res, nil
}

// CancelWork discards the session without logging time.
func (t *Tracker) CancelWork(ctx context.Context, key, ref string) (res *CancelResult, err error) {
	defer func() { t.observe("cancel", err) }()

	r, err := t.resolve(ctx, key, ref, true)
	if err != nil {
		return nil, err
	}
	s, err := t.registry.Take(r.sessionKey())
	if err != nil {
		return nil, err
	}
	discarded := t.elapsedSince(s.StartedAt)
	item := r.item()
	item.Status = statusOf(item)

	t.logger.Info("work canceled",
		slog.String("session", s.Key().String()),
		slog.Duration("discarded", discarded),
	)
	t.emit(EventCanceled, s)
	formatted := todo.FormatDuration(discarded)
	return &CancelResult{
		DocumentKey:             r.key,
		Todo:                    item,
		Discarded:               discarded,
		DiscardedSeconds:        int64(discarded / time.Second),
		DiscardedFormatted:      formatted,
		TotalAccumulatedSeconds: int64(s.Accumulated / time.Second),
		Message:                 fmt.Sprintf("Work session canceled. %s of work was discarded (not logged).", formatted),
	}, nil
}

// ActiveSessions lists every running session with its current duration.
func (t *Tracker) ActiveSessions() []ActiveSession {
	now := t.clock.Now()
	list := t.registry.List()
	out := make([]ActiveSession, 0, len(list))
	for _, s := range list {
		d := clampElapsed(now.Sub(s.StartedAt))
		out = append(out, ActiveSession{
			WorkSession:             s,
			DurationSeconds:         int64(d / time.Second),
			DurationFormatted:       todo.FormatDuration(d),
			TotalAccumulatedSeconds: int64((s.Accumulated + d) / time.Second),
		})
	}
	return out
}

func (t *Tracker) record(ctx context.Context, op, key string, d time.Duration, comment string, startedAt time.Time) (models.LogEntry, error) {
	entry, err := t.timelog.Record(ctx, key, d, comment, startedAt)
	if err != nil {
		t.logger.Error("time log failed",
			slog.String("op", op),
			slog.String("document", key),
			slog.Duration("duration", d),
			slog.String("error", err.Error()),
		)
		return models.LogEntry{}, fmt.Errorf("%w: %s on %s: %w", apperr.ErrTimeLog, op, key, err)
	}
	t.metrics.AddLogged(op, d.Seconds())
	t.logger.Info("time logged",
		slog.String("op", op),
		slog.String("document", key),
		slog.Duration("duration", d),
		slog.String("entry", entry.ID),
	)
	return entry, nil
}

func (t *Tracker) elapsedSince(start time.Time) time.Duration {
	return clampElapsed(t.clock.Now().Sub(start))
}

// spansDays reports whether a session needs an explicit duration.
func (t *Tracker) spansDays(start, end time.Time, elapsed time.Duration) bool {
	return !sameDay(start.In(t.loc), end.In(t.loc)) || elapsed > 24*time.Hour
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func clampElapsed(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}

func statusOf(item models.TodoItem) models.Status {
	if item.Completed {
		return models.StatusCompleted
	}
	return models.StatusOpen
}

// maxExplicit bounds an explicit complete duration. It is checked before
// conversion so no input can overflow time.Duration.
const maxExplicit = 31 * 24 * time.Hour

func explicitDuration(req CompleteRequest) (time.Duration, bool, error) {
	limit := todo.FormatDuration(maxExplicit)
	switch {
	case req.Seconds != nil:
		if *req.Seconds < 0 {
			return 0, false, apperr.Invalid("time_spent_seconds", "must not be negative")
		}
		if *req.Seconds > int64(maxExplicit/time.Second) {
			return 0, false, apperr.Invalid("time_spent_seconds", "must not exceed %s", limit)
		}
		return time.Duration(*req.Seconds) * time.Second, true, nil
	case req.Minutes != nil:
		if *req.Minutes < 0 {
			return 0, false, apperr.Invalid("time_spent_minutes", "must not be negative")
		}
		if *req.Minutes > int64(maxExplicit/time.Minute) {
			return 0, false, apperr.Invalid("time_spent_minutes", "must not exceed %s", limit)
		}
		return time.Duration(*req.Minutes) * time.Minute, true, nil
	case req.Hours != nil:
		h := *req.Hours
		if h < 0 || math.IsNaN(h) || math.IsInf(h, 0) {
			return 0, false, apperr.Invalid("time_spent_hours", "must be a non-negative number")
		}
		if h > maxExplicit.Hours() {
			return 0, false, apperr.Invalid("time_spent_hours", "must not exceed %s", limit)
		}
		return time.Duration(h * 3600 * float64(time.Second)), true, nil
	}
	return 0, false, nil
}

// newWorkResult builds the result of a transition that logged spent out of a
// measured elapsed interval, on a session that had already logged before.
func newWorkResult(key string, item models.TodoItem, spent, elapsed, before time.Duration, entry models.LogEntry, startedAt time.Time) *WorkResult {
	return &WorkResult{
		DocumentKey:             key,
		Todo:                    item,
		TimeSpent:               spent,
		TimeSpentSeconds:        int64(spent / time.Second),
		TimeSpentFormatted:      todo.FormatDuration(spent),
		Elapsed:                 elapsed,
		ElapsedSeconds:          int64(elapsed / time.Second),
		TotalAccumulatedSeconds: int64((before + spent) / time.Second),
		Entry:                   entry,
		StartedAt:               startedAt,
	}
}
