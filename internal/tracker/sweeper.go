package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/models"
)

// DefaultCheckpointInterval is used when no interval is configured.
const DefaultCheckpointInterval = 30 * time.Minute

// Sweeper periodically checkpoints running sessions so that no session goes
// longer than one interval without being logged. It ticks at a quarter of the
// interval and checkpoints every session that would otherwise cross the
// interval before the next tick.
type Sweeper struct {
	tracker  *Tracker
	interval time.Duration
	tick     time.Duration
	logger   *slog.Logger
}

// SweepReport summarises one sweep.
type SweepReport struct {
	Checked      int
	Checkpointed int
	Failed       int
}

// NewSweeper creates a Sweeper for t.
func NewSweeper(t *Tracker, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultCheckpointInterval
	}
	return &Sweeper{
		tracker:  t,
		interval: interval,
		tick:     max(interval/4, time.Millisecond),
		logger:   t.logger.With(slog.String("component", "sweeper")),
	}
}

// Interval returns the sweep interval.
func (s *Sweeper) Interval() time.Duration {
	return s.interval
}

// Tick returns the time between sweeps.
func (s *Sweeper) Tick() time.Duration {
	return s.tick
}

// Run sweeps every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	s.logger.Info("auto-checkpoint started",
		slog.Duration("interval", s.interval),
		slog.Duration("tick", s.tick),
	)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("auto-checkpoint stopped")
			return nil
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep checkpoints every due session in a snapshot of the registry. A
// session is due when it would reach the interval before the next tick.
// A failure on one session is logged and the rest are still processed.
func (s *Sweeper) Sweep(ctx context.Context) SweepReport {
	t := s.tracker
	now := t.clock.Now()

	var rep SweepReport
	for _, ws := range t.registry.List() {
		rep.Checked++
		if !s.due(ws, now) {
			continue
		}
		err := s.checkpoint(ctx, ws)
		t.observe("auto_checkpoint", err)
		switch {
		case err == nil:
			rep.Checkpointed++
		case errors.Is(err, apperr.ErrNoActiveSession):
			// Ended or restarted by a foreground operation since the snapshot.
		default:
			rep.Failed++
			t.metrics.RecordSweepFailure()
			s.logger.Error("auto-checkpoint failed",
				slog.String("session", ws.Key().String()),
				slog.String("error", err.Error()),
			)
		}
	}
	if rep.Checkpointed > 0 || rep.Failed > 0 {
		s.logger.Info("auto-checkpoint sweep",
			slog.Int("checked", rep.Checked),
			slog.Int("checkpointed", rep.Checkpointed),
			slog.Int("failed", rep.Failed),
		)
	}
	return rep
}

func (s *Sweeper) due(ws models.WorkSession, now time.Time) bool {
	return now.Sub(ws.StartedAt)+s.tick >= s.interval
}

// checkpoint logs the snapshot ws. It only restarts the registered session
// if that is still the one the snapshot saw.
func (s *Sweeper) checkpoint(ctx context.Context, ws models.WorkSession) error {
	item := models.TodoItem{Text: ws.TodoText, ID: ws.TodoID, Status: models.StatusWIP}
	_, err := s.tracker.checkpoint(ctx, "auto_checkpoint", ws.Key(), ws.StartedAt, item,
		fmt.Sprintf(autoCheckpointComment, ws.TodoText))
	return err
}
