package tracker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/metrics"
	"github.com/starford/raido/internal/models"
	"github.com/starford/raido/internal/session"
	"github.com/starford/raido/internal/testutil"
)

var t0 = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

const scenarioDoc = "## Todos\n- [ ] write tests\n"

type fixture struct {
	tr    *Tracker
	docs  *testutil.MemoryDocuments
	log   *testutil.RecordingTimeLog
	clock *session.FakeClock
}

func newFixture(t *testing.T, docs map[string]string, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		docs:  testutil.NewMemoryDocuments(docs),
		log:   testutil.NewRecordingTimeLog(),
		clock: session.NewFakeClock(t0),
	}
	base := []Option{
		WithClock(f.clock),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	f.tr = New(f.docs, f.log, append(base, opts...)...)
	return f
}

func TestAddTodo_AppendScenario(t *testing.T) {
	f := newFixture(t, map[string]string{"PROJ-1": scenarioDoc})
	ctx := context.Background()

	res, err := f.tr.AddTodo(ctx, "PROJ-1", "ship", false)
	if err != nil {
		t.Fatalf("AddTodo: %v", err)
	}
	want := "## Todos\n- [ ] write tests\n- [ ] ship"
	if got := f.docs.Get("PROJ-1"); got != want {
		t.Errorf("document = %q, want %q", got, want)
	}
	if res.Todo.Text != "ship" || res.Description != want {
		t.Errorf("result = %+v", res)
	}

	list, err := f.tr.ListTodos(ctx, "PROJ-1", nil)
	if err != nil {
		t.Fatalf("ListTodos: %v", err)
	}
	if list.Total != 2 {
		t.Fatalf("total = %d, want 2", list.Total)
	}
	for i, text := range []string{"write tests", "ship"} {
		it := list.Todos[i]
		if it.Text != text || it.Status != models.StatusOpen {
			t.Errorf("todo %d = %+v", i, it)
		}
	}
}

func TestAddTodo_Prepend(t *testing.T) {
	f := newFixture(t, map[string]string{"PROJ-1": "- [ ] b\n- [ ] c"})

	res, err := f.tr.AddTodo(context.Background(), "PROJ-1", "a", true)
	if err != nil {
		t.Fatalf("AddTodo: %v", err)
	}
	if res.Todo.Text != "a" || res.Todo.LineNumber != 0 {
		t.Errorf("todo = %+v", res.Todo)
	}
	if got := f.docs.Get("PROJ-1"); got != "- [ ] a\n- [ ] b\n- [ ] c" {
		t.Errorf("document = %q", got)
	}
}

func TestAddTodo_RejectsEmpty(t *testing.T) {
	f := newFixture(t, map[string]string{"PROJ-1": ""})
	for _, text := range []string{"", "   ", "two\nlines"} {
		_, err := f.tr.AddTodo(context.Background(), "PROJ-1", text, false)
		if !errors.Is(err, apperr.ErrInvalidReference) {
			t.Errorf("AddTodo(%q) err = %v", text, err)
		}
	}
	if f.docs.Writes() != 0 {
		t.Errorf("writes = %d, want 0", f.docs.Writes())
	}
}

func TestStartComplete_Scenario(t *testing.T) {
	f := newFixture(t, map[string]string{"PROJ-1": scenarioDoc})
	ctx := context.Background()

	start, err := f.tr.StartWork(ctx, "PROJ-1", "write tests")
	if err != nil {
		t.Fatalf("StartWork: %v", err)
	}
	if start.Todo.Status != models.StatusWIP || !start.StartedAt.Equal(t0) {
		t.Errorf("start = %+v", start)
	}

	res, err := f.tr.CompleteWork(ctx, CompleteRequest{DocumentKey: "PROJ-1", Ref: "write tests", MarkCompleted: true})
	if err != nil {
		t.Fatalf("CompleteWork: %v", err)
	}
	if !res.Todo.Completed || res.Todo.Status != models.StatusCompleted {
		t.Errorf("todo = %+v", res.Todo)
	}
	if res.TimeSpentSeconds != 0 || res.Entry.TimeSpentSeconds != 0 {
		t.Errorf("spent = %d, logged = %d", res.TimeSpentSeconds, res.Entry.TimeSpentSeconds)
	}
	if !strings.Contains(f.docs.Get("PROJ-1"), "- [x] write tests") {
		t.Errorf("document not checked: %q", f.docs.Get("PROJ-1"))
	}
	if f.tr.Registry().Len() != 0 {
		t.Errorf("sessions left: %d", f.tr.Registry().Len())
	}
	entries := f.log.Entries()
	if len(entries) != 1 || entries[0].Comment != "Work on todo: write tests" || !entries[0].StartedAt.Equal(t0) {
		t.Errorf("entries = %+v", entries)
	}
}

func TestStart_AlreadyActive(t *testing.T) {
	f := newFixture(t, map[string]string{"PROJ-1": scenarioDoc})
	ctx := context.Background()

	if _, err := f.tr.StartWork(ctx, "PROJ-1", "1"); err != nil {
		t.Fatalf("StartWork: %v", err)
	}
	_, err := f.tr.StartWork(ctx, "PROJ-1", "1")
	if !errors.Is(err, apperr.ErrSessionAlreadyActive) {
		t.Errorf("err = %v, want ErrSessionAlreadyActive", err)
	}
}

func TestStart_UnknownTodo(t *testing.T) {
	f := newFixture(t, map[string]string{"PROJ-1": scenarioDoc})
	ctx := context.Background()

	if _, err := f.tr.StartWork(ctx, "PROJ-1", "todo-0000000000000000"); !errors.Is(err, apperr.ErrTodoNotFound) {
		t.Errorf("unknown id err = %v", err)
	}
	if _, err := f.tr.StartWork(ctx, "PROJ-1", "7"); !errors.Is(err, apperr.ErrInvalidReference) {
		t.Errorf("out of range err = %v", err)
	}
}

func TestListTodos_WIPOverridesCompleted(t *testing.T) {
	f := newFixture(t, map[string]string{"PROJ-1": "- [x] done\n- [ ] open"})
	ctx := context.Background()

	if _, err := f.tr.StartWork(ctx, "PROJ-1", "1"); err != nil {
		t.Fatalf("StartWork: %v", err)
	}
	list, err := f.tr.ListTodos(ctx, "PROJ-1", nil)
	if err != nil {
		t.Fatalf("ListTodos: %v", err)
	}
	if list.Todos[0].Status != models.StatusWIP || !list.Todos[0].Completed {
		t.Errorf("todo 0 = %+v", list.Todos[0])
	}

	wip, _ := f.tr.ListTodos(ctx, "PROJ-1", []models.Status{models.StatusWIP})
	if wip.Total != 1 || wip.Todos[0].Text != "done" {
		t.Errorf("wip filter = %+v", wip.Todos)
	}
	open, _ := f.tr.ListTodos(ctx, "PROJ-1", []models.Status{models.StatusOpen})
	if open.Total != 1 || open.Todos[0].Text != "open" {
		t.Errorf("open filter = %+v", open.Todos)
	}
	done, _ := f.tr.ListTodos(ctx, "PROJ-1", []models.Status{models.StatusCompleted})
	if done.Total != 0 || done.Todos == nil {
		t.Errorf("completed filter = %+v", done.Todos)
	}
}

func TestPause(t *testing.T) {
	f := newFixture(t, map[string]string{"PROJ-1": scenarioDoc})
	ctx := context.Background()

	if _, err := f.tr.StartWork(ctx, "PROJ-1", "1"); err != nil {
		t.Fatalf("StartWork: %v", err)
	}
	f.clock.Advance(25 * time.Minute)

	res, err := f.tr.PauseWork(ctx, "PROJ-1", "1", "")
	if err != nil {
		t.Fatalf("PauseWork: %v", err)
	}
	if res.TimeSpentSeconds != 1500 || res.Entry.TimeSpentSeconds != 1500 || res.TotalAccumulatedSeconds != 1500 {
		t.Errorf("spent = %d, logged = %d, total = %d",
			res.TimeSpentSeconds, res.Entry.TimeSpentSeconds, res.TotalAccumulatedSeconds)
	}
	if res.Entry.Comment != "Partial work on todo: write tests" {
		t.Errorf("comment = %q", res.Entry.Comment)
	}
	if res.Message != "Logged 25m to issue PROJ-1. Session paused, you can start work again later." {
		t.Errorf("message = %q", res.Message)
	}
	if res.Todo.Status != models.StatusOpen || res.Todo.Completed {
		t.Errorf("todo = %+v", res.Todo)
	}
	if f.docs.Writes() != 0 {
		t.Errorf("pause wrote the document")
	}
	if f.tr.Registry().Len() != 0 {
		t.Errorf("session still active")
	}
}

func TestPause_CustomComment(t *testing.T) {
	f := newFixture(t, map[string]string{"PROJ-1": scenarioDoc})
	ctx := context.Background()

	f.tr.StartWork(ctx, "PROJ-1", "1")
	res, err := f.tr.PauseWork(ctx, "PROJ-1", "1", "lunch")
	if err != nil {
		t.Fatalf("PauseWork: %v", err)
	}
	if res.Entry.Comment != "lunch" {
		t.Errorf("comment = %q", res.Entry.Comment)
	}
}

func TestTransitions_NoSession(t *testing.T) {
	f := newFixture(t, map[string]string{"PROJ-1": scenarioDoc})
	ctx := context.Background()

	if _, err := f.tr.PauseWork(ctx, "PROJ-1", "1", ""); !errors.Is(err, apperr.ErrNoActiveSession) {
		t.Errorf("pause err = %v", err)
	}
	if _, err := f.tr.CheckpointWork(ctx, "PROJ-1", "1", ""); !errors.Is(err, apperr.ErrNoActiveSession) {
		t.Errorf("checkpoint err = %v", err)
	}
	if _, err := f.tr.CompleteWork(ctx, CompleteRequest{DocumentKey: "PROJ-1", Ref: "1"}); !errors.Is(err, apperr.ErrNoActiveSession) {
		t.Errorf("complete err = %v", err)
	}
	if _, err := f.tr.CancelWork(ctx, "PROJ-1", "1"); !errors.Is(err, apperr.ErrNoActiveSession) {
		t.Errorf("cancel err = %v", err)
	}
	if f.log.Calls() != 0 {
		t.Errorf("time log calls = %d", f.log.Calls())
	}
}

func TestCheckpointTwice_ConservesTime(t *testing.T) {
	f := newFixture(t, map[string]string{"PROJ-1": scenarioDoc})
	ctx := context.Background()

	f.tr.StartWork(ctx, "PROJ-1", "1")
	f.clock.Advance(10 * time.Minute)
	first, err := f.tr.CheckpointWork(ctx, "PROJ-1", "1", "")
	if err != nil {
		t.Fatalf("first checkpoint: %v", err)
	}
	f.clock.Advance(7 * time.Minute)
	second, err := f.tr.CheckpointWork(ctx, "PROJ-1", "1", "")
	if err != nil {
		t.Fatalf("second checkpoint: %v", err)
	}

	if got := f.log.Total(); got != int64((17 * time.Minute).Seconds()) {
		t.Errorf("total logged = %ds, want 1020s", got)
	}
	if !second.StartedAt.Equal(t0.Add(10 * time.Minute)) {
		t.Errorf("second checkpoint started at %v", second.StartedAt)
	}
	if first.RestartedAt == nil || !first.RestartedAt.Equal(t0.Add(10*time.Minute)) {
		t.Errorf("restarted at = %v", first.RestartedAt)
	}
	if first.Entry.Comment != "Checkpoint on todo: write tests" {
		t.Errorf("comment = %q", first.Entry.Comment)
	}
	if first.Todo.Status != models.StatusWIP {
		t.Errorf("status = %s", first.Todo.Status)
	}

	active := f.tr.ActiveSessions()
	if len(active) != 1 || !active[0].StartedAt.Equal(t0.Add(17*time.Minute)) {
		t.Errorf("active = %+v", active)
	}
}

func TestCheckpointsThenComplete_AccumulatesTotal(t *testing.T) {
	f := newFixture(t, map[string]string{"PROJ-1": scenarioDoc})
	ctx := context.Background()

	f.tr.StartWork(ctx, "PROJ-1", "1")
	f.clock.Advance(10 * time.Minute)
	first, err := f.tr.CheckpointWork(ctx, "PROJ-1", "1", "")
	if err != nil {
		t.Fatalf("first checkpoint: %v", err)
	}
	if first.CheckpointSeconds == nil || *first.CheckpointSeconds != 600 || first.TotalAccumulatedSeconds != 600 {
		t.Errorf("first = checkpoint %v total %d", first.CheckpointSeconds, first.TotalAccumulatedSeconds)
	}

	f.clock.Advance(7 * time.Minute)
	second, err := f.tr.CheckpointWork(ctx, "PROJ-1", "1", "")
	if err != nil {
		t.Fatalf("second checkpoint: %v", err)
	}
	if *second.CheckpointSeconds != 420 || second.TotalAccumulatedSeconds != 1020 {
		t.Errorf("second = checkpoint %d total %d", *second.CheckpointSeconds, second.TotalAccumulatedSeconds)
	}

	f.clock.Advance(3 * time.Minute)
	active := f.tr.ActiveSessions()
	if len(active) != 1 || active[0].DurationSeconds != 180 || active[0].TotalAccumulatedSeconds != 1200 {
		t.Errorf("active = %+v", active)
	}

	done, err := f.tr.CompleteWork(ctx, CompleteRequest{DocumentKey: "PROJ-1", Ref: "1", MarkCompleted: true})
	if err != nil {
		t.Fatalf("CompleteWork: %v", err)
	}
	if done.TimeSpentSeconds != 180 || done.CheckpointSeconds != nil || done.TotalAccumulatedSeconds != 1200 {
		t.Errorf("done = spent %d checkpoint %v total %d",
			done.TimeSpentSeconds, done.CheckpointSeconds, done.TotalAccumulatedSeconds)
	}
	if f.log.Total() != 1200 {
		t.Errorf("total logged = %d", f.log.Total())
	}
}

func TestCheckpointFailure_NotAccumulated(t *testing.T) {
	f := newFixture(t, map[string]string{"PROJ-1": scenarioDoc})
	ctx := context.Background()

	f.tr.StartWork(ctx, "PROJ-1", "1")
	f.clock.Advance(10 * time.Minute)
	f.log.SetErr(errors.New("backend down"))
	if _, err := f.tr.CheckpointWork(ctx, "PROJ-1", "1", ""); !errors.Is(err, apperr.ErrTimeLog) {
		t.Fatalf("err = %v, want ErrTimeLog", err)
	}
	f.log.SetErr(nil)

	f.clock.Advance(5 * time.Minute)
	res, err := f.tr.PauseWork(ctx, "PROJ-1", "1", "")
	if err != nil {
		t.Fatalf("PauseWork: %v", err)
	}
	if res.TimeSpentSeconds != 300 || res.TotalAccumulatedSeconds != 300 {
		t.Errorf("spent = %d total = %d", res.TimeSpentSeconds, res.TotalAccumulatedSeconds)
	}
}

func TestComplete_MultiDayGate(t *testing.T) {
	f := newFixture(t, map[string]string{"PROJ-1": scenarioDoc})
	ctx := context.Background()
	f.clock.Set(time.Date(2025, 6, 2, 23, 0, 0, 0, time.UTC))

	f.tr.StartWork(ctx, "PROJ-1", "1")
	f.clock.Advance(2 * time.Hour)

	_, err := f.tr.CompleteWork(ctx, CompleteRequest{DocumentKey: "PROJ-1", Ref: "1", MarkCompleted: true})
	var md *apperr.MultiDayError
	if !errors.As(err, &md) {
		t.Fatalf("err = %v, want MultiDayError", err)
	}
	if !errors.Is(err, apperr.ErrMultiDayConfirmationRequired) {
		t.Errorf("err does not match sentinel")
	}
	if md.Elapsed != 2*time.Hour || !md.CrossesDay {
		t.Errorf("multi-day error = %+v", md)
	}
	if f.log.Calls() != 0 {
		t.Errorf("time log called on gate failure")
	}
	if f.tr.Registry().Len() != 1 {
		t.Fatalf("session was not kept after gate failure")
	}

	secs := int64(3600)
	res, err := f.tr.CompleteWork(ctx, CompleteRequest{DocumentKey: "PROJ-1", Ref: "1", MarkCompleted: true, Seconds: &secs})
	if err != nil {
		t.Fatalf("CompleteWork with explicit seconds: %v", err)
	}
	if res.Entry.TimeSpentSeconds != 3600 {
		t.Errorf("logged = %d, want 3600", res.Entry.TimeSpentSeconds)
	}
	if res.Warning == "" {
		t.Errorf("expected a discrepancy warning")
	}
	if res.TimeSpentSeconds != 3600 || res.TimeSpentFormatted != "1h 0m" || res.ElapsedSeconds != 7200 {
		t.Errorf("spent = %d %q elapsed = %d", res.TimeSpentSeconds, res.TimeSpentFormatted, res.ElapsedSeconds)
	}
}

func TestComplete_DayBoundaryUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	f := newFixture(t, map[string]string{"PROJ-1": scenarioDoc}, WithLocation(loc))
	ctx := context.Background()
	f.clock.Set(time.Date(2025, 6, 2, 23, 30, 0, 0, time.UTC))

	f.tr.StartWork(ctx, "PROJ-1", "1")
	f.clock.Advance(time.Hour)

	if _, err := f.tr.CompleteWork(ctx, CompleteRequest{DocumentKey: "PROJ-1", Ref: "1"}); err != nil {
		t.Fatalf("same local day should pass the gate: %v", err)
	}
}

func TestComplete_ExplicitPrecedence(t *testing.T) {
	secs, mins, hours := int64(120), int64(5), 1.5
	cases := []struct {
		name string
		req  CompleteRequest
		want int64
	}{
		{"seconds wins", CompleteRequest{Seconds: &secs, Minutes: &mins, Hours: &hours}, 120},
		{"minutes over hours", CompleteRequest{Minutes: &mins, Hours: &hours}, 300},
		{"hours", CompleteRequest{Hours: &hours}, 5400},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, map[string]string{"PROJ-1": scenarioDoc})
			ctx := context.Background()
			f.tr.StartWork(ctx, "PROJ-1", "1")

			req := tc.req
			req.DocumentKey, req.Ref = "PROJ-1", "1"
			res, err := f.tr.CompleteWork(ctx, req)
			if err != nil {
				t.Fatalf("CompleteWork: %v", err)
			}
			if res.Entry.TimeSpentSeconds != tc.want {
				t.Errorf("logged = %d, want %d", res.Entry.TimeSpentSeconds, tc.want)
			}
			if res.Warning != "" {
				t.Errorf("no warning expected when nothing was tracked, got %q", res.Warning)
			}
		})
	}
}

func TestComplete_RejectsNegativeExplicit(t *testing.T) {
	f := newFixture(t, map[string]string{"PROJ-1": scenarioDoc})
	ctx := context.Background()
	f.tr.StartWork(ctx, "PROJ-1", "1")

	neg := int64(-1)
	_, err := f.tr.CompleteWork(ctx, CompleteRequest{DocumentKey: "PROJ-1", Ref: "1", Minutes: &neg})
	if !errors.Is(err, apperr.ErrInvalidReference) {
		t.Errorf("err = %v", err)
	}
	if f.tr.Registry().Len() != 1 {
		t.Errorf("session should be untouched")
	}
}

func TestComplete_RejectsOversizedExplicit(t *testing.T) {
	f := newFixture(t, map[string]string{"PROJ-1": scenarioDoc})
	ctx := context.Background()
	f.tr.StartWork(ctx, "PROJ-1", "1")

	huge := int64(math.MaxInt64 / 60)
	hours := 1e12
	for _, req := range []CompleteRequest{
		{DocumentKey: "PROJ-1", Ref: "1", Seconds: &huge},
		{DocumentKey: "PROJ-1", Ref: "1", Minutes: &huge},
		{DocumentKey: "PROJ-1", Ref: "1", Hours: &hours},
	} {
		_, err := f.tr.CompleteWork(ctx, req)
		if !errors.Is(err, apperr.ErrInvalidReference) {
			t.Errorf("err = %v, want ErrInvalidReference", err)
		}
	}
	if f.tr.Registry().Len() != 1 || f.log.Calls() != 0 {
		t.Errorf("oversized explicit time touched the session")
	}

	month := int64(maxExplicit / time.Second)
	res, err := f.tr.CompleteWork(ctx, CompleteRequest{DocumentKey: "PROJ-1", Ref: "1", Seconds: &month})
	if err != nil {
		t.Fatalf("CompleteWork at the cap: %v", err)
	}
	if res.TimeSpent != maxExplicit {
		t.Errorf("spent = %v", res.TimeSpent)
	}
}

func TestComplete_WithoutMarking(t *testing.T) {
	f := newFixture(t, map[string]string{"PROJ-1": scenarioDoc})
	ctx := context.Background()
	f.tr.StartWork(ctx, "PROJ-1", "1")
	f.clock.Advance(time.Hour)

	res, err := f.tr.CompleteWork(ctx, CompleteRequest{DocumentKey: "PROJ-1", Ref: "1"})
	if err != nil {
		t.Fatalf("CompleteWork: %v", err)
	}
	if res.Todo.Completed || res.Todo.Status != models.StatusOpen {
		t.Errorf("todo = %+v", res.Todo)
	}
	if f.docs.Writes() != 0 {
		t.Errorf("document written without mark_completed")
	}
}

func TestComplete_AlreadyChecked(t *testing.T) {
	f := newFixture(t, map[string]string{"PROJ-1": "- [x] done"})
	ctx := context.Background()
	f.tr.StartWork(ctx, "PROJ-1", "1")

	res, err := f.tr.CompleteWork(ctx, CompleteRequest{DocumentKey: "PROJ-1", Ref: "1", MarkCompleted: true})
	if err != nil {
		t.Fatalf("CompleteWork: %v", err)
	}
	if f.docs.Writes() != 0 {
		t.Errorf("document rewritten for an already checked todo")
	}
	if res.Todo.Status != models.StatusCompleted {
		t.Errorf("status = %s", res.Todo.Status)
	}
}

func TestCancel_NeverLogs(t *testing.T) {
	f := newFixture(t, map[string]string{"PROJ-1": scenarioDoc})
	ctx := context.Background()
	f.tr.StartWork(ctx, "PROJ-1", "1")
	f.clock.Advance(5 * time.Minute)

	res, err := f.tr.CancelWork(ctx, "PROJ-1", "1")
	if err != nil {
		t.Fatalf("CancelWork: %v", err)
	}
	if res.DiscardedSeconds != 300 || res.TotalAccumulatedSeconds != 0 {
		t.Errorf("discarded = %d, total = %d", res.DiscardedSeconds, res.TotalAccumulatedSeconds)
	}
	if res.Message != "Work session canceled. 5m of work was discarded (not logged)." {
		t.Errorf("message = %q", res.Message)
	}
	if f.log.Calls() != 0 {
		t.Errorf("cancel called the time log")
	}
	if f.tr.Registry().Len() != 0 {
		t.Errorf("session still active")
	}
}

func TestTimeLogFailure_SessionStaysEnded(t *testing.T) {
	f := newFixture(t, map[string]string{"PROJ-1": scenarioDoc})
	ctx := context.Background()
	f.tr.StartWork(ctx, "PROJ-1", "1")
	f.log.SetErr(errors.New("backend down"))

	_, err := f.tr.PauseWork(ctx, "PROJ-1", "1", "")
	if !errors.Is(err, apperr.ErrTimeLog) {
		t.Fatalf("err = %v, want ErrTimeLog", err)
	}
	if f.tr.Registry().Len() != 0 {
		t.Errorf("session restored after failure")
	}
}

func TestComplete_DocumentWriteFailure(t *testing.T) {
	f := newFixture(t, map[string]string{"PROJ-1": scenarioDoc})
	ctx := context.Background()
	f.tr.StartWork(ctx, "PROJ-1", "1")
	f.docs.SetWriteErr(errors.New("disk full"))

	_, err := f.tr.CompleteWork(ctx, CompleteRequest{DocumentKey: "PROJ-1", Ref: "1", MarkCompleted: true})
	if !errors.Is(err, apperr.ErrDocumentStore) {
		t.Fatalf("err = %v, want ErrDocumentStore", err)
	}
	if f.tr.Registry().Len() != 0 {
		t.Errorf("session restored after write failure")
	}
	if len(f.log.Entries()) != 1 {
		t.Errorf("time was not logged before the write")
	}
}

func TestBaseDocument(t *testing.T) {
	f := newFixture(t, map[string]string{"PROJ-1": scenarioDoc})
	ctx := context.Background()

	if _, err := f.tr.ListTodos(ctx, "", nil); !errors.Is(err, apperr.ErrNoBaseDocumentSet) {
		t.Errorf("err = %v, want ErrNoBaseDocumentSet", err)
	}
	_, err := f.tr.SetBase(ctx, "NOPE-1")
	if !errors.Is(err, apperr.ErrDocumentNotFound) || !errors.Is(err, apperr.ErrDocumentStore) {
		t.Errorf("SetBase missing err = %v", err)
	}
	if _, ok := f.tr.Base(); ok {
		t.Errorf("base set after failure")
	}

	msg, err := f.tr.SetBase(ctx, "PROJ-1")
	if err != nil {
		t.Fatalf("SetBase: %v", err)
	}
	if msg != "Base issue set to PROJ-1. You can now omit issue_key in todo commands." {
		t.Errorf("message = %q", msg)
	}
	list, err := f.tr.ListTodos(ctx, "", nil)
	if err != nil || list.DocumentKey != "PROJ-1" || list.Total != 1 {
		t.Errorf("ListTodos via base = %+v, %v", list, err)
	}
	if _, err := f.tr.StartWork(ctx, "", "1"); err != nil {
		t.Errorf("StartWork via base: %v", err)
	}
}

func TestUpdateTodo(t *testing.T) {
	f := newFixture(t, map[string]string{"PROJ-1": "intro\n- [ ] a\n- [ ] b"})
	ctx := context.Background()

	res, err := f.tr.UpdateTodo(ctx, "PROJ-1", "2", true)
	if err != nil {
		t.Fatalf("UpdateTodo: %v", err)
	}
	if res.Message != "Todo completed in issue PROJ-1" || !res.Todo.Completed || res.Todo.Text != "b" {
		t.Errorf("result = %+v", res)
	}
	if got := f.docs.Get("PROJ-1"); got != "intro\n- [ ] a\n- [x] b" {
		t.Errorf("document = %q", got)
	}

	res, err = f.tr.UpdateTodo(ctx, "PROJ-1", res.Todo.ID, false)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if res.Message != "Todo reopened in issue PROJ-1" || res.Todo.Completed {
		t.Errorf("result = %+v", res)
	}
}

func TestConcurrentStart_ExactlyOneWins(t *testing.T) {
	f := newFixture(t, map[string]string{"PROJ-1": scenarioDoc})
	ctx := context.Background()

	const n = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins, conflicts := 0, 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.tr.StartWork(ctx, "PROJ-1", "write tests")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, apperr.ErrSessionAlreadyActive):
				conflicts++
			default:
				t.Errorf("unexpected err: %v", err)
			}
		}()
	}
	wg.Wait()
	if wins != 1 || conflicts != n-1 {
		t.Errorf("wins = %d, conflicts = %d", wins, conflicts)
	}
}

func TestActiveSessions(t *testing.T) {
	f := newFixture(t, map[string]string{"PROJ-1": "- [ ] a\n- [ ] b"})
	ctx := context.Background()

	f.tr.StartWork(ctx, "PROJ-1", "a")
	f.clock.Advance(time.Hour)
	f.tr.StartWork(ctx, "PROJ-1", "b")
	f.clock.Advance(90 * time.Second)

	active := f.tr.ActiveSessions()
	if len(active) != 2 {
		t.Fatalf("len = %d", len(active))
	}
	if active[0].TodoText != "a" || active[0].DurationFormatted != "1h 1m" {
		t.Errorf("active[0] = %+v", active[0])
	}
	if active[1].TodoText != "b" || active[1].DurationSeconds != 90 || active[1].DurationFormatted != "1m" {
		t.Errorf("active[1] = %+v", active[1])
	}
}

func TestEvents(t *testing.T) {
	var mu sync.Mutex
	var kinds []string
	f := newFixture(t, map[string]string{"PROJ-1": scenarioDoc}, WithEvents(func(kind string, _ models.WorkSession) {
		mu.Lock()
		kinds = append(kinds, kind)
		mu.Unlock()
	}))
	ctx := context.Background()

	f.tr.StartWork(ctx, "PROJ-1", "1")
	f.tr.CheckpointWork(ctx, "PROJ-1", "1", "")
	f.tr.PauseWork(ctx, "PROJ-1", "1", "")
	f.tr.StartWork(ctx, "PROJ-1", "1")
	f.tr.CancelWork(ctx, "PROJ-1", "1")
	f.tr.StartWork(ctx, "PROJ-1", "1")
	f.tr.CompleteWork(ctx, CompleteRequest{DocumentKey: "PROJ-1", Ref: "1"})

	want := []string{EventStarted, EventCheckpointed, EventPaused, EventStarted, EventCanceled, EventStarted, EventCompleted}
	mu.Lock()
	defer mu.Unlock()
	if strings.Join(kinds, ",") != strings.Join(want, ",") {
		t.Errorf("events = %v, want %v", kinds, want)
	}
}

func TestReconcile_ReportsOrphans(t *testing.T) {
	f := newFixture(t, map[string]string{"PROJ-1": scenarioDoc})
	ctx := context.Background()

	start, err := f.tr.StartWork(ctx, "PROJ-1", "1")
	if err != nil {
		t.Fatalf("StartWork: %v", err)
	}
	orphans, err := f.tr.Reconcile(ctx, "PROJ-1")
	if err != nil || len(orphans) != 0 {
		t.Fatalf("Reconcile before edit = %v, %v", orphans, err)
	}

	f.docs.Set("PROJ-1", "Context line\n"+scenarioDoc)
	orphans, err = f.tr.Reconcile(ctx, "PROJ-1")
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(orphans) != 1 || orphans[0].TodoID != start.Todo.ID {
		t.Fatalf("orphans = %+v", orphans)
	}

	f.clock.Advance(3 * time.Minute)
	res, err := f.tr.PauseWork(ctx, "PROJ-1", start.Todo.ID, "")
	if err != nil {
		t.Fatalf("pause orphaned session by id: %v", err)
	}
	if res.Entry.TimeSpentSeconds != 180 {
		t.Errorf("logged = %d", res.Entry.TimeSpentSeconds)
	}
}

func TestMetricsWiring(t *testing.T) {
	m := metrics.New()
	f := newFixture(t, map[string]string{"PROJ-1": scenarioDoc}, WithMetrics(m))
	ctx := context.Background()

	f.tr.StartWork(ctx, "PROJ-1", "1")
	f.tr.StartWork(ctx, "PROJ-1", "1")
	if got := promtest.ToFloat64(m.ActiveSessions); got != 1 {
		t.Errorf("active gauge = %v", got)
	}
	if got := promtest.ToFloat64(m.TransitionsTotal.WithLabelValues("start", "session_already_active")); got != 1 {
		t.Errorf("conflict counter = %v", got)
	}

	f.clock.Advance(2 * time.Minute)
	f.tr.PauseWork(ctx, "PROJ-1", "1", "")
	if got := promtest.ToFloat64(m.LoggedSeconds.WithLabelValues("pause")); got != 120 {
		t.Errorf("logged seconds = %v", got)
	}
	if got := promtest.ToFloat64(m.ActiveSessions); got != 0 {
		t.Errorf("active gauge after pause = %v", got)
	}
}
