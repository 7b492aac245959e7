package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"recurd/internal/eventbus"
	"recurd/internal/principal"
	"recurd/internal/recur"
	"recurd/internal/storage"
	logx "recurd/pkg/logx"
)

func newTestService(t *testing.T, cfg Config) (*Service, storage.Store, eventbus.Bus) {
	t.Helper()
	st, err := storage.Open(storage.Config{Driver: "file", Path: filepath.Join(t.TempDir(), "state.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	bus := eventbus.New()
	return New(cfg, st, logx.Nop(), bus), st, bus
}

func noop(context.Context) error { return nil }

func waitEvent(t *testing.T, ch <-chan eventbus.Event, typ string) eventbus.Event {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case e := <-ch:
			if e.Type == typ {
				return e
			}
		case <-deadline:
			t.Fatalf("no %s event", typ)
		}
	}
}

func TestAddTriggerPersistsAndPublishes(t *testing.T) {
	t.Parallel()
	s, st, bus := newTestService(t, Config{Timezone: "UTC"})
	events, unsub := bus.Subscribe(16, eventbus.TypeTriggerRegistered)
	defer unsub()

	ctx := principal.WithPrincipal(context.Background(), principal.Principal{Name: "alice"})
	name, err := s.AddTrigger(ctx, " payroll ", "0 0 9 LW,X * *", time.Minute, noop)
	if err != nil {
		t.Fatalf("AddTrigger: %v", err)
	}
	if name != "payroll" {
		t.Fatalf("name = %q", name)
	}

	rec, err := st.GetTrigger(ctx, "payroll")
	if err != nil {
		t.Fatalf("GetTrigger: %v", err)
	}
	if rec.Expr != "0 0 9 LW * *" || rec.DayOfMonth != "LW" || rec.DayOfWeek != "" || rec.Owner != "alice" {
		t.Fatalf("record = %+v", rec)
	}

	e := waitEvent(t, events, eventbus.TypeTriggerRegistered)
	d, ok := e.Data.(eventbus.TriggerData)
	if !ok || d.Name != "payroll" || d.Owner != "alice" || d.Next.IsZero() {
		t.Fatalf("event data = %+v", e.Data)
	}

	snap := s.Snapshot()
	if len(snap.Schedules) != 1 || len(snap.Schedules[0].Warnings) != 1 {
		t.Fatalf("snapshot = %+v", snap.Schedules)
	}
	if snap.Running {
		t.Fatalf("service should not be running before Start")
	}
}

func TestAddTriggerUpsertsByName(t *testing.T) {
	t.Parallel()
	s, _, _ := newTestService(t, Config{})
	ctx := context.Background()
	if _, err := s.AddTrigger(ctx, "a", "0 0 1 * * *", 0, noop); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddTrigger(ctx, "a", "0 0 2 * * *", 0, noop); err != nil {
		t.Fatal(err)
	}
	snap := s.Snapshot()
	if len(snap.Schedules) != 1 || snap.Schedules[0].Spec != "0 0 2 * * *" {
		t.Fatalf("schedules = %+v", snap.Schedules)
	}
	if snap.Schedules[0].Owner != principal.System {
		t.Fatalf("owner = %q, want %q", snap.Schedules[0].Owner, principal.System)
	}
}

func TestAddHelpers(t *testing.T) {
	t.Parallel()
	s, _, _ := newTestService(t, Config{})
	ctx := context.Background()
	if _, err := s.AddDaily(ctx, "daily", "00:05", 0, noop); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddWeekly(ctx, "weekly", time.Monday, "08:30", 0, noop); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddMonthly(ctx, "monthly", "1, LW", "17:00", 0, noop); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddSchedule(ctx, "every", "45m", 0, noop); err != nil {
		t.Fatal(err)
	}
	want := map[string]string{
		"daily":   "0 5 0 * * *",
		"weekly":  "0 30 8 * * MON",
		"monthly": "0 0 17 1,LW * *",
		"every":   "@every 45m0s",
	}
	for _, it := range s.Snapshot().Schedules {
		if want[it.Name] != it.Spec {
			t.Fatalf("%s spec = %q, want %q", it.Name, it.Spec, want[it.Name])
		}
	}

	if _, err := s.AddDaily(ctx, "bad", "25:00", 0, noop); err == nil {
		t.Fatalf("expected HH:MM error")
	}
	if _, err := s.AddMonthly(ctx, "bad", "*", "10:00", 0, noop); err == nil {
		t.Fatalf("expected day of month error")
	}
	if _, err := s.AddTrigger(ctx, "", "@daily", 0, noop); err == nil {
		t.Fatalf("expected name error")
	}
	if _, err := s.AddTrigger(ctx, "nojob", "@daily", 0, nil); err == nil {
		t.Fatalf("expected job error")
	}
	if _, err := s.AddInterval(ctx, "zero", 0, 0, noop); err == nil {
		t.Fatalf("expected interval error")
	}
}

func TestRemove(t *testing.T) {
	t.Parallel()
	s, st, bus := newTestService(t, Config{})
	events, unsub := bus.Subscribe(4, eventbus.TypeTriggerRemoved)
	defer unsub()
	ctx := context.Background()

	if _, err := s.AddTrigger(ctx, "gone", "@daily", 0, noop); err != nil {
		t.Fatal(err)
	}
	if !s.Remove(ctx, "gone") {
		t.Fatalf("Remove returned false")
	}
	if s.Remove(ctx, "gone") {
		t.Fatalf("second Remove returned true")
	}
	if _, err := st.GetTrigger(ctx, "gone"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("record still stored: %v", err)
	}
	waitEvent(t, events, eventbus.TypeTriggerRemoved)
	if len(s.Names()) != 0 {
		t.Fatalf("names = %v", s.Names())
	}
}

func TestExhaustedTriggerWarns(t *testing.T) {
	t.Parallel()
	s, _, bus := newTestService(t, Config{HorizonYears: 1})
	events, unsub := bus.Subscribe(4, eventbus.TypeTriggerExhausted)
	defer unsub()

	if _, err := s.AddTrigger(context.Background(), "never", "0 0 0 30 FEB *", 0, noop); err != nil {
		t.Fatalf("AddTrigger: %v", err)
	}
	e := waitEvent(t, events, eventbus.TypeTriggerExhausted)
	if d := e.Data.(eventbus.TriggerData); d.Name != "never" {
		t.Fatalf("data = %+v", d)
	}
}

func TestPreview(t *testing.T) {
	t.Parallel()
	s, _, _ := newTestService(t, Config{Timezone: "UTC"})
	got, err := s.Preview("0 0 9 LW * *", at(2024, 1, 1, 0, 0, 0), 3)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	want := []time.Time{at(2024, 1, 31, 9, 0, 0), at(2024, 2, 29, 9, 0, 0), at(2024, 3, 29, 9, 0, 0)}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Fatalf("[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	got, err = s.Preview("0 0 0 30 FEB *", at(2024, 1, 1, 0, 0, 0), 2)
	if !errors.Is(err, recur.ErrNoOccurrence) || len(got) != 0 {
		t.Fatalf("got (%v, %v), want ErrNoOccurrence", got, err)
	}

	got, err = s.Preview("1h", at(2024, 1, 1, 0, 0, 0), 2)
	if err != nil || len(got) != 2 || !got[1].Equal(at(2024, 1, 1, 2, 0, 0)) {
		t.Fatalf("interval preview = (%v, %v)", got, err)
	}
}

func TestServiceRunsJobs(t *testing.T) {
	t.Parallel()
	s, _, bus := newTestService(t, Config{Enabled: true, DefaultTimeout: time.Minute})
	events, unsub := bus.Subscribe(16, eventbus.TypeTriggerFired)
	defer unsub()

	ran := make(chan bool, 4)
	job := func(ctx context.Context) error {
		_, hasDeadline := ctx.Deadline()
		select {
		case ran <- hasDeadline && principal.Name(ctx) == principal.System:
		default:
		}
		return errors.New("boom")
	}

	s.Start(context.Background())
	if _, err := s.AddTrigger(context.Background(), "tick", "* * * * * *", 0, job); err != nil {
		t.Fatalf("AddTrigger: %v", err)
	}

	select {
	case ok := <-ran:
		if !ok {
			t.Fatalf("job context missing deadline or principal")
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("job did not run")
	}
	e := waitEvent(t, events, eventbus.TypeTriggerFired)
	if d := e.Data.(eventbus.TriggerData); d.Name != "tick" || d.Error != "boom" {
		t.Fatalf("fired data = %+v", d)
	}

	snap := s.Snapshot()
	if !snap.Running || snap.Schedules[0].Runs == 0 || snap.Schedules[0].Failures == 0 || snap.Schedules[0].LastError != "boom" {
		t.Fatalf("snapshot = %+v", snap)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Stop(ctx)
	if s.Snapshot().Running {
		t.Fatalf("still running after Stop")
	}
}

func TestApplyHorizonReparses(t *testing.T) {
	t.Parallel()
	s, _, _ := newTestService(t, Config{HorizonYears: 1})
	if _, err := s.AddTrigger(context.Background(), "a", "@daily", 0, noop); err != nil {
		t.Fatal(err)
	}
	s.Apply(Config{HorizonYears: 8, Timezone: "UTC"})
	snap := s.Snapshot()
	if snap.HorizonYears != 8 || snap.Timezone != "UTC" {
		t.Fatalf("snapshot = %+v", snap)
	}
	s.mu.Lock()
	h := s.defs[0].trigger.HorizonYears()
	s.mu.Unlock()
	if h != 8 {
		t.Fatalf("trigger horizon = %d, want 8", h)
	}
}
