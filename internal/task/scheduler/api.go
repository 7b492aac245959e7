package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"recurd/internal/eventbus"
	"recurd/internal/principal"
	"recurd/internal/recur"
	"recurd/internal/storage"
	logx "recurd/pkg/logx"
)

// AddSchedule parses schedule and registers either a trigger or an interval.
//
// Supported schedule formats:
//   - Trigger: "0 0 9 LW * *", "30 8 * * MON#1", "@monthly"
//   - Interval duration: "55m", "2h30m", "@every 55m"
//   - Interval HH:MM: "00:50" (50 minutes), "02:30" (2 hours 30 minutes)
func (s *Service) AddSchedule(ctx context.Context, name, schedule string, timeout time.Duration, job Job) (string, error) {
	ps, err := ParseSchedule(schedule, s.horizon())
	if err != nil {
		return "", err
	}
	switch ps.Kind {
	case SpecTrigger:
		return s.register(ctx, scheduleDef{name: name, kind: SpecTrigger, expr: ps.Trigger.Expr(), trigger: ps.Trigger, timeout: timeout, job: job})
	case SpecInterval:
		return s.AddInterval(ctx, name, ps.Every, timeout, job)
	default:
		return "", fmt.Errorf("unsupported schedule kind")
	}
}

// AddTrigger registers a trigger expression under name, replacing any
// schedule with the same name. Malformed day tokens are dropped and logged.
func (s *Service) AddTrigger(ctx context.Context, name, expr string, timeout time.Duration, job Job) (string, error) {
	tr, err := ParseTrigger(expr, s.horizon())
	if err != nil {
		return "", err
	}
	return s.register(ctx, scheduleDef{name: name, kind: SpecTrigger, expr: expr, trigger: tr, timeout: timeout, job: job})
}

func (s *Service) AddInterval(ctx context.Context, name string, every time.Duration, timeout time.Duration, job Job) (string, error) {
	if every <= 0 {
		return "", errors.New("interval must be > 0")
	}
	return s.register(ctx, scheduleDef{name: name, kind: SpecInterval, expr: "@every " + every.String(), every: every, timeout: timeout, job: job})
}

// AddDaily runs at HH:MM every day (scheduler timezone).
func (s *Service) AddDaily(ctx context.Context, name, atHHMM string, timeout time.Duration, job Job) (string, error) {
	h, m, err := parseHHMM(atHHMM)
	if err != nil {
		return "", err
	}
	return s.AddTrigger(ctx, name, fmt.Sprintf("0 %d %d * * *", m, h), timeout, job)
}

// AddWeekly runs at HH:MM on the given weekday (scheduler timezone).
func (s *Service) AddWeekly(ctx context.Context, name string, weekday time.Weekday, atHHMM string, timeout time.Duration, job Job) (string, error) {
	h, m, err := parseHHMM(atHHMM)
	if err != nil {
		return "", err
	}
	dow := recur.DayOfWeekOf(weekday).String()
	return s.AddTrigger(ctx, name, fmt.Sprintf("0 %d %d * * %s", m, h, dow), timeout, job)
}

// AddMonthly runs at HH:MM on the days described by dom, e.g. "1,15",
// "L" or "LW".
func (s *Service) AddMonthly(ctx context.Context, name, dom, atHHMM string, timeout time.Duration, job Job) (string, error) {
	h, m, err := parseHHMM(atHHMM)
	if err != nil {
		return "", err
	}
	if recur.IsWildcardToken(dom) {
		return "", errors.New("day of month required")
	}
	return s.AddTrigger(ctx, name, fmt.Sprintf("0 %d %d %s * *", m, h, strings.ReplaceAll(dom, " ", "")), timeout, job)
}

func (s *Service) register(ctx context.Context, d scheduleDef) (string, error) {
	name := strings.TrimSpace(d.name)
	if name == "" {
		return "", errors.New("name required")
	}
	if d.job == nil {
		return "", errors.New("job required")
	}
	d.name = name
	d.owner = principal.Name(ctx)
	d.state = &runState{}
	d.warn = rate.NewLimiter(rate.Every(exhaustWarnEvery), 1)

	spec := d.expr
	var warnings []string
	if d.trigger != nil {
		spec = d.trigger.String()
		warnings = d.trigger.Warnings()
	}
	for _, w := range warnings {
		s.log.Warn("trigger day token unusable", logx.String("name", name), logx.String("expr", d.expr), logx.String("detail", w))
	}

	s.mu.Lock()
	// Upsert by name so hot-reloads and repeated registrations don't duplicate.
	_ = s.removeScheduleLocked(name)
	s.defs = append(s.defs, d)
	def := &s.defs[len(s.defs)-1]
	if s.c != nil {
		s.addCronLocked(def)
	}
	loc := s.loc
	if loc == nil {
		loc = s.loadLocationLocked()
	}
	s.mu.Unlock()

	var next time.Time
	if d.trigger != nil {
		next = d.trigger.Next(time.Now().In(loc))
		if next.IsZero() {
			s.reportExhausted(name, spec, d.trigger.HorizonYears(), d.warn, time.Now())
		}
	}
	if s.log.Enabled(logx.LevelDebug) {
		args := []logx.Field{logx.String("name", name), logx.String("spec", spec), logx.Duration("timeout", d.timeout), logx.String("owner", d.owner)}
		if d.trigger != nil {
			if up := Upcoming(d.trigger, time.Now().In(loc), 4); len(up) > 0 {
				args = append(args, logx.String("next", formatTimes(up)))
			}
		}
		s.log.Debug("schedule registered", args...)
	}

	s.persist(ctx, d, spec, warnings)
	s.publish(eventbus.TypeTriggerRegistered, eventbus.TriggerData{Name: name, Spec: spec, Owner: d.owner, Next: next})
	// Return the schedule name (stable identifier for Remove(name)).
	return name, nil
}

// persist records the registration. Failures are logged; the in-memory
// schedule stays active.
func (s *Service) persist(ctx context.Context, d scheduleDef, spec string, warnings []string) {
	if s.store == nil {
		return
	}
	rec := storage.TriggerRecord{Name: d.name, Expr: spec, Owner: d.owner}
	if d.trigger != nil {
		rec.DayOfMonth = d.trigger.DayOfMonth().String()
		rec.DayOfWeek = d.trigger.DayOfWeek().String()
		rec.Timezone = d.trigger.Timezone()
	}
	err := s.store.PutTrigger(ctx, rec)
	if err != nil {
		s.log.Warn("trigger persist failed", logx.String("name", d.name), logx.Err(err))
	}
	s.audit(ctx, "trigger.put", d.name, strings.Join(append([]string{spec}, warnings...), "; "), err)
}

func (s *Service) audit(ctx context.Context, action, target, detail string, cause error) {
	if s.store == nil {
		return
	}
	e := storage.AuditEntry{Actor: principal.Name(ctx), Action: action, Target: target, Detail: detail}
	if cause != nil {
		e.Error = cause.Error()
	}
	if err := s.store.AppendAudit(ctx, e); err != nil {
		s.log.Debug("audit append failed", logx.String("action", action), logx.Err(err))
	}
}

// Remove unschedules all schedules with the given name. It returns true if something was removed.
// Safe to call even when the service is not started.
func (s *Service) Remove(ctx context.Context, name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	s.mu.Lock()
	removed := s.removeScheduleLocked(name)
	s.mu.Unlock()

	if s.store != nil {
		deleted, err := s.store.DeleteTrigger(ctx, name)
		if err != nil {
			s.log.Warn("trigger delete failed", logx.String("name", name), logx.Err(err))
		}
		if removed || deleted {
			s.audit(ctx, "trigger.remove", name, "", err)
		}
		removed = removed || deleted
	}

	if removed {
		s.log.Debug("schedule removed", logx.String("name", name))
		s.publish(eventbus.TypeTriggerRemoved, eventbus.TriggerData{Name: name, Owner: principal.Name(ctx)})
	}
	return removed
}

// Names lists registered schedule names in registration order.
func (s *Service) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.defs))
	for _, d := range s.defs {
		out = append(out, d.name)
	}
	return out
}

// Preview parses schedule and returns its next n fire times after from, in
// the scheduler timezone. A zero from means now.
func (s *Service) Preview(schedule string, from time.Time, n int) ([]time.Time, error) {
	ps, err := ParseSchedule(schedule, s.horizon())
	if err != nil {
		return nil, err
	}
	if from.IsZero() {
		from = time.Now()
	}
	from = from.In(s.location())
	if ps.Kind == SpecInterval {
		return Upcoming(cron.Every(ps.Every), from, n), nil
	}
	out := Upcoming(ps.Trigger, from, n)
	if len(out) < n {
		last := from
		if len(out) > 0 {
			last = out[len(out)-1]
		}
		if _, err := ps.Trigger.NextErr(last); err != nil {
			return out, err
		}
	}
	return out, nil
}

// removeScheduleLocked removes all defs matching name and unregisters them from cron if running.
// Call with s.mu held.
func (s *Service) removeScheduleLocked(name string) bool {
	removed := false
	n := 0
	for _, d := range s.defs {
		if d.name == name {
			if s.c != nil && d.entryID != 0 {
				s.c.Remove(d.entryID)
			}
			removed = true
			continue
		}
		s.defs[n] = d
		n++
	}
	s.defs = s.defs[:n]
	return removed
}

// addCronLocked registers d on the running cron instance. Call with s.mu held.
func (s *Service) addCronLocked(d *scheduleDef) {
	// Captured here: the cron goroutines must never take s.mu, since
	// restartLocked holds it while waiting for them.
	name, job, state, parent := d.name, d.job, d.state, s.runCtx
	timeout := d.timeout
	if timeout <= 0 {
		timeout = s.cfg.DefaultTimeout
	}
	cmd := cron.FuncJob(func() { s.run(parent, name, timeout, job, state) })

	switch d.kind {
	case SpecInterval:
		sched, jitter := intervalWithSpread(d.every, time.Now().In(s.loc), d.name)
		d.startupSpread = jitter
		d.entryID = s.c.Schedule(sched, cmd)
	default:
		d.startupSpread = 0
		spec, lim, horizon := d.trigger.String(), d.warn, d.trigger.HorizonYears()
		sched := &exhaustSchedule{base: d.trigger, exhausted: func(after time.Time) {
			s.reportExhausted(name, spec, horizon, lim, after)
		}}
		d.entryID = s.c.Schedule(sched, cmd)
	}
}

func (s *Service) run(parent context.Context, name string, timeout time.Duration, job Job, state *runState) {
	if parent == nil {
		parent = context.Background()
	}

	ctx := parent
	var cancel context.CancelFunc = func() {}
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(parent, timeout)
	}
	defer cancel()
	ctx = principal.WithPrincipal(ctx, principal.Principal{Name: principal.System})

	start := time.Now()
	err := job(ctx)
	took := time.Since(start)
	state.record(start, took, err)

	data := eventbus.TriggerData{Name: name, Took: took}
	if err != nil {
		data.Error = err.Error()
		s.log.Warn("job failed", logx.String("name", name), logx.Duration("took", took), logx.Err(err))
	} else {
		s.log.Debug("job done", logx.String("name", name), logx.Duration("took", took))
	}
	s.publish(eventbus.TypeTriggerFired, data)
}

func (s *Service) reportExhausted(name, spec string, horizon int, lim *rate.Limiter, after time.Time) {
	if lim != nil && !lim.Allow() {
		return
	}
	s.log.Warn("trigger has no occurrence within horizon",
		logx.String("name", name), logx.String("spec", spec), logx.Int("horizon_years", horizon), logx.Time("after", after))
	s.publish(eventbus.TypeTriggerExhausted, eventbus.TriggerData{Name: name, Spec: spec})
}

func (s *Service) horizon() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.HorizonYears <= 0 {
		return recur.DefaultHorizonYears
	}
	return s.cfg.HorizonYears
}

func formatTimes(ts []time.Time) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = t.Format("2006-01-02 15:04:05")
	}
	return strings.Join(parts, ", ")
}
