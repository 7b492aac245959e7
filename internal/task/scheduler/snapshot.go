package scheduler

import (
	"time"

	"recurd/internal/recur"
)

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	cfg := s.cfg
	defs := make([]scheduleDef, len(s.defs))
	copy(defs, s.defs)
	c := s.c
	loc := s.loc
	s.mu.Unlock()

	if loc == nil {
		loc = time.Local
	}
	tz := cfg.Timezone
	if tz == "" {
		tz = loc.String()
	}
	horizon := cfg.HorizonYears
	if horizon <= 0 {
		horizon = recur.DefaultHorizonYears
	}

	items := make([]ScheduleInfo, 0, len(defs))
	for _, d := range defs {
		it := ScheduleInfo{
			Name:          d.name,
			Kind:          d.kind.String(),
			Spec:          d.expr,
			Timeout:       d.timeout,
			Owner:         d.owner,
			StartupSpread: d.startupSpread,
		}
		if d.trigger != nil {
			it.Spec = d.trigger.String()
			it.Warnings = d.trigger.Warnings()
		}
		if c != nil && d.entryID != 0 {
			e := c.Entry(d.entryID)
			it.Next = e.Next
			it.Prev = e.Prev
		} else if d.trigger != nil {
			it.Next = d.trigger.Next(time.Now().In(loc))
		}
		if st := d.state; st != nil {
			it.Runs = st.runs.Load()
			it.Failures = st.failures.Load()
			st.mu.Lock()
			it.LastRun = st.lastRun
			it.LastTook = st.lastTook
			it.LastError = st.lastErr
			st.mu.Unlock()
		}
		items = append(items, it)
	}

	return Snapshot{
		Enabled:        cfg.Enabled,
		Running:        c != nil,
		Timezone:       tz,
		HorizonYears:   horizon,
		DefaultTimeout: cfg.DefaultTimeout,
		Schedules:      items,
	}
}
