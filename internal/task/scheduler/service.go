package scheduler

import (
	"context"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"recurd/internal/eventbus"
	"recurd/internal/storage"
	logx "recurd/pkg/logx"
)

// New creates a trigger service. store and bus may be nil.
func New(cfg Config, store storage.Store, log logx.Logger, bus eventbus.Bus) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:   cfg,
		log:   log,
		bus:   bus,
		store: store,
	}
}

// Enabled reports the current config flag. (Thread-safe; Apply() may run concurrently.)
func (s *Service) Enabled() bool {
	s.mu.Lock()
	en := s.cfg.Enabled
	s.mu.Unlock()
	return en
}

// Apply swaps the config. A timezone, horizon or default timeout change
// re-registers every schedule on a fresh cron instance.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.cfg
	s.cfg = cfg

	if old.HorizonYears != cfg.HorizonYears {
		s.reparseLocked()
	}
	if s.c == nil {
		return
	}
	if strings.TrimSpace(old.Timezone) != strings.TrimSpace(cfg.Timezone) ||
		old.HorizonYears != cfg.HorizonYears ||
		old.DefaultTimeout != cfg.DefaultTimeout {
		s.restartLocked()
	}
}

// Start starts cron triggering. Schedules added before Start are
// registered now.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}
	cur := s.cfg
	s.log.Debug("start requested", logx.Bool("enabled", cur.Enabled), logx.String("tz", strings.TrimSpace(cur.Timezone)))

	// Job contexts outlive the Start ctx; Stop cancels them.
	s.runCtx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	s.startCronLocked()
	s.log.Info("service started", logx.String("tz", s.loc.String()), logx.Int("schedules", len(s.defs)))
}

// Stop stops cron triggering, cancels running jobs and waits for them
// until ctx is done. Definitions remain so they resume on the next Start.
func (s *Service) Stop(ctx context.Context) {
	start := time.Now()
	s.log.Info("stop requested")

	s.mu.Lock()
	c := s.c
	cancel := s.cancel
	s.c = nil
	s.cancel = nil
	for i := range s.defs {
		s.defs[i].entryID = 0
	}
	s.mu.Unlock()

	if c != nil {
		done := c.Stop().Done()
		if cancel != nil {
			cancel()
		}
		select {
		case <-done:
		case <-ctx.Done():
			// best-effort
		}
	}

	s.log.Info("service stopped", logx.Duration("took", time.Since(start)))
}

func (s *Service) startCronLocked() {
	loc := s.loadLocationLocked()
	s.loc = loc
	cl := cronLogger{log: s.log.With(logx.String("comp", "cron"))}
	s.c = cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	for i := range s.defs {
		s.addCronLocked(&s.defs[i])
	}
	s.c.Start()
}

func (s *Service) restartLocked() {
	if s.c != nil {
		<-s.c.Stop().Done()
	}
	s.startCronLocked()
	s.log.Info("service restarted", logx.String("tz", s.loc.String()), logx.Int("schedules", len(s.defs)))
}

// reparseLocked re-parses trigger definitions with the current horizon.
func (s *Service) reparseLocked() {
	for i := range s.defs {
		d := &s.defs[i]
		if d.kind != SpecTrigger {
			continue
		}
		tr, err := ParseTrigger(d.expr, s.cfg.HorizonYears)
		if err != nil {
			s.log.Warn("trigger reparse failed", logx.String("name", d.name), logx.Err(err))
			continue
		}
		d.trigger = tr
	}
}

func (s *Service) loadLocationLocked() *time.Location {
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid timezone; falling back to Local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}

func (s *Service) location() *time.Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loc != nil {
		return s.loc
	}
	return s.loadLocationLocked()
}

func (s *Service) publish(typ string, data eventbus.TriggerData) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: typ, Data: data})
}
