package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"recurd/internal/config"
	"recurd/internal/eventbus"
	"recurd/internal/runtime/supervisor"
	"recurd/internal/storage"
	"recurd/internal/task/scheduler"
	logx "recurd/pkg/logx"
)

type App struct {
	cfgPath string

	cfgm *config.ConfigManager
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store
	sched *scheduler.Service
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfgm.SetValidator(ValidateConfig)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	return newApp(cfgPath, cfgm, cfg)
}

// newApp builds the app from a loaded config. Nothing is opened until the
// config has been fully mapped, so a mapping error leaves nothing to close.
func newApp(cfgPath string, cfgm *config.ConfigManager, cfg *config.Config) (*App, error) {
	schedCfg, err := mapSchedulerConfig(cfg)
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLogConfig(cfg))
	log = log.With(logx.String("comp", "app"))

	bus := eventbus.New()

	// Storage (optional)
	store, err := OpenStore(cfg, log.With(logx.String("comp", "storage")))
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	if store != nil {
		log.Info("storage enabled", logx.String("driver", cfg.Storage.Driver))
	}

	sched := scheduler.New(schedCfg, store, log.With(logx.String("comp", "scheduler")), bus)

	return &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		bus:     bus,
		store:   store,
		sched:   sched,
	}, nil
}

func closeStore(st storage.Store) error {
	if st == nil {
		return nil
	}
	return st.Close()
}

func (a *App) Scheduler() *scheduler.Service { return a.sched }
func (a *App) Bus() eventbus.Bus             { return a.bus }

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log.With(logx.String("comp", "supervisor"))), supervisor.WithCancelOnError(true))
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))

	// Events are logged before triggers register so none are missed.
	events, unsub := a.bus.Subscribe(128)
	a.sup.Go("eventbus.log", func(c context.Context) error {
		defer unsub()
		a.logEvents(c, events)
		return nil
	})

	cfg := a.cfgm.Get()
	a.syncTriggers(a.sup.Context(), cfg, nil)
	if a.sched.Enabled() {
		a.sched.Start(a.sup.Context())
	} else {
		a.log.Info("scheduler disabled; triggers registered but idle")
	}

	// hot reload config fan-out
	sub := a.cfgm.Subscribe(8)
	a.sup.Go("config.reload", func(c context.Context) error {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub, cfg)
		return nil
	})

	a.sup.GoRestart("config.watch", supervisor.RestartPolicy{MaxRestarts: 5}, func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started", logx.Int("triggers", len(a.sched.Names())))
	return nil
}

func (a *App) logEvents(ctx context.Context, events <-chan eventbus.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			fields := []logx.Field{logx.String("type", e.Type), logx.Time("time", e.Time)}
			if d, ok := e.Data.(eventbus.TriggerData); ok {
				fields = append(fields, logx.String("trigger", d.Name), logx.String("spec", d.Spec))
				if !d.Next.IsZero() {
					fields = append(fields, logx.Time("next", d.Next))
				}
				if d.Error != "" {
					fields = append(fields, logx.String("error", d.Error))
				}
			}
			// Keep this debug-level; the scheduler already logs fires.
			a.log.Debug("event", fields...)
		}
	}
}

func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config, lastApplied *config.Config) {
	for {
		select {
		case <-ctx.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: keep only the latest config.
		drain:
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					break drain
				}
			}
			a.applyConfig(ctx, lastApplied, newCfg)
			lastApplied = newCfg
		}
	}
}

func (a *App) applyConfig(ctx context.Context, oldCfg, newCfg *config.Config) {
	sections, attrs, triggers := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Debug("config change summary", fields...)

	for _, s := range sections {
		switch s {
		case "logging":
			a.logs.Apply(mapLogConfig(newCfg))
		case "storage":
			a.log.Warn("storage config changed; restart required for changes to take effect")
		case "scheduler":
			a.applyScheduler(ctx, newCfg)
		case "triggers":
			a.log.Debug("trigger changes detected", logx.Strings("triggers", triggers))
			a.syncTriggers(ctx, newCfg, triggers)
		}
	}
	a.log.Info("config reloaded", fields...)
}

func (a *App) applyScheduler(ctx context.Context, cfg *config.Config) {
	sc, err := mapSchedulerConfig(cfg)
	if err != nil {
		a.log.Warn("invalid scheduler config; keeping previous", logx.Err(err))
		return
	}
	wasEnabled := a.sched.Enabled()
	a.sched.Apply(sc)
	switch {
	case wasEnabled && !sc.Enabled:
		a.log.Info("scheduler disabled via config")
		stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		a.sched.Stop(stopCtx)
		cancel()
	case !wasEnabled && sc.Enabled:
		a.log.Info("scheduler enabled via config")
		a.sched.Start(ctx)
	}
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))

	// Cancel first so background loops start unwinding immediately.
	a.sup.Cancel()

	var errs []error
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()
		if err := fn(stepCtx); err != nil {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
	}

	step("scheduler", 3*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	step("storage", time.Second, func(context.Context) error { return closeStore(a.store) })

	a.log.Info("stopped", logx.Uint64("events_dropped", a.bus.Dropped()))
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return errors.Join(errs...)
}
