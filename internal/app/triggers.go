package app

import (
	"context"
	"strings"

	"recurd/internal/config"
	"recurd/internal/principal"
	logx "recurd/pkg/logx"
)

// syncTriggers registers or removes the named triggers so the scheduler
// matches cfg. An empty names list means every trigger in cfg.
func (a *App) syncTriggers(ctx context.Context, cfg *config.Config, names []string) {
	want := make(map[string]config.TriggerConfig, len(cfg.Triggers))
	all := names == nil
	for _, t := range cfg.Triggers {
		name := strings.TrimSpace(t.Name)
		want[name] = t
		if all {
			names = append(names, name)
		}
	}

	for _, name := range names {
		t, ok := want[name]
		if !ok || t.Disabled {
			if a.sched.Remove(ctx, name) {
				a.log.Info("trigger removed", logx.String("trigger", name))
			}
			continue
		}
		if err := a.addTrigger(ctx, t); err != nil {
			a.log.Warn("trigger registration failed", logx.String("trigger", name), logx.Err(err))
		}
	}
}

func (a *App) addTrigger(ctx context.Context, t config.TriggerConfig) error {
	name := strings.TrimSpace(t.Name)
	timeout, err := t.TimeoutDuration()
	if err != nil {
		return err
	}
	if owner := strings.TrimSpace(t.Owner); owner != "" {
		ctx = principal.WithPrincipal(ctx, principal.Principal{Name: owner})
	}
	_, err = a.sched.AddSchedule(ctx, name, t.Schedule, timeout, a.messageJob(name, t.Message))
	return err
}

// messageJob is the job behind a configured trigger: it logs the message.
// The scheduler publishes the fired event itself.
func (a *App) messageJob(name, msg string) func(context.Context) error {
	log := a.log.With(logx.String("comp", "trigger"), logx.String("trigger", name))
	msg = strings.TrimSpace(msg)
	if msg == "" {
		msg = "trigger fired"
	}
	return func(ctx context.Context) error {
		log.Info(msg, logx.String("principal", principal.Name(ctx)))
		return nil
	}
}
