package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"recurd/internal/config"
	"recurd/internal/recur"
	"recurd/internal/task/scheduler"
	logx "recurd/pkg/logx"
)

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		Format:  cfg.Logging.Format,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapSchedulerConfig(cfg *config.Config) (scheduler.Config, error) {
	def, err := cfg.Scheduler.DefaultTimeoutDuration(0)
	if err != nil {
		return scheduler.Config{}, err
	}
	return scheduler.Config{
		Enabled:        cfg.Scheduler.Enabled,
		Timezone:       strings.TrimSpace(cfg.Scheduler.Timezone),
		HorizonYears:   cfg.Scheduler.HorizonYears,
		DefaultTimeout: def,
	}, nil
}

// ValidateConfig checks what config.Validate cannot: the timezone, the
// storage mapping and every trigger schedule. Dropped day tokens are not an
// error; they are logged when the trigger is registered.
func ValidateConfig(_ context.Context, cfg *config.Config) error {
	var errs []error
	if tz := strings.TrimSpace(cfg.Scheduler.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			errs = append(errs, fmt.Errorf("scheduler.timezone: invalid %q: %w", tz, err))
		}
	}
	if _, _, err := mapStorageConfig(cfg); err != nil {
		errs = append(errs, err)
	}
	horizon := cfg.Scheduler.HorizonYears
	if horizon <= 0 {
		horizon = recur.DefaultHorizonYears
	}
	for _, t := range cfg.Triggers {
		if _, err := scheduler.ParseSchedule(t.Schedule, horizon); err != nil {
			errs = append(errs, fmt.Errorf("triggers.%s.schedule: %w", strings.TrimSpace(t.Name), err))
		}
	}
	return errors.Join(errs...)
}
