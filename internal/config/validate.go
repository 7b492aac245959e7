package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks the fields that can be checked without building services.
// Schedules are parsed by the caller, which owns the grammar.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	var errs []error

	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "pretty", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format: unknown format %q", c.Logging.Format))
	}

	if _, err := ParseDurationField("scheduler.default_timeout", c.Scheduler.DefaultTimeout); err != nil {
		errs = append(errs, err)
	}
	if c.Scheduler.HorizonYears < 0 {
		errs = append(errs, errors.New("scheduler.horizon_years: must be >= 0"))
	}

	if s := c.Storage; s != nil {
		switch strings.ToLower(strings.TrimSpace(s.Driver)) {
		case "", "none":
		case "file", "sqlite", "sqlite3":
			if strings.TrimSpace(s.Path) == "" {
				errs = append(errs, errors.New("storage.path: required"))
			}
		default:
			errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", s.Driver))
		}
		if _, err := ParseDurationField("storage.busy_timeout", s.BusyTimeout); err != nil {
			errs = append(errs, err)
		}
	}

	seen := make(map[string]int, len(c.Triggers))
	for i, t := range c.Triggers {
		path := fmt.Sprintf("triggers[%d]", i)
		name := strings.TrimSpace(t.Name)
		if name == "" {
			errs = append(errs, fmt.Errorf("%s.name: required", path))
		} else if j, dup := seen[name]; dup {
			errs = append(errs, fmt.Errorf("%s.name: %q duplicates triggers[%d]", path, name, j))
		} else {
			seen[name] = i
		}
		if strings.TrimSpace(t.Schedule) == "" {
			errs = append(errs, fmt.Errorf("%s.schedule: required", path))
		}
		if _, err := ParseDurationField(path+".timeout", t.Timeout); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
