package config

import (
	"fmt"
	"strings"
	"time"
)

// ParseDurationField parses a Go duration string. Empty means zero.
// path names the field in error messages.
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

// ParseDurationOrDefault is ParseDurationField with def for empty input.
// An explicit "0s" is kept as zero.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	return ParseDurationField(path, raw)
}

// DefaultTimeoutDuration returns scheduler.default_timeout, or def when unset.
func (s SchedulerConfig) DefaultTimeoutDuration(def time.Duration) (time.Duration, error) {
	return ParseDurationOrDefault("scheduler.default_timeout", s.DefaultTimeout, def)
}

// TimeoutDuration returns the trigger timeout; zero means the scheduler default.
func (t TriggerConfig) TimeoutDuration() (time.Duration, error) {
	return ParseDurationField("triggers."+t.Name+".timeout", t.Timeout)
}

// BusyTimeoutDuration returns storage.busy_timeout, or def when unset.
func (s *StorageConfig) BusyTimeoutDuration(def time.Duration) (time.Duration, error) {
	if s == nil {
		return def, nil
	}
	return ParseDurationOrDefault("storage.busy_timeout", s.BusyTimeout, def)
}
