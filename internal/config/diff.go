package config

import (
	"sort"
	"strings"

	logx "recurd/pkg/logx"
)

// SummarizeConfigChange returns (1) a compact list of changed sections,
// (2) structured attrs for logging, and (3) the names of triggers that were
// added, removed or changed.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field, []string) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 4)
	attrs := make([]logx.Field, 0, 12)

	// Logging
	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.String("logx.format", newCfg.Logging.Format),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	// Scheduler
	oSched, nSched := oldCfg.Scheduler, newCfg.Scheduler
	if oSched.Enabled != nSched.Enabled ||
		strings.TrimSpace(oSched.Timezone) != strings.TrimSpace(nSched.Timezone) ||
		oSched.HorizonYears != nSched.HorizonYears ||
		strings.TrimSpace(oSched.DefaultTimeout) != strings.TrimSpace(nSched.DefaultTimeout) {
		changed = append(changed, "scheduler")
		attrs = append(attrs,
			logx.Bool("scheduler.enabled", nSched.Enabled),
			logx.String("scheduler.timezone", strings.TrimSpace(nSched.Timezone)),
			logx.Int("scheduler.horizon_years", nSched.HorizonYears),
			logx.String("scheduler.default_timeout", strings.TrimSpace(nSched.DefaultTimeout)),
		)
	}

	// Storage (persistence). Nil means disabled.
	var oDriver, nDriver, oBusy, nBusy string
	var oPathSet, nPathSet bool
	if s := oldCfg.Storage; s != nil {
		oDriver = strings.TrimSpace(s.Driver)
		oBusy = strings.TrimSpace(s.BusyTimeout)
		oPathSet = strings.TrimSpace(s.Path) != ""
	}
	if s := newCfg.Storage; s != nil {
		nDriver = strings.TrimSpace(s.Driver)
		nBusy = strings.TrimSpace(s.BusyTimeout)
		nPathSet = strings.TrimSpace(s.Path) != ""
	}
	if oDriver != nDriver || oBusy != nBusy || oPathSet != nPathSet {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", nDriver),
			logx.Bool("storage.path_set", nPathSet),
			logx.String("storage.busy_timeout", nBusy),
		)
	}

	// Triggers (summarize only; names are returned for resync)
	triggerChanged := diffTriggers(oldCfg.Triggers, newCfg.Triggers)
	if len(triggerChanged) > 0 {
		changed = append(changed, "triggers")
		attrs = append(attrs,
			logx.Int("triggers.changed_count", len(triggerChanged)),
			logx.Int("triggers.enabled_count", countEnabled(newCfg.Triggers)),
		)
	}

	sort.Strings(changed)
	return changed, attrs, triggerChanged
}

func countEnabled(ts []TriggerConfig) int {
	n := 0
	for _, t := range ts {
		if !t.Disabled {
			n++
		}
	}
	return n
}

func indexTriggers(ts []TriggerConfig) map[string]TriggerConfig {
	m := make(map[string]TriggerConfig, len(ts))
	for _, t := range ts {
		m[strings.TrimSpace(t.Name)] = t
	}
	return m
}

func diffTriggers(oldT, newT []TriggerConfig) []string {
	oldM := indexTriggers(oldT)
	newM := indexTriggers(newT)

	set := map[string]struct{}{}
	for k := range oldM {
		set[k] = struct{}{}
	}
	for k := range newM {
		set[k] = struct{}{}
	}

	out := make([]string, 0, len(set))
	for name := range set {
		o, okO := oldM[name]
		n, okN := newM[name]
		if okO != okN || o != n {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
