package scheduler

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// SpecKind describes the normalized kind of a schedule string.
type SpecKind int

const (
	SpecTrigger SpecKind = iota
	SpecInterval
)

func (k SpecKind) String() string {
	if k == SpecInterval {
		return "interval"
	}
	return "trigger"
}

// ParsedSpec represents a parsed schedule string.
//
// Supported forms:
//   - Trigger: "0 0 9 LW * *", "30 8 * * MON#1", "TZ=Asia/Tokyo 0 12 15W * *", "@monthly"
//   - Interval: "55m", "2h30m", "@every 55m"
//   - Interval HH:MM: "00:50" (50 minutes), "02:30" (2 hours 30 minutes)
//
// Optional prefixes:
//   - "cron:" forces trigger parsing
//   - "interval:" or "every:" forces interval parsing
type ParsedSpec struct {
	Kind    SpecKind
	Expr    string
	Every   time.Duration
	Trigger *Trigger
	Source  string // "trigger" | "duration" | "hhmm"
}

var reHHMM = regexp.MustCompile(`^\s*(\d{1,3}):(\d{2})\s*$`)

// ParseSchedule parses a schedule string into either a trigger or an
// interval. horizonYears is passed to ParseTrigger.
func ParseSchedule(raw string, horizonYears int) (ParsedSpec, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ParsedSpec{}, fmt.Errorf("schedule required")
	}

	low := strings.ToLower(s)
	for _, p := range []string{"interval:", "every:", "@every "} {
		if strings.HasPrefix(low, p) {
			return intervalSpec(s[len(p):])
		}
	}
	if strings.HasPrefix(low, "cron:") {
		expr := strings.TrimSpace(s[len("cron:"):])
		if expr == "" {
			return ParsedSpec{}, fmt.Errorf("trigger expression required after 'cron:'")
		}
		return triggerSpec(expr, horizonYears)
	}

	// Whitespace or a leading '@' means a trigger expression.
	if strings.ContainsAny(s, " \t\n\r") || strings.HasPrefix(s, "@") {
		return triggerSpec(s, horizonYears)
	}

	if reHHMM.MatchString(s) || isDuration(s) {
		return intervalSpec(s)
	}

	return ParsedSpec{}, fmt.Errorf(
		"invalid schedule %q (use a trigger like '0 0 9 LW * *', HH:MM like '02:30', or duration like '55m')",
		raw,
	)
}

func triggerSpec(expr string, horizonYears int) (ParsedSpec, error) {
	tr, err := ParseTrigger(expr, horizonYears)
	if err != nil {
		return ParsedSpec{}, err
	}
	return ParsedSpec{Kind: SpecTrigger, Expr: tr.String(), Trigger: tr, Source: "trigger"}, nil
}

func intervalSpec(v string) (ParsedSpec, error) {
	d, src, err := parseInterval(v)
	if err != nil {
		return ParsedSpec{}, err
	}
	return ParsedSpec{Kind: SpecInterval, Expr: "@every " + d.String(), Every: d, Source: src}, nil
}

func isDuration(s string) bool {
	_, err := time.ParseDuration(s)
	return err == nil
}

func parseInterval(v string) (time.Duration, string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, "", fmt.Errorf("interval required")
	}
	if reHHMM.MatchString(v) {
		d, err := parseHHMMDuration(v)
		return d, "hhmm", err
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, "", fmt.Errorf("invalid interval %q (use HH:MM or Go duration like '55m'/'2h30m')", v)
	}
	if d <= 0 {
		return 0, "", fmt.Errorf("interval must be > 0")
	}
	return d, "duration", nil
}

func parseHHMMDuration(v string) (time.Duration, error) {
	m := reHHMM.FindStringSubmatch(v)
	if len(m) != 3 {
		return 0, fmt.Errorf("invalid HH:MM %q", v)
	}
	hh, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	if mm > 59 {
		return 0, fmt.Errorf("invalid minutes in %q", v)
	}
	d := time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute
	if d <= 0 {
		return 0, fmt.Errorf("interval must be > 0")
	}
	return d, nil
}

// parseHHMM parses a wall-clock time of day.
func parseHHMM(s string) (hour int, minute int, err error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h, m, nil
}
