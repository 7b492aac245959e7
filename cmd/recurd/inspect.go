package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/robfig/cron/v3"

	"recurd/internal/app"
	"recurd/internal/calendar"
	"recurd/internal/config"
	"recurd/internal/recur"
	"recurd/internal/storage"
	"recurd/internal/task/scheduler"
	logx "recurd/pkg/logx"
)

const (
	outTimeFormat = "2006-01-02T15:04:05Z07:00 Mon"
	maxCount      = 10000
)

func checkCount(n int) error {
	if n < 0 || n > maxCount {
		return fmt.Errorf("--count must be between 0 and %d, got %d", maxCount, n)
	}
	return nil
}

func cmdNext(args []string, out, errOut io.Writer) error {
	fs := newFlagSet("next", errOut)
	expr := fs.StringP("expr", "e", "", "schedule: trigger expression, descriptor or interval")
	from := fs.String("from", "", "reference time (RFC3339 or YYYY-MM-DD); default now")
	n := fs.IntP("count", "n", 5, "number of fire times")
	tz := fs.String("tz", "", "timezone for --from and output; default local")
	horizon := fs.Int("horizon", recur.DefaultHorizonYears, "search bound in years")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if strings.TrimSpace(*expr) == "" {
		return errors.New("next: --expr is required")
	}
	if err := checkCount(*n); err != nil {
		return err
	}

	loc, err := loadLocation(*tz)
	if err != nil {
		return err
	}
	ref, err := parseRef(*from, loc)
	if err != nil {
		return err
	}
	ps, err := scheduler.ParseSchedule(*expr, *horizon)
	if err != nil {
		return err
	}

	var sched cron.Schedule
	switch ps.Kind {
	case scheduler.SpecTrigger:
		for _, w := range ps.Trigger.Warnings() {
			fmt.Fprintf(errOut, "warning: %s\n", w)
		}
		sched = ps.Trigger
	default:
		sched = cron.Every(ps.Every)
	}

	times := scheduler.Upcoming(sched, ref, *n)
	for _, t := range times {
		fmt.Fprintln(out, t.Format(outTimeFormat))
	}
	if len(times) < *n {
		if len(times) == 0 {
			return fmt.Errorf("%w: %d years after %s", recur.ErrNoOccurrence, *horizon, ref.Format(time.RFC3339))
		}
		fmt.Fprintf(errOut, "no further occurrence within %d years\n", *horizon)
	}
	return nil
}

func cmdRender(args []string, out, errOut io.Writer) error {
	fs := newFlagSet("render", errOut)
	dom := fs.String("dom", "", "day-of-month tokens, e.g. \"1,15,LW\"")
	dow := fs.String("dow", "", "day-of-week tokens, e.g. \"MON#1,FRIL\"")
	from := fs.String("from", "", "reference date for --count; default today")
	n := fs.IntP("count", "n", 0, "also print the next n matching dates")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := checkCount(*n); err != nil {
		return err
	}

	domList, err := recur.ParseDayOfMonthList(*dom)
	reportDropped(errOut, domList, err)
	dowList, err := recur.ParseDayOfWeekList(*dow)
	reportDropped(errOut, dowList, err)

	fmt.Fprintf(out, "dom: %s\n", axisOrWildcard(domList))
	fmt.Fprintf(out, "dow: %s\n", axisOrWildcard(dowList))
	if *n <= 0 {
		return nil
	}

	ref, err := parseRef(*from, time.Local)
	if err != nil {
		return err
	}
	dates, err := recur.Resolver{}.NextN(ref, recur.Axes{DayOfMonth: domList, DayOfWeek: dowList}, *n)
	for _, d := range dates {
		fmt.Fprintln(out, d.Format("2006-01-02 Mon"))
	}
	return err
}

func cmdList(args []string, out, errOut io.Writer) error {
	fs := newFlagSet("list", errOut)
	cfgPath := fs.StringP("config", "c", "./recurd.yaml", "path to config (json or yaml)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	cfg, err := config.NewConfigManager(*cfgPath).Load()
	if err != nil {
		return err
	}
	store, err := app.OpenStore(cfg, logx.NewConsole("WARN").With(logx.String("comp", "storage")))
	if err != nil {
		return err
	}
	if store == nil {
		return storage.ErrDisabled
	}
	defer store.Close()

	recs, err := store.ListTriggers(context.Background())
	if err != nil {
		return err
	}
	loc, err := loadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		return err
	}
	now := time.Now().In(loc)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tEXPR\tDOM\tDOW\tOWNER\tNEXT")
	for _, r := range recs {
		next := "-"
		if ps, err := scheduler.ParseSchedule(r.Expr, cfg.Scheduler.HorizonYears); err != nil {
			next = "invalid: " + err.Error()
		} else if ps.Kind == scheduler.SpecTrigger {
			if t := ps.Trigger.Next(now); !t.IsZero() {
				next = t.Format(outTimeFormat)
			} else {
				next = "never"
			}
		} else {
			next = "every " + ps.Every.String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Name, r.Expr, orDash(r.DayOfMonth), orDash(r.DayOfWeek), orDash(r.Owner), next)
	}
	return tw.Flush()
}

func cmdICS(args []string, out, errOut io.Writer) error {
	fs := newFlagSet("ics", errOut)
	cfgPath := fs.StringP("config", "c", "./recurd.yaml", "path to config (json or yaml)")
	outPath := fs.StringP("out", "o", "", "write the feed to this file instead of stdout")
	length := fs.Duration("length", 15*time.Minute, "length of each event")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	cfg, err := config.NewConfigManager(*cfgPath).Load()
	if err != nil {
		return err
	}

	entries, err := feedEntries(cfg, *length)
	if err != nil {
		return err
	}
	cal, err := calendar.Feed(entries, time.Now())
	if err != nil {
		fmt.Fprintf(errOut, "skipped: %v\n", err)
	}

	if *outPath == "" {
		return cal.SerializeTo(out)
	}
	f, err := os.Create(*outPath)
	if err != nil {
		return err
	}
	if err := cal.SerializeTo(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// feedEntries collects the enabled trigger schedules of cfg, followed by
// persisted triggers that cfg does not name. Intervals have no calendar form.
func feedEntries(cfg *config.Config, length time.Duration) ([]calendar.Entry, error) {
	var entries []calendar.Entry
	seen := map[string]bool{}
	add := func(name, expr, owner, desc string) {
		seen[name] = true
		ps, err := scheduler.ParseSchedule(expr, cfg.Scheduler.HorizonYears)
		if err != nil || ps.Kind != scheduler.SpecTrigger {
			return
		}
		entries = append(entries, calendar.Entry{
			Name: name, Trigger: ps.Trigger, Owner: owner, Description: desc, Length: length,
		})
	}
	for _, t := range cfg.Triggers {
		if !t.Disabled {
			add(strings.TrimSpace(t.Name), t.Schedule, t.Owner, t.Message)
		}
	}

	store, err := app.OpenStore(cfg, logx.Nop())
	if err != nil || store == nil {
		return entries, err
	}
	defer store.Close()
	recs, err := store.ListTriggers(context.Background())
	if err != nil {
		return nil, err
	}
	for _, r := range recs {
		if !seen[r.Name] {
			add(r.Name, r.Expr, r.Owner, "")
		}
	}
	return entries, nil
}

func reportDropped(w io.Writer, l recur.List, err error) {
	var pe *recur.ParseError
	if errors.As(err, &pe) {
		fmt.Fprintf(w, "warning: %s: ignored %q\n", pe.Axis, pe.Tokens)
	}
	for _, f := range l.Invalid() {
		fmt.Fprintf(w, "warning: %s: %q never matches\n", l.Axis(), f.String())
	}
}

func axisOrWildcard(l recur.List) string {
	if l.Len() == 0 {
		return "*"
	}
	return l.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func loadLocation(tz string) (*time.Location, error) {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", tz, err)
	}
	return loc, nil
}

// parseRef accepts RFC3339 or a bare date; empty means now.
func parseRef(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Now().In(loc), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(loc), nil
	}
	t, err := time.ParseInLocation(time.DateOnly, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid reference time %q (want RFC3339 or YYYY-MM-DD)", s)
	}
	return t, nil
}
