package calendar

import (
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"recurd/internal/task/scheduler"
)

const prodID = "-//recurd//triggers//EN"

const (
	localTimeFormat = "20060102T150405"
	defaultLength   = 15 * time.Minute
)

// Entry is one trigger to publish.
type Entry struct {
	Name        string
	Trigger     *scheduler.Trigger
	Owner       string
	Description string
	// Length of each VEVENT; zero means 15 minutes.
	Length time.Duration
}

// Feed builds a calendar with one recurring VEVENT per entry, starting at
// the entry's first fire time after now. Entries that cannot be expressed
// (or never fire) are skipped; the returned error joins the reasons.
func Feed(entries []Entry, now time.Time) (*ical.Calendar, error) {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(prodID)

	var errs []error
	for _, e := range entries {
		if err := addEvent(cal, e, now); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.Name, err))
		}
	}
	return cal, errors.Join(errs...)
}

func addEvent(cal *ical.Calendar, e Entry, now time.Time) error {
	if e.Trigger == nil {
		return errors.New("no trigger")
	}
	ref := now
	if loc := e.Trigger.Location(); loc != nil {
		ref = now.In(loc)
	}
	first, err := e.Trigger.NextErr(ref)
	if err != nil {
		return err
	}
	opt, err := RRuleOption(e.Trigger, first)
	if err != nil {
		return err
	}

	length := e.Length
	if length <= 0 {
		length = defaultLength
	}

	ev := cal.AddEvent(uid(e.Name))
	ev.SetDtStampTime(now.UTC())
	ev.SetSummary(e.Name)
	desc := e.Trigger.String()
	if e.Description != "" {
		desc = e.Description + "\n" + desc
	}
	if e.Owner != "" {
		desc += "\nowner: " + e.Owner
	}
	ev.SetDescription(desc)
	setTime(ev, ical.ComponentPropertyDtStart, first)
	setTime(ev, ical.ComponentPropertyDtEnd, first.Add(length))
	ev.AddProperty(ical.ComponentPropertyRrule, opt.RRuleString())
	return nil
}

// setTime writes t as UTC, as a TZID-qualified local time, or as floating
// time for time.Local.
func setTime(ev *ical.VEvent, prop ical.ComponentProperty, t time.Time) {
	switch loc := t.Location(); {
	case loc == time.UTC:
		ev.SetProperty(prop, t.Format(localTimeFormat)+"Z")
	case loc == time.Local:
		ev.SetProperty(prop, t.Format(localTimeFormat))
	default:
		ev.SetProperty(prop, t.Format(localTimeFormat), ical.WithTZID(loc.String()))
	}
}

func uid(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return b.String() + "@recurd"
}
