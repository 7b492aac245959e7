// Package calendar maps triggers onto iCalendar recurrence rules and renders
// them as an ICS feed.
package calendar

import (
	"errors"
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"recurd/internal/recur"
	"recurd/internal/task/scheduler"
)

// ErrNotExpressible is returned for triggers with no RRULE equivalent:
// nearest-weekday days and set positions mixed with other constraints.
var ErrNotExpressible = errors.New("calendar: trigger not expressible as RRULE")

var rruleDays = [...]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

// RRuleOption maps tr onto an rrule option starting at dtstart (in the
// trigger's location when it has one).
func RRuleOption(tr *scheduler.Trigger, dtstart time.Time) (rrule.ROption, error) {
	if loc := tr.Location(); loc != nil {
		dtstart = dtstart.In(loc)
	}
	opt := rrule.ROption{
		Freq:     rrule.DAILY,
		Dtstart:  dtstart,
		Byhour:   tr.Hours(),
		Byminute: tr.Minutes(),
		Bysecond: tr.Seconds(),
	}
	if months := tr.Months(); len(months) < 12 {
		opt.Bymonth = months
	}

	axes := tr.Axes()
	for _, l := range []recur.List{axes.DayOfMonth, axes.DayOfWeek} {
		if l.Len() > 0 && len(l.Invalid()) == l.Len() {
			return opt, fmt.Errorf("%w: %s %q never matches", ErrNotExpressible, l.Axis(), l.String())
		}
	}
	if !axes.DayOfMonth.IsWildcard() || !axes.DayOfWeek.IsWildcard() {
		opt.Freq = rrule.MONTHLY
	}

	setpos := false
	for _, f := range axes.DayOfMonth.Fragments() {
		if !f.Valid() {
			continue
		}
		switch f := f.(type) {
		case recur.DayOfMonth:
			opt.Bymonthday = append(opt.Bymonthday, int(f))
		case recur.QualifiedDayOfMonth:
			day, hasDay := f.Day()
			switch {
			case f.Last() && f.Weekday():
				setpos = true
			case f.Last():
				opt.Bymonthday = append(opt.Bymonthday, -1)
			case f.Weekday():
				return opt, fmt.Errorf("%w: nearest weekday %s", ErrNotExpressible, f)
			case hasDay && day <= 31:
				opt.Bymonthday = append(opt.Bymonthday, day)
			default:
				return opt, fmt.Errorf("%w: day %s", ErrNotExpressible, f)
			}
		}
	}

	for _, f := range axes.DayOfWeek.Fragments() {
		q, ok := f.(recur.QualifiedDayOfWeek)
		if !ok || !q.Valid() {
			continue
		}
		wd := rruleDays[q.DayOfWeek()-recur.Sunday]
		switch qual := q.Qualifier(); qual {
		case recur.NoQualifier:
			opt.Byweekday = append(opt.Byweekday, wd)
		case recur.Last:
			opt.Byweekday = append(opt.Byweekday, wd.Nth(-1))
		default:
			opt.Byweekday = append(opt.Byweekday, wd.Nth(int(qual-recur.First)+1))
		}
	}

	if setpos {
		// BYSETPOS picks among every instance in the month, so the last
		// weekday must stand alone with a single time of day.
		if axes.DayOfMonth.Len() != 1 || !axes.DayOfWeek.IsWildcard() ||
			len(opt.Byhour)*len(opt.Byminute)*len(opt.Bysecond) != 1 {
			return opt, fmt.Errorf("%w: LW combined with other constraints", ErrNotExpressible)
		}
		opt.Byweekday = []rrule.Weekday{rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR}
		opt.Bysetpos = []int{-1}
	}
	return opt, nil
}

// RRule builds the rule for tr starting at dtstart.
func RRule(tr *scheduler.Trigger, dtstart time.Time) (*rrule.RRule, error) {
	opt, err := RRuleOption(tr, dtstart)
	if err != nil {
		return nil, err
	}
	return rrule.NewRRule(opt)
}
