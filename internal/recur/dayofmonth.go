package recur

import (
	"strconv"
	"strings"
	"time"
)

// DayOfMonth is a bare day number in [1..31].
//
// It never matches in months shorter than its value.
type DayOfMonth int

func (DayOfMonth) Axis() Axis { return AxisDayOfMonth }
func (DayOfMonth) fragment()  {}

func (d DayOfMonth) String() string { return strconv.Itoa(int(d)) }

func (d DayOfMonth) Valid() bool { return d >= 1 && d <= 31 }

func (d DayOfMonth) Matches(t time.Time) bool {
	return d.Valid() && t.Day() == int(d)
}

// QualifiedDayOfMonth is a day-of-month constraint with the L (last) and
// W (weekday) qualifiers.
//
//	day only        "15"   the 15th
//	last            "L"    last day of the month
//	last + weekday  "LW"   last Monday-Friday of the month
//	day + weekday   "15W"  weekday nearest the 15th, within the month
//
// When last is set the day is ignored for matching ("15L" behaves as "L").
// A weekday flag without a day, and the all-default value, are invalid:
// they render ("W", "") but never match.
type QualifiedDayOfMonth struct {
	day     int
	last    bool
	weekday bool
}

// NewQualifiedDayOfMonth builds a day-of-month constraint. A day <= 0 means
// the day is absent.
func NewQualifiedDayOfMonth(last, weekday bool, day int) QualifiedDayOfMonth {
	if day < 0 {
		day = 0
	}
	return QualifiedDayOfMonth{day: day, last: last, weekday: weekday}
}

// LastDayOfMonth matches the last calendar day of every month.
func LastDayOfMonth() QualifiedDayOfMonth { return QualifiedDayOfMonth{last: true} }

// LastWeekdayOfMonth matches the last Monday-Friday of every month.
func LastWeekdayOfMonth() QualifiedDayOfMonth {
	return QualifiedDayOfMonth{last: true, weekday: true}
}

// NearestWeekday matches the weekday nearest to day.
func NearestWeekday(day int) QualifiedDayOfMonth {
	return NewQualifiedDayOfMonth(false, true, day)
}

func (QualifiedDayOfMonth) Axis() Axis { return AxisDayOfMonth }
func (QualifiedDayOfMonth) fragment()  {}

// Day returns the day number and whether it is present.
func (q QualifiedDayOfMonth) Day() (int, bool) { return q.day, q.day > 0 }
func (q QualifiedDayOfMonth) Last() bool        { return q.last }
func (q QualifiedDayOfMonth) Weekday() bool     { return q.weekday }

func (q QualifiedDayOfMonth) Valid() bool { return q.last || (q.day > 0 && q.day <= 31) }

// String renders {day}{L}{W} in that fixed order, omitting the absent day.
func (q QualifiedDayOfMonth) String() string {
	var b strings.Builder
	if q.day > 0 {
		b.WriteString(strconv.Itoa(q.day))
	}
	if q.last {
		b.WriteByte('L')
	}
	if q.weekday {
		b.WriteByte('W')
	}
	return b.String()
}

func (q QualifiedDayOfMonth) Matches(t time.Time) bool {
	y, m, d := t.Date()
	switch {
	case q.last && q.weekday:
		return d == LastWeekday(y, m)
	case q.last:
		return d == DaysIn(y, m)
	case q.day == 0:
		return false
	case q.weekday:
		return d == NearestWeekdayIn(y, m, q.day)
	default:
		return d == q.day
	}
}
