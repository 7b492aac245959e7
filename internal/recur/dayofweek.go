package recur

import (
	"strconv"
	"strings"
	"time"
)

// DayOfWeek is one of SUN..SAT. The zero value NoDay means "no constraint".
type DayOfWeek int

const (
	NoDay DayOfWeek = iota
	Sunday
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
)

var dayNames = [...]string{"", "SUN", "MON", "TUE", "WED", "THU", "FRI", "SAT"}

func (d DayOfWeek) String() string {
	if d < NoDay || int(d) >= len(dayNames) {
		return ""
	}
	return dayNames[d]
}

func (d DayOfWeek) Valid() bool { return d >= Sunday && d <= Saturday }

// Weekday converts to time.Weekday. Only meaningful when d is Valid.
func (d DayOfWeek) Weekday() time.Weekday { return time.Weekday(d - 1) }

// DayOfWeekOf converts a time.Weekday.
func DayOfWeekOf(wd time.Weekday) DayOfWeek { return DayOfWeek(wd) + 1 }

// ParseDayOfWeek matches the exact upper-case three-letter name.
// Anything else yields NoDay; callers treat that as "no constraint".
func ParseDayOfWeek(s string) DayOfWeek {
	for i := Sunday; i <= Saturday; i++ {
		if dayNames[i] == s {
			return i
		}
	}
	return NoDay
}

// Qualifier selects an occurrence of a weekday within the month.
// The zero value NoQualifier selects every occurrence.
type Qualifier int

const (
	NoQualifier Qualifier = iota
	First
	Second
	Third
	Fourth
	Fifth
	Last
)

var qualifierNames = [...]string{"", "FIRST", "SECOND", "THIRD", "FOURTH", "FIFTH", "LAST"}

func (q Qualifier) String() string {
	if q < NoQualifier || int(q) >= len(qualifierNames) {
		return ""
	}
	return qualifierNames[q]
}

// ordinalQualifiers is the wrap table for QualifiedDayOfWeekFromInts.
// LAST is deliberately not reachable through integer ordinals.
var ordinalQualifiers = [...]Qualifier{First, Second, Third, Fourth, Fifth}

// QualifiedDayOfWeek is a day-of-week constraint, optionally narrowed to the
// Nth or last occurrence in the month.
//
//	MON     every Monday
//	MON#1   first Monday
//	FRIL    last Friday
type QualifiedDayOfWeek struct {
	qualifier Qualifier
	day       DayOfWeek
}

func NewQualifiedDayOfWeek(q Qualifier, d DayOfWeek) QualifiedDayOfWeek {
	return QualifiedDayOfWeek{qualifier: q, day: d}
}

// QualifiedDayOfWeekFromInts maps 1-based external ordinals onto the enums.
//
// Out-of-range input wraps: qualifier (n-1) mod 5 over FIRST..FIFTH and day
// (n-1) mod 7 over SUN..SAT. Persisted data relies on this, so it must not
// be turned into clamping or an error. Negative input wraps the same way.
func QualifiedDayOfWeekFromInts(qualifier, dayOfWeek int) QualifiedDayOfWeek {
	q := ordinalQualifiers[floorMod(qualifier-1, len(ordinalQualifiers))]
	d := DayOfWeek(floorMod(dayOfWeek-1, 7)) + Sunday
	return QualifiedDayOfWeek{qualifier: q, day: d}
}

func (QualifiedDayOfWeek) Axis() Axis { return AxisDayOfWeek }
func (QualifiedDayOfWeek) fragment()  {}

func (q QualifiedDayOfWeek) Qualifier() Qualifier { return q.qualifier }
func (q QualifiedDayOfWeek) DayOfWeek() DayOfWeek { return q.day }

func (q QualifiedDayOfWeek) Valid() bool {
	return q.day.Valid() && q.qualifier >= NoQualifier && q.qualifier <= Last
}

// String renders DOW, DOW#N or DOWL. The L suffix is appended after the day
// name, unlike day-of-month where the number comes first.
func (q QualifiedDayOfWeek) String() string {
	var b strings.Builder
	if q.day != NoDay {
		b.WriteString(q.day.String())
		if q.qualifier != NoQualifier && q.qualifier != Last {
			b.WriteByte('#')
			b.WriteString(strconv.Itoa(int(q.qualifier)))
		}
	}
	if q.qualifier == Last {
		b.WriteByte('L')
	}
	return b.String()
}

func (q QualifiedDayOfWeek) Matches(t time.Time) bool {
	if !q.Valid() || t.Weekday() != q.day.Weekday() {
		return false
	}
	switch q.qualifier {
	case NoQualifier:
		return true
	case Last:
		return t.Day()+7 > DaysIn(t.Year(), t.Month())
	default:
		return (t.Day()-1)/7+1 == int(q.qualifier)
	}
}
