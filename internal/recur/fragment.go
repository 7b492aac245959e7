package recur

import "time"

// Axis is the schedule dimension a fragment constrains.
type Axis int

const (
	AxisDayOfMonth Axis = iota + 1
	AxisDayOfWeek
)

func (a Axis) String() string {
	switch a {
	case AxisDayOfMonth:
		return "day-of-month"
	case AxisDayOfWeek:
		return "day-of-week"
	default:
		return "unknown"
	}
}

// Fragment is a single recurrence constraint, e.g. "third Tuesday".
//
// The set of implementations is closed: DayOfMonth, QualifiedDayOfMonth and
// QualifiedDayOfWeek.
type Fragment interface {
	Axis() Axis

	// String renders the fragment token.
	String() string

	// Matches reports whether the calendar date of t satisfies the fragment.
	// Only the date part of t (in t's location) is consulted.
	Matches(t time.Time) bool

	// Valid reports whether the fragment can match some date. Invalid
	// fragments (day 0, day above 31, a bare W) never match.
	Valid() bool

	fragment()
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func isWeekday(wd time.Weekday) bool {
	return wd != time.Saturday && wd != time.Sunday
}

func weekdayOf(year int, month time.Month, day int) time.Weekday {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC).Weekday()
}

// LastWeekday returns the day number of the last Monday-Friday in the month.
func LastWeekday(year int, month time.Month) int {
	d := DaysIn(year, month)
	for !isWeekday(weekdayOf(year, month, d)) {
		d--
	}
	return d
}

// NearestWeekdayIn returns the day number of the weekday closest to day
// without leaving the month, or 0 when day does not exist in the month.
//
// Saturday moves back to Friday unless day is the 1st (then Monday the 3rd);
// Sunday moves forward to Monday unless day is the last (then Friday).
func NearestWeekdayIn(year int, month time.Month, day int) int {
	n := DaysIn(year, month)
	if day < 1 || day > n {
		return 0
	}
	switch weekdayOf(year, month, day) {
	case time.Saturday:
		if day == 1 {
			return 3
		}
		return day - 1
	case time.Sunday:
		if day == n {
			return day - 2
		}
		return day + 1
	}
	return day
}

// floorMod is a modulo that never returns a negative result.
func floorMod(a, n int) int {
	m := a % n
	if m < 0 {
		m += n
	}
	return m
}
