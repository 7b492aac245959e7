package recur

import (
	"fmt"
	"strings"
	"time"
)

// List is an ordered set of alternative fragments on a single axis.
//
// The zero List is a wildcard on no particular axis.
type List struct {
	axis  Axis
	frags []Fragment
}

// NewList builds a list for axis. Mixing axes or passing nil fragments is an error.
func NewList(axis Axis, frags ...Fragment) (List, error) {
	if axis != AxisDayOfMonth && axis != AxisDayOfWeek {
		return List{}, fmt.Errorf("recur: invalid axis %d", int(axis))
	}
	out := make([]Fragment, 0, len(frags))
	for i, f := range frags {
		if f == nil {
			return List{}, fmt.Errorf("recur: %s fragment %d is nil", axis, i)
		}
		if f.Axis() != axis {
			return List{}, fmt.Errorf("recur: %s fragment %q in %s list", f.Axis(), f.String(), axis)
		}
		out = append(out, f)
	}
	return List{axis: axis, frags: out}, nil
}

// Wildcard returns the empty list for axis.
func Wildcard(axis Axis) List { return List{axis: axis} }

func (l List) Axis() Axis { return l.axis }
func (l List) Len() int   { return len(l.frags) }

// Fragments returns a copy of the fragments in insertion order.
func (l List) Fragments() []Fragment {
	out := make([]Fragment, len(l.frags))
	copy(out, l.frags)
	return out
}

// IsWildcard reports whether the list is empty and so places no constraint
// on dates.
func (l List) IsWildcard() bool { return len(l.frags) == 0 }

// Invalid returns the fragments that can never match, in insertion order.
func (l List) Invalid() []Fragment {
	var out []Fragment
	for _, f := range l.frags {
		if !f.Valid() {
			out = append(out, f)
		}
	}
	return out
}

// String joins the fragment tokens with "," in insertion order.
// The empty list renders as "".
func (l List) String() string {
	switch len(l.frags) {
	case 0:
		return ""
	case 1:
		return l.frags[0].String()
	}
	parts := make([]string, len(l.frags))
	for i, f := range l.frags {
		parts[i] = f.String()
	}
	return strings.Join(parts, ",")
}

// Matches is the OR of the fragments. The empty list matches every date; a
// list holding only invalid fragments matches none.
func (l List) Matches(t time.Time) bool {
	if len(l.frags) == 0 {
		return true
	}
	for _, f := range l.frags {
		if f.Valid() && f.Matches(t) {
			return true
		}
	}
	return false
}

// Axes combines the day-of-month and day-of-week lists of a trigger.
// A date matches when both lists match; an empty list leaves its axis open.
type Axes struct {
	DayOfMonth List
	DayOfWeek  List
}

func (a Axes) Matches(t time.Time) bool {
	return a.DayOfMonth.Matches(t) && a.DayOfWeek.Matches(t)
}

func (a Axes) IsWildcard() bool {
	return a.DayOfMonth.IsWildcard() && a.DayOfWeek.IsWildcard()
}
