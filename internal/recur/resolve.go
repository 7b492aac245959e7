package recur

import (
	"errors"
	"fmt"
	"time"
)

// DefaultHorizonYears covers every leap-year and weekday alignment.
const DefaultHorizonYears = 4

// ErrNoOccurrence is returned when no date matches within the horizon.
var ErrNoOccurrence = errors.New("recur: no occurrence within horizon")

// Resolver finds matching dates by scanning forward one day at a time.
//
// The scan is linear on purpose: it is trivially correct for every
// combination of short months, leap years and qualified weekdays. It is pure
// and may be shared between goroutines.
type Resolver struct {
	// HorizonYears bounds the scan. Zero or negative means DefaultHorizonYears.
	HorizonYears int
}

func (r Resolver) years() int {
	if r.HorizonYears <= 0 {
		return DefaultHorizonYears
	}
	return r.HorizonYears
}

// Next returns midnight of the earliest date strictly after ref's date that
// satisfies axes. Dates are evaluated in ref's location.
func (r Resolver) Next(ref time.Time, axes Axes) (time.Time, error) {
	return r.NextFunc(ref, axes.Matches)
}

// NextFunc is Next with an arbitrary day predicate.
func (r Resolver) NextFunc(ref time.Time, match func(time.Time) bool) (time.Time, error) {
	y, m, d := ref.Date()
	loc := ref.Location()
	limit := time.Date(y+r.years(), m, d, 0, 0, 0, 0, loc)
	for day := d + 1; ; day++ {
		// time.Date normalises day overflow into later months.
		t := time.Date(y, m, day, 0, 0, 0, 0, loc)
		if t.After(limit) {
			break
		}
		if match(t) {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %d years after %s", ErrNoOccurrence, r.years(), ref.Format(time.DateOnly))
}

// NextN returns up to n consecutive matches after ref. On horizon exhaustion
// it returns the matches found so far together with the error.
func (r Resolver) NextN(ref time.Time, axes Axes, n int) ([]time.Time, error) {
	var out []time.Time
	cur := ref
	for len(out) < n {
		t, err := r.Next(cur, axes)
		if err != nil {
			return out, err
		}
		out = append(out, t)
		cur = t
	}
	return out, nil
}

// Between returns every matching date from from's date through to's date,
// both inclusive. The range is additionally capped by the horizon.
func (r Resolver) Between(from, to time.Time, axes Axes) []time.Time {
	var out []time.Time
	y, m, d := from.Date()
	loc := from.Location()
	end := time.Date(to.In(loc).Year(), to.In(loc).Month(), to.In(loc).Day(), 0, 0, 0, 0, loc)
	limit := time.Date(y+r.years(), m, d, 0, 0, 0, 0, loc)
	if limit.Before(end) {
		end = limit
	}
	for day := d; ; day++ {
		t := time.Date(y, m, day, 0, 0, 0, 0, loc)
		if t.After(end) {
			break
		}
		if axes.Matches(t) {
			out = append(out, t)
		}
	}
	return out
}
