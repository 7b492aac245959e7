package recur

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// eachDay calls fn for every date of the given month.
func eachDay(y int, m time.Month, fn func(t time.Time)) {
	for d := 1; d <= DaysIn(y, m); d++ {
		fn(date(y, m, d))
	}
}

func TestDaysIn(t *testing.T) {
	t.Parallel()
	tests := []struct {
		y    int
		m    time.Month
		want int
	}{
		{2023, time.February, 28},
		{2024, time.February, 29},
		{1900, time.February, 28},
		{2000, time.February, 29},
		{2024, time.April, 30},
		{2024, time.December, 31},
	}
	for _, tt := range tests {
		if got := DaysIn(tt.y, tt.m); got != tt.want {
			t.Fatalf("DaysIn(%d, %s) = %d, want %d", tt.y, tt.m, got, tt.want)
		}
	}
}

func TestPlainDayMatchesOnlyThatDay(t *testing.T) {
	t.Parallel()
	for _, y := range []int{2023, 2024} {
		for m := time.January; m <= time.December; m++ {
			for day := 1; day <= 28; day++ {
				q := NewQualifiedDayOfMonth(false, false, day)
				s := DayOfMonth(day)
				eachDay(y, m, func(d time.Time) {
					want := d.Day() == day
					if got := q.Matches(d); got != want {
						t.Fatalf("%q.Matches(%s) = %v, want %v", q, d.Format(time.DateOnly), got, want)
					}
					if got := s.Matches(d); got != want {
						t.Fatalf("DayOfMonth(%d).Matches(%s) = %v, want %v", day, d.Format(time.DateOnly), got, want)
					}
				})
			}
		}
	}
}

func TestDay31SkipsShortMonths(t *testing.T) {
	t.Parallel()
	hits := 0
	for m := time.January; m <= time.December; m++ {
		eachDay(2024, m, func(d time.Time) {
			if DayOfMonth(31).Matches(d) {
				hits++
			}
		})
	}
	if hits != 7 {
		t.Fatalf("day 31 matched %d times in 2024, want 7", hits)
	}
}

func TestLastDayOfMonthOncePerMonth(t *testing.T) {
	t.Parallel()
	q := NewQualifiedDayOfMonth(true, false, 0)
	for _, y := range []int{2023, 2024, 2100} {
		for m := time.January; m <= time.December; m++ {
			var hits []int
			eachDay(y, m, func(d time.Time) {
				if q.Matches(d) {
					hits = append(hits, d.Day())
				}
			})
			if len(hits) != 1 || hits[0] != DaysIn(y, m) {
				t.Fatalf("%d-%02d: L matched %v, want [%d]", y, m, hits, DaysIn(y, m))
			}
		}
	}
}

func TestLastWeekdayOfMonthOncePerMonth(t *testing.T) {
	t.Parallel()
	q := NewQualifiedDayOfMonth(true, true, 0)
	for _, y := range []int{2023, 2024, 2025} {
		for m := time.January; m <= time.December; m++ {
			var hits []time.Time
			eachDay(y, m, func(d time.Time) {
				if q.Matches(d) {
					hits = append(hits, d)
				}
			})
			if len(hits) != 1 {
				t.Fatalf("%d-%02d: LW matched %d dates, want 1", y, m, len(hits))
			}
			got := hits[0]
			if !isWeekday(got.Weekday()) {
				t.Fatalf("%d-%02d: LW matched %s (%s), not a weekday", y, m, got.Format(time.DateOnly), got.Weekday())
			}
			for d := got.Day() + 1; d <= DaysIn(y, m); d++ {
				if isWeekday(date(y, m, d).Weekday()) {
					t.Fatalf("%d-%02d: weekday %d follows LW match %d", y, m, d, got.Day())
				}
			}
		}
	}
}

func TestNearestWeekday(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		day  int
		y    int
		m    time.Month
		want int
	}{
		{name: "weekday stays", day: 12, y: 2024, m: time.June, want: 12},
		{name: "saturday moves back", day: 15, y: 2024, m: time.June, want: 14},
		{name: "sunday moves forward", day: 15, y: 2024, m: time.September, want: 16},
		{name: "saturday first moves to monday", day: 1, y: 2024, m: time.June, want: 3},
		{name: "sunday last moves to friday", day: 30, y: 2024, m: time.June, want: 28},
		{name: "missing day", day: 31, y: 2024, m: time.June, want: 0},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := NearestWeekdayIn(tt.y, tt.m, tt.day); got != tt.want {
				t.Fatalf("NearestWeekdayIn(%d-%02d, %d) = %d, want %d", tt.y, tt.m, tt.day, got, tt.want)
			}
			q := NearestWeekday(tt.day)
			var hits []int
			eachDay(tt.y, tt.m, func(d time.Time) {
				if q.Matches(d) {
					hits = append(hits, d.Day())
				}
			})
			if tt.want == 0 {
				if len(hits) != 0 {
					t.Fatalf("%q matched %v, want nothing", q, hits)
				}
				return
			}
			if len(hits) != 1 || hits[0] != tt.want {
				t.Fatalf("%q matched %v, want [%d]", q, hits, tt.want)
			}
		})
	}
}

func TestDayOfMonthRender(t *testing.T) {
	t.Parallel()
	tests := []struct {
		q    QualifiedDayOfMonth
		want string
	}{
		{NewQualifiedDayOfMonth(false, false, 15), "15"},
		{NewQualifiedDayOfMonth(true, false, 15), "15L"},
		{NewQualifiedDayOfMonth(false, true, 15), "15W"},
		{NewQualifiedDayOfMonth(true, true, 15), "15LW"},
		{LastDayOfMonth(), "L"},
		{LastWeekdayOfMonth(), "LW"},
		{NewQualifiedDayOfMonth(false, true, 0), "W"},
		{QualifiedDayOfMonth{}, ""},
	}
	for _, tt := range tests {
		if got := tt.q.String(); got != tt.want {
			t.Fatalf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestDayOfMonthRoundTrip(t *testing.T) {
	t.Parallel()
	for _, last := range []bool{false, true} {
		for _, weekday := range []bool{false, true} {
			q := NewQualifiedDayOfMonth(last, weekday, 9)
			first := q.String()
			f, err := ParseDayOfMonthToken(first)
			if err != nil {
				t.Fatalf("ParseDayOfMonthToken(%q): %v", first, err)
			}
			if again := f.String(); again != first {
				t.Fatalf("round trip %q -> %q", first, again)
			}
			for m := time.January; m <= time.December; m++ {
				eachDay(2024, m, func(d time.Time) {
					if q.Matches(d) != f.Matches(d) {
						t.Fatalf("%q: parsed fragment disagrees on %s", first, d.Format(time.DateOnly))
					}
				})
			}
		}
	}
}

func TestAmbiguousDayOfMonthNeverMatches(t *testing.T) {
	t.Parallel()
	for _, q := range []QualifiedDayOfMonth{{}, NewQualifiedDayOfMonth(false, true, 0)} {
		if q.Valid() {
			t.Fatalf("%q reported valid", q)
		}
		for m := time.January; m <= time.December; m++ {
			eachDay(2024, m, func(d time.Time) {
				if q.Matches(d) {
					t.Fatalf("%q matched %s", q, d.Format(time.DateOnly))
				}
			})
		}
	}
}

func TestLastIgnoresDay(t *testing.T) {
	t.Parallel()
	q := NewQualifiedDayOfMonth(true, false, 5)
	if q.Matches(date(2024, time.March, 5)) {
		t.Fatal("5L should not match the 5th")
	}
	if !q.Matches(date(2024, time.March, 31)) {
		t.Fatal("5L should match the last day")
	}
}
