package scheduler

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/robfig/cron/v3"

	"recurd/internal/recur"
)

func at(y int, m time.Month, d, hh, mm, ss int) time.Time {
	return time.Date(y, m, d, hh, mm, ss, 0, time.UTC)
}

func mustTrigger(t *testing.T, expr string) *Trigger {
	t.Helper()
	tr, err := ParseTrigger(expr, 0)
	if err != nil {
		t.Fatalf("ParseTrigger(%q): %v", expr, err)
	}
	return tr
}

func TestTriggerNext(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		expr string
		from time.Time
		want time.Time
	}{
		{"last weekday", "0 0 9 LW * *", at(2024, 2, 1, 10, 0, 0), at(2024, 2, 29, 9, 0, 0)},
		{"third tuesday", "0 30 8 ? * TUE#3", at(2024, 1, 10, 0, 0, 0), at(2024, 1, 16, 8, 30, 0)},
		{"five fields", "30 8 * * MON#1", at(2024, 1, 1, 9, 0, 0), at(2024, 2, 5, 8, 30, 0)},
		{"later same day", "0 0 9,17 * * *", at(2024, 3, 10, 10, 0, 0), at(2024, 3, 10, 17, 0, 0)},
		{"strictly after", "0 0 9 LW * *", at(2024, 2, 29, 9, 0, 0), at(2024, 3, 29, 9, 0, 0)},
		{"month field", "0 0 0 L FEB *", at(2023, 3, 1, 0, 0, 0), at(2024, 2, 29, 0, 0, 0)},
		{"weekly descriptor", "@weekly", at(2024, 1, 3, 12, 0, 0), at(2024, 1, 7, 0, 0, 0)},
		{"both axes", "0 0 12 13 * FRI", at(2024, 1, 1, 0, 0, 0), at(2024, 9, 13, 12, 0, 0)},
		{"nearest weekday", "0 0 6 15W * *", at(2024, 6, 1, 0, 0, 0), at(2024, 6, 14, 6, 0, 0)},
		{"last friday", "0 0 18 * * FRIL", at(2024, 5, 1, 0, 0, 0), at(2024, 5, 31, 18, 0, 0)},
		{"every second", "* * * * * *", at(2024, 5, 1, 0, 0, 0), at(2024, 5, 1, 0, 0, 1)},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := mustTrigger(t, tt.expr).Next(tt.from)
			if !got.Equal(tt.want) {
				t.Fatalf("%s from %v = %v, want %v", tt.expr, tt.from, got, tt.want)
			}
		})
	}
}

func TestTriggerTimezone(t *testing.T) {
	t.Parallel()
	tr := mustTrigger(t, "TZ=Asia/Tokyo 0 0 9 1 * *")
	if tr.Timezone() != "Asia/Tokyo" || tr.Location() == nil {
		t.Fatalf("timezone not captured: %q %v", tr.Timezone(), tr.Location())
	}
	// 2024-01-01 00:00 UTC is exactly 09:00 JST, so the next run is February.
	got := tr.Next(at(2024, 1, 1, 0, 0, 0))
	if want := at(2024, 2, 1, 0, 0, 0); !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if got.Location() != time.UTC {
		t.Fatalf("result location = %v, want UTC", got.Location())
	}

	// Without a prefix the caller's location decides.
	jst := time.FixedZone("JST", 9*3600)
	plain := mustTrigger(t, "0 0 9 1 * *")
	got = plain.Next(time.Date(2024, 1, 1, 10, 0, 0, 0, jst))
	if want := time.Date(2024, 2, 1, 9, 0, 0, 0, jst); !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestTriggerNoOccurrence(t *testing.T) {
	t.Parallel()
	tr := mustTrigger(t, "0 0 0 30 FEB *")
	if got := tr.Next(at(2024, 1, 1, 0, 0, 0)); !got.IsZero() {
		t.Fatalf("expected zero time, got %v", got)
	}
	_, err := tr.NextErr(at(2024, 1, 1, 0, 0, 0))
	if !errors.Is(err, recur.ErrNoOccurrence) {
		t.Fatalf("expected ErrNoOccurrence, got %v", err)
	}
}

func TestTriggerString(t *testing.T) {
	t.Parallel()
	tests := []struct {
		expr string
		want string
	}{
		{"30 8 * * *", "0 30 8 * * *"},
		{"0 0 9 ? * *", "0 0 9 * * *"},
		{"0 0 9 1,15,LW * MON#1,FRIL", "0 0 9 1,15,LW * MON#1,FRIL"},
		{"CRON_TZ=UTC 0 0 * LW * *", "TZ=UTC 0 0 * LW * *"},
		{"0 0 9 5,X * MON,FOO", "0 0 9 5 * MON"},
		{"@hourly", "0 0 * * * *"},
	}
	for _, tt := range tests {
		tr := mustTrigger(t, tt.expr)
		if got := tr.String(); got != tt.want {
			t.Fatalf("String(%q) = %q, want %q", tt.expr, got, tt.want)
		}
		// Canonical form parses back to itself.
		if again := mustTrigger(t, tr.String()).String(); again != tt.want {
			t.Fatalf("reparse of %q = %q", tt.want, again)
		}
	}
}

func TestTriggerWarnings(t *testing.T) {
	t.Parallel()
	tr := mustTrigger(t, "0 0 9 5,X * MON,FOO")
	if got := tr.Warnings(); len(got) != 2 {
		t.Fatalf("warnings = %q, want 2 entries", got)
	}
	if tr.DayOfMonth().String() != "5" || tr.DayOfWeek().String() != "MON" {
		t.Fatalf("axes = %q / %q", tr.DayOfMonth(), tr.DayOfWeek())
	}
	if got := mustTrigger(t, "0 0 9 LW * *").Warnings(); len(got) != 0 {
		t.Fatalf("unexpected warnings %q", got)
	}
}

func TestTriggerNeverMatchingDayAxis(t *testing.T) {
	t.Parallel()
	from := at(2024, 1, 6, 0, 0, 0)
	for _, expr := range []string{"0 0 9 W * *", "0 0 9 0 * *", "0 0 9 0W * *", "0 0 9 32 * *"} {
		tr := mustTrigger(t, expr)
		if got := tr.Next(from); !got.IsZero() {
			t.Fatalf("%s fired at %v", expr, got)
		}
		if _, err := tr.NextErr(from); !errors.Is(err, recur.ErrNoOccurrence) {
			t.Fatalf("%s: err = %v, want ErrNoOccurrence", expr, err)
		}
		if w := tr.Warnings(); len(w) != 1 || !strings.Contains(w[0], "never matches") {
			t.Fatalf("%s: warnings = %q", expr, w)
		}
	}

	// A valid alternative still fires; only the invalid one is reported.
	tr := mustTrigger(t, "0 0 9 0,15 * *")
	if got, want := tr.Next(from), at(2024, 1, 15, 9, 0, 0); !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if w := tr.Warnings(); len(w) != 1 {
		t.Fatalf("warnings = %q", w)
	}
}

func TestTriggerSkipsDSTGap(t *testing.T) {
	t.Parallel()
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// 02:30 does not exist on 2024-03-10 in New York; the second Sunday
	// of April is the next fire.
	tr := mustTrigger(t, "0 30 2 * * SUN#2")
	got := tr.Next(time.Date(2024, 3, 1, 0, 0, 0, 0, ny))
	if want := time.Date(2024, 4, 14, 2, 30, 0, 0, ny); !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestParseTriggerErrors(t *testing.T) {
	t.Parallel()
	for _, expr := range []string{
		"",
		"1 2 3",
		"0 61 * * * *",
		"0 0 25 * * *",
		"0 0 0 * 13 *",
		"TZ=Nowhere/City 0 0 * * *",
		"TZ=UTC",
		"@fortnightly",
		"1 2 3 4 5 6 7",
	} {
		if _, err := ParseTrigger(expr, 0); err == nil {
			t.Fatalf("ParseTrigger(%q): expected error", expr)
		}
	}
}

func TestTriggerFieldValues(t *testing.T) {
	t.Parallel()
	tr := mustTrigger(t, "15,45 0 9-11 * JAN,JUL *")
	if got := tr.Hours(); !reflect.DeepEqual(got, []int{9, 10, 11}) {
		t.Fatalf("Hours = %v", got)
	}
	if got := tr.Months(); !reflect.DeepEqual(got, []int{1, 7}) {
		t.Fatalf("Months = %v", got)
	}
	if got := tr.Seconds(); !reflect.DeepEqual(got, []int{15, 45}) {
		t.Fatalf("Seconds = %v", got)
	}
	if got := tr.Minutes(); !reflect.DeepEqual(got, []int{0}) {
		t.Fatalf("Minutes = %v", got)
	}
	if tr.HorizonYears() != recur.DefaultHorizonYears {
		t.Fatalf("HorizonYears = %d", tr.HorizonYears())
	}
}

func TestUpcoming(t *testing.T) {
	t.Parallel()
	got := Upcoming(mustTrigger(t, "0 0 12 1,15 * *"), at(2024, 1, 1, 0, 0, 0), 3)
	want := []time.Time{at(2024, 1, 1, 12, 0, 0), at(2024, 1, 15, 12, 0, 0), at(2024, 2, 1, 12, 0, 0)}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Fatalf("[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if got := Upcoming(mustTrigger(t, "0 0 0 30 FEB *"), at(2024, 1, 1, 0, 0, 0), 3); len(got) != 0 {
		t.Fatalf("expected no times, got %v", got)
	}
}

// Plain numeric day lists must agree with robfig/cron's own evaluation.
func TestTriggerAgreesWithCron(t *testing.T) {
	t.Parallel()
	p := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	for _, tt := range []struct {
		expr  string
		steps int
	}{
		{"0 15 10 1,15,28 * *", 60},
		{"0 0 */6 * * *", 60},
		{"30 45 23 31 * *", 60},
		// 2100 is not a leap year and lies past both search limits.
		{"0 0 0 29 2 *", 10},
		{"0 */20 8-9 * 3-5 *", 60},
	} {
		expr := tt.expr
		want, err := p.Parse(expr)
		if err != nil {
			t.Fatalf("cron parse %q: %v", expr, err)
		}
		tr := mustTrigger(t, expr)
		a, b := at(2023, 12, 30, 22, 0, 0), at(2023, 12, 30, 22, 0, 0)
		for i := 0; i < tt.steps; i++ {
			a, b = tr.Next(a), want.Next(b)
			if !a.Equal(b) {
				t.Fatalf("%s step %d: trigger %v, cron %v", expr, i, a, b)
			}
		}
	}
}
