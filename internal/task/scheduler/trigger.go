package scheduler

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"recurd/internal/recur"
)

// timeParser handles the second, minute, hour and month fields. The day
// fields are replaced by "*" before parsing and evaluated by recur.
var timeParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

var descriptors = map[string]string{
	"@yearly":   "0 0 0 1 1 *",
	"@annually": "0 0 0 1 1 *",
	"@monthly":  "0 0 0 1 * *",
	"@weekly":   "0 0 0 * * SUN",
	"@daily":    "0 0 0 * * *",
	"@midnight": "0 0 0 * * *",
	"@hourly":   "0 0 * * * *",
}

// Trigger is a parsed trigger expression:
//
//	[TZ=Area/City ]second minute hour day-of-month month day-of-week
//
// The five-field form omits seconds. Day-of-month and day-of-week use the
// recurrence grammar (1,15,L,LW,15W / MON,FRI#2,SATL). Malformed day tokens
// are dropped; tokens that parse but can never match (0, 32, W) are kept and
// never fire. Both are reported through Warnings.
//
// A fire time inside a DST gap does not exist and is skipped, as robfig/cron
// does; the trigger waits for its next matching day.
//
// Trigger implements cron.Schedule and is safe for concurrent use.
type Trigger struct {
	expr     string
	tz       string
	loc      *time.Location
	fields   [4]string // second, minute, hour, month
	spec     *cron.SpecSchedule
	axes     recur.Axes
	warnings []string
	resolver recur.Resolver
}

// ParseTrigger parses expr. horizonYears bounds the search for the next
// occurrence; zero means recur.DefaultHorizonYears.
func ParseTrigger(expr string, horizonYears int) (*Trigger, error) {
	s := strings.TrimSpace(expr)
	if s == "" {
		return nil, errors.New("trigger expression required")
	}

	tr := &Trigger{expr: expr, resolver: recur.Resolver{HorizonYears: horizonYears}}

	if strings.HasPrefix(s, "TZ=") || strings.HasPrefix(s, "CRON_TZ=") {
		i := strings.IndexAny(s, " \t")
		if i < 0 {
			return nil, fmt.Errorf("trigger %q: missing fields after timezone", expr)
		}
		tz := s[strings.Index(s, "=")+1 : i]
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("trigger %q: timezone %q: %w", expr, tz, err)
		}
		tr.tz = tz
		tr.loc = loc
		s = strings.TrimSpace(s[i:])
	}

	if strings.HasPrefix(s, "@") {
		d, ok := descriptors[strings.ToLower(s)]
		if !ok {
			return nil, fmt.Errorf("trigger %q: unsupported descriptor %q", expr, s)
		}
		s = d
	}

	f := strings.Fields(s)
	switch len(f) {
	case 5:
		f = append([]string{"0"}, f...)
	case 6:
	default:
		return nil, fmt.Errorf("trigger %q: expected 5 or 6 fields, found %d", expr, len(f))
	}

	tr.fields = [4]string{f[0], f[1], f[2], f[4]}
	sched, err := timeParser.Parse(fmt.Sprintf("%s %s %s * %s *", f[0], f[1], f[2], f[4]))
	if err != nil {
		return nil, fmt.Errorf("trigger %q: %w", expr, err)
	}
	spec, ok := sched.(*cron.SpecSchedule)
	if !ok {
		return nil, fmt.Errorf("trigger %q: unexpected schedule type %T", expr, sched)
	}
	tr.spec = spec

	dom, err := recur.ParseDayOfMonthList(f[3])
	tr.collect(err)
	dow, err := recur.ParseDayOfWeekList(f[5])
	tr.collect(err)
	tr.axes = recur.Axes{DayOfMonth: dom, DayOfWeek: dow}
	tr.collectInvalid(dom)
	tr.collectInvalid(dow)
	return tr, nil
}

func (tr *Trigger) collect(err error) {
	var pe *recur.ParseError
	if errors.As(err, &pe) {
		for _, tok := range pe.Tokens {
			tr.warnings = append(tr.warnings, fmt.Sprintf("%s: ignored %q", pe.Axis, tok))
		}
	}
}

func (tr *Trigger) collectInvalid(l recur.List) {
	for _, f := range l.Invalid() {
		tr.warnings = append(tr.warnings, fmt.Sprintf("%s: %q never matches", l.Axis(), f.String()))
	}
}

// Expr returns the expression as given to ParseTrigger.
func (tr *Trigger) Expr() string { return tr.expr }

// String renders the canonical six-field expression. Wildcard axes render
// as "*"; dropped day tokens do not appear.
func (tr *Trigger) String() string {
	var b strings.Builder
	if tr.tz != "" {
		b.WriteString("TZ=")
		b.WriteString(tr.tz)
		b.WriteByte(' ')
	}
	b.WriteString(strings.Join([]string{
		tr.fields[0], tr.fields[1], tr.fields[2],
		axisString(tr.axes.DayOfMonth),
		tr.fields[3],
		axisString(tr.axes.DayOfWeek),
	}, " "))
	return b.String()
}

func axisString(l recur.List) string {
	if l.Len() == 0 {
		return "*"
	}
	return l.String()
}

func (tr *Trigger) DayOfMonth() recur.List { return tr.axes.DayOfMonth }
func (tr *Trigger) DayOfWeek() recur.List  { return tr.axes.DayOfWeek }
func (tr *Trigger) Axes() recur.Axes       { return tr.axes }

// Warnings lists day tokens dropped while parsing and kept tokens that can
// never match.
func (tr *Trigger) Warnings() []string {
	out := make([]string, len(tr.warnings))
	copy(out, tr.warnings)
	return out
}

// Timezone returns the TZ= prefix value, or "".
func (tr *Trigger) Timezone() string { return tr.tz }

// Location returns the TZ= location, or nil when the trigger follows the
// caller's location.
func (tr *Trigger) Location() *time.Location { return tr.loc }

func (tr *Trigger) Seconds() []int { return bitValues(tr.spec.Second, 0, 59) }
func (tr *Trigger) Minutes() []int { return bitValues(tr.spec.Minute, 0, 59) }
func (tr *Trigger) Hours() []int   { return bitValues(tr.spec.Hour, 0, 23) }
func (tr *Trigger) Months() []int  { return bitValues(tr.spec.Month, 1, 12) }

// HorizonYears reports the effective search horizon.
func (tr *Trigger) HorizonYears() int {
	if tr.resolver.HorizonYears <= 0 {
		return recur.DefaultHorizonYears
	}
	return tr.resolver.HorizonYears
}

func bitValues(bits uint64, lo, hi int) []int {
	out := make([]int, 0, hi-lo+1)
	for v := lo; v <= hi; v++ {
		if bits&(1<<uint(v)) != 0 {
			out = append(out, v)
		}
	}
	return out
}

// Next implements cron.Schedule. It returns the zero time when nothing
// fires within the horizon.
func (tr *Trigger) Next(t time.Time) time.Time {
	n, err := tr.NextErr(t)
	if err != nil {
		return time.Time{}
	}
	return n
}

// NextErr returns the first fire time strictly after t, in t's location.
// It wraps recur.ErrNoOccurrence when the horizon is exhausted.
func (tr *Trigger) NextErr(t time.Time) (time.Time, error) {
	loc := tr.loc
	if loc == nil {
		loc = t.Location()
	}
	cur := t.In(loc)
	limit := cur.AddDate(tr.HorizonYears(), 0, 0)

	y, m, d := cur.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, loc)
	from := cur
	for !day.After(limit) {
		if tr.dayMatches(day) {
			if n := tr.spec.Next(from); !n.IsZero() && sameDate(n.In(loc), day) {
				return n.In(t.Location()), nil
			}
		}
		next, err := tr.resolver.NextFunc(day, tr.dayMatches)
		if err != nil {
			return time.Time{}, fmt.Errorf("trigger %q: %w", tr.String(), err)
		}
		day = next
		// SpecSchedule.Next is strictly after its argument.
		from = day.Add(-time.Second)
	}
	return time.Time{}, fmt.Errorf("trigger %q: %w: %d years after %s",
		tr.String(), recur.ErrNoOccurrence, tr.HorizonYears(), cur.Format(time.DateOnly))
}

func (tr *Trigger) dayMatches(day time.Time) bool {
	if tr.spec.Month&(1<<uint(day.Month())) == 0 {
		return false
	}
	return tr.axes.Matches(day)
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// Upcoming returns up to n fire times of s strictly after from.
func Upcoming(s cron.Schedule, from time.Time, n int) []time.Time {
	var out []time.Time
	t := from
	for len(out) < n {
		t = s.Next(t)
		if t.IsZero() {
			break
		}
		out = append(out, t)
	}
	return out
}
