package recur

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	reDayOfMonthToken = regexp.MustCompile(`^(\d*)(L)?(W)?$`)
	reDayOfWeekToken  = regexp.MustCompile(`^(SUN|MON|TUE|WED|THU|FRI|SAT)(#[1-5]|L)?$`)
)

// ParseError lists the tokens dropped while parsing an axis.
//
// The list returned alongside it is still usable: malformed tokens are
// treated as absent constraints.
type ParseError struct {
	Axis   Axis
	Input  string
	Tokens []string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("recur: %s %q: ignored malformed tokens %q", e.Axis, e.Input, e.Tokens)
}

// ParseDayOfMonthToken parses a single token of the form \d*(L)?(W)?.
//
// A bare number yields DayOfMonth; anything else a QualifiedDayOfMonth.
func ParseDayOfMonthToken(tok string) (Fragment, error) {
	m := reDayOfMonthToken.FindStringSubmatch(tok)
	if m == nil {
		return nil, fmt.Errorf("recur: invalid day-of-month token %q", tok)
	}
	day := 0
	if m[1] != "" {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, fmt.Errorf("recur: invalid day-of-month token %q: %w", tok, err)
		}
		day = n
	}
	last, weekday := m[2] != "", m[3] != ""
	if !last && !weekday && m[1] != "" {
		return DayOfMonth(day), nil
	}
	return NewQualifiedDayOfMonth(last, weekday, day), nil
}

// ParseDayOfWeekToken parses a single token of the form DOW, DOW#N or DOWL.
func ParseDayOfWeekToken(tok string) (Fragment, error) {
	m := reDayOfWeekToken.FindStringSubmatch(tok)
	if m == nil {
		return nil, fmt.Errorf("recur: invalid day-of-week token %q", tok)
	}
	day := ParseDayOfWeek(m[1])
	switch suffix := m[2]; {
	case suffix == "":
		return NewQualifiedDayOfWeek(NoQualifier, day), nil
	case suffix == "L":
		return NewQualifiedDayOfWeek(Last, day), nil
	default:
		// "#1".."#5", guaranteed by the pattern
		return NewQualifiedDayOfWeek(Qualifier(suffix[1]-'0'), day), nil
	}
}

// ParseDayOfMonthList parses a comma separated day-of-month axis.
// "", "*" and "?" denote the wildcard.
func ParseDayOfMonthList(s string) (List, error) {
	return parseList(AxisDayOfMonth, s, ParseDayOfMonthToken)
}

// ParseDayOfWeekList parses a comma separated day-of-week axis.
// "", "*" and "?" denote the wildcard.
func ParseDayOfWeekList(s string) (List, error) {
	return parseList(AxisDayOfWeek, s, ParseDayOfWeekToken)
}

// IsWildcardToken reports whether s is one of the wildcard spellings.
func IsWildcardToken(s string) bool {
	switch strings.TrimSpace(s) {
	case "", "*", "?":
		return true
	}
	return false
}

func parseList(axis Axis, s string, parse func(string) (Fragment, error)) (List, error) {
	if IsWildcardToken(s) {
		return Wildcard(axis), nil
	}
	toks := strings.Split(strings.TrimSpace(s), ",")
	frags := make([]Fragment, 0, len(toks))
	var bad []string
	for _, tok := range toks {
		tok = strings.TrimSpace(tok)
		f, err := parse(tok)
		if err != nil {
			bad = append(bad, tok)
			continue
		}
		frags = append(frags, f)
	}
	l := List{axis: axis, frags: frags}
	if len(bad) > 0 {
		return l, &ParseError{Axis: axis, Input: s, Tokens: bad}
	}
	return l, nil
}
