package meter

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Expression carries one user-supplied window request. Exactly one form may
// be populated: Day, From+To, Last, or Since.
type Expression struct {
	Day   string // calendar day, YYYY-MM-DD
	From  string // ISO 8601 start instant, paired with To
	To    string // ISO 8601 end instant, paired with From
	Last  string // relative duration <N><unit>, unit one of m h d w
	Since string // YYYY-MM-DD or full ISO 8601; the window runs to now
}

func (e Expression) forms() int {
	n := 0
	if e.Day != "" {
		n++
	}
	if e.From != "" || e.To != "" {
		n++
	}
	if e.Last != "" {
		n++
	}
	if e.Since != "" {
		n++
	}
	return n
}

// String renders the expression the way the user phrased it, for logs and
// report headers.
func (e Expression) String() string {
	switch {
	case e.Day != "":
		return "day " + e.Day
	case e.Last != "":
		return "last " + e.Last
	case e.Since != "":
		return "since " + e.Since
	case e.From != "" || e.To != "":
		return e.From + " .. " + e.To
	}
	return "(none)"
}

// Instant layouts accepted for From/To/Since, tried in order. Layouts
// without an offset are interpreted in the caller's location.
var instantLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ResolveWindow turns an expression into a concrete [start, end) window.
// Calendar forms (Day, and date-only or offset-free instants) are anchored
// in loc; nil loc means the system zone. now is always supplied by the
// caller, never read from a clock here.
func ResolveWindow(expr Expression, loc *time.Location, now time.Time) (Window, error) {
	if loc == nil {
		loc = time.Local
	}
	switch n := expr.forms(); {
	case n == 0:
		return Window{}, fmt.Errorf("%w: one of day, from/to, last or since is required", ErrInvalidExpression)
	case n > 1:
		return Window{}, fmt.Errorf("%w: day, from/to, last and since are mutually exclusive", ErrInvalidExpression)
	}

	switch {
	case expr.Day != "":
		start, err := time.ParseInLocation("2006-01-02", expr.Day, loc)
		if err != nil {
			return Window{}, fmt.Errorf("%w: day %q is not YYYY-MM-DD", ErrInvalidExpression, expr.Day)
		}
		return Window{Start: start, End: start.Add(24 * time.Hour)}, nil

	case expr.Last != "":
		d, err := parseLast(expr.Last)
		if err != nil {
			return Window{}, err
		}
		return Window{Start: now.Add(-d), End: now}, nil

	case expr.Since != "":
		start, err := parseInstant(expr.Since, loc)
		if err != nil {
			return Window{}, err
		}
		return Window{Start: start, End: now}, nil

	default:
		if expr.From == "" || expr.To == "" {
			return Window{}, fmt.Errorf("%w: from and to must be given together", ErrInvalidExpression)
		}
		from, err := parseInstant(expr.From, loc)
		if err != nil {
			return Window{}, err
		}
		to, err := parseInstant(expr.To, loc)
		if err != nil {
			return Window{}, err
		}
		if !to.After(from) {
			return Window{}, fmt.Errorf("%w: to %s is not after from %s", ErrInvalidExpression,
				to.Format(time.RFC3339), from.Format(time.RFC3339))
		}
		return Window{Start: from, End: to}, nil
	}
}

func parseInstant(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range instantLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q is not an ISO 8601 instant", ErrInvalidExpression, s)
}

func parseLast(s string) (time.Duration, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) < 2 {
		return 0, fmt.Errorf("%w: last wants <N><unit>, e.g. 30m, 24h, 7d", ErrInvalidExpression)
	}
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: duration count in %q must be a positive integer", ErrInvalidExpression, s)
	}
	var unit time.Duration
	switch s[len(s)-1] {
	case 'm':
		unit = time.Minute
	case 'h':
		unit = time.Hour
	case 'd':
		unit = 24 * time.Hour
	case 'w':
		unit = 7 * 24 * time.Hour
	default:
		return 0, fmt.Errorf("%w: unit in %q must be one of m, h, d, w", ErrInvalidExpression, s)
	}
	return time.Duration(n) * unit, nil
}
