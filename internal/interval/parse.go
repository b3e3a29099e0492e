package interval

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultLayout is used for local wall-clock input when no layout is configured.
const DefaultLayout = "2006-01-02T15:04"

// ParseInstant turns caller input into an absolute instant.
//
// Values carrying an offset (RFC3339) are taken as-is. Anything else is
// parsed with layout as wall-clock time in loc. A nil loc means UTC.
func ParseInstant(value, layout string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errors.New("empty time value")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	if layout == "" {
		layout = DefaultLayout
	}
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(layout, value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", value, err)
	}
	return t, nil
}

// ParseInterval parses both bounds with ParseInstant. The result is not
// validated; callers decide whether inverted input is an error.
func ParseInterval(start, end, layout string, loc *time.Location) (Interval, error) {
	s, err := ParseInstant(start, layout, loc)
	if err != nil {
		return Interval{}, fmt.Errorf("start: %w", err)
	}
	e, err := ParseInstant(end, layout, loc)
	if err != nil {
		return Interval{}, fmt.Errorf("end: %w", err)
	}
	return Interval{Start: s, End: e}, nil
}
