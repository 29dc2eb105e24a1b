package availability

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Clock is a local time of day in minutes since midnight.
type Clock int

const (
	minutesPerDay = 24 * 60
	dateLayout    = "2006-01-02"
)

// ParseClock accepts "HH:MM" and "HH:MM:SS". Seconds must be zero-padded but
// are otherwise ignored; slot boundaries are whole minutes.
func ParseClock(s string) (Clock, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("invalid time %q: expected HH:MM or HH:MM:SS", s)
	}
	for _, p := range parts {
		if len(p) != 2 {
			return 0, fmt.Errorf("invalid time %q: expected HH:MM or HH:MM:SS", s)
		}
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	if len(parts) == 3 {
		sec, err := strconv.Atoi(parts[2])
		if err != nil || sec < 0 || sec > 59 {
			return 0, fmt.Errorf("invalid second in %q", s)
		}
	}
	return Clock(h*60 + m), nil
}

// String renders the clock as "HH:MM".
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// Add returns c shifted by minutes. The result may pass midnight; callers
// compare against a window end before rendering it.
func (c Clock) Add(minutes int) Clock {
	return c + Clock(minutes)
}

// NormalizeTime is applied to every time string entering the system, whether
// from the store, a request body or a session snapshot. It is idempotent.
func NormalizeTime(s string) (string, error) {
	c, err := ParseClock(s)
	if err != nil {
		return "", err
	}
	return c.String(), nil
}

// ParseDate parses a "YYYY-MM-DD" calendar date as midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	d, err := time.ParseInLocation(dateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return d, nil
}

// FormatDate renders the calendar date of t as "YYYY-MM-DD".
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}

// DateOnly truncates t to midnight in its own location.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
