package preference

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dukerupert/nudge/internal/model"
)

// InQuietHours reports whether nowUTC, converted to local time in timezone,
// falls inside the [start, end) window. The window wraps midnight when end is
// before start. An empty window (start == end), an unparsable bound, or an
// unknown timezone all yield false.
func InQuietHours(nowUTC time.Time, timezone, start, end string) bool {
	loc, err := LoadLocation(timezone)
	if err != nil {
		return false
	}
	s, err := ParseClock(start)
	if err != nil {
		return false
	}
	e, err := ParseClock(end)
	if err != nil {
		return false
	}

	local := nowUTC.In(loc)
	m := local.Hour()*60 + local.Minute()

	switch {
	case s == e:
		return false
	case s < e:
		return m >= s && m < e
	default:
		return m >= s || m < e
	}
}

// DigestDueAt reports whether a digest of the given cadence is due at now.
// A digest becomes due at digestTime local each day (daily) or seven days
// after the last one (weekly), and stays due until recorded as sent.
func DigestDueAt(now time.Time, loc *time.Location, cadence model.DigestCadence, digestTime string, last *time.Time) bool {
	if cadence != model.DigestDaily && cadence != model.DigestWeekly {
		return false
	}
	minutes, err := ParseClock(digestTime)
	if err != nil {
		return false
	}

	local := now.In(loc)
	threshold := time.Date(local.Year(), local.Month(), local.Day(), minutes/60, minutes%60, 0, 0, loc)
	if local.Before(threshold) {
		return false
	}
	if last == nil {
		return true
	}
	if cadence == model.DigestWeekly {
		threshold = threshold.AddDate(0, 0, -6)
	}
	return last.Before(threshold)
}

// ParseClock parses "HH:MM" (or "HH:MM:SS") into minutes after midnight.
func ParseClock(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h*60 + m, nil
}

// LoadLocation resolves an IANA timezone name. The empty name is UTC.
func LoadLocation(name string) (*time.Location, error) {
	if strings.TrimSpace(name) == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return loc, nil
}

// DaysUntil returns the whole calendar days from now to date, both taken in
// loc. date is a model.DateLayout string.
func DaysUntil(now time.Time, loc *time.Location, date string) (int, error) {
	due, err := time.ParseInLocation(model.DateLayout, strings.TrimSpace(firstN(date, len(model.DateLayout))), loc)
	if err != nil {
		return 0, fmt.Errorf("parse date %q: %w", date, err)
	}
	local := now.In(loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	// Round to absorb 23h/25h days across DST changes.
	return int(due.Sub(today).Round(24*time.Hour) / (24 * time.Hour)), nil
}

// SameDay reports whether a and b fall on the same calendar day in loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

func firstN(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
