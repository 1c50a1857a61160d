package domain

import (
	"fmt"
	"time"
)

// ClockWindow is a daily time window expressed as "HH:MM" wall-clock bounds.
// Both bounds are inclusive. A window whose start is later than its end is
// treated as crossing midnight (e.g. 22:00-07:00).
type ClockWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// IsZero reports whether the window is unset.
func (w ClockWindow) IsZero() bool { return w.Start == "" || w.End == "" }

// Contains reports whether t falls inside the window. Unset windows contain
// every instant.
func (w ClockWindow) Contains(t time.Time) bool {
	if w.IsZero() {
		return true
	}
	start, err := parseClock(w.Start)
	if err != nil {
		return true
	}
	end, err := parseClock(w.End)
	if err != nil {
		return true
	}
	now := t.Hour()*60 + t.Minute()

	if start > end { // crosses midnight
		return now >= start || now <= end
	}
	return now >= start && now <= end
}

func parseClock(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid clock value %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("clock value %q out of range", s)
	}
	return h*60 + m, nil
}

// WeekdayAllowed reports whether t's weekday is in days. An empty set allows
// every day. Days use time.Weekday numbering (Sunday = 0).
func WeekdayAllowed(days []time.Weekday, t time.Time) bool {
	if len(days) == 0 {
		return true
	}
	for _, d := range days {
		if d == t.Weekday() {
			return true
		}
	}
	return false
}
