package campaigns

import (
	"fmt"
	"time"
)

const clockLayout = "15:04"

// BusinessHours restricts sends to a local wall-clock window.
// Weekdays uses time.Weekday numbering (0 = Sunday); empty means every day.
// A window whose start is after its end crosses midnight and the part after
// midnight belongs to the day it started on. Equal start and end mean the
// whole day, so only Weekdays restricts sending.
type BusinessHours struct {
	Enabled  bool   `json:"enabled"`
	Start    string `json:"start,omitempty"`
	End      string `json:"end,omitempty"`
	Timezone string `json:"timezone,omitempty"`
	Weekdays []int  `json:"weekdays,omitempty"`
}

// Allows reports whether now falls inside the window. fallback is used when
// the window names no timezone. A malformed window is an error.
func (h BusinessHours) Allows(now time.Time, fallback *time.Location) (bool, error) {
	if !h.Enabled {
		return true, nil
	}

	start, err := parseClock(h.Start)
	if err != nil {
		return false, fmt.Errorf("business hours start: %w", err)
	}
	end, err := parseClock(h.End)
	if err != nil {
		return false, fmt.Errorf("business hours end: %w", err)
	}

	loc := fallback
	if h.Timezone != "" {
		loc, err = time.LoadLocation(h.Timezone)
		if err != nil {
			return false, fmt.Errorf("business hours timezone: %w", err)
		}
	}
	if loc == nil {
		loc = time.UTC
	}

	local := now.In(loc)
	minute := local.Hour()*60 + local.Minute()
	day := local.Weekday()

	var inside bool
	switch {
	case start == end:
		inside = true
	case start < end:
		inside = minute >= start && minute < end
	default:
		if minute >= start {
			inside = true
		} else if minute < end {
			inside = true
			day = (day + 6) % 7
		}
	}
	if !inside {
		return false, nil
	}
	return h.allowsDay(day), nil
}

func (h BusinessHours) allowsDay(day time.Weekday) bool {
	if len(h.Weekdays) == 0 {
		return true
	}
	for _, d := range h.Weekdays {
		if time.Weekday(d) == day {
			return true
		}
	}
	return false
}

// parseClock returns minutes since midnight.
func parseClock(s string) (int, error) {
	t, err := time.Parse(clockLayout, s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}
