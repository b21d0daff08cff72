package timeutils

import (
	"fmt"
	"strings"
	"time"
)

// Graph API timestamps arrive in a handful of near-ISO-8601 shapes:
// "2024-05-01T10:00:00+0000" (offset without colon), "...Z", or plain
// RFC3339. Every comparison inside the engine runs on UTC instants, so
// everything funnels through ParseGraphTime first.
var graphLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05",
}

// ParseGraphTime normalizes a Graph API time string to a UTC instant.
func ParseGraphTime(value string) (time.Time, error) {
	s := strings.TrimSpace(value)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty time string")
	}

	for _, layout := range graphLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized graph time format: %q", s)
}

// Unit is a coarse duration unit used by inactivity thresholds.
type Unit string

const (
	UnitMinutes Unit = "minutes"
	UnitHours   Unit = "hours"
	UnitDays    Unit = "days"
	UnitWeeks   Unit = "weeks"
	UnitMonths  Unit = "months"
)

// ValidUnit reports whether u is one of the supported units.
func ValidUnit(u Unit) bool {
	switch u {
	case UnitMinutes, UnitHours, UnitDays, UnitWeeks, UnitMonths:
		return true
	}
	return false
}

// ToDuration converts magnitude+unit into a time.Duration. Months use a
// 30-day approximation, matching how thresholds were always computed.
func ToDuration(magnitude int, u Unit) (time.Duration, error) {
	if magnitude <= 0 {
		return 0, fmt.Errorf("magnitude must be positive, got %d", magnitude)
	}
	switch u {
	case UnitMinutes:
		return time.Duration(magnitude) * time.Minute, nil
	case UnitHours:
		return time.Duration(magnitude) * time.Hour, nil
	case UnitDays:
		return time.Duration(magnitude) * 24 * time.Hour, nil
	case UnitWeeks:
		return time.Duration(magnitude) * 7 * 24 * time.Hour, nil
	case UnitMonths:
		return time.Duration(magnitude) * 30 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unknown unit %q", u)
	}
}
