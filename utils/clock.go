package utils

import (
	"fmt"
	"time"
)

// Windows, exceptions and bookings carry "HH:MM" wall-clock strings and
// "YYYY-MM-DD" dates. These helpers do the arithmetic on them.

// ParseClock converts "HH:MM" (seconds tolerated and ignored) to minutes
// since midnight.
func ParseClock(value string) (int, error) {
	var hours, minutes, seconds int
	if _, err := fmt.Sscanf(value, "%d:%d:%d", &hours, &minutes, &seconds); err != nil {
		if _, err := fmt.Sscanf(value, "%d:%d", &hours, &minutes); err != nil {
			return 0, fmt.Errorf("invalid time %q", value)
		}
	}
	if hours < 0 || hours > 23 || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("invalid time %q", value)
	}
	return hours*60 + minutes, nil
}

// FormatClock renders minutes since midnight as "HH:MM".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// AddDays shifts a "YYYY-MM-DD" date.
func AddDays(date string, days int) (string, error) {
	parsed, err := time.Parse("2006-01-02", date)
	if err != nil {
		return "", fmt.Errorf("invalid date %q", date)
	}
	return parsed.AddDate(0, 0, days).Format("2006-01-02"), nil
}

// DayOfWeek returns 0 (Sunday) through 6 (Saturday) for a "YYYY-MM-DD" date.
func DayOfWeek(date string) (int, error) {
	parsed, err := time.Parse("2006-01-02", date)
	if err != nil {
		return 0, fmt.Errorf("invalid date %q", date)
	}
	return int(parsed.Weekday()), nil
}

// SessionStart combines a booking's date and start time into a timestamp.
func SessionStart(date, startTime string) (time.Time, error) {
	return time.Parse("2006-01-02 15:04", fmt.Sprintf("%s %s", date, startTime[:5]))
}

// Overlaps is the inclusive-exclusive interval intersection test; intervals
// are minutes since midnight.
func Overlaps(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && bStart < aEnd
}
