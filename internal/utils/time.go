package utils

import (
	"fmt"
	"time"

	"github.com/julianstephens/pillbox/internal/constants"
	"github.com/julianstephens/pillbox/internal/models"
)

// TodayFromSettings returns today's date string (YYYY-MM-DD) as read from
// clock in the timezone from settings. Today is determined by the user's
// configured timezone, not the system timezone.
func TodayFromSettings(settings models.Settings, clock func() time.Time) (string, error) {
	now, err := NowInTimezone(settings.Timezone, clock)
	if err != nil {
		return "", err
	}
	return now.Format(constants.DateFormat), nil
}

// LoadLocation loads a timezone location from an IANA timezone name.
// If the timezone is "Local" or empty, it returns the system's local timezone.
func LoadLocation(timezone string) (*time.Location, error) {
	if timezone == "" || timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(timezone)
}

// NowInTimezone returns clock's current time in the given timezone. A nil
// clock reads time.Now.
func NowInTimezone(timezone string, clock func() time.Time) (time.Time, error) {
	loc, err := LoadLocation(timezone)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}
	if clock == nil {
		clock = time.Now
	}
	return clock().In(loc), nil
}

// ParseTime parses a time string in the standard format (HH:MM).
func ParseTime(timeStr string) (time.Time, error) {
	return time.Parse(constants.TimeFormat, timeStr)
}

// CombineDateAndTime combines a date string (YYYY-MM-DD) and time string (HH:MM)
// into a single time.Time in the specified timezone.
func CombineDateAndTime(dateStr, timeStr string, loc *time.Location) (time.Time, error) {
	date, err := time.Parse(constants.DateFormat, dateStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date format: %w", err)
	}

	timeOfDay, err := time.Parse(constants.TimeFormat, timeStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time format: %w", err)
	}

	return time.Date(
		date.Year(), date.Month(), date.Day(),
		timeOfDay.Hour(), timeOfDay.Minute(), 0, 0,
		loc,
	), nil
}

// FormatClock renders an HH:MM value for display using the configured clock
// ("12h" or "24h"). Unparseable input is returned unchanged.
func FormatClock(timeStr, clock string) string {
	t, err := ParseTime(timeStr)
	if err != nil {
		return timeStr
	}
	if clock == constants.ClockFormat12h {
		return t.Format(constants.DisplayTimeFormat12h)
	}
	return t.Format(constants.TimeFormat)
}

// IsOverdue reports whether a dose scheduled at date/time is more than grace
// in the past relative to now. The schedule is interpreted in now's location.
func IsOverdue(dateStr, timeStr string, grace time.Duration, now time.Time) (bool, error) {
	at, err := CombineDateAndTime(dateStr, timeStr, now.Location())
	if err != nil {
		return false, err
	}
	return at.Add(grace).Before(now), nil
}

// IsDueSoon reports whether a dose falls within the reminder window ending at
// its scheduled time.
func IsDueSoon(dateStr, timeStr string, lead time.Duration, now time.Time) bool {
	at, err := CombineDateAndTime(dateStr, timeStr, now.Location())
	if err != nil {
		return false
	}
	return !now.Before(at.Add(-lead)) && !now.After(at)
}

// ValidateTimezone checks if the timezone name is valid.
func ValidateTimezone(timezone string) bool {
	if timezone == "" || timezone == "Local" {
		return true
	}
	_, err := time.LoadLocation(timezone)
	return err == nil
}
