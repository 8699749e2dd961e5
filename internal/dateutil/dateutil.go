// Package dateutil provides instant parsing and span formatting utilities.
package dateutil

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Validation errors.
var (
	ErrInvalidInstantFormat = errors.New("instant must be RFC 3339, YYYY-MM-DDTHH:MM, YYYY-MM-DD HH:MM, YYYY-MM-DD, or a keyword like tomorrow")
	ErrEmptyInstant         = errors.New("instant cannot be empty")
)

// DisplayLayout is the layout used to print instants.
const DisplayLayout = "2006-01-02 15:04"

// layouts without a zone are interpreted in the caller's location.
var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04", // datetime-local form input
	"2006-01-02 15:04",
	"2006-01-02",
}

// weekdayMap maps weekday names to time.Weekday values.
var weekdayMap = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseInstant parses an instant. Accepted forms:
//   - RFC 3339 with zone: "2024-01-10T09:00:00Z"
//   - Local date-time: "2024-01-10T09:00", "2024-01-10 09:00"
//   - Local date: "2024-01-10" (midnight)
//   - Keywords: "now", "today", "tomorrow"
//   - Weekday names: "monday" through "sunday" (next occurrence, always future)
//   - Next prefixed: "next-monday" through "next-sunday", "next-week"
//
// Inputs without a zone are read in loc. Keywords are relative to now and
// resolve to midnight, except "now".
func ParseInstant(s string, now time.Time, loc *time.Location) (time.Time, error) {
	input := strings.TrimSpace(s)
	if input == "" {
		return time.Time{}, ErrEmptyInstant
	}
	if loc == nil {
		loc = time.Local
	}

	if t, err := time.Parse(time.RFC3339Nano, input); err == nil {
		return t, nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, input, loc); err == nil {
			return t, nil
		}
	}

	if t, ok := parseKeyword(strings.ToLower(input), now.In(loc)); ok {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidInstantFormat, s)
}

// ParseOptionalInstant is ParseInstant that maps an empty string to nil.
func ParseOptionalInstant(s string, now time.Time, loc *time.Location) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := ParseInstant(s, now, loc)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseKeyword(input string, now time.Time) (time.Time, bool) {
	today := TruncateToDay(now)

	switch input {
	case "now":
		return now, true
	case "today":
		return today, true
	case "tomorrow":
		return today.AddDate(0, 0, 1), true
	case "next-week":
		return today.AddDate(0, 0, 7), true
	}

	name := strings.TrimPrefix(input, "next-")
	if target, ok := weekdayMap[name]; ok {
		return nextWeekday(today, target), true
	}
	return time.Time{}, false
}

// TruncateToDay returns t with time set to midnight.
func TruncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// WeekRange returns the start of the ISO week containing t and the start
// of the following week, both at local midnight in t's location.
func WeekRange(t time.Time) (monday, nextMonday time.Time) {
	t = TruncateToDay(t)
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday is day 7 in an ISO week
	}
	monday = t.AddDate(0, 0, -(weekday - 1))
	return monday, monday.AddDate(0, 0, 7)
}

// nextWeekday returns the next occurrence of the given weekday after today.
// If today is the target weekday, returns one week from today.
func nextWeekday(today time.Time, target time.Weekday) time.Time {
	current := today.Weekday()
	daysUntil := int(target) - int(current)
	if daysUntil <= 0 {
		daysUntil += 7
	}
	return today.AddDate(0, 0, daysUntil)
}

// FormatInstant formats t in loc using DisplayLayout.
func FormatInstant(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(DisplayLayout)
}

// FormatSpan formats a duration as days, hours and minutes, e.g. "2d 4h".
// Sub-minute remainders are dropped; anything shorter than a minute is "<1m".
func FormatSpan(d time.Duration) string {
	sign := ""
	if d < 0 {
		sign = "-"
		d = -d
	}
	if d < time.Minute {
		if d == 0 {
			return "0m"
		}
		return sign + "<1m"
	}

	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	hours := d / time.Hour
	d -= hours * time.Hour
	mins := d / time.Minute

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if mins > 0 {
		parts = append(parts, fmt.Sprintf("%dm", mins))
	}
	return sign + strings.Join(parts, " ")
}

// FormatHours formats a signed hour offset, e.g. "+24h" or "-1.5h".
func FormatHours(h float64) string {
	return fmt.Sprintf("%+gh", h)
}
