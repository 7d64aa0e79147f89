package workflow

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ScheduleSpec is the parsed form of a schedule trigger expression,
// either "daily:HH:MM" or "weekly:<day>:HH:MM".
type ScheduleSpec struct {
	Weekday    time.Weekday
	HasWeekday bool
	Hour       int
	Minute     int
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseSchedule parses a schedule expression. Expressions are validated at
// trigger load time, not at evaluation time.
func ParseSchedule(expr string) (ScheduleSpec, error) {
	parts := strings.Split(expr, ":")

	switch {
	case len(parts) == 3 && parts[0] == "daily":
		hour, minute, err := parseClock(parts[1], parts[2])
		if err != nil {
			return ScheduleSpec{}, fmt.Errorf("invalid schedule %q: %w", expr, err)
		}
		return ScheduleSpec{Hour: hour, Minute: minute}, nil

	case len(parts) == 4 && parts[0] == "weekly":
		weekday, ok := weekdays[strings.ToLower(parts[1])]
		if !ok {
			return ScheduleSpec{}, fmt.Errorf("invalid schedule %q: unknown weekday %q", expr, parts[1])
		}
		hour, minute, err := parseClock(parts[2], parts[3])
		if err != nil {
			return ScheduleSpec{}, fmt.Errorf("invalid schedule %q: %w", expr, err)
		}
		return ScheduleSpec{Weekday: weekday, HasWeekday: true, Hour: hour, Minute: minute}, nil

	default:
		return ScheduleSpec{}, fmt.Errorf("invalid schedule %q: expected daily:HH:MM or weekly:<day>:HH:MM", expr)
	}
}

func parseClock(hourStr, minuteStr string) (int, int, error) {
	hour, err := strconv.Atoi(hourStr)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("hour %q out of range", hourStr)
	}
	minute, err := strconv.Atoi(minuteStr)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("minute %q out of range", minuteStr)
	}
	return hour, minute, nil
}

// WindowStart returns the configured occurrence for the day of the given
// time. ok is false when the spec is weekly and the weekday does not match.
func (s ScheduleSpec) WindowStart(now time.Time) (time.Time, bool) {
	if s.HasWeekday && now.Weekday() != s.Weekday {
		return time.Time{}, false
	}
	start := time.Date(now.Year(), now.Month(), now.Day(), s.Hour, s.Minute, 0, 0, now.Location())
	return start, true
}

// DueAt reports whether now falls inside the firing window that starts at
// the configured time. lastFired is the de-duplication watermark: a window
// that already fired is not due again.
func (s ScheduleSpec) DueAt(now time.Time, window time.Duration, lastFired *time.Time) (time.Time, bool) {
	start, ok := s.WindowStart(now)
	if !ok {
		return time.Time{}, false
	}
	if now.Before(start) || now.Sub(start) >= window {
		return time.Time{}, false
	}
	if lastFired != nil && !lastFired.Before(start) {
		return time.Time{}, false
	}
	return start, true
}
