package model

import (
	"fmt"
	"time"
)

// Court is a bookable resource with its own calendar and business hours.
// Courts are loaded from the registry file and are never mutated once a
// snapshot has been published; a reload produces fresh values.
//
// Fields:
//
//	ID          – calendar identifier of the court (opaque to this service).
//	Name        – display name, written into the roster as "Pista".
//	Index       – ordinal position in the registry, used for stable ordering.
//	SlotMinutes – fixed duration of every slot on this court.
//	Weekday     – business-hour intervals for Monday to Friday.
//	Weekend     – business-hour intervals for Saturday and Sunday.
type Court struct {
	ID          string
	Name        string
	Index       int
	SlotMinutes int
	Weekday     []Interval
	Weekend     []Interval
}

// SlotDuration returns the configured slot width.
func (c Court) SlotDuration() time.Duration {
	return time.Duration(c.SlotMinutes) * time.Minute
}

// IntervalsFor returns the business hours that apply to the weekday of day.
func (c Court) IntervalsFor(day time.Time) []Interval {
	switch day.Weekday() {
	case time.Saturday, time.Sunday:
		return c.Weekend
	default:
		return c.Weekday
	}
}

// ClockTime is a wall-clock time of day in minutes since midnight.
type ClockTime int

// ParseClock parses "HH:MM".
func ParseClock(s string) (ClockTime, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	return ClockTime(t.Hour()*60 + t.Minute()), nil
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// On returns the instant of this clock time on the calendar day of day,
// in day's location.
func (c ClockTime) On(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, int(c)/60, int(c)%60, 0, 0, day.Location())
}

// Interval is a business-hour window. An End of 00:00 means the window
// runs until the following midnight.
type Interval struct {
	Start ClockTime
	End   ClockTime
}

// Bounds resolves the interval to instants on day.
func (iv Interval) Bounds(day time.Time) (time.Time, time.Time) {
	start := iv.Start.On(day)
	end := iv.End.On(day)
	if iv.End == 0 {
		y, m, d := day.Date()
		end = time.Date(y, m, d+1, 0, 0, 0, 0, day.Location())
	}
	return start, end
}

// Slot is a candidate booking window on one court. Slots are computed on
// demand and never persisted.
type Slot struct {
	Court Court
	Start time.Time
	End   time.Time
}

// Equal reports whether two slots refer to the same court and start instant.
func (s Slot) Equal(o Slot) bool {
	return s.Court.ID == o.Court.ID && s.Start.Equal(o.Start)
}
