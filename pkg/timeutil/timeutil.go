// Package timeutil holds the calendar-day arithmetic used by attendance queries.
package timeutil

import (
	"fmt"
	"time"
)

// DateLayout is the ISO calendar date accepted on the wire.
const DateLayout = "2006-01-02"

var localDateTimeLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
}

// StartOfDay returns 00:00:00 of t's calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// EndOfDay returns the last representable instant (23:59:59.999999999) of t's calendar day in loc.
func EndOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 23, 59, 59, 999999999, loc)
}

// DayRange returns the inclusive bounds [StartOfDay(from), EndOfDay(to)].
func DayRange(from, to time.Time, loc *time.Location) (time.Time, time.Time) {
	return StartOfDay(from, loc), EndOfDay(to, loc)
}

// ParseDate parses a YYYY-MM-DD calendar date in loc.
func ParseDate(value string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: expected YYYY-MM-DD", value)
	}
	return d, nil
}

// ParseDateTime accepts RFC3339 timestamps and zone-less ISO local date-times, the latter read in loc.
func ParseDateTime(value string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	for _, layout := range localDateTimeLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse date-time %q: expected ISO-8601, e.g. 2025-06-01T14:30:00", value)
}
