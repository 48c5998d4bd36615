package utils

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// timestampLayouts lists the ISO-8601 shapes accepted from upstream data sources.
// Layouts without a zone are interpreted as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp returns a time from an ISO-8601 string or an error.
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty time value")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse time %q: unsupported format", value)
}

// WholeDaysBetween returns floor((end - start) / 24h). Negative when end precedes start.
func WholeDaysBetween(start, end time.Time) int {
	return int(math.Floor(end.Sub(start).Hours() / 24))
}

// CalendarDate truncates t to its calendar day in its own location.
func CalendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FractionalHour returns the hour of day including minutes, e.g. 7:30 -> 7.5.
func FractionalHour(t time.Time) float64 {
	return float64(t.Hour()) + float64(t.Minute())/60.0
}
