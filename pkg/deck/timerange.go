package deck

import (
	"fmt"
	"strings"
	"time"
)

// TimeRange is the window of records a dashboard covers.
type TimeRange string

const (
	Range24h TimeRange = "24h"
	Range7d  TimeRange = "7d"
	Range30d TimeRange = "30d"
	Range90d TimeRange = "90d"
	RangeAll TimeRange = "all"

	DefaultTimeRange = Range30d
)

var rangeDurations = map[TimeRange]time.Duration{
	Range24h: 24 * time.Hour,
	Range7d:  7 * 24 * time.Hour,
	Range30d: 30 * 24 * time.Hour,
	Range90d: 90 * 24 * time.Hour,
	RangeAll: 0,
}

// ParseTimeRange parses a range name. An empty value yields DefaultTimeRange.
func ParseTimeRange(value string) (TimeRange, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return DefaultTimeRange, nil
	}

	r := TimeRange(value)
	if _, ok := rangeDurations[r]; !ok {
		return "", fmt.Errorf("unknown time range %q (expected 24h, 7d, 30d, 90d or all)", value)
	}
	return r, nil
}

// Since returns the inclusive lower bound of the range relative to now. The
// zero time means unbounded.
func (r TimeRange) Since(now time.Time) time.Time {
	d, ok := rangeDurations[r]
	if !ok || d == 0 {
		return time.Time{}
	}
	return now.Add(-d)
}
