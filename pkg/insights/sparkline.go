package insights

import (
	"slices"
	"time"
)

// SparklineDays is the length of every sparkline series.
const SparklineDays = 14

// SampleSparkline returns the daily counts for the 14 UTC days ending on
// now's day, oldest first. When that window is all zero but dailyEvents has
// data, it falls back to the latest 14 recorded days so historical issues
// still show a shape.
func SampleSparkline(dailyEvents map[string]Count, now time.Time) []float64 {
	series := make([]float64, SparklineDays)
	if len(dailyEvents) == 0 {
		return series
	}

	byDay := normalizeDays(dailyEvents)

	today := now.UTC()
	today = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)

	var total float64
	for i := range SparklineDays {
		day := today.AddDate(0, 0, i-(SparklineDays-1)).Format(dateLayout)
		series[i] = byDay[day]
		total += series[i]
	}
	if total > 0 || len(byDay) == 0 {
		return series
	}

	days := make([]string, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	slices.Sort(days)
	if len(days) > SparklineDays {
		days = days[len(days)-SparklineDays:]
	}

	clear(series)
	offset := SparklineDays - len(days)
	for i, day := range days {
		series[offset+i] = byDay[day]
	}
	return series
}

// normalizeDays keys counts by their YYYY-MM-DD day. Keys that do not start
// with a calendar date are dropped; keys landing on the same day are summed.
func normalizeDays(dailyEvents map[string]Count) map[string]float64 {
	byDay := make(map[string]float64, len(dailyEvents))
	for key, count := range dailyEvents {
		if len(key) < len(dateLayout) {
			continue
		}
		day := key[:len(dateLayout)]
		if _, err := time.Parse(dateLayout, day); err != nil {
			continue
		}
		byDay[day] += countOrZero(count)
	}
	return byDay
}

// IssueSparkline is the sampled series for one issue.
type IssueSparkline struct {
	IssueID   string    `json:"issueId"`
	Title     string    `json:"title"`
	IssueType IssueType `json:"issueType"`
	Points    []float64 `json:"points"`

	// LastSeen is the issue's last occurrence relative to the sampling day.
	LastSeen string `json:"lastSeen"`
}

// IssueSparklines samples every issue, preserving input order.
func IssueSparklines(issues []Issue, now time.Time) []IssueSparkline {
	out := make([]IssueSparkline, 0, len(issues))
	for _, issue := range issues {
		out = append(out, IssueSparkline{
			IssueID:   issue.ID,
			Title:     issue.Title,
			IssueType: issue.IssueType,
			Points:    SampleSparkline(issue.DailyEvents, now),
			LastSeen:  RelativeLabel(issue.LastSeen, now),
		})
	}
	return out
}
