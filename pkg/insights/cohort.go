package insights

import (
	"slices"
	"time"
)

const (
	// DefaultCohortCount is how many of the most recent cohorts are reported.
	DefaultCohortCount = 6

	// DefaultCohortWeeks is how many weekly offsets each cohort tracks.
	DefaultCohortWeeks = 6

	dateLayout = "2006-01-02"
	week       = 7 * 24 * time.Hour
)

// CohortOption configures a CohortBuilder.
type CohortOption func(*CohortBuilder)

// WithCohorts sets how many trailing cohorts are returned.
func WithCohorts(n int) CohortOption {
	return func(b *CohortBuilder) {
		if n > 0 {
			b.cohorts = n
		}
	}
}

// WithWeeks sets how many weekly offsets each cohort reports.
func WithWeeks(n int) CohortOption {
	return func(b *CohortBuilder) {
		if n > 0 {
			b.weeks = n
		}
	}
}

// CohortBuilder groups users into the UTC week (Sunday start) of their first
// session and tracks what share of them come back in later weeks.
type CohortBuilder struct {
	cohorts int
	weeks   int
}

func NewCohortBuilder(opts ...CohortOption) *CohortBuilder {
	b := &CohortBuilder{cohorts: DefaultCohortCount, weeks: DefaultCohortWeeks}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// BuildCohorts runs the default builder over sessions.
func BuildCohorts(sessions []Session) []CohortRow {
	return NewCohortBuilder().Build(sessions)
}

// Build returns the trailing cohorts ordered oldest to newest.
func (b *CohortBuilder) Build(sessions []Session) []CohortRow {
	weeklyActive := map[time.Time]map[string]bool{}
	firstWeek := map[string]time.Time{}

	for _, session := range sessions {
		user := UserKey(session)
		if user == "" || !session.StartedAt.Valid() {
			continue
		}

		start := WeekStart(session.StartedAt.Time)
		if weeklyActive[start] == nil {
			weeklyActive[start] = map[string]bool{}
		}
		weeklyActive[start][user] = true

		if first, ok := firstWeek[user]; !ok || start.Before(first) {
			firstWeek[user] = start
		}
	}

	if len(weeklyActive) == 0 {
		return []CohortRow{}
	}

	members := map[time.Time][]string{}
	for user, start := range firstWeek {
		members[start] = append(members[start], user)
	}

	weeks := make([]time.Time, 0, len(weeklyActive))
	for start := range weeklyActive {
		weeks = append(weeks, start)
	}
	slices.SortFunc(weeks, func(a, c time.Time) int { return a.Compare(c) })

	rows := []CohortRow{}
	for idx, start := range weeks {
		cohort := members[start]
		if len(cohort) == 0 {
			continue
		}

		row := CohortRow{
			CohortWeekStart: start.Format(dateLayout),
			UserCount:       len(cohort),
			Retention:       make([]*float64, b.weeks),
		}
		for offset := range b.weeks {
			// The horizon is counted in observed weeks, not calendar weeks.
			if idx+offset >= len(weeks) {
				continue
			}
			if offset == 0 {
				row.Retention[offset] = ptr(100)
				continue
			}

			active := weeklyActive[start.Add(time.Duration(offset)*week)]
			retained := 0
			for _, user := range cohort {
				if active[user] {
					retained++
				}
			}
			row.Retention[offset] = ptr(100 * float64(retained) / float64(len(cohort)))
		}
		rows = append(rows, row)
	}

	if len(rows) > b.cohorts {
		rows = rows[len(rows)-b.cohorts:]
	}
	return rows
}

// WeekStart is the UTC midnight of the Sunday on or before t.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return day.AddDate(0, 0, -int(day.Weekday()))
}

const (
	TrendImproving        = "improving"
	TrendDeclining        = "declining"
	TrendStable           = "stable"
	TrendInsufficientData = "insufficient_data"

	cohortTrendDeadband = 5.0
	minCohortsForTrend  = 4
)

// CohortSummary condenses a cohort table into headline numbers.
type CohortSummary struct {
	TotalCohorts     int      `json:"totalCohorts"`
	TotalUsers       int      `json:"totalUsers"`
	Week1Retention   *float64 `json:"week1Retention"`
	AverageRetention *float64 `json:"averageRetention"`
	Trend            string   `json:"trend"`
}

// SummarizeCohorts averages the observed retention of rows. Unobserved cells
// are left out rather than counted as zero.
func SummarizeCohorts(rows []CohortRow) CohortSummary {
	summary := CohortSummary{TotalCohorts: len(rows), Trend: TrendInsufficientData}

	var week1, all []float64
	cohortAverages := make([]*float64, 0, len(rows))
	for _, row := range rows {
		summary.TotalUsers += row.UserCount

		var observed []float64
		for offset, value := range row.Retention {
			if offset == 0 || value == nil {
				continue
			}
			observed = append(observed, *value)
			if offset == 1 {
				week1 = append(week1, *value)
			}
		}
		all = append(all, observed...)
		cohortAverages = append(cohortAverages, mean(observed))
	}

	summary.Week1Retention = mean(week1)
	summary.AverageRetention = mean(all)
	summary.Trend = cohortTrend(cohortAverages)
	return summary
}

// cohortTrend compares the later half of the cohorts against the earlier half.
func cohortTrend(averages []*float64) string {
	var observed []float64
	for _, avg := range averages {
		if avg != nil {
			observed = append(observed, *avg)
		}
	}
	if len(observed) < minCohortsForTrend {
		return TrendInsufficientData
	}

	mid := len(observed) / 2
	early := mean(observed[:mid])
	late := mean(observed[mid:])
	diff := *late - *early

	switch {
	case diff > cohortTrendDeadband:
		return TrendImproving
	case diff < -cohortTrendDeadband:
		return TrendDeclining
	default:
		return TrendStable
	}
}

func mean(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	total := 0.0
	for _, v := range values {
		total += v
	}
	return ptr(total / float64(len(values)))
}

func ptr(v float64) *float64 {
	return &v
}
