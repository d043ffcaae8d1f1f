package deck

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/papercomputeco/insights/pkg/ingest"
	"github.com/papercomputeco/insights/pkg/insights"
	"github.com/papercomputeco/insights/pkg/logger"
	"github.com/papercomputeco/insights/pkg/storage"
)

// DemoProject is the project demo records are seeded under.
const DemoProject = "demo"

const (
	demoSeed      = 20240107
	demoUsers     = 36
	demoDays      = 42
	demoTrendDays = 28
	demoChunkSize = 50
)

var demoScreens = []string{
	"Home", "Search", "Product", "Cart", "Checkout", "Payment",
	"Orders", "Profile", "Settings", "Help",
}

// seedIssue is a hand-written issue fixture. weight shapes its daily events.
type seedIssue struct {
	id     string
	title  string
	kind   insights.IssueType
	weight float64
	users  float64
}

var demoIssues = []seedIssue{
	{id: "iss-checkout-crash", title: "NullPointerException in CheckoutViewModel", kind: insights.IssueTypeCrash, weight: 9, users: 41},
	{id: "iss-payment-anr", title: "Main thread blocked during payment tokenization", kind: insights.IssueTypeANR, weight: 4, users: 17},
	{id: "iss-search-api", title: "GET /v2/search p95 above 2s", kind: insights.IssueTypeAPILatency, weight: 22, users: 88},
	{id: "iss-cart-rage", title: "Repeated taps on disabled Add to Cart", kind: insights.IssueTypeRageTap, weight: 13, users: 52},
	{id: "iss-profile-error", title: "Avatar upload fails with 413", kind: insights.IssueTypeError, weight: 6, users: 23},
	{id: "iss-onboarding-friction", title: "Users abandon onboarding at step 3", kind: insights.IssueTypeUXFriction, weight: 11, users: 64},
	{id: "iss-cold-start", title: "Cold start above 4s on low-end Android", kind: insights.IssueTypePerformance, weight: 7, users: 35},
}

// SeedResult reports what SeedDemo wrote.
type SeedResult struct {
	Sessions    int
	Issues      int
	DailyTrends int
}

// SeedDemo writes the demo dataset for project through an ingest pool. It
// refuses to touch a store that already holds records unless overwrite is
// set, in which case the project is reset first.
func SeedDemo(ctx context.Context, driver storage.Driver, project string, now time.Time, overwrite bool, log *slog.Logger) (SeedResult, error) {
	if log == nil {
		log = logger.Nop()
	}
	project = storage.ProjectOrDefault(project)

	if overwrite {
		if err := driver.Reset(ctx, project); err != nil {
			return SeedResult{}, fmt.Errorf("resetting project %s: %w", project, err)
		}
	} else {
		count, err := driver.Count(ctx)
		if err != nil {
			return SeedResult{}, fmt.Errorf("counting records: %w", err)
		}
		if count > 0 {
			return SeedResult{}, fmt.Errorf("store already has %d records (use --overwrite)", count)
		}
	}

	batch := DemoBatch(project, now)

	pool, err := ingest.NewPool(&ingest.Config{Driver: driver, Logger: log})
	if err != nil {
		return SeedResult{}, err
	}
	defer pool.Close()

	for _, chunk := range splitBatch(batch, demoChunkSize) {
		if err := pool.Submit(ctx, chunk); err != nil {
			return SeedResult{}, err
		}
	}

	return SeedResult{
		Sessions:    len(batch.Sessions),
		Issues:      len(batch.Issues),
		DailyTrends: len(batch.DailyTrends),
	}, nil
}

// DemoChunks is DemoBatch split into ingest-sized batches.
func DemoChunks(project string, now time.Time) []storage.Batch {
	return splitBatch(DemoBatch(project, now), demoChunkSize)
}

// splitBatch breaks batch into batches of at most size records per kind.
func splitBatch(batch storage.Batch, size int) []storage.Batch {
	var out []storage.Batch
	for sessions := range slices.Chunk(batch.Sessions, size) {
		out = append(out, storage.Batch{Project: batch.Project, Sessions: sessions})
	}
	for issues := range slices.Chunk(batch.Issues, size) {
		out = append(out, storage.Batch{Project: batch.Project, Issues: issues})
	}
	for trends := range slices.Chunk(batch.DailyTrends, size) {
		out = append(out, storage.Batch{Project: batch.Project, DailyTrends: trends})
	}
	return out
}

// DemoBatch builds the demo dataset ending at now. The same project and day
// always produce the same records.
func DemoBatch(project string, now time.Time) storage.Batch {
	today := now.UTC().Truncate(24 * time.Hour)
	rng := rand.New(rand.NewPCG(demoSeed, uint64(today.Unix())))

	batch := storage.Batch{Project: storage.ProjectOrDefault(project)}
	batch.Sessions = demoSessions(rng, today)
	batch.Issues = demoIssueRecords(rng, today)
	batch.DailyTrends = demoTrends(rng, today)
	return batch
}

func demoSessions(rng *rand.Rand, today time.Time) []insights.Session {
	var sessions []insights.Session
	for user := range demoUsers {
		// Users join over the whole period; some return often.
		firstDay := rng.IntN(demoDays)
		visits := 1 + rng.IntN(3)
		if user%7 == 0 {
			visits += 5
		}

		for visit := range visits {
			day := firstDay - visit*(1+rng.IntN(6))
			if day < 0 {
				break
			}
			sessions = append(sessions, demoSession(rng, today, user, len(sessions), day))
		}
	}

	sessions = append(sessions, demoEdgeSessions(today)...)
	return sessions
}

func demoSession(rng *rand.Rand, today time.Time, user, n, daysAgo int) insights.Session {
	started := today.AddDate(0, 0, -daysAgo).Add(time.Duration(7+rng.IntN(15))*time.Hour + time.Duration(rng.IntN(60))*time.Minute)

	s := insights.Session{
		ID:               fmt.Sprintf("demo-s%03d", n),
		StartedAt:        insights.At(started),
		DurationSeconds:  insights.Count(5 + rng.IntN(900)),
		Platform:         []string{"ios", "android", "web"}[user%3],
		TouchCount:       insights.Count(rng.IntN(160)),
		InteractionScore: insights.Count(rng.IntN(100)),
		ExplorationScore: insights.Count(rng.IntN(100)),
		APITotalCount:    insights.Count(10 + rng.IntN(140)),
		APIAvgResponseMs: insights.Count(120 + rng.IntN(1400)),
		AppStartupTimeMs: insights.Count(600 + rng.IntN(3200)),
	}

	if user%5 == 4 {
		s.AnonymousID = fmt.Sprintf("anon-%02d", user)
	} else {
		s.UserID = fmt.Sprintf("user-%02d", user)
	}
	s.DeviceID = fmt.Sprintf("device-%02d", user)

	screens := 1 + rng.IntN(len(demoScreens))
	s.ScreensVisited = slices.Clone(demoScreens[:screens])

	switch roll := rng.IntN(20); {
	case roll == 0:
		s.CrashCount = 1
	case roll == 1:
		s.ANRCount = 1
	case roll < 5:
		s.ErrorCount = insights.Count(1 + rng.IntN(4))
	case roll < 7:
		s.RageTapCount = insights.Count(1 + rng.IntN(6))
	}
	if rng.IntN(6) == 0 {
		s.DeadTapCount = insights.Count(1 + rng.IntN(5))
	}
	if rng.IntN(8) == 0 {
		s.APIErrorCount = insights.Count(1 + rng.IntN(9))
	}
	if rng.IntN(10) == 0 {
		s.IsConstrained = true
		s.CellularGeneration = "3g"
	}
	if rng.IntN(12) == 0 {
		s.IsReplayExpired = true
	}

	return s
}

// demoEdgeSessions are fixed sessions that exercise the rarer recommendation
// categories regardless of the random draw.
func demoEdgeSessions(today time.Time) []insights.Session {
	at := func(hoursAgo int) insights.Timestamp {
		return insights.At(today.Add(-time.Duration(hoursAgo) * time.Hour))
	}
	notPromoted := false

	return []insights.Session{
		{
			ID: "demo-ghost", StartedAt: at(5), DurationSeconds: 2, Platform: "android",
			UserID: "user-ghost",
		},
		{
			ID: "demo-rage-quit", StartedAt: at(9), DurationSeconds: 18, Platform: "ios",
			UserID: "user-quit", RageTapCount: 7, TouchCount: 40, InteractionScore: 12,
		},
		{
			ID: "demo-lost", StartedAt: at(14), DurationSeconds: 240, Platform: "ios",
			AnonymousDisplayName: "Curious Otter", TouchCount: 3,
			ScreensVisited: []string{"Home", "Search", "Help", "Settings", "Profile", "Help"},
		},
		{
			ID: "demo-slow-start", StartedAt: at(30), DurationSeconds: 95, Platform: "android",
			UserID: "user-lowend", AppStartupTimeMs: 5400, CellularGeneration: "2g",
		},
		{
			ID: "demo-hidden", StartedAt: at(2), DurationSeconds: 600, Platform: "ios",
			UserID: "user-hidden", CrashCount: 3, ReplayPromoted: &notPromoted,
		},
	}
}

func demoIssueRecords(rng *rand.Rand, today time.Time) []insights.Issue {
	issues := make([]insights.Issue, 0, len(demoIssues))
	for i, fixture := range demoIssues {
		daily := make(map[string]insights.Count, insights.SparklineDays)
		total := 0.0
		for day := range insights.SparklineDays {
			// Alternate issues trend up and down across the window.
			slope := float64(day) / float64(insights.SparklineDays)
			if i%2 == 1 {
				slope = 1 - slope
			}
			events := float64(int(fixture.weight * (0.5 + slope) * (0.75 + rng.Float64()/2)))
			date := today.AddDate(0, 0, day-insights.SparklineDays+1).Format(time.DateOnly)
			daily[date] = insights.Count(events)
			total += events
		}

		issues = append(issues, insights.Issue{
			ID:          fixture.id,
			Title:       fixture.title,
			IssueType:   fixture.kind,
			EventCount:  insights.Count(total),
			UserCount:   insights.Count(fixture.users),
			LastSeen:    insights.At(today.Add(-time.Duration(1+i) * time.Hour)),
			DailyEvents: daily,
		})
	}
	return issues
}

func demoTrends(rng *rand.Rand, today time.Time) []insights.DailyTrendRow {
	rows := make([]insights.DailyTrendRow, 0, demoTrendDays)
	for day := range demoTrendDays {
		// Traffic grows slowly so the momentum comparison has a direction.
		growth := 1 + float64(day)/float64(2*demoTrendDays)
		sessions := float64(int(400 * growth * (0.9 + rng.Float64()/5)))
		calls := sessions * 18
		dau := float64(int(sessions * 0.62))

		rows = append(rows, insights.DailyTrendRow{
			Date:               today.AddDate(0, 0, day-demoTrendDays+1).Format(time.DateOnly),
			Sessions:           insights.Count(sessions),
			Crashes:            insights.Count(rng.IntN(9)),
			Errors:             insights.Count(20 + rng.IntN(40)),
			APIErrorRate:       insights.Count(0.5 + rng.Float64()*2),
			APICalls:           insights.Count(calls),
			DAU:                insights.Count(dau),
			MAU:                insights.Count(dau * 4.2),
			AvgSessionDuration: insights.Count(180 + rng.IntN(120)),
		})
	}
	return rows
}
