package deck

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/papercomputeco/insights/pkg/insights"
	"github.com/papercomputeco/insights/pkg/logger"
	"github.com/papercomputeco/insights/pkg/storage"
)

// DefaultSessionLimit caps the sessions read for one dashboard.
const DefaultSessionLimit = 120

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithSessionLimit caps the sessions read per load. Non-positive values keep
// DefaultSessionLimit.
func WithSessionLimit(n int) LoaderOption {
	return func(l *Loader) {
		if n > 0 {
			l.sessionLimit = n
		}
	}
}

// WithRecommendationLimit caps the recommended sessions per dashboard.
func WithRecommendationLimit(n int) LoaderOption {
	return func(l *Loader) {
		l.selectorOpts = append(l.selectorOpts, insights.WithLimit(n))
	}
}

// WithCohortShape sets how many weekly cohorts are reported and how many
// weeks of retention each one tracks.
func WithCohortShape(count, weeks int) LoaderOption {
	return func(l *Loader) {
		l.cohortOpts = append(l.cohortOpts, insights.WithCohorts(count), insights.WithWeeks(weeks))
	}
}

// WithClock overrides the time source used for ranges and sparklines.
func WithClock(now func() time.Time) LoaderOption {
	return func(l *Loader) {
		if now != nil {
			l.now = now
		}
	}
}

// WithLogger sets the logger used to report failed inputs.
func WithLogger(log *slog.Logger) LoaderOption {
	return func(l *Loader) {
		if log != nil {
			l.logger = log
		}
	}
}

// Loader reads the inputs for a dashboard concurrently and derives every
// widget from them.
type Loader struct {
	reader       storage.Reader
	sessionLimit int
	selectorOpts []insights.SelectorOption
	cohortOpts   []insights.CohortOption
	selector     *insights.Selector
	cohorts      *insights.CohortBuilder
	now          func() time.Time
	logger       *slog.Logger
}

// NewLoader returns a Loader reading from reader.
func NewLoader(reader storage.Reader, opts ...LoaderOption) *Loader {
	l := &Loader{
		reader:       reader,
		sessionLimit: DefaultSessionLimit,
		now:          time.Now,
		logger:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}

	l.selector = insights.NewSelector(l.selectorOpts...)
	l.cohorts = insights.NewCohortBuilder(l.cohortOpts...)
	return l
}

// inputs holds the result of every read branch.
type inputs struct {
	sessions    []insights.Session
	sessionsErr error
	issues      []insights.Issue
	issuesErr   error
	trends      []insights.DailyTrendRow
	trendsErr   error
}

// Load derives the dashboard for sel. The three reads run concurrently and
// Load waits for all of them. A failed read leaves its widgets empty and
// names them in Dashboard.Degraded; it never fails the load. Load only
// returns an error when ctx is done.
func (l *Loader) Load(ctx context.Context, sel Selection) (*Dashboard, error) {
	sel = normalizeSelection(sel)
	now := l.now().UTC()

	in := l.fetch(ctx, sel, now)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d := &Dashboard{
		Key:         sel.Key(),
		Selection:   sel,
		GeneratedAt: now,
	}

	if in.sessionsErr != nil {
		l.degrade(d, sel, "sessions", in.sessionsErr, WidgetRecommendations, WidgetCohorts)
		in.sessions = nil
	}
	if in.issuesErr != nil {
		l.degrade(d, sel, "issues", in.issuesErr, WidgetSparklines)
		in.issues = nil
	}
	if in.trendsErr != nil {
		l.degrade(d, sel, "daily trends", in.trendsErr, WidgetMomentum)
		in.trends = nil
	}

	d.Recommendations = l.selector.Select(in.sessions)
	d.Cohorts = l.cohorts.Build(in.sessions)
	d.CohortSummary = insights.SummarizeCohorts(d.Cohorts)
	d.Momentum = insights.CompareWindows(in.trends)
	d.Directions = d.Momentum.Directions()
	d.IssueSparklines = insights.IssueSparklines(in.issues, now)

	l.logger.Debug("dashboard derived",
		"key", d.Key,
		"sessions", len(in.sessions),
		"issues", len(in.issues),
		"daily_trends", len(in.trends),
		"recommendations", len(d.Recommendations),
		"degraded", len(d.Degraded),
	)
	return d, nil
}

func (l *Loader) fetch(ctx context.Context, sel Selection, now time.Time) inputs {
	since := sel.Range.Since(now)

	var (
		in inputs
		wg sync.WaitGroup
	)

	wg.Go(func() {
		in.sessions, in.sessionsErr = l.reader.ListSessions(ctx, storage.Query{
			Project: sel.Project,
			Since:   since,
			Limit:   l.sessionLimit,
		})
	})
	wg.Go(func() {
		in.issues, in.issuesErr = l.reader.ListIssues(ctx, storage.Query{
			Project: sel.Project,
			Since:   since,
		})
	})
	wg.Go(func() {
		// Two full windows are all the comparison ever reads.
		in.trends, in.trendsErr = l.reader.ListDailyTrends(ctx, storage.Query{
			Project: sel.Project,
			Since:   since,
			Limit:   2 * insights.MaxWindowDays,
		})
	})

	wg.Wait()
	return in
}

func (l *Loader) degrade(d *Dashboard, sel Selection, input string, err error, widgets ...string) {
	l.logger.Warn("dashboard input failed to load",
		"key", sel.Key(),
		"input", input,
		"error", err,
	)
	d.Degraded = append(d.Degraded, widgets...)
}

// Refresh issues a ticket for sel on t, loads the dashboard and passes it to
// apply only if no newer load was issued meanwhile. It reports whether the
// result was applied.
func (l *Loader) Refresh(ctx context.Context, t *Tracker, sel Selection, apply func(Ticket, *Dashboard)) (bool, error) {
	sel = normalizeSelection(sel)
	ticket := t.Issue(sel.Key())

	d, err := l.Load(ctx, sel)
	if err != nil {
		return false, err
	}

	applied := t.Apply(ticket, func() { apply(ticket, d) })
	if !applied {
		l.logger.Debug("discarding stale dashboard",
			"key", ticket.Key,
			"generation", ticket.Generation,
		)
	}
	return applied, nil
}

func normalizeSelection(sel Selection) Selection {
	sel.Project = storage.ProjectOrDefault(sel.Project)
	if sel.Range == "" {
		sel.Range = DefaultTimeRange
	}
	return sel
}
