package inmemory

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/papercomputeco/insights/pkg/insights"
	"github.com/papercomputeco/insights/pkg/storage"
)

// project holds one project's records keyed by id (sessions, issues) or date
// (daily trends).
type project struct {
	sessions map[string]insights.Session
	issues   map[string]insights.Issue
	trends   map[string]insights.DailyTrendRow
}

// Driver implements storage.Driver using in-memory maps.
type Driver struct {
	// mu is a read write sync mutex for locking the project maps
	mu sync.RWMutex

	projects map[string]*project
}

// NewDriver creates a new in-memory store.
func NewDriver() *Driver {
	return &Driver{
		projects: make(map[string]*project),
	}
}

// Put upserts every record in the batch.
func (d *Driver) Put(_ context.Context, batch storage.Batch) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	name := storage.ProjectOrDefault(batch.Project)
	p, ok := d.projects[name]
	if !ok {
		p = &project{
			sessions: map[string]insights.Session{},
			issues:   map[string]insights.Issue{},
			trends:   map[string]insights.DailyTrendRow{},
		}
		d.projects[name] = p
	}

	for _, session := range batch.Sessions {
		if session.ID == "" {
			session.ID = uuid.NewString()
		}
		p.sessions[session.ID] = session
	}
	for _, issue := range batch.Issues {
		if issue.ID == "" {
			issue.ID = uuid.NewString()
		}
		p.issues[issue.ID] = issue
	}
	for _, row := range batch.DailyTrends {
		if row.Date != "" {
			p.trends[row.Date] = row
		}
	}
	return nil
}

// ListSessions returns sessions started at or after q.Since, newest first.
func (d *Driver) ListSessions(_ context.Context, q storage.Query) ([]insights.Session, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := []insights.Session{}
	p, ok := d.projects[storage.ProjectOrDefault(q.Project)]
	if !ok {
		return out, nil
	}

	for _, session := range p.sessions {
		if !q.Since.IsZero() && (!session.StartedAt.Valid() || session.StartedAt.Before(q.Since)) {
			continue
		}
		out = append(out, session)
	}
	slices.SortFunc(out, func(a, b insights.Session) int {
		if n := cmp.Compare(unixMilli(b.StartedAt), unixMilli(a.StartedAt)); n != 0 {
			return n
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return limit(out, q.Limit), nil
}

// ListIssues returns issues last seen at or after q.Since, most recently seen first.
func (d *Driver) ListIssues(_ context.Context, q storage.Query) ([]insights.Issue, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := []insights.Issue{}
	p, ok := d.projects[storage.ProjectOrDefault(q.Project)]
	if !ok {
		return out, nil
	}

	for _, issue := range p.issues {
		if !q.Since.IsZero() && (!issue.LastSeen.Valid() || issue.LastSeen.Before(q.Since)) {
			continue
		}
		out = append(out, issue)
	}
	slices.SortFunc(out, func(a, b insights.Issue) int {
		if n := cmp.Compare(unixMilli(b.LastSeen), unixMilli(a.LastSeen)); n != 0 {
			return n
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return limit(out, q.Limit), nil
}

// ListDailyTrends returns daily rows dated on or after q.Since, oldest first.
// A limit keeps the most recent rows.
func (d *Driver) ListDailyTrends(_ context.Context, q storage.Query) ([]insights.DailyTrendRow, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := []insights.DailyTrendRow{}
	p, ok := d.projects[storage.ProjectOrDefault(q.Project)]
	if !ok {
		return out, nil
	}

	since := ""
	if !q.Since.IsZero() {
		since = q.Since.UTC().Format("2006-01-02")
	}
	for _, date := range slices.Sorted(maps.Keys(p.trends)) {
		if date >= since {
			out = append(out, p.trends[date])
		}
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[len(out)-q.Limit:]
	}
	return out, nil
}

// GetSession retrieves a single session by id.
func (d *Driver) GetSession(_ context.Context, projectName, id string) (*insights.Session, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	p, ok := d.projects[storage.ProjectOrDefault(projectName)]
	if !ok {
		return nil, storage.NotFoundError{ID: id}
	}
	session, ok := p.sessions[id]
	if !ok {
		return nil, storage.NotFoundError{ID: id}
	}
	return &session, nil
}

// Count returns the number of stored records across all projects.
func (d *Driver) Count(_ context.Context) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	total := 0
	for _, p := range d.projects {
		total += len(p.sessions) + len(p.issues) + len(p.trends)
	}
	return total, nil
}

// Reset removes every record stored for the project.
func (d *Driver) Reset(_ context.Context, projectName string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.projects, storage.ProjectOrDefault(projectName))
	return nil
}

// Close is a no-op for the in-memory store.
func (d *Driver) Close() error {
	return nil
}

func limit[T any](records []T, n int) []T {
	if n > 0 && len(records) > n {
		return records[:n]
	}
	return records
}

func unixMilli(ts insights.Timestamp) int64 {
	if !ts.Valid() {
		return 0
	}
	return ts.UnixMilli()
}
