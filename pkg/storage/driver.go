// Package storage
package storage

import (
	"context"
	"time"

	"github.com/papercomputeco/insights/pkg/insights"
)

// DefaultProject is used when records or queries do not name a project.
const DefaultProject = "default"

// Query scopes a read to one project and time range.
type Query struct {
	// Project selects the project the records were ingested under.
	Project string

	// Since is the inclusive lower bound of the time range. The zero value
	// means no lower bound.
	Since time.Time

	// Limit caps the number of returned records. Zero means no cap.
	Limit int
}

// Batch is a set of records ingested together for one project.
type Batch struct {
	Project     string                   `json:"project"`
	Sessions    []insights.Session       `json:"sessions,omitempty"`
	Issues      []insights.Issue         `json:"issues,omitempty"`
	DailyTrends []insights.DailyTrendRow `json:"dailyTrends,omitempty"`
}

// Len is the number of records in the batch.
func (b Batch) Len() int {
	return len(b.Sessions) + len(b.Issues) + len(b.DailyTrends)
}

// Reader is the read side the dashboard loader depends on.
type Reader interface {
	// ListSessions returns sessions started at or after q.Since, newest first.
	ListSessions(ctx context.Context, q Query) ([]insights.Session, error)

	// ListIssues returns issues last seen at or after q.Since, most recently
	// seen first.
	ListIssues(ctx context.Context, q Query) ([]insights.Issue, error)

	// ListDailyTrends returns daily rows dated on or after q.Since, oldest first.
	ListDailyTrends(ctx context.Context, q Query) ([]insights.DailyTrendRow, error)
}

// Driver defines the interface for persisting and retrieving insight records
// in a storage backend.
type Driver interface {
	Reader

	// Put upserts every record in the batch. Sessions and issues are keyed by
	// id, daily trends by date. Sessions without an id are assigned one.
	Put(ctx context.Context, batch Batch) error

	// GetSession retrieves a single session by id.
	GetSession(ctx context.Context, project, id string) (*insights.Session, error)

	// Count returns the number of stored records across all projects.
	Count(ctx context.Context) (int, error)

	// Reset removes every record stored for project.
	Reset(ctx context.Context, project string) error

	// Close closes the store and releases any resources.
	Close() error
}

// ProjectOrDefault returns project, or DefaultProject when it is blank.
func ProjectOrDefault(project string) string {
	if project == "" {
		return DefaultProject
	}
	return project
}
