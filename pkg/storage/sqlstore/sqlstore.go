// Package sqlstore implements storage.Driver on top of ent's SQL dialect
// builders. It is database-agnostic and is embedded by the sqlite and postgres
// drivers.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/papercomputeco/insights/pkg/insights"
	"github.com/papercomputeco/insights/pkg/storage"
)

const (
	sessionsTable    = "sessions"
	issuesTable      = "issues"
	dailyTrendsTable = "daily_trends"
)

// schema is portable between SQLite and PostgreSQL.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
		project TEXT NOT NULL,
		id TEXT NOT NULL,
		started_at BIGINT NOT NULL DEFAULT 0,
		payload TEXT NOT NULL,
		PRIMARY KEY (project, id)
	)`,
	`CREATE INDEX IF NOT EXISTS sessions_project_started_at ON sessions (project, started_at)`,
	`CREATE TABLE IF NOT EXISTS issues (
		project TEXT NOT NULL,
		id TEXT NOT NULL,
		last_seen BIGINT NOT NULL DEFAULT 0,
		payload TEXT NOT NULL,
		PRIMARY KEY (project, id)
	)`,
	`CREATE INDEX IF NOT EXISTS issues_project_last_seen ON issues (project, last_seen)`,
	`CREATE TABLE IF NOT EXISTS daily_trends (
		project TEXT NOT NULL,
		date TEXT NOT NULL,
		payload TEXT NOT NULL,
		PRIMARY KEY (project, date)
	)`,
}

// Store provides storage operations over an ent SQL driver.
type Store struct {
	drv *entsql.Driver
}

// New wraps drv and creates the schema when it does not exist yet.
func New(ctx context.Context, drv *entsql.Driver) (*Store, error) {
	s := &Store{drv: drv}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if err := s.drv.Exec(ctx, stmt, []any{}, nil); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

func (s *Store) builder() *entsql.DialectBuilder {
	return entsql.Dialect(s.drv.Dialect())
}

// Put upserts every record of the batch in a single transaction.
func (s *Store) Put(ctx context.Context, batch storage.Batch) error {
	if batch.Len() == 0 {
		return nil
	}
	project := storage.ProjectOrDefault(batch.Project)

	tx, err := s.drv.Tx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := s.put(ctx, tx, project, batch); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			err = errors.Join(err, fmt.Errorf("failed to rollback: %w", rerr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

func (s *Store) put(ctx context.Context, tx dialect.ExecQuerier, project string, batch storage.Batch) error {
	sessions := make([]record, 0, len(batch.Sessions))
	for _, session := range batch.Sessions {
		if session.ID == "" {
			session.ID = uuid.NewString()
		}
		payload, err := json.Marshal(session)
		if err != nil {
			return fmt.Errorf("failed to marshal session %s: %w", session.ID, err)
		}
		sessions = append(sessions, record{
			key:    session.ID,
			values: []any{project, session.ID, unixMilli(session.StartedAt), string(payload)},
		})
	}
	if err := s.upsert(ctx, tx, sessionsTable, []string{"project", "id", "started_at", "payload"}, sessions); err != nil {
		return fmt.Errorf("failed to upsert sessions: %w", err)
	}

	issues := make([]record, 0, len(batch.Issues))
	for _, issue := range batch.Issues {
		if issue.ID == "" {
			issue.ID = uuid.NewString()
		}
		payload, err := json.Marshal(issue)
		if err != nil {
			return fmt.Errorf("failed to marshal issue %s: %w", issue.ID, err)
		}
		issues = append(issues, record{
			key:    issue.ID,
			values: []any{project, issue.ID, unixMilli(issue.LastSeen), string(payload)},
		})
	}
	if err := s.upsert(ctx, tx, issuesTable, []string{"project", "id", "last_seen", "payload"}, issues); err != nil {
		return fmt.Errorf("failed to upsert issues: %w", err)
	}

	trends := make([]record, 0, len(batch.DailyTrends))
	for _, row := range batch.DailyTrends {
		if row.Date == "" {
			continue
		}
		payload, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("failed to marshal daily trend %s: %w", row.Date, err)
		}
		trends = append(trends, record{
			key:    row.Date,
			values: []any{project, row.Date, string(payload)},
		})
	}
	if err := s.upsert(ctx, tx, dailyTrendsTable, []string{"project", "date", "payload"}, trends); err != nil {
		return fmt.Errorf("failed to upsert daily trends: %w", err)
	}

	return nil
}

// maxRowsPerInsert keeps multi-row inserts under SQLite's bound-variable limit.
const maxRowsPerInsert = 200

type record struct {
	key    string
	values []any
}

// upsert writes records keyed on (project, columns[1]). A key repeated within
// one call keeps its last value; a single statement may not touch a row twice.
func (s *Store) upsert(ctx context.Context, conn dialect.ExecQuerier, table string, columns []string, records []record) error {
	latest := make(map[string]int, len(records))
	unique := make([]record, 0, len(records))
	for _, rec := range records {
		if i, ok := latest[rec.key]; ok {
			unique[i] = rec
			continue
		}
		latest[rec.key] = len(unique)
		unique = append(unique, rec)
	}

	for chunk := range slices.Chunk(unique, maxRowsPerInsert) {
		insert := s.builder().Insert(table).Columns(columns...)
		for _, rec := range chunk {
			insert.Values(rec.values...)
		}
		insert.OnConflict(
			entsql.ConflictColumns(columns[0], columns[1]),
			entsql.ResolveWithNewValues(),
		)
		if err := exec(ctx, conn, insert); err != nil {
			return err
		}
	}
	return nil
}

// ListSessions returns sessions started at or after q.Since, newest first.
func (s *Store) ListSessions(ctx context.Context, q storage.Query) ([]insights.Session, error) {
	sel := s.builder().Select("payload").
		From(entsql.Table(sessionsTable)).
		Where(entsql.EQ("project", storage.ProjectOrDefault(q.Project))).
		OrderBy(entsql.Desc("started_at"), entsql.Asc("id"))
	if !q.Since.IsZero() {
		sel.Where(entsql.GTE("started_at", q.Since.UnixMilli()))
	}
	if q.Limit > 0 {
		sel.Limit(q.Limit)
	}
	return list[insights.Session](ctx, s.drv, sel)
}

// ListIssues returns issues last seen at or after q.Since, most recently seen first.
func (s *Store) ListIssues(ctx context.Context, q storage.Query) ([]insights.Issue, error) {
	sel := s.builder().Select("payload").
		From(entsql.Table(issuesTable)).
		Where(entsql.EQ("project", storage.ProjectOrDefault(q.Project))).
		OrderBy(entsql.Desc("last_seen"), entsql.Asc("id"))
	if !q.Since.IsZero() {
		sel.Where(entsql.GTE("last_seen", q.Since.UnixMilli()))
	}
	if q.Limit > 0 {
		sel.Limit(q.Limit)
	}
	return list[insights.Issue](ctx, s.drv, sel)
}

// ListDailyTrends returns daily rows dated on or after q.Since, oldest first.
// A limit keeps the most recent rows.
func (s *Store) ListDailyTrends(ctx context.Context, q storage.Query) ([]insights.DailyTrendRow, error) {
	sel := s.builder().Select("payload").
		From(entsql.Table(dailyTrendsTable)).
		Where(entsql.EQ("project", storage.ProjectOrDefault(q.Project))).
		OrderBy(entsql.Desc("date"))
	if !q.Since.IsZero() {
		sel.Where(entsql.GTE("date", q.Since.UTC().Format("2006-01-02")))
	}
	if q.Limit > 0 {
		sel.Limit(q.Limit)
	}

	rows, err := list[insights.DailyTrendRow](ctx, s.drv, sel)
	if err != nil {
		return nil, err
	}
	slices.Reverse(rows)
	return rows, nil
}

// GetSession retrieves a single session by id.
func (s *Store) GetSession(ctx context.Context, project, id string) (*insights.Session, error) {
	sel := s.builder().Select("payload").
		From(entsql.Table(sessionsTable)).
		Where(entsql.And(
			entsql.EQ("project", storage.ProjectOrDefault(project)),
			entsql.EQ("id", id),
		))

	sessions, err := list[insights.Session](ctx, s.drv, sel)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, storage.NotFoundError{ID: id}
	}
	return &sessions[0], nil
}

// Count returns the number of stored records across all projects.
func (s *Store) Count(ctx context.Context) (int, error) {
	total := 0
	for _, table := range []string{sessionsTable, issuesTable, dailyTrendsTable} {
		query, args := s.builder().Select(entsql.Count("*")).From(entsql.Table(table)).Query()

		rows := &entsql.Rows{}
		if err := s.drv.Query(ctx, query, args, rows); err != nil {
			return 0, fmt.Errorf("failed to count %s: %w", table, err)
		}
		n, err := entsql.ScanInt(rows)
		rows.Close()
		if err != nil {
			return 0, fmt.Errorf("failed to scan %s count: %w", table, err)
		}
		total += n
	}
	return total, nil
}

// Reset removes every record stored for project.
func (s *Store) Reset(ctx context.Context, project string) error {
	project = storage.ProjectOrDefault(project)
	for _, table := range []string{sessionsTable, issuesTable, dailyTrendsTable} {
		del := s.builder().Delete(table).Where(entsql.EQ("project", project))
		if err := exec(ctx, s.drv, del); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.drv.Close()
}

func exec(ctx context.Context, conn dialect.ExecQuerier, q entsql.Querier) error {
	query, args := q.Query()
	var res sql.Result
	return conn.Exec(ctx, query, args, &res)
}

func list[T any](ctx context.Context, conn dialect.ExecQuerier, sel *entsql.Selector) ([]T, error) {
	query, args := sel.Query()

	rows := &entsql.Rows{}
	if err := conn.Query(ctx, query, args, rows); err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}

		var record T
		if err := json.Unmarshal([]byte(payload), &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal record: %w", err)
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}
	return out, nil
}

func unixMilli(ts insights.Timestamp) int64 {
	if !ts.Valid() {
		return 0
	}
	return ts.UnixMilli()
}
