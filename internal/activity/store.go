package activity

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/goccy/go-json"
)

const activityTable = "tbl_activity"

// Store reads and writes activity entries.
type Store interface {
	// WriteEntries stores entries. Entries already stored are ignored.
	WriteEntries(ctx context.Context, entries []Entry) error

	// QuerySession returns the entries of a session, newest first, with the
	// cursor of the next page and the total number of matches.
	QuerySession(ctx context.Context, sessionID string, opts QueryOptions) (entries []Entry, nextCursor string, totalCount int, err error)
}

// SQLStore implements Store on the tbl_activity table, next to the node
// store. occurred_at is stored as Unix nanoseconds so ordering is identical
// on SQLite and Postgres.
type SQLStore struct {
	db      *sql.DB
	dialect string
}

// NewSQLStore wraps an open database.
func NewSQLStore(db *sql.DB, dialectName string) *SQLStore {
	return &SQLStore{db: db, dialect: dialectName}
}

// CreateTable creates the activity table if it does not exist.
func (s *SQLStore) CreateTable(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tbl_activity (
			event_id    TEXT NOT NULL,
			event_type  TEXT NOT NULL,
			occurred_at BIGINT NOT NULL,
			session_id  TEXT NOT NULL,
			tree_id     TEXT NOT NULL,
			subject     TEXT NOT NULL DEFAULT '',
			category    TEXT NOT NULL,
			summary     TEXT NOT NULL,
			payload     TEXT,
			PRIMARY KEY (session_id, event_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tbl_activity_session_time ON tbl_activity (session_id, occurred_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLStore) WriteEntries(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	ins := entsql.Dialect(s.dialect).
		Insert(activityTable).
		Columns("event_id", "event_type", "occurred_at", "session_id", "tree_id", "subject", "category", "summary", "payload")
	for _, e := range entries {
		ins.Values(e.EventID, e.EventType, e.OccurredAt.UnixNano(), e.SessionID, e.TreeID,
			e.Subject, e.Category, e.Summary, string(e.Payload))
	}
	ins.OnConflict(
		entsql.ConflictColumns("session_id", "event_id"),
		entsql.DoNothing(),
	)
	query, args := ins.Query()
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("writing %d activity entries: %w", len(entries), err)
	}
	return nil
}

func (s *SQLStore) predicate(sessionID string, opts QueryOptions, withCursor bool) *entsql.Predicate {
	preds := []*entsql.Predicate{entsql.EQ("session_id", sessionID)}
	if opts.Since != nil {
		preds = append(preds, entsql.GTE("occurred_at", opts.Since.UnixNano()))
	}
	if opts.Until != nil {
		preds = append(preds, entsql.LTE("occurred_at", opts.Until.UnixNano()))
	}
	if len(opts.Categories) > 0 {
		cats := make([]any, len(opts.Categories))
		for i, c := range opts.Categories {
			cats[i] = c
		}
		preds = append(preds, entsql.In("category", cats...))
	}
	if c, ok := opts.cursor(); ok && withCursor {
		preds = append(preds, entsql.LT("occurred_at", c.UnixNano()))
	}
	return entsql.And(preds...)
}

func (s *SQLStore) QuerySession(ctx context.Context, sessionID string, opts QueryOptions) ([]Entry, string, int, error) {
	countQuery, countArgs := entsql.Dialect(s.dialect).
		Select(entsql.Count("*")).
		From(entsql.Table(activityTable)).
		Where(s.predicate(sessionID, opts, false)).
		Query()
	var total int
	if err := s.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, "", 0, fmt.Errorf("counting activity of %s: %w", sessionID, err)
	}

	limit := opts.limit()
	query, args := entsql.Dialect(s.dialect).
		Select("event_id", "event_type", "occurred_at", "session_id", "tree_id", "subject", "category", "summary", "payload").
		From(entsql.Table(activityTable)).
		Where(s.predicate(sessionID, opts, true)).
		OrderBy(entsql.Desc("occurred_at"), entsql.Desc("event_id")).
		Limit(limit + 1).
		Query()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, "", 0, fmt.Errorf("querying activity of %s: %w", sessionID, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			nanos   int64
			payload sql.NullString
		)
		if err := rows.Scan(&e.EventID, &e.EventType, &nanos, &e.SessionID, &e.TreeID,
			&e.Subject, &e.Category, &e.Summary, &payload); err != nil {
			return nil, "", 0, fmt.Errorf("scanning activity entry: %w", err)
		}
		e.OccurredAt = time.Unix(0, nanos).UTC()
		if payload.Valid && payload.String != "" && json.Valid([]byte(payload.String)) {
			e.Payload = []byte(payload.String)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, "", 0, err
	}

	var next string
	if len(entries) > limit {
		entries = entries[:limit]
		next = formatCursor(entries[len(entries)-1].OccurredAt)
	}
	return entries, next, total, nil
}
