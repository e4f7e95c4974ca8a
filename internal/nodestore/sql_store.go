package nodestore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/goccy/go-json"

	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/types"
)

const nodesTable = "tbl_nodes"

// SQLStore implements Store on a single tbl_nodes table. Queries are built
// with Ent's dialect-aware SQL builder so the same code runs on SQLite and
// Postgres.
type SQLStore struct {
	db      *sql.DB
	dialect string
}

// NewSQLStore wraps an open database. dialectName is one of dialect.SQLite or
// dialect.Postgres.
func NewSQLStore(db *sql.DB, dialectName string) *SQLStore {
	return &SQLStore{db: db, dialect: dialectName}
}

// Open picks the driver from the DSN: postgres:// URLs use pgx, anything
// else is handed to the pure-Go SQLite driver. The caller must import the
// driver packages.
func Open(ctx context.Context, dsn string) (*SQLStore, error) {
	driverName, dialectName := "sqlite", dialect.SQLite
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		driverName, dialectName = "pgx", dialect.Postgres
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if dialectName == dialect.SQLite {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	s := NewSQLStore(db, dialectName)
	if err := s.CreateTable(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating %s: %w", nodesTable, err)
	}
	return s, nil
}

// Dialect names the SQL dialect queries are built for.
func (s *SQLStore) Dialect() string { return s.dialect }

// DB returns the underlying database for stores sharing it.
func (s *SQLStore) DB() *sql.DB { return s.db }

// Close closes the underlying database.
func (s *SQLStore) Close() error { return s.db.Close() }

// CreateTable creates the node table if it does not exist.
func (s *SQLStore) CreateTable(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tbl_nodes (
			id        TEXT PRIMARY KEY,
			tree_id   TEXT NOT NULL,
			parent_id TEXT NOT NULL DEFAULT '',
			type      TEXT NOT NULL,
			label     TEXT NOT NULL DEFAULT '',
			position  INTEGER NOT NULL DEFAULT 0,
			payload   TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tbl_nodes_tree ON tbl_nodes (tree_id, parent_id, position)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLStore) LoadTree(ctx context.Context, treeID string) ([]types.TreeNode, error) {
	query, args := entsql.Dialect(s.dialect).
		Select("payload").
		From(entsql.Table(nodesTable)).
		Where(entsql.EQ("tree_id", treeID)).
		OrderBy("position", "id").
		Query()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying tree %s: %w", treeID, err)
	}
	defer rows.Close()

	var nodes []types.TreeNode
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var n types.TreeNode
		if err := json.Unmarshal([]byte(payload), &n); err != nil {
			return nil, fmt.Errorf("decoding node payload: %w", err)
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, ErrNotFound
	}
	return nodes, nil
}

func (s *SQLStore) SaveNodes(ctx context.Context, nodes []types.TreeNode) error {
	flat := Flatten(nodes)
	if len(flat) == 0 {
		return nil
	}

	ins := entsql.Dialect(s.dialect).
		Insert(nodesTable).
		Columns("id", "tree_id", "parent_id", "type", "label", "position", "payload")
	for _, n := range flat {
		payload, err := json.Marshal(n)
		if err != nil {
			return fmt.Errorf("encoding node %s: %w", n.ID, err)
		}
		ins.Values(n.ID, n.TreeID, n.ParentID, string(n.Type), n.Label, n.Order, string(payload))
	}
	ins.OnConflict(
		entsql.ConflictColumns("id"),
		entsql.ResolveWithNewValues(),
	)

	query, args := ins.Query()
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("saving %d nodes: %w", len(flat), err)
	}
	return nil
}

func (s *SQLStore) DeleteNodes(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]driver.Value, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query, qargs := entsql.Dialect(s.dialect).
		Delete(nodesTable).
		Where(entsql.InValues("id", args...)).
		Query()
	_, err := s.db.ExecContext(ctx, query, qargs...)
	return err
}

func (s *SQLStore) Trees(ctx context.Context) ([]string, error) {
	query, args := entsql.Dialect(s.dialect).
		Select("tree_id").
		Distinct().
		From(entsql.Table(nodesTable)).
		OrderBy("tree_id").
		Query()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
