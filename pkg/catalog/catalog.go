// Package catalog keeps a small sqlite catalog of graph files: which paths
// were opened, when, and how large the graphs were at last save. The MCP
// surface uses it to offer a recent-files list.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Record is one catalog row.
type Record struct {
	Path        string    `json:"path"`
	LastOpened  time.Time `json:"lastOpened"`
	EntityCount int       `json:"entityCount"`
	EdgeCount   int       `json:"edgeCount"`
}

type Catalog struct {
	conn   *sql.DB
	logger *slog.Logger
}

// Open opens (and migrates) the catalog database at dbPath.
func Open(dbPath string, logger *slog.Logger) (*Catalog, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog database: %w", err)
	}

	c := &Catalog{conn: conn, logger: logger}
	if err := c.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate catalog database: %w", err)
	}
	return c, nil
}

func (c *Catalog) Close() error {
	return c.conn.Close()
}

func (c *Catalog) migrate() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS graph_files (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			path TEXT UNIQUE NOT NULL,
			last_opened TIMESTAMP NOT NULL,
			entity_count INTEGER NOT NULL DEFAULT 0,
			edge_count INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_graph_files_opened ON graph_files(last_opened);`,
	}

	for _, stmt := range statements {
		if _, err := c.conn.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Touch records that path was opened or saved just now, with the graph's
// current size.
func (c *Catalog) Touch(ctx context.Context, path string, entityCount, edgeCount int) error {
	_, err := c.conn.ExecContext(ctx, `
		INSERT INTO graph_files (path, last_opened, entity_count, edge_count)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			last_opened = excluded.last_opened,
			entity_count = excluded.entity_count,
			edge_count = excluded.edge_count
	`, path, time.Now().UTC(), entityCount, edgeCount)
	if err != nil {
		return fmt.Errorf("failed to touch %s: %w", path, err)
	}
	return nil
}

// Recent returns up to limit records, most recently opened first.
func (c *Catalog) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := c.conn.QueryContext(ctx, `
		SELECT path, last_opened, entity_count, edge_count
		FROM graph_files
		ORDER BY last_opened DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.Path, &r.LastOpened, &r.EntityCount, &r.EdgeCount); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Forget drops a path from the catalog, e.g. after the file disappeared.
func (c *Catalog) Forget(ctx context.Context, path string) error {
	_, err := c.conn.ExecContext(ctx, "DELETE FROM graph_files WHERE path = ?", path)
	return err
}
