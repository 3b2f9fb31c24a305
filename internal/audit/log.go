// Package audit keeps an append-only log of graph lifecycle events so a
// session can be reconstructed after the fact: who created which graph, when
// nodes started, failed, retried, and completed.
//
// The log satisfies the Recorder interface the tool layer exposes, writing
// one row per event. There is no update or delete path.
package audit

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

var (
	// openDB is a seam for tests that need to fail the open path.
	openDB = sql.Open

	timeNow = time.Now
)

// Event is one recorded audit entry.
type Event struct {
	EventID    string  `json:"event_id"`
	OccurredAt string  `json:"occurred_at"`
	Actor      string  `json:"actor"`
	Action     string  `json:"action"`
	GraphID    *string `json:"graph_id,omitempty"`
	NodeID     *string `json:"node_id,omitempty"`
	Detail     string  `json:"detail,omitempty"`
}

// QueryOptions filters an Events call.
type QueryOptions struct {
	GraphID string
	Action  string
	Limit   int
}

// Log is the SQLite-backed audit store.
type Log struct {
	db *sql.DB
}

// Open creates the audit database under dataDir and runs migrations.
func Open(dataDir string) (*Log, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("audit: create data dir: %w", err)
	}

	db, err := openDB("sqlite", filepath.Join(dataDir, "audit.db"))
	if err != nil {
		return nil, fmt.Errorf("audit: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("audit: set pragma %q: %w", p, err)
		}
	}

	l := &Log{db: db}
	if err := l.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

// Close closes the underlying database.
func (l *Log) Close() error {
	return l.db.Close()
}

func (l *Log) migrate() error {
	schema := `
CREATE TABLE IF NOT EXISTS events (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	event_id     TEXT NOT NULL UNIQUE,
	occurred_at  TEXT NOT NULL,
	actor        TEXT NOT NULL,
	action       TEXT NOT NULL,
	graph_id     TEXT,
	node_id      TEXT,
	detail       TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_events_graph ON events(graph_id);
CREATE INDEX IF NOT EXISTS idx_events_action ON events(action);
`
	if _, err := l.db.Exec(schema); err != nil {
		return fmt.Errorf("audit: create schema: %w", err)
	}
	return nil
}

// Record appends one event. It implements the tool layer's Recorder
// interface, so the signature is positional rather than a params struct.
func (l *Log) Record(actor, action, graphID, nodeID, detail string) error {
	if strings.TrimSpace(action) == "" {
		return fmt.Errorf("audit: action cannot be empty")
	}
	if actor == "" {
		actor = "agent"
	}

	_, err := l.db.Exec(`
INSERT INTO events (event_id, occurred_at, actor, action, graph_id, node_id, detail)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(),
		timeNow().UTC().Format("2006-01-02 15:04:05"),
		actor, action,
		nullableString(graphID), nullableString(nodeID),
		detail,
	)
	if err != nil {
		return fmt.Errorf("audit: record %s: %w", action, err)
	}
	return nil
}

// Events returns recorded events, newest first.
func (l *Log) Events(opts QueryOptions) ([]Event, error) {
	query := `SELECT event_id, occurred_at, actor, action, graph_id, node_id, detail FROM events`
	var (
		conds []string
		args  []any
	)
	if opts.GraphID != "" {
		conds = append(conds, "graph_id = ?")
		args = append(args, opts.GraphID)
	}
	if opts.Action != "" {
		conds = append(conds, "action = ?")
		args = append(args, opts.Action)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, clampLimit(opts.Limit))

	rows, err := l.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: query events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.EventID, &e.OccurredAt, &e.Actor, &e.Action, &e.GraphID, &e.NodeID, &e.Detail); err != nil {
			return nil, fmt.Errorf("audit: scan event: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: iterate events: %w", err)
	}
	return out, nil
}

// Count returns the total number of recorded events.
func (l *Log) Count() (int, error) {
	var n int
	if err := l.db.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("audit: count events: %w", err)
	}
	return n, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 200 {
		return 200
	}
	return limit
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
