// Package memory persists working notes across orchestration sessions.
//
// Notes are the agent's scratchpad: decisions made while planning a graph,
// findings uncovered mid-task, blockers that survived a retry, preferences
// the user stated, progress markers worth resuming from. Storage is SQLite
// (modernc.org/sqlite, no cgo) with an FTS5 index for full-text search.
//
// Soft delete is the default: rows keep their history under deleted_at and
// every read path filters on deleted_at IS NULL.
package memory

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// openDB is a seam for tests that need to fail the open path.
var openDB = sql.Open

// ─── Kinds ───────────────────────────────────────────────────────────────────

// Note kinds. The vocabulary is deliberately small: five kinds cover what an
// orchestrating agent actually writes down between task executions.
const (
	KindDecision   = "decision"
	KindFinding    = "finding"
	KindBlocker    = "blocker"
	KindPreference = "preference"
	KindProgress   = "progress"
)

var validKinds = map[string]bool{
	KindDecision:   true,
	KindFinding:    true,
	KindBlocker:    true,
	KindPreference: true,
	KindProgress:   true,
}

// KindValues returns the note kinds for MCP tool enum definitions.
func KindValues() []string {
	return []string{KindDecision, KindFinding, KindBlocker, KindPreference, KindProgress}
}

// ValidateKind checks that kind is one of the known note kinds.
func ValidateKind(kind string) error {
	if !validKinds[kind] {
		return fmt.Errorf("invalid note kind %q: must be one of: %s", kind, strings.Join(KindValues(), ", "))
	}
	return nil
}

// ─── Types ───────────────────────────────────────────────────────────────────

// Note is one persisted working note.
type Note struct {
	ID        int64   `json:"id"`
	Kind      string  `json:"kind"`
	Topic     *string `json:"topic,omitempty"`
	Content   string  `json:"content"`
	GraphID   *string `json:"graph_id,omitempty"`
	NodeID    *string `json:"node_id,omitempty"`
	Tokens    int     `json:"tokens"`
	Revisions int     `json:"revisions"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
	DeletedAt *string `json:"deleted_at,omitempty"`
}

// SaveNoteParams holds the input for SaveNote.
type SaveNoteParams struct {
	Kind    string `json:"kind"`
	Topic   string `json:"topic,omitempty"`
	Content string `json:"content"`
	GraphID string `json:"graph_id,omitempty"`
	NodeID  string `json:"node_id,omitempty"`
}

// SearchOptions filters SearchNotes results.
type SearchOptions struct {
	Kind    string `json:"kind,omitempty"`
	GraphID string `json:"graph_id,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}

// RecentOptions filters RecentNotes results.
type RecentOptions struct {
	Kind    string `json:"kind,omitempty"`
	GraphID string `json:"graph_id,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}

// Stats summarizes the note database.
type Stats struct {
	TotalNotes  int            `json:"total_notes"`
	ByKind      map[string]int `json:"by_kind"`
	TotalTokens int            `json:"total_tokens"`
	Graphs      int            `json:"graphs"`
	DBSizeBytes int64          `json:"db_size_bytes"`
}

// ─── Config ──────────────────────────────────────────────────────────────────

// Config holds memory store configuration.
type Config struct {
	DataDir          string
	MaxContentLength int
	MaxTopicLength   int
	MaxSearchResults int
}

// DefaultConfig returns the default configuration for the memory store.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		DataDir:          filepath.Join(home, ".taskloom"),
		MaxContentLength: 20000,
		MaxTopicLength:   200,
		MaxSearchResults: 20,
	}
}

// ─── Store ───────────────────────────────────────────────────────────────────

// Store is the persistent note engine backed by SQLite + FTS5.
type Store struct {
	db    *sql.DB
	path  string
	cfg   Config
	hooks storeHooks
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

type queryer interface {
	Query(query string, args ...any) (*sql.Rows, error)
}

// storeHooks lets tests intercept database calls to exercise error paths
// that a healthy SQLite file never produces.
type storeHooks struct {
	exec  func(db execer, query string, args ...any) (sql.Result, error)
	query func(db queryer, query string, args ...any) (*sql.Rows, error)
}

func (s *Store) execHook(db execer, query string, args ...any) (sql.Result, error) {
	if s.hooks.exec != nil {
		return s.hooks.exec(db, query, args...)
	}
	return db.Exec(query, args...)
}

func (s *Store) queryHook(db queryer, query string, args ...any) (*sql.Rows, error) {
	if s.hooks.query != nil {
		return s.hooks.query(db, query, args...)
	}
	return db.Query(query, args...)
}

// New creates a Store with the given configuration.
// It creates the data directory if needed, opens SQLite with WAL mode,
// and runs migrations.
func New(cfg Config) (*Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("memory: create data dir: %w", err)
	}

	dbPath := filepath.Join(cfg.DataDir, "notes.db")
	db, err := openDB("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("memory: open database: %w", err)
	}

	// SQLite performance pragmas
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("memory: set pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, path: dbPath, cfg: cfg}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// ─── Migrations ──────────────────────────────────────────────────────────────

func (s *Store) migrate() error {
	schema := `
CREATE TABLE IF NOT EXISTS notes (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	kind        TEXT NOT NULL,
	topic       TEXT,
	content     TEXT NOT NULL,
	graph_id    TEXT,
	node_id     TEXT,
	tokens      INTEGER NOT NULL DEFAULT 0,
	revisions   INTEGER NOT NULL DEFAULT 1,
	created_at  TEXT NOT NULL DEFAULT (datetime('now')),
	updated_at  TEXT NOT NULL DEFAULT (datetime('now')),
	deleted_at  TEXT
);

CREATE INDEX IF NOT EXISTS idx_notes_kind ON notes(kind);
CREATE INDEX IF NOT EXISTS idx_notes_graph ON notes(graph_id);
CREATE INDEX IF NOT EXISTS idx_notes_created ON notes(created_at);
`
	if _, err := s.execHook(s.db, schema); err != nil {
		return fmt.Errorf("memory: create schema: %w", err)
	}

	if _, err := s.execHook(s.db, `
CREATE VIRTUAL TABLE IF NOT EXISTS notes_fts USING fts5(
	topic, content,
	content='notes',
	content_rowid='id',
	tokenize='porter unicode61'
)`); err != nil {
		return fmt.Errorf("memory: create fts table: %w", err)
	}

	_, _ = s.execHook(s.db, `UPDATE notes SET revisions = 1 WHERE revisions IS NULL OR revisions < 1`)              // best-effort migration cleanup
	_, _ = s.execHook(s.db, `UPDATE notes SET updated_at = created_at WHERE updated_at IS NULL OR updated_at = ''`) // best-effort migration cleanup

	return s.createTriggers()
}

// createTriggers keeps notes_fts in sync with notes. Trigger creation has no
// IF NOT EXISTS form that is portable across SQLite builds, so each trigger is
// checked against sqlite_master first.
func (s *Store) createTriggers() error {
	triggers := []struct {
		name string
		ddl  string
	}{
		{"notes_ai", `
CREATE TRIGGER notes_ai AFTER INSERT ON notes BEGIN
	INSERT INTO notes_fts(rowid, topic, content)
	VALUES (new.id, COALESCE(new.topic, ''), new.content);
END`},
		{"notes_ad", `
CREATE TRIGGER notes_ad AFTER DELETE ON notes BEGIN
	INSERT INTO notes_fts(notes_fts, rowid, topic, content)
	VALUES ('delete', old.id, COALESCE(old.topic, ''), old.content);
END`},
		{"notes_au", `
CREATE TRIGGER notes_au AFTER UPDATE ON notes BEGIN
	INSERT INTO notes_fts(notes_fts, rowid, topic, content)
	VALUES ('delete', old.id, COALESCE(old.topic, ''), old.content);
	INSERT INTO notes_fts(rowid, topic, content)
	VALUES (new.id, COALESCE(new.topic, ''), new.content);
END`},
	}

	for _, trg := range triggers {
		var name string
		err := s.db.QueryRow(
			`SELECT name FROM sqlite_master WHERE type='trigger' AND name=?`, trg.name,
		).Scan(&name)
		if errors.Is(err, sql.ErrNoRows) {
			if _, err := s.execHook(s.db, trg.ddl); err != nil {
				return fmt.Errorf("memory: create trigger %s: %w", trg.name, err)
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("memory: check trigger %s: %w", trg.name, err)
		}
	}
	return nil
}

// ─── Writes ──────────────────────────────────────────────────────────────────

// SaveNote persists a note. When Topic is set and a live note with the same
// kind and topic already exists in the same graph scope, that note is revised
// in place instead of inserting a near-duplicate; revisions counts how many
// times a topic has been rewritten.
func (s *Store) SaveNote(p SaveNoteParams) (*Note, error) {
	if err := ValidateKind(p.Kind); err != nil {
		return nil, err
	}
	content := strings.TrimSpace(p.Content)
	if content == "" {
		return nil, fmt.Errorf("memory: note content cannot be empty")
	}
	content = Truncate(content, s.cfg.MaxContentLength)
	topic := Truncate(strings.TrimSpace(p.Topic), s.cfg.MaxTopicLength)
	tokens := EstimateTokens(content)

	if topic != "" {
		// SQLite's IS treats two NULLs as equal, so an unscoped save
		// upserts against other unscoped notes only.
		var id int64
		err := s.db.QueryRow(`
SELECT id FROM notes
WHERE kind = ? AND topic = ? AND graph_id IS ? AND deleted_at IS NULL
ORDER BY id DESC LIMIT 1`,
			p.Kind, topic, nullableString(p.GraphID),
		).Scan(&id)
		switch {
		case err == nil:
			if _, err := s.execHook(s.db, `
UPDATE notes
SET content = ?, tokens = ?, node_id = ?, revisions = revisions + 1, updated_at = ?
WHERE id = ?`,
				content, tokens, nullableString(p.NodeID), Now(), id,
			); err != nil {
				return nil, fmt.Errorf("memory: revise note %d: %w", id, err)
			}
			return s.GetNote(id)
		case errors.Is(err, sql.ErrNoRows):
			// fall through to insert
		default:
			return nil, fmt.Errorf("memory: look up topic %q: %w", topic, err)
		}
	}

	res, err := s.execHook(s.db, `
INSERT INTO notes (kind, topic, content, graph_id, node_id, tokens, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Kind, nullableString(topic), content,
		nullableString(p.GraphID), nullableString(p.NodeID),
		tokens, Now(), Now(),
	)
	if err != nil {
		return nil, fmt.Errorf("memory: insert note: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("memory: note id: %w", err)
	}
	return s.GetNote(id)
}

// DeleteNote removes a note. Soft delete keeps the row under deleted_at;
// hard delete removes it permanently and drops it from the search index.
func (s *Store) DeleteNote(id int64, hard bool) error {
	var (
		res sql.Result
		err error
	)
	if hard {
		res, err = s.execHook(s.db, `DELETE FROM notes WHERE id = ?`, id)
	} else {
		res, err = s.execHook(s.db, `UPDATE notes SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, Now(), id)
	}
	if err != nil {
		return fmt.Errorf("memory: delete note %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("memory: delete note %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("memory: note %d not found", id)
	}
	return nil
}

// ─── Reads ───────────────────────────────────────────────────────────────────

const noteColumns = `id, kind, topic, content, graph_id, node_id, tokens, revisions, created_at, updated_at, deleted_at`

// GetNote returns a live note by id.
func (s *Store) GetNote(id int64) (*Note, error) {
	row := s.db.QueryRow(
		`SELECT `+noteColumns+` FROM notes WHERE id = ? AND deleted_at IS NULL`, id,
	)
	n, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("memory: note %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("memory: get note %d: %w", id, err)
	}
	return n, nil
}

// SearchNotes runs a full-text query over topics and content, ranked by
// FTS5 bm25. An empty query falls back to the recent timeline. When the FTS
// query matches nothing (stemming can miss exact identifiers), a LIKE scan
// over the same filters runs as a second chance.
func (s *Store) SearchNotes(query string, opts SearchOptions) ([]Note, error) {
	limit := s.clampLimit(opts.Limit)
	if strings.TrimSpace(query) == "" {
		return s.RecentNotes(RecentOptions{Kind: opts.Kind, GraphID: opts.GraphID, Limit: limit})
	}

	where, args := noteFilters(opts.Kind, opts.GraphID)
	ftsArgs := append([]any{sanitizeFTS(query)}, args...)
	ftsArgs = append(ftsArgs, limit)

	rows, err := s.queryHook(s.db, `
SELECT `+prefixColumns("n")+`
FROM notes_fts fts
JOIN notes n ON n.id = fts.rowid
WHERE notes_fts MATCH ? AND n.deleted_at IS NULL`+where+`
ORDER BY fts.rank
LIMIT ?`, ftsArgs...)
	if err != nil {
		return nil, fmt.Errorf("memory: search notes: %w", err)
	}
	notes, err := collectNotes(rows)
	if err != nil {
		return nil, err
	}
	if len(notes) > 0 {
		return notes, nil
	}

	likeArgs := append([]any{"%" + query + "%", "%" + query + "%"}, args...)
	likeArgs = append(likeArgs, limit)
	rows, err = s.queryHook(s.db, `
SELECT `+prefixColumns("n")+`
FROM notes n
WHERE (n.content LIKE ? OR n.topic LIKE ?) AND n.deleted_at IS NULL`+where+`
ORDER BY n.id DESC
LIMIT ?`, likeArgs...)
	if err != nil {
		return nil, fmt.Errorf("memory: search notes (like): %w", err)
	}
	return collectNotes(rows)
}

// RecentNotes returns the newest live notes, optionally filtered by kind
// and graph.
func (s *Store) RecentNotes(opts RecentOptions) ([]Note, error) {
	limit := s.clampLimit(opts.Limit)
	where, args := noteFilters(opts.Kind, opts.GraphID)
	args = append(args, limit)

	rows, err := s.queryHook(s.db, `
SELECT `+prefixColumns("n")+`
FROM notes n
WHERE n.deleted_at IS NULL`+where+`
ORDER BY n.id DESC
LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("memory: recent notes: %w", err)
	}
	return collectNotes(rows)
}

// Stats reports totals over live notes plus the database file size.
func (s *Store) Stats() (*Stats, error) {
	st := &Stats{ByKind: make(map[string]int)}

	rows, err := s.queryHook(s.db, `
SELECT kind, COUNT(*), COALESCE(SUM(tokens), 0)
FROM notes
WHERE deleted_at IS NULL
GROUP BY kind`)
	if err != nil {
		return nil, fmt.Errorf("memory: stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			kind   string
			count  int
			tokens int
		)
		if err := rows.Scan(&kind, &count, &tokens); err != nil {
			return nil, fmt.Errorf("memory: stats scan: %w", err)
		}
		st.ByKind[kind] = count
		st.TotalNotes += count
		st.TotalTokens += tokens
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("memory: stats rows: %w", err)
	}

	if err := s.db.QueryRow(
		`SELECT COUNT(DISTINCT graph_id) FROM notes WHERE graph_id IS NOT NULL AND deleted_at IS NULL`,
	).Scan(&st.Graphs); err != nil {
		return nil, fmt.Errorf("memory: stats graphs: %w", err)
	}

	if fi, err := os.Stat(s.path); err == nil {
		st.DBSizeBytes = fi.Size()
	}
	return st, nil
}

func (s *Store) clampLimit(limit int) int {
	if limit <= 0 {
		return 10
	}
	if limit > s.cfg.MaxSearchResults {
		return s.cfg.MaxSearchResults
	}
	return limit
}

// ─── Row plumbing ────────────────────────────────────────────────────────────

// noteFilters builds the optional AND clauses shared by search and recent.
func noteFilters(kind, graphID string) (string, []any) {
	var (
		where strings.Builder
		args  []any
	)
	if kind != "" {
		where.WriteString(" AND n.kind = ?")
		args = append(args, kind)
	}
	if graphID != "" {
		where.WriteString(" AND n.graph_id = ?")
		args = append(args, graphID)
	}
	return where.String(), args
}

func prefixColumns(alias string) string {
	cols := strings.Split(noteColumns, ", ")
	for i, c := range cols {
		cols[i] = alias + "." + c
	}
	return strings.Join(cols, ", ")
}

type rowLike interface {
	Scan(dest ...any) error
}

func scanNote(row rowLike) (*Note, error) {
	var n Note
	err := row.Scan(
		&n.ID, &n.Kind, &n.Topic, &n.Content,
		&n.GraphID, &n.NodeID, &n.Tokens, &n.Revisions,
		&n.CreatedAt, &n.UpdatedAt, &n.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func collectNotes(rows *sql.Rows) ([]Note, error) {
	defer rows.Close()
	var notes []Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("memory: scan note: %w", err)
		}
		notes = append(notes, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("memory: iterate notes: %w", err)
	}
	return notes, nil
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// nullableString converts an empty string to a NULL-storing nil.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Truncate shortens s to at most max bytes, appending "..." when cut.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// sanitizeFTS quotes each word so user input cannot inject FTS5 query
// syntax (NEAR, AND, column filters).
func sanitizeFTS(query string) string {
	words := strings.Fields(query)
	quoted := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.ReplaceAll(w, `"`, "")
		if w == "" {
			continue
		}
		quoted = append(quoted, `"`+w+`"`)
	}
	return strings.Join(quoted, " ")
}

// Now returns the current UTC time in SQLite's datetime('now') format.
func Now() string {
	return time.Now().UTC().Format("2006-01-02 15:04:05")
}
