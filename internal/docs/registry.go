// Package docs keeps a registry of project documents so the agent can find
// the spec, ADR, or runbook that governs the work it is about to do.
//
// The registry stores metadata and a search index, not document bodies:
// path points at the real file, summary and tags feed FTS5. SQLite via
// modernc.org/sqlite, same driver and pragma set as the note store.
package docs

import (
	"database/sql"
	"encoding/json"
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

// ─── Types ───────────────────────────────────────────────────────────────────

// Document types.
const (
	TypeSpec    = "spec"
	TypeADR     = "adr"
	TypeRunbook = "runbook"
	TypeDesign  = "design"
	TypeGuide   = "guide"
)

var validDocTypes = map[string]bool{
	TypeSpec:    true,
	TypeADR:     true,
	TypeRunbook: true,
	TypeDesign:  true,
	TypeGuide:   true,
}

// DocTypeValues returns the document types for MCP tool enum definitions.
func DocTypeValues() []string {
	return []string{TypeSpec, TypeADR, TypeRunbook, TypeDesign, TypeGuide}
}

// ValidateDocType checks that docType is a known document type.
func ValidateDocType(docType string) error {
	if !validDocTypes[docType] {
		return fmt.Errorf("invalid document type %q: must be one of: %s", docType, strings.Join(DocTypeValues(), ", "))
	}
	return nil
}

// Document is one registered project document.
type Document struct {
	ID        int64    `json:"id"`
	Slug      string   `json:"slug"`
	Title     string   `json:"title"`
	DocType   string   `json:"doc_type"`
	Path      *string  `json:"path,omitempty"`
	Summary   *string  `json:"summary,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	CreatedAt string   `json:"created_at"`
	UpdatedAt string   `json:"updated_at"`
}

// RegisterParams holds the input for Register.
type RegisterParams struct {
	Slug    string   `json:"slug,omitempty"`
	Title   string   `json:"title"`
	DocType string   `json:"doc_type"`
	Path    string   `json:"path,omitempty"`
	Summary string   `json:"summary,omitempty"`
	Tags    []string `json:"tags,omitempty"`
}

// ─── Registry ────────────────────────────────────────────────────────────────

// Registry is the SQLite-backed document registry.
type Registry struct {
	db *sql.DB
}

// Open creates the registry database under dataDir and runs migrations.
func Open(dataDir string) (*Registry, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("docs: create data dir: %w", err)
	}

	db, err := openDB("sqlite", filepath.Join(dataDir, "docs.db"))
	if err != nil {
		return nil, fmt.Errorf("docs: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("docs: set pragma %q: %w", p, err)
		}
	}

	r := &Registry{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

// Close closes the underlying database.
func (r *Registry) Close() error {
	return r.db.Close()
}

func (r *Registry) migrate() error {
	schema := `
CREATE TABLE IF NOT EXISTS documents (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	slug        TEXT NOT NULL UNIQUE,
	title       TEXT NOT NULL,
	doc_type    TEXT NOT NULL,
	path        TEXT,
	summary     TEXT,
	tags        TEXT NOT NULL DEFAULT '[]',
	created_at  TEXT NOT NULL DEFAULT (datetime('now')),
	updated_at  TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_documents_type ON documents(doc_type);
`
	if _, err := r.db.Exec(schema); err != nil {
		return fmt.Errorf("docs: create schema: %w", err)
	}

	if _, err := r.db.Exec(`
CREATE VIRTUAL TABLE IF NOT EXISTS documents_fts USING fts5(
	title, summary, tags,
	content='documents',
	content_rowid='id',
	tokenize='porter unicode61'
)`); err != nil {
		return fmt.Errorf("docs: create fts table: %w", err)
	}

	triggers := []struct {
		name string
		ddl  string
	}{
		{"documents_ai", `
CREATE TRIGGER documents_ai AFTER INSERT ON documents BEGIN
	INSERT INTO documents_fts(rowid, title, summary, tags)
	VALUES (new.id, new.title, COALESCE(new.summary, ''), new.tags);
END`},
		{"documents_ad", `
CREATE TRIGGER documents_ad AFTER DELETE ON documents BEGIN
	INSERT INTO documents_fts(documents_fts, rowid, title, summary, tags)
	VALUES ('delete', old.id, old.title, COALESCE(old.summary, ''), old.tags);
END`},
		{"documents_au", `
CREATE TRIGGER documents_au AFTER UPDATE ON documents BEGIN
	INSERT INTO documents_fts(documents_fts, rowid, title, summary, tags)
	VALUES ('delete', old.id, old.title, COALESCE(old.summary, ''), old.tags);
	INSERT INTO documents_fts(rowid, title, summary, tags)
	VALUES (new.id, new.title, COALESCE(new.summary, ''), new.tags);
END`},
	}
	for _, trg := range triggers {
		var name string
		err := r.db.QueryRow(
			`SELECT name FROM sqlite_master WHERE type='trigger' AND name=?`, trg.name,
		).Scan(&name)
		if errors.Is(err, sql.ErrNoRows) {
			if _, err := r.db.Exec(trg.ddl); err != nil {
				return fmt.Errorf("docs: create trigger %s: %w", trg.name, err)
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("docs: check trigger %s: %w", trg.name, err)
		}
	}
	return nil
}

// ─── Operations ──────────────────────────────────────────────────────────────

// Register stores a document. With an explicit Slug it upserts: an existing
// document under that slug is updated in place. Without one the slug derives
// from the title, and collisions get -2, -3 suffixes so a repeated title
// never silently overwrites a different document.
func (r *Registry) Register(p RegisterParams) (*Document, error) {
	title := strings.TrimSpace(p.Title)
	if title == "" {
		return nil, fmt.Errorf("docs: document title cannot be empty")
	}
	if err := ValidateDocType(p.DocType); err != nil {
		return nil, err
	}

	tags, err := json.Marshal(cleanTags(p.Tags))
	if err != nil {
		return nil, fmt.Errorf("docs: encode tags: %w", err)
	}

	if p.Slug != "" {
		slug := Slugify(p.Slug)
		var id int64
		err := r.db.QueryRow(`SELECT id FROM documents WHERE slug = ?`, slug).Scan(&id)
		switch {
		case err == nil:
			if _, err := r.db.Exec(`
UPDATE documents
SET title = ?, doc_type = ?, path = ?, summary = ?, tags = ?, updated_at = ?
WHERE id = ?`,
				title, p.DocType, nullableString(p.Path), nullableString(p.Summary),
				string(tags), now(), id,
			); err != nil {
				return nil, fmt.Errorf("docs: update document %s: %w", slug, err)
			}
			return r.Get(slug)
		case errors.Is(err, sql.ErrNoRows):
			return r.insert(slug, title, p, string(tags))
		default:
			return nil, fmt.Errorf("docs: look up slug %s: %w", slug, err)
		}
	}

	slug, err := r.freeSlug(Slugify(title))
	if err != nil {
		return nil, err
	}
	return r.insert(slug, title, p, string(tags))
}

func (r *Registry) insert(slug, title string, p RegisterParams, tags string) (*Document, error) {
	_, err := r.db.Exec(`
INSERT INTO documents (slug, title, doc_type, path, summary, tags, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		slug, title, p.DocType, nullableString(p.Path), nullableString(p.Summary),
		tags, now(), now(),
	)
	if err != nil {
		return nil, fmt.Errorf("docs: insert document %s: %w", slug, err)
	}
	return r.Get(slug)
}

// freeSlug returns base or the first -N suffixed variant not yet taken.
func (r *Registry) freeSlug(base string) (string, error) {
	slug := base
	for suffix := 2; ; suffix++ {
		var id int64
		err := r.db.QueryRow(`SELECT id FROM documents WHERE slug = ?`, slug).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return slug, nil
		}
		if err != nil {
			return "", fmt.Errorf("docs: probe slug %s: %w", slug, err)
		}
		slug = fmt.Sprintf("%s-%d", base, suffix)
	}
}

const docColumns = `id, slug, title, doc_type, path, summary, tags, created_at, updated_at`

// Get returns a document by slug.
func (r *Registry) Get(slug string) (*Document, error) {
	row := r.db.QueryRow(`SELECT `+docColumns+` FROM documents WHERE slug = ?`, slug)
	d, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("docs: document %q not found", slug)
	}
	if err != nil {
		return nil, fmt.Errorf("docs: get document %q: %w", slug, err)
	}
	return d, nil
}

// List returns documents ordered by last update, optionally filtered by type.
func (r *Registry) List(docType string, limit int) ([]Document, error) {
	if docType != "" {
		if err := ValidateDocType(docType); err != nil {
			return nil, err
		}
	}
	limit = clampLimit(limit)

	var (
		rows *sql.Rows
		err  error
	)
	if docType != "" {
		rows, err = r.db.Query(`
SELECT `+docColumns+` FROM documents
WHERE doc_type = ?
ORDER BY updated_at DESC, id DESC
LIMIT ?`, docType, limit)
	} else {
		rows, err = r.db.Query(`
SELECT `+docColumns+` FROM documents
ORDER BY updated_at DESC, id DESC
LIMIT ?`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("docs: list documents: %w", err)
	}
	return collectDocuments(rows)
}

// Search runs a full-text query over titles, summaries, and tags, ranked by
// bm25. An empty query falls back to List.
func (r *Registry) Search(query string, limit int) ([]Document, error) {
	if strings.TrimSpace(query) == "" {
		return r.List("", limit)
	}
	limit = clampLimit(limit)

	rows, err := r.db.Query(`
SELECT `+prefixDocColumns("d")+`
FROM documents_fts fts
JOIN documents d ON d.id = fts.rowid
WHERE documents_fts MATCH ?
ORDER BY fts.rank
LIMIT ?`, sanitizeFTS(query), limit)
	if err != nil {
		return nil, fmt.Errorf("docs: search documents: %w", err)
	}
	return collectDocuments(rows)
}

// Count returns the number of registered documents.
func (r *Registry) Count() (int, error) {
	var n int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("docs: count documents: %w", err)
	}
	return n, nil
}

// ─── Row plumbing ────────────────────────────────────────────────────────────

func scanDocument(row interface{ Scan(...any) error }) (*Document, error) {
	var (
		d    Document
		tags string
	)
	err := row.Scan(&d.ID, &d.Slug, &d.Title, &d.DocType, &d.Path, &d.Summary, &tags, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tags), &d.Tags); err != nil {
		return nil, fmt.Errorf("decode tags for %s: %w", d.Slug, err)
	}
	return &d, nil
}

func collectDocuments(rows *sql.Rows) ([]Document, error) {
	defer rows.Close()
	var out []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("docs: scan document: %w", err)
		}
		out = append(out, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("docs: iterate documents: %w", err)
	}
	return out, nil
}

func prefixDocColumns(alias string) string {
	cols := strings.Split(docColumns, ", ")
	for i, c := range cols {
		cols[i] = alias + "." + c
	}
	return strings.Join(cols, ", ")
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(strings.ToLower(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > 50 {
		return 50
	}
	return limit
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// sanitizeFTS quotes each word so user input cannot inject FTS5 query syntax.
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

func now() string {
	return time.Now().UTC().Format("2006-01-02 15:04:05")
}
