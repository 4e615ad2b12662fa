package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cognicore/wikistat/pkg/wikistat/internalerr"
	"github.com/cognicore/wikistat/pkg/wikistat/links"
	"github.com/cognicore/wikistat/pkg/wikistat/page"
	"github.com/cognicore/wikistat/pkg/wikistat/store"
)

// DefaultSchema is the DDL applied when Open is given no script.
//
//go:embed schema.sql
var DefaultSchema string

// sqliteStore implements the Store interface using SQLite
type sqliteStore struct {
	db *sql.DB
}

// Open opens a SQLite database with WAL mode enabled and runs schemaScript
// against it. The script must be idempotent (CREATE … IF NOT EXISTS) since it
// runs on every open. An empty script applies DefaultSchema.
func Open(ctx context.Context, path, schemaScript string) (store.Store, error) {
	if strings.TrimSpace(schemaScript) == "" {
		schemaScript = DefaultSchema
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Pragmas are per connection, so the pool is pinned to one.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	// Enable foreign keys
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, err
	}

	if _, err := db.ExecContext(ctx, schemaScript); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &sqliteStore{db: db}, nil
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// StartRun inserts a run row.
func (s *sqliteStore) StartRun(ctx context.Context, r store.Run) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO runs (id, dump_path, started_at, status)
VALUES (?, ?, ?, ?)`,
		r.ID, r.DumpPath, formatTime(r.StartedAt), string(r.Status),
	)
	return err
}

// FinishRun records the outcome of a run.
func (s *sqliteStore) FinishRun(ctx context.Context, r store.Run) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE runs SET finished_at=?, status=?, pages_read=?, pages_written=?, issues=?
WHERE id=?`,
		formatTime(r.FinishedAt), string(r.Status), r.PagesRead, r.PagesWritten, r.Issues, r.ID,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %s: %w", r.ID, internalerr.ErrNotFound)
	}
	return nil
}

// GetRun loads a run by id.
func (s *sqliteStore) GetRun(ctx context.Context, id string) (store.Run, bool, error) {
	var (
		r                 store.Run
		started, finished sql.NullString
		status            string
	)
	err := s.db.QueryRowContext(ctx, `
SELECT id, dump_path, started_at, finished_at, status, pages_read, pages_written, issues
FROM runs WHERE id=?`, id).Scan(
		&r.ID, &r.DumpPath, &started, &finished, &status, &r.PagesRead, &r.PagesWritten, &r.Issues,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Run{}, false, nil
	}
	if err != nil {
		return store.Run{}, false, err
	}
	r.Status = store.RunStatus(status)
	r.StartedAt = parseTime(started.String)
	r.FinishedAt = parseTime(finished.String)
	return r, true, nil
}

// WritePage inserts or replaces a page keyed by title. Untitled pages are
// always inserted as new rows.
func (s *sqliteStore) WritePage(ctx context.Context, runID string, rec page.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt := `
INSERT INTO pages (title, slug, wiki_id, run_id)
VALUES (?, ?, ?, ?)
RETURNING id;`
	if rec.Title != "" {
		stmt = `
INSERT INTO pages (title, slug, wiki_id, run_id)
VALUES (?, ?, ?, ?)
ON CONFLICT(title) WHERE title <> '' DO UPDATE SET
	slug=excluded.slug,
	wiki_id=excluded.wiki_id,
	run_id=excluded.run_id
RETURNING id;`
	}

	var pageID int64
	err = tx.QueryRowContext(ctx, stmt,
		rec.Title,
		links.URLEnding(rec.Title),
		nullInt(rec.ID),
		nullString(runID),
	).Scan(&pageID)
	if err != nil {
		return err
	}

	if err := replaceRows(ctx, tx, "page_words", "rank", "word", pageID, rec.TopWords); err != nil {
		return err
	}
	if err := replaceRows(ctx, tx, "page_links", "position", "target", pageID, rec.Links); err != nil {
		return err
	}

	return tx.Commit()
}

// replaceRows rewrites the ordered child rows of one page.
func replaceRows(ctx context.Context, tx *sql.Tx, table, posCol, valCol string, pageID int64, values []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE page_id=?`, pageID); err != nil {
		return err
	}
	if len(values) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO %s (page_id, %s, %s) VALUES (?, ?, ?)`, table, posCol, valCol))
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, v := range values {
		if _, err := stmt.ExecContext(ctx, pageID, i, v); err != nil {
			return err
		}
	}
	return nil
}

// GetPage loads a page by title.
func (s *sqliteStore) GetPage(ctx context.Context, title string) (page.Record, bool, error) {
	var (
		pageID int64
		wikiID sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `SELECT id, wiki_id FROM pages WHERE title = ? AND title <> ''`, title).Scan(&pageID, &wikiID)
	if errors.Is(err, sql.ErrNoRows) {
		return page.Record{}, false, nil
	}
	if err != nil {
		return page.Record{}, false, err
	}

	words, err := s.loadColumn(ctx, `SELECT word FROM page_words WHERE page_id=? ORDER BY rank`, pageID)
	if err != nil {
		return page.Record{}, false, err
	}
	targets, err := s.loadColumn(ctx, `SELECT target FROM page_links WHERE page_id=? ORDER BY position`, pageID)
	if err != nil {
		return page.Record{}, false, err
	}

	return page.Record{
		ID:       wikiID.Int64,
		Title:    title,
		Links:    targets,
		TopWords: words,
	}, true, nil
}

func (s *sqliteStore) loadColumn(ctx context.Context, query string, pageID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, pageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// CountPages returns the number of stored pages.
func (s *sqliteStore) CountPages(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pages`).Scan(&n)
	return n, err
}

func formatTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullInt(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}

func nullString(v string) any {
	if v == "" {
		return nil
	}
	return v
}
