// Package sqlite provides the SQLite-backed transcript store.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration

	"github.com/clewhq/clew/internal/transcript"
)

const busyTimeoutMillis = 5000

const schemaVersion = 1

// schemaStatements are executed in order to create the database schema.
// All use IF NOT EXISTS for idempotent re-application.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS entries (
		session_id TEXT    NOT NULL,
		seq        INTEGER NOT NULL,
		kind       TEXT    NOT NULL,
		text       TEXT    NOT NULL DEFAULT '',
		tool_name  TEXT    NOT NULL DEFAULT '',
		call_id    TEXT    NOT NULL DEFAULT '',
		status     TEXT    NOT NULL DEFAULT '',
		is_error   INTEGER NOT NULL DEFAULT 0,
		created_at TEXT    NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
		PRIMARY KEY (session_id, seq)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_entries_session ON entries(session_id, seq)`,
}

// Store is a transcript.Store backed by a single SQLite file.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) a SQLite database at the given path.
//
// The database uses WAL mode, a 5 s busy timeout, and a single connection
// (SQLite serialises writes). The schema is migrated automatically.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("sqlite: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}

	db.SetMaxOpenConns(1)

	ctx := context.TODO()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: enable WAL: %w", err)
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeoutMillis)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: set busy_timeout: %w", err)
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// migrate creates or updates the database schema to the latest version.
func migrate(db *sql.DB) error {
	ctx := context.TODO()

	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("sqlite: create schema_version: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("sqlite: read schema version: %w", err)
	}

	if current >= schemaVersion {
		return nil
	}

	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: migrate: %w\nstatement: %s", err, stmt)
		}
	}

	if _, err := db.ExecContext(ctx, "INSERT OR REPLACE INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("sqlite: record schema version: %w", err)
	}

	return nil
}

// Append records one entry, assigning the next sequence number for the
// session.
func (s *Store) Append(ctx context.Context, e transcript.Entry) error {
	isError := 0
	if e.IsError {
		isError = 1
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entries (session_id, seq, kind, text, tool_name, call_id, status, is_error)
		VALUES (?, COALESCE((SELECT MAX(seq) FROM entries WHERE session_id = ?), 0) + 1,
		        ?, ?, ?, ?, ?, ?)`,
		e.SessionID, e.SessionID,
		string(e.Kind), e.Text, e.ToolName, e.CallID, e.Status, isError,
	)
	if err != nil {
		return fmt.Errorf("sqlite: append entry: %w", err)
	}
	return nil
}

// Entries returns a session's entries in chronological order.
func (s *Store) Entries(ctx context.Context, sessionID string) ([]transcript.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, seq, kind, text, tool_name, call_id, status, is_error, created_at
		FROM entries
		WHERE session_id = ?
		ORDER BY seq ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: entries: %w", err)
	}
	return collectEntries(rows)
}

// Recent returns the n most recent entries for a session, chronological.
func (s *Store) Recent(ctx context.Context, sessionID string, n int) ([]transcript.Entry, error) {
	if n <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, seq, kind, text, tool_name, call_id, status, is_error, created_at
		FROM entries
		WHERE session_id = ?
		ORDER BY seq DESC
		LIMIT ?`,
		sessionID, n,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: recent: %w", err)
	}
	entries, err := collectEntries(rows)
	if err != nil {
		return nil, err
	}

	slices.Reverse(entries)
	return entries, nil
}

// Sessions lists every recorded session, most recently active first.
func (s *Store) Sessions(ctx context.Context) ([]transcript.SessionInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, COUNT(*), MAX(created_at)
		FROM entries
		GROUP BY session_id
		ORDER BY MAX(created_at) DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var infos []transcript.SessionInfo
	for rows.Next() {
		var info transcript.SessionInfo
		var last string
		if err := rows.Scan(&info.SessionID, &info.Entries, &last); err != nil {
			return nil, fmt.Errorf("sqlite: scan session: %w", err)
		}
		info.LastAt, _ = time.Parse(time.RFC3339Nano, last)
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: session rows: %w", err)
	}
	return infos, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func collectEntries(rows *sql.Rows) ([]transcript.Entry, error) {
	defer func() { _ = rows.Close() }()

	var entries []transcript.Entry
	for rows.Next() {
		var e transcript.Entry
		var isError int
		var created string
		if err := rows.Scan(&e.SessionID, &e.Seq, (*string)(&e.Kind), &e.Text, &e.ToolName, &e.CallID, &e.Status, &isError, &created); err != nil {
			return nil, fmt.Errorf("sqlite: scan entry: %w", err)
		}
		e.IsError = isError != 0
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: entry rows: %w", err)
	}
	return entries, nil
}

var _ transcript.Store = (*Store)(nil)
