package journal

import (
	"context"
	"database/sql"
	"fmt"
	mathrand "math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

const sqliteLogPrefix = "journal:sqlite_store"

// SQLiteStore is a file-backed Store for running without Postgres. Rows are
// keyed by ULID so the table sorts in insertion order.
type SQLiteStore struct {
	db   *sql.DB
	path string

	entropyMu sync.Mutex
	entropy   *ulid.MonotonicEntropy
}

// OpenSQLiteStore opens or creates the journal database at path.
func OpenSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("%s - create directory for %s: %w", sqliteLogPrefix, path, err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%s - open %s: %w", sqliteLogPrefix, path, err)
	}
	s := &SQLiteStore{
		db:      db,
		path:    path,
		entropy: ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0),
	}
	if err := s.init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the underlying SQLite file path.
func (s *SQLiteStore) Path() string { return s.path }

func (s *SQLiteStore) init(ctx context.Context) error {
	stmts := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA busy_timeout = 5000;",
		`CREATE TABLE IF NOT EXISTS request_journal (
			id            TEXT PRIMARY KEY,
			entry_id      TEXT NOT NULL UNIQUE,
			requester     TEXT NOT NULL,
			request_id    INTEGER NOT NULL,
			payload_dump  TEXT NOT NULL,
			status        TEXT NOT NULL,
			error_message TEXT,
			started_at    INTEGER NOT NULL,
			duration_ms   INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_request_journal_requester_started ON request_journal(requester, started_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s - apply schema: %w", sqliteLogPrefix, err)
		}
	}
	return nil
}

func (s *SQLiteStore) newRowID() string {
	s.entropyMu.Lock()
	defer s.entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *SQLiteStore) Insert(ctx context.Context, e Entry) error {
	var errorMessage sql.NullString
	if e.ErrorMessage != "" {
		errorMessage = sql.NullString{String: e.ErrorMessage, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO request_journal
			(id, entry_id, requester, request_id, payload_dump, status, error_message, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.newRowID(), e.ID.String(), e.Requester, e.RequestID, e.PayloadDump, e.Status, errorMessage,
		e.StartedAt.UnixMilli(), e.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("%s - insert entry %s: %w", sqliteLogPrefix, e.ID, err)
	}
	return nil
}

// Recent returns the latest entries of requester, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, requester string, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entry_id, requester, request_id, payload_dump, status, COALESCE(error_message, ''), started_at, duration_ms
		FROM request_journal
		WHERE requester = ?
		ORDER BY started_at DESC, id DESC
		LIMIT ?`,
		requester, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("%s - query recent entries: %w", sqliteLogPrefix, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var entryID string
		var startedMs, durationMs int64
		if err := rows.Scan(&entryID, &e.Requester, &e.RequestID, &e.PayloadDump, &e.Status, &e.ErrorMessage, &startedMs, &durationMs); err != nil {
			return nil, fmt.Errorf("%s - scan entry: %w", sqliteLogPrefix, err)
		}
		if e.ID, err = uuid.Parse(entryID); err != nil {
			return nil, fmt.Errorf("%s - entry id %q: %w", sqliteLogPrefix, entryID, err)
		}
		e.StartedAt = time.UnixMilli(startedMs)
		e.Duration = time.Duration(durationMs) * time.Millisecond
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s - iterate entries: %w", sqliteLogPrefix, err)
	}
	return entries, nil
}

// Close releases database resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
