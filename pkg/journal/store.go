package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/morezero/message-bridge/pkg/requesting"
)

const storeLogPrefix = "journal:store"

// Entry is one journal row.
type Entry struct {
	ID           uuid.UUID
	Requester    string
	RequestID    int64
	PayloadDump  string
	Status       string
	ErrorMessage string
	StartedAt    time.Time
	Duration     time.Duration
}

// EntryFromCompleted converts a completed request into a new Entry.
func EntryFromCompleted(req requesting.CompletedRequest) Entry {
	return Entry{
		ID:           uuid.New(),
		Requester:    req.Requester,
		RequestID:    int64(req.RequestID),
		PayloadDump:  req.PayloadDump,
		Status:       req.Result.Status().String(),
		ErrorMessage: req.Result.ErrorMessage(),
		StartedAt:    req.StartedAt,
		Duration:     req.Duration,
	}
}

// Store persists journal entries.
type Store interface {
	Insert(ctx context.Context, entry Entry) error
}

// PgStore is the Postgres Store.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a PgStore over pool.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func (s *PgStore) Insert(ctx context.Context, e Entry) error {
	var errorMessage *string
	if e.ErrorMessage != "" {
		errorMessage = &e.ErrorMessage
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO request_journal
			(id, requester, request_id, payload_dump, status, error_message, started_at, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.Requester, e.RequestID, e.PayloadDump, e.Status, errorMessage, e.StartedAt, e.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("%s - insert entry %s: %w", storeLogPrefix, e.ID, err)
	}
	return nil
}

// Recent returns the latest entries of requester, newest first.
func (s *PgStore) Recent(ctx context.Context, requester string, limit int) ([]Entry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, requester, request_id, payload_dump, status, COALESCE(error_message, ''), started_at, duration_ms
		FROM request_journal
		WHERE requester = $1
		ORDER BY started_at DESC, request_id DESC
		LIMIT $2`,
		requester, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("%s - query recent entries: %w", storeLogPrefix, err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Entry, error) {
		var e Entry
		var durationMs int64
		if err := row.Scan(&e.ID, &e.Requester, &e.RequestID, &e.PayloadDump, &e.Status, &e.ErrorMessage, &e.StartedAt, &durationMs); err != nil {
			return Entry{}, err
		}
		e.Duration = time.Duration(durationMs) * time.Millisecond
		return e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s - scan recent entries: %w", storeLogPrefix, err)
	}
	return entries, nil
}
