// Package dlq implements the Dead-Letter Queue (C8, spec.md §4.8): a
// relational store for events whose graph write failed, plus the
// retry-ladder state machine that re-applies them.
//
// Adapted from the teacher's internal/dlq/queue.go, which backs a DLQ
// with raw database/sql against Postgres rather than the graph store
// itself — the entries here keep that choice for the same reason: a
// dead-lettered event must survive even when the graph store is the
// thing that is down.
package dlq

import (
	"context"
	"database/sql"
	"time"

	graphkgerrors "github.com/graphkg/service/internal/errors"
	"github.com/graphkg/service/internal/models"

	_ "github.com/lib/pq"
)

// Store is the Postgres-backed persistence layer for dead-letter entries.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS dead_letter_queue (
	id              TEXT PRIMARY KEY,
	graph_id        TEXT NOT NULL,
	original_event  TEXT NOT NULL,
	failure_reason  TEXT NOT NULL DEFAULT '',
	failed_at       TIMESTAMPTZ NOT NULL,
	retry_count     INTEGER NOT NULL DEFAULT 0,
	last_retry_at   TIMESTAMPTZ,
	status          TEXT NOT NULL DEFAULT 'pending'
);
CREATE INDEX IF NOT EXISTS idx_dlq_graph_status ON dead_letter_queue (graph_id, status);
`

// NewStore opens the Postgres connection named by dsn and ensures the
// dead_letter_queue table exists, mirroring the teacher's
// NewSQLiteStore: connect, then initialize schema, in one constructor.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, graphkgerrors.ServiceUnavailable(err, "failed to open dlq store")
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, graphkgerrors.ServiceUnavailable(err, "dlq store unreachable")
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, graphkgerrors.ServiceUnavailable(err, "failed to initialize dlq schema")
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Enqueue records a new dead-letter entry. Re-enqueuing an id that already
// exists (a second failure for the same event) resets it to pending and
// appends to the failure-reason audit trail rather than overwriting it.
func (s *Store) Enqueue(ctx context.Context, entry *models.DeadLetterEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dead_letter_queue (id, graph_id, original_event, failure_reason, failed_at, retry_count, status)
		VALUES ($1, $2, $3, $4, $5, 0, 'pending')
		ON CONFLICT (id) DO UPDATE
		SET failure_reason = dead_letter_queue.failure_reason || '; ' || $4,
		    failed_at = $5,
		    status = 'pending'
	`, entry.ID, entry.GraphID, entry.OriginalEvent, entry.FailureReason, entry.FailedAt)
	if err != nil {
		return graphkgerrors.ServiceUnavailable(err, "failed to enqueue dead-letter entry %q", entry.ID)
	}
	return nil
}

// Get fetches a single entry by id, scoped to its tenant.
func (s *Store) Get(ctx context.Context, tenantID, id string) (*models.DeadLetterEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, graph_id, original_event, failure_reason, failed_at, retry_count, last_retry_at, status
		FROM dead_letter_queue
		WHERE id = $1 AND graph_id = $2
	`, id, tenantID)

	var e models.DeadLetterEntry
	var lastRetryAt sql.NullTime
	if err := row.Scan(&e.ID, &e.GraphID, &e.OriginalEvent, &e.FailureReason, &e.FailedAt, &e.RetryCount, &lastRetryAt, &e.Status); err != nil {
		if err == sql.ErrNoRows {
			return nil, graphkgerrors.NotFound("dead-letter entry %q not found", id)
		}
		return nil, graphkgerrors.ServiceUnavailable(err, "failed to fetch dead-letter entry %q", id)
	}
	if lastRetryAt.Valid {
		e.LastRetryAt = &lastRetryAt.Time
	}
	return &e, nil
}

// ListPending returns entries in pending status for a tenant, oldest first
// — the order retries should be attempted in.
func (s *Store) ListPending(ctx context.Context, tenantID string, limit int) ([]models.DeadLetterEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, graph_id, original_event, failure_reason, failed_at, retry_count, last_retry_at, status
		FROM dead_letter_queue
		WHERE graph_id = $1 AND status = 'pending'
		ORDER BY failed_at ASC
		LIMIT $2
	`, tenantID, limit)
	if err != nil {
		return nil, graphkgerrors.ServiceUnavailable(err, "failed to list pending dead-letter entries")
	}
	defer rows.Close()

	var entries []models.DeadLetterEntry
	for rows.Next() {
		var e models.DeadLetterEntry
		var lastRetryAt sql.NullTime
		if err := rows.Scan(&e.ID, &e.GraphID, &e.OriginalEvent, &e.FailureReason, &e.FailedAt, &e.RetryCount, &lastRetryAt, &e.Status); err != nil {
			return nil, graphkgerrors.ServiceUnavailable(err, "failed to scan dead-letter entry")
		}
		if lastRetryAt.Valid {
			e.LastRetryAt = &lastRetryAt.Time
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// MarkRetrying transitions an entry to retrying just before a retry
// attempt, so a concurrent retry of the same entry observes the state
// change rather than racing on the same pending row.
func (s *Store) MarkRetrying(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE dead_letter_queue SET status = 'retrying', last_retry_at = $2
		WHERE id = $1
	`, id, at)
	if err != nil {
		return graphkgerrors.ServiceUnavailable(err, "failed to mark dead-letter entry %q retrying", id)
	}
	return nil
}

// MarkResolved transitions an entry to resolved after a successful re-apply.
func (s *Store) MarkResolved(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE dead_letter_queue SET status = 'resolved' WHERE id = $1`, id)
	if err != nil {
		return graphkgerrors.ServiceUnavailable(err, "failed to mark dead-letter entry %q resolved", id)
	}
	return nil
}

// RecordFailure increments retry_count, appends to the failure-reason
// audit trail, and sets status to pending or abandoned depending on
// whether maxRetries has been reached.
func (s *Store) RecordFailure(ctx context.Context, id, reason string, abandoned bool) error {
	status := "pending"
	if abandoned {
		status = "abandoned"
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE dead_letter_queue
		SET retry_count = retry_count + 1,
		    failure_reason = failure_reason || '; ' || $2,
		    status = $3
		WHERE id = $1
	`, id, reason, status)
	if err != nil {
		return graphkgerrors.ServiceUnavailable(err, "failed to record retry failure for dead-letter entry %q", id)
	}
	return nil
}
