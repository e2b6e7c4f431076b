package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// OutcomeStatus is the terminal state of a dispatch for one document.
type OutcomeStatus string

const (
	// StatusDelivered means the provider accepted the notification.
	StatusDelivered OutcomeStatus = "delivered"
	// StatusFailed means the last attempt failed; retry may be permitted.
	StatusFailed OutcomeStatus = "failed"
	// StatusDeadLetter means retries are exhausted; never retried again.
	StatusDeadLetter OutcomeStatus = "dead_letter"
)

// FailureReason qualifies a failed outcome.
type FailureReason string

const (
	// ReasonValidation marks a booking record that can never render a
	// notification. Terminal: retrying cannot fix the data.
	ReasonValidation FailureReason = "validation"
	// ReasonPermanent marks a provider rejection that will not change on
	// retry (invalid recipient, 4xx).
	ReasonPermanent FailureReason = "permanent"
	// ReasonTransient marks a provider failure that may clear up
	// (rate limit, timeout, 5xx). Retried on feed redelivery.
	ReasonTransient FailureReason = "transient"
)

// DeliveryOutcome records the dispatch state for one booking document.
type DeliveryOutcome struct {
	DocumentID string        `json:"document_id"`
	AttemptID  string        `json:"attempt_id"`
	Status     OutcomeStatus `json:"status"`
	Reason     FailureReason `json:"reason,omitempty"`
	Attempts   int           `json:"attempts"`
	ProviderID string        `json:"provider_id,omitempty"`
	LastError  string        `json:"last_error,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// Terminal reports whether the outcome permits no further dispatch
// attempts. Delivered and dead-lettered documents are done; failed ones
// are done when the failure cannot be fixed by retrying.
func (o DeliveryOutcome) Terminal() bool {
	switch o.Status {
	case StatusDelivered, StatusDeadLetter:
		return true
	case StatusFailed:
		return o.Reason == ReasonValidation || o.Reason == ReasonPermanent
	}
	return false
}

// OutcomeStore is the dispatcher's idempotency store.
type OutcomeStore interface {
	// Get returns the outcome recorded for documentID, or nil if none.
	Get(ctx context.Context, documentID string) (*DeliveryOutcome, error)
	// Record upserts the outcome for its document id.
	Record(ctx context.Context, outcome DeliveryOutcome) error
	// List returns the most recent outcomes, newest first, optionally
	// filtered by status. limit <= 0 applies a default cap.
	List(ctx context.Context, status OutcomeStatus, limit int) ([]DeliveryOutcome, error)
}

const defaultListLimit = 100

// SQLiteOutcomeStore implements OutcomeStore on the shared SQLite handle.
type SQLiteOutcomeStore struct {
	db *sql.DB
}

// NewSQLiteOutcomeStore creates an OutcomeStore backed by db.
func NewSQLiteOutcomeStore(db *sql.DB) *SQLiteOutcomeStore {
	return &SQLiteOutcomeStore{db: db}
}

// Get returns the outcome for documentID, or nil when none is recorded.
func (s *SQLiteOutcomeStore) Get(ctx context.Context, documentID string) (*DeliveryOutcome, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT document_id, attempt_id, status, reason, attempts, provider_id, last_error, created_at, updated_at
		FROM delivery_outcomes WHERE document_id = ?`, documentID)

	var o DeliveryOutcome
	err := row.Scan(&o.DocumentID, &o.AttemptID, &o.Status, &o.Reason,
		&o.Attempts, &o.ProviderID, &o.LastError, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading outcome for document %q: %w", documentID, err)
	}
	return &o, nil
}

// Record upserts the outcome for its document id. The created_at of the
// first record is preserved across updates.
func (s *SQLiteOutcomeStore) Record(ctx context.Context, outcome DeliveryOutcome) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO delivery_outcomes
			(document_id, attempt_id, status, reason, attempts, provider_id, last_error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(document_id) DO UPDATE SET
			attempt_id  = excluded.attempt_id,
			status      = excluded.status,
			reason      = excluded.reason,
			attempts    = excluded.attempts,
			provider_id = excluded.provider_id,
			last_error  = excluded.last_error,
			updated_at  = excluded.updated_at`,
		outcome.DocumentID, outcome.AttemptID, outcome.Status, outcome.Reason,
		outcome.Attempts, outcome.ProviderID, outcome.LastError, now, now)
	if err != nil {
		return fmt.Errorf("recording outcome for document %q: %w", outcome.DocumentID, err)
	}
	return nil
}

// List returns recent outcomes, newest first.
func (s *SQLiteOutcomeStore) List(ctx context.Context, status OutcomeStatus, limit int) ([]DeliveryOutcome, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := `
		SELECT document_id, attempt_id, status, reason, attempts, provider_id, last_error, created_at, updated_at
		FROM delivery_outcomes`
	args := []any{}
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	query += " ORDER BY updated_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []DeliveryOutcome
	for rows.Next() {
		var o DeliveryOutcome
		if err := rows.Scan(&o.DocumentID, &o.AttemptID, &o.Status, &o.Reason,
			&o.Attempts, &o.ProviderID, &o.LastError, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning outcome row: %w", err)
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}
