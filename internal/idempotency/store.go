// Package idempotency tracks which (consumerGroup, eventId) pairs have
// already been handled, so redelivered events never re-trigger a
// business-state transition within a given participant's consumer
// group.
package idempotency

import (
	"context"
	"database/sql"
	"fmt"
)

// Store records and queries processed events.
type Store interface {
	IsProcessed(ctx context.Context, consumerGroup, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, consumerGroup, eventID, sagaID, eventType string) error
	// MarkProcessedTx marks an event processed within an already-open
	// transaction, so the idempotency write commits atomically with
	// the business state change it guards.
	MarkProcessedTx(ctx context.Context, tx *sql.Tx, consumerGroup, eventID, sagaID, eventType string) error
}

// PostgresStore is the default Store, backed by a `processed_events`
// table present in every participant's own database.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps db. The caller owns db's lifecycle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const schema = `
CREATE TABLE IF NOT EXISTS processed_events (
	event_id       TEXT NOT NULL,
	consumer_group TEXT NOT NULL,
	saga_id        TEXT NOT NULL,
	event_type     TEXT NOT NULL,
	processed_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (event_id, consumer_group)
)`

// EnsureSchema creates the processed_events table if it does not exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}

func (s *PostgresStore) IsProcessed(ctx context.Context, consumerGroup, eventID string) (bool, error) {
	const q = `SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1 AND consumer_group = $2)`
	var exists bool
	if err := s.db.QueryRowContext(ctx, q, eventID, consumerGroup).Scan(&exists); err != nil {
		return false, fmt.Errorf("check processed event: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) MarkProcessed(ctx context.Context, consumerGroup, eventID, sagaID, eventType string) error {
	const q = `
		INSERT INTO processed_events (event_id, consumer_group, saga_id, event_type)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (event_id, consumer_group) DO NOTHING`
	_, err := s.db.ExecContext(ctx, q, eventID, consumerGroup, sagaID, eventType)
	if err != nil {
		return fmt.Errorf("mark processed event: %w", err)
	}
	return nil
}

func (s *PostgresStore) MarkProcessedTx(ctx context.Context, tx *sql.Tx, consumerGroup, eventID, sagaID, eventType string) error {
	const q = `
		INSERT INTO processed_events (event_id, consumer_group, saga_id, event_type)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (event_id, consumer_group) DO NOTHING`
	_, err := tx.ExecContext(ctx, q, eventID, consumerGroup, sagaID, eventType)
	if err != nil {
		return fmt.Errorf("mark processed event: %w", err)
	}
	return nil
}
