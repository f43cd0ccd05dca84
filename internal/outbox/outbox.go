// Package outbox implements the transactional outbox pattern: a
// handler's local store transaction writes both its record and its
// pending events, and a separate background publisher drains
// unpublished rows onto the bus. This guarantees events publish only
// after commit, and that redelivery after a post-commit crash is
// idempotent.
package outbox

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"paymentsaga/internal/bus"
	"paymentsaga/internal/event"
)

const schema = `
CREATE TABLE IF NOT EXISTS outbox (
	id           BIGSERIAL PRIMARY KEY,
	event_id     TEXT NOT NULL,
	saga_id      TEXT NOT NULL,
	event_type   TEXT NOT NULL,
	topic        TEXT NOT NULL,
	payload      JSONB NOT NULL,
	published    BOOLEAN NOT NULL DEFAULT FALSE,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	published_at TIMESTAMPTZ
)`

// EnsureSchema creates the outbox table if it does not exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}

// InsertTx appends env to the outbox as part of an already-open
// transaction, so it commits atomically with the aggregate row it
// accompanies.
func InsertTx(ctx context.Context, tx *sql.Tx, env event.Envelope) error {
	body, err := event.Encode(env)
	if err != nil {
		return fmt.Errorf("encode outbox payload: %w", err)
	}

	const q = `
		INSERT INTO outbox (event_id, saga_id, event_type, topic, payload)
		VALUES ($1, $2, $3, $4, $5)`
	_, err = tx.ExecContext(ctx, q, env.EventID, env.SagaID, string(env.EventType), string(event.TopicFor(env.EventType)), body)
	if err != nil {
		return fmt.Errorf("insert outbox row: %w", err)
	}
	return nil
}

// Publisher periodically drains unpublished outbox rows onto the bus,
// draining unpublished rows and marking them published in batches.
type Publisher struct {
	db       *sql.DB
	bus      *bus.Bus
	interval time.Duration
	log      zerolog.Logger
}

// NewPublisher returns a Publisher polling every 100ms.
func NewPublisher(db *sql.DB, b *bus.Bus, log zerolog.Logger) *Publisher {
	return &Publisher{db: db, bus: b, interval: 100 * time.Millisecond, log: log}
}

// Start runs until ctx is cancelled.
func (p *Publisher) Start(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.log.Info().Msg("outbox publisher started")

	for {
		select {
		case <-ticker.C:
			if err := p.publishPending(ctx); err != nil {
				p.log.Error().Err(err).Msg("failed to publish pending outbox rows")
			}
		case <-ctx.Done():
			// Flush one last pass before exiting.
			_ = p.publishPending(context.Background())
			p.log.Info().Msg("outbox publisher stopped")
			return nil
		}
	}
}

func (p *Publisher) publishPending(ctx context.Context) error {
	const q = `
		SELECT id, event_type, topic, payload
		FROM outbox
		WHERE published = false
		ORDER BY created_at ASC
		LIMIT 100`

	rows, err := p.db.QueryContext(ctx, q)
	if err != nil {
		return err
	}
	defer rows.Close()

	var publishedIDs []int64
	for rows.Next() {
		var (
			id        int64
			eventType string
			topic     string
			payload   []byte
		)
		if err := rows.Scan(&id, &eventType, &topic, &payload); err != nil {
			p.log.Error().Err(err).Msg("failed to scan outbox row")
			continue
		}

		env, err := event.Decode(payload)
		if err != nil {
			p.log.Error().Err(err).Int64("id", id).Msg("failed to decode outbox row")
			continue
		}

		if err := p.bus.Publish(ctx, event.Topic(topic), env); err != nil {
			p.log.Error().Err(err).Int64("id", id).Msg("failed to publish outbox row")
			continue
		}
		publishedIDs = append(publishedIDs, id)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if len(publishedIDs) == 0 {
		return nil
	}

	const markQ = `UPDATE outbox SET published = true, published_at = NOW() WHERE id = ANY($1)`
	if _, err := p.db.ExecContext(ctx, markQ, pq.Array(publishedIDs)); err != nil {
		return fmt.Errorf("mark outbox rows published: %w", err)
	}
	p.log.Debug().Int("count", len(publishedIDs)).Msg("published outbox rows")
	return nil
}
