package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"paymentsaga/internal/outbox"
)

// ErrNotFound is returned when no order matches the lookup key.
var ErrNotFound = errors.New("order not found")

const schema = `
CREATE TABLE IF NOT EXISTS orders (
	order_id             TEXT PRIMARY KEY,
	user_id              TEXT NOT NULL,
	saga_id              TEXT NOT NULL UNIQUE,
	amount               DOUBLE PRECISION NOT NULL,
	currency             TEXT NOT NULL,
	status               TEXT NOT NULL,
	payment_method       TEXT NOT NULL,
	cancellation_reason  TEXT NOT NULL DEFAULT '',
	transaction_id       TEXT NOT NULL DEFAULT '',
	created_at           TIMESTAMPTZ NOT NULL,
	updated_at           TIMESTAMPTZ NOT NULL
)`

// Repository persists Order aggregates in Postgres, the only store
// that may read or write the orders table.
type Repository struct {
	db *sql.DB
}

// NewRepository wraps db. The caller owns db's lifecycle.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// EnsureSchema creates the orders table if it does not exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, schema)
	return err
}

// GetBySagaID loads the order owning sagaId. sagaId is authoritative
// for all cross-participant lookups.
func (r *Repository) GetBySagaID(ctx context.Context, sagaID string) (*Order, error) {
	const q = `
		SELECT order_id, user_id, saga_id, amount, currency, status, payment_method,
		       cancellation_reason, transaction_id, created_at, updated_at
		FROM orders WHERE saga_id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, q, sagaID))
}

// GetByOrderID loads the order by its local primary key (used by the
// REST GET endpoint, which checks ownership itself).
func (r *Repository) GetByOrderID(ctx context.Context, orderID string) (*Order, error) {
	const q = `
		SELECT order_id, user_id, saga_id, amount, currency, status, payment_method,
		       cancellation_reason, transaction_id, created_at, updated_at
		FROM orders WHERE order_id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, q, orderID))
}

func (r *Repository) scanOne(row *sql.Row) (*Order, error) {
	o := New()
	err := row.Scan(&o.OrderID, &o.UserID, &o.SagaID, &o.Amount, &o.Currency, &o.Status,
		&o.PaymentMethod, &o.CancellationReason, &o.TransactionID, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan order: %w", err)
	}
	return o, nil
}

// Save upserts o's current state and appends its pending Changes to
// the outbox, atomically in a single transaction.
func (r *Repository) Save(ctx context.Context, o *Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	const q = `
		INSERT INTO orders (order_id, user_id, saga_id, amount, currency, status, payment_method,
		                     cancellation_reason, transaction_id, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (order_id) DO UPDATE SET
			status = EXCLUDED.status,
			cancellation_reason = EXCLUDED.cancellation_reason,
			transaction_id = EXCLUDED.transaction_id,
			updated_at = EXCLUDED.updated_at`
	_, err = tx.ExecContext(ctx, q, o.OrderID, o.UserID, o.SagaID, o.Amount, o.Currency, o.Status,
		o.PaymentMethod, o.CancellationReason, o.TransactionID, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert order: %w", err)
	}

	for _, env := range o.Changes {
		if err := outbox.InsertTx(ctx, tx, env); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	o.Changes = o.Changes[:0]
	return nil
}
