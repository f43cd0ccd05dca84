package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"paymentsaga/internal/outbox"
)

// ErrNotFound is returned when no transaction matches the lookup key.
var ErrNotFound = errors.New("payment transaction not found")

const schema = `
CREATE TABLE IF NOT EXISTS payment_transactions (
	transaction_id         TEXT PRIMARY KEY,
	order_id               TEXT NOT NULL,
	saga_id                TEXT NOT NULL UNIQUE,
	amount                 DOUBLE PRECISION NOT NULL,
	currency               TEXT NOT NULL,
	status                 TEXT NOT NULL,
	gateway_transaction_id TEXT NOT NULL DEFAULT '',
	auth_code              TEXT NOT NULL DEFAULT '',
	refund_id              TEXT NOT NULL DEFAULT '',
	error_message          TEXT NOT NULL DEFAULT '',
	created_at             TIMESTAMPTZ NOT NULL,
	updated_at             TIMESTAMPTZ NOT NULL
)`

// Repository persists PaymentTransaction aggregates in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository wraps db. The caller owns db's lifecycle.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// EnsureSchema creates the payment_transactions table if it does not exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, schema)
	return err
}

// GetBySagaID loads the transaction owning sagaId.
func (r *Repository) GetBySagaID(ctx context.Context, sagaID string) (*Transaction, error) {
	const q = `
		SELECT transaction_id, order_id, saga_id, amount, currency, status,
		       gateway_transaction_id, auth_code, refund_id, error_message, created_at, updated_at
		FROM payment_transactions WHERE saga_id = $1`
	t := &Transaction{}
	err := r.db.QueryRowContext(ctx, q, sagaID).Scan(&t.TransactionID, &t.OrderID, &t.SagaID,
		&t.Amount, &t.Currency, &t.Status, &t.GatewayTransactionID, &t.AuthCode, &t.RefundID,
		&t.ErrorMessage, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan payment transaction: %w", err)
	}
	return t, nil
}

// Save upserts t's current state and appends its pending Changes to
// the outbox, atomically.
func (r *Repository) Save(ctx context.Context, t *Transaction) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	const q = `
		INSERT INTO payment_transactions (transaction_id, order_id, saga_id, amount, currency,
		                                   status, gateway_transaction_id, auth_code, refund_id,
		                                   error_message, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (transaction_id) DO UPDATE SET
			status = EXCLUDED.status,
			gateway_transaction_id = EXCLUDED.gateway_transaction_id,
			auth_code = EXCLUDED.auth_code,
			refund_id = EXCLUDED.refund_id,
			error_message = EXCLUDED.error_message,
			updated_at = EXCLUDED.updated_at`
	_, err = tx.ExecContext(ctx, q, t.TransactionID, t.OrderID, t.SagaID, t.Amount, t.Currency,
		t.Status, t.GatewayTransactionID, t.AuthCode, t.RefundID, t.ErrorMessage, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert payment transaction: %w", err)
	}

	for _, env := range t.Changes {
		if err := outbox.InsertTx(ctx, tx, env); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	t.Changes = t.Changes[:0]
	return nil
}
