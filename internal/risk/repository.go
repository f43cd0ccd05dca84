package risk

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"paymentsaga/internal/outbox"
)

// ErrNotFound is returned when no assessment matches the lookup key.
var ErrNotFound = errors.New("risk assessment not found")

const schema = `
CREATE TABLE IF NOT EXISTS risk_assessments (
	id              TEXT PRIMARY KEY,
	order_id        TEXT NOT NULL,
	saga_id         TEXT NOT NULL UNIQUE,
	user_id         TEXT NOT NULL,
	risk_score      INTEGER NOT NULL,
	approved        BOOLEAN NOT NULL,
	fraud_check     BOOLEAN NOT NULL,
	velocity_check  BOOLEAN NOT NULL,
	blacklist_check BOOLEAN NOT NULL,
	rolled_back     BOOLEAN NOT NULL DEFAULT FALSE,
	created_at      TIMESTAMPTZ NOT NULL
)`

// Repository persists RiskAssessment aggregates in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository wraps db. The caller owns db's lifecycle.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// EnsureSchema creates the risk_assessments table if it does not exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, schema)
	return err
}

// GetBySagaID loads the assessment owning sagaId.
func (r *Repository) GetBySagaID(ctx context.Context, sagaID string) (*Assessment, error) {
	const q = `
		SELECT id, order_id, saga_id, user_id, risk_score, approved, fraud_check,
		       velocity_check, blacklist_check, rolled_back, created_at
		FROM risk_assessments WHERE saga_id = $1`
	a := &Assessment{}
	err := r.db.QueryRowContext(ctx, q, sagaID).Scan(&a.ID, &a.OrderID, &a.SagaID, &a.UserID,
		&a.RiskScore, &a.Approved, &a.FraudCheck, &a.VelocityCheck, &a.BlacklistCheck,
		&a.RolledBack, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan risk assessment: %w", err)
	}
	return a, nil
}

// Save upserts a's current state and appends its pending Changes to
// the outbox, atomically.
func (r *Repository) Save(ctx context.Context, a *Assessment) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	const q = `
		INSERT INTO risk_assessments (id, order_id, saga_id, user_id, risk_score, approved,
		                               fraud_check, velocity_check, blacklist_check, rolled_back, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (saga_id) DO UPDATE SET
			rolled_back = EXCLUDED.rolled_back`
	_, err = tx.ExecContext(ctx, q, a.ID, a.OrderID, a.SagaID, a.UserID, a.RiskScore, a.Approved,
		a.FraudCheck, a.VelocityCheck, a.BlacklistCheck, a.RolledBack, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert risk assessment: %w", err)
	}

	for _, env := range a.Changes {
		if err := outbox.InsertTx(ctx, tx, env); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	a.Changes = a.Changes[:0]
	return nil
}
