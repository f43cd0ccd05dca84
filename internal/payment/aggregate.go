// Package payment implements the Payment participant: gateway charge,
// refund and their saga events.
package payment

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"paymentsaga/internal/event"
)

// Status is the lifecycle state of a Transaction.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusRefunded   Status = "REFUNDED"
)

// Transaction is a gateway charge and its eventual refund, tied to
// one saga.
type Transaction struct {
	TransactionID        string
	OrderID              string
	SagaID               string
	Amount               float64
	Currency             string
	Status               Status
	GatewayTransactionID string
	AuthCode             string
	RefundID             string
	ErrorMessage         string
	CreatedAt            time.Time
	UpdatedAt            time.Time

	Changes []event.Envelope
}

func (t *Transaction) apply(env event.Envelope) {
	t.Changes = append(t.Changes, env)
}

// StartProcessing creates a new PROCESSING transaction for an approved
// saga, the state the gateway call is attempted against.
func StartProcessing(sagaID, orderID string, amount float64, currency string) *Transaction {
	now := time.Now().UTC()
	return &Transaction{
		TransactionID: uuid.NewString(),
		OrderID:       orderID,
		SagaID:        sagaID,
		Amount:        amount,
		Currency:      currency,
		Status:        StatusProcessing,
		CreatedAt:     now,
		UpdatedAt:     now,
		Changes:       make([]event.Envelope, 0, 1),
	}
}

// CompleteSuccess records a successful gateway charge and emits
// PAYMENT_PROCESSED.
func (t *Transaction) CompleteSuccess(gatewayTransactionID, authCode string) error {
	if t.Status == StatusCompleted {
		return nil // idempotent
	}
	if t.Status != StatusProcessing {
		return fmt.Errorf("cannot complete transaction in status %s", t.Status)
	}

	now := time.Now().UTC()
	t.Status = StatusCompleted
	t.GatewayTransactionID = gatewayTransactionID
	t.AuthCode = authCode
	t.UpdatedAt = now

	payload := event.PaymentProcessedPayload{
		OrderID:       t.OrderID,
		TransactionID: t.TransactionID,
		Amount:        t.Amount,
		Currency:      t.Currency,
		ProcessedAt:   now,
	}
	env, err := event.New(event.EventPaymentProcessed, t.SagaID, "payment-service", payload)
	if err != nil {
		return fmt.Errorf("build PAYMENT_PROCESSED: %w", err)
	}
	t.apply(env)
	return nil
}

// CompleteFailure records a gateway decline or retry exhaustion and
// emits PAYMENT_FAILED.
func (t *Transaction) CompleteFailure(reason, errorCode string) error {
	if t.Status == StatusFailed {
		return nil // idempotent
	}
	if t.Status != StatusProcessing {
		return fmt.Errorf("cannot fail transaction in status %s", t.Status)
	}

	t.Status = StatusFailed
	t.ErrorMessage = reason
	t.UpdatedAt = time.Now().UTC()

	payload := event.PaymentFailedPayload{
		OrderID:   t.OrderID,
		Reason:    reason,
		ErrorCode: errorCode,
	}
	env, err := event.New(event.EventPaymentFailed, t.SagaID, "payment-service", payload)
	if err != nil {
		return fmt.Errorf("build PAYMENT_FAILED: %w", err)
	}
	t.apply(env)
	return nil
}

// ErrRefundNotApplicable signals the transaction never reached
// COMPLETED, so compensation has nothing to undo.
var ErrRefundNotApplicable = errors.New("transaction never completed, refund not applicable")

// Refund reverses a completed charge and emits PAYMENT_REFUNDED.
// Idempotent if already refunded; returns ErrRefundNotApplicable if
// the transaction is PROCESSING or FAILED, since no money ever moved
// to completion for those states.
func (t *Transaction) Refund(refundID, reason string) error {
	if t.Status == StatusRefunded {
		return nil
	}
	if t.Status != StatusCompleted {
		return ErrRefundNotApplicable
	}

	now := time.Now().UTC()
	t.Status = StatusRefunded
	t.RefundID = refundID
	t.UpdatedAt = now

	payload := event.PaymentRefundedPayload{
		OrderID:       t.OrderID,
		TransactionID: t.TransactionID,
		RefundID:      refundID,
		Amount:        t.Amount,
		Reason:        reason,
	}
	env, err := event.New(event.EventPaymentRefunded, t.SagaID, "payment-service", payload)
	if err != nil {
		return fmt.Errorf("build PAYMENT_REFUNDED: %w", err)
	}
	t.apply(env)
	return nil
}
