// Package order implements the Order participant: saga coordinator and
// owner of the Order record.
package order

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"paymentsaga/internal/event"
)

// Status is the lifecycle state of an Order.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusConfirmed  Status = "CONFIRMED"
	StatusCancelled  Status = "CANCELLED"
	StatusFailed     Status = "FAILED"
)

// IsTerminal reports whether status can no longer transition.
func (s Status) IsTerminal() bool {
	return s == StatusConfirmed || s == StatusCancelled || s == StatusFailed
}

// Order is the saga-coordinating order aggregate, plus a pending
// outbound event list of not-yet-published domain events.
type Order struct {
	OrderID             string
	UserID              string
	SagaID              string
	Amount              float64
	Currency            string
	Status              Status
	PaymentMethod       string
	CancellationReason  string
	TransactionID       string
	CreatedAt           time.Time
	UpdatedAt           time.Time

	Changes []event.Envelope
}

// New constructs an empty Order, to be filled in by Initiate or by a
// repository load.
func New() *Order {
	return &Order{Changes: make([]event.Envelope, 0, 1)}
}

func (o *Order) apply(env event.Envelope) {
	o.Changes = append(o.Changes, env)
}

// InitiateRequest is the validated REST intake body.
type InitiateRequest struct {
	UserID        string
	Amount        float64
	Currency      string
	PaymentMethod string
	Items         []event.OrderItem
}

// Initiate is the saga's only externally-triggered entry point: it
// mints a fresh sagaId, sets PENDING and emits PAYMENT_INITIATED.
func Initiate(req InitiateRequest) (*Order, error) {
	now := time.Now().UTC()
	o := New()
	o.OrderID = uuid.NewString()
	o.SagaID = uuid.NewString()
	o.UserID = req.UserID
	o.Amount = req.Amount
	o.Currency = req.Currency
	o.PaymentMethod = req.PaymentMethod
	o.Status = StatusPending
	o.CreatedAt = now
	o.UpdatedAt = now

	payload := event.PaymentInitiatedPayload{
		OrderID:       o.OrderID,
		UserID:        o.UserID,
		Amount:        o.Amount,
		Currency:      o.Currency,
		PaymentMethod: o.PaymentMethod,
		Items:         req.Items,
	}
	env, err := event.New(event.EventPaymentInitiated, o.SagaID, "order-service", payload)
	if err != nil {
		return nil, fmt.Errorf("build PAYMENT_INITIATED: %w", err)
	}
	o.apply(env)

	return o, nil
}

// OnRiskCheckCompleted is the PENDING->PROCESSING transition, or a
// cancel trigger when risk declined.
func (o *Order) OnRiskCheckCompleted(approved bool) error {
	if o.Status.IsTerminal() {
		return nil // idempotent: saga already resolved
	}
	if o.Status != StatusPending {
		return nil // out-of-order or duplicate delivery; no-op
	}
	if !approved {
		return o.Cancel("Risk check declined")
	}
	o.Status = StatusProcessing
	o.UpdatedAt = time.Now().UTC()
	return nil
}

// OnRiskCheckFailed triggers a cancel.
func (o *Order) OnRiskCheckFailed(reason string) error {
	return o.Cancel(fmt.Sprintf("Risk check failed: %s", reason))
}

// OnPaymentProcessed is the ->CONFIRMED transition. Per
// "no ordering across topics" guarantee, this may be observed while
// the order is still PENDING (this participant's own risk-events
// consumer lagging its payment-events consumer): confirmation is
// accepted from either PENDING or PROCESSING, since a valid
// PAYMENT_PROCESSED can only have been emitted after Risk approved.
func (o *Order) OnPaymentProcessed(transactionID string) error {
	if o.Status == StatusConfirmed {
		return nil // idempotent
	}
	if o.Status == StatusCancelled || o.Status == StatusFailed {
		return nil // terminal already; ignore late/duplicate delivery
	}

	o.Status = StatusConfirmed
	o.TransactionID = transactionID
	o.UpdatedAt = time.Now().UTC()

	payload := event.OrderConfirmedPayload{
		OrderID:       o.OrderID,
		TransactionID: transactionID,
		ConfirmedAt:   o.UpdatedAt,
	}
	env, err := event.New(event.EventOrderConfirmed, o.SagaID, "order-service", payload)
	if err != nil {
		return fmt.Errorf("build ORDER_CONFIRMED: %w", err)
	}
	o.apply(env)
	return nil
}

// OnPaymentFailed triggers a cancel.
func (o *Order) OnPaymentFailed(reason string) error {
	return o.Cancel(fmt.Sprintf("Payment failed: %s", reason))
}

// Cancel is the compensation fan-out point: idempotent, and the
// trigger for Risk rollback and Payment refund via ORDER_CANCELLED.
func (o *Order) Cancel(reason string) error {
	if o.Status == StatusCancelled {
		return nil
	}
	if o.Status == StatusConfirmed {
		return errors.New("cannot cancel a confirmed order")
	}

	now := time.Now().UTC()
	o.Status = StatusCancelled
	o.CancellationReason = reason
	o.UpdatedAt = now

	payload := event.OrderCancelledPayload{
		OrderID:     o.OrderID,
		Reason:      reason,
		CancelledAt: now,
	}
	env, err := event.New(event.EventOrderCancelled, o.SagaID, "order-service", payload)
	if err != nil {
		return fmt.Errorf("build ORDER_CANCELLED: %w", err)
	}
	o.apply(env)
	return nil
}
