package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paymentsaga/internal/event"
)

func newPendingOrder(t *testing.T) *Order {
	t.Helper()
	o, err := Initiate(InitiateRequest{
		UserID:        "user-123",
		Amount:        99.99,
		Currency:      "USD",
		PaymentMethod: "CREDIT_CARD",
		Items:         []event.OrderItem{{ProductID: "p1", Quantity: 2, Price: 49.99}},
	})
	require.NoError(t, err)
	require.Equal(t, StatusPending, o.Status)
	require.Len(t, o.Changes, 1)
	require.Equal(t, event.EventPaymentInitiated, o.Changes[0].EventType)
	o.Changes = o.Changes[:0] // simulate post-commit clear
	return o
}

func TestOrder_RiskApproved_MovesToProcessing(t *testing.T) {
	o := newPendingOrder(t)
	require.NoError(t, o.OnRiskCheckCompleted(true))
	assert.Equal(t, StatusProcessing, o.Status)
	assert.Empty(t, o.Changes)
}

func TestOrder_RiskDeclined_Cancels(t *testing.T) {
	o := newPendingOrder(t)
	require.NoError(t, o.OnRiskCheckCompleted(false))
	assert.Equal(t, StatusCancelled, o.Status)
	assert.Equal(t, "Risk check declined", o.CancellationReason)
	require.Len(t, o.Changes, 1)
	assert.Equal(t, event.EventOrderCancelled, o.Changes[0].EventType)
}

func TestOrder_PaymentProcessed_Confirms(t *testing.T) {
	o := newPendingOrder(t)
	require.NoError(t, o.OnRiskCheckCompleted(true))
	o.Changes = o.Changes[:0]

	require.NoError(t, o.OnPaymentProcessed("txn-1"))
	assert.Equal(t, StatusConfirmed, o.Status)
	assert.Equal(t, "txn-1", o.TransactionID)
	require.Len(t, o.Changes, 1)
	assert.Equal(t, event.EventOrderConfirmed, o.Changes[0].EventType)
}

func TestOrder_PaymentProcessed_ToleratesReorderingFromPending(t *testing.T) {
	// Topics carry no cross-topic ordering guarantee. A valid
	// PAYMENT_PROCESSED can only have been emitted after risk
	// approval, so Order accepts confirmation even while still
	// PENDING locally.
	o := newPendingOrder(t)
	require.NoError(t, o.OnPaymentProcessed("txn-1"))
	assert.Equal(t, StatusConfirmed, o.Status)
}

func TestOrder_PaymentFailed_Cancels(t *testing.T) {
	o := newPendingOrder(t)
	require.NoError(t, o.OnRiskCheckCompleted(true))
	o.Changes = o.Changes[:0]

	require.NoError(t, o.OnPaymentFailed("card declined"))
	assert.Equal(t, StatusCancelled, o.Status)
	assert.Equal(t, "Payment failed: card declined", o.CancellationReason)
}

func TestOrder_Cancel_IsIdempotent(t *testing.T) {
	o := newPendingOrder(t)
	require.NoError(t, o.Cancel("first reason"))
	o.Changes = o.Changes[:0]

	require.NoError(t, o.Cancel("second reason"))
	assert.Equal(t, "first reason", o.CancellationReason, "a second cancel must not overwrite the first")
	assert.Empty(t, o.Changes, "idempotent cancel must not re-emit ORDER_CANCELLED")
}

func TestOrder_Cancel_RefusesConfirmed(t *testing.T) {
	o := newPendingOrder(t)
	require.NoError(t, o.OnPaymentProcessed("txn-1"))
	o.Changes = o.Changes[:0]

	err := o.Cancel("too late")
	assert.Error(t, err)
	assert.Equal(t, StatusConfirmed, o.Status)
}

func TestOrder_DuplicatePaymentProcessed_NoOpsOnConfirmed(t *testing.T) {
	o := newPendingOrder(t)
	require.NoError(t, o.OnPaymentProcessed("txn-1"))
	o.Changes = o.Changes[:0]

	require.NoError(t, o.OnPaymentProcessed("txn-2"))
	assert.Equal(t, "txn-1", o.TransactionID, "replaying an already-processed event must be a no-op")
	assert.Empty(t, o.Changes)
}

func TestStatus_IsTerminal(t *testing.T) {
	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusProcessing.IsTerminal())
	assert.True(t, StatusConfirmed.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
}
