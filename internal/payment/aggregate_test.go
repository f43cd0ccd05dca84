package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paymentsaga/internal/event"
)

func TestTransaction_CompleteSuccess(t *testing.T) {
	tx := StartProcessing("saga-1", "order-1", 99.99, "USD")
	require.NoError(t, tx.CompleteSuccess("gw-1", "auth-1"))

	assert.Equal(t, StatusCompleted, tx.Status)
	require.Len(t, tx.Changes, 1)
	assert.Equal(t, event.EventPaymentProcessed, tx.Changes[0].EventType)
}

func TestTransaction_CompleteFailure(t *testing.T) {
	tx := StartProcessing("saga-1", "order-1", 99.99, "USD")
	require.NoError(t, tx.CompleteFailure("gateway declined", "GATEWAY_DECLINED"))

	assert.Equal(t, StatusFailed, tx.Status)
	assert.Equal(t, "gateway declined", tx.ErrorMessage)
	require.Len(t, tx.Changes, 1)
	assert.Equal(t, event.EventPaymentFailed, tx.Changes[0].EventType)
}

func TestTransaction_Refund_OnlyWhenCompleted(t *testing.T) {
	tx := StartProcessing("saga-1", "order-1", 99.99, "USD")
	require.NoError(t, tx.CompleteFailure("declined", "X"))

	err := tx.Refund("refund-1", "order cancelled")
	assert.ErrorIs(t, err, ErrRefundNotApplicable)
	assert.Equal(t, StatusFailed, tx.Status)
}

func TestTransaction_Refund_FromCompleted(t *testing.T) {
	tx := StartProcessing("saga-1", "order-1", 99.99, "USD")
	require.NoError(t, tx.CompleteSuccess("gw-1", "auth-1"))
	tx.Changes = tx.Changes[:0]

	require.NoError(t, tx.Refund("refund-1", "order cancelled"))
	assert.Equal(t, StatusRefunded, tx.Status)
	assert.Equal(t, "refund-1", tx.RefundID)
	require.Len(t, tx.Changes, 1)
	assert.Equal(t, event.EventPaymentRefunded, tx.Changes[0].EventType)
}

func TestTransaction_Refund_IsIdempotent(t *testing.T) {
	tx := StartProcessing("saga-1", "order-1", 99.99, "USD")
	require.NoError(t, tx.CompleteSuccess("gw-1", "auth-1"))
	require.NoError(t, tx.Refund("refund-1", "order cancelled"))
	tx.Changes = tx.Changes[:0]

	require.NoError(t, tx.Refund("refund-2", "order cancelled"))
	assert.Equal(t, "refund-1", tx.RefundID, "a second refund must not overwrite the first")
	assert.Empty(t, tx.Changes)
}
