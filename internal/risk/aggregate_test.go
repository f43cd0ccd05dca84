package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paymentsaga/internal/event"
)

func TestEvaluate_HappyPath(t *testing.T) {
	a := Evaluate("saga-1", event.PaymentInitiatedPayload{
		OrderID: "order-1",
		UserID:  "user-123",
		Amount:  99.99,
	})

	assert.Equal(t, 0, a.RiskScore)
	assert.True(t, a.Approved)
	assert.True(t, a.FraudCheck)
	assert.True(t, a.VelocityCheck)
	assert.True(t, a.BlacklistCheck)
	require.Len(t, a.Changes, 1)
	assert.Equal(t, event.EventRiskCheckCompleted, a.Changes[0].EventType)
}

func TestEvaluate_BlacklistedUser(t *testing.T) {
	a := Evaluate("saga-2", event.PaymentInitiatedPayload{
		OrderID: "order-2",
		UserID:  "blocked-user-456",
		Amount:  149.99,
	})

	assert.Equal(t, 30, a.RiskScore)
	assert.False(t, a.Approved)
	assert.False(t, a.BlacklistCheck)
}

func TestEvaluate_FraudByAmount(t *testing.T) {
	a := Evaluate("saga-3", event.PaymentInitiatedPayload{
		OrderID: "order-3",
		UserID:  "user-789",
		Amount:  15000.00,
	})

	assert.GreaterOrEqual(t, a.RiskScore, 40)
	assert.False(t, a.Approved)
	assert.False(t, a.FraudCheck)
}

func TestAssessment_Rollback_IsIdempotent(t *testing.T) {
	a := Evaluate("saga-1", event.PaymentInitiatedPayload{OrderID: "order-1", UserID: "user-123", Amount: 10})
	a.Changes = a.Changes[:0]

	require.NoError(t, a.Rollback())
	assert.True(t, a.RolledBack)
	require.Len(t, a.Changes, 1)

	a.Changes = a.Changes[:0]
	require.NoError(t, a.Rollback())
	assert.Empty(t, a.Changes, "a second rollback must not re-emit RISK_CHECK_ROLLBACK")
}
