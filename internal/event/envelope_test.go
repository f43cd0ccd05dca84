package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	payload := PaymentInitiatedPayload{
		OrderID:       "order-1",
		UserID:        "user-123",
		Amount:        99.99,
		Currency:      "USD",
		PaymentMethod: "CREDIT_CARD",
		Items:         []OrderItem{{ProductID: "p1", Quantity: 2, Price: 49.99}},
	}
	env, err := New(EventPaymentInitiated, "saga-1", "order-service", payload)
	require.NoError(t, err)

	body, err := Encode(env)
	require.NoError(t, err)

	decoded, err := Decode(body)
	require.NoError(t, err)

	assert.Equal(t, env.EventID, decoded.EventID)
	assert.Equal(t, env.EventType, decoded.EventType)
	assert.Equal(t, env.SagaID, decoded.SagaID)
	assert.Equal(t, env.CorrelationID, decoded.CorrelationID)
	assert.Equal(t, env.Version, decoded.Version)

	out, err := DecodePayload[PaymentInitiatedPayload](decoded)
	require.NoError(t, err)
	assert.Equal(t, payload, out)
}

func TestEncode_DefaultsZeroFields(t *testing.T) {
	env := Envelope{
		EventType: EventRiskCheckCompleted,
		SagaID:    "saga-2",
		Payload:   []byte(`{}`),
	}

	body, err := Encode(env)
	require.NoError(t, err)

	decoded, err := Decode(body)
	require.NoError(t, err)

	assert.NotEmpty(t, decoded.EventID)
	assert.NotEmpty(t, decoded.CorrelationID)
	assert.Equal(t, EnvelopeVersion, decoded.Version)
	assert.False(t, decoded.Timestamp.IsZero())
}

func TestTopicFor(t *testing.T) {
	cases := map[EventType]Topic{
		EventPaymentInitiated:   TopicPaymentSaga,
		EventRiskCheckCompleted: TopicRiskEvents,
		EventOrderConfirmed:     TopicPaymentEvents,
		EventOrderCancelled:     TopicSagaCompensation,
		EventPaymentRefunded:    TopicSagaCompensation,
	}
	for eventType, want := range cases {
		assert.Equal(t, want, TopicFor(eventType), "eventType=%s", eventType)
	}
}
