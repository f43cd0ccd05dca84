// Package event defines the wire contract every saga participant exchanges
// over the bus: a single envelope type carrying a closed set of event
// types, and the per-type payload shapes that travel inside it.
package event

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType is the closed discriminator set every topic carries.
type EventType string

const (
	EventPaymentInitiated EventType = "PAYMENT_INITIATED"
	EventOrderConfirmed   EventType = "ORDER_CONFIRMED"
	EventOrderCancelled   EventType = "ORDER_CANCELLED"

	EventRiskCheckStarted   EventType = "RISK_CHECK_STARTED"
	EventRiskCheckCompleted EventType = "RISK_CHECK_COMPLETED"
	EventRiskCheckFailed    EventType = "RISK_CHECK_FAILED"
	EventRiskCheckRollback  EventType = "RISK_CHECK_ROLLBACK"

	EventPaymentProcessing EventType = "PAYMENT_PROCESSING"
	EventPaymentProcessed  EventType = "PAYMENT_PROCESSED"
	EventPaymentFailed     EventType = "PAYMENT_FAILED"
	EventPaymentRefunded   EventType = "PAYMENT_REFUNDED"

	EventNotificationSent   EventType = "NOTIFICATION_SENT"
	EventNotificationFailed EventType = "NOTIFICATION_FAILED"

	EventSagaCompleted EventType = "SAGA_COMPLETED"
	EventSagaFailed    EventType = "SAGA_FAILED"
	EventSagaTimeout   EventType = "SAGA_TIMEOUT"
)

// Topic is one of the five logical channels on the bus.
type Topic string

const (
	TopicPaymentSaga      Topic = "payment-saga"
	TopicRiskEvents       Topic = "risk-events"
	TopicPaymentEvents    Topic = "payment-events"
	TopicSagaCompensation Topic = "saga-compensation"
	TopicDeadLetter       Topic = "dead-letter"
)

// EnvelopeVersion is the schema version stamped on every envelope this
// build produces.
const EnvelopeVersion = 1

// Metadata carries delivery bookkeeping alongside the payload.
type Metadata struct {
	RetryCount     int                    `json:"retryCount"`
	MaxRetries     int                    `json:"maxRetries"`
	TimeoutMs      int                    `json:"timeoutMs"`
	Source         string                 `json:"source"`
	AdditionalData map[string]interface{} `json:"additionalData,omitempty"`
}

// Envelope is the message every participant publishes and consumes.
// Payload is kept as raw JSON so EventType can be read before the
// payload is decoded into its concrete shape.
type Envelope struct {
	EventID       string          `json:"eventId"`
	EventType     EventType       `json:"eventType"`
	Timestamp     time.Time       `json:"timestamp"`
	SagaID        string          `json:"sagaId"`
	CorrelationID string          `json:"correlationId"`
	Version       int             `json:"version"`
	Metadata      Metadata        `json:"metadata"`
	Payload       json.RawMessage `json:"payload"`
}

// DefaultTimeoutMs is the advisory per-event processing timeout.
const DefaultTimeoutMs = 15000

// DefaultMaxRetries is the per-message retry budget.
const DefaultMaxRetries = 3

// New builds an envelope with a freshly generated eventId,
// correlationId and timestamp; Encode fills in those fields when an
// envelope built some other way leaves them empty.
func New(eventType EventType, sagaID string, source string, payload interface{}) (Envelope, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}

	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		Timestamp:     time.Now().UTC(),
		SagaID:        sagaID,
		CorrelationID: uuid.NewString(),
		Version:       EnvelopeVersion,
		Metadata: Metadata{
			RetryCount: 0,
			MaxRetries: DefaultMaxRetries,
			TimeoutMs:  DefaultTimeoutMs,
			Source:     source,
		},
		Payload: body,
	}, nil
}

// WithCorrelationID copies a causal correlation id across a chain of
// envelopes instead of minting a fresh one.
func (e Envelope) WithCorrelationID(id string) Envelope {
	if id != "" {
		e.CorrelationID = id
	}
	return e
}

// Encode serialises the envelope to its self-describing wire form.
func Encode(env Envelope) ([]byte, error) {
	if env.EventID == "" {
		env.EventID = uuid.NewString()
	}
	if env.Timestamp.IsZero() {
		env.Timestamp = time.Now().UTC()
	}
	if env.CorrelationID == "" {
		env.CorrelationID = uuid.NewString()
	}
	if env.Version == 0 {
		env.Version = EnvelopeVersion
	}
	return json.Marshal(env)
}

// Decode parses the wire form back into an Envelope. Unknown fields are
// ignored; callers dispatch on EventType before decoding Payload.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

// DecodePayload unmarshals the envelope's payload into T.
func DecodePayload[T any](env Envelope) (T, error) {
	var out T
	err := json.Unmarshal(env.Payload, &out)
	return out, err
}
