package event

// TopicFor maps an event type onto the topic it travels on. Used when
// writing outbox rows, where only an envelope's EventType is known and
// the topic to publish it on must be resolved. Event types with no
// topic among the five (the reserved notification and saga-lifecycle
// types) map to TopicDeadLetter.
func TopicFor(t EventType) Topic {
	switch t {
	case EventPaymentInitiated:
		return TopicPaymentSaga
	case EventOrderConfirmed, EventPaymentProcessing, EventPaymentProcessed, EventPaymentFailed:
		return TopicPaymentEvents
	case EventOrderCancelled, EventRiskCheckRollback, EventPaymentRefunded:
		return TopicSagaCompensation
	case EventRiskCheckStarted, EventRiskCheckCompleted, EventRiskCheckFailed:
		return TopicRiskEvents
	default:
		return TopicDeadLetter
	}
}
