package notification

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"paymentsaga/internal/event"
)

// Dispatcher sends a human-readable message through some external
// channel (email, SMS). Dispatch failure is logged but never blocks
// acknowledgment: the user-visible effect is best-effort.
type Dispatcher interface {
	Dispatch(ctx context.Context, userOrOrderID, message string) error
}

// LoggingDispatcher is the baseline Dispatcher: it "sends" by logging,
// standing in for a real email/SMS provider until one is wired.
type LoggingDispatcher struct {
	log zerolog.Logger
}

// NewLoggingDispatcher returns a Dispatcher that logs every message
// it would otherwise hand to a provider.
func NewLoggingDispatcher(log zerolog.Logger) *LoggingDispatcher {
	return &LoggingDispatcher{log: log}
}

func (d *LoggingDispatcher) Dispatch(ctx context.Context, orderID, message string) error {
	d.log.Info().Str("orderId", orderID).Msg(message)
	return nil
}

// consumerGroup is the shard-queue namespace the Notification
// participant consumes under. Notification has no idempotency.Store
// of its own, since its dedup set already guards against duplicate
// sends, but still needs a stable group name for bus shard queue naming.
const consumerGroup = "notification-service"

// ConsumerGroup returns the bus shard-queue namespace for this participant.
func ConsumerGroup() string {
	return consumerGroup
}

// Service is the Notification participant.
type Service struct {
	dedup      DedupStore
	dispatcher Dispatcher
	log        zerolog.Logger
}

// NewService wires a Service against its dedup store and dispatcher.
func NewService(dedup DedupStore, dispatcher Dispatcher, log zerolog.Logger) *Service {
	return &Service{dedup: dedup, dispatcher: dispatcher, log: log}
}

// HandlePaymentEvent reacts to payment-events: PAYMENT_PROCESSED sends
// a SUCCESS notification, PAYMENT_FAILED sends FAILURE.
func (s *Service) HandlePaymentEvent(ctx context.Context, env event.Envelope) error {
	switch env.EventType {
	case event.EventPaymentProcessed:
		p, err := event.DecodePayload[event.PaymentProcessedPayload](env)
		if err != nil {
			return err
		}
		return s.notify(ctx, p.OrderID, CategorySuccess,
			fmt.Sprintf("Your payment of %.2f %s was processed successfully.", p.Amount, p.Currency))
	case event.EventPaymentFailed:
		p, err := event.DecodePayload[event.PaymentFailedPayload](env)
		if err != nil {
			return err
		}
		return s.notify(ctx, p.OrderID, CategoryFailure,
			fmt.Sprintf("Your payment failed: %s", p.Reason))
	default:
		return nil
	}
}

// HandleCompensation reacts to saga-compensation: ORDER_CANCELLED
// sends CANCELLED, PAYMENT_REFUNDED sends REFUND.
func (s *Service) HandleCompensation(ctx context.Context, env event.Envelope) error {
	switch env.EventType {
	case event.EventOrderCancelled:
		p, err := event.DecodePayload[event.OrderCancelledPayload](env)
		if err != nil {
			return err
		}
		return s.notify(ctx, p.OrderID, CategoryCancelled,
			fmt.Sprintf("Your order was cancelled: %s", p.Reason))
	case event.EventPaymentRefunded:
		p, err := event.DecodePayload[event.PaymentRefundedPayload](env)
		if err != nil {
			return err
		}
		return s.notify(ctx, p.OrderID, CategoryRefund,
			fmt.Sprintf("Your payment of %.2f was refunded.", p.Amount))
	default:
		return nil
	}
}

// notify dedups by (orderID, category) before dispatching, so a
// redelivered event never sends the same notification twice.
func (s *Service) notify(ctx context.Context, orderID string, category Category, message string) error {
	fresh, err := s.dedup.MarkIfAbsent(ctx, orderID, category)
	if err != nil {
		return fmt.Errorf("check notification dedup: %w", err)
	}
	if !fresh {
		return nil
	}

	if err := s.dispatcher.Dispatch(ctx, orderID, message); err != nil {
		s.log.Error().Err(err).Str("orderId", orderID).Str("category", string(category)).
			Msg("notification dispatch failed")
	}
	return nil
}
