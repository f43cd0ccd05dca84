package order

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"paymentsaga/internal/event"
	"paymentsaga/internal/idempotency"
)

// ConsumerGroup is the idempotency and shard-queue namespace the Order
// participant consumes under.
const ConsumerGroup = "order-service"

// Service is the Order participant: it owns the orders table and
// reacts to risk-events and payment-events to drive the saga forward
// or trigger compensation.
type Service struct {
	repo  *Repository
	idemp idempotency.Store
	log   zerolog.Logger
}

// NewService wires a Service against its repository and idempotency store.
func NewService(repo *Repository, idemp idempotency.Store, log zerolog.Logger) *Service {
	return &Service{repo: repo, idemp: idemp, log: log}
}

// Initiate starts a new saga from an already-validated request (the
// REST handler validates it), persisting the PENDING order and its
// PAYMENT_INITIATED outbox row in one transaction.
func (s *Service) Initiate(ctx context.Context, req InitiateRequest) (*Order, error) {
	o, err := Initiate(req)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, o); err != nil {
		return nil, fmt.Errorf("save new order: %w", err)
	}
	s.log.Info().Str("sagaId", o.SagaID).Str("orderId", o.OrderID).Msg("payment saga initiated")
	return o, nil
}

// GetByOrderID returns the order for the REST GetOrder handler, with
// the caller responsible for the ownership check against userID.
func (s *Service) GetByOrderID(ctx context.Context, orderID string) (*Order, error) {
	return s.repo.GetByOrderID(ctx, orderID)
}

// HandleRiskEvent reacts to risk-events: RISK_CHECK_COMPLETED advances
// PENDING->PROCESSING or cancels; RISK_CHECK_FAILED always cancels.
func (s *Service) HandleRiskEvent(ctx context.Context, env event.Envelope) error {
	done, err := s.idemp.IsProcessed(ctx, ConsumerGroup, env.EventID)
	if err != nil {
		return fmt.Errorf("check processed: %w", err)
	}
	if done {
		return nil
	}

	o, err := s.repo.GetBySagaID(ctx, env.SagaID)
	if err != nil {
		return fmt.Errorf("load order for saga %s: %w", env.SagaID, err)
	}

	switch env.EventType {
	case event.EventRiskCheckCompleted:
		p, err := event.DecodePayload[event.RiskCheckCompletedPayload](env)
		if err != nil {
			return err
		}
		if err := o.OnRiskCheckCompleted(p.Approved); err != nil {
			return err
		}
	case event.EventRiskCheckFailed:
		p, err := event.DecodePayload[event.RiskCheckFailedPayload](env)
		if err != nil {
			return err
		}
		if err := o.OnRiskCheckFailed(p.Reason); err != nil {
			return err
		}
	default:
		s.log.Debug().Str("eventType", string(env.EventType)).Msg("ignoring unhandled risk event")
		return nil
	}

	return s.commit(ctx, o, env)
}

// HandlePaymentEvent reacts to payment-events: PAYMENT_PROCESSED
// confirms the order, PAYMENT_FAILED cancels it.
func (s *Service) HandlePaymentEvent(ctx context.Context, env event.Envelope) error {
	done, err := s.idemp.IsProcessed(ctx, ConsumerGroup, env.EventID)
	if err != nil {
		return fmt.Errorf("check processed: %w", err)
	}
	if done {
		return nil
	}

	o, err := s.repo.GetBySagaID(ctx, env.SagaID)
	if err != nil {
		return fmt.Errorf("load order for saga %s: %w", env.SagaID, err)
	}

	switch env.EventType {
	case event.EventPaymentProcessed:
		p, err := event.DecodePayload[event.PaymentProcessedPayload](env)
		if err != nil {
			return err
		}
		if err := o.OnPaymentProcessed(p.TransactionID); err != nil {
			return err
		}
	case event.EventPaymentFailed:
		p, err := event.DecodePayload[event.PaymentFailedPayload](env)
		if err != nil {
			return err
		}
		if err := o.OnPaymentFailed(p.Reason); err != nil {
			return err
		}
	default:
		s.log.Debug().Str("eventType", string(env.EventType)).Msg("ignoring unhandled payment event")
		return nil
	}

	return s.commit(ctx, o, env)
}

// commit persists the aggregate's new state and outbox rows, then
// marks the triggering event processed. The idempotency mark and the
// aggregate save are two statements against the same database but not
// one transaction here, since Save already opens and commits its own;
// a crash between the two only costs a redundant no-op re-delivery,
// which every handler already tolerates since terminal states refuse
// further transitions.
func (s *Service) commit(ctx context.Context, o *Order, triggeringEvent event.Envelope) error {
	if err := s.repo.Save(ctx, o); err != nil {
		return fmt.Errorf("save order: %w", err)
	}
	if err := s.idemp.MarkProcessed(ctx, ConsumerGroup, triggeringEvent.EventID, triggeringEvent.SagaID, string(triggeringEvent.EventType)); err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	return nil
}
