package payment

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"paymentsaga/internal/event"
	"paymentsaga/internal/idempotency"
	"paymentsaga/internal/retrypolicy"
)

// ConsumerGroup is the idempotency and shard-queue namespace the
// Payment participant consumes under.
const ConsumerGroup = "payment-service"

// orderSnapshot is the minimal charge context Payment needs for a
// saga: amount, currency and payment method. RISK_CHECK_COMPLETED
// does not carry these, so Payment additionally subscribes to
// payment-saga purely to populate this process-local cache keyed by
// sagaId; it never persists PAYMENT_INITIATED or treats it as a
// trigger for any state transition of its own.
type orderSnapshot struct {
	amount        float64
	currency      string
	paymentMethod string
}

type initiationCache struct {
	mu sync.Mutex
	m  map[string]orderSnapshot
}

func newInitiationCache() *initiationCache {
	return &initiationCache{m: make(map[string]orderSnapshot)}
}

func (c *initiationCache) store(sagaID string, snap orderSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[sagaID] = snap
}

func (c *initiationCache) load(sagaID string) (orderSnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap, ok := c.m[sagaID]
	return snap, ok
}

// Service is the Payment participant.
type Service struct {
	repo    *Repository
	idemp   idempotency.Store
	gateway Gateway
	log     zerolog.Logger

	initiationCache *initiationCache
}

// NewService wires a Service against its repository, idempotency store
// and gateway adapter.
func NewService(repo *Repository, idemp idempotency.Store, gateway Gateway, log zerolog.Logger) *Service {
	return &Service{repo: repo, idemp: idemp, gateway: gateway, log: log, initiationCache: newInitiationCache()}
}

// HandlePaymentInitiated caches the charge context for a new saga.
// This is not a business-state transition: nothing is persisted and
// no idempotency check applies, since re-caching identical data is
// already idempotent.
func (s *Service) HandlePaymentInitiated(ctx context.Context, env event.Envelope) error {
	p, err := event.DecodePayload[event.PaymentInitiatedPayload](env)
	if err != nil {
		return err
	}
	s.initiationCache.store(env.SagaID, orderSnapshot{
		amount:        p.Amount,
		currency:      p.Currency,
		paymentMethod: p.PaymentMethod,
	})
	return nil
}

// HandleRiskEvent reacts to risk-events: charges the gateway on
// approval, otherwise does nothing. The gateway call is retried
// with GatewayPolicy; exhaustion counts as a gateway failure and
// completes the transaction as FAILED rather than escalating to DLQ.
func (s *Service) HandleRiskEvent(ctx context.Context, env event.Envelope) error {
	if env.EventType != event.EventRiskCheckCompleted {
		return nil
	}

	done, err := s.idemp.IsProcessed(ctx, ConsumerGroup, env.EventID)
	if err != nil {
		return fmt.Errorf("check processed: %w", err)
	}
	if done {
		return nil
	}

	p, err := event.DecodePayload[event.RiskCheckCompletedPayload](env)
	if err != nil {
		return err
	}
	if !p.Approved {
		return s.markProcessed(ctx, env)
	}

	if _, err := s.repo.GetBySagaID(ctx, env.SagaID); err == nil {
		return s.markProcessed(ctx, env) // already processed this saga
	} else if err != ErrNotFound {
		return fmt.Errorf("check existing transaction: %w", err)
	}

	order, err := s.orderContext(env)
	if err != nil {
		return err
	}

	t := StartProcessing(env.SagaID, p.OrderID, order.amount, order.currency)

	chargeErr := retrypolicy.Do(ctx, s.log, retrypolicy.GatewayPolicy(), func() error {
		result, err := s.gateway.Charge(ctx, ChargeRequest{
			SagaID:        env.SagaID,
			OrderID:       p.OrderID,
			Amount:        order.amount,
			Currency:      order.currency,
			PaymentMethod: order.paymentMethod,
		})
		if err != nil {
			return err
		}
		t.GatewayTransactionID = result.GatewayTransactionID
		t.AuthCode = result.AuthCode
		return nil
	})

	if chargeErr != nil {
		if err := t.CompleteFailure(chargeErr.Error(), "GATEWAY_DECLINED"); err != nil {
			return err
		}
	} else {
		if err := t.CompleteSuccess(t.GatewayTransactionID, t.AuthCode); err != nil {
			return err
		}
	}

	if err := s.repo.Save(ctx, t); err != nil {
		return fmt.Errorf("save payment transaction: %w", err)
	}

	return s.markProcessed(ctx, env)
}

// HandleCompensation reacts to ORDER_CANCELLED or PAYMENT_FAILED by
// refunding a completed transaction. A transaction that never
// reached COMPLETED has nothing to undo and is acknowledged as a
// no-op. A refund gateway failure is logged for manual intervention
// rather than retried or routed to DLQ, leaving the transaction in
// COMPLETED state; an operator must reconcile it by hand.
func (s *Service) HandleCompensation(ctx context.Context, env event.Envelope) error {
	switch env.EventType {
	case event.EventOrderCancelled, event.EventPaymentFailed:
	default:
		return nil
	}

	done, err := s.idemp.IsProcessed(ctx, ConsumerGroup, env.EventID)
	if err != nil {
		return fmt.Errorf("check processed: %w", err)
	}
	if done {
		return nil
	}

	t, err := s.repo.GetBySagaID(ctx, env.SagaID)
	if err == ErrNotFound {
		return s.markProcessed(ctx, env)
	}
	if err != nil {
		return fmt.Errorf("load transaction for saga %s: %w", env.SagaID, err)
	}

	if t.Status != StatusCompleted {
		// PROCESSING or FAILED: no money was moved, nothing to refund.
		// Already REFUNDED: idempotent no-op.
		return s.markProcessed(ctx, env)
	}

	reason := "order cancelled"
	if env.EventType == event.EventPaymentFailed {
		reason = "own payment failure"
	}

	result, refundErr := s.gateway.Refund(ctx, RefundRequest{
		GatewayTransactionID: t.GatewayTransactionID,
		Amount:               t.Amount,
		Reason:               reason,
	})
	if refundErr != nil {
		s.log.Error().Err(refundErr).Str("sagaId", env.SagaID).Str("transactionId", t.TransactionID).
			Msg("ALERT: refund gateway failed, manual intervention required")
		return s.markProcessed(ctx, env)
	}

	if err := t.Refund(result.RefundID, reason); err != nil {
		if err == ErrRefundNotApplicable {
			return s.markProcessed(ctx, env)
		}
		return err
	}

	if err := s.repo.Save(ctx, t); err != nil {
		return fmt.Errorf("save refunded transaction: %w", err)
	}

	return s.markProcessed(ctx, env)
}

// orderContext recovers the charge amount, currency and payment method
// for a saga from the process-local cache HandlePaymentInitiated fills.
func (s *Service) orderContext(env event.Envelope) (orderSnapshot, error) {
	snap, ok := s.initiationCache.load(env.SagaID)
	if !ok {
		return orderSnapshot{}, fmt.Errorf("no cached PAYMENT_INITIATED context for saga %s", env.SagaID)
	}
	return snap, nil
}

func (s *Service) markProcessed(ctx context.Context, env event.Envelope) error {
	if err := s.idemp.MarkProcessed(ctx, ConsumerGroup, env.EventID, env.SagaID, string(env.EventType)); err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	return nil
}
