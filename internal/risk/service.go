package risk

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"paymentsaga/internal/bus"
	"paymentsaga/internal/event"
	"paymentsaga/internal/idempotency"
)

// ConsumerGroup is the idempotency and shard-queue namespace the Risk
// participant consumes under.
const ConsumerGroup = "risk-service"

// Service is the Risk participant.
type Service struct {
	repo  *Repository
	idemp idempotency.Store
	bus   *bus.Bus
	log   zerolog.Logger
}

// NewService wires a Service against its repository, idempotency store
// and bus (the bus is needed directly for the RISK_CHECK_FAILED path,
// which has no aggregate row to carry the event through the outbox).
func NewService(repo *Repository, idemp idempotency.Store, b *bus.Bus, log zerolog.Logger) *Service {
	return &Service{repo: repo, idemp: idemp, bus: b, log: log}
}

// HandlePaymentInitiated scores a new saga and persists the resulting
// assessment with its RISK_CHECK_COMPLETED outbox row in one
// transaction. Scoring itself cannot fail in the baseline policy stub,
// but if the PAYMENT_INITIATED payload Evaluate needs cannot be
// decoded, this emits RISK_CHECK_FAILED directly since no assessment
// exists yet to carry the event through the outbox.
func (s *Service) HandlePaymentInitiated(ctx context.Context, env event.Envelope) error {
	done, err := s.idemp.IsProcessed(ctx, ConsumerGroup, env.EventID)
	if err != nil {
		return fmt.Errorf("check processed: %w", err)
	}
	if done {
		return nil
	}

	if _, err := s.repo.GetBySagaID(ctx, env.SagaID); err == nil {
		// Already assessed; duplicate delivery, idempotent no-op.
		return s.markProcessed(ctx, env)
	} else if err != ErrNotFound {
		return fmt.Errorf("check existing assessment: %w", err)
	}

	p, err := event.DecodePayload[event.PaymentInitiatedPayload](env)
	if err != nil {
		failed, buildErr := EvaluationFailed(env.SagaID, "", fmt.Errorf("decode PAYMENT_INITIATED: %w", err))
		if buildErr != nil {
			return buildErr
		}
		if err := s.bus.Publish(ctx, event.TopicFor(failed.EventType), failed); err != nil {
			return fmt.Errorf("publish RISK_CHECK_FAILED: %w", err)
		}
		return s.markProcessed(ctx, env)
	}

	a := Evaluate(env.SagaID, p)
	if err := s.repo.Save(ctx, a); err != nil {
		return fmt.Errorf("save risk assessment: %w", err)
	}

	s.log.Info().Str("sagaId", env.SagaID).Int("riskScore", a.RiskScore).Bool("approved", a.Approved).
		Msg("risk check completed")

	return s.markProcessed(ctx, env)
}

// HandleCompensation reacts to ORDER_CANCELLED or PAYMENT_FAILED on
// saga-compensation by rolling back the assessment, if one exists.
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

	a, err := s.repo.GetBySagaID(ctx, env.SagaID)
	if err == ErrNotFound {
		return s.markProcessed(ctx, env)
	}
	if err != nil {
		return fmt.Errorf("load assessment for saga %s: %w", env.SagaID, err)
	}

	if err := a.Rollback(); err != nil {
		return err
	}
	if err := s.repo.Save(ctx, a); err != nil {
		return fmt.Errorf("save rolled back assessment: %w", err)
	}

	return s.markProcessed(ctx, env)
}

func (s *Service) markProcessed(ctx context.Context, env event.Envelope) error {
	if err := s.idemp.MarkProcessed(ctx, ConsumerGroup, env.EventID, env.SagaID, string(env.EventType)); err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	return nil
}
