// Package risk implements the Risk participant: fraud/velocity/blacklist
// scoring and its compensation rollback.
package risk

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"paymentsaga/internal/event"
)

// blacklistMarker flags a userId as blacklisted in the baseline policy
// stub. A real deployment would replace this with a lookup service.
const blacklistMarker = "blocked"

// fraudAmountThreshold is the baseline fraud-check cutoff.
const fraudAmountThreshold = 10000.0

// approvalThreshold is the score at or above which a saga is declined. Any
// single failed hard check (fraud 40, velocity 30, blacklist 30)
// already clears this, so approval requires passing all three.
const approvalThreshold = 30

// Assessment is the fraud/velocity/blacklist scoring result for one saga.
type Assessment struct {
	ID             string
	OrderID        string
	SagaID         string
	UserID         string
	RiskScore      int
	Approved       bool
	FraudCheck     bool
	VelocityCheck  bool
	BlacklistCheck bool
	RolledBack     bool
	CreatedAt      time.Time

	Changes []event.Envelope
}

func (a *Assessment) apply(env event.Envelope) {
	a.Changes = append(a.Changes, env)
}

// Evaluate scores a PAYMENT_INITIATED payload and builds the resulting
// assessment plus its RISK_CHECK_COMPLETED outbound event.
func Evaluate(sagaID string, p event.PaymentInitiatedPayload) *Assessment {
	fraudCheck := p.Amount <= fraudAmountThreshold
	velocityCheck := true // policy stub: always true in baseline
	blacklistCheck := !strings.Contains(strings.ToLower(p.UserID), blacklistMarker)

	score := 0
	if !fraudCheck {
		score += 40
	}
	if !velocityCheck {
		score += 30
	}
	if !blacklistCheck {
		score += 30
	}
	approved := score < approvalThreshold

	now := time.Now().UTC()
	a := &Assessment{
		ID:             uuid.NewString(),
		OrderID:        p.OrderID,
		SagaID:         sagaID,
		UserID:         p.UserID,
		RiskScore:      score,
		Approved:       approved,
		FraudCheck:     fraudCheck,
		VelocityCheck:  velocityCheck,
		BlacklistCheck: blacklistCheck,
		RolledBack:     false,
		CreatedAt:      now,
	}

	payload := event.RiskCheckCompletedPayload{
		OrderID:   p.OrderID,
		RiskScore: score,
		Approved:  approved,
		Checks: event.RiskChecks{
			FraudCheck:     fraudCheck,
			VelocityCheck:  velocityCheck,
			BlacklistCheck: blacklistCheck,
		},
	}
	env, err := event.New(event.EventRiskCheckCompleted, sagaID, "risk-service", payload)
	if err == nil {
		a.apply(env)
	}
	return a
}

// EvaluationFailed builds the RISK_CHECK_FAILED path for an unexpected
// error while scoring, distinct from a normal decline.
func EvaluationFailed(sagaID, orderID string, cause error) (event.Envelope, error) {
	payload := event.RiskCheckFailedPayload{
		OrderID:   orderID,
		Reason:    cause.Error(),
		RiskScore: -1,
	}
	return event.New(event.EventRiskCheckFailed, sagaID, "risk-service", payload)
}

// Rollback is the compensation reaction: idempotent no-op if
// already rolled back.
func (a *Assessment) Rollback() error {
	if a.RolledBack {
		return nil
	}
	a.RolledBack = true

	now := time.Now().UTC()
	payload := event.RiskCheckRollbackPayload{
		OrderID:      a.OrderID,
		RolledBackAt: now,
	}
	env, err := event.New(event.EventRiskCheckRollback, a.SagaID, "risk-service", payload)
	if err != nil {
		return fmt.Errorf("build RISK_CHECK_ROLLBACK: %w", err)
	}
	a.apply(env)
	return nil
}
