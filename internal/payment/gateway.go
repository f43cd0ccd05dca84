package payment

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ChargeRequest is what the Payment participant sends to its gateway.
type ChargeRequest struct {
	SagaID        string
	OrderID       string
	Amount        float64
	Currency      string
	PaymentMethod string
}

// ChargeResult is the gateway's successful response.
type ChargeResult struct {
	GatewayTransactionID string
	AuthCode             string
}

// RefundRequest is what the Payment participant sends to reverse a charge.
type RefundRequest struct {
	GatewayTransactionID string
	Amount               float64
	Reason               string
}

// RefundResult is the gateway's successful refund response.
type RefundResult struct {
	RefundID string
}

// Gateway abstracts the external payment processor. Swapping
// implementations never touches saga logic.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error)
	Refund(ctx context.Context, req RefundRequest) (RefundResult, error)
}

// declineMarker flags a payment method as a forced decline, letting
// tests and demos exercise the FAILED path deterministically.
const declineMarker = "DECLINE"

// MockGateway is a deterministic in-memory Gateway standing in for a
// real processor: declines are driven by an explicit marker rather
// than chance, so the PAYMENT_FAILED path is reproducible in tests.
type MockGateway struct{}

// NewMockGateway returns a Gateway that declines PaymentMethod values
// containing declineMarker and otherwise always succeeds.
func NewMockGateway() *MockGateway {
	return &MockGateway{}
}

func (g *MockGateway) Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	if strings.Contains(strings.ToUpper(req.PaymentMethod), declineMarker) {
		return ChargeResult{}, fmt.Errorf("gateway declined payment method %q", req.PaymentMethod)
	}
	return ChargeResult{
		GatewayTransactionID: "gw_" + uuid.NewString(),
		AuthCode:             uuid.NewString()[:8],
	}, nil
}

func (g *MockGateway) Refund(ctx context.Context, req RefundRequest) (RefundResult, error) {
	return RefundResult{RefundID: "rf_" + uuid.NewString()}, nil
}
