package event

import "time"

// OrderItem is one line item of a PAYMENT_INITIATED payload.
type OrderItem struct {
	ProductID string  `json:"productId"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

// PaymentInitiatedPayload is carried on payment-saga.
type PaymentInitiatedPayload struct {
	OrderID       string      `json:"orderId"`
	UserID        string      `json:"userId"`
	Amount        float64     `json:"amount"`
	Currency      string      `json:"currency"`
	PaymentMethod string      `json:"paymentMethod"`
	Items         []OrderItem `json:"items"`
}

// OrderConfirmedPayload is carried on payment-events (reserved).
type OrderConfirmedPayload struct {
	OrderID       string    `json:"orderId"`
	TransactionID string    `json:"transactionId"`
	ConfirmedAt   time.Time `json:"confirmedAt"`
}

// OrderCancelledPayload is carried on saga-compensation.
type OrderCancelledPayload struct {
	OrderID     string    `json:"orderId"`
	Reason      string    `json:"reason"`
	CancelledAt time.Time `json:"cancelledAt"`
}

// RiskChecks is the breakdown behind a risk score.
type RiskChecks struct {
	FraudCheck     bool `json:"fraudCheck"`
	VelocityCheck  bool `json:"velocityCheck"`
	BlacklistCheck bool `json:"blacklistCheck"`
}

// RiskCheckStartedPayload is carried on risk-events (reserved).
type RiskCheckStartedPayload struct {
	OrderID   string    `json:"orderId"`
	StartedAt time.Time `json:"startedAt"`
}

// RiskCheckCompletedPayload is carried on risk-events.
type RiskCheckCompletedPayload struct {
	OrderID   string     `json:"orderId"`
	RiskScore int        `json:"riskScore"`
	Approved  bool       `json:"approved"`
	Checks    RiskChecks `json:"checks"`
}

// RiskCheckFailedPayload is carried on risk-events.
type RiskCheckFailedPayload struct {
	OrderID   string `json:"orderId"`
	Reason    string `json:"reason"`
	RiskScore int    `json:"riskScore"`
}

// RiskCheckRollbackPayload is carried on saga-compensation.
type RiskCheckRollbackPayload struct {
	OrderID     string    `json:"orderId"`
	RolledBackAt time.Time `json:"rolledBackAt"`
}

// PaymentProcessingPayload is carried on payment-events (reserved).
type PaymentProcessingPayload struct {
	OrderID       string    `json:"orderId"`
	TransactionID string    `json:"transactionId"`
	StartedAt     time.Time `json:"startedAt"`
}

// PaymentProcessedPayload is carried on payment-events.
type PaymentProcessedPayload struct {
	OrderID       string    `json:"orderId"`
	TransactionID string    `json:"transactionId"`
	Amount        float64   `json:"amount"`
	Currency      string    `json:"currency"`
	ProcessedAt   time.Time `json:"processedAt"`
}

// PaymentFailedPayload is carried on payment-events.
type PaymentFailedPayload struct {
	OrderID   string `json:"orderId"`
	Reason    string `json:"reason"`
	ErrorCode string `json:"errorCode"`
}

// PaymentRefundedPayload is carried on saga-compensation.
type PaymentRefundedPayload struct {
	OrderID       string  `json:"orderId"`
	TransactionID string  `json:"transactionId"`
	RefundID      string  `json:"refundId"`
	Amount        float64 `json:"amount"`
	Reason        string  `json:"reason"`
}

// NotificationSentPayload is reserved; no Topic constant exists for
// notification events, so TopicFor maps its type to dead-letter.
type NotificationSentPayload struct {
	OrderID  string `json:"orderId"`
	Category string `json:"category"`
}

// NotificationFailedPayload is reserved; like NotificationSentPayload,
// TopicFor maps its type to dead-letter.
type NotificationFailedPayload struct {
	OrderID  string `json:"orderId"`
	Category string `json:"category"`
	Reason   string `json:"reason"`
}

// SagaCompletedPayload, SagaFailedPayload and SagaTimeoutPayload are
// reserved lifecycle events; no component emits them in the baseline
// flow, but they are part of the closed taxonomy a watchdog or future
// step could use.
type SagaCompletedPayload struct {
	OrderID     string    `json:"orderId"`
	CompletedAt time.Time `json:"completedAt"`
}

type SagaFailedPayload struct {
	OrderID string `json:"orderId"`
	Reason  string `json:"reason"`
}

type SagaTimeoutPayload struct {
	OrderID   string    `json:"orderId"`
	DeadlineAt time.Time `json:"deadlineAt"`
}
