package order

import (
	"encoding/json"
	"errors"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"paymentsaga/internal/event"
)

// Handler exposes the Order participant's REST surface:
// POST /api/v1/orders/payment to start a saga, GET /api/v1/orders/{id}
// to poll its current state.
type Handler struct {
	svc *Service
	log zerolog.Logger
}

// NewHandler wraps svc for HTTP.
func NewHandler(svc *Service, log zerolog.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

type initiatePaymentRequest struct {
	UserID        string            `json:"userId"`
	Amount        float64           `json:"amount"`
	Currency      string            `json:"currency"`
	PaymentMethod string            `json:"paymentMethod"`
	Items         []event.OrderItem `json:"items"`
}

func (r initiatePaymentRequest) Validate() error {
	var merr *multierror.Error
	if err := validation.Validate(r.UserID, validation.Required); err != nil {
		merr = multierror.Append(merr, errors.New("userId: "+err.Error()))
	}
	if err := validation.Validate(r.Amount, validation.Required, validation.Min(0.01)); err != nil {
		merr = multierror.Append(merr, errors.New("amount: "+err.Error()))
	}
	if err := validation.Validate(r.Currency, validation.Required, validation.Length(3, 3)); err != nil {
		merr = multierror.Append(merr, errors.New("currency: "+err.Error()))
	}
	if err := validation.Validate(r.PaymentMethod, validation.Required); err != nil {
		merr = multierror.Append(merr, errors.New("paymentMethod: "+err.Error()))
	}
	if len(r.Items) == 0 {
		merr = multierror.Append(merr, errors.New("items: at least one item is required"))
	}
	return merr.ErrorOrNil()
}

type initiatePaymentResponse struct {
	OrderID string `json:"orderId"`
	SagaID  string `json:"sagaId"`
	Status  string `json:"status"`
}

// InitiatePayment handles POST /api/v1/orders/payment.
func (h *Handler) InitiatePayment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req initiatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := req.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	o, err := h.svc.Initiate(r.Context(), InitiateRequest{
		UserID:        req.UserID,
		Amount:        req.Amount,
		Currency:      req.Currency,
		PaymentMethod: req.PaymentMethod,
		Items:         req.Items,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("failed to initiate payment saga")
		http.Error(w, "failed to initiate payment", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(initiatePaymentResponse{
		OrderID: o.OrderID,
		SagaID:  o.SagaID,
		Status:  string(o.Status),
	})
}

type orderResponse struct {
	OrderID             string `json:"orderId"`
	SagaID              string `json:"sagaId"`
	UserID              string `json:"userId"`
	Amount              float64 `json:"amount"`
	Currency            string `json:"currency"`
	Status              string `json:"status"`
	PaymentMethod       string `json:"paymentMethod"`
	CancellationReason  string `json:"cancellationReason,omitempty"`
	TransactionID       string `json:"transactionId,omitempty"`
}

// GetOrder handles GET /api/v1/orders/{orderId}. orderID is extracted
// by the caller's router and passed in; ownership is enforced against
// X-User-Id so one user cannot poll another's order.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request, orderID string) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		http.Error(w, "X-User-Id header is required", http.StatusBadRequest)
		return
	}

	o, err := h.svc.GetByOrderID(r.Context(), orderID)
	if err != nil {
		if err == ErrNotFound {
			http.Error(w, "order not found", http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).Msg("failed to load order")
		http.Error(w, "failed to load order", http.StatusInternalServerError)
		return
	}
	if o.UserID != userID {
		http.Error(w, "order not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(orderResponse{
		OrderID:            o.OrderID,
		SagaID:             o.SagaID,
		UserID:             o.UserID,
		Amount:             o.Amount,
		Currency:           o.Currency,
		Status:             string(o.Status),
		PaymentMethod:      o.PaymentMethod,
		CancellationReason: o.CancellationReason,
		TransactionID:      o.TransactionID,
	})
}

// Routes registers the handler's endpoints on mux, matching the
// repo's flat net/http mux wiring.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/orders/payment", h.InitiatePayment)
	mux.HandleFunc("/api/v1/orders/", func(w http.ResponseWriter, r *http.Request) {
		orderID := r.URL.Path[len("/api/v1/orders/"):]
		if orderID == "" {
			http.NotFound(w, r)
			return
		}
		h.GetOrder(w, r, orderID)
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})
}
