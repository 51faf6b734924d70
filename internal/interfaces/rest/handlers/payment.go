package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/payflowhq/payflow/internal/application/services"
	"github.com/payflowhq/payflow/internal/interfaces/rest/httpx"
)

type initiatePaymentRequest struct {
	Amount          decimal.Decimal `json:"amount" validate:"required"`
	Currency        string          `json:"currency"`
	WalletID        uuid.UUID       `json:"walletId" validate:"required"`
	ClientRequestID string          `json:"clientRequestId" validate:"required,max=128"`
	Provider        string          `json:"provider"`
}

type initiatePaymentResponse struct {
	PaymentID uuid.UUID `json:"paymentId"`
	Version   int64     `json:"version"`
	IsNew     bool      `json:"isNew"`
}

// InitiatePayment creates a payment in INITIATED, replaying idempotently on
// (clientRequestId, user). 201 means this request created it; 200 means an
// earlier request did.
func (h *Handlers) InitiatePayment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	var req initiatePaymentRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.payments.Initiate(r.Context(), services.InitiatePaymentCommand{
		UserID:          id.UserID,
		Amount:          req.Amount,
		Currency:        req.Currency,
		WalletID:        req.WalletID,
		ClientRequestID: req.ClientRequestID,
		Provider:        req.Provider,
	})
	if err != nil {
		httpx.WriteError(w, r, err, h.logger)
		return
	}

	status := http.StatusOK
	if result.IsNew {
		status = http.StatusCreated
	}
	httpx.WriteJSON(w, status, initiatePaymentResponse{
		PaymentID: result.PaymentID,
		Version:   result.Version,
		IsNew:     result.IsNew,
	}, h.logger)
}

type processPaymentRequest struct {
	PaymentMethodToken string `json:"paymentMethodToken"`
	PaymentMethodID    string `json:"paymentMethodId"`
}

type paymentResultResponse struct {
	PaymentID uuid.UUID       `json:"paymentId"`
	Status    string          `json:"status"`
	Message   string          `json:"message"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// ProcessPayment runs the reserve-charge-settle sequence for an INITIATED
// payment. A declined charge is a 200 with status FAILED, not an error.
func (h *Handlers) ProcessPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	paymentID, ok := h.pathUUID(w, r, "paymentId")
	if !ok {
		return
	}
	var req processPaymentRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.payments.Process(r.Context(), services.ProcessPaymentCommand{
		PaymentID:          paymentID,
		UserID:             id.UserID,
		PaymentMethodToken: req.PaymentMethodToken,
		PaymentMethodID:    req.PaymentMethodID,
	})
	if err != nil {
		httpx.WriteError(w, r, err, h.logger)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toPaymentResult(result), h.logger)
}

// PaymentStatus polls the provider for PENDING payments and settles them
// when the charge reached a terminal state.
func (h *Handlers) PaymentStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	paymentID, ok := h.pathUUID(w, r, "paymentId")
	if !ok {
		return
	}

	result, err := h.payments.CheckStatus(r.Context(), paymentID, id.UserID)
	if err != nil {
		httpx.WriteError(w, r, err, h.logger)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toPaymentResult(result), h.logger)
}

type paymentResponse struct {
	PaymentID             uuid.UUID       `json:"paymentId"`
	WalletID              uuid.UUID       `json:"walletId"`
	Amount                decimal.Decimal `json:"amount"`
	Currency              string          `json:"currency"`
	Status                string          `json:"status"`
	ClientRequestID       string          `json:"clientRequestId"`
	Provider              *string         `json:"provider,omitempty"`
	ProviderTransactionID *string         `json:"providerTransactionId,omitempty"`
	FailureCode           *string         `json:"failureCode,omitempty"`
	FailureMessage        *string         `json:"failureMessage,omitempty"`
	Version               int64           `json:"version"`
	CreatedAt             time.Time       `json:"createdAt"`
	UpdatedAt             time.Time       `json:"updatedAt"`
}

// GetPayment returns a payment owned by the caller.
func (h *Handlers) GetPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	paymentID, ok := h.pathUUID(w, r, "paymentId")
	if !ok {
		return
	}

	payment, err := h.payments.GetPayment(r.Context(), paymentID, id.UserID)
	if err != nil {
		httpx.WriteError(w, r, err, h.logger)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, paymentResponse{
		PaymentID:             payment.ID,
		WalletID:              payment.WalletID,
		Amount:                payment.Amount,
		Currency:              payment.Currency,
		Status:                string(payment.Status),
		ClientRequestID:       payment.ClientRequestID,
		Provider:              payment.Provider,
		ProviderTransactionID: payment.ProviderTransactionID,
		FailureCode:           payment.FailureCode,
		FailureMessage:        payment.FailureMessage,
		Version:               payment.Version,
		CreatedAt:             payment.CreatedAt,
		UpdatedAt:             payment.UpdatedAt,
	}, h.logger)
}

func toPaymentResult(result *services.PaymentResult) paymentResultResponse {
	return paymentResultResponse{
		PaymentID: result.PaymentID,
		Status:    string(result.Status),
		Message:   result.Message,
		Amount:    result.Amount,
		Currency:  result.Currency,
		CreatedAt: result.CreatedAt,
		UpdatedAt: result.UpdatedAt,
	}
}
