package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/payflowhq/payflow/internal/application/services"
	"github.com/payflowhq/payflow/internal/interfaces/rest/httpx"
)

// Service-to-service reservation endpoints. These are called by the payment
// orchestrator, not end users, so they skip identity and ownership checks;
// the orchestrator verified ownership when the payment was initiated.

type reserveRequest struct {
	Amount    decimal.Decimal `json:"amount" validate:"required"`
	Currency  string          `json:"currency"`
	PaymentID uuid.UUID       `json:"paymentId" validate:"required"`
}

type reserveResponse struct {
	WalletTransactionID uuid.UUID       `json:"walletTransactionId"`
	WalletID            uuid.UUID       `json:"walletId"`
	AmountReserved      decimal.Decimal `json:"amountReserved"`
	RemainingBalance    decimal.Decimal `json:"remainingBalance"`
}

type confirmRequest struct {
	WalletTransactionID   uuid.UUID `json:"walletTransactionId" validate:"required"`
	ProviderTransactionID string    `json:"providerTransactionId"`
	Provider              string    `json:"provider"`
}

type cancelRequest struct {
	WalletTransactionID uuid.UUID `json:"walletTransactionId" validate:"required"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// ReserveFunds places a hold on the wallet for a payment. Replaying the
// same paymentId returns the existing reservation.
func (h *Handlers) ReserveFunds(w http.ResponseWriter, r *http.Request) {
	walletID, ok := h.pathUUID(w, r, "walletId")
	if !ok {
		return
	}
	var req reserveRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.wallets.ReserveFunds(r.Context(), services.ReserveFundsCommand{
		WalletID:  walletID,
		Amount:    req.Amount,
		Currency:  req.Currency,
		PaymentID: req.PaymentID,
	})
	if err != nil {
		httpx.WriteError(w, r, err, h.logger)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, reserveResponse{
		WalletTransactionID: result.WalletTransactionID,
		WalletID:            result.WalletID,
		AmountReserved:      result.AmountReserved,
		RemainingBalance:    result.RemainingBalance,
	}, h.logger)
}

// ConfirmReservation settles a hold after a successful charge.
func (h *Handlers) ConfirmReservation(w http.ResponseWriter, r *http.Request) {
	walletID, ok := h.pathUUID(w, r, "walletId")
	if !ok {
		return
	}
	var req confirmRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := h.wallets.ConfirmReservation(r.Context(), services.ConfirmReservationCommand{
		WalletID:              walletID,
		WalletTransactionID:   req.WalletTransactionID,
		ProviderTransactionID: req.ProviderTransactionID,
		Provider:              req.Provider,
	})
	if err != nil {
		httpx.WriteError(w, r, err, h.logger)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, messageResponse{Message: "reservation confirmed"}, h.logger)
}

// CancelReservation releases a hold after a failed or abandoned charge.
func (h *Handlers) CancelReservation(w http.ResponseWriter, r *http.Request) {
	walletID, ok := h.pathUUID(w, r, "walletId")
	if !ok {
		return
	}
	var req cancelRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := h.wallets.CancelReservation(r.Context(), services.CancelReservationCommand{
		WalletID:            walletID,
		WalletTransactionID: req.WalletTransactionID,
	})
	if err != nil {
		httpx.WriteError(w, r, err, h.logger)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, messageResponse{Message: "reservation cancelled"}, h.logger)
}
