package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/payflowhq/payflow/internal/application"
	"github.com/payflowhq/payflow/internal/application/services"
	"github.com/payflowhq/payflow/internal/domain"
	"github.com/payflowhq/payflow/internal/interfaces/rest/httpx"
)

type createWalletRequest struct {
	Currency string `json:"currency"`
}

type walletResponse struct {
	WalletID         uuid.UUID       `json:"walletId"`
	UserID           uuid.UUID       `json:"userId"`
	Balance          decimal.Decimal `json:"balance"`
	ReservedBalance  decimal.Decimal `json:"reservedBalance"`
	AvailableBalance decimal.Decimal `json:"availableBalance"`
	Currency         string          `json:"currency"`
	Version          int64           `json:"version"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

func toWalletResponse(w *domain.Wallet) walletResponse {
	return walletResponse{
		WalletID:         w.ID,
		UserID:           w.UserID,
		Balance:          w.Balance,
		ReservedBalance:  w.ReservedBalance,
		AvailableBalance: w.AvailableBalance(),
		Currency:         w.Currency,
		Version:          w.Version,
		CreatedAt:        w.CreatedAt,
		UpdatedAt:        w.UpdatedAt,
	}
}

// CreateWallet provisions an empty wallet for the caller.
func (h *Handlers) CreateWallet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	var req createWalletRequest
	if !h.decode(w, r, &req) {
		return
	}

	wallet, err := h.wallets.CreateWallet(r.Context(), services.CreateWalletCommand{
		UserID:   id.UserID,
		Currency: req.Currency,
	})
	if err != nil {
		httpx.WriteError(w, r, err, h.logger)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toWalletResponse(wallet), h.logger)
}

// GetWallet returns a wallet owned by the caller.
func (h *Handlers) GetWallet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	walletID, ok := h.pathUUID(w, r, "walletId")
	if !ok {
		return
	}

	wallet, err := h.wallets.GetWallet(r.Context(), walletID, id.UserID)
	if err != nil {
		httpx.WriteError(w, r, err, h.logger)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toWalletResponse(wallet), h.logger)
}

// ListWallets returns every wallet the caller owns.
func (h *Handlers) ListWallets(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}

	wallets, err := h.wallets.ListWallets(r.Context(), id.UserID)
	if err != nil {
		httpx.WriteError(w, r, err, h.logger)
		return
	}
	out := make([]walletResponse, 0, len(wallets))
	for _, wallet := range wallets {
		out = append(out, toWalletResponse(wallet))
	}
	httpx.WriteJSON(w, http.StatusOK, out, h.logger)
}

type topUpRequest struct {
	Amount   decimal.Decimal `json:"amount" validate:"required"`
	Currency string          `json:"currency"`
}

// TopUp credits external funds onto the caller's wallet.
func (h *Handlers) TopUp(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	walletID, ok := h.pathUUID(w, r, "walletId")
	if !ok {
		return
	}
	var req topUpRequest
	if !h.decode(w, r, &req) {
		return
	}

	wallet, err := h.wallets.TopUp(r.Context(), services.TopUpCommand{
		WalletID: walletID,
		UserID:   id.UserID,
		Amount:   req.Amount,
		Currency: req.Currency,
	})
	if err != nil {
		httpx.WriteError(w, r, err, h.logger)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toWalletResponse(wallet), h.logger)
}

type transferRequest struct {
	FromWalletID uuid.UUID       `json:"fromWalletId" validate:"required"`
	ToWalletID   uuid.UUID       `json:"toWalletId" validate:"required"`
	Amount       decimal.Decimal `json:"amount" validate:"required"`
	Currency     string          `json:"currency"`
}

type transferResponse struct {
	DebitTransactionID  uuid.UUID `json:"debitTransactionId"`
	CreditTransactionID uuid.UUID `json:"creditTransactionId"`
}

// Transfer moves funds between two wallets owned by the caller.
func (h *Handlers) Transfer(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	var req transferRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.wallets.Transfer(r.Context(), services.TransferCommand{
		FromWalletID: req.FromWalletID,
		ToWalletID:   req.ToWalletID,
		UserID:       id.UserID,
		Amount:       req.Amount,
		Currency:     req.Currency,
	})
	if err != nil {
		httpx.WriteError(w, r, err, h.logger)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, transferResponse{
		DebitTransactionID:  result.DebitTransactionID,
		CreditTransactionID: result.CreditTransactionID,
	}, h.logger)
}

type transactionResponse struct {
	TransactionID uuid.UUID       `json:"transactionId"`
	WalletID      uuid.UUID       `json:"walletId"`
	Amount        decimal.Decimal `json:"amount"`
	Type          string          `json:"type"`
	Status        string          `json:"status"`
	ReferenceID   *string         `json:"referenceId,omitempty"`
	ReferenceType *string         `json:"referenceType,omitempty"`
	Description   string          `json:"description"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// History returns one page of the wallet journal, newest first. Pages are
// 1-based and fixed at ten entries.
func (h *Handlers) History(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	walletID, ok := h.pathUUID(w, r, "walletId")
	if !ok {
		return
	}

	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			httpx.WriteError(w, r, application.NewValidationError("page must be a positive integer", err), h.logger)
			return
		}
		page = parsed
	}

	entries, err := h.wallets.History(r.Context(), walletID, id.UserID, page)
	if err != nil {
		httpx.WriteError(w, r, err, h.logger)
		return
	}

	out := make([]transactionResponse, 0, len(entries))
	for _, e := range entries {
		var refType *string
		if e.ReferenceType != nil {
			s := string(*e.ReferenceType)
			refType = &s
		}
		out = append(out, transactionResponse{
			TransactionID: e.ID,
			WalletID:      e.WalletID,
			Amount:        e.Amount,
			Type:          string(e.Type),
			Status:        string(e.Status),
			ReferenceID:   e.ReferenceID,
			ReferenceType: refType,
			Description:   e.Description,
			CreatedAt:     e.CreatedAt,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, out, h.logger)
}

type monthlySummaryResponse struct {
	Year         int             `json:"year"`
	Month        int             `json:"month"`
	TotalCredits decimal.Decimal `json:"totalCredits"`
	TotalDebits  decimal.Decimal `json:"totalDebits"`
}

// MonthlySummary aggregates completed journal entries across all of the
// caller's wallets for one calendar month. Defaults to the current month.
func (h *Handlers) MonthlySummary(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}

	now := time.Now().UTC()
	year, month := now.Year(), int(now.Month())
	if raw := r.URL.Query().Get("year"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			httpx.WriteError(w, r, application.NewValidationError("year must be an integer", err), h.logger)
			return
		}
		year = parsed
	}
	if raw := r.URL.Query().Get("month"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 12 {
			httpx.WriteError(w, r, application.NewValidationError("month must be between 1 and 12", err), h.logger)
			return
		}
		month = parsed
	}

	credits, debits, err := h.wallets.MonthlySummary(r.Context(), id.UserID, year, time.Month(month))
	if err != nil {
		httpx.WriteError(w, r, err, h.logger)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, monthlySummaryResponse{
		Year:         year,
		Month:        month,
		TotalCredits: credits,
		TotalDebits:  debits,
	}, h.logger)
}
