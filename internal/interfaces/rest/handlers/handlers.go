package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator"
	"github.com/google/uuid"

	"github.com/payflowhq/payflow/internal/application"
	"github.com/payflowhq/payflow/internal/application/services"
	"github.com/payflowhq/payflow/internal/interfaces/rest/httpx"
)

// Handlers binds the HTTP surface to the application services.
type Handlers struct {
	payments *services.PaymentService
	wallets  *services.WalletService
	validate *validator.Validate
	logger   *slog.Logger
}

func NewHandlers(payments *services.PaymentService, wallets *services.WalletService, logger *slog.Logger) *Handlers {
	return &Handlers{
		payments: payments,
		wallets:  wallets,
		validate: validator.New(),
		logger:   logger,
	}
}

// decode parses and validates a JSON request body. It writes the error
// response itself and reports whether the handler should continue.
func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httpx.WriteError(w, r, application.NewValidationError("malformed request body", err), h.logger)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		httpx.WriteError(w, r, application.NewValidationError("request validation failed: "+err.Error(), err), h.logger)
		return false
	}
	return true
}

func (h *Handlers) identity(w http.ResponseWriter, r *http.Request) (httpx.Identity, bool) {
	id, ok := httpx.IdentityFrom(r.Context())
	if !ok {
		httpx.WriteError(w, r, application.NewUnauthorizedError(), h.logger)
		return httpx.Identity{}, false
	}
	return id, true
}

func (h *Handlers) pathUUID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	raw := chi.URLParam(r, param)
	id, err := uuid.Parse(raw)
	if err != nil {
		httpx.WriteError(w, r, application.NewValidationError(param+" must be a valid UUID", err), h.logger)
		return uuid.Nil, false
	}
	return id, true
}
