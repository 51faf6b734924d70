package httpx

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/payflowhq/payflow/internal/application"
)

// ErrorEnvelope is the error body every endpoint renders. Downstream
// services parse it back into a ServiceError, so the field set is part
// of the wire contract.
type ErrorEnvelope struct {
	Timestamp string `json:"timestamp"`
	Status    int    `json:"status"`
	Code      int    `json:"code"`
	Error     string `json:"error"`
	Message   string `json:"message"`
	Path      string `json:"path"`
}

// WriteJSON renders v with the given status. Encoding failures are logged
// and swallowed; headers are already on the wire at that point.
func WriteJSON(w http.ResponseWriter, status int, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response body", "error", err)
	}
}

// WriteError maps any error to the standard envelope and writes it.
func WriteError(w http.ResponseWriter, r *http.Request, err error, logger *slog.Logger) {
	svcErr := application.ToServiceError(err)

	if svcErr.HTTPStatus >= 500 {
		logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"code", svcErr.Code,
			"error", svcErr.Error())
	} else {
		logger.Debug("request rejected",
			"method", r.Method,
			"path", r.URL.Path,
			"code", svcErr.Code,
			"message", svcErr.Message)
	}

	WriteJSON(w, svcErr.HTTPStatus, ErrorEnvelope{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Status:    svcErr.HTTPStatus,
		Code:      svcErr.Code,
		Error:     svcErr.Kind,
		Message:   svcErr.Message,
		Path:      r.URL.Path,
	}, logger)
}
