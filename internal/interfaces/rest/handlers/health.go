package handlers

import (
	"net/http"

	"github.com/payflowhq/payflow/internal/interfaces/rest/httpx"
)

// Health is the liveness probe. The gateway treats this path as public.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "UP"}, h.logger)
}
