package middleware

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/payflowhq/payflow/internal/application"
	"github.com/payflowhq/payflow/internal/interfaces/rest/httpx"
)

const (
	HeaderUserID    = "X-User-Id"
	HeaderUserEmail = "X-User-Email"
	HeaderUserName  = "X-User-Name"
)

// Identity extracts the caller identity injected by the gateway and rejects
// requests that arrive without it. Everything behind this middleware can
// assume httpx.IdentityFrom succeeds.
func Identity(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawID := r.Header.Get(HeaderUserID)
			if rawID == "" {
				httpx.WriteError(w, r, application.NewUnauthorizedError(), logger)
				return
			}

			userID, err := uuid.Parse(rawID)
			if err != nil || userID == uuid.Nil {
				logger.Warn("rejecting request with malformed identity header",
					"path", r.URL.Path,
					"user_id_header", rawID)
				httpx.WriteError(w, r, application.NewUnauthorizedError(), logger)
				return
			}

			ctx := httpx.WithIdentity(r.Context(), httpx.Identity{
				UserID: userID,
				Email:  r.Header.Get(HeaderUserEmail),
				Name:   r.Header.Get(HeaderUserName),
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
