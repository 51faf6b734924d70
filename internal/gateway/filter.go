package gateway

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/payflowhq/payflow/internal/application"
	"github.com/payflowhq/payflow/internal/interfaces/rest/httpx"
	"github.com/payflowhq/payflow/internal/interfaces/rest/middleware"
)

const accessTokenCookie = "access_token"

// Paths forwarded without authentication.
var publicPathPrefixes = []string{
	"/api/v1/auth/",
	"/user-fallback",
	"/actuator/health",
}

// AuthFilter authenticates every non-public request and translates the
// token into X-User-* identity headers for the backends. Inbound copies of
// those headers are always stripped first so a client cannot impersonate
// another user by setting them directly.
type AuthFilter struct {
	verifier *TokenVerifier
	logger   *slog.Logger
}

func NewAuthFilter(verifier *TokenVerifier, logger *slog.Logger) *AuthFilter {
	return &AuthFilter{verifier: verifier, logger: logger}
}

func isPublicPath(path string) bool {
	for _, prefix := range publicPathPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func (f *AuthFilter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Header.Del(middleware.HeaderUserID)
		r.Header.Del(middleware.HeaderUserEmail)
		r.Header.Del(middleware.HeaderUserName)

		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token := extractToken(r)
		if token == "" {
			f.unauthorized(w, r, "Missing authentication token")
			return
		}

		claims, err := f.verifier.Verify(token)
		if err != nil {
			f.logger.Debug("token rejected", "path", r.URL.Path, "error", err)
			f.unauthorized(w, r, "Invalid or expired token")
			return
		}

		r.Header.Set(middleware.HeaderUserID, claims.Subject)
		r.Header.Set(middleware.HeaderUserEmail, claims.Email)
		r.Header.Set(middleware.HeaderUserName, claims.Username)
		next.ServeHTTP(w, r)
	})
}

// extractToken prefers the HttpOnly cookie, falling back to the
// Authorization header.
func extractToken(r *http.Request) string {
	if cookie, err := r.Cookie(accessTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

func (f *AuthFilter) unauthorized(w http.ResponseWriter, r *http.Request, message string) {
	httpx.WriteJSON(w, http.StatusUnauthorized, httpx.ErrorEnvelope{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Status:    http.StatusUnauthorized,
		Code:      application.CodeUnauthorized,
		Error:     application.KindUnauthorized,
		Message:   message,
		Path:      r.URL.Path,
	}, f.logger)
}
