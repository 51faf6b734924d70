package rest

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/payflowhq/payflow/internal/interfaces/rest/handlers"
	"github.com/payflowhq/payflow/internal/interfaces/rest/middleware"
)

// NewRouter wires the HTTP surface. User-facing routes sit behind the
// identity middleware and trust the gateway's X-User-* headers; the
// reservation protocol routes are service-to-service and skip it.
func NewRouter(h *handlers.Handlers, reg *prometheus.Registry, requestTimeout time.Duration, logger *slog.Logger) http.Handler {
	metrics := middleware.NewHTTPMetrics(reg, "payflow")

	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(metrics.Middleware)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/actuator/health", h.Health)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Identity(logger))

			r.Post("/payment", h.InitiatePayment)
			r.Get("/payment/{paymentId}", h.GetPayment)
			r.Post("/payment/{paymentId}/process", h.ProcessPayment)
			r.Get("/payment/{paymentId}/status", h.PaymentStatus)

			r.Post("/wallet", h.CreateWallet)
			r.Get("/wallet", h.ListWallets)
			r.Get("/wallet/summary", h.MonthlySummary)
			r.Post("/wallet/transfer", h.Transfer)
			r.Get("/wallet/{walletId}", h.GetWallet)
			r.Post("/wallet/{walletId}/topup", h.TopUp)
			r.Get("/wallet/{walletId}/transactions", h.History)
		})

		r.Group(func(r chi.Router) {
			r.Post("/wallet/{walletId}/reserve", h.ReserveFunds)
			r.Post("/wallet/{walletId}/confirm", h.ConfirmReservation)
			r.Post("/wallet/{walletId}/cancel", h.CancelReservation)
		})
	})

	return r
}
