package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/robertarktes/stadium-bookings/internal/observability"
)

// SetupRouter mounts the booking API. rl and idemp may be nil when Redis is
// not configured.
func SetupRouter(h *Handlers, logger observability.Logger, rl Limiter, limits RateLimits, idemp IdempotencyStore) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(MetricsMiddleware)

	r.Get("/v1/healthz", h.Healthz)
	r.Get("/v1/readyz", h.Readyz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(TracingMiddleware)
		r.Use(PrincipalMiddleware)
		r.Use(RateLimitMiddleware(rl, limits, logger))
		r.Use(IdempotencyMiddleware(idemp, logger))

		r.Route("/v1/bookings", func(r chi.Router) {
			r.Post("/", h.CreateBooking)
			r.Get("/{id}", h.GetBooking)
			r.Post("/{id}/confirm", h.ConfirmPayment)
			r.Post("/{id}/cancel", h.CancelBooking)
			r.Get("/{id}/refund-quote", h.QuoteRefund)
		})
		r.Post("/v1/payments/callback", h.PaymentCallback)
	})

	return r
}
