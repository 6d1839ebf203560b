package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bookingmicro/booking-saga/internal/idempotency"
	"github.com/bookingmicro/booking-saga/internal/observability"
	"github.com/bookingmicro/booking-saga/internal/rateLimit"
)

func SetupBookingRouter(h *BookingHandlers, logger observability.Logger, rl *rateLimit.RateLimiter, idemp *idempotency.Idempotency) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(MetricsMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(TracingMiddleware)
	r.Use(UserIDMiddleware)
	r.Use(RateLimitMiddleware(rl))
	r.Use(IdempotencyMiddleware(idemp))

	r.Post("/v1/bookings", h.CreateBooking)
	r.Get("/v1/bookings", h.ListBookings)
	r.Get("/v1/bookings/{id}", h.GetBooking)
	r.Post("/v1/bookings/{id}/cancel", h.CancelBooking)
	r.Get("/v1/rooms/available", h.AvailableRooms)
	r.Get("/v1/healthz", h.Healthz)
	r.Get("/v1/readyz", h.Readyz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}

func SetupPaymentRouter(h *PaymentHandlers, logger observability.Logger, rl *rateLimit.RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(MetricsMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(TracingMiddleware)
	r.Use(UserIDMiddleware)
	r.Use(RateLimitMiddleware(rl))

	r.Post("/v1/payments/{id}/pay", h.Pay)
	r.Get("/v1/payments/{id}", h.GetPayment)
	r.Get("/v1/bookings/{bookingID}/payment", h.GetPaymentByBooking)
	r.Get("/v1/healthz", h.Healthz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}
