package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BookingsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "saga_bookings_created_total",
			Help: "Total number of bookings created",
		},
	)

	BookingsConfirmed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "saga_bookings_confirmed_total",
			Help: "Total number of bookings confirmed after payment",
		},
	)

	BookingsCancelled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "saga_bookings_cancelled_total",
			Help: "Total number of bookings cancelled",
		},
		[]string{"reason"},
	)

	RefundFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "saga_refund_failures_total",
			Help: "Total number of failed refund attempts",
		},
	)

	ConsumerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "saga_consumer_seconds",
			Help:    "Duration of message handling per routing key",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"routing_key"},
	)

	OutboxLag = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "saga_outbox_lag_seconds",
			Help: "Age of the oldest unpublished outbox record",
		},
	)

	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "saga_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "code", "method"},
	)

	RateLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "saga_rate_limit_exceeded_total",
			Help: "Total rate limit exceeded",
		},
	)
)
