package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stadium_requests_total",
			Help: "Total number of requests",
		},
		[]string{"route", "code", "method"},
	)

	BookingTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stadium_booking_transitions_total",
			Help: "Booking transitions by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	RefundAmount = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stadium_refund_amount",
			Help:    "Refund amount granted on cancellation, in whole currency units",
			Buckets: prometheus.ExponentialBuckets(100, 4, 8),
		},
		[]string{"tier"},
	)

	DBTxDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stadium_db_tx_seconds",
			Help:    "Duration of DB transactions",
			Buckets: prometheus.DefBuckets,
		},
	)

	OutboxLag = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stadium_outbox_lag_seconds",
			Help: "Age of the oldest unpublished outbox record",
		},
	)

	RabbitPublishRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stadium_rabbit_publish_retries_total",
			Help: "Total rabbit publish failures left for a later retry",
		},
	)

	RateLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stadium_rate_limit_exceeded_total",
			Help: "Total rate limit exceeded",
		},
	)

	CompletedBookings = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stadium_completion_worker_completed_total",
			Help: "Bookings completed by the completion worker",
		},
	)
)
