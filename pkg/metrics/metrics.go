package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records authentication attempts by flow (login|google|refresh)
	// and result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zacode_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"flow", "result"},
	)

	// OTPIssued counts one-time passcodes issued per purpose.
	OTPIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zacode_otp_issued_total",
			Help: "Total number of one-time passcodes issued",
		},
		[]string{"purpose"},
	)

	// EmailDeliveries counts outbound email attempts by result (success|failure).
	EmailDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zacode_email_deliveries_total",
			Help: "Total number of outbound email delivery attempts",
		},
		[]string{"result"},
	)

	// RequestsInFlight tracks requests currently being served.
	RequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "zacode_requests_in_flight",
			Help: "Number of HTTP requests currently being served",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "zacode_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
