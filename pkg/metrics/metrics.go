package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts counts account lifecycle operations by outcome.
	// operation is one of signup|verify_email|resend|login|forgot_password|verify_otp|reset_password|delete_account;
	// result is success or the failing error code.
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskpad_auth_attempts_total",
			Help: "Total number of account lifecycle attempts",
		},
		[]string{"operation", "result"},
	)

	// EmailDeliveryFailures counts outbound mail that could not be sent, by kind
	// (verification|welcome|password_reset).
	EmailDeliveryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskpad_email_delivery_failures_total",
			Help: "Total number of failed email deliveries",
		},
		[]string{"kind"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taskpad_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// MaintenanceRuns counts cleanup job executions by job and result (success|failure).
	MaintenanceRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskpad_maintenance_runs_total",
			Help: "Total number of maintenance job runs",
		},
		[]string{"job", "result"},
	)

	MaintenanceDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taskpad_maintenance_duration_seconds",
			Help:    "Maintenance job duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"job"},
	)
)
