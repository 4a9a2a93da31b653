package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Counter metrics
var (
	// OTP issuance counter
	OtpIssuedCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lease_otp_issued_total",
			Help: "Total number of signing OTP codes issued",
		},
	)

	// OTP verification counter by result
	OtpVerifyCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lease_otp_verify_total",
			Help: "Total number of signing OTP verification attempts by result",
		},
		[]string{"result"}, // result can be "signed", "invalid_code", "expired", "locked", etc.
	)

	// Lease activation counter
	LeaseActivationCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lease_activation_total",
			Help: "Total number of leases promoted to active after signature quorum",
		},
	)

	// Billing evaluation counter by outcome kind
	BillingEvaluationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lease_billing_evaluation_total",
			Help: "Total number of billing-due evaluations by outcome kind",
		},
		[]string{"kind"}, // kind can be "none", "overdue", "upcoming"
	)

	// Signing error counter
	SigningErrorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lease_signing_errors_total",
			Help: "Total number of signing flow errors",
		},
		[]string{"type"}, // type can be "not_found", "invalid_request", "db_error", "mail_error", etc.
	)
)

// Histogram metrics
var (
	// Database operation duration
	DBOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lease_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"}, // operation can be "query", "insert", "update", "transaction"
	)
)

func init() {
	prometheus.MustRegister(
		OtpIssuedCounter,
		OtpVerifyCounter,
		LeaseActivationCounter,
		BillingEvaluationCounter,
		SigningErrorCounter,
		DBOperationDuration,
	)
}

// RecordSigningError increments the signing error counter for the given type
func RecordSigningError(errorType string) {
	SigningErrorCounter.WithLabelValues(errorType).Inc()
}

// TrackDBOperation returns a function that records the duration of a database
// operation when called. Intended usage: defer TrackDBOperation("query")(time.Now())
func TrackDBOperation(operation string) func(time.Time) {
	return func(start time.Time) {
		DBOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}
