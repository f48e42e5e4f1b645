package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ApplicationsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quickapply_applications_submitted_total",
			Help: "Total number of applications stored",
		},
		[]string{"job_role", "result"},
	)

	ApplicationsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quickapply_applications_rejected_total",
			Help: "Total number of submissions rejected before storage",
		},
		[]string{"reason"},
	)

	IntegrationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quickapply_integration_failures_total",
			Help: "Total number of failed calls to optional integrations",
		},
		[]string{"service", "kind"},
	)

	ScoringDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quickapply_scoring_duration_seconds",
			Help:    "Duration of application scoring in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		},
		[]string{"scorer"},
	)

	SubmissionsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "quickapply_submissions_in_flight",
			Help: "Number of submissions currently being processed",
		},
	)

	OTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quickapply_otp_requests_total",
			Help: "Total number of OTP operations by outcome",
		},
		[]string{"op", "outcome"},
	)
)
