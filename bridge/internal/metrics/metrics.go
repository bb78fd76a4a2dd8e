package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingress metrics
	IngressRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_bridge_ingress_requests_total",
			Help: "Ingress requests by response status code",
		},
		[]string{"status"},
	)

	IngressRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relay_bridge_ingress_request_duration_seconds",
			Help:    "Time to authenticate, validate and enqueue an event",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Queue metrics
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_bridge_queue_depth",
			Help: "Jobs waiting in the dispatch channel",
		},
	)

	QueueCapacity = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_bridge_queue_capacity",
			Help: "Capacity of the dispatch channel",
		},
	)

	JobsAccepted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_bridge_jobs_accepted_total",
			Help: "Jobs admitted to the delivery queue",
		},
	)

	JobsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_bridge_jobs_rejected_total",
			Help: "Jobs refused at admission",
		},
		[]string{"reason"},
	)

	JobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_bridge_jobs_completed_total",
			Help: "Jobs reaching a terminal status",
		},
		[]string{"status"},
	)

	JobsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_bridge_jobs_in_flight",
			Help: "Dispatch attempts currently running",
		},
	)

	Retries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_bridge_retries_total",
			Help: "Failed attempts scheduled for another try",
		},
	)

	// Dispatch metrics
	DispatchAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_bridge_dispatch_attempts_total",
			Help: "Dispatch attempts to the sink by outcome",
		},
		[]string{"outcome"},
	)

	DispatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relay_bridge_dispatch_duration_seconds",
			Help:    "Duration of a single dispatch attempt",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 1.5, 2, 3, 5},
		},
	)

	// Rate limiting metrics
	RateLimitWaits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_bridge_rate_limit_waits_total",
			Help: "Polls of the rate limiter that found the window full",
		},
	)

	RateLimitErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_bridge_rate_limit_errors_total",
			Help: "Rate limiter failures (treated as a full window)",
		},
	)

	// DLQ metrics
	DLQWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_bridge_dlq_writes_total",
			Help: "Dead-letter writes by result",
		},
		[]string{"result"},
	)
)
