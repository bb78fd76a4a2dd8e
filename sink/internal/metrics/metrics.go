package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_sink_http_requests_total",
			Help: "Sink API requests by route and response status code",
		},
		[]string{"route", "status"},
	)

	EventsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_sink_events_created_total",
			Help: "Create operations by result",
		},
		[]string{"result"},
	)

	CreateDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relay_sink_create_duration_seconds",
			Help:    "Time to store an event, including any artificial delay",
			Buckets: []float64{.001, .01, .1, .25, .5, .75, 1, 1.25, 1.5, 2},
		},
	)

	Delays = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relay_sink_artificial_delay_seconds",
			Help:    "Artificial delays applied to create requests",
			Buckets: []float64{.5, .75, 1, 1.25, 1.5},
		},
	)
)

// Observer records event service activity.
type Observer struct{}

func (Observer) Delayed(d time.Duration) {
	Delays.Observe(d.Seconds())
}

func (Observer) Created(d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	EventsCreated.WithLabelValues(result).Inc()
	CreateDuration.Observe(d.Seconds())
}
