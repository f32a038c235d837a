package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ClientMetrics covers the API client, the image loader, the handle table
// and the resilience executor of one process.
type ClientMetrics struct {
	service string

	apiRequestsTotal   *prometheus.CounterVec
	apiRequestDuration *prometheus.HistogramVec
	imageLoadsTotal    *prometheus.CounterVec
	imageLoadDuration  *prometheus.HistogramVec
	handlesLive        prometheus.Gauge
	handlesReleased    prometheus.Counter
	staleResultsTotal  prometheus.Counter
	retriesTotal       *prometheus.CounterVec
	breakerStateTotal  *prometheus.CounterVec
	uploadStepsTotal   *prometheus.CounterVec
}

func NewClientMetrics(service string, registerer prometheus.Registerer) *ClientMetrics {
	if registerer == nil {
		registerer = prometheus.NewRegistry()
	}
	constLabels := prometheus.Labels{"service": service}

	apiRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sdm",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total document API round trips by operation and status code.",
		},
		[]string{"service", "operation", "status"},
	)
	apiRequestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sdm",
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "Document API round trip duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "operation"},
	)
	imageLoadsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sdm",
			Subsystem: "image",
			Name:      "loads_total",
			Help:      "Committed image loads by outcome.",
		},
		[]string{"service", "outcome"},
	)
	imageLoadDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sdm",
			Subsystem: "image",
			Name:      "load_duration_seconds",
			Help:      "Time from load start to committed outcome.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"service", "outcome"},
	)
	handlesLive := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   "sdm",
			Subsystem:   "image",
			Name:        "handles_live",
			Help:        "Number of materialized resource handles not yet released.",
			ConstLabels: constLabels,
		},
	)
	handlesReleased := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   "sdm",
			Subsystem:   "image",
			Name:        "handles_released_total",
			Help:        "Resource handles released by image loaders.",
			ConstLabels: constLabels,
		},
	)
	staleResultsTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   "sdm",
			Subsystem:   "image",
			Name:        "stale_results_total",
			Help:        "Load results discarded because a newer url or teardown superseded them.",
			ConstLabels: constLabels,
		},
	)
	retriesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sdm",
			Subsystem: "resilience",
			Name:      "retries_total",
			Help:      "Retry attempts by operation.",
		},
		[]string{"service", "operation"},
	)
	breakerStateTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sdm",
			Subsystem: "resilience",
			Name:      "breaker_transitions_total",
			Help:      "Circuit breaker transitions by operation and target state.",
		},
		[]string{"service", "operation", "state"},
	)
	uploadStepsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sdm",
			Subsystem: "upload",
			Name:      "steps_total",
			Help:      "Upload workflow steps entered.",
		},
		[]string{"service", "step"},
	)

	registerer.MustRegister(
		apiRequestsTotal,
		apiRequestDuration,
		imageLoadsTotal,
		imageLoadDuration,
		handlesLive,
		handlesReleased,
		staleResultsTotal,
		retriesTotal,
		breakerStateTotal,
		uploadStepsTotal,
	)

	return &ClientMetrics{
		service:            service,
		apiRequestsTotal:   apiRequestsTotal,
		apiRequestDuration: apiRequestDuration,
		imageLoadsTotal:    imageLoadsTotal,
		imageLoadDuration:  imageLoadDuration,
		handlesLive:        handlesLive,
		handlesReleased:    handlesReleased,
		staleResultsTotal:  staleResultsTotal,
		retriesTotal:       retriesTotal,
		breakerStateTotal:  breakerStateTotal,
		uploadStepsTotal:   uploadStepsTotal,
	}
}

func (m *ClientMetrics) ObserveAPIRequest(operation string, status int, duration time.Duration) {
	code := "transport_error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	m.apiRequestsTotal.WithLabelValues(m.service, operation, code).Inc()
	m.apiRequestDuration.WithLabelValues(m.service, operation).Observe(duration.Seconds())
}

func (m *ClientMetrics) ObserveImageLoad(outcome string, duration time.Duration) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.imageLoadsTotal.WithLabelValues(m.service, outcome).Inc()
	m.imageLoadDuration.WithLabelValues(m.service, outcome).Observe(duration.Seconds())
}

func (m *ClientMetrics) ObserveHandleReleased() {
	m.handlesReleased.Inc()
}

func (m *ClientMetrics) ObserveStaleResult() {
	m.staleResultsTotal.Inc()
}

func (m *ClientMetrics) SetLiveHandles(n int) {
	m.handlesLive.Set(float64(n))
}

func (m *ClientMetrics) ObserveRetry(operation string) {
	m.retriesTotal.WithLabelValues(m.service, operation).Inc()
}

func (m *ClientMetrics) ObserveBreakerState(operation, state string) {
	m.breakerStateTotal.WithLabelValues(m.service, operation, state).Inc()
}

func (m *ClientMetrics) ObserveUploadStep(step string) {
	m.uploadStepsTotal.WithLabelValues(m.service, step).Inc()
}
