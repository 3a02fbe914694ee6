package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "cesdash"

// sourceStates lists every value SetSourceState may report.
var sourceStates = []string{"probing", "live", "fallback"}

// PrometheusRecorder exposes metrics through Prometheus collectors.
type PrometheusRecorder struct {
	upstreamRequests  *prometheus.CounterVec
	upstreamDuration  *prometheus.HistogramVec
	collectionPages   prometheus.Histogram
	collectionsCapped prometheus.Counter
	proxyForwards     *prometheus.CounterVec
	scoreWritebacks   *prometheus.CounterVec
	scoreEvents       *prometheus.CounterVec
	fallbackServed    *prometheus.CounterVec
	sourceState       *prometheus.GaugeVec
}

// NewPrometheus builds a recorder and registers its collectors on reg.
func NewPrometheus(reg prometheus.Registerer) (*PrometheusRecorder, error) {
	r := &PrometheusRecorder{
		upstreamRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_requests_total",
				Help:      "Upstream ticketing API calls, partitioned by operation and status code.",
			},
			[]string{"operation", "status"},
		),
		upstreamDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upstream_request_seconds",
				Help:      "Upstream ticketing API latency in seconds.",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"operation"},
		),
		collectionPages: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "collection_pages",
				Help:      "Pages fetched per ticket collection run.",
				Buckets:   []float64{1, 2, 5, 10, 20, 50},
			},
		),
		collectionsCapped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "collections_capped_total",
				Help:      "Ticket collection runs stopped by the page cap.",
			},
		),
		proxyForwards: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "proxy_requests_total",
				Help:      "Requests handled by the upstream proxy, partitioned by outcome.",
			},
			[]string{"outcome"},
		),
		scoreWritebacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "score_writebacks_total",
				Help:      "CES score write-backs, partitioned by outcome.",
			},
			[]string{"outcome"},
		),
		scoreEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "score_events_published_total",
				Help:      "Score update events published to the stream.",
			},
			[]string{"status"},
		),
		fallbackServed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fallback_served_total",
				Help:      "Reads served from the demo dataset after a live failure.",
			},
			[]string{"operation"},
		),
		sourceState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "source_state",
				Help:      "Current ticket source state (1 for the active state).",
			},
			[]string{"state"},
		),
	}

	collectors := []prometheus.Collector{
		r.upstreamRequests,
		r.upstreamDuration,
		r.collectionPages,
		r.collectionsCapped,
		r.proxyForwards,
		r.scoreWritebacks,
		r.scoreEvents,
		r.fallbackServed,
		r.sourceState,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}

	return r, nil
}

// ObserveUpstreamRequest records one upstream call. Status 0 means transport failure.
func (r *PrometheusRecorder) ObserveUpstreamRequest(operation string, status int, duration time.Duration) {
	label := "transport_error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	r.upstreamRequests.WithLabelValues(operation, label).Inc()
	if duration < 0 {
		duration = 0
	}
	r.upstreamDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// ObserveCollection records a paginated collection run.
func (r *PrometheusRecorder) ObserveCollection(pages int, capped bool) {
	r.collectionPages.Observe(float64(pages))
	if capped {
		r.collectionsCapped.Inc()
	}
}

// IncProxyForward increments the proxy counter for outcome.
func (r *PrometheusRecorder) IncProxyForward(outcome string) {
	r.proxyForwards.WithLabelValues(outcome).Inc()
}

// IncScoreWriteback increments the write-back counter for outcome.
func (r *PrometheusRecorder) IncScoreWriteback(outcome string) {
	r.scoreWritebacks.WithLabelValues(outcome).Inc()
}

// IncScoreEventPublished increments the event counter for status.
func (r *PrometheusRecorder) IncScoreEventPublished(status string) {
	r.scoreEvents.WithLabelValues(status).Inc()
}

// SetSourceState flags state as the active one.
func (r *PrometheusRecorder) SetSourceState(state string) {
	for _, s := range sourceStates {
		value := 0.0
		if s == state {
			value = 1
		}
		r.sourceState.WithLabelValues(s).Set(value)
	}
}

// IncFallbackServed increments the fallback counter for operation.
func (r *PrometheusRecorder) IncFallbackServed(operation string) {
	r.fallbackServed.WithLabelValues(operation).Inc()
}
