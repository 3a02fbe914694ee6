package handler

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsHandler exposes collected metrics.
type MetricsHandler struct {
	handler http.Handler
}

// NewMetricsHandler creates a MetricsHandler serving gatherer in the
// Prometheus exposition format. A nil gatherer disables the endpoint.
func NewMetricsHandler(gatherer prometheus.Gatherer) *MetricsHandler {
	h := &MetricsHandler{}
	if gatherer != nil {
		h.handler = promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
	}
	return h
}

// Metrics handles GET /metrics.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.handler == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	h.handler.ServeHTTP(w, r)
}
