package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/cesdash/cesdash/internal/source"
)

// HealthChecker defines an interface for checking service health.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// SourceStatuser reports the source controller state.
type SourceStatuser interface {
	Status() source.Status
}

// HealthHandler manages health check endpoints.
type HealthHandler struct {
	cache  HealthChecker
	source SourceStatuser
}

// NewHealthHandler creates a new HealthHandler.
// Pass nil for cache when Redis is not configured.
func NewHealthHandler(cache HealthChecker, src SourceStatuser) *HealthHandler {
	return &HealthHandler{
		cache:  cache,
		source: src,
	}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Healthz is a liveness probe endpoint.
// It returns 200 if the server is running.
//
// GET /healthz
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Readyz is a readiness probe endpoint.
// A configured Redis must answer. The source state is reported but never
// fails readiness: the demo dataset still serves reads.
//
// GET /readyz
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	healthy := true

	if h.cache != nil {
		if err := h.cache.Ping(ctx); err != nil {
			checks["redis"] = "error: " + err.Error()
			healthy = false
		} else {
			checks["redis"] = "ok"
		}
	} else {
		checks["redis"] = "not configured"
	}

	if h.source != nil {
		st := h.source.Status()
		checks["source"] = string(st.State)
		if st.Via != "" {
			checks["source"] += " (" + st.Via + ")"
		}
	} else {
		checks["source"] = "not configured"
	}

	status := "ok"
	statusCode := http.StatusOK
	if !healthy {
		status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, HealthResponse{
		Status: status,
		Checks: checks,
	})
}
