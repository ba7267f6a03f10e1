package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/marmos91/imgforge/pkg/blob"
)

// HealthHandler handles health check endpoints.
//
// Health endpoints are unauthenticated and provide:
//   - Liveness probe: Is the server process running?
//   - Readiness probe: Is the blob sink reachable?
type HealthHandler struct {
	sink blob.Sink
}

// NewHealthHandler creates a new health handler.
//
// The sink may be nil, in which case readiness reports unhealthy.
func NewHealthHandler(sink blob.Sink) *HealthHandler {
	return &HealthHandler{sink: sink}
}

// Liveness handles GET /health - simple liveness probe.
//
// Returns 200 OK if the server process is running. Designed for Kubernetes
// liveness probes; it succeeds as long as the HTTP server is responsive.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthyResponse(map[string]string{
		"service": "imgforge",
	}))
}

// Readiness handles GET /health/ready - readiness probe.
//
// Returns 200 OK when the blob sink answers a ping, 503 otherwise. A
// service that cannot upload artifacts should not accept optimizations.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.sink == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("blob sink not configured"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	start := time.Now()
	if err := h.sink.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, healthyResponse(map[string]string{
		"storage": "reachable",
		"latency": time.Since(start).String(),
	}))
}
