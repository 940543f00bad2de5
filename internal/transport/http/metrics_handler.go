package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MetricsHandler exposes the Prometheus scrape endpoint
type MetricsHandler struct {
	prometheus http.Handler
}

// NewMetricsHandler wraps the scrape handler built by the telemetry
// setup. A nil handler means metrics export is disabled.
func NewMetricsHandler(prometheus http.Handler) *MetricsHandler {
	return &MetricsHandler{prometheus: prometheus}
}

// RegisterRoutes mounts GET /metrics when export is enabled
func (h *MetricsHandler) RegisterRoutes(r chi.Router) {
	if h.prometheus == nil {
		return
	}
	r.Method(http.MethodGet, "/metrics", h.prometheus)
}
