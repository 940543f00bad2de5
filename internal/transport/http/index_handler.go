package http

import (
	"net/http"
	"time"

	"github.com/go-chi/render"

	"pulseanalytics/pkg/contracts"
	api "pulseanalytics/pkg/contracts/api/v1"
)

// Endpoints lists the routes reported by GET / and by the 404 handler.
var Endpoints = []string{
	"GET /",
	"GET /health",
	"GET /health/ready",
	"GET /health/live",
	"POST /predict",
	"POST /detect-anomalies",
	"POST /statistics",
	"GET /metrics",
	"GET /ws",
}

// IndexHandler serves the service index at GET /
type IndexHandler struct {
	version   string
	endpoints []string
}

// NewIndexHandler creates a new index handler
func NewIndexHandler(version string, endpoints []string) *IndexHandler {
	return &IndexHandler{version: version, endpoints: endpoints}
}

// ServeHTTP handles GET /
func (h *IndexHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, api.IndexResponse{
		Service:   contracts.ServiceName,
		Version:   h.version,
		Status:    "running",
		Endpoints: h.endpoints,
		Timestamp: time.Now().UTC(),
	})
}
