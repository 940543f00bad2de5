package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "pulseanalytics/internal/errors"
	"pulseanalytics/internal/infrastructure"
	"pulseanalytics/internal/middleware"
	api "pulseanalytics/pkg/contracts/api/v1"
)

// AnalyticsHandler serves the prediction, anomaly detection and statistics
// endpoints
type AnalyticsHandler struct {
	service      AnalyticsServiceInterface
	validator    *middleware.RequestValidator
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(service AnalyticsServiceInterface, validator *middleware.RequestValidator, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *AnalyticsHandler {
	return &AnalyticsHandler{
		service:      service,
		validator:    validator,
		logger:       infrastructure.WithComponent(logger, "analytics_handler"),
		errorHandler: errorHandler,
	}
}

// RegisterRoutes mounts the analytics endpoints on r
func (h *AnalyticsHandler) RegisterRoutes(r chi.Router) {
	r.Post("/predict", h.Predict)
	r.Post("/detect-anomalies", h.DetectAnomalies)
	r.Post("/statistics", h.Statistics)
}

// Predict handles POST /predict. A missing or empty data array is not an
// error: the engine answers from its no-data fallback.
func (h *AnalyticsHandler) Predict(w http.ResponseWriter, r *http.Request) {
	var req api.AnalyticsRequest
	if err := h.validator.DecodeJSON(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, h.service.Predict(r.Context(), req.Data))
}

// DetectAnomalies handles POST /detect-anomalies
func (h *AnalyticsHandler) DetectAnomalies(w http.ResponseWriter, r *http.Request) {
	var req api.AnalyticsRequest
	if err := h.validator.DecodeJSON(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, h.service.DetectAnomalies(r.Context(), req.Data))
}

// Statistics handles POST /statistics[?extended=true]
func (h *AnalyticsHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	extended := false
	if raw := r.URL.Query().Get("extended"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("extended", "extended must be a boolean"))
			return
		}
		extended = v
	}

	var req api.AnalyticsRequest
	if err := h.validator.DecodeJSON(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	stats, err := h.service.Statistics(r.Context(), req.Data, extended)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, stats)
}
