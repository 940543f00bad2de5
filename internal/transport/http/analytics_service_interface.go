package http

import (
	"context"

	api "pulseanalytics/pkg/contracts/api/v1"
)

// AnalyticsServiceInterface defines the analytics operations served over HTTP
type AnalyticsServiceInterface interface {
	Predict(ctx context.Context, data []float64) api.PredictResponse
	DetectAnomalies(ctx context.Context, data []float64) api.DetectAnomaliesResponse
	Statistics(ctx context.Context, data []float64, extended bool) (api.StatisticsResponse, error)
}
