package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"pulseanalytics/internal/analytics"
	"pulseanalytics/internal/infrastructure"
	api "pulseanalytics/pkg/contracts/api/v1"
)

// AnalyticsEngine is the subset of *analytics.Engine the service drives.
type AnalyticsEngine interface {
	Predict(ctx context.Context, batch []float64) analytics.PredictionResult
	DetectAnomalies(ctx context.Context, batch []float64) analytics.AnomalyResult
	Snapshot() analytics.Snapshot
}

// AnalyticsService adapts the engine to the HTTP contracts and records
// telemetry for every call.
type AnalyticsService struct {
	engine  AnalyticsEngine
	calc    analytics.StatisticsCalculator
	tracer  trace.Tracer
	metrics *infrastructure.BusinessMetrics
	now     func() time.Time
	logger  *slog.Logger
}

// NewAnalyticsService creates a new analytics service
func NewAnalyticsService(engine AnalyticsEngine, logger *slog.Logger) *AnalyticsService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalyticsService{
		engine: engine,
		calc:   analytics.NewStatisticsCalculator(),
		tracer: otel.Tracer(infrastructure.MeterName),
		now:    time.Now,
		logger: infrastructure.WithComponent(logger, "analytics_service"),
	}
}

// SetMetrics enables metric recording. Without it the service only traces.
func (s *AnalyticsService) SetMetrics(metrics *infrastructure.BusinessMetrics) {
	s.metrics = metrics
}

// Predict forecasts the next value after data.
func (s *AnalyticsService) Predict(ctx context.Context, data []float64) api.PredictResponse {
	ctx, span := s.tracer.Start(ctx, "analytics.predict",
		trace.WithAttributes(attribute.Int("analytics.batch_size", len(data))))
	defer span.End()

	start := time.Now()
	result := s.engine.Predict(ctx, data)

	failure := failureKind(result.Failure)
	infrastructure.RecordInference(ctx, s.metrics, "predict", string(result.ModelUsed), failure, time.Since(start))
	span.SetAttributes(
		attribute.String("analytics.model_used", string(result.ModelUsed)),
		attribute.Int("analytics.data_points", result.DataPoints),
	)
	if result.Failure != nil {
		infrastructure.RecordError(ctx, result.Failure)
	}

	resp := api.PredictResponse{
		Prediction:  round2(result.Prediction),
		Confidence:  round2(result.Confidence),
		ModelUsed:   string(result.ModelUsed),
		Message:     result.Message,
		DataPoints:  result.DataPoints,
		Timestamp:   s.now().UTC(),
		FailureKind: failure,
	}
	if result.Failure != nil {
		resp.Error = result.Failure.Err.Error()
	}
	return resp
}

// DetectAnomalies flags abnormal points of data.
func (s *AnalyticsService) DetectAnomalies(ctx context.Context, data []float64) api.DetectAnomaliesResponse {
	ctx, span := s.tracer.Start(ctx, "analytics.detect_anomalies",
		trace.WithAttributes(attribute.Int("analytics.batch_size", len(data))))
	defer span.End()

	start := time.Now()
	result := s.engine.DetectAnomalies(ctx, data)

	failure := failureKind(result.Failure)
	infrastructure.RecordInference(ctx, s.metrics, "detect_anomalies", string(result.Method), failure, time.Since(start))
	if s.metrics != nil && len(result.Indices) > 0 {
		s.metrics.AnomaliesFlaggedTotal.Add(ctx, int64(len(result.Indices)),
			metric.WithAttributes(attribute.String("method", string(result.Method))))
	}
	span.SetAttributes(
		attribute.String("analytics.method", string(result.Method)),
		attribute.Int("analytics.anomaly_count", len(result.Indices)),
	)
	if result.Failure != nil {
		infrastructure.RecordError(ctx, result.Failure)
	}

	resp := api.DetectAnomaliesResponse{
		Anomalies:     nonNilInts(result.Indices),
		AnomalyValues: nonNilFloats(result.Values),
		Method:        string(result.Method),
		Threshold:     result.Threshold,
		TotalPoints:   result.TotalPoints,
		AnomalyCount:  len(result.Indices),
		DetectedBy: api.DetectedBy{
			ZScore:          result.ZScoreHits,
			IsolationForest: result.ModelHits,
		},
		Message:     result.Message,
		Timestamp:   s.now().UTC(),
		FailureKind: failure,
	}
	if result.IQR != nil {
		resp.IQRBounds = &api.IQRBounds{Lower: round2(result.IQR.Lower), Upper: round2(result.IQR.Upper)}
	}
	if result.Failure != nil {
		resp.Error = result.Failure.Err.Error()
	}
	return resp
}

// Statistics computes descriptive statistics of data. Unlike the engine
// calls it returns an error for empty or non-finite input.
func (s *AnalyticsService) Statistics(ctx context.Context, data []float64, extended bool) (api.StatisticsResponse, error) {
	ctx, span := s.tracer.Start(ctx, "analytics.statistics",
		trace.WithAttributes(
			attribute.Int("analytics.batch_size", len(data)),
			attribute.Bool("analytics.extended", extended),
		))
	defer span.End()

	start := time.Now()
	var (
		resp api.StatisticsResponse
		err  error
	)
	if extended {
		var ext analytics.ExtendedStats
		if ext, err = s.calc.ComputeExtended(data); err == nil {
			resp = statisticsResponse(ext.StatsResult)
			resp.Extended = &api.ExtendedStatistics{
				Mode:                   roundAll(ext.Mode),
				Range:                  round2(ext.Range),
				Variance:               round2(ext.Variance),
				CoefficientOfVariation: round2(ext.CoefficientOfVariation),
				Skewness:               round2(ext.Skewness),
				P10:                    round2(ext.P10),
				P90:                    round2(ext.P90),
			}
		}
	} else {
		var st analytics.StatsResult
		if st, err = s.calc.Compute(data); err == nil {
			resp = statisticsResponse(st)
		}
	}

	failure := ""
	if err != nil {
		failure = string(analytics.FailureInvalidInput)
		infrastructure.RecordError(ctx, err)
		s.logger.DebugContext(ctx, "statistics rejected input",
			slog.Int("batch_size", len(data)),
			slog.String("error", err.Error()))
	}
	infrastructure.RecordInference(ctx, s.metrics, "statistics", "", failure, time.Since(start))

	if err != nil {
		return api.StatisticsResponse{}, fmt.Errorf("statistics: %w", err)
	}
	return resp, nil
}

// Snapshot returns the current engine state
func (s *AnalyticsService) Snapshot() analytics.Snapshot {
	return s.engine.Snapshot()
}

func statisticsResponse(st analytics.StatsResult) api.StatisticsResponse {
	return api.StatisticsResponse{
		Mean:   round2(st.Mean),
		Median: round2(st.Median),
		StdDev: round2(st.StdDev),
		Min:    round2(st.Min),
		Max:    round2(st.Max),
		Q1:     round2(st.Q1),
		Q3:     round2(st.Q3),
		Count:  st.Count,
		Sum:    round2(st.Sum),
	}
}

func failureKind(f *analytics.Failure) string {
	if f == nil {
		return ""
	}
	return string(f.Kind)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func roundAll(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = round2(v)
	}
	return out
}

// nonNilInts keeps empty results encoded as [] rather than null.
func nonNilInts(v []int) []int {
	if v == nil {
		return []int{}
	}
	return v
}

func nonNilFloats(v []float64) []float64 {
	if v == nil {
		return []float64{}
	}
	return v
}
