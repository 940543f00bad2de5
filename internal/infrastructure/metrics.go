package infrastructure

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// BusinessMetrics holds all application-specific metrics
type BusinessMetrics struct {
	// HTTP metrics
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
	HTTPActiveRequests  metric.Int64UpDownCounter

	// Analytics metrics
	PredictionsTotal        metric.Int64Counter
	AnomalyDetectionsTotal  metric.Int64Counter
	AnomaliesFlaggedTotal   metric.Int64Counter
	StatisticsRequestsTotal metric.Int64Counter
	InferenceDuration       metric.Float64Histogram
	EngineFailuresTotal     metric.Int64Counter

	// Live update metrics
	BroadcastsTotal metric.Int64Counter
}

// CreateBusinessMetrics creates application-specific metrics
func CreateBusinessMetrics(meter metric.Meter) (*BusinessMetrics, error) {
	m := &BusinessMetrics{}
	var err error

	if m.HTTPRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	); err != nil {
		return nil, err
	}

	if m.HTTPRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if m.HTTPActiveRequests, err = meter.Int64UpDownCounter(
		"http_active_requests",
		metric.WithDescription("Number of active HTTP requests"),
	); err != nil {
		return nil, err
	}

	if m.PredictionsTotal, err = meter.Int64Counter(
		"analytics_predictions_total",
		metric.WithDescription("Predictions served, by model used"),
	); err != nil {
		return nil, err
	}

	if m.AnomalyDetectionsTotal, err = meter.Int64Counter(
		"analytics_anomaly_detections_total",
		metric.WithDescription("Anomaly detection calls, by method"),
	); err != nil {
		return nil, err
	}

	if m.AnomaliesFlaggedTotal, err = meter.Int64Counter(
		"analytics_anomalies_flagged_total",
		metric.WithDescription("Samples flagged as anomalous"),
	); err != nil {
		return nil, err
	}

	if m.StatisticsRequestsTotal, err = meter.Int64Counter(
		"analytics_statistics_requests_total",
		metric.WithDescription("Descriptive statistics computations"),
	); err != nil {
		return nil, err
	}

	if m.InferenceDuration, err = meter.Float64Histogram(
		"analytics_inference_duration_seconds",
		metric.WithDescription("Engine call duration including retraining"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if m.EngineFailuresTotal, err = meter.Int64Counter(
		"analytics_engine_failures_total",
		metric.WithDescription("Engine calls that took the error fallback, by failure kind"),
	); err != nil {
		return nil, err
	}

	if m.BroadcastsTotal, err = meter.Int64Counter(
		"analytics_broadcasts_total",
		metric.WithDescription("Live analytics updates pushed to websocket clients"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

// EngineState is sampled by the observable gauges on every collection.
type EngineState func() (buffered int, ready bool)

// RegisterEngineGauges exposes buffer size and model readiness as
// observable gauges.
func RegisterEngineGauges(meter metric.Meter, state EngineState) error {
	bufferSize, err := meter.Int64ObservableGauge(
		"analytics_buffer_size",
		metric.WithDescription("Samples currently held in the rolling buffer"),
	)
	if err != nil {
		return err
	}

	modelReady, err := meter.Int64ObservableGauge(
		"analytics_model_ready",
		metric.WithDescription("1 once the readiness latch has tripped"),
	)
	if err != nil {
		return err
	}

	_, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		buffered, ready := state()
		o.ObserveInt64(bufferSize, int64(buffered))
		var readyValue int64
		if ready {
			readyValue = 1
		}
		o.ObserveInt64(modelReady, readyValue)
		return nil
	}, bufferSize, modelReady)
	return err
}

// RecordInference records one engine call. label is the model_used or
// method reported by the engine; failure is empty on success.
func RecordInference(ctx context.Context, metrics *BusinessMetrics, operation, label, failure string, duration time.Duration) {
	if metrics == nil {
		return
	}

	opAttr := attribute.String("operation", operation)
	metrics.InferenceDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(opAttr))

	switch operation {
	case "predict":
		metrics.PredictionsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("model_used", label)))
	case "detect_anomalies":
		metrics.AnomalyDetectionsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("method", label)))
	case "statistics":
		metrics.StatisticsRequestsTotal.Add(ctx, 1)
	}

	if failure != "" {
		metrics.EngineFailuresTotal.Add(ctx, 1, metric.WithAttributes(opAttr, attribute.String("failure_kind", failure)))
	}
}
