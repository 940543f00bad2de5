package infrastructure

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulseanalytics/internal/config"
)

func TestInitializeOTel_Prometheus(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	providers, err := InitializeOTel(config.TelemetryConfig{
		Environment:    "test",
		TraceExporter:  "none",
		MetricExporter: "prometheus",
		SampleRatio:    1,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = providers.Shutdown(context.Background()) })

	require.NotNil(t, providers.PrometheusHTTP)
	require.NotNil(t, providers.Tracer)

	metrics, err := CreateBusinessMetrics(providers.Meter)
	require.NoError(t, err)
	require.NoError(t, RegisterEngineGauges(providers.Meter, func() (int, bool) { return 7, true }))

	ctx := context.Background()
	RecordInference(ctx, metrics, "predict", "average", "", 2*time.Millisecond)
	RecordInference(ctx, metrics, "detect_anomalies", "error_fallback", "invalid_input", time.Millisecond)

	rec := httptest.NewRecorder()
	providers.PrometheusHTTP.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "analytics_predictions_total")
	assert.Contains(t, string(body), "analytics_engine_failures_total")
	assert.Contains(t, string(body), "analytics_buffer_size")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestInitializeOTel_Disabled(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	providers, err := InitializeOTel(config.TelemetryConfig{TraceExporter: "none", MetricExporter: "none"}, logger)
	require.NoError(t, err)

	assert.Nil(t, providers.PrometheusHTTP)
	assert.NotNil(t, providers.Tracer)
	assert.NotNil(t, providers.Meter)
	assert.NoError(t, providers.Shutdown(context.Background()))
}

func TestInitializeOTel_UnknownExporter(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	_, err := InitializeOTel(config.TelemetryConfig{TraceExporter: "zipkin"}, logger)
	assert.Error(t, err)
}

func TestRecordInference_NilMetrics(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordInference(context.Background(), nil, "predict", "average", "", time.Millisecond)
	})
}
