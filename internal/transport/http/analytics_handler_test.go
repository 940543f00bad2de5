package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulseanalytics/internal/analytics"
	apierrors "pulseanalytics/internal/errors"
	"pulseanalytics/internal/middleware"
	"pulseanalytics/internal/services"
	api "pulseanalytics/pkg/contracts/api/v1"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// newAnalyticsRouter wires a real engine behind the handler.
func newAnalyticsRouter(t *testing.T) (chi.Router, *analytics.Engine) {
	t.Helper()
	logger := testLogger()

	engine, err := analytics.NewEngine(analytics.DefaultConfig(), logger)
	require.NoError(t, err)

	handler := NewAnalyticsHandler(
		services.NewAnalyticsService(engine, logger),
		middleware.NewRequestValidator(logger),
		logger,
		apierrors.NewErrorHandler(logger, false),
	)

	r := chi.NewRouter()
	r.Use(middleware.MaxBodyBytes(1 << 20))
	handler.RegisterRoutes(r)
	return r, engine
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestAnalyticsHandler_Predict(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantModel string
	}{
		{"missing data", `{}`, "fallback_no_data"},
		{"empty data", `{"data":[]}`, "fallback_no_data"},
		{"empty body", ``, "fallback_no_data"},
		{"short batch", `{"data":[10,20,30]}`, "average"},
		{"ready", `{"data":[1,2,3,4,5,6,7,8,9,10,11,12]}`, "linear_regression"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newAnalyticsRouter(t)
			rec := post(t, r, "/predict", tt.body)

			require.Equal(t, http.StatusOK, rec.Code)
			resp := decode[api.PredictResponse](t, rec)
			assert.Equal(t, tt.wantModel, resp.ModelUsed)
			assert.GreaterOrEqual(t, resp.Confidence, 0.0)
			assert.LessOrEqual(t, resp.Confidence, 1.0)
		})
	}

	t.Run("average of the batch", func(t *testing.T) {
		r, _ := newAnalyticsRouter(t)
		resp := decode[api.PredictResponse](t, post(t, r, "/predict", `{"data":[10,20,30]}`))

		assert.Equal(t, 20.0, resp.Prediction)
		assert.Equal(t, 0.6, resp.Confidence)
		assert.Equal(t, 3, resp.DataPoints)
	})

	t.Run("malformed json", func(t *testing.T) {
		r, engine := newAnalyticsRouter(t)
		rec := post(t, r, "/predict", `{"data":[1,2`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, apierrors.ProblemContentType, rec.Header().Get("Content-Type"))
		assert.Zero(t, engine.Snapshot().Buffered)
	})
}

func TestAnalyticsHandler_DetectAnomalies(t *testing.T) {
	t.Run("insufficient data", func(t *testing.T) {
		r, engine := newAnalyticsRouter(t)
		rec := post(t, r, "/detect-anomalies", `{"data":[1,2,3,4]}`)

		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[map[string]any](t, rec)
		assert.Equal(t, "insufficient_data", resp["method"])
		assert.Equal(t, []any{}, resp["anomalies"])
		assert.EqualValues(t, 4, resp["total_points"])
		assert.Zero(t, engine.Snapshot().Buffered)
	})

	t.Run("z-score outlier", func(t *testing.T) {
		r, _ := newAnalyticsRouter(t)
		rec := post(t, r, "/detect-anomalies", `{"data":[10,10,10,10,10,40]}`)

		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[api.DetectAnomaliesResponse](t, rec)
		assert.Equal(t, "z_score", resp.Method)
		assert.Equal(t, []int{5}, resp.Anomalies)
		assert.Equal(t, []float64{40}, resp.AnomalyValues)
		assert.Equal(t, 1, resp.AnomalyCount)
		assert.Equal(t, 6, resp.TotalPoints)
	})

	t.Run("combined once ready", func(t *testing.T) {
		r, _ := newAnalyticsRouter(t)
		post(t, r, "/predict", `{"data":[10,11,10,12,11,10,11,12,10,11]}`)

		rec := post(t, r, "/detect-anomalies", `{"data":[11,10,12,11,10,11,95]}`)
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[api.DetectAnomaliesResponse](t, rec)
		assert.Equal(t, "combined_zscore_isolationforest", resp.Method)
		assert.Contains(t, resp.Anomalies, 6)
		assert.IsIncreasing(t, resp.Anomalies)
	})
}

func TestAnalyticsHandler_Statistics(t *testing.T) {
	t.Run("computes rounded statistics", func(t *testing.T) {
		r, engine := newAnalyticsRouter(t)
		rec := post(t, r, "/statistics", `{"data":[10,20,30,40]}`)

		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[api.StatisticsResponse](t, rec)
		assert.Equal(t, 25.0, resp.Mean)
		assert.Equal(t, 11.18, resp.StdDev)
		assert.Equal(t, 17.5, resp.Q1)
		assert.Equal(t, 32.5, resp.Q3)
		assert.Equal(t, 4, resp.Count)
		assert.Nil(t, resp.Extended)
		assert.Zero(t, engine.Snapshot().Buffered)
	})

	t.Run("extended", func(t *testing.T) {
		r, _ := newAnalyticsRouter(t)
		rec := post(t, r, "/statistics?extended=true", `{"data":[1,2,2,3]}`)

		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[api.StatisticsResponse](t, rec)
		require.NotNil(t, resp.Extended)
		assert.Equal(t, []float64{2}, resp.Extended.Mode)
	})

	t.Run("bad extended flag", func(t *testing.T) {
		r, _ := newAnalyticsRouter(t)
		rec := post(t, r, "/statistics?extended=maybe", `{"data":[1,2,3]}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	for _, body := range []string{`{}`, `{"data":[]}`, ``} {
		t.Run("no data "+body, func(t *testing.T) {
			r, _ := newAnalyticsRouter(t)
			rec := post(t, r, "/statistics", body)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			resp := decode[map[string]any](t, rec)
			assert.Equal(t, "No data provided", resp["error"])
			assert.Equal(t, apierrors.TypeNoData, resp["type"])
		})
	}
}

func TestAnalyticsHandler_PayloadTooLarge(t *testing.T) {
	r, _ := newAnalyticsRouter(t)

	var body bytes.Buffer
	body.WriteString(`{"data":[`)
	for i := 0; i < 300_000; i++ {
		if i > 0 {
			body.WriteString(",")
		}
		body.WriteString("1.5")
	}
	body.WriteString(`]}`)

	rec := post(t, r, "/predict", body.String())
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestAnalyticsHandler_TooManyPoints(t *testing.T) {
	r, _ := newAnalyticsRouter(t)

	data := make([]float64, api.MaxDataPoints+1)
	payload, err := json.Marshal(api.AnalyticsRequest{Data: data})
	require.NoError(t, err)

	rec := post(t, r, "/detect-anomalies", string(payload))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "VALIDATION_FAILED")
}

type failingStatistics struct {
	AnalyticsServiceInterface
	err error
}

func (f failingStatistics) Statistics(context.Context, []float64, bool) (api.StatisticsResponse, error) {
	return api.StatisticsResponse{}, f.err
}

func TestAnalyticsHandler_StatisticsUnexpectedError(t *testing.T) {
	logger := testLogger()
	handler := NewAnalyticsHandler(
		failingStatistics{err: io.ErrUnexpectedEOF},
		middleware.NewRequestValidator(logger),
		logger,
		apierrors.NewErrorHandler(logger, false),
	)
	r := chi.NewRouter()
	handler.RegisterRoutes(r)

	rec := post(t, r, "/statistics", `{"data":[1]}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
