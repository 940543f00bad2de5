package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulseanalytics/internal/config"
	apierrors "pulseanalytics/internal/errors"
	"pulseanalytics/internal/shared/testutil"
	api "pulseanalytics/pkg/contracts/api/v1"
	"pulseanalytics/pkg/contracts/events"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Server.Port = 0
	cfg.Server.ShutdownTimeout = 2 * time.Second
	cfg.WebSocket.BroadcastInterval = 20 * time.Millisecond
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config) (*Application, *testutil.BufferedSlogHandler) {
	t.Helper()
	logger, logs := testutil.NewTestLogger(nil)
	app, err := New(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.OTelProviders.Shutdown(context.Background()) })
	return app, logs
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestNew_LogsStartup(t *testing.T) {
	_, logs := newTestApp(t, testConfig())

	testutil.AssertLogContains(t, logs, slog.LevelInfo, "Application starting")
	testutil.AssertNoErrors(t, logs)
}

func TestRouter_Index(t *testing.T) {
	app, _ := newTestApp(t, testConfig())

	rec := do(t, app.Router, http.MethodGet, "/", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp api.IndexResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "running", resp.Status)
	assert.Contains(t, resp.Endpoints, "GET /ws")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestRouter_NotFoundListsEndpoints(t *testing.T) {
	app, _ := newTestApp(t, testConfig())

	rec := do(t, app.Router, http.MethodGet, "/nope", "")

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, apierrors.ProblemContentType, rec.Header().Get("Content-Type"))
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Endpoint not found", body["error"])
	assert.Contains(t, body["availableEndpoints"], "POST /predict")
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	app, _ := newTestApp(t, testConfig())

	rec := do(t, app.Router, http.MethodGet, "/predict", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRouter_PredictThenHealth(t *testing.T) {
	app, _ := newTestApp(t, testConfig())

	payload, err := json.Marshal(api.AnalyticsRequest{Data: testutil.LinearSeries(10, 1, 1)})
	require.NoError(t, err)

	rec := do(t, app.Router, http.MethodPost, "/predict", string(payload))
	require.Equal(t, http.StatusOK, rec.Code)
	var pred api.PredictResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pred))
	assert.Equal(t, "linear_regression", pred.ModelUsed)
	assert.InDelta(t, 11.0, pred.Prediction, 1e-9)

	rec = do(t, app.Router, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var health api.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, 10, health.DataPoints)
	assert.True(t, health.ModelTrained)

	rec = do(t, app.Router, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "analytics_predictions_total")
	assert.Contains(t, rec.Body.String(), "analytics_buffer_size")
}

func TestRouter_SeriesWithSpike(t *testing.T) {
	app, _ := newTestApp(t, testConfig())

	series := testutil.WithSpike(testutil.ConstantSeries(8, 10), 7, 60)
	payload, err := json.Marshal(api.AnalyticsRequest{Data: series})
	require.NoError(t, err)

	rec := do(t, app.Router, http.MethodPost, "/detect-anomalies", string(payload))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp api.DetectAnomaliesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []int{7}, resp.Anomalies)
}

func TestRouter_OscillatingSeriesHasNoAnomalies(t *testing.T) {
	app, _ := newTestApp(t, testConfig())

	payload, err := json.Marshal(api.AnalyticsRequest{Data: testutil.Oscillating(8, 10, 2)})
	require.NoError(t, err)

	rec := do(t, app.Router, http.MethodPost, "/detect-anomalies", string(payload))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp api.DetectAnomaliesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Anomalies)
}

func TestRouter_RateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Security.RateLimit.Requests = 2
	cfg.Security.RateLimit.Window = time.Hour
	app, logs := newTestApp(t, cfg)

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, do(t, app.Router, http.MethodGet, "/health", "").Code)
	}

	rec := do(t, app.Router, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	testutil.AssertLogContains(t, logs, slog.LevelWarn, "rate limit exceeded")
	testutil.AssertLogAttr(t, logs, "component", "rate_limiter")
	testutil.AssertLogAttr(t, logs, "client", "192.0.2.1")
}

func TestRouter_CORSPreflight(t *testing.T) {
	app, _ := newTestApp(t, testConfig())

	req := httptest.NewRequest(http.MethodOptions, "/predict", nil)
	req.Header.Set("Origin", "http://dashboard.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_WebSocketDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.WebSocket.Enabled = false
	app, _ := newTestApp(t, cfg)

	assert.Nil(t, app.WebSocketHub)
	assert.Equal(t, http.StatusNotFound, do(t, app.Router, http.MethodGet, "/ws", "").Code)

	rec := do(t, app.Router, http.MethodGet, "/health/ready", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), `"websocket"`)
}

func TestServe_LiveUpdatesAndShutdown(t *testing.T) {
	app, _ := newTestApp(t, testConfig())

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Serve(ctx, listener) }()

	base := "http://" + listener.Addr().String()
	resp, err := http.Post(base+"/predict", "application/json", strings.NewReader(`{"data":[5,6,7]}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+listener.Addr().String()+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	var got []events.MessageType
	for len(got) < 2 {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var msg events.WebSocketMessage
		require.NoError(t, conn.ReadJSON(&msg))
		got = append(got, msg.Type)
		if msg.Type == events.MessageTypeAnalyticsUpdate {
			data := msg.Data.(map[string]interface{})
			assert.Equal(t, 6.0, data["value"])
			assert.EqualValues(t, 3, data["data_points"])
		}
	}
	assert.Equal(t, events.MessageTypeConnect, got[0])
	assert.Equal(t, events.MessageTypeAnalyticsUpdate, got[1])

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("application did not shut down")
	}
}
