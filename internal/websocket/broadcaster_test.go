package websocket

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"pulseanalytics/internal/analytics"
	"pulseanalytics/internal/infrastructure"
	"pulseanalytics/pkg/contracts/events"
)

type fixedSnapshot analytics.Snapshot

func (f fixedSnapshot) Snapshot() analytics.Snapshot { return analytics.Snapshot(f) }

func TestBuildUpdate(t *testing.T) {
	t.Run("before the first prediction", func(t *testing.T) {
		update := BuildUpdate(analytics.Snapshot{Capacity: 100}, 2)

		assert.Nil(t, update.Value)
		assert.Nil(t, update.Confidence)
		assert.Empty(t, update.ModelUsed)
		assert.Equal(t, 100, update.Capacity)
		assert.Equal(t, 2, update.ActiveClients)
	})

	t.Run("with a last prediction", func(t *testing.T) {
		update := BuildUpdate(analytics.Snapshot{
			Buffered:  12,
			Capacity:  100,
			TotalSeen: 40,
			Ready:     true,
			Last: &analytics.PredictionResult{
				Prediction: 13,
				Confidence: 0.9,
				ModelUsed:  analytics.ModelLinearRegression,
			},
		}, 1)

		require.NotNil(t, update.Value)
		assert.Equal(t, 13.0, *update.Value)
		assert.Equal(t, 0.9, *update.Confidence)
		assert.Equal(t, "linear_regression", update.ModelUsed)
		assert.Equal(t, 12, update.DataPoints)
		assert.Equal(t, 40, update.TotalSeen)
		assert.True(t, update.ModelTrained)
	})
}

func TestBroadcaster_Publish(t *testing.T) {
	ctx := context.Background()
	hub, _ := startHub(t)

	engine, err := analytics.NewEngine(analytics.DefaultConfig(), testLogger())
	require.NoError(t, err)
	engine.Predict(ctx, []float64{10, 20, 30})

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(ctx) })
	metrics, err := infrastructure.CreateBusinessMetrics(provider.Meter("test"))
	require.NoError(t, err)

	b := NewBroadcaster(hub, engine, time.Second, testLogger())
	b.SetMetrics(metrics)

	sent, err := b.Publish(ctx)
	require.NoError(t, err)
	assert.False(t, sent, "nothing is sent without clients")

	client := NewClient(hub, newMockConnection(), testWSConfig(), "", testLogger())
	require.True(t, hub.Register(client))
	receive(t, client)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	sent, err = b.Publish(ctx)
	require.NoError(t, err)
	assert.True(t, sent)

	msg := receive(t, client)
	assert.Equal(t, events.MessageTypeAnalyticsUpdate, msg.Type)
	data := msg.Data.(map[string]interface{})
	assert.Equal(t, 20.0, data["value"])
	assert.Equal(t, "average", data["model_used"])
	assert.EqualValues(t, 3, data["data_points"])
	assert.EqualValues(t, 1, data["active_clients"])

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == "analytics_broadcasts_total" {
				for _, dp := range m.Data.(metricdata.Sum[int64]).DataPoints {
					total += dp.Value
				}
			}
		}
	}
	assert.EqualValues(t, 1, total)
}

func TestBroadcaster_RunTicksUntilCancelled(t *testing.T) {
	hub, _ := startHub(t)
	client := NewClient(hub, newMockConnection(), testWSConfig(), "", testLogger())
	require.True(t, hub.Register(client))
	receive(t, client)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	b := NewBroadcaster(hub, fixedSnapshot{Capacity: 100}, 10*time.Millisecond, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	msg := receive(t, client)
	assert.Equal(t, events.MessageTypeAnalyticsUpdate, msg.Type)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("broadcaster did not stop")
	}
}
