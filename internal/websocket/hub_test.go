package websocket

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulseanalytics/internal/config"
	"pulseanalytics/pkg/contracts"
	"pulseanalytics/pkg/contracts/events"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func testWSConfig() config.WebSocketConfig {
	return config.WebSocketConfig{
		Enabled:           true,
		ReadBufferSize:    1024,
		WriteBufferSize:   1024,
		PingPeriod:        time.Second,
		PongWait:          2 * time.Second,
		BroadcastInterval: 20 * time.Millisecond,
	}
}

// startHub runs a hub until the test ends and returns a stop func that
// waits for Run to return.
func startHub(t *testing.T) (*Hub, func()) {
	t.Helper()
	hub := NewHub(testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.Run(ctx) }()

	stopped := false
	stop := func() {
		if stopped {
			return
		}
		stopped = true
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("hub did not stop")
		}
	}
	t.Cleanup(stop)
	return hub, stop
}

func receive(t *testing.T, client *Client) events.WebSocketMessage {
	t.Helper()
	select {
	case raw, ok := <-client.send:
		require.True(t, ok, "send channel closed")
		var msg events.WebSocketMessage
		require.NoError(t, json.Unmarshal(raw, &msg))
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message received")
		return events.WebSocketMessage{}
	}
}

func TestHub_RegisterSendsConnectEvent(t *testing.T) {
	hub, _ := startHub(t)
	client := NewClient(hub, newMockConnection(), testWSConfig(), "trace-1", testLogger())

	require.True(t, hub.Register(client))
	assert.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	msg := receive(t, client)
	assert.Equal(t, events.MessageTypeConnect, msg.Type)
	assert.Equal(t, "trace-1", msg.TraceID)
	assert.NotEmpty(t, msg.ID)

	data, ok := msg.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, client.ID(), data["client_id"])
	assert.Equal(t, contracts.ProtocolVersion, data["protocol_version"])
}

func TestHub_BroadcastReachesEveryClient(t *testing.T) {
	hub, _ := startHub(t)

	clients := []*Client{
		NewClient(hub, newMockConnection(), testWSConfig(), "", testLogger()),
		NewClient(hub, newMockConnection(), testWSConfig(), "", testLogger()),
	}
	for _, c := range clients {
		require.True(t, hub.Register(c))
		receive(t, c)
	}

	require.NoError(t, hub.BroadcastMessage(context.Background(), events.MessageTypeAnalyticsUpdate, events.AnalyticsUpdate{DataPoints: 7}))

	for _, c := range clients {
		msg := receive(t, c)
		assert.Equal(t, events.MessageTypeAnalyticsUpdate, msg.Type)
		assert.EqualValues(t, 7, msg.Data.(map[string]interface{})["data_points"])
	}
	assert.EqualValues(t, 4, hub.Stats().MessagesSent)
}

func TestHub_UnregisterIsIdempotent(t *testing.T) {
	hub, _ := startHub(t)
	client := NewClient(hub, newMockConnection(), testWSConfig(), "", testLogger())
	require.True(t, hub.Register(client))

	hub.Unregister(client)
	hub.Unregister(client)

	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
	receive(t, client)
	_, ok := <-client.send
	assert.False(t, ok)
}

func TestHub_DropsSlowClient(t *testing.T) {
	hub, _ := startHub(t)
	client := NewClient(hub, newMockConnection(), testWSConfig(), "", testLogger())
	require.True(t, hub.Register(client))

	// The connect event already holds one slot.
	for i := 0; i < sendBufferSize; i++ {
		require.True(t, hub.Broadcast([]byte(`{}`)))
	}

	assert.Eventually(t, func() bool { return hub.Stats().DroppedClients == 1 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, hub.ClientCount())
}

func TestHub_StopClosesClientsAndRejectsNewWork(t *testing.T) {
	hub, stop := startHub(t)
	client := NewClient(hub, newMockConnection(), testWSConfig(), "", testLogger())
	require.True(t, hub.Register(client))
	receive(t, client)

	stop()

	_, ok := <-client.send
	assert.False(t, ok)
	assert.Zero(t, hub.ClientCount())

	late := NewClient(hub, newMockConnection(), testWSConfig(), "", testLogger())
	assert.False(t, hub.Register(late))
	assert.False(t, hub.Broadcast([]byte(`{}`)))
	assert.ErrorIs(t, hub.BroadcastMessage(context.Background(), events.MessageTypeError, nil), ErrHubStopped)
	hub.Unregister(client)
}

func TestClient_PumpsStopWithConnection(t *testing.T) {
	hub, _ := startHub(t)
	conn := newMockConnection()
	client := NewClient(hub, conn, testWSConfig(), "", testLogger())
	require.True(t, hub.Register(client))

	readDone := make(chan struct{})
	writeDone := make(chan struct{})
	go func() { client.ReadPump(); close(readDone) }()
	go func() { client.WritePump(); close(writeDone) }()

	conn.incoming <- []byte(`{"type":"heartbeat"}`)
	assert.Eventually(t, func() bool {
		conn.mu.Lock()
		defer conn.mu.Unlock()
		return len(conn.written) >= 1
	}, time.Second, 5*time.Millisecond, "connect event should be written")

	conn.Close()

	for _, done := range []chan struct{}{readDone, writeDone} {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("pump did not stop")
		}
	}
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
	assert.EqualValues(t, maxMessageSize, conn.readLim)
}

func TestNewClient_ClampsPingPeriod(t *testing.T) {
	cfg := testWSConfig()
	cfg.PingPeriod = 5 * time.Second
	cfg.PongWait = time.Second

	client := NewClient(NewHub(testLogger()), newMockConnection(), cfg, "", testLogger())

	assert.Equal(t, time.Second, client.pongWait)
	assert.Equal(t, 900*time.Millisecond, client.pingPeriod)
}
