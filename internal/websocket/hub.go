package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"pulseanalytics/internal/infrastructure"
	"pulseanalytics/pkg/contracts"
	"pulseanalytics/pkg/contracts/events"
)

// Hub maintains the set of active clients and broadcasts messages to them.
// All client bookkeeping happens on the Run goroutine; Register, Unregister
// and Broadcast return false once Run has exited.
type Hub struct {
	// Registered clients
	clients map[*Client]struct{}

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	// done is closed when Run exits
	done chan struct{}

	mu             sync.RWMutex
	clientCount    int
	totalConnected int64
	messagesSent   int64
	droppedClients int64

	now    func() time.Time
	logger *slog.Logger
}

// HubStats is a point-in-time view of hub counters
type HubStats struct {
	ActiveClients  int   `json:"active_clients"`
	TotalConnected int64 `json:"total_connected"`
	MessagesSent   int64 `json:"messages_sent"`
	DroppedClients int64 `json:"dropped_clients"`
}

// NewHub creates a new Hub. Call Run to start it.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	return &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan []byte, 16),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		now:        time.Now,
		logger:     infrastructure.WithComponent(logger, "websocket.hub"),
	}
}

// Run is the hub's main loop. It returns nil when ctx is cancelled, after
// closing every client's send channel. Run must be called at most once.
func (h *Hub) Run(ctx context.Context) error {
	h.logger.InfoContext(ctx, "Hub started")
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return nil

		case client := <-h.register:
			h.add(ctx, client)

		case client := <-h.unregister:
			h.remove(ctx, client, "unregistered")

		case message := <-h.broadcast:
			h.fanOut(ctx, message)
		}
	}
}

func (h *Hub) add(ctx context.Context, client *Client) {
	h.clients[client] = struct{}{}

	h.mu.Lock()
	h.clientCount = len(h.clients)
	h.totalConnected++
	count := h.clientCount
	h.mu.Unlock()

	h.logger.InfoContext(client.context(ctx), "Client registered",
		slog.Int("total_clients", count),
		slog.String("client_id", client.id),
		slog.String("remote_addr", client.remoteAddr))

	welcome, err := h.encode(events.MessageTypeConnect, events.ConnectedEvent{
		ClientID:        client.id,
		ProtocolVersion: contracts.ProtocolVersion,
	}, client.traceID)
	if err != nil {
		infrastructure.WithError(h.logger, err).ErrorContext(ctx, "Failed to encode connect event")
		return
	}
	h.deliver(ctx, client, welcome)
}

func (h *Hub) remove(ctx context.Context, client *Client, reason string) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)

	h.mu.Lock()
	h.clientCount = len(h.clients)
	count := h.clientCount
	h.mu.Unlock()

	h.logger.InfoContext(client.context(ctx), "Client removed",
		slog.String("client_id", client.id),
		slog.String("reason", reason),
		slog.Int("total_clients", count),
		slog.Duration("connection_duration", h.now().Sub(client.connectedAt)))
}

func (h *Hub) fanOut(ctx context.Context, message []byte) {
	for client := range h.clients {
		h.deliver(ctx, client, message)
	}
}

// deliver queues message for client without blocking. A client whose
// buffer is full is dropped.
func (h *Hub) deliver(ctx context.Context, client *Client, message []byte) {
	select {
	case client.send <- message:
		h.mu.Lock()
		h.messagesSent++
		h.mu.Unlock()
	default:
		h.mu.Lock()
		h.droppedClients++
		h.mu.Unlock()
		h.logger.WarnContext(client.context(ctx), "Client send buffer full, dropping client",
			slog.String("client_id", client.id))
		h.remove(ctx, client, "slow_consumer")
	}
}

func (h *Hub) shutdown(ctx context.Context) {
	count := len(h.clients)
	for client := range h.clients {
		delete(h.clients, client)
		close(client.send)
	}

	h.mu.Lock()
	h.clientCount = 0
	h.mu.Unlock()

	h.logger.InfoContext(ctx, "Hub shutting down", slog.Int("closed_clients", count))
}

// Register adds client to the hub. It returns false when the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes client from the hub. It is safe to call more than once.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast queues a raw message for every connected client.
func (h *Hub) Broadcast(message []byte) bool {
	select {
	case h.broadcast <- message:
		return true
	case <-h.done:
		return false
	}
}

// BroadcastMessage wraps data in a typed message envelope and broadcasts it.
func (h *Hub) BroadcastMessage(ctx context.Context, msgType events.MessageType, data interface{}) error {
	message, err := h.encode(msgType, data, infrastructure.GetTraceID(ctx))
	if err != nil {
		return err
	}
	if !h.Broadcast(message) {
		return ErrHubStopped
	}
	return nil
}

func (h *Hub) encode(msgType events.MessageType, data interface{}, traceID string) ([]byte, error) {
	msg := events.WebSocketMessage{
		BaseMessage: events.BaseMessage{
			ID:        uuid.NewString(),
			Type:      msgType,
			Timestamp: h.now().UTC(),
			TraceID:   traceID,
		},
		Data: data,
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s message: %w", msgType, err)
	}
	return payload, nil
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clientCount
}

// Stats returns the hub counters
func (h *Hub) Stats() HubStats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return HubStats{
		ActiveClients:  h.clientCount,
		TotalConnected: h.totalConnected,
		MessagesSent:   h.messagesSent,
		DroppedClients: h.droppedClients,
	}
}
