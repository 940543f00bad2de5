// Package events contains the message contracts pushed to websocket
// clients of the analytics service.
package events

import (
	"time"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// MessageTypeAnalyticsUpdate carries the periodic engine snapshot
	MessageTypeAnalyticsUpdate MessageType = "analytics_update"

	// Connection messages
	MessageTypeConnect    MessageType = "connect"
	MessageTypeDisconnect MessageType = "disconnect"
	MessageTypeError      MessageType = "error"
)

// BaseMessage represents the base structure for all WebSocket messages
type BaseMessage struct {
	ID        string      `json:"id,omitempty"`
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
}

// WebSocketMessage represents a complete WebSocket message
type WebSocketMessage struct {
	BaseMessage
	Data interface{} `json:"data,omitempty"`
}

// AnalyticsUpdate is the payload of an analytics_update message.
type AnalyticsUpdate struct {
	// Value is the most recent prediction, nil before the first one.
	Value         *float64 `json:"value"`
	ModelUsed     string   `json:"model_used,omitempty"`
	Confidence    *float64 `json:"confidence,omitempty"`
	DataPoints    int      `json:"data_points"`
	Capacity      int      `json:"capacity"`
	TotalSeen     int      `json:"total_seen"`
	ModelTrained  bool     `json:"model_trained"`
	ActiveClients int      `json:"active_clients"`
}

// ConnectedEvent is sent once to a client after the upgrade succeeds
type ConnectedEvent struct {
	ClientID        string `json:"client_id"`
	ProtocolVersion string `json:"protocol_version"`
}

// ErrorEvent is sent when a client message cannot be handled
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
