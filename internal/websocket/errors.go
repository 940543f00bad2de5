package websocket

import "errors"

// ErrHubStopped is returned when a message is sent after the hub exited.
var ErrHubStopped = errors.New("websocket hub stopped")
