// Package websocket pushes live analytics updates to browser clients.
//
// A Hub owns the client set and fans messages out from a single goroutine.
// Handler upgrades /ws requests and starts a read and a write pump per
// client. Broadcaster publishes an analytics_update built from the engine
// snapshot on a fixed interval while at least one client is connected.
package websocket
