// Package app wires the analytics service together and manages its
// lifecycle.
//
// New builds every component from a loaded config: logger, OpenTelemetry
// providers and business metrics, the analytics engine, the services, the
// websocket hub and broadcaster, and the chi router. Nothing runs until
// Serve (or Run, which listens on the configured port and stops on SIGINT
// or SIGTERM).
//
// # Middleware order
//
// RequestID and RealIP wrap every route, including /ws. The remaining
// routes add OTel, StructuredLogger, Recoverer, SecurityHeaders, CORS,
// the per-IP rate limiter, the body size cap and the request timeout, in
// that order. Handlers that hijack the connection must stay outside that
// group because the logger wraps the ResponseWriter.
//
// # Graceful Shutdown
//
// Serve runs the HTTP server, hub and broadcaster in one errgroup. When
// the context ends the server drains in-flight requests within
// ShutdownTimeout, the hub closes every client, and telemetry is flushed.
package app
