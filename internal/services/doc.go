// Package services implements the application layer between the HTTP
// handlers and the analytics engine.
//
// # Services
//
//	- AnalyticsService: runs predictions, anomaly detection and descriptive
//	  statistics, converts engine results to the v1 API contracts and
//	  records spans and metrics for every call
//	- HealthService: health, readiness and liveness reports built from the
//	  engine snapshot
//
// # Error Handling
//
// Predict and DetectAnomalies never fail: degraded and failed engine calls
// are reported in the response through model_used / method and the
// error fields. Statistics returns the engine's input errors so handlers
// can answer 400.
//
// # Testing
//
// Services depend on small interfaces (AnalyticsEngine, SnapshotSource,
// ClientCounter) so tests can drive them with a real engine or a stub:
//
//	engine, _ := analytics.NewEngine(analytics.DefaultConfig(), logger)
//	svc := NewAnalyticsService(engine, logger)
//	resp := svc.Predict(ctx, []float64{1, 2, 3})
package services
