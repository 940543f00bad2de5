package services

import (
	"context"
	"log/slog"
	"runtime"
	"strconv"
	"time"

	"pulseanalytics/internal/analytics"
	"pulseanalytics/internal/infrastructure"
	"pulseanalytics/pkg/contracts"
	api "pulseanalytics/pkg/contracts/api/v1"
)

// SnapshotSource reports engine state for health checks.
type SnapshotSource interface {
	Snapshot() analytics.Snapshot
}

// ClientCounter reports connected websocket clients.
type ClientCounter interface {
	ClientCount() int
}

// HealthService provides health check functionality
type HealthService struct {
	version   string
	engine    SnapshotSource
	clients   ClientCounter
	startTime time.Time
	now       func() time.Time
	logger    *slog.Logger
}

// NewHealthService creates a new health service. clients may be nil when
// live updates are disabled.
func NewHealthService(version string, engine SnapshotSource, clients ClientCounter, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("HealthService initialized", slog.String("version", version))

	return &HealthService{
		version:   version,
		engine:    engine,
		clients:   clients,
		startTime: time.Now(),
		now:       time.Now,
		logger:    infrastructure.WithComponent(logger, "health_service"),
	}
}

// HealthCheck returns overall health status. It always reports "healthy";
// a warming-up engine is signalled through model_trained.
func (hs *HealthService) HealthCheck(ctx context.Context) api.HealthResponse {
	snap := hs.engine.Snapshot()

	hs.logger.DebugContext(ctx, "health check",
		slog.Int("data_points", snap.Buffered),
		slog.Bool("model_trained", snap.Ready))

	return api.HealthResponse{
		Status:       "healthy",
		Timestamp:    hs.now().UTC(),
		DataPoints:   snap.Buffered,
		Capacity:     snap.Capacity,
		ModelTrained: snap.Ready,
		Service:      contracts.ServiceName,
		Version:      hs.version,
		Runtime:      runtime.Version(),
		Uptime:       time.Since(hs.startTime).Round(time.Second).String(),
	}
}

// ReadinessCheck reports whether the service can take traffic. The engine
// answers from its fallback ladder while warming up, so readiness does not
// wait for the models.
func (hs *HealthService) ReadinessCheck(ctx context.Context) api.ProbeResponse {
	snap := hs.engine.Snapshot()

	models := "warming_up"
	if snap.Ready {
		models = "trained"
	}
	checks := map[string]string{
		"engine": "ready",
		"models": models,
	}
	if hs.clients != nil {
		checks["websocket"] = "ready"
	}

	return api.ProbeResponse{
		Status:    "ready",
		Timestamp: hs.now().UTC(),
		Checks:    checks,
	}
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) api.ProbeResponse {
	checks := map[string]string{
		"uptime":     time.Since(hs.startTime).Round(time.Second).String(),
		"goroutines": strconv.Itoa(runtime.NumGoroutine()),
	}
	if hs.clients != nil {
		checks["websocket_clients"] = strconv.Itoa(hs.clients.ClientCount())
	}

	return api.ProbeResponse{
		Status:    "alive",
		Timestamp: hs.now().UTC(),
		Checks:    checks,
	}
}
