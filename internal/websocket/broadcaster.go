package websocket

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"pulseanalytics/internal/analytics"
	"pulseanalytics/internal/infrastructure"
	"pulseanalytics/pkg/contracts/events"
)

// SnapshotSource reports engine state for live updates
type SnapshotSource interface {
	Snapshot() analytics.Snapshot
}

// Broadcaster pushes an analytics_update to every client on a fixed interval
type Broadcaster struct {
	hub      *Hub
	source   SnapshotSource
	interval time.Duration
	metrics  *infrastructure.BusinessMetrics
	logger   *slog.Logger
}

const defaultBroadcastInterval = 3 * time.Second

// NewBroadcaster creates a broadcaster publishing source snapshots through
// hub. A non-positive interval falls back to three seconds.
func NewBroadcaster(hub *Hub, source SnapshotSource, interval time.Duration, logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	if interval <= 0 {
		interval = defaultBroadcastInterval
	}
	return &Broadcaster{
		hub:      hub,
		source:   source,
		interval: interval,
		logger:   infrastructure.WithComponent(logger, "websocket.broadcaster"),
	}
}

// SetMetrics enables the broadcast counter
func (b *Broadcaster) SetMetrics(metrics *infrastructure.BusinessMetrics) {
	b.metrics = metrics
}

// Run publishes until ctx is cancelled or the hub stops
func (b *Broadcaster) Run(ctx context.Context) error {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	b.logger.InfoContext(ctx, "Broadcaster started", slog.Duration("interval", b.interval))

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := b.Publish(ctx); errors.Is(err, ErrHubStopped) {
				return nil
			} else if err != nil {
				infrastructure.WithError(b.logger, err).ErrorContext(ctx, "Failed to publish analytics update")
			}
		}
	}
}

// Publish sends one update. It reports false without sending when no
// client is connected.
func (b *Broadcaster) Publish(ctx context.Context) (bool, error) {
	clients := b.hub.ClientCount()
	if clients == 0 {
		return false, nil
	}

	update := BuildUpdate(b.source.Snapshot(), clients)
	if err := b.hub.BroadcastMessage(ctx, events.MessageTypeAnalyticsUpdate, update); err != nil {
		return false, err
	}

	if b.metrics != nil {
		b.metrics.BroadcastsTotal.Add(ctx, 1)
	}
	return true, nil
}

// BuildUpdate converts an engine snapshot into the wire payload
func BuildUpdate(snap analytics.Snapshot, clients int) events.AnalyticsUpdate {
	update := events.AnalyticsUpdate{
		DataPoints:    snap.Buffered,
		Capacity:      snap.Capacity,
		TotalSeen:     snap.TotalSeen,
		ModelTrained:  snap.Ready,
		ActiveClients: clients,
	}

	if last := snap.Last; last != nil {
		value, confidence := last.Prediction, last.Confidence
		update.Value = &value
		update.Confidence = &confidence
		update.ModelUsed = string(last.ModelUsed)
	}
	return update
}
