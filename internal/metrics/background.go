package metrics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/LavishGent/pageturn/internal/types"
)

// BackgroundPublisher publishes health metrics at regular intervals
// with context-based cancellation support.
type BackgroundPublisher struct {
	publisher types.Publisher
	logger    *slog.Logger
	getHealth func() *types.PublisherHealthMetrics
	cancel    context.CancelFunc
	ctx       context.Context
	wg        sync.WaitGroup
	interval  time.Duration
}

// NewBackgroundPublisher creates a new background publisher.
// The healthFn is called on each interval to get the current health metrics.
func NewBackgroundPublisher(
	publisher types.Publisher,
	interval time.Duration,
	healthFn func() *types.PublisherHealthMetrics,
	logger *slog.Logger,
) *BackgroundPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}

	return &BackgroundPublisher{
		publisher: publisher,
		interval:  interval,
		logger:    logger.With("component", "metrics-background"),
		getHealth: healthFn,
	}
}

// Start begins the background publishing loop.
// The provided context controls the lifecycle of the background goroutine.
func (b *BackgroundPublisher) Start(ctx context.Context) {
	b.ctx, b.cancel = context.WithCancel(ctx)
	b.wg.Add(1)
	go b.run()
	b.logger.Info("Background metrics publisher started", "interval", b.interval)
}

// Stop cancels the background context and waits for shutdown.
func (b *BackgroundPublisher) Stop() {
	if b.cancel != nil {
		b.cancel()
	}
	b.wg.Wait()
	b.logger.Info("Background metrics publisher stopped")
}

func (b *BackgroundPublisher) run() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-b.ctx.Done():
			// Final publish before stopping
			b.publish()
			return
		case <-ticker.C:
			b.publish()
		}
	}
}

func (b *BackgroundPublisher) publish() {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Recovered from panic in metrics publisher", "panic", r)
		}
	}()

	if b.getHealth == nil {
		return
	}

	if m := b.getHealth(); m != nil {
		b.publisher.PublishHealthMetrics(m)
	}
}

// PublishNow triggers an immediate metrics publish.
func (b *BackgroundPublisher) PublishNow() {
	b.publish()
}

// HealthFromStats folds a cache stats snapshot and a tracker snapshot into
// the health batch sent by publishers.
func HealthFromStats(stats types.CacheStats, snap types.MetricsSnapshot, circuitOpen bool) *types.PublisherHealthMetrics {
	m := &types.PublisherHealthMetrics{
		ViewportUsedBytes:    stats.Viewport.UsedBytes,
		ViewportBudgetBytes:  stats.Viewport.BudgetBytes,
		ThumbnailUsedBytes:   stats.Thumbnail.UsedBytes,
		ThumbnailBudgetBytes: stats.Thumbnail.BudgetBytes,
		PreviewUsedBytes:     stats.Preview.UsedBytes,
		PreviewBudgetBytes:   stats.Preview.BudgetBytes,
		TotalEntries:         int64(stats.Viewport.Entries + stats.Thumbnail.Entries + stats.Preview.Entries),
		QueuedJobs:           int64(stats.Queues.LowQueued + stats.Queues.HighQueued),
		InFlightJobs:         int64(stats.Queues.InFlight),
		HitRatio:             snap.HitRatio(),
		AverageRasterMs:      snap.AvgRasterMs,
		StaleDiscarded:       stats.StaleDiscarded,
		FinalGivenUp:         int64(stats.FinalGivenUp),
		PressureLevel:        stats.Pressure,
		CircuitOpen:          circuitOpen,
	}
	if budget := stats.BudgetBytes(); budget > 0 {
		m.UsagePercentage = float64(stats.UsedBytes()) / float64(budget) * 100
	}
	return m
}
