// Package datadog provides a DataDog StatsD metrics publisher.
package datadog

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/LavishGent/pageturn/internal/config"
	"github.com/LavishGent/pageturn/internal/metrics"
	"github.com/LavishGent/pageturn/internal/types"

	"github.com/DataDog/datadog-go/v5/statsd"
)

// Publisher implements types.Publisher using the DataDog StatsD client.
//
//nolint:govet // Small struct - minimal alignment benefit
type Publisher struct {
	baseTags []string
	client   statsd.ClientInterface
	logger   *slog.Logger
	config   *config.DataDogConfig
}

// NewPublisher creates a new DataDog publisher from config.
// If DataDog is not enabled, returns a metrics.NoOpPublisher instead.
func NewPublisher(cfg *config.DataDogConfig, logger *slog.Logger) (types.Publisher, error) {
	if !cfg.Enabled {
		return metrics.NewNoOpPublisher(), nil
	}

	if logger == nil {
		logger = slog.Default()
	}

	addr := fmt.Sprintf("%s:%d", cfg.AgentHost, cfg.Port)

	client, err := statsd.New(addr,
		statsd.WithNamespace(cfg.Prefix+"."),
		statsd.WithTags(cfg.Tags),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create statsd client: %w", err)
	}

	logger.Info("DataDog publisher initialized",
		"address", addr,
		"prefix", cfg.Prefix,
		"tags", cfg.Tags,
	)

	return newWithClient(client, cfg, logger), nil
}

func newWithClient(client statsd.ClientInterface, cfg *config.DataDogConfig, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		client:   client,
		config:   cfg,
		baseTags: cfg.Tags,
		logger:   logger.With("component", "datadog"),
	}
}

// Gauge records a gauge metric (value at a point in time).
func (p *Publisher) Gauge(name string, value float64, tags ...string) {
	if err := p.client.Gauge(name, value, p.mergeTags(tags), 1); err != nil {
		p.logger.Debug("Failed to send gauge metric", "name", name, "error", err)
	}
}

// Incr increments a counter by 1.
func (p *Publisher) Incr(name string, tags ...string) {
	if err := p.client.Incr(name, p.mergeTags(tags), 1); err != nil {
		p.logger.Debug("Failed to send incr metric", "name", name, "error", err)
	}
}

// Count increments a counter by a specified amount.
func (p *Publisher) Count(name string, value int64, tags ...string) {
	if err := p.client.Count(name, value, p.mergeTags(tags), 1); err != nil {
		p.logger.Debug("Failed to send count metric", "name", name, "error", err)
	}
}

// Histogram records a distribution of values.
func (p *Publisher) Histogram(name string, value float64, tags ...string) {
	if err := p.client.Histogram(name, value, p.mergeTags(tags), 1); err != nil {
		p.logger.Debug("Failed to send histogram metric", "name", name, "error", err)
	}
}

// Timing records a timing metric.
func (p *Publisher) Timing(name string, duration time.Duration, tags ...string) {
	if err := p.client.Timing(name, duration, p.mergeTags(tags), 1); err != nil {
		p.logger.Debug("Failed to send timing metric", "name", name, "error", err)
	}
}

// Event sends a DataDog event.
func (p *Publisher) Event(title, text, alertType string, tags ...string) {
	event := &statsd.Event{
		Title:     title,
		Text:      text,
		AlertType: statsd.EventAlertType(alertType),
		Tags:      p.mergeTags(tags),
	}
	if err := p.client.Event(event); err != nil {
		p.logger.Debug("Failed to send event", "title", title, "error", err)
	}
}

// PublishHealthMetrics publishes a batch of health metrics. Pool gauges are
// tagged by pool so one dashboard query covers all three.
func (p *Publisher) PublishHealthMetrics(m *types.PublisherHealthMetrics) {
	if m == nil {
		return
	}

	pools := []struct {
		name         string
		used, budget int64
	}{
		{"viewport", m.ViewportUsedBytes, m.ViewportBudgetBytes},
		{"thumbnail", m.ThumbnailUsedBytes, m.ThumbnailBudgetBytes},
		{"preview", m.PreviewUsedBytes, m.PreviewBudgetBytes},
	}
	for _, pool := range pools {
		tag := metrics.PoolTag(pool.name)
		p.Gauge("cache.used_bytes", float64(pool.used), tag)
		p.Gauge("cache.budget_bytes", float64(pool.budget), tag)
	}

	p.Gauge("cache.usage_percentage", clamp(m.UsagePercentage, 0, 100))
	p.Gauge("cache.entries", float64(m.TotalEntries))
	p.Gauge("scheduler.queued", float64(m.QueuedJobs))
	p.Gauge("scheduler.in_flight", float64(m.InFlightJobs))
	p.Gauge("scheduler.stale_discarded", float64(m.StaleDiscarded))
	p.Gauge("scheduler.final_given_up", float64(m.FinalGivenUp))
	p.Gauge("performance.hit_ratio", clamp(m.HitRatio, 0, 1))
	p.Gauge("performance.average_raster_ms", max(0, m.AverageRasterMs))

	if m.PressureLevel != "" {
		p.Gauge("pressure.level", 1, metrics.PressureTag(m.PressureLevel))
	}

	open := 0.0
	if m.CircuitOpen {
		open = 1.0
	}
	p.Gauge("rasterizer.circuit_open", open)
}

// Close releases resources held by the publisher.
func (p *Publisher) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

func (p *Publisher) mergeTags(tags []string) []string {
	if len(tags) == 0 {
		return p.baseTags
	}
	if len(p.baseTags) == 0 {
		return tags
	}
	return append(p.baseTags[:len(p.baseTags):len(p.baseTags)], tags...)
}

func clamp(val, minVal, maxVal float64) float64 {
	if val < minVal {
		return minVal
	}
	if val > maxVal {
		return maxVal
	}
	return val
}

var _ types.Publisher = (*Publisher)(nil)
