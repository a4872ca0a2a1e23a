package metrics

import (
	"log/slog"
	"time"

	"github.com/LavishGent/pageturn/internal/types"
)

// LoggingPublisher logs metrics using slog.
type LoggingPublisher struct {
	logger   *slog.Logger
	baseTags []string
}

// NewLoggingPublisher creates a new logging publisher.
func NewLoggingPublisher(logger *slog.Logger, baseTags ...string) *LoggingPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingPublisher{
		logger:   logger.With("component", "metrics"),
		baseTags: baseTags,
	}
}

func (p *LoggingPublisher) Gauge(name string, value float64, tags ...string) {
	p.logger.Debug("gauge",
		"name", name,
		"value", value,
		"tags", p.mergeTags(tags),
	)
}

func (p *LoggingPublisher) Incr(name string, tags ...string) {
	p.logger.Debug("incr",
		"name", name,
		"tags", p.mergeTags(tags),
	)
}

func (p *LoggingPublisher) Count(name string, value int64, tags ...string) {
	p.logger.Debug("count",
		"name", name,
		"value", value,
		"tags", p.mergeTags(tags),
	)
}

func (p *LoggingPublisher) Histogram(name string, value float64, tags ...string) {
	p.logger.Debug("histogram",
		"name", name,
		"value", value,
		"tags", p.mergeTags(tags),
	)
}

func (p *LoggingPublisher) Timing(name string, duration time.Duration, tags ...string) {
	p.logger.Debug("timing",
		"name", name,
		"duration_ms", duration.Milliseconds(),
		"tags", p.mergeTags(tags),
	)
}

// Event logs an event at Info.
func (p *LoggingPublisher) Event(title, text, alertType string, tags ...string) {
	p.logger.Info("event",
		"title", title,
		"text", text,
		"alert_type", alertType,
		"tags", p.mergeTags(tags),
	)
}

// PublishHealthMetrics logs a batch of health metrics.
func (p *LoggingPublisher) PublishHealthMetrics(m *types.PublisherHealthMetrics) {
	if m == nil {
		return
	}

	p.logger.Info("health_metrics",
		"viewport_used_bytes", m.ViewportUsedBytes,
		"viewport_budget_bytes", m.ViewportBudgetBytes,
		"thumbnail_used_bytes", m.ThumbnailUsedBytes,
		"thumbnail_budget_bytes", m.ThumbnailBudgetBytes,
		"preview_used_bytes", m.PreviewUsedBytes,
		"usage_pct", m.UsagePercentage,
		"total_entries", m.TotalEntries,
		"queued_jobs", m.QueuedJobs,
		"in_flight_jobs", m.InFlightJobs,
		"hit_ratio", m.HitRatio,
		"avg_raster_ms", m.AverageRasterMs,
		"stale_discarded", m.StaleDiscarded,
		"final_given_up", m.FinalGivenUp,
		"pressure", m.PressureLevel,
		"circuit_open", m.CircuitOpen,
	)
}

// Close does nothing for logging publisher.
func (p *LoggingPublisher) Close() error {
	return nil
}

func (p *LoggingPublisher) mergeTags(tags []string) []string {
	if len(tags) == 0 {
		return p.baseTags
	}
	if len(p.baseTags) == 0 {
		return tags
	}
	return append(p.baseTags[:len(p.baseTags):len(p.baseTags)], tags...)
}

var _ types.Publisher = (*LoggingPublisher)(nil)
