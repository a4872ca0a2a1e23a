package types

import "time"

// Publisher sends metrics to an external system.
type Publisher interface {
	Gauge(name string, value float64, tags ...string)
	Incr(name string, tags ...string)
	Count(name string, value int64, tags ...string)
	Histogram(name string, value float64, tags ...string)
	Timing(name string, duration time.Duration, tags ...string)
	Event(title, text string, alertType string, tags ...string)
	PublishHealthMetrics(metrics *PublisherHealthMetrics)
	Close() error
}

// PublisherHealthMetrics is the periodic health batch derived from
// CacheStats and the metrics tracker.
//
//nolint:govet // Metrics struct - grouping by pool improves readability
type PublisherHealthMetrics struct {
	ViewportUsedBytes    int64
	ViewportBudgetBytes  int64
	ThumbnailUsedBytes   int64
	ThumbnailBudgetBytes int64
	PreviewUsedBytes     int64
	PreviewBudgetBytes   int64

	UsagePercentage float64
	TotalEntries    int64
	QueuedJobs      int64
	InFlightJobs    int64

	HitRatio        float64
	AverageRasterMs float64
	StaleDiscarded  int64
	FinalGivenUp    int64
	PressureLevel   string
	CircuitOpen     bool
}
