package metrics

import (
	"time"

	"github.com/LavishGent/pageturn/internal/types"
)

// NoOpTracker is a no-operation metrics tracker for testing.
type NoOpTracker struct{}

// NewNoOpTracker creates a new no-op tracker.
func NewNoOpTracker() *NoOpTracker {
	return &NoOpTracker{}
}

func (t *NoOpTracker) RecordCacheHit(string, types.RenderQuality)             {}
func (t *NoOpTracker) RecordCacheMiss(string, types.RenderQuality)            {}
func (t *NoOpTracker) RecordEviction(string, int64)                           {}
func (t *NoOpTracker) RecordDispatch(types.RenderQuality, types.Priority)     {}
func (t *NoOpTracker) RecordRaster(types.RenderQuality, time.Duration, error) {}
func (t *NoOpTracker) RecordApplied(types.RenderQuality, int64)               {}
func (t *NoOpTracker) RecordCanceled(int)                                     {}
func (t *NoOpTracker) RecordStale(string)                                     {}
func (t *NoOpTracker) RecordDropped(types.RenderQuality)                      {}
func (t *NoOpTracker) RecordSuppressed(types.RenderQuality)                   {}
func (t *NoOpTracker) RecordPressureChange(string, string)                    {}

// Snapshot returns empty metrics.
func (t *NoOpTracker) Snapshot() types.MetricsSnapshot { return types.MetricsSnapshot{} }

// Reset does nothing.
func (t *NoOpTracker) Reset() {}

// NoOpPublisher is a no-operation metrics publisher for testing or when disabled.
type NoOpPublisher struct{}

// NewNoOpPublisher creates a new no-op publisher.
func NewNoOpPublisher() *NoOpPublisher {
	return &NoOpPublisher{}
}

func (p *NoOpPublisher) Gauge(name string, value float64, tags ...string)           {}
func (p *NoOpPublisher) Incr(name string, tags ...string)                           {}
func (p *NoOpPublisher) Count(name string, value int64, tags ...string)             {}
func (p *NoOpPublisher) Histogram(name string, value float64, tags ...string)       {}
func (p *NoOpPublisher) Timing(name string, duration time.Duration, tags ...string) {}
func (p *NoOpPublisher) Event(title, text, alertType string, tags ...string)        {}
func (p *NoOpPublisher) PublishHealthMetrics(*types.PublisherHealthMetrics)         {}

// Close does nothing.
func (p *NoOpPublisher) Close() error { return nil }

var _ types.MetricsRecorder = (*NoOpTracker)(nil)
var _ types.Publisher = (*NoOpPublisher)(nil)
