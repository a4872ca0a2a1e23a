// Package metrics provides render pipeline metrics collection and publishing.
package metrics

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LavishGent/pageturn/internal/types"
)

const (
	defaultLatencyBufferSize = 10000
)

type Tracker struct {
	viewportHits    atomic.Int64
	viewportMisses  atomic.Int64
	thumbnailHits   atomic.Int64
	thumbnailMisses atomic.Int64

	evictions    atomic.Int64
	evictedBytes atomic.Int64

	dispatched   atomic.Int64
	succeeded    atomic.Int64
	failed       atomic.Int64
	canceled     atomic.Int64
	stale        atomic.Int64
	dropped      atomic.Int64
	suppressed   atomic.Int64
	appliedBytes atomic.Int64

	latencyMu     sync.RWMutex
	latencyBuffer []time.Duration
	latencyIndex  int
	latencyCount  int

	pressureChanges atomic.Int64
}

func NewTracker() *Tracker {
	return &Tracker{
		latencyBuffer: make([]time.Duration, defaultLatencyBufferSize),
	}
}

func (t *Tracker) RecordCacheHit(pool string, q types.RenderQuality) {
	switch pool {
	case "thumbnail":
		t.thumbnailHits.Add(1)
	default:
		t.viewportHits.Add(1)
	}
}

func (t *Tracker) RecordCacheMiss(pool string, q types.RenderQuality) {
	switch pool {
	case "thumbnail":
		t.thumbnailMisses.Add(1)
	default:
		t.viewportMisses.Add(1)
	}
}

// RecordEviction records one evicted artifact.
func (t *Tracker) RecordEviction(pool string, size int64) {
	t.evictions.Add(1)
	t.evictedBytes.Add(size)
}

func (t *Tracker) RecordDispatch(q types.RenderQuality, priority types.Priority) {
	t.dispatched.Add(1)
}

// RecordRaster records a finished rasterization. Only successful renders
// feed the latency buffer.
func (t *Tracker) RecordRaster(q types.RenderQuality, latency time.Duration, err error) {
	if err != nil {
		t.failed.Add(1)
		return
	}
	t.recordLatency(latency)
}

func (t *Tracker) RecordApplied(q types.RenderQuality, size int64) {
	t.succeeded.Add(1)
	t.appliedBytes.Add(size)
}

func (t *Tracker) RecordCanceled(n int) {
	t.canceled.Add(int64(n))
}

func (t *Tracker) RecordStale(stage string) {
	t.stale.Add(1)
}

func (t *Tracker) RecordDropped(q types.RenderQuality) {
	t.dropped.Add(1)
}

func (t *Tracker) RecordSuppressed(q types.RenderQuality) {
	t.suppressed.Add(1)
}

// RecordPressureChange records memory pressure transitions.
func (t *Tracker) RecordPressureChange(from, to string) {
	t.pressureChanges.Add(1)
}

// recordLatency adds a latency measurement using a circular buffer.
// This is O(1) time complexity with no memory allocations.
func (t *Tracker) recordLatency(latency time.Duration) {
	t.latencyMu.Lock()
	t.latencyBuffer[t.latencyIndex] = latency
	t.latencyIndex = (t.latencyIndex + 1) % len(t.latencyBuffer)
	if t.latencyCount < len(t.latencyBuffer) {
		t.latencyCount++
	}
	t.latencyMu.Unlock()
}

// Snapshot returns current metrics snapshot.
func (t *Tracker) Snapshot() types.MetricsSnapshot {
	t.latencyMu.RLock()
	count := t.latencyCount
	latencyCopy := make([]time.Duration, count)
	if count > 0 {
		if count < len(t.latencyBuffer) {
			copy(latencyCopy, t.latencyBuffer[:count])
		} else {
			// Buffer is full - oldest data starts at latencyIndex
			firstPart := len(t.latencyBuffer) - t.latencyIndex
			copy(latencyCopy[:firstPart], t.latencyBuffer[t.latencyIndex:])
			copy(latencyCopy[firstPart:], t.latencyBuffer[:t.latencyIndex])
		}
	}
	t.latencyMu.RUnlock()

	snapshot := types.MetricsSnapshot{
		Timestamp:       time.Now(),
		CacheHits:       t.viewportHits.Load() + t.thumbnailHits.Load(),
		CacheMisses:     t.viewportMisses.Load() + t.thumbnailMisses.Load(),
		Evictions:       t.evictions.Load(),
		EvictedBytes:    t.evictedBytes.Load(),
		Dispatched:      t.dispatched.Load(),
		Succeeded:       t.succeeded.Load(),
		Failed:          t.failed.Load(),
		Canceled:        t.canceled.Load(),
		Stale:           t.stale.Load(),
		Dropped:         t.dropped.Load(),
		Suppressed:      t.suppressed.Load(),
		AppliedBytes:    t.appliedBytes.Load(),
		PressureChanges: t.pressureChanges.Load(),
	}

	if len(latencyCopy) > 0 {
		snapshot.AvgRasterMs = durationMs(avgDuration(latencyCopy))
		snapshot.P50RasterMs = durationMs(percentile(latencyCopy, 50))
		snapshot.P95RasterMs = durationMs(percentile(latencyCopy, 95))
		snapshot.P99RasterMs = durationMs(percentile(latencyCopy, 99))
	}

	return snapshot
}

// PoolHits returns the hit and miss counts of one pool.
func (t *Tracker) PoolHits(pool string) (hits, misses int64) {
	if pool == "thumbnail" {
		return t.thumbnailHits.Load(), t.thumbnailMisses.Load()
	}
	return t.viewportHits.Load(), t.viewportMisses.Load()
}

// Reset clears all metrics.
func (t *Tracker) Reset() {
	for _, c := range []*atomic.Int64{
		&t.viewportHits, &t.viewportMisses, &t.thumbnailHits, &t.thumbnailMisses,
		&t.evictions, &t.evictedBytes,
		&t.dispatched, &t.succeeded, &t.failed, &t.canceled,
		&t.stale, &t.dropped, &t.suppressed, &t.appliedBytes,
		&t.pressureChanges,
	} {
		c.Store(0)
	}

	t.latencyMu.Lock()
	t.latencyIndex = 0
	t.latencyCount = 0
	t.latencyMu.Unlock()
}

// Helper functions for latency calculations

func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func avgDuration(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range durations {
		total += d
	}
	return total / time.Duration(len(durations))
}

func percentile(durations []time.Duration, p int) time.Duration {
	if len(durations) == 0 {
		return 0
	}

	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	slices.Sort(sorted)

	idx := (len(sorted) - 1) * p / 100
	return sorted[idx]
}

// Ensure Tracker implements MetricsRecorder
var _ types.MetricsRecorder = (*Tracker)(nil)
