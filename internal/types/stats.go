package types

import "time"

// PoolStats describes one cache pool.
type PoolStats struct {
	Name        string
	UsedBytes   int64
	BudgetBytes int64
	Entries     int
	Evictions   int64
	Rejected    int64
}

// UsageRatio returns used/budget, or 0 for an unbudgeted pool.
func (p PoolStats) UsageRatio() float64 {
	if p.BudgetBytes <= 0 {
		return 0
	}
	return float64(p.UsedBytes) / float64(p.BudgetBytes)
}

// QueueStats describes scheduler queue depths.
type QueueStats struct {
	LowQueued  int
	HighQueued int
	InFlight   int
	// Suppressed counts keys suppressed for their context's current token.
	Suppressed int
}

// BackendStats describes admission to the rasterizer.
type BackendStats struct {
	Circuit      string
	InFlight     int
	Capacity     int
	Admitted     int64
	Rejected     int64
	CircuitTrips int64
}

// CacheStats is the observability surface exposed to surrounding telemetry.
//
//nolint:govet // Stats struct - logical grouping prioritized for readability
type CacheStats struct {
	Timestamp time.Time
	Viewport  PoolStats
	Thumbnail PoolStats
	Preview   PoolStats
	Queues    QueueStats
	Backend   BackendStats

	JobsCanceled   int64
	JobsDropped    int64
	JobsFailed     int64
	JobsSucceeded  int64
	StaleDiscarded int64
	// FinalGivenUp counts slots whose final tier exhausted its retries in
	// the current generation. Such slots stay at their last good tier.
	FinalGivenUp int
	Pressure     string
}

// UsedBytes returns the combined usage of the viewport and thumbnail pools.
func (s CacheStats) UsedBytes() int64 {
	return s.Viewport.UsedBytes + s.Thumbnail.UsedBytes
}

// BudgetBytes returns the combined budget of the viewport and thumbnail pools.
func (s CacheStats) BudgetBytes() int64 {
	return s.Viewport.BudgetBytes + s.Thumbnail.BudgetBytes
}

// MetricsSnapshot contains a point-in-time view of pipeline counters.
//
//nolint:govet // Metrics struct with many counters - grouping by category improves readability
type MetricsSnapshot struct {
	Timestamp time.Time

	// Cache counters
	CacheHits    int64
	CacheMisses  int64
	Evictions    int64
	EvictedBytes int64

	// Job counters
	Dispatched   int64
	Succeeded    int64
	Failed       int64
	Canceled     int64
	Stale        int64
	Dropped      int64
	Suppressed   int64
	AppliedBytes int64

	// Raster latency (milliseconds)
	AvgRasterMs float64
	P50RasterMs float64
	P95RasterMs float64
	P99RasterMs float64

	PressureChanges int64
}

// HitRatio returns hits/(hits+misses).
func (s *MetricsSnapshot) HitRatio() float64 {
	total := s.CacheHits + s.CacheMisses
	if total == 0 {
		return 0
	}
	return float64(s.CacheHits) / float64(total)
}
