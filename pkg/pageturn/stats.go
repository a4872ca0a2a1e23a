package pageturn

import (
	"github.com/LavishGent/pageturn/internal/types"
)

// Re-export stats types from internal/types.
type (
	// Stats is the observability snapshot returned by CacheStats.
	Stats = types.CacheStats

	// PoolStats describes one cache pool.
	PoolStats = types.PoolStats

	// QueueStats describes scheduler queue depths.
	QueueStats = types.QueueStats

	// MetricsSnapshot contains a point-in-time view of pipeline metrics.
	MetricsSnapshot = types.MetricsSnapshot
)
