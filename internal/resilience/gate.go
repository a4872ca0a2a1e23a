package resilience

import (
	"sync/atomic"
)

// Gate caps concurrent rasterizations. Unlike a blocking bulkhead it never
// waits: the control thread must not block, so a full gate simply defers
// the job to a later dispatch cycle.
type Gate struct {
	capacity  int
	semaphore chan struct{}

	rejectedCount atomic.Int64
	totalAdmitted atomic.Int64
}

// NewGate creates a gate admitting up to capacity concurrent holders.
func NewGate(capacity int) *Gate {
	if capacity <= 0 {
		capacity = 2
	}
	return &Gate{
		capacity:  capacity,
		semaphore: make(chan struct{}, capacity),
	}
}

// TryAcquire takes a slot if one is free.
func (g *Gate) TryAcquire() bool {
	select {
	case g.semaphore <- struct{}{}:
		g.totalAdmitted.Add(1)
		return true
	default:
		g.rejectedCount.Add(1)
		return false
	}
}

// Release returns a slot taken by TryAcquire.
func (g *Gate) Release() {
	select {
	case <-g.semaphore:
	default:
	}
}

// InFlight returns the number of held slots.
func (g *Gate) InFlight() int {
	return len(g.semaphore)
}

// Available returns the number of free slots.
func (g *Gate) Available() int {
	return g.capacity - len(g.semaphore)
}

// Stats returns gate statistics.
func (g *Gate) Stats() GateStats {
	return GateStats{
		Capacity:      g.capacity,
		InFlight:      len(g.semaphore),
		TotalAdmitted: g.totalAdmitted.Load(),
		TotalRejected: g.rejectedCount.Load(),
	}
}

// GateStats contains gate statistics.
type GateStats struct {
	Capacity      int
	InFlight      int
	TotalAdmitted int64
	TotalRejected int64
}
