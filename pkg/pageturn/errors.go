package pageturn

import (
	"github.com/LavishGent/pageturn/internal/types"
)

// RenderError carries the stage and key of a failed pipeline step.
type RenderError = types.RenderError

var (
	// ErrRaster indicates that the backend failed to rasterize.
	ErrRaster = types.ErrRaster
	// ErrOversize indicates requested dimensions beyond the safe limits.
	ErrOversize = types.ErrOversize
	// ErrStale indicates work issued under an outdated generation token.
	ErrStale = types.ErrStale
	// ErrCacheExhausted indicates an artifact larger than its pool budget.
	ErrCacheExhausted = types.ErrCacheExhausted
	// ErrClosed indicates that the pipeline has been closed.
	ErrClosed = types.ErrClosed
	// ErrSuppressed indicates a key given up on for the current generation.
	ErrSuppressed = types.ErrSuppressed
	// ErrQueueFull indicates that a job queue is at capacity.
	ErrQueueFull = types.ErrQueueFull
	// ErrUnknownContext indicates a context that was never opened or is closed.
	ErrUnknownContext = types.ErrUnknownContext
	// ErrCircuitOpen indicates that the rasterizer circuit breaker is open.
	ErrCircuitOpen = types.ErrCircuitOpen
	// ErrInvalidSlot indicates a malformed slot request.
	ErrInvalidSlot = types.ErrInvalidSlot
	// ErrShutdownTimeout indicates workers that outlived the shutdown timeout.
	ErrShutdownTimeout = types.ErrShutdownTimeout
)

// IsStale returns true if the error is a stale generation error.
func IsStale(err error) bool {
	return types.IsStale(err)
}

// IsCacheExhausted returns true if an artifact could not fit its pool.
func IsCacheExhausted(err error) bool {
	return types.IsCacheExhausted(err)
}

// IsRetryable returns true if the error can be retried.
func IsRetryable(err error) bool {
	return types.IsRetryable(err)
}
