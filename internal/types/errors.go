package types

import (
	"errors"
	"fmt"
)

var (
	ErrRaster          = errors.New("render: rasterization failed")
	ErrOversize        = errors.New("render: requested dimensions exceed safe limits")
	ErrStale           = errors.New("render: generation token is stale")
	ErrCacheExhausted  = errors.New("render: artifact exceeds pool budget")
	ErrClosed          = errors.New("render: pipeline closed")
	ErrSuppressed      = errors.New("render: key suppressed until next generation")
	ErrQueueFull       = errors.New("render: queue full")
	ErrUnknownContext  = errors.New("render: unknown context")
	ErrGateFull        = errors.New("render: in-flight limit reached")
	ErrCircuitOpen     = errors.New("render: rasterizer circuit open")
	ErrInvalidSlot     = errors.New("render: invalid slot")
	ErrShutdownTimeout = errors.New("render: shutdown timeout waiting for workers")
)

// RenderError carries the stage and key of a failed pipeline step.
type RenderError struct {
	Op    string
	Key   string
	Stage string
	Err   error
}

func (e *RenderError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("render %s in %s [%s]: %v", e.Op, e.Stage, e.Key, e.Err)
	}
	return fmt.Sprintf("render %s in %s: %v", e.Op, e.Stage, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

func NewRenderError(op, key, stage string, err error) *RenderError {
	return &RenderError{
		Op:    op,
		Key:   key,
		Stage: stage,
		Err:   err,
	}
}

// RasterFailure wraps a backend error so it matches ErrRaster while keeping
// the original cause reachable through errors.Is and errors.As.
func RasterFailure(key CacheKey, cause error) error {
	if cause == nil {
		cause = ErrRaster
	}
	return NewRenderError("rasterize", key.String(), "worker", fmt.Errorf("%w: %w", ErrRaster, cause))
}

func IsStale(err error) bool {
	return errors.Is(err, ErrStale)
}

func IsCacheExhausted(err error) bool {
	return errors.Is(err, ErrCacheExhausted)
}

func IsRaster(err error) bool {
	return errors.Is(err, ErrRaster)
}

// IsRetryable reports whether the scheduler should back off and try again.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Stale work is discarded, never retried
	if IsStale(err) {
		return false
	}

	if errors.Is(err, ErrClosed) || errors.Is(err, ErrSuppressed) {
		return false
	}

	if errors.Is(err, ErrInvalidSlot) || errors.Is(err, ErrUnknownContext) {
		return false
	}

	// Backend failures and admission refusals are transient
	return true
}
