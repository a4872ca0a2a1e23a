package types

import (
	"context"
	"image"
	"time"
)

// Rasterizer is the external rendering backend. Rasterize is synchronous and
// may be slow; it is only ever called from worker goroutines, except for the
// optional placeholder render.
type Rasterizer interface {
	Rasterize(ctx context.Context, doc DocumentID, unit int, q RenderQuality, dims Dims) (*image.RGBA, error)
}

// RasterizerFunc adapts a function to Rasterizer.
type RasterizerFunc func(ctx context.Context, doc DocumentID, unit int, q RenderQuality, dims Dims) (*image.RGBA, error)

func (f RasterizerFunc) Rasterize(ctx context.Context, doc DocumentID, unit int, q RenderQuality, dims Dims) (*image.RGBA, error) {
	return f(ctx, doc, unit, q, dims)
}

// Notifier is told when a slot gained a new tier. It runs on the control
// path and must not block.
type Notifier func(slot SlotKey, q RenderQuality)

// CacheLookup is the read side of the tiered cache used by the pure resolver.
type CacheLookup interface {
	Peek(key CacheKey) (*PixelBuffer, bool)
}

// PreviewLookup is the read side of the shared ultra-low preview store.
type PreviewLookup interface {
	Preview(slot SlotKey) (*PixelBuffer, bool)
}

type MetricsRecorder interface {
	RecordCacheHit(pool string, q RenderQuality)
	RecordCacheMiss(pool string, q RenderQuality)
	RecordEviction(pool string, size int64)
	RecordDispatch(q RenderQuality, priority Priority)
	RecordRaster(q RenderQuality, latency time.Duration, err error)
	RecordApplied(q RenderQuality, size int64)
	RecordCanceled(n int)
	RecordStale(stage string)
	RecordDropped(q RenderQuality)
	RecordSuppressed(q RenderQuality)
	RecordPressureChange(from, to string)
}

type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}
