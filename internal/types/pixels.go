package types

import "image"

// Size is a logical size in device independent pixels.
type Size struct {
	Width  float64
	Height float64
}

// Dims are concrete pixel dimensions handed to the rasterizer.
type Dims struct {
	Width  int
	Height int
}

// Pixels returns the pixel count.
func (d Dims) Pixels() int64 {
	return int64(d.Width) * int64(d.Height)
}

// Bytes returns the RGBA byte size of a buffer with these dimensions.
func (d Dims) Bytes() int64 {
	return d.Pixels() * 4
}

// PixelBuffer is an immutable decoded image. Consumers share it read-only; it
// stays valid after the cache drops it.
type PixelBuffer struct {
	Image   *image.RGBA
	Quality RenderQuality
}

// NewPixelBuffer wraps img. The caller must not modify img afterwards.
func NewPixelBuffer(img *image.RGBA, q RenderQuality) *PixelBuffer {
	return &PixelBuffer{Image: img, Quality: q}
}

// Dims returns the buffer dimensions.
func (p *PixelBuffer) Dims() Dims {
	if p == nil || p.Image == nil {
		return Dims{}
	}
	b := p.Image.Bounds()
	return Dims{Width: b.Dx(), Height: b.Dy()}
}

// Bytes returns the memory charged to the cache for this buffer.
func (p *PixelBuffer) Bytes() int64 {
	if p == nil || p.Image == nil {
		return 0
	}
	return int64(len(p.Image.Pix))
}
