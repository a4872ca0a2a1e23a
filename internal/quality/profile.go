// Package quality maps render tiers to pixel dimensions and projects cache
// contents into the per-slot display state.
package quality

import (
	"math"

	"github.com/LavishGent/pageturn/internal/config"
	"github.com/LavishGent/pageturn/internal/types"
)

// Profile turns a logical target size and a tier into concrete pixel
// dimensions. It is immutable and safe for concurrent use.
type Profile struct {
	previewScale   float64
	thumbScale     float64
	scrollScale    float64
	previewMinEdge int
	thumbMinEdge   int
	maxEdge        int
	maxPixels      int64
}

// NewProfile creates a Profile from cfg, substituting defaults for zero values.
func NewProfile(cfg config.QualityConfig) Profile {
	p := Profile{
		previewScale:   cfg.PreviewScale,
		thumbScale:     cfg.ThumbnailScale,
		scrollScale:    cfg.ScrollScale,
		previewMinEdge: cfg.PreviewMinEdge,
		thumbMinEdge:   cfg.ThumbMinEdge,
		maxEdge:        cfg.MaxEdgePx,
		maxPixels:      cfg.MaxPixels,
	}

	if p.previewScale <= 0 {
		p.previewScale = 0.125
	}
	if p.thumbScale <= 0 {
		p.thumbScale = 0.25
	}
	if p.scrollScale <= 0 {
		p.scrollScale = 0.5
	}
	if p.maxEdge <= 0 {
		p.maxEdge = 8192
	}
	if p.maxPixels <= 0 {
		p.maxPixels = 32_000_000
	}

	return p
}

// Scale returns the multiplier applied to the logical size for q.
func (p Profile) Scale(q types.RenderQuality, dpr float64) float64 {
	switch q {
	case types.QualityUltraLowPreview:
		return p.previewScale
	case types.QualityLowThumbnail:
		return p.thumbScale
	case types.QualityLowScroll:
		return p.scrollScale
	case types.QualityHighFinal:
		if dpr <= 0 {
			dpr = 1
		}
		return dpr
	default:
		return 1
	}
}

func (p Profile) minEdge(q types.RenderQuality) int {
	switch q {
	case types.QualityUltraLowPreview:
		return p.previewMinEdge
	case types.QualityLowThumbnail:
		return p.thumbMinEdge
	default:
		return 0
	}
}

// TargetDims returns the pixel dimensions to request from the rasterizer.
// The second result reports that the request exceeded the safe limits and
// was scaled down; the clamp is applied here so the backend never decodes
// more than it will keep.
func (p Profile) TargetDims(logical types.Size, q types.RenderQuality, dpr float64) (types.Dims, bool) {
	scale := p.Scale(q, dpr)
	w := logical.Width * scale
	h := logical.Height * scale

	if edge := float64(p.minEdge(q)); edge > 0 {
		short := math.Min(w, h)
		if short > 0 && short < edge {
			up := edge / short
			w *= up
			h *= up
		}
	}

	d := types.Dims{Width: roundEdge(w), Height: roundEdge(h)}
	return p.Clamp(d)
}

// Clamp applies the edge limit first and then the area limit.
func (p Profile) Clamp(d types.Dims) (types.Dims, bool) {
	clamped := false

	if long := max(d.Width, d.Height); long > p.maxEdge {
		f := float64(p.maxEdge) / float64(long)
		d.Width = roundEdge(float64(d.Width) * f)
		d.Height = roundEdge(float64(d.Height) * f)
		clamped = true
	}

	if px := d.Pixels(); px > p.maxPixels {
		f := math.Sqrt(float64(p.maxPixels) / float64(px))
		d.Width = floorEdge(float64(d.Width) * f)
		d.Height = floorEdge(float64(d.Height) * f)
		clamped = true
	}

	return d, clamped
}

// MaxEdge returns the edge limit.
func (p Profile) MaxEdge() int { return p.maxEdge }

// MaxPixels returns the area limit.
func (p Profile) MaxPixels() int64 { return p.maxPixels }

func roundEdge(v float64) int {
	if math.IsNaN(v) || v < 1 {
		return 1
	}
	return int(math.Round(v))
}

func floorEdge(v float64) int {
	if math.IsNaN(v) || v < 1 {
		return 1
	}
	return int(math.Floor(v))
}
