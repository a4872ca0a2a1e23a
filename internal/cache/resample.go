package cache

import (
	"image"

	xdraw "golang.org/x/image/draw"

	"github.com/LavishGent/pageturn/internal/types"
)

// FitWithin returns the largest dimensions with the aspect ratio of d whose
// longer edge is at most maxEdge. Dimensions already inside are returned as is.
func FitWithin(d types.Dims, maxEdge int) types.Dims {
	long := max(d.Width, d.Height)
	if maxEdge <= 0 || long <= maxEdge {
		return d
	}
	f := float64(maxEdge) / float64(long)
	return types.Dims{
		Width:  max(1, int(float64(d.Width)*f+0.5)),
		Height: max(1, int(float64(d.Height)*f+0.5)),
	}
}

// Resample scales src to exactly dims. Downscales use bilinear filtering.
func Resample(src *image.RGBA, dims types.Dims) *image.RGBA {
	b := src.Bounds()
	if b.Dx() == dims.Width && b.Dy() == dims.Height {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, dims.Width, dims.Height))
	xdraw.BiLinear.Scale(dst, dst.Bounds(), src, b, xdraw.Src, nil)
	return dst
}

// DerivePreview downsamples px so its longer edge is at most maxEdge.
func DerivePreview(px *types.PixelBuffer, maxEdge int) *types.PixelBuffer {
	if px == nil || px.Image == nil {
		return nil
	}
	target := FitWithin(px.Dims(), maxEdge)
	if target == px.Dims() {
		return types.NewPixelBuffer(px.Image, types.QualityUltraLowPreview)
	}
	dst := image.NewRGBA(image.Rect(0, 0, target.Width, target.Height))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), px.Image, px.Image.Bounds(), xdraw.Src, nil)
	return types.NewPixelBuffer(dst, types.QualityUltraLowPreview)
}
