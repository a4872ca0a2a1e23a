package quality

import "github.com/LavishGent/pageturn/internal/types"

// Resolve returns the best source a slot can paint right now. It only reads:
// tiers at or above desired first (so an already cached better image is
// never traded for a worse one), then lower local tiers, then the shared
// preview, then the skeleton. base is any key for the slot; its quality is
// ignored.
func Resolve(local types.CacheLookup, preview types.PreviewLookup, base types.CacheKey, desired types.RenderQuality) types.DisplaySource {
	if !desired.Valid() {
		desired = types.QualityHighFinal
	}

	for q := types.QualityHighFinal; q >= desired; q-- {
		if px, ok := peek(local, base.WithQuality(q)); ok {
			return types.DisplaySource{Pixels: px, Kind: types.SourceTarget, Quality: q}
		}
	}

	for q := desired - 1; q >= types.QualityUltraLowPreview; q-- {
		if px, ok := peek(local, base.WithQuality(q)); ok {
			return types.DisplaySource{Pixels: px, Kind: types.SourceLowerTier, Quality: q}
		}
	}

	if preview != nil {
		if px, ok := preview.Preview(base.Slot()); ok {
			return types.DisplaySource{Pixels: px, Kind: types.SourcePreview, Quality: types.QualityUltraLowPreview}
		}
	}

	return types.DisplaySource{Kind: types.SourceSkeleton}
}

func peek(local types.CacheLookup, key types.CacheKey) (*types.PixelBuffer, bool) {
	if local == nil {
		return nil, false
	}
	return local.Peek(key)
}
