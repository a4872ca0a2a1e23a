package types

import (
	"fmt"
	"math"
)

// DocumentID is a stable fingerprint of an open document.
type DocumentID string

// ContextID identifies one document+view pair. Each context owns its own
// generation counter.
type ContextID string

// SlotKey identifies a display position independent of resolution.
type SlotKey struct {
	Document DocumentID
	Unit     int
	Kind     SlotKind
}

func (s SlotKey) String() string {
	return fmt.Sprintf("%s/%s/%d", s.Document, s.Kind, s.Unit)
}

// CacheKey identifies one renderable artifact. It is a comparable value:
// two keys are equal only when every field is equal.
type CacheKey struct {
	Document   DocumentID
	Unit       int
	Kind       SlotKind
	ZoomBucket int
	Rotation   Rotation
	Quality    RenderQuality
	DPRBucket  int
}

// NewCacheKey builds a key, bucketing zoom and device pixel ratio so that
// near-identical requests share one cache line.
func NewCacheKey(doc DocumentID, unit int, kind SlotKind, zoom float64, rot Rotation, q RenderQuality, dpr float64) CacheKey {
	return CacheKey{
		Document:   doc,
		Unit:       unit,
		Kind:       kind,
		ZoomBucket: ZoomBucket(zoom),
		Rotation:   rot.Normalize(),
		Quality:    q,
		DPRBucket:  DPRBucket(dpr),
	}
}

// WithQuality returns a copy of k at another tier.
func (k CacheKey) WithQuality(q RenderQuality) CacheKey {
	k.Quality = q
	return k
}

// Slot returns the resolution-independent identity of k.
func (k CacheKey) Slot() SlotKey {
	return SlotKey{Document: k.Document, Unit: k.Unit, Kind: k.Kind}
}

// View returns the tier-independent identity of k: the slot at one zoom,
// rotation and device pixel ratio.
func (k CacheKey) View() ViewKey {
	return ViewKey{
		Document:   k.Document,
		Unit:       k.Unit,
		Kind:       k.Kind,
		ZoomBucket: k.ZoomBucket,
		Rotation:   k.Rotation,
		DPRBucket:  k.DPRBucket,
	}
}

func (k CacheKey) String() string {
	return fmt.Sprintf("%s/%s/%d@z%d/r%d/%s/d%d",
		k.Document, k.Kind, k.Unit, k.ZoomBucket, k.Rotation, k.Quality, k.DPRBucket)
}

// ViewKey groups the tiers of one slot rendered for the same view
// parameters. Tiers of one ViewKey can replace each other on screen; tiers
// of different ViewKeys cannot.
type ViewKey struct {
	Document   DocumentID
	Unit       int
	Kind       SlotKind
	ZoomBucket int
	Rotation   Rotation
	DPRBucket  int
}

// WithQuality returns the cache key of v at tier q.
func (v ViewKey) WithQuality(q RenderQuality) CacheKey {
	return CacheKey{
		Document:   v.Document,
		Unit:       v.Unit,
		Kind:       v.Kind,
		ZoomBucket: v.ZoomBucket,
		Rotation:   v.Rotation,
		Quality:    q,
		DPRBucket:  v.DPRBucket,
	}
}

// Slot returns the resolution-independent identity of v.
func (v ViewKey) Slot() SlotKey {
	return SlotKey{Document: v.Document, Unit: v.Unit, Kind: v.Kind}
}

// ZoomBucket quantizes a zoom factor to hundredths.
func ZoomBucket(zoom float64) int {
	if zoom <= 0 || math.IsNaN(zoom) || math.IsInf(zoom, 0) {
		return 100
	}
	return int(math.Round(zoom * 100))
}

// DPRBucket quantizes a device pixel ratio to hundredths.
func DPRBucket(dpr float64) int {
	if dpr <= 0 || math.IsNaN(dpr) || math.IsInf(dpr, 0) {
		return 100
	}
	return int(math.Round(dpr * 100))
}

// Slot is a consumer request for one display position at the current view
// parameters of its context.
type Slot struct {
	Context  ContextID
	Unit     int
	Kind     SlotKind
	Size     Size
	Zoom     float64
	Rotation Rotation
	DPR      float64
}

// Key returns the cache key for s at tier q within document doc.
func (s Slot) Key(doc DocumentID, q RenderQuality) CacheKey {
	return NewCacheKey(doc, s.Unit, s.Kind, s.Zoom, s.Rotation, q, s.DPR)
}

// LogicalSize returns the on-screen size of s: Size scaled by Zoom.
func (s Slot) LogicalSize() Size {
	z := s.Zoom
	if z <= 0 || math.IsNaN(z) || math.IsInf(z, 0) {
		z = 1
	}
	return Size{Width: s.Size.Width * z, Height: s.Size.Height * z}
}

// SlotKey returns the resolution-independent identity of s within doc.
func (s Slot) SlotKey(doc DocumentID) SlotKey {
	return SlotKey{Document: doc, Unit: s.Unit, Kind: s.Kind}
}

// ViewKey returns the view identity of s within doc.
func (s Slot) ViewKey(doc DocumentID) ViewKey {
	return s.Key(doc, QualityHighFinal).View()
}
