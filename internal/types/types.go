// Package types provides shared types for the pageturn render pipeline.
// This package breaks import cycles between pkg/pageturn and the internal packages.
package types

// RenderQuality is one discrete fidelity tier. Values are ordered from the
// cheapest placeholder to the final render, so ordinary comparison operators
// express "better than" and "worse than".
type RenderQuality int

const (
	QualityUltraLowPreview RenderQuality = iota + 1
	QualityLowThumbnail
	QualityLowScroll
	QualityHighFinal
)

// AllQualities lists every tier from lowest to highest.
var AllQualities = []RenderQuality{
	QualityUltraLowPreview,
	QualityLowThumbnail,
	QualityLowScroll,
	QualityHighFinal,
}

func (q RenderQuality) String() string {
	switch q {
	case QualityUltraLowPreview:
		return "ultra-low-preview"
	case QualityLowThumbnail:
		return "lq-thumbnail"
	case QualityLowScroll:
		return "lq-scroll"
	case QualityHighFinal:
		return "hq-final"
	default:
		return "unknown"
	}
}

// Valid reports whether q is one of the defined tiers.
func (q RenderQuality) Valid() bool {
	return q >= QualityUltraLowPreview && q <= QualityHighFinal
}

// IsLow reports whether jobs for this tier belong to the low-quality queue class.
func (q RenderQuality) IsLow() bool {
	return q != QualityHighFinal
}

// Lower returns the next lower tier and false when q is already the lowest.
func (q RenderQuality) Lower() (RenderQuality, bool) {
	if q <= QualityUltraLowPreview || !q.Valid() {
		return q, false
	}
	return q - 1, true
}

// Higher returns the next higher tier and false when q is already the highest.
func (q RenderQuality) Higher() (RenderQuality, bool) {
	if q >= QualityHighFinal || !q.Valid() {
		return q, false
	}
	return q + 1, true
}

// FallbackOrder returns desired followed by every lower tier, highest first.
func FallbackOrder(desired RenderQuality) []RenderQuality {
	if !desired.Valid() {
		return nil
	}
	out := make([]RenderQuality, 0, int(desired))
	for q := desired; q >= QualityUltraLowPreview; q-- {
		out = append(out, q)
	}
	return out
}

// ParseQuality maps the String form back to a tier.
func ParseQuality(s string) (RenderQuality, bool) {
	for _, q := range AllQualities {
		if q.String() == s {
			return q, true
		}
	}
	return 0, false
}

// SlotKind separates viewport pages from thumbnail rail rows. It also selects
// the cache pool an artifact is charged to.
type SlotKind int

const (
	KindPage SlotKind = iota + 1
	KindThumbnail
)

func (k SlotKind) String() string {
	switch k {
	case KindPage:
		return "page"
	case KindThumbnail:
		return "thumbnail"
	default:
		return "unknown"
	}
}

// Rotation is a page rotation in degrees clockwise.
type Rotation int

const (
	Rotate0   Rotation = 0
	Rotate90  Rotation = 90
	Rotate180 Rotation = 180
	Rotate270 Rotation = 270
)

// Normalize folds any multiple of 90 into [0, 360). Other values round down to
// the previous quarter turn.
func (r Rotation) Normalize() Rotation {
	v := int(r) % 360
	if v < 0 {
		v += 360
	}
	return Rotation(v - v%90)
}

// Priority orders queued jobs. Higher values dispatch first.
type Priority int

const (
	PriorityBackground Priority = iota + 1
	PriorityThumbnail
	PriorityAdjacent
	PriorityMargin
	PriorityVisible
)

func (p Priority) String() string {
	switch p {
	case PriorityBackground:
		return "background"
	case PriorityThumbnail:
		return "thumbnail"
	case PriorityAdjacent:
		return "adjacent"
	case PriorityMargin:
		return "margin"
	case PriorityVisible:
		return "visible"
	default:
		return "unknown"
	}
}

// QualityState is the per-slot read model consumed by the viewport and
// thumbnail rail.
type QualityState int

const (
	StateEmpty QualityState = iota
	StatePlaceholderReady
	StateTargetReady
	StateUpgrading
)

func (s QualityState) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StatePlaceholderReady:
		return "placeholder-ready"
	case StateTargetReady:
		return "target-ready"
	case StateUpgrading:
		return "upgrading"
	default:
		return "unknown"
	}
}

// SourceKind describes where a DisplaySource came from.
type SourceKind int

const (
	SourceSkeleton SourceKind = iota
	SourcePreview
	SourceLowerTier
	SourceTarget
)

func (k SourceKind) String() string {
	switch k {
	case SourceSkeleton:
		return "skeleton"
	case SourcePreview:
		return "preview"
	case SourceLowerTier:
		return "lower-tier"
	case SourceTarget:
		return "target"
	default:
		return "unknown"
	}
}

// DisplaySource is what a slot should paint right now. Pixels is nil only for
// the skeleton.
type DisplaySource struct {
	Pixels  *PixelBuffer
	Kind    SourceKind
	Quality RenderQuality
}

// IsSkeleton reports whether nothing better than a placeholder marker exists.
func (d DisplaySource) IsSkeleton() bool {
	return d.Kind == SourceSkeleton
}

// InvalidateReason names the event behind a generation bump.
type InvalidateReason int

const (
	ReasonZoom InvalidateReason = iota + 1
	ReasonRotation
	ReasonDocumentSwap
	ReasonDeepJump
	ReasonScroll
)

func (r InvalidateReason) String() string {
	switch r {
	case ReasonZoom:
		return "zoom"
	case ReasonRotation:
		return "rotation"
	case ReasonDocumentSwap:
		return "document-swap"
	case ReasonDeepJump:
		return "deep-jump"
	case ReasonScroll:
		return "scroll"
	default:
		return "unknown"
	}
}

// BumpsGeneration reports whether the reason invalidates in-flight work.
// Plain scrolling only marks the context as active.
func (r InvalidateReason) BumpsGeneration() bool {
	return r != ReasonScroll
}
