package pageturn

import (
	"github.com/LavishGent/pageturn/internal/types"
)

type (
	// RenderQuality is one ordered fidelity tier.
	RenderQuality = types.RenderQuality
	// Priority orders queued jobs; higher values dispatch first.
	Priority = types.Priority
	// SlotKind separates viewport pages from thumbnail rail rows.
	SlotKind = types.SlotKind
	// Rotation is a page rotation in degrees clockwise.
	Rotation = types.Rotation
	// QualityState is the per-slot read model.
	QualityState = types.QualityState
	// SourceKind describes where a DisplaySource came from.
	SourceKind = types.SourceKind
	// InvalidateReason names the event behind a generation bump.
	InvalidateReason = types.InvalidateReason

	// DocumentID identifies an open document.
	DocumentID = types.DocumentID
	// ContextID identifies one document+view pair.
	ContextID = types.ContextID
	// Slot is one display position at the current view parameters.
	Slot = types.Slot
	// SlotKey is the resolution independent identity of a slot.
	SlotKey = types.SlotKey
	// CacheKey identifies one rendered artifact.
	CacheKey = types.CacheKey
	// Size is a logical size in device independent pixels.
	Size = types.Size
	// Dims are concrete pixel dimensions.
	Dims = types.Dims
	// PixelBuffer is an immutable decoded image.
	PixelBuffer = types.PixelBuffer
	// DisplaySource is what a slot should paint right now.
	DisplaySource = types.DisplaySource

	// Rasterizer is the external rendering backend.
	Rasterizer = types.Rasterizer
	// RasterizerFunc adapts a function to Rasterizer.
	RasterizerFunc = types.RasterizerFunc
	// Notifier is told when a slot gained a new tier.
	Notifier = types.Notifier
	// Logger provides logging operations.
	Logger = types.Logger
	// MetricsRecorder provides operations for recording pipeline metrics.
	MetricsRecorder = types.MetricsRecorder
	// Publisher sends metrics to an external system.
	Publisher = types.Publisher
	// PublisherHealthMetrics is the batch sent by a publisher on each interval.
	PublisherHealthMetrics = types.PublisherHealthMetrics
)

const (
	QualityUltraLowPreview = types.QualityUltraLowPreview
	QualityLowThumbnail    = types.QualityLowThumbnail
	QualityLowScroll       = types.QualityLowScroll
	QualityHighFinal       = types.QualityHighFinal
)

const (
	KindPage      = types.KindPage
	KindThumbnail = types.KindThumbnail
)

const (
	Rotate0   = types.Rotate0
	Rotate90  = types.Rotate90
	Rotate180 = types.Rotate180
	Rotate270 = types.Rotate270
)

const (
	PriorityBackground = types.PriorityBackground
	PriorityThumbnail  = types.PriorityThumbnail
	PriorityAdjacent   = types.PriorityAdjacent
	PriorityMargin     = types.PriorityMargin
	PriorityVisible    = types.PriorityVisible
)

const (
	StateEmpty            = types.StateEmpty
	StatePlaceholderReady = types.StatePlaceholderReady
	StateTargetReady      = types.StateTargetReady
	StateUpgrading        = types.StateUpgrading
)

const (
	SourceSkeleton  = types.SourceSkeleton
	SourcePreview   = types.SourcePreview
	SourceLowerTier = types.SourceLowerTier
	SourceTarget    = types.SourceTarget
)

const (
	ReasonZoom         = types.ReasonZoom
	ReasonRotation     = types.ReasonRotation
	ReasonDocumentSwap = types.ReasonDocumentSwap
	ReasonDeepJump     = types.ReasonDeepJump
	ReasonScroll       = types.ReasonScroll
)
