package types

import (
	"fmt"
	"math"
	"unicode/utf8"
)

// SlotLimits bounds the values a consumer may request.
type SlotLimits struct {
	MaxUnit    int
	MaxZoom    float64
	MaxDPR     float64
	MaxLogical float64
}

// DefaultSlotLimits returns SlotLimits with default values.
func DefaultSlotLimits() SlotLimits {
	return SlotLimits{
		MaxUnit:    1 << 20,
		MaxZoom:    64,
		MaxDPR:     8,
		MaxLogical: 1 << 16,
	}
}

// SlotValidator rejects malformed slot requests before they reach the cache
// or the scheduler.
type SlotValidator struct {
	limits SlotLimits
}

// NewSlotValidator creates a new SlotValidator.
func NewSlotValidator(limits SlotLimits) *SlotValidator {
	return &SlotValidator{limits: limits}
}

// Validate checks s and q.
func (v *SlotValidator) Validate(s Slot, q RenderQuality) error {
	if s.Context == "" {
		return fmt.Errorf("%w: empty context", ErrInvalidSlot)
	}
	if !utf8.ValidString(string(s.Context)) {
		return fmt.Errorf("%w: context contains invalid UTF-8", ErrInvalidSlot)
	}
	if !q.Valid() {
		return fmt.Errorf("%w: unknown quality %d", ErrInvalidSlot, int(q))
	}
	if s.Kind != KindPage && s.Kind != KindThumbnail {
		return fmt.Errorf("%w: unknown slot kind %d", ErrInvalidSlot, int(s.Kind))
	}
	if s.Unit < 0 || (v.limits.MaxUnit > 0 && s.Unit > v.limits.MaxUnit) {
		return fmt.Errorf("%w: unit %d out of range", ErrInvalidSlot, s.Unit)
	}

	if !positiveFinite(s.Size.Width) || !positiveFinite(s.Size.Height) {
		return fmt.Errorf("%w: logical size %vx%v", ErrInvalidSlot, s.Size.Width, s.Size.Height)
	}
	if v.limits.MaxLogical > 0 && (s.Size.Width > v.limits.MaxLogical || s.Size.Height > v.limits.MaxLogical) {
		return fmt.Errorf("%w: logical size %vx%v exceeds %v", ErrInvalidSlot, s.Size.Width, s.Size.Height, v.limits.MaxLogical)
	}

	// Zero zoom and DPR mean "unscaled"
	if s.Zoom != 0 && (!positiveFinite(s.Zoom) || (v.limits.MaxZoom > 0 && s.Zoom > v.limits.MaxZoom)) {
		return fmt.Errorf("%w: zoom %v", ErrInvalidSlot, s.Zoom)
	}
	if s.DPR != 0 && (!positiveFinite(s.DPR) || (v.limits.MaxDPR > 0 && s.DPR > v.limits.MaxDPR)) {
		return fmt.Errorf("%w: device pixel ratio %v", ErrInvalidSlot, s.DPR)
	}

	return nil
}

func positiveFinite(f float64) bool {
	return f > 0 && !math.IsNaN(f) && !math.IsInf(f, 0)
}
