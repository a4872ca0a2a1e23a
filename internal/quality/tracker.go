package quality

import "github.com/LavishGent/pageturn/internal/types"

type slotRecord struct {
	generation uint64
	applied    types.RenderQuality
	givenUp    types.RenderQuality
	pending    uint8
}

func bit(q types.RenderQuality) uint8 {
	return 1 << uint(q)
}

// Tracker is the per-slot read model: which tiers have been applied, which
// are pending and which were given up on, scoped to a generation. A record
// from an older generation is discarded the first time the slot is touched
// under a newer one.
//
// Tracker is owned by the control thread and is not safe for concurrent use.
type Tracker struct {
	slots map[types.SlotKey]*slotRecord
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{slots: make(map[types.SlotKey]*slotRecord)}
}

func (t *Tracker) record(slot types.SlotKey, gen uint64) *slotRecord {
	r, ok := t.slots[slot]
	if !ok || r.generation != gen {
		r = &slotRecord{generation: gen}
		t.slots[slot] = r
	}
	return r
}

func (t *Tracker) lookup(slot types.SlotKey, gen uint64) (*slotRecord, bool) {
	r, ok := t.slots[slot]
	if !ok || r.generation != gen {
		return nil, false
	}
	return r, true
}

// MarkPending records that q is queued or in flight for slot.
func (t *Tracker) MarkPending(slot types.SlotKey, gen uint64, q types.RenderQuality) {
	t.record(slot, gen).pending |= bit(q)
}

// ClearPending removes q from the pending set.
func (t *Tracker) ClearPending(slot types.SlotKey, gen uint64, q types.RenderQuality) {
	if r, ok := t.lookup(slot, gen); ok {
		r.pending &^= bit(q)
	}
}

// MarkApplied records that q landed in the cache for slot.
func (t *Tracker) MarkApplied(slot types.SlotKey, gen uint64, q types.RenderQuality) {
	r := t.record(slot, gen)
	r.pending &^= bit(q)
	if q > r.applied {
		r.applied = q
	}
}

// MarkGivenUp records that q exhausted its retries for this generation.
func (t *Tracker) MarkGivenUp(slot types.SlotKey, gen uint64, q types.RenderQuality) {
	r := t.record(slot, gen)
	r.pending &^= bit(q)
	if q > r.givenUp {
		r.givenUp = q
	}
}

// Applied returns the highest tier applied for slot in gen, or 0.
func (t *Tracker) Applied(slot types.SlotKey, gen uint64) types.RenderQuality {
	if r, ok := t.lookup(slot, gen); ok {
		return r.applied
	}
	return 0
}

// GivenUp reports whether q or a higher tier was abandoned for slot in gen.
func (t *Tracker) GivenUp(slot types.SlotKey, gen uint64, q types.RenderQuality) bool {
	r, ok := t.lookup(slot, gen)
	return ok && r.givenUp >= q
}

// PendingAbove reports whether any tier strictly above q is pending.
func (t *Tracker) PendingAbove(slot types.SlotKey, gen uint64, q types.RenderQuality) bool {
	r, ok := t.lookup(slot, gen)
	if !ok {
		return false
	}
	for hq := q + 1; hq <= types.QualityHighFinal; hq++ {
		if r.pending&bit(hq) != 0 {
			return true
		}
	}
	return false
}

// State projects src into the slot's QualityState without mutating anything.
func (t *Tracker) State(slot types.SlotKey, gen uint64, desired types.RenderQuality, src types.DisplaySource) types.QualityState {
	switch {
	case src.IsSkeleton():
		return types.StateEmpty
	case src.Quality >= desired:
		return types.StateTargetReady
	case src.Quality > types.QualityUltraLowPreview && t.PendingAbove(slot, gen, src.Quality):
		return types.StateUpgrading
	default:
		return types.StatePlaceholderReady
	}
}

// ForgetDocument drops every record belonging to doc.
func (t *Tracker) ForgetDocument(doc types.DocumentID) {
	for slot := range t.slots {
		if slot.Document == doc {
			delete(t.slots, slot)
		}
	}
}

// Len returns the number of tracked slots.
func (t *Tracker) Len() int {
	return len(t.slots)
}
