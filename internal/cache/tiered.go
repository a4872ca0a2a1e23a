// Package cache holds decoded render artifacts: the byte-bounded viewport and
// thumbnail pools and the shared ultra-low preview store.
package cache

import (
	"container/list"
	"log/slog"
	"sync"

	"github.com/LavishGent/pageturn/internal/config"
	"github.com/LavishGent/pageturn/internal/types"
)

// Tiered is the document-specific artifact cache. Artifacts are charged to
// the viewport or thumbnail pool by their key's SlotKind. Within a pool
// eviction is strict LRU, except that
//   - every entry of the pinned slot is kept, and
//   - the HighQualityFinal entry of a visible view is kept unless a
//     LowQualityScroll or UltraLowPreview entry of the same view is cached
//     and survives the eviction pass.
type Tiered struct {
	mu        sync.Mutex
	viewport  *Pool
	thumbnail *Pool

	pinned    types.SlotKey
	hasPinned bool
	visible   map[types.ContextID]map[types.ViewKey]struct{}

	metrics types.MetricsRecorder
	logger  *slog.Logger
}

// NewTiered creates the cache with the viewport and thumbnail budgets from b.
func NewTiered(b config.Budget, metrics types.MetricsRecorder, logger *slog.Logger) *Tiered {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tiered{
		viewport:  newPool(PoolViewport, b.ViewportBytes),
		thumbnail: newPool(PoolThumbnail, b.ThumbnailBytes),
		visible:   make(map[types.ContextID]map[types.ViewKey]struct{}),
		metrics:   metrics,
		logger:    logger.With("component", "tiered-cache"),
	}
}

func (c *Tiered) pool(kind types.SlotKind) *Pool {
	if kind == types.KindThumbnail {
		return c.thumbnail
	}
	return c.viewport
}

// Get returns the entry for key and marks it most recently used. It never
// blocks on rendering and never schedules work.
func (c *Tiered) Get(key types.CacheKey) (*Entry, bool) {
	c.mu.Lock()
	p := c.pool(key.Kind)
	e, ok := p.get(key, true)
	c.mu.Unlock()

	if c.metrics != nil {
		if ok {
			c.metrics.RecordCacheHit(p.name, key.Quality)
		} else {
			c.metrics.RecordCacheMiss(p.name, key.Quality)
		}
	}
	return e, ok
}

// Peek returns the pixels for key without touching recency or counters.
func (c *Tiered) Peek(key types.CacheKey) (*types.PixelBuffer, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.pool(key.Kind).get(key, false)
	if !ok {
		return nil, false
	}
	return e.Pixels, true
}

// Contains reports whether key is cached.
func (c *Tiered) Contains(key types.CacheKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pool(key.Kind).items[key]
	return ok
}

// Put stores px under key, evicting from the key's pool until it fits. The
// evicted keys are returned. When px alone exceeds the pool budget, or
// protected entries leave no room, the entry is not admitted and the error
// matches ErrCacheExhausted; the caller may still hand px out once.
func (c *Tiered) Put(key types.CacheKey, px *types.PixelBuffer) ([]types.CacheKey, error) {
	if px == nil || px.Image == nil {
		return nil, types.NewRenderError("put", key.String(), "cache", types.ErrInvalidSlot)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pool(key.Kind)
	size := px.Bytes()

	needed := size
	old, replacing := p.get(key, true)
	if replacing {
		if old.Size == size {
			old.Pixels = px
			return nil, nil
		}
		needed -= old.Size
	}

	protect := c.protector(p)
	victims, ok := p.plan(needed, func(e *Entry, counts tierCounts) bool {
		return e.Key == key || protect(e, counts)
	})
	if !ok {
		p.rejected++
		c.logger.Debug("Artifact not admitted",
			"key", key.String(),
			"size", size,
			"pool", p.name,
			"budget", p.budget,
		)
		return nil, types.NewRenderError("put", key.String(), p.name, types.ErrCacheExhausted)
	}

	evicted := c.evictLocked(p, victims)
	if replacing {
		p.remove(key)
	}
	p.add(key, px)
	return evicted, nil
}

// ReserveOrEvict frees room for needed bytes in the pool serving kind.
func (c *Tiered) ReserveOrEvict(needed int64, kind types.SlotKind) ([]types.CacheKey, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pool(kind)
	victims, ok := p.plan(needed, c.protector(p))
	if !ok {
		return nil, types.NewRenderError("reserve", "", p.name, types.ErrCacheExhausted)
	}
	return c.evictLocked(p, victims), nil
}

func (c *Tiered) evictLocked(p *Pool, victims []*list.Element) []types.CacheKey {
	if len(victims) == 0 {
		return nil
	}
	entries := p.evict(victims)
	keys := make([]types.CacheKey, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, e.Key)
		if c.metrics != nil {
			c.metrics.RecordEviction(p.name, e.Size)
		}
	}
	return keys
}

// protector returns the protection rule for one eviction pass over p. Once
// a visible final render is given up in favor of a low replacement, the last
// replacement of that view is kept for the rest of the pass.
func (c *Tiered) protector(p *Pool) protectFunc {
	relied := make(map[types.ViewKey]struct{})
	return func(e *Entry, counts tierCounts) bool {
		if c.hasPinned && e.Key.Slot() == c.pinned {
			return true
		}
		view := e.Key.View()
		switch q := e.Key.Quality; {
		case q == types.QualityHighFinal:
			if !c.isVisibleLocked(view) {
				return false
			}
			if counts.replacements() == 0 {
				return true
			}
			relied[view] = struct{}{}
			return false
		case q == types.QualityLowScroll || q == types.QualityUltraLowPreview:
			_, ok := relied[view]
			return ok && counts.replacements() == 1
		default:
			return false
		}
	}
}

func (c *Tiered) isVisibleLocked(view types.ViewKey) bool {
	for _, set := range c.visible {
		if _, ok := set[view]; ok {
			return true
		}
	}
	return false
}

// Remove drops key from the index.
func (c *Tiered) Remove(key types.CacheKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pool(key.Kind).remove(key)
	return ok
}

// Pin exempts every entry of slot from eviction until Unpin or another Pin.
func (c *Tiered) Pin(slot types.SlotKey) {
	c.mu.Lock()
	c.pinned = slot
	c.hasPinned = true
	c.mu.Unlock()
}

// Unpin clears the pinned slot.
func (c *Tiered) Unpin() {
	c.mu.Lock()
	c.hasPinned = false
	c.pinned = types.SlotKey{}
	c.mu.Unlock()
}

// Pinned returns the pinned slot, if any.
func (c *Tiered) Pinned() (types.SlotKey, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pinned, c.hasPinned
}

// SetVisible replaces the strictly-visible views reported by owner.
func (c *Tiered) SetVisible(owner types.ContextID, views []types.ViewKey) {
	set := make(map[types.ViewKey]struct{}, len(views))
	for _, v := range views {
		set[v] = struct{}{}
	}

	c.mu.Lock()
	if len(set) == 0 {
		delete(c.visible, owner)
	} else {
		c.visible[owner] = set
	}
	c.mu.Unlock()
}

// IsVisible reports whether any owner lists view as visible.
func (c *Tiered) IsVisible(view types.ViewKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isVisibleLocked(view)
}

// TrimRedundant drops the low-quality copies of view when a HighQualityFinal
// copy of the same view is cached. Copies at other zoom, rotation or DPR
// buckets are left alone. It returns the number of entries removed.
func (c *Tiered) TrimRedundant(view types.ViewKey) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pool(view.Kind)
	if p.viewCounts(view)[types.QualityHighFinal] == 0 {
		return 0
	}

	n := 0
	for _, q := range types.AllQualities {
		if !q.IsLow() {
			continue
		}
		if _, ok := p.remove(view.WithQuality(q)); ok {
			n++
		}
	}
	return n
}

// TrimAllRedundant applies TrimRedundant to every view holding a
// HighQualityFinal copy and returns the number of entries removed.
func (c *Tiered) TrimAllRedundant() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, p := range []*Pool{c.viewport, c.thumbnail} {
		var drop []*list.Element
		for el := p.ll.Back(); el != nil; el = el.Prev() {
			e := el.Value.(*Entry)
			if e.Key.Quality.IsLow() && p.viewCounts(e.Key.View())[types.QualityHighFinal] > 0 {
				drop = append(drop, el)
			}
		}
		for _, el := range drop {
			p.removeElement(el)
		}
		n += len(drop)
	}
	return n
}

// TrimToRatio evicts unprotected LRU entries from both pools until each is at
// or below ratio of its budget. It returns the evicted keys.
func (c *Tiered) TrimToRatio(ratio float64) []types.CacheKey {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []types.CacheKey
	for _, p := range []*Pool{c.viewport, c.thumbnail} {
		target := int64(float64(p.budget) * ratio)
		if p.used <= target {
			continue
		}
		victims, _ := p.plan(p.budget-target, c.protector(p))
		out = append(out, c.evictLocked(p, victims)...)
	}
	return out
}

// InvalidateDocument drops every entry for doc and returns the count.
func (c *Tiered) InvalidateDocument(doc types.DocumentID) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, p := range []*Pool{c.viewport, c.thumbnail} {
		var drop []*list.Element
		for el := p.ll.Front(); el != nil; el = el.Next() {
			if el.Value.(*Entry).Key.Document == doc {
				drop = append(drop, el)
			}
		}
		for _, el := range drop {
			p.removeElement(el)
		}
		n += len(drop)
	}
	if c.hasPinned && c.pinned.Document == doc {
		c.hasPinned = false
	}
	return n
}

// Clear empties both pools.
func (c *Tiered) Clear() {
	c.mu.Lock()
	c.viewport.clear()
	c.thumbnail.clear()
	c.mu.Unlock()
}

// Stats returns the viewport and thumbnail pool statistics.
func (c *Tiered) Stats() (viewport, thumbnail types.PoolStats) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewport.stats(), c.thumbnail.stats()
}

// UsageRatio returns combined used/budget across both pools.
func (c *Tiered) UsageRatio() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	budget := c.viewport.budget + c.thumbnail.budget
	if budget <= 0 {
		return 0
	}
	return float64(c.viewport.used+c.thumbnail.used) / float64(budget)
}

var _ types.CacheLookup = (*Tiered)(nil)
