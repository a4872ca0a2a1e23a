package cache

import (
	"container/list"

	"github.com/LavishGent/pageturn/internal/types"
)

// Pool names used in stats, logs and metric tags.
const (
	PoolViewport  = "viewport"
	PoolThumbnail = "thumbnail"
	PoolPreview   = "preview"
)

// Entry is a decoded artifact held by a pool. Pixels is shared read-only
// with consumers and outlives the entry's presence in the index.
type Entry struct {
	Key        types.CacheKey
	Pixels     *types.PixelBuffer
	Size       int64
	LastAccess uint64
}

// Quality returns the tier of the entry.
func (e *Entry) Quality() types.RenderQuality {
	return e.Key.Quality
}

// tierCounts counts entries per quality for one view, indexed by quality.
type tierCounts [types.QualityHighFinal + 1]int

func (c tierCounts) total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}

// replacements counts the low tiers that may stand in for a final render.
func (c tierCounts) replacements() int {
	return c[types.QualityLowScroll] + c[types.QualityUltraLowPreview]
}

// protectFunc decides whether e must survive an eviction pass. counts are the
// view's tier counts after the victims already chosen in this pass. A false
// result commits e as a victim.
type protectFunc func(e *Entry, counts tierCounts) bool

// Pool is an access-ordered, byte-budgeted LRU index. It is not safe for
// concurrent use; Tiered serializes access.
type Pool struct {
	name   string
	budget int64
	used   int64
	seq    uint64

	ll     *list.List // front is most recently used
	items  map[types.CacheKey]*list.Element
	counts map[types.ViewKey]tierCounts

	evictions int64
	rejected  int64
}

func newPool(name string, budget int64) *Pool {
	return &Pool{
		name:   name,
		budget: budget,
		ll:     list.New(),
		items:  make(map[types.CacheKey]*list.Element),
		counts: make(map[types.ViewKey]tierCounts),
	}
}

func (p *Pool) get(key types.CacheKey, touch bool) (*Entry, bool) {
	el, ok := p.items[key]
	if !ok {
		return nil, false
	}
	e := el.Value.(*Entry)
	if touch {
		p.seq++
		e.LastAccess = p.seq
		p.ll.MoveToFront(el)
	}
	return e, true
}

func (p *Pool) add(key types.CacheKey, px *types.PixelBuffer) *Entry {
	p.seq++
	e := &Entry{Key: key, Pixels: px, Size: px.Bytes(), LastAccess: p.seq}
	p.items[key] = p.ll.PushFront(e)
	p.used += e.Size

	view := key.View()
	c := p.counts[view]
	c[key.Quality]++
	p.counts[view] = c
	return e
}

func (p *Pool) removeElement(el *list.Element) *Entry {
	e := el.Value.(*Entry)
	p.ll.Remove(el)
	delete(p.items, e.Key)
	p.used -= e.Size

	view := e.Key.View()
	c := p.counts[view]
	c[e.Key.Quality]--
	if c.total() == 0 {
		delete(p.counts, view)
	} else {
		p.counts[view] = c
	}
	return e
}

func (p *Pool) remove(key types.CacheKey) (*Entry, bool) {
	el, ok := p.items[key]
	if !ok {
		return nil, false
	}
	return p.removeElement(el), true
}

// plan picks least recently used victims until needed more bytes fit. It
// does not mutate the pool. ok is false when protected entries make the
// request impossible.
func (p *Pool) plan(needed int64, protect protectFunc) (victims []*list.Element, ok bool) {
	if needed > p.budget {
		return nil, false
	}

	var freed int64
	adjusted := make(map[types.ViewKey]tierCounts)

	for el := p.ll.Back(); el != nil && p.used-freed+needed > p.budget; el = el.Prev() {
		e := el.Value.(*Entry)
		view := e.Key.View()

		c, seen := adjusted[view]
		if !seen {
			c = p.counts[view]
		}
		if protect != nil && protect(e, c) {
			continue
		}

		c[e.Key.Quality]--
		adjusted[view] = c
		victims = append(victims, el)
		freed += e.Size
	}

	return victims, p.used-freed+needed <= p.budget
}

// evict removes the planned victims and returns their entries.
func (p *Pool) evict(victims []*list.Element) []*Entry {
	out := make([]*Entry, 0, len(victims))
	for _, el := range victims {
		out = append(out, p.removeElement(el))
	}
	p.evictions += int64(len(out))
	return out
}

func (p *Pool) viewCounts(view types.ViewKey) tierCounts {
	return p.counts[view]
}

func (p *Pool) clear() {
	p.ll.Init()
	p.items = make(map[types.CacheKey]*list.Element)
	p.counts = make(map[types.ViewKey]tierCounts)
	p.used = 0
}

func (p *Pool) stats() types.PoolStats {
	return types.PoolStats{
		Name:        p.name,
		UsedBytes:   p.used,
		BudgetBytes: p.budget,
		Entries:     len(p.items),
		Evictions:   p.evictions,
		Rejected:    p.rejected,
	}
}
