package cache

import (
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LavishGent/pageturn/internal/config"
	"github.com/LavishGent/pageturn/internal/types"
)

// 10x10 RGBA = 400 bytes per artifact.
const artifactBytes = 400

func testBudget(viewportArtifacts int) config.Budget {
	return config.Budget{
		ViewportBytes:  int64(viewportArtifacts * artifactBytes),
		ThumbnailBytes: int64(2 * artifactBytes),
	}
}

func pixels(q types.RenderQuality) *types.PixelBuffer {
	return types.NewPixelBuffer(image.NewRGBA(image.Rect(0, 0, 10, 10)), q)
}

func pageKey(unit int, q types.RenderQuality) types.CacheKey {
	return types.NewCacheKey("doc", unit, types.KindPage, 1, 0, q, 1)
}

func mustPut(t *testing.T, c *Tiered, key types.CacheKey) []types.CacheKey {
	t.Helper()
	evicted, err := c.Put(key, pixels(key.Quality))
	require.NoError(t, err)
	return evicted
}

func TestTieredGetPut(t *testing.T) {
	t.Run("miss then hit", func(t *testing.T) {
		c := NewTiered(testBudget(4), nil, nil)
		key := pageKey(1, types.QualityLowScroll)

		_, ok := c.Get(key)
		assert.False(t, ok)

		mustPut(t, c, key)
		e, ok := c.Get(key)
		require.True(t, ok)
		assert.Equal(t, key, e.Key)
		assert.Equal(t, int64(artifactBytes), e.Size)
	})

	t.Run("keys differing only in quality do not alias", func(t *testing.T) {
		c := NewTiered(testBudget(4), nil, nil)
		low := pageKey(1, types.QualityLowScroll)
		high := pageKey(1, types.QualityHighFinal)
		mustPut(t, c, low)

		assert.False(t, c.Contains(high))
		_, ok := c.Peek(high)
		assert.False(t, ok)
	})

	t.Run("rotation and zoom are part of the key", func(t *testing.T) {
		c := NewTiered(testBudget(4), nil, nil)
		mustPut(t, c, types.NewCacheKey("doc", 1, types.KindPage, 1, 0, types.QualityHighFinal, 1))

		assert.False(t, c.Contains(types.NewCacheKey("doc", 1, types.KindPage, 1, 90, types.QualityHighFinal, 1)))
		assert.False(t, c.Contains(types.NewCacheKey("doc", 1, types.KindPage, 1.5, 0, types.QualityHighFinal, 1)))
		assert.True(t, c.Contains(types.NewCacheKey("doc", 1, types.KindPage, 1.001, 360, types.QualityHighFinal, 1)))
	})

	t.Run("thumbnails are charged to the thumbnail pool", func(t *testing.T) {
		c := NewTiered(testBudget(4), nil, nil)
		mustPut(t, c, types.NewCacheKey("doc", 1, types.KindThumbnail, 1, 0, types.QualityLowThumbnail, 1))

		vp, th := c.Stats()
		assert.Zero(t, vp.UsedBytes)
		assert.Equal(t, int64(artifactBytes), th.UsedBytes)
	})

	t.Run("nil pixels are rejected", func(t *testing.T) {
		c := NewTiered(testBudget(4), nil, nil)
		_, err := c.Put(pageKey(1, types.QualityHighFinal), nil)
		assert.ErrorIs(t, err, types.ErrInvalidSlot)
	})

	t.Run("replacing a key keeps accounting exact", func(t *testing.T) {
		c := NewTiered(testBudget(4), nil, nil)
		key := pageKey(1, types.QualityHighFinal)
		mustPut(t, c, key)
		mustPut(t, c, key)

		vp, _ := c.Stats()
		assert.Equal(t, 1, vp.Entries)
		assert.Equal(t, int64(artifactBytes), vp.UsedBytes)
	})
}

func TestTieredEviction(t *testing.T) {
	t.Run("evicts least recently used first", func(t *testing.T) {
		c := NewTiered(testBudget(2), nil, nil)
		a := pageKey(1, types.QualityLowScroll)
		b := pageKey(2, types.QualityLowScroll)
		mustPut(t, c, a)
		mustPut(t, c, b)
		c.Get(a)

		evicted := mustPut(t, c, pageKey(3, types.QualityLowScroll))
		assert.Equal(t, []types.CacheKey{b}, evicted)
		assert.True(t, c.Contains(a))
	})

	t.Run("never exceeds the pool budget", func(t *testing.T) {
		c := NewTiered(testBudget(3), nil, nil)
		for i := range 20 {
			mustPut(t, c, pageKey(i, types.QualityLowScroll))
			vp, _ := c.Stats()
			assert.LessOrEqual(t, vp.UsedBytes, vp.BudgetBytes)
		}
		vp, _ := c.Stats()
		assert.Equal(t, 3, vp.Entries)
		assert.Equal(t, int64(17), vp.Evictions)
	})

	t.Run("pinned slot survives", func(t *testing.T) {
		c := NewTiered(testBudget(2), nil, nil)
		pinned := pageKey(1, types.QualityHighFinal)
		mustPut(t, c, pinned)
		c.Pin(pinned.Slot())

		for i := 2; i < 6; i++ {
			mustPut(t, c, pageKey(i, types.QualityLowScroll))
		}
		assert.True(t, c.Contains(pinned))

		c.Unpin()
		mustPut(t, c, pageKey(7, types.QualityLowScroll))
		mustPut(t, c, pageKey(8, types.QualityLowScroll))
		assert.False(t, c.Contains(pinned))
	})

	t.Run("sole high final of a visible slot survives", func(t *testing.T) {
		c := NewTiered(testBudget(2), nil, nil)
		hq := pageKey(1, types.QualityHighFinal)
		mustPut(t, c, hq)
		c.SetVisible("ctx", []types.ViewKey{hq.View()})

		for i := 2; i < 6; i++ {
			mustPut(t, c, pageKey(i, types.QualityLowScroll))
		}
		assert.True(t, c.Contains(hq))
	})

	t.Run("visible high final is evictable when a low copy exists", func(t *testing.T) {
		c := NewTiered(testBudget(2), nil, nil)
		hq := pageKey(1, types.QualityHighFinal)
		lq := pageKey(1, types.QualityLowScroll)
		mustPut(t, c, hq)
		mustPut(t, c, lq)
		c.SetVisible("ctx", []types.ViewKey{hq.View()})

		evicted := mustPut(t, c, pageKey(2, types.QualityLowScroll))
		assert.Equal(t, []types.CacheKey{hq}, evicted)
	})

	t.Run("replacement of an evicted high final survives the pass", func(t *testing.T) {
		c := NewTiered(testBudget(3), nil, nil)
		hq := pageKey(1, types.QualityHighFinal)
		lq := pageKey(1, types.QualityLowScroll)
		other := pageKey(2, types.QualityLowScroll)
		mustPut(t, c, hq)
		mustPut(t, c, lq)
		mustPut(t, c, other)
		c.SetVisible("ctx", []types.ViewKey{hq.View()})

		evicted, err := c.ReserveOrEvict(2*artifactBytes, types.KindPage)
		require.NoError(t, err)
		assert.Equal(t, []types.CacheKey{hq, other}, evicted)
		assert.True(t, c.Contains(lq), "visible slot must keep a displayable tier")
	})

	t.Run("visible slot never left blank when room runs out", func(t *testing.T) {
		c := NewTiered(testBudget(2), nil, nil)
		hq := pageKey(1, types.QualityHighFinal)
		lq := pageKey(1, types.QualityLowScroll)
		mustPut(t, c, hq)
		mustPut(t, c, lq)
		c.SetVisible("ctx", []types.ViewKey{hq.View()})

		_, err := c.ReserveOrEvict(2*artifactBytes, types.KindPage)
		assert.ErrorIs(t, err, types.ErrCacheExhausted)
		assert.True(t, c.Contains(hq) || c.Contains(lq))
	})

	t.Run("low copy at another zoom is not a replacement", func(t *testing.T) {
		c := NewTiered(testBudget(2), nil, nil)
		hq := pageKey(1, types.QualityHighFinal)
		stale := types.NewCacheKey("doc", 1, types.KindPage, 2, 0, types.QualityLowScroll, 1)
		mustPut(t, c, hq)
		mustPut(t, c, stale)
		c.SetVisible("ctx", []types.ViewKey{hq.View()})

		evicted := mustPut(t, c, pageKey(2, types.QualityLowScroll))
		assert.Equal(t, []types.CacheKey{stale}, evicted)
		assert.True(t, c.Contains(hq))
	})

	t.Run("visibility is tracked per owner", func(t *testing.T) {
		c := NewTiered(testBudget(2), nil, nil)
		hq := pageKey(1, types.QualityHighFinal)
		c.SetVisible("a", []types.ViewKey{hq.View()})
		c.SetVisible("b", nil)
		assert.True(t, c.IsVisible(hq.View()))

		c.SetVisible("a", nil)
		assert.False(t, c.IsVisible(hq.View()))
	})

	t.Run("oversize artifact is not admitted", func(t *testing.T) {
		c := NewTiered(testBudget(2), nil, nil)
		mustPut(t, c, pageKey(1, types.QualityLowScroll))

		big := types.NewPixelBuffer(image.NewRGBA(image.Rect(0, 0, 40, 40)), types.QualityHighFinal)
		_, err := c.Put(pageKey(2, types.QualityHighFinal), big)
		require.Error(t, err)
		assert.True(t, types.IsCacheExhausted(err))

		var re *types.RenderError
		require.True(t, errors.As(err, &re))
		assert.Equal(t, PoolViewport, re.Stage)

		assert.True(t, c.Contains(pageKey(1, types.QualityLowScroll)), "rejected put must not evict")
		vp, _ := c.Stats()
		assert.Equal(t, int64(1), vp.Rejected)
	})

	t.Run("protected entries leave no room", func(t *testing.T) {
		c := NewTiered(testBudget(1), nil, nil)
		hq := pageKey(1, types.QualityHighFinal)
		mustPut(t, c, hq)
		c.Pin(hq.Slot())

		_, err := c.Put(pageKey(2, types.QualityLowScroll), pixels(types.QualityLowScroll))
		assert.ErrorIs(t, err, types.ErrCacheExhausted)
		assert.True(t, c.Contains(hq))
	})

	t.Run("failed replacement keeps the previous artifact", func(t *testing.T) {
		c := NewTiered(testBudget(2), nil, nil)
		key := pageKey(1, types.QualityLowScroll)
		mustPut(t, c, key)
		mustPut(t, c, pageKey(2, types.QualityLowScroll))
		c.Pin(pageKey(2, types.QualityLowScroll).Slot())

		bigger := types.NewPixelBuffer(image.NewRGBA(image.Rect(0, 0, 10, 20)), types.QualityLowScroll)
		_, err := c.Put(key, bigger)
		assert.ErrorIs(t, err, types.ErrCacheExhausted)

		px, ok := c.Peek(key)
		require.True(t, ok)
		assert.Len(t, px.Image.Pix, artifactBytes)
		vp, _ := c.Stats()
		assert.Equal(t, int64(2*artifactBytes), vp.UsedBytes)
	})

	t.Run("growing replacement evicts others, not itself", func(t *testing.T) {
		c := NewTiered(testBudget(3), nil, nil)
		key := pageKey(1, types.QualityLowScroll)
		mustPut(t, c, key)
		mustPut(t, c, pageKey(2, types.QualityLowScroll))
		mustPut(t, c, pageKey(3, types.QualityLowScroll))
		c.Get(pageKey(2, types.QualityLowScroll))
		c.Get(pageKey(3, types.QualityLowScroll))

		bigger := types.NewPixelBuffer(image.NewRGBA(image.Rect(0, 0, 10, 20)), types.QualityLowScroll)
		evicted, err := c.Put(key, bigger)
		require.NoError(t, err)
		assert.Equal(t, []types.CacheKey{pageKey(2, types.QualityLowScroll)}, evicted)

		vp, _ := c.Stats()
		assert.Equal(t, 2, vp.Entries)
		assert.Equal(t, int64(3*artifactBytes), vp.UsedBytes)
	})

	t.Run("reserve frees room ahead of a render", func(t *testing.T) {
		c := NewTiered(testBudget(2), nil, nil)
		mustPut(t, c, pageKey(1, types.QualityLowScroll))
		mustPut(t, c, pageKey(2, types.QualityLowScroll))

		evicted, err := c.ReserveOrEvict(artifactBytes, types.KindPage)
		require.NoError(t, err)
		assert.Len(t, evicted, 1)

		_, err = c.ReserveOrEvict(10*artifactBytes, types.KindPage)
		assert.ErrorIs(t, err, types.ErrCacheExhausted)
	})
}

func TestTieredTrim(t *testing.T) {
	t.Run("redundant low tiers dropped once high final lands", func(t *testing.T) {
		c := NewTiered(testBudget(4), nil, nil)
		mustPut(t, c, pageKey(1, types.QualityLowScroll))
		mustPut(t, c, pageKey(1, types.QualityUltraLowPreview))
		assert.Zero(t, c.TrimRedundant(pageKey(1, types.QualityLowScroll).View()))

		mustPut(t, c, pageKey(1, types.QualityHighFinal))
		assert.Equal(t, 2, c.TrimRedundant(pageKey(1, types.QualityHighFinal).View()))
		assert.True(t, c.Contains(pageKey(1, types.QualityHighFinal)))
	})

	t.Run("trim leaves other zoom buckets alone", func(t *testing.T) {
		c := NewTiered(testBudget(4), nil, nil)
		oldHQ := pageKey(1, types.QualityHighFinal)
		newLQ := types.NewCacheKey("doc", 1, types.KindPage, 2, 0, types.QualityLowScroll, 1)
		mustPut(t, c, oldHQ)
		mustPut(t, c, newLQ)

		assert.Zero(t, c.TrimRedundant(newLQ.View()))
		assert.Zero(t, c.TrimRedundant(oldHQ.View()))
		assert.Zero(t, c.TrimAllRedundant())
		assert.True(t, c.Contains(newLQ))
		assert.True(t, c.Contains(oldHQ))
	})

	t.Run("trim to ratio", func(t *testing.T) {
		c := NewTiered(testBudget(4), nil, nil)
		for i := range 4 {
			mustPut(t, c, pageKey(i, types.QualityLowScroll))
		}
		evicted := c.TrimToRatio(0.5)
		assert.Len(t, evicted, 2)
		assert.InDelta(t, 0.5*4.0/6.0, c.UsageRatio(), 0.001)
	})

	t.Run("invalidate document", func(t *testing.T) {
		c := NewTiered(testBudget(4), nil, nil)
		mustPut(t, c, pageKey(1, types.QualityLowScroll))
		mustPut(t, c, types.NewCacheKey("other", 1, types.KindPage, 1, 0, types.QualityLowScroll, 1))
		c.Pin(pageKey(1, types.QualityLowScroll).Slot())

		assert.Equal(t, 1, c.InvalidateDocument("doc"))
		_, pinned := c.Pinned()
		assert.False(t, pinned)
		vp, _ := c.Stats()
		assert.Equal(t, 1, vp.Entries)
	})

	t.Run("pixels outlive eviction", func(t *testing.T) {
		c := NewTiered(testBudget(1), nil, nil)
		key := pageKey(1, types.QualityLowScroll)
		mustPut(t, c, key)
		px, ok := c.Peek(key)
		require.True(t, ok)

		mustPut(t, c, pageKey(2, types.QualityLowScroll))
		assert.False(t, c.Contains(key))
		assert.Len(t, px.Image.Pix, artifactBytes)
	})
}

type recordingMetrics struct {
	types.MetricsRecorder
	hits, misses, evictions int
}

func (m *recordingMetrics) RecordCacheHit(string, types.RenderQuality)  { m.hits++ }
func (m *recordingMetrics) RecordCacheMiss(string, types.RenderQuality) { m.misses++ }
func (m *recordingMetrics) RecordEviction(string, int64)                { m.evictions++ }

func TestTieredMetrics(t *testing.T) {
	m := &recordingMetrics{}
	c := NewTiered(testBudget(1), m, nil)
	key := pageKey(1, types.QualityLowScroll)

	c.Get(key)
	mustPut(t, c, key)
	c.Get(key)
	mustPut(t, c, pageKey(2, types.QualityLowScroll))

	assert.Equal(t, 1, m.hits)
	assert.Equal(t, 1, m.misses)
	assert.Equal(t, 1, m.evictions)
}
