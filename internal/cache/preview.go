package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/allegro/bigcache/v3"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/LavishGent/pageturn/internal/config"
	"github.com/LavishGent/pageturn/internal/types"
)

// decodedPreviews bounds the number of decoded previews kept hot between
// frames.
const decodedPreviews = 256

// PreviewLayer is the shared, resolution independent placeholder store.
type PreviewLayer interface {
	types.PreviewLookup
	Put(slot types.SlotKey, px *types.PixelBuffer) error
	Has(slot types.SlotKey) bool
	Delete(slot types.SlotKey)
	InvalidateDocument(doc types.DocumentID) int
	Stats() types.PoolStats
	Close() error
}

// PreviewStore keeps one ultra-low preview per slot in BigCache. Previews are
// stored encoded (optionally zstd compressed) so the store's budget covers
// many more slots than decoded buffers would.
type PreviewStore struct {
	cache   *bigcache.BigCache
	codec   *blobCodec
	decoded *lru.Cache[types.SlotKey, *types.PixelBuffer]
	sf      singleflight.Group
	config  config.PreviewConfig
	budget  int64
	logger  *slog.Logger

	hits      atomic.Int64
	misses    atomic.Int64
	sets      atomic.Int64
	evictions atomic.Int64
	rejected  atomic.Int64

	// used is the sum of stored blob sizes. writeMu serializes writers so an
	// overwritten blob is subtracted exactly once.
	used    atomic.Int64
	writeMu sync.Mutex

	closed atomic.Bool
}

// NewPreviewStore creates a preview store limited to budgetBytes.
func NewPreviewStore(cfg config.PreviewConfig, budgetBytes int64, logger *slog.Logger) (*PreviewStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	codec, err := newBlobCodec(cfg.Compress)
	if err != nil {
		return nil, err
	}

	decoded, err := lru.New[types.SlotKey, *types.PixelBuffer](decodedPreviews)
	if err != nil {
		codec.close()
		return nil, err
	}

	s := &PreviewStore{
		codec:   codec,
		decoded: decoded,
		config:  cfg,
		budget:  budgetBytes,
		logger:  logger.With("component", "preview-store"),
	}

	entrySize := cfg.MaxEdgePx*cfg.MaxEdgePx*4 + blobHeaderSize
	hardMaxMB := int(budgetBytes / config.MiB)
	if hardMaxMB < 1 {
		hardMaxMB = 1
	}

	bcConfig := bigcache.Config{
		Shards:             cfg.Shards,
		LifeWindow:         cfg.LifeWindow,
		CleanWindow:        0, // previews leave only on eviction
		MaxEntriesInWindow: max(cfg.Shards*10, int(budgetBytes/int64(entrySize))),
		MaxEntrySize:       entrySize,
		HardMaxCacheSize:   hardMaxMB,
		Verbose:            false,
		Logger:             &bigcacheLogger{logger: s.logger},
		OnRemoveWithReason: func(key string, entry []byte, reason bigcache.RemoveReason) {
			s.used.Add(-int64(len(entry)))
			if reason == bigcache.NoSpace || reason == bigcache.Expired {
				s.evictions.Add(1)
			}
		},
	}

	bc, err := bigcache.New(context.Background(), bcConfig)
	if err != nil {
		codec.close()
		return nil, fmt.Errorf("failed to create preview cache: %w", err)
	}
	s.cache = bc
	return s, nil
}

// Preview returns the decoded preview for slot. Concurrent lookups of the
// same slot share one decode.
func (s *PreviewStore) Preview(slot types.SlotKey) (*types.PixelBuffer, bool) {
	if s.closed.Load() {
		return nil, false
	}

	if px, ok := s.decoded.Get(slot); ok {
		s.hits.Add(1)
		return px, true
	}

	key := previewKey(slot)
	v, err, _ := s.sf.Do(key, func() (any, error) {
		data, err := s.cache.Get(key)
		if err != nil {
			return nil, err
		}
		img, err := s.codec.decode(data)
		if err != nil {
			return nil, err
		}
		px := types.NewPixelBuffer(img, types.QualityUltraLowPreview)
		s.decoded.Add(slot, px)
		return px, nil
	})
	if err != nil {
		if !errors.Is(err, bigcache.ErrEntryNotFound) {
			s.logger.Debug("Dropping unreadable preview", "slot", key, "error", err)
			s.writeMu.Lock()
			_ = s.cache.Delete(key)
			s.writeMu.Unlock()
		}
		s.misses.Add(1)
		return nil, false
	}

	s.hits.Add(1)
	return v.(*types.PixelBuffer), true
}

// Put stores px as the preview for slot, downsampling it first if needed.
func (s *PreviewStore) Put(slot types.SlotKey, px *types.PixelBuffer) error {
	if s.closed.Load() {
		return types.ErrClosed
	}
	if px == nil || px.Image == nil {
		return types.NewRenderError("put", slot.String(), PoolPreview, types.ErrInvalidSlot)
	}

	small := DerivePreview(px, s.config.MaxEdgePx)
	key := previewKey(slot)
	blob := s.codec.encode(small.Image)

	s.writeMu.Lock()
	// Overwrites drop the old blob without a removal callback.
	old, getErr := s.cache.Get(key)
	if err := s.cache.Set(key, blob); err != nil {
		s.writeMu.Unlock()
		s.rejected.Add(1)
		return types.NewRenderError("put", key, PoolPreview, fmt.Errorf("%w: %w", types.ErrCacheExhausted, err))
	}
	if getErr == nil {
		s.used.Add(-int64(len(old)))
	}
	s.used.Add(int64(len(blob)))
	s.writeMu.Unlock()

	s.decoded.Add(slot, small)
	s.sets.Add(1)
	return nil
}

// Has reports whether a preview exists for slot.
func (s *PreviewStore) Has(slot types.SlotKey) bool {
	if s.closed.Load() {
		return false
	}
	if s.decoded.Contains(slot) {
		return true
	}
	_, err := s.cache.Get(previewKey(slot))
	return err == nil
}

// Delete removes the preview for slot.
func (s *PreviewStore) Delete(slot types.SlotKey) {
	if s.closed.Load() {
		return
	}
	s.decoded.Remove(slot)
	s.writeMu.Lock()
	_ = s.cache.Delete(previewKey(slot))
	s.writeMu.Unlock()
}

// InvalidateDocument removes every preview of doc.
func (s *PreviewStore) InvalidateDocument(doc types.DocumentID) int {
	if s.closed.Load() {
		return 0
	}

	for _, slot := range s.decoded.Keys() {
		if slot.Document == doc {
			s.decoded.Remove(slot)
		}
	}

	prefix := documentPrefix(doc)
	var keys []string
	iter := s.cache.Iterator()
	for iter.SetNext() {
		entry, err := iter.Value()
		if err != nil {
			continue
		}
		if strings.HasPrefix(entry.Key(), prefix) {
			keys = append(keys, entry.Key())
		}
	}
	s.writeMu.Lock()
	for _, k := range keys {
		_ = s.cache.Delete(k)
	}
	s.writeMu.Unlock()

	s.logger.Debug("Invalidated previews", "document", doc, "deleted", len(keys))
	return len(keys)
}

// Stats returns preview store statistics.
func (s *PreviewStore) Stats() types.PoolStats {
	if s.closed.Load() {
		return types.PoolStats{Name: PoolPreview, BudgetBytes: s.budget}
	}
	return types.PoolStats{
		Name:        PoolPreview,
		UsedBytes:   s.used.Load(),
		BudgetBytes: s.budget,
		Entries:     s.cache.Len(),
		Evictions:   s.evictions.Load(),
		Rejected:    s.rejected.Load(),
	}
}

// HitRatio returns the preview hit ratio.
func (s *PreviewStore) HitRatio() float64 {
	hits := s.hits.Load()
	total := hits + s.misses.Load()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// Close releases the store.
func (s *PreviewStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.decoded.Purge()
	s.codec.close()
	return s.cache.Close()
}

type bigcacheLogger struct {
	logger *slog.Logger
}

func (l *bigcacheLogger) Printf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf("bigcache: "+format, args...))
}

var _ PreviewLayer = (*PreviewStore)(nil)
