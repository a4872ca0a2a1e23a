package cache

import (
	"github.com/LavishGent/pageturn/internal/types"
)

// DisabledPreviewStore is a no-op preview layer used when previews are
// turned off. Every lookup misses, so slots fall back to the skeleton.
type DisabledPreviewStore struct{}

// NewDisabledPreviewStore creates a new disabled preview store.
func NewDisabledPreviewStore() *DisabledPreviewStore {
	return &DisabledPreviewStore{}
}

// Preview always misses.
func (DisabledPreviewStore) Preview(types.SlotKey) (*types.PixelBuffer, bool) { return nil, false }

// Put discards the preview.
func (DisabledPreviewStore) Put(types.SlotKey, *types.PixelBuffer) error { return nil }

// Has returns false.
func (DisabledPreviewStore) Has(types.SlotKey) bool { return false }

// Delete does nothing.
func (DisabledPreviewStore) Delete(types.SlotKey) {}

// InvalidateDocument does nothing.
func (DisabledPreviewStore) InvalidateDocument(types.DocumentID) int { return 0 }

// Stats returns empty statistics.
func (DisabledPreviewStore) Stats() types.PoolStats { return types.PoolStats{Name: PoolPreview} }

// Close does nothing.
func (DisabledPreviewStore) Close() error { return nil }

var _ PreviewLayer = (*DisabledPreviewStore)(nil)
