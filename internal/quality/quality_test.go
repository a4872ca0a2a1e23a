package quality

import (
	"image"
	"testing"

	"github.com/LavishGent/pageturn/internal/config"
	"github.com/LavishGent/pageturn/internal/types"
)

func TestTargetDims(t *testing.T) {
	p := NewProfile(config.DefaultConfig().Quality)

	tests := []struct {
		name    string
		logical types.Size
		q       types.RenderQuality
		dpr     float64
		want    types.Dims
	}{
		{"preview min edge", types.Size{Width: 100, Height: 100}, types.QualityUltraLowPreview, 1, types.Dims{Width: 16, Height: 16}},
		{"preview keeps aspect", types.Size{Width: 100, Height: 200}, types.QualityUltraLowPreview, 1, types.Dims{Width: 16, Height: 32}},
		{"thumbnail", types.Size{Width: 612, Height: 792}, types.QualityLowThumbnail, 2, types.Dims{Width: 153, Height: 198}},
		{"scroll", types.Size{Width: 100, Height: 200}, types.QualityLowScroll, 2, types.Dims{Width: 50, Height: 100}},
		{"final uses dpr", types.Size{Width: 612, Height: 792}, types.QualityHighFinal, 2, types.Dims{Width: 1224, Height: 1584}},
		{"final zero dpr", types.Size{Width: 612, Height: 792}, types.QualityHighFinal, 0, types.Dims{Width: 612, Height: 792}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, clamped := p.TargetDims(tt.logical, tt.q, tt.dpr)
			if got != tt.want {
				t.Errorf("TargetDims() = %v, want %v", got, tt.want)
			}
			if clamped {
				t.Error("TargetDims() reported a clamp")
			}
		})
	}
}

func TestTargetDimsClamp(t *testing.T) {
	p := NewProfile(config.DefaultConfig().Quality)

	t.Run("edge", func(t *testing.T) {
		got, clamped := p.TargetDims(types.Size{Width: 20000, Height: 1000}, types.QualityHighFinal, 1)
		if !clamped {
			t.Fatal("TargetDims() did not clamp")
		}
		if got.Width != 8192 || got.Height != 410 {
			t.Errorf("TargetDims() = %v, want 8192x410", got)
		}
	})

	t.Run("area", func(t *testing.T) {
		got, clamped := p.TargetDims(types.Size{Width: 8000, Height: 8000}, types.QualityHighFinal, 1)
		if !clamped {
			t.Fatal("TargetDims() did not clamp")
		}
		if got.Pixels() > p.MaxPixels() {
			t.Errorf("TargetDims() = %v (%d px), want at most %d px", got, got.Pixels(), p.MaxPixels())
		}
		if got.Width != got.Height {
			t.Errorf("TargetDims() = %v, want square", got)
		}
	})

	t.Run("ordered tiers", func(t *testing.T) {
		logical := types.Size{Width: 612, Height: 792}
		prev := int64(0)
		for _, q := range types.AllQualities {
			d, _ := p.TargetDims(logical, q, 1)
			if d.Pixels() <= prev {
				t.Errorf("%v has %d px, want more than the tier below (%d)", q, d.Pixels(), prev)
			}
			prev = d.Pixels()
		}
	})
}

func TestNewProfileDefaults(t *testing.T) {
	p := NewProfile(config.QualityConfig{})
	if p.MaxEdge() != 8192 || p.MaxPixels() != 32_000_000 {
		t.Errorf("limits = %d, %d, want 8192, 32000000", p.MaxEdge(), p.MaxPixels())
	}
	if got := p.Scale(types.QualityLowScroll, 1); got != 0.5 {
		t.Errorf("Scale(LowScroll) = %v, want 0.5", got)
	}
}

type lookup map[types.CacheKey]*types.PixelBuffer

func (l lookup) Peek(key types.CacheKey) (*types.PixelBuffer, bool) {
	px, ok := l[key]
	return px, ok
}

type previews map[types.SlotKey]*types.PixelBuffer

func (p previews) Preview(slot types.SlotKey) (*types.PixelBuffer, bool) {
	px, ok := p[slot]
	return px, ok
}

func buffer(q types.RenderQuality) *types.PixelBuffer {
	return types.NewPixelBuffer(image.NewRGBA(image.Rect(0, 0, 4, 4)), q)
}

func TestResolve(t *testing.T) {
	base := types.NewCacheKey("doc", 2, types.KindPage, 1, 0, types.QualityHighFinal, 1)
	slot := base.Slot()

	tests := []struct {
		name     string
		cached   []types.RenderQuality
		preview  bool
		desired  types.RenderQuality
		wantKind types.SourceKind
		wantQ    types.RenderQuality
	}{
		{"nothing", nil, false, types.QualityHighFinal, types.SourceSkeleton, 0},
		{"preview only", nil, true, types.QualityHighFinal, types.SourcePreview, types.QualityUltraLowPreview},
		{"exact", []types.RenderQuality{types.QualityHighFinal}, true, types.QualityHighFinal, types.SourceTarget, types.QualityHighFinal},
		{"best lower tier", []types.RenderQuality{types.QualityUltraLowPreview, types.QualityLowScroll}, true, types.QualityHighFinal, types.SourceLowerTier, types.QualityLowScroll},
		{"higher satisfies", []types.RenderQuality{types.QualityHighFinal, types.QualityLowScroll}, false, types.QualityLowScroll, types.SourceTarget, types.QualityHighFinal},
		{"local beats preview", []types.RenderQuality{types.QualityUltraLowPreview}, true, types.QualityLowScroll, types.SourceLowerTier, types.QualityUltraLowPreview},
		{"invalid desired means final", []types.RenderQuality{types.QualityLowScroll}, false, 0, types.SourceLowerTier, types.QualityLowScroll},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			local := lookup{}
			for _, q := range tt.cached {
				local[base.WithQuality(q)] = buffer(q)
			}
			pv := previews{}
			if tt.preview {
				pv[slot] = buffer(types.QualityUltraLowPreview)
			}

			got := Resolve(local, pv, base, tt.desired)
			if got.Kind != tt.wantKind || got.Quality != tt.wantQ {
				t.Errorf("Resolve() = %v/%v, want %v/%v", got.Kind, got.Quality, tt.wantKind, tt.wantQ)
			}
			if (got.Pixels == nil) != (tt.wantKind == types.SourceSkeleton) {
				t.Errorf("Resolve() pixels = %v for kind %v", got.Pixels, got.Kind)
			}
		})
	}

	t.Run("nil lookups", func(t *testing.T) {
		if got := Resolve(nil, nil, base, types.QualityHighFinal); !got.IsSkeleton() {
			t.Errorf("Resolve(nil, nil) = %v, want skeleton", got.Kind)
		}
	})
}

func TestTrackerState(t *testing.T) {
	slot := types.SlotKey{Document: "doc", Unit: 1, Kind: types.KindPage}
	low := types.DisplaySource{Pixels: buffer(types.QualityLowScroll), Kind: types.SourceLowerTier, Quality: types.QualityLowScroll}
	preview := types.DisplaySource{Pixels: buffer(types.QualityUltraLowPreview), Kind: types.SourcePreview, Quality: types.QualityUltraLowPreview}
	final := types.DisplaySource{Pixels: buffer(types.QualityHighFinal), Kind: types.SourceTarget, Quality: types.QualityHighFinal}

	tr := NewTracker()
	if got := tr.State(slot, 1, types.QualityHighFinal, types.DisplaySource{}); got != types.StateEmpty {
		t.Errorf("State(skeleton) = %v, want empty", got)
	}
	if got := tr.State(slot, 1, types.QualityHighFinal, low); got != types.StatePlaceholderReady {
		t.Errorf("State(low, nothing pending) = %v, want placeholder-ready", got)
	}

	tr.MarkPending(slot, 1, types.QualityHighFinal)
	if got := tr.State(slot, 1, types.QualityHighFinal, low); got != types.StateUpgrading {
		t.Errorf("State(low, final pending) = %v, want upgrading", got)
	}
	if got := tr.State(slot, 1, types.QualityHighFinal, preview); got != types.StatePlaceholderReady {
		t.Errorf("State(preview, final pending) = %v, want placeholder-ready", got)
	}
	if got := tr.State(slot, 2, types.QualityHighFinal, low); got != types.StatePlaceholderReady {
		t.Errorf("State under a newer generation = %v, want placeholder-ready", got)
	}

	tr.MarkApplied(slot, 1, types.QualityHighFinal)
	if tr.PendingAbove(slot, 1, types.QualityLowScroll) {
		t.Error("final tier still pending after MarkApplied")
	}
	if got := tr.State(slot, 1, types.QualityHighFinal, final); got != types.StateTargetReady {
		t.Errorf("State(final) = %v, want target-ready", got)
	}
}

func TestTrackerGenerations(t *testing.T) {
	slot := types.SlotKey{Document: "doc", Unit: 1, Kind: types.KindPage}
	tr := NewTracker()

	tr.MarkApplied(slot, 1, types.QualityLowScroll)
	tr.MarkApplied(slot, 1, types.QualityUltraLowPreview)
	if got := tr.Applied(slot, 1); got != types.QualityLowScroll {
		t.Errorf("Applied() = %v, want lq-scroll (never regresses)", got)
	}

	tr.MarkGivenUp(slot, 1, types.QualityHighFinal)
	if !tr.GivenUp(slot, 1, types.QualityHighFinal) {
		t.Error("GivenUp() = false after MarkGivenUp")
	}

	tr.MarkPending(slot, 2, types.QualityLowScroll)
	if got := tr.Applied(slot, 1); got != 0 {
		t.Errorf("Applied(old generation) = %v, want 0 after a newer generation touched the slot", got)
	}
	if tr.GivenUp(slot, 2, types.QualityHighFinal) {
		t.Error("give-up survived a generation change")
	}

	tr.ClearPending(slot, 2, types.QualityLowScroll)
	if tr.PendingAbove(slot, 2, types.QualityUltraLowPreview) {
		t.Error("PendingAbove() = true after ClearPending")
	}

	other := types.SlotKey{Document: "other", Unit: 1, Kind: types.KindPage}
	tr.MarkApplied(other, 1, types.QualityLowScroll)
	tr.ForgetDocument("doc")
	if tr.Len() != 1 {
		t.Errorf("Len() = %d after ForgetDocument, want 1", tr.Len())
	}
}
