package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/LavishGent/pageturn/internal/cache"
	"github.com/LavishGent/pageturn/internal/types"
)

// worker rasterizes JobSpecs until the work channel closes. It touches no
// scheduler state besides the channels, the token authority and the
// read-only preview lookup. A spec whose token went stale while buffered is
// returned without calling the backend.
func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	logger := s.logger.With("worker", id)
	for spec := range s.work {
		var r Result
		if s.tokens.Valid(spec.Context, spec.Token) {
			r = s.rasterize(spec)
		} else {
			r = Result{Spec: spec, Err: types.ErrStale, Skipped: true}
		}
		if r.Err != nil && !r.Skipped {
			logger.Debug("Rasterization failed", "key", spec.Key.String(), "attempt", spec.Attempt+1, "error", r.Err)
		}

		select {
		case s.results <- r:
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) rasterize(spec JobSpec) (r Result) {
	r.Spec = spec
	start := time.Now()
	defer func() {
		r.Latency = time.Since(start)
		if p := recover(); p != nil {
			r.Image = nil
			r.Preview = nil
			r.Err = types.RasterFailure(spec.Key, fmt.Errorf("rasterizer panic: %v", p))
		}
	}()

	img, err := s.raster.Rasterize(s.ctx, spec.Key.Document, spec.Key.Unit, spec.Key.Quality, spec.Target)
	if err != nil {
		if s.ctx.Err() != nil {
			r.Err = context.Canceled
			return r
		}
		r.Err = types.RasterFailure(spec.Key, err)
		return r
	}
	if img == nil || img.Bounds().Empty() {
		r.Err = types.RasterFailure(spec.Key, nil)
		return r
	}

	// Backends that ignore the requested dimensions are brought back inside
	// the clamp here, off the control thread.
	b := img.Bounds()
	if b.Dx() > spec.Target.Width || b.Dy() > spec.Target.Height {
		img = cache.Resample(img, spec.Target)
	}
	r.Image = img

	if s.previewEdge > 0 {
		slot := spec.Key.Slot()
		if spec.Key.Quality.IsLow() || !s.previews.Has(slot) {
			r.Preview = cache.DerivePreview(types.NewPixelBuffer(img, spec.Key.Quality), s.previewEdge)
		}
	}
	return r
}
