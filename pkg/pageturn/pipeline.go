package pageturn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/LavishGent/pageturn/internal/cache"
	"github.com/LavishGent/pageturn/internal/config"
	"github.com/LavishGent/pageturn/internal/generation"
	"github.com/LavishGent/pageturn/internal/metrics"
	"github.com/LavishGent/pageturn/internal/metrics/datadog"
	"github.com/LavishGent/pageturn/internal/quality"
	"github.com/LavishGent/pageturn/internal/resilience"
	"github.com/LavishGent/pageturn/internal/scheduler"
	"github.com/LavishGent/pageturn/internal/types"
)

// snapshotter is implemented by recorders that can report totals.
type snapshotter interface {
	Snapshot() types.MetricsSnapshot
}

// Pipeline coordinates the tiered cache, the preview store and the job
// scheduler for any number of view contexts. Every method may be called from
// any goroutine; a short-held mutex makes the caller the control thread for
// the duration of the call.
type Pipeline struct {
	mu sync.Mutex

	config    *config.Config
	budget    config.Budget
	profile   quality.Profile
	validator *types.SlotValidator

	raster   types.Rasterizer
	cache    *cache.Tiered
	previews cache.PreviewLayer
	tokens   *generation.Authority
	tracker  *quality.Tracker
	guard    resilience.Guard
	sched    *scheduler.Scheduler

	placeholder *rate.Limiter
	previewEdge int

	metrics    types.MetricsRecorder
	publisher  types.Publisher
	background *metrics.BackgroundPublisher
	logger     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool
}

//nolint:gocyclo // Wiring requires multiple conditional checks
func newPipeline(cfg *config.Config, raster types.Rasterizer, opts *types.PipelineOptions) (*Pipeline, error) {
	if raster == nil {
		return nil, errors.New("pageturn: rasterizer is required")
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	// Options adjust a private copy so the caller's config stays reusable.
	c := *cfg
	cfg = &c
	if opts == nil {
		opts = &types.PipelineOptions{}
	}
	if opts.Workers > 0 {
		cfg.Scheduler.Workers = opts.Workers
	}
	if opts.DisablePlaceholder {
		cfg.Placeholder.Enabled = false
	}
	if opts.DisableResilience {
		cfg.CircuitBreaker.Enabled = false
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	base := newLogger(opts.Logger)

	recorder := opts.Metrics
	if recorder == nil && cfg.Metrics.Enabled {
		recorder = metrics.NewTracker()
	}

	budget := cfg.ResolveBudget()

	var previews cache.PreviewLayer = cache.NewDisabledPreviewStore()
	previewEdge := 0
	if cfg.Preview.Enabled && budget.PreviewBytes > 0 {
		store, err := cache.NewPreviewStore(cfg.Preview, budget.PreviewBytes, base)
		if err != nil {
			base.Warn("Failed to create preview store, previews disabled", "error", err)
		} else {
			previews = store
			previewEdge = cfg.Preview.MaxEdgePx
		}
	}

	ctx, cancel := context.WithCancel(context.Background())

	p := &Pipeline{
		config:      cfg,
		budget:      budget,
		profile:     quality.NewProfile(cfg.Quality),
		validator:   types.NewSlotValidator(types.DefaultSlotLimits()),
		raster:      raster,
		cache:       cache.NewTiered(budget, recorder, base),
		previews:    previews,
		tokens:      generation.NewAuthority(base),
		tracker:     quality.NewTracker(),
		guard:       resilience.NewGuard(cfg, base),
		previewEdge: previewEdge,
		metrics:     recorder,
		logger:      base.With("component", "pipeline"),
		ctx:         ctx,
		cancel:      cancel,
	}

	if cfg.Placeholder.Enabled {
		p.placeholder = rate.NewLimiter(rate.Limit(cfg.Placeholder.RatePerSecond), max(cfg.Placeholder.Burst, 1))
	}

	sched, err := scheduler.New(cfg, scheduler.Deps{
		Rasterizer: raster,
		Cache:      p.cache,
		Previews:   p.previews,
		Tokens:     p.tokens,
		Tracker:    p.tracker,
		Guard:      p.guard,
		Metrics:    recorder,
		Notifier:   opts.Notifier,
		Logger:     base,
	})
	if err != nil {
		cancel()
		_ = previews.Close()
		return nil, err
	}
	p.sched = sched

	if cfg.Metrics.Enabled {
		publisher := opts.Publisher
		if publisher == nil {
			publisher, err = newPublisher(cfg, base)
			if err != nil {
				p.logger.Warn("Failed to create metrics publisher, using logging publisher", "error", err)
				publisher = metrics.NewLoggingPublisher(base)
			}
		}
		p.publisher = publisher
		p.background = metrics.NewBackgroundPublisher(publisher, cfg.Metrics.PublishInterval, p.health, base)
		p.background.Start(ctx)
	}

	p.logger.Info("Pipeline started",
		"viewport_bytes", budget.ViewportBytes,
		"thumbnail_bytes", budget.ThumbnailBytes,
		"preview_bytes", budget.PreviewBytes,
		"placeholder", cfg.Placeholder.Enabled,
		"metrics", cfg.Metrics.Enabled,
	)
	return p, nil
}

func newPublisher(cfg *config.Config, logger *slog.Logger) (types.Publisher, error) {
	if cfg.Metrics.DataDog.Enabled {
		return datadog.NewPublisher(&cfg.Metrics.DataDog, logger)
	}
	return metrics.NewLoggingPublisher(logger), nil
}

// OpenContext registers a new view of doc and returns its id.
func (p *Pipeline) OpenContext(doc DocumentID) (ContextID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed.Load() {
		return "", types.ErrClosed
	}
	id := ContextID(uuid.NewString())
	p.sched.OpenContext(id, doc)
	p.logger.Debug("Context opened", "context", id, "document", doc)
	return id, nil
}

// CloseContext cancels the context's work and forgets it. Cached artifacts of
// a document no other context shows are released.
func (p *Pipeline) CloseContext(id ContextID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed.Load() {
		return types.ErrClosed
	}
	return p.sched.CloseContext(id)
}

// SwapDocument points a context at another document. Work for the old one
// is canceled and its artifacts released unless another context shows it.
func (p *Pipeline) SwapDocument(id ContextID, doc DocumentID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed.Load() {
		return types.ErrClosed
	}
	return p.sched.SwapDocument(id, doc)
}

// RequestBest returns what slot should paint right now. It never schedules
// work and never fails: when nothing is available the result is the skeleton.
// A lookup that lands on a cached tier refreshes that entry's recency.
func (p *Pipeline) RequestBest(slot Slot, desired RenderQuality) DisplaySource {
	p.mu.Lock()
	defer p.mu.Unlock()

	doc, ok := p.documentFor(slot, desired)
	if !ok {
		return DisplaySource{Kind: types.SourceSkeleton}
	}
	return p.requestBest(slot, doc, desired)
}

func (p *Pipeline) requestBest(slot Slot, doc DocumentID, desired RenderQuality) DisplaySource {
	base := slot.Key(doc, desired)
	src := quality.Resolve(p.cache, p.previews, base, desired)

	if src.Kind != types.SourceTarget {
		if px, ok := p.sched.TakeHandoff(base.Slot()); ok && px.Quality > src.Quality {
			kind := types.SourceLowerTier
			if px.Quality >= desired {
				kind = types.SourceTarget
			}
			return DisplaySource{Pixels: px, Kind: kind, Quality: px.Quality}
		}
	}

	// Recency and hit counters follow the tier that is painted; a preview or
	// skeleton counts as a miss for the desired tier.
	touched := base
	if src.Kind == types.SourceTarget || src.Kind == types.SourceLowerTier {
		touched = base.WithQuality(src.Quality)
	}
	p.cache.Get(touched)
	return src
}

// documentFor validates slot and returns the document its context shows.
func (p *Pipeline) documentFor(slot Slot, q RenderQuality) (DocumentID, bool) {
	if p.closed.Load() {
		return "", false
	}
	if err := p.validator.Validate(slot, q); err != nil {
		return "", false
	}
	return p.sched.Document(slot.Context)
}

// EnsureScheduled makes sure desired is cached, queued or in flight for
// slot. A final-tier request for a slot with nothing better than a preview
// also queues the slot's low tier so the display refines in stages. When the
// slot would otherwise paint the skeleton, the cheapest tier may be rendered
// synchronously, subject to the placeholder rate limit.
func (p *Pipeline) EnsureScheduled(slot Slot, desired RenderQuality, priority Priority) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed.Load() {
		return types.ErrClosed
	}
	if err := p.validator.Validate(slot, desired); err != nil {
		return err
	}
	doc, ok := p.sched.Document(slot.Context)
	if !ok {
		return types.ErrUnknownContext
	}

	base := slot.Key(doc, desired)
	src := quality.Resolve(p.cache, p.previews, base, desired)
	if src.Kind == types.SourceTarget {
		return nil
	}
	if src.Kind == types.SourceSkeleton {
		src = p.renderPlaceholder(slot, doc)
	}

	if desired == types.QualityHighFinal {
		if stage := stagingTier(slot.Kind); src.Quality < stage {
			if err := p.enqueue(slot, stage, priority); err != nil {
				return err
			}
		}
	}
	return p.enqueue(slot, desired, priority)
}

func (p *Pipeline) enqueue(slot Slot, q RenderQuality, priority Priority) error {
	err := p.sched.Enqueue(scheduler.Request{Slot: slot, Quality: q, Priority: priority})
	if errors.Is(err, types.ErrSuppressed) {
		return nil
	}
	return err
}

// stagingTier is the low tier shown while the final tier renders.
func stagingTier(kind types.SlotKind) RenderQuality {
	if kind == types.KindThumbnail {
		return types.QualityLowThumbnail
	}
	return types.QualityLowScroll
}

// renderPlaceholder rasterizes the ultra-low tier on the calling goroutine.
// It returns the skeleton when the limiter, the circuit or the backend says no.
func (p *Pipeline) renderPlaceholder(slot Slot, doc DocumentID) DisplaySource {
	skeleton := DisplaySource{Kind: types.SourceSkeleton}
	if p.placeholder == nil || p.guard.CircuitState() == resilience.StateOpen {
		return skeleton
	}
	if !p.placeholder.Allow() {
		return skeleton
	}

	q := types.QualityUltraLowPreview
	key := slot.Key(doc, q)
	dims, ok := p.profile.TargetDims(slot.LogicalSize(), q, slot.DPR)
	if !ok {
		return skeleton
	}

	timer := metrics.NewTimer(p.timingPublisher(), "placeholder.render", metrics.QualityTag(q))
	img, err := p.raster.Rasterize(p.ctx, doc, slot.Unit, q, dims)
	elapsed := timer.Stop()
	if err == nil && (img == nil || img.Bounds().Empty()) {
		err = types.ErrRaster
	}
	if err != nil {
		p.logger.Debug("Placeholder render failed", "key", key.String(), "error", err)
		return skeleton
	}

	b := img.Bounds()
	if b.Dx() > dims.Width || b.Dy() > dims.Height {
		img = cache.Resample(img, dims)
	}
	px := types.NewPixelBuffer(img, q)
	if _, err := p.cache.Put(key, px); err != nil {
		p.logger.Debug("Placeholder not cached", "key", key.String(), "error", err)
	}
	if p.previewEdge > 0 {
		if err := p.previews.Put(key.Slot(), cache.DerivePreview(px, p.previewEdge)); err != nil {
			p.logger.Debug("Placeholder preview not stored", "key", key.String(), "error", err)
		}
	}

	p.tracker.MarkApplied(key.Slot(), p.sched.Token(slot.Context), q)
	if p.metrics != nil {
		p.metrics.RecordRaster(q, elapsed, nil)
		p.metrics.RecordApplied(q, px.Bytes())
	}
	return DisplaySource{Pixels: px, Kind: types.SourceLowerTier, Quality: q}
}

func (p *Pipeline) timingPublisher() types.Publisher {
	if p.publisher == nil {
		return metrics.NewNoOpPublisher()
	}
	return p.publisher
}

// SlotState returns the read-model state of slot for desired.
func (p *Pipeline) SlotState(slot Slot, desired RenderQuality) QualityState {
	p.mu.Lock()
	defer p.mu.Unlock()

	doc, ok := p.documentFor(slot, desired)
	if !ok {
		return types.StateEmpty
	}
	src := quality.Resolve(p.cache, p.previews, slot.Key(doc, desired), desired)
	return p.tracker.State(slot.SlotKey(doc), p.sched.Token(slot.Context), desired, src)
}

// Tick applies finished results and runs one dispatch cycle. Call it once
// per frame.
func (p *Pipeline) Tick() (applied, started int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed.Load() {
		return 0, 0
	}
	return p.sched.Tick()
}

// OnInvalidate reports a view change. Every reason except scrolling
// invalidates the context's in-flight and queued work.
func (p *Pipeline) OnInvalidate(id ContextID, reason InvalidateReason) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed.Load() {
		return types.ErrClosed
	}
	return p.sched.OnInvalidate(id, reason)
}

// NoteScroll reports a scroll by deltaPx. Movements below the hysteresis
// threshold do not count as interaction; the result reports whether this
// one did.
func (p *Pipeline) NoteScroll(id ContextID, deltaPx float64) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed.Load() {
		return false, types.ErrClosed
	}
	return p.sched.NoteScroll(id, deltaPx)
}

// OnIdle promotes the visible slots and their neighbors to the final tier
// once interaction has settled. It reports whether promotion ran.
func (p *Pipeline) OnIdle(id ContextID) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed.Load() {
		return false, types.ErrClosed
	}
	return p.sched.OnIdle(id)
}

// SetVisible records the strictly visible slots of a context.
func (p *Pipeline) SetVisible(id ContextID, slots []Slot) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed.Load() {
		return types.ErrClosed
	}
	return p.sched.SetVisible(id, slots)
}

// SetUnitCount tells the pipeline how many units the context's document has.
func (p *Pipeline) SetUnitCount(id ContextID, units int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed.Load() {
		return types.ErrClosed
	}
	return p.sched.SetUnitCount(id, units)
}

// Pin protects every tier of slot from eviction until Unpin. Only one slot
// is pinned at a time.
func (p *Pipeline) Pin(slot Slot) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed.Load() {
		return types.ErrClosed
	}
	doc, ok := p.sched.Document(slot.Context)
	if !ok {
		return types.ErrUnknownContext
	}
	p.cache.Pin(slot.SlotKey(doc))
	return nil
}

// Unpin releases the pinned slot.
func (p *Pipeline) Unpin() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cache.Unpin()
}

// ReserveOrEvict frees room for needed bytes in the pool serving kind,
// evicting least recently used artifacts. It fails with ErrCacheExhausted
// when protected entries leave too little room.
func (p *Pipeline) ReserveOrEvict(kind SlotKind, needed int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed.Load() {
		return types.ErrClosed
	}
	evicted, err := p.cache.ReserveOrEvict(needed, kind)
	if err != nil {
		return err
	}
	if len(evicted) > 0 {
		p.logger.Debug("Reserved cache room", "kind", kind.String(), "bytes", needed, "evicted", len(evicted))
	}
	return nil
}

// PrefetchMargin returns the margin in pixels around the viewport that
// should be scheduled at PriorityMargin under the current memory pressure.
func (p *Pipeline) PrefetchMargin() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sched.PrefetchMarginPx()
}

// CacheStats returns pool usage, queue depths and job counters.
func (p *Pipeline) CacheStats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats()
}

func (p *Pipeline) stats() Stats {
	viewport, thumbnail := p.cache.Stats()
	ss := p.sched.Stats()
	return Stats{
		Timestamp:      time.Now(),
		Viewport:       viewport,
		Thumbnail:      thumbnail,
		Preview:        p.previews.Stats(),
		Queues:         ss.Queues,
		Backend:        ss.Backend,
		JobsCanceled:   ss.JobsCanceled,
		JobsDropped:    ss.JobsDropped,
		JobsFailed:     ss.JobsFailed,
		JobsSucceeded:  ss.JobsSucceeded,
		StaleDiscarded: ss.StaleDiscarded,
		FinalGivenUp:   ss.FinalGivenUp,
		Pressure:       ss.Pressure,
	}
}

// Metrics returns the recorder's totals, or an empty snapshot when the
// recorder cannot report them.
func (p *Pipeline) Metrics() MetricsSnapshot {
	if s, ok := p.metrics.(snapshotter); ok {
		return s.Snapshot()
	}
	return MetricsSnapshot{}
}

func (p *Pipeline) health() *types.PublisherHealthMetrics {
	p.mu.Lock()
	stats := p.stats()
	open := p.guard.CircuitState() == resilience.StateOpen
	p.mu.Unlock()
	return metrics.HealthFromStats(stats, p.Metrics(), open)
}

// Close stops the workers and the metrics publisher and releases the caches.
// It is safe to call more than once.
func (p *Pipeline) Close() error {
	if p.closed.Swap(true) {
		return nil
	}

	if p.background != nil {
		p.background.Stop()
	}
	p.cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	if err := p.sched.Close(); err != nil {
		errs = append(errs, err)
	}
	p.cache.Clear()
	if err := p.previews.Close(); err != nil {
		errs = append(errs, err)
	}
	if p.publisher != nil {
		if err := p.publisher.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	p.logger.Info("Pipeline closed")
	return errors.Join(errs...)
}
