// Package scheduler turns cache misses into rasterization jobs. All state is
// owned by the control thread; workers only see JobSpec values and reply on
// a result channel.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/LavishGent/pageturn/internal/cache"
	"github.com/LavishGent/pageturn/internal/config"
	"github.com/LavishGent/pageturn/internal/generation"
	"github.com/LavishGent/pageturn/internal/pressure"
	"github.com/LavishGent/pageturn/internal/quality"
	"github.com/LavishGent/pageturn/internal/resilience"
	"github.com/LavishGent/pageturn/internal/types"
)

// Request asks for one tier of one slot.
type Request struct {
	Slot     types.Slot
	Quality  types.RenderQuality
	Priority types.Priority
}

// Deps are the collaborators of a Scheduler. Rasterizer, Cache and Tokens
// are required; the rest fall back to inert defaults.
type Deps struct {
	Rasterizer types.Rasterizer
	Cache      *cache.Tiered
	Previews   cache.PreviewLayer
	Tokens     *generation.Authority
	Tracker    *quality.Tracker
	Guard      resilience.Guard
	Backoff    *resilience.Backoff
	Pressure   *pressure.Monitor
	Metrics    types.MetricsRecorder
	Notifier   types.Notifier
	Logger     *slog.Logger
	Clock      func() time.Time
}

type phase int

const (
	phaseIdle phase = iota
	phaseSettling
	phaseActive
)

// viewContext is the scheduler's view of one document+view pair.
type viewContext struct {
	id          types.ContextID
	doc         types.DocumentID
	visible     []types.Slot
	units       int
	active      bool
	lastSignal  time.Time
	lastScroll  time.Time
	scrollAccum float64
}

type inflight struct {
	context  types.ContextID
	id       uint64
	token    uint64
	priority types.Priority
}

type failureRecord struct {
	notBefore time.Time
	context   types.ContextID
	token     uint64
	attempts  int
}

type suppression struct {
	context types.ContextID
	token   uint64
}

// handoff is a rendered artifact that could not be admitted to the cache.
// It is served once by TakeHandoff.
type handoff struct {
	pixels  *types.PixelBuffer
	key     types.CacheKey
	context types.ContextID
	token   uint64
}

// Scheduler owns the job queues, the in-flight index and the worker pool.
// Apart from Close, its methods must be called from one goroutine at a time.
type Scheduler struct {
	cfg         config.SchedulerConfig
	interaction config.InteractionConfig
	profile     quality.Profile
	validator   *types.SlotValidator
	previewEdge int
	reliefRatio float64

	raster   types.Rasterizer
	cache    *cache.Tiered
	previews cache.PreviewLayer
	tokens   *generation.Authority
	tracker  *quality.Tracker
	guard    resilience.Guard
	backoff  *resilience.Backoff
	pressure *pressure.Monitor
	metrics  types.MetricsRecorder
	notify   types.Notifier
	logger   *slog.Logger
	now      func() time.Time

	contexts map[types.ContextID]*viewContext
	low      *jobQueue
	high     *jobQueue
	queued   map[types.CacheKey]*Job
	inflight map[types.CacheKey]inflight
	handoffs map[types.SlotKey]handoff

	failures   *lru.Cache[types.CacheKey, failureRecord]
	suppressed *lru.Cache[types.CacheKey, suppression]

	nextID   uint64
	seq      uint64
	lastTrim time.Time

	work    chan JobSpec
	results chan Result
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	closed  atomic.Bool

	jobsCanceled   atomic.Int64
	jobsDropped    atomic.Int64
	jobsFailed     atomic.Int64
	jobsSucceeded  atomic.Int64
	staleDiscarded atomic.Int64
}

// New creates a scheduler and starts its workers.
func New(cfg *config.Config, deps Deps) (*Scheduler, error) {
	if deps.Rasterizer == nil {
		return nil, errors.New("scheduler: rasterizer is required")
	}
	if deps.Cache == nil || deps.Tokens == nil {
		return nil, errors.New("scheduler: cache and token authority are required")
	}

	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Previews == nil {
		deps.Previews = cache.NewDisabledPreviewStore()
	}
	if deps.Tracker == nil {
		deps.Tracker = quality.NewTracker()
	}
	if deps.Guard == nil {
		deps.Guard = resilience.NewGuard(cfg, deps.Logger)
	}
	if deps.Backoff == nil {
		deps.Backoff = resilience.NewBackoff(cfg.Retry)
	}
	if deps.Pressure == nil {
		deps.Pressure = pressure.NewMonitor(cfg.Pressure, deps.Logger)
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}

	sc := cfg.Scheduler
	tracked := sc.MaxTrackedFailures
	if tracked <= 0 {
		tracked = 4096
	}
	failures, err := lru.New[types.CacheKey, failureRecord](tracked)
	if err != nil {
		return nil, fmt.Errorf("scheduler: failure index: %w", err)
	}
	suppressed, err := lru.New[types.CacheKey, suppression](tracked)
	if err != nil {
		return nil, fmt.Errorf("scheduler: suppression index: %w", err)
	}

	workers := max(sc.Workers, 1)
	ctx, cancel := context.WithCancel(context.Background())

	s := &Scheduler{
		cfg:         sc,
		interaction: cfg.Interaction,
		reliefRatio: cfg.Pressure.HotRatio,
		profile:     quality.NewProfile(cfg.Quality),
		validator:   types.NewSlotValidator(types.DefaultSlotLimits()),
		raster:      deps.Rasterizer,
		cache:       deps.Cache,
		previews:    deps.Previews,
		tokens:      deps.Tokens,
		tracker:     deps.Tracker,
		guard:       deps.Guard,
		backoff:     deps.Backoff,
		pressure:    deps.Pressure,
		metrics:     deps.Metrics,
		notify:      deps.Notifier,
		logger:      deps.Logger.With("component", "scheduler"),
		now:         deps.Clock,
		contexts:    make(map[types.ContextID]*viewContext),
		low:         newJobQueue("low", sc.MaxQueuedLow),
		high:        newJobQueue("high", sc.MaxQueuedHigh),
		queued:      make(map[types.CacheKey]*Job),
		inflight:    make(map[types.CacheKey]inflight),
		handoffs:    make(map[types.SlotKey]handoff),
		failures:    failures,
		suppressed:  suppressed,
		work:        make(chan JobSpec, max(sc.MaxInFlight, workers)),
		results:     make(chan Result, max(sc.ResultBuffer, sc.MaxInFlight, 1)),
		ctx:         ctx,
		cancel:      cancel,
	}
	if cfg.Preview.Enabled {
		s.previewEdge = cfg.Preview.MaxEdgePx
	}

	s.pressure.OnShift(func(from, to pressure.State) {
		if s.metrics != nil {
			s.metrics.RecordPressureChange(from.String(), to.String())
		}
	})

	for i := range workers {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.logger.Info("Scheduler started",
		"workers", workers,
		"max_in_flight", sc.MaxInFlight,
		"max_queued_low", sc.MaxQueuedLow,
		"max_queued_high", sc.MaxQueuedHigh,
	)
	return s, nil
}

// OpenContext registers a document+view context and returns its token.
func (s *Scheduler) OpenContext(id types.ContextID, doc types.DocumentID) uint64 {
	if _, ok := s.contexts[id]; !ok {
		s.contexts[id] = &viewContext{id: id, doc: doc}
	}
	return s.tokens.Register(id)
}

// CloseContext cancels the context's work and forgets it. Artifacts of a
// document no other context shows are released.
func (s *Scheduler) CloseContext(id types.ContextID) error {
	vc, ok := s.contexts[id]
	if !ok {
		return types.ErrUnknownContext
	}
	s.cancelContext(id)
	s.cache.SetVisible(id, nil)
	s.tokens.Forget(id)
	delete(s.contexts, id)
	s.releaseDocument(vc.doc)
	return nil
}

// Document returns the document shown by a context.
func (s *Scheduler) Document(id types.ContextID) (types.DocumentID, bool) {
	vc, ok := s.contexts[id]
	if !ok {
		return "", false
	}
	return vc.doc, true
}

// SetUnitCount bounds the neighbor ring used for idle promotion. Zero means
// unbounded.
func (s *Scheduler) SetUnitCount(id types.ContextID, units int) error {
	vc, ok := s.contexts[id]
	if !ok {
		return types.ErrUnknownContext
	}
	vc.units = max(units, 0)
	return nil
}

// SetVisible records the strictly visible slots of a context. They drive
// idle promotion and the cache's eviction protection.
func (s *Scheduler) SetVisible(id types.ContextID, slots []types.Slot) error {
	vc, ok := s.contexts[id]
	if !ok {
		return types.ErrUnknownContext
	}
	vc.visible = append(vc.visible[:0], slots...)

	views := make([]types.ViewKey, 0, len(slots))
	for _, sl := range slots {
		views = append(views, sl.ViewKey(vc.doc))
	}
	s.cache.SetVisible(id, views)
	return nil
}

// Enqueue schedules req unless the tier is cached, already queued or in
// flight under the current token, or suppressed for that token.
func (s *Scheduler) Enqueue(req Request) error {
	if s.closed.Load() {
		return types.ErrClosed
	}
	vc, ok := s.contexts[req.Slot.Context]
	if !ok {
		return types.ErrUnknownContext
	}
	if err := s.validator.Validate(req.Slot, req.Quality); err != nil {
		return err
	}
	if req.Priority < types.PriorityBackground || req.Priority > types.PriorityVisible {
		req.Priority = types.PriorityBackground
	}
	return s.enqueue(vc, req)
}

func (s *Scheduler) enqueue(vc *viewContext, req Request) error {
	key := req.Slot.Key(vc.doc, req.Quality)
	token := s.tokens.Current(vc.id)

	if s.cache.Contains(key) {
		return nil
	}

	if j, ok := s.queued[key]; ok {
		if s.tokens.Valid(j.Context, j.Token) {
			s.queueFor(key.Quality).raise(j, req.Priority)
			return nil
		}
		s.queueFor(key.Quality).remove(j)
		s.forgetQueued(j)
	}

	if inf, ok := s.inflight[key]; ok && s.tokens.Valid(inf.context, inf.token) {
		return nil
	}

	if sup, ok := s.suppressed.Get(key); ok {
		if s.tokens.Valid(sup.context, sup.token) {
			return types.ErrSuppressed
		}
		s.suppressed.Remove(key)
	}

	attempt := 0
	if rec, ok := s.failures.Peek(key); ok && rec.context == vc.id && rec.token == token {
		attempt = rec.attempts
	}

	target, clamped := s.profile.TargetDims(req.Slot.LogicalSize(), req.Quality, req.Slot.DPR)
	if clamped {
		s.logger.Debug("Oversize request clamped",
			"key", key.String(),
			"width", target.Width,
			"height", target.Height,
		)
	}

	s.nextID++
	s.seq++
	j := &Job{
		EnqueuedAt: s.now(),
		Key:        key,
		Context:    vc.id,
		Target:     target,
		ID:         s.nextID,
		Token:      token,
		Seq:        s.seq,
		Priority:   req.Priority,
		Attempt:    attempt,
		Clamped:    clamped,
	}
	s.push(j)
	return nil
}

func (s *Scheduler) queueFor(q types.RenderQuality) *jobQueue {
	if q.IsLow() {
		return s.low
	}
	return s.high
}

func (s *Scheduler) push(j *Job) {
	dropped := s.queueFor(j.Key.Quality).push(j)
	if dropped != j {
		s.queued[j.Key] = j
		s.tracker.MarkPending(j.Key.Slot(), j.Token, j.Key.Quality)
	}
	if dropped == nil {
		return
	}
	if dropped != j {
		s.forgetQueued(dropped)
	}
	s.jobsDropped.Add(1)
	if s.metrics != nil {
		s.metrics.RecordDropped(dropped.Key.Quality)
	}
	s.logger.Debug("Queue full, job dropped",
		"queue", s.queueFor(dropped.Key.Quality).name,
		"key", dropped.Key.String(),
		"priority", dropped.Priority.String(),
	)
}

func (s *Scheduler) forgetQueued(j *Job) {
	if cur, ok := s.queued[j.Key]; ok && cur == j {
		delete(s.queued, j.Key)
	}
	s.tracker.ClearPending(j.Key.Slot(), j.Token, j.Key.Quality)
}

// Tick applies finished results and runs one dispatch cycle.
func (s *Scheduler) Tick() (applied, started int) {
	applied = s.Drain()
	started = s.Dispatch()
	return applied, started
}

// Dispatch starts up to the per-cycle budget of low- and high-quality jobs.
func (s *Scheduler) Dispatch() int {
	if s.closed.Load() {
		return 0
	}
	now := s.now()

	state := s.pressure.Evaluate(s.cache.UsageRatio(), s.low.capacity > 0 && s.low.Len() >= s.low.capacity)
	if state == pressure.StateCritical && s.high.Len() > 0 {
		dropped := s.high.removeIf(func(*Job) bool { return true })
		for _, j := range dropped {
			s.forgetQueued(j)
			if s.metrics != nil {
				s.metrics.RecordDropped(j.Key.Quality)
			}
		}
		s.jobsDropped.Add(int64(len(dropped)))
		s.logger.Warn("Critical memory pressure, high-quality queue cleared", "dropped", len(dropped))
	}
	if state == pressure.StateCritical && s.reliefRatio > 0 {
		if evicted := s.cache.TrimToRatio(s.reliefRatio); len(evicted) > 0 {
			s.logger.Warn("Critical memory pressure, cache trimmed", "evicted", len(evicted), "ratio", s.reliefRatio)
		}
	}

	started := s.dispatchClass(s.low, s.cfg.MaxLowPerCycle, now, state, false)
	started += s.dispatchClass(s.high, s.cfg.MaxHighPerCycle, now, state, true)
	return started
}

func (s *Scheduler) dispatchClass(q *jobQueue, budget int, now time.Time, state pressure.State, high bool) int {
	started := 0
	var deferred []*Job
	defer func() {
		for _, j := range deferred {
			q.requeue(j)
		}
	}()

	for started < budget {
		j := q.pop()
		if j == nil {
			break
		}

		vc, ok := s.contexts[j.Context]
		if !ok || !s.tokens.Valid(j.Context, j.Token) {
			s.forgetQueued(j)
			s.recordStale("dispatch", j.Key)
			continue
		}
		if s.cache.Contains(j.Key) {
			s.forgetQueued(j)
			continue
		}
		if rec, ok := s.failures.Peek(j.Key); ok && rec.token == j.Token && now.Before(rec.notBefore) {
			deferred = append(deferred, j)
			continue
		}
		if high && !s.highAllowed(j, vc, now, state) {
			deferred = append(deferred, j)
			continue
		}

		if err := s.guard.Admit(); err != nil {
			deferred = append(deferred, j)
			break
		}
		if !s.send(j) {
			s.guard.Done(nil, false)
			deferred = append(deferred, j)
			break
		}
		started++
	}
	return started
}

func (s *Scheduler) send(j *Job) bool {
	select {
	case s.work <- j.Spec():
	default:
		return false
	}

	delete(s.queued, j.Key)
	s.inflight[j.Key] = inflight{
		context:  j.Context,
		id:       j.ID,
		token:    j.Token,
		priority: j.Priority,
	}
	if s.metrics != nil {
		s.metrics.RecordDispatch(j.Key.Quality, j.Priority)
	}
	s.logger.Debug("Job dispatched",
		"key", j.Key.String(),
		"priority", j.Priority.String(),
		"attempt", j.Attempt+1,
		"queued_for", s.now().Sub(j.EnqueuedAt),
	)
	return true
}

// highAllowed applies the interaction and pressure policy to an HQ job.
func (s *Scheduler) highAllowed(j *Job, vc *viewContext, now time.Time, state pressure.State) bool {
	if state == pressure.StateCritical {
		return false
	}
	// A tier already shown this generation is restored even mid-gesture.
	if s.tracker.Applied(j.Key.Slot(), j.Token) == types.QualityHighFinal {
		return true
	}
	switch s.phase(vc, now) {
	case phaseIdle:
		return true
	case phaseActive:
		return false
	default:
		return state.AllowsHighQuality() && !s.lowDebt(vc.id)
	}
}

func (s *Scheduler) phase(vc *viewContext, now time.Time) phase {
	if !vc.active {
		return phaseIdle
	}
	if now.Sub(vc.lastSignal) < s.interaction.ScrollIdleDebounce {
		return phaseActive
	}
	return phaseSettling
}

func (s *Scheduler) lowDebt(id types.ContextID) bool {
	if s.low.count(func(j *Job) bool { return j.Context == id }) > 0 {
		return true
	}
	for key, inf := range s.inflight {
		if inf.context == id && key.Quality.IsLow() {
			return true
		}
	}
	return false
}

// Drain applies every finished result without blocking.
func (s *Scheduler) Drain() int {
	n := 0
	for {
		select {
		case r := <-s.results:
			s.apply(r)
			n++
		default:
			return n
		}
	}
}

func (s *Scheduler) apply(r Result) {
	spec := r.Spec
	key := spec.Key
	slot := key.Slot()

	inf, tracked := s.inflight[key]
	current := tracked && inf.id == spec.ID
	if current {
		delete(s.inflight, key)
	}

	if !current || !s.tokens.Valid(spec.Context, spec.Token) {
		s.guard.Done(r.Err, false)
		if current {
			s.tracker.ClearPending(slot, spec.Token, key.Quality)
		}
		stage := "apply"
		if r.Skipped {
			stage = "worker"
		}
		s.recordStale(stage, key)
		return
	}

	if s.metrics != nil {
		s.metrics.RecordRaster(key.Quality, r.Latency, r.Err)
	}

	if r.Err != nil {
		s.guard.Done(r.Err, !errors.Is(r.Err, context.Canceled))
		s.handleFailure(spec, inf.priority, r.Err)
		return
	}
	s.guard.Done(nil, true)
	s.failures.Remove(key)

	px := types.NewPixelBuffer(r.Image, key.Quality)
	if _, err := s.cache.Put(key, px); err != nil {
		s.handoffs[slot] = handoff{pixels: px, key: key, context: spec.Context, token: spec.Token}
		s.suppressed.Add(key, suppression{context: spec.Context, token: spec.Token})
		s.logger.Warn("Artifact not admitted, serving once",
			"key", key.String(),
			"bytes", px.Bytes(),
			"error", err,
		)
	}

	if r.Preview != nil {
		if err := s.previews.Put(slot, r.Preview); err != nil {
			s.logger.Debug("Preview not stored", "slot", slot.String(), "error", err)
		}
	}

	s.tracker.MarkApplied(slot, spec.Token, key.Quality)
	s.jobsSucceeded.Add(1)
	if s.metrics != nil {
		s.metrics.RecordApplied(key.Quality, px.Bytes())
	}
	if s.notify != nil {
		s.notify(slot, key.Quality)
	}
}

func (s *Scheduler) handleFailure(spec JobSpec, priority types.Priority, err error) {
	key := spec.Key
	s.jobsFailed.Add(1)

	attempts := 1
	if rec, ok := s.failures.Peek(key); ok && rec.context == spec.Context && rec.token == spec.Token {
		attempts = rec.attempts + 1
	}

	if !types.IsRetryable(err) {
		s.suppress(spec, attempts, err)
		return
	}
	notBefore, ok := s.backoff.Next(attempts, s.now())
	if !ok {
		s.suppress(spec, attempts, err)
		return
	}

	s.failures.Add(key, failureRecord{
		notBefore: notBefore,
		context:   spec.Context,
		token:     spec.Token,
		attempts:  attempts,
	})

	s.nextID++
	s.seq++
	s.push(&Job{
		EnqueuedAt: s.now(),
		Key:        key,
		Context:    spec.Context,
		Target:     spec.Target,
		ID:         s.nextID,
		Token:      spec.Token,
		Seq:        s.seq,
		Priority:   priority,
		Attempt:    attempts,
	})
}

func (s *Scheduler) suppress(spec JobSpec, attempts int, err error) {
	s.failures.Remove(spec.Key)
	s.suppressed.Add(spec.Key, suppression{context: spec.Context, token: spec.Token})
	s.tracker.MarkGivenUp(spec.Key.Slot(), spec.Token, spec.Key.Quality)
	if s.metrics != nil {
		s.metrics.RecordSuppressed(spec.Key.Quality)
	}
	s.logger.Warn("Render suppressed until next generation",
		"key", spec.Key.String(),
		"attempts", attempts,
		"error", err,
	)
}

func (s *Scheduler) recordStale(stage string, key types.CacheKey) {
	s.staleDiscarded.Add(1)
	if s.metrics != nil {
		s.metrics.RecordStale(stage)
	}
	s.logger.Debug("Stale job discarded", "stage", stage, "key", key.String())
}

// OnInvalidate marks the context active. Every reason but scrolling also
// bumps the generation and cancels the context's queued and in-flight jobs.
func (s *Scheduler) OnInvalidate(id types.ContextID, reason types.InvalidateReason) error {
	vc, ok := s.contexts[id]
	if !ok {
		return types.ErrUnknownContext
	}
	now := s.now()
	vc.active = true
	vc.lastSignal = now

	if !reason.BumpsGeneration() {
		return nil
	}

	token := s.tokens.Bump(id)
	canceled := s.cancelContext(id)
	s.logger.Debug("Context invalidated",
		"context", id,
		"reason", reason.String(),
		"token", token,
		"canceled", canceled,
	)
	return nil
}

// SwapDocument points a context at another document.
func (s *Scheduler) SwapDocument(id types.ContextID, doc types.DocumentID) error {
	vc, ok := s.contexts[id]
	if !ok {
		return types.ErrUnknownContext
	}
	old := vc.doc
	vc.doc = doc
	vc.visible = nil
	vc.units = 0
	s.cache.SetVisible(id, nil)
	if err := s.OnInvalidate(id, types.ReasonDocumentSwap); err != nil {
		return err
	}
	if old != doc {
		s.releaseDocument(old)
	}
	return nil
}

// cancelContext purges the context's queued jobs and forgets its in-flight
// ones. Their results are discarded by the job id check when they arrive.
func (s *Scheduler) cancelContext(id types.ContextID) int {
	mine := func(j *Job) bool { return j.Context == id }

	n := 0
	for _, q := range []*jobQueue{s.low, s.high} {
		for _, j := range q.removeIf(mine) {
			s.forgetQueued(j)
			n++
		}
	}
	for key, inf := range s.inflight {
		if inf.context == id {
			delete(s.inflight, key)
			n++
		}
	}
	for slot, h := range s.handoffs {
		if h.context == id {
			delete(s.handoffs, slot)
		}
	}

	if n > 0 {
		s.jobsCanceled.Add(int64(n))
		if s.metrics != nil {
			s.metrics.RecordCanceled(n)
		}
	}
	return n
}

func (s *Scheduler) releaseDocument(doc types.DocumentID) {
	for _, vc := range s.contexts {
		if vc.doc == doc {
			return
		}
	}
	dropped := s.cache.InvalidateDocument(doc)
	previews := s.previews.InvalidateDocument(doc)
	s.tracker.ForgetDocument(doc)
	for slot := range s.handoffs {
		if slot.Document == doc {
			delete(s.handoffs, slot)
		}
	}
	s.logger.Info("Document released", "document", doc, "entries", dropped, "previews", previews)
}

// NoteScroll accumulates scroll distance. Movement below the micro-scroll
// hysteresis does not count as interaction; it reports whether the context
// became active.
func (s *Scheduler) NoteScroll(id types.ContextID, deltaPx float64) (bool, error) {
	vc, ok := s.contexts[id]
	if !ok {
		return false, types.ErrUnknownContext
	}
	now := s.now()
	if now.Sub(vc.lastScroll) > s.interaction.ScrollIdleDebounce {
		vc.scrollAccum = 0
	}
	vc.lastScroll = now
	vc.scrollAccum += math.Abs(deltaPx)
	if vc.scrollAccum < s.interaction.MicroScrollHysteresisPx {
		return false, nil
	}
	vc.scrollAccum = 0
	vc.active = true
	vc.lastSignal = now
	return true, nil
}

// OnIdle promotes the visible set to HighQualityFinal once the context has
// been quiet for the settle debounce. Queued HQ jobs for slots that left the
// visible ring are canceled. It reports whether promotion ran.
func (s *Scheduler) OnIdle(id types.ContextID) (bool, error) {
	vc, ok := s.contexts[id]
	if !ok {
		return false, types.ErrUnknownContext
	}
	if s.closed.Load() {
		return false, types.ErrClosed
	}
	now := s.now()
	if vc.active && now.Sub(vc.lastSignal) < s.interaction.IdleSettleDebounce {
		return false, nil
	}
	vc.active = false

	wanted := s.promotionSet(vc)
	keep := make(map[types.CacheKey]struct{}, len(wanted))
	for _, req := range wanted {
		keep[req.Slot.Key(vc.doc, types.QualityHighFinal)] = struct{}{}
	}

	superseded := s.high.removeIf(func(j *Job) bool {
		_, ok := keep[j.Key]
		return j.Context == id && !ok
	})
	for _, j := range superseded {
		s.forgetQueued(j)
	}
	if n := len(superseded); n > 0 {
		s.jobsCanceled.Add(int64(n))
		if s.metrics != nil {
			s.metrics.RecordCanceled(n)
		}
	}

	for _, req := range wanted {
		if err := s.enqueue(vc, req); err != nil && !errors.Is(err, types.ErrSuppressed) {
			s.logger.Debug("Promotion skipped", "unit", req.Slot.Unit, "error", err)
		}
	}

	s.maybeTrim(now)
	return true, nil
}

// promotionSet lists HQ requests for the visible slots followed by a ring of
// neighbors whose radius shrinks with memory pressure.
func (s *Scheduler) promotionSet(vc *viewContext) []Request {
	if len(vc.visible) == 0 {
		return nil
	}

	type unitKey struct {
		kind types.SlotKind
		unit int
	}
	seen := make(map[unitKey]struct{}, len(vc.visible))
	out := make([]Request, 0, len(vc.visible)*3)

	visible := append([]types.Slot(nil), vc.visible...)
	sort.SliceStable(visible, func(i, j int) bool { return visible[i].Unit < visible[j].Unit })

	for _, sl := range visible {
		uk := unitKey{sl.Kind, sl.Unit}
		if _, dup := seen[uk]; dup {
			continue
		}
		seen[uk] = struct{}{}
		out = append(out, Request{Slot: sl, Quality: types.QualityHighFinal, Priority: types.PriorityVisible})
	}

	radius := s.ringRadius()
	for d := 1; d <= radius; d++ {
		for _, sl := range visible {
			for _, u := range []int{sl.Unit - d, sl.Unit + d} {
				if u < 0 || (vc.units > 0 && u >= vc.units) {
					continue
				}
				uk := unitKey{sl.Kind, u}
				if _, dup := seen[uk]; dup {
					continue
				}
				seen[uk] = struct{}{}
				n := sl
				n.Unit = u
				out = append(out, Request{Slot: n, Quality: types.QualityHighFinal, Priority: types.PriorityAdjacent})
			}
		}
	}
	return out
}

func (s *Scheduler) ringRadius() int {
	base := s.cfg.HighRingRadius
	if base <= 0 {
		return 0
	}
	normal := s.pressure.BufferFor(pressure.StateNormal)
	if normal <= 0 {
		return base
	}
	r := int(math.Ceil(float64(base) * float64(s.pressure.RenderBufferPx()) / float64(normal)))
	return min(max(r, 0), base)
}

// PrefetchMarginPx returns how far beyond the viewport consumers should
// request low-quality tiers under the current memory pressure.
func (s *Scheduler) PrefetchMarginPx() int {
	return s.pressure.RenderBufferPx()
}

// maybeTrim drops low tiers made redundant by a cached HQ copy. Visible
// slots are trimmed on every idle; Hot pressure trims every slot.
func (s *Scheduler) maybeTrim(now time.Time) {
	if !s.lastTrim.IsZero() && now.Sub(s.lastTrim) < s.interaction.IdleTrimCooldown {
		return
	}
	s.lastTrim = now

	n := 0
	if s.pressure.State().NeedsTrim() {
		n = s.cache.TrimAllRedundant()
	} else {
		for _, vc := range s.contexts {
			if vc.active {
				continue
			}
			for _, sl := range vc.visible {
				n += s.cache.TrimRedundant(sl.ViewKey(vc.doc))
			}
		}
	}
	if n > 0 {
		s.logger.Debug("Idle trim", "removed", n, "pressure", s.pressure.State().String())
	}
}

// TakeHandoff returns, once, an artifact for slot that rendered under the
// current token but did not fit its pool.
func (s *Scheduler) TakeHandoff(slot types.SlotKey) (*types.PixelBuffer, bool) {
	h, ok := s.handoffs[slot]
	if !ok {
		return nil, false
	}
	delete(s.handoffs, slot)
	if !s.tokens.Valid(h.context, h.token) {
		return nil, false
	}
	return h.pixels, true
}

// Token returns the current generation token of a context.
func (s *Scheduler) Token(id types.ContextID) uint64 {
	return s.tokens.Current(id)
}

// Tracker returns the quality-state read model.
func (s *Scheduler) Tracker() *quality.Tracker {
	return s.tracker
}

// Pressure returns the current memory pressure state.
func (s *Scheduler) Pressure() pressure.State {
	return s.pressure.State()
}

// Stats returns queue depths and job counters.
func (s *Scheduler) Stats() Stats {
	suppressed, givenUp := s.suppressionStats()
	gs := s.guard.Stats()
	return Stats{
		Queues: types.QueueStats{
			LowQueued:  s.low.Len(),
			HighQueued: s.high.Len(),
			InFlight:   len(s.inflight),
			Suppressed: suppressed,
		},
		Backend: types.BackendStats{
			Circuit:      s.guard.CircuitState().String(),
			InFlight:     gs.Gate.InFlight,
			Capacity:     gs.Gate.Capacity,
			Admitted:     gs.Gate.TotalAdmitted,
			Rejected:     gs.Gate.TotalRejected,
			CircuitTrips: gs.Circuit.Trips,
		},
		JobsCanceled:   s.jobsCanceled.Load(),
		JobsDropped:    s.jobsDropped.Load(),
		JobsFailed:     s.jobsFailed.Load(),
		JobsSucceeded:  s.jobsSucceeded.Load(),
		StaleDiscarded: s.staleDiscarded.Load(),
		FinalGivenUp:   givenUp,
		Pressure:       s.pressure.State().String(),
	}
}

// suppressionStats counts the keys suppressed under their context's current
// token, and among them the slots whose final tier was given up.
func (s *Scheduler) suppressionStats() (suppressed, finalGivenUp int) {
	for _, key := range s.suppressed.Keys() {
		sup, ok := s.suppressed.Peek(key)
		if !ok || !s.tokens.Valid(sup.context, sup.token) {
			continue
		}
		suppressed++
		if key.Quality == types.QualityHighFinal && s.tracker.GivenUp(key.Slot(), sup.token, types.QualityHighFinal) {
			finalGivenUp++
		}
	}
	return suppressed, finalGivenUp
}

// Stats is a snapshot of scheduler counters.
type Stats struct {
	Pressure       string
	Queues         types.QueueStats
	Backend        types.BackendStats
	JobsCanceled   int64
	JobsDropped    int64
	JobsFailed     int64
	JobsSucceeded  int64
	StaleDiscarded int64
	FinalGivenUp   int
}

// Close stops the workers. In-flight rasterizations see a canceled context;
// Close waits for them up to the configured shutdown timeout.
func (s *Scheduler) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.cancel()
	close(s.work)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	select {
	case <-done:
		s.logger.Info("Scheduler stopped")
		return nil
	case <-time.After(timeout):
		s.logger.Error("Scheduler workers did not stop", "timeout", timeout)
		return types.ErrShutdownTimeout
	}
}
