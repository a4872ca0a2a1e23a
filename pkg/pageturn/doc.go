// Package pageturn is the render pipeline core of a document viewer: a
// quality-staged scheduler and byte-bounded cache that turn page and
// thumbnail rasterization requests into progressively refined images.
//
// The consumer owns the control thread. It asks what to paint with
// RequestBest, asks for work with EnsureScheduled and advances the pipeline
// once per frame with Tick. Rasterization runs on a bounded worker pool and
// results are applied on the next Tick, so no call blocks on the backend
// except the optional first-paint placeholder.
//
// # Features
//
//   - Four ordered tiers: ultra-low preview, low thumbnail, low scroll and final
//   - Never blank: lookups fall back through lower tiers and a shared preview store
//   - Generation tokens: zoom, rotation, document swap and deep jumps cancel stale work
//   - Byte-accurate LRU pools for the viewport and the thumbnail rail
//   - Memory pressure states that trim redundant tiers and hold back final renders
//   - Retry with backoff, an in-flight gate and a circuit breaker around the backend
//   - Observability: metrics tracking with logging and DataDog publishers
//
// # Quick Start
//
//	p, err := pageturn.New(myRasterizer)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer p.Close()
//
//	view, _ := p.OpenContext("report.pdf")
//	slot := pageturn.Slot{
//	    Context: view,
//	    Unit:    0,
//	    Kind:    pageturn.KindPage,
//	    Size:    pageturn.Size{Width: 612, Height: 792},
//	    Zoom:    1,
//	    DPR:     2,
//	}
//
// # Frame Loop
//
// Each frame, paint what is available and ask for what is missing:
//
//	src := p.RequestBest(slot, pageturn.QualityHighFinal)
//	paint(src)
//	_ = p.EnsureScheduled(slot, pageturn.QualityHighFinal, pageturn.PriorityVisible)
//	p.Tick()
//
// Interaction events are reported as they happen:
//
//	p.NoteScroll(view, dy)
//	p.OnInvalidate(view, pageturn.ReasonZoom)
//	p.OnIdle(view)
//
// # Observability
//
// Pass a recorder with WithMetrics, or enable metrics in the config to get
// the built-in tracker and a background publisher:
//
//	cfg := pageturn.Config()
//	cfg.Metrics.Enabled = true
//	cfg.Metrics.DataDog.Enabled = true
//	p, err := pageturn.NewFromConfig(cfg, myRasterizer)
//
// CacheStats returns pool usage, queue depths and job counters at any time.
package pageturn
