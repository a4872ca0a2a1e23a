package pageturn_test

import (
	"context"
	"image"
	"testing"

	"github.com/LavishGent/pageturn/pkg/pageturn"
)

var instant = pageturn.RasterizerFunc(func(_ context.Context, _ pageturn.DocumentID, _ int, _ pageturn.RenderQuality, dims pageturn.Dims) (*image.RGBA, error) {
	return image.NewRGBA(image.Rect(0, 0, dims.Width, dims.Height)), nil
})

func benchPipeline(b *testing.B) (*pageturn.Pipeline, pageturn.ContextID) {
	b.Helper()
	cfg := pageturn.TestConfig()
	cfg.Budget.TotalBytes = 64 << 20
	cfg.Preview.Enabled = false
	p, err := pageturn.NewFromConfig(cfg, instant)
	if err != nil {
		b.Fatal(err)
	}
	id, err := p.OpenContext("bench")
	if err != nil {
		b.Fatal(err)
	}
	return p, id
}

func benchSlot(id pageturn.ContextID, unit int) pageturn.Slot {
	return pageturn.Slot{
		Context: id,
		Unit:    unit,
		Kind:    pageturn.KindPage,
		Size:    pageturn.Size{Width: 64, Height: 64},
		Zoom:    1,
		DPR:     1,
	}
}

func BenchmarkRequestBest_Hit(b *testing.B) {
	p, id := benchPipeline(b)
	defer p.Close()

	// Pre-populate cache
	for i := 0; i < 100; i++ {
		_ = p.EnsureScheduled(benchSlot(id, i), pageturn.QualityLowScroll, pageturn.PriorityVisible)
	}
	for p.CacheStats().JobsSucceeded < 100 {
		p.Tick()
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = p.RequestBest(benchSlot(id, i%100), pageturn.QualityLowScroll)
	}
}

func BenchmarkRequestBest_Miss(b *testing.B) {
	p, id := benchPipeline(b)
	defer p.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = p.RequestBest(benchSlot(id, i%1000), pageturn.QualityHighFinal)
	}
}

func BenchmarkEnsureScheduled_Dedup(b *testing.B) {
	p, id := benchPipeline(b)
	defer p.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = p.EnsureScheduled(benchSlot(id, i%4), pageturn.QualityLowScroll, pageturn.PriorityVisible)
	}
}

func BenchmarkRequestBest_Parallel(b *testing.B) {
	p, id := benchPipeline(b)
	defer p.Close()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			_ = p.RequestBest(benchSlot(id, i%100), pageturn.QualityHighFinal)
			i++
		}
	})
}
