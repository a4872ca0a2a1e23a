package datadog

import (
	"slices"
	"sync"
	"testing"

	"github.com/DataDog/datadog-go/v5/statsd"

	"github.com/LavishGent/pageturn/internal/config"
	"github.com/LavishGent/pageturn/internal/metrics"
	"github.com/LavishGent/pageturn/internal/types"
)

type gauge struct {
	name  string
	value float64
	tags  []string
}

type recordingClient struct {
	statsd.NoOpClient

	mu     sync.Mutex
	gauges []gauge
	closed bool
}

func (c *recordingClient) Gauge(name string, value float64, tags []string, _ float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gauges = append(c.gauges, gauge{name: name, value: value, tags: tags})
	return nil
}

func (c *recordingClient) Close() error {
	c.closed = true
	return nil
}

func (c *recordingClient) find(name string, tag string) (gauge, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, g := range c.gauges {
		if g.name == name && (tag == "" || slices.Contains(g.tags, tag)) {
			return g, true
		}
	}
	return gauge{}, false
}

func TestNewPublisherDisabled(t *testing.T) {
	p, err := NewPublisher(&config.DataDogConfig{Enabled: false}, nil)
	if err != nil {
		t.Fatalf("NewPublisher() error = %v", err)
	}
	if _, ok := p.(*metrics.NoOpPublisher); !ok {
		t.Errorf("NewPublisher() = %T, want *metrics.NoOpPublisher", p)
	}
}

func TestPublishHealthMetrics(t *testing.T) {
	client := &recordingClient{}
	p := newWithClient(client, &config.DataDogConfig{Tags: []string{"env:test"}}, nil)

	p.PublishHealthMetrics(&types.PublisherHealthMetrics{
		ViewportUsedBytes:   700,
		ViewportBudgetBytes: 1000,
		UsagePercentage:     140,
		HitRatio:            1.5,
		AverageRasterMs:     -3,
		FinalGivenUp:        2,
		PressureLevel:       "critical",
		CircuitOpen:         true,
	})

	tests := []struct {
		name string
		tag  string
		want float64
	}{
		{"cache.used_bytes", "pool:viewport", 700},
		{"cache.budget_bytes", "pool:viewport", 1000},
		{"cache.usage_percentage", "", 100},
		{"performance.hit_ratio", "", 1},
		{"performance.average_raster_ms", "", 0},
		{"scheduler.final_given_up", "", 2},
		{"pressure.level", "pressure:critical", 1},
		{"rasterizer.circuit_open", "", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, ok := client.find(tt.name, tt.tag)
			if !ok {
				t.Fatalf("gauge %s{%s} not sent", tt.name, tt.tag)
			}
			if g.value != tt.want {
				t.Errorf("%s = %v, want %v", tt.name, g.value, tt.want)
			}
			if !slices.Contains(g.tags, "env:test") {
				t.Errorf("%s tags = %v, want base tag env:test", tt.name, g.tags)
			}
		})
	}

	p.PublishHealthMetrics(nil)

	if err := p.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if !client.closed {
		t.Error("Close() did not close the client")
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		val, want float64
	}{
		{-1, 0},
		{0.5, 0.5},
		{2, 1},
	}
	for _, tt := range tests {
		if got := clamp(tt.val, 0, 1); got != tt.want {
			t.Errorf("clamp(%v) = %v, want %v", tt.val, got, tt.want)
		}
	}
}
