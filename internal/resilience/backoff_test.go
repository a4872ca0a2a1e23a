package resilience

import (
	"testing"
	"time"

	"github.com/LavishGent/pageturn/internal/config"
)

func TestNewBackoff(t *testing.T) {
	t.Run("applies defaults for zero values", func(t *testing.T) {
		b := NewBackoff(config.RetryConfig{})

		if b.MaxAttempts() != 3 {
			t.Errorf("MaxAttempts() = %v, want 3", b.MaxAttempts())
		}
		if b.initialBackoff != 250*time.Millisecond {
			t.Errorf("initialBackoff = %v, want 250ms", b.initialBackoff)
		}
		if b.maxBackoff != time.Second {
			t.Errorf("maxBackoff = %v, want 1s", b.maxBackoff)
		}
		if b.multiplier != 2.0 {
			t.Errorf("multiplier = %v, want 2", b.multiplier)
		}
	})

	t.Run("max never below initial", func(t *testing.T) {
		b := NewBackoff(config.RetryConfig{InitialBackoff: time.Second, MaxBackoff: time.Millisecond})
		if b.maxBackoff != time.Second {
			t.Errorf("maxBackoff = %v, want 1s", b.maxBackoff)
		}
	})
}

func TestBackoffDelay(t *testing.T) {
	b := NewBackoff(config.RetryConfig{
		InitialBackoff: 250 * time.Millisecond,
		MaxBackoff:     time.Second,
		Multiplier:     2,
		MaxAttempts:    3,
	})

	tests := []struct {
		failed int
		want   time.Duration
	}{
		{0, 0},
		{1, 250 * time.Millisecond},
		{2, 500 * time.Millisecond},
		{3, time.Second},
		{4, time.Second},
		{10, time.Second},
	}

	for _, tt := range tests {
		if got := b.Delay(tt.failed); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.failed, got, tt.want)
		}
	}
}

func TestBackoffJitter(t *testing.T) {
	b := NewBackoff(config.RetryConfig{
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     time.Second,
		Jitter:         true,
	})

	for i := 0; i < 100; i++ {
		d := b.Delay(1)
		if d < 75*time.Millisecond || d > 125*time.Millisecond {
			t.Fatalf("Delay(1) = %v, want within 25%% of 100ms", d)
		}
	}
}

func TestBackoffNext(t *testing.T) {
	b := NewBackoff(config.RetryConfig{MaxAttempts: 3, InitialBackoff: 250 * time.Millisecond})
	now := time.Unix(100, 0)

	notBefore, ok := b.Next(1, now)
	if !ok {
		t.Fatal("Next(1) ok = false, want true")
	}
	if want := now.Add(250 * time.Millisecond); !notBefore.Equal(want) {
		t.Errorf("Next(1) = %v, want %v", notBefore, want)
	}

	if _, ok := b.Next(3, now); ok {
		t.Error("Next(3) ok = true, want false once attempts are exhausted")
	}

	retries, giveUps := b.Stats()
	if retries != 1 || giveUps != 1 {
		t.Errorf("Stats() = (%d, %d), want (1, 1)", retries, giveUps)
	}

	b.Reset()
	if retries, giveUps = b.Stats(); retries != 0 || giveUps != 0 {
		t.Errorf("Stats() after reset = (%d, %d), want (0, 0)", retries, giveUps)
	}
}
