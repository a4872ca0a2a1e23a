package resilience

import (
	"math"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/LavishGent/pageturn/internal/config"
)

// Backoff computes exponential retry delays for failed rasterizations. The
// scheduler owns the retry loop; Backoff only answers when and whether.
type Backoff struct {
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	multiplier     float64
	jitter         bool

	totalRetries atomic.Int64
	totalGiveUps atomic.Int64
}

// NewBackoff creates a backoff policy with the given configuration.
func NewBackoff(cfg config.RetryConfig) *Backoff {
	b := &Backoff{
		maxAttempts:    cfg.MaxAttempts,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		multiplier:     cfg.Multiplier,
		jitter:         cfg.Jitter,
	}

	if b.maxAttempts <= 0 {
		b.maxAttempts = 3
	}
	if b.initialBackoff <= 0 {
		b.initialBackoff = 250 * time.Millisecond
	}
	if b.maxBackoff <= 0 {
		b.maxBackoff = time.Second
	}
	if b.maxBackoff < b.initialBackoff {
		b.maxBackoff = b.initialBackoff
	}
	if b.multiplier <= 0 {
		b.multiplier = 2.0
	}

	return b
}

// MaxAttempts returns the number of attempts allowed per key and generation.
func (b *Backoff) MaxAttempts() int {
	return b.maxAttempts
}

// Exhausted reports whether failed attempts have used up the budget.
func (b *Backoff) Exhausted(failed int) bool {
	return failed >= b.maxAttempts
}

// Delay returns the wait before the next attempt after failed attempts.
func (b *Backoff) Delay(failed int) time.Duration {
	if failed < 1 {
		return 0
	}

	backoff := float64(b.initialBackoff) * math.Pow(b.multiplier, float64(failed-1))
	if backoff > float64(b.maxBackoff) {
		backoff = float64(b.maxBackoff)
	}

	// ±25%
	if b.jitter {
		jitterRange := backoff * 0.25
		backoff += (rand.Float64() * 2 * jitterRange) - jitterRange
	}

	return time.Duration(backoff)
}

// Next records a failure and returns when the key may be retried. ok is false
// when the attempt budget is spent and the key should be suppressed.
func (b *Backoff) Next(failed int, now time.Time) (notBefore time.Time, ok bool) {
	if b.Exhausted(failed) {
		b.totalGiveUps.Add(1)
		return time.Time{}, false
	}
	b.totalRetries.Add(1)
	return now.Add(b.Delay(failed)), true
}

// Stats returns retry statistics.
func (b *Backoff) Stats() (retries, giveUps int64) {
	return b.totalRetries.Load(), b.totalGiveUps.Load()
}

// Reset resets the statistics.
func (b *Backoff) Reset() {
	b.totalRetries.Store(0)
	b.totalGiveUps.Store(0)
}
