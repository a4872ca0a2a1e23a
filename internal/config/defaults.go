package config

import "time"

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Budget: BudgetConfig{
			TotalBytes:      0, // derived from host memory
			HostMemoryBytes: 0, // detected
			ViewportShare:   0.70,
		},
		Quality: QualityConfig{
			PreviewScale:   0.125,
			ThumbnailScale: 0.25,
			ScrollScale:    0.5,
			PreviewMinEdge: 16,
			ThumbMinEdge:   32,
			MaxEdgePx:      8192,
			MaxPixels:      32_000_000,
		},
		Scheduler: SchedulerConfig{
			Workers:            2,
			MaxInFlight:        2,
			MaxLowPerCycle:     2,
			MaxHighPerCycle:    2,
			MaxQueuedLow:       12,
			MaxQueuedHigh:      6,
			HighRingRadius:     2,
			ResultBuffer:       64,
			MaxTrackedFailures: 4096,
			ShutdownTimeout:    5 * time.Second,
		},
		Retry: RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: 250 * time.Millisecond,
			MaxBackoff:     1 * time.Second,
			Multiplier:     2.0,
			Jitter:         false,
		},
		Interaction: InteractionConfig{
			ScrollIdleDebounce:      80 * time.Millisecond,
			IdleSettleDebounce:      500 * time.Millisecond,
			IdleTrimCooldown:        250 * time.Millisecond,
			MicroScrollHysteresisPx: 24,
		},
		Pressure: PressureConfig{
			Enabled:          true,
			WarmRatio:        0.70,
			HotRatio:         0.82,
			CriticalRatio:    0.92,
			Hysteresis:       0.03,
			NormalBufferPx:   400,
			WarmBufferPx:     260,
			HotBufferPx:      120,
			CriticalBufferPx: 40,
		},
		Preview: PreviewConfig{
			Enabled:    true,
			Share:      0.10,
			MinBytes:   32 * MiB,
			MaxBytes:   192 * MiB,
			Shards:     64,
			MaxEdgePx:  128,
			LifeWindow: 24 * time.Hour,
			Compress:   true,
		},
		Placeholder: PlaceholderConfig{
			Enabled:       true,
			RatePerSecond: 8,
			Burst:         2,
		},
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:             true,
			FailureThreshold:    8,
			SuccessThreshold:    1,
			OpenDuration:        2 * time.Second,
			HalfOpenMaxRequests: 1,
		},
		Metrics: MetricsConfig{
			Enabled:         true,
			PublishInterval: 10 * time.Second,
			DataDog: DataDogConfig{
				Enabled:   false,
				AgentHost: "127.0.0.1",
				Port:      8125,
				Prefix:    "pageturn",
				Tags:      []string{},
			},
		},
	}
}

// ForTesting returns a minimal configuration suitable for unit tests.
// Budgets are explicit so results do not depend on the host.
func ForTesting() *Config {
	return &Config{
		Budget: BudgetConfig{
			TotalBytes:      4 * MiB,
			HostMemoryBytes: 8 * GiB,
			ViewportShare:   0.70,
		},
		Quality: QualityConfig{
			PreviewScale:   0.125,
			ThumbnailScale: 0.25,
			ScrollScale:    0.5,
			PreviewMinEdge: 16,
			ThumbMinEdge:   32,
			MaxEdgePx:      8192,
			MaxPixels:      32_000_000,
		},
		Scheduler: SchedulerConfig{
			Workers:            1,
			MaxInFlight:        1,
			MaxLowPerCycle:     2,
			MaxHighPerCycle:    2,
			MaxQueuedLow:       12,
			MaxQueuedHigh:      6,
			HighRingRadius:     2,
			ResultBuffer:       16,
			MaxTrackedFailures: 128,
			ShutdownTimeout:    1 * time.Second,
		},
		Retry: RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: 10 * time.Millisecond,
			MaxBackoff:     40 * time.Millisecond,
			Multiplier:     2.0,
			Jitter:         false,
		},
		Interaction: InteractionConfig{
			ScrollIdleDebounce:      5 * time.Millisecond,
			IdleSettleDebounce:      10 * time.Millisecond,
			IdleTrimCooldown:        0,
			MicroScrollHysteresisPx: 24,
		},
		Pressure: PressureConfig{
			Enabled:          false,
			WarmRatio:        0.70,
			HotRatio:         0.82,
			CriticalRatio:    0.92,
			Hysteresis:       0.03,
			NormalBufferPx:   400,
			WarmBufferPx:     260,
			HotBufferPx:      120,
			CriticalBufferPx: 40,
		},
		Preview: PreviewConfig{
			Enabled:    true,
			Share:      0.10,
			MinBytes:   4 * MiB,
			MaxBytes:   4 * MiB,
			Shards:     4,
			MaxEdgePx:  32,
			LifeWindow: 1 * time.Hour,
			Compress:   true,
		},
		Placeholder: PlaceholderConfig{
			Enabled:       false,
			RatePerSecond: 100,
			Burst:         1,
		},
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:             false,
			FailureThreshold:    3,
			SuccessThreshold:    1,
			OpenDuration:        50 * time.Millisecond,
			HalfOpenMaxRequests: 1,
		},
		Metrics: MetricsConfig{
			Enabled:         false,
			PublishInterval: 1 * time.Second,
		},
	}
}
