// Package config provides configuration management for pageturn.
package config

import "time"

const (
	KiB int64 = 1024
	MiB       = 1024 * KiB
	GiB       = 1024 * MiB
)

// Config contains all configuration for the render pipeline.
//
//nolint:govet // Configuration struct - logical grouping prioritized over alignment
type Config struct {
	Budget         BudgetConfig         `json:"budget"`
	Quality        QualityConfig        `json:"quality"`
	Scheduler      SchedulerConfig      `json:"scheduler"`
	Retry          RetryConfig          `json:"retry"`
	Interaction    InteractionConfig    `json:"interaction"`
	Pressure       PressureConfig       `json:"pressure"`
	Preview        PreviewConfig        `json:"preview"`
	Placeholder    PlaceholderConfig    `json:"placeholder"`
	CircuitBreaker CircuitBreakerConfig `json:"circuitBreaker"`
	Metrics        MetricsConfig        `json:"metrics"`
}

// BudgetConfig sizes the viewport and thumbnail pools. When TotalBytes is
// zero the total is derived from the host memory tier.
type BudgetConfig struct {
	TotalBytes      int64   `json:"totalBytes"`
	HostMemoryBytes int64   `json:"hostMemoryBytes"`
	ViewportShare   float64 `json:"viewportShare"`
}

// QualityConfig holds the tier scale factors and the safe render clamp.
type QualityConfig struct {
	PreviewScale   float64 `json:"previewScale"`
	ThumbnailScale float64 `json:"thumbnailScale"`
	ScrollScale    float64 `json:"scrollScale"`
	PreviewMinEdge int     `json:"previewMinEdge"`
	ThumbMinEdge   int     `json:"thumbMinEdge"`
	MaxEdgePx      int     `json:"maxEdgePx"`
	MaxPixels      int64   `json:"maxPixels"`
}

// SchedulerConfig contains queue, dispatch and worker limits.
type SchedulerConfig struct {
	Workers            int           `json:"workers"`
	MaxInFlight        int           `json:"maxInFlight"`
	MaxLowPerCycle     int           `json:"maxLowPerCycle"`
	MaxHighPerCycle    int           `json:"maxHighPerCycle"`
	MaxQueuedLow       int           `json:"maxQueuedLow"`
	MaxQueuedHigh      int           `json:"maxQueuedHigh"`
	HighRingRadius     int           `json:"highRingRadius"`
	ResultBuffer       int           `json:"resultBuffer"`
	MaxTrackedFailures int           `json:"maxTrackedFailures"`
	ShutdownTimeout    time.Duration `json:"shutdownTimeout"`
}

// RetryConfig contains the backoff applied to failed rasterizations.
type RetryConfig struct {
	InitialBackoff time.Duration `json:"initialBackoff"`
	MaxBackoff     time.Duration `json:"maxBackoff"`
	Multiplier     float64       `json:"multiplier"`
	MaxAttempts    int           `json:"maxAttempts"`
	Jitter         bool          `json:"jitter"`
}

// InteractionConfig holds the active/idle debounce and hysteresis tuning.
type InteractionConfig struct {
	ScrollIdleDebounce      time.Duration `json:"scrollIdleDebounce"`
	IdleSettleDebounce      time.Duration `json:"idleSettleDebounce"`
	IdleTrimCooldown        time.Duration `json:"idleTrimCooldown"`
	MicroScrollHysteresisPx float64       `json:"microScrollHysteresisPx"`
}

// PressureConfig holds the memory pressure thresholds as used/budget ratios.
type PressureConfig struct {
	Enabled          bool    `json:"enabled"`
	WarmRatio        float64 `json:"warmRatio"`
	HotRatio         float64 `json:"hotRatio"`
	CriticalRatio    float64 `json:"criticalRatio"`
	Hysteresis       float64 `json:"hysteresis"`
	NormalBufferPx   int     `json:"normalBufferPx"`
	WarmBufferPx     int     `json:"warmBufferPx"`
	HotBufferPx      int     `json:"hotBufferPx"`
	CriticalBufferPx int     `json:"criticalBufferPx"`
}

// PreviewConfig contains configuration for the shared ultra-low preview store.
type PreviewConfig struct {
	Enabled    bool          `json:"enabled"`
	Share      float64       `json:"share"`
	MinBytes   int64         `json:"minBytes"`
	MaxBytes   int64         `json:"maxBytes"`
	Shards     int           `json:"shards"`
	MaxEdgePx  int           `json:"maxEdgePx"`
	LifeWindow time.Duration `json:"lifeWindow"`
	Compress   bool          `json:"compress"`
}

// PlaceholderConfig limits synchronous first-paint renders on the control path.
type PlaceholderConfig struct {
	Enabled       bool    `json:"enabled"`
	RatePerSecond float64 `json:"ratePerSecond"`
	Burst         int     `json:"burst"`
}

// CircuitBreakerConfig contains configuration for the rasterizer circuit breaker.
type CircuitBreakerConfig struct {
	Enabled             bool          `json:"enabled"`
	FailureThreshold    int           `json:"failureThreshold"`
	SuccessThreshold    int           `json:"successThreshold"`
	OpenDuration        time.Duration `json:"openDuration"`
	HalfOpenMaxRequests int           `json:"halfOpenMaxRequests"`
}

// MetricsConfig contains configuration for metrics publishing.
//
//nolint:govet // Small config struct - minimal alignment benefit
type MetricsConfig struct {
	PublishInterval time.Duration `json:"publishInterval"`
	DataDog         DataDogConfig `json:"datadog"`
	Enabled         bool          `json:"enabled"`
}

// DataDogConfig contains configuration for DataDog metrics publishing.
//
//nolint:govet // Small config struct - minimal alignment benefit
type DataDogConfig struct {
	Tags      []string `json:"tags"`
	AgentHost string   `json:"agentHost"`
	Prefix    string   `json:"prefix"`
	Port      int      `json:"port"`
	Enabled   bool     `json:"enabled"`
}
