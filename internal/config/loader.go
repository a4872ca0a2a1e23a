package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Load loads configuration from a JSON file.
// If the file doesn't exist, returns default configuration.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadWithEnv loads configuration from a JSON file and applies environment overrides.
func LoadWithEnv(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

//nolint:gocyclo // Environment variable parsing requires many conditional checks
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PAGETURN_BUDGET_TOTAL_MB"); v != "" {
		cfg.Budget.TotalBytes = int64(parseInt(v, int(cfg.Budget.TotalBytes/MiB))) * MiB
	}
	if v := os.Getenv("PAGETURN_BUDGET_VIEWPORT_SHARE"); v != "" {
		cfg.Budget.ViewportShare = parseFloat(v, cfg.Budget.ViewportShare)
	}

	if v := os.Getenv("PAGETURN_QUALITY_MAX_EDGE_PX"); v != "" {
		cfg.Quality.MaxEdgePx = parseInt(v, cfg.Quality.MaxEdgePx)
	}
	if v := os.Getenv("PAGETURN_QUALITY_MAX_MEGAPIXELS"); v != "" {
		cfg.Quality.MaxPixels = int64(parseFloat(v, float64(cfg.Quality.MaxPixels)/1e6) * 1e6)
	}

	if v := os.Getenv("PAGETURN_SCHEDULER_WORKERS"); v != "" {
		cfg.Scheduler.Workers = parseInt(v, cfg.Scheduler.Workers)
	}
	if v := os.Getenv("PAGETURN_SCHEDULER_MAX_IN_FLIGHT"); v != "" {
		cfg.Scheduler.MaxInFlight = parseInt(v, cfg.Scheduler.MaxInFlight)
	}
	if v := os.Getenv("PAGETURN_SCHEDULER_MAX_QUEUED_LOW"); v != "" {
		cfg.Scheduler.MaxQueuedLow = parseInt(v, cfg.Scheduler.MaxQueuedLow)
	}
	if v := os.Getenv("PAGETURN_SCHEDULER_MAX_QUEUED_HIGH"); v != "" {
		cfg.Scheduler.MaxQueuedHigh = parseInt(v, cfg.Scheduler.MaxQueuedHigh)
	}
	if v := os.Getenv("PAGETURN_SCHEDULER_HIGH_RING_RADIUS"); v != "" {
		cfg.Scheduler.HighRingRadius = parseInt(v, cfg.Scheduler.HighRingRadius)
	}

	if v := os.Getenv("PAGETURN_RETRY_MAX_ATTEMPTS"); v != "" {
		cfg.Retry.MaxAttempts = parseInt(v, cfg.Retry.MaxAttempts)
	}
	if v := os.Getenv("PAGETURN_RETRY_INITIAL_BACKOFF"); v != "" {
		cfg.Retry.InitialBackoff = parseDuration(v, cfg.Retry.InitialBackoff)
	}
	if v := os.Getenv("PAGETURN_RETRY_MAX_BACKOFF"); v != "" {
		cfg.Retry.MaxBackoff = parseDuration(v, cfg.Retry.MaxBackoff)
	}

	if v := os.Getenv("PAGETURN_INTERACTION_IDLE_DEBOUNCE"); v != "" {
		cfg.Interaction.IdleSettleDebounce = parseDuration(v, cfg.Interaction.IdleSettleDebounce)
	}
	if v := os.Getenv("PAGETURN_INTERACTION_SCROLL_DEBOUNCE"); v != "" {
		cfg.Interaction.ScrollIdleDebounce = parseDuration(v, cfg.Interaction.ScrollIdleDebounce)
	}
	if v := os.Getenv("PAGETURN_INTERACTION_MICRO_SCROLL_PX"); v != "" {
		cfg.Interaction.MicroScrollHysteresisPx = parseFloat(v, cfg.Interaction.MicroScrollHysteresisPx)
	}

	if v := os.Getenv("PAGETURN_PRESSURE_ENABLED"); v != "" {
		cfg.Pressure.Enabled = parseBool(v)
	}

	if v := os.Getenv("PAGETURN_PREVIEW_ENABLED"); v != "" {
		cfg.Preview.Enabled = parseBool(v)
	}
	if v := os.Getenv("PAGETURN_PREVIEW_COMPRESS"); v != "" {
		cfg.Preview.Compress = parseBool(v)
	}

	if v := os.Getenv("PAGETURN_PLACEHOLDER_ENABLED"); v != "" {
		cfg.Placeholder.Enabled = parseBool(v)
	}

	if v := os.Getenv("PAGETURN_CIRCUIT_BREAKER_ENABLED"); v != "" {
		cfg.CircuitBreaker.Enabled = parseBool(v)
	}
	if v := os.Getenv("PAGETURN_CIRCUIT_BREAKER_FAILURE_THRESHOLD"); v != "" {
		cfg.CircuitBreaker.FailureThreshold = parseInt(v, cfg.CircuitBreaker.FailureThreshold)
	}
	if v := os.Getenv("PAGETURN_CIRCUIT_BREAKER_OPEN_DURATION"); v != "" {
		cfg.CircuitBreaker.OpenDuration = parseDuration(v, cfg.CircuitBreaker.OpenDuration)
	}

	if v := os.Getenv("PAGETURN_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}

	if v := os.Getenv("DD_AGENT_HOST"); v != "" {
		cfg.Metrics.DataDog.AgentHost = v
		cfg.Metrics.DataDog.Enabled = true
	}
	if v := os.Getenv("DD_DOGSTATSD_PORT"); v != "" {
		cfg.Metrics.DataDog.Port = parseInt(v, cfg.Metrics.DataDog.Port)
	}
	if v := os.Getenv("DD_SERVICE"); v != "" {
		cfg.Metrics.DataDog.Prefix = v
	}
	if v := os.Getenv("DD_ENV"); v != "" {
		cfg.Metrics.DataDog.Tags = append(cfg.Metrics.DataDog.Tags, "env:"+v)
	}
	if v := os.Getenv("DD_VERSION"); v != "" {
		cfg.Metrics.DataDog.Tags = append(cfg.Metrics.DataDog.Tags, "version:"+v)
	}

	if v := os.Getenv("PAGETURN_DATADOG_ENABLED"); v != "" {
		if os.Getenv("DD_AGENT_HOST") == "" {
			cfg.Metrics.DataDog.Enabled = parseBool(v)
		}
	}
}

// Validate checks if the configuration is valid.
//
//nolint:gocyclo // One check per field
func (c *Config) Validate() error {
	if c.Budget.TotalBytes < 0 {
		return fmt.Errorf("budget.totalBytes must not be negative")
	}
	if c.Budget.ViewportShare <= 0 || c.Budget.ViewportShare >= 1 {
		return fmt.Errorf("budget.viewportShare must be between 0 and 1")
	}

	if c.Quality.MaxEdgePx <= 0 {
		return fmt.Errorf("quality.maxEdgePx must be positive")
	}
	if c.Quality.MaxPixels <= 0 {
		return fmt.Errorf("quality.maxPixels must be positive")
	}
	if c.Quality.PreviewScale <= 0 || c.Quality.ThumbnailScale <= 0 || c.Quality.ScrollScale <= 0 {
		return fmt.Errorf("quality scales must be positive")
	}
	if !(c.Quality.PreviewScale <= c.Quality.ThumbnailScale && c.Quality.ThumbnailScale <= c.Quality.ScrollScale && c.Quality.ScrollScale <= 1) {
		return fmt.Errorf("quality scales must be non-decreasing and at most 1")
	}

	if c.Scheduler.Workers <= 0 {
		return fmt.Errorf("scheduler.workers must be positive")
	}
	if c.Scheduler.MaxInFlight <= 0 {
		return fmt.Errorf("scheduler.maxInFlight must be positive")
	}
	if c.Scheduler.MaxLowPerCycle <= 0 || c.Scheduler.MaxHighPerCycle <= 0 {
		return fmt.Errorf("scheduler per-cycle budgets must be positive")
	}
	if c.Scheduler.MaxQueuedLow <= 0 || c.Scheduler.MaxQueuedHigh <= 0 {
		return fmt.Errorf("scheduler queue depths must be positive")
	}
	if c.Scheduler.HighRingRadius < 0 {
		return fmt.Errorf("scheduler.highRingRadius must not be negative")
	}

	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry.maxAttempts must be positive")
	}

	if c.Pressure.Enabled {
		p := c.Pressure
		if !(p.WarmRatio > 0 && p.WarmRatio < p.HotRatio && p.HotRatio < p.CriticalRatio && p.CriticalRatio <= 1) {
			return fmt.Errorf("pressure ratios must be increasing within (0, 1]")
		}
		if p.Hysteresis < 0 || p.Hysteresis >= p.WarmRatio {
			return fmt.Errorf("pressure.hysteresis must be within [0, warmRatio)")
		}
	}

	if c.Preview.Enabled {
		if c.Preview.Shards <= 0 || (c.Preview.Shards&(c.Preview.Shards-1)) != 0 {
			return fmt.Errorf("preview.shards must be a positive power of 2")
		}
		if c.Preview.MaxEdgePx <= 0 {
			return fmt.Errorf("preview.maxEdgePx must be positive")
		}
		if c.Preview.MaxBytes > 0 && c.Preview.MinBytes > c.Preview.MaxBytes {
			return fmt.Errorf("preview.minBytes must not exceed preview.maxBytes")
		}
	}

	if c.Placeholder.Enabled && c.Placeholder.RatePerSecond <= 0 {
		return fmt.Errorf("placeholder.ratePerSecond must be positive")
	}

	if c.CircuitBreaker.Enabled {
		if c.CircuitBreaker.FailureThreshold <= 0 {
			return fmt.Errorf("circuitBreaker.failureThreshold must be positive")
		}
		if c.CircuitBreaker.OpenDuration <= 0 {
			return fmt.Errorf("circuitBreaker.openDuration must be positive")
		}
	}

	return nil
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

func parseInt(s string, defaultVal int) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return defaultVal
	}
	return v
}

func parseFloat(s string, defaultVal float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return defaultVal
	}
	return v
}

func parseDuration(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)

	if d, err := time.ParseDuration(s); err == nil {
		return d
	}

	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond
	}

	return defaultVal
}
