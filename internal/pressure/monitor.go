// Package pressure classifies cache memory usage into pressure states that
// throttle high-quality rendering and shrink the prefetch margin.
package pressure

import (
	"log/slog"
	"sync"
	"time"

	"github.com/LavishGent/pageturn/internal/config"
)

// State is a memory pressure level, ordered from least to most severe.
type State int32

const (
	StateNormal State = iota
	StateWarm
	StateHot
	StateCritical
)

func (s State) String() string {
	switch s {
	case StateNormal:
		return "normal"
	case StateWarm:
		return "warm"
	case StateHot:
		return "hot"
	case StateCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// AllowsHighQuality reports whether HQ jobs may be dispatched during active
// interaction in this state.
func (s State) AllowsHighQuality() bool {
	return s <= StateWarm
}

// NeedsTrim reports whether idle trimming should run.
func (s State) NeedsTrim() bool {
	return s >= StateHot
}

// Monitor tracks the pressure state with hysteresis on the way down. It is
// safe for concurrent use.
type Monitor struct {
	cfg     config.PressureConfig
	logger  *slog.Logger
	now     func() time.Time
	onShift func(from, to State)

	mu        sync.Mutex
	state     State
	since     time.Time
	durations [StateCritical + 1]time.Duration
	shifts    int64
	lastRatio float64
}

// NewMonitor creates a monitor in the Normal state.
func NewMonitor(cfg config.PressureConfig, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Monitor{
		cfg:    cfg,
		logger: logger.With("component", "pressure-monitor"),
		now:    time.Now,
	}
	m.since = m.now()
	return m
}

// OnShift registers a callback invoked after each state change, outside the
// monitor's lock.
func (m *Monitor) OnShift(fn func(from, to State)) {
	m.mu.Lock()
	m.onShift = fn
	m.mu.Unlock()
}

// classify maps a usage ratio to a state without hysteresis.
func (m *Monitor) classify(ratio float64) State {
	switch {
	case ratio >= m.cfg.CriticalRatio:
		return StateCritical
	case ratio >= m.cfg.HotRatio:
		return StateHot
	case ratio >= m.cfg.WarmRatio:
		return StateWarm
	default:
		return StateNormal
	}
}

func (m *Monitor) threshold(s State) float64 {
	switch s {
	case StateWarm:
		return m.cfg.WarmRatio
	case StateHot:
		return m.cfg.HotRatio
	case StateCritical:
		return m.cfg.CriticalRatio
	default:
		return 0
	}
}

// Evaluate updates the state from ratio (used/budget). queueHot lifts Normal
// to Warm when the render backlog is deep. A one-step relief only happens
// once ratio is below the current threshold minus the hysteresis band.
func (m *Monitor) Evaluate(ratio float64, queueHot bool) State {
	if !m.cfg.Enabled {
		return StateNormal
	}

	target := m.classify(ratio)
	if queueHot && target == StateNormal {
		target = StateWarm
	}

	m.mu.Lock()
	m.lastRatio = ratio
	current := m.state
	if target == current-1 && ratio > m.threshold(current)-m.cfg.Hysteresis {
		target = current
	}
	if target == current {
		m.mu.Unlock()
		return current
	}

	now := m.now()
	m.durations[current] += now.Sub(m.since)
	m.since = now
	m.state = target
	m.shifts++
	cb := m.onShift
	m.mu.Unlock()

	m.logger.Warn("Memory pressure changed",
		"from", current.String(),
		"to", target.String(),
		"ratio", ratio,
	)
	if cb != nil {
		cb(current, target)
	}
	return target
}

// State returns the current state.
func (m *Monitor) State() State {
	if !m.cfg.Enabled {
		return StateNormal
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// RenderBufferPx returns the prefetch margin for the current state.
func (m *Monitor) RenderBufferPx() int {
	return m.BufferFor(m.State())
}

// BufferFor returns the prefetch margin in pixels for s.
func (m *Monitor) BufferFor(s State) int {
	switch s {
	case StateWarm:
		return m.cfg.WarmBufferPx
	case StateHot:
		return m.cfg.HotBufferPx
	case StateCritical:
		return m.cfg.CriticalBufferPx
	default:
		return m.cfg.NormalBufferPx
	}
}

// Stats returns time spent per state, including the running interval.
func (m *Monitor) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := Stats{
		State:     m.state,
		Shifts:    m.shifts,
		LastRatio: m.lastRatio,
		Durations: make(map[State]time.Duration, len(m.durations)),
	}
	for s, d := range m.durations {
		st.Durations[State(s)] = d
	}
	st.Durations[m.state] += m.now().Sub(m.since)
	return st
}

// Stats is a snapshot of the monitor.
type Stats struct {
	Durations map[State]time.Duration
	LastRatio float64
	Shifts    int64
	State     State
}
