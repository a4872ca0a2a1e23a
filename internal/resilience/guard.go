package resilience

import (
	"log/slog"

	"github.com/LavishGent/pageturn/internal/config"
)

// Guard admits rasterizations to the backend. A job must be admitted before
// it is handed to a worker and reported through Done exactly once.
type Guard interface {
	// Admit reserves an in-flight slot. It fails with ErrGateFull or
	// ErrCircuitOpen and never blocks.
	Admit() error
	// Done releases the slot. healthy reports whether the outcome speaks
	// for backend health: nil error is a success, a non-nil error a failure.
	Done(err error, healthy bool)
	InFlight() int
	CircuitState() State
	Stats() GuardStats
}

// BackendGuard combines the in-flight gate with the circuit breaker.
type BackendGuard struct {
	gate    *Gate
	breaker *CircuitBreaker
	logger  *slog.Logger
}

// NewGuard builds the guard from the scheduler and breaker configuration.
// A disabled breaker leaves only the gate.
func NewGuard(cfg *config.Config, logger *slog.Logger) *BackendGuard {
	if logger == nil {
		logger = slog.Default()
	}
	g := &BackendGuard{
		gate:   NewGate(cfg.Scheduler.MaxInFlight),
		logger: logger.With("component", "backend-guard"),
	}
	if cfg.CircuitBreaker.Enabled {
		g.breaker = NewCircuitBreaker("rasterizer", cfg.CircuitBreaker)
		g.breaker.SetOnStateChange(func(from, to State) {
			g.logger.Warn("Rasterizer circuit changed state",
				"from", from.String(),
				"to", to.String(),
			)
		})
	}
	return g
}

// Admit reserves a slot. The circuit is consulted first so an open circuit
// does not count as gate pressure.
func (g *BackendGuard) Admit() error {
	if g.breaker != nil && !g.breaker.Allow() {
		return ErrCircuitOpen
	}
	if !g.gate.TryAcquire() {
		if g.breaker != nil {
			g.breaker.RecordAbandoned()
		}
		return ErrGateFull
	}
	return nil
}

// Done releases the slot and feeds the outcome to the breaker.
func (g *BackendGuard) Done(err error, healthy bool) {
	g.gate.Release()
	if g.breaker == nil {
		return
	}
	switch {
	case !healthy:
		g.breaker.RecordAbandoned()
	case err == nil:
		g.breaker.RecordSuccess()
	default:
		g.breaker.RecordFailure()
	}
}

// InFlight returns the number of admitted, unfinished jobs.
func (g *BackendGuard) InFlight() int {
	return g.gate.InFlight()
}

// CircuitState returns the breaker state, closed when disabled.
func (g *BackendGuard) CircuitState() State {
	if g.breaker == nil {
		return StateClosed
	}
	return g.breaker.State()
}

// Stats returns gate and breaker statistics.
func (g *BackendGuard) Stats() GuardStats {
	st := GuardStats{Gate: g.gate.Stats()}
	if g.breaker != nil {
		st.Circuit = g.breaker.Stats()
		st.BreakerEnabled = true
	}
	return st
}

// GuardStats combines gate and breaker statistics. Circuit is zero when the
// breaker is disabled.
type GuardStats struct {
	Gate           GateStats
	Circuit        CircuitBreakerStats
	BreakerEnabled bool
}

var _ Guard = (*BackendGuard)(nil)
