package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/LavishGent/pageturn/internal/config"
)

func TestGate(t *testing.T) {
	g := NewGate(2)

	if !g.TryAcquire() || !g.TryAcquire() {
		t.Fatal("TryAcquire() = false, want true below capacity")
	}
	if g.TryAcquire() {
		t.Error("TryAcquire() = true, want false at capacity")
	}
	if g.InFlight() != 2 || g.Available() != 0 {
		t.Errorf("InFlight/Available = %d/%d, want 2/0", g.InFlight(), g.Available())
	}

	g.Release()
	if !g.TryAcquire() {
		t.Error("TryAcquire() = false after release, want true")
	}

	stats := g.Stats()
	if stats.TotalAdmitted != 3 || stats.TotalRejected != 1 {
		t.Errorf("Stats() admitted=%d rejected=%d, want 3/1", stats.TotalAdmitted, stats.TotalRejected)
	}

	t.Run("release on empty gate is a no-op", func(t *testing.T) {
		g := NewGate(0)
		g.Release()
		if g.Available() != 2 {
			t.Errorf("Available() = %d, want default capacity 2", g.Available())
		}
	})
}

func guardConfig(breaker bool) *config.Config {
	cfg := config.ForTesting()
	cfg.Scheduler.MaxInFlight = 1
	cfg.CircuitBreaker = config.CircuitBreakerConfig{
		Enabled:          breaker,
		FailureThreshold: 2,
		OpenDuration:     time.Hour,
	}
	return cfg
}

func TestBackendGuard(t *testing.T) {
	t.Run("gate full", func(t *testing.T) {
		g := NewGuard(guardConfig(false), nil)

		if err := g.Admit(); err != nil {
			t.Fatalf("Admit() error = %v", err)
		}
		if err := g.Admit(); !errors.Is(err, ErrGateFull) {
			t.Errorf("Admit() error = %v, want ErrGateFull", err)
		}
		if !IsAdmissionError(ErrGateFull) {
			t.Error("IsAdmissionError(ErrGateFull) = false")
		}

		g.Done(nil, true)
		if g.InFlight() != 0 {
			t.Errorf("InFlight() = %d, want 0", g.InFlight())
		}
		st := g.Stats()
		if st.BreakerEnabled {
			t.Error("Stats().BreakerEnabled = true with breaker disabled")
		}
		if st.Gate.TotalAdmitted != 1 || st.Gate.TotalRejected != 1 {
			t.Errorf("Stats().Gate admitted=%d rejected=%d, want 1/1", st.Gate.TotalAdmitted, st.Gate.TotalRejected)
		}
	})

	t.Run("failures open the circuit", func(t *testing.T) {
		g := NewGuard(guardConfig(true), nil)
		boom := errors.New("boom")

		for i := 0; i < 2; i++ {
			if err := g.Admit(); err != nil {
				t.Fatalf("Admit() error = %v", err)
			}
			g.Done(boom, true)
		}

		if g.CircuitState() != StateOpen {
			t.Fatalf("CircuitState() = %v, want open", g.CircuitState())
		}
		if st := g.Stats(); !st.BreakerEnabled || st.Circuit.Trips != 1 {
			t.Errorf("Stats() breaker=%v trips=%d, want true/1", st.BreakerEnabled, st.Circuit.Trips)
		}
		err := g.Admit()
		if !IsCircuitOpen(err) {
			t.Errorf("Admit() error = %v, want ErrCircuitOpen", err)
		}
		if g.InFlight() != 0 {
			t.Errorf("open circuit must not hold a gate slot, InFlight() = %d", g.InFlight())
		}
	})

	t.Run("unhealthy outcomes do not count", func(t *testing.T) {
		g := NewGuard(guardConfig(true), nil)
		for i := 0; i < 5; i++ {
			if err := g.Admit(); err != nil {
				t.Fatalf("Admit() error = %v", err)
			}
			g.Done(errors.New("stale"), false)
		}
		if g.CircuitState() != StateClosed {
			t.Errorf("CircuitState() = %v, want closed", g.CircuitState())
		}
	})
}
