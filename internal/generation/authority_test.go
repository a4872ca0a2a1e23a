package generation

import (
	"math"
	"sync"
	"testing"

	"github.com/LavishGent/pageturn/internal/types"
)

func TestAuthority(t *testing.T) {
	t.Run("register starts at first token", func(t *testing.T) {
		a := NewAuthority(nil)
		if got := a.Register("doc-a"); got != First {
			t.Errorf("Register() = %d, want %d", got, First)
		}
		if got := a.Current("doc-a"); got != First {
			t.Errorf("Current() = %d, want %d", got, First)
		}
	})

	t.Run("register is idempotent", func(t *testing.T) {
		a := NewAuthority(nil)
		a.Register("doc-a")
		a.Bump("doc-a")
		if got := a.Register("doc-a"); got != 2 {
			t.Errorf("Register() after bump = %d, want 2", got)
		}
	})

	t.Run("unknown context is zero and never valid", func(t *testing.T) {
		a := NewAuthority(nil)
		if got := a.Current("nope"); got != 0 {
			t.Errorf("Current() = %d, want 0", got)
		}
		if a.Valid("nope", 0) {
			t.Error("Valid(nope, 0) = true, want false")
		}
	})

	t.Run("bump is monotonic", func(t *testing.T) {
		a := NewAuthority(nil)
		a.Register("ctx")
		prev := a.Current("ctx")
		for i := 0; i < 10; i++ {
			next := a.Bump("ctx")
			if next <= prev {
				t.Fatalf("Bump() = %d, want > %d", next, prev)
			}
			prev = next
		}
		if a.Bumps() != 10 {
			t.Errorf("Bumps() = %d, want 10", a.Bumps())
		}
	})

	t.Run("contexts are independent", func(t *testing.T) {
		a := NewAuthority(nil)
		a.Register("left")
		a.Register("right")
		a.Bump("left")
		a.Bump("left")

		if got := a.Current("right"); got != First {
			t.Errorf("Current(right) = %d, want %d", got, First)
		}
		if !a.Valid("right", First) {
			t.Error("right token invalidated by bumps on left")
		}
	})

	t.Run("check reports stale tokens", func(t *testing.T) {
		a := NewAuthority(nil)
		tok := a.Register("ctx")
		if err := a.Check("ctx", tok); err != nil {
			t.Errorf("Check() error = %v, want nil", err)
		}
		a.Bump("ctx")
		if err := a.Check("ctx", tok); !types.IsStale(err) {
			t.Errorf("Check() error = %v, want ErrStale", err)
		}
	})

	t.Run("wraps skipping zero", func(t *testing.T) {
		a := NewAuthority(nil)
		a.set("ctx", math.MaxUint64)
		if got := a.Bump("ctx"); got != First {
			t.Errorf("Bump() at max = %d, want %d", got, First)
		}
	})

	t.Run("forget invalidates outstanding tokens", func(t *testing.T) {
		a := NewAuthority(nil)
		tok := a.Register("ctx")
		a.Forget("ctx")
		if a.Valid("ctx", tok) {
			t.Error("Valid() after Forget = true, want false")
		}
		if a.Known("ctx") {
			t.Error("Known() after Forget = true, want false")
		}
	})

	t.Run("re-registered context does not revive old tokens", func(t *testing.T) {
		a := NewAuthority(nil)
		old := a.Register("ctx")
		a.Forget("ctx")

		tok := a.Register("ctx")
		if tok == old {
			t.Errorf("Register() after Forget = %d, want a token other than %d", tok, old)
		}
		if a.Valid("ctx", old) {
			t.Error("token issued before Forget is valid again")
		}

		a.Forget("ctx")
		if got := a.Bump("ctx"); got <= tok {
			t.Errorf("Bump() after Forget = %d, want > %d", got, tok)
		}
	})
}

func TestAuthorityConcurrentBumps(t *testing.T) {
	a := NewAuthority(nil)
	a.Register("ctx")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.Bump("ctx")
			_ = a.Current("ctx")
		}()
	}
	wg.Wait()

	if got := a.Current("ctx"); got != First+50 {
		t.Errorf("Current() = %d, want %d", got, First+50)
	}
}
