// Package generation issues per-context generation tokens used to cancel
// stale render work.
package generation

import (
	"log/slog"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/LavishGent/pageturn/internal/types"
)

// First is the token a context starts with. Zero is never issued.
const First uint64 = 1

// maxRetired bounds how many forgotten contexts remember their last token.
const maxRetired = 4096

// Authority holds one monotonically increasing counter per context.
// Contexts do not share cancellation domains.
type Authority struct {
	mu       sync.RWMutex
	counters map[types.ContextID]uint64
	retired  *lru.Cache[types.ContextID, uint64]
	logger   *slog.Logger

	bumps atomic.Int64
}

// NewAuthority creates an empty Authority.
func NewAuthority(logger *slog.Logger) *Authority {
	if logger == nil {
		logger = slog.Default()
	}
	retired, _ := lru.New[types.ContextID, uint64](maxRetired)
	return &Authority{
		counters: make(map[types.ContextID]uint64),
		retired:  retired,
		logger:   logger.With("component", "generation"),
	}
}

// Register starts tracking ctx at First. Registering an existing context
// keeps its current token. A recently forgotten context resumes after its
// last token, so work tagged before Forget stays stale.
func (a *Authority) Register(ctx types.ContextID) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	if tok, ok := a.counters[ctx]; ok {
		return tok
	}
	tok := First
	if last, ok := a.retired.Peek(ctx); ok {
		tok = next(last)
		a.retired.Remove(ctx)
	}
	a.counters[ctx] = tok
	return tok
}

func next(tok uint64) uint64 {
	if tok+1 == 0 {
		return First
	}
	return tok + 1
}

// Current returns the token for ctx, or 0 for an unknown context. No job is
// ever tagged 0, so work for an unknown context is always stale.
func (a *Authority) Current(ctx types.ContextID) uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.counters[ctx]
}

// Known reports whether ctx is registered.
func (a *Authority) Known(ctx types.ContextID) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.counters[ctx]
	return ok
}

// Bump advances the token for ctx and returns the new value. An unknown
// context is registered first. On overflow the counter wraps to First.
func (a *Authority) Bump(ctx types.ContextID) uint64 {
	a.mu.Lock()
	prev, ok := a.counters[ctx]
	if !ok {
		prev, _ = a.retired.Peek(ctx)
		a.retired.Remove(ctx)
	}
	tok := next(prev)
	a.counters[ctx] = tok
	a.mu.Unlock()

	a.bumps.Add(1)
	a.logger.Debug("Generation bumped", "context", ctx, "from", prev, "to", tok)
	return tok
}

// Valid reports whether tok is still the current token for ctx.
func (a *Authority) Valid(ctx types.ContextID, tok uint64) bool {
	return tok != 0 && a.Current(ctx) == tok
}

// Check returns ErrStale when tok is no longer current.
func (a *Authority) Check(ctx types.ContextID, tok uint64) error {
	if !a.Valid(ctx, tok) {
		return types.ErrStale
	}
	return nil
}

// Forget stops tracking ctx. Outstanding work for it becomes stale.
func (a *Authority) Forget(ctx types.ContextID) {
	a.mu.Lock()
	if tok, ok := a.counters[ctx]; ok {
		a.retired.Add(ctx, tok)
		delete(a.counters, ctx)
	}
	a.mu.Unlock()
}

// Bumps returns the total number of bumps across all contexts.
func (a *Authority) Bumps() int64 {
	return a.bumps.Load()
}

// Len returns the number of registered contexts.
func (a *Authority) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.counters)
}

// set is used by tests to exercise wraparound.
func (a *Authority) set(ctx types.ContextID, tok uint64) {
	a.mu.Lock()
	a.counters[ctx] = tok
	a.mu.Unlock()
}
