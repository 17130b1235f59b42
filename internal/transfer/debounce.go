package transfer

import (
	"sync"
	"time"
)

// debounceWindow matches the client's fixed button-disable window. It
// bounds rapid repeated taps to one outbound mutation; it is not a
// cancellation token and does not serialize slow in-flight requests.
const debounceWindow = 3 * time.Second

// DebounceGuard tracks recently fired transfer keys.
type DebounceGuard struct {
	mu    sync.Mutex
	clock func() time.Time
	fired map[string]time.Time
}

// NewDebounceGuard constructs a guard. A nil clock uses time.Now.
func NewDebounceGuard(clock func() time.Time) *DebounceGuard {
	if clock == nil {
		clock = time.Now
	}
	return &DebounceGuard{
		clock: clock,
		fired: make(map[string]time.Time),
	}
}

// Allow reports whether the key may fire now, and records the attempt
// when it may. Expired records are pruned on the way through.
func (g *DebounceGuard) Allow(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock()
	for existing, firedAt := range g.fired {
		if now.Sub(firedAt) >= debounceWindow {
			delete(g.fired, existing)
		}
	}

	if firedAt, ok := g.fired[key]; ok && now.Sub(firedAt) < debounceWindow {
		return false
	}
	g.fired[key] = now
	return true
}
