package fsops

import "sync"

// Guard serializes individual filesystem mutations.
//
// A Guard is held around exactly one mutating call (one remove, one rmdir,
// one rename, one append to a shared log). Multi-step operations such as
// RemoveTree acquire and release it once per step, so unrelated callers may
// interleave between steps.
type Guard struct {
	mu sync.Mutex
}

// NewGuard returns an unlocked Guard.
func NewGuard() *Guard {
	return &Guard{}
}

// Do runs fn while holding the guard.
func (g *Guard) Do(fn func() error) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return fn()
}
