// Package gate holds the switch that turns modeling on and off.
//
// A disabled gate, or a routine opted out of modeling, makes every
// intercepted call go straight to the real implementation. The switch is
// meant to be flipped by the embedding harness between calls; reads are
// atomic so toggling from another goroutine is still race-free.
package gate

import (
	"sort"
	"sync"
	"sync/atomic"
)

// Gate is the process-wide enable flag plus per-routine opt-outs.
type Gate struct {
	enabled atomic.Bool

	mu       sync.RWMutex
	disabled map[string]bool
}

// New returns a gate in the given state with no opt-outs.
func New(enabled bool) *Gate {
	g := &Gate{disabled: make(map[string]bool)}
	g.enabled.Store(enabled)
	return g
}

// Enable turns modeling on.
func (g *Gate) Enable() {
	g.enabled.Store(true)
}

// Disable turns modeling off for every routine.
func (g *Gate) Disable() {
	g.enabled.Store(false)
}

// Set stores the global state.
func (g *Gate) Set(enabled bool) {
	g.enabled.Store(enabled)
}

// Enabled reports the global state.
func (g *Gate) Enabled() bool {
	return g.enabled.Load()
}

// Exclude opts routines out of modeling.
func (g *Gate) Exclude(routines ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, r := range routines {
		g.disabled[r] = true
	}
}

// Include reverses Exclude.
func (g *Gate) Include(routines ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, r := range routines {
		delete(g.disabled, r)
	}
}

// Excluded lists opted-out routines, sorted.
func (g *Gate) Excluded() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, 0, len(g.disabled))
	for r := range g.disabled {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// Allows reports whether routine is to be modeled right now.
func (g *Gate) Allows(routine string) bool {
	if !g.enabled.Load() {
		return false
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return !g.disabled[routine]
}
