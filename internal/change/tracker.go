// Package change tells member caches when the data behind a hierarchy
// changed. A Tracker holds a change generation per hierarchy; each cache
// gets its own Listener that reports a change once.
package change

import (
	"sync"
	"sync/atomic"

	"github.com/leapstack-labs/leapolap/internal/cache"
	"github.com/leapstack-labs/leapolap/pkg/core"
)

// Tracker counts changes per hierarchy unique name.
type Tracker struct {
	mu     sync.RWMutex
	gens   map[string]*atomic.Uint64
	global atomic.Uint64
}

func NewTracker() *Tracker {
	return &Tracker{gens: make(map[string]*atomic.Uint64)}
}

func (t *Tracker) counter(hierarchy string) *atomic.Uint64 {
	t.mu.RLock()
	c, ok := t.gens[hierarchy]
	t.mu.RUnlock()
	if ok {
		return c
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok = t.gens[hierarchy]; !ok {
		c = new(atomic.Uint64)
		t.gens[hierarchy] = c
	}
	return c
}

// Mark records a change of the named hierarchy.
func (t *Tracker) Mark(hierarchy string) {
	t.counter(hierarchy).Add(1)
}

// MarkAll records a change of every hierarchy.
func (t *Tracker) MarkAll() {
	t.global.Add(1)
}

// generation is the change count seen for a hierarchy.
func (t *Tracker) generation(hierarchy string) uint64 {
	return t.counter(hierarchy).Load() + t.global.Load()
}

// Listener returns a new listener that has seen every change so far.
func (t *Tracker) Listener() *Listener {
	t.mu.RLock()
	base := make(map[string]uint64, len(t.gens))
	for name, c := range t.gens {
		base[name] = c.Load()
	}
	t.mu.RUnlock()
	return &Listener{
		tracker:    t,
		base:       base,
		baseGlobal: t.global.Load(),
		seen:       make(map[string]uint64),
	}
}

// Listener is the change listener of one cache.
type Listener struct {
	tracker *Tracker
	// generations at creation, for hierarchies not checked yet
	base       map[string]uint64
	baseGlobal uint64

	mu   sync.Mutex
	seen map[string]uint64
}

var _ cache.ChangeListener = (*Listener)(nil)

// IsHierarchyChanged reports whether h changed since the last call, or
// since the listener was created for the first call.
func (l *Listener) IsHierarchyChanged(h *core.Hierarchy) bool {
	name := h.UniqueName()
	gen := l.tracker.generation(name)
	l.mu.Lock()
	defer l.mu.Unlock()
	last, ok := l.seen[name]
	if !ok {
		last = l.base[name] + l.baseGlobal
	}
	l.seen[name] = gen
	return gen != last
}
