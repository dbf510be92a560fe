// Package projection provides observable values that are replaced whole on
// every change, so readers always see a complete snapshot.
package projection

import (
	"sync"

	"github.com/matheus3301/telesync/internal/bus"
)

// Value holds a snapshot of T. Writers are serialized; readers never block
// on writers for longer than a pointer swap. Snapshots handed out by Load
// must be treated as immutable.
type Value[T any] struct {
	mu   sync.Mutex
	rw   sync.RWMutex
	v    T
	bus  *bus.Bus
	kind string
}

// New creates a value publishing every change on b under kind. A nil bus
// disables publishing.
func New[T any](initial T, b *bus.Bus, kind string) *Value[T] {
	return &Value[T]{v: initial, bus: b, kind: kind}
}

// Load returns the current snapshot.
func (p *Value[T]) Load() T {
	p.rw.RLock()
	defer p.rw.RUnlock()
	return p.v
}

// Store replaces the snapshot.
func (p *Value[T]) Store(v T) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.commit(v)
}

// Update derives a new snapshot from the current one. fn must not modify
// its argument; returning ok == false leaves the value untouched and
// publishes nothing.
func (p *Value[T]) Update(fn func(cur T) (next T, ok bool)) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	next, ok := fn(p.Load())
	if ok {
		p.commit(next)
	}
	return ok
}

func (p *Value[T]) commit(v T) {
	p.rw.Lock()
	p.v = v
	p.rw.Unlock()
	p.bus.Emit(p.kind, v)
}
