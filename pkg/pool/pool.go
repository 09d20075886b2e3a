// Package pool provides fixed-capacity object pools for the resource tree's
// entry, sample, and string allocations.
//
// Unlike sync.Pool, which is an unbounded cache the GC may clear at any time,
// the pools here have a static initial capacity fixed at construction and can
// be genuinely exhausted — Get returns a NoMemory-classified error rather
// than silently allocating, matching the hub's NO_MEMORY propagation. See
// DESIGN.md for why sync.Pool itself does not fit this requirement and was
// not used directly.
package pool

import (
	"fmt"

	"github.com/c360/datahub/errors"
)

// Pool is a fixed-capacity free list of reusable objects of type T.
// Pool is safe for concurrent use (the free list is a buffered channel),
// though the resource tree itself is single-threaded; the change notifier's
// goroutine receives only plain ChangeEvent values and never touches a pool.
type Pool[T any] struct {
	free    chan T
	newFn   func() T
	resetFn func(T)
	name    string

	capacity  int
	allocated int
}

// New creates a pool with the given capacity, pre-populated by calling newFn
// capacity times. resetFn, if non-nil, is invoked on every Put to clear an
// object before it re-enters the free list.
func New[T any](name string, capacity int, newFn func() T, resetFn func(T)) *Pool[T] {
	p := &Pool[T]{
		free:     make(chan T, capacity),
		newFn:    newFn,
		resetFn:  resetFn,
		name:     name,
		capacity: capacity,
	}
	for i := 0; i < capacity; i++ {
		p.free <- newFn()
		p.allocated++
	}
	return p
}

// Get removes one object from the free list. It returns a *errors.HubError
// with Kind errors.KindNoMemory when the pool is exhausted.
func (p *Pool[T]) Get() (T, error) {
	select {
	case v := <-p.free:
		return v, nil
	default:
		var zero T
		return zero, errors.New(errors.KindNoMemory,
			fmt.Errorf("pool %q exhausted (capacity %d)", p.name, p.capacity))
	}
}

// Put returns an object to the free list. If the free list is already at
// capacity (Put called more often than Get, or on a freshly constructed
// object never obtained from this pool), the object is dropped rather than
// blocking or growing the pool.
func (p *Pool[T]) Put(v T) {
	if p.resetFn != nil {
		p.resetFn(v)
	}
	select {
	case p.free <- v:
	default:
	}
}

// Available reports how many objects currently sit in the free list.
func (p *Pool[T]) Available() int {
	return len(p.free)
}

// Capacity returns the pool's fixed capacity.
func (p *Pool[T]) Capacity() int {
	return p.capacity
}

// Name returns the pool's diagnostic name, used in metrics labels.
func (p *Pool[T]) Name() string {
	return p.name
}
