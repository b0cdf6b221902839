// Package store provides Store, an ordered collection that notifies
// observers after every change.
//
// Each call that changes content bumps a version counter exactly once and
// pushes a Change carrying that version and a copy of the sequence to every
// observer. Nothing is coalesced: a consumer that only samples the latest
// value can still tell how many changes happened by comparing versions.
//
// Predicates and mutators run under the store lock and must not call back
// into the same store.
package store

import (
	"slices"
	"sync"
)

// Change is delivered to observers after a changing call.
type Change[T any] struct {
	Version  uint64
	Snapshot []T
}

// Reader is the read-only surface handed to consumers that must not mutate.
type Reader[T any] interface {
	Get() []T
	Len() int
	Version() uint64
	FindFirst(pred func(T) bool) (T, bool)
	FindAll(pred func(T) bool) []T
	Observe(fn func(Change[T])) (cancel func())
}

// entry boxes a value so that removal by handle goes by identity, not equality.
type entry[T any] struct {
	value T
}

type observer[T any] struct {
	fn func(Change[T])
}

// Store is an ordered sequence of T. It is safe for concurrent use. Observers
// run outside the store lock, one change at a time in version order, so an
// observer may read or even mutate the store.
type Store[T any] struct {
	mu        sync.RWMutex
	items     []*entry[T]
	version   uint64
	observers []*observer[T]

	pending    []Change[T]
	delivering bool
}

type Option[T any] func(*Store[T])

// WithValues seeds the store without producing a notification.
func WithValues[T any](values ...T) Option[T] {
	return func(s *Store[T]) {
		for _, v := range values {
			s.items = append(s.items, &entry[T]{value: v})
		}
	}
}

func New[T any](opts ...Option[T]) *Store[T] {
	s := &Store[T]{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle identifies one element added with Add.
type Handle[T any] struct {
	s *Store[T]
	e *entry[T]
}

// Dispose removes the element this handle was created for, if it is still
// present. Calling it again is a no-op. It reports whether an element was
// removed.
func (h Handle[T]) Dispose() bool {
	if h.s == nil {
		return false
	}
	return h.s.Remove(h)
}

func (s *Store[T]) Get() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *Store[T]) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Add appends value and returns a handle that removes exactly this element.
func (s *Store[T]) Add(value T) Handle[T] {
	e := &entry[T]{value: value}
	s.mu.Lock()
	s.items = append(s.items, e)
	s.commit()
	return Handle[T]{s: s, e: e}
}

// Remove deletes the element behind h if it is still in this store.
func (s *Store[T]) Remove(h Handle[T]) bool {
	if h.s != s || h.e == nil {
		return false
	}
	s.mu.Lock()
	i := slices.Index(s.items, h.e)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.items = slices.Delete(s.items, i, i+1)
	s.commit()
	return true
}

// MutateElement replaces the element at index with mutator's result. The
// mutator may return a new value or the same one after editing it; both
// count as a change. It reports false for an out of range index.
func (s *Store[T]) MutateElement(index int, mutator func(T) T) bool {
	s.mu.Lock()
	if index < 0 || index >= len(s.items) {
		s.mu.Unlock()
		return false
	}
	e := s.items[index]
	var next T
	s.unlockOnPanic(func() { next = mutator(e.value) })
	e.value = next
	s.commit()
	return true
}

// MutateByPredicate applies mutator to every element matching pred, in order,
// and returns how many were mutated.
func (s *Store[T]) MutateByPredicate(pred func(T) bool, mutator func(T) T) int {
	s.mu.Lock()
	var hit []*entry[T]
	var next []T
	s.unlockOnPanic(func() {
		for _, e := range s.items {
			if pred(e.value) {
				hit = append(hit, e)
				next = append(next, mutator(e.value))
			}
		}
	})
	if len(hit) == 0 {
		s.mu.Unlock()
		return 0
	}
	for i, e := range hit {
		e.value = next[i]
	}
	s.commit()
	return len(hit)
}

func (s *Store[T]) FindFirst(pred func(T) bool) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.items {
		if pred(e.value) {
			return e.value, true
		}
	}
	var zero T
	return zero, false
}

func (s *Store[T]) FindAll(pred func(T) bool) []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []T{}
	for _, e := range s.items {
		if pred(e.value) {
			out = append(out, e.value)
		}
	}
	return out
}

func (s *Store[T]) RemoveFirst(pred func(T) bool) bool {
	s.mu.Lock()
	i := -1
	s.unlockOnPanic(func() {
		i = slices.IndexFunc(s.items, func(e *entry[T]) bool { return pred(e.value) })
	})
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.items = slices.Delete(s.items, i, i+1)
	s.commit()
	return true
}

func (s *Store[T]) RemoveAtIndex(index int) bool {
	s.mu.Lock()
	if index < 0 || index >= len(s.items) {
		s.mu.Unlock()
		return false
	}
	s.items = slices.Delete(s.items, index, index+1)
	s.commit()
	return true
}

// CullByPredicate removes every element matching pred and returns the count.
func (s *Store[T]) CullByPredicate(pred func(T) bool) int {
	s.mu.Lock()
	drop := make(map[*entry[T]]bool)
	s.unlockOnPanic(func() {
		for _, e := range s.items {
			if pred(e.value) {
				drop[e] = true
			}
		}
	})
	if len(drop) == 0 {
		s.mu.Unlock()
		return 0
	}
	s.items = slices.DeleteFunc(s.items, func(e *entry[T]) bool { return drop[e] })
	s.commit()
	return len(drop)
}

// unlockOnPanic runs caller code while s.mu is held. If fn panics the lock
// is released before the panic continues, leaving the store unchanged.
func (s *Store[T]) unlockOnPanic(fn func()) {
	done := false
	defer func() {
		if !done {
			s.mu.Unlock()
		}
	}()
	fn()
	done = true
}

// Observe registers fn to receive every change from now on. The returned
// cancel func is idempotent.
func (s *Store[T]) Observe(fn func(Change[T])) (cancel func()) {
	o := &observer[T]{fn: fn}
	s.mu.Lock()
	s.observers = append(s.observers, o)
	s.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.observers = slices.DeleteFunc(slices.Clone(s.observers), func(x *observer[T]) bool { return x == o })
			s.mu.Unlock()
		})
	}
}

// commit bumps the version, queues the change and releases the write lock.
// Callers must hold s.mu. The goroutine that finds no delivery in progress
// drains the queue; changes made by observers are delivered after the
// observer returns.
func (s *Store[T]) commit() {
	s.version++
	s.pending = append(s.pending, Change[T]{Version: s.version, Snapshot: s.snapshotLocked()})
	if s.delivering {
		s.mu.Unlock()
		return
	}
	s.delivering = true
	s.mu.Unlock()
	s.drain()
}

func (s *Store[T]) drain() {
	defer func() {
		if r := recover(); r != nil {
			s.mu.Lock()
			s.delivering = false
			s.pending = nil
			s.mu.Unlock()
			panic(r)
		}
	}()
	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.pending = nil
			s.delivering = false
			s.mu.Unlock()
			return
		}
		change := s.pending[0]
		s.pending = s.pending[1:]
		observers := s.observers
		s.mu.Unlock()
		for _, o := range observers {
			o.fn(Change[T]{Version: change.Version, Snapshot: slices.Clone(change.Snapshot)})
		}
	}
}

func (s *Store[T]) snapshotLocked() []T {
	out := make([]T, len(s.items))
	for i, e := range s.items {
		out[i] = e.value
	}
	return out
}
