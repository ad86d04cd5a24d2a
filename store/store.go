// Package store provides an in-memory keyed entity store with per-key
// read-modify-write semantics.
//
// Callers never hold a live reference to a stored entity: every value passed
// into a mutation and every value handed back is produced by the store's
// clone function.
package store

import (
	"errors"
	"sync"
)

// ErrNotFound is returned by Update when no entity is stored under the key.
var ErrNotFound = errors.New("store: entity not found")

// Store maps IDs to entities. All methods are safe for concurrent use.
//
// Mutations on the same key are serialized by a per-key mutex. The map guard
// is only held long enough to find (or create) a key's slot, so a slow
// mutation on one key never blocks callers working on another key.
type Store[K comparable, V any] struct {
	mu    sync.Mutex
	slots map[K]*slot[V]
	count int

	newFn   func(K) V
	cloneFn func(V) V
}

// slot holds a single entity and its lock. refs and counted are guarded by
// Store.mu; a slot is dropped from the map once it is both unreferenced and
// empty. Lock order is slot then store, never the reverse.
type slot[V any] struct {
	mu      sync.Mutex
	val     V
	present bool

	refs    int
	counted bool
}

// New creates a Store. newFn builds the default entity for an ID that has
// never been written; cloneFn copies an entity. A nil cloneFn means values
// are copied by assignment, which is only correct for types without shared
// references.
func New[K comparable, V any](newFn func(K) V, cloneFn func(V) V) *Store[K, V] {
	if cloneFn == nil {
		cloneFn = func(v V) V { return v }
	}
	return &Store[K, V]{
		slots:   make(map[K]*slot[V]),
		newFn:   newFn,
		cloneFn: cloneFn,
	}
}

// Get returns a copy of the entity stored under id. The boolean reports
// whether an entity was present.
func (s *Store[K, V]) Get(id K) (V, bool) {
	sl := s.acquire(id)
	defer s.release(id, sl)

	if !sl.present {
		var zero V
		return zero, false
	}
	return s.cloneFn(sl.val), true
}

// Upsert applies mutate to the entity stored under id (or to newFn(id) when
// absent), stores the result and returns a copy of it. Concurrent upserts on
// the same id are applied one after another in the order they acquire the
// key's lock.
func (s *Store[K, V]) Upsert(id K, mutate func(V) V) V {
	sl := s.acquire(id)
	defer s.release(id, sl)

	cur := s.newFn(id)
	if sl.present {
		cur = s.cloneFn(sl.val)
	}
	next := mutate(cur)
	sl.val = next
	sl.present = true
	return s.cloneFn(next)
}

// Update applies fn to an existing entity. It returns ErrNotFound when id is
// absent. When fn returns an error the stored entity is left unchanged and
// the error is returned as is.
func (s *Store[K, V]) Update(id K, fn func(V) (V, error)) (V, error) {
	sl := s.acquire(id)
	defer s.release(id, sl)

	var zero V
	if !sl.present {
		return zero, ErrNotFound
	}
	next, err := fn(s.cloneFn(sl.val))
	if err != nil {
		return zero, err
	}
	sl.val = next
	return s.cloneFn(next), nil
}

// Delete removes the entity stored under id, if any.
func (s *Store[K, V]) Delete(id K) {
	sl := s.acquire(id)
	var zero V
	sl.val = zero
	sl.present = false
	s.release(id, sl)
}

// Len returns the number of stored entities. Mutations still in progress
// are counted once they finish.
func (s *Store[K, V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// acquire returns the locked slot for id, creating it if needed.
func (s *Store[K, V]) acquire(id K) *slot[V] {
	s.mu.Lock()
	sl, ok := s.slots[id]
	if !ok {
		sl = &slot[V]{}
		s.slots[id] = sl
	}
	sl.refs++
	s.mu.Unlock()

	sl.mu.Lock()
	return sl
}

// release drops sl from the map when nobody else holds it and it no longer
// carries an entity, then unlocks it. The bookkeeping runs while sl is still
// locked so that present is read in the same critical section as it was
// written.
func (s *Store[K, V]) release(id K, sl *slot[V]) {
	s.mu.Lock()
	if sl.present != sl.counted {
		if sl.present {
			s.count++
		} else {
			s.count--
		}
		sl.counted = sl.present
	}
	sl.refs--
	if sl.refs == 0 && !sl.present {
		delete(s.slots, id)
	}
	s.mu.Unlock()

	sl.mu.Unlock()
}
