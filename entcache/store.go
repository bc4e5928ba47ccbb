package entcache

import (
	"sync"
	"time"

	"github.com/perch-im/perch/pkg/clock"
)

type entry[V any] struct {
	value      V
	lastAccess time.Time
}

// Store is the positive cache for one entity kind: a map of id to the last
// known value, stamped with the time it was last read or written. There is no
// entry-count limit; growth is bounded only by periodic Sweep calls.
//
// All operations are in-memory and cheap, so a single mutex guards the whole
// map. The value and its access timestamp live in one entry and are created,
// refreshed, and removed as a unit.
type Store[K comparable, V any] struct {
	mu      sync.Mutex
	clock   clock.Clock
	entries map[K]entry[V]
}

func NewStore[K comparable, V any](clk clock.Clock) *Store[K, V] {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Store[K, V]{
		clock:   clk,
		entries: make(map[K]entry[V]),
	}
}

// Get returns the cached value for id. A hit refreshes the entry's
// last-access time; a miss has no side effect.
func (s *Store[K, V]) Get(id K) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		var zero V
		return zero, false
	}
	e.lastAccess = s.clock.Now()
	s.entries[id] = e
	return e.value, true
}

// Put inserts or replaces the entry for id and refreshes its last-access
// time, even when the value is unchanged.
func (s *Store[K, V]) Put(id K, v V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = entry[V]{value: v, lastAccess: s.clock.Now()}
}

// Remove deletes the entry for id. No-op if absent.
func (s *Store[K, V]) Remove(id K) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
}

// Sweep removes every entry whose age exceeds threshold and returns the
// number removed. The threshold is exclusive: an entry exactly at the
// threshold age is kept.
//
// Ages are computed from a single now captured while holding the lock, so a
// Put racing with a Sweep either lands before it (entry refreshed and kept)
// or after it (entry re-inserted); a fresh entry is never removed.
func (s *Store[K, V]) Sweep(threshold time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	removed := 0
	for id, e := range s.entries {
		if now.Sub(e.lastAccess) > threshold {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

func (s *Store[K, V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
