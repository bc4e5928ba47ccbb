package entcache

import (
	"sync"
	"time"

	"github.com/perch-im/perch/pkg/clock"
)

// NegativeStore remembers ids the remote system authoritatively reported as
// nonexistent, so repeat lookups can be answered locally until the TTL
// elapses. Entries are self-expiring: an entry past its TTL is treated as
// absent by every reader even before a Sweep physically removes it.
type NegativeStore[K comparable] struct {
	mu     sync.Mutex
	clock  clock.Clock
	marked map[K]time.Time
}

func NewNegativeStore[K comparable](clk clock.Clock) *NegativeStore[K] {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &NegativeStore[K]{
		clock:  clk,
		marked: make(map[K]time.Time),
	}
}

// IsSuppressed reports whether id was marked absent within the last ttl.
// An expired entry reads as absent but is left in place for Sweep.
func (s *NegativeStore[K]) IsSuppressed(id K, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.marked[id]
	if !ok {
		return false
	}
	return s.clock.Now().Sub(at) <= ttl
}

// Mark records that id does not exist as of now, overwriting any earlier
// mark.
func (s *NegativeStore[K]) Mark(id K) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked[id] = s.clock.Now()
}

// Clear removes the mark for id. No-op if absent.
func (s *NegativeStore[K]) Clear(id K) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.marked, id)
}

// Sweep removes every mark older than ttl and returns the number removed.
// Same exclusive-threshold rule as Store.Sweep: a mark exactly at the TTL age
// is kept (and is still suppressive, per IsSuppressed).
func (s *NegativeStore[K]) Sweep(ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	removed := 0
	for id, at := range s.marked {
		if now.Sub(at) > ttl {
			delete(s.marked, id)
			removed++
		}
	}
	return removed
}

func (s *NegativeStore[K]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.marked)
}
