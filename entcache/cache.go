package entcache

import (
	"context"
	"errors"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/perch-im/perch/pkg/clock"
)

// Indicates that the remote system authoritatively reports the entity does
// not exist. Fetch functions return it (possibly wrapped) for a definitive
// not-found, which triggers negative caching; any other error is treated as
// transient and mutates neither cache.
var ErrNotFound = errors.New("entity not found")

// FetchFunc is the remote lookup for one entity kind, supplied by the API
// client. Its timeout and retry policy are its own business; Resolve treats
// any terminal outcome as success, not-found, or transient failure.
type FetchFunc[K comparable, V any] func(ctx context.Context, id K) (V, error)

type inflight[V any] struct {
	done chan struct{}
	val  V
	err  error
}

// Cache pairs the positive and negative stores for one entity kind and
// orchestrates the pull path (Resolve), the push path (Ingest), and
// maintenance (Sweep).
//
// The raw stores are exported for direct inspection; during an in-flight
// not-found reconciliation an id can transiently appear in both, which
// Resolve's own write path never exposes.
type Cache[K comparable, V any] struct {
	// NegativeTTL bounds how long a not-found result suppresses refetching.
	NegativeTTL time.Duration

	Positive *Store[K, V]
	Negative *NegativeStore[K]

	name     string
	inflight *xsync.MapOf[K, *inflight[V]]
}

// New creates an empty cache pair. The name labels this cache's metrics and
// should be constant per entity kind, not per instance. A nil clk falls back
// to the system clock.
func New[K comparable, V any](name string, negativeTTL time.Duration, clk clock.Clock) *Cache[K, V] {
	return &Cache[K, V]{
		NegativeTTL: negativeTTL,
		Positive:    NewStore[K, V](clk),
		Negative:    NewNegativeStore[K](clk),
		name:        name,
		inflight:    xsync.NewMapOf[K, *inflight[V]](),
	}
}

// Resolve returns the entity for id, from cache when possible. The order is:
// positive store hit, negative-store suppressed miss (returns ErrNotFound
// without a remote call), then fetch. A successful fetch is written back to
// the positive store; a definitive not-found marks the negative store;
// transient fetch errors propagate unchanged and mutate neither store.
//
// Concurrent Resolve calls for the same id coalesce behind a single fetch and
// all observe that fetch's outcome. The fetch runs outside both store locks,
// so lookups for other ids proceed unhindered.
func (c *Cache[K, V]) Resolve(ctx context.Context, id K, fetch FetchFunc[K, V]) (V, error) {
	var zero V
	if v, ok := c.Positive.Get(id); ok {
		resolveOutcomes.WithLabelValues(c.name, "hit").Inc()
		return v, nil
	}
	if c.Negative.IsSuppressed(id, c.NegativeTTL) {
		resolveOutcomes.WithLabelValues(c.name, "negative_hit").Inc()
		return zero, ErrNotFound
	}

	// Coalesce concurrent lookups for the same id behind one fetch
	fl := &inflight[V]{done: make(chan struct{})}
	if prev, loaded := c.inflight.LoadOrStore(id, fl); loaded {
		resolvesCoalesced.WithLabelValues(c.name).Inc()
		select {
		case <-prev.done:
			return prev.val, prev.err
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}

	v, err := c.resolveRemote(ctx, id, fetch)
	fl.val, fl.err = v, err
	c.inflight.Delete(id)
	close(fl.done)
	return v, err
}

func (c *Cache[K, V]) resolveRemote(ctx context.Context, id K, fetch FetchFunc[K, V]) (V, error) {
	var zero V
	v, err := fetch(ctx, id)
	switch {
	case err == nil:
		c.Positive.Put(id, v)
		c.Negative.Clear(id)
		fetchOutcomes.WithLabelValues(c.name, "ok").Inc()
		resolveOutcomes.WithLabelValues(c.name, "fetched").Inc()
		return v, nil
	case errors.Is(err, ErrNotFound):
		// A push event may have landed this entity while the fetch was in
		// flight; marking it negative now would mask a true positive. The
		// re-check shares the positive store's lock, so any committed Put is
		// visible here.
		if v, ok := c.Positive.Get(id); ok {
			fetchOutcomes.WithLabelValues(c.name, "superseded").Inc()
			resolveOutcomes.WithLabelValues(c.name, "fetched").Inc()
			return v, nil
		}
		c.Negative.Mark(id)
		fetchOutcomes.WithLabelValues(c.name, "not_found").Inc()
		resolveOutcomes.WithLabelValues(c.name, "not_found").Inc()
		return zero, err
	default:
		fetchOutcomes.WithLabelValues(c.name, "error").Inc()
		resolveOutcomes.WithLabelValues(c.name, "error").Inc()
		return zero, err
	}
}

// Ingest incorporates push-delivered entity data: the value replaces any
// positive entry and clears any negative mark, making the id immediately
// resolvable without a remote call. Safe to call concurrently with any number
// of in-flight Resolves for the same or different ids.
func (c *Cache[K, V]) Ingest(id K, v V) V {
	c.Positive.Put(id, v)
	c.Negative.Clear(id)
	ingests.WithLabelValues(c.name).Inc()
	return v
}

// Remove drops the positive entry for id, for entity-deletion events. The
// negative store is left alone; whether the id now "does not exist" is for
// the next fetch to decide.
func (c *Cache[K, V]) Remove(id K) {
	c.Positive.Remove(id)
}

// Sweep runs both stores' sweeps in one maintenance pass and returns the
// (positive, negative) removal counts. It never errors; sweeping is pure
// bookkeeping over in-memory state.
func (c *Cache[K, V]) Sweep(staleAfter, negativeTTL time.Duration) (int, int) {
	p := c.Positive.Sweep(staleAfter)
	n := c.Negative.Sweep(negativeTTL)
	if p > 0 {
		evictions.WithLabelValues(c.name, "positive").Add(float64(p))
	}
	if n > 0 {
		evictions.WithLabelValues(c.name, "negative").Add(float64(n))
	}
	return p, n
}
