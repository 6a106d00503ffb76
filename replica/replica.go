// Package replica spreads traffic for hot keys across several cache
// replicas.
//
// A key that draws disproportionate read traffic serializes on one
// engine's lock (or, in a sharded deployment, one stack). Marking it hot
// makes writes fan out synchronously to every replica, so replica state
// stays convergent, while reads round-robin across them, dividing the
// load by the replication factor. Cold keys stay on the primary
// (replica 0) for both reads and writes, so the replicator costs nothing
// for ordinary traffic.
package replica

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avolkhin/herdcache/cache"
)

// ErrNoReplicas is returned by New when no stores are provided.
var ErrNoReplicas = errors.New("replica: at least one store is required")

// Options configures a Replicator.
type Options struct {
	Logger cache.Logger
}

// Replicator routes Store operations over N replicas based on a hot-key
// set. It implements cache.Store itself, so it can be stacked under a
// flight.Coordinator like any single engine.
type Replicator[K comparable, V any] struct {
	replicas []cache.Store[K, V]
	opt      Options

	mu  sync.RWMutex
	hot map[K]struct{}

	// rr advances monotonically; reads for hot keys use rr mod N so
	// successive reads cycle 0,1,…,N-1,0,…
	rr atomic.Uint64
}

// New constructs a Replicator over the given replicas. The replication
// factor is len(stores); it must be at least 1. Replica 0 is the primary.
func New[K comparable, V any](stores []cache.Store[K, V], opt Options) (*Replicator[K, V], error) {
	if len(stores) == 0 {
		return nil, ErrNoReplicas
	}
	for _, st := range stores {
		if st == nil {
			return nil, ErrNoReplicas
		}
	}
	if opt.Logger == nil {
		opt.Logger = cache.NopLogger{}
	}
	return &Replicator[K, V]{
		replicas: stores,
		opt:      opt,
		hot:      make(map[K]struct{}),
	}, nil
}

// MarkHot flags k for replicated writes and round-robin reads. Idempotent;
// takes effect for subsequent operations only.
func (r *Replicator[K, V]) MarkHot(k K) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.hot[k]; ok {
		return
	}
	r.hot[k] = struct{}{}
	r.opt.Logger.Info("replica: key marked hot", cache.Fields{"replicas": len(r.replicas)})
}

// UnmarkHot reverts k to primary-only routing. The key's entries on
// non-primary replicas are dropped so they cannot go stale unnoticed.
func (r *Replicator[K, V]) UnmarkHot(k K) {
	r.mu.Lock()
	_, was := r.hot[k]
	delete(r.hot, k)
	r.mu.Unlock()

	if was {
		for _, st := range r.replicas[1:] {
			st.Remove(k)
		}
	}
}

// IsHot reports whether k is currently flagged hot.
func (r *Replicator[K, V]) IsHot(k K) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.hot[k]
	return ok
}

// ---- cache.Store implementation ----

// Get reads from the primary for cold keys, and round-robins across all
// replicas for hot keys.
func (r *Replicator[K, V]) Get(k K) (V, bool) {
	if !r.IsHot(k) {
		return r.replicas[0].Get(k)
	}
	idx := int((r.rr.Add(1) - 1) % uint64(len(r.replicas)))
	return r.replicas[idx].Get(k)
}

// Set writes to the primary for cold keys and fans out synchronously to
// every replica for hot keys, so replica state never diverges.
func (r *Replicator[K, V]) Set(k K, v V) {
	if !r.IsHot(k) {
		r.replicas[0].Set(k, v)
		return
	}
	for _, st := range r.replicas {
		st.Set(k, v)
	}
}

// SetWithTTL follows Set's routing with a per-key TTL.
func (r *Replicator[K, V]) SetWithTTL(k K, v V, ttl time.Duration) {
	if !r.IsHot(k) {
		r.replicas[0].SetWithTTL(k, v, ttl)
		return
	}
	for _, st := range r.replicas {
		st.SetWithTTL(k, v, ttl)
	}
}

// Add inserts only if absent. The primary decides; on success a hot key
// is copied to the remaining replicas.
func (r *Replicator[K, V]) Add(k K, v V) bool {
	if !r.replicas[0].Add(k, v) {
		return false
	}
	if r.IsHot(k) {
		for _, st := range r.replicas[1:] {
			st.Set(k, v)
		}
	}
	return true
}

// Remove fans out unconditionally: a stale entry left on any replica
// would resurface through round-robin reads.
func (r *Replicator[K, V]) Remove(k K) bool {
	removed := false
	for _, st := range r.replicas {
		if st.Remove(k) {
			removed = true
		}
	}
	return removed
}

// Purge clears every replica.
func (r *Replicator[K, V]) Purge() {
	for _, st := range r.replicas {
		st.Purge()
	}
}

// Len reports the primary's entry count; the primary holds every key.
func (r *Replicator[K, V]) Len() int {
	return r.replicas[0].Len()
}

// Close closes every replica, joining their errors.
func (r *Replicator[K, V]) Close() error {
	var errs []error
	for _, st := range r.replicas {
		if err := st.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ cache.Store[string, int] = (*Replicator[string, int])(nil)
