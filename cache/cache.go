package cache

import (
	"math"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/avolkhin/herdcache/internal/util"
	"github.com/avolkhin/herdcache/policy/lru"
)

// engine is a sharded in-memory KV store with a pluggable eviction policy.
// All methods are safe for concurrent use by multiple goroutines.
type engine[K comparable, V any] struct {
	shards []*shard[K, V]
	hash   func(K) uint64
	closed atomic.Bool

	opt Options[K, V]
}

// New constructs a capacity-bounded engine with the provided Options.
// It validates the configuration and returns an error instead of
// constructing a broken engine. Defaults:
//   - nil Metrics  -> NoopMetrics
//   - nil Logger   -> NopLogger
//   - nil Policy   -> LRU
//   - Shards <= 0  -> auto, rounded up to the next power of two
func New[K comparable, V any](opt Options[K, V]) (Store[K, V], error) {
	if opt.Capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	if opt.DefaultTTL < 0 {
		return nil, ErrInvalidTTL
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	if opt.Logger == nil {
		opt.Logger = NopLogger{}
	}
	if opt.Policy == nil {
		opt.Policy = lru.New[K, V]()
	}

	// Shard count is always a power of two so getShard can mask.
	sh := opt.Shards
	if sh <= 0 {
		auto := 2 * runtime.GOMAXPROCS(0)
		sh = int(util.NextPow2(uint64(auto)))
		if sh < 1 {
			sh = 1
		}
	} else {
		sh = int(util.NextPow2(uint64(sh)))
	}

	cs := make([]*shard[K, V], sh)
	perShardCap := (opt.Capacity + sh - 1) / sh // split capacity evenly (ceil)
	for i := 0; i < sh; i++ {
		cs[i] = newShard[K, V](perShardCap, opt.Policy, opt)
	}

	return &engine[K, V]{
		shards: cs,
		hash:   util.Fnv64a[K],
		opt:    opt,
	}, nil
}

// ---- Store[K,V] implementation ----

// Add inserts k→v only if absent, using DefaultTTL if set.
func (c *engine[K, V]) Add(k K, v V) bool {
	if c.closed.Load() {
		return false
	}
	return c.getShard(k).Add(k, v, c.defaultDeadline(), c.costOf(v))
}

// Set inserts or updates k→v, using DefaultTTL if set,
// and promotes the entry according to the active policy.
func (c *engine[K, V]) Set(k K, v V) {
	if c.closed.Load() {
		return
	}
	c.getShard(k).Set(k, v, c.defaultDeadline(), c.costOf(v))
}

// SetWithTTL inserts or updates k→v with a per-key TTL.
func (c *engine[K, V]) SetWithTTL(k K, v V, ttl time.Duration) {
	if c.closed.Load() {
		return
	}
	c.getShard(k).Set(k, v, c.deadline(ttl), c.costOf(v))
}

// Get returns the value for k and a presence flag.
// On hit, the entry is promoted according to the active policy.
func (c *engine[K, V]) Get(k K) (V, bool) {
	if c.closed.Load() {
		var zero V
		return zero, false
	}
	return c.getShard(k).Get(k)
}

// Remove deletes k if present and returns true on success.
func (c *engine[K, V]) Remove(k K) bool {
	if c.closed.Load() {
		return false
	}
	return c.getShard(k).Remove(k)
}

// Purge removes all entries from every shard.
func (c *engine[K, V]) Purge() {
	if c.closed.Load() {
		return
	}
	for _, s := range c.shards {
		s.Purge()
	}
}

// Len returns the total number of resident entries across all shards.
func (c *engine[K, V]) Len() int {
	total := 0
	for _, s := range c.shards {
		total += s.Len()
	}
	return total
}

// Close marks the engine as closed. Future operations are ignored.
// The capacity engine owns no background goroutines; expiry is lazy.
func (c *engine[K, V]) Close() error {
	c.closed.Store(true)
	return nil
}

// ---- helpers ----

// getShard picks a shard by hashing the key and masking with len-1.
// len(c.shards) is guaranteed to be a power of two.
func (c *engine[K, V]) getShard(k K) *shard[K, V] {
	h := c.hash(k)
	return c.shards[int(h)&(len(c.shards)-1)]
}

// defaultDeadline returns an absolute deadline based on DefaultTTL.
func (c *engine[K, V]) defaultDeadline() int64 {
	if c.opt.DefaultTTL <= 0 {
		return 0
	}
	return c.deadline(c.opt.DefaultTTL)
}

// deadline converts a relative TTL into an absolute UnixNano deadline.
// A non-positive ttl returns 0 (no expiration).
func (c *engine[K, V]) deadline(ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	now := time.Now().UnixNano()
	if c.opt.Clock != nil {
		now = c.opt.Clock.NowUnixNano()
	}
	return now + int64(ttl)
}

// costOf computes the per-entry cost (clamped to int32 range).
func (c *engine[K, V]) costOf(v V) int32 {
	if c.opt.Cost == nil {
		return 0
	}
	iv := c.opt.Cost(v)
	if iv < 0 {
		iv = 0
	}
	if iv > math.MaxInt32 {
		iv = math.MaxInt32
	}
	return int32(iv)
}
