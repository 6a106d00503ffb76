package cache

import (
	"time"

	"github.com/avolkhin/herdcache/policy"
)

// EvictReason explains why an entry was removed.
type EvictReason int

const (
	// EvictPolicy — removed by the active eviction policy (LRU/LFU/2Q).
	EvictPolicy EvictReason = iota
	// EvictTTL — expired by TTL.
	EvictTTL
	// EvictCapacity — removed to satisfy cost limits.
	EvictCapacity
)

// Metrics exposes cache-level observability hooks.
// A NoopMetrics implementation is provided and used by default.
// See metrics/prom for a Prometheus adapter.
type Metrics interface {
	Hit()
	Miss()
	Evict(reason EvictReason)
	Size(entries int, cost int64)
}

// Clock provides time in UnixNano; useful for deterministic tests.
type Clock interface{ NowUnixNano() int64 }

// Options configures the sharded engine. Zero values are safe for the
// optional fields; sane defaults are applied in New():
//   - nil Policy   => LRU
//   - Shards <= 0  => auto (rounded up to power of two)
//   - nil Metrics  => NoopMetrics
//   - nil Logger   => NopLogger
//
// Capacity is required and validated; New refuses to construct an engine
// from an invalid configuration.
type Options[K comparable, V any] struct {
	// Capacity is the entry count limit (used together with MaxCost if set).
	// Must be > 0.
	Capacity int

	// Shards defines the number of shards. If 0, an automatic value is chosen
	// (≈ 2*GOMAXPROCS) and rounded to the next power of two.
	Shards int

	// Policy is a pluggable eviction policy (LRU/LFU/2Q/…); nil => LRU.
	Policy policy.Policy[K, V]

	// DefaultTTL applies to Add/Set when per-key TTL is not provided
	// (0 = no TTL). Expired entries are evicted lazily on access.
	DefaultTTL time.Duration

	// Cost-based limiting (e.g., bytes). If Cost is non-nil and MaxCost > 0,
	// the engine evicts until both entry count and total cost limits are
	// satisfied.
	Cost    func(v V) int // nil = all entries have equal cost (0)
	MaxCost int64         // total cost limit; 0 disables cost limiting

	// OnEvict is called for every eviction under the shard lock;
	// keep callbacks lightweight.
	OnEvict func(k K, v V, reason EvictReason)

	Metrics Metrics
	Logger  Logger

	// Clock allows overriding the time source (tests). Nil => time.Now().
	Clock Clock
}
