// Package cache provides the core contracts and the sharded, generic,
// capacity-bounded in-memory engine of herdcache.
//
// Design
//
//   - Contracts: Store is the capability contract every engine implements
//     (the TTL engine in ttlstore implements it too); Source is the backing
//     data source a cache fronts. Coordinators in flight, replica, and
//     warmer are written against these two interfaces only.
//
//   - Concurrency: the engine is split into shards, each protected by an
//     RWMutex. Every logical operation, including Get (which promotes),
//     runs in a single exclusive critical section: the map lookup and the
//     list mutation it triggers are never split across lock acquisitions.
//
//   - Storage: each shard keeps a map[K]*node for lookups and an intrusive
//     MRU↔LRU doubly linked list for ordering. All operations are O(1)
//     expected.
//
//   - Policies: eviction is pluggable via the policy package. LRU is the
//     default; LFU (frequency buckets with recency tie-break) and 2Q
//     (scan-resistant) are provided. The shard asks the active policy for
//     each eviction victim, so non-recency orders work without changing
//     the shard.
//
//   - TTL: entries can carry per-item deadlines (UnixNano). The capacity
//     engine expires lazily on access; the ttlstore package provides an
//     event-driven background sweep for workloads that need proactive
//     expiry.
//
//   - Cost/MaxCost: besides entry count (Capacity), a user-defined "cost"
//     per value (Options.Cost) can be enforced against a global MaxCost.
//     Shards split the budget evenly.
//
//   - Metrics: Options.Metrics receives Hit/Miss/Evict/Size signals.
//     NoopMetrics is the default; metrics/prom exports to Prometheus.
//
//   - Logging: Options.Logger is a tiny structured interface with adapters
//     in log/zap and log/logrus. The engine hot path never logs.
//
// Basic usage
//
//	c, err := cache.New[string, []byte](cache.Options[string, []byte]{Capacity: 10_000})
//	if err != nil {
//	    // invalid configuration
//	}
//	c.Set("a", []byte("1"))
//	if v, ok := c.Get("a"); ok {
//	    _ = v
//	}
//	c.Remove("a")
//
// With an alternative policy
//
//	c, err := cache.New[string, string](cache.Options[string, string]{
//	    Capacity: 50_000,
//	    Policy:   lfu.New[string, string](),
//	})
//
// Absence is always reported as (zero, false); it is never an error.
// Construction-time configuration problems are errors and refuse to build
// the component.
package cache
