package cache

// node is an intrusive doubly linked list element owned by a shard.
// It stores the key/value alongside list links and the metadata used by
// eviction policies and TTL/cost accounting.
//
// Go's GC makes plain pointer links safe here: once a node is unlinked
// from both the map and the list, nothing can reach it.
type node[K comparable, V any] struct {
	key K
	val V

	// Intrusive list links: head is MRU, tail is LRU.
	prev *node[K, V]
	next *node[K, V]

	// Absolute expiration deadline in UnixNano. Zero means "no TTL".
	exp int64

	// Logical "cost" used when MaxCost is enabled.
	cost int32
}

// Key returns the node key (part of policy.Node).
func (n *node[K, V]) Key() K { return n.key }

// Value returns a pointer to the stored value (part of policy.Node).
// Callers must only touch the pointee while holding the shard lock.
func (n *node[K, V]) Value() *V { return &n.val }
