package cache

import (
	"context"
	"time"
)

// Store is the capability contract shared by every cache engine in this
// module: the sharded capacity engine (with LRU/LFU/2Q policies) and the
// TTL store. Coordinators (flight, replica, warmer) consume Store and do
// not care which engine backs it.
//
// All methods are safe for concurrent use by multiple goroutines.
// Typical complexity is amortized O(1): a map lookup plus constant-time
// list adjustments under an engine lock.
type Store[K comparable, V any] interface {
	// Add inserts k→v only if k is not present.
	// It uses the store's DefaultTTL (if any).
	// Returns false if the key already exists (no update is performed).
	Add(k K, v V) bool

	// Set inserts or updates k→v.
	// It uses the store's DefaultTTL (if any), and promotes the entry
	// according to the active eviction policy (e.g., LRU).
	Set(k K, v V)

	// SetWithTTL inserts or updates k→v with a per-key TTL (relative duration).
	// A non-positive ttl disables expiration for this entry.
	SetWithTTL(k K, v V, ttl time.Duration)

	// Get returns the value for k and a boolean flag indicating presence.
	// Absence (missing, evicted, or expired) is reported via the flag,
	// never as an error. On hit, the entry may be promoted according to
	// the active policy.
	Get(k K) (V, bool)

	// Remove deletes k if present and returns true on success.
	// Removing an absent key is a no-op and returns false.
	Remove(k K) bool

	// Purge removes all entries.
	Purge()

	// Len returns the current number of resident entries.
	Len() int

	// Close stops background workers (if any) and marks the store closed.
	// Operations on a closed store are no-ops.
	Close() error
}

// Source is the backing data source a cache sits in front of. It is an
// external collaborator: this module only consumes the contract.
//
// Fetch reports a missing key with ErrNotFound; any other error is a real
// source failure and must not be treated as absence.
type Source[K comparable, V any] interface {
	Fetch(ctx context.Context, k K) (V, error)
	Update(ctx context.Context, k K, v V) error
}
