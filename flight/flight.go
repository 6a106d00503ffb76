// Package flight provides a single-flight coordinator that fronts a cache
// Store with a backing Source and coalesces concurrent misses.
//
// Without coordination, N concurrent requests for the same missing key
// issue N identical source fetches (a cache stampede). The Coordinator
// guarantees at most one in-flight fetch per key: the first miss becomes
// the producer, everyone else waits for the producer's result. The result
// (or failure) is shared with all waiters, and a successful fetch
// populates the Store so later calls are plain hits.
package flight

import (
	"context"
	"errors"
	"time"

	"github.com/avolkhin/herdcache/cache"
	"github.com/avolkhin/herdcache/internal/singleflight"
)

var (
	// ErrNilStore is returned by New when no Store is provided.
	ErrNilStore = errors.New("flight: store must not be nil")
	// ErrNilSource is returned by New when no Source is provided.
	ErrNilSource = errors.New("flight: source must not be nil")
)

// Options configures a Coordinator.
type Options struct {
	// WaitTimeout bounds how long a single Get call waits for the shared
	// result. A waiter that exceeds it gets context.DeadlineExceeded; the
	// producer keeps running and its eventual result still populates the
	// cache for other waiters. 0 means no bound beyond the caller's ctx.
	WaitTimeout time.Duration

	Logger cache.Logger
}

// Coordinator coalesces cache misses into single source fetches.
// All methods are safe for concurrent use.
type Coordinator[K comparable, V any] struct {
	store  cache.Store[K, V]
	source cache.Source[K, V]
	opt    Options

	sf singleflight.Group[K, V]
}

// New constructs a Coordinator over the given Store and Source.
func New[K comparable, V any](store cache.Store[K, V], source cache.Source[K, V], opt Options) (*Coordinator[K, V], error) {
	if store == nil {
		return nil, ErrNilStore
	}
	if source == nil {
		return nil, ErrNilSource
	}
	if opt.Logger == nil {
		opt.Logger = cache.NopLogger{}
	}
	return &Coordinator[K, V]{store: store, source: source, opt: opt}, nil
}

// Get returns the cached value for k, fetching it from the source on a
// miss. Concurrent misses for the same key share one fetch.
//
// A missing key is reported as cache.ErrNotFound (the cache is left
// unpopulated). Any other fetch error is propagated to every current
// waiter, the cache is not populated, and the in-flight marker is cleared
// so the next request retries from scratch.
func (c *Coordinator[K, V]) Get(ctx context.Context, k K) (V, error) {
	// Fast path: resident entry.
	if v, ok := c.store.Get(k); ok {
		return v, nil
	}

	if c.opt.WaitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opt.WaitTimeout)
		defer cancel()
	}

	return c.sf.Do(ctx, k, func() (V, error) {
		// Double-check after winning the flight: another producer may have
		// populated the store between our miss and our registration.
		if v, ok := c.store.Get(k); ok {
			return v, nil
		}
		// The fetch is shared state: a timed-out or cancelled waiter must
		// not abort it for the waiters still attached.
		v, err := c.source.Fetch(context.WithoutCancel(ctx), k)
		if err != nil {
			if !errors.Is(err, cache.ErrNotFound) {
				c.opt.Logger.Warn("flight: source fetch failed", cache.Fields{"error": err})
			}
			var zero V
			return zero, err
		}
		c.store.Set(k, v)
		return v, nil
	})
}

// Update writes through: the source is updated first, then the cache.
// A source failure propagates and leaves the cache untouched.
func (c *Coordinator[K, V]) Update(ctx context.Context, k K, v V) error {
	if err := c.source.Update(ctx, k, v); err != nil {
		return err
	}
	c.store.Set(k, v)
	return nil
}

// Invalidate drops k from the cache (not from the source). The next Get
// for k fetches fresh data.
func (c *Coordinator[K, V]) Invalidate(k K) bool {
	return c.store.Remove(k)
}

// InFlight reports how many keys currently have a producer running.
// Useful for monitoring and tests.
func (c *Coordinator[K, V]) InFlight() int {
	return c.sf.InFlight()
}
