// Package ttlstore provides a time-to-live cache engine with an
// event-driven background sweep.
//
// Unlike the capacity engine in package cache, entries here are bounded by
// lifetime, not count. Every entry carries an absolute deadline; a single
// sweeper goroutine sleeps until the earliest deadline becomes due (zero
// busy-waiting, no periodic scans) and retires entries as they expire.
// Reads additionally expire lazily, closing the gap between a deadline
// passing and the sweeper waking.
//
// Refreshing a key simply schedules a second deletion stamp; the first
// becomes a ghost (its recorded deadline no longer matches the live one)
// and is discarded when popped. See delayqueue.go.
//
// The store owns its sweeper: Close cancels it cooperatively and waits for
// it to exit. No deletions are attempted after shutdown is requested.
package ttlstore

import (
	"container/heap"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/avolkhin/herdcache/cache"
)

// ErrInvalidTTL is returned by New when Options.DefaultTTL is not positive.
var ErrInvalidTTL = errors.New("ttlstore: default TTL must be > 0")

// Options configures the TTL store.
type Options[K comparable, V any] struct {
	// DefaultTTL applies to Add/Set and to SetWithTTL calls with a
	// non-positive ttl. Must be > 0: every entry in this store expires.
	DefaultTTL time.Duration

	// OnExpire is called (under the store lock) when the sweep or a lazy
	// read retires an entry. Panics in the callback are logged and do not
	// stop the sweeper.
	OnExpire func(k K, v V)

	Metrics cache.Metrics
	Logger  cache.Logger

	// Clock overrides the deadline time source (tests). The sweeper still
	// sleeps on real timers; Clock only shifts what counts as "due".
	Clock cache.Clock
}

type entry[V any] struct {
	val V
	exp int64 // absolute UnixNano deadline
}

// store is the TTL engine. A single mutex guards the entry map and the
// delay queue as a unit: a stamp is pushed in the same critical section
// that records its deadline, so the ghost check in the sweep is exact.
type store[K comparable, V any] struct {
	opt Options[K, V]

	mu     sync.Mutex
	m      map[K]entry[V]
	dq     delayQueue[K]
	closed bool

	// wake nudges the sweeper when a new earliest deadline is scheduled.
	wake   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a TTL store and starts its sweeper.
// The configuration is validated first; an invalid DefaultTTL refuses to
// construct the store.
func New[K comparable, V any](opt Options[K, V]) (cache.Store[K, V], error) {
	if opt.DefaultTTL <= 0 {
		return nil, ErrInvalidTTL
	}
	if opt.Metrics == nil {
		opt.Metrics = cache.NoopMetrics{}
	}
	if opt.Logger == nil {
		opt.Logger = cache.NopLogger{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &store[K, V]{
		opt:    opt,
		m:      make(map[K]entry[V]),
		wake:   make(chan struct{}, 1),
		ctx:    ctx,
		cancel: cancel,
	}
	s.wg.Add(1)
	go s.sweepLoop()
	return s, nil
}

// ---- cache.Store implementation ----

// Add inserts k→v with DefaultTTL only if k is absent (or already expired).
func (s *store[K, V]) Add(k K, v V) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	if e, ok := s.m[k]; ok && s.now() <= e.exp {
		return false
	}
	s.scheduleLocked(k, v, s.opt.DefaultTTL)
	return true
}

// Set inserts or updates k→v with DefaultTTL.
func (s *store[K, V]) Set(k K, v V) { s.SetWithTTL(k, v, 0) }

// SetWithTTL inserts or updates k→v with a per-key TTL.
// A non-positive ttl falls back to DefaultTTL; entries in this store
// always expire.
func (s *store[K, V]) SetWithTTL(k K, v V, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	if ttl <= 0 {
		ttl = s.opt.DefaultTTL
	}
	s.scheduleLocked(k, v, ttl)
}

// Get returns the value for k. An entry whose deadline has passed is
// retired on the spot and reported as a miss, even if the sweeper has not
// reached it yet.
func (s *store[K, V]) Get(k K) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero V
	if s.closed {
		return zero, false
	}
	e, ok := s.m[k]
	if !ok {
		s.opt.Metrics.Miss()
		return zero, false
	}
	if s.now() > e.exp {
		s.expireLocked(k, e)
		s.opt.Metrics.Miss()
		return zero, false
	}
	s.opt.Metrics.Hit()
	return e.val, true
}

// Remove deletes k if present. Removing an absent key is a no-op.
func (s *store[K, V]) Remove(k K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	if _, ok := s.m[k]; !ok {
		return false
	}
	delete(s.m, k)
	// The entry's stamps in the queue are ghosts now; the sweep skips them.
	return true
}

// Purge drops every entry and all scheduled stamps.
func (s *store[K, V]) Purge() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.m = make(map[K]entry[V])
	s.dq = s.dq[:0]
	s.opt.Metrics.Size(0, 0)
}

// Len returns the number of resident entries (including not-yet-swept
// expired ones).
func (s *store[K, V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}

// Close stops the sweeper and waits for it to exit. Idempotent.
// Operations after Close are no-ops.
func (s *store[K, V]) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	return nil
}

// ---- internals ----

func (s *store[K, V]) now() int64 {
	if s.opt.Clock != nil {
		return s.opt.Clock.NowUnixNano()
	}
	return time.Now().UnixNano()
}

// scheduleLocked stores the entry and enqueues a deletion stamp carrying
// its deadline. If the stamp is the new earliest, the sweeper is nudged to
// re-arm its timer.
func (s *store[K, V]) scheduleLocked(k K, v V, ttl time.Duration) {
	exp := s.now() + int64(ttl)
	s.m[k] = entry[V]{val: v, exp: exp}
	heap.Push(&s.dq, stamp[K]{key: k, exp: exp})
	s.opt.Metrics.Size(len(s.m), 0)

	if s.dq[0].exp == exp {
		select {
		case s.wake <- struct{}{}:
		default:
		}
	}
}

// expireLocked deletes the entry and fires the expiry callback.
func (s *store[K, V]) expireLocked(k K, e entry[V]) {
	delete(s.m, k)
	s.opt.Metrics.Evict(cache.EvictTTL)
	s.opt.Metrics.Size(len(s.m), 0)
	if s.opt.OnExpire != nil {
		s.fireExpire(k, e.val)
	}
}

// fireExpire shields the sweeper (and lazy reads) from callback panics.
func (s *store[K, V]) fireExpire(k K, v V) {
	defer func() {
		if r := recover(); r != nil {
			s.opt.Logger.Error("ttlstore: expire callback panicked", cache.Fields{"panic": r})
		}
	}()
	s.opt.OnExpire(k, v)
}

// sweepLoop is the single background worker. It blocks with zero CPU until
// the earliest stamp becomes due, wakes, retires whatever is due, and goes
// back to sleep. A wake signal means an earlier deadline was scheduled and
// the timer must be re-armed.
func (s *store[K, V]) sweepLoop() {
	defer s.wg.Done()

	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		wait, ok := s.sweepOnce()
		if !ok {
			// Nothing scheduled: sleep until a Set enqueues a stamp.
			select {
			case <-s.ctx.Done():
				return
			case <-s.wake:
			}
			continue
		}

		timer.Reset(wait)
		select {
		case <-s.ctx.Done():
			drainStop(timer)
			return
		case <-s.wake:
			drainStop(timer)
		case <-timer.C:
		}
	}
}

// sweepOnce retires every due stamp and reports how long to sleep until
// the next one. ok is false when the queue is empty (or the store closed).
func (s *store[K, V]) sweepOnce() (wait time.Duration, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, false
	}
	for len(s.dq) > 0 {
		head := s.dq[0]
		now := s.now()
		if head.exp > now {
			return time.Duration(head.exp - now), true
		}
		heap.Pop(&s.dq)

		e, live := s.m[head.key]
		if !live || e.exp != head.exp {
			// Ghost: the key was refreshed or removed after this stamp
			// was scheduled. Acting on it would delete fresh data.
			continue
		}
		s.expireLocked(head.key, e)
	}
	return 0, false
}

func drainStop(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}
