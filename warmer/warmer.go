// Package warmer provides periodic proactive refresh of a key set.
//
// A Warmer owns one background goroutine that, every Interval, fetches
// each configured key from the Source and writes it into the Store. Keys
// stay warm instead of taking a miss (and a single-flight fetch) after
// every expiry. Refresh failures are retried with exponential backoff,
// logged, and never stop the cycle or the worker.
package warmer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/avolkhin/herdcache/cache"
)

var (
	// ErrNilStore is returned by New when no Store is provided.
	ErrNilStore = errors.New("warmer: store must not be nil")
	// ErrNilSource is returned by New when no Source is provided.
	ErrNilSource = errors.New("warmer: source must not be nil")
	// ErrInvalidInterval is returned by New when Interval is not positive.
	ErrInvalidInterval = errors.New("warmer: interval must be > 0")
	// ErrNoKeys is returned by New when neither Keys nor KeysFunc is set.
	ErrNoKeys = errors.New("warmer: a key set is required (Keys or KeysFunc)")
)

// Options configures a Warmer.
type Options[K comparable] struct {
	// Interval between refresh cycles. Must be > 0.
	Interval time.Duration

	// Keys is the static set of keys to keep warm.
	Keys []K

	// KeysFunc, if set, is consulted at the start of every cycle and
	// takes precedence over Keys. It lets the key set follow traffic
	// (e.g. the current hot keys).
	KeysFunc func() []K

	// MaxRetries bounds per-key fetch retries within one cycle (default 3).
	MaxRetries uint64

	Logger cache.Logger
}

// Warmer periodically refreshes a key set from a Source into a Store.
// Construct with New, launch with Start, stop with Close.
type Warmer[K comparable, V any] struct {
	store  cache.Store[K, V]
	source cache.Source[K, V]
	opt    Options[K]

	startOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// New validates the configuration and constructs a Warmer.
// The background loop does not run until Start is called.
func New[K comparable, V any](store cache.Store[K, V], source cache.Source[K, V], opt Options[K]) (*Warmer[K, V], error) {
	if store == nil {
		return nil, ErrNilStore
	}
	if source == nil {
		return nil, ErrNilSource
	}
	if opt.Interval <= 0 {
		return nil, ErrInvalidInterval
	}
	if len(opt.Keys) == 0 && opt.KeysFunc == nil {
		return nil, ErrNoKeys
	}
	if opt.MaxRetries == 0 {
		opt.MaxRetries = 3
	}
	if opt.Logger == nil {
		opt.Logger = cache.NopLogger{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Warmer[K, V]{
		store:  store,
		source: source,
		opt:    opt,
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Start launches the refresh loop. Subsequent calls are no-ops.
// The first cycle runs immediately; later cycles follow Interval.
func (w *Warmer[K, V]) Start() {
	w.startOnce.Do(func() {
		w.wg.Add(1)
		go w.run()
	})
}

// Close stops the loop and waits for it to exit. Idempotent.
func (w *Warmer[K, V]) Close() error {
	w.cancel()
	w.wg.Wait()
	return nil
}

func (w *Warmer[K, V]) run() {
	defer w.wg.Done()

	w.refreshAll()

	ticker := time.NewTicker(w.opt.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.refreshAll()
		}
	}
}

// refreshAll runs one warm cycle. Per-key failures are logged and the
// cycle moves on; the loop itself never dies.
func (w *Warmer[K, V]) refreshAll() {
	keys := w.opt.Keys
	if w.opt.KeysFunc != nil {
		keys = w.opt.KeysFunc()
	}

	for _, k := range keys {
		select {
		case <-w.ctx.Done():
			return
		default:
		}
		if err := w.refresh(k); err != nil {
			w.opt.Logger.Warn("warmer: refresh failed", cache.Fields{"error": err})
		}
	}
}

// refresh fetches one key with bounded exponential backoff and writes it
// through. A key the source no longer knows is dropped from the store.
func (w *Warmer[K, V]) refresh(k K) error {
	op := func() error {
		v, err := w.source.Fetch(w.ctx, k)
		if errors.Is(err, cache.ErrNotFound) {
			w.store.Remove(k)
			return nil
		}
		if err != nil {
			return err
		}
		w.store.Set(k, v)
		return nil
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), w.opt.MaxRetries),
		w.ctx,
	)
	return backoff.Retry(op, b)
}
