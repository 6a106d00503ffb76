// Package lfu implements the LFU eviction policy.
package lfu

import (
	"container/list"

	"github.com/avolkhin/herdcache/policy"
)

// lfu is a pure frequency-count Least-Frequently-Used policy.
//
// Bookkeeping (all per shard, all mutated under the shard lock):
//   - buckets: frequency -> list of nodes sharing that count,
//     MRU at Front() -> least-recent at Back()
//   - elems:   node -> its element inside its bucket
//   - freqs:   node -> current frequency
//   - minFreq: lowest frequency with a non-empty bucket whenever the
//     shard is non-empty
//
// Frequencies start at 1 on admission, are bumped on every hit/update,
// and never decay (no aging). The eviction victim is the Back() of the
// minFreq bucket: least recently touched among the least frequently used.
type lfu[K comparable, V any] struct {
	h policy.Hooks[K, V]

	buckets map[int]*list.List
	elems   map[policy.Node[K, V]]*list.Element
	freqs   map[policy.Node[K, V]]int
	minFreq int
}

type lfuPolicy[K comparable, V any] struct{}

// New returns a Policy factory that constructs per-shard LFU instances.
func New[K comparable, V any]() policy.Policy[K, V] { return lfuPolicy[K, V]{} }

func (lfuPolicy[K, V]) New(h policy.Hooks[K, V]) policy.ShardPolicy[K, V] {
	return &lfu[K, V]{
		h:       h,
		buckets: make(map[int]*list.List),
		elems:   make(map[policy.Node[K, V]]*list.Element),
		freqs:   make(map[policy.Node[K, V]]int),
	}
}

// OnAdd admits the node with frequency 1. A fresh admission always makes
// 1 the minimum frequency.
func (p *lfu[K, V]) OnAdd(n policy.Node[K, V]) (evict policy.Node[K, V]) {
	p.h.PushFront(n)
	p.freqs[n] = 1
	p.pushBucket(1, n)
	p.minFreq = 1
	return nil
}

// OnGet bumps the node's frequency and records recency within the new bucket.
func (p *lfu[K, V]) OnGet(n policy.Node[K, V]) {
	p.bump(n)
	p.h.MoveToFront(n)
}

// OnUpdate follows OnGet semantics (updates count as uses).
func (p *lfu[K, V]) OnUpdate(n policy.Node[K, V]) { p.OnGet(n) }

// OnRemove drops the node's bucket membership and advances minFreq if the
// minimum bucket just emptied.
func (p *lfu[K, V]) OnRemove(n policy.Node[K, V]) {
	f, ok := p.freqs[n]
	if !ok {
		return
	}
	p.dropFromBucket(f, n)
	delete(p.freqs, n)
	if f == p.minFreq {
		p.advanceMin()
	}
}

// Victim is the least-recent node of the minimum-frequency bucket.
func (p *lfu[K, V]) Victim() policy.Node[K, V] {
	if len(p.freqs) == 0 {
		return nil
	}
	b := p.buckets[p.minFreq]
	if b == nil || b.Len() == 0 {
		// minFreq went stale (should not happen); resync before evicting.
		p.advanceMin()
		b = p.buckets[p.minFreq]
		if b == nil || b.Len() == 0 {
			return nil
		}
	}
	return b.Back().Value.(policy.Node[K, V])
}

// Reset drops all frequency state (the shard was purged).
func (p *lfu[K, V]) Reset() {
	p.buckets = make(map[int]*list.List)
	p.elems = make(map[policy.Node[K, V]]*list.Element)
	p.freqs = make(map[policy.Node[K, V]]int)
	p.minFreq = 0
}

// bump moves n from bucket f to the front of bucket f+1.
// If n was alone in the minimum bucket, the minimum follows it up.
func (p *lfu[K, V]) bump(n policy.Node[K, V]) {
	f, ok := p.freqs[n]
	if !ok {
		return
	}
	p.dropFromBucket(f, n)
	if f == p.minFreq && p.buckets[f] == nil {
		p.minFreq = f + 1
	}
	p.freqs[n] = f + 1
	p.pushBucket(f+1, n)
}

// pushBucket inserts n at the MRU end of bucket f, creating it on demand.
func (p *lfu[K, V]) pushBucket(f int, n policy.Node[K, V]) {
	b := p.buckets[f]
	if b == nil {
		b = list.New()
		p.buckets[f] = b
	}
	p.elems[n] = b.PushFront(n)
}

// dropFromBucket unlinks n from bucket f and deletes the bucket if empty.
func (p *lfu[K, V]) dropFromBucket(f int, n policy.Node[K, V]) {
	if el, ok := p.elems[n]; ok {
		p.buckets[f].Remove(el)
		delete(p.elems, n)
	}
	if b := p.buckets[f]; b != nil && b.Len() == 0 {
		delete(p.buckets, f)
	}
}

// advanceMin scans upward for the next non-empty bucket. The scan is
// bounded by the gap between the old minimum and the next occupied
// frequency, which stays tiny in practice.
func (p *lfu[K, V]) advanceMin() {
	if len(p.freqs) == 0 {
		p.minFreq = 0
		return
	}
	for p.buckets[p.minFreq] == nil {
		p.minFreq++
	}
}
